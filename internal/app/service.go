// Package app orchestrates feed refreshes, subscription management, and
// OPML import/export over the store and the network fetcher.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"speedy-reader/internal/feed"
	"speedy-reader/internal/storage"
)

// Articles older than this are swept after every refresh.
const retentionAge = 7 * 24 * time.Hour

type Fetcher interface {
	RefreshAll(ctx context.Context, feeds []storage.Feed) []feed.Result
	Discover(ctx context.Context, rawURL string) (storage.NewFeed, error)
}

type Repository interface {
	InsertFeed(ctx context.Context, feed storage.NewFeed) (int64, error)
	FeedExistsByURL(ctx context.Context, url string) (bool, error)
	ListFeeds(ctx context.Context) ([]storage.Feed, error)
	UpdateFeedLastFetched(ctx context.Context, id int64) error
	UpsertArticle(ctx context.Context, article storage.NewArticle) (int64, error)
	ListArticles(ctx context.Context) ([]storage.Article, error)
	DeleteArticlesOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
}

var ErrDuplicateFeed = errors.New("feed already subscribed")

type Service struct {
	fetcher Fetcher
	repo    Repository
}

func NewService(fetcher Fetcher, repo Repository) *Service {
	return &Service{fetcher: fetcher, repo: repo}
}

// RefreshAll fetches every subscribed feed, merges the results into the
// store, sweeps aged articles, and returns the fresh article list. Only
// feeds that fetched successfully get their last-fetched stamp advanced.
func (s *Service) RefreshAll(ctx context.Context) ([]storage.Article, error) {
	feeds, err := s.repo.ListFeeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("load feeds: %w", err)
	}

	results := s.fetcher.RefreshAll(ctx, feeds)
	for _, res := range results {
		for _, article := range res.Articles {
			if _, err := s.repo.UpsertArticle(ctx, article); err != nil {
				return nil, fmt.Errorf("save article: %w", err)
			}
		}
		if err := s.repo.UpdateFeedLastFetched(ctx, res.FeedID); err != nil {
			return nil, fmt.Errorf("stamp feed fetch time: %w", err)
		}
	}

	swept, err := s.repo.DeleteArticlesOlderThan(ctx, retentionAge)
	if err != nil {
		return nil, fmt.Errorf("sweep old articles: %w", err)
	}
	if swept > 0 {
		slog.Debug("swept old articles", "count", swept)
	}

	articles, err := s.repo.ListArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load articles: %w", err)
	}
	return articles, nil
}

// ListArticles returns the stored article list without refreshing.
func (s *Service) ListArticles(ctx context.Context) ([]storage.Article, error) {
	articles, err := s.repo.ListArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load articles: %w", err)
	}
	return articles, nil
}

// AddFeed discovers a feed at the given URL and subscribes to it. The
// resolved feed URL is checked against existing subscriptions before insert.
func (s *Service) AddFeed(ctx context.Context, rawURL string) (storage.NewFeed, error) {
	discovered, err := s.fetcher.Discover(ctx, rawURL)
	if err != nil {
		return storage.NewFeed{}, err
	}

	exists, err := s.repo.FeedExistsByURL(ctx, discovered.URL)
	if err != nil {
		return storage.NewFeed{}, fmt.Errorf("check existing feed: %w", err)
	}
	if exists {
		return storage.NewFeed{}, ErrDuplicateFeed
	}

	if _, err := s.repo.InsertFeed(ctx, discovered); err != nil {
		return storage.NewFeed{}, fmt.Errorf("save feed: %w", err)
	}
	return discovered, nil
}

// ImportOPML subscribes to every feed in the OPML file, skipping ones
// already subscribed, then refreshes. It returns the number of feeds added.
func (s *Service) ImportOPML(ctx context.Context, path string) (int, error) {
	feeds, err := feed.ParseOPMLFile(path)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, nf := range feeds {
		exists, err := s.repo.FeedExistsByURL(ctx, nf.URL)
		if err != nil {
			return added, fmt.Errorf("check existing feed: %w", err)
		}
		if exists {
			slog.Debug("skipping already-subscribed feed", "url", nf.URL)
			continue
		}
		if _, err := s.repo.InsertFeed(ctx, nf); err != nil {
			return added, fmt.Errorf("save feed %q: %w", nf.URL, err)
		}
		added++
	}

	if _, err := s.RefreshAll(ctx); err != nil {
		return added, err
	}
	return added, nil
}

// ExportOPML writes the current subscriptions to an OPML file.
func (s *Service) ExportOPML(ctx context.Context, path string) error {
	feeds, err := s.repo.ListFeeds(ctx)
	if err != nil {
		return fmt.Errorf("load feeds: %w", err)
	}
	return feed.WriteOPMLFile(path, feeds)
}
