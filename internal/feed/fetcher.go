// Package feed fetches and parses syndicated feeds, discovers feed URLs
// from HTML pages, and refreshes all subscriptions with bounded concurrency.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"speedy-reader/internal/render"
	"speedy-reader/internal/storage"
)

const (
	userAgent      = "speedy-reader/1.0"
	maxConcurrent  = 5
	requestTimeout = 30 * time.Second
	connectTimeout = 10 * time.Second
	maxBodyBytes   = 10 << 20
)

type Fetcher struct {
	client *http.Client
	parser *gofeed.Parser
}

func NewFetcher() *Fetcher {
	return NewFetcherWithClient(&http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
		},
	})
}

func NewFetcherWithClient(client *http.Client) *Fetcher {
	return &Fetcher{client: client, parser: gofeed.NewParser()}
}

// FetchFeed downloads and parses one feed, returning its articles keyed for
// upsert under feedID.
func (f *Fetcher) FetchFeed(ctx context.Context, feedID int64, url string) ([]storage.NewArticle, error) {
	page, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}

	parsed, err := f.parser.ParseString(page.body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %q: %w", url, err)
	}

	articles := make([]storage.NewArticle, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		articles = append(articles, articleFromItem(feedID, item))
	}
	return articles, nil
}

func articleFromItem(feedID int64, item *gofeed.Item) storage.NewArticle {
	content := item.Content
	if content == "" {
		content = item.Description
	}

	guid := item.GUID
	if guid == "" {
		guid = item.Link
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = "Untitled"
	}

	author := ""
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		author = item.Authors[0].Name
	}

	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}

	return storage.NewArticle{
		FeedID:      feedID,
		GUID:        guid,
		Title:       title,
		URL:         item.Link,
		Author:      author,
		Content:     content,
		ContentText: render.Text(content),
		PublishedAt: published,
	}
}

// Result holds one feed's successful fetch inside a refresh batch.
type Result struct {
	FeedID   int64
	Articles []storage.NewArticle
}

// RefreshAll fetches every feed with at most five in flight. A failing feed
// is logged and dropped from the results; it never aborts its siblings.
func (f *Fetcher) RefreshAll(ctx context.Context, feeds []storage.Feed) []Result {
	results := make([]Result, len(feeds))
	ok := make([]bool, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, fd := range feeds {
		g.Go(func() error {
			articles, err := f.FetchFeed(ctx, fd.ID, fd.URL)
			if err != nil {
				slog.Debug("feed fetch failed", "url", fd.URL, "error", err)
				return nil
			}
			slog.Debug("fetched feed", "title", fd.Title, "articles", len(articles))
			results[i] = Result{FeedID: fd.ID, Articles: articles}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Result, 0, len(feeds))
	for i := range results {
		if ok[i] {
			out = append(out, results[i])
		}
	}
	return out
}

type fetchedPage struct {
	body        string
	finalURL    string
	contentType string
}

func (f *Fetcher) get(ctx context.Context, url string) (fetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fetchedPage{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fetchedPage{}, fmt.Errorf("fetch %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fetchedPage{}, fmt.Errorf("fetch %q: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fetchedPage{}, fmt.Errorf("read %q: %w", url, err)
	}
	return fetchedPage{
		body:        string(data),
		finalURL:    resp.Request.URL.String(),
		contentType: resp.Header.Get("Content-Type"),
	}, nil
}
