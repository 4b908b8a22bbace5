package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "reader.db")
	repo, err := NewRepository(dbPath)
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	return repo
}

func insertTestFeed(t *testing.T, repo *Repository, url string) int64 {
	t.Helper()
	id, err := repo.InsertFeed(context.Background(), NewFeed{Title: "Feed", URL: url})
	if err != nil {
		t.Fatalf("InsertFeed returned error: %v", err)
	}
	return id
}

func TestUpsertArticle_MergesByNaturalKey(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	feedID := insertTestFeed(t, repo, "https://example.com/feed.xml")

	published := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	first := NewArticle{
		FeedID:      feedID,
		GUID:        "guid-1",
		Title:       "Original title",
		URL:         "https://example.com/a",
		PublishedAt: &published,
	}
	if _, err := repo.UpsertArticle(ctx, first); err != nil {
		t.Fatalf("UpsertArticle returned error: %v", err)
	}

	articles, err := repo.ListArticles(ctx)
	if err != nil {
		t.Fatalf("ListArticles returned error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	originalID := articles[0].ID

	// Flip the user flags, then re-fetch the same guid with new content.
	if err := repo.MarkArticleRead(ctx, originalID, true); err != nil {
		t.Fatalf("MarkArticleRead returned error: %v", err)
	}
	if err := repo.ToggleArticleStarred(ctx, originalID); err != nil {
		t.Fatalf("ToggleArticleStarred returned error: %v", err)
	}

	second := first
	second.Title = "Updated title"
	second.Content = "<p>new body</p>"
	if _, err := repo.UpsertArticle(ctx, second); err != nil {
		t.Fatalf("second UpsertArticle returned error: %v", err)
	}

	articles, err = repo.ListArticles(ctx)
	if err != nil {
		t.Fatalf("ListArticles returned error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected upsert to keep a single row, got %d", len(articles))
	}
	got := articles[0]
	if got.ID != originalID {
		t.Fatalf("expected id %d preserved across upsert, got %d", originalID, got.ID)
	}
	if got.Title != "Updated title" {
		t.Fatalf("expected refreshed title, got %q", got.Title)
	}
	if !got.IsRead || !got.IsStarred {
		t.Fatalf("expected read/star flags preserved, got read=%v starred=%v", got.IsRead, got.IsStarred)
	}
}

func TestUpsertArticle_SkipsTombstoned(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	feedID := insertTestFeed(t, repo, "https://example.com/feed.xml")

	article := NewArticle{FeedID: feedID, GUID: "guid-1", Title: "Doomed", URL: "https://example.com/a"}
	if _, err := repo.UpsertArticle(ctx, article); err != nil {
		t.Fatalf("UpsertArticle returned error: %v", err)
	}
	articles, _ := repo.ListArticles(ctx)
	if err := repo.DeleteArticle(ctx, articles[0].ID); err != nil {
		t.Fatalf("DeleteArticle returned error: %v", err)
	}

	if _, err := repo.UpsertArticle(ctx, article); err != nil {
		t.Fatalf("re-upsert returned error: %v", err)
	}
	articles, err := repo.ListArticles(ctx)
	if err != nil {
		t.Fatalf("ListArticles returned error: %v", err)
	}
	if len(articles) != 0 {
		t.Fatalf("expected tombstoned article to stay deleted, got %d rows", len(articles))
	}

	// Undelete clears the tombstone so the next refresh restores it.
	removed, err := repo.UndeleteLatest(ctx)
	if err != nil {
		t.Fatalf("UndeleteLatest returned error: %v", err)
	}
	if !removed {
		t.Fatal("expected a tombstone to be removed")
	}
	if _, err := repo.UpsertArticle(ctx, article); err != nil {
		t.Fatalf("post-undelete upsert returned error: %v", err)
	}
	articles, _ = repo.ListArticles(ctx)
	if len(articles) != 1 {
		t.Fatalf("expected article back after undelete, got %d rows", len(articles))
	}
}

func TestSaveSummary_ReplacesInsteadOfDuplicating(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	feedID := insertTestFeed(t, repo, "https://example.com/feed.xml")
	articleID, err := repo.UpsertArticle(ctx, NewArticle{FeedID: feedID, GUID: "g", Title: "A", URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("UpsertArticle returned error: %v", err)
	}

	if err := repo.SaveSummary(ctx, articleID, "first summary", "model-1"); err != nil {
		t.Fatalf("SaveSummary returned error: %v", err)
	}
	if err := repo.SaveSummary(ctx, articleID, "second summary", "model-2"); err != nil {
		t.Fatalf("second SaveSummary returned error: %v", err)
	}

	summary, err := repo.GetSummary(ctx, articleID)
	if err != nil {
		t.Fatalf("GetSummary returned error: %v", err)
	}
	if summary == nil {
		t.Fatal("expected a summary row")
	}
	if summary.Content != "second summary" || summary.ModelVersion != "model-2" {
		t.Fatalf("expected regeneration to overwrite, got %q / %q", summary.Content, summary.ModelVersion)
	}
}

func TestGetSummary_MissingReturnsNil(t *testing.T) {
	repo := newTestRepo(t)
	summary, err := repo.GetSummary(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetSummary returned error: %v", err)
	}
	if summary != nil {
		t.Fatalf("expected nil for missing summary, got %+v", summary)
	}
}

func TestDeleteArticlesOlderThan_SweepsAgedRows(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	feedID := insertTestFeed(t, repo, "https://example.com/feed.xml")

	old := time.Now().UTC().Add(-8 * 24 * time.Hour)
	fresh := time.Now().UTC().Add(-time.Hour)
	oldID, err := repo.UpsertArticle(ctx, NewArticle{FeedID: feedID, GUID: "old", Title: "Old", URL: "https://example.com/old", PublishedAt: &old})
	if err != nil {
		t.Fatalf("UpsertArticle returned error: %v", err)
	}
	if _, err := repo.UpsertArticle(ctx, NewArticle{FeedID: feedID, GUID: "new", Title: "New", URL: "https://example.com/new", PublishedAt: &fresh}); err != nil {
		t.Fatalf("UpsertArticle returned error: %v", err)
	}
	// The sweep ignores read/starred state, and takes dependent rows with it.
	if err := repo.ToggleArticleStarred(ctx, oldID); err != nil {
		t.Fatalf("ToggleArticleStarred returned error: %v", err)
	}
	if err := repo.SaveSummary(ctx, oldID, "aged", "model"); err != nil {
		t.Fatalf("SaveSummary returned error: %v", err)
	}

	removed, err := repo.DeleteArticlesOlderThan(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteArticlesOlderThan returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 swept article, got %d", removed)
	}

	articles, err := repo.ListArticles(ctx)
	if err != nil {
		t.Fatalf("ListArticles returned error: %v", err)
	}
	cutoff := time.Now().UTC().Add(-7 * 24 * time.Hour)
	for _, a := range articles {
		age := a.FetchedAt
		if a.PublishedAt != nil {
			age = *a.PublishedAt
		}
		if age.Before(cutoff) {
			t.Fatalf("article %q survived the sweep with age %v", a.GUID, age)
		}
	}
	summary, err := repo.GetSummary(ctx, oldID)
	if err != nil {
		t.Fatalf("GetSummary returned error: %v", err)
	}
	if summary != nil {
		t.Fatal("expected the swept article's summary to be removed")
	}
}

func TestFeedExistsByURL(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	insertTestFeed(t, repo, "https://example.com/feed.xml")

	exists, err := repo.FeedExistsByURL(ctx, "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("FeedExistsByURL returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected feed to exist")
	}
	exists, err = repo.FeedExistsByURL(ctx, "https://other.example.com/feed.xml")
	if err != nil {
		t.Fatalf("FeedExistsByURL returned error: %v", err)
	}
	if exists {
		t.Fatal("expected unknown url to be absent")
	}
}

func TestMarkBookmarked_IsTheOnlySavedSignal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	feedID := insertTestFeed(t, repo, "https://example.com/feed.xml")
	articleID, err := repo.UpsertArticle(ctx, NewArticle{FeedID: feedID, GUID: "g", Title: "A", URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("UpsertArticle returned error: %v", err)
	}

	saved, err := repo.IsBookmarked(ctx, articleID)
	if err != nil {
		t.Fatalf("IsBookmarked returned error: %v", err)
	}
	if saved {
		t.Fatal("expected article to start unbookmarked")
	}

	if err := repo.MarkBookmarked(ctx, articleID, 991, []string{"rss", "go"}); err != nil {
		t.Fatalf("MarkBookmarked returned error: %v", err)
	}
	saved, err = repo.IsBookmarked(ctx, articleID)
	if err != nil {
		t.Fatalf("IsBookmarked returned error: %v", err)
	}
	if !saved {
		t.Fatal("expected bookmark record to exist")
	}
}

func TestUpdateFeedLastFetched(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	feedID := insertTestFeed(t, repo, "https://example.com/feed.xml")

	feeds, err := repo.ListFeeds(ctx)
	if err != nil {
		t.Fatalf("ListFeeds returned error: %v", err)
	}
	if feeds[0].LastFetched != nil {
		t.Fatal("expected last_fetched to start unset")
	}

	if err := repo.UpdateFeedLastFetched(ctx, feedID); err != nil {
		t.Fatalf("UpdateFeedLastFetched returned error: %v", err)
	}
	feeds, err = repo.ListFeeds(ctx)
	if err != nil {
		t.Fatalf("ListFeeds returned error: %v", err)
	}
	if feeds[0].LastFetched == nil {
		t.Fatal("expected last_fetched to be set after update")
	}
}
