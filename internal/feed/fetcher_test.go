package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"speedy-reader/internal/storage"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <link>https://example.com</link>
    <description>Sample posts</description>
    <item>
      <guid>post-1</guid>
      <title>First Post</title>
      <link>https://example.com/posts/1</link>
      <description><![CDATA[<p>Hello <b>world</b></p>]]></description>
      <pubDate>Fri, 28 Aug 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>No GUID Post</title>
      <link>https://example.com/posts/2</link>
      <description>Plain text body</description>
    </item>
  </channel>
</rss>`

func TestFetchFeed_ParsesArticles(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleRSS)
	}))
	defer ts.Close()

	f := NewFetcherWithClient(ts.Client())
	articles, err := f.FetchFeed(context.Background(), 7, ts.URL)
	if err != nil {
		t.Fatalf("FetchFeed returned error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}

	first := articles[0]
	if first.FeedID != 7 {
		t.Fatalf("expected feed id 7, got %d", first.FeedID)
	}
	if first.GUID != "post-1" {
		t.Fatalf("unexpected guid: %q", first.GUID)
	}
	if first.ContentText != "Hello world" {
		t.Fatalf("expected html flattened to text, got %q", first.ContentText)
	}
	if first.PublishedAt == nil {
		t.Fatal("expected published date to be parsed")
	}

	// Items without a guid fall back to their link for deduplication.
	if articles[1].GUID != "https://example.com/posts/2" {
		t.Fatalf("expected link used as guid, got %q", articles[1].GUID)
	}
}

func TestFetchFeed_HTTPErrorFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	f := NewFetcherWithClient(ts.Client())
	if _, err := f.FetchFeed(context.Background(), 1, ts.URL); err == nil {
		t.Fatal("expected fetch error for 500 response")
	}
}

func TestRefreshAll_IsolatesFailingFeed(t *testing.T) {
	var failing string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == failing {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleRSS)
	}))
	defer ts.Close()
	failing = "/feeds/3"

	feeds := make([]storage.Feed, 0, 8)
	for i := 1; i <= 8; i++ {
		feeds = append(feeds, storage.Feed{
			ID:  int64(i),
			URL: fmt.Sprintf("%s/feeds/%d", ts.URL, i),
		})
	}

	f := NewFetcherWithClient(ts.Client())
	results := f.RefreshAll(context.Background(), feeds)

	if len(results) != 7 {
		t.Fatalf("expected 7 successful feeds, got %d", len(results))
	}
	for _, res := range results {
		if res.FeedID == 3 {
			t.Fatal("failing feed must be excluded from results")
		}
		if len(res.Articles) == 0 {
			t.Fatalf("expected articles for feed %d", res.FeedID)
		}
	}
}

func TestRefreshAll_EmptyFeedList(t *testing.T) {
	f := NewFetcher()
	if results := f.RefreshAll(context.Background(), nil); len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}
