// Package content fetches full article pages and extracts their readable
// text for summarization. Everything here is best effort: any failure falls
// back to the feed-provided content rather than surfacing an error.
package content

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const (
	firefoxUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	requestTimeout   = 30 * time.Second

	// Extractions shorter than this are treated as boilerplate (paywall
	// stubs, cookie banners) and discarded.
	minExtractedChars = 200
)

type Fetcher struct {
	client     *http.Client
	cookiePath string
}

func NewFetcher() *Fetcher {
	f := &Fetcher{client: &http.Client{Timeout: requestTimeout}}
	home, err := os.UserHomeDir()
	if err != nil {
		return f
	}
	path, err := firefoxCookiePath(home)
	if err != nil {
		slog.Debug("no browser cookies available", "error", err)
		return f
	}
	f.cookiePath = path
	return f
}

func newFetcherWithClient(client *http.Client, cookiePath string) *Fetcher {
	return &Fetcher{client: client, cookiePath: cookiePath}
}

// Resolve fetches the article page and returns its readable text, or "" when
// the page cannot be fetched or the extraction is too thin to be useful.
func (f *Fetcher) Resolve(ctx context.Context, articleURL string) string {
	parsed, err := url.Parse(articleURL)
	if err != nil || parsed.Host == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", firefoxUserAgent)
	if header := f.cookiesFor(parsed.Host); header != "" {
		req.Header.Set("Cookie", header)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		slog.Debug("content fetch failed", "url", articleURL, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Debug("content fetch rejected", "url", articleURL, "status", resp.StatusCode)
		return ""
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		slog.Debug("readability extraction failed", "url", articleURL, "error", err)
		return ""
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) <= minExtractedChars {
		return ""
	}
	return text
}

func (f *Fetcher) cookiesFor(host string) string {
	if f.cookiePath == "" {
		return ""
	}
	cookies, err := loadCookies(f.cookiePath, host)
	if err != nil {
		slog.Debug("cookie load failed", "host", host, "error", err)
		return ""
	}
	return cookieHeader(cookies)
}
