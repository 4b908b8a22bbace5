package feed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"speedy-reader/internal/storage"
)

// ErrNoFeedFound reports that discovery could not locate a feed document at
// or behind the given URL.
var ErrNoFeedFound = errors.New("no feed found at this URL")

// The rel-before-type pattern wins over the type-only pattern; attribute
// order inside the tag is part of the precedence contract.
var (
	reLinkRelFirst  = regexp.MustCompile(`<link[^>]*rel=["']alternate["'][^>]*type=["']application/(?:rss|atom)\+xml["'][^>]*href=["']([^"']+)["']`)
	reLinkTypeFirst = regexp.MustCompile(`<link[^>]*type=["']application/(?:rss|atom)\+xml["'][^>]*href=["']([^"']+)["']`)
)

// NormalizeURL turns user input into an absolute URL, defaulting to https
// when no scheme was given.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		return "https://" + raw
	}
	return raw
}

// Discover resolves a user-supplied URL to a feed. A body that parses as a
// feed document wins outright; otherwise an HTML body is scanned for
// auto-discovery link tags and the first match (rel-first precedence) is
// fetched and parsed. Every failure collapses to ErrNoFeedFound with no
// partial feed created.
func (f *Fetcher) Discover(ctx context.Context, rawURL string) (storage.NewFeed, error) {
	target := NormalizeURL(rawURL)
	if target == "" {
		return storage.NewFeed{}, ErrNoFeedFound
	}

	page, err := f.get(ctx, target)
	if err != nil {
		return storage.NewFeed{}, fmt.Errorf("%w: %v", ErrNoFeedFound, err)
	}

	if parsed, err := f.parser.ParseString(page.body); err == nil {
		return feedFromDocument(parsed.Title, parsed.Description, parsed.Links, page.finalURL), nil
	}

	if !looksLikeHTML(page.contentType, page.body) {
		return storage.NewFeed{}, ErrNoFeedFound
	}

	href, ok := findFeedLink(page.body)
	if !ok {
		return storage.NewFeed{}, ErrNoFeedFound
	}
	feedURL := resolveRef(href, page.finalURL)

	feedPage, err := f.get(ctx, feedURL)
	if err != nil {
		return storage.NewFeed{}, fmt.Errorf("%w: %v", ErrNoFeedFound, err)
	}
	parsed, err := f.parser.ParseString(feedPage.body)
	if err != nil {
		return storage.NewFeed{}, ErrNoFeedFound
	}
	return feedFromDocument(parsed.Title, parsed.Description, parsed.Links, feedURL), nil
}

func feedFromDocument(title, description string, links []string, feedURL string) storage.NewFeed {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled Feed"
	}
	siteURL := ""
	if len(links) > 0 {
		siteURL = links[0]
	}
	return storage.NewFeed{
		Title:       title,
		URL:         feedURL,
		SiteURL:     siteURL,
		Description: description,
	}
}

func looksLikeHTML(contentType, body string) bool {
	if strings.Contains(contentType, "html") {
		return true
	}
	trimmed := strings.TrimSpace(body)
	return strings.HasPrefix(trimmed, "<!") || strings.HasPrefix(trimmed, "<html")
}

func findFeedLink(html string) (string, bool) {
	if m := reLinkRelFirst.FindStringSubmatch(html); m != nil {
		return m[1], true
	}
	if m := reLinkTypeFirst.FindStringSubmatch(html); m != nil {
		return m[1], true
	}
	return "", false
}

func resolveRef(href, baseURL string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
