package storage

import "time"

// Feed is a subscribed source identified by URL.
type Feed struct {
	ID          int64
	Title       string
	URL         string
	SiteURL     string
	Description string
	LastFetched *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewFeed carries the fields needed to create a Feed.
type NewFeed struct {
	Title       string
	URL         string
	SiteURL     string
	Description string
}

// Article is one syndicated item, deduplicated by (feed_id, guid).
type Article struct {
	ID          int64
	FeedID      int64
	GUID        string
	Title       string
	URL         string
	Author      string
	Content     string
	ContentText string
	PublishedAt *time.Time
	FetchedAt   time.Time
	IsRead      bool
	IsStarred   bool

	FeedTitle string
}

// NewArticle carries the fields a feed fetch produces for upsert.
type NewArticle struct {
	FeedID      int64
	GUID        string
	Title       string
	URL         string
	Author      string
	Content     string
	ContentText string
	PublishedAt *time.Time
}

// Summary is the cached AI condensation of an Article, at most one per article.
type Summary struct {
	ID           int64
	ArticleID    int64
	Content      string
	ModelVersion string
	GeneratedAt  time.Time
}
