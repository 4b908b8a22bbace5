package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS feeds (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  url TEXT NOT NULL UNIQUE,
  site_url TEXT,
  description TEXT,
  last_fetched TEXT,
  created_at TEXT NOT NULL DEFAULT (datetime('now')),
  updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS articles (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
  guid TEXT NOT NULL,
  title TEXT NOT NULL,
  url TEXT NOT NULL,
  author TEXT,
  content TEXT,
  content_text TEXT,
  published_at TEXT,
  fetched_at TEXT NOT NULL DEFAULT (datetime('now')),
  is_read INTEGER NOT NULL DEFAULT 0,
  is_starred INTEGER NOT NULL DEFAULT 0,
  UNIQUE(feed_id, guid)
);

CREATE INDEX IF NOT EXISTS idx_articles_feed_id ON articles(feed_id);
CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at DESC);

CREATE TABLE IF NOT EXISTS summaries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  article_id INTEGER NOT NULL UNIQUE REFERENCES articles(id) ON DELETE CASCADE,
  content TEXT NOT NULL,
  model_version TEXT NOT NULL,
  generated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS saved_bookmarks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  article_id INTEGER NOT NULL UNIQUE REFERENCES articles(id) ON DELETE CASCADE,
  external_id INTEGER NOT NULL,
  tags TEXT,
  saved_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS deleted_articles (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
  guid TEXT NOT NULL,
  deleted_at TEXT NOT NULL DEFAULT (datetime('now')),
  UNIQUE(feed_id, guid)
);
`

type Repository struct {
	db *sql.DB
}

func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Feed operations

func (r *Repository) InsertFeed(ctx context.Context, feed NewFeed) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO feeds (title, url, site_url, description)
VALUES (?, ?, ?, ?)
`, feed.Title, feed.URL, nullable(feed.SiteURL), nullable(feed.Description))
	if err != nil {
		return 0, fmt.Errorf("insert feed %q: %w", feed.URL, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("feed insert id: %w", err)
	}
	return id, nil
}

func (r *Repository) FeedExistsByURL(ctx context.Context, url string) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feeds WHERE url = ?`, url).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check feed url: %w", err)
	}
	return count > 0, nil
}

func (r *Repository) ListFeeds(ctx context.Context) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, title, url, site_url, description, last_fetched, created_at, updated_at
FROM feeds
ORDER BY title
`)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer rows.Close()

	feeds := make([]Feed, 0, 16)
	for rows.Next() {
		var (
			feed                 Feed
			siteURL, description sql.NullString
			lastFetched          sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&feed.ID, &feed.Title, &feed.URL, &siteURL, &description, &lastFetched, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		feed.SiteURL = siteURL.String
		feed.Description = description.String
		if lastFetched.Valid {
			if t, ok := parseStoredTime(lastFetched.String); ok {
				feed.LastFetched = &t
			}
		}
		feed.CreatedAt = parseStoredTimeOrNow(createdAt)
		feed.UpdatedAt = parseStoredTimeOrNow(updatedAt)
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return feeds, nil
}

func (r *Repository) UpdateFeedLastFetched(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE feeds SET last_fetched = datetime('now'), updated_at = datetime('now') WHERE id = ?
`, id)
	if err != nil {
		return fmt.Errorf("update feed last_fetched: %w", err)
	}
	return nil
}

func (r *Repository) DeleteFeed(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`DELETE FROM summaries WHERE article_id IN (SELECT id FROM articles WHERE feed_id = ?)`,
		`DELETE FROM saved_bookmarks WHERE article_id IN (SELECT id FROM articles WHERE feed_id = ?)`,
		`DELETE FROM articles WHERE feed_id = ?`,
		`DELETE FROM deleted_articles WHERE feed_id = ?`,
		`DELETE FROM feeds WHERE id = ?`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete feed %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Article operations

// UpsertArticle merges by (feed_id, guid), preserving id and the read/star
// flags across re-fetch. Tombstoned articles are skipped so a user delete
// survives the next refresh; skipped upserts report id 0.
func (r *Repository) UpsertArticle(ctx context.Context, article NewArticle) (int64, error) {
	var tombstoned int64
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM deleted_articles WHERE feed_id = ? AND guid = ?
`, article.FeedID, article.GUID).Scan(&tombstoned)
	if err != nil {
		return 0, fmt.Errorf("check tombstone: %w", err)
	}
	if tombstoned > 0 {
		return 0, nil
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO articles (feed_id, guid, title, url, author, content, content_text, published_at, fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(feed_id, guid) DO UPDATE SET
  title = excluded.title,
  url = excluded.url,
  author = excluded.author,
  content = excluded.content,
  content_text = excluded.content_text,
  published_at = excluded.published_at
`,
		article.FeedID,
		article.GUID,
		article.Title,
		article.URL,
		nullable(article.Author),
		nullable(article.Content),
		nullable(article.ContentText),
		nullableTime(article.PublishedAt),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert article %q: %w", article.GUID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("article upsert id: %w", err)
	}
	return id, nil
}

func (r *Repository) ListArticles(ctx context.Context) ([]Article, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT a.id, a.feed_id, a.guid, a.title, a.url, a.author, a.content,
       a.content_text, a.published_at, a.fetched_at, a.is_read, a.is_starred,
       f.title AS feed_title
FROM articles a
JOIN feeds f ON a.feed_id = f.id
ORDER BY a.published_at DESC NULLS LAST, a.fetched_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	articles := make([]Article, 0, 64)
	for rows.Next() {
		var (
			a                     Article
			author, content, text sql.NullString
			publishedAt           sql.NullString
			fetchedAt             string
			isRead, isStarred     int64
		)
		if err := rows.Scan(&a.ID, &a.FeedID, &a.GUID, &a.Title, &a.URL, &author, &content, &text, &publishedAt, &fetchedAt, &isRead, &isStarred, &a.FeedTitle); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.Author = author.String
		a.Content = content.String
		a.ContentText = text.String
		if publishedAt.Valid {
			if t, ok := parseStoredTime(publishedAt.String); ok {
				a.PublishedAt = &t
			}
		}
		a.FetchedAt = parseStoredTimeOrNow(fetchedAt)
		a.IsRead = isRead != 0
		a.IsStarred = isStarred != 0
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

func (r *Repository) MarkArticleRead(ctx context.Context, id int64, isRead bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE articles SET is_read = ? WHERE id = ?`, boolToInt(isRead), id)
	if err != nil {
		return fmt.Errorf("mark article read: %w", err)
	}
	return nil
}

func (r *Repository) ToggleArticleStarred(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE articles SET is_starred = NOT is_starred WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("toggle article starred: %w", err)
	}
	return nil
}

// DeleteArticle removes the article with its summary and bookmark record,
// and tombstones the (feed_id, guid) so refresh does not resurrect it.
func (r *Repository) DeleteArticle(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO deleted_articles (feed_id, guid)
SELECT feed_id, guid FROM articles WHERE id = ?
`, id); err != nil {
		return fmt.Errorf("tombstone article %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM summaries WHERE article_id = ?`, id); err != nil {
		return fmt.Errorf("delete summary for article %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM saved_bookmarks WHERE article_id = ?`, id); err != nil {
		return fmt.Errorf("delete bookmark for article %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete article %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UndeleteLatest clears the newest tombstone; the article itself returns on
// the next refresh of its feed. Reports whether a tombstone was removed.
func (r *Repository) UndeleteLatest(ctx context.Context) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM deleted_articles
WHERE id = (SELECT id FROM deleted_articles ORDER BY deleted_at DESC, id DESC LIMIT 1)
`)
	if err != nil {
		return false, fmt.Errorf("undelete article: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("undelete rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteArticlesOlderThan is the retention sweep: it drops every article
// whose age exceeds maxAge, regardless of read/starred state. Age is the
// published time, or the fetch time when the feed supplied none.
func (r *Repository) DeleteArticlesOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const aged = `SELECT id FROM articles WHERE COALESCE(published_at, fetched_at) < ?`
	if _, err := tx.ExecContext(ctx, `DELETE FROM summaries WHERE article_id IN (`+aged+`)`, cutoff); err != nil {
		return 0, fmt.Errorf("sweep summaries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM saved_bookmarks WHERE article_id IN (`+aged+`)`, cutoff); err != nil {
		return 0, fmt.Errorf("sweep bookmarks: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE COALESCE(published_at, fetched_at) < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep articles: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return removed, nil
}

// Summary operations

func (r *Repository) GetSummary(ctx context.Context, articleID int64) (*Summary, error) {
	var (
		s           Summary
		generatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
SELECT id, article_id, content, model_version, generated_at
FROM summaries WHERE article_id = ?
`, articleID).Scan(&s.ID, &s.ArticleID, &s.Content, &s.ModelVersion, &generatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	s.GeneratedAt = parseStoredTimeOrNow(generatedAt)
	return &s, nil
}

func (r *Repository) SaveSummary(ctx context.Context, articleID int64, content, modelVersion string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO summaries (article_id, content, model_version)
VALUES (?, ?, ?)
ON CONFLICT(article_id) DO UPDATE SET
  content = excluded.content,
  model_version = excluded.model_version,
  generated_at = datetime('now')
`, articleID, content, modelVersion)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// Bookmark tracking

func (r *Repository) MarkBookmarked(ctx context.Context, articleID, externalID int64, tags []string) error {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode bookmark tags: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT OR REPLACE INTO saved_bookmarks (article_id, external_id, tags)
VALUES (?, ?, ?)
`, articleID, externalID, string(tagsJSON))
	if err != nil {
		return fmt.Errorf("mark bookmarked: %w", err)
	}
	return nil
}

func (r *Repository) IsBookmarked(ctx context.Context, articleID int64) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM saved_bookmarks WHERE article_id = ?`, articleID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check bookmark: %w", err)
	}
	return count > 0, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// parseStoredTime accepts both RFC3339 timestamps written by the app and
// the "YYYY-MM-DD HH:MM:SS" form produced by sqlite's datetime('now').
func parseStoredTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func parseStoredTimeOrNow(s string) time.Time {
	if t, ok := parseStoredTime(s); ok {
		return t
	}
	return time.Now().UTC()
}
