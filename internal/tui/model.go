// Package tui implements the interactive reader: a bubbletea model over the
// article store, the refresh service, and the summarization and bookmark
// backends. All I/O runs in commands; completions arrive as messages and are
// checked against the current selection before they are applied.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"speedy-reader/internal/raindrop"
	"speedy-reader/internal/storage"
	"speedy-reader/internal/tui/keymap"
	"speedy-reader/internal/tui/platform"
	"speedy-reader/internal/tui/theme"
)

type Service interface {
	RefreshAll(ctx context.Context) ([]storage.Article, error)
	ListArticles(ctx context.Context) ([]storage.Article, error)
	AddFeed(ctx context.Context, rawURL string) (storage.NewFeed, error)
	ImportOPML(ctx context.Context, path string) (int, error)
	ExportOPML(ctx context.Context, path string) error
}

type Store interface {
	MarkArticleRead(ctx context.Context, id int64, isRead bool) error
	ToggleArticleStarred(ctx context.Context, id int64) error
	DeleteArticle(ctx context.Context, id int64) error
	DeleteFeed(ctx context.Context, id int64) error
	UndeleteLatest(ctx context.Context) (bool, error)
	GetSummary(ctx context.Context, articleID int64) (*storage.Summary, error)
	SaveSummary(ctx context.Context, articleID int64, content, modelVersion string) error
	MarkBookmarked(ctx context.Context, articleID, externalID int64, tags []string) error
	IsBookmarked(ctx context.Context, articleID int64) (bool, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, title, content string) (string, error)
	ModelVersion() string
}

type Bookmarker interface {
	Save(ctx context.Context, b raindrop.Bookmark) (int64, error)
}

type Resolver interface {
	Resolve(ctx context.Context, articleURL string) string
}

type SummaryStatus int

const (
	StatusNotGenerated SummaryStatus = iota
	StatusGenerating
	StatusGenerated
	StatusFailed
	StatusNoAPIKey
)

type Filter int

const (
	FilterUnread Filter = iota
	FilterStarred
	FilterAll
)

func (f Filter) String() string {
	switch f {
	case FilterUnread:
		return "unread"
	case FilterStarred:
		return "starred"
	default:
		return "all"
	}
}

const storeTimeout = 5 * time.Second

type Options struct {
	Service     Service
	Store       Store
	Summarizer  Summarizer
	Bookmarker  Bookmarker
	Resolver    Resolver
	DefaultTags []string

	// RefreshInterval > 0 enables periodic background refreshes.
	RefreshInterval time.Duration
}

type Model struct {
	service     Service
	store       Store
	summarizer  Summarizer
	bookmarker  Bookmarker
	resolver    Resolver
	defaultTags []string

	articles []storage.Article
	cursor   int
	filter   Filter

	mode  keymap.Mode
	input string

	// Summary lifecycle for the selected article. generation tags each
	// submitted job; completions carrying an older tag are ignored.
	summary          string
	summaryStatus    SummaryStatus
	generation       int
	pendingArticleID int64

	// bookmarkArticleID pins the article being tagged while TagInput is open.
	bookmarkArticleID int64
	bookmarkSaved     bool

	refreshing      bool
	refreshInterval time.Duration

	// readGeneration keys the 2s dwell timer to the current selection.
	readGeneration int

	status string
	err    error

	width  int
	height int

	theme theme.Theme

	openURLFn func(string) error
	emailFn   func(subject, body string) error
}

func NewModel(opts Options, articles []storage.Article) Model {
	return Model{
		service:         opts.Service,
		store:           opts.Store,
		summarizer:      opts.Summarizer,
		bookmarker:      opts.Bookmarker,
		resolver:        opts.Resolver,
		defaultTags:     opts.DefaultTags,
		articles:        append([]storage.Article(nil), articles...),
		filter:          FilterUnread,
		refreshing:      opts.Service != nil,
		refreshInterval: opts.RefreshInterval,
		theme:           theme.Default(),
		openURLFn:       platform.OpenURLInBrowser,
		emailFn:         platform.ComposeEmail,
	}
}

func (m Model) Init() tea.Cmd {
	if m.service == nil {
		return nil
	}
	if m.refreshInterval > 0 {
		return tea.Batch(refreshCmd(m.service), autoRefreshCmd(m.refreshInterval))
	}
	return refreshCmd(m.service)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg.String())
	case autoRefreshMsg:
		if m.refreshInterval <= 0 {
			return m, nil
		}
		rearm := autoRefreshCmd(m.refreshInterval)
		if m.service == nil || m.refreshing {
			return m, rearm
		}
		m.refreshing = true
		return m, tea.Batch(refreshCmd(m.service), rearm)
	case refreshDoneMsg:
		return m.applyRefresh(msg)
	case summaryDoneMsg:
		return m.applySummary(msg)
	case readTimerMsg:
		return m.applyReadTimer(msg)
	case bookmarkDoneMsg:
		return m.applyBookmark(msg)
	case addFeedDoneMsg:
		return m.applyAddFeed(msg)
	case importDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("Imported %d feeds", msg.added)
		m.articles = msg.articles
		m.clampCursor()
		return m, nil
	case exportDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.status = "Exported subscriptions to " + msg.path
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch keymap.Map(m.mode, key) {
	case keymap.ActionQuit:
		return m, tea.Quit
	case keymap.ActionHideHelp:
		m.mode = keymap.ModeNormal
		return m, nil
	case keymap.ActionShowHelp:
		m.mode = keymap.ModeHelp
		return m, nil
	case keymap.ActionMoveDown:
		return m.moveCursor(1)
	case keymap.ActionMoveUp:
		return m.moveCursor(-1)
	case keymap.ActionMoveToTop:
		return m.moveCursorTo(0)
	case keymap.ActionMoveToBottom:
		return m.moveCursorTo(len(m.visibleIndices()) - 1)
	case keymap.ActionSelectArticle:
		return m.selectArticle()
	case keymap.ActionRefreshFeeds:
		return m.startRefresh()
	case keymap.ActionToggleRead:
		return m.toggleRead()
	case keymap.ActionToggleStarred:
		return m.toggleStarred()
	case keymap.ActionOpenInBrowser:
		return m.openCurrent()
	case keymap.ActionEmailArticle:
		return m.emailCurrent()
	case keymap.ActionSaveBookmark:
		return m.startBookmark()
	case keymap.ActionCycleFilter:
		return m.cycleFilter()
	case keymap.ActionRegenerateSummary:
		return m.regenerateSummary()
	case keymap.ActionDeleteArticle:
		return m.deleteArticle()
	case keymap.ActionDeleteFeed:
		return m.deleteFeed()
	case keymap.ActionUndeleteArticle:
		return m.undeleteArticle()
	case keymap.ActionAddFeed:
		m.mode = keymap.ModeFeedInput
		m.input = ""
		return m, nil
	case keymap.ActionImportOpml:
		m.mode = keymap.ModeOpmlImportInput
		m.input = ""
		return m, nil
	case keymap.ActionExportOpml:
		m.mode = keymap.ModeOpmlExportInput
		m.input = ""
		return m, nil
	case keymap.ActionInputChar:
		m.input += key
		return m, nil
	case keymap.ActionInputBackspace:
		if m.input != "" {
			runes := []rune(m.input)
			m.input = string(runes[:len(runes)-1])
		}
		return m, nil
	case keymap.ActionInputCancel:
		m.mode = keymap.ModeNormal
		m.input = ""
		m.bookmarkArticleID = 0
		return m, nil
	case keymap.ActionInputConfirm:
		return m.confirmInput()
	}
	return m, nil
}

// visibleIndices maps the current filter to positions in m.articles.
func (m Model) visibleIndices() []int {
	out := make([]int, 0, len(m.articles))
	for i, a := range m.articles {
		switch m.filter {
		case FilterUnread:
			if !a.IsRead {
				out = append(out, i)
			}
		case FilterStarred:
			if a.IsStarred {
				out = append(out, i)
			}
		default:
			out = append(out, i)
		}
	}
	return out
}

func (m Model) currentArticle() (storage.Article, bool) {
	visible := m.visibleIndices()
	if len(visible) == 0 || m.cursor >= len(visible) {
		return storage.Article{}, false
	}
	return m.articles[visible[m.cursor]], true
}

func (m *Model) clampCursor() {
	count := len(m.visibleIndices())
	if m.cursor >= count {
		m.cursor = count - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) moveCursor(delta int) (tea.Model, tea.Cmd) {
	return m.moveCursorTo(m.cursor + delta)
}

func (m Model) moveCursorTo(pos int) (tea.Model, tea.Cmd) {
	count := len(m.visibleIndices())
	if count == 0 {
		return m, nil
	}
	if pos < 0 {
		pos = 0
	}
	if pos >= count {
		pos = count - 1
	}
	if pos == m.cursor {
		return m, nil
	}
	m.cursor = pos
	return m, m.resetSelection()
}

// resetSelection clears the per-article view state and re-arms the dwell
// timer for the newly selected article.
func (m *Model) resetSelection() tea.Cmd {
	m.summary = ""
	m.summaryStatus = StatusNotGenerated
	m.pendingArticleID = 0
	m.bookmarkSaved = false
	m.status = ""
	m.err = nil

	article, ok := m.currentArticle()
	if !ok {
		return nil
	}
	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		saved, err := m.store.IsBookmarked(ctx, article.ID)
		cancel()
		if err == nil {
			m.bookmarkSaved = saved
		}
	}
	m.readGeneration++
	return readTimerCmd(m.readGeneration, article.ID)
}

func (m Model) applyReadTimer(msg readTimerMsg) (tea.Model, tea.Cmd) {
	if msg.generation != m.readGeneration {
		return m, nil
	}
	article, ok := m.currentArticle()
	if !ok || article.ID != msg.articleID || article.IsRead {
		return m, nil
	}
	m.markRead(article.ID)
	return m, nil
}

// markRead flips the flag in the store and in memory. A store failure is not
// reverted; the next refresh reconciles.
func (m *Model) markRead(articleID int64) {
	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := m.store.MarkArticleRead(ctx, articleID, true); err != nil {
			m.err = err
		}
		cancel()
	}
	for i := range m.articles {
		if m.articles[i].ID == articleID {
			m.articles[i].IsRead = true
			return
		}
	}
}

func (m Model) selectArticle() (tea.Model, tea.Cmd) {
	article, ok := m.currentArticle()
	if !ok {
		return m, nil
	}
	m.markRead(article.ID)
	return m.submitSummary(article)
}

// submitSummary runs the cache-first gate and dispatches a summarization job
// for the article when needed.
func (m Model) submitSummary(article storage.Article) (tea.Model, tea.Cmd) {
	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		cached, err := m.store.GetSummary(ctx, article.ID)
		cancel()
		if err == nil && cached != nil {
			m.summary = cached.Content
			m.summaryStatus = StatusGenerated
			m.pendingArticleID = 0
			return m, nil
		}
	}

	if m.summarizer == nil {
		m.summaryStatus = StatusNoAPIKey
		return m, nil
	}

	m.summary = ""
	m.summaryStatus = StatusGenerating
	m.generation++
	m.pendingArticleID = article.ID
	return m, summarizeCmd(m.summarizer, m.resolver, m.generation, article)
}

func (m Model) applySummary(msg summaryDoneMsg) (tea.Model, tea.Cmd) {
	// Completions from superseded jobs are ignored outright.
	if msg.generation != m.generation {
		return m, nil
	}
	if msg.articleID != m.pendingArticleID || !m.articleInList(msg.articleID) {
		m.summaryStatus = StatusNotGenerated
		m.pendingArticleID = 0
		return m, nil
	}

	m.pendingArticleID = 0
	if msg.err != nil {
		m.summaryStatus = StatusFailed
		m.err = msg.err
		return m, nil
	}

	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := m.store.SaveSummary(ctx, msg.articleID, msg.text, msg.model); err != nil {
			m.err = fmt.Errorf("save summary: %w", err)
		}
		cancel()
	}
	m.summary = msg.text
	m.summaryStatus = StatusGenerated
	return m, nil
}

func (m Model) articleInList(id int64) bool {
	for _, a := range m.articles {
		if a.ID == id {
			return true
		}
	}
	return false
}

func (m Model) regenerateSummary() (tea.Model, tea.Cmd) {
	article, ok := m.currentArticle()
	if !ok {
		return m, nil
	}
	if m.summarizer == nil {
		m.summaryStatus = StatusNoAPIKey
		return m, nil
	}

	m.summary = ""
	m.summaryStatus = StatusGenerating
	m.generation++
	m.pendingArticleID = article.ID
	return m, summarizeCmd(m.summarizer, m.resolver, m.generation, article)
}

func (m Model) startRefresh() (tea.Model, tea.Cmd) {
	if m.service == nil || m.refreshing {
		return m, nil
	}
	m.refreshing = true
	m.status = ""
	m.err = nil
	return m, refreshCmd(m.service)
}

func (m Model) applyRefresh(msg refreshDoneMsg) (tea.Model, tea.Cmd) {
	m.refreshing = false
	if msg.err != nil {
		m.err = msg.err
		m.status = ""
		return m, nil
	}
	m.err = nil
	m.articles = msg.articles
	m.clampCursor()
	m.status = fmt.Sprintf("Refreshed: %d articles", len(msg.articles))
	return m, nil
}

func (m Model) toggleRead() (tea.Model, tea.Cmd) {
	article, ok := m.currentArticle()
	if !ok {
		return m, nil
	}
	next := !article.IsRead
	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err := m.store.MarkArticleRead(ctx, article.ID, next)
		cancel()
		if err != nil {
			m.err = err
			return m, nil
		}
	}
	for i := range m.articles {
		if m.articles[i].ID == article.ID {
			m.articles[i].IsRead = next
			break
		}
	}
	m.clampCursor()
	return m, nil
}

func (m Model) toggleStarred() (tea.Model, tea.Cmd) {
	article, ok := m.currentArticle()
	if !ok {
		return m, nil
	}
	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err := m.store.ToggleArticleStarred(ctx, article.ID)
		cancel()
		if err != nil {
			m.err = err
			return m, nil
		}
	}
	for i := range m.articles {
		if m.articles[i].ID == article.ID {
			m.articles[i].IsStarred = !m.articles[i].IsStarred
			break
		}
	}
	m.clampCursor()
	return m, nil
}

func (m Model) cycleFilter() (tea.Model, tea.Cmd) {
	switch m.filter {
	case FilterUnread:
		m.filter = FilterStarred
	case FilterStarred:
		m.filter = FilterAll
	default:
		m.filter = FilterUnread
	}
	m.cursor = 0
	cmd := m.resetSelection()
	m.status = "Filter: " + m.filter.String()
	return m, cmd
}

func (m Model) openCurrent() (tea.Model, tea.Cmd) {
	article, ok := m.currentArticle()
	if !ok {
		return m, nil
	}
	validURL, err := platform.ValidateArticleURL(article.URL)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	if m.openURLFn != nil {
		if err := m.openURLFn(validURL); err != nil {
			m.status = "Could not open browser"
			return m, nil
		}
	}
	m.status = "Opened in browser"
	return m, nil
}

func (m Model) emailCurrent() (tea.Model, tea.Cmd) {
	article, ok := m.currentArticle()
	if !ok {
		return m, nil
	}
	body := article.URL
	if m.summary != "" {
		body = article.URL + "\n\n" + m.summary
	}
	if m.emailFn != nil {
		if err := m.emailFn(article.Title, body); err != nil {
			m.status = "Could not open mail client"
			return m, nil
		}
	}
	m.status = "Opened mail client"
	return m, nil
}

func (m Model) startBookmark() (tea.Model, tea.Cmd) {
	article, ok := m.currentArticle()
	if !ok {
		return m, nil
	}
	if m.bookmarker == nil {
		m.status = "Bookmark token not configured"
		return m, nil
	}
	if m.bookmarkSaved {
		m.status = "Already bookmarked"
		return m, nil
	}
	m.mode = keymap.ModeTagInput
	m.input = strings.Join(m.defaultTags, ", ")
	m.bookmarkArticleID = article.ID
	return m, nil
}

func (m Model) applyBookmark(msg bookmarkDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.err = msg.err
		m.status = ""
		return m, nil
	}
	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := m.store.MarkBookmarked(ctx, msg.articleID, msg.externalID, msg.tags); err != nil {
			m.err = err
		}
		cancel()
	}
	if article, ok := m.currentArticle(); ok && article.ID == msg.articleID {
		m.bookmarkSaved = true
	}
	m.status = "Bookmarked"
	return m, nil
}

func (m Model) applyAddFeed(msg addFeedDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.err = msg.err
		m.status = ""
		return m, nil
	}
	m.err = nil
	m.status = "Subscribed to " + msg.feed.Title
	if m.service == nil || m.refreshing {
		return m, nil
	}
	m.refreshing = true
	return m, refreshCmd(m.service)
}

func (m Model) deleteArticle() (tea.Model, tea.Cmd) {
	article, ok := m.currentArticle()
	if !ok {
		return m, nil
	}
	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err := m.store.DeleteArticle(ctx, article.ID)
		cancel()
		if err != nil {
			m.err = err
			return m, nil
		}
	}
	m.removeArticles(func(a storage.Article) bool { return a.ID == article.ID })
	m.clampCursor()
	m.summary = ""
	m.summaryStatus = StatusNotGenerated
	m.status = "Article deleted (u to undo)"
	return m, nil
}

func (m Model) deleteFeed() (tea.Model, tea.Cmd) {
	article, ok := m.currentArticle()
	if !ok {
		return m, nil
	}
	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err := m.store.DeleteFeed(ctx, article.FeedID)
		cancel()
		if err != nil {
			m.err = err
			return m, nil
		}
	}
	m.removeArticles(func(a storage.Article) bool { return a.FeedID == article.FeedID })
	m.clampCursor()
	m.summary = ""
	m.summaryStatus = StatusNotGenerated
	m.status = "Unsubscribed from " + article.FeedTitle
	return m, nil
}

func (m *Model) removeArticles(match func(storage.Article) bool) {
	kept := m.articles[:0]
	for _, a := range m.articles {
		if !match(a) {
			kept = append(kept, a)
		}
	}
	m.articles = kept
}

func (m Model) undeleteArticle() (tea.Model, tea.Cmd) {
	if m.store == nil {
		return m, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	restored, err := m.store.UndeleteLatest(ctx)
	cancel()
	if err != nil {
		m.err = err
		return m, nil
	}
	if !restored {
		m.status = "Nothing to undelete"
		return m, nil
	}
	m.status = "Article will return on next refresh"
	return m, nil
}

func (m Model) confirmInput() (tea.Model, tea.Cmd) {
	mode := m.mode
	value := strings.TrimSpace(m.input)
	m.mode = keymap.ModeNormal
	m.input = ""

	switch mode {
	case keymap.ModeTagInput:
		articleID := m.bookmarkArticleID
		m.bookmarkArticleID = 0
		article, ok := m.articleByID(articleID)
		if !ok || m.bookmarker == nil {
			return m, nil
		}
		m.status = "Saving bookmark..."
		return m, bookmarkCmd(m.bookmarker, article, m.summary, parseTags(value))
	case keymap.ModeFeedInput:
		if value == "" {
			return m, nil
		}
		m.status = "Looking for feed..."
		return m, addFeedCmd(m.service, value)
	case keymap.ModeOpmlImportInput:
		if value == "" {
			return m, nil
		}
		m.status = "Importing..."
		return m, importCmd(m.service, value)
	case keymap.ModeOpmlExportInput:
		if value == "" {
			return m, nil
		}
		return m, exportCmd(m.service, value)
	}
	return m, nil
}

func (m Model) articleByID(id int64) (storage.Article, bool) {
	for _, a := range m.articles {
		if a.ID == id {
			return a, true
		}
	}
	return storage.Article{}, false
}

func parseTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := strings.TrimSpace(p); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
