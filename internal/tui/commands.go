package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"speedy-reader/internal/raindrop"
	"speedy-reader/internal/storage"
)

type autoRefreshMsg struct{}

type refreshDoneMsg struct {
	articles []storage.Article
	err      error
}

type summaryDoneMsg struct {
	generation int
	articleID  int64
	text       string
	model      string
	err        error
}

type readTimerMsg struct {
	generation int
	articleID  int64
}

type bookmarkDoneMsg struct {
	articleID  int64
	externalID int64
	tags       []string
	err        error
}

type addFeedDoneMsg struct {
	feed storage.NewFeed
	err  error
}

type importDoneMsg struct {
	added    int
	articles []storage.Article
	err      error
}

type exportDoneMsg struct {
	path string
	err  error
}

func autoRefreshCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return autoRefreshMsg{}
	})
}

func refreshCmd(service Service) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		articles, err := service.RefreshAll(ctx)
		if err != nil {
			return refreshDoneMsg{err: err}
		}
		return refreshDoneMsg{articles: articles}
	}
}

// summarizeCmd resolves the article's full text (best effort) and asks the
// backend for a summary. The generation tag lets Update discard completions
// that a newer selection has outrun.
func summarizeCmd(summarizer Summarizer, resolver Resolver, generation int, article storage.Article) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()

		content := article.ContentText
		if content == "" {
			content = article.Content
		}
		if resolver != nil {
			if full := resolver.Resolve(ctx, article.URL); full != "" {
				content = full
			}
		}

		text, err := summarizer.Summarize(ctx, article.Title, content)
		if err != nil {
			return summaryDoneMsg{generation: generation, articleID: article.ID, err: err}
		}
		return summaryDoneMsg{
			generation: generation,
			articleID:  article.ID,
			text:       text,
			model:      summarizer.ModelVersion(),
		}
	}
}

func readTimerCmd(generation int, articleID int64) tea.Cmd {
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg {
		return readTimerMsg{generation: generation, articleID: articleID}
	})
}

func bookmarkCmd(bookmarker Bookmarker, article storage.Article, note string, tags []string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		externalID, err := bookmarker.Save(ctx, raindrop.Bookmark{
			Link:    article.URL,
			Title:   article.Title,
			Excerpt: excerpt(article.ContentText, 280),
			Note:    note,
			Tags:    tags,
		})
		if err != nil {
			return bookmarkDoneMsg{articleID: article.ID, err: err}
		}
		return bookmarkDoneMsg{articleID: article.ID, externalID: externalID, tags: tags}
	}
}

func addFeedCmd(service Service, rawURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		feed, err := service.AddFeed(ctx, rawURL)
		if err != nil {
			return addFeedDoneMsg{err: err}
		}
		return addFeedDoneMsg{feed: feed}
	}
}

func importCmd(service Service, path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		added, err := service.ImportOPML(ctx, path)
		if err != nil {
			return importDoneMsg{added: added, err: err}
		}
		articles, err := service.ListArticles(ctx)
		if err != nil {
			return importDoneMsg{added: added, err: err}
		}
		return importDoneMsg{added: added, articles: articles}
	}
}

func exportCmd(service Service, path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := service.ExportOPML(ctx, path); err != nil {
			return exportDoneMsg{path: path, err: err}
		}
		return exportDoneMsg{path: path}
	}
}

func excerpt(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
