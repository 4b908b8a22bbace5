package tui

import (
	"fmt"
	"strings"
	"time"

	"speedy-reader/internal/render"
	"speedy-reader/internal/storage"
	"speedy-reader/internal/tui/keymap"
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n\n")

	if m.mode == keymap.ModeHelp {
		b.WriteString(m.helpView())
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.listView())
	b.WriteString("\n")
	b.WriteString(m.summaryPanel())
	b.WriteString("\n")

	if m.mode.IsTextInput() {
		b.WriteString(m.inputPrompt())
		b.WriteString("\n")
	}

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	return b.String()
}

func (m Model) headerView() string {
	title := m.theme.Title.Render("Speedy Reader")
	pill := m.theme.FilterPill.Render(m.filter.String())

	unread := 0
	for _, a := range m.articles {
		if !a.IsRead {
			unread++
		}
	}
	count := m.theme.UnreadCount.Render(fmt.Sprintf("%d unread", unread))

	parts := []string{title, pill, count}
	if m.refreshing {
		parts = append(parts, m.theme.StateLoad.Render("refreshing..."))
	}
	return strings.Join(parts, "  ")
}

func (m Model) listView() string {
	visible := m.visibleIndices()
	if len(visible) == 0 {
		return m.theme.MetaValue.Render("No articles. Press r to refresh or a to add a feed.") + "\n"
	}

	var b strings.Builder
	for pos, idx := range visible {
		b.WriteString(m.renderArticleLine(m.articles[idx], pos == m.cursor))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderArticleLine(article storage.Article, active bool) string {
	marker := " "
	if active {
		marker = ">"
	}
	star := " "
	if article.IsStarred {
		star = "*"
	}
	date := "          "
	if article.PublishedAt != nil {
		date = article.PublishedAt.UTC().Format(time.DateOnly)
	}
	title := m.theme.StyleArticleTitle(article, article.Title)
	line := fmt.Sprintf("%s %s [%s] %s  %s", marker, star, date, title,
		m.theme.MetaLabel.Render(article.FeedTitle))
	return m.theme.RenderActiveLine(active, line)
}

func (m Model) summaryPanel() string {
	var b strings.Builder
	b.WriteString(m.theme.Section.Render("Summary"))
	b.WriteString("\n")

	switch m.summaryStatus {
	case StatusGenerating:
		b.WriteString(m.theme.StateLoad.Render("Generating..."))
	case StatusFailed:
		b.WriteString(m.theme.StateWarn.Render("Summarization failed. Press enter to retry or g to regenerate."))
	case StatusNoAPIKey:
		b.WriteString(m.theme.StateWarn.Render("No API key configured; summaries are disabled."))
	case StatusGenerated:
		for _, line := range render.WrapText(m.summary, m.contentWidth()) {
			b.WriteString(line)
			b.WriteString("\n")
		}
		if m.bookmarkSaved {
			b.WriteString(m.theme.StateIdle.Render("Bookmarked"))
		}
	default:
		b.WriteString(m.theme.MetaValue.Render("Press enter to summarize the selected article."))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) inputPrompt() string {
	var label string
	switch m.mode {
	case keymap.ModeTagInput:
		label = "Tags (comma-separated): "
	case keymap.ModeFeedInput:
		label = "Feed or site URL: "
	case keymap.ModeOpmlImportInput:
		label = "OPML file to import: "
	case keymap.ModeOpmlExportInput:
		label = "OPML file to write: "
	}
	return m.theme.Prompt.Render(label) + m.input + "_"
}

func (m Model) statusLine() string {
	if m.err != nil {
		return m.theme.StateWarn.Render(m.err.Error())
	}
	if m.status != "" {
		return m.theme.StateIdle.Render(m.status)
	}
	return m.theme.MetaLabel.Render("?: help | q: quit")
}

func (m Model) helpView() string {
	rows := []struct{ key, desc string }{
		{"j/k, arrows", "move selection"},
		{"</>", "jump to top/bottom"},
		{"enter", "summarize selected article"},
		{"g", "regenerate summary"},
		{"r", "refresh all feeds"},
		{"f", "cycle filter (unread / starred / all)"},
		{"m", "toggle read"},
		{"s", "toggle star"},
		{"o", "open in browser"},
		{"e", "email article"},
		{"b", "save bookmark"},
		{"d", "delete article"},
		{"D", "unsubscribe feed"},
		{"u", "undelete last deleted article"},
		{"a", "add feed"},
		{"i", "import OPML"},
		{"w", "export OPML"},
		{"q", "quit"},
	}

	var b strings.Builder
	b.WriteString(m.theme.Section.Render("Help"))
	b.WriteString(" ")
	b.WriteString(m.theme.MetaLabel.Render("(any key to close)"))
	b.WriteString("\n\n")
	for _, row := range rows {
		b.WriteString("  ")
		b.WriteString(m.theme.HelpKey.Render(fmt.Sprintf("%-12s", row.key)))
		b.WriteString(" ")
		b.WriteString(m.theme.HelpDesc.Render(row.desc))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) contentWidth() int {
	if m.width > 0 {
		return m.width - 1
	}
	return 100
}
