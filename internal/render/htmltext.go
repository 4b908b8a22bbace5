// Package render converts feed-supplied HTML fragments into plain text for
// the terminal panes and for the stored content_text column.
package render

import (
	"html"
	"strings"

	nethtml "golang.org/x/net/html"
)

// Text flattens an HTML fragment into readable plain text. Block elements
// become paragraph breaks; script/style subtrees are dropped. A fragment
// that fails to parse degrades to entity-unescaped raw text.
func Text(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	doc, err := nethtml.Parse(strings.NewReader("<html><body>" + raw + "</body></html>"))
	if err != nil {
		return strings.TrimSpace(html.UnescapeString(raw))
	}
	body := findBody(doc)
	if body == nil {
		return strings.TrimSpace(html.UnescapeString(raw))
	}
	blocks := trimBlankLines(renderNodes(children(body)))
	return strings.Join(blocks, "\n")
}

func renderNodes(nodes []*nethtml.Node) []string {
	lines := make([]string, 0, len(nodes)*2)
	inlineParts := make([]string, 0, 4)
	flushInline := func() {
		text := normalizeInline(strings.Join(inlineParts, " "))
		inlineParts = inlineParts[:0]
		if text == "" {
			return
		}
		if len(lines) > 0 && lines[len(lines)-1] != "" {
			lines = append(lines, "")
		}
		lines = append(lines, text)
	}

	for _, node := range nodes {
		switch node.Type {
		case nethtml.TextNode:
			inlineParts = append(inlineParts, node.Data)
		case nethtml.ElementNode:
			if isBlockElement(node.Data) {
				flushInline()
				block := renderBlock(node)
				if len(block) == 0 {
					continue
				}
				if len(lines) > 0 && lines[len(lines)-1] != "" {
					lines = append(lines, "")
				}
				lines = append(lines, block...)
				continue
			}
			inlineParts = append(inlineParts, renderInline(node))
		}
	}
	flushInline()
	return trimBlankLines(lines)
}

func renderBlock(node *nethtml.Node) []string {
	switch strings.ToLower(node.Data) {
	case "script", "style", "noscript", "iframe":
		return nil
	case "li":
		text := normalizeInline(inlineText(node))
		if text == "" {
			return nil
		}
		return []string{"- " + text}
	case "ul", "ol":
		items := make([]string, 0, 8)
		for _, child := range children(node) {
			if child.Type == nethtml.ElementNode && strings.EqualFold(child.Data, "li") {
				items = append(items, renderBlock(child)...)
			}
		}
		return items
	case "br":
		return []string{""}
	default:
		if hasBlockChild(node) {
			return renderNodes(children(node))
		}
		text := normalizeInline(inlineText(node))
		if text != "" {
			return []string{text}
		}
		return renderNodes(children(node))
	}
}

func renderInline(node *nethtml.Node) string {
	if node.Type == nethtml.TextNode {
		return node.Data
	}
	if node.Type != nethtml.ElementNode {
		return ""
	}
	switch strings.ToLower(node.Data) {
	case "script", "style", "noscript":
		return ""
	case "img":
		return ""
	case "br":
		return "\n"
	}
	return inlineText(node)
}

func inlineText(node *nethtml.Node) string {
	parts := make([]string, 0, 4)
	for _, child := range children(node) {
		parts = append(parts, renderInline(child))
	}
	return strings.Join(parts, " ")
}

func isBlockElement(tag string) bool {
	switch strings.ToLower(tag) {
	case "p", "div", "section", "article", "main", "header", "footer",
		"aside", "nav", "blockquote", "pre", "table", "ul", "ol", "li",
		"h1", "h2", "h3", "h4", "h5", "h6", "figure", "hr", "br":
		return true
	}
	return false
}

func hasBlockChild(node *nethtml.Node) bool {
	for _, child := range children(node) {
		if child.Type == nethtml.ElementNode && isBlockElement(child.Data) {
			return true
		}
	}
	return false
}

func children(node *nethtml.Node) []*nethtml.Node {
	out := make([]*nethtml.Node, 0, 8)
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		out = append(out, child)
	}
	return out
}

func findBody(doc *nethtml.Node) *nethtml.Node {
	var body *nethtml.Node
	var walk func(*nethtml.Node)
	walk = func(n *nethtml.Node) {
		if body != nil {
			return
		}
		if n.Type == nethtml.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return body
}

func normalizeInline(text string) string {
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

func trimBlankLines(lines []string) []string {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

// WrapText wraps paragraphs at width, breaking words longer than a line.
func WrapText(text string, width int) []string {
	if width < 1 {
		return []string{text}
	}
	paragraphs := strings.Split(text, "\n")
	out := make([]string, 0, len(paragraphs))

	for _, p := range paragraphs {
		words := strings.Fields(p)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := ""
		for _, word := range words {
			for len(word) > width {
				if line != "" {
					out = append(out, line)
					line = ""
				}
				out = append(out, word[:width])
				word = word[width:]
			}

			if line == "" {
				line = word
				continue
			}
			if len(line)+1+len(word) <= width {
				line += " " + word
				continue
			}
			out = append(out, line)
			line = word
		}
		if line != "" {
			out = append(out, line)
		}
	}

	return out
}
