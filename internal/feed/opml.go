package feed

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"speedy-reader/internal/storage"
)

type opmlDocument struct {
	XMLName xml.Name    `xml:"opml"`
	Version string      `xml:"version,attr"`
	Head    opmlHead    `xml:"head"`
	Body    opmlBody    `xml:"body"`
}

type opmlHead struct {
	Title       string `xml:"title"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr,omitempty"`
	Type     string        `xml:"type,attr,omitempty"`
	XMLURL   string        `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string        `xml:"htmlUrl,attr,omitempty"`
	Outlines []opmlOutline `xml:"outline"`
}

// ParseOPMLFile reads an OPML subscription list. Nested outlines (folders)
// are flattened; outlines without an xmlUrl are skipped.
func ParseOPMLFile(path string) ([]storage.NewFeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read opml file: %w", err)
	}

	var doc opmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse opml: %w", err)
	}

	feeds := make([]storage.NewFeed, 0, 16)
	collectOutlines(doc.Body.Outlines, &feeds)
	return feeds, nil
}

func collectOutlines(outlines []opmlOutline, feeds *[]storage.NewFeed) {
	for _, outline := range outlines {
		if outline.XMLURL != "" {
			title := strings.TrimSpace(outline.Title)
			if title == "" {
				title = strings.TrimSpace(outline.Text)
			}
			if title == "" {
				title = outline.XMLURL
			}
			*feeds = append(*feeds, storage.NewFeed{
				Title:   title,
				URL:     outline.XMLURL,
				SiteURL: outline.HTMLURL,
			})
		}
		collectOutlines(outline.Outlines, feeds)
	}
}

// WriteOPMLFile exports the feed list as a flat OPML document.
func WriteOPMLFile(path string, feeds []storage.Feed) error {
	doc := opmlDocument{
		Version: "2.0",
		Head: opmlHead{
			Title:       "speedy-reader subscriptions",
			DateCreated: time.Now().UTC().Format(time.RFC1123Z),
		},
	}
	for _, feed := range feeds {
		doc.Body.Outlines = append(doc.Body.Outlines, opmlOutline{
			Text:    feed.Title,
			Title:   feed.Title,
			Type:    "rss",
			XMLURL:  feed.URL,
			HTMLURL: feed.SiteURL,
		})
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode opml: %w", err)
	}
	out := []byte(xml.Header + string(data) + "\n")
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write opml file: %w", err)
	}
	return nil
}
