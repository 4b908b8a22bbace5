package render

import (
	"strings"
	"testing"
)

func TestText_FlattensBlocksToParagraphs(t *testing.T) {
	got := Text("<p>First <strong>paragraph</strong>.</p><p>Second&nbsp;one.</p>")
	if !strings.Contains(got, "First paragraph.") {
		t.Fatalf("expected first paragraph in output, got: %q", got)
	}
	if !strings.Contains(got, "Second one.") && !strings.Contains(got, "Second one.") {
		t.Fatalf("expected second paragraph with entity unescaped, got: %q", got)
	}
	if !strings.Contains(got, "\n") {
		t.Fatalf("expected a paragraph break, got: %q", got)
	}
}

func TestText_DropsScriptAndStyle(t *testing.T) {
	got := Text("<p>Visible</p><script>alert(1)</script><style>p{}</style>")
	if !strings.Contains(got, "Visible") {
		t.Fatalf("expected visible text, got: %q", got)
	}
	if strings.Contains(got, "alert") || strings.Contains(got, "p{}") {
		t.Fatalf("expected script/style dropped, got: %q", got)
	}
}

func TestText_RendersListItems(t *testing.T) {
	got := Text("<ul><li>one</li><li>two</li></ul>")
	if !strings.Contains(got, "- one") || !strings.Contains(got, "- two") {
		t.Fatalf("expected list markers, got: %q", got)
	}
}

func TestText_EmptyInput(t *testing.T) {
	if got := Text("   "); got != "" {
		t.Fatalf("expected empty output, got: %q", got)
	}
}

func TestWrapText_BreaksLongWords(t *testing.T) {
	lines := WrapText("abcdefghij", 4)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %v", lines)
	}
	for _, line := range lines {
		if len(line) > 4 {
			t.Fatalf("line exceeds width: %q", line)
		}
	}
}

func TestWrapText_KeepsWordsWithinWidth(t *testing.T) {
	lines := WrapText("one two three four", 9)
	for _, line := range lines {
		if len(line) > 9 {
			t.Fatalf("line exceeds width: %q", line)
		}
	}
	if strings.Join(lines, " ") != "one two three four" {
		t.Fatalf("expected all words preserved, got %v", lines)
	}
}
