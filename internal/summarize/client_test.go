package summarize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSummarize_JoinsTextBlocks(t *testing.T) {
	var captured struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		System    string `json:"system"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var gotAPIKey, gotVersion string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAPIKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[
			{"type":"text","text":"First paragraph."},
			{"type":"tool_use","text":"ignored"},
			{"type":"text","text":"Second paragraph."}
		]}`))
	}))
	defer ts.Close()

	c := NewClientWithBaseURL("test-key", ts.URL, ts.Client())
	summary, err := c.Summarize(context.Background(), "Big News", "Something happened today.")
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if summary != "First paragraph.\nSecond paragraph." {
		t.Fatalf("unexpected summary: %q", summary)
	}

	if gotAPIKey != "test-key" {
		t.Fatalf("expected api key header, got %q", gotAPIKey)
	}
	if gotVersion != "2023-06-01" {
		t.Fatalf("unexpected anthropic-version: %q", gotVersion)
	}
	if captured.Model != "claude-3-5-haiku-20241022" {
		t.Fatalf("unexpected model: %q", captured.Model)
	}
	if captured.MaxTokens != 1024 {
		t.Fatalf("unexpected max_tokens: %d", captured.MaxTokens)
	}
	if len(captured.Messages) != 1 || !strings.HasPrefix(captured.Messages[0].Content, "Title: Big News") {
		t.Fatalf("unexpected messages payload: %+v", captured.Messages)
	}
}

func TestSummarize_TruncatesLongContent(t *testing.T) {
	var sentLen int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) == 1 {
			sentLen = len(req.Messages[0].Content)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer ts.Close()

	c := NewClientWithBaseURL("k", ts.URL, ts.Client())
	long := strings.Repeat("a", 50000)
	if _, err := c.Summarize(context.Background(), "T", long); err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}

	// "Title: T\n\n" prefix plus the truncated body.
	if want := len("Title: T\n\n") + 10000; sentLen != want {
		t.Fatalf("expected content length %d, got %d", want, sentLen)
	}
}

func TestSummarize_APIErrorSurfaces(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error"}}`))
	}))
	defer ts.Close()

	c := NewClientWithBaseURL("k", ts.URL, ts.Client())
	if _, err := c.Summarize(context.Background(), "T", "body"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestSummarize_EmptyContentBlocksFail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer ts.Close()

	c := NewClientWithBaseURL("k", ts.URL, ts.Client())
	if _, err := c.Summarize(context.Background(), "T", "body"); err == nil {
		t.Fatal("expected error when response has no text blocks")
	}
}

func TestModelVersion(t *testing.T) {
	c := NewClient("k", nil)
	if got := c.ModelVersion(); got != "claude-3-5-haiku-20241022" {
		t.Fatalf("unexpected model version: %q", got)
	}
}
