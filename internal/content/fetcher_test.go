package content

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCookieDB(t *testing.T, cookies map[string][2]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open cookie db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE moz_cookies (host TEXT, name TEXT, value TEXT)`); err != nil {
		t.Fatalf("create moz_cookies: %v", err)
	}
	for host, nv := range cookies {
		if _, err := db.Exec(`INSERT INTO moz_cookies (host, name, value) VALUES (?, ?, ?)`, host, nv[0], nv[1]); err != nil {
			t.Fatalf("insert cookie: %v", err)
		}
	}
	return path
}

func TestLoadCookies_MatchesHostAndSubdomains(t *testing.T) {
	path := writeCookieDB(t, map[string][2]string{
		"example.com":       {"sid", "abc"},
		".example.com":      {"pref", "dark"},
		"news.example.com":  {"edition", "eu"},
		"otherdomain.com":   {"stray", "x"},
		".anotherhost.test": {"stray2", "y"},
	})

	cookies, err := loadCookies(path, "www.example.com")
	if err != nil {
		t.Fatalf("loadCookies returned error: %v", err)
	}
	if len(cookies) != 3 {
		t.Fatalf("expected 3 cookies, got %d: %v", len(cookies), cookies)
	}
	for _, c := range cookies {
		if c.Name == "stray" || c.Name == "stray2" {
			t.Fatalf("cookie for unrelated host leaked: %+v", c)
		}
	}
}

func TestDefaultProfileFromIni(t *testing.T) {
	ini := `[Profile1]
Name=work
Path=abc.work
[Profile0]
Name=default
Path=xyz.default
Default=1
[General]
Version=2
`
	path := filepath.Join(t.TempDir(), "profiles.ini")
	if err := os.WriteFile(path, []byte(ini), 0o644); err != nil {
		t.Fatalf("write ini: %v", err)
	}
	if got := defaultProfileFromIni(path); got != "xyz.default" {
		t.Fatalf("expected default profile path, got %q", got)
	}
}

func TestDefaultProfileFromIni_NoDefaultFallsBackToFirst(t *testing.T) {
	ini := `[Profile0]
Path=first.profile
[Profile1]
Path=second.profile
`
	path := filepath.Join(t.TempDir(), "profiles.ini")
	if err := os.WriteFile(path, []byte(ini), 0o644); err != nil {
		t.Fatalf("write ini: %v", err)
	}
	if got := defaultProfileFromIni(path); got != "first.profile" {
		t.Fatalf("expected first profile path, got %q", got)
	}
}

func articlePage() string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><title>Long Read</title></head><body><article><h1>Long Read</h1>`)
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "<p>Paragraph %d of the article body, with enough prose to satisfy the extraction threshold and look like real content.</p>", i)
	}
	b.WriteString(`</article></body></html>`)
	return b.String()
}

func TestResolve_ExtractsReadableText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articlePage())
	}))
	defer ts.Close()

	f := newFetcherWithClient(ts.Client(), "")
	text := f.Resolve(context.Background(), ts.URL+"/story")
	if text == "" {
		t.Fatal("expected extracted text")
	}
	if !strings.Contains(text, "Paragraph 3") {
		t.Fatalf("expected article prose, got %q", text)
	}
}

func TestResolve_ThinPageDiscarded(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><p>Subscribe to continue.</p></body></html>`)
	}))
	defer ts.Close()

	f := newFetcherWithClient(ts.Client(), "")
	if text := f.Resolve(context.Background(), ts.URL); text != "" {
		t.Fatalf("expected empty result for thin page, got %q", text)
	}
}

func TestResolve_FailuresNeverError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	f := newFetcherWithClient(ts.Client(), "")
	if text := f.Resolve(context.Background(), ts.URL); text != "" {
		t.Fatalf("expected empty result for 403, got %q", text)
	}
	if text := f.Resolve(context.Background(), "not a url"); text != "" {
		t.Fatalf("expected empty result for bad url, got %q", text)
	}
}

func TestResolve_SendsBrowserCookies(t *testing.T) {
	var gotCookie, gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articlePage())
	}))
	defer ts.Close()

	cookiePath := writeCookieDB(t, map[string][2]string{
		"127.0.0.1": {"sid", "abc"},
	})

	f := newFetcherWithClient(ts.Client(), cookiePath)
	if text := f.Resolve(context.Background(), ts.URL); text == "" {
		t.Fatal("expected extracted text")
	}
	if gotCookie != "sid=abc" {
		t.Fatalf("expected cookie header, got %q", gotCookie)
	}
	if !strings.Contains(gotUA, "Firefox") {
		t.Fatalf("expected browser user agent, got %q", gotUA)
	}
}
