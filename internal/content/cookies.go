package content

import (
	"bufio"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// firefoxCookiePath locates cookies.sqlite for the default Firefox profile.
// profiles.ini is consulted first; when it is missing or unhelpful the
// profile directories are scanned directly.
func firefoxCookiePath(home string) (string, error) {
	root := filepath.Join(home, ".mozilla", "firefox")

	if profile := defaultProfileFromIni(filepath.Join(root, "profiles.ini")); profile != "" {
		candidate := filepath.Join(root, profile, "cookies.sqlite")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("read firefox profile dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(root, entry.Name(), "cookies.sqlite")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no firefox cookie database found under %s", root)
}

// defaultProfileFromIni returns the Path of the profile section carrying
// Default=1, or the first Path seen when no section is marked default.
func defaultProfileFromIni(iniPath string) string {
	f, err := os.Open(iniPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	var firstPath, sectionPath string
	sectionDefault := false

	flush := func() string {
		if sectionDefault && sectionPath != "" {
			return sectionPath
		}
		if firstPath == "" && sectionPath != "" {
			firstPath = sectionPath
		}
		return ""
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "["):
			if p := flush(); p != "" {
				return p
			}
			sectionPath = ""
			sectionDefault = false
		case strings.HasPrefix(line, "Path="):
			sectionPath = strings.TrimPrefix(line, "Path=")
		case line == "Default=1":
			sectionDefault = true
		}
	}
	if p := flush(); p != "" {
		return p
	}
	return firstPath
}

type cookie struct {
	Name  string
	Value string
}

// loadCookies copies the cookie database to a temp file (Firefox holds a
// lock on the live one) and reads the cookies matching host.
func loadCookies(dbPath, host string) ([]cookie, error) {
	tmp, err := copyToTemp(dbPath)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return nil, fmt.Errorf("open cookie database: %w", err)
	}
	defer db.Close()

	domain := baseDomain(host)
	rows, err := db.Query(
		`SELECT name, value FROM moz_cookies WHERE host = ? OR host = ? OR host LIKE ?`,
		domain, "."+domain, "%."+domain,
	)
	if err != nil {
		return nil, fmt.Errorf("query cookies: %w", err)
	}
	defer rows.Close()

	var cookies []cookie
	for rows.Next() {
		var c cookie
		if err := rows.Scan(&c.Name, &c.Value); err != nil {
			return nil, fmt.Errorf("scan cookie: %w", err)
		}
		cookies = append(cookies, c)
	}
	return cookies, rows.Err()
}

func copyToTemp(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open cookie database: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "cookies-*.sqlite")
	if err != nil {
		return "", fmt.Errorf("create temp cookie copy: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("copy cookie database: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("close temp cookie copy: %w", err)
	}
	return dst.Name(), nil
}

// baseDomain strips a leading www. so www.example.com and example.com share
// cookies.
func baseDomain(host string) string {
	return strings.TrimPrefix(host, "www.")
}

func cookieHeader(cookies []cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
