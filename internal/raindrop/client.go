// Package raindrop saves articles as bookmarks in a Raindrop.io account.
package raindrop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL = "https://api.raindrop.io/rest/v1"
	collectionName = "News Links"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client

	// The target collection id is resolved once per client. A failed lookup
	// leaves collectionID nil and bookmarks land in Unsorted.
	lookupOnce   sync.Once
	collectionID *int64
}

func NewClient(token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		http:    httpClient,
	}
}

// NewClientWithBaseURL is used by tests to point the client at a local server.
func NewClientWithBaseURL(token, baseURL string, httpClient *http.Client) *Client {
	c := NewClient(token, httpClient)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Bookmark describes one article to save.
type Bookmark struct {
	Link    string
	Title   string
	Excerpt string
	Note    string
	Tags    []string
}

type collectionsResponse struct {
	Items []struct {
		ID    int64  `json:"_id"`
		Title string `json:"title"`
	} `json:"items"`
}

type raindropRequest struct {
	Link        string        `json:"link"`
	Title       string        `json:"title"`
	Excerpt     string        `json:"excerpt,omitempty"`
	Note        string        `json:"note,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	PleaseParse struct{}      `json:"pleaseParse"`
	Collection  *collectionID `json:"collection,omitempty"`
}

type collectionID struct {
	ID int64 `json:"$id"`
}

type raindropResponse struct {
	Item struct {
		ID int64 `json:"_id"`
	} `json:"item"`
}

// Save creates a bookmark, filing it under the configured collection when the
// lookup succeeds and under Unsorted otherwise. It returns the created
// raindrop id.
func (c *Client) Save(ctx context.Context, b Bookmark) (int64, error) {
	c.lookupOnce.Do(func() {
		c.collectionID = c.findCollection(ctx)
	})

	payload := raindropRequest{
		Link:    b.Link,
		Title:   b.Title,
		Excerpt: b.Excerpt,
		Note:    b.Note,
		Tags:    b.Tags,
	}
	if c.collectionID != nil {
		payload.Collection = &collectionID{ID: *c.collectionID}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode bookmark: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/raindrop", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("save bookmark request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("save bookmark failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded raindropResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("decode bookmark response: %w", err)
	}
	return decoded.Item.ID, nil
}

func (c *Client) findCollection(ctx context.Context) *int64 {
	req, err := c.newRequest(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var decoded collectionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil
	}
	for _, item := range decoded.Items {
		if strings.EqualFold(item.Title, collectionName) {
			id := item.ID
			return &id
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}
