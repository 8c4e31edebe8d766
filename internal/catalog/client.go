// Package catalog talks to the CurseForge REST API.
//
// Search and Batch are best effort: network and decoding failures are
// logged and reported as an empty result so callers fall through to their
// next strategy. The detail, download-URL and download calls used by the
// update installer return errors instead.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL is the public CurseForge API root.
	DefaultBaseURL = "https://api.curseforge.com/v1"
	// DefaultGameID is the CurseForge game id for Hytale.
	DefaultGameID = 70216
	// DefaultPageSize is the page size used for searches and batches.
	DefaultPageSize = 50
)

// ErrNotFound is returned when the catalog has no record for a lookup.
var ErrNotFound = errors.New("not found on catalog")

// Observer receives one call per catalog request. op is the API
// operation and ok reports whether it produced a usable response.
type Observer func(op string, ok bool)

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	GameID     int
	HTTPClient *http.Client
	Logger     *slog.Logger
	Observer   Observer
}

// Client is a CurseForge API client.
type Client struct {
	baseURL  string
	apiKey   string
	gameID   int
	http     *http.Client
	logger   *slog.Logger
	observer Observer
}

// New creates a Client, filling unset options with defaults.
func New(opts Options) *Client {
	c := &Client{
		baseURL:  opts.BaseURL,
		apiKey:   opts.APIKey,
		gameID:   opts.GameID,
		http:     opts.HTTPClient,
		logger:   opts.Logger,
		observer: opts.Observer,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.gameID == 0 {
		c.gameID = DefaultGameID
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.apiKey != "" {
		c.logger.Info("CurseForge API key configured")
	}
	return c
}

// Search runs a free-text search, used with author names.
func (c *Client) Search(ctx context.Context, term string) []Entry {
	q := url.Values{}
	q.Set("gameId", strconv.Itoa(c.gameID))
	q.Set("searchFilter", term)
	q.Set("pageSize", strconv.Itoa(DefaultPageSize))

	var resp searchResponse
	if err := c.getJSON(ctx, "search", "/mods/search?"+q.Encode(), &resp); err != nil {
		c.logger.Warn("catalog search failed", "term", term, "error", err)
		return []Entry{}
	}
	return toEntries(resp.Data)
}

// Batch lists one page of the catalog starting at offset.
func (c *Client) Batch(ctx context.Context, offset, pageSize int) []Entry {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	q := url.Values{}
	q.Set("gameId", strconv.Itoa(c.gameID))
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("index", strconv.Itoa(offset))

	var resp searchResponse
	if err := c.getJSON(ctx, "batch", "/mods/search?"+q.Encode(), &resp); err != nil {
		c.logger.Warn("catalog batch failed", "offset", offset, "error", err)
		return []Entry{}
	}
	return toEntries(resp.Data)
}

// GetBySlug returns the full record for slug. It returns ErrNotFound when
// no mod carries that slug.
func (c *Client) GetBySlug(ctx context.Context, slug string) (*ModDetail, error) {
	q := url.Values{}
	q.Set("gameId", strconv.Itoa(c.gameID))
	q.Set("slug", slug)

	var resp searchResponse
	if err := c.getJSON(ctx, "slug", "/mods/search?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to look up slug %s: %w", slug, err)
	}
	for i := range resp.Data {
		if resp.Data[i].Slug == slug {
			return &resp.Data[i], nil
		}
	}
	return nil, ErrNotFound
}

// GetDownloadURL asks the catalog for a file's download URL. It returns ""
// without error when the author has disabled third-party distribution.
func (c *Client) GetDownloadURL(ctx context.Context, modID, fileID int) (string, error) {
	path := fmt.Sprintf("/mods/%d/files/%d/download-url", modID, fileID)

	var resp stringResponse
	err := c.getJSON(ctx, "download-url", path, &resp)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Code == http.StatusForbidden || se.Code == http.StatusNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get download url for mod %d file %d: %w", modID, fileID, err)
	}
	return resp.Data, nil
}

// Download opens a download stream. The caller closes it.
func (c *Client) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe("download", false)
		return nil, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		c.observe("download", false)
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}

	c.observe("download", true)
	return resp.Body, nil
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

func (c *Client) getJSON(ctx context.Context, op, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, false)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(op, false)
		return &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		c.observe(op, false)
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}

	c.observe(op, true)
	return nil
}

func (c *Client) observe(op string, ok bool) {
	if c.observer != nil {
		c.observer(op, ok)
	}
}
