// Package backend implements the REST client for the media-library backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/reelhaven/reelhaven/internal/config"
)

// HTTPError is returned for non-2xx backend responses
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// Client handles all backend API interactions
type Client struct {
	baseURL string
	logger  hclog.Logger

	httpClient   *http.Client // plain calls
	scrapeClient *http.Client // job-start calls get a longer deadline
	pollClient   *http.Client // progress polls get a short one

	// Installed-plugin cache
	mu          sync.Mutex
	installed   map[string]bool
	installedAt time.Time
	cacheTTL    time.Duration
}

// NewClient creates a backend client from the backend configuration
func NewClient(cfg config.BackendConfig, logger hclog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		logger:       logger.Named("backend-client"),
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
		scrapeClient: &http.Client{Timeout: cfg.ScrapeStartTimeout},
		pollClient:   &http.Client{Timeout: cfg.PollTimeout},
		cacheTTL:     cfg.InstalledCacheTTL,
	}
}

// BaseURL returns the configured backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do issues a request against the backend. Relative paths are resolved
// against the base URL; query is appended for every method, body is sent as
// JSON for non-GET methods. The decoded JSON object is returned for any 2xx
// response; non-2xx responses produce an *HTTPError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body map[string]interface{}) (map[string]interface{}, error) {
	return c.do(ctx, c.httpClient, method, path, query, body)
}

// DoScrape is Do with the longer job-start deadline.
func (c *Client) DoScrape(ctx context.Context, method, path string, query url.Values, body map[string]interface{}) (map[string]interface{}, error) {
	return c.do(ctx, c.scrapeClient, method, path, query, body)
}

// Poll issues a progress-poll GET with the short poll deadline.
func (c *Client) Poll(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.do(ctx, c.pollClient, http.MethodGet, path, nil, nil)
}

func (c *Client) do(ctx context.Context, client *http.Client, method, path string, query url.Values, body map[string]interface{}) (map[string]interface{}, error) {
	fullURL := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		fullURL = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + query.Encode()
	}

	var reqBody io.Reader
	if body != nil && method != http.MethodGet {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("backend request", "method", method, "url", fullURL)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(data)}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]interface{}{}, nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON response: %w", err)
	}
	return payload, nil
}
