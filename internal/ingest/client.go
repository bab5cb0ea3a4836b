// Package ingest fetches raw payloads from statistics sources.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/syncerr"
)

const (
	maxBodyBytes   = 32 << 20
	previewLength  = 200
	acceptJSON     = "application/json"
	acceptHTML     = "text/html,application/xhtml+xml"
	defaultTimeout = 30 * time.Second
)

// Client performs GET requests against stat sources with browser-like
// headers. Some sources reject requests without a real User-Agent.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *logging.Logger
}

func NewClient(timeout time.Duration, userAgent string, logger *logging.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewClientWithHTTP(&http.Client{Timeout: timeout}, userAgent, logger)
}

// NewClientWithHTTP wraps an existing *http.Client, mostly for tests.
func NewClientWithHTTP(httpClient *http.Client, userAgent string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: httpClient,
		userAgent:  userAgent,
		logger:     logger.Named("fetcher"),
	}
}

// GetJSON fetches url and decodes the body into a generic tree.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string) (any, error) {
	body, err := c.get(ctx, url, acceptJSON, headers)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "<") {
		return nil, syncerr.ShapeMismatch("GET %s returned an HTML page where JSON was expected: %s", url, preview(body))
	}

	var out any
	if err := sonic.Unmarshal(body, &out); err != nil {
		return nil, syncerr.ShapeMismatch("GET %s: decode response: %v (body: %s)", url, err, preview(body))
	}
	return out, nil
}

// GetObject is GetJSON for endpoints whose top level must be an object.
func (c *Client) GetObject(ctx context.Context, url string, headers map[string]string) (map[string]any, error) {
	out, err := c.GetJSON(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	obj, ok := out.(map[string]any)
	if !ok {
		return nil, syncerr.ShapeMismatch("GET %s: expected a JSON object, got %T", url, out)
	}
	return obj, nil
}

// GetHTML fetches url and returns the raw document.
func (c *Client) GetHTML(ctx context.Context, url string, headers map[string]string) (string, error) {
	body, err := c.get(ctx, url, acceptHTML, headers)
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", syncerr.ShapeMismatch("GET %s returned an empty page", url)
	}
	return string(body), nil
}

// FetchPage satisfies the page-fetcher contract shared with Browser.
func (c *Client) FetchPage(ctx context.Context, url string, headers map[string]string) (string, error) {
	return c.GetHTML(ctx, url, headers)
}

func (c *Client) get(ctx context.Context, url, accept string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, syncerr.SourceUnreachable(err, "build request %s", url)
	}
	req.Header.Set("Accept", accept)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	started := time.Now()
	c.logger.DebugContext(ctx, "GET", "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, syncerr.SourceUnreachable(err, "GET %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, syncerr.SourceUnreachable(err, "read response %s", url)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, syncerr.SourceUnreachable(nil, "GET %s: status %d: %s", url, resp.StatusCode, preview(body))
	}

	c.logger.DebugContext(ctx, "fetched", "url", url, "status", resp.StatusCode, "bytes", len(body), "took", time.Since(started))
	return body, nil
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > previewLength {
		s = s[:previewLength] + "..."
	}
	return fmt.Sprintf("%q", s)
}
