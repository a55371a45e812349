// Package github is a minimal GitHub REST API client covering the two
// operations the documentation syncer needs: reading a file's content and
// listing a directory.
//
// A missing file or directory (HTTP 404) is a normal outcome, not an error;
// callers decide what absence means. Requests are rate limited client-side to
// stay under GitHub's secondary limits during fan-out fetches.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/codepathfinder/repodocs/internal/log"
)

const (
	// DefaultBaseURL is the GitHub REST API endpoint.
	DefaultBaseURL = "https://api.github.com"

	// defaultRequestsPerSecond keeps concurrent doc fetches under GitHub's
	// secondary rate limits.
	defaultRequestsPerSecond = 5

	defaultTimeout = 20 * time.Second
)

// Entry is one item of a directory listing.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "dir"
}

// fileContent is the contents API response for a single file.
type fileContent struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// Client is a GitHub REST API client. It is safe for concurrent use.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used by tests with httptest servers.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit overrides the client-side request rate (requests per second).
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// New creates a Client. An empty token is allowed; requests are then
// unauthenticated and subject to GitHub's anonymous rate limits.
func New(token string, logger log.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = log.NewNop()
	}

	c := &Client{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), 1),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetFileContent fetches one file via the contents API and returns its
// decoded text. found is false when the file does not exist.
func (c *Client) GetFileContent(ctx context.Context, owner, repo, path string) (content string, found bool, err error) {
	body, status, err := c.get(ctx, c.contentsURL(owner, repo, path))
	if err != nil {
		return "", false, err
	}
	if status == http.StatusNotFound {
		return "", false, nil
	}
	if status != http.StatusOK {
		return "", false, fmt.Errorf("github contents %s/%s/%s: unexpected status %d", owner, repo, path, status)
	}

	var fc fileContent
	if err := json.Unmarshal(body, &fc); err != nil {
		return "", false, fmt.Errorf("parsing contents response for %s: %w", path, err)
	}
	if fc.Type != "file" {
		return "", false, fmt.Errorf("path %s is a %s, not a file", path, fc.Type)
	}

	decoded, err := decodeContent(fc)
	if err != nil {
		return "", false, fmt.Errorf("decoding content of %s: %w", path, err)
	}
	return decoded, true, nil
}

// ListDirectory lists one directory (non-recursive). A missing directory
// yields an empty listing.
func (c *Client) ListDirectory(ctx context.Context, owner, repo, path string) ([]Entry, error) {
	body, status, err := c.get(ctx, c.contentsURL(owner, repo, path))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("github contents %s/%s/%s: unexpected status %d", owner, repo, path, status)
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parsing directory listing for %s: %w", path, err)
	}
	return entries, nil
}

func (c *Client) contentsURL(owner, repo, path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo), escapePath(path))
}

// escapePath escapes each path segment while preserving separators.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// get performs a rate-limited GET and returns the body and status code.
// 404 is returned to the caller, not treated as an error.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("github request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20)) // 10 MiB cap
	if err != nil {
		return nil, 0, fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Debug("github request", "url", rawURL, "status", resp.StatusCode)
	return body, resp.StatusCode, nil
}

// decodeContent decodes the base64 payload GitHub returns for file contents.
// GitHub inserts newlines into the base64 stream; they are stripped first.
func decodeContent(fc fileContent) (string, error) {
	if fc.Encoding != "base64" {
		return "", fmt.Errorf("unsupported encoding %q", fc.Encoding)
	}
	compact := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, fc.Content)

	decoded, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
