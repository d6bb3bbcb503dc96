// Package smartsheet provides a read-only client for the Smartsheet REST v2
// API: workspace listings, full sheet fetches, and workspace metadata.
//
// Every call authenticates with a bearer token, enforces a per-call timeout,
// rate-limits outbound requests, and retries transient failures with
// exponential backoff. Permanent failures (bad credential, unknown id,
// malformed response) fail immediately without retry.
package smartsheet

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/sheetsync/ssync/internal/schema"
)

// DefaultBaseURL is the production Smartsheet API endpoint.
const DefaultBaseURL = "https://api.smartsheet.com/2.0"

// Security modes. Enterprise is the default: full TLS verification, proxy
// settings honored from the environment. Testing relaxes certificate
// verification for local test endpoints only.
const (
	SecurityModeEnterprise = "enterprise"
	SecurityModeTesting    = "testing"
)

// Config holds the resolved configuration for a Client. The client never
// reads environment variables itself; the caller supplies everything here.
type Config struct {
	// Token is the bearer credential used on every call. Required.
	Token string

	// BaseURL overrides the API endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// Timeout bounds each individual HTTP call. Defaults to 30s.
	Timeout time.Duration

	// Retry is the retry policy for transient failures.
	// A zero value means DefaultPolicy(3).
	Retry Policy

	// RequestsPerMinute caps outbound request rate. Smartsheet allows
	// 300 requests/minute per token; the default of 240 leaves headroom.
	RequestsPerMinute int

	// SecurityMode is SecurityModeEnterprise or SecurityModeTesting.
	SecurityMode string

	// Logger for client activity. Nil means a stderr logger.
	Logger *log.Logger
}

// Client is a Smartsheet API client. It is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	retry   Policy
	httpc   *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// New creates a Client from the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("smartsheet: token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultPolicy(3)
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 240
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[smartsheet] ", log.LstdFlags)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	if cfg.SecurityMode == SecurityModeTesting {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	perSecond := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	burst := cfg.RequestsPerMinute / 60
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		httpc:   &http.Client{Transport: transport},
		limiter: rate.NewLimiter(perSecond, burst),
		logger:  cfg.Logger,
	}, nil
}

// GetWorkspace fetches workspace metadata together with its sheet listing.
func (c *Client) GetWorkspace(ctx context.Context, workspaceID int64) (*Workspace, error) {
	var ws wireWorkspace
	path := fmt.Sprintf("/workspaces/%d?include=sheets", workspaceID)
	if err := c.getJSON(ctx, path, &ws); err != nil {
		return nil, err
	}
	if ws.ID == 0 {
		return nil, fmt.Errorf("%w: workspace response missing id", ErrProtocol)
	}
	c.logger.Printf("Retrieved workspace %q (%d sheets)", ws.Name, len(ws.Sheets))
	return ws.toWorkspace(), nil
}

// ListSheets returns the sheets of a workspace in listing order.
func (c *Client) ListSheets(ctx context.Context, workspaceID int64) ([]SheetInfo, error) {
	ws, err := c.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return ws.Sheets, nil
}

// GetSheet fetches one sheet's full data (columns, rows, cells) as a
// document ready to persist. The document's LastSync field is left zero.
func (c *Client) GetSheet(ctx context.Context, sheetID int64) (*schema.SheetDocument, error) {
	var sheet wireSheet
	path := fmt.Sprintf("/sheets/%d", sheetID)
	if err := c.getJSON(ctx, path, &sheet); err != nil {
		return nil, err
	}
	if sheet.ID == 0 {
		return nil, fmt.Errorf("%w: sheet response missing id", ErrProtocol)
	}
	doc := sheet.toDocument()
	c.logger.Printf("Fetched sheet %q (%d rows)", sheet.Name, len(doc.Rows))
	return doc, nil
}

// getJSON performs an authenticated GET under the retry policy and decodes
// the body into out. Transient conditions (network errors, timeouts,
// 429/5xx) are retried; 401/403/404 and malformed bodies are permanent.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		return c.getOnce(ctx, path, out)
	}

	err := c.retry.Do(ctx, op)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrProtocol) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// The caller's context expired, not the per-call timeout.
		if ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// getOnce performs a single attempt. Permanent failures are wrapped with
// backoff.Permanent so the retry policy stops immediately.
func (c *Client) getOnce(ctx context.Context, path string, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request for %s: %w", path, err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Caller cancelled; don't burn retries on it.
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		drain(resp.Body)
		return backoff.Permanent(fmt.Errorf("%w (status %d on %s)", ErrAuth, resp.StatusCode, path))

	case resp.StatusCode == http.StatusNotFound:
		drain(resp.Body)
		return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, path))

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		drain(resp.Body)
		c.logger.Printf("Retryable status %d on %s", resp.StatusCode, path)
		return fmt.Errorf("status %d on %s", resp.StatusCode, path)

	default:
		drain(resp.Body)
		return backoff.Permanent(fmt.Errorf("%w: unexpected status %d on %s", ErrProtocol, resp.StatusCode, path))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("%w: decode %s: %v", ErrProtocol, path, err))
	}
	return nil
}

// drain discards the response body so the connection can be reused.
func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64<<10))
}
