// Package rest implements gateway.Gateway against a Supabase / PostgREST
// endpoint.
//
// Requests carry the project anon key in the `apikey` header and the
// signed-in user's access token (falling back to the anon key) as a bearer
// token, so row-level security policies see the real principal.
// Rate limiting is handled via a token bucket limiter.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Dilbarpun07/GBFC-website/internal/gateway"
)

// incrementRPC is the Postgres function installed by the migrations.
const incrementRPC = "increment_column"

// Client is a rate-limited PostgREST client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a PostgREST client. baseURL is the project URL
// (https://xyz.supabase.co); the /rest/v1 prefix is added here.
func NewClient(baseURL, anonKey string, requestsPerMinute int, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 600
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/") + "/rest/v1",
		anonKey:    anonKey,
		limiter:    rate.NewLimiter(rate.Limit(rps), max(1, requestsPerMinute/60)),
		logger:     logger,
	}
}

func (c *Client) SelectAll(ctx context.Context, table gateway.Table) ([]json.RawMessage, error) {
	params := url.Values{"select": {"*"}}
	body, err := c.do(ctx, http.MethodGet, "/"+string(table), params, nil, nil)
	if err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", table, err)
	}
	return rows, nil
}

func (c *Client) Insert(ctx context.Context, table gateway.Table, row any) (json.RawMessage, error) {
	headers := map[string]string{"Prefer": "return=representation"}
	body, err := c.do(ctx, http.MethodPost, "/"+string(table), nil, row, headers)
	if err != nil {
		return nil, err
	}
	// PostgREST returns the inserted rows as an array.
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode inserted %s row: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert %s: no row returned", table)
	}
	return rows[0], nil
}

func (c *Client) UpdateByID(ctx context.Context, table gateway.Table, id string, fields map[string]any) error {
	params := url.Values{"id": {"eq." + id}}
	headers := map[string]string{"Prefer": "return=minimal"}
	_, err := c.do(ctx, http.MethodPatch, "/"+string(table), params, fields, headers)
	return err
}

func (c *Client) DeleteByID(ctx context.Context, table gateway.Table, id string) error {
	params := url.Values{"id": {"eq." + id}}
	_, err := c.do(ctx, http.MethodDelete, "/"+string(table), params, nil, nil)
	return err
}

// IncrementByID calls the increment_column RPC.
func (c *Client) IncrementByID(ctx context.Context, table gateway.Table, id, column string, delta int) error {
	args := map[string]any{
		"p_table":  string(table),
		"p_id":     id,
		"p_column": column,
		"p_delta":  delta,
	}
	_, err := c.do(ctx, http.MethodPost, "/rpc/"+incrementRPC, nil, args, nil)
	return err
}

// Ping issues a HEAD on the teams table.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodHead, "/"+string(gateway.Teams), url.Values{"limit": {"1"}}, nil, nil)
	return err
}

// do performs a rate-limited request and returns the body on 2xx.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload any, headers map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	token := c.anonKey
	if t, ok := gateway.AccessTokenFrom(ctx); ok {
		token = t
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debug("PostgREST request",
		"method", method, "path", path, "status", resp.StatusCode,
		"duration", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   truncate(body, 200),
		}
	}
	return body, nil
}

// StatusError is returned for non-2xx PostgREST responses.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("PostgREST %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
