// Package supabase calls Postgres functions through a Supabase project's
// PostgREST endpoint (POST /rest/v1/rpc/<function>).
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 8 << 20

// Error is a PostgREST error payload.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("supabase: rpc status %d (%s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("supabase: rpc status %d: %s", e.Status, msg)
}

// Client is a minimal PostgREST RPC client.
type Client struct {
	baseURL string
	apiKey  string
	schema  string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithSchema targets a schema other than public via the profile headers.
func WithSchema(schema string) ClientOption {
	return func(c *Client) { c.schema = schema }
}

// WithTimeout sets the HTTP client timeout; zero disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for the project at baseURL (e.g.
// https://xyz.supabase.co) authenticated with apiKey.
func New(baseURL, apiKey string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("supabase: invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Call invokes procedure with params as the JSON body. A set-returning
// function yields its rows; a function returning a single composite value
// yields one row; a JSON null yields no rows.
func (c *Client) Call(ctx context.Context, procedure string, params map[string]any) ([]json.RawMessage, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("supabase: encode params: %w", err)
	}

	endpoint := c.baseURL + "/rest/v1/rpc/" + url.PathEscape(procedure)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("supabase: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.schema != "" && c.schema != "public" {
		req.Header.Set("Content-Profile", c.schema)
		req.Header.Set("Accept-Profile", c.schema)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase: rpc %s: %w", procedure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("supabase: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return nil, apiErr
	}

	return decodeRows(data)
}

func decodeRows(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return []json.RawMessage{}, nil
	case trimmed[0] == '[':
		var rows []json.RawMessage
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("supabase: decode rows: %w", err)
		}
		if rows == nil {
			rows = []json.RawMessage{}
		}
		return rows, nil
	case trimmed[0] == '{':
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("supabase: decode row: invalid JSON")
		}
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	default:
		return nil, fmt.Errorf("supabase: unexpected response body %.64q", trimmed)
	}
}
