// Package httpkv is a core.Client that talks to the key-value HTTP service
// (see internal/adapters/kvserver).
package httpkv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tasktracker/internal/kv/core"
)

var _ core.Client = (*Client)(nil)

// DefaultBaseURL is the address the service listens on by default.
const DefaultBaseURL = "http://localhost:8078"

const tokenParam = "API_TOKEN"

// Client issues requests against a single service base URL.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New parses baseURL (DefaultBaseURL when empty).
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse kv url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("kv url %q: scheme must be http or https", baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Driver returns the http driver identifier.
func (c *Client) Driver() core.Driver { return core.DriverHTTP }

// Register asks the service for a new token.
func (c *Client) Register(ctx context.Context) (string, error) {
	return c.call(ctx, http.MethodGet, "/register", "", nil)
}

// Save uploads payload under key.
func (c *Client) Save(ctx context.Context, key, token, payload string) error {
	if strings.TrimSpace(key) == "" {
		return core.ErrEmptyKey
	}
	_, err := c.call(ctx, http.MethodPost, "/save/"+url.PathEscape(key), token, strings.NewReader(payload))
	return err
}

// Load downloads the payload stored under key.
func (c *Client) Load(ctx context.Context, key, token string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", core.ErrEmptyKey
	}
	return c.call(ctx, http.MethodGet, "/load/"+url.PathEscape(key), token, nil)
}

func (c *Client) call(ctx context.Context, method, path, token string, body io.Reader) (string, error) {
	target := c.base.String() + path
	if token != "" {
		target += "?" + url.Values{tokenParam: {token}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return "", fmt.Errorf("build kv request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("kv %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read kv response: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return string(data), nil
	}
	return "", statusError(resp.StatusCode, strings.TrimSpace(string(data)))
}

func statusError(status int, code string) error {
	switch code {
	case "unauthorized":
		return core.ErrUnauthorized
	case "empty_key":
		return core.ErrEmptyKey
	case "empty_payload":
		return core.ErrEmptyPayload
	case "key_not_found":
		return core.ErrKeyNotFound
	}
	if status == http.StatusForbidden {
		return core.ErrUnauthorized
	}
	return fmt.Errorf("kv: unexpected status %d: %s", status, code)
}
