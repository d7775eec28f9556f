// Package kv turns raw key-value buckets into authenticated clients and picks
// a backend from configuration.
package kv

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tasktracker/internal/kv/core"
)

var _ core.Client = (*TokenClient)(nil)

// TokenClient implements core.Client on top of a Bucket. Issued tokens are
// stored in the same bucket under core.ReservedPrefix, so every client
// sharing the bucket accepts them.
type TokenClient struct {
	bucket     core.Bucket
	debugToken string
	newToken   func() string
}

// ClientOption customizes a TokenClient.
type ClientOption func(*TokenClient)

// WithDebugToken accepts token on every call without registration. An empty
// token disables the bypass.
func WithDebugToken(token string) ClientOption {
	return func(c *TokenClient) { c.debugToken = token }
}

// WithTokenSource replaces the uuid token generator.
func WithTokenSource(fn func() string) ClientOption {
	return func(c *TokenClient) {
		if fn != nil {
			c.newToken = fn
		}
	}
}

// NewClient layers token handling over bucket.
func NewClient(bucket core.Bucket, opts ...ClientOption) *TokenClient {
	c := &TokenClient{bucket: bucket, newToken: uuid.NewString}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Driver reports the driver of the underlying bucket.
func (c *TokenClient) Driver() core.Driver { return c.bucket.Driver() }

// Register issues and records a fresh token.
func (c *TokenClient) Register(ctx context.Context) (string, error) {
	token := c.newToken()
	if err := c.bucket.Put(ctx, core.ReservedPrefix+token, []byte("1")); err != nil {
		return "", fmt.Errorf("register token: %w", err)
	}
	return token, nil
}

// Save stores payload under key.
func (c *TokenClient) Save(ctx context.Context, key, token, payload string) error {
	if err := c.authorize(ctx, token); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}
	if payload == "" {
		return core.ErrEmptyPayload
	}
	if err := c.bucket.Put(ctx, key, []byte(payload)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Load returns the payload stored under key. A stored zero-length value is
// reported as core.ErrEmptyPayload.
func (c *TokenClient) Load(ctx context.Context, key, token string) (string, error) {
	if err := c.authorize(ctx, token); err != nil {
		return "", err
	}
	if err := checkKey(key); err != nil {
		return "", err
	}
	value, ok, err := c.bucket.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", key, core.ErrKeyNotFound)
	}
	if len(value) == 0 {
		return "", fmt.Errorf("%s: %w", key, core.ErrEmptyPayload)
	}
	return string(value), nil
}

func (c *TokenClient) authorize(ctx context.Context, token string) error {
	if token == "" {
		return core.ErrUnauthorized
	}
	if c.debugToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(c.debugToken)) == 1 {
		return nil
	}
	_, ok, err := c.bucket.Get(ctx, core.ReservedPrefix+token)
	if err != nil {
		return fmt.Errorf("check token: %w", err)
	}
	if !ok {
		return core.ErrUnauthorized
	}
	return nil
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, core.ReservedPrefix) {
		return core.ErrEmptyKey
	}
	return nil
}
