// Package redis implements a key-value bucket on a Redis server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tasktracker/internal/kv/core"
)

var _ core.Bucket = (*Bucket)(nil)

// DefaultPrefix namespaces every key written by the bucket.
const DefaultPrefix = "tasktracker:"

// Bucket implements core.Bucket using Redis strings.
type Bucket struct {
	client *redis.Client
	prefix string
}

// New connects to the server at redisURL and verifies the connection.
func New(ctx context.Context, redisURL string) (*Bucket, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewWithClient(client, DefaultPrefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string) *Bucket {
	return &Bucket{client: client, prefix: prefix}
}

// Driver returns the redis driver identifier.
func (b *Bucket) Driver() core.Driver { return core.DriverRedis }

func (b *Bucket) key(k string) string { return b.prefix + k }

// Get reads a value; redis.Nil maps to ok=false.
func (b *Bucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// Put writes a value without expiry.
func (b *Bucket) Put(ctx context.Context, key string, value []byte) error {
	if err := b.client.Set(ctx, b.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the client.
func (b *Bucket) Close() error { return b.client.Close() }
