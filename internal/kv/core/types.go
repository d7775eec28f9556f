// Package core defines the key-value contract the remote persistence layer
// talks to, independent of the backend that actually stores the payloads.
package core

import (
	"context"
	"errors"
)

// Driver identifies a key-value backend implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // process memory (tests, ephemeral)
	DriverHTTP     Driver = "http"     // remote KV HTTP service
	DriverRedis    Driver = "redis"    // redis server
	DriverS3       Driver = "s3"       // S3 / MinIO compatible bucket
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// ReservedPrefix is the key namespace holding issued API tokens. Payload keys
// may not start with it.
const ReservedPrefix = "__token__/"

var (
	// ErrUnauthorized reports a missing or unknown API token.
	ErrUnauthorized = errors.New("kv: unauthorized")
	// ErrKeyNotFound reports a load of a key that was never saved.
	ErrKeyNotFound = errors.New("kv: key not found")
	// ErrEmptyPayload reports an attempt to save an empty value.
	ErrEmptyPayload = errors.New("kv: empty payload")
	// ErrEmptyKey reports an empty or reserved key.
	ErrEmptyKey = errors.New("kv: empty key")
)

// Client is the authenticated contract: register once for a token, then
// save and load text payloads by key.
type Client interface {
	Register(ctx context.Context) (string, error)
	Save(ctx context.Context, key, token, payload string) error
	Load(ctx context.Context, key, token string) (string, error)
	Driver() Driver
}

// Bucket is the raw storage a Client is layered on. Get reports ok=false for
// an absent key.
type Bucket interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Driver() Driver
}
