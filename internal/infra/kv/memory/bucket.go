// Package memory implements an in-memory key-value bucket for tests and
// ephemeral servers.
package memory

import (
	"context"
	"slices"
	"sync"

	"tasktracker/internal/kv/core"
)

var _ core.Bucket = (*Bucket)(nil)

// Bucket implements core.Bucket backed by process memory.
type Bucket struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty bucket.
func New() *Bucket { return &Bucket{data: make(map[string][]byte)} }

// Driver returns the memory driver identifier.
func (b *Bucket) Driver() core.Driver { return core.DriverMemory }

// Get returns a copy of the stored value.
func (b *Bucket) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

// Put stores value, replacing any previous one.
func (b *Bucket) Put(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = slices.Clone(value)
	return nil
}

// Len reports the number of stored keys, tokens included.
func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}
