package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"tasktracker/internal/kv/core"
)

func setupTestRedis(t *testing.T) (*Bucket, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	b, err := New(context.Background(), "redis://"+s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis bucket: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, s
}

func TestPutAndGet(t *testing.T) {
	b, s := setupTestRedis(t)
	ctx := context.Background()
	if err := b.Put(ctx, "state", []byte("payload")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := b.Get(ctx, "state")
	if err != nil || !ok || string(got) != "payload" {
		t.Fatalf("get = %q %v %v", got, ok, err)
	}
	raw, err := s.Get(DefaultPrefix + "state")
	if err != nil || raw != "payload" {
		t.Fatalf("stored under unexpected key: %q %v", raw, err)
	}
	if b.Driver() != core.DriverRedis {
		t.Fatalf("driver = %s", b.Driver())
	}
}

func TestGetMissing(t *testing.T) {
	b, _ := setupTestRedis(t)
	_, ok, err := b.Get(context.Background(), "absent")
	if err != nil || ok {
		t.Fatalf("missing key = %v %v", ok, err)
	}
}

func TestServerFailure(t *testing.T) {
	b, s := setupTestRedis(t)
	s.Close()
	if err := b.Put(context.Background(), "k", []byte("v")); err == nil {
		t.Fatalf("expected error after server shutdown")
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New(context.Background(), "not a url"); err == nil {
		t.Fatalf("expected parse error")
	}
}
