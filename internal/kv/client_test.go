package kv_test

import (
	"context"
	"errors"
	"testing"

	"tasktracker/internal/infra/kv/memory"
	"tasktracker/internal/kv"
	"tasktracker/internal/kv/core"
)

func TestTokenClientLifecycle(t *testing.T) {
	ctx := context.Background()
	c := kv.NewClient(memory.New())
	token, err := c.Register(ctx)
	if err != nil || token == "" {
		t.Fatalf("register: %q %v", token, err)
	}
	if err := c.Save(ctx, "state", token, "1,EPIC,e,NEW,d"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := c.Load(ctx, "state", token)
	if err != nil || got != "1,EPIC,e,NEW,d" {
		t.Fatalf("load = %q, %v", got, err)
	}
	if err := c.Save(ctx, "state", token, "replaced"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _ := c.Load(ctx, "state", token); got != "replaced" {
		t.Fatalf("overwrite not visible: %q", got)
	}
	if c.Driver() != core.DriverMemory {
		t.Fatalf("driver = %s", c.Driver())
	}
}

func TestTokenClientErrors(t *testing.T) {
	ctx := context.Background()
	bucket := memory.New()
	c := kv.NewClient(bucket, kv.WithTokenSource(func() string { return "fixed" }))
	token, _ := c.Register(ctx)
	if token != "fixed" {
		t.Fatalf("token = %s", token)
	}
	if err := bucket.Put(ctx, "blank", []byte{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cases := []struct {
		name string
		fn   func() error
		want error
	}{
		{"save without token", func() error { return c.Save(ctx, "k", "", "v") }, core.ErrUnauthorized},
		{"save unknown token", func() error { return c.Save(ctx, "k", "nope", "v") }, core.ErrUnauthorized},
		{"load unknown token", func() error { _, err := c.Load(ctx, "k", "nope"); return err }, core.ErrUnauthorized},
		{"save empty key", func() error { return c.Save(ctx, " ", token, "v") }, core.ErrEmptyKey},
		{"save reserved key", func() error { return c.Save(ctx, core.ReservedPrefix+"x", token, "v") }, core.ErrEmptyKey},
		{"save empty payload", func() error { return c.Save(ctx, "k", token, "") }, core.ErrEmptyPayload},
		{"load missing key", func() error { _, err := c.Load(ctx, "missing", token); return err }, core.ErrKeyNotFound},
		{"load empty key", func() error { _, err := c.Load(ctx, "", token); return err }, core.ErrEmptyKey},
		{"load zero-length value", func() error { _, err := c.Load(ctx, "blank", token); return err }, core.ErrEmptyPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.fn(); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
	if bucket.Len() != 2 {
		t.Fatalf("failed calls wrote to the bucket: %d keys", bucket.Len())
	}
}

func TestTokensSharedThroughBucket(t *testing.T) {
	ctx := context.Background()
	bucket := memory.New()
	token, err := kv.NewClient(bucket).Register(ctx)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	other := kv.NewClient(bucket)
	if err := other.Save(ctx, "k", token, "v"); err != nil {
		t.Fatalf("token not accepted by second client: %v", err)
	}
}

func TestDebugToken(t *testing.T) {
	ctx := context.Background()
	c := kv.NewClient(memory.New(), kv.WithDebugToken("DEBUG"))
	if err := c.Save(ctx, "k", "DEBUG", "v"); err != nil {
		t.Fatalf("debug token rejected: %v", err)
	}
	plain := kv.NewClient(memory.New())
	if err := plain.Save(ctx, "k", "DEBUG", "v"); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("debug token accepted without opt-in: %v", err)
	}
}
