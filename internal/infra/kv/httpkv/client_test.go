package httpkv_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"tasktracker/internal/adapters/kvserver"
	"tasktracker/internal/infra/kv/httpkv"
	"tasktracker/internal/infra/kv/memory"
	"tasktracker/internal/kv"
	"tasktracker/internal/kv/core"
)

func newClient(t *testing.T) *httpkv.Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(kvserver.New(kv.NewClient(memory.New())).Handler())
	t.Cleanup(srv.Close)
	c, err := httpkv.New(srv.URL + "/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestRoundTripThroughService(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	token, err := c.Register(ctx)
	if err != nil || token == "" {
		t.Fatalf("register: %q %v", token, err)
	}
	payload := "1,EPIC,e,NEW,d\n\n1\n"
	if err := c.Save(ctx, "my state", token, payload); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := c.Load(ctx, "my state", token)
	if err != nil || got != payload {
		t.Fatalf("load = %q %v", got, err)
	}
	if c.Driver() != core.DriverHTTP {
		t.Fatalf("driver = %s", c.Driver())
	}
}

func TestServiceErrorsMapToSentinels(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	token, _ := c.Register(ctx)
	if err := c.Save(ctx, "k", "bogus", "v"); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("bad token: %v", err)
	}
	if err := c.Save(ctx, "k", token, ""); !errors.Is(err, core.ErrEmptyPayload) {
		t.Fatalf("empty payload: %v", err)
	}
	if _, err := c.Load(ctx, "absent", token); !errors.Is(err, core.ErrKeyNotFound) {
		t.Fatalf("absent: %v", err)
	}
	if _, err := c.Load(ctx, "  ", token); !errors.Is(err, core.ErrEmptyKey) {
		t.Fatalf("blank key: %v", err)
	}
}

func TestUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()
	c, err := httpkv.New(srv.URL, httpkv.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Register(context.Background())
	if err == nil || errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("expected generic error, got %v", err)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := httpkv.New("ftp://example.com"); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := httpkv.New("http://[::1"); err == nil {
		t.Fatalf("expected parse error")
	}
}
