// Package kvserver exposes a kv/core.Client over HTTP so remote task
// managers can persist their state:
//
//	GET  /register               -> API token (text)
//	POST /save/:key?API_TOKEN=   body is the payload
//	GET  /load/:key?API_TOKEN=   -> payload (text)
//
// Failures answer 403 for a bad token, 400 for an empty key, an empty
// payload or an unknown key, and 405 for a wrong method. The response body
// of a failure is one of the Code* values.
package kvserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tasktracker/internal/kv/core"
)

// Error codes written as the body of failed responses.
const (
	CodeUnauthorized = "unauthorized"
	CodeEmptyKey     = "empty_key"
	CodeEmptyPayload = "empty_payload"
	CodeKeyNotFound  = "key_not_found"
	CodeInternal     = "internal"
)

// TokenParam is the query parameter carrying the API token.
const TokenParam = "API_TOKEN"

// DefaultAddr matches the port the service has always listened on.
const DefaultAddr = "localhost:8078"

// Server is the key-value HTTP service.
type Server struct {
	store    core.Client
	logger   *slog.Logger
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	router   *gin.Engine
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry counts requests in reg and serves it on GET /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// New builds the router around store.
func New(store core.Client, opts ...Option) *Server {
	s := &Server{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery(), s.logRequests)

	router.GET("/register", s.handleRegister)
	router.POST("/save/:key", s.handleSave)
	router.GET("/load/:key", s.handleLoad)

	if s.registry != nil {
		s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasktracker_kv_requests_total",
			Help: "KV service requests by route and status code.",
		}, []string{"route", "code"})
		s.registry.MustRegister(s.requests)
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("kv server listening", "addr", addr, "driver", s.store.Driver())
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleRegister(c *gin.Context) {
	token, err := s.store.Register(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.String(http.StatusOK, token)
}

func (s *Server) handleSave(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, CodeEmptyPayload)
		return
	}
	if err := s.store.Save(c.Request.Context(), c.Param("key"), c.Query(TokenParam), string(body)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleLoad(c *gin.Context) {
	value, err := s.store.Load(c.Request.Context(), c.Param("key"), c.Query(TokenParam))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.String(http.StatusOK, value)
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("kv request failed", "path", c.FullPath(), "err", err)
	}
	c.String(status, code)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusForbidden, CodeUnauthorized
	case errors.Is(err, core.ErrEmptyKey):
		return http.StatusBadRequest, CodeEmptyKey
	case errors.Is(err, core.ErrEmptyPayload):
		return http.StatusBadRequest, CodeEmptyPayload
	case errors.Is(err, core.ErrKeyNotFound):
		return http.StatusBadRequest, CodeKeyNotFound
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	if s.requests != nil && c.FullPath() != "/metrics" {
		s.requests.WithLabelValues(c.FullPath(), strconv.Itoa(c.Writer.Status())).Inc()
	}
	s.logger.Debug("kv request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}
