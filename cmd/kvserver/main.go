// Command kvserver runs the key-value HTTP service the remote storage driver
// of tasktracker persists to.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"tasktracker/internal/adapters/kvserver"
	"tasktracker/internal/config"
	"tasktracker/internal/kv"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()
	var metrics bool
	cmd := &cobra.Command{
		Use:   "kvserver",
		Short: "Serve the tasktracker key-value store over HTTP",
		Long: `Serve the tasktracker key-value store over HTTP.

Examples:
  kvserver --addr :8078
  kvserver --driver redis --redis-url redis://localhost:6379/0
  kvserver --driver sqlite --sqlite-path ./kv.db --debug-token DEBUG`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Level()}))
			if cfg.KV.Driver == "http" {
				return fmt.Errorf("kvserver cannot proxy another kv service; choose a storage driver")
			}
			client, closer, err := kv.Open(cmd.Context(), cfg.KV)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			gin.SetMode(gin.ReleaseMode)
			opts := []kvserver.Option{kvserver.WithLogger(logger)}
			if metrics {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				opts = append(opts, kvserver.WithRegistry(reg))
			}
			return kvserver.New(client, opts...).ListenAndServe(cmd.Context(), cfg.KV.Addr)
		},
	}
	if cfg.KV.Driver == "http" {
		cfg.KV.Driver = "memory"
	}
	f := cmd.Flags()
	f.StringVar(&cfg.KV.Addr, "addr", cfg.KV.Addr, "listen address")
	f.StringVar(&cfg.KV.Driver, "driver", cfg.KV.Driver, "storage driver (memory, redis, s3, sqlite, postgres)")
	f.StringVar(&cfg.KV.DebugToken, "debug-token", cfg.KV.DebugToken, "token accepted without registration (empty disables)")
	f.StringVar(&cfg.KV.RedisURL, "redis-url", cfg.KV.RedisURL, "redis url")
	f.StringVar(&cfg.KV.SQLitePath, "sqlite-path", cfg.KV.SQLitePath, "sqlite database path")
	f.StringVar(&cfg.KV.PostgresDSN, "postgres-dsn", cfg.KV.PostgresDSN, "postgres dsn")
	f.StringVar(&cfg.KV.S3Bucket, "s3-bucket", cfg.KV.S3Bucket, "s3 bucket")
	f.StringVar(&cfg.KV.S3Endpoint, "s3-endpoint", cfg.KV.S3Endpoint, "s3 endpoint (MinIO)")
	f.BoolVar(&cfg.KV.S3PathStyle, "s3-path-style", cfg.KV.S3PathStyle, "use path style s3 addressing")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	f.BoolVar(&metrics, "metrics", true, "serve prometheus metrics on /metrics")
	return cmd
}
