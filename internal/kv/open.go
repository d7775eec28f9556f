package kv

import (
	"context"
	"fmt"
	"io"

	"tasktracker/internal/config"
	"tasktracker/internal/infra/kv/httpkv"
	"tasktracker/internal/infra/kv/memory"
	"tasktracker/internal/infra/kv/postgres"
	"tasktracker/internal/infra/kv/redis"
	"tasktracker/internal/infra/kv/s3"
	"tasktracker/internal/infra/kv/sqlite"
	"tasktracker/internal/kv/core"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open selects a Client for cfg.Driver (default http):
//
//	memory    process-local bucket
//	http      remote KV HTTP service at cfg.URL
//	redis     cfg.RedisURL
//	s3        cfg.S3Bucket (cfg.S3Endpoint + cfg.S3PathStyle for MinIO)
//	sqlite    cfg.SQLitePath
//	postgres  cfg.PostgresDSN
//
// Bucket backed drivers issue their own tokens and honour cfg.DebugToken.
// The returned Closer releases backend connections.
func Open(ctx context.Context, cfg config.KV) (core.Client, io.Closer, error) {
	driver := core.Driver(cfg.Driver)
	if driver == "" {
		driver = core.DriverHTTP
	}
	if driver == core.DriverHTTP {
		c, err := httpkv.New(cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		return c, nopCloser{}, nil
	}
	bucket, closer, err := openBucket(ctx, driver, cfg)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(bucket, WithDebugToken(cfg.DebugToken)), closer, nil
}

func openBucket(ctx context.Context, driver core.Driver, cfg config.KV) (core.Bucket, io.Closer, error) {
	switch driver {
	case core.DriverMemory:
		return memory.New(), nopCloser{}, nil
	case core.DriverRedis:
		b, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case core.DriverS3:
		b, err := s3.New(ctx, s3.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PathStyle:       cfg.S3PathStyle,
			Prefix:          cfg.S3Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, nopCloser{}, nil
	case core.DriverSQLite:
		b, err := sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case core.DriverPostgres:
		b, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	default:
		return nil, nil, fmt.Errorf("unknown kv driver %s", driver)
	}
}
