package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// StorageDriver selects the manager layering: memory, file or remote.
	StorageDriver   string
	FilePath        string
	HistoryCapacity int
	LogLevel        string
	// Metrics lists the exporters fed by the CLI, comma separated:
	// prometheus, expvar. Empty disables metrics.
	Metrics string
	// TraceFile receives one JSON line per manager operation when set.
	TraceFile string
	KV        KV
}

// KV configures the key-value backend used by the remote layer and served
// by the kvserver command.
type KV struct {
	Driver     string
	URL        string
	Key        string
	Token      string
	DebugToken string
	Addr       string
	// Redis
	RedisURL string
	// S3 / MinIO
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PathStyle       bool
	S3Prefix          string
	// SQL
	SQLitePath  string
	PostgresDSN string
}

func Load() Config {
	return Config{
		StorageDriver:   getenv("TASKTRACKER_STORAGE_DRIVER", "file"),
		FilePath:        getenv("TASKTRACKER_FILE_PATH", "tasks.csv"),
		HistoryCapacity: getenvInt("TASKTRACKER_HISTORY_CAPACITY", 10),
		LogLevel:        getenv("TASKTRACKER_LOG_LEVEL", "info"),
		Metrics:         getenv("TASKTRACKER_METRICS", ""),
		TraceFile:       getenv("TASKTRACKER_TRACE_FILE", ""),
		KV: KV{
			Driver:     getenv("TASKTRACKER_KV_DRIVER", "http"),
			URL:        getenv("TASKTRACKER_KV_URL", "http://localhost:8078"),
			Key:        getenv("TASKTRACKER_KV_KEY", "tasktracker"),
			Token:      getenv("TASKTRACKER_KV_TOKEN", ""),
			DebugToken: getenv("TASKTRACKER_KV_DEBUG_TOKEN", ""),
			Addr:       getenv("TASKTRACKER_KV_ADDR", "localhost:8078"),
			RedisURL:   getenv("TASKTRACKER_REDIS_URL", "redis://localhost:6379/0"),
			// S3 credentials fall back to the default AWS chain when empty
			S3Bucket:          getenv("TASKTRACKER_S3_BUCKET", ""),
			S3Region:          getenv("TASKTRACKER_S3_REGION", "us-east-1"),
			S3Endpoint:        getenv("TASKTRACKER_S3_ENDPOINT", ""),
			S3AccessKeyID:     getenv("TASKTRACKER_S3_ACCESS_KEY_ID", ""),
			S3SecretAccessKey: getenv("TASKTRACKER_S3_SECRET_ACCESS_KEY", ""),
			S3PathStyle:       getenvBool("TASKTRACKER_S3_PATH_STYLE", false),
			S3Prefix:          getenv("TASKTRACKER_S3_PREFIX", ""),
			SQLitePath:        getenv("TASKTRACKER_SQLITE_PATH", "tasktracker-kv.db"),
			PostgresDSN:       getenv("TASKTRACKER_POSTGRES_DSN", "postgres://localhost/tasktracker?sslmode=disable"),
		},
	}
}

// Level maps LogLevel onto a slog level, defaulting to info.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
