package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"tasktracker/internal/config"
	"tasktracker/internal/infra/persistence/file"
	"tasktracker/internal/infra/persistence/memory"
	"tasktracker/internal/infra/persistence/remote"
	"tasktracker/internal/kv"
	kvcore "tasktracker/internal/kv/core"
	"tasktracker/pkg/domain"
)

// StorageDriver identifies how the manager state is persisted.
type StorageDriver string

const (
	StorageMemory StorageDriver = "memory" // in-memory only (tests / ephemeral)
	StorageFile   StorageDriver = "file"   // local text file
	StorageRemote StorageDriver = "remote" // local file mirrored to a kv service
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenManager builds the manager stack selected by cfg.StorageDriver
// (default file). For remote storage an unknown key starts from the local
// file (or empty) instead of failing, so the first run can bootstrap the
// remote copy. The returned Closer releases kv backend connections.
func OpenManager(ctx context.Context, cfg config.Config, logger *slog.Logger) (domain.Manager, io.Closer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	driver := StorageDriver(cfg.StorageDriver)
	if driver == "" {
		driver = StorageFile
	}
	var memOpts []memory.Option
	if cfg.HistoryCapacity > 0 {
		memOpts = append(memOpts, memory.WithHistoryCapacity(cfg.HistoryCapacity))
	}
	fileOpts := []file.Option{file.WithLogger(logger), file.WithMemoryOptions(memOpts...)}

	switch driver {
	case StorageMemory:
		return memory.NewStore(memOpts...), nopCloser{}, nil
	case StorageFile:
		s, err := file.Open(cfg.FilePath, fileOpts...)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case StorageRemote:
		client, closer, err := kv.Open(ctx, cfg.KV)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", domain.ErrLoad, err)
		}
		s, err := openRemote(ctx, client, cfg, logger, fileOpts)
		if err != nil {
			_ = closer.Close()
			return nil, nil, err
		}
		return s, closer, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

func openRemote(ctx context.Context, client kvcore.Client, cfg config.Config, logger *slog.Logger, fileOpts []file.Option) (*remote.Store, error) {
	opts := []remote.Option{remote.WithLogger(logger), remote.WithFileOptions(fileOpts...)}
	if cfg.KV.Token != "" {
		opts = append(opts, remote.WithToken(cfg.KV.Token))
	}
	s, err := remote.Load(ctx, client, cfg.KV.Key, cfg.FilePath, opts...)
	if !errors.Is(err, kvcore.ErrKeyNotFound) {
		return s, err
	}
	logger.Info("remote key not found, starting from local state", "key", cfg.KV.Key, "path", cfg.FilePath)
	local, err := file.Open(cfg.FilePath, fileOpts...)
	if err != nil {
		return nil, err
	}
	return remote.New(ctx, client, cfg.KV.Key, local, opts...)
}
