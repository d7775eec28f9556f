package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tasktracker/internal/config"
	"tasktracker/internal/infra/persistence/file"
	"tasktracker/internal/infra/persistence/memory"
	"tasktracker/internal/infra/persistence/remote"
	"tasktracker/pkg/domain"
)

func TestOpenManagerDrivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m, closer, err := OpenManager(ctx, config.Config{StorageDriver: "memory", HistoryCapacity: 2}, nil)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	_ = closer.Close()
	if _, ok := m.(*memory.Store); !ok {
		t.Fatalf("memory driver returned %T", m)
	}

	m, closer, err = OpenManager(ctx, config.Config{FilePath: filepath.Join(dir, "tasks.csv")}, nil)
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	_ = closer.Close()
	if _, ok := m.(*file.Store); !ok {
		t.Fatalf("default driver returned %T", m)
	}

	if _, _, err := OpenManager(ctx, config.Config{StorageDriver: "tape"}, nil); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestOpenManagerFileRestores(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{StorageDriver: "file", FilePath: filepath.Join(t.TempDir(), "tasks.csv")}
	m, _, err := OpenManager(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := m.AddEpic(ctx, &domain.Epic{Name: "persisted"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	again, _, err := OpenManager(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if epics := again.Epics(); len(epics) != 1 || epics[0].Name != "persisted" {
		t.Fatalf("epics = %+v", epics)
	}

	if err := os.WriteFile(cfg.FilePath, []byte("garbage\n"), 0o600); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, _, err := OpenManager(ctx, cfg, nil); !errors.Is(err, domain.ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
}

func TestOpenManagerRemoteBootstrapsThenRestores(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// sqlite keeps the remote copy across the two opens
	kvCfg := config.KV{Driver: "sqlite", SQLitePath: filepath.Join(dir, "kv.db"), Key: "board", DebugToken: "DEBUG", Token: "DEBUG"}
	cfg := config.Config{StorageDriver: "remote", FilePath: filepath.Join(dir, "a.csv"), KV: kvCfg}

	m, closer, err := OpenManager(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, ok := m.(*remote.Store); !ok {
		t.Fatalf("remote driver returned %T", m)
	}
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	if _, err := m.AddTask(ctx, &domain.Task{Name: "sync me", StartTime: start, Duration: time.Hour}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_ = closer.Close()

	// a different local path proves the state came from the kv backend
	cfg.FilePath = filepath.Join(dir, "b.csv")
	restored, closer, err := OpenManager(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	defer func() { _ = closer.Close() }()
	if tasks := restored.Tasks(); len(tasks) != 1 || tasks[0].Name != "sync me" {
		t.Fatalf("tasks = %+v", tasks)
	}
}

func TestOpenManagerRemoteBackendFailure(t *testing.T) {
	cfg := config.Config{StorageDriver: "remote", KV: config.KV{Driver: "etcd"}}
	if _, _, err := OpenManager(context.Background(), cfg, nil); !errors.Is(err, domain.ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
}
