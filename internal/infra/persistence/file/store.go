// Package file persists the manager state to a local text file using the
// line codec. The whole file is rewritten after every accepted mutation.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"tasktracker/internal/codec"
	"tasktracker/internal/infra/persistence"
	"tasktracker/internal/infra/persistence/memory"
	"tasktracker/pkg/domain"
)

var _ domain.Manager = (*Store)(nil)

// DefaultPath is used when no path is configured.
const DefaultPath = "tasks.csv"

// Store decorates a manager with file persistence.
type Store struct {
	*persistence.Decorator
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	mem    []memory.Option
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used for save and load events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMemoryOptions configures the in-memory store built by Open and Load.
func WithMemoryOptions(opts ...memory.Option) Option {
	return func(s *Store) { s.mem = append(s.mem, opts...) }
}

// New wraps inner. A nil inner starts from an empty memory store. Nothing is
// written until the first mutation.
func New(inner domain.Manager, path string, opts ...Option) *Store {
	s := configure(path, opts)
	if inner == nil {
		inner = memory.NewStore(s.mem...)
	}
	s.Decorator = persistence.Decorate(inner, s.Save)
	return s
}

// Open restores the store from path, or starts empty when the file does not
// exist yet.
func Open(path string, opts ...Option) (*Store, error) {
	s, err := Load(path, opts...)
	if errors.Is(err, fs.ErrNotExist) {
		return New(nil, path, opts...), nil
	}
	return s, err
}

// Load restores a store from an existing file. Missing, unreadable and
// malformed files all fail with domain.ErrLoad.
func Load(path string, opts ...Option) (*Store, error) {
	s := configure(path, opts)
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrLoad, s.path, err)
	}
	defer func() { _ = f.Close() }()
	loaded, err := Read(f, s.path, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return loaded, nil
}

// Read restores a store backed by path from r instead of the file itself.
// The file is rewritten on the next mutation.
func Read(r io.Reader, path string, opts ...Option) (*Store, error) {
	s := configure(path, opts)
	mem, err := Restore(r, s.mem...)
	if err != nil {
		return nil, err
	}
	s.Decorator = persistence.Decorate(mem, s.Save)
	s.logger.Debug("state loaded", "path", s.path, "tasks", len(mem.Tasks()), "epics", len(mem.Epics()), "subtasks", len(mem.Subtasks()))
	return s, nil
}

func configure(path string, opts []Option) *Store {
	if path == "" {
		path = DefaultPath
	}
	s := &Store{path: path, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore decodes a stream written by the codec into a fresh memory store.
func Restore(r io.Reader, opts ...memory.Option) (*memory.Store, error) {
	snap, err := codec.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLoad, err)
	}
	mem := memory.NewStore(opts...)
	if err := mem.ImportState(snap); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLoad, err)
	}
	return mem, nil
}

// Save writes the current state, replacing the file atomically.
func (s *Store) Save(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := codec.Marshal(s.ExportState())
	if err != nil {
		return fmt.Errorf("%w: encode: %w", domain.ErrSave, err)
	}
	if err := writeFile(s.path, data); err != nil {
		s.logger.Error("save failed", "path", s.path, "err", err)
		return fmt.Errorf("%w: %w", domain.ErrSave, err)
	}
	s.logger.Debug("state saved", "path", s.path, "bytes", len(data))
	return nil
}

// ReadAll returns the current file contents.
func (s *Store) ReadAll() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.ReadFile(s.path)
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create dirs: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tasks-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// atomically move into place
	return os.Rename(tmp.Name(), path)
}
