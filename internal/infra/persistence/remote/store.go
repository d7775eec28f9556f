// Package remote layers a key-value service on top of the file store: after
// the local file is rewritten, its full text is pushed as one payload under
// a fixed key.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tasktracker/internal/infra/persistence"
	"tasktracker/internal/infra/persistence/file"
	"tasktracker/internal/kv/core"
	"tasktracker/pkg/domain"
)

var _ domain.Manager = (*Store)(nil)

// DefaultKey is the key used when none is configured.
const DefaultKey = "tasktracker"

// Store decorates a file store with remote key-value persistence.
type Store struct {
	*persistence.Decorator
	local  *file.Store
	client core.Client
	key    string
	token  string
	logger *slog.Logger
	files  []file.Option
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used for push and pull events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFileOptions configures the file store built by Load.
func WithFileOptions(opts ...file.Option) Option {
	return func(s *Store) { s.files = append(s.files, opts...) }
}

// WithToken reuses an already issued token instead of registering.
func WithToken(token string) Option {
	return func(s *Store) { s.token = token }
}

// New wraps local, registering with client for a token unless one was given.
// Nothing is pushed until the first mutation.
func New(ctx context.Context, client core.Client, key string, local *file.Store, opts ...Option) (*Store, error) {
	s := configure(client, key, local, opts)
	if err := s.register(ctx); err != nil {
		return nil, err
	}
	s.Decorator = persistence.Decorate(local, s.push)
	return s, nil
}

// Load fetches the payload stored under key and restores it into a file
// store at path, which is rewritten on the next mutation. Every failure,
// including an unknown key, a rejected token or an empty payload, is
// reported as domain.ErrLoad.
func Load(ctx context.Context, client core.Client, key, path string, opts ...Option) (*Store, error) {
	s := configure(client, key, nil, opts)
	if err := s.register(ctx); err != nil {
		return nil, err
	}
	text, err := client.Load(ctx, s.key, s.token)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", domain.ErrLoad, s.key, err)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: fetch %s: %w", domain.ErrLoad, s.key, core.ErrEmptyPayload)
	}
	local, err := file.Read(strings.NewReader(text), path, s.files...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.key, err)
	}
	s.local = local
	s.Decorator = persistence.Decorate(s.local, s.push)
	s.logger.Debug("state pulled", "key", s.key, "driver", client.Driver(), "bytes", len(text))
	return s, nil
}

func configure(client core.Client, key string, local *file.Store, opts []Option) *Store {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{local: local, client: client, key: key, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) register(ctx context.Context) error {
	if s.token != "" {
		return nil
	}
	token, err := s.client.Register(ctx)
	if err != nil {
		return fmt.Errorf("%w: register with kv service: %w", domain.ErrLoad, err)
	}
	s.token = token
	return nil
}

// push runs after the file layer saved: the file is read back and sent as
// a whole.
func (s *Store) push(ctx context.Context) error {
	data, err := s.local.ReadAll()
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", domain.ErrSave, s.local.Path(), err)
	}
	payload := string(data)
	if payload == "" {
		// the service rejects empty payloads; a lone newline decodes to the
		// empty state
		payload = "\n"
	}
	if err := s.client.Save(ctx, s.key, s.token, payload); err != nil {
		s.logger.Error("push failed", "key", s.key, "driver", s.client.Driver(), "err", err)
		return fmt.Errorf("%w: push %s: %w", domain.ErrSave, s.key, err)
	}
	s.logger.Debug("state pushed", "key", s.key, "bytes", len(payload))
	return nil
}

// Key returns the remote key.
func (s *Store) Key() string { return s.key }

// Token returns the token used for every call.
func (s *Store) Token() string { return s.token }

// Local returns the wrapped file store.
func (s *Store) Local() *file.Store { return s.local }
