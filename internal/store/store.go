package store

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/isoca/internal/shared"
)

// Change describes a write to a key made by some origin.
type Change struct {
	Key     string
	Value   string
	Present bool
	Origin  string
}

// Backend is key/value storage shared between execution contexts.
type Backend interface {
	// Origin identifies this instance in the change records it produces.
	Origin() string
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Watch delivers changes to key written by other origins until ctx is done.
	//
	// The channel keeps only the most recent undelivered change.
	Watch(ctx context.Context, key string) (<-chan Change, error)
	Close() error
}

// TokenStore owns the access token key of a [Backend].
type TokenStore struct {
	backend Backend
	key     string
	logger  *log.Logger
}

// NewTokenStore creates a [TokenStore] for key on backend.
func NewTokenStore(backend Backend, key string, logger *log.Logger) *TokenStore {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &TokenStore{
		backend: backend,
		key:     key,
		logger:  shared.WithLogger(logger, "component", "store", "key", key),
	}
}

// Key returns the storage key holding the token.
func (s *TokenStore) Key() string { return s.key }

// Origin returns the origin id of the underlying backend.
func (s *TokenStore) Origin() string { return s.backend.Origin() }

// Get returns the stored token. Storage errors read as no token.
func (s *TokenStore) Get(ctx context.Context) (string, bool) {
	value, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("token read failed", "error", err)
		return "", false
	}
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// Set stores token. An empty token clears the key.
func (s *TokenStore) Set(ctx context.Context, token string) {
	if token == "" {
		s.Clear(ctx)
		return
	}
	if err := s.backend.Set(ctx, s.key, token); err != nil {
		s.logger.Warn("token write failed", "error", err)
		return
	}
	s.logger.Debug("token stored", "token", shared.MaskToken(token))
}

// Clear removes the token.
func (s *TokenStore) Clear(ctx context.Context) {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		s.logger.Warn("token clear failed", "error", err)
		return
	}
	s.logger.Debug("token cleared")
}

// Watch reports token changes made by other origins until ctx is done.
//
// When the backend cannot watch, the returned channel stays silent and closes with ctx.
func (s *TokenStore) Watch(ctx context.Context) <-chan Change {
	changes, err := s.backend.Watch(ctx, s.key)
	if err != nil {
		s.logger.Warn("token watch unavailable", "error", err)
		silent := make(chan Change)
		go func() {
			<-ctx.Done()
			close(silent)
		}()
		return silent
	}
	return changes
}

// mailbox is a one-slot channel that keeps only the most recent change.
type mailbox struct {
	mu     sync.Mutex
	ch     chan Change
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan Change, 1)}
}

func (m *mailbox) put(c Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case <-m.ch:
	default:
	}
	m.ch <- c
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
}
