package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	errorskg "github.com/sweetpotato0/ai-devteam/errors"
	"github.com/sweetpotato0/ai-devteam/pkg/logging"
)

// Factory builds the session for a new id.
type Factory func(ctx context.Context, id string) (*Session, error)

// NewFactory returns a factory creating sessions that share deps.
func NewFactory(deps Dependencies) Factory {
	return func(_ context.Context, id string) (*Session, error) {
		return New(id, deps)
	}
}

// Registry owns the live sessions. Sessions are created on first use.
type Registry struct {
	factory Factory
	group   singleflight.Group
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger overrides the logger used by the registry.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory, opts ...RegistryOption) *Registry {
	r := &Registry{
		factory:  factory,
		sessions: make(map[string]*Session),
		logger:   logging.WithComponent("session_registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate returns the session for id, creating it once. Concurrent
// callers for an unseen id share one factory call and its result. A failed
// creation is not remembered.
func (r *Registry) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session id is required", errorskg.ErrInvalidInput)
	}
	if s, ok := r.Get(id); ok {
		return s, nil
	}

	v, err, shared := r.group.Do(id, func() (any, error) {
		if s, ok := r.Get(id); ok {
			return s, nil
		}
		s, err := r.factory(ctx, id)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.sessions[id] = s
		r.mu.Unlock()
		r.logger.Info("session created", "session_id", id)
		return s, nil
	})
	if err != nil {
		r.logger.Error("session creation failed", "session_id", id, "error", err, "shared", shared)
		return nil, err
	}
	return v.(*Session), nil
}

// Get returns the session for id without creating it.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove evicts the session and reports whether it existed. A run already in
// flight finishes against the removed session; the next request for id gets a
// fresh one.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	r.logger.Info("session removed", "session_id", id, "busy", s.Busy())
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the live session ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
