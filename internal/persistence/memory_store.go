package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/petrijr/gateflow/pkg/api"
)

// MemoryStore is a goroutine-safe SessionStore backed by a map. It is
// non-durable and intended for tests and single-process demos.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration

	// now is swappable in tests.
	now func() time.Time
}

type memoryEntry struct {
	state     *api.ProcessState
	expiresAt time.Time // zero means no expiry
}

var _ SessionStore = (*MemoryStore)(nil)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryTTL sets the session time-to-live. Zero means entries never
// expire.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.ttl = ttl
	}
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*api.ProcessState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", api.ErrSessionNotFound, sessionID)
	}
	if s.expired(e) {
		delete(s.entries, sessionID)
		return nil, fmt.Errorf("%w: %s", api.ErrSessionNotFound, sessionID)
	}
	return e.state.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, state *api.ProcessState, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[state.SessionID]
	if ok && s.expired(e) {
		delete(s.entries, state.SessionID)
		ok = false
	}

	if expectedVersion == 0 {
		if ok {
			return fmt.Errorf("%w: %s", api.ErrDuplicateSession, state.SessionID)
		}
	} else {
		if !ok {
			return fmt.Errorf("%w: %s", api.ErrSessionNotFound, state.SessionID)
		}
		if e.state.Version != expectedVersion {
			return fmt.Errorf("%w: %s expected %d, stored %d",
				api.ErrVersionConflict, state.SessionID, expectedVersion, e.state.Version)
		}
	}

	var expiresAt time.Time
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
	}
	s.entries[state.SessionID] = memoryEntry{
		state:     state.Clone(),
		expiresAt: expiresAt,
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, sessionID)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, filter SessionFilter) ([]*api.ProcessState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*api.ProcessState
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			continue
		}
		if filter.Status != "" && e.state.Status != filter.Status {
			continue
		}
		result = append(result, e.state.Clone())
	}
	return result, nil
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}
