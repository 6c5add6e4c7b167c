package persistence

import (
	"context"

	"github.com/petrijr/gateflow/pkg/api"
)

// SessionFilter is used to select sessions from the store.
// Zero values mean "no filter" for that field.
type SessionFilter struct {
	Status api.Status
}

// SessionStore is the durable key/value contract the executor persists
// process state through.
//
// Put implements optimistic concurrency: expectedVersion is the version the
// caller loaded (0 for a brand-new session). The store commits only when the
// stored version still matches, otherwise it fails with
// api.ErrVersionConflict (or api.ErrDuplicateSession when expectedVersion is
// 0 and the session already exists). state.Version is expected to be
// expectedVersion+1 at the time of the call; the write is atomic with that
// version bump.
//
// Stores may be configured with a time-to-live; once an entry expires, Get
// reports api.ErrSessionNotFound.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*api.ProcessState, error)
	Put(ctx context.Context, state *api.ProcessState, expectedVersion int64) error
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context, filter SessionFilter) ([]*api.ProcessState, error)
}
