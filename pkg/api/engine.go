package api

import "context"

// SessionListOptions controls how sessions are listed.
// Zero values mean "no filter" for that field.
type SessionListOptions struct {
	// Status, if non-empty, limits results to sessions with the given status.
	Status Status
}

// Engine is the high-level triggering interface exposed to the surrounding
// API layer. Each call is a short-lived synchronous unit of work: the engine
// loads state, runs the graph to the next interrupt (a review gate or the
// terminal node), persists, and returns. It holds no persistent threads.
//
// Distinct sessions may be triggered concurrently without coordination. For
// one session, Advance and Resume are mutually exclusive; a second in-flight
// trigger fails with ErrConcurrentExecution.
type Engine interface {
	// Start allocates a new session id, constructs its initial state at the
	// graph's entry node seeded with the given metadata, persists it, and
	// returns it. No stage is executed yet.
	Start(ctx context.Context, metadata map[string]any) (*ProcessState, error)

	// StartWithID is Start with a caller-supplied session id. It fails with
	// ErrDuplicateSession if the id already exists.
	StartWithID(ctx context.Context, sessionID string, metadata map[string]any) (*ProcessState, error)

	// Advance merges input into the session payload and runs the graph from
	// the current node through any chain of stages, stopping only at a
	// review gate or the terminal node. The resulting state is persisted
	// with an incremented version before it is returned.
	//
	// Advancing a session already halted at a gate or at the terminal node
	// returns the state unchanged.
	Advance(ctx context.Context, sessionID string, input map[string]any) (*ProcessState, error)

	// Resume delivers a review decision to a session halted at a gate,
	// appends it to the decision log, routes to the gate's target, and then
	// behaves exactly like Advance from that point. It fails with
	// ErrNotAwaitingReview when the current node is not a halted gate.
	Resume(ctx context.Context, sessionID string, decision Decision, feedback string) (*ProcessState, error)

	// GetSession fetches the current state without making progress.
	GetSession(ctx context.Context, sessionID string) (*ProcessState, error)

	// ListSessions returns sessions matching the given options.
	ListSessions(ctx context.Context, opts SessionListOptions) ([]*ProcessState, error)
}
