package api

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown or its
	// store entry has expired. Callers must restart the workflow.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateSession is returned by StartWithID when the supplied
	// session id already exists in the store.
	ErrDuplicateSession = errors.New("session already exists")

	// ErrUnknownNode indicates a node name that is not registered in the
	// workflow graph. It is a graph misconfiguration, never retried.
	ErrUnknownNode = errors.New("unknown node")

	// ErrInvalidDecision indicates a gate received a decision outside
	// {approved, feedback}.
	ErrInvalidDecision = errors.New("invalid decision")

	// ErrMissingDependency indicates a stage was entered before a payload
	// key it depends on was produced. It signals the graph was entered out
	// of order and is fatal to the request.
	ErrMissingDependency = errors.New("missing payload dependency")

	// ErrNotAwaitingReview is returned by Resume when the session is not
	// halted at a review gate.
	ErrNotAwaitingReview = errors.New("session is not awaiting review")

	// ErrConcurrentExecution is returned when a second traversal is
	// triggered for a session that already has one in flight. It is
	// transient; the caller may retry the same trigger.
	ErrConcurrentExecution = errors.New("concurrent execution for session")

	// ErrVersionConflict is returned by the store when a persist races with
	// another writer. It is transient; the caller may retry.
	ErrVersionConflict = errors.New("session version conflict")
)

// GenerationError wraps a failure of the external generator bound to a
// stage. The executor does not retry it; the last successfully persisted
// state remains authoritative, so retrying the same trigger is safe.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed at stage %q: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError wraps err as a generation failure at the given stage.
func NewGenerationError(stage string, err error) error {
	return &GenerationError{Stage: stage, Err: err}
}

// AsGenerationError returns the GenerationError in err's chain, if any.
func AsGenerationError(err error) (*GenerationError, bool) {
	var g *GenerationError
	if errors.As(err, &g) {
		return g, true
	}
	return nil, false
}
