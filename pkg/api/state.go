package api

import (
	"time"
)

// Status represents the lifecycle state of a pipeline session.
type Status string

const (
	// StatusInProgress means the session has stages left to run and is not
	// currently parked at a review gate.
	StatusInProgress Status = "in_progress"

	// StatusAwaitingReview means the session is halted at a review gate and
	// will not move until Resume delivers a decision.
	StatusAwaitingReview Status = "awaiting_review"

	// StatusCompleted means the session reached the terminal node.
	StatusCompleted Status = "completed"
)

// Decision is the outcome of a human review at a gate.
type Decision string

const (
	// DecisionApproved advances the session to the gate's approve target.
	DecisionApproved Decision = "approved"

	// DecisionFeedback routes the session back to the producing stage so it
	// re-runs with the reviewer's feedback folded into its input.
	DecisionFeedback Decision = "feedback"
)

// FeedbackInputKey is the reserved generator-input key under which the
// executor passes reviewer feedback to a stage that is re-run after a
// feedback decision. Stages must not declare it as a required dependency.
const FeedbackInputKey = "feedback"

// DecisionEntry records one review-gate traversal.
type DecisionEntry struct {
	Node      string
	Decision  Decision
	Feedback  string
	Timestamp time.Time
}

// ProcessState is the single mutable record threaded through the graph for
// one session. It is what the session store persists and restores.
//
// Payload maps a stage's output key to that stage's accumulated output.
// Keys are added monotonically; a value is only ever overwritten by the
// stage that owns it (or seeded once at Start from caller metadata).
type ProcessState struct {
	SessionID   string
	CurrentNode string
	Status      Status

	// Version strictly increases with every store write for this session.
	// It is the optimistic-concurrency token for Put.
	Version int64

	Payload     map[string]any
	DecisionLog []DecisionEntry
}

// NewProcessState creates the initial state for a fresh session positioned
// at the given entry node. The metadata map seeds the payload; a nil map is
// allowed.
func NewProcessState(sessionID, entryNode string, metadata map[string]any) *ProcessState {
	payload := make(map[string]any, len(metadata))
	for k, v := range metadata {
		payload[k] = v
	}
	return &ProcessState{
		SessionID:   sessionID,
		CurrentNode: entryNode,
		Status:      StatusInProgress,
		Version:     0,
		Payload:     payload,
	}
}

// Clone returns a copy of the state with its own payload map and decision
// log. Payload values are shared; they are treated as immutable once a
// stage has written them.
func (s *ProcessState) Clone() *ProcessState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Payload = make(map[string]any, len(s.Payload))
	for k, v := range s.Payload {
		cp.Payload[k] = v
	}
	cp.DecisionLog = make([]DecisionEntry, len(s.DecisionLog))
	copy(cp.DecisionLog, s.DecisionLog)
	return &cp
}
