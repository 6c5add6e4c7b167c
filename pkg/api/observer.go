package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the executor for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay traversals.
type Observer interface {
	// OnSessionStart is called once when a session is first created by
	// Start, after its initial state has been persisted.
	OnSessionStart(ctx context.Context, state *ProcessState)

	// OnStageStart is called before a stage's generator is invoked.
	OnStageStart(ctx context.Context, state *ProcessState, stage string)

	// OnStageCompleted is called after a stage's generator returns, for
	// both successes and failures (err != nil).
	OnStageCompleted(ctx context.Context, state *ProcessState, stage string, err error, duration time.Duration)

	// OnGateHalted is called when a traversal parks at a review gate.
	OnGateHalted(ctx context.Context, state *ProcessState, gate string)

	// OnGateDecision is called when Resume delivers a decision to a gate,
	// after the decision has been appended to the decision log.
	OnGateDecision(ctx context.Context, state *ProcessState, gate string, decision Decision)

	// OnSessionCompleted is called when a session reaches the terminal node.
	OnSessionCompleted(ctx context.Context, state *ProcessState)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnSessionStart(ctx context.Context, state *ProcessState)           {}
func (NoopObserver) OnStageStart(ctx context.Context, state *ProcessState, stage string) {}
func (NoopObserver) OnStageCompleted(ctx context.Context, state *ProcessState, stage string, err error, d time.Duration) {
}
func (NoopObserver) OnGateHalted(ctx context.Context, state *ProcessState, gate string) {}
func (NoopObserver) OnGateDecision(ctx context.Context, state *ProcessState, gate string, decision Decision) {
}
func (NoopObserver) OnSessionCompleted(ctx context.Context, state *ProcessState) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnSessionStart(ctx context.Context, state *ProcessState) {
	for _, o := range c.observers {
		o.OnSessionStart(ctx, state)
	}
}

func (c *CompositeObserver) OnStageStart(ctx context.Context, state *ProcessState, stage string) {
	for _, o := range c.observers {
		o.OnStageStart(ctx, state, stage)
	}
}

func (c *CompositeObserver) OnStageCompleted(ctx context.Context, state *ProcessState, stage string, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStageCompleted(ctx, state, stage, err, d)
	}
}

func (c *CompositeObserver) OnGateHalted(ctx context.Context, state *ProcessState, gate string) {
	for _, o := range c.observers {
		o.OnGateHalted(ctx, state, gate)
	}
}

func (c *CompositeObserver) OnGateDecision(ctx context.Context, state *ProcessState, gate string, decision Decision) {
	for _, o := range c.observers {
		o.OnGateDecision(ctx, state, gate, decision)
	}
}

func (c *CompositeObserver) OnSessionCompleted(ctx context.Context, state *ProcessState) {
	for _, o := range c.observers {
		o.OnSessionCompleted(ctx, state)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs session / stage / gate
// lifecycle events using the provided slog.Logger. If logger is nil,
// slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnSessionStart(ctx context.Context, state *ProcessState) {
	o.Logger.InfoContext(ctx, "session_start",
		slog.String("session_id", state.SessionID),
		slog.String("entry_node", state.CurrentNode),
	)
}

func (o *LoggingObserver) OnStageStart(ctx context.Context, state *ProcessState, stage string) {
	o.Logger.DebugContext(ctx, "stage_start",
		slog.String("session_id", state.SessionID),
		slog.String("stage", stage),
	)
}

func (o *LoggingObserver) OnStageCompleted(ctx context.Context, state *ProcessState, stage string, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "stage_completed",
		slog.String("session_id", state.SessionID),
		slog.String("stage", stage),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnGateHalted(ctx context.Context, state *ProcessState, gate string) {
	o.Logger.InfoContext(ctx, "gate_halted",
		slog.String("session_id", state.SessionID),
		slog.String("gate", gate),
	)
}

func (o *LoggingObserver) OnGateDecision(ctx context.Context, state *ProcessState, gate string, decision Decision) {
	o.Logger.InfoContext(ctx, "gate_decision",
		slog.String("session_id", state.SessionID),
		slog.String("gate", gate),
		slog.String("decision", string(decision)),
	)
}

func (o *LoggingObserver) OnSessionCompleted(ctx context.Context, state *ProcessState) {
	o.Logger.InfoContext(ctx, "session_completed",
		slog.String("session_id", state.SessionID),
		slog.Int64("version", state.Version),
	)
}

// BasicMetrics collects simple counters and aggregate stage durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	sessionsStarted   atomic.Int64
	sessionsCompleted atomic.Int64
	stagesCompleted   atomic.Int64
	stagesFailed      atomic.Int64
	gateDecisions     atomic.Int64
	totalStageDur     atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	SessionsStarted   int64
	SessionsCompleted int64
	OpenSessions      int64

	StagesCompleted  int64
	StagesFailed     int64
	GateDecisions    int64
	AvgStageDuration time.Duration
}

func (m *BasicMetrics) OnSessionStart(ctx context.Context, state *ProcessState) {
	m.sessionsStarted.Add(1)
}

func (m *BasicMetrics) OnSessionCompleted(ctx context.Context, state *ProcessState) {
	m.sessionsCompleted.Add(1)
}

func (m *BasicMetrics) OnGateDecision(ctx context.Context, state *ProcessState, gate string, decision Decision) {
	m.gateDecisions.Add(1)
}

func (m *BasicMetrics) OnStageCompleted(ctx context.Context, state *ProcessState, stage string, err error, d time.Duration) {
	if err != nil {
		m.stagesFailed.Add(1)
		return
	}
	// Only successful stages count toward the average duration.
	m.stagesCompleted.Add(1)
	m.totalStageDur.Add(d.Nanoseconds())
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.sessionsStarted.Load()
	completed := m.sessionsCompleted.Load()
	stages := m.stagesCompleted.Load()
	totalNs := m.totalStageDur.Load()

	var avg time.Duration
	if stages > 0 {
		avg = time.Duration(totalNs / stages)
	}

	return BasicMetricsSnapshot{
		SessionsStarted:   started,
		SessionsCompleted: completed,
		OpenSessions:      started - completed,
		StagesCompleted:   stages,
		StagesFailed:      m.stagesFailed.Load(),
		GateDecisions:     m.gateDecisions.Load(),
		AvgStageDuration:  avg,
	}
}
