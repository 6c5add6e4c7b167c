// Package gateflow provides a lightweight, embeddable workflow engine for
// approval-gated generation pipelines.
//
// Gateflow drives long-lived processes whose stages are produced by an
// external generator (typically an LLM call) and gated by human review:
// requirements turn into user stories, stories into design documents, design
// into code, and so on, with a reviewer approving or sending feedback at
// designated checkpoints. The engine is synchronous and holds no background
// threads; every trigger loads the session, runs the graph to the next
// interrupt, persists, and returns.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Graph — the immutable workflow definition: stages, review gates, a
//     terminal node, and the edges between them. Built once at startup with
//     the fluent GraphBuilder and shared read-only by all sessions.
//  2. Stage — one pipeline phase. A stage declares the payload keys it
//     reads, calls its bound generator exactly once per execution, and owns
//     a single payload key that it overwrites on re-runs.
//  3. Gate — a durable suspension point. Reaching a gate parks the session
//     with StatusAwaitingReview until Resume delivers an approved or
//     feedback decision; the pause may last minutes or days and the
//     resuming process need not be the one that halted.
//  4. Engine — the triggering interface: Start, Advance, Resume,
//     GetSession, ListSessions. Advance runs through any chain of stages
//     automatically and stops only at a gate or the terminal node.
//  5. SessionStore — durable key/value persistence for process state with
//     optimistic versioning and optional expiry.
//
// Engines can be backed by different storage systems:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - Postgres
//   - Redis
//   - MongoDB
//
// # Durability Model
//
// A session's entire state (current node, accumulated payload, decision log,
// version) is committed atomically after each traversal segment. There are
// no partial persists: a failed generator call surfaces the error and leaves
// the last persisted version authoritative, so retrying the same trigger is
// always safe. Two racing triggers for one session never both succeed — one
// fails fast with ErrConcurrentExecution in-process, or with
// ErrVersionConflict across processes.
//
// # Observability
//
// An Observer receives session, stage, and gate lifecycle callbacks.
// LoggingObserver logs them with log/slog, BasicMetrics keeps atomic
// counters, and CompositeObserver fans out to several observers at once.
package gateflow
