package gateflow

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petrijr/gateflow/internal/engine"
	"github.com/petrijr/gateflow/internal/persistence"
	"github.com/petrijr/gateflow/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine               = api.Engine
	ProcessState         = api.ProcessState
	DecisionEntry        = api.DecisionEntry
	SessionListOptions   = api.SessionListOptions
	Status               = api.Status
	Decision             = api.Decision
	GeneratorFunc        = api.GeneratorFunc
	Graph                = api.Graph
	GraphDefinition      = api.GraphDefinition
	NodeDefinition       = api.NodeDefinition
	NodeKind             = api.NodeKind
	StageSpec            = api.StageSpec
	GateSpec             = api.GateSpec
	GenerationError      = api.GenerationError
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export status and decision values for convenience.

const (
	StatusInProgress     = api.StatusInProgress
	StatusAwaitingReview = api.StatusAwaitingReview
	StatusCompleted      = api.StatusCompleted

	DecisionApproved = api.DecisionApproved
	DecisionFeedback = api.DecisionFeedback

	FeedbackInputKey = api.FeedbackInputKey
)

// Re-export the error taxonomy.

var (
	ErrSessionNotFound     = api.ErrSessionNotFound
	ErrDuplicateSession    = api.ErrDuplicateSession
	ErrUnknownNode         = api.ErrUnknownNode
	ErrInvalidDecision     = api.ErrInvalidDecision
	ErrMissingDependency   = api.ErrMissingDependency
	ErrNotAwaitingReview   = api.ErrNotAwaitingReview
	ErrConcurrentExecution = api.ErrConcurrentExecution
	ErrVersionConflict     = api.ErrVersionConflict

	NewGenerationError = api.NewGenerationError
	AsGenerationError  = api.AsGenerationError
)

const (
	NodeStage    = api.NodeStage
	NodeGate     = api.NodeGate
	NodeTerminal = api.NodeTerminal
)

// RegisterPayloadType registers a concrete payload value type with the gob
// codec the persistent stores use. Generators returning custom struct types
// must register them once at startup; plain strings, slices, and maps work
// out of the box.
var RegisterPayloadType = persistence.RegisterPayloadType

// Options configures an engine beyond its storage backend.
type Options struct {
	// Observer receives lifecycle callbacks. Nil means no observation.
	Observer Observer

	// SessionTTL is the store-level time-to-live for session entries.
	// Zero means sessions never expire.
	SessionTTL time.Duration

	// KeyPrefix namespaces Redis keys (Redis engines only).
	// Empty means the default "gateflow:" prefix.
	KeyPrefix string
}

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryEngine returns an Engine backed entirely by an in-memory store.
func NewInMemoryEngine(g *Graph) Engine {
	return engine.NewInMemoryEngine(g)
}

// NewInMemoryEngineWithOptions returns an in-memory Engine with the given
// options.
func NewInMemoryEngineWithOptions(g *Graph, opts Options) Engine {
	var storeOpts []persistence.MemoryOption
	if opts.SessionTTL > 0 {
		storeOpts = append(storeOpts, persistence.WithMemoryTTL(opts.SessionTTL))
	}
	return engine.NewEngineWithConfig(engine.Config{
		Graph:    g,
		Store:    persistence.NewMemoryStore(storeOpts...),
		Observer: opts.Observer,
	})
}

// NewSQLiteEngine returns an Engine that persists sessions in a SQLite
// database.
func NewSQLiteEngine(db *sql.DB, g *Graph) (Engine, error) {
	return engine.NewSQLiteEngine(db, g)
}

// NewSQLiteEngineWithOptions returns a SQLite-backed Engine with the given
// options.
func NewSQLiteEngineWithOptions(db *sql.DB, g *Graph, opts Options) (Engine, error) {
	var storeOpts []persistence.SQLiteOption
	if opts.SessionTTL > 0 {
		storeOpts = append(storeOpts, persistence.WithSQLiteTTL(opts.SessionTTL))
	}
	store, err := persistence.NewSQLiteStore(db, storeOpts...)
	if err != nil {
		return nil, err
	}
	return engine.NewEngineWithConfig(engine.Config{
		Graph:    g,
		Store:    store,
		Observer: opts.Observer,
	}), nil
}

// NewPostgresEngine returns an Engine that persists sessions in PostgreSQL.
func NewPostgresEngine(db *sql.DB, g *Graph) (Engine, error) {
	return engine.NewPostgresEngine(db, g)
}

// NewPostgresEngineWithOptions returns a Postgres-backed Engine with the
// given options.
func NewPostgresEngineWithOptions(db *sql.DB, g *Graph, opts Options) (Engine, error) {
	var storeOpts []persistence.PostgresOption
	if opts.SessionTTL > 0 {
		storeOpts = append(storeOpts, persistence.WithPostgresTTL(opts.SessionTTL))
	}
	store, err := persistence.NewPostgresStore(db, storeOpts...)
	if err != nil {
		return nil, err
	}
	return engine.NewEngineWithConfig(engine.Config{
		Graph:    g,
		Store:    store,
		Observer: opts.Observer,
	}), nil
}

// NewRedisEngine returns an Engine that persists sessions in Redis.
func NewRedisEngine(client *redis.Client, g *Graph) Engine {
	return engine.NewRedisEngine(client, g)
}

// NewRedisEngineWithOptions returns a Redis-backed Engine with the given
// options.
func NewRedisEngineWithOptions(client *redis.Client, g *Graph, opts Options) Engine {
	var storeOpts []persistence.RedisOption
	if opts.SessionTTL > 0 {
		storeOpts = append(storeOpts, persistence.WithRedisTTL(opts.SessionTTL))
	}
	if opts.KeyPrefix != "" {
		storeOpts = append(storeOpts, persistence.WithRedisPrefix(opts.KeyPrefix))
	}
	return engine.NewEngineWithConfig(engine.Config{
		Graph:    g,
		Store:    persistence.NewRedisStore(client, storeOpts...),
		Observer: opts.Observer,
	})
}

// NewMongoEngine returns an Engine that persists sessions in MongoDB.
func NewMongoEngine(client *mongo.Client, g *Graph) Engine {
	return engine.NewMongoEngine(client, g)
}

// NewMongoEngineWithOptions returns a Mongo-backed Engine with the given
// options.
func NewMongoEngineWithOptions(client *mongo.Client, g *Graph, opts Options) Engine {
	var storeOpts []persistence.MongoOption
	if opts.SessionTTL > 0 {
		storeOpts = append(storeOpts, persistence.WithMongoTTL(opts.SessionTTL))
	}
	return engine.NewEngineWithConfig(engine.Config{
		Graph:    g,
		Store:    persistence.NewMongoStore(client, "", "", storeOpts...),
		Observer: opts.Observer,
	})
}

// Convenience helpers that just forward to the underlying Engine.

// Start creates a new session seeded with the given metadata.
func Start(ctx context.Context, eng Engine, metadata map[string]any) (*ProcessState, error) {
	return eng.Start(ctx, metadata)
}

// Advance triggers the next traversal segment of a session.
func Advance(ctx context.Context, eng Engine, sessionID string, input map[string]any) (*ProcessState, error) {
	return eng.Advance(ctx, sessionID, input)
}

// Resume delivers a review decision to a halted session.
func Resume(ctx context.Context, eng Engine, sessionID string, decision Decision, feedback string) (*ProcessState, error) {
	return eng.Resume(ctx, sessionID, decision, feedback)
}

// GetSession fetches a session's current state without making progress.
func GetSession(ctx context.Context, eng Engine, sessionID string) (*ProcessState, error) {
	return eng.GetSession(ctx, sessionID)
}

// ListSessions lists sessions according to the given options.
func ListSessions(ctx context.Context, eng Engine, opts SessionListOptions) ([]*ProcessState, error) {
	return eng.ListSessions(ctx, opts)
}
