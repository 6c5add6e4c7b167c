package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petrijr/gateflow/internal/persistence"
	"github.com/petrijr/gateflow/pkg/api"
)

// executor is the single mutable-state driver that turns external triggers
// into graph traversals. It is synchronous: each trigger runs the graph to
// the next interrupt, persists, and returns.
type executor struct {
	graph    *api.Graph
	store    persistence.SessionStore
	observer api.Observer
	newID    func() string
	now      func() time.Time

	// locksMu guards locks; each session gets its own mutex so that
	// Advance/Resume are at-most-once concurrent per session while distinct
	// sessions proceed independently.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Config describes how to construct an executor.
// Only used inside this package; external callers use the helper functions
// or the root package constructors.
type Config struct {
	Graph    *api.Graph
	Store    persistence.SessionStore
	Observer api.Observer

	// NewID mints session ids; defaults to uuid.NewString.
	NewID func() string

	// Now is the clock used for decision-log timestamps; defaults to
	// time.Now.
	Now func() time.Time
}

// NewEngineWithConfig creates a new Engine using the given configuration.
func NewEngineWithConfig(cfg Config) api.Engine {
	if cfg.Graph == nil {
		panic("gateflow: engine requires a graph")
	}
	if cfg.Store == nil {
		panic("gateflow: engine requires a session store")
	}
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &executor{
		graph:    cfg.Graph,
		store:    cfg.Store,
		observer: obs,
		newID:    newID,
		now:      now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// NewInMemoryEngine returns an Engine backed by an in-memory session store.
func NewInMemoryEngine(g *api.Graph) api.Engine {
	return NewEngineWithConfig(Config{
		Graph: g,
		Store: persistence.NewMemoryStore(),
	})
}

// NewSQLiteEngine returns an Engine that persists sessions in SQLite.
func NewSQLiteEngine(db *sql.DB, g *api.Graph) (api.Engine, error) {
	store, err := persistence.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngineWithConfig(Config{Graph: g, Store: store}), nil
}

// NewPostgresEngine returns an Engine that persists sessions in PostgreSQL.
func NewPostgresEngine(db *sql.DB, g *api.Graph) (api.Engine, error) {
	store, err := persistence.NewPostgresStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngineWithConfig(Config{Graph: g, Store: store}), nil
}

// NewRedisEngine returns an Engine that persists sessions in Redis.
func NewRedisEngine(client *redis.Client, g *api.Graph) api.Engine {
	return NewEngineWithConfig(Config{
		Graph: g,
		Store: persistence.NewRedisStore(client),
	})
}

// NewMongoEngine returns an Engine that persists sessions in MongoDB.
func NewMongoEngine(client *mongo.Client, g *api.Graph) api.Engine {
	return NewEngineWithConfig(Config{
		Graph: g,
		Store: persistence.NewMongoStore(client, "", ""),
	})
}

func (e *executor) Start(ctx context.Context, metadata map[string]any) (*api.ProcessState, error) {
	return e.start(ctx, e.newID(), metadata)
}

func (e *executor) StartWithID(ctx context.Context, sessionID string, metadata map[string]any) (*api.ProcessState, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	return e.start(ctx, sessionID, metadata)
}

func (e *executor) start(ctx context.Context, sessionID string, metadata map[string]any) (*api.ProcessState, error) {
	st := api.NewProcessState(sessionID, e.graph.Entry(), metadata)
	st.Version = 1
	if err := e.store.Put(ctx, st, 0); err != nil {
		return nil, err
	}
	e.observer.OnSessionStart(ctx, st)
	return st, nil
}

func (e *executor) Advance(ctx context.Context, sessionID string, input map[string]any) (*api.ProcessState, error) {
	lock, err := e.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	st, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	node, err := e.graph.Node(st.CurrentNode)
	if err != nil {
		return nil, err
	}
	// Already at an interrupt: there is nothing to run and nothing to
	// persist. Gates only move via Resume; the terminal node absorbs.
	if node.Kind != api.NodeStage {
		return st, nil
	}

	for k, v := range input {
		st.Payload[k] = v
	}

	if err := e.runToInterrupt(ctx, st, ""); err != nil {
		return nil, err
	}
	return st, e.persist(ctx, st)
}

func (e *executor) Resume(ctx context.Context, sessionID string, decision api.Decision, feedback string) (*api.ProcessState, error) {
	lock, err := e.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	st, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	node, err := e.graph.Node(st.CurrentNode)
	if err != nil {
		return nil, err
	}
	if node.Kind != api.NodeGate {
		return nil, fmt.Errorf("%w: %s is at %s node %q",
			api.ErrNotAwaitingReview, sessionID, node.Kind, node.Name)
	}

	// Validate before touching the decision log so a malformed decision
	// leaves no trace.
	next, err := e.graph.ResolveNext(node.Name, decision, feedback)
	if err != nil {
		return nil, err
	}

	st.DecisionLog = append(st.DecisionLog, api.DecisionEntry{
		Node:      node.Name,
		Decision:  decision,
		Feedback:  feedback,
		Timestamp: e.now(),
	})
	e.observer.OnGateDecision(ctx, st, node.Name, decision)

	st.CurrentNode = next
	st.Status = api.StatusInProgress

	carried := ""
	if decision == api.DecisionFeedback {
		carried = feedback
	}
	if err := e.runToInterrupt(ctx, st, carried); err != nil {
		return nil, err
	}
	return st, e.persist(ctx, st)
}

func (e *executor) GetSession(ctx context.Context, sessionID string) (*api.ProcessState, error) {
	return e.store.Get(ctx, sessionID)
}

func (e *executor) ListSessions(ctx context.Context, opts api.SessionListOptions) ([]*api.ProcessState, error) {
	return e.store.List(ctx, persistence.SessionFilter{Status: opts.Status})
}

// runToInterrupt walks the graph from the state's current node through any
// chain of stages, stopping at a review gate or the terminal node. It
// mutates st in memory only; persisting is the caller's responsibility, so
// a failure here leaves the last persisted version authoritative.
//
// feedback, when non-empty, is folded into the input of the first stage
// executed. It is consumed there: later stages in the same traversal run
// without it.
func (e *executor) runToInterrupt(ctx context.Context, st *api.ProcessState, feedback string) error {
	for {
		node, err := e.graph.Node(st.CurrentNode)
		if err != nil {
			return err
		}

		switch node.Kind {
		case api.NodeTerminal:
			st.Status = api.StatusCompleted
			e.observer.OnSessionCompleted(ctx, st)
			return nil

		case api.NodeGate:
			st.Status = api.StatusAwaitingReview
			e.observer.OnGateHalted(ctx, st, node.Name)
			return nil

		case api.NodeStage:
			input, err := stageInput(node, st, feedback)
			if err != nil {
				return err
			}
			feedback = ""

			e.observer.OnStageStart(ctx, st, node.Name)
			start := e.now()
			out, err := node.Stage.Generate(ctx, node.Name, input)
			e.observer.OnStageCompleted(ctx, st, node.Name, err, e.now().Sub(start))
			if err != nil {
				return api.NewGenerationError(node.Name, err)
			}

			st.Payload[node.Stage.OutputKey] = out
			next, err := e.graph.ResolveNext(node.Name, "", "")
			if err != nil {
				return err
			}
			st.CurrentNode = next
			st.Status = api.StatusInProgress

		default:
			return fmt.Errorf("%w: %q has unknown kind", api.ErrUnknownNode, node.Name)
		}
	}
}

// stageInput assembles the payload subset a stage declared via Requires.
func stageInput(node api.NodeDefinition, st *api.ProcessState, feedback string) (map[string]any, error) {
	input := make(map[string]any, len(node.Stage.Requires)+1)
	for _, key := range node.Stage.Requires {
		v, ok := st.Payload[key]
		if !ok {
			return nil, fmt.Errorf("%w: stage %q requires payload key %q",
				api.ErrMissingDependency, node.Name, key)
		}
		input[key] = v
	}
	if feedback != "" {
		input[api.FeedbackInputKey] = feedback
	}
	return input, nil
}

// persist commits st with an incremented version. The expected version is
// the one the state was loaded with; the store rejects the write if another
// trigger persisted in between.
func (e *executor) persist(ctx context.Context, st *api.ProcessState) error {
	expected := st.Version
	st.Version = expected + 1
	if err := e.store.Put(ctx, st, expected); err != nil {
		st.Version = expected
		return err
	}
	return nil
}

// acquire takes the per-session lock without blocking. Holding it for the
// whole trigger guarantees at-most-one in-flight traversal per session in
// this process; the store's version check covers racing processes.
func (e *executor) acquire(sessionID string) (*sync.Mutex, error) {
	e.locksMu.Lock()
	lock, ok := e.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[sessionID] = lock
	}
	e.locksMu.Unlock()

	if !lock.TryLock() {
		return nil, fmt.Errorf("%w: %s", api.ErrConcurrentExecution, sessionID)
	}
	return lock, nil
}
