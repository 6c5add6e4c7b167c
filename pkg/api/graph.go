package api

import (
	"context"
	"fmt"
)

// GeneratorFunc is the external generation boundary bound to a stage. The
// executor calls it exactly once per stage execution with the subset of the
// payload the stage declared via Requires (plus FeedbackInputKey on a
// feedback re-run). Calls may take seconds to tens of seconds; they must
// honor ctx cancellation.
type GeneratorFunc func(ctx context.Context, stage string, input map[string]any) (any, error)

// NodeKind discriminates the node variants the executor can drive.
type NodeKind int

const (
	// NodeStage runs a bound generator and writes its output key.
	NodeStage NodeKind = iota

	// NodeGate halts the traversal until an external decision arrives.
	NodeGate

	// NodeTerminal marks workflow completion. It is absorbing: resolving
	// the next node from the terminal yields the terminal itself.
	NodeTerminal
)

func (k NodeKind) String() string {
	switch k {
	case NodeStage:
		return "stage"
	case NodeGate:
		return "gate"
	case NodeTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// StageSpec configures a stage node.
type StageSpec struct {
	// OutputKey is the payload key this stage owns. Re-runs overwrite it
	// unconditionally.
	OutputKey string

	// Requires lists the payload keys the stage reads. A missing key fails
	// the traversal with ErrMissingDependency.
	Requires []string

	// Generate is the bound external generator.
	Generate GeneratorFunc
}

// GateSpec configures a review gate's static routing.
type GateSpec struct {
	// OnApprove names the node control resumes at after an approved
	// decision.
	OnApprove string

	// OnFeedback names the node a feedback decision routes to, normally
	// the stage that produced the content under review.
	OnFeedback string
}

// NodeDefinition describes one named node of a graph definition.
type NodeDefinition struct {
	Name string
	Kind NodeKind

	// Next is the unconditional successor. Required for stages, ignored
	// for gates and the terminal.
	Next string

	Stage StageSpec // valid when Kind == NodeStage
	Gate  GateSpec  // valid when Kind == NodeGate
}

// GraphDefinition describes a workflow graph as plain data. It is validated
// and frozen by NewGraph; typically it is produced by the root package's
// fluent builder rather than assembled by hand.
type GraphDefinition struct {
	Name     string
	Entry    string
	Terminal string
	Nodes    []NodeDefinition
}

// Graph is the immutable workflow definition shared read-only by all
// sessions. It is constructed once at process startup and never mutated, so
// no locking is needed around it.
type Graph struct {
	name     string
	entry    string
	terminal string
	nodes    map[string]NodeDefinition
}

// NewGraph validates def and returns an immutable Graph.
func NewGraph(def GraphDefinition) (*Graph, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("graph name is required")
	}
	if len(def.Nodes) == 0 {
		return nil, fmt.Errorf("graph %q has no nodes", def.Name)
	}

	nodes := make(map[string]NodeDefinition, len(def.Nodes))
	for _, n := range def.Nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("graph %q contains a node with no name", def.Name)
		}
		if _, ok := nodes[n.Name]; ok {
			return nil, fmt.Errorf("graph %q has duplicate node %q", def.Name, n.Name)
		}
		nodes[n.Name] = n
	}

	exists := func(name string) bool {
		_, ok := nodes[name]
		return ok
	}

	if def.Entry == "" {
		return nil, fmt.Errorf("graph %q has no entry node", def.Name)
	}
	if !exists(def.Entry) {
		return nil, fmt.Errorf("graph %q entry node %q is not defined", def.Name, def.Entry)
	}
	if def.Terminal == "" {
		return nil, fmt.Errorf("graph %q has no terminal node", def.Name)
	}
	term := nodes[def.Terminal]
	if !exists(def.Terminal) {
		return nil, fmt.Errorf("graph %q terminal node %q is not defined", def.Name, def.Terminal)
	}
	if term.Kind != NodeTerminal {
		return nil, fmt.Errorf("graph %q terminal node %q has kind %s", def.Name, def.Terminal, term.Kind)
	}

	for _, n := range nodes {
		switch n.Kind {
		case NodeStage:
			if n.Stage.OutputKey == "" {
				return nil, fmt.Errorf("stage %q has no output key", n.Name)
			}
			if n.Stage.Generate == nil {
				return nil, fmt.Errorf("stage %q has no generator", n.Name)
			}
			if n.Next == "" {
				return nil, fmt.Errorf("stage %q has no successor", n.Name)
			}
			if !exists(n.Next) {
				return nil, fmt.Errorf("stage %q successor %q is not defined", n.Name, n.Next)
			}
		case NodeGate:
			if n.Gate.OnApprove == "" || !exists(n.Gate.OnApprove) {
				return nil, fmt.Errorf("gate %q approve target %q is not defined", n.Name, n.Gate.OnApprove)
			}
			if n.Gate.OnFeedback == "" || !exists(n.Gate.OnFeedback) {
				return nil, fmt.Errorf("gate %q feedback target %q is not defined", n.Name, n.Gate.OnFeedback)
			}
		case NodeTerminal:
			if n.Name != def.Terminal {
				return nil, fmt.Errorf("graph %q has extra terminal node %q", def.Name, n.Name)
			}
		default:
			return nil, fmt.Errorf("node %q has unknown kind %d", n.Name, int(n.Kind))
		}
	}

	return &Graph{
		name:     def.Name,
		entry:    def.Entry,
		terminal: def.Terminal,
		nodes:    nodes,
	}, nil
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Entry returns the entry node name, the only legal current node for a
// freshly created session.
func (g *Graph) Entry() string { return g.entry }

// Terminal returns the terminal node name.
func (g *Graph) Terminal() string { return g.terminal }

// Node looks up a node definition by name.
func (g *Graph) Node(name string) (NodeDefinition, error) {
	n, ok := g.nodes[name]
	if !ok {
		return NodeDefinition{}, fmt.Errorf("%w: %q in graph %q", ErrUnknownNode, name, g.name)
	}
	return n, nil
}

// Has reports whether the graph defines a node with the given name.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// ResolveNext computes the successor of a node.
//
// For stages the configured successor is returned and decision/feedback are
// ignored. For the terminal node the terminal itself is returned. For gates
// the static routing is applied: approved goes to the approve target,
// feedback to the feedback target; any other decision fails with
// ErrInvalidDecision.
func (g *Graph) ResolveNext(name string, decision Decision, feedback string) (string, error) {
	n, err := g.Node(name)
	if err != nil {
		return "", err
	}

	switch n.Kind {
	case NodeTerminal:
		return n.Name, nil
	case NodeStage:
		return n.Next, nil
	case NodeGate:
		switch decision {
		case DecisionApproved:
			return n.Gate.OnApprove, nil
		case DecisionFeedback:
			return n.Gate.OnFeedback, nil
		default:
			return "", fmt.Errorf("%w: %q at gate %q", ErrInvalidDecision, decision, n.Name)
		}
	default:
		return "", fmt.Errorf("%w: %q has unknown kind", ErrUnknownNode, n.Name)
	}
}
