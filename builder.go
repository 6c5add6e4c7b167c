package gateflow

import (
	"fmt"

	"github.com/petrijr/gateflow/pkg/api"
)

// GraphBuilder provides a fluent API for defining workflow graphs:
//
//	graph, err := gateflow.NewGraph("sdlc").
//	    Stage("generate_user_stories", "review_user_stories", gateflow.StageSpec{
//	        OutputKey: "user_stories",
//	        Requires:  []string{"requirements"},
//	        Generate:  gen,
//	    }).
//	    Gate("review_user_stories", gateflow.GateSpec{
//	        OnApprove:  "deployment",
//	        OnFeedback: "generate_user_stories",
//	    }).
//	    Stage("deployment", "complete", gateflow.StageSpec{...}).
//	    Terminal("complete").
//	    Build()
//
// The first node added becomes the entry node unless Entry overrides it.
type GraphBuilder struct {
	def api.GraphDefinition
}

// NewGraph creates a new graph builder with the given name.
func NewGraph(name string) *GraphBuilder {
	return &GraphBuilder{
		def: api.GraphDefinition{
			Name:  name,
			Nodes: make([]api.NodeDefinition, 0),
		},
	}
}

// Name returns the graph name.
func (b *GraphBuilder) Name() string {
	return b.def.Name
}

// Definition returns the graph definition assembled so far.
// Typically used when interacting with lower-level APIs.
func (b *GraphBuilder) Definition() GraphDefinition {
	return b.def
}

// Entry marks the entry node. Without it, the first node added is the entry.
func (b *GraphBuilder) Entry(name string) *GraphBuilder {
	b.def.Entry = name
	return b
}

// Stage appends a stage node with an unconditional edge to next.
func (b *GraphBuilder) Stage(name, next string, spec StageSpec) *GraphBuilder {
	if name == "" {
		panic("gateflow: stage name must not be empty")
	}
	if spec.Generate == nil {
		panic(fmt.Sprintf("gateflow: stage %q has nil generator", name))
	}

	b.add(api.NodeDefinition{
		Name:  name,
		Kind:  api.NodeStage,
		Next:  next,
		Stage: spec,
	})
	return b
}

// Gate appends a review gate with the given static routing.
func (b *GraphBuilder) Gate(name string, spec GateSpec) *GraphBuilder {
	if name == "" {
		panic("gateflow: gate name must not be empty")
	}

	b.add(api.NodeDefinition{
		Name: name,
		Kind: api.NodeGate,
		Gate: spec,
	})
	return b
}

// Terminal marks the workflow's completion node.
func (b *GraphBuilder) Terminal(name string) *GraphBuilder {
	if name == "" {
		panic("gateflow: terminal name must not be empty")
	}

	b.def.Terminal = name
	b.add(api.NodeDefinition{
		Name: name,
		Kind: api.NodeTerminal,
	})
	return b
}

// Build validates the assembled definition and returns the immutable graph.
func (b *GraphBuilder) Build() (*Graph, error) {
	return api.NewGraph(b.def)
}

func (b *GraphBuilder) add(n api.NodeDefinition) {
	if b.def.Entry == "" {
		b.def.Entry = n.Name
	}
	b.def.Nodes = append(b.def.Nodes, n)
}
