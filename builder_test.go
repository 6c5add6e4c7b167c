package gateflow

import (
	"context"
	"errors"
	"testing"

	"github.com/petrijr/gateflow/pkg/api"
)

func staticGenerator(out any) GeneratorFunc {
	return func(ctx context.Context, stage string, input map[string]any) (any, error) {
		return out, nil
	}
}

func TestBuilderAssemblesGraph(t *testing.T) {
	g, err := NewGraph("review-loop").
		Stage("draft", "review", StageSpec{
			OutputKey: "draft",
			Generate:  staticGenerator("v1"),
		}).
		Gate("review", GateSpec{
			OnApprove:  "publish",
			OnFeedback: "draft",
		}).
		Stage("publish", "done", StageSpec{
			OutputKey: "published",
			Requires:  []string{"draft"},
			Generate:  staticGenerator("ok"),
		}).
		Terminal("done").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if g.Name() != "review-loop" {
		t.Fatalf("unexpected name %q", g.Name())
	}
	if g.Entry() != "draft" {
		t.Fatalf("first node must be the entry, got %q", g.Entry())
	}
	if g.Terminal() != "done" {
		t.Fatalf("unexpected terminal %q", g.Terminal())
	}

	next, err := g.ResolveNext("review", DecisionFeedback, "shorter")
	if err != nil {
		t.Fatalf("ResolveNext failed: %v", err)
	}
	if next != "draft" {
		t.Fatalf("feedback must route back to the producer, got %q", next)
	}
}

func TestBuilderEntryOverride(t *testing.T) {
	g, err := NewGraph("g").
		Entry("second").
		Stage("first", "done", StageSpec{OutputKey: "a", Generate: staticGenerator(1)}).
		Stage("second", "done", StageSpec{OutputKey: "b", Generate: staticGenerator(2)}).
		Terminal("done").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if g.Entry() != "second" {
		t.Fatalf("Entry override ignored, got %q", g.Entry())
	}
}

func TestBuilderPanics(t *testing.T) {
	assertPanics := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s did not panic", name)
			}
		}()
		fn()
	}

	assertPanics("empty stage name", func() {
		NewGraph("g").Stage("", "next", StageSpec{OutputKey: "k", Generate: staticGenerator(1)})
	})
	assertPanics("nil generator", func() {
		NewGraph("g").Stage("s", "next", StageSpec{OutputKey: "k"})
	})
	assertPanics("empty gate name", func() {
		NewGraph("g").Gate("", GateSpec{OnApprove: "a", OnFeedback: "b"})
	})
	assertPanics("empty terminal name", func() {
		NewGraph("g").Terminal("")
	})
}

func TestBuilderValidationErrors(t *testing.T) {
	// Gate routing to a node that does not exist surfaces ErrUnknownNode
	// from Build rather than at run time.
	_, err := NewGraph("g").
		Stage("draft", "review", StageSpec{OutputKey: "draft", Generate: staticGenerator(1)}).
		Gate("review", GateSpec{OnApprove: "missing", OnFeedback: "draft"}).
		Terminal("done").
		Build()
	if !errors.Is(err, api.ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}

	// No terminal declared.
	_, err = NewGraph("g").
		Stage("draft", "draft", StageSpec{OutputKey: "draft", Generate: staticGenerator(1)}).
		Build()
	if err == nil {
		t.Fatal("expected validation error for missing terminal")
	}
}
