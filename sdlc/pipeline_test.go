package sdlc

import (
	"context"
	"fmt"
	"testing"

	"github.com/petrijr/gateflow"
)

// echoGenerator produces "<stage>#<run>" so reruns are distinguishable.
func echoGenerator() gateflow.GeneratorFunc {
	runs := make(map[string]int)
	return func(ctx context.Context, stage string, input map[string]any) (any, error) {
		runs[stage]++
		if fb, ok := input[gateflow.FeedbackInputKey]; ok {
			return fmt.Sprintf("%s#%d(%v)", stage, runs[stage], fb), nil
		}
		return fmt.Sprintf("%s#%d", stage, runs[stage]), nil
	}
}

func TestPipelineGraphShape(t *testing.T) {
	g, err := NewGraph(echoGenerator())
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}

	if g.Entry() != StageGenerateUserStories {
		t.Fatalf("unexpected entry %q", g.Entry())
	}
	if g.Terminal() != NodeComplete {
		t.Fatalf("unexpected terminal %q", g.Terminal())
	}

	// Each gate routes feedback to the stage producing its artifact.
	gates := map[string]string{
		GateReviewUserStories:     StageGenerateUserStories,
		GateReviewDesignDocuments: StageCreateDesignDocuments,
		GateReviewCode:            StageGenerateCode,
		GateReviewSecurity:        StageSecurityReview,
		GateReviewTestCases:       StageWriteTestCases,
	}
	for gate, producer := range gates {
		next, err := g.ResolveNext(gate, gateflow.DecisionFeedback, "x")
		if err != nil {
			t.Fatalf("ResolveNext(%s) failed: %v", gate, err)
		}
		if next != producer {
			t.Fatalf("gate %s routes feedback to %q, want %q", gate, next, producer)
		}
	}
}

func TestPipelineApproveAllGates(t *testing.T) {
	ctx := context.Background()
	g, err := NewGraph(echoGenerator())
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}
	eng := gateflow.NewInMemoryEngine(g)

	st, err := eng.Start(ctx, map[string]any{
		KeyProjectName: "E-Commerce Platform",
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	st, err = eng.Advance(ctx, st.SessionID, map[string]any{
		KeyRequirements: []string{"catalog browsing", "checkout", "order history"},
	})
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	wantGates := []string{
		GateReviewUserStories,
		GateReviewDesignDocuments,
		GateReviewCode,
		GateReviewSecurity,
		GateReviewTestCases,
	}
	for _, gate := range wantGates {
		if st.CurrentNode != gate {
			t.Fatalf("expected halt at %s, got %s", gate, st.CurrentNode)
		}
		if st.Status != gateflow.StatusAwaitingReview {
			t.Fatalf("expected awaiting_review at %s, got %s", gate, st.Status)
		}
		st, err = eng.Resume(ctx, st.SessionID, gateflow.DecisionApproved, "")
		if err != nil {
			t.Fatalf("Resume at %s failed: %v", gate, err)
		}
	}

	// After the last gate, QA and deployment run without further review.
	if st.CurrentNode != NodeComplete || st.Status != gateflow.StatusCompleted {
		t.Fatalf("expected completion, got node %q status %q", st.CurrentNode, st.Status)
	}

	for _, key := range []string{
		KeyUserStories, KeyDesignDocuments, KeyCode,
		KeySecurityRecommendations, KeyTestCases, KeyQAResults, KeyDeployment,
	} {
		if _, ok := st.Payload[key]; !ok {
			t.Fatalf("payload is missing %q: %v", key, st.Payload)
		}
	}
	if len(st.DecisionLog) != len(wantGates) {
		t.Fatalf("expected %d decisions, got %d", len(wantGates), len(st.DecisionLog))
	}
}

func TestPipelineDesignFeedbackLoop(t *testing.T) {
	ctx := context.Background()
	g, err := NewGraph(echoGenerator())
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}
	eng := gateflow.NewInMemoryEngine(g)

	st, _ := eng.Start(ctx, map[string]any{KeyProjectName: "Demo"})
	st, err = eng.Advance(ctx, st.SessionID, map[string]any{
		KeyRequirements: []string{"a"},
	})
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	st, err = eng.Resume(ctx, st.SessionID, gateflow.DecisionApproved, "")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if st.CurrentNode != GateReviewDesignDocuments {
		t.Fatalf("expected halt at design review, got %s", st.CurrentNode)
	}
	first := st.Payload[KeyDesignDocuments]

	st, err = eng.Resume(ctx, st.SessionID, gateflow.DecisionFeedback, "tighten scope")
	if err != nil {
		t.Fatalf("Resume(feedback) failed: %v", err)
	}

	if st.CurrentNode != GateReviewDesignDocuments {
		t.Fatalf("feedback must halt at the same gate, got %s", st.CurrentNode)
	}
	second := st.Payload[KeyDesignDocuments]
	if second == first {
		t.Fatal("design documents were not regenerated")
	}
	if second != "create_design_documents#2(tighten scope)" {
		t.Fatalf("feedback not folded into regeneration: %v", second)
	}

	// The untouched upstream artifact survives the loop.
	if st.Payload[KeyUserStories] != "generate_user_stories#1" {
		t.Fatalf("upstream artifact changed: %v", st.Payload[KeyUserStories])
	}
}
