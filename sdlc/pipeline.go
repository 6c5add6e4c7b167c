// Package sdlc ships a ready-made gateflow graph for the classic
// requirements-to-deployment generation pipeline: user stories, design
// documents, code, a security pass, test cases, QA, and deployment, with a
// human review gate after each generated artifact.
//
// All stages share a single generator boundary; the generator dispatches on
// the stage name it is called with.
package sdlc

import (
	"github.com/petrijr/gateflow"
)

// Payload keys written by the pipeline stages. KeyProjectName and
// KeyRequirements are caller-supplied: the first via Start metadata, the
// second via the first Advance input.
const (
	KeyProjectName             = "project_name"
	KeyRequirements            = "requirements"
	KeyUserStories             = "user_stories"
	KeyDesignDocuments         = "design_documents"
	KeyCode                    = "code"
	KeySecurityRecommendations = "security_recommendations"
	KeyTestCases               = "test_cases"
	KeyQAResults               = "qa_results"
	KeyDeployment              = "deployment"
)

// Node names of the pipeline.
const (
	StageGenerateUserStories   = "generate_user_stories"
	GateReviewUserStories      = "review_user_stories"
	StageCreateDesignDocuments = "create_design_documents"
	GateReviewDesignDocuments  = "review_design_documents"
	StageGenerateCode          = "generate_code"
	GateReviewCode             = "review_code"
	StageSecurityReview        = "security_review"
	GateReviewSecurity         = "review_security"
	StageWriteTestCases        = "write_test_cases"
	GateReviewTestCases        = "review_test_cases"
	StageQATesting             = "qa_testing"
	StageDeployment            = "deployment"
	NodeComplete               = "complete"
)

// NewGraph builds the SDLC pipeline graph with every stage bound to gen.
//
// Every gate routes feedback back to the stage that produced the artifact
// under review, so a "feedback" decision regenerates that artifact with the
// reviewer's notes folded in and halts at the same gate again.
func NewGraph(gen gateflow.GeneratorFunc) (*gateflow.Graph, error) {
	return gateflow.NewGraph("sdlc").
		Stage(StageGenerateUserStories, GateReviewUserStories, gateflow.StageSpec{
			OutputKey: KeyUserStories,
			Requires:  []string{KeyProjectName, KeyRequirements},
			Generate:  gen,
		}).
		Gate(GateReviewUserStories, gateflow.GateSpec{
			OnApprove:  StageCreateDesignDocuments,
			OnFeedback: StageGenerateUserStories,
		}).
		Stage(StageCreateDesignDocuments, GateReviewDesignDocuments, gateflow.StageSpec{
			OutputKey: KeyDesignDocuments,
			Requires:  []string{KeyProjectName, KeyUserStories},
			Generate:  gen,
		}).
		Gate(GateReviewDesignDocuments, gateflow.GateSpec{
			OnApprove:  StageGenerateCode,
			OnFeedback: StageCreateDesignDocuments,
		}).
		Stage(StageGenerateCode, GateReviewCode, gateflow.StageSpec{
			OutputKey: KeyCode,
			Requires:  []string{KeyDesignDocuments},
			Generate:  gen,
		}).
		Gate(GateReviewCode, gateflow.GateSpec{
			OnApprove:  StageSecurityReview,
			OnFeedback: StageGenerateCode,
		}).
		Stage(StageSecurityReview, GateReviewSecurity, gateflow.StageSpec{
			OutputKey: KeySecurityRecommendations,
			Requires:  []string{KeyCode},
			Generate:  gen,
		}).
		Gate(GateReviewSecurity, gateflow.GateSpec{
			OnApprove:  StageWriteTestCases,
			OnFeedback: StageSecurityReview,
		}).
		Stage(StageWriteTestCases, GateReviewTestCases, gateflow.StageSpec{
			OutputKey: KeyTestCases,
			Requires:  []string{KeyCode},
			Generate:  gen,
		}).
		Gate(GateReviewTestCases, gateflow.GateSpec{
			OnApprove:  StageQATesting,
			OnFeedback: StageWriteTestCases,
		}).
		Stage(StageQATesting, StageDeployment, gateflow.StageSpec{
			OutputKey: KeyQAResults,
			Requires:  []string{KeyCode, KeyTestCases},
			Generate:  gen,
		}).
		Stage(StageDeployment, NodeComplete, gateflow.StageSpec{
			OutputKey: KeyDeployment,
			Requires:  []string{KeyQAResults},
			Generate:  gen,
		}).
		Terminal(NodeComplete).
		Build()
}
