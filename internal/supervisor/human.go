package supervisor

import (
	"context"

	"github.com/felixgeelhaar/genpod/internal/errors"
)

// ReviewKind distinguishes the two reasons a run waits for a human.
type ReviewKind int

const (
	// ReviewRequirements asks for approval of the requirements document.
	ReviewRequirements ReviewKind = iota
	// ReviewQuery asks a question neither the knowledge base nor the
	// architect could answer.
	ReviewQuery
)

func (k ReviewKind) String() string {
	if k == ReviewQuery {
		return "query"
	}
	return "requirements"
}

// ReviewRequest is shown to the human reviewer.
type ReviewRequest struct {
	Kind        ReviewKind
	ThreadID    string
	ProjectName string
	// DocumentPath and Document are set for requirements reviews.
	DocumentPath string
	Document     string
	// Question is set for queries.
	Question string
}

// ReviewOutcome is the human's answer. For requirements reviews an empty
// Feedback means the document is accepted.
type ReviewOutcome struct {
	Feedback string
	Answer   string
}

// HumanReviewer collects human input while a run is HALTED.
type HumanReviewer interface {
	Review(ctx context.Context, req ReviewRequest) (ReviewOutcome, error)
}

// AutoApprove accepts every requirements document. It cannot answer
// questions, so a query halts the run with a coded error.
type AutoApprove struct{}

func (AutoApprove) Review(_ context.Context, req ReviewRequest) (ReviewOutcome, error) {
	if req.Kind == ReviewQuery {
		return ReviewOutcome{}, errors.NewHaltedError(req.ThreadID).
			WithSuggestion("Question: " + req.Question)
	}
	return ReviewOutcome{}, nil
}

// ReviewerFunc adapts a function to HumanReviewer.
type ReviewerFunc func(ctx context.Context, req ReviewRequest) (ReviewOutcome, error)

func (f ReviewerFunc) Review(ctx context.Context, req ReviewRequest) (ReviewOutcome, error) {
	return f(ctx, req)
}
