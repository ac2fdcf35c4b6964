package activities

import (
	"context"
	"strconv"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/jcjurado/outreach/internal/agents"
	"github.com/jcjurado/outreach/internal/candidates"
	"github.com/jcjurado/outreach/internal/tracing"
)

// SelectInput carries the full ordered candidate set.
type SelectInput struct {
	Brief        string                 `json:"brief"`
	Candidates   []candidates.Candidate `json:"candidates"`
	Instructions string                 `json:"instructions,omitempty"`
	ModelID      string                 `json:"model_id"`
}

// SelectResult is the selector's raw answer, unmatched.
type SelectResult struct {
	Text string `json:"text"`
}

// SelectCandidate asks the SelectionAgent for its choice. Matching the answer
// against the pool happens in the workflow.
func (a *Activities) SelectCandidate(ctx context.Context, in SelectInput) (SelectResult, error) {
	if len(in.Candidates) == 0 {
		return SelectResult{}, temporal.NewNonRetryableApplicationError(
			agents.ErrNoCandidates.Error(), "NoCandidates", agents.ErrNoCandidates)
	}

	ctx, span := tracing.StartSpan(ctx, "outreach.select", "candidates", strconv.Itoa(len(in.Candidates)))
	text, err := agents.NewSelectionAgent(in.Instructions, in.ModelID, a.metered("selector")).
		Select(ctx, in.Brief, in.Candidates)
	tracing.EndSpan(span, err)
	if err != nil {
		activity.GetLogger(ctx).Warn("Selection call failed", "error", err)
		return SelectResult{}, err
	}
	return SelectResult{Text: text}, nil
}
