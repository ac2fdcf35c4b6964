package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jcjurado/outreach/internal/candidates"
	"github.com/jcjurado/outreach/internal/llm"
)

var ErrNoCandidates = errors.New("selection requires at least one candidate")

// SelectionAgent asks a model to pick one candidate. It returns whatever the
// model answered; matching the answer against the pool is the caller's job.
type SelectionAgent struct {
	instructions string
	modelID      string
	provider     llm.Provider
}

// NewSelectionAgent creates a selector. Empty instructions use the default.
func NewSelectionAgent(instructions, modelID string, provider llm.Provider) *SelectionAgent {
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultSelectorInstructions
	}
	return &SelectionAgent{instructions: instructions, modelID: modelID, provider: provider}
}

// Select returns the model's chosen text for the given candidates.
func (s *SelectionAgent) Select(ctx context.Context, brief string, cands []candidates.Candidate) (string, error) {
	if len(cands) == 0 {
		return "", ErrNoCandidates
	}
	resp, err := s.provider.Invoke(ctx, llm.Request{
		Instructions: s.instructions,
		ModelID:      s.modelID,
		Input:        SelectionPrompt(brief, cands),
		AgentID:      "sales_picker",
	})
	if err != nil {
		return "", err
	}
	if resp.IsToolCall() {
		return "", fmt.Errorf("selector: %w: %s", llm.ErrToolRequested, resp.ToolCall.Name)
	}
	return resp.Text, nil
}

// SelectionPrompt renders the candidates in generation order.
func SelectionPrompt(brief string, cands []candidates.Candidate) string {
	var b strings.Builder
	if brief != "" {
		b.WriteString("Brief:\n")
		b.WriteString(brief)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Candidates (%d):\n", len(cands))
	for i, c := range cands {
		fmt.Fprintf(&b, "\n<candidate index=%q>\n%s\n</candidate>\n", fmt.Sprint(i+1), c.Text)
	}
	b.WriteString("\nReply with the full text of the single best candidate, copied exactly, and nothing else.")
	return b.String()
}
