// Package agents builds the model-backed roles of a run on top of an
// llm.Provider: persona generators, the selector, and the delivery writers.
package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcjurado/outreach/internal/llm"
	"github.com/jcjurado/outreach/internal/personas"
)

// GenerationAgent produces one candidate text for a persona.
type GenerationAgent struct {
	persona  personas.Persona
	provider llm.Provider
}

// NewGenerationAgent binds a persona to a provider.
func NewGenerationAgent(p personas.Persona, provider llm.Provider) *GenerationAgent {
	return &GenerationAgent{persona: p, provider: provider}
}

// Persona returns the configuration the agent was built from.
func (a *GenerationAgent) Persona() personas.Persona { return a.persona }

// Generate returns the persona's answer to input. Every failure, including a
// tool call the generator was never offered, is a *llm.GenerationError.
func (a *GenerationAgent) Generate(ctx context.Context, input string) (string, error) {
	resp, err := a.provider.Invoke(ctx, llm.Request{
		Instructions: a.persona.Instructions,
		ModelID:      a.persona.ModelID,
		Input:        input,
		AgentID:      a.persona.ID,
	})
	if err != nil {
		if _, ok := llm.AsGenerationError(err); ok {
			return "", err
		}
		return "", llm.NewGenerationError("unknown", a.persona.ModelID, err)
	}
	if resp.IsToolCall() {
		return "", llm.NewGenerationError(resp.ModelUsed, a.persona.ModelID,
			fmt.Errorf("%w: %s", llm.ErrToolRequested, resp.ToolCall.Name))
	}
	if resp.Text == "" {
		return "", llm.NewGenerationError(resp.ModelUsed, a.persona.ModelID, llm.ErrEmptyOutput)
	}
	return resp.Text, nil
}

// IsGenerationError reports whether err is a generator failure.
func IsGenerationError(err error) bool {
	var ge *llm.GenerationError
	return errors.As(err, &ge)
}
