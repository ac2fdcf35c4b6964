package activities

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/jcjurado/outreach/internal/agents"
	"github.com/jcjurado/outreach/internal/candidates"
	"github.com/jcjurado/outreach/internal/metrics"
	"github.com/jcjurado/outreach/internal/personas"
	"github.com/jcjurado/outreach/internal/tracing"
)

// GenerateInput asks one persona for a candidate.
type GenerateInput struct {
	Persona personas.Persona `json:"persona"`
	Message string           `json:"message"`
}

// GenerateResult is the produced candidate.
type GenerateResult struct {
	Candidate candidates.Candidate `json:"candidate"`
}

// GenerateCandidate runs one GenerationAgent. Errors are *llm.GenerationError
// and stay retryable; the workflow's retry policy bounds the attempts.
func (a *Activities) GenerateCandidate(ctx context.Context, in GenerateInput) (GenerateResult, error) {
	logger := activity.GetLogger(ctx)
	attempt := activity.GetInfo(ctx).Attempt

	ctx, span := tracing.StartSpan(ctx, "outreach.generate", "persona", in.Persona.ID, "model", in.Persona.ModelID)
	start := time.Now()
	text, err := agents.NewGenerationAgent(in.Persona, a.metered("generator")).Generate(ctx, in.Message)
	metrics.RecordGeneration(in.Persona.ID, err == nil, time.Since(start).Seconds())
	tracing.EndSpan(span, err)

	if err != nil {
		logger.Warn("Generation failed",
			"persona", in.Persona.ID,
			"attempt", attempt,
			"error", err,
		)
		return GenerateResult{}, err
	}

	logger.Info("Candidate generated", "persona", in.Persona.ID, "chars", len(text))
	return GenerateResult{Candidate: candidates.Candidate{
		GeneratorID: in.Persona.ID,
		Text:        text,
		ProducedAt:  time.Now().UTC(),
	}}, nil
}
