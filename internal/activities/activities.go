// Package activities holds the side-effecting steps of an outreach run:
// model calls, the policy check, the transport send, and archiving.
package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/jcjurado/outreach/internal/db"
	"github.com/jcjurado/outreach/internal/llm"
	"github.com/jcjurado/outreach/internal/mail"
	"github.com/jcjurado/outreach/internal/metrics"
	"github.com/jcjurado/outreach/internal/policy"
	"github.com/jcjurado/outreach/internal/pricing"
)

// Archiver persists finished runs.
type Archiver interface {
	SaveRun(ctx context.Context, rec *db.RunRecord) error
}

// Activities struct holds dependencies for activities
type Activities struct {
	provider  llm.Provider
	transport mail.Transport
	policy    policy.Engine
	archiver  Archiver
	logger    *zap.Logger
}

// NewActivities creates a new activities instance with dependencies. The
// policy engine and archiver are optional.
func NewActivities(provider llm.Provider, transport mail.Transport, engine policy.Engine, archiver Archiver, logger *zap.Logger) *Activities {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Activities{
		provider:  provider,
		transport: transport,
		policy:    engine,
		archiver:  archiver,
		logger:    logger,
	}
}

// metered counts token usage and estimated spend of every call made for role.
func (a *Activities) metered(role string) llm.Provider {
	return llm.ProviderFunc(func(ctx context.Context, req llm.Request) (llm.Response, error) {
		resp, err := a.provider.Invoke(ctx, req)
		if err == nil {
			model := resp.ModelUsed
			if model == "" {
				model = req.ModelID
			}
			metrics.RecordTokens(role, resp.InputTokens, resp.OutputTokens)
			if resp.InputTokens+resp.OutputTokens > 0 {
				metrics.LLMCost.WithLabelValues(role, model).Add(pricing.CostForSplit(model, resp.InputTokens, resp.OutputTokens))
			}
		}
		return resp, err
	})
}
