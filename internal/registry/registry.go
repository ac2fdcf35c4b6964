package registry

import (
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/jcjurado/outreach/internal/activities"
	"github.com/jcjurado/outreach/internal/constants"
	"github.com/jcjurado/outreach/internal/llm"
	"github.com/jcjurado/outreach/internal/mail"
	"github.com/jcjurado/outreach/internal/policy"
	"github.com/jcjurado/outreach/internal/workflows"
)

// Dependencies are the side-effecting collaborators of the activities.
// Policy and Archiver are optional.
type Dependencies struct {
	Provider  llm.Provider
	Transport mail.Transport
	Policy    policy.Engine
	Archiver  activities.Archiver
}

// OutreachRegistry implements the Registry interface
type OutreachRegistry struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewOutreachRegistry creates a new registry instance
func NewOutreachRegistry(deps Dependencies, logger *zap.Logger) *OutreachRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutreachRegistry{deps: deps, logger: logger}
}

// RegisterWorkflows registers the run workflow and its delivery child.
func (r *OutreachRegistry) RegisterWorkflows(t Target) error {
	t.RegisterWorkflowWithOptions(workflows.OutreachWorkflow, workflow.RegisterOptions{Name: constants.OutreachWorkflowName})
	t.RegisterWorkflowWithOptions(workflows.DeliveryWorkflow, workflow.RegisterOptions{Name: constants.DeliveryWorkflowName})
	r.logger.Info("Registered workflows",
		zap.Strings("workflows", []string{constants.OutreachWorkflowName, constants.DeliveryWorkflowName}))
	return nil
}

// RegisterActivities registers every activity under its constant name.
func (r *OutreachRegistry) RegisterActivities(t Target) error {
	if r.deps.Provider == nil {
		return errors.New("registry: provider is required")
	}
	if r.deps.Transport == nil {
		return errors.New("registry: transport is required")
	}

	acts := activities.NewActivities(r.deps.Provider, r.deps.Transport, r.deps.Policy, r.deps.Archiver, r.logger)

	// Generation and selection
	t.RegisterActivityWithOptions(acts.GenerateCandidate, activity.RegisterOptions{Name: constants.GenerateCandidateActivity})
	t.RegisterActivityWithOptions(acts.SelectCandidate, activity.RegisterOptions{Name: constants.SelectCandidateActivity})

	// Delivery pipeline
	t.RegisterActivityWithOptions(acts.WriteSubject, activity.RegisterOptions{Name: constants.WriteSubjectActivity})
	t.RegisterActivityWithOptions(acts.ConvertFormat, activity.RegisterOptions{Name: constants.ConvertFormatActivity})
	t.RegisterActivityWithOptions(acts.CheckDeliveryPolicy, activity.RegisterOptions{Name: constants.CheckDeliveryPolicyActivity})
	t.RegisterActivityWithOptions(acts.SendEmail, activity.RegisterOptions{Name: constants.SendEmailActivity})

	// Persistence
	t.RegisterActivityWithOptions(acts.ArchiveRun, activity.RegisterOptions{Name: constants.ArchiveRunActivity})

	r.logger.Info("Registered activities",
		zap.Bool("policy", r.deps.Policy != nil),
		zap.Bool("archive", r.deps.Archiver != nil),
	)
	return nil
}

// Register is a convenience that registers workflows then activities.
func (r *OutreachRegistry) Register(t Target) error {
	if err := r.RegisterWorkflows(t); err != nil {
		return err
	}
	return r.RegisterActivities(t)
}
