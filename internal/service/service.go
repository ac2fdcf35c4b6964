package service

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/jcjurado/outreach/internal/agents"
	"github.com/jcjurado/outreach/internal/config"
	"github.com/jcjurado/outreach/internal/constants"
	"github.com/jcjurado/outreach/internal/idempotency"
	"github.com/jcjurado/outreach/internal/llm"
	"github.com/jcjurado/outreach/internal/mail"
	"github.com/jcjurado/outreach/internal/metrics"
	"github.com/jcjurado/outreach/internal/workflows"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrRunNotFound  = errors.New("run not found")
)

// ConfigSource returns the configuration snapshot new runs are built from.
type ConfigSource interface {
	Current() *config.Config
}

// CampaignRequest is a manual trigger. Empty addresses use the configured pair.
type CampaignRequest struct {
	Brief     string `json:"brief"`
	Sender    string `json:"sender,omitempty"`
	Recipient string `json:"recipient,omitempty"`
}

// InboundEmail is the part of an inbound message event a reply needs.
type InboundEmail struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Service starts and observes outreach runs on Temporal.
type Service struct {
	client   client.Client
	config   ConfigSource
	provider llm.Provider
	logger   *zap.Logger
	newID    func() string
}

// New creates the service. provider backs the tools API only; runs use the
// worker's provider.
func New(c client.Client, cfg ConfigSource, provider llm.Provider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:   c,
		config:   cfg,
		provider: provider,
		logger:   logger,
		newID:    func() string { return uuid.New().String() },
	}
}

// BuildRunInput snapshots cfg into the immutable input of one run.
func BuildRunInput(cfg *config.Config, runID string, mode workflows.Mode, message, sender, recipient, subjectOverride string) (workflows.RunInput, error) {
	ps, err := cfg.Personas()
	if err != nil {
		return workflows.RunInput{}, err
	}
	contentType := mail.ContentHTML
	if mode == workflows.ModeReply {
		contentType = mail.ContentText
	}
	delivery := DeliveryOptions(cfg, sender, recipient, contentType)
	delivery.SubjectOverride = subjectOverride
	in := workflows.RunInput{
		RunID:    runID,
		Mode:     mode,
		Message:  message,
		Personas: ps,
		Selector: workflows.AgentSpec{
			Instructions: cfg.Selection.Instructions,
			ModelID:      cfg.ModelFor(cfg.Selection),
		},
		Delivery: delivery,
		Retries: workflows.RetryOptions{
			GenerationRetries: cfg.Orchestration.GenerationRetries,
			SelectionRetries:  cfg.Orchestration.SelectionRetries,
			InitialInterval:   cfg.Orchestration.RetryInitialInterval,
		},
		Timeouts: cfg.Orchestration.Timeouts,
	}
	if err := in.Validate(); err != nil {
		return workflows.RunInput{}, err
	}
	return in, nil
}

// DeliveryOptions renders the configured delivery stages. Empty addresses use
// the configured pair.
func DeliveryOptions(cfg *config.Config, sender, recipient string, contentType mail.ContentType) workflows.DeliveryOptions {
	if sender == "" {
		sender = cfg.Delivery.Sender
	}
	if recipient == "" {
		recipient = cfg.Delivery.Recipient
	}
	return workflows.DeliveryOptions{
		Sender:    sender,
		Recipient: recipient,
		Subject: workflows.AgentSpec{
			Instructions: cfg.Delivery.Subject.Instructions,
			ModelID:      cfg.ModelFor(cfg.Delivery.Subject),
		},
		Format: workflows.AgentSpec{
			Instructions: cfg.Delivery.HTML.Instructions,
			ModelID:      cfg.ModelFor(cfg.Delivery.HTML),
		},
		FallbackSubject: cfg.Delivery.FallbackSubject,
		ContentType:     contentType,
	}
}

// ReplyAddress extracts the bare address from an inbound "Name <addr>" field.
func ReplyAddress(from string) string {
	from = strings.TrimSpace(from)
	if addr, err := netmail.ParseAddress(from); err == nil {
		return addr.Address
	}
	return from
}

// ReplySubject prefixes the original subject the way replies are threaded.
func ReplySubject(subject string) string {
	return "RE: " + strings.TrimSpace(subject)
}

// ReplyRunID is stable for identical inbound events.
func ReplyRunID(e InboundEmail) string {
	return "reply-" + idempotency.Key(e.From, e.Subject, e.Text)
}

// StartCampaign enqueues a campaign run without waiting for it.
func (s *Service) StartCampaign(ctx context.Context, req CampaignRequest) (client.WorkflowRun, error) {
	cfg := s.config.Current()
	runID := "campaign-" + s.newID()
	in, err := BuildRunInput(cfg, runID, workflows.ModeCampaign, req.Brief, req.Sender, req.Recipient, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return s.start(ctx, cfg, in, client.StartWorkflowOptions{})
}

// RunCampaign runs a campaign to completion. Pipeline failures come back as
// *workflows.OrchestrationError.
func (s *Service) RunCampaign(ctx context.Context, req CampaignRequest) (workflows.RunResult, error) {
	run, err := s.StartCampaign(ctx, req)
	if err != nil {
		return workflows.RunResult{}, err
	}
	return s.await(ctx, run)
}

// SubmitReply enqueues a reply run for an inbound email. duplicate is true
// when a run with the same event ID already exists.
func (s *Service) SubmitReply(ctx context.Context, e InboundEmail) (runID string, duplicate bool, err error) {
	run, duplicate, err := s.startReply(ctx, e)
	if err != nil || duplicate {
		return ReplyRunID(e), duplicate, err
	}
	return run.GetID(), false, nil
}

// RunReply runs a reply to completion. A duplicate event is not awaited.
func (s *Service) RunReply(ctx context.Context, e InboundEmail) (workflows.RunResult, bool, error) {
	run, duplicate, err := s.startReply(ctx, e)
	if err != nil || duplicate {
		return workflows.RunResult{}, duplicate, err
	}
	res, err := s.await(ctx, run)
	return res, false, err
}

func (s *Service) startReply(ctx context.Context, e InboundEmail) (client.WorkflowRun, bool, error) {
	cfg := s.config.Current()
	runID := ReplyRunID(e)
	in, err := BuildRunInput(cfg, runID, workflows.ModeReply, e.Text, "", ReplyAddress(e.From), ReplySubject(e.Subject))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	run, err := s.start(ctx, cfg, in, client.StartWorkflowOptions{
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			s.logger.Info("Duplicate inbound event", zap.String("run_id", runID))
			return nil, true, nil
		}
		return nil, false, err
	}
	return run, false, nil
}

func (s *Service) start(ctx context.Context, cfg *config.Config, in workflows.RunInput, opts client.StartWorkflowOptions) (client.WorkflowRun, error) {
	opts.ID = in.RunID
	opts.TaskQueue = cfg.Temporal.TaskQueue
	opts.WorkflowRunTimeout = in.Timeouts.Run
	opts.Memo = map[string]interface{}{
		"mode":     string(in.Mode),
		"personas": len(in.Personas),
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, constants.OutreachWorkflowName, in)
	if err != nil {
		return nil, err
	}
	metrics.RunsStarted.WithLabelValues(string(in.Mode)).Inc()
	s.logger.Info("Started outreach run",
		zap.String("run_id", in.RunID),
		zap.String("mode", string(in.Mode)),
		zap.String("recipient", in.Delivery.Recipient),
	)
	return run, nil
}

func (s *Service) await(ctx context.Context, run client.WorkflowRun) (workflows.RunResult, error) {
	var result workflows.RunResult
	if err := run.Get(ctx, &result); err != nil {
		if oe, ok := workflows.AsOrchestrationError(err); ok {
			return workflows.RunResult{}, oe
		}
		return workflows.RunResult{}, fmt.Errorf("run %s: %w", run.GetID(), err)
	}
	return result, nil
}

// DeliveryRequest hands an already selected text to the delivery pipeline.
type DeliveryRequest struct {
	SelectedText string `json:"selected_text"`
	Sender       string `json:"sender,omitempty"`
	Recipient    string `json:"recipient,omitempty"`
	// Subject skips subject synthesis when set.
	Subject     string `json:"subject,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Deliver runs a DeliveryWorkflow on its own for an already selected text.
func (s *Service) Deliver(ctx context.Context, req DeliveryRequest) (workflows.DeliveryResult, error) {
	cfg := s.config.Current()
	if strings.TrimSpace(req.SelectedText) == "" {
		return workflows.DeliveryResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, workflows.ErrEmptyMessage)
	}
	contentType, err := mail.ParseContentType(req.ContentType)
	if err != nil {
		return workflows.DeliveryResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	opts := DeliveryOptions(cfg, req.Sender, req.Recipient, contentType)
	opts.SubjectOverride = req.Subject
	in := workflows.DeliveryInput{
		RunID:        "manual-" + s.newID(),
		Mode:         workflows.ModeCampaign,
		SelectedText: req.SelectedText,
		Options:      opts,
		Timeouts:     cfg.Orchestration.Timeouts,
	}
	if opts.Sender == "" || opts.Recipient == "" {
		return workflows.DeliveryResult{}, fmt.Errorf("%w: sender and recipient are required", ErrInvalidInput)
	}

	run, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflows.DeliveryWorkflowID(in.RunID),
		TaskQueue: cfg.Temporal.TaskQueue,
	}, constants.DeliveryWorkflowName, in)
	if err != nil {
		return workflows.DeliveryResult{}, err
	}
	var result workflows.DeliveryResult
	if err := run.Get(ctx, &result); err != nil {
		if oe, ok := workflows.AsOrchestrationError(err); ok {
			return workflows.DeliveryResult{}, oe
		}
		return workflows.DeliveryResult{}, err
	}
	return result, nil
}

// RunState queries a run, live or closed.
func (s *Service) RunState(ctx context.Context, runID string) (workflows.RunState, error) {
	var state workflows.RunState
	value, err := s.client.QueryWorkflow(ctx, runID, "", constants.QueryRunState)
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return state, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return state, err
	}
	if err := value.Get(&state); err != nil {
		return state, fmt.Errorf("decode run state: %w", err)
	}
	return state, nil
}

// Toolbox exposes the configured personas as directly invokable tools.
func (s *Service) Toolbox() (*agents.Toolbox, error) {
	ps, err := s.config.Current().Personas()
	if err != nil {
		return nil, err
	}
	gens := make([]*agents.GenerationAgent, 0, len(ps))
	for _, p := range ps {
		gens = append(gens, agents.NewGenerationAgent(p, s.provider))
	}
	return agents.NewToolbox(gens...)
}
