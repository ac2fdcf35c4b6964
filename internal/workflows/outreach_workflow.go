package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/jcjurado/outreach/internal/activities"
	"github.com/jcjurado/outreach/internal/constants"
	"github.com/jcjurado/outreach/internal/mail"
	"github.com/jcjurado/outreach/internal/personas"
	"github.com/jcjurado/outreach/internal/util"
)

// DeliveryWorkflowID is the child workflow ID of a run's single handoff.
func DeliveryWorkflowID(runID string) string {
	return runID + "-delivery"
}

// OutreachWorkflow drives one run: fan out to every persona, wait for all of
// them to settle, select exactly one candidate, then hand off to
// DeliveryWorkflow. The run state is queryable through QueryRunState.
func OutreachWorkflow(ctx workflow.Context, in RunInput) (RunResult, error) {
	logger := workflow.GetLogger(ctx)
	runID := in.RunID
	if runID == "" {
		runID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	r := newRun(runID, in)
	startedAt := workflow.Now(ctx)

	if err := workflow.SetQueryHandler(ctx, constants.QueryRunState, func() (RunState, error) {
		return r.snapshot(), nil
	}); err != nil {
		return RunResult{}, err
	}

	if err := in.Validate(); err != nil {
		r.fail(&OrchestrationError{Kind: KindInvalidInput, Detail: err.Error()})
		archiveRun(ctx, r, in, startedAt)
		return RunResult{}, temporal.NewNonRetryableApplicationError(err.Error(), KindInvalidInput, err)
	}

	logger.Info("Starting OutreachWorkflow",
		"run_id", runID,
		"mode", in.Mode,
		"personas", len(in.Personas),
	)

	result, err := orchestrate(ctx, r, in)
	archiveRun(ctx, r, in, startedAt)

	if err != nil {
		return RunResult{}, err
	}
	logger.Info("OutreachWorkflow completed",
		"run_id", runID,
		"winner", result.FinalAgentLabel,
		"selection_mismatch", result.SelectionMismatch,
	)
	return result, nil
}

func orchestrate(ctx workflow.Context, r *run, in RunInput) (RunResult, error) {
	logger := workflow.GetLogger(ctx)
	runID := r.state.RunID

	// Generating: one future per persona, joined in configured order so the
	// pool's insertion order is the dispatch order.
	if err := r.advance(StatusGenerating); err != nil {
		return RunResult{}, err
	}
	gctx := workflow.WithActivityOptions(ctx, retryingOptions(
		in.Timeouts.Generation, in.Retries.GenerationRetries, in.Retries.InitialInterval))

	futures := make([]workflow.Future, len(in.Personas))
	for i, p := range in.Personas {
		r.pool.MarkInvoked(p.ID)
		futures[i] = workflow.ExecuteActivity(gctx, constants.GenerateCandidateActivity, activities.GenerateInput{
			Persona: p,
			Message: in.Message,
		})
	}
	for i, f := range futures {
		p := in.Personas[i]
		var out activities.GenerateResult
		if err := f.Get(ctx, &out); err != nil {
			if cancelled(ctx, err) {
				return RunResult{}, r.cancel()
			}
			logger.Warn("Generator produced no candidate after retries",
				"persona", p.ID,
				"error", err,
			)
			r.warn(fmt.Sprintf("generator %s failed: %s", p.ID, detailOf(err)))
			continue
		}
		if _, err := r.pool.Record(p.ID, out.Candidate.Text, out.Candidate.ProducedAt); err != nil {
			r.warn(fmt.Sprintf("generator %s: %v", p.ID, err))
		}
	}

	if r.pool.Len() == 0 {
		oe := &OrchestrationError{
			Kind:   KindAllGeneratorsFailed,
			Stage:  StageGeneration,
			Detail: fmt.Sprintf("all %d generators failed", len(in.Personas)),
		}
		r.fail(oe)
		return RunResult{}, oe.toApplicationError()
	}
	if !r.pool.IsComplete(personas.IDs(in.Personas)) {
		logger.Warn("Selecting from a degraded candidate set",
			"candidates", r.pool.Len(),
			"configured", len(in.Personas),
		)
	}

	// Selecting: exactly one selector call over the full ordered set.
	if err := r.advance(StatusSelecting); err != nil {
		return RunResult{}, err
	}
	sctx := workflow.WithActivityOptions(ctx, retryingOptions(
		in.Timeouts.Selection, in.Retries.SelectionRetries, in.Retries.InitialInterval))

	var answer activities.SelectResult
	err := workflow.ExecuteActivity(sctx, constants.SelectCandidateActivity, activities.SelectInput{
		Brief:        in.Message,
		Candidates:   r.pool.All(),
		Instructions: in.Selector.Instructions,
		ModelID:      in.Selector.ModelID,
	}).Get(ctx, &answer)
	if err != nil {
		if cancelled(ctx, err) {
			return RunResult{}, r.cancel()
		}
		oe := newFailure(KindSelectionError, StageSelection, err)
		r.fail(oe)
		return RunResult{}, oe.toApplicationError()
	}

	chosen, ok := r.pool.Match(answer.Text)
	if !ok {
		chosen, _ = r.pool.First()
		r.state.SelectionMismatch = true
		r.warn("selection matched no candidate; using first candidate from " + chosen.GeneratorID)
		logger.Warn("Selection mismatch, falling back to first candidate",
			"run_id", runID,
			"fallback", chosen.GeneratorID,
			"answer", util.Preview(answer.Text, 120),
		)
	}
	if err := r.choose(chosen); err != nil {
		return RunResult{}, err
	}
	if err := r.advance(StatusSelected); err != nil {
		return RunResult{}, err
	}

	// The job is created from the Selected run, then the run hands off
	// one way to the child workflow.
	contentType := in.Delivery.ContentType
	if contentType == "" {
		contentType = mail.ContentHTML
	}
	job := &DeliveryJob{
		RunID:       runID,
		Sender:      in.Delivery.Sender,
		Recipient:   in.Delivery.Recipient,
		ContentType: contentType,
		Status:      DeliveryNotSent,
	}
	r.state.Delivery = job
	if err := r.advance(StatusDelivering); err != nil {
		return RunResult{}, err
	}

	cctx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID:          DeliveryWorkflowID(runID),
		WaitForCancellation: true,
	})
	var delivered DeliveryResult
	err = workflow.ExecuteChildWorkflow(cctx, DeliveryWorkflow, DeliveryInput{
		RunID:        runID,
		Mode:         in.Mode,
		SelectedText: chosen.Text,
		Options:      in.Delivery,
		Timeouts:     in.Timeouts,
	}).Get(ctx, &delivered)
	if err != nil {
		if cancelled(ctx, err) {
			if status, ok := settledStatus(err); ok {
				job.settle(status)
			}
			return RunResult{}, r.cancel()
		}
		oe, ok := AsOrchestrationError(err)
		if !ok {
			oe = newFailure(KindDeliveryError, "", err)
		}
		oe = &OrchestrationError{Kind: KindDeliveryError, Stage: oe.Stage, Detail: oe.Detail}
		job.Stage = oe.Stage
		if oe.Stage == StageTransport {
			job.settle(DeliverySendFailed)
		}
		r.fail(oe)
		return RunResult{}, oe.toApplicationError()
	}

	job.Subject = delivered.Subject
	job.Receipt = &delivered.Receipt
	job.settle(DeliverySent)
	if err := r.advance(StatusDelivered); err != nil {
		return RunResult{}, err
	}

	return RunResult{
		RunID:             runID,
		FinalText:         chosen.Text,
		FinalAgentLabel:   chosen.GeneratorID,
		FinalAgentName:    displayName(in.Personas, chosen.GeneratorID),
		SelectionMismatch: r.state.SelectionMismatch,
		Candidates:        r.pool.All(),
		Warnings:          append([]string(nil), r.state.Warnings...),
		Delivery:          delivered,
	}, nil
}

func cancelled(ctx workflow.Context, err error) bool {
	return ctx.Err() != nil || temporal.IsCanceledError(err)
}

// settledStatus reads the DeliveryStatus a cancelled delivery reported
// after its send settled.
func settledStatus(err error) (DeliveryStatus, bool) {
	var canceledErr *temporal.CanceledError
	if !errors.As(err, &canceledErr) || !canceledErr.HasDetails() {
		return "", false
	}
	var status DeliveryStatus
	if derr := canceledErr.Details(&status); derr != nil || status == DeliveryNotSent || status == "" {
		return "", false
	}
	return status, true
}

func (r *run) cancel() error {
	if !r.state.Status.Terminal() {
		r.state.Status = StatusCancelled
	}
	return temporal.NewCanceledError()
}

func displayName(ps []personas.Persona, id string) string {
	for _, p := range ps {
		if p.ID == id {
			return p.DisplayName
		}
	}
	return id
}

// archiveRun records the terminal run. It runs on a disconnected context so
// cancelled runs are archived too, and its failure never fails the run.
func archiveRun(ctx workflow.Context, r *run, in RunInput, startedAt time.Time) {
	s := r.snapshot()
	input := activities.ArchiveInput{
		RunID:             s.RunID,
		Mode:              string(s.Mode),
		Status:            string(s.Status),
		InputMessage:      s.InputMessage,
		Candidates:        s.Candidates,
		Selected:          s.Selected,
		SelectionMismatch: s.SelectionMismatch,
		Warnings:          s.Warnings,
		ErrorKind:         string(s.ErrorKind),
		ErrorStage:        string(s.ErrorStage),
		ErrorDetail:       s.ErrorDetail,
		DeliveryStatus:    string(DeliveryNotSent),
		Recipient:         in.Delivery.Recipient,
		StartedAt:         startedAt,
		CompletedAt:       workflow.Now(ctx),
	}
	if s.Delivery != nil {
		input.DeliveryStatus = string(s.Delivery.Status)
		input.Subject = s.Delivery.Subject
		input.Receipt = s.Delivery.Receipt
	}

	dctx, _ := workflow.NewDisconnectedContext(ctx)
	dctx = workflow.WithActivityOptions(dctx, singleShotOptions(archiveTimeout))
	if err := workflow.ExecuteActivity(dctx, constants.ArchiveRunActivity, input).Get(dctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("Run archive failed", "run_id", s.RunID, "error", err)
	}
}
