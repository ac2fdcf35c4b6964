package workflows

import (
	"fmt"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/jcjurado/outreach/internal/activities"
	"github.com/jcjurado/outreach/internal/constants"
	"github.com/jcjurado/outreach/internal/mail"
	"github.com/jcjurado/outreach/internal/policy"
)

const policyStageVersion = "delivery_policy_v1"

// DeliveryWorkflow turns a selected text into one sent email:
// subject, format, policy, send. No stage is retried. The send runs on a
// disconnected context, so a cancel that races with it lets the send finish,
// discards the receipt and never sends again. Such a cancel carries the
// settled DeliveryStatus as its details.
func DeliveryWorkflow(ctx workflow.Context, in DeliveryInput) (DeliveryResult, error) {
	logger := workflow.GetLogger(ctx)
	opts := in.Options
	contentType := opts.ContentType
	if contentType == "" {
		contentType = mail.ContentHTML
	}

	job := &DeliveryJob{
		RunID:       in.RunID,
		Sender:      opts.Sender,
		Recipient:   opts.Recipient,
		ContentType: contentType,
		Status:      DeliveryNotSent,
	}
	if err := workflow.SetQueryHandler(ctx, constants.QueryDeliveryState, func() (DeliveryJob, error) {
		return *job, nil
	}); err != nil {
		return DeliveryResult{}, err
	}

	if in.SelectedText == "" {
		return DeliveryResult{}, temporal.NewNonRetryableApplicationError("selected text is empty", KindInvalidInput, nil)
	}
	if err := opts.validate(); err != nil {
		return DeliveryResult{}, temporal.NewNonRetryableApplicationError(err.Error(), KindInvalidInput, err)
	}

	fail := func(stage Stage, err error) (DeliveryResult, error) {
		job.Stage = stage
		oe := newFailure(KindDeliveryError, stage, err)
		logger.Error("Delivery failed",
			"run_id", in.RunID,
			"stage", stage,
			"error", err,
		)
		return DeliveryResult{}, oe.toApplicationError()
	}
	result := DeliveryResult{ContentType: contentType}

	// Subject synthesis.
	subject := opts.SubjectOverride
	if subject == "" {
		job.Stage = StageSubject
		var out activities.SubjectResult
		sctx := workflow.WithActivityOptions(ctx, singleShotOptions(in.Timeouts.Subject))
		err := workflow.ExecuteActivity(sctx, constants.WriteSubjectActivity, activities.SubjectInput{
			Body:         in.SelectedText,
			Instructions: opts.Subject.Instructions,
			ModelID:      opts.Subject.ModelID,
		}).Get(ctx, &out)
		switch {
		case err == nil:
			subject = out.Subject
		case cancelled(ctx, err):
			return DeliveryResult{}, temporal.NewCanceledError()
		case opts.FallbackSubject != "":
			logger.Warn("Subject synthesis failed, using fallback subject", "run_id", in.RunID, "error", err)
			subject = opts.FallbackSubject
			result.SubjectFallback = true
		default:
			return fail(StageSubject, err)
		}
	}
	job.Subject = subject
	result.Subject = subject

	// Format conversion; plain-text deliveries send the selected text as is.
	body := in.SelectedText
	if contentType == mail.ContentHTML {
		job.Stage = StageFormat
		var out activities.FormatResult
		fctx := workflow.WithActivityOptions(ctx, singleShotOptions(in.Timeouts.Format))
		err := workflow.ExecuteActivity(fctx, constants.ConvertFormatActivity, activities.FormatInput{
			Subject:      subject,
			Body:         in.SelectedText,
			Instructions: opts.Format.Instructions,
			ModelID:      opts.Format.ModelID,
		}).Get(ctx, &out)
		if err != nil {
			if cancelled(ctx, err) {
				return DeliveryResult{}, temporal.NewCanceledError()
			}
			return fail(StageFormat, err)
		}
		body = out.Body
	}
	job.FormattedBody = body

	if v := workflow.GetVersion(ctx, policyStageVersion, workflow.DefaultVersion, 1); v >= 1 {
		job.Stage = StagePolicy
		var decision policy.Decision
		pctx := workflow.WithActivityOptions(ctx, singleShotOptions(in.Timeouts.Policy))
		err := workflow.ExecuteActivity(pctx, constants.CheckDeliveryPolicyActivity, activities.PolicyInput{
			Sender:    opts.Sender,
			Recipient: opts.Recipient,
			Mode:      string(in.Mode),
		}).Get(ctx, &decision)
		if err != nil {
			if cancelled(ctx, err) {
				return DeliveryResult{}, temporal.NewCanceledError()
			}
			return fail(StagePolicy, err)
		}
		result.Policy = &decision
		if !decision.Allow {
			return fail(StagePolicy, fmt.Errorf("delivery denied by policy: %s", decision.Reason))
		}
	}

	if ctx.Err() != nil {
		return DeliveryResult{}, temporal.NewCanceledError()
	}

	// Transport send, exactly once.
	job.Stage = StageTransport
	sendCtx, _ := workflow.NewDisconnectedContext(ctx)
	sendCtx = workflow.WithActivityOptions(sendCtx, singleShotOptions(in.Timeouts.Send))
	var receipt mail.Receipt
	err := workflow.ExecuteActivity(sendCtx, constants.SendEmailActivity, mail.Message{
		From:        opts.Sender,
		To:          opts.Recipient,
		Subject:     subject,
		ContentType: contentType,
		Body:        body,
	}).Get(sendCtx, &receipt)
	if err != nil {
		job.settle(DeliverySendFailed)
		if ctx.Err() != nil {
			return DeliveryResult{}, temporal.NewCanceledError(job.Status)
		}
		return fail(StageTransport, err)
	}
	job.settle(DeliverySent)

	// The cancel carries the settled status so the parent records the send.
	if ctx.Err() != nil {
		logger.Warn("Delivery cancelled while sending; receipt discarded", "run_id", in.RunID)
		return DeliveryResult{}, temporal.NewCanceledError(job.Status)
	}

	job.Stage = ""
	job.Receipt = &receipt
	result.Receipt = receipt
	logger.Info("Delivery completed",
		"run_id", in.RunID,
		"status", receipt.StatusCode,
		"subject_fallback", result.SubjectFallback,
	)
	return result, nil
}
