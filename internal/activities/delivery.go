package activities

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/jcjurado/outreach/internal/agents"
	"github.com/jcjurado/outreach/internal/mail"
	"github.com/jcjurado/outreach/internal/metrics"
	"github.com/jcjurado/outreach/internal/policy"
	"github.com/jcjurado/outreach/internal/tracing"
)

// SubjectInput asks for a subject line for Body.
type SubjectInput struct {
	Body         string `json:"body"`
	Instructions string `json:"instructions,omitempty"`
	ModelID      string `json:"model_id"`
}

type SubjectResult struct {
	Subject string `json:"subject"`
}

// FormatInput asks for the HTML rendering of Body.
type FormatInput struct {
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	Instructions string `json:"instructions,omitempty"`
	ModelID      string `json:"model_id"`
}

type FormatResult struct {
	Body string `json:"body"`
}

// PolicyInput is what the delivery policy is evaluated against.
type PolicyInput struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Mode      string `json:"mode"`
}

// WriteSubject synthesizes the subject line.
func (a *Activities) WriteSubject(ctx context.Context, in SubjectInput) (SubjectResult, error) {
	ctx, span := tracing.StartSpan(ctx, "outreach.subject")
	subject, err := agents.NewSubjectWriter(in.Instructions, in.ModelID, a.metered("subject")).Write(ctx, in.Body)
	tracing.EndSpan(span, err)
	if err != nil {
		metrics.RecordDeliveryStage("subject", "failure")
		return SubjectResult{}, err
	}
	metrics.RecordDeliveryStage("subject", "success")
	return SubjectResult{Subject: subject}, nil
}

// ConvertFormat renders the selected text as an HTML email body.
func (a *Activities) ConvertFormat(ctx context.Context, in FormatInput) (FormatResult, error) {
	ctx, span := tracing.StartSpan(ctx, "outreach.format")
	body, err := agents.NewFormatter(in.Instructions, in.ModelID, a.metered("formatter")).ToHTML(ctx, in.Subject, in.Body)
	tracing.EndSpan(span, err)
	if err != nil {
		metrics.RecordDeliveryStage("format", "failure")
		return FormatResult{}, err
	}
	metrics.RecordDeliveryStage("format", "success")
	return FormatResult{Body: body}, nil
}

// CheckDeliveryPolicy evaluates the recipient against the delivery policy.
// Without an engine every delivery is allowed.
func (a *Activities) CheckDeliveryPolicy(ctx context.Context, in PolicyInput) (policy.Decision, error) {
	if a.policy == nil {
		return policy.Decision{Allow: true, WouldAllow: true, Reason: "policy disabled", Mode: policy.ModeOff}, nil
	}
	decision, err := a.policy.Evaluate(ctx, policy.Input{
		Sender:    in.Sender,
		Recipient: in.Recipient,
		Domain:    mail.Domain(in.Recipient),
		Mode:      in.Mode,
	})
	if err != nil {
		metrics.RecordDeliveryStage("policy", "error")
		return policy.Decision{}, err
	}
	if decision.Allow {
		metrics.RecordDeliveryStage("policy", "allow")
	} else {
		metrics.RecordDeliveryStage("policy", "deny")
	}
	return decision, nil
}

// SendEmail makes exactly one transport call. Every failure is returned as
// non-retryable so a misconfigured retry policy still cannot resend.
func (a *Activities) SendEmail(ctx context.Context, msg mail.Message) (mail.Receipt, error) {
	logger := activity.GetLogger(ctx)

	if err := msg.Validate(); err != nil {
		metrics.RecordDeliveryStage("transport", "rejected")
		return mail.Receipt{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidMessage", err)
	}

	ctx, span := tracing.StartSpan(ctx, "outreach.send", "to_domain", mail.Domain(msg.To))
	receipt, err := a.transport.Send(ctx, msg)
	tracing.EndSpan(span, err)
	if err != nil {
		metrics.RecordDeliveryStage("transport", "failure")
		logger.Error("Transport send failed", "to", msg.To, "error", err)
		var te *mail.TransportError
		if errors.As(err, &te) {
			return mail.Receipt{}, temporal.NewNonRetryableApplicationError(te.Error(), "TransportError", te, te.StatusCode)
		}
		return mail.Receipt{}, temporal.NewNonRetryableApplicationError(err.Error(), "TransportError", err)
	}

	metrics.RecordDeliveryStage("transport", "success")
	logger.Info("Email sent",
		"to", msg.To,
		"status", receipt.StatusCode,
		"message_id", receipt.MessageID,
	)
	return receipt, nil
}
