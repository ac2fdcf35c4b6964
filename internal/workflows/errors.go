package workflows

import (
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"
)

// ErrorKind classifies a failed run.
type ErrorKind string

const (
	KindAllGeneratorsFailed ErrorKind = "AllGeneratorsFailed"
	KindSelectionError      ErrorKind = "SelectionError"
	KindDeliveryError       ErrorKind = "DeliveryError"
)

// KindInvalidInput is reported for inputs rejected before any work starts.
const KindInvalidInput = "InvalidInput"

// Stage names where in the pipeline a run failed.
type Stage string

const (
	StageGeneration Stage = "generation"
	StageSelection  Stage = "selection"
	StageSubject    Stage = "subject"
	StageFormat     Stage = "format"
	StagePolicy     Stage = "policy"
	StageTransport  Stage = "transport"
)

// OrchestrationError is the caller-facing failure of a run. Delivery
// failures use KindDeliveryError with Stage naming the failed step.
type OrchestrationError struct {
	Kind   ErrorKind
	Stage  Stage
	Detail string
	Cause  error
}

func (e *OrchestrationError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *OrchestrationError) Unwrap() error { return e.Cause }

// IsDeliveryError reports whether e failed inside the delivery pipeline.
func (e *OrchestrationError) IsDeliveryError() bool { return e.Kind == KindDeliveryError }

// failureDetails travels with the ApplicationError across the workflow boundary.
type failureDetails struct {
	Stage  Stage  `json:"stage"`
	Detail string `json:"detail"`
}

// toApplicationError renders e as the non-retryable error a workflow returns.
func (e *OrchestrationError) toApplicationError() error {
	return temporal.NewNonRetryableApplicationError(
		e.Error(), string(e.Kind), e.Cause, failureDetails{Stage: e.Stage, Detail: e.Detail})
}

func newFailure(kind ErrorKind, stage Stage, cause error) *OrchestrationError {
	return &OrchestrationError{Kind: kind, Stage: stage, Detail: detailOf(cause), Cause: cause}
}

// AsOrchestrationError recovers an OrchestrationError from a workflow or
// child-workflow error chain.
func AsOrchestrationError(err error) (*OrchestrationError, bool) {
	var oe *OrchestrationError
	if errors.As(err, &oe) {
		return oe, true
	}
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return nil, false
	}
	kind := ErrorKind(appErr.Type())
	switch kind {
	case KindAllGeneratorsFailed, KindSelectionError, KindDeliveryError:
	default:
		return nil, false
	}
	out := &OrchestrationError{Kind: kind, Detail: appErr.Message(), Cause: err}
	if appErr.HasDetails() {
		var d failureDetails
		if derr := appErr.Details(&d); derr == nil {
			out.Stage = d.Stage
			if d.Detail != "" {
				out.Detail = d.Detail
			}
		}
	}
	return out, true
}

// detailOf prefers the innermost application message over the wrapped
// activity or child-workflow error text.
func detailOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Message() != "" {
		return appErr.Message()
	}
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return "timed out: " + timeoutErr.TimeoutType().String()
	}
	return err.Error()
}
