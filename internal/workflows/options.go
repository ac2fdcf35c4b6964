package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	defaultStageTimeout    = time.Minute
	defaultInitialInterval = time.Second
	archiveTimeout         = 30 * time.Second
)

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// retryingOptions allows 1+retries attempts of one call.
func retryingOptions(timeout time.Duration, retries int, initial time.Duration) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: orDefault(timeout, defaultStageTimeout),
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    orDefault(initial, defaultInitialInterval),
			BackoffCoefficient: 2.0,
			MaximumAttempts:    int32(1 + retries),
		},
	}
}

// singleShotOptions allows exactly one attempt.
func singleShotOptions(timeout time.Duration) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: orDefault(timeout, defaultStageTimeout),
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
}
