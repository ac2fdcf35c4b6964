package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptyOutput   = errors.New("model returned empty output")
	ErrNoProvider    = errors.New("no provider configured for model")
	ErrToolRequested = errors.New("model requested a tool call")
)

// GenerationError is a failed or timed-out agent call.
type GenerationError struct {
	Provider string
	ModelID  string
	Timeout  bool
	Cause    error
}

// NewGenerationError wraps cause, flagging deadline overruns as timeouts.
func NewGenerationError(provider, model string, cause error) *GenerationError {
	return &GenerationError{
		Provider: provider,
		ModelID:  model,
		Timeout:  errors.Is(cause, context.DeadlineExceeded),
		Cause:    cause,
	}
}

func (e *GenerationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("generation timed out (%s/%s): %v", e.Provider, e.ModelID, e.Cause)
	}
	return fmt.Sprintf("generation failed (%s/%s): %v", e.Provider, e.ModelID, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// AsGenerationError extracts a GenerationError from err's chain.
func AsGenerationError(err error) (*GenerationError, bool) {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
