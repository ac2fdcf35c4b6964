package interceptors

import (
	"net/http"

	"go.temporal.io/sdk/activity"
)

// Header names stamped on outbound provider calls made from activities.
const (
	HeaderWorkflowID   = "X-Workflow-ID"
	HeaderRunID        = "X-Run-ID"
	HeaderActivityType = "X-Activity-Type"
)

// WorkflowHTTPRoundTripper adds workflow metadata to outgoing HTTP requests
type WorkflowHTTPRoundTripper struct {
	base http.RoundTripper
}

// NewWorkflowHTTPRoundTripper creates a new HTTP interceptor that adds workflow metadata
func NewWorkflowHTTPRoundTripper(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &WorkflowHTTPRoundTripper{base: base}
}

// RoundTrip implements http.RoundTripper and injects workflow headers
func (w *WorkflowHTTPRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if info, ok := activityInfo(req); ok && info.WorkflowExecution.ID != "" {
		req = req.Clone(req.Context())
		req.Header.Set(HeaderWorkflowID, info.WorkflowExecution.ID)
		req.Header.Set(HeaderRunID, info.WorkflowExecution.RunID)
		req.Header.Set(HeaderActivityType, info.ActivityType.Name)
	}
	return w.base.RoundTrip(req)
}

// activityInfo returns the activity info when the request carries an activity
// context; GetInfo panics outside of one (CLI calls, tests).
func activityInfo(req *http.Request) (info activity.Info, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return activity.GetInfo(req.Context()), true
}
