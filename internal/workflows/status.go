package workflows

import (
	"fmt"

	"github.com/jcjurado/outreach/internal/candidates"
	"github.com/jcjurado/outreach/internal/mail"
)

// RunStatus is the state of a WorkflowRun.
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusGenerating RunStatus = "generating"
	StatusSelecting  RunStatus = "selecting"
	StatusSelected   RunStatus = "selected"
	StatusDelivering RunStatus = "delivering"
	StatusDelivered  RunStatus = "delivered"
	StatusFailed     RunStatus = "failed"
	StatusCancelled  RunStatus = "cancelled"
)

var runTransitions = map[RunStatus][]RunStatus{
	StatusPending:    {StatusGenerating, StatusFailed, StatusCancelled},
	StatusGenerating: {StatusSelecting, StatusFailed, StatusCancelled},
	StatusSelecting:  {StatusSelected, StatusFailed, StatusCancelled},
	StatusSelected:   {StatusDelivering, StatusFailed, StatusCancelled},
	StatusDelivering: {StatusDelivered, StatusFailed, StatusCancelled},
}

// Terminal reports whether no further transition is possible.
func (s RunStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether to is reachable from s in one step.
func (s RunStatus) CanTransition(to RunStatus) bool {
	for _, next := range runTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// DeliveryStatus is monotonic: NotSent moves to Sent or SendFailed once.
type DeliveryStatus string

const (
	DeliveryNotSent    DeliveryStatus = "not_sent"
	DeliverySent       DeliveryStatus = "sent"
	DeliverySendFailed DeliveryStatus = "send_failed"
)

// DeliveryJob is the query view of a delivery.
type DeliveryJob struct {
	RunID         string           `json:"run_id"`
	Sender        string           `json:"sender"`
	Recipient     string           `json:"recipient"`
	Subject       string           `json:"subject,omitempty"`
	ContentType   mail.ContentType `json:"content_type"`
	FormattedBody string           `json:"formatted_body,omitempty"`
	Stage         Stage            `json:"stage,omitempty"`
	Status        DeliveryStatus   `json:"status"`
	Receipt       *mail.Receipt    `json:"receipt,omitempty"`
}

// settle moves the job out of NotSent. Later calls are ignored.
func (j *DeliveryJob) settle(status DeliveryStatus) {
	if j.Status == DeliveryNotSent {
		j.Status = status
	}
}

// RunState is the query view of a run.
type RunState struct {
	RunID             string                 `json:"run_id"`
	Mode              Mode                   `json:"mode"`
	Status            RunStatus              `json:"status"`
	InputMessage      string                 `json:"input_message"`
	Candidates        []candidates.Candidate `json:"candidates"`
	Selected          *candidates.Candidate  `json:"selected,omitempty"`
	SelectionMismatch bool                   `json:"selection_mismatch"`
	Warnings          []string               `json:"warnings,omitempty"`
	Delivery          *DeliveryJob           `json:"delivery,omitempty"`
	ErrorKind         ErrorKind              `json:"error_kind,omitempty"`
	ErrorStage        Stage                  `json:"error_stage,omitempty"`
	ErrorDetail       string                 `json:"error_detail,omitempty"`
}

// run is the workflow-local WorkflowRun. Only the owning workflow mutates it.
type run struct {
	state RunState
	pool  *candidates.Pool
}

func newRun(id string, in RunInput) *run {
	return &run{
		state: RunState{
			RunID:        id,
			Mode:         in.Mode,
			Status:       StatusPending,
			InputMessage: in.Message,
		},
		pool: candidates.NewPool(),
	}
}

func (r *run) advance(to RunStatus) error {
	if !r.state.Status.CanTransition(to) {
		return fmt.Errorf("illegal run transition %s -> %s", r.state.Status, to)
	}
	r.state.Status = to
	return nil
}

// choose sets selected once; c must come from the pool.
func (r *run) choose(c candidates.Candidate) error {
	if r.state.Selected != nil {
		return fmt.Errorf("run %s already has a selection", r.state.RunID)
	}
	r.state.Selected = &c
	return nil
}

func (r *run) warn(msg string) {
	r.state.Warnings = append(r.state.Warnings, msg)
}

func (r *run) fail(oe *OrchestrationError) {
	if r.state.Status.Terminal() {
		return
	}
	r.state.Status = StatusFailed
	r.state.ErrorKind = oe.Kind
	r.state.ErrorStage = oe.Stage
	r.state.ErrorDetail = oe.Detail
}

func (r *run) snapshot() RunState {
	s := r.state
	s.Candidates = r.pool.All()
	s.Warnings = append([]string(nil), r.state.Warnings...)
	if r.state.Delivery != nil {
		job := *r.state.Delivery
		s.Delivery = &job
	}
	return s
}
