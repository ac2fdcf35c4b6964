package activities

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/jcjurado/outreach/internal/candidates"
	"github.com/jcjurado/outreach/internal/db"
	"github.com/jcjurado/outreach/internal/mail"
	"github.com/jcjurado/outreach/internal/metrics"
)

// ArchiveInput is the terminal snapshot of a run.
type ArchiveInput struct {
	RunID             string                 `json:"run_id"`
	Mode              string                 `json:"mode"`
	Status            string                 `json:"status"`
	InputMessage      string                 `json:"input_message"`
	Candidates        []candidates.Candidate `json:"candidates"`
	Selected          *candidates.Candidate  `json:"selected,omitempty"`
	SelectionMismatch bool                   `json:"selection_mismatch"`
	Warnings          []string               `json:"warnings,omitempty"`
	ErrorKind         string                 `json:"error_kind,omitempty"`
	ErrorStage        string                 `json:"error_stage,omitempty"`
	ErrorDetail       string                 `json:"error_detail,omitempty"`
	DeliveryStatus    string                 `json:"delivery_status"`
	Recipient         string                 `json:"recipient"`
	Subject           string                 `json:"subject,omitempty"`
	Receipt           *mail.Receipt          `json:"receipt,omitempty"`
	StartedAt         time.Time              `json:"started_at"`
	CompletedAt       time.Time              `json:"completed_at"`
}

// ArchiveRun records run metrics and, when a store is configured, persists
// the run. It runs once per terminal run.
func (a *Activities) ArchiveRun(ctx context.Context, in ArchiveInput) error {
	metrics.RecordRun(in.Mode, in.Status, in.CompletedAt.Sub(in.StartedAt).Seconds())
	if in.SelectionMismatch {
		metrics.SelectionMismatches.Inc()
	}
	if a.archiver == nil {
		return nil
	}
	if err := a.archiver.SaveRun(ctx, ArchiveRecord(in)); err != nil {
		activity.GetLogger(ctx).Error("Run archive failed", "run_id", in.RunID, "error", err)
		return err
	}
	return nil
}

// ArchiveRecord maps a run snapshot onto its database row.
func ArchiveRecord(in ArchiveInput) *db.RunRecord {
	rec := &db.RunRecord{
		RunID:             in.RunID,
		Mode:              in.Mode,
		Status:            in.Status,
		InputMessage:      in.InputMessage,
		SelectionMismatch: in.SelectionMismatch,
		ErrorKind:         db.StringPtr(in.ErrorKind),
		ErrorStage:        db.StringPtr(in.ErrorStage),
		ErrorDetail:       db.StringPtr(in.ErrorDetail),
		DeliveryStatus:    in.DeliveryStatus,
		Recipient:         in.Recipient,
		Subject:           db.StringPtr(in.Subject),
		StartedAt:         in.StartedAt,
		CompletedAt:       in.CompletedAt,
	}
	if in.Selected != nil {
		rec.SelectedGenerator = db.StringPtr(in.Selected.GeneratorID)
		rec.SelectedText = db.StringPtr(in.Selected.Text)
	}
	if in.Receipt != nil {
		status := in.Receipt.StatusCode
		rec.ProviderStatus = &status
		rec.MessageID = db.StringPtr(in.Receipt.MessageID)
	}
	if len(in.Warnings) > 0 {
		rec.Metadata = db.JSONB{"warnings": in.Warnings}
	}
	for _, c := range in.Candidates {
		rec.Candidates = append(rec.Candidates, db.CandidateRecord{
			GeneratorID: c.GeneratorID,
			Text:        c.Text,
			ProducedAt:  c.ProducedAt,
		})
	}
	return rec
}
