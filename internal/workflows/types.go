package workflows

import (
	"errors"
	"time"

	"github.com/jcjurado/outreach/internal/candidates"
	"github.com/jcjurado/outreach/internal/config"
	"github.com/jcjurado/outreach/internal/mail"
	"github.com/jcjurado/outreach/internal/personas"
	"github.com/jcjurado/outreach/internal/policy"
)

// Mode distinguishes a manual campaign from a reply to an inbound email.
type Mode string

const (
	ModeCampaign Mode = "campaign"
	ModeReply    Mode = "reply"
)

// AgentSpec configures a single-purpose agent. Empty instructions use the
// agent's built-in default.
type AgentSpec struct {
	Instructions string `json:"instructions,omitempty"`
	ModelID      string `json:"model_id"`
}

// RetryOptions bounds the retries of the model-backed stages.
type RetryOptions struct {
	GenerationRetries int           `json:"generation_retries"`
	SelectionRetries  int           `json:"selection_retries"`
	InitialInterval   time.Duration `json:"initial_interval"`
}

// DeliveryOptions is everything the handoff needs besides the selected text.
type DeliveryOptions struct {
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Subject   AgentSpec `json:"subject"`
	Format    AgentSpec `json:"format"`
	// SubjectOverride skips subject synthesis when set.
	SubjectOverride string `json:"subject_override,omitempty"`
	// FallbackSubject is used when subject synthesis fails. Empty keeps the
	// failure fatal.
	FallbackSubject string           `json:"fallback_subject,omitempty"`
	ContentType     mail.ContentType `json:"content_type"`
}

// RunInput is the immutable configuration of one run, captured when the run
// is created.
type RunInput struct {
	RunID    string             `json:"run_id"`
	Mode     Mode               `json:"mode"`
	Message  string             `json:"message"`
	Personas []personas.Persona `json:"personas"`
	Selector AgentSpec          `json:"selector"`
	Delivery DeliveryOptions    `json:"delivery"`
	Retries  RetryOptions       `json:"retries"`
	Timeouts config.Timeouts    `json:"timeouts"`
}

var (
	ErrEmptyMessage  = errors.New("input message is empty")
	ErrNoPersonas    = errors.New("at least one persona is required")
	ErrNoSender      = errors.New("sender address is required")
	ErrNoRecipient   = errors.New("recipient address is required")
	ErrDuplicateID   = errors.New("persona ids must be unique")
	ErrBadRetryCount = errors.New("retry counts cannot be negative")
)

// Validate checks the input before any work is scheduled.
func (in RunInput) Validate() error {
	if in.Message == "" {
		return ErrEmptyMessage
	}
	if len(in.Personas) == 0 {
		return ErrNoPersonas
	}
	seen := make(map[string]bool, len(in.Personas))
	for _, p := range in.Personas {
		if seen[p.ID] {
			return ErrDuplicateID
		}
		seen[p.ID] = true
	}
	if in.Retries.GenerationRetries < 0 || in.Retries.SelectionRetries < 0 {
		return ErrBadRetryCount
	}
	return in.Delivery.validate()
}

func (d DeliveryOptions) validate() error {
	if d.Sender == "" {
		return ErrNoSender
	}
	if d.Recipient == "" {
		return ErrNoRecipient
	}
	return nil
}

// RunResult is returned by a run that reached Delivered.
type RunResult struct {
	RunID             string                 `json:"run_id"`
	FinalText         string                 `json:"final_text"`
	FinalAgentLabel   string                 `json:"final_agent_label"`
	FinalAgentName    string                 `json:"final_agent_name"`
	SelectionMismatch bool                   `json:"selection_mismatch"`
	Candidates        []candidates.Candidate `json:"candidates"`
	Warnings          []string               `json:"warnings,omitempty"`
	Delivery          DeliveryResult         `json:"delivery"`
}

// DeliveryInput starts a DeliveryWorkflow for one selected text.
type DeliveryInput struct {
	RunID        string          `json:"run_id"`
	Mode         Mode            `json:"mode"`
	SelectedText string          `json:"selected_text"`
	Options      DeliveryOptions `json:"options"`
	Timeouts     config.Timeouts `json:"timeouts"`
}

// DeliveryResult describes a completed send.
type DeliveryResult struct {
	Subject         string           `json:"subject"`
	ContentType     mail.ContentType `json:"content_type"`
	Receipt         mail.Receipt     `json:"receipt"`
	SubjectFallback bool             `json:"subject_fallback,omitempty"`
	Policy          *policy.Decision `json:"policy,omitempty"`
}
