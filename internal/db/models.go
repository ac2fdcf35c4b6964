package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JSONB represents a PostgreSQL jsonb column
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
	return json.Unmarshal(raw, j)
}

// RunRecord is the archived form of one finished orchestration run.
type RunRecord struct {
	ID                uuid.UUID `db:"id"`
	RunID             string    `db:"run_id"`
	Mode              string    `db:"mode"`
	Status            string    `db:"status"`
	InputMessage      string    `db:"input_message"`
	SelectedGenerator *string   `db:"selected_generator"`
	SelectedText      *string   `db:"selected_text"`
	SelectionMismatch bool      `db:"selection_mismatch"`

	ErrorKind   *string `db:"error_kind"`
	ErrorStage  *string `db:"error_stage"`
	ErrorDetail *string `db:"error_detail"`

	DeliveryStatus string  `db:"delivery_status"`
	Recipient      string  `db:"recipient"`
	Subject        *string `db:"subject"`
	ProviderStatus *int    `db:"provider_status"`
	MessageID      *string `db:"message_id"`

	Metadata    JSONB     `db:"metadata"`
	StartedAt   time.Time `db:"started_at"`
	CompletedAt time.Time `db:"completed_at"`
	CreatedAt   time.Time `db:"created_at"`

	Candidates []CandidateRecord `db:"-"`
}

// CandidateRecord is one candidate of an archived run, kept in generation order.
type CandidateRecord struct {
	RunID       uuid.UUID `db:"run_id"`
	Position    int       `db:"position"`
	GeneratorID string    `db:"generator_id"`
	Text        string    `db:"text"`
	ProducedAt  time.Time `db:"produced_at"`
}

// StringPtr returns nil for empty strings so optional columns stay NULL.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
