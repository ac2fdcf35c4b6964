// Package db archives finished runs to PostgreSQL.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jcjurado/outreach/internal/circuitbreaker"
)

var ErrRunNotFound = errors.New("run not found")

// Config holds database connection settings.
type Config struct {
	DSN             string
	MaxConnections  int
	IdleConnections int
	MaxLifetime     time.Duration
	Breaker         circuitbreaker.Config
}

// RunStore persists run records. All calls go through a circuit breaker so a
// struggling database fails fast instead of stalling archive activities.
type RunStore struct {
	db      *sqlx.DB
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
	now     func() time.Time
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*RunStore, error) {
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 10
	}
	if cfg.IdleConnections == 0 {
		cfg.IdleConnections = 2
	}
	if cfg.MaxLifetime == 0 {
		cfg.MaxLifetime = 5 * time.Minute
	}

	conn, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(cfg.MaxConnections)
	conn.SetMaxIdleConns(cfg.IdleConnections)
	conn.SetConnMaxLifetime(cfg.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.Int("max_connections", cfg.MaxConnections),
	)
	return NewRunStore(conn, cfg.Breaker, logger), nil
}

// NewRunStore wraps an existing connection.
func NewRunStore(conn *sqlx.DB, breaker circuitbreaker.Config, logger *zap.Logger) *RunStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := circuitbreaker.NewCircuitBreaker("postgres", breaker, logger)
	circuitbreaker.GlobalMetricsCollector.RegisterCircuitBreaker("postgres", "run-store", cb)
	return &RunStore{db: conn, breaker: cb, logger: logger, now: time.Now}
}

const upsertRunQuery = `
	INSERT INTO outreach_runs (
		id, run_id, mode, status, input_message,
		selected_generator, selected_text, selection_mismatch,
		error_kind, error_stage, error_detail,
		delivery_status, recipient, subject, provider_status, message_id,
		metadata, started_at, completed_at, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
	)
	ON CONFLICT (run_id) DO UPDATE SET
		status = EXCLUDED.status,
		selected_generator = EXCLUDED.selected_generator,
		selected_text = EXCLUDED.selected_text,
		selection_mismatch = EXCLUDED.selection_mismatch,
		error_kind = EXCLUDED.error_kind,
		error_stage = EXCLUDED.error_stage,
		error_detail = EXCLUDED.error_detail,
		delivery_status = EXCLUDED.delivery_status,
		subject = EXCLUDED.subject,
		provider_status = EXCLUDED.provider_status,
		message_id = EXCLUDED.message_id,
		metadata = EXCLUDED.metadata,
		completed_at = EXCLUDED.completed_at
	RETURNING id`

const insertCandidateQuery = `
	INSERT INTO outreach_candidates (run_id, position, generator_id, text, produced_at)
	VALUES (:run_id, :position, :generator_id, :text, :produced_at)`

// SaveRun writes the run and its candidates in one transaction. Saving the
// same run_id again replaces the earlier record.
func (s *RunStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	err := s.breaker.Execute(ctx, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := tx.QueryRowxContext(ctx, upsertRunQuery,
			rec.ID, rec.RunID, rec.Mode, rec.Status, rec.InputMessage,
			rec.SelectedGenerator, rec.SelectedText, rec.SelectionMismatch,
			rec.ErrorKind, rec.ErrorStage, rec.ErrorDetail,
			rec.DeliveryStatus, rec.Recipient, rec.Subject, rec.ProviderStatus, rec.MessageID,
			rec.Metadata, rec.StartedAt, rec.CompletedAt, rec.CreatedAt,
		).Scan(&rec.ID); err != nil {
			return fmt.Errorf("upsert run: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM outreach_candidates WHERE run_id = $1`, rec.ID); err != nil {
			return fmt.Errorf("clear candidates: %w", err)
		}
		for i := range rec.Candidates {
			c := rec.Candidates[i]
			c.RunID = rec.ID
			c.Position = i
			if _, err := tx.NamedExecContext(ctx, insertCandidateQuery, c); err != nil {
				return fmt.Errorf("insert candidate %d: %w", i, err)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.RunID, err)
	}

	s.logger.Debug("Run archived",
		zap.String("run_id", rec.RunID),
		zap.String("status", rec.Status),
		zap.Int("candidates", len(rec.Candidates)),
	)
	return nil
}

// GetRun loads an archived run with its candidates in generation order.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var rec RunRecord
	err := s.breaker.Execute(ctx, func() error {
		if err := s.db.GetContext(ctx, &rec, `SELECT * FROM outreach_runs WHERE run_id = $1`, runID); err != nil {
			return err
		}
		return s.db.SelectContext(ctx, &rec.Candidates,
			`SELECT run_id, position, generator_id, text, produced_at
			 FROM outreach_candidates WHERE run_id = $1 ORDER BY position`, rec.ID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return &rec, nil
}

// Ping checks connectivity for health probes.
func (s *RunStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *RunStore) Close() error {
	return s.db.Close()
}
