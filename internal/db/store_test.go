package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jcjurado/outreach/internal/circuitbreaker"
)

func newMockStore(t *testing.T) (*RunStore, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	store := NewRunStore(sqlx.NewDb(raw, "postgres"), circuitbreaker.DefaultConfig(), zap.NewNop())
	return store, mock
}

func TestSaveRunWritesRunAndCandidates(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	produced := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rec := &RunRecord{
		ID:                id,
		RunID:             "campaign-1",
		Mode:              "campaign",
		Status:            "delivered",
		InputMessage:      "sell anvils",
		SelectedGenerator: StringPtr("engaging"),
		SelectedText:      StringPtr("P2"),
		DeliveryStatus:    "sent",
		Recipient:         "lead@prospect.test",
		StartedAt:         produced,
		CompletedAt:       produced.Add(time.Minute),
		Candidates: []CandidateRecord{
			{GeneratorID: "professional", Text: "P1", ProducedAt: produced},
			{GeneratorID: "engaging", Text: "P2", ProducedAt: produced},
		},
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO outreach_runs").
		WithArgs(id, "campaign-1", "campaign", "delivered", "sell anvils",
			sqlmock.AnyArg(), sqlmock.AnyArg(), false,
			nil, nil, nil,
			"sent", "lead@prospect.test", nil, nil, nil,
			sqlmock.AnyArg(), produced, produced.Add(time.Minute), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))
	mock.ExpectExec("DELETE FROM outreach_candidates").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO outreach_candidates").
		WithArgs(id, 0, "professional", "P1", produced).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO outreach_candidates").
		WithArgs(id, 1, "engaging", "P2", produced).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveRun(context.Background(), rec))
	assert.False(t, rec.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO outreach_runs").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.SaveRun(context.Background(), &RunRecord{RunID: "r-1", Mode: "reply", Status: "failed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "r-1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunBreakerOpensAfterFailures(t *testing.T) {
	store, mock := newMockStore(t)
	for i := 0; i < int(circuitbreaker.DefaultConfig().FailureThreshold); i++ {
		mock.ExpectBegin().WillReturnError(errors.New("db down"))
	}

	for i := 0; i < int(circuitbreaker.DefaultConfig().FailureThreshold); i++ {
		require.Error(t, store.SaveRun(context.Background(), &RunRecord{RunID: "r"}))
	}
	err := store.SaveRun(context.Background(), &RunRecord{RunID: "r"})
	require.Error(t, err)
	assert.True(t, circuitbreaker.IsRejection(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT \\* FROM outreach_runs").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestGetRunLoadsCandidatesInOrder(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT \\* FROM outreach_runs").
		WithArgs("run-7").
		WillReturnRows(sqlmock.NewRows([]string{"id", "run_id", "mode", "status", "selection_mismatch"}).
			AddRow(id.String(), "run-7", "campaign", "delivered", true))
	mock.ExpectQuery("FROM outreach_candidates").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "position", "generator_id", "text", "produced_at"}).
			AddRow(id.String(), 0, "professional", "A", now).
			AddRow(id.String(), 1, "engaging", "B", now))

	rec, err := store.GetRun(context.Background(), "run-7")
	require.NoError(t, err)
	assert.True(t, rec.SelectionMismatch)
	require.Len(t, rec.Candidates, 2)
	assert.Equal(t, "A", rec.Candidates[0].Text)
	assert.Equal(t, "engaging", rec.Candidates[1].GeneratorID)
}

func TestJSONBRoundTripThroughDriver(t *testing.T) {
	v, err := JSONB{"warnings": []string{"selection mismatch"}}.Value()
	require.NoError(t, err)

	var back JSONB
	require.NoError(t, back.Scan(v))
	assert.Equal(t, []interface{}{"selection mismatch"}, back["warnings"])

	var empty JSONB
	require.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)
}
