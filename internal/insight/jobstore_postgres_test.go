package insight

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

func newMockStore(t *testing.T) (*PostgresJobStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	store := NewPostgresJobStore(mock)
	store.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return store, mock
}

func TestCreateJob(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO insight_jobs").
		WithArgs("job-1", "user-1", JobPending, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.CreateJob(context.Background(), "job-1", "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetJobNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM insight_jobs").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetJob(context.Background(), "missing")
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestGetJobWithBundle(t *testing.T) {
	store, mock := newMockStore(t)

	bundle := &ReportBundle{
		Reports:               map[ReportKind]json.RawMessage{KindCognitiveStyle: json.RawMessage(`{"thinkingStyle":"deliberate"}`)},
		ConversationsAnalyzed: 12,
	}
	raw, _ := json.Marshal(bundle)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM insight_jobs").
		WithArgs("job-2").
		WillReturnRows(pgxmock.NewRows([]string{
			"job_id", "user_id", "status", "stage", "progress", "bundle", "error_message", "created_at", "updated_at",
		}).AddRow("job-2", "user-1", JobCompleted, StageDone, 100, raw, "", now, now))

	rec, err := store.GetJob(context.Background(), "job-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != JobCompleted || rec.Progress != 100 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Bundle == nil || rec.Bundle.ConversationsAnalyzed != 12 {
		t.Fatalf("bundle not decoded: %+v", rec.Bundle)
	}
	if _, ok := rec.Bundle.Reports[KindCognitiveStyle]; !ok {
		t.Fatal("bundle reports lost in round trip")
	}
}

func TestMarkCompletedStoresBundle(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE insight_jobs SET status").
		WithArgs("job-3", JobCompleted, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	bundle := &ReportBundle{ConversationsAnalyzed: 2}
	if err := store.MarkCompleted(context.Background(), "job-3", bundle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateMissingJobReturnsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE insight_jobs SET status").
		WithArgs("ghost", JobProcessing, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := store.MarkProcessing(context.Background(), "ghost"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestSetProgress(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE insight_jobs SET stage").
		WithArgs("job-4", StageExtracting, 35, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.SetProgress(context.Background(), "job-4", StageExtracting, 35); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
