package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxPool is the slice of pgxpool.Pool the store needs. Tests substitute
// a pgxmock pool.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const jobsSchema = `
CREATE TABLE IF NOT EXISTS insight_jobs (
    job_id        TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    status        TEXT NOT NULL,
    stage         TEXT NOT NULL DEFAULT '',
    progress      INT NOT NULL DEFAULT 0,
    bundle        JSONB,
    error_message TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS insight_jobs_user_idx ON insight_jobs (user_id, created_at DESC);
`

// PostgresJobStore persists jobs in Postgres.
type PostgresJobStore struct {
	pool pgxPool
	now  func() time.Time
}

func NewPostgresJobStore(pool pgxPool) *PostgresJobStore {
	if pool == nil {
		panic("insight: NewPostgresJobStore requires a pool")
	}
	return &PostgresJobStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureSchema creates the jobs table if it does not exist.
func (s *PostgresJobStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, jobsSchema); err != nil {
		return fmt.Errorf("insight: ensure jobs schema: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) CreateJob(ctx context.Context, jobID, userID string) error {
	now := s.now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO insight_jobs (job_id, user_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)`,
		jobID, userID, JobPending, now)
	if err != nil {
		return fmt.Errorf("insight: create job %s: %w", jobID, err)
	}
	return nil
}

func (s *PostgresJobStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	var (
		rec       JobRecord
		bundleRaw []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT job_id, user_id, status, stage, progress, bundle, error_message, created_at, updated_at
		 FROM insight_jobs WHERE job_id = $1`,
		jobID,
	).Scan(&rec.JobID, &rec.UserID, &rec.Status, &rec.Stage, &rec.Progress, &bundleRaw, &rec.ErrorMessage, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insight: get job %s: %w", jobID, err)
	}
	if len(bundleRaw) > 0 {
		var bundle ReportBundle
		if err := json.Unmarshal(bundleRaw, &bundle); err != nil {
			return nil, fmt.Errorf("insight: decode bundle for job %s: %w", jobID, err)
		}
		rec.Bundle = &bundle
	}
	return &rec, nil
}

func (s *PostgresJobStore) MarkProcessing(ctx context.Context, jobID string) error {
	return s.update(ctx, jobID,
		`UPDATE insight_jobs SET status = $2, updated_at = $3 WHERE job_id = $1`,
		JobProcessing, s.now())
}

func (s *PostgresJobStore) SetProgress(ctx context.Context, jobID string, stage Stage, percent int) error {
	return s.update(ctx, jobID,
		`UPDATE insight_jobs SET stage = $2, progress = $3, updated_at = $4 WHERE job_id = $1`,
		stage, percent, s.now())
}

func (s *PostgresJobStore) MarkCompleted(ctx context.Context, jobID string, bundle *ReportBundle) error {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("insight: encode bundle for job %s: %w", jobID, err)
	}
	return s.update(ctx, jobID,
		`UPDATE insight_jobs SET status = $2, progress = 100, bundle = $3, updated_at = $4 WHERE job_id = $1`,
		JobCompleted, raw, s.now())
}

func (s *PostgresJobStore) MarkFailed(ctx context.Context, jobID, message string) error {
	return s.update(ctx, jobID,
		`UPDATE insight_jobs SET status = $2, error_message = $3, updated_at = $4 WHERE job_id = $1`,
		JobFailed, message, s.now())
}

func (s *PostgresJobStore) update(ctx context.Context, jobID, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, append([]any{jobID}, args...)...)
	if err != nil {
		return fmt.Errorf("insight: update job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}
