package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/podq/internal/models"
)

// MemoryJobStore implements [models.JobStore] with a mutex-guarded map.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]models.Job
}

// NewMemoryJobStore creates an empty registry.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]models.Job)}
}

func (s *MemoryJobStore) Claim(_ context.Context, userID string, job models.Job) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[userID]; exists {
		return false, nil
	}
	s.jobs[userID] = job
	return true, nil
}

func (s *MemoryJobStore) Put(_ context.Context, userID string, job models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[userID] = job
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, userID string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[userID]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (s *MemoryJobStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, userID)
	return nil
}

// DefaultJobStaleAfter is how long a job row may go without an update before a new claim replaces it.
const DefaultJobStaleAfter = 15 * time.Minute

// SQLJobStore implements [models.JobStore] on the jobs table.
//
// Claim relies on the user_id primary key, so concurrent claims from separate processes still admit one run.
// Rows outlive the process that wrote them; a row not updated within the stale window is treated as
// left behind by a process that died and may be claimed again.
type SQLJobStore struct {
	db         *sql.DB
	staleAfter time.Duration
}

// NewSQLJobStore creates a new [SQLJobStore] with the given database connection
func NewSQLJobStore(db *sql.DB) *SQLJobStore {
	return &SQLJobStore{db: db, staleAfter: DefaultJobStaleAfter}
}

// SetStaleAfter sets the stale window; non-positive values keep the current one.
func (r *SQLJobStore) SetStaleAfter(d time.Duration) {
	if d > 0 {
		r.staleAfter = d
	}
}

func (r *SQLJobStore) Claim(ctx context.Context, userID string, job models.Job) (bool, error) {
	started, updated := jobTimes(job)
	cutoff := time.Now().UTC().Add(-r.staleAfter)
	query := `
		INSERT INTO jobs (user_id, id, message, progress, total, is_done, is_error, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			id = excluded.id,
			message = excluded.message,
			progress = excluded.progress,
			total = excluded.total,
			is_done = excluded.is_done,
			is_error = excluded.is_error,
			started_at = excluded.started_at,
			updated_at = excluded.updated_at
		WHERE jobs.updated_at < ?
	`
	result, err := r.db.ExecContext(ctx, query, userID, job.ID, job.Message, job.Progress, job.Total, job.IsDone, job.IsError, started, updated, cutoff)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

func (r *SQLJobStore) Put(ctx context.Context, userID string, job models.Job) error {
	started, updated := jobTimes(job)
	query := `
		INSERT INTO jobs (user_id, id, message, progress, total, is_done, is_error, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			id = excluded.id,
			message = excluded.message,
			progress = excluded.progress,
			total = excluded.total,
			is_done = excluded.is_done,
			is_error = excluded.is_error,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, userID, job.ID, job.Message, job.Progress, job.Total, job.IsDone, job.IsError, started, updated); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (r *SQLJobStore) Get(ctx context.Context, userID string) (*models.Job, error) {
	query := `
		SELECT id, message, progress, total, is_done, is_error, started_at, updated_at
		FROM jobs
		WHERE user_id = ?
	`

	var job models.Job
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&job.ID, &job.Message, &job.Progress, &job.Total, &job.IsDone, &job.IsError, &job.StartedAt, &job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}
	return &job, nil
}

func (r *SQLJobStore) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func jobTimes(job models.Job) (started, updated time.Time) {
	now := time.Now().UTC()
	started, updated = job.StartedAt.UTC(), job.UpdatedAt.UTC()
	if started.IsZero() {
		started = now
	}
	if updated.IsZero() {
		updated = now
	}
	return started, updated
}
