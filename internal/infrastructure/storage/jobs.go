package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"beatwatch/internal/domain"
)

// CreateJob inserts a RefreshJob in the pending state, with a
// non-sequential opaque job_id generated by github.com/google/uuid — the
// same module the pack's briefly and neurobridge-backend entries reach
// for to mint externally-visible identifiers.
func (s *Store) CreateJob(ctx context.Context, region string) (domain.RefreshJob, error) {
	jobID := uuid.NewString()

	var job domain.RefreshJob
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO refresh_jobs (job_id, region, status)
		VALUES ($1, $2, $3)
		RETURNING id, job_id, region, status, new_articles, total_incidents, created_at`,
		jobID, region, string(domain.JobPending),
	).Scan(&job.ID, &job.JobID, &job.Region, &job.Status, &job.NewArticles, &job.TotalIncidents, &job.CreatedAt)
	if err != nil {
		return domain.RefreshJob{}, fmt.Errorf("create refresh job for %s: %w", region, err)
	}
	return job, nil
}

// MarkJobRunning transitions pending -> running. Only pending rows match,
// so calling this twice is a safe no-op on the second call.
func (s *Store) MarkJobRunning(ctx context.Context, jobID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE refresh_jobs SET status = $1, started_at = $2
		WHERE job_id = $3 AND status = $4`,
		string(domain.JobRunning), at, jobID, string(domain.JobPending))
	if err != nil {
		return fmt.Errorf("mark job %s running: %w", jobID, err)
	}
	return nil
}

// MarkJobSucceeded transitions running -> succeeded, a terminal state.
func (s *Store) MarkJobSucceeded(ctx context.Context, jobID string, counts domain.RefreshCounts, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE refresh_jobs
		SET status = $1, new_articles = $2, total_incidents = $3, completed_at = $4
		WHERE job_id = $5 AND status = $6`,
		string(domain.JobSucceeded), counts.NewArticles, counts.TotalIncidents, at, jobID, string(domain.JobRunning))
	if err != nil {
		return fmt.Errorf("mark job %s succeeded: %w", jobID, err)
	}
	return nil
}

// MarkJobFailed transitions running -> failed, a terminal state.
func (s *Store) MarkJobFailed(ctx context.Context, jobID string, errMsg string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE refresh_jobs SET status = $1, error_message = $2, completed_at = $3
		WHERE job_id = $4 AND status = $5`,
		string(domain.JobFailed), errMsg, at, jobID, string(domain.JobRunning))
	if err != nil {
		return fmt.Errorf("mark job %s failed: %w", jobID, err)
	}
	return nil
}

// GetJob implements the polling read.
func (s *Store) GetJob(ctx context.Context, jobID string) (domain.RefreshJob, error) {
	var job domain.RefreshJob
	var errMsg sql.NullString
	var started, completed sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, region, status, new_articles, total_incidents, error_message, created_at, started_at, completed_at
		FROM refresh_jobs WHERE job_id = $1`, jobID,
	).Scan(&job.ID, &job.JobID, &job.Region, &job.Status, &job.NewArticles, &job.TotalIncidents,
		&errMsg, &job.CreatedAt, &started, &completed)
	if err == sql.ErrNoRows {
		return domain.RefreshJob{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	if err != nil {
		return domain.RefreshJob{}, fmt.Errorf("get job %s: %w", jobID, err)
	}

	job.ErrorMessage = errMsg.String
	if started.Valid {
		t := started.Time
		job.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		job.CompletedAt = &t
	}
	return job, nil
}
