package usecase

import (
	"context"
	"time"

	"beatwatch/internal/domain"
)

// StartAsync implements the async refresh entry point: create a pending
// RefreshJob, hand back its job_id immediately, and run the same refresh
// logic in the background, transitioning the job through running to a
// terminal succeeded/failed state.
func (o *Orchestrator) StartAsync(ctx context.Context, region string) (string, error) {
	job, err := o.store.CreateJob(ctx, region)
	if err != nil {
		return "", err
	}

	go o.runAsyncJob(job.JobID, region)

	return job.JobID, nil
}

// runAsyncJob runs detached from the request context that started it —
// an in-flight async job has no cancellation interface, per spec.md §5.
func (o *Orchestrator) runAsyncJob(jobID, region string) {
	ctx := context.Background()

	if err := o.store.MarkJobRunning(ctx, jobID, time.Now().UTC()); err != nil {
		o.logger.Error("mark job running failed", "job_id", jobID, "error", err)
		return
	}

	counts, err := o.Refresh(ctx, region)
	if err != nil {
		if markErr := o.store.MarkJobFailed(ctx, jobID, err.Error(), time.Now().UTC()); markErr != nil {
			o.logger.Error("mark job failed failed", "job_id", jobID, "error", markErr)
		}
		return
	}

	if err := o.store.MarkJobSucceeded(ctx, jobID, counts, time.Now().UTC()); err != nil {
		o.logger.Error("mark job succeeded failed", "job_id", jobID, "error", err)
	}
}

// GetJob implements the polling read.
func (o *Orchestrator) GetJob(ctx context.Context, jobID string) (domain.RefreshJob, error) {
	return o.store.GetJob(ctx, jobID)
}
