package domain

import "time"

// JobStatus is one of the four RefreshJob lifecycle states. Transitions are
// monotone: pending -> running -> {succeeded | failed}. Terminal states are
// immutable.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// RefreshJob is the persisted record of one asynchronous refresh(region)
// invocation.
type RefreshJob struct {
	ID             int64
	JobID          string
	Region         string
	Status         JobStatus
	NewArticles    int
	TotalIncidents int
	ErrorMessage   string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// RefreshCounts is the aggregate a refresh (sync or async) produces.
type RefreshCounts struct {
	Region         string
	NewArticles    int
	TotalIncidents int
}
