package scheduler

import "context"

// Job is a unit of work the worker pool can run.
type Job interface {
	// Execute runs the job. The context carries the pool's per-job timeout.
	Execute(ctx context.Context) error

	// UserID identifies whose data the job touches, for logging.
	UserID() string

	// Description is a human-readable job label, for logging.
	Description() string
}
