package repository

import (
	"context"
	"time"

	"github.com/jjscheduler/sched/internal/domain"
)

// JobStore is the Poll Loop's only dependency on persistence. The loop
// depends on this interface, not the Postgres package, so tests can supply
// an in-memory fake.
type JobStore interface {
	// FetchDue returns up to limit enabled jobs whose next_run_at has
	// passed, ordered by next_run_at ascending.
	FetchDue(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error)

	// FetchByID returns a single job row, or ErrJobNotFound.
	FetchByID(ctx context.Context, id int64) (*domain.Job, error)

	// MarkSuccess records a successful dispatch. When nextRunAt is nil the
	// job is paused (enabled=false); when disable is true (a ONCE job) the
	// job is disabled unconditionally regardless of nextRunAt.
	MarkSuccess(ctx context.Context, id int64, nextRunAt *time.Time, disable bool) error

	// ScheduleRetry sets next_run_at to retryAt and leaves the job enabled.
	ScheduleRetry(ctx context.Context, id int64, retryAt time.Time) error

	// SetSessionTimezone applies the engine's session timezone to the
	// connection a poll tick leases, so timestamps round-trip consistently.
	SetSessionTimezone(ctx context.Context, tz string) error
}
