// Package scheduler runs the poll loop: lease a connection, drain the
// immediate-run queue, dispatch due jobs, sleep, repeat.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jjscheduler/sched/internal/domain"
	"github.com/jjscheduler/sched/internal/metrics"
	"github.com/jjscheduler/sched/internal/notify"
	"github.com/jjscheduler/sched/internal/recurrence"
	"github.com/jjscheduler/sched/internal/repository"
	"github.com/jjscheduler/sched/internal/sender"
)

const maxImmediateDrain = 50

// Loop is the single-threaded poll loop described above. It owns all
// writes to the job store; the control plane only ever enqueues ids.
// interval and batch are atomics rather than plain fields so a config
// reload on the watcher goroutine can update them without racing the
// loop goroutine that reads them every tick.
type Loop struct {
	store     repository.JobStore
	sender    *sender.Sender
	notifier  notify.Notifier
	logger    *slog.Logger
	queue     *ImmediateQueue
	inflight  *InflightSet
	interval  atomic.Int64 // time.Duration nanoseconds
	batch     atomic.Int32
	sessionTZ string
	defaultTZ string
}

func NewLoop(
	store repository.JobStore,
	snd *sender.Sender,
	notifier notify.Notifier,
	logger *slog.Logger,
	queue *ImmediateQueue,
	interval time.Duration,
	batch int,
	sessionTZ, defaultTZ string,
) *Loop {
	l := &Loop{
		store:     store,
		sender:    snd,
		notifier:  notifier,
		logger:    logger.With("component", "poll_loop"),
		queue:     queue,
		inflight:  NewInflightSet(),
		sessionTZ: sessionTZ,
		defaultTZ: defaultTZ,
	}
	l.interval.Store(int64(interval))
	l.batch.Store(int32(batch))
	return l
}

// SetInterval updates the poll interval applied from the next tick onward.
// Safe to call from any goroutine, including a config-reload callback.
func (l *Loop) SetInterval(interval time.Duration) {
	l.interval.Store(int64(interval))
}

// SetBatch updates the per-tick fetch batch size. Safe to call from any
// goroutine, including a config-reload callback.
func (l *Loop) SetBatch(batch int) {
	l.batch.Store(int32(batch))
}

func (l *Loop) currentInterval() time.Duration {
	return time.Duration(l.interval.Load())
}

func (l *Loop) currentBatch() int {
	return int(l.batch.Load())
}

// Start runs the loop until ctx is cancelled. The ticker period is
// re-read every tick so a SetInterval call takes effect on the next
// scheduled wake-up without restarting the process.
func (l *Loop) Start(ctx context.Context) {
	l.logger.Info("poll loop started", "interval", l.currentInterval(), "batch", l.currentBatch())

	ticker := time.NewTicker(l.currentInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("poll loop shut down")
			return
		case <-ticker.C:
			l.Tick(ctx)
			ticker.Reset(l.currentInterval())
		}
	}
}

// Tick runs one poll pass: lease the session timezone, drain the
// immediate-run queue, then dispatch due jobs. Exported so tests and
// one-off tooling can drive a single pass without waiting on the ticker.
// A panic or error within the pass is recovered and logged so a bad job
// never takes the whole loop down.
func (l *Loop) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("poll loop tick panicked", "panic", r)
		}
	}()

	start := time.Now()
	defer func() {
		metrics.PollCycleDuration.Observe(time.Since(start).Seconds())
	}()

	if err := l.store.SetSessionTimezone(ctx, l.sessionTZ); err != nil {
		l.logger.Warn("set session timezone failed (ignored)", "error", err)
	}

	metrics.ImmediateQueueDepth.Set(float64(l.queue.Depth()))
	l.drainImmediate(ctx)

	due, err := l.store.FetchDue(ctx, time.Now(), l.currentBatch())
	if err != nil {
		l.logger.Error("fetch due jobs failed", "error", err)
		return
	}
	for _, job := range due {
		metrics.DueJobsClaimedTotal.Inc()
		l.executeOne(ctx, job, false)
	}
}

func (l *Loop) drainImmediate(ctx context.Context) {
	ids := l.queue.Drain(maxImmediateDrain)
	for _, id := range ids {
		job, err := l.store.FetchByID(ctx, id)
		if err != nil {
			l.logger.Warn("immediate run: job not found", "job_id", id, "error", err)
			continue
		}
		if !l.inflight.TryAdd(id) {
			l.logger.Warn("immediate run: job already in flight", "job_id", id)
			metrics.ImmediateInflightSkippedTotal.Inc()
			continue
		}
		metrics.DueJobsClaimedTotal.Inc()
		l.executeOne(ctx, job, true)
		l.inflight.Remove(id)
	}
}

// executeOne dispatches a single job and applies the resulting state
// transition: on success, recompute the next run time (pausing a recurring
// job whose schedule no longer resolves); on failure, schedule a retry
// when max_retries > 0 (no attempt count is kept, so every failure of such
// a job schedules another retry), otherwise fall through to the same
// recompute-and-maybe-pause path as success.
func (l *Loop) executeOne(ctx context.Context, job *domain.Job, immediate bool) {
	prefix := ""
	if immediate {
		prefix = "[immediate] "
	}

	l.logger.Info(prefix+"dispatching job",
		"job_id", job.ID, "name", job.Name, "channel", job.Channel,
		"target", job.DispatchTarget(), "payload", job.TruncatedPayload(120))

	dispatchStart := time.Now()
	result := l.sender.Send(ctx, job)
	metrics.DispatchDuration.WithLabelValues(string(job.Channel)).Observe(time.Since(dispatchStart).Seconds())

	if result.Success {
		metrics.DispatchOutcomesTotal.WithLabelValues(string(job.Channel), "success").Inc()
		l.logger.Info(prefix+"dispatch succeeded", "job_id", job.ID, "status_code", result.StatusCode)
		l.onSuccess(ctx, job, immediate)
		return
	}

	metrics.DispatchOutcomesTotal.WithLabelValues(string(job.Channel), "failure").Inc()
	l.logger.Error(prefix+"dispatch failed", "job_id", job.ID, "status_code", result.StatusCode, "detail", result.Detail)
	l.onFailure(ctx, job, immediate)
}

func (l *Loop) onSuccess(ctx context.Context, job *domain.Job, immediate bool) {
	disable := job.ScheduleType == domain.Once

	fresh, err := l.store.FetchByID(ctx, job.ID)
	if err != nil {
		fresh = job
	}
	next, ok := recurrence.Resolve(fresh, time.Now(), l.defaultTZ)

	if !disable && !ok {
		l.pause(ctx, fresh, "schedule no longer resolves to a future run")
	}

	var nextPtr *time.Time
	if ok {
		nextPtr = &next
	}
	if err := l.store.MarkSuccess(ctx, job.ID, nextPtr, disable); err != nil {
		l.logger.Error("mark success failed", "job_id", job.ID, "error", err)
		return
	}

	l.logger.Info(immediatePrefix(immediate)+"next run",
		"job_id", job.ID, "next_run_at", nextOrPaused(nextPtr, disable))
}

func (l *Loop) onFailure(ctx context.Context, job *domain.Job, immediate bool) {
	if job.MaxRetries > 0 {
		backoff := job.RetryBackoffSec
		if backoff <= 0 {
			backoff = 60
		}
		retryAt := time.Now().Add(time.Duration(backoff) * time.Second)
		if err := l.store.ScheduleRetry(ctx, job.ID, retryAt); err != nil {
			l.logger.Error("schedule retry failed", "job_id", job.ID, "error", err)
			return
		}
		l.logger.Warn(immediatePrefix(immediate)+"retry scheduled", "job_id", job.ID, "retry_at", retryAt)
		return
	}

	// max_retries is 0: fall back to the normal recurrence recompute, same
	// as a success, but never disabling a ONCE job a second time here —
	// it was never marked done, so leave its own schedule type to decide.
	fresh, err := l.store.FetchByID(ctx, job.ID)
	if err != nil {
		fresh = job
	}
	next, ok := recurrence.Resolve(fresh, time.Now(), l.defaultTZ)
	if !ok {
		l.pause(ctx, fresh, "schedule no longer resolves to a future run after failure")
	}
	var nextPtr *time.Time
	if ok {
		nextPtr = &next
	}
	if err := l.store.MarkSuccess(ctx, job.ID, nextPtr, false); err != nil {
		l.logger.Error("mark after failure (no retry) failed", "job_id", job.ID, "error", err)
		return
	}
	l.logger.Info(immediatePrefix(immediate)+"next run (no retry)",
		"job_id", job.ID, "next_run_at", nextOrPaused(nextPtr, false))
}

func (l *Loop) pause(ctx context.Context, job *domain.Job, reason string) {
	metrics.JobsPausedTotal.Inc()
	l.logger.Warn("pausing job", "job_id", job.ID, "reason", reason,
		"schedule_type", job.ScheduleType, "days_of_week", job.DaysOfWeek,
		"time_of_day", job.TimeOfDay, "times_of_day", job.TimesOfDay, "timezone", job.Timezone)
	if err := l.notifier.NotifyPaused(ctx, job, reason); err != nil {
		l.logger.Error("notify paused failed", "job_id", job.ID, "error", err)
	}
}

func immediatePrefix(immediate bool) string {
	if immediate {
		return "[immediate] "
	}
	return ""
}

func nextOrPaused(t *time.Time, disable bool) string {
	if disable {
		return "disabled"
	}
	if t == nil {
		return "paused"
	}
	return t.Format(time.RFC3339)
}
