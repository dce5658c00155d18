package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jjscheduler/sched/internal/domain"
	"github.com/jjscheduler/sched/internal/scheduler"
	"github.com/jjscheduler/sched/internal/sender"
)

// ---- fakes ----

type fakeStore struct {
	jobs map[int64]*domain.Job

	markSuccessCalls []markSuccessCall
	retryCalls       []retryCall
}

type markSuccessCall struct {
	id        int64
	nextRunAt *time.Time
	disable   bool
}

type retryCall struct {
	id      int64
	retryAt time.Time
}

func newFakeStore(jobs ...*domain.Job) *fakeStore {
	m := make(map[int64]*domain.Job, len(jobs))
	for _, j := range jobs {
		m[j.ID] = j
	}
	return &fakeStore{jobs: m}
}

func (s *fakeStore) FetchDue(_ context.Context, _ time.Time, limit int) ([]*domain.Job, error) {
	var out []*domain.Job
	for _, j := range s.jobs {
		if j.Enabled && j.NextRunAt != nil {
			out = append(out, j)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) FetchByID(_ context.Context, id int64) (*domain.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return j, nil
}

func (s *fakeStore) MarkSuccess(_ context.Context, id int64, nextRunAt *time.Time, disable bool) error {
	s.markSuccessCalls = append(s.markSuccessCalls, markSuccessCall{id, nextRunAt, disable})
	if j, ok := s.jobs[id]; ok {
		j.NextRunAt = nextRunAt
		j.Enabled = !disable && nextRunAt != nil
	}
	return nil
}

func (s *fakeStore) ScheduleRetry(_ context.Context, id int64, retryAt time.Time) error {
	s.retryCalls = append(s.retryCalls, retryCall{id, retryAt})
	if j, ok := s.jobs[id]; ok {
		t := retryAt
		j.NextRunAt = &t
	}
	return nil
}

func (s *fakeStore) SetSessionTimezone(context.Context, string) error { return nil }

type fakeChannel struct {
	result sender.Result
}

func (c *fakeChannel) Send(context.Context, *domain.Job) sender.Result { return c.result }

type fakeNotifier struct {
	calls int
}

func (n *fakeNotifier) NotifyPaused(context.Context, *domain.Job, string) error {
	n.calls++
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---- tests ----

func TestLoop_OnceJob_DisabledAfterSuccess(t *testing.T) {
	job := &domain.Job{ID: 1, ScheduleType: domain.Once, Channel: domain.ChannelHTTP, Enabled: true}
	runAt := time.Now().Add(time.Minute)
	job.NextRunAt = &runAt

	store := newFakeStore(job)
	snd := sender.New(&fakeChannel{result: sender.Result{Success: true, StatusCode: 200}}, nil)
	notifier := &fakeNotifier{}
	queue := scheduler.NewImmediateQueue(10)

	loop := scheduler.NewLoop(store, snd, notifier, discardLogger(), queue, time.Second, 10, "UTC", "UTC")
	loop.Tick(context.Background())

	if len(store.markSuccessCalls) != 1 {
		t.Fatalf("expected 1 MarkSuccess call, got %d", len(store.markSuccessCalls))
	}
	if !store.markSuccessCalls[0].disable {
		t.Fatal("expected a ONCE job to be disabled after success")
	}
}

func TestLoop_DailyJob_RetriesAdvanceNextRun(t *testing.T) {
	job := &domain.Job{
		ID: 2, ScheduleType: domain.Daily, Channel: domain.ChannelHTTP, Enabled: true,
		TimesOfDay: "08:00,20:00", Timezone: "UTC", MaxRetries: 3, RetryBackoffSec: 30,
	}
	runAt := time.Now().Add(-time.Minute)
	job.NextRunAt = &runAt

	store := newFakeStore(job)
	snd := sender.New(&fakeChannel{result: sender.Result{Success: false, Detail: "boom"}}, nil)
	notifier := &fakeNotifier{}
	queue := scheduler.NewImmediateQueue(10)

	loop := scheduler.NewLoop(store, snd, notifier, discardLogger(), queue, time.Second, 10, "UTC", "UTC")
	loop.Tick(context.Background())

	if len(store.retryCalls) != 1 {
		t.Fatalf("expected a retry to be scheduled, got %d retry calls", len(store.retryCalls))
	}
	if !store.retryCalls[0].retryAt.After(time.Now()) {
		t.Fatal("expected retry_at to be in the future")
	}
}

func TestLoop_PausesWhenScheduleUnresolvable(t *testing.T) {
	job := &domain.Job{
		ID: 3, ScheduleType: domain.Weekly, Channel: domain.ChannelHTTP, Enabled: true,
		// no days_of_week -> recurrence.Resolve always returns false
		TimesOfDay: "08:00", Timezone: "UTC",
	}
	runAt := time.Now().Add(-time.Minute)
	job.NextRunAt = &runAt

	store := newFakeStore(job)
	snd := sender.New(&fakeChannel{result: sender.Result{Success: true, StatusCode: 200}}, nil)
	notifier := &fakeNotifier{}
	queue := scheduler.NewImmediateQueue(10)

	loop := scheduler.NewLoop(store, snd, notifier, discardLogger(), queue, time.Second, 10, "UTC", "UTC")
	loop.Tick(context.Background())

	if notifier.calls != 1 {
		t.Fatalf("expected the operator to be notified once, got %d calls", notifier.calls)
	}
	if len(store.markSuccessCalls) != 1 || store.markSuccessCalls[0].nextRunAt != nil {
		t.Fatal("expected the job to be paused (nil next_run_at)")
	}
}
