package scheduler_test

import (
	"testing"

	"github.com/jjscheduler/sched/internal/scheduler"
)

func TestImmediateQueue_EnqueueDrain(t *testing.T) {
	q := scheduler.NewImmediateQueue(10)
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)

	if got := q.Depth(); got != 3 {
		t.Fatalf("expected depth 3, got %d", got)
	}

	ids := q.Drain(50)
	if len(ids) != 3 {
		t.Fatalf("expected 3 drained ids, got %d", len(ids))
	}
	if q.Depth() != 0 {
		t.Fatalf("expected empty queue after drain, got depth %d", q.Depth())
	}
}

func TestImmediateQueue_DrainRespectsMax(t *testing.T) {
	q := scheduler.NewImmediateQueue(10)
	for i := int64(0); i < 5; i++ {
		q.Enqueue(i)
	}
	ids := q.Drain(2)
	if len(ids) != 2 {
		t.Fatalf("expected 2 drained ids, got %d", len(ids))
	}
	if q.Depth() != 3 {
		t.Fatalf("expected 3 remaining, got %d", q.Depth())
	}
}

func TestImmediateQueue_DropsWhenFull(t *testing.T) {
	q := scheduler.NewImmediateQueue(1)
	if !q.Enqueue(1) {
		t.Fatal("expected first enqueue to succeed")
	}
	if q.Enqueue(2) {
		t.Fatal("expected second enqueue to be dropped when full")
	}
}

func TestInflightSet_PreventsDuplicateAdd(t *testing.T) {
	s := scheduler.NewInflightSet()
	if !s.TryAdd(7) {
		t.Fatal("expected first TryAdd to succeed")
	}
	if s.TryAdd(7) {
		t.Fatal("expected second TryAdd for the same id to fail")
	}
	s.Remove(7)
	if !s.TryAdd(7) {
		t.Fatal("expected TryAdd to succeed again after Remove")
	}
}
