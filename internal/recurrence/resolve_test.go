package recurrence_test

import (
	"testing"
	"time"

	"github.com/jjscheduler/sched/internal/domain"
	"github.com/jjscheduler/sched/internal/recurrence"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func TestResolve_Once_Future(t *testing.T) {
	taipei := mustLoc(t, "Asia/Taipei")
	runAt := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	j := &domain.Job{ScheduleType: domain.Once, RunAt: &runAt, Timezone: "Asia/Taipei"}

	now := time.Date(2026, 7, 30, 0, 0, 0, 0, taipei)
	got, ok := recurrence.Resolve(j, now, "Asia/Taipei")
	if !ok {
		t.Fatal("expected a next run")
	}
	want := time.Date(2026, 8, 1, 9, 0, 0, 0, taipei)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestResolve_Once_Past(t *testing.T) {
	runAt := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	j := &domain.Job{ScheduleType: domain.Once, RunAt: &runAt, Timezone: "UTC"}

	_, ok := recurrence.Resolve(j, time.Now(), "UTC")
	if ok {
		t.Fatal("expected no next run for a past ONCE job")
	}
}

func TestResolve_Once_MissingRunAt(t *testing.T) {
	j := &domain.Job{ScheduleType: domain.Once}
	_, ok := recurrence.Resolve(j, time.Now(), "UTC")
	if ok {
		t.Fatal("expected no next run when run_at is nil")
	}
}

func TestResolve_Daily_LaterToday(t *testing.T) {
	j := &domain.Job{ScheduleType: domain.Daily, TimesOfDay: "08:00,20:00", Timezone: "UTC"}
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	got, ok := recurrence.Resolve(j, now, "UTC")
	if !ok {
		t.Fatal("expected a next run")
	}
	want := time.Date(2026, 7, 30, 20, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestResolve_Daily_RollsToTomorrow(t *testing.T) {
	j := &domain.Job{ScheduleType: domain.Daily, TimesOfDay: "08:00,20:00", Timezone: "UTC"}
	now := time.Date(2026, 7, 30, 21, 0, 0, 0, time.UTC)

	got, ok := recurrence.Resolve(j, now, "UTC")
	if !ok {
		t.Fatal("expected a next run")
	}
	want := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestResolve_Daily_FallsBackToLegacyTimeOfDay(t *testing.T) {
	j := &domain.Job{ScheduleType: domain.Daily, TimeOfDay: "08:00", Timezone: "UTC"}
	now := time.Date(2026, 7, 30, 1, 0, 0, 0, time.UTC)

	got, ok := recurrence.Resolve(j, now, "UTC")
	if !ok {
		t.Fatal("expected a next run")
	}
	want := time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestResolve_Daily_NoTimes(t *testing.T) {
	j := &domain.Job{ScheduleType: domain.Daily, Timezone: "UTC"}
	_, ok := recurrence.Resolve(j, time.Now(), "UTC")
	if ok {
		t.Fatal("expected no next run when no times are configured")
	}
}

func TestResolve_Weekly_NextMatchingDay(t *testing.T) {
	j := &domain.Job{
		ScheduleType: domain.Weekly,
		TimesOfDay:   "09:00",
		DaysOfWeek:   "Mon,Wed,Fri",
		Timezone:     "UTC",
	}
	// 2026-07-30 is a Thursday.
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	got, ok := recurrence.Resolve(j, now, "UTC")
	if !ok {
		t.Fatal("expected a next run")
	}
	want := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC) // Friday
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestResolve_Weekly_SameDayLaterTime(t *testing.T) {
	j := &domain.Job{
		ScheduleType: domain.Weekly,
		TimesOfDay:   "08:00,18:00",
		DaysOfWeek:   "Thu",
		Timezone:     "UTC",
	}
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) // Thursday, between the two times

	got, ok := recurrence.Resolve(j, now, "UTC")
	if !ok {
		t.Fatal("expected a next run")
	}
	want := time.Date(2026, 7, 30, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestResolve_Weekly_UnknownTokensDropped(t *testing.T) {
	j := &domain.Job{
		ScheduleType: domain.Weekly,
		TimesOfDay:   "09:00",
		DaysOfWeek:   "Mon,Bogus,Friday",
		Timezone:     "UTC",
	}
	dows := recurrence.ParseDaysOfWeek(j.DaysOfWeek)
	if len(dows) != 2 {
		t.Fatalf("expected 2 recognized weekdays, got %d", len(dows))
	}
	if _, ok := dows[time.Monday]; !ok {
		t.Fatal("expected Monday in set")
	}
	if _, ok := dows[time.Friday]; !ok {
		t.Fatal("expected Friday (long form) in set")
	}
}

func TestResolve_Weekly_NoDaysOfWeek(t *testing.T) {
	j := &domain.Job{ScheduleType: domain.Weekly, TimesOfDay: "09:00", Timezone: "UTC"}
	_, ok := recurrence.Resolve(j, time.Now(), "UTC")
	if ok {
		t.Fatal("expected no next run when days_of_week is empty")
	}
}

func TestResolve_Weekly_CrossTimezone(t *testing.T) {
	tokyo := mustLoc(t, "Asia/Tokyo")
	newYork := mustLoc(t, "America/New_York")

	j := &domain.Job{
		ScheduleType: domain.Weekly,
		TimesOfDay:   "09:00",
		DaysOfWeek:   "Fri",
		Timezone:     "Asia/Tokyo",
	}
	// 2026-07-30 12:00 is a Thursday in Tokyo; at this instant it is still
	// Wednesday 23:00 in New York.
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, tokyo)

	got, ok := recurrence.Resolve(j, now, "America/New_York")
	if !ok {
		t.Fatal("expected a next run")
	}

	// Friday 09:00 in Tokyo (UTC+9) is Thursday 20:00 in New York (UTC-4
	// during daylight saving) — the same instant, a different wall clock
	// day in each zone.
	wantInstant := time.Date(2026, 7, 31, 9, 0, 0, 0, tokyo)
	if !got.Equal(wantInstant) {
		t.Fatalf("got %v want instant %v", got, wantInstant)
	}

	if got.Location().String() != "America/New_York" {
		t.Fatalf("expected result in session zone America/New_York, got %v", got.Location())
	}
	wantLocal := time.Date(2026, 7, 30, 20, 0, 0, 0, newYork)
	if !got.Equal(wantLocal) || got.Hour() != 20 || got.Day() != 30 {
		t.Fatalf("got %v, want New York wall clock %v", got, wantLocal)
	}
}

func TestResolve_Daily_CrossTimezone(t *testing.T) {
	tokyo := mustLoc(t, "Asia/Tokyo")
	newYork := mustLoc(t, "America/New_York")

	j := &domain.Job{ScheduleType: domain.Daily, TimesOfDay: "09:00", Timezone: "Asia/Tokyo"}
	now := time.Date(2026, 7, 30, 1, 0, 0, 0, tokyo)

	got, ok := recurrence.Resolve(j, now, "America/New_York")
	if !ok {
		t.Fatal("expected a next run")
	}

	wantInstant := time.Date(2026, 7, 30, 9, 0, 0, 0, tokyo)
	if !got.Equal(wantInstant) {
		t.Fatalf("got %v want instant %v", got, wantInstant)
	}
	if got.Location().String() != "America/New_York" {
		t.Fatalf("expected result in session zone America/New_York, got %v", got.Location())
	}
	wantLocal := time.Date(2026, 7, 29, 20, 0, 0, 0, newYork)
	if !got.Equal(wantLocal) || got.Hour() != 20 || got.Day() != 29 {
		t.Fatalf("got %v, want New York wall clock %v", got, wantLocal)
	}
}

func TestResolve_UnknownScheduleType(t *testing.T) {
	j := &domain.Job{ScheduleType: "BOGUS"}
	_, ok := recurrence.Resolve(j, time.Now(), "UTC")
	if ok {
		t.Fatal("expected no next run for an unrecognized schedule type")
	}
}

func TestParseTimesOfDay_DedupesAndSorts(t *testing.T) {
	j := &domain.Job{TimesOfDay: "20:00,08:00,08:00:00"}
	times := recurrence.ParseTimesOfDay(j)
	if len(times) != 2 {
		t.Fatalf("expected 2 distinct times, got %d: %v", len(times), times)
	}
	if times[0] != 8*time.Hour {
		t.Fatalf("expected first time to be 08:00, got %v", times[0])
	}
	if times[1] != 20*time.Hour {
		t.Fatalf("expected second time to be 20:00, got %v", times[1])
	}
}
