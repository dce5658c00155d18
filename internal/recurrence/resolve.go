// Package recurrence computes the next run time for a job from its
// schedule fields. Every function here is pure: no clock reads beyond the
// "now" parameter, no store access, no locale/IANA surprises beyond
// time.LoadLocation.
package recurrence

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jjscheduler/sched/internal/domain"
)

// dayTokens maps short and long English weekday tokens onto time.Weekday,
// matching storage columns that may carry either.
var dayTokens = map[string]time.Weekday{
	"MON": time.Monday, "MONDAY": time.Monday,
	"TUE": time.Tuesday, "TUESDAY": time.Tuesday,
	"WED": time.Wednesday, "WEDNESDAY": time.Wednesday,
	"THU": time.Thursday, "THURSDAY": time.Thursday,
	"FRI": time.Friday, "FRIDAY": time.Friday,
	"SAT": time.Saturday, "SATURDAY": time.Saturday,
	"SUN": time.Sunday, "SUNDAY": time.Sunday,
}

// ParseDaysOfWeek accepts a comma-separated list of weekday tokens, in any
// case, short or long form. Unknown tokens are silently dropped. The
// returned set has no duplicates.
func ParseDaysOfWeek(raw string) map[time.Weekday]struct{} {
	out := map[time.Weekday]struct{}{}
	if strings.TrimSpace(raw) == "" {
		return out
	}
	for _, part := range strings.Split(raw, ",") {
		tok := strings.ToUpper(strings.TrimSpace(part))
		if tok == "" {
			continue
		}
		if d, ok := dayTokens[tok]; ok {
			out[d] = struct{}{}
		}
	}
	return out
}

// parseTimeOfDay accepts "HH:MM" or "HH:MM:SS" and returns the offset since
// midnight. An empty string resolves to midnight.
func parseTimeOfDay(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	if len(s) == 5 {
		s += ":00"
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	ss, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second, true
}

// ParseTimesOfDay parses job.TimesOfDay (falling back to the legacy
// job.TimeOfDay single value when TimesOfDay is blank), dedupes, and
// returns the offsets sorted ascending.
func ParseTimesOfDay(j *domain.Job) []time.Duration {
	var raw []string
	if strings.TrimSpace(j.TimesOfDay) != "" {
		raw = strings.Split(j.TimesOfDay, ",")
	} else if strings.TrimSpace(j.TimeOfDay) != "" {
		raw = []string{j.TimeOfDay}
	}

	seen := map[time.Duration]struct{}{}
	var out []time.Duration
	for _, part := range raw {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, ok := parseTimeOfDay(part)
		if !ok {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, k int) bool { return out[i] < out[k] })
	return out
}

// zone resolves an IANA timezone name, falling back to defaultTZ, falling
// back to UTC when neither loads.
func zone(name, defaultTZ string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultTZ
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	if loc, err := time.LoadLocation(defaultTZ); err == nil {
		return loc
	}
	return time.UTC
}

// Resolve computes the next run time for j, given the current instant now
// and the engine's default/session timezone name. It returns (t, true) when
// a next run exists, or (zero, false) when the schedule cannot produce one
// (missing run_at, no parseable times, no matching weekdays, or a ONCE job
// whose run_at has already passed) — callers treat the false case as "pause
// this job".
//
// The returned time is always in sessionTZ, mirroring storage that persists
// timestamps in one common zone regardless of the job's own timezone.
func Resolve(j *domain.Job, now time.Time, sessionTZ string) (time.Time, bool) {
	jobLoc := zone(j.Timezone, sessionTZ)
	sessLoc := zone(sessionTZ, sessionTZ)
	nowInJobZone := now.In(jobLoc)

	switch j.ScheduleType {
	case domain.Once:
		if j.RunAt == nil {
			return time.Time{}, false
		}
		run := time.Date(j.RunAt.Year(), j.RunAt.Month(), j.RunAt.Day(),
			j.RunAt.Hour(), j.RunAt.Minute(), j.RunAt.Second(), 0, jobLoc)
		if !run.After(nowInJobZone) {
			return time.Time{}, false
		}
		return run.In(sessLoc), true

	case domain.Daily:
		times := ParseTimesOfDay(j)
		if len(times) == 0 {
			return time.Time{}, false
		}
		for dayOffset := 0; dayOffset < 14; dayOffset++ {
			d := nowInJobZone.AddDate(0, 0, dayOffset)
			midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, jobLoc)
			for _, t := range times {
				cand := midnight.Add(t)
				if cand.After(nowInJobZone) {
					return cand.In(sessLoc), true
				}
			}
		}
		return time.Time{}, false

	case domain.Weekly:
		times := ParseTimesOfDay(j)
		if len(times) == 0 {
			return time.Time{}, false
		}
		dows := ParseDaysOfWeek(j.DaysOfWeek)
		if len(dows) == 0 {
			return time.Time{}, false
		}
		for dayOffset := 0; dayOffset < 366; dayOffset++ {
			d := nowInJobZone.AddDate(0, 0, dayOffset)
			if _, match := dows[d.Weekday()]; !match {
				continue
			}
			midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, jobLoc)
			var best *time.Time
			for _, t := range times {
				cand := midnight.Add(t)
				if !cand.After(nowInJobZone) {
					continue
				}
				if best == nil || cand.Before(*best) {
					c := cand
					best = &c
				}
			}
			if best != nil {
				return best.In(sessLoc), true
			}
		}
		return time.Time{}, false

	default:
		return time.Time{}, false
	}
}
