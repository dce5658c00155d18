package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jjscheduler/sched/internal/domain"
)

// JobStore is the pgx/v5 implementation of repository.JobStore.
type JobStore struct {
	pool *pgxpool.Pool
}

func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

const jobColumns = `
	id, name, enabled, schedule_type,
	run_at, times_of_day, time_of_day, days_of_week, timezone,
	channel, http_url, http_method, http_headers_json, content_type, payload,
	mqtt_topic, qos, retained, timeout_sec, max_retries, retry_backoff_sec,
	next_run_at, last_run_at, created_at, updated_at`

// FetchDue selects due jobs FOR UPDATE SKIP LOCKED inside its own
// transaction, so a second scheduler instance pointed at the same database
// skips rows this one is already holding rather than double-dispatching
// them. The transaction commits once every row is scanned; nothing else
// in this package straddles it.
func (s *JobStore) FetchDue(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch due jobs: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT `+jobColumns+`
		FROM schedule_jobs
		WHERE enabled = TRUE AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch due jobs: %w", err)
	}

	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		jobs = append(jobs, j)
	}
	rowsErr := rows.Err()
	rows.Close()
	if rowsErr != nil {
		return nil, rowsErr
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("fetch due jobs: commit: %w", err)
	}
	return jobs, nil
}

func (s *JobStore) FetchByID(ctx context.Context, id int64) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM schedule_jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (s *JobStore) MarkSuccess(ctx context.Context, id int64, nextRunAt *time.Time, disable bool) error {
	if disable || nextRunAt == nil {
		_, err := s.pool.Exec(ctx,
			`UPDATE schedule_jobs SET enabled = FALSE, last_run_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
		return err
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE schedule_jobs SET enabled = TRUE, last_run_at = NOW(), next_run_at = $2, updated_at = NOW() WHERE id = $1`,
		id, *nextRunAt)
	return err
}

func (s *JobStore) ScheduleRetry(ctx context.Context, id int64, retryAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE schedule_jobs SET next_run_at = $2, last_run_at = NOW(), updated_at = NOW() WHERE id = $1`,
		id, retryAt)
	return err
}

// SetSessionTimezone sets the session's time zone for every subsequent
// query on this connection. SET TIME ZONE's zone_value grammar does not
// accept a bind parameter, so this goes through set_config instead, which
// takes the value as an ordinary argument.
func (s *JobStore) SetSessionTimezone(ctx context.Context, tz string) error {
	_, err := s.pool.Exec(ctx, `SELECT set_config('TimeZone', $1, false)`, tz)
	return err
}

// rowScanner is implemented by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	var scheduleType string
	var channel string
	var method string
	err := row.Scan(
		&j.ID, &j.Name, &j.Enabled, &scheduleType,
		&j.RunAt, &j.TimesOfDay, &j.TimeOfDay, &j.DaysOfWeek, &j.Timezone,
		&channel, &j.HTTPURL, &method, &j.HTTPHeaders, &j.ContentType, &j.Payload,
		&j.MQTTTopic, &j.QoS, &j.Retained, &j.TimeoutSec, &j.MaxRetries, &j.RetryBackoffSec,
		&j.NextRunAt, &j.LastRunAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	j.ScheduleType = domain.ParseScheduleType(scheduleType)
	j.Channel = domain.ParseChannel(channel)
	j.HTTPMethod = domain.HTTPMethod(method)
	return &j, nil
}
