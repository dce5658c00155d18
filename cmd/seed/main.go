// seed inserts a handful of demonstration schedule_jobs rows into the
// local dev database, covering every schedule type over HTTP and the
// recurring types over MQTT.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jjscheduler/sched/internal/domain"
	"github.com/jjscheduler/sched/internal/infrastructure/postgres"
	"github.com/jjscheduler/sched/internal/recurrence"
)

const defaultTimezone = "Asia/Taipei"

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	soon := time.Now().Add(2 * time.Minute)

	jobs := []*domain.Job{
		{
			Name: "seed-once-http-post", Enabled: true, ScheduleType: domain.Once,
			RunAt: &soon, Timezone: defaultTimezone,
			Channel: domain.ChannelHTTP, HTTPURL: "https://httpbin.org/post", HTTPMethod: domain.MethodPOST,
			HTTPHeaders: "{}", ContentType: "application/json", Payload: `{"source":"seed"}`,
			TimeoutSec: 30, MaxRetries: 3, RetryBackoffSec: 60,
		},
		{
			Name: "seed-once-http-get-404", Enabled: true, ScheduleType: domain.Once,
			RunAt: &soon, Timezone: defaultTimezone,
			Channel: domain.ChannelHTTP, HTTPURL: "https://httpbin.org/status/404", HTTPMethod: domain.MethodGET,
			HTTPHeaders: "{}",
			TimeoutSec:  15, MaxRetries: 1, RetryBackoffSec: 30,
		},
		{
			Name: "seed-daily-morning-report", Enabled: true, ScheduleType: domain.Daily,
			TimesOfDay: "08:00,20:00", Timezone: defaultTimezone,
			Channel: domain.ChannelHTTP, HTTPURL: "https://httpbin.org/post", HTTPMethod: domain.MethodPOST,
			HTTPHeaders: "{}", ContentType: "application/json", Payload: `{"report":"daily"}`,
			TimeoutSec: 30, MaxRetries: 3, RetryBackoffSec: 60,
		},
		{
			Name: "seed-weekly-backup", Enabled: true, ScheduleType: domain.Weekly,
			TimesOfDay: "02:00", DaysOfWeek: "Mon,Thu", Timezone: defaultTimezone,
			Channel: domain.ChannelHTTP, HTTPURL: "https://httpbin.org/post", HTTPMethod: domain.MethodPOST,
			HTTPHeaders: "{}", ContentType: "application/json", Payload: `{"job":"backup"}`,
			TimeoutSec: 60, MaxRetries: 2, RetryBackoffSec: 120,
		},
		{
			Name: "seed-daily-telemetry-mqtt", Enabled: true, ScheduleType: domain.Daily,
			TimesOfDay: "00:05", Timezone: defaultTimezone,
			Channel: domain.ChannelMQTT, MQTTTopic: "devices/seed/telemetry", QoS: 1, Retained: false,
			ContentType: "application/json", Payload: `{"ping":"telemetry"}`,
			TimeoutSec: 10, MaxRetries: 2, RetryBackoffSec: 30,
		},
		{
			Name: "seed-weekly-alert-mqtt", Enabled: true, ScheduleType: domain.Weekly,
			TimesOfDay: "09:00", DaysOfWeek: "Sun", Timezone: defaultTimezone,
			Channel: domain.ChannelMQTT, MQTTTopic: "devices/seed/alerts", QoS: 0, Retained: true,
			ContentType: "application/json", Payload: `{"alert":"weekly-check"}`,
			TimeoutSec: 10, MaxRetries: 0, RetryBackoffSec: 30,
		},
	}

	var inserted, skipped int
	var ids []int64

	for _, j := range jobs {
		nextRunAt, ok := recurrence.Resolve(j, time.Now(), defaultTimezone)
		var nextPtr *time.Time
		if ok {
			nextPtr = &nextRunAt
		}

		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO schedule_jobs (
				name, enabled, schedule_type,
				run_at, times_of_day, time_of_day, days_of_week, timezone,
				channel, http_url, http_method, http_headers_json, content_type, payload,
				mqtt_topic, qos, retained, timeout_sec, max_retries, retry_backoff_sec,
				next_run_at, last_run_at, created_at, updated_at
			) VALUES (
				$1, TRUE, $2,
				$3, $4, $5, $6, $7,
				$8, $9, $10, $11, $12, $13,
				$14, $15, $16, $17, $18, $19,
				$20, NULL, NOW(), NOW()
			)
			ON CONFLICT (name) DO NOTHING
			RETURNING id`,
			j.Name, string(j.ScheduleType),
			j.RunAt, j.TimesOfDay, j.TimeOfDay, j.DaysOfWeek, j.Timezone,
			string(j.Channel), j.HTTPURL, string(j.HTTPMethod), j.HTTPHeaders, j.ContentType, j.Payload,
			j.MQTTTopic, j.QoS, j.Retained, j.TimeoutSec, j.MaxRetries, j.RetryBackoffSec,
			nextPtr,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			// ON CONFLICT DO NOTHING returns no row for an existing name.
			skipped++
			continue
		}
		if err != nil {
			log.Fatalf("insert job %s: %v", j.Name, err)
		}
		ids = append(ids, id)
		inserted++
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Jobs created: %d  (skipped %d already existing)\n", inserted, skipped)
	fmt.Println()
	if len(ids) > 0 {
		fmt.Println("  Job ids:")
		for _, id := range ids {
			fmt.Printf("    %d\n", id)
		}
	}
	fmt.Println()
	fmt.Println("The poll loop picks up ONCE jobs within one poll interval of run_at,")
	fmt.Println("and DAILY/WEEKLY jobs at their next resolved time slot.")
	fmt.Println()
	fmt.Println("To fire a job immediately via the control endpoint:")
	fmt.Println()
	fmt.Println("  curl -s 'http://localhost:5055/run_immediate?job_id=ID&token=CHANGE_ME'")
}
