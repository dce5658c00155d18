// Package domain holds the scheduler's persisted entity and its small
// value types. Nothing here touches storage or I/O.
package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrJobNotFound        = errors.New("job not found")
	ErrUnsupportedChannel = errors.New("unsupported channel")
)

// ScheduleType selects the recurrence algorithm the resolver applies.
type ScheduleType string

const (
	Once   ScheduleType = "ONCE"
	Daily  ScheduleType = "DAILY"
	Weekly ScheduleType = "WEEKLY"
)

// ParseScheduleType is case-insensitive, matching storage where the column
// may have been written in any case.
func ParseScheduleType(s string) ScheduleType {
	return ScheduleType(strings.ToUpper(strings.TrimSpace(s)))
}

// Channel selects the Sender back-end.
type Channel string

const (
	ChannelHTTP Channel = "HTTP"
	ChannelMQTT Channel = "MQTT"
)

func ParseChannel(s string) Channel {
	return Channel(strings.ToUpper(strings.TrimSpace(s)))
}

// HTTPMethod is restricted to GET and POST; anything else on the row is
// treated as POST by the sender.
type HTTPMethod string

const (
	MethodGET  HTTPMethod = "GET"
	MethodPOST HTTPMethod = "POST"
)

// Job is one row of the schedule_jobs table.
type Job struct {
	ID           int64
	Name         string
	Enabled      bool
	ScheduleType ScheduleType

	RunAt      *time.Time // ONCE only, naive local datetime
	TimesOfDay string     // raw csv, e.g. "08:00,20:00" — parsed by internal/recurrence
	TimeOfDay  string     // legacy single value fallback
	DaysOfWeek string     // raw csv or set text, e.g. "Mon,Wed,Fri"
	Timezone   string     // IANA zone name, empty falls back to engine default

	Channel         Channel
	HTTPURL         string
	HTTPMethod      HTTPMethod
	HTTPHeaders     string // raw JSON object text
	ContentType     string
	Payload         string
	MQTTTopic       string
	QoS             int
	Retained        bool
	TimeoutSec      int
	MaxRetries      int
	RetryBackoffSec int

	NextRunAt *time.Time
	LastRunAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DispatchTarget renders a short "destination" string for log lines.
func (j *Job) DispatchTarget() string {
	if j.Channel == ChannelHTTP {
		return "url=" + j.HTTPURL
	}
	return "topic=" + j.MQTTTopic
}

// TruncatedPayload returns the payload capped at n runes for log lines.
func (j *Job) TruncatedPayload(n int) string {
	r := []rune(j.Payload)
	if len(r) <= n {
		return j.Payload
	}
	return string(r[:n]) + "..."
}
