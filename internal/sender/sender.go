// Package sender dispatches a job over its configured channel (HTTP or
// MQTT) and reports a uniform result back to the caller.
package sender

import (
	"context"

	"github.com/jjscheduler/sched/internal/domain"
)

// Result is the outcome of a single dispatch attempt.
type Result struct {
	Success    bool
	StatusCode int // HTTP status; 0 on a transport error and for every MQTT dispatch (no broker return code is reported)
	Detail     string
}

// Channel is implemented by each transport back-end.
type Channel interface {
	Send(ctx context.Context, job *domain.Job) Result
}

// Sender picks a back-end by job.Channel and dispatches to it.
type Sender struct {
	http Channel
	mqtt Channel
}

func New(http, mqtt Channel) *Sender {
	return &Sender{http: http, mqtt: mqtt}
}

func (s *Sender) Send(ctx context.Context, job *domain.Job) Result {
	switch job.Channel {
	case domain.ChannelHTTP:
		return s.http.Send(ctx, job)
	case domain.ChannelMQTT:
		return s.mqtt.Send(ctx, job)
	default:
		return Result{Success: false, Detail: domain.ErrUnsupportedChannel.Error()}
	}
}
