// Package notify alerts an operator when a job is paused. The poll loop
// has no other way to surface a dead schedule, since attempt history isn't
// persisted.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"github.com/jjscheduler/sched/internal/domain"
)

// Notifier is implemented by each delivery back-end.
type Notifier interface {
	NotifyPaused(ctx context.Context, job *domain.Job, reason string) error
}

// LogNotifier logs the alert instead of sending it — used in local dev.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyPaused(_ context.Context, job *domain.Job, reason string) error {
	n.logger.Warn("job paused (local dev notifier)",
		"job_id", job.ID, "name", job.Name, "reason", reason)
	return nil
}

// ResendNotifier emails the configured operator address via Resend.
type ResendNotifier struct {
	client *resend.Client
	from   string
	to     string
}

func NewResendNotifier(apiKey, from, to string) *ResendNotifier {
	return &ResendNotifier{client: resend.NewClient(apiKey), from: from, to: to}
}

func (n *ResendNotifier) NotifyPaused(ctx context.Context, job *domain.Job, reason string) error {
	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{n.to},
		Subject: fmt.Sprintf("job #%d %q paused", job.ID, job.Name),
		Html: fmt.Sprintf(
			"<p>Job #%d (%s) was paused: %s</p><p>schedule_type=%s days_of_week=%q time_of_day=%q times_of_day=%q timezone=%q</p>",
			job.ID, job.Name, reason, job.ScheduleType, job.DaysOfWeek, job.TimeOfDay, job.TimesOfDay, job.Timezone,
		),
	}
	if _, err := n.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send pause notification: %w", err)
	}
	return nil
}

// New returns a LogNotifier when enabled is false, ResendNotifier
// otherwise. cmd/scheduler passes false in local dev.
func New(enabled bool, apiKey, from, to string, logger *slog.Logger) Notifier {
	if !enabled {
		return NewLogNotifier(logger)
	}
	return NewResendNotifier(apiKey, from, to)
}
