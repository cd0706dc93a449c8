// Package jobs contains the scheduled jobs of the agency CRM.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/notification"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFY DUE TASKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// NotifyDueTasksJob polls every agency's task list and sends one reminder per
// task that falls due within the window. A task is reminded at most once per
// calendar day; the marks live in the NotifiedSet.
type NotifyDueTasksJob struct {
	tasks     task.Repository
	notified  task.NotifiedSet
	sender    notification.Sender
	publisher shared.EventPublisher
	logger    *slog.Logger

	config NotifyDueTasksConfig
	clock  shared.Clock

	lastRunStats atomic.Value // *NotifyDueTasksStats
}

// NotifyDueTasksConfig contains configuration for the due-soon job.
type NotifyDueTasksConfig struct {
	// AgencyIDs is the set of tenants to poll.
	AgencyIDs []shared.AgencyID

	// WindowMinutes is how far ahead a task counts as due soon.
	WindowMinutes int

	// Recipient is the counsellor inbox. Empty sends reminders to the log channel.
	Recipient string

	// Timeout bounds a single run.
	Timeout time.Duration
}

// DefaultNotifyDueTasksConfig returns sensible defaults.
func DefaultNotifyDueTasksConfig() NotifyDueTasksConfig {
	return NotifyDueTasksConfig{
		AgencyIDs:     []shared.AgencyID{"demo"},
		WindowMinutes: task.DefaultDueSoonWindow,
		Timeout:       30 * time.Second,
	}
}

// NotifyDueTasksStats contains statistics from one run.
type NotifyDueTasksStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Agencies    int
	DueTasks    int
	Sent        int
	Skipped     int
	Failed      int
}

// NewNotifyDueTasksJob creates the job. clock defines "now" in the agency timezone.
func NewNotifyDueTasksJob(
	tasks task.Repository,
	notified task.NotifiedSet,
	sender notification.Sender,
	publisher shared.EventPublisher,
	clock shared.Clock,
	logger *slog.Logger,
	config NotifyDueTasksConfig,
) *NotifyDueTasksJob {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = shared.SystemClock(time.UTC)
	}
	if config.WindowMinutes <= 0 {
		config.WindowMinutes = task.DefaultDueSoonWindow
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &NotifyDueTasksJob{
		tasks:     tasks,
		notified:  notified,
		sender:    sender,
		publisher: publisher,
		logger:    logger,
		config:    config,
		clock:     clock,
	}
}

// Name implements scheduler.Job.
func (j *NotifyDueTasksJob) Name() string {
	return "notify_due_tasks"
}

// Description implements scheduler.Job.
func (j *NotifyDueTasksJob) Description() string {
	return "Sends a reminder for tasks due within the next few minutes"
}

// Run implements scheduler.Job. A failing agency does not stop the others.
func (j *NotifyDueTasksJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	stats := &NotifyDueTasksStats{StartedAt: j.clock()}
	defer func() {
		stats.CompletedAt = j.clock()
		j.lastRunStats.Store(stats)
	}()

	var firstErr error
	for _, agencyID := range j.config.AgencyIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Agencies++
		if err := j.runAgency(ctx, agencyID, stats); err != nil {
			j.logger.Error("due-soon check failed", "agency_id", agencyID.String(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if stats.Sent > 0 || stats.Failed > 0 {
		j.logger.Info("due-soon reminders processed",
			"agencies", stats.Agencies,
			"due", stats.DueTasks,
			"sent", stats.Sent,
			"skipped", stats.Skipped,
			"failed", stats.Failed,
		)
	}
	return firstErr
}

func (j *NotifyDueTasksJob) runAgency(ctx context.Context, agencyID shared.AgencyID, stats *NotifyDueTasksStats) error {
	list, err := j.tasks.Load(ctx, agencyID)
	if err != nil {
		return fmt.Errorf("notify_due_tasks: load tasks: %w", err)
	}

	now := j.clock()
	for _, t := range task.DueSoon(list.Tasks, now, j.config.WindowMinutes) {
		stats.DueTasks++

		already, err := j.notified.IsNotified(ctx, agencyID, t.ID, now)
		if err != nil {
			return fmt.Errorf("notify_due_tasks: check notified: %w", err)
		}
		if already {
			stats.Skipped++
			continue
		}

		if err := j.remind(ctx, agencyID, t); err != nil {
			stats.Failed++
			j.logger.Warn("reminder not delivered", "agency_id", agencyID.String(), "task_id", t.ID, "error", err)
			continue
		}

		// Mark after send: a failed delivery is retried on the next tick.
		fresh, err := j.notified.MarkNotified(ctx, agencyID, t.ID, now)
		if err != nil {
			return fmt.Errorf("notify_due_tasks: mark notified: %w", err)
		}
		if !fresh {
			stats.Skipped++
			continue
		}
		stats.Sent++

		if j.publisher != nil {
			if err := j.publisher.Publish(task.NewDueSoonEvent(agencyID.String(), t)); err != nil {
				j.logger.Warn("failed to publish due soon event", "agency_id", agencyID.String(), "task_id", t.ID, "error", err)
			}
		}
	}
	return nil
}

func (j *NotifyDueTasksJob) remind(ctx context.Context, agencyID shared.AgencyID, t *task.Task) error {
	channel := notification.ChannelTypeLog
	if j.config.Recipient != "" {
		channel = notification.ChannelTypeEmail
	}

	msg, err := notification.NewMessage(notification.NewMessageParams{
		AgencyID: agencyID,
		Type:     notification.TypeTaskDueSoon,
		Channel:  channel,
		To:       j.config.Recipient,
		Subject:  "Task due at " + string(t.DueTime),
		Body:     fmt.Sprintf("Reminder: %s (%s, %s priority)", t.Text, t.DueTime, t.Priority),
		Metadata: map[string]string{"task_id": t.ID, "student_id": t.StudentID},
	})
	if err != nil {
		return err
	}

	result := j.sender.Send(ctx, msg)
	if !result.Success {
		if result.Error != nil {
			return result.Error
		}
		return shared.ErrNotificationFailed
	}
	return nil
}

// LastRunStats returns statistics from the most recent run.
func (j *NotifyDueTasksJob) LastRunStats() *NotifyDueTasksStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*NotifyDueTasksStats)
	}
	return nil
}
