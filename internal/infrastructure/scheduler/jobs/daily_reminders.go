package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/notification"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY REMINDERS JOB
// ══════════════════════════════════════════════════════════════════════════════

// DailyRemindersJob sends each agency a morning digest of today's open tasks.
// Agencies with notifications.dailyReminders off are skipped.
type DailyRemindersJob struct {
	tasks    task.Repository
	settings SettingsReader
	sender   notification.Sender
	logger   *slog.Logger

	config DailyRemindersConfig
	clock  shared.Clock

	lastRunStats atomic.Value // *DailyRemindersStats
}

// SettingsReader is the part of agency.Repository the job needs.
type SettingsReader interface {
	Settings(ctx context.Context, agencyID shared.AgencyID) (*agency.SettingsRecord, error)
}

// DailyRemindersConfig contains configuration for the daily digest.
type DailyRemindersConfig struct {
	AgencyIDs []shared.AgencyID

	// Recipient is the counsellor inbox. Empty sends the digest to the log channel.
	Recipient string

	// Timeout bounds a single run.
	Timeout time.Duration
}

// DailyRemindersStats contains statistics from one run.
type DailyRemindersStats struct {
	StartedAt time.Time
	Agencies  int
	Sent      int
	Disabled  int
	Empty     int
}

// NewDailyRemindersJob creates the job.
func NewDailyRemindersJob(
	tasks task.Repository,
	settings SettingsReader,
	sender notification.Sender,
	clock shared.Clock,
	logger *slog.Logger,
	config DailyRemindersConfig,
) *DailyRemindersJob {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = shared.SystemClock(time.UTC)
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	return &DailyRemindersJob{
		tasks:    tasks,
		settings: settings,
		sender:   sender,
		logger:   logger,
		config:   config,
		clock:    clock,
	}
}

// Name implements scheduler.Job.
func (j *DailyRemindersJob) Name() string {
	return "daily_reminders"
}

// Description implements scheduler.Job.
func (j *DailyRemindersJob) Description() string {
	return "Sends a morning digest of today's open tasks"
}

// Run implements scheduler.Job.
func (j *DailyRemindersJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	stats := &DailyRemindersStats{StartedAt: j.clock()}
	defer j.lastRunStats.Store(stats)

	var firstErr error
	for _, agencyID := range j.config.AgencyIDs {
		stats.Agencies++
		if err := j.runAgency(ctx, agencyID, stats); err != nil {
			j.logger.Error("daily reminder failed", "agency_id", agencyID.String(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (j *DailyRemindersJob) runAgency(ctx context.Context, agencyID shared.AgencyID, stats *DailyRemindersStats) error {
	rec, err := j.settings.Settings(ctx, agencyID)
	if err != nil {
		return fmt.Errorf("daily_reminders: load settings: %w", err)
	}
	if !rec.Settings.Notifications.DailyReminders {
		stats.Disabled++
		return nil
	}

	list, err := j.tasks.Load(ctx, agencyID)
	if err != nil {
		return fmt.Errorf("daily_reminders: load tasks: %w", err)
	}

	now := j.clock()
	var open []*task.Task
	for _, t := range task.TasksForDay(list.Tasks, task.DayOf(now)) {
		if !t.Completed {
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		stats.Empty++
		return nil
	}

	channel := notification.ChannelTypeLog
	if j.config.Recipient != "" {
		channel = notification.ChannelTypeEmail
	}
	msg, err := notification.NewMessage(notification.NewMessageParams{
		AgencyID: agencyID,
		Type:     notification.TypeTaskDueSoon,
		Channel:  channel,
		To:       j.config.Recipient,
		ToName:   rec.Settings.AgencyName,
		Subject:  fmt.Sprintf("%s: %d tasks for %s", rec.Settings.AgencyName, len(open), task.DayOf(now)),
		Body:     formatDigest(open),
	})
	if err != nil {
		return err
	}

	result := j.sender.Send(ctx, msg)
	if !result.Success {
		if result.Error != nil {
			return fmt.Errorf("daily_reminders: send: %w", result.Error)
		}
		return shared.ErrNotificationFailed
	}
	stats.Sent++
	return nil
}

// formatDigest renders one line per task in display order.
func formatDigest(tasks []*task.Task) string {
	var sb strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&sb, "%s  [%s]  %s\n", t.DueTime, t.Priority, t.Text)
	}
	return sb.String()
}

// LastRunStats returns statistics from the most recent run.
func (j *DailyRemindersJob) LastRunStats() *DailyRemindersStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*DailyRemindersStats)
	}
	return nil
}
