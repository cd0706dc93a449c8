package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/sagenius/agency-crm/config"
	"github.com/sagenius/agency-crm/internal/application/feature"
	"github.com/sagenius/agency-crm/internal/domain/notification"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/infrastructure/scheduler"
	"github.com/sagenius/agency-crm/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// JobObserver receives every finished job run (metrics).
type JobObserver interface {
	ObserveJob(r scheduler.JobResult)
}

// NewScheduler registers the background jobs:
//   - notify_due_tasks on a fixed interval, when due_soon_notifications is on
//   - daily_reminders on the configured cron expression
//
// Both run in the agency timezone.
func NewScheduler(
	cfg *config.Config,
	stores *Stores,
	sender notification.Sender,
	publisher shared.EventPublisher,
	observer JobObserver,
	log *slog.Logger,
) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:         log.With("component", "scheduler"),
		Timezone:       cfg.App.Location,
		MaxHistorySize: 500,
	})
	if observer != nil {
		sched.OnJobComplete(observer.ObserveJob)
	}

	clock := shared.SystemClock(cfg.App.Location)
	agencies := AgencyIDs(cfg)

	if cfg.Features.IsEnabled(feature.DueSoonNotifications) {
		dueSoon := jobs.NewNotifyDueTasksJob(
			stores.Tasks,
			stores.Notified,
			sender,
			publisher,
			clock,
			log.With("job", "notify_due_tasks"),
			jobs.NotifyDueTasksConfig{
				AgencyIDs:     agencies,
				WindowMinutes: cfg.Scheduler.DueSoonWindowMinutes,
				Recipient:     cfg.Notification.ReminderRecipient,
				Timeout:       cfg.Scheduler.JobTimeout,
			},
		)
		if err := sched.Register(dueSoon, scheduler.NewIntervalSchedule(cfg.Scheduler.DueSoonInterval)); err != nil {
			return nil, fmt.Errorf("register %s: %w", dueSoon.Name(), err)
		}
	} else {
		log.Info("due-soon notifications are disabled")
	}

	cron, err := scheduler.ParseCron(cfg.Scheduler.DailyRemindersCron)
	if err != nil {
		return nil, fmt.Errorf("SCHEDULER_DAILY_REMINDERS_CRON: %w", err)
	}
	reminders := jobs.NewDailyRemindersJob(
		stores.Tasks,
		stores.Agency,
		sender,
		clock,
		log.With("job", "daily_reminders"),
		jobs.DailyRemindersConfig{
			AgencyIDs: agencies,
			Recipient: cfg.Notification.ReminderRecipient,
			Timeout:   cfg.Scheduler.JobTimeout,
		},
	)
	if err := sched.Register(reminders, cron); err != nil {
		return nil, fmt.Errorf("register %s: %w", reminders.Name(), err)
	}

	return sched, nil
}
