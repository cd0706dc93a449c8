// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sagenius/agency-crm/internal/application/command"
	"github.com/sagenius/agency-crm/internal/application/feature"
	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/automation"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
	"github.com/sagenius/agency-crm/internal/domain/task"
	"github.com/sagenius/agency-crm/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STATUS CHANGED HANDLER
// Запускает движок автоматизации после смены статуса студента.
//
// 1. Движок по снимку студента строит пачку задач
// 2. Пачка одной записью добавляется в начало списка задач агентства
// 3. В журнал пишется "Workflow Engine created N tasks for {name}"
//
// Повторный вход в тот же статус даёт новую пачку: задачи не дедуплицируются.
// ═══════════════════════════════════════════════════════════════════════════

// OnStatusChangedHandler обрабатывает student.status_changed.
type OnStatusChangedHandler struct {
	tasks     task.Repository
	agency    agency.Repository
	locker    shared.TenantLocker
	publisher shared.EventPublisher
	engine    *automation.Engine
	features  feature.Gate
	clock     shared.Clock
	retrier   *retry.Retrier

	logger *slog.Logger
	config StatusChangedConfig
}

// StatusChangedConfig содержит конфигурацию обработчика.
type StatusChangedConfig struct {
	// Timeout - ограничение на весь цикл записи.
	Timeout time.Duration
}

// DefaultStatusChangedConfig возвращает конфигурацию по умолчанию.
func DefaultStatusChangedConfig() StatusChangedConfig {
	return StatusChangedConfig{Timeout: 10 * time.Second}
}

// NewOnStatusChangedHandler создаёт обработчик.
// clock задаёт "сейчас" в часовом поясе агентства: от него считаются дни задач.
func NewOnStatusChangedHandler(
	tasks task.Repository,
	agencyRepo agency.Repository,
	locker shared.TenantLocker,
	publisher shared.EventPublisher,
	engine *automation.Engine,
	features feature.Gate,
	clock shared.Clock,
	logger *slog.Logger,
	config StatusChangedConfig,
) *OnStatusChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = automation.NewEngine()
	}
	if features == nil {
		features = feature.Defaults()
	}
	if clock == nil {
		clock = shared.SystemClock(time.UTC)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultStatusChangedConfig().Timeout
	}

	return &OnStatusChangedHandler{
		tasks:     tasks,
		agency:    agencyRepo,
		locker:    locker,
		publisher: publisher,
		engine:    engine,
		features:  features,
		clock:     clock,
		retrier:   retry.ConflictRetrier(shared.IsConcurrentModification),
		logger:    logger.With("handler", "on_status_changed"),
		config:    config,
	}
}

// Handle реализует shared.EventHandler.
func (h *OnStatusChangedHandler) Handle(event shared.Event) error {
	changed, ok := event.(student.StatusChangedEvent)
	if !ok {
		h.logger.Warn("received non-StatusChangedEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	agencyID := shared.AgencyID(changed.AgencyID())
	if !h.features.EnabledFor(feature.WorkflowAutomation, agencyID.String()) {
		return nil
	}

	generated := h.engine.OnStatusChanged(changed.Student, changed.To, h.clock())
	if len(generated) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		unlock, err := h.locker.LockTenant(ctx, agencyID)
		if err != nil {
			return err
		}
		defer unlock()

		list, err := h.tasks.Load(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("load tasks: %w", err)
		}
		list.Prepend(generated...)
		if err := h.tasks.Store(ctx, agencyID, list); err != nil {
			return fmt.Errorf("store tasks: %w", err)
		}

		system := agency.SystemUser(agencyID)
		entry := agency.NewActivityEntry(agency.ActionAutomation, "Task",
			fmt.Sprintf("%s created %d tasks for %s", system.DisplayName(), len(generated), changed.Student.Name),
			system.DisplayName(), h.clock())
		if err := command.RecordActivity(ctx, h.agency, agencyID, entry); err != nil {
			h.logger.Warn("activity log write failed", "agency_id", agencyID.String(), "error", err)
		}
		return nil
	})
	if err != nil {
		h.logger.Error("failed to store generated tasks",
			"agency_id", agencyID.String(),
			"student_id", changed.Student.ID,
			"status", string(changed.To),
			"error", err,
		)
		return fmt.Errorf("on_status_changed: %w", err)
	}

	h.logger.Info("tasks generated",
		"agency_id", agencyID.String(),
		"student_id", changed.Student.ID,
		"status", string(changed.To),
		"count", len(generated),
	)

	if h.publisher != nil {
		ev := task.NewTasksGeneratedEvent(agencyID.String(), changed.Student.ID, generated)
		if err := h.publisher.Publish(ev); err != nil {
			h.logger.Warn("failed to publish tasks generated event", "error", err)
		}
	}
	return nil
}
