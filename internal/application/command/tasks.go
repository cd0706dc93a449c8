package command

import (
	"context"
	"fmt"

	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// CreateTaskCommand adds a manual task to the weekly planner.
type CreateTaskCommand struct {
	User      agency.User
	Text      string
	Priority  task.Priority
	Day       task.Day
	DueTime   task.DueTime
	StudentID string
}

// Validate validates the command. Field formats are checked by task.NewTask.
func (c CreateTaskCommand) Validate() error {
	return authorizeWriter("create_task", c.User)
}

// TaskIDCommand addresses one existing task.
type TaskIDCommand struct {
	User   agency.User
	TaskID string
}

// Validate validates the command.
func (c TaskIDCommand) Validate() error {
	if err := authorizeWriter("task", c.User); err != nil {
		return err
	}
	if c.TaskID == "" {
		return invalidInput("task", "task_id is required")
	}
	return nil
}

// TaskResult contains the affected task.
type TaskResult struct {
	Task   *task.Task
	Events []shared.Event
}

// TaskHandler handles the planner commands.
type TaskHandler struct {
	deps Deps
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(deps Deps) *TaskHandler {
	return &TaskHandler{deps: deps.withDefaults()}
}

// Create executes CreateTaskCommand. Defaults: Medium priority, 09:00, today.
func (h *TaskHandler) Create(ctx context.Context, cmd CreateTaskCommand) (*TaskResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_task: validation failed: %w", err)
	}

	t, err := task.NewTask(task.NewTaskParams{
		Text:      cmd.Text,
		Priority:  cmd.Priority,
		DueTime:   cmd.DueTime,
		Day:       cmd.Day,
		StudentID: cmd.StudentID,
		Source:    task.SourceManual,
		Now:       h.deps.Clock(),
	})
	if err != nil {
		return nil, fmt.Errorf("create_task: %w", err)
	}

	return h.mutate(ctx, "create_task", cmd.User, shared.EventTaskCreated, func(list *task.List) (*task.Task, error) {
		list.Prepend(t)
		return t, nil
	})
}

// Toggle executes the toggle-completed command.
func (h *TaskHandler) Toggle(ctx context.Context, cmd TaskIDCommand) (*TaskResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("toggle_task: validation failed: %w", err)
	}
	return h.mutate(ctx, "toggle_task", cmd.User, shared.EventTaskToggled, func(list *task.List) (*task.Task, error) {
		return list.Toggle(cmd.TaskID)
	})
}

// Delete executes the delete command.
func (h *TaskHandler) Delete(ctx context.Context, cmd TaskIDCommand) (*TaskResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("delete_task: validation failed: %w", err)
	}
	return h.mutate(ctx, "delete_task", cmd.User, shared.EventTaskDeleted, func(list *task.List) (*task.Task, error) {
		return list.Delete(cmd.TaskID)
	})
}

func (h *TaskHandler) mutate(
	ctx context.Context,
	op string,
	user agency.User,
	eventType shared.EventType,
	apply func(list *task.List) (*task.Task, error),
) (*TaskResult, error) {
	agencyID := user.AgencyID

	var result *TaskResult
	err := h.deps.inTenant(ctx, agencyID, func(ctx context.Context) error {
		list, err := h.deps.Tasks.Load(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("load tasks: %w", err)
		}
		t, err := apply(list)
		if err != nil {
			return err
		}
		if err := h.deps.Tasks.Store(ctx, agencyID, list); err != nil {
			return fmt.Errorf("store tasks: %w", err)
		}
		result = &TaskResult{
			Task:   t,
			Events: []shared.Event{task.NewTaskChangedEvent(eventType, agencyID.String(), t)},
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	h.deps.publish(result.Events)
	return result, nil
}
