package query

import (
	"context"

	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// TasksForDayQuery - задачи одного дня. Пустой Day - сегодня по часам агентства.
type TasksForDayQuery struct {
	AgencyID shared.AgencyID
	Day      task.Day
}

// Validate проверяет параметры.
func (q TasksForDayQuery) Validate() error {
	if !q.AgencyID.IsValid() {
		return shared.ErrAgencyRequired
	}
	if q.Day != "" && !q.Day.IsValid() {
		return task.ErrInvalidDay
	}
	return nil
}

// DayDTO - задачи дня в порядке отображения.
type DayDTO struct {
	Day   task.Day     `json:"day"`
	Tasks []*task.Task `json:"tasks"`
	Open  int          `json:"open"`
}

// TaskQueryHandler обрабатывает запросы планера.
type TaskQueryHandler struct {
	deps Deps
}

// NewTaskQueryHandler создаёт обработчик.
func NewTaskQueryHandler(deps Deps) *TaskQueryHandler {
	return &TaskQueryHandler{deps: deps.withDefaults()}
}

// ForDay возвращает задачи дня: невыполненные сверху, затем по приоритету и времени.
func (h *TaskQueryHandler) ForDay(ctx context.Context, q TasksForDayQuery) (*DayDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, wrap("tasks_for_day", err)
	}
	day := q.Day
	if day == "" {
		day = task.DayOf(h.deps.Clock())
	}

	list, err := h.deps.Tasks.Load(ctx, q.AgencyID)
	if err != nil {
		return nil, wrap("tasks_for_day", err)
	}

	return newDayDTO(day, task.TasksForDay(list.Tasks, day)), nil
}

// Week возвращает недельный планер с понедельника по воскресенье.
func (h *TaskQueryHandler) Week(ctx context.Context, q TenantQuery) ([]DayDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, wrap("week_planner", err)
	}

	list, err := h.deps.Tasks.Load(ctx, q.AgencyID)
	if err != nil {
		return nil, wrap("week_planner", err)
	}

	plan := task.PlanWeek(list.Tasks)
	out := make([]DayDTO, 0, len(plan.Days))
	for _, d := range plan.Days {
		out = append(out, *newDayDTO(d, plan.Tasks[d]))
	}
	return out, nil
}

func newDayDTO(day task.Day, tasks []*task.Task) *DayDTO {
	if tasks == nil {
		tasks = []*task.Task{}
	}
	open := 0
	for _, t := range tasks {
		if !t.Completed {
			open++
		}
	}
	return &DayDTO{Day: day, Tasks: tasks, Open: open}
}
