package task

import (
	"context"
	"sort"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// DefaultDueSoonWindow - окно напоминания в минутах.
const DefaultDueSoonWindow = 15

// TasksForDay возвращает задачи дня: сначала невыполненные, затем выполненные,
// внутри группы по приоритету High > Medium > Low. Сортировка стабильная.
func TasksForDay(tasks []*Task, day Day) []*Task {
	out := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Day == day {
			out = append(out, t)
		}
	}
	SortForDisplay(out)
	return out
}

// SortForDisplay сортирует задачи на месте в порядке планера.
func SortForDisplay(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		return a.Priority.Rank() > b.Priority.Rank()
	})
}

// WeekPlan - задачи, разложенные по дням недели с понедельника.
type WeekPlan struct {
	Days  []Day           `json:"days"`
	Tasks map[Day][]*Task `json:"tasks"`
}

// PlanWeek раскладывает задачи по дням; каждый день отсортирован как в TasksForDay.
func PlanWeek(tasks []*Task) WeekPlan {
	plan := WeekPlan{Days: PlannerDays(), Tasks: make(map[Day][]*Task, 7)}
	for _, d := range plan.Days {
		plan.Tasks[d] = TasksForDay(tasks, d)
	}
	return plan
}

// DueSoon возвращает задачи, для которых пора слать напоминание: не выполнена,
// день совпадает с сегодняшним, и до dueTime сегодня осталось (-1, window] минут.
// Функция не хранит состояние: отметки "уже уведомлено" ведёт вызывающий (см. NotifiedSet).
func DueSoon(tasks []*Task, now time.Time, windowMinutes int) []*Task {
	today := DayOf(now)
	var out []*Task
	for _, t := range tasks {
		if t.Completed || t.Day != today {
			continue
		}
		due, err := t.DueTime.On(now)
		if err != nil {
			continue
		}
		diff := due.Sub(now).Minutes()
		if diff > -1 && diff <= float64(windowMinutes) {
			out = append(out, t)
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// TASK LIST
// ══════════════════════════════════════════════════════════════════════════════

// List - все задачи агентства вместе с ревизией хранилища.
// Порядок хранения: новые сверху.
type List struct {
	Tasks    []*Task
	Revision int64
}

// Prepend добавляет задачи в начало списка, сохраняя их взаимный порядок.
func (l *List) Prepend(tasks ...*Task) {
	merged := make([]*Task, 0, len(tasks)+len(l.Tasks))
	merged = append(merged, tasks...)
	merged = append(merged, l.Tasks...)
	l.Tasks = merged
}

// Find возвращает задачу по id.
func (l *List) Find(id string) (*Task, error) {
	for _, t := range l.Tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, ErrTaskNotFound
}

// Toggle переключает выполнение задачи.
func (l *List) Toggle(id string) (*Task, error) {
	t, err := l.Find(id)
	if err != nil {
		return nil, err
	}
	t.Toggle()
	return t, nil
}

// Delete удаляет задачу.
func (l *List) Delete(id string) (*Task, error) {
	for i, t := range l.Tasks {
		if t.ID == id {
			l.Tasks = append(l.Tasks[:i], l.Tasks[i+1:]...)
			return t, nil
		}
	}
	return nil, ErrTaskNotFound
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository хранит список задач агентства целиком.
type Repository interface {
	// Load читает список. Пустой список имеет ревизию 0.
	Load(ctx context.Context, agencyID shared.AgencyID) (*List, error)

	// Store записывает список с проверкой ревизии (shared.ErrConcurrentModification).
	Store(ctx context.Context, agencyID shared.AgencyID, list *List) error
}

// NotifiedSet - внешнее хранилище отметок "напоминание отправлено".
// Ключ - задача и календарная дата, поэтому отметка действует один день.
type NotifiedSet interface {
	// MarkNotified атомарно ставит отметку. false - отметка уже стояла.
	MarkNotified(ctx context.Context, agencyID shared.AgencyID, taskID string, date time.Time) (bool, error)

	// IsNotified проверяет отметку.
	IsNotified(ctx context.Context, agencyID shared.AgencyID, taskID string, date time.Time) (bool, error)
}
