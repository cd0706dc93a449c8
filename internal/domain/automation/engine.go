package automation

import (
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
	"github.com/sagenius/agency-crm/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// WORKFLOW AUTOMATION ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// IDGenerator выдаёт уникальные id задач, в том числе внутри одного вызова.
type IDGenerator func() string

// Engine - чистая функция (снимок студента, новый статус, "сейчас") -> задачи.
// Движок не отслеживает, какие задачи созданы каким запуском: каждая задача независима,
// повторный вход в статус даёт новую пачку.
type Engine struct {
	rules []Rule
	newID IDGenerator
}

// Option настраивает Engine.
type Option func(*Engine)

// WithRules заменяет таблицу правил.
func WithRules(rules []Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithIDGenerator заменяет генератор id.
func WithIDGenerator(gen IDGenerator) Option {
	return func(e *Engine) { e.newID = gen }
}

// NewEngine создаёт движок с таблицей DefaultRules.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rules: DefaultRules(),
		newID: shared.NewID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnStatusChanged возвращает задачи для перехода в newStatus в порядке таблицы.
// День задачи - days[(today + offset) mod 7] относительно now.
func (e *Engine) OnStatusChanged(s *student.Student, newStatus student.ApplicationStatus, now time.Time) []*task.Task {
	var out []*task.Task
	for _, r := range e.rules {
		if r.Status != newStatus || !r.Applies(s) {
			continue
		}
		out = append(out, &task.Task{
			ID:        e.newID(),
			Text:      r.Render(s),
			Completed: false,
			Priority:  r.Priority,
			DueTime:   r.DueTime,
			Day:       task.DayAfter(now, r.DayOffset),
			CreatedAt: now,
			StudentID: s.ID,
			Source:    task.SourceAutomation,
		})
	}
	return out
}

// Triggers сообщает, порождает ли статус хоть одну задачу.
func (e *Engine) Triggers(status student.ApplicationStatus) bool {
	for _, r := range e.rules {
		if r.Status == status {
			return true
		}
	}
	return false
}
