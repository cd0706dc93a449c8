// Package task содержит доменную модель задач агентства: недельный планер,
// приоритеты, время выполнения и проверку "скоро срок" для напоминаний.
package task

import (
	"strings"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Priority - приоритет задачи.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// IsValid проверяет корректность приоритета.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Rank возвращает вес для сортировки: High > Medium > Low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Day - название дня недели ("Monday", ...).
type Day string

// days - порядок как у time.Weekday: воскресенье первое.
var days = [7]Day{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Days возвращает дни недели, начиная с воскресенья.
func Days() []Day {
	return append([]Day(nil), days[:]...)
}

// PlannerDays возвращает дни недели для планера, начиная с понедельника.
func PlannerDays() []Day {
	return []Day{days[1], days[2], days[3], days[4], days[5], days[6], days[0]}
}

// DayOf возвращает день недели для момента t.
func DayOf(t time.Time) Day {
	return days[int(t.Weekday())]
}

// DayAfter возвращает день недели через offset календарных дней: days[(today+offset) mod 7].
func DayAfter(now time.Time, offset int) Day {
	i := (int(now.Weekday()) + offset) % 7
	if i < 0 {
		i += 7
	}
	return days[i]
}

// IsValid проверяет, что день - одно из семи названий.
func (d Day) IsValid() bool {
	for _, known := range days {
		if d == known {
			return true
		}
	}
	return false
}

// ParseDay разбирает день недели без учёта регистра.
func ParseDay(raw string) (Day, error) {
	for _, d := range days {
		if strings.EqualFold(string(d), strings.TrimSpace(raw)) {
			return d, nil
		}
	}
	return "", ErrInvalidDay
}

// DueTime - время "HH:MM" в 24-часовом формате.
type DueTime string

// DefaultDueTime - время по умолчанию для задач, созданных вручную.
const DefaultDueTime DueTime = "09:00"

// Minutes возвращает количество минут от полуночи.
func (t DueTime) Minutes() (int, error) {
	if len(t) != 5 || t[2] != ':' {
		return 0, ErrInvalidDueTime
	}
	for _, i := range []int{0, 1, 3, 4} {
		if t[i] < '0' || t[i] > '9' {
			return 0, ErrInvalidDueTime
		}
	}
	h := int(t[0]-'0')*10 + int(t[1]-'0')
	m := int(t[3]-'0')*10 + int(t[4]-'0')
	if h > 23 || m > 59 {
		return 0, ErrInvalidDueTime
	}
	return h*60 + m, nil
}

// IsValid проверяет формат HH:MM.
func (t DueTime) IsValid() bool {
	_, err := t.Minutes()
	return err == nil
}

// On возвращает момент наступления времени в тот же календарный день, что и day.
func (t DueTime) On(day time.Time) (time.Time, error) {
	mins, err := t.Minutes()
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, mins/60, mins%60, 0, 0, day.Location()), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: TASK
// ══════════════════════════════════════════════════════════════════════════════

// Task - задача в недельном планере агентства.
type Task struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	Priority  Priority  `json:"priority"`
	DueTime   DueTime   `json:"dueTime"`
	Day       Day       `json:"day"`
	CreatedAt time.Time `json:"createdAt"`

	// StudentID - студент, к которому относится задача (если есть).
	StudentID string `json:"studentId,omitempty"`

	// Source - "manual" или "automation".
	Source string `json:"source,omitempty"`
}

const (
	SourceManual     = "manual"
	SourceAutomation = "automation"
)

// Toggle переключает отметку о выполнении.
func (t *Task) Toggle() {
	t.Completed = !t.Completed
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrTaskNotFound - задача не найдена.
	ErrTaskNotFound = shared.NewDomainError("task", "Find", shared.ErrNotFound, "task not found")

	// ErrEmptyText - пустой текст задачи.
	ErrEmptyText = shared.NewDomainError("task", "Validate", shared.ErrEmptyValue, "task text is required")

	// ErrInvalidPriority - неизвестный приоритет.
	ErrInvalidPriority = shared.NewDomainError("task", "Validate", shared.ErrInvalidInput, "priority must be High, Medium or Low")

	// ErrInvalidDay - неизвестный день недели.
	ErrInvalidDay = shared.NewDomainError("task", "Validate", shared.ErrInvalidInput, "invalid weekday name")

	// ErrInvalidDueTime - время не в формате HH:MM.
	ErrInvalidDueTime = shared.NewDomainError("task", "Validate", shared.ErrInvalidFormat, "due time must be HH:MM")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY
// ══════════════════════════════════════════════════════════════════════════════

// NewTaskParams содержит параметры создания задачи. Пустые поля получают значения по умолчанию:
// Medium, 09:00, сегодняшний день.
type NewTaskParams struct {
	ID        string
	Text      string
	Priority  Priority
	DueTime   DueTime
	Day       Day
	StudentID string
	Source    string
	Now       time.Time
}

// NewTask создаёт задачу с валидацией.
func NewTask(params NewTaskParams) (*Task, error) {
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}

	priority := params.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.IsValid() {
		return nil, ErrInvalidPriority
	}

	due := params.DueTime
	if due == "" {
		due = DefaultDueTime
	}
	if !due.IsValid() {
		return nil, ErrInvalidDueTime
	}

	day := params.Day
	if day == "" {
		day = DayOf(now)
	}
	if !day.IsValid() {
		return nil, ErrInvalidDay
	}

	id := params.ID
	if id == "" {
		id = shared.NewID()
	}

	source := params.Source
	if source == "" {
		source = SourceManual
	}

	return &Task{
		ID:        id,
		Text:      text,
		Priority:  priority,
		DueTime:   due,
		Day:       day,
		CreatedAt: now,
		StudentID: params.StudentID,
		Source:    source,
	}, nil
}
