package shared

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// ТИПЫ СОБЫТИЙ
// ══════════════════════════════════════════════════════════════════════════════

// EventType - имя доменного события в форме "агрегат.действие".
type EventType string

// События студента.
const (
	EventStudentCreated    EventType = "student.created"
	EventStudentUpdated    EventType = "student.updated"
	EventStudentDeleted    EventType = "student.deleted"
	EventStatusChanged     EventType = "student.status_changed"
	EventDependencyAdded   EventType = "student.dependency_added"
	EventDependencyRemoved EventType = "student.dependency_removed"
	EventDocumentUpdated   EventType = "student.document_updated"
	EventNocStatusChanged  EventType = "student.noc_status_changed"
	EventCommissionClaimed EventType = "student.commission_claimed"
)

// События задач.
const (
	EventTaskCreated    EventType = "task.created"
	EventTaskToggled    EventType = "task.toggled"
	EventTaskDeleted    EventType = "task.deleted"
	EventTasksGenerated EventType = "task.generated"
	EventTaskDueSoon    EventType = "task.due_soon"
)

// События доставки уведомлений.
const (
	EventNotificationSent   EventType = "notification.sent"
	EventNotificationFailed EventType = "notification.failed"
)

// String реализует fmt.Stringer.
func (t EventType) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// СОБЫТИЕ
// ══════════════════════════════════════════════════════════════════════════════

// Event - то, что агрегаты отдают шине после успешной записи.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time

	// AggregateID - идентификатор студента или задачи, породившей событие.
	AggregateID() string

	// AgencyID - арендатор. Обработчики не выходят за его пределы.
	AgencyID() string

	// Payload - плоское представление для логов и метрик.
	Payload() map[string]interface{}
}

// BaseEvent встраивается в конкретные события.
type BaseEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Aggregate string    `json:"aggregate_id"`
	Agency    string    `json:"agency_id"`
}

// NewBaseEvent заполняет общие поля; время - текущее.
func NewBaseEvent(eventType EventType, agencyID, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		Timestamp: time.Now(),
		Aggregate: aggregateID,
		Agency:    agencyID,
	}
}

// At возвращает копию события с заданным временем. Нулевое время игнорируется.
func (e BaseEvent) At(t time.Time) BaseEvent {
	if !t.IsZero() {
		e.Timestamp = t
	}
	return e
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.Aggregate }
func (e BaseEvent) AgencyID() string      { return e.Agency }

// ══════════════════════════════════════════════════════════════════════════════
// ШИНА
// ══════════════════════════════════════════════════════════════════════════════

// EventHandler обрабатывает одно событие.
type EventHandler func(event Event) error

// EventPublisher отправляет события подписчикам.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber регистрирует обработчики.
type EventSubscriber interface {
	// Subscribe - на один тип событий.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll - на все события.
	SubscribeAll(handler EventHandler) error
}

// EventBus объединяет публикацию и подписку.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
