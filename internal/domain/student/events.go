package student

import (
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN EVENTS
// События домена студентов. Они реализуют shared.Event и публикуются
// слоем application после успешного сохранения.
// ══════════════════════════════════════════════════════════════════════════════

// StatusChangedEvent - студент перешёл в новый статус.
// Содержит снимок студента на момент перехода: обработчики не читают хранилище.
type StatusChangedEvent struct {
	shared.BaseEvent
	Student *Student
	From    ApplicationStatus
	To      ApplicationStatus
	ActorID string
}

// Payload реализует shared.Event.
func (e StatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":   e.Student.ID,
		"student_name": e.Student.Name,
		"country":      string(e.Student.TargetCountry),
		"from":         string(e.From),
		"to":           string(e.To),
		"actor_id":     e.ActorID,
	}
}

// NewStatusChangedEvent создаёт событие смены статуса.
func NewStatusChangedEvent(agencyID string, s *Student, tr Transition, actorID string) StatusChangedEvent {
	return StatusChangedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStatusChanged, agencyID, s.ID).At(tr.At),
		Student:   s.Clone(),
		From:      tr.From,
		To:        tr.To,
		ActorID:   actorID,
	}
}

// StudentCreatedEvent - в агентство добавлен студент.
type StudentCreatedEvent struct {
	shared.BaseEvent
	Name    string
	Country Country
}

// Payload реализует shared.Event.
func (e StudentCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"name":    e.Name,
		"country": string(e.Country),
	}
}

// NewStudentCreatedEvent создаёт событие добавления студента.
func NewStudentCreatedEvent(agencyID string, s *Student) StudentCreatedEvent {
	return StudentCreatedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStudentCreated, agencyID, s.ID),
		Name:      s.Name,
		Country:   s.TargetCountry,
	}
}

// StudentDeletedEvent - студент удалён. Ссылки на него в blockedBy остаются висячими.
type StudentDeletedEvent struct {
	shared.BaseEvent
	Name string
}

// Payload реализует shared.Event.
func (e StudentDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"name": e.Name}
}

// NewStudentDeletedEvent создаёт событие удаления.
func NewStudentDeletedEvent(agencyID, studentID, name string) StudentDeletedEvent {
	return StudentDeletedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStudentDeleted, agencyID, studentID),
		Name:      name,
	}
}

// DependencyChangedEvent - добавлено или удалено ребро блокировки.
type DependencyChangedEvent struct {
	shared.BaseEvent
	TargetID  string
	BlockerID string
	Added     bool
}

// Payload реализует shared.Event.
func (e DependencyChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"target_id":  e.TargetID,
		"blocker_id": e.BlockerID,
		"added":      e.Added,
	}
}

// NewDependencyChangedEvent создаёт событие изменения зависимости.
func NewDependencyChangedEvent(agencyID, targetID, blockerID string, added bool) DependencyChangedEvent {
	eventType := shared.EventDependencyRemoved
	if added {
		eventType = shared.EventDependencyAdded
	}
	return DependencyChangedEvent{
		BaseEvent: shared.NewBaseEvent(eventType, agencyID, targetID),
		TargetID:  targetID,
		BlockerID: blockerID,
		Added:     added,
	}
}

// DocumentUpdatedEvent - изменился статус документа или прикреплён файл.
type DocumentUpdatedEvent struct {
	shared.BaseEvent
	Document string
	Status   DocumentStatus
	Progress int
	FileKey  string
}

// Payload реализует shared.Event.
func (e DocumentUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"document": e.Document,
		"status":   string(e.Status),
		"progress": e.Progress,
		"file_key": e.FileKey,
	}
}

// NewDocumentUpdatedEvent создаёт событие изменения документа.
func NewDocumentUpdatedEvent(agencyID, studentID, document string, status DocumentStatus, progress int, fileKey string) DocumentUpdatedEvent {
	return DocumentUpdatedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventDocumentUpdated, agencyID, studentID),
		Document:  document,
		Status:    status,
		Progress:  progress,
		FileKey:   fileKey,
	}
}

// NocStatusChangedEvent - изменился этап NOC.
type NocStatusChangedEvent struct {
	shared.BaseEvent
	From NocStatus
	To   NocStatus
}

// Payload реализует shared.Event.
func (e NocStatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"from": string(e.From),
		"to":   string(e.To),
	}
}

// NewNocStatusChangedEvent создаёт событие изменения NOC.
func NewNocStatusChangedEvent(agencyID, studentID string, from, to NocStatus, at time.Time) NocStatusChangedEvent {
	base := shared.NewBaseEvent(shared.EventNocStatusChanged, agencyID, studentID).At(at)
	return NocStatusChangedEvent{BaseEvent: base, From: from, To: to}
}
