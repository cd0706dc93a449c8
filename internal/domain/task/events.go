package task

import (
	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// TaskChangedEvent - задача создана, переключена или удалена.
type TaskChangedEvent struct {
	shared.BaseEvent
	Task Task
}

// Payload реализует shared.Event.
func (e TaskChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"task_id":   e.Task.ID,
		"text":      e.Task.Text,
		"day":       string(e.Task.Day),
		"due_time":  string(e.Task.DueTime),
		"priority":  string(e.Task.Priority),
		"completed": e.Task.Completed,
	}
}

// NewTaskChangedEvent создаёт событие изменения задачи. eventType - одно из
// shared.EventTaskCreated, shared.EventTaskToggled, shared.EventTaskDeleted.
func NewTaskChangedEvent(eventType shared.EventType, agencyID string, t *Task) TaskChangedEvent {
	return TaskChangedEvent{
		BaseEvent: shared.NewBaseEvent(eventType, agencyID, t.ID),
		Task:      *t,
	}
}

// TasksGeneratedEvent - движок автоматизации создал пачку задач для студента.
type TasksGeneratedEvent struct {
	shared.BaseEvent
	StudentID string
	TaskIDs   []string
}

// Payload реализует shared.Event.
func (e TasksGeneratedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"task_ids":   e.TaskIDs,
		"count":      len(e.TaskIDs),
	}
}

// NewTasksGeneratedEvent создаёт событие генерации задач.
func NewTasksGeneratedEvent(agencyID, studentID string, tasks []*Task) TasksGeneratedEvent {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return TasksGeneratedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventTasksGenerated, agencyID, studentID),
		StudentID: studentID,
		TaskIDs:   ids,
	}
}

// DueSoonEvent - по задаче отправлено напоминание.
type DueSoonEvent struct {
	shared.BaseEvent
	Task Task
}

// Payload реализует shared.Event.
func (e DueSoonEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"task_id":  e.Task.ID,
		"text":     e.Task.Text,
		"due_time": string(e.Task.DueTime),
	}
}

// NewDueSoonEvent создаёт событие напоминания.
func NewDueSoonEvent(agencyID string, t *Task) DueSoonEvent {
	return DueSoonEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventTaskDueSoon, agencyID, t.ID),
		Task:      *t,
	}
}
