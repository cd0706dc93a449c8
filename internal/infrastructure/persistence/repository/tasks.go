package repository

import (
	"context"

	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/task"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/collection"
)

// TaskRepository implements task.Repository.
type TaskRepository struct {
	store collection.Store
}

// NewTaskRepository creates a repository over store.
func NewTaskRepository(store collection.Store) *TaskRepository {
	return &TaskRepository{store: store}
}

// Load implements task.Repository.
func (r *TaskRepository) Load(ctx context.Context, agencyID shared.AgencyID) (*task.List, error) {
	tasks, rev, err := fetchList[*task.Task](ctx, r.store, agencyID, collection.Tasks)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.Priority == "" {
			t.Priority = task.PriorityMedium
		}
		if t.DueTime == "" {
			t.DueTime = task.DefaultDueTime
		}
	}
	return &task.List{Tasks: tasks, Revision: rev}, nil
}

// Store implements task.Repository.
func (r *TaskRepository) Store(ctx context.Context, agencyID shared.AgencyID, list *task.List) error {
	tasks := list.Tasks
	if tasks == nil {
		tasks = []*task.Task{}
	}
	rev, err := saveValue(ctx, r.store, agencyID, collection.Tasks, tasks, list.Revision)
	if err != nil {
		return err
	}
	list.Revision = rev
	return nil
}
