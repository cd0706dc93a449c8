package command

import (
	"context"
	"fmt"

	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCY COMMANDS
// An edge target -> blocker keeps target in place until blocker has a visa.
// ══════════════════════════════════════════════════════════════════════════════

// ChangeDependencyCommand adds or removes one blocking edge.
type ChangeDependencyCommand struct {
	User      agency.User
	TargetID  string
	BlockerID string
}

// Validate validates the command.
func (c ChangeDependencyCommand) Validate() error {
	if err := authorizeWriter("dependency", c.User); err != nil {
		return err
	}
	if c.TargetID == "" {
		return invalidInput("dependency", "student_id is required")
	}
	if c.BlockerID == "" {
		return invalidInput("dependency", "blocker_id is required")
	}
	return nil
}

// ChangeDependencyResult reports the edge change. Changed is false for a
// self-edge, a duplicate add or a remove of a missing edge.
type ChangeDependencyResult struct {
	Student *student.Student
	Changed bool
	Events  []shared.Event
}

// DependencyHandler handles AddDependency and RemoveDependency.
type DependencyHandler struct {
	deps Deps
}

// NewDependencyHandler creates a new DependencyHandler.
func NewDependencyHandler(deps Deps) *DependencyHandler {
	return &DependencyHandler{deps: deps.withDefaults()}
}

// Add makes BlockerID block TargetID. An edge closing a cycle is rejected
// with student.ErrCyclicDependency.
func (h *DependencyHandler) Add(ctx context.Context, cmd ChangeDependencyCommand) (*ChangeDependencyResult, error) {
	return h.change(ctx, "add_dependency", cmd, true)
}

// Remove drops the edge. Removing a missing edge is a no-op.
func (h *DependencyHandler) Remove(ctx context.Context, cmd ChangeDependencyCommand) (*ChangeDependencyResult, error) {
	return h.change(ctx, "remove_dependency", cmd, false)
}

func (h *DependencyHandler) change(ctx context.Context, op string, cmd ChangeDependencyCommand, add bool) (*ChangeDependencyResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("%s: validation failed: %w", op, err)
	}
	agencyID := cmd.User.AgencyID

	var result *ChangeDependencyResult
	err := h.deps.inTenant(ctx, agencyID, func(ctx context.Context) error {
		roster, err := h.deps.Students.Load(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("load students: %w", err)
		}
		graph := roster.Graph()

		var changed bool
		if add {
			changed, err = graph.Block(cmd.TargetID, cmd.BlockerID)
		} else {
			changed, err = graph.Unblock(cmd.TargetID, cmd.BlockerID)
		}
		if err != nil {
			return err
		}

		target, _ := roster.Find(cmd.TargetID)
		result = &ChangeDependencyResult{Student: target, Changed: changed}
		if !changed {
			return nil
		}

		now := h.deps.Clock()
		target.UpdatedAt = now
		if err := h.deps.Students.Store(ctx, agencyID, roster); err != nil {
			return fmt.Errorf("store students: %w", err)
		}

		details := target.Name + " no longer waits on "
		if add {
			details = target.Name + " now waits on "
		}
		if blocker, ok := roster.Find(cmd.BlockerID); ok {
			details += blocker.Name
		} else {
			details += cmd.BlockerID
		}
		h.deps.record(ctx, agencyID, agency.NewActivityEntry(
			agency.ActionDependency, "Student", details, cmd.User.DisplayName(), now))

		result.Events = []shared.Event{
			student.NewDependencyChangedEvent(agencyID.String(), cmd.TargetID, cmd.BlockerID, add),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	h.deps.publish(result.Events)
	return result, nil
}
