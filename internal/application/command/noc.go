package command

import (
	"context"
	"fmt"

	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE NOC STATUS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateNocCommand sets the No Objection Certificate step of a student.
// Any step may follow any other.
type UpdateNocCommand struct {
	User      agency.User
	StudentID string
	Status    student.NocStatus
}

// Validate validates the command.
func (c UpdateNocCommand) Validate() error {
	if err := authorizeWriter("update_noc", c.User); err != nil {
		return err
	}
	if c.StudentID == "" {
		return invalidInput("update_noc", "student_id is required")
	}
	if !c.Status.IsValid() {
		return student.ErrInvalidNocStatus
	}
	return nil
}

// UpdateNocResult contains the updated student.
type UpdateNocResult struct {
	Student *student.Student
	From    student.NocStatus
	Events  []shared.Event
}

// UpdateNocHandler handles UpdateNocCommand.
type UpdateNocHandler struct {
	deps Deps
}

// NewUpdateNocHandler creates a new UpdateNocHandler.
func NewUpdateNocHandler(deps Deps) *UpdateNocHandler {
	return &UpdateNocHandler{deps: deps.withDefaults()}
}

// Handle executes the command.
func (h *UpdateNocHandler) Handle(ctx context.Context, cmd UpdateNocCommand) (*UpdateNocResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_noc: validation failed: %w", err)
	}
	agencyID := cmd.User.AgencyID

	var result *UpdateNocResult
	err := h.deps.inTenant(ctx, agencyID, func(ctx context.Context) error {
		roster, err := h.deps.Students.Load(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("load students: %w", err)
		}
		s, err := roster.Get(cmd.StudentID)
		if err != nil {
			return err
		}

		from := s.NocStatus
		if err := s.UpdateNoc(cmd.Status); err != nil {
			return err
		}
		now := h.deps.Clock()
		s.UpdatedAt = now
		if err := h.deps.Students.Store(ctx, agencyID, roster); err != nil {
			return fmt.Errorf("store students: %w", err)
		}

		h.deps.record(ctx, agencyID, agency.NewActivityEntry(
			agency.ActionUpdate, "NOC", fmt.Sprintf("%s: NOC %s", s.Name, cmd.Status), cmd.User.DisplayName(), now))

		result = &UpdateNocResult{
			Student: s,
			From:    from,
			Events: []shared.Event{
				student.NewNocStatusChangedEvent(agencyID.String(), s.ID, from, cmd.Status, now),
			},
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_noc: %w", err)
	}

	h.deps.publish(result.Events)
	return result, nil
}
