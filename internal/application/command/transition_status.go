package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITION STATUS COMMAND
// Moves a student to another pipeline column. The only barrier is an
// unresolved blocker; task generation happens in the status-changed subscriber.
// ══════════════════════════════════════════════════════════════════════════════

// TransitionStatusCommand requests a status change.
type TransitionStatusCommand struct {
	User      agency.User
	StudentID string
	To        student.ApplicationStatus
}

// Validate validates the command.
func (c TransitionStatusCommand) Validate() error {
	if err := authorizeWriter("transition_status", c.User); err != nil {
		return err
	}
	if c.StudentID == "" {
		return invalidInput("transition_status", "student_id is required")
	}
	if !c.To.IsValid() {
		return invalidInput("transition_status", "unknown status "+string(c.To))
	}
	return nil
}

// TransitionStatusResult contains the applied transition.
type TransitionStatusResult struct {
	Transition student.Transition
	Student    *student.Student
	Events     []shared.Event
}

// TransitionStatusHandler handles TransitionStatusCommand.
type TransitionStatusHandler struct {
	deps    Deps
	machine *student.StateMachine
}

// NewTransitionStatusHandler creates a new TransitionStatusHandler.
func NewTransitionStatusHandler(deps Deps) *TransitionStatusHandler {
	return &TransitionStatusHandler{
		deps:    deps.withDefaults(),
		machine: student.NewStateMachine(),
	}
}

// Handle executes the command. A blocked student yields an error matching
// student.ErrBlockedTransition that carries the blocker name.
func (h *TransitionStatusHandler) Handle(ctx context.Context, cmd TransitionStatusCommand) (*TransitionStatusResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("transition_status: validation failed: %w", err)
	}
	agencyID := cmd.User.AgencyID

	var result *TransitionStatusResult
	err := h.deps.inTenant(ctx, agencyID, func(ctx context.Context) error {
		roster, err := h.deps.Students.Load(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("load students: %w", err)
		}
		s, err := roster.Get(cmd.StudentID)
		if err != nil {
			return err
		}

		tr, err := h.machine.RequestTransition(s, cmd.To, roster.Resolver(), h.deps.Clock())
		if err != nil {
			return err
		}
		if err := h.deps.Students.Store(ctx, agencyID, roster); err != nil {
			return fmt.Errorf("store students: %w", err)
		}

		h.deps.record(ctx, agencyID, agency.NewActivityEntry(
			agency.ActionStatus, "Student",
			fmt.Sprintf("%s moved from %s to %s", s.Name, tr.From, tr.To),
			cmd.User.DisplayName(), tr.At))

		result = &TransitionStatusResult{
			Transition: tr,
			Student:    s,
			Events: []shared.Event{
				student.NewStatusChangedEvent(agencyID.String(), s, tr, cmd.User.ID),
			},
		}
		return nil
	})
	if err != nil {
		var blocked *student.BlockedTransitionError
		if errors.As(err, &blocked) {
			h.deps.Logger.Info("transition blocked",
				"agency_id", agencyID.String(),
				"student_id", cmd.StudentID,
				"blocker_id", blocked.BlockerID,
			)
		}
		return nil, fmt.Errorf("transition_status: %w", err)
	}

	h.deps.Logger.Info("status changed",
		"agency_id", agencyID.String(),
		"student_id", result.Student.ID,
		"from", string(result.Transition.From),
		"to", string(result.Transition.To),
	)
	h.deps.publish(result.Events)
	return result, nil
}
