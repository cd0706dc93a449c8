package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/sagenius/agency-crm/internal/application/feature"
	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE STUDENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateStudentCommand adds a new Lead to the agency roster.
type CreateStudentCommand struct {
	User agency.User

	Name          string
	Email         string
	Phone         string
	TargetCountry student.Country
	Notes         string
}

// Validate validates the command.
func (c CreateStudentCommand) Validate() error {
	if err := authorizeWriter("create_student", c.User); err != nil {
		return err
	}
	if strings.TrimSpace(c.Name) == "" {
		return invalidInput("create_student", "name is required")
	}
	if c.TargetCountry != "" && !c.TargetCountry.IsValid() {
		return invalidInput("create_student", "unknown target country "+string(c.TargetCountry))
	}
	return nil
}

// CreateStudentResult contains the created student.
type CreateStudentResult struct {
	Student *student.Student
	Events  []shared.Event
}

// CreateStudentHandler handles CreateStudentCommand.
type CreateStudentHandler struct {
	deps Deps
}

// NewCreateStudentHandler creates a new CreateStudentHandler.
func NewCreateStudentHandler(deps Deps) *CreateStudentHandler {
	return &CreateStudentHandler{deps: deps.withDefaults()}
}

// Handle executes the command. An empty target country falls back to the
// agency's default country.
func (h *CreateStudentHandler) Handle(ctx context.Context, cmd CreateStudentCommand) (*CreateStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_student: validation failed: %w", err)
	}
	agencyID := cmd.User.AgencyID

	var result *CreateStudentResult
	err := h.deps.inTenant(ctx, agencyID, func(ctx context.Context) error {
		country := cmd.TargetCountry
		if country == "" {
			settings, err := h.deps.Agency.Settings(ctx, agencyID)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			country = settings.Settings.DefaultCountry
		}

		now := h.deps.Clock()
		s, err := student.NewStudent(student.NewStudentParams{
			Name:          cmd.Name,
			Email:         cmd.Email,
			Phone:         cmd.Phone,
			TargetCountry: country,
			Notes:         cmd.Notes,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}

		roster, err := h.deps.Students.Load(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("load students: %w", err)
		}
		roster.Add(s)
		if err := h.deps.Students.Store(ctx, agencyID, roster); err != nil {
			return fmt.Errorf("store students: %w", err)
		}

		h.deps.record(ctx, agencyID, agency.NewActivityEntry(
			agency.ActionCreate, "Student", "Added "+s.Name, cmd.User.DisplayName(), now))

		result = &CreateStudentResult{
			Student: s,
			Events:  []shared.Event{student.NewStudentCreatedEvent(agencyID.String(), s)},
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create_student: %w", err)
	}

	h.deps.publish(result.Events)
	h.deps.Logger.Info("student created",
		"agency_id", agencyID.String(),
		"student_id", result.Student.ID,
		"country", string(result.Student.TargetCountry),
	)
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE STUDENT PROFILE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateStudentProfileCommand changes contact fields, notes or the target
// country. Nil fields are left unchanged.
type UpdateStudentProfileCommand struct {
	User      agency.User
	StudentID string

	Name          *string
	Email         *string
	Phone         *string
	Notes         *string
	TargetCountry *student.Country
}

// Validate validates the command.
func (c UpdateStudentProfileCommand) Validate() error {
	if err := authorizeWriter("update_student", c.User); err != nil {
		return err
	}
	if c.StudentID == "" {
		return invalidInput("update_student", "student_id is required")
	}
	if c.TargetCountry != nil && !c.TargetCountry.IsValid() {
		return invalidInput("update_student", "unknown target country "+string(*c.TargetCountry))
	}
	return nil
}

// UpdateStudentProfileResult contains the updated student.
type UpdateStudentProfileResult struct {
	Student        *student.Student
	CountryChanged bool
}

// UpdateStudentProfileHandler handles UpdateStudentProfileCommand.
type UpdateStudentProfileHandler struct {
	deps Deps
}

// NewUpdateStudentProfileHandler creates a new UpdateStudentProfileHandler.
func NewUpdateStudentProfileHandler(deps Deps) *UpdateStudentProfileHandler {
	return &UpdateStudentProfileHandler{deps: deps.withDefaults()}
}

// Handle executes the command. With the country_lock toggle on, a country
// change is rejected once a country-specific document is uploaded.
func (h *UpdateStudentProfileHandler) Handle(ctx context.Context, cmd UpdateStudentProfileCommand) (*UpdateStudentProfileResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_student: validation failed: %w", err)
	}
	agencyID := cmd.User.AgencyID
	lock := h.deps.enabled(feature.CountryLock, agencyID)

	var result *UpdateStudentProfileResult
	err := h.deps.inTenant(ctx, agencyID, func(ctx context.Context) error {
		roster, err := h.deps.Students.Load(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("load students: %w", err)
		}
		s, err := roster.Get(cmd.StudentID)
		if err != nil {
			return err
		}

		if cmd.Name != nil {
			if err := s.Rename(*cmd.Name); err != nil {
				return err
			}
		}
		if cmd.Email != nil {
			email, err := shared.NewEmail(*cmd.Email)
			if err != nil {
				return err
			}
			s.Email = email
		}
		if cmd.Phone != nil {
			s.Phone = shared.Phone(strings.TrimSpace(*cmd.Phone))
		}
		if cmd.Notes != nil {
			s.Notes = strings.TrimSpace(*cmd.Notes)
		}

		from := s.TargetCountry
		if cmd.TargetCountry != nil {
			if err := s.ChangeCountry(h.deps.Catalog, *cmd.TargetCountry, lock); err != nil {
				return err
			}
		}

		now := h.deps.Clock()
		s.UpdatedAt = now
		if err := h.deps.Students.Store(ctx, agencyID, roster); err != nil {
			return fmt.Errorf("store students: %w", err)
		}

		h.deps.record(ctx, agencyID, agency.NewActivityEntry(
			agency.ActionUpdate, "Student", "Updated profile of "+s.Name, cmd.User.DisplayName(), now))

		result = &UpdateStudentProfileResult{Student: s, CountryChanged: from != s.TargetCountry}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_student: %w", err)
	}
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE STUDENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeleteStudentCommand removes a student. Other students keep their
// blockedBy references to it; a missing blocker never blocks.
type DeleteStudentCommand struct {
	User      agency.User
	StudentID string
}

// Validate validates the command.
func (c DeleteStudentCommand) Validate() error {
	if err := authorizeWriter("delete_student", c.User); err != nil {
		return err
	}
	if c.StudentID == "" {
		return invalidInput("delete_student", "student_id is required")
	}
	return nil
}

// DeleteStudentResult describes the removed student.
type DeleteStudentResult struct {
	StudentID string
	Name      string
	Events    []shared.Event
}

// DeleteStudentHandler handles DeleteStudentCommand.
type DeleteStudentHandler struct {
	deps Deps
}

// NewDeleteStudentHandler creates a new DeleteStudentHandler.
func NewDeleteStudentHandler(deps Deps) *DeleteStudentHandler {
	return &DeleteStudentHandler{deps: deps.withDefaults()}
}

// Handle executes the command.
func (h *DeleteStudentHandler) Handle(ctx context.Context, cmd DeleteStudentCommand) (*DeleteStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("delete_student: validation failed: %w", err)
	}
	agencyID := cmd.User.AgencyID

	var result *DeleteStudentResult
	err := h.deps.inTenant(ctx, agencyID, func(ctx context.Context) error {
		roster, err := h.deps.Students.Load(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("load students: %w", err)
		}
		removed, err := roster.Remove(cmd.StudentID)
		if err != nil {
			return err
		}
		if err := h.deps.Students.Store(ctx, agencyID, roster); err != nil {
			return fmt.Errorf("store students: %w", err)
		}

		h.deps.record(ctx, agencyID, agency.NewActivityEntry(
			agency.ActionDelete, "Student", "Removed "+removed.Name, cmd.User.DisplayName(), h.deps.Clock()))

		result = &DeleteStudentResult{
			StudentID: removed.ID,
			Name:      removed.Name,
			Events:    []shared.Event{student.NewStudentDeletedEvent(agencyID.String(), removed.ID, removed.Name)},
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete_student: %w", err)
	}

	h.deps.publish(result.Events)
	return result, nil
}
