package command

import (
	"context"
	"fmt"

	"github.com/sagenius/agency-crm/internal/application/feature"
	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// DocumentStore persists uploaded attachments.
type DocumentStore interface {
	StoreDocument(ctx context.Context, studentID, filename string, data []byte, uploadedBy string) (student.StoredFile, error)
	Remove(ctx context.Context, key string) error
}

// SetDocumentStatusCommand sets one checklist entry.
type SetDocumentStatusCommand struct {
	User      agency.User
	StudentID string
	Document  string
	Status    student.DocumentStatus
}

// Validate validates the command.
func (c SetDocumentStatusCommand) Validate() error {
	if err := authorizeWriter("set_document_status", c.User); err != nil {
		return err
	}
	if c.StudentID == "" {
		return invalidInput("set_document_status", "student_id is required")
	}
	if c.Document == "" {
		return invalidInput("set_document_status", "document name is required")
	}
	if !c.Status.IsValid() {
		return student.ErrInvalidDocumentStatus
	}
	return nil
}

// DocumentResult contains the student and the recomputed progress.
type DocumentResult struct {
	Student  *student.Student
	Progress int
	File     *student.StoredFile
	Events   []shared.Event
}

// DocumentHandler handles document status changes and file attachments.
type DocumentHandler struct {
	deps  Deps
	files DocumentStore
}

// NewDocumentHandler creates a new DocumentHandler. files may be nil when
// attachments are disabled.
func NewDocumentHandler(deps Deps, files DocumentStore) *DocumentHandler {
	return &DocumentHandler{deps: deps.withDefaults(), files: files}
}

// SetStatus executes SetDocumentStatusCommand. The document must belong to
// the required set of the student's country.
func (h *DocumentHandler) SetStatus(ctx context.Context, cmd SetDocumentStatusCommand) (*DocumentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("set_document_status: validation failed: %w", err)
	}

	result, err := h.update(ctx, cmd.User, cmd.StudentID, func(s *student.Student) (string, error) {
		if err := s.SetDocumentStatus(h.deps.Catalog, cmd.Document, cmd.Status); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %s marked %s", s.Name, cmd.Document, cmd.Status), nil
	})
	if err != nil {
		return nil, fmt.Errorf("set_document_status: %w", err)
	}

	result.Events = []shared.Event{student.NewDocumentUpdatedEvent(
		cmd.User.AgencyID.String(), cmd.StudentID, cmd.Document, cmd.Status, result.Progress, "")}
	h.deps.publish(result.Events)
	return result, nil
}

// AttachDocumentFileCommand uploads a file for one checklist entry.
type AttachDocumentFileCommand struct {
	User      agency.User
	StudentID string
	Document  string
	Filename  string
	Data      []byte
}

// Validate validates the command.
func (c AttachDocumentFileCommand) Validate() error {
	if err := authorizeWriter("attach_document", c.User); err != nil {
		return err
	}
	if c.StudentID == "" {
		return invalidInput("attach_document", "student_id is required")
	}
	if c.Document == "" {
		return invalidInput("attach_document", "document name is required")
	}
	if len(c.Data) == 0 {
		return invalidInput("attach_document", "file is empty")
	}
	return nil
}

// Attach executes AttachDocumentFileCommand: the file is stored first, then
// its descriptor is recorded and the document is marked Uploaded. If the
// descriptor cannot be saved the stored object is removed. A file it replaces
// is removed after the save.
func (h *DocumentHandler) Attach(ctx context.Context, cmd AttachDocumentFileCommand) (*DocumentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("attach_document: validation failed: %w", err)
	}
	if h.files == nil {
		return nil, fmt.Errorf("attach_document: %w",
			shared.NewDomainError("attach_document", "Store", shared.ErrServiceUnavailable, "file storage is not configured"))
	}

	if err := h.checkRequired(ctx, cmd.User.AgencyID, cmd.StudentID, cmd.Document); err != nil {
		return nil, fmt.Errorf("attach_document: %w", err)
	}

	file, err := h.files.StoreDocument(ctx, cmd.StudentID, cmd.Filename, cmd.Data, cmd.User.DisplayName())
	if err != nil {
		return nil, fmt.Errorf("attach_document: store file: %w", err)
	}

	var replaced *student.StoredFile
	result, err := h.update(ctx, cmd.User, cmd.StudentID, func(s *student.Student) (string, error) {
		replaced = nil
		if prev, ok := s.DocumentFiles[cmd.Document]; ok && prev.Key != "" && prev.Key != file.Key {
			replaced = &prev
		}
		if err := s.AttachFile(h.deps.Catalog, cmd.Document, file); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: uploaded %s (%s)", s.Name, cmd.Document, file.Filename), nil
	})
	if err != nil {
		if rmErr := h.files.Remove(ctx, file.Key); rmErr != nil {
			h.deps.Logger.Warn("orphaned upload",
				"agency_id", cmd.User.AgencyID.String(),
				"key", file.Key,
				"error", rmErr,
			)
		}
		return nil, fmt.Errorf("attach_document: %w", err)
	}

	if replaced != nil {
		if rmErr := h.files.Remove(ctx, replaced.Key); rmErr != nil {
			h.deps.Logger.Warn("replaced upload not removed",
				"agency_id", cmd.User.AgencyID.String(),
				"key", replaced.Key,
				"error", rmErr,
			)
		}
	}

	result.File = &file
	result.Events = []shared.Event{student.NewDocumentUpdatedEvent(
		cmd.User.AgencyID.String(), cmd.StudentID, cmd.Document, student.DocumentUploaded, result.Progress, file.Key)}
	h.deps.publish(result.Events)
	return result, nil
}

// checkRequired rejects an upload before the file is stored.
func (h *DocumentHandler) checkRequired(ctx context.Context, agencyID shared.AgencyID, studentID, document string) error {
	roster, err := h.deps.Students.Load(ctx, agencyID)
	if err != nil {
		return fmt.Errorf("load students: %w", err)
	}
	s, err := roster.Get(studentID)
	if err != nil {
		return err
	}
	_, ok, err := h.deps.Catalog.Lookup(s.TargetCountry, document)
	if err != nil {
		return err
	}
	if !ok {
		return student.ErrDocumentNotRequired
	}
	return nil
}

// update runs mutate on one student under the tenant lock and recomputes progress.
func (h *DocumentHandler) update(ctx context.Context, user agency.User, studentID string, mutate func(s *student.Student) (string, error)) (*DocumentResult, error) {
	agencyID := user.AgencyID
	policy := student.ProgressPolicy{ExcludeWaived: h.deps.enabled(feature.ExcludeWaivedDocuments, agencyID)}

	var result *DocumentResult
	err := h.deps.inTenant(ctx, agencyID, func(ctx context.Context) error {
		roster, err := h.deps.Students.Load(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("load students: %w", err)
		}
		s, err := roster.Get(studentID)
		if err != nil {
			return err
		}

		details, err := mutate(s)
		if err != nil {
			return err
		}
		now := h.deps.Clock()
		s.UpdatedAt = now
		if err := h.deps.Students.Store(ctx, agencyID, roster); err != nil {
			return fmt.Errorf("store students: %w", err)
		}

		progress, err := student.Progress(s, h.deps.Catalog, policy)
		if err != nil {
			return err
		}

		h.deps.record(ctx, agencyID, agency.NewActivityEntry(
			agency.ActionDocument, "Student", details, user.DisplayName(), now))

		result = &DocumentResult{Student: s, Progress: progress}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
