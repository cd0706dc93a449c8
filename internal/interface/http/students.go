package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/sagenius/agency-crm/internal/application/command"
	"github.com/sagenius/agency-crm/internal/application/query"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListStudents handles GET /api/v1/students?status=&country=&q=
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	q := query.ListStudentsQuery{
		AgencyID: user.AgencyID,
		Status:   student.ApplicationStatus(r.URL.Query().Get("status")),
		Country:  student.Country(r.URL.Query().Get("country")),
		Search:   r.URL.Query().Get("q"),
	}

	result, err := s.deps.Queries.Students.List(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result)})
}

// handleCreateStudent handles POST /api/v1/students
func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if !bind(w, r, &req) {
		return
	}

	result, err := s.deps.Commands.CreateStudent.Handle(r.Context(), command.CreateStudentCommand{
		User:          userFrom(r),
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		TargetCountry: student.Country(req.TargetCountry),
		Notes:         req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result.Student)
}

// handleGetStudent handles GET /api/v1/students/{id}
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Queries.Students.Get(r.Context(), studentQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleUpdateStudent handles PUT /api/v1/students/{id}
func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req updateStudentRequest
	if !bind(w, r, &req) {
		return
	}

	cmd := command.UpdateStudentProfileCommand{
		User:      userFrom(r),
		StudentID: r.PathValue("id"),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Notes:     req.Notes,
	}
	if req.TargetCountry != nil {
		c := student.Country(*req.TargetCountry)
		cmd.TargetCountry = &c
	}

	result, err := s.deps.Commands.UpdateStudent.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"student":        result.Student,
		"countryChanged": result.CountryChanged,
	})
}

// handleDeleteStudent handles DELETE /api/v1/students/{id}
func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Commands.DeleteStudent.Handle(r.Context(), command.DeleteStudentCommand{
		User:      userFrom(r),
		StudentID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"id": result.StudentID, "name": result.Name})
}

// handleTransitionStatus handles POST /api/v1/students/{id}/status
func (s *Server) handleTransitionStatus(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !bind(w, r, &req) {
		return
	}
	to, err := student.ParseStatus(req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.Commands.TransitionStatus.Handle(r.Context(), command.TransitionStatusCommand{
		User:      userFrom(r),
		StudentID: r.PathValue("id"),
		To:        to,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"transition": result.Transition,
		"student":    result.Student,
	})
}

// handleGetProgress handles GET /api/v1/students/{id}/progress
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Queries.Students.Progress(r.Context(), studentQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetDocuments handles GET /api/v1/students/{id}/documents
func (s *Server) handleGetDocuments(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Queries.Students.Documents(r.Context(), studentQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleSetDocumentStatus handles PUT /api/v1/students/{id}/documents
func (s *Server) handleSetDocumentStatus(w http.ResponseWriter, r *http.Request) {
	var req documentStatusRequest
	if !bind(w, r, &req) {
		return
	}

	result, err := s.deps.Commands.Documents.SetStatus(r.Context(), command.SetDocumentStatusCommand{
		User:      userFrom(r),
		StudentID: r.PathValue("id"),
		Document:  req.Document,
		Status:    student.DocumentStatus(req.Status),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, documentResponse(result))
}

// handleAttachDocument handles POST /api/v1/students/{id}/documents/file
// (multipart form: "document" field and "file" part).
func (s *Server) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeJSONError(w, http.StatusBadRequest, codeValidation, "Request must be multipart/form-data with a file part", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, codeValidation, "file part is required", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, codeValidation, "file is too large", nil)
			return
		}
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.Commands.Documents.Attach(r.Context(), command.AttachDocumentFileCommand{
		User:      userFrom(r),
		StudentID: r.PathValue("id"),
		Document:  r.FormValue("document"),
		Filename:  header.Filename,
		Data:      data,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, documentResponse(result))
}

func documentResponse(result *command.DocumentResult) map[string]interface{} {
	out := map[string]interface{}{
		"student":  result.Student,
		"progress": result.Progress,
	}
	if result.File != nil {
		out["file"] = result.File
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// NOC, DEPENDENCY & COMMISSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleUpdateNoc handles PUT /api/v1/students/{id}/noc
func (s *Server) handleUpdateNoc(w http.ResponseWriter, r *http.Request) {
	var req nocRequest
	if !bind(w, r, &req) {
		return
	}

	result, err := s.deps.Commands.Noc.Handle(r.Context(), command.UpdateNocCommand{
		User:      userFrom(r),
		StudentID: r.PathValue("id"),
		Status:    student.NocStatus(req.Status),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"student": result.Student,
		"from":    result.From,
	})
}

// handleAddDependency handles POST /api/v1/students/{id}/dependencies
func (s *Server) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	var req dependencyRequest
	if !bind(w, r, &req) {
		return
	}
	s.changeDependency(w, r, req.BlockerID, true)
}

// handleRemoveDependency handles DELETE /api/v1/students/{id}/dependencies/{blockerId}
func (s *Server) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	s.changeDependency(w, r, r.PathValue("blockerId"), false)
}

func (s *Server) changeDependency(w http.ResponseWriter, r *http.Request, blockerID string, add bool) {
	cmd := command.ChangeDependencyCommand{
		User:      userFrom(r),
		TargetID:  r.PathValue("id"),
		BlockerID: blockerID,
	}

	var (
		result *command.ChangeDependencyResult
		err    error
	)
	if add {
		result, err = s.deps.Commands.Dependencies.Add(r.Context(), cmd)
	} else {
		result, err = s.deps.Commands.Dependencies.Remove(r.Context(), cmd)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"student": result.Student,
		"changed": result.Changed,
	})
}

// handleClaimCommission handles POST /api/v1/students/{id}/commission
func (s *Server) handleClaimCommission(w http.ResponseWriter, r *http.Request) {
	var req commissionRequest
	if !bind(w, r, &req) {
		return
	}

	result, err := s.deps.Commands.ClaimCommission.Handle(r.Context(), command.ClaimCommissionCommand{
		User:      userFrom(r),
		StudentID: r.PathValue("id"),
		PartnerID: req.PartnerID,
		Amount:    req.Amount,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result.Claim)
}

// handleSendStatusUpdate handles POST /api/v1/students/{id}/whatsapp
func (s *Server) handleSendStatusUpdate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Commands.StatusUpdate == nil {
		s.writeError(w, r, shared.NewDomainError("notification", "Send", shared.ErrServiceUnavailable, "no WhatsApp channel is configured"))
		return
	}

	result, err := s.deps.Commands.StatusUpdate.Handle(r.Context(), command.SendStatusUpdateCommand{
		User:      userFrom(r),
		StudentID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{
		"text":      result.Text,
		"link":      result.Link,
		"messageId": result.MessageID,
	})
}

func studentQuery(r *http.Request) query.StudentQuery {
	return query.StudentQuery{
		AgencyID:  userFrom(r).AgencyID,
		StudentID: r.PathValue("id"),
	}
}
