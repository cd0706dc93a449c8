package http

import (
	"net/http"
	"strconv"

	"github.com/sagenius/agency-crm/internal/application/command"
	"github.com/sagenius/agency-crm/internal/application/query"
	"github.com/sagenius/agency-crm/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// PIPELINE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handlePipeline handles GET /api/v1/pipeline
func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Queries.Pipeline.Board(r.Context(), tenantQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleNocTracker handles GET /api/v1/noc
func (s *Server) handleNocTracker(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Queries.Pipeline.NocTracker(r.Context(), tenantQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result)})
}

// ══════════════════════════════════════════════════════════════════════════════
// PLANNER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleTasksForDay handles GET /api/v1/tasks?day=Monday
func (s *Server) handleTasksForDay(w http.ResponseWriter, r *http.Request) {
	q := query.TasksForDayQuery{AgencyID: userFrom(r).AgencyID}
	if raw := r.URL.Query().Get("day"); raw != "" {
		day, err := task.ParseDay(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		q.Day = day
	}

	result, err := s.deps.Queries.Tasks.ForDay(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleWeekPlanner handles GET /api/v1/tasks/week
func (s *Server) handleWeekPlanner(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Queries.Tasks.Week(r.Context(), tenantQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleCreateTask handles POST /api/v1/tasks
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !bind(w, r, &req) {
		return
	}
	var day task.Day
	if req.Day != "" {
		d, err := task.ParseDay(req.Day)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		day = d
	}

	result, err := s.deps.Commands.Tasks.Create(r.Context(), command.CreateTaskCommand{
		User:      userFrom(r),
		Text:      req.Text,
		Priority:  task.Priority(req.Priority),
		Day:       day,
		DueTime:   task.DueTime(req.DueTime),
		StudentID: req.StudentID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result.Task)
}

// handleToggleTask handles POST /api/v1/tasks/{id}/toggle
func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Commands.Tasks.Toggle(r.Context(), taskCommand(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result.Task)
}

// handleDeleteTask handles DELETE /api/v1/tasks/{id}
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Commands.Tasks.Delete(r.Context(), taskCommand(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result.Task)
}

// ══════════════════════════════════════════════════════════════════════════════
// AGENCY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListPartners handles GET /api/v1/partners
func (s *Server) handleListPartners(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Queries.Agency.Partners(r.Context(), tenantQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result)})
}

// handleListClaims handles GET /api/v1/claims
func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Queries.Agency.Claims(r.Context(), tenantQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result)})
}

// handleListInvoices handles GET /api/v1/invoices
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Queries.Agency.Invoices(r.Context(), tenantQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result)})
}

// handleListExpenses handles GET /api/v1/expenses
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Queries.Agency.Expenses(r.Context(), tenantQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result)})
}

// handleListActivity handles GET /api/v1/activity?limit=50
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	q := query.ActivityQuery{TenantQuery: tenantQuery(r)}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSONError(w, http.StatusBadRequest, codeValidation, "limit must be a non-negative integer", nil)
			return
		}
		q.Limit = limit
	}

	result, err := s.deps.Queries.Agency.Activity(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result)})
}

// handleGetSettings handles GET /api/v1/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Queries.Agency.Settings(r.Context(), tenantQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleUpdateSettings handles PUT /api/v1/settings (Owner only)
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !bind(w, r, &req) {
		return
	}

	result, err := s.deps.Commands.UpdateSettings.Handle(r.Context(), command.UpdateSettingsCommand{
		User:     userFrom(r),
		Settings: req.toSettings(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func tenantQuery(r *http.Request) query.TenantQuery {
	return query.TenantQuery{AgencyID: userFrom(r).AgencyID}
}

func taskCommand(r *http.Request) command.TaskIDCommand {
	return command.TaskIDCommand{User: userFrom(r), TaskID: r.PathValue("id")}
}
