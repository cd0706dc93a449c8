package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
	"github.com/sagenius/agency-crm/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success bool          `json:"success"`
	Data    interface{}   `json:"data,omitempty"`
	Error   *APIError     `json:"error,omitempty"`
	Meta    *ResponseMeta `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
}

// Error codes.
const (
	codeValidation         = "VALIDATION_ERROR"
	codeNotFound           = "NOT_FOUND"
	codeBlocked            = "BLOCKED_TRANSITION"
	codeConcurrent         = "CONCURRENT_MODIFICATION"
	codeInvalidState       = "INVALID_STATE"
	codeConflict           = "CONFLICT"
	codeUnauthorized       = "UNAUTHORIZED"
	codeForbidden          = "FORBIDDEN"
	codeServiceUnavailable = "SERVICE_UNAVAILABLE"
	codeInternal           = "INTERNAL_ERROR"
)

// writeJSON writes a success envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSONWithMeta(w, r, status, data, nil)
}

// writeJSONWithMeta writes a success envelope with custom metadata.
func writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data interface{}, meta *ResponseMeta) {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = "v1"
	meta.RequestID = getRequestID(r.Context())

	writeEnvelope(w, status, JSONResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	})
}

// writeJSONError writes an error envelope.
func writeJSONError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	writeEnvelope(w, status, JSONResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: &ResponseMeta{Timestamp: time.Now().UTC()},
	})
}

// writeAPIError is the handlers.ErrorWriter used by the shared middleware.
func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSONError(w, status, code, message, nil)
}

func writeEnvelope(w http.ResponseWriter, status int, response JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// blockedDetails is returned with BLOCKED_TRANSITION so the UI can name the blocker.
type blockedDetails struct {
	StudentID   string `json:"studentId"`
	BlockerID   string `json:"blockerId"`
	BlockerName string `json:"blockerName"`
}

// writeError maps an application error to a status code and error envelope.
// 5xx errors are logged with the request logger; their message is not exposed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, details := classify(err)

	message := publicMessage(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("code", code),
		)
		if status == http.StatusInternalServerError {
			message = "An unexpected error occurred"
		}
	}

	writeJSONError(w, status, code, message, details)
}

// classify picks the status and code for an error. Order matters: a blocked
// transition also matches ErrStateTransition.
func classify(err error) (int, string, interface{}) {
	var blocked *student.BlockedTransitionError
	if errors.As(err, &blocked) {
		return http.StatusConflict, codeBlocked, blockedDetails{
			StudentID:   blocked.StudentID,
			BlockerID:   blocked.BlockerID,
			BlockerName: blocked.BlockerName,
		}
	}

	switch shared.KindOf(err) {
	case shared.KindConcurrent:
		return http.StatusConflict, codeConcurrent, nil
	case shared.KindNotFound:
		return http.StatusNotFound, codeNotFound, nil
	case shared.KindUnauthorized:
		return http.StatusUnauthorized, codeUnauthorized, nil
	case shared.KindForbidden:
		return http.StatusForbidden, codeForbidden, nil
	case shared.KindInvalidState:
		return http.StatusConflict, codeInvalidState, nil
	case shared.KindConflict:
		return http.StatusConflict, codeConflict, nil
	case shared.KindValidation:
		return http.StatusBadRequest, codeValidation, nil
	case shared.KindUnavailable:
		return http.StatusServiceUnavailable, codeServiceUnavailable, nil
	default:
		return http.StatusInternalServerError, codeInternal, nil
	}
}

// publicMessage returns the innermost domain message, falling back to the error text.
func publicMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}
