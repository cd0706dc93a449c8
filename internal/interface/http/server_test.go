package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sagenius/agency-crm/internal/application/command"
	"github.com/sagenius/agency-crm/internal/application/feature"
	"github.com/sagenius/agency-crm/internal/application/query"
	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
	"github.com/sagenius/agency-crm/internal/infrastructure/messaging"
	"github.com/sagenius/agency-crm/internal/infrastructure/metrics"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/collection"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/repository"
	"github.com/sagenius/agency-crm/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	demo       = shared.AgencyID("demo")
	testSecret = "test-secret-0123456789"
)

// Wednesday.
var now = time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)

var (
	owner      = agency.User{ID: "u1", Name: "Asha", Role: agency.RoleOwner, AgencyID: demo}
	counsellor = agency.User{ID: "u2", Name: "Hari", Role: agency.RoleCounsellor, AgencyID: demo}
	viewer     = agency.User{ID: "u3", Name: "Mina", Role: agency.RoleViewer, AgencyID: demo}
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
	Meta *ResponseMeta `json:"meta"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	auth    *Authenticator
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := collection.NewMemoryStore()

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = slogger
	bus := messaging.NewInMemoryEventBus(busCfg)
	t.Cleanup(func() { _ = bus.Close() })

	clock := shared.FixedClock(now)
	students := repository.NewStudentRepository(store)
	tasks := repository.NewTaskRepository(store)
	agencies := repository.NewAgencyRepository(store)

	cmdDeps := command.Deps{
		Students:  students,
		Tasks:     tasks,
		Agency:    agencies,
		Locker:    collection.NewLocker(),
		Publisher: bus,
		Features:  feature.Defaults(),
		Clock:     clock,
		Logger:    slogger,
	}
	queryDeps := query.Deps{
		Students: students,
		Tasks:    tasks,
		Agency:   agencies,
		Features: feature.Defaults(),
		Clock:    clock,
	}

	m := metrics.New(metrics.DefaultPrefix)
	auth, err := NewAuthenticator(testSecret, WithAuthClock(func() time.Time { return now }), WithFailureHook(m.ObserveAuthFailure))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0

	srv, err := NewServer(cfg, Dependencies{
		Commands: NewCommands(cmdDeps, nil, nil),
		Queries:  NewQueries(queryDeps),
		Auth:     auth,
		Metrics:  m,
		Logger:   logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError}),
	})
	require.NoError(t, err)

	return &testServer{t: t, handler: srv.Handler(), auth: auth, metrics: m}
}

func (ts *testServer) token(user agency.User) string {
	ts.t.Helper()
	token, err := ts.auth.Issue(user)
	require.NoError(ts.t, err)
	return token
}

func (ts *testServer) do(method, path string, user *agency.User, body interface{}) (*httptest.ResponseRecorder, envelope) {
	ts.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+ts.token(*user))
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (ts *testServer) createStudent(user agency.User, name, country string) student.Student {
	ts.t.Helper()
	rec, env := ts.do(http.MethodPost, "/api/v1/students", &user, map[string]string{
		"name":          name,
		"targetCountry": country,
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())

	var s student.Student
	require.NoError(ts.t, json.Unmarshal(env.Data, &s))
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH
// ══════════════════════════════════════════════════════════════════════════════

func TestAuthenticator_RoundTrip(t *testing.T) {
	auth, err := NewAuthenticator(testSecret, WithAuthClock(func() time.Time { return now }))
	require.NoError(t, err)

	token, err := auth.Issue(counsellor)
	require.NoError(t, err)

	user, err := auth.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, counsellor, user)
}

func TestAuthenticator_RejectsExpiredAndForeignTokens(t *testing.T) {
	issuedAt := now
	issuer, err := NewAuthenticator(testSecret, WithTokenTTL(time.Hour), WithAuthClock(func() time.Time { return issuedAt }))
	require.NoError(t, err)
	token, err := issuer.Issue(counsellor)
	require.NoError(t, err)

	later, err := NewAuthenticator(testSecret, WithAuthClock(func() time.Time { return issuedAt.Add(2 * time.Hour) }))
	require.NoError(t, err)
	_, err = later.Verify(token)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))

	other, err := NewAuthenticator("another-secret-9876543210", WithAuthClock(func() time.Time { return issuedAt }))
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestAuthenticator_ShortSecret(t *testing.T) {
	_, err := NewAuthenticator("short")
	assert.Error(t, err)
}

func TestServer_RequiresToken(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(http.MethodGet, "/api/v1/students", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, codeUnauthorized, env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/students", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_CreateAndListStudents(t *testing.T) {
	ts := newTestServer(t)

	ram := ts.createStudent(counsellor, "Ram Karki", "Australia")
	assert.NotEmpty(t, ram.ID)
	assert.Equal(t, student.StatusLead, ram.Status)
	ts.createStudent(counsellor, "Sita Sharma", "Japan")

	rec, env := ts.do(http.MethodGet, "/api/v1/students", &viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 2, env.Meta.TotalCount)
	assert.NotEmpty(t, env.Meta.RequestID)

	rec, env = ts.do(http.MethodGet, "/api/v1/students?country=Japan", &viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.Meta.TotalCount)

	rec, _ = ts.do(http.MethodGet, "/api/v1/students/"+ram.ID, &viewer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store, no-cache, must-revalidate, max-age=0", rec.Header().Get("Cache-Control"))
}

func TestServer_ValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(http.MethodPost, "/api/v1/students", &counsellor, map[string]string{
		"name":          "  ",
		"targetCountry": "Atlantis",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, codeValidation, env.Error.Code)
	assert.Contains(t, env.Error.Details, "name")
	assert.Contains(t, env.Error.Details, "targetCountry")

	rec, env = ts.do(http.MethodPost, "/api/v1/students", &counsellor, map[string]string{
		"name":     "Ram",
		"nickname": "R",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Message, "unknown field")
}

func TestServer_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(http.MethodGet, "/api/v1/students/missing", &viewer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, codeNotFound, env.Error.Code)
}

func TestServer_ViewerCannotWrite(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(http.MethodPost, "/api/v1/students", &viewer, map[string]string{"name": "Ram Karki"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, codeForbidden, env.Error.Code)
}

func TestServer_BlockedTransition(t *testing.T) {
	ts := newTestServer(t)
	ram := ts.createStudent(counsellor, "Ram Karki", "Australia")
	sita := ts.createStudent(counsellor, "Sita Sharma", "Australia")

	rec, _ := ts.do(http.MethodPost, "/api/v1/students/"+sita.ID+"/dependencies", &counsellor, map[string]string{
		"blockerId": ram.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := ts.do(http.MethodPost, "/api/v1/students/"+sita.ID+"/status", &counsellor, map[string]string{
		"status": "Applied",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, codeBlocked, env.Error.Code)
	assert.Equal(t, "Ram Karki", env.Error.Details["blockerName"])
	assert.Equal(t, ram.ID, env.Error.Details["blockerId"])

	// Once the dependency is gone the transition goes through.
	rec, _ = ts.do(http.MethodDelete, "/api/v1/students/"+sita.ID+"/dependencies/"+ram.ID, &counsellor, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(http.MethodPost, "/api/v1/students/"+sita.ID+"/status", &counsellor, map[string]string{
		"status": "Applied",
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestServer_DependencyCycleRejected(t *testing.T) {
	ts := newTestServer(t)
	ram := ts.createStudent(counsellor, "Ram Karki", "Australia")
	sita := ts.createStudent(counsellor, "Sita Sharma", "Australia")

	rec, env := ts.do(http.MethodPost, "/api/v1/students/"+ram.ID+"/dependencies", &counsellor, map[string]string{
		"blockerId": ram.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "false", string(extract(t, env.Data, "changed")))

	rec, _ = ts.do(http.MethodPost, "/api/v1/students/"+sita.ID+"/dependencies", &counsellor, map[string]string{
		"blockerId": ram.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = ts.do(http.MethodPost, "/api/v1/students/"+ram.ID+"/dependencies", &counsellor, map[string]string{
		"blockerId": sita.ID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, codeValidation, env.Error.Code)

	rec, _ = ts.do(http.MethodPost, "/api/v1/students/"+ram.ID+"/dependencies", &counsellor, map[string]string{
		"blockerId": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func extract(t *testing.T, raw json.RawMessage, key string) json.RawMessage {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	return fields[key]
}

func TestServer_PipelineBoard(t *testing.T) {
	ts := newTestServer(t)
	ts.createStudent(counsellor, "Ram Karki", "Australia")

	rec, env := ts.do(http.MethodGet, "/api/v1/pipeline", &viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var board query.BoardDTO
	require.NoError(t, json.Unmarshal(env.Data, &board))
	require.NotEmpty(t, board.Columns)
	assert.Equal(t, student.StatusLead, board.Columns[0].Status)
}

func TestServer_SendStatusUpdateWithoutChannel(t *testing.T) {
	ts := newTestServer(t)
	ram := ts.createStudent(counsellor, "Ram Karki", "Australia")

	rec, env := ts.do(http.MethodPost, "/api/v1/students/"+ram.ID+"/whatsapp", &counsellor, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, codeServiceUnavailable, env.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// PLANNER & SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_TaskLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(http.MethodPost, "/api/v1/tasks", &counsellor, map[string]string{
		"text":     "Call the embassy",
		"priority": "High",
		"day":      "monday",
		"dueTime":  "10:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID  string `json:"id"`
		Day string `json:"day"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "Monday", created.Day)

	rec, env = ts.do(http.MethodGet, "/api/v1/tasks?day=Monday", &viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var day query.DayDTO
	require.NoError(t, json.Unmarshal(env.Data, &day))
	require.Len(t, day.Tasks, 1)
	assert.Equal(t, 1, day.Open)

	rec, _ = ts.do(http.MethodPost, "/api/v1/tasks/"+created.ID+"/toggle", &counsellor, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(http.MethodDelete, "/api/v1/tasks/"+created.ID, &counsellor, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(http.MethodGet, "/api/v1/tasks?day=Someday", &viewer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CreateTaskDefaults(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(http.MethodPost, "/api/v1/tasks", &counsellor, map[string]string{
		"text": "Call Ram",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Priority string `json:"priority"`
		DueTime  string `json:"dueTime"`
		Day      string `json:"day"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "Medium", created.Priority)
	assert.Equal(t, "09:00", created.DueTime)
	assert.Equal(t, "Wednesday", created.Day)

	rec, _ = ts.do(http.MethodPost, "/api/v1/tasks", &counsellor, map[string]string{
		"text":     "Call Sita",
		"priority": "Urgent",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_TransitionAcceptsCompactStatus(t *testing.T) {
	ts := newTestServer(t)
	ram := ts.createStudent(counsellor, "Ram Karki", "Australia")

	for _, raw := range []string{"OfferReceived", "offer received"} {
		rec, env := ts.do(http.MethodPost, "/api/v1/students/"+ram.ID+"/status", &counsellor, map[string]string{
			"status": raw,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body struct {
			Student student.Student `json:"student"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &body))
		assert.Equal(t, student.StatusOfferReceived, body.Student.Status, raw)
	}

	rec, _ := ts.do(http.MethodPost, "/api/v1/students/"+ram.ID+"/status", &counsellor, map[string]string{
		"status": "Enrolled",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SettingsAreOwnerOnly(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]interface{}{
		"agencyName":     "Everest Education",
		"currency":       "NPR",
		"defaultCountry": "Japan",
	}

	rec, _ := ts.do(http.MethodPut, "/api/v1/settings", &counsellor, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = ts.do(http.MethodPut, "/api/v1/settings", &owner, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := ts.do(http.MethodGet, "/api/v1/settings", &viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings agency.Settings
	require.NoError(t, json.Unmarshal(env.Data, &settings))
	assert.Equal(t, "Everest Education", settings.AgencyName)
	assert.Equal(t, student.CountryJapan, settings.DefaultCountry)
}

func TestServer_ActivityLimit(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(http.MethodGet, "/api/v1/activity?limit=-1", &viewer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(http.MethodGet, "/api/v1/activity?limit=5", &viewer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONAL ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	// Rejected tokens are counted too.
	ts.do(http.MethodGet, "/api/v1/students", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	ts.handler.ServeHTTP(mrec, req)
	require.Equal(t, http.StatusOK, mrec.Code)

	body := mrec.Body.String()
	assert.Contains(t, body, "agency_crm_http_requests_total")
	assert.Contains(t, body, `route="GET /health"`)
	assert.Contains(t, body, "agency_crm_auth_failures_total 1")
}

func TestServer_RequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "req-42", env.Meta.RequestID)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"blocked", &student.BlockedTransitionError{StudentID: "2", BlockerID: "1", BlockerName: "Ram"}, http.StatusConflict, codeBlocked},
		{"concurrent", shared.ErrConcurrentModification, http.StatusConflict, codeConcurrent},
		{"not found", student.ErrStudentNotFound, http.StatusNotFound, codeNotFound},
		{"forbidden", shared.ErrReadOnlyRole, http.StatusForbidden, codeForbidden},
		{"validation", shared.ErrInvalidRole, http.StatusBadRequest, codeValidation},
		{"unavailable", shared.ErrServiceUnavailable, http.StatusServiceUnavailable, codeServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, codeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _ := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
