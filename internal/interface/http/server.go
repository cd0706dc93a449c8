// Package http implements the REST API of the application pipeline service.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sagenius/agency-crm/internal/application/command"
	"github.com/sagenius/agency-crm/internal/application/query"
	"github.com/sagenius/agency-crm/internal/domain/notification"
	"github.com/sagenius/agency-crm/internal/infrastructure/metrics"
	"github.com/sagenius/agency-crm/internal/interface/http/handlers"
	"github.com/sagenius/agency-crm/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// MaxBodyBytes - maximum size of a request body, multipart uploads included.
	MaxBodyBytes int64

	// EnableCORS - enable CORS headers.
	EnableCORS bool

	// AllowedOrigins - allowed origins for CORS.
	AllowedOrigins []string

	// EnableMetrics - expose GET /metrics.
	EnableMetrics bool

	// RateLimitPerMinute - requests per minute per IP (0 = disabled).
	RateLimitPerMinute int

	// Version is reported by / and /health.
	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20, // 1 MB
		MaxBodyBytes:       10 << 20,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		EnableMetrics:      true,
		RateLimitPerMinute: 300,
		Version:            "v1",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Commands groups the write-side handlers.
type Commands struct {
	CreateStudent    *command.CreateStudentHandler
	UpdateStudent    *command.UpdateStudentProfileHandler
	DeleteStudent    *command.DeleteStudentHandler
	TransitionStatus *command.TransitionStatusHandler
	Dependencies     *command.DependencyHandler
	Documents        *command.DocumentHandler
	Noc              *command.UpdateNocHandler
	Tasks            *command.TaskHandler
	ClaimCommission  *command.ClaimCommissionHandler
	UpdateSettings   *command.UpdateSettingsHandler
	StatusUpdate     *command.SendStatusUpdateHandler
}

// NewCommands builds every command handler from shared dependencies.
// files and sender may be nil; the affected endpoints then answer 503.
func NewCommands(deps command.Deps, files command.DocumentStore, sender notification.Sender) Commands {
	c := Commands{
		CreateStudent:    command.NewCreateStudentHandler(deps),
		UpdateStudent:    command.NewUpdateStudentProfileHandler(deps),
		DeleteStudent:    command.NewDeleteStudentHandler(deps),
		TransitionStatus: command.NewTransitionStatusHandler(deps),
		Dependencies:     command.NewDependencyHandler(deps),
		Documents:        command.NewDocumentHandler(deps, files),
		Noc:              command.NewUpdateNocHandler(deps),
		Tasks:            command.NewTaskHandler(deps),
		ClaimCommission:  command.NewClaimCommissionHandler(deps),
		UpdateSettings:   command.NewUpdateSettingsHandler(deps),
	}
	if sender != nil {
		c.StatusUpdate = command.NewSendStatusUpdateHandler(deps, sender)
	}
	return c
}

// Queries groups the read-side handlers.
type Queries struct {
	Students *query.StudentQueryHandler
	Pipeline *query.PipelineHandler
	Tasks    *query.TaskQueryHandler
	Agency   *query.AgencyQueryHandler
}

// NewQueries builds every query handler from shared dependencies.
func NewQueries(deps query.Deps) Queries {
	return Queries{
		Students: query.NewStudentQueryHandler(deps),
		Pipeline: query.NewPipelineHandler(deps),
		Tasks:    query.NewTaskQueryHandler(deps),
		Agency:   query.NewAgencyQueryHandler(deps),
	}
}

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	Commands Commands
	Queries  Queries

	// Auth verifies bearer tokens on every /api route.
	Auth *Authenticator

	// Metrics is optional; nil disables request metrics and /metrics.
	Metrics *metrics.Metrics

	Logger        *logger.Logger
	HealthChecker handlers.HealthChecker
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	logger     *logger.Logger

	limiter *handlers.RateLimiter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) (*Server, error) {
	if deps.Auth == nil {
		return nil, errors.New("http: authenticator is required")
	}

	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	s.logger = s.logger.With(logger.Component("http"))

	if s.deps.HealthChecker == nil {
		s.deps.HealthChecker = handlers.NewHealthRegistry(config.Version)
	}
	if config.RateLimitPerMinute > 0 {
		s.limiter = handlers.NewRateLimiter(config.RateLimitPerMinute)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.buildMiddlewareChain(s.router),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s, nil
}

// Handler returns the fully wrapped handler (used by tests and embedding).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.public("GET /health", s.handleHealth)
	s.public("GET /healthz", s.handleHealth)
	s.public("GET /ready", s.handleReady)
	s.public("GET /live", s.handleLive)
	s.public("GET /{$}", s.handleRoot)

	if s.config.EnableMetrics && s.deps.Metrics != nil {
		s.router.Handle("GET /metrics", s.deps.Metrics.Handler())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Students
	// ─────────────────────────────────────────────────────────────────────────
	s.api("GET /api/v1/students", s.handleListStudents)
	s.api("POST /api/v1/students", s.handleCreateStudent)
	s.api("GET /api/v1/students/{id}", s.handleGetStudent)
	s.api("PUT /api/v1/students/{id}", s.handleUpdateStudent)
	s.api("DELETE /api/v1/students/{id}", s.handleDeleteStudent)
	s.api("POST /api/v1/students/{id}/status", s.handleTransitionStatus)
	s.api("GET /api/v1/students/{id}/progress", s.handleGetProgress)
	s.api("GET /api/v1/students/{id}/documents", s.handleGetDocuments)
	s.api("PUT /api/v1/students/{id}/documents", s.handleSetDocumentStatus)
	s.api("POST /api/v1/students/{id}/documents/file", s.handleAttachDocument)
	s.api("PUT /api/v1/students/{id}/noc", s.handleUpdateNoc)
	s.api("POST /api/v1/students/{id}/dependencies", s.handleAddDependency)
	s.api("DELETE /api/v1/students/{id}/dependencies/{blockerId}", s.handleRemoveDependency)
	s.api("POST /api/v1/students/{id}/commission", s.handleClaimCommission)
	s.api("POST /api/v1/students/{id}/whatsapp", s.handleSendStatusUpdate)

	// ─────────────────────────────────────────────────────────────────────────
	// Pipeline
	// ─────────────────────────────────────────────────────────────────────────
	s.api("GET /api/v1/pipeline", s.handlePipeline)
	s.api("GET /api/v1/noc", s.handleNocTracker)

	// ─────────────────────────────────────────────────────────────────────────
	// Planner
	// ─────────────────────────────────────────────────────────────────────────
	s.api("GET /api/v1/tasks", s.handleTasksForDay)
	s.api("GET /api/v1/tasks/week", s.handleWeekPlanner)
	s.api("POST /api/v1/tasks", s.handleCreateTask)
	s.api("POST /api/v1/tasks/{id}/toggle", s.handleToggleTask)
	s.api("DELETE /api/v1/tasks/{id}", s.handleDeleteTask)

	// ─────────────────────────────────────────────────────────────────────────
	// Agency
	// ─────────────────────────────────────────────────────────────────────────
	s.api("GET /api/v1/partners", s.handleListPartners)
	s.api("GET /api/v1/claims", s.handleListClaims)
	s.api("GET /api/v1/invoices", s.handleListInvoices)
	s.api("GET /api/v1/expenses", s.handleListExpenses)
	s.api("GET /api/v1/activity", s.handleListActivity)
	s.api("GET /api/v1/settings", s.handleGetSettings)
	s.api("PUT /api/v1/settings", s.handleUpdateSettings)
}

// public registers a route that needs no identity.
func (s *Server) public(pattern string, h http.HandlerFunc) {
	s.router.Handle(pattern, s.instrument(pattern, h))
}

// api registers a route behind bearer-token authentication.
func (s *Server) api(pattern string, h http.HandlerFunc) {
	s.router.Handle(pattern, s.instrument(pattern, s.requireIdentity(h)))
}

// instrument records request metrics under the route pattern.
func (s *Server) instrument(pattern string, next http.Handler) http.Handler {
	if s.deps.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.deps.Metrics.ObserveRequest(r.Method, pattern, rw.status, time.Since(start))
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// buildMiddlewareChain wraps the router. Order, outermost first: rate limit,
// CORS, panic recovery, request id, access log, headers, body limit.
func (s *Server) buildMiddlewareChain(router http.Handler) http.Handler {
	mw := make([]handlers.Middleware, 0, 7)
	if s.limiter != nil {
		mw = append(mw, s.limiter.Middleware(writeAPIError))
	}
	if s.config.EnableCORS {
		mw = append(mw, handlers.CORS(s.config.AllowedOrigins))
	}
	mw = append(mw,
		s.recoveryMiddleware,
		handlers.RequestID(s.attachRequestID),
		s.accessLog,
		handlers.SecureHeaders,
		handlers.BodyLimit(s.config.MaxBodyBytes, writeAPIError),
	)
	return handlers.Wrap(router, mw...)
}

// attachRequestID stores the id and a request-scoped logger in the context.
func (s *Server) attachRequestID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, contextKeyRequestID, id)
	return logger.WithContext(ctx, s.logger.WithRequestID(id))
}

// accessLog writes one line per request; 5xx answers are logged at Warn.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		fields := []logger.Field{
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rw.status),
			logger.Int64("duration_ms", time.Since(start).Milliseconds()),
			logger.String("ip", handlers.ClientIP(r)),
			logger.String(logger.RequestIDKey, getRequestID(r.Context())),
		}
		if rw.status >= http.StatusInternalServerError {
			s.logger.Warn("http request", fields...)
			return
		}
		s.logger.Debug("http request", fields...)
	})
}

// recoveryMiddleware turns a handler panic into a 500 envelope.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					logger.Any("panic", rec),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
					logger.String(logger.RequestIDKey, getRequestID(r.Context())),
				)
				writeAPIError(w, http.StatusInternalServerError, codeInternal, "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"name":    "StudyAbroad Genius API",
		"version": s.config.Version,
		"uptime":  s.Uptime().Round(time.Second).String(),
		"endpoints": map[string]string{
			"health":   "/health",
			"students": "/api/v1/students",
			"pipeline": "/api/v1/pipeline",
			"tasks":    "/api/v1/tasks",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER TYPES AND FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyUser      contextKey = "user"
)

// statusRecorder captures the status code for logs and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// getRequestID extracts the request ID from context.
func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}
