// Package main is the entry point of the background worker.
//
// The worker runs only the scheduler against the configured store:
//   - due-soon task reminders on a fixed interval
//   - the morning digest of today's open tasks on a cron expression
//
// Run it next to cmd/api with SCHEDULER_ENABLED=false on the API so reminders
// are sent once. It exposes /metrics, /health, /jobs and /features on METRICS_ADDR;
// POST /jobs/{name}/run triggers a job by hand.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sagenius/agency-crm/config"
	"github.com/sagenius/agency-crm/internal/bootstrap"
	"github.com/sagenius/agency-crm/internal/infrastructure/metrics"
	"github.com/sagenius/agency-crm/internal/infrastructure/notification"
	"github.com/sagenius/agency-crm/internal/infrastructure/scheduler"
	"github.com/sagenius/agency-crm/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. LOAD CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING & METRICS
	// ─────────────────────────────────────────────────────────────────────────
	log := bootstrap.NewLogger(cfg).With("process", "worker")
	log.Info("starting agency CRM worker",
		"timezone", cfg.App.Timezone,
		"storage", string(cfg.Storage.Backend),
		"agencies", cfg.Pipeline.AgencyIDs,
	)

	m := metrics.New(cfg.Observability.MetricsPrefix)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS (delivery events feed the metrics only)
	// ─────────────────────────────────────────────────────────────────────────
	bus := bootstrap.NewEventBus(cfg, log)
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()
	if err := bus.SubscribeAll(m.ObserveEvent); err != nil {
		return fmt.Errorf("subscribe metrics: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. NOTIFICATION CHANNELS & JOBS
	// ─────────────────────────────────────────────────────────────────────────
	var observer notification.DeliveryObserver = m
	dispatcher := bootstrap.NewDispatcher(cfg, log, bus, observer)

	sched, err := bootstrap.NewScheduler(cfg, stores, dispatcher, bus, m, log)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. OPS ENDPOINTS
	// ─────────────────────────────────────────────────────────────────────────
	opsServer := &http.Server{
		Addr:              cfg.Observability.MetricsAddr,
		Handler:           opsMux(m, stores.Health, sched, cfg.Features),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. RUN UNTIL SIGNAL
	// ─────────────────────────────────────────────────────────────────────────
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.Info("agency CRM worker is running", "jobs", len(sched.ListJobs()), "ops_addr", opsServer.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := opsServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Warn("scheduler stop failed", "error", err)
		}
		return opsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// opsMux serves /metrics, /health, the job list, manual job triggers and the
// resolved feature flags.
func opsMux(m *metrics.Metrics, health handlers.HealthChecker, sched *scheduler.Scheduler, flags *config.FeatureFlags) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := health.Check(r.Context())
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	})
	mux.HandleFunc("GET /jobs", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, sched.ListJobs())
	})
	mux.HandleFunc("GET /jobs/history", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, sched.History(50))
	})
	mux.HandleFunc("GET /features", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, flags.Snapshot())
	})
	mux.HandleFunc("POST /jobs/{name}/run", func(w http.ResponseWriter, r *http.Request) {
		result, err := sched.RunNow(r.Context(), r.PathValue("name"))
		switch {
		case errors.Is(err, scheduler.ErrJobNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, scheduler.ErrJobBusy):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]any{"result": result, "error": err.Error()})
		default:
			writeJSON(w, http.StatusOK, result)
		}
	})
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("ops response encode failed", "error", err)
	}
}
