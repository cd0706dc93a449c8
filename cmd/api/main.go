// Package main is the entry point of the agency CRM API.
//
// The API process serves the REST surface, runs the workflow automation on
// the in-process event bus and, unless disabled, the background scheduler
// (due-soon reminders and the morning digest).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sagenius/agency-crm/config"
	"github.com/sagenius/agency-crm/internal/application/command"
	"github.com/sagenius/agency-crm/internal/application/eventhandler"
	"github.com/sagenius/agency-crm/internal/application/feature"
	"github.com/sagenius/agency-crm/internal/application/query"
	"github.com/sagenius/agency-crm/internal/bootstrap"
	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
	"github.com/sagenius/agency-crm/internal/infrastructure/metrics"
	"github.com/sagenius/agency-crm/internal/infrastructure/notification"
	httpserver "github.com/sagenius/agency-crm/internal/interface/http"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
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
	log := bootstrap.NewLogger(cfg)
	log.Info("starting agency CRM API",
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
		"storage", string(cfg.Storage.Backend),
		"files", string(cfg.Files.Backend),
	)

	var m *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		m = metrics.New(cfg.Observability.MetricsPrefix)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE (collection store, cache, repositories)
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	clock := shared.SystemClock(cfg.App.Location)
	catalog := student.DefaultCatalog()

	if cfg.Features.IsEnabled(feature.SeedDemoData) {
		demoID, err := shared.NewAgencyID(cfg.Pipeline.DemoAgencyID)
		if err != nil {
			return fmt.Errorf("DEMO_AGENCY_ID: %w", err)
		}
		seeded, err := bootstrap.SeedDemo(ctx, stores, catalog, demoID, clock())
		if err != nil {
			return err
		}
		if seeded {
			log.Info("demo data seeded", "agency_id", demoID.String())
		}
	}

	uploader, closeFiles, err := bootstrap.NewUploader(ctx, cfg, clock, log)
	if err != nil {
		return err
	}
	defer closeFiles()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	bus := bootstrap.NewEventBus(cfg, log)
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. NOTIFICATION CHANNELS
	// ─────────────────────────────────────────────────────────────────────────
	var observer notification.DeliveryObserver
	if m != nil {
		observer = m
	}
	dispatcher := bootstrap.NewDispatcher(cfg, log, bus, observer)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION LAYER (commands, queries)
	// ─────────────────────────────────────────────────────────────────────────
	cmdDeps := command.Deps{
		Students:  stores.Students,
		Tasks:     stores.Tasks,
		Agency:    stores.Agency,
		Locker:    stores.Locker,
		Publisher: bus,
		Catalog:   catalog,
		Features:  cfg.Features,
		Clock:     clock,
		Logger:    log.With("layer", "command"),
	}
	queryDeps := query.Deps{
		Students: stores.Students,
		Tasks:    stores.Tasks,
		Agency:   stores.Agency,
		Catalog:  catalog,
		Features: cfg.Features,
		Clock:    clock,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	onStatusChanged := eventhandler.NewOnStatusChangedHandler(
		stores.Tasks, stores.Agency, stores.Locker, bus, nil, cfg.Features, clock,
		log, eventhandler.DefaultStatusChangedConfig(),
	)
	onVisaGranted := eventhandler.NewOnVisaGrantedHandler(
		stores.Agency, dispatcher, cfg.Features,
		log, eventhandler.DefaultVisaGrantedConfig(),
	)
	if err := eventhandler.Register(bus, onStatusChanged, onVisaGranted); err != nil {
		return fmt.Errorf("register event handlers: %w", err)
	}
	if m != nil {
		if err := bus.SubscribeAll(m.ObserveEvent); err != nil {
			return fmt.Errorf("subscribe metrics: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	authOpts := []httpserver.AuthOption{
		httpserver.WithIssuer(cfg.Auth.Issuer),
		httpserver.WithTokenTTL(cfg.Auth.TokenTTL),
	}
	if m != nil {
		authOpts = append(authOpts, httpserver.WithFailureHook(m.ObserveAuthFailure))
	}
	auth, err := httpserver.NewAuthenticator(cfg.Auth.JWTSecret, authOpts...)
	if err != nil {
		return fmt.Errorf("create authenticator: %w", err)
	}

	srvCfg := httpserver.DefaultConfig()
	srvCfg.Host = cfg.HTTP.Host
	srvCfg.Port = cfg.HTTP.Port
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	srvCfg.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	srvCfg.EnableCORS = cfg.HTTP.EnableCORS
	srvCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	srvCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	srvCfg.EnableMetrics = m != nil
	srvCfg.Version = cfg.App.Version

	server, err := httpserver.NewServer(srvCfg, httpserver.Dependencies{
		Commands:      httpserver.NewCommands(cmdDeps, uploader, dispatcher),
		Queries:       httpserver.NewQueries(queryDeps),
		Auth:          auth,
		Metrics:       m,
		Logger:        bootstrap.NewHTTPLogger(cfg),
		HealthChecker: stores.Health,
	})
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	if cfg.IsDevelopment() {
		logDevToken(log, auth, cfg.Pipeline.DemoAgencyID)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	var jobObserver bootstrap.JobObserver
	if m != nil {
		jobObserver = m
	}
	sched, err := bootstrap.NewScheduler(cfg, stores, dispatcher, bus, jobObserver, log)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. RUN UNTIL SIGNAL
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start()
	})

	if cfg.Scheduler.Enabled {
		g.Go(func() error {
			if err := sched.Start(gctx); err != nil {
				return fmt.Errorf("scheduler: %w", err)
			}
			<-gctx.Done()
			return nil
		})
	} else {
		log.Info("scheduler disabled, background jobs run in cmd/worker")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		if sched.IsRunning() {
			if err := sched.Stop(); err != nil {
				log.Warn("scheduler stop failed", "error", err)
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown completed successfully")
	return nil
}

// logDevToken prints an Owner token for the demo agency so the API can be
// exercised locally without an identity provider.
func logDevToken(log *slog.Logger, auth *httpserver.Authenticator, agencyID string) {
	owner, err := agency.NewUser("dev-owner", "Demo Owner", agency.RoleOwner, shared.AgencyID(agencyID))
	if err != nil {
		log.Warn("dev token not issued", "error", err)
		return
	}
	token, err := auth.Issue(owner)
	if err != nil {
		log.Warn("dev token not issued", "error", err)
		return
	}
	log.Info("development owner token", "agency_id", agencyID, "token", token, "issued_at", time.Now().Format(time.RFC3339))
}
