// Package bootstrap assembles the infrastructure shared by the binaries:
// loggers, the collection store stack, notification channels, the document
// uploader, the background scheduler and the demo seed.
//
// Every constructor takes the loaded *config.Config and returns the pieces
// together with a close function; cmd/api and cmd/worker only sequence them.
package bootstrap

import (
	"log/slog"
	"os"
	"strings"

	"github.com/sagenius/agency-crm/config"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/infrastructure/messaging"
	"github.com/sagenius/agency-crm/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// NewLogger configures slog for the infrastructure and application layers.
// JSON in production or when LOG_FORMAT=json, text otherwise.
func NewLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg)}

	var handler slog.Handler
	if cfg.IsProduction() || strings.EqualFold(cfg.Observability.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("app", cfg.App.Name, "env", string(cfg.App.Environment))
	slog.SetDefault(log)
	return log
}

// NewHTTPLogger returns the request logger used by the HTTP layer.
func NewHTTPLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	if !cfg.IsProduction() && !strings.EqualFold(cfg.Observability.LogFormat, "json") {
		opts.Format = logger.FormatText
	}
	return logger.New(opts).With(logger.String("app", cfg.App.Name))
}

func slogLevel(cfg *config.Config) slog.Level {
	if cfg.App.Debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(cfg.Observability.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewEventBus builds the in-process bus. Delivery is synchronous unless
// EVENTS_ASYNC is set.
func NewEventBus(cfg *config.Config, log *slog.Logger) *messaging.InMemoryEventBus {
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.AsyncMode = cfg.Pipeline.AsyncEvents
	if cfg.Pipeline.EventWorkers > 0 {
		busCfg.WorkerPoolSize = cfg.Pipeline.EventWorkers
	}
	if cfg.Pipeline.EventQueue > 0 {
		busCfg.QueueSize = cfg.Pipeline.EventQueue
	}
	return messaging.NewInMemoryEventBus(busCfg)
}

// AgencyIDs converts the configured tenant list, dropping invalid entries.
func AgencyIDs(cfg *config.Config) []shared.AgencyID {
	ids := make([]shared.AgencyID, 0, len(cfg.Pipeline.AgencyIDs))
	for _, raw := range cfg.Pipeline.AgencyIDs {
		id, err := shared.NewAgencyID(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
