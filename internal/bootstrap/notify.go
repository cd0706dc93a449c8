package bootstrap

import (
	"log/slog"
	"time"

	"github.com/sagenius/agency-crm/config"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/infrastructure/notification"
	"github.com/sagenius/agency-crm/pkg/circuitbreaker"
	"github.com/sagenius/agency-crm/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION CHANNELS
// ══════════════════════════════════════════════════════════════════════════════

// NewDispatcher registers the outbound channels. WhatsApp is always present
// (link-only without a gateway); email only with a SendGrid key. Anything
// else falls back to the log channel.
func NewDispatcher(cfg *config.Config, log *slog.Logger, publisher shared.EventPublisher, observer notification.DeliveryObserver) *notification.Dispatcher {
	opts := []notification.DispatcherOption{
		notification.WithLogFallback(notification.NewLogChannel(log)),
	}
	if publisher != nil {
		opts = append(opts, notification.WithPublisher(publisher))
	}
	if observer != nil {
		opts = append(opts, notification.WithObserver(observer))
	}
	d := notification.NewDispatcher(log, opts...)

	whatsapp := notification.NewWhatsAppChannel(notification.WhatsAppConfig{
		WebhookURL: cfg.Notification.WhatsAppWebhookURL,
		Token:      cfg.Notification.WhatsAppToken,
		Timeout:    cfg.Notification.WhatsAppTimeout,
	}, log)
	d.Register(whatsapp, channelBreaker("whatsapp", log), channelRetrier("whatsapp", log))

	if cfg.Notification.EmailEnabled() {
		email, err := notification.NewEmailChannel(notification.EmailConfig{
			APIKey:        cfg.Notification.SendGridAPIKey,
			FromName:      cfg.Notification.FromName,
			FromEmail:     cfg.Notification.FromEmail,
			SubjectPrefix: cfg.Notification.SubjectPrefix,
		}, log)
		if err != nil {
			log.Warn("email channel disabled", "error", err)
		} else {
			d.Register(email, channelBreaker("email", log), channelRetrier("email", log))
			log.Info("email channel enabled", "from", cfg.Notification.FromEmail)
		}
	} else {
		log.Info("SENDGRID_API_KEY not set, emails go to the log channel")
	}

	return d
}

func channelBreaker(name string, log *slog.Logger) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New(name,
		circuitbreaker.WithFailureThreshold(5),
		circuitbreaker.WithTimeout(30*time.Second),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("channel circuit state changed",
				"channel", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
	)
}

func channelRetrier(name string, log *slog.Logger) *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(500*time.Millisecond),
		retry.WithMaxDelay(5*time.Second),
		retry.WithJitter(0.2),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Debug("retrying notification",
				"channel", name,
				"attempt", attempt,
				"delay", delay.String(),
				"error", err,
			)
		}),
	)
}
