package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sagenius/agency-crm/internal/domain/notification"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/pkg/circuitbreaker"
	"github.com/sagenius/agency-crm/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// DeliveryObserver receives one call per delivery attempt outcome (metrics).
type DeliveryObserver interface {
	ObserveDelivery(channel string, success bool)
}

// Dispatcher implements notification.Sender. It routes a message to the
// channel named by msg.Channel, retries retryable failures and trips a
// per-channel circuit breaker. A message for an unregistered channel goes
// to the log channel when fallback is enabled.
type Dispatcher struct {
	mu       sync.RWMutex
	channels map[notification.ChannelType]notification.Channel
	breakers map[notification.ChannelType]*circuitbreaker.CircuitBreaker
	retriers map[notification.ChannelType]*retry.Retrier

	fallback  notification.Channel
	publisher shared.EventPublisher
	observer  DeliveryObserver
	logger    *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPublisher publishes notification.sent / notification.failed events.
func WithPublisher(p shared.EventPublisher) DispatcherOption {
	return func(d *Dispatcher) { d.publisher = p }
}

// WithObserver records delivery outcomes.
func WithObserver(o DeliveryObserver) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// WithLogFallback routes messages for unregistered channels to ch.
func WithLogFallback(ch notification.Channel) DispatcherOption {
	return func(d *Dispatcher) { d.fallback = ch }
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		channels: make(map[notification.ChannelType]notification.Channel),
		breakers: make(map[notification.ChannelType]*circuitbreaker.CircuitBreaker),
		retriers: make(map[notification.ChannelType]*retry.Retrier),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a channel protected by breaker and retrier. Either may be nil.
func (d *Dispatcher) Register(ch notification.Channel, breaker *circuitbreaker.CircuitBreaker, retrier *retry.Retrier) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := ch.Type()
	d.channels[t] = ch
	if breaker != nil {
		d.breakers[t] = breaker
	}
	if retrier != nil {
		d.retriers[t] = retrier
	}
}

// Send implements notification.Sender.
func (d *Dispatcher) Send(ctx context.Context, msg *notification.Message) notification.DeliveryResult {
	d.mu.RLock()
	ch, ok := d.channels[msg.Channel]
	breaker := d.breakers[msg.Channel]
	retrier := d.retriers[msg.Channel]
	d.mu.RUnlock()

	if !ok {
		if d.fallback == nil {
			return d.finish(msg, notification.Undelivered(msg.Channel, shared.ErrInvalidChannel, false))
		}
		ch = d.fallback
	}

	var result notification.DeliveryResult
	attempt := func(ctx context.Context) error {
		result = ch.Send(ctx, msg)
		if result.Success {
			return nil
		}
		err := result.Error
		if err == nil {
			err = shared.ErrNotificationFailed
		}
		if result.Retryable {
			return retry.Retryable(err)
		}
		return err
	}

	protected := attempt
	if breaker != nil {
		protected = func(ctx context.Context) error {
			return breaker.Execute(ctx, attempt)
		}
	}

	var err error
	if retrier != nil {
		err = retrier.Do(ctx, protected)
	} else {
		err = protected(ctx)
	}

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		result = notification.Undelivered(ch.Type(), shared.WrapError("notification", "Send",
			shared.ErrServiceUnavailable, "channel temporarily disabled", err), true)
	}
	return d.finish(msg, result)
}

func (d *Dispatcher) finish(msg *notification.Message, result notification.DeliveryResult) notification.DeliveryResult {
	if d.observer != nil {
		d.observer.ObserveDelivery(string(result.Channel), result.Success)
	}

	if result.Success {
		d.logger.Debug("notification delivered",
			"message_id", msg.ID, "channel", string(result.Channel), "agency_id", msg.AgencyID.String())
	} else {
		d.logger.Warn("notification failed",
			"message_id", msg.ID, "channel", string(result.Channel), "agency_id", msg.AgencyID.String(), "error", result.Error)
	}

	if d.publisher != nil {
		_ = d.publisher.Publish(notification.NewDeliveryEvent(msg, result))
	}
	return result
}
