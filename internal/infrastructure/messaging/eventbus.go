// Package messaging implements the in-process event bus that connects
// command handlers to automation, notification and activity handlers.
package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

var (
	// ErrEventBusClosed is returned by Publish and Subscribe after Close.
	ErrEventBusClosed = errors.New("event bus is closed")
	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBusConfig configures InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode queues events for a fixed pool of workers. Off means every
	// handler has finished when Publish returns, which is what the write path
	// relies on for status automation.
	AsyncMode bool

	// WorkerPoolSize is the number of async workers.
	WorkerPoolSize int

	// QueueSize bounds the async queue. Publish blocks while it is full.
	QueueSize int

	Logger *slog.Logger
}

// DefaultInMemoryEventBusConfig returns a synchronous bus.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		WorkerPoolSize: 4,
		QueueSize:      256,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BUS
// ══════════════════════════════════════════════════════════════════════════════

// delivery is one event bound for a fixed list of handlers.
type delivery struct {
	event    shared.Event
	handlers []shared.EventHandler
}

// InMemoryEventBus implements shared.EventBus. Handler errors and panics are
// logged and counted, never returned to the publisher.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	byType   map[shared.EventType][]shared.EventHandler
	wildcard []shared.EventHandler
	closed   bool

	queue   chan delivery
	workers sync.WaitGroup
	pending sync.WaitGroup

	logger *slog.Logger
	stats  *EventBusMetrics
}

// NewInMemoryEventBus creates a bus and, in async mode, starts its workers.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	b := &InMemoryEventBus{
		byType: make(map[shared.EventType][]shared.EventHandler),
		logger: config.Logger.With("component", "event_bus"),
		stats:  &EventBusMetrics{},
	}

	if config.AsyncMode {
		workers := max(config.WorkerPoolSize, 1)
		b.queue = make(chan delivery, max(config.QueueSize, 1))
		b.workers.Add(workers)
		for range workers {
			go b.work()
		}
	}
	return b
}

// Subscribe registers a handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.add(handler, func() {
		b.byType[eventType] = append(b.byType[eventType], handler)
	})
}

// SubscribeAll registers a handler for every event type.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.add(handler, func() {
		b.wildcard = append(b.wildcard, handler)
	})
}

func (b *InMemoryEventBus) add(handler shared.EventHandler, register func()) error {
	if handler == nil {
		return errors.New("messaging: nil handler")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	register()
	return nil
}

// Publish delivers event to the type's handlers, then to the wildcard ones.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("messaging: nil event")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	typed := b.byType[event.EventType()]
	d := delivery{event: event, handlers: make([]shared.EventHandler, 0, len(typed)+len(b.wildcard))}
	d.handlers = append(d.handlers, typed...)
	d.handlers = append(d.handlers, b.wildcard...)

	b.stats.published.Add(1)
	if b.queue != nil {
		// Enqueue under the read lock so Close cannot close the queue first.
		b.pending.Add(1)
		b.queue <- d
		b.mu.RUnlock()
		return nil
	}
	b.mu.RUnlock()

	b.deliver(d)
	return nil
}

func (b *InMemoryEventBus) work() {
	defer b.workers.Done()
	for d := range b.queue {
		b.deliver(d)
		b.pending.Done()
	}
}

func (b *InMemoryEventBus) deliver(d delivery) {
	for _, h := range d.handlers {
		if err := b.invoke(d.event, h); err != nil {
			b.logger.Error("event handler failed",
				"event_type", string(d.event.EventType()),
				"agency_id", d.event.AgencyID(),
				"aggregate_id", d.event.AggregateID(),
				"error", err,
			)
		}
	}
}

func (b *InMemoryEventBus) invoke(event shared.Event, handler shared.EventHandler) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		b.stats.record(time.Since(start), err)
	}()
	return handler(event)
}

// Wait blocks until every queued event has been delivered. It returns at
// once on a synchronous bus.
func (b *InMemoryEventBus) Wait() {
	b.pending.Wait()
}

// Close refuses new events and drains the async queue.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.queue != nil {
		close(b.queue)
	}
	b.mu.Unlock()

	b.workers.Wait()
	b.logger.Debug("event bus closed", "published", b.stats.published.Load())
	return nil
}

// Metrics returns the bus counters.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.stats
}

// ══════════════════════════════════════════════════════════════════════════════
// COUNTERS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics counts deliveries. The Prometheus view of events lives in
// the metrics package, which subscribes as a wildcard handler.
type EventBusMetrics struct {
	published atomic.Int64
	execs     atomic.Int64
	failures  atomic.Int64
	busyNanos atomic.Int64
}

func (m *EventBusMetrics) record(d time.Duration, err error) {
	m.execs.Add(1)
	m.busyNanos.Add(int64(d))
	if err != nil {
		m.failures.Add(1)
	}
}

// Snapshot returns the current counters.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	s := EventBusMetricsSnapshot{
		TotalPublished:    m.published.Load(),
		TotalHandlerExecs: m.execs.Load(),
		HandlerFailures:   m.failures.Load(),
	}
	if s.TotalHandlerExecs > 0 {
		s.AverageHandlerDuration = time.Duration(m.busyNanos.Load() / s.TotalHandlerExecs)
	}
	return s
}

// EventBusMetricsSnapshot is a point-in-time copy of EventBusMetrics.
type EventBusMetricsSnapshot struct {
	TotalPublished         int64         `json:"total_published"`
	TotalHandlerExecs      int64         `json:"total_handler_execs"`
	HandlerFailures        int64         `json:"handler_failures"`
	AverageHandlerDuration time.Duration `json:"average_handler_duration"`
}
