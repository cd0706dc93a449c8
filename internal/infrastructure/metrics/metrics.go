// Package metrics exposes Prometheus collectors for the pipeline service.
// One Metrics value owns its registry, so tests and binaries never share
// global state.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/infrastructure/scheduler"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "agency_crm"

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics holds every collector the service records.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AuthFailuresTotal prometheus.Counter

	DomainEventsTotal    *prometheus.CounterVec
	NotificationsTotal   *prometheus.CounterVec
	SchedulerRunsTotal   *prometheus.CounterVec
	SchedulerRunDuration *prometheus.HistogramVec
}

// New creates collectors with the given name prefix and registers them,
// together with the Go runtime and process collectors, on a fresh registry.
func New(prefix string) *Metrics {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_auth_failures_total",
				Help: "Total number of rejected identity tokens",
			},
		),
		DomainEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_domain_events_total",
				Help: "Total number of published domain events",
			},
			[]string{"type"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_notifications_total",
				Help: "Total number of notification delivery attempts",
			},
			[]string{"channel", "result"},
		),
		SchedulerRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_scheduler_runs_total",
				Help: "Total number of scheduled job runs",
			},
			[]string{"job", "result"},
		),
		SchedulerRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_scheduler_run_duration_seconds",
				Help:    "Duration of scheduled job runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthFailuresTotal,
		m.DomainEventsTotal,
		m.NotificationsTotal,
		m.SchedulerRunsTotal,
		m.SchedulerRunDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ══════════════════════════════════════════════════════════════════════════════
// OBSERVERS
// ══════════════════════════════════════════════════════════════════════════════

// ObserveRequest records one served HTTP request. route is the mux pattern,
// never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveAuthFailure counts a rejected token.
func (m *Metrics) ObserveAuthFailure() {
	m.AuthFailuresTotal.Inc()
}

// ObserveDelivery implements notification.DeliveryObserver.
func (m *Metrics) ObserveDelivery(channel string, success bool) {
	m.NotificationsTotal.WithLabelValues(channel, result(success)).Inc()
}

// ObserveJob records a scheduler run. Pass it to Scheduler.OnJobComplete.
func (m *Metrics) ObserveJob(r scheduler.JobResult) {
	m.SchedulerRunsTotal.WithLabelValues(r.JobName, result(r.Success)).Inc()
	m.SchedulerRunDuration.WithLabelValues(r.JobName).Observe(r.Duration.Seconds())
}

// ObserveEvent counts a domain event. It has the shared.EventHandler shape
// and is subscribed with SubscribeAll.
func (m *Metrics) ObserveEvent(event shared.Event) error {
	m.DomainEventsTotal.WithLabelValues(string(event.EventType())).Inc()
	return nil
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
