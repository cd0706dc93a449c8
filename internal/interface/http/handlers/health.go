package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROBES
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports the state of the backing services.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// Probe checks one backing service. A nil error means reachable.
type Probe func(ctx context.Context) error

// Pinger is satisfied by the Postgres store, the Redis cache and the Firestore store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingProbe adapts a Pinger.
func PingProbe(p Pinger) Probe {
	return p.Ping
}

// Severity decides what a failing probe does to the overall status.
type Severity int

const (
	// Critical failures take the service out of rotation (Postgres, Firestore).
	Critical Severity = iota
	// Optional failures only degrade it (the Redis cache).
	Optional
)

// Overall states reported in HealthStatus.State.
const (
	StateOK       = "ok"
	StateDegraded = "degraded"
	StateDown     = "down"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	State   string `json:"state"`
	Healthy bool   `json:"healthy"`
	Ready   bool   `json:"ready"`
	Message string `json:"message,omitempty"`

	Components []ComponentHealth `json:"components,omitempty"`

	Uptime    string    `json:"uptime,omitempty"`
	Version   string    `json:"version,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// ComponentHealth is the result of one probe.
type ComponentHealth struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Error    string `json:"error,omitempty"`
	Latency  string `json:"latency"`
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

type registeredProbe struct {
	probe    Probe
	severity Severity
}

// HealthRegistry runs every registered probe concurrently, each bounded by
// the probe timeout.
type HealthRegistry struct {
	mu      sync.RWMutex
	probes  map[string]registeredProbe
	started time.Time
	version string
	timeout time.Duration
}

// NewHealthRegistry creates an empty registry. With no probes the service
// reports ok.
func NewHealthRegistry(version string) *HealthRegistry {
	return &HealthRegistry{
		probes:  make(map[string]registeredProbe),
		started: time.Now(),
		version: version,
		timeout: 3 * time.Second,
	}
}

// WithTimeout overrides the per-probe deadline.
func (h *HealthRegistry) WithTimeout(d time.Duration) *HealthRegistry {
	if d > 0 {
		h.timeout = d
	}
	return h
}

// Register adds or replaces a named probe.
func (h *HealthRegistry) Register(name string, probe Probe, severity Severity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = registeredProbe{probe: probe, severity: severity}
}

// Names lists the registered probes in name order.
func (h *HealthRegistry) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs the probes and folds them into one status.
func (h *HealthRegistry) Check(ctx context.Context) HealthStatus {
	h.mu.RLock()
	probes := make(map[string]registeredProbe, len(h.probes))
	for name, p := range h.probes {
		probes[name] = p
	}
	h.mu.RUnlock()

	results := make([]ComponentHealth, 0, len(probes))
	var mu sync.Mutex

	// Probe errors are collected, never returned, so one failure does not
	// cancel the others.
	var g errgroup.Group
	for name, p := range probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			start := time.Now()
			err := p.probe(pctx)
			res := ComponentHealth{
				Name:     name,
				Healthy:  err == nil,
				Optional: p.severity == Optional,
				Latency:  time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				res.Error = err.Error()
			}

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return h.fold(results)
}

func (h *HealthRegistry) fold(results []ComponentHealth) HealthStatus {
	status := HealthStatus{
		State:      StateOK,
		Healthy:    true,
		Ready:      true,
		Components: results,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Version:    h.version,
		CheckedAt:  time.Now().UTC(),
	}

	var down, degraded []string
	for _, r := range results {
		switch {
		case r.Healthy:
		case r.Optional:
			degraded = append(degraded, r.Name)
		default:
			down = append(down, r.Name)
		}
	}

	switch {
	case len(down) > 0:
		status.State = StateDown
		status.Healthy = false
		status.Ready = false
		status.Message = "unavailable: " + strings.Join(down, ", ")
	case len(degraded) > 0:
		status.State = StateDegraded
		status.Message = "degraded: " + strings.Join(degraded, ", ")
	}
	return status
}
