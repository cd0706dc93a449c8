// Package scheduler runs background jobs on interval or cron schedules:
// the due-soon task reminder and the daily reminder digest.
//
// Every job gets its own loop that sleeps until the schedule's next fire
// time, runs the job and repeats, so a job never overlaps with itself.
// Missed fire times (a run that outlasts its interval) are skipped, not
// queued.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one unit of background work.
type Job interface {
	Name() string
	Description() string
	// Run is given a context that is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}

// Schedule computes fire times.
type Schedule interface {
	// Next returns the first fire time strictly after t.
	Next(t time.Time) time.Time
	String() string
}

// JobResult describes one finished run.
type JobResult struct {
	JobName     string        `json:"job"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt time.Time     `json:"completedAt"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	Error       error         `json:"-"`
	Manual      bool          `json:"manual"`
}

var (
	ErrNilJob                  = errors.New("scheduler: job cannot be nil")
	ErrNilSchedule             = errors.New("scheduler: schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("scheduler: job already exists")
	ErrJobNotFound             = errors.New("scheduler: job not found")
	ErrJobBusy                 = errors.New("scheduler: job is already running")
	ErrJobPanic                = errors.New("scheduler: job panicked")
	ErrSchedulerAlreadyRunning = errors.New("scheduler: already running")
	ErrSchedulerNotRunning     = errors.New("scheduler: not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Logger *slog.Logger

	// Timezone is the agency timezone cron expressions are evaluated in.
	Timezone *time.Location

	// MaxHistorySize bounds the list returned by History.
	MaxHistorySize int
}

// DefaultSchedulerConfig returns UTC with a history of 100 runs.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Logger:         slog.Default(),
		Timezone:       time.UTC,
		MaxHistorySize: 100,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

type entry struct {
	job      Job
	schedule Schedule

	busy     atomic.Bool
	nextRun  atomic.Pointer[time.Time]
	lastRun  atomic.Pointer[time.Time]
	runs     atomic.Int64
	failures atomic.Int64
}

// Scheduler owns the job loops.
type Scheduler struct {
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	loops   sync.WaitGroup
	started time.Time

	histMu  sync.Mutex
	history []JobResult
	histMax int

	onDone atomic.Pointer[func(JobResult)]
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}
	if config.MaxHistorySize <= 0 {
		config.MaxHistorySize = 100
	}
	return &Scheduler{
		logger:   config.Logger,
		location: config.Timezone,
		now:      time.Now,
		entries:  make(map[string]*entry),
		histMax:  config.MaxHistorySize,
	}
}

// Register adds a job. Jobs registered while the scheduler runs start at once.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	e := &entry{job: job, schedule: schedule}
	next := schedule.Next(s.now().In(s.location))
	e.nextRun.Store(&next)
	s.entries[name] = e

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
		"next_run", next.Format(time.RFC3339),
	)
	if s.ctx != nil {
		s.spawn(e)
	}
	return nil
}

// OnJobComplete installs a hook called after every run, scheduled or manual.
func (s *Scheduler) OnJobComplete(fn func(JobResult)) {
	s.onDone.Store(&fn)
}

// Start launches one loop per job. Cancelling ctx has the same effect as Stop
// except that Stop also waits.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return ErrSchedulerAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = s.now()
	for _, e := range s.entries {
		s.spawn(e)
	}
	s.logger.Info("scheduler started", "jobs", len(s.entries))
	return nil
}

// Stop cancels the loops and waits for in-flight runs to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.cancel()
	s.ctx, s.cancel = nil, nil
	started := s.started
	s.mu.Unlock()

	s.loops.Wait()
	s.logger.Info("scheduler stopped", "uptime", s.now().Sub(started).Round(time.Second).String())
	return nil
}

// IsRunning reports whether Start was called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx != nil
}

// spawn must be called with s.mu held.
func (s *Scheduler) spawn(e *entry) {
	ctx := s.ctx
	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		s.loop(ctx, e)
	}()
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	for {
		now := s.now().In(s.location)
		next := e.schedule.Next(now)
		e.nextRun.Store(&next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if !e.busy.CompareAndSwap(false, true) {
			// A manual run holds the job; this fire time is skipped.
			continue
		}
		s.run(ctx, e, false)
		e.busy.Store(false)
	}
}

// RunNow runs a job immediately on the caller's goroutine. It fails with
// ErrJobBusy while a scheduled or manual run of the same job is in flight.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if !e.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %s", ErrJobBusy, name)
	}
	defer e.busy.Store(false)

	r := s.run(ctx, e, true)
	return &r, r.Error
}

func (s *Scheduler) run(ctx context.Context, e *entry, manual bool) JobResult {
	started := s.now()
	e.lastRun.Store(&started)
	e.runs.Add(1)

	err := invoke(ctx, e.job)
	done := s.now()
	r := JobResult{
		JobName:     e.job.Name(),
		StartedAt:   started,
		CompletedAt: done,
		Duration:    done.Sub(started),
		Success:     err == nil,
		Error:       err,
		Manual:      manual,
	}

	if err != nil {
		e.failures.Add(1)
		s.logger.Error("job failed", "job", r.JobName, "manual", manual, "duration", r.Duration.String(), "error", err)
	} else {
		s.logger.Debug("job completed", "job", r.JobName, "manual", manual, "duration", r.Duration.String())
	}

	s.histMu.Lock()
	s.history = append(s.history, r)
	if over := len(s.history) - s.histMax; over > 0 {
		s.history = append(s.history[:0], s.history[over:]...)
	}
	s.histMu.Unlock()

	if hook := s.onDone.Load(); hook != nil && *hook != nil {
		(*hook)(r)
	}
	return r
}

func invoke(ctx context.Context, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanic, p)
		}
	}()
	return job.Run(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// INTROSPECTION
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo is the /jobs view of a registered job.
type JobInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Schedule    string    `json:"schedule"`
	Running     bool      `json:"running"`
	LastRun     time.Time `json:"lastRun,omitzero"`
	NextRun     time.Time `json:"nextRun"`
	RunCount    int64     `json:"runCount"`
	FailCount   int64     `json:"failCount"`
}

// ListJobs returns the registered jobs sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	infos := make([]JobInfo, 0, len(s.entries))
	for name, e := range s.entries {
		info := JobInfo{
			Name:        name,
			Description: e.job.Description(),
			Schedule:    e.schedule.String(),
			Running:     e.busy.Load(),
			RunCount:    e.runs.Load(),
			FailCount:   e.failures.Load(),
		}
		if t := e.lastRun.Load(); t != nil {
			info.LastRun = *t
		}
		if t := e.nextRun.Load(); t != nil {
			info.NextRun = *t
		}
		infos = append(infos, info)
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// History returns up to limit most recent results, oldest first. A
// non-positive limit returns everything kept.
func (s *Scheduler) History(limit int) []JobResult {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]JobResult, limit)
	copy(out, s.history[len(s.history)-limit:])
	return out
}
