// Package scheduler runs the backend's periodic jobs: leaderboard rebuilds,
// score resets, daily exercise provisioning and the exercise archive sweep.
// Schedules are evaluated in the business time zone.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrNilJob                  = errors.New("scheduler: job is nil")
	ErrNilSchedule             = errors.New("scheduler: schedule is nil")
	ErrScheduleNeverFires      = errors.New("scheduler: schedule has no upcoming run")
	ErrJobAlreadyExists        = errors.New("scheduler: job already registered")
	ErrJobNotFound             = errors.New("scheduler: job not found")
	ErrJobPanicked             = errors.New("scheduler: job panicked")
	ErrSchedulerAlreadyRunning = errors.New("scheduler: already running")
	ErrSchedulerNotRunning     = errors.New("scheduler: not running")
)

// Job is one unit of periodic work. Run gets a context that is cancelled
// on Stop or when the job timeout elapses.
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context) error
}

// Schedule yields the next fire time strictly after t.
type Schedule interface {
	Next(t time.Time) time.Time
	String() string
}

// JobResult describes one finished run.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
	Manual      bool
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

type entry struct {
	job        Job
	schedule   Schedule
	disabled   bool
	inFlight   bool
	runOnStart bool
	timeout    time.Duration

	lastRun    time.Time
	nextRun    time.Time
	runs       int64
	failures   int64
	lastResult *JobResult
}

// RegisterOption customises a single registration.
type RegisterOption func(*entry)

// RunOnStart fires the job as soon as the scheduler starts, then follows
// the schedule.
func RunOnStart() RegisterOption {
	return func(e *entry) { e.runOnStart = true }
}

// WithTimeout bounds a single run.
func WithTimeout(d time.Duration) RegisterOption {
	return func(e *entry) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// SchedulerConfig configures NewScheduler. Zero values get defaults:
// slog.Default, UTC, a one second tick and time.Now.
type SchedulerConfig struct {
	Logger       *slog.Logger
	Timezone     *time.Location
	TickInterval time.Duration
	Now          func() time.Time
}

// Scheduler polls its jobs every tick and starts the ones that are due.
// A job is never started again while a previous run is in flight.
type Scheduler struct {
	logger *slog.Logger
	loc    *time.Location
	tick   time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	onError func(jobName string, err error)

	running   bool
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time

	metrics *SchedulerMetrics
}

// NewScheduler creates a stopped scheduler with no jobs.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Scheduler{
		logger:  cfg.Logger.With("component", "scheduler"),
		loc:     cfg.Timezone,
		tick:    cfg.TickInterval,
		now:     cfg.Now,
		entries: make(map[string]*entry),
		metrics: NewSchedulerMetrics(),
	}
}

func (s *Scheduler) localNow() time.Time {
	return s.now().In(s.loc)
}

// Register adds job under its name. The first run is the next schedule
// tick, or immediately with RunOnStart.
func (s *Scheduler) Register(job Job, schedule Schedule, opts ...RegisterOption) error {
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

	now := s.localNow()
	next := schedule.Next(now)
	if next.IsZero() {
		return fmt.Errorf("%w: %s (%s)", ErrScheduleNeverFires, name, schedule.String())
	}
	e := &entry{job: job, schedule: schedule, nextRun: next}
	for _, opt := range opts {
		opt(e)
	}
	if e.runOnStart {
		e.nextRun = now
	}
	s.entries[name] = e

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
		"next_run", e.nextRun.Format(time.RFC3339),
	)
	return nil
}

func (s *Scheduler) lookup(name string) (*entry, error) {
	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return e, nil
}

// DisableJob keeps the job registered but never fires it on schedule.
// RunNow still works.
func (s *Scheduler) DisableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(name)
	if err != nil {
		return err
	}
	e.disabled = true
	s.logger.Info("job disabled", "job", name)
	return nil
}

// RunAt pulls the next run forward to at. A later time is ignored.
func (s *Scheduler) RunAt(name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(name)
	if err != nil {
		return err
	}
	if e.nextRun.IsZero() || at.Before(e.nextRun) {
		e.nextRun = at.In(s.loc)
		s.logger.Debug("job rescheduled", "job", name, "next_run", e.nextRun.Format(time.RFC3339))
	}
	return nil
}

// OnJobError is called after every failed scheduled run.
func (s *Scheduler) OnJobError(fn func(jobName string, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start runs due jobs right away and then polls every tick until Stop or
// until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = s.now()
	count := len(s.entries)
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs_count", count, "timezone", s.loc.String())

	s.dispatch()

	s.wg.Add(1)
	go s.loop()
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped", "uptime", s.now().Sub(s.startedAt).String())
	return nil
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.runCtx.Done():
			return
		case <-ticker.C:
			s.dispatch()
		}
	}
}

// dispatch claims every due entry under the lock, then starts them.
func (s *Scheduler) dispatch() {
	now := s.localNow()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	var due []*entry
	for _, e := range s.entries {
		if e.disabled || e.inFlight || now.Before(e.nextRun) {
			continue
		}
		e.inFlight = true
		e.lastRun = now
		e.nextRun = e.schedule.Next(now)
		if e.nextRun.IsZero() {
			// Runs this once more, then never again.
			e.disabled = true
			s.logger.Error("job schedule exhausted, disabling", "job", e.job.Name(), "schedule", e.schedule.String())
		}
		e.runs++
		due = append(due, e)
	}
	ctx := s.runCtx
	s.mu.Unlock()

	for _, e := range due {
		s.wg.Add(1)
		go s.runScheduled(ctx, e)
	}
}

func (s *Scheduler) runScheduled(ctx context.Context, e *entry) {
	defer s.wg.Done()

	name := e.job.Name()
	s.logger.Info("job started", "job", name)

	result := s.execute(ctx, e)

	s.mu.Lock()
	e.inFlight = false
	e.lastResult = &result
	if !result.Success {
		e.failures++
	}
	onError := s.onError
	s.mu.Unlock()

	if result.Error == nil {
		s.logger.Info("job completed", "job", name, "duration", result.Duration.String())
		return
	}

	s.logger.Error("job failed", "job", name, "duration", result.Duration.String(), "error", result.Error)
	if onError != nil {
		onError(name, result.Error)
	}
}

// execute applies the job timeout and turns a panic into ErrJobPanicked.
func (s *Scheduler) execute(ctx context.Context, e *entry) (result JobResult) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result.JobName = e.job.Name()
	result.StartedAt = s.now()

	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
		result.CompletedAt = s.now()
		result.Duration = result.CompletedAt.Sub(result.StartedAt)
		result.Success = result.Error == nil
		s.metrics.RecordExecution(result.JobName, result.Duration, result.Success)
	}()

	result.Error = e.job.Run(ctx)
	return result
}

// RunNow executes a job in the caller's goroutine, ignoring its schedule
// and its disabled flag.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	s.mu.Lock()
	e, err := s.lookup(name)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.logger.Info("manual job run", "job", name)

	result := s.execute(ctx, e)
	result.Manual = true

	s.mu.Lock()
	e.lastResult = &result
	s.mu.Unlock()

	if result.Error != nil {
		s.logger.Error("manual job run failed", "job", name, "error", result.Error)
	}
	return &result, result.Error
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo is a read-only view of a registered job.
type JobInfo struct {
	Name        string
	Description string
	Enabled     bool
	Running     bool
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

func (e *entry) info() JobInfo {
	return JobInfo{
		Name:        e.job.Name(),
		Description: e.job.Description(),
		Enabled:     !e.disabled,
		Running:     e.inFlight,
		Schedule:    e.schedule.String(),
		LastRun:     e.lastRun,
		NextRun:     e.nextRun,
		RunCount:    e.runs,
		FailCount:   e.failures,
		LastResult:  e.lastResult,
	}
}

// ListJobs returns every registered job in no particular order.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.info())
	}
	return out
}

// GetJobInfo returns one job by name.
func (s *Scheduler) GetJobInfo(name string) (*JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	info := e.info()
	return &info, nil
}

// GetMetrics returns the run counters.
func (s *Scheduler) GetMetrics() *SchedulerMetrics {
	return s.metrics
}
