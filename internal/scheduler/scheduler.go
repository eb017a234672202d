// Package scheduler runs a job on a fixed interval without ever overlapping
// two runs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the poll cadence when none is configured.
const DefaultInterval = 10 * time.Minute

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Config configures a Scheduler.
type Config struct {
	// Name labels log lines.
	Name string

	// Interval between ticks. Default: DefaultInterval.
	Interval time.Duration

	Job    Job
	Logger zerolog.Logger
}

// Stats counts what the scheduler has done.
type Stats struct {
	Runs    int64
	Skipped int64
	Failed  int64
	Panics  int64
}

// Scheduler fires Job once on Start and then on every tick. A tick that
// arrives while a run is in flight is skipped, not queued.
type Scheduler struct {
	name     string
	interval time.Duration
	job      Job
	logger   zerolog.Logger

	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
	panics  atomic.Int64

	mu       sync.Mutex
	started  bool
	stop     context.CancelFunc
	loopDone chan struct{}

	// runDone is closed when the latest run finishes. Runs are exclusive,
	// so one channel is enough.
	runMu   sync.Mutex
	runDone chan struct{}
}

// New creates a scheduler. It does nothing until Start.
func New(cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Name == "" {
		cfg.Name = "poll"
	}

	return &Scheduler{
		name:     cfg.Name,
		interval: cfg.Interval,
		job:      cfg.Job,
		logger:   cfg.Logger.With().Str("schedule", cfg.Name).Logger(),
	}
}

// Start runs the job immediately and then every interval until Stop or until
// ctx is cancelled. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.stop = cancel
	s.loopDone = make(chan struct{})

	// Runs must outlive Stop, so they get a context that ignores the loop's
	// cancellation.
	runCtx := context.WithoutCancel(ctx)

	s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")

	s.trigger(runCtx)

	go func() {
		defer close(s.loopDone)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.trigger(runCtx)
			}
		}
	}()
}

// Trigger starts a run now unless one is already in flight. It reports
// whether a run was started.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	return s.trigger(context.WithoutCancel(ctx))
}

func (s *Scheduler) trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Debug().Msg("previous run still in flight, skipping tick")
		return false
	}

	done := make(chan struct{})
	s.runMu.Lock()
	s.runDone = done
	s.runMu.Unlock()

	go func() {
		defer close(done)
		defer s.running.Store(false)
		s.run(ctx)
	}()
	return true
}

func (s *Scheduler) run(ctx context.Context) {
	start := time.Now()
	s.runs.Add(1)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.panics.Add(1)
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()
		return s.job(ctx)
	}()

	if err != nil {
		s.failed.Add(1)
		s.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("scheduled run failed")
		return
	}
	s.logger.Debug().Dur("duration", time.Since(start)).Msg("scheduled run completed")
}

// Stop cancels future ticks. An in-flight run is left to finish; use Wait to
// block on it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.loopDone
	s.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
	s.logger.Info().Msg("scheduler stopped")
}

// Wait blocks until the run in flight at the time of the call, if any, has
// finished. After Stop no new ticks start, so it then drains the scheduler.
func (s *Scheduler) Wait() {
	s.runMu.Lock()
	done := s.runDone
	s.runMu.Unlock()

	if done != nil {
		<-done
	}
}

// Running reports whether a run is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Stats returns the current counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Runs:    s.runs.Load(),
		Skipped: s.skipped.Load(),
		Failed:  s.failed.Load(),
		Panics:  s.panics.Load(),
	}
}
