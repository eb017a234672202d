package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkthebay/checkthebay/internal/scheduler"
)

func TestScheduler_RunsImmediately(t *testing.T) {
	var calls atomic.Int32
	s := scheduler.New(scheduler.Config{
		Interval: time.Hour,
		Job: func(context.Context) error {
			calls.Add(1)
			return nil
		},
		Logger: zerolog.Nop(),
	})

	s.Start(context.Background())
	s.Stop()
	s.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), s.Stats().Runs)
}

func TestScheduler_NeverOverlaps(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	release := make(chan struct{})

	s := scheduler.New(scheduler.Config{
		Interval: 5 * time.Millisecond,
		Job: func(context.Context) error {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			<-release
			return nil
		},
		Logger: zerolog.Nop(),
	})

	s.Start(context.Background())

	require.Eventually(t, func() bool {
		return s.Stats().Skipped >= 3
	}, 2*time.Second, 5*time.Millisecond)

	// Stop before releasing: a queued tick would show up as a second run.
	s.Stop()
	close(release)
	s.Wait()

	stats := s.Stats()
	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, int64(1), stats.Runs, "skipped ticks must be dropped, not replayed")
	assert.GreaterOrEqual(t, stats.Skipped, int64(3))
	assert.False(t, s.Running())
}

func TestScheduler_WaitWithoutRuns(t *testing.T) {
	s := scheduler.New(scheduler.Config{
		Interval: time.Hour,
		Job:      func(context.Context) error { return nil },
		Logger:   zerolog.Nop(),
	})

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked with no run ever started")
	}
}

func TestScheduler_StopDoesNotAbortInFlightRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var ctxErr atomic.Value

	s := scheduler.New(scheduler.Config{
		Interval: time.Hour,
		Job: func(ctx context.Context) error {
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				ctxErr.Store(err)
			}
			return nil
		},
		Logger: zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	<-started

	cancel()
	s.Stop()
	assert.True(t, s.Running())

	close(release)
	s.Wait()

	assert.False(t, s.Running())
	assert.Nil(t, ctxErr.Load())
}

func TestScheduler_RecoversPanics(t *testing.T) {
	var calls atomic.Int32
	s := scheduler.New(scheduler.Config{
		Interval: 5 * time.Millisecond,
		Job: func(context.Context) error {
			if calls.Add(1) == 1 {
				panic("boom")
			}
			return nil
		},
		Logger: zerolog.Nop(),
	})

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	s.Wait()

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.Panics)
	assert.GreaterOrEqual(t, stats.Failed, int64(1))
}

func TestScheduler_CountsFailures(t *testing.T) {
	s := scheduler.New(scheduler.Config{
		Interval: time.Hour,
		Job: func(context.Context) error {
			return errors.New("upstream down")
		},
		Logger: zerolog.Nop(),
	})

	s.Start(context.Background())
	s.Stop()
	s.Wait()

	assert.Equal(t, int64(1), s.Stats().Failed)
}

func TestScheduler_Trigger(t *testing.T) {
	release := make(chan struct{})
	s := scheduler.New(scheduler.Config{
		Interval: time.Hour,
		Job: func(context.Context) error {
			<-release
			return nil
		},
		Logger: zerolog.Nop(),
	})

	assert.True(t, s.Trigger(context.Background()))
	assert.False(t, s.Trigger(context.Background()), "second trigger skipped while running")

	close(release)
	s.Wait()
	assert.True(t, s.Trigger(context.Background()))
	s.Wait()

	assert.Equal(t, int64(2), s.Stats().Runs)
	assert.Equal(t, int64(1), s.Stats().Skipped)
}

func TestScheduler_DefaultInterval(t *testing.T) {
	assert.Equal(t, 10*time.Minute, scheduler.DefaultInterval)
}
