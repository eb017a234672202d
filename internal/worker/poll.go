package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/conditions"
)

// ErrNoSnapshot is returned when the aggregator produced nothing to save.
var ErrNoSnapshot = errors.New("aggregator returned no snapshot")

// Aggregator builds a snapshot from every feed.
type Aggregator interface {
	Run(ctx context.Context) *conditions.Snapshot
}

// SnapshotSaver persists a snapshot and returns the merged result.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, snap *conditions.Snapshot) (*conditions.Snapshot, error)
}

// PollJob runs the pipeline: aggregate, save, publish.
type PollJob struct {
	config     PollConfig
	aggregator Aggregator
	store      SnapshotSaver
	publisher  Publisher
	logger     zerolog.Logger

	metrics *PollMetrics
}

// PollMetrics tracks poll job statistics.
type PollMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns       int64
	SuccessfulRuns  int64
	FailedRuns      int64
	StaleRuns       int64
	SourceErrors    int64
	PublishFailures int64

	// Timings
	LastRunID       string
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// PollJobConfig holds configuration for creating a PollJob.
type PollJobConfig struct {
	Config     PollConfig
	Aggregator Aggregator
	Store      SnapshotSaver

	// Publisher defaults to NoopPublisher.
	Publisher Publisher

	Logger zerolog.Logger
}

// NewPollJob creates a new poll job.
func NewPollJob(cfg PollJobConfig) *PollJob {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = NoopPublisher{}
	}

	return &PollJob{
		config:     cfg.Config.withDefaults(),
		aggregator: cfg.Aggregator,
		store:      cfg.Store,
		publisher:  publisher,
		logger:     cfg.Logger,
		metrics:    &PollMetrics{},
	}
}

// PollResult contains the result of a poll run.
type PollResult struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Snapshot  *conditions.Snapshot
	Published bool
}

// Run executes one poll. Feed failures never fail the run; only a failed
// save does. A failed publish is logged and counted.
func (j *PollJob) Run(ctx context.Context) (*PollResult, error) {
	result := &PollResult{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
	logger := j.logger.With().Str("run_id", result.RunID).Logger()

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	logger.Info().Msg("starting conditions poll")

	snap := j.aggregator.Run(ctx)
	if snap == nil {
		j.finish(result, nil, ErrNoSnapshot)
		return result, ErrNoSnapshot
	}

	saved, err := j.store.SaveSnapshot(ctx, snap)
	if err != nil {
		err = fmt.Errorf("saving snapshot: %w", err)
		logger.Error().Err(err).Msg("conditions poll failed")
		j.finish(result, snap, err)
		return result, err
	}
	result.Snapshot = saved

	pubCtx, pubCancel := context.WithTimeout(ctx, j.config.PublishTimeout)
	defer pubCancel()
	if err := j.publisher.PublishSnapshot(pubCtx, saved); err != nil {
		logger.Warn().Err(err).Msg("failed to publish conditions update")
		j.metrics.mu.Lock()
		j.metrics.PublishFailures++
		j.metrics.mu.Unlock()
	} else {
		result.Published = true
	}

	j.finish(result, saved, nil)

	event := logger.Info()
	if saved.Rating != nil {
		event = event.Str("rating", string(*saved.Rating))
	}
	event.
		Dur("duration", result.Duration).
		Int("source_errors", len(saved.Errors)).
		Bool("stale", saved.Stale).
		Msg("conditions poll completed")

	return result, nil
}

// Refresh runs one poll and discards the result.
func (j *PollJob) Refresh(ctx context.Context) error {
	_, err := j.Run(ctx)
	return err
}

func (j *PollJob) finish(result *PollResult, snap *conditions.Snapshot, err error) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	if err != nil {
		j.metrics.FailedRuns++
	} else {
		j.metrics.SuccessfulRuns++
	}
	if snap != nil {
		j.metrics.SourceErrors += int64(len(snap.Errors))
		if snap.Stale {
			j.metrics.StaleRuns++
		}
	}
	j.metrics.LastRunID = result.RunID
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *PollJob) GetMetrics() PollMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return PollMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		SuccessfulRuns:  j.metrics.SuccessfulRuns,
		FailedRuns:      j.metrics.FailedRuns,
		StaleRuns:       j.metrics.StaleRuns,
		SourceErrors:    j.metrics.SourceErrors,
		PublishFailures: j.metrics.PublishFailures,
		LastRunID:       j.metrics.LastRunID,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *PollJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"successful_runs":   m.SuccessfulRuns,
		"failed_runs":       m.FailedRuns,
		"stale_runs":        m.StaleRuns,
		"source_errors":     m.SourceErrors,
		"publish_failures":  m.PublishFailures,
		"last_run_id":       m.LastRunID,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
