package worker_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/provider/resilience"
	"github.com/checkthebay/checkthebay/internal/snapshot"
	"github.com/checkthebay/checkthebay/internal/worker"
)

type fakeAggregator struct {
	calls atomic.Int32
	snap  *conditions.Snapshot
}

func (f *fakeAggregator) Run(context.Context) *conditions.Snapshot {
	f.calls.Add(1)
	return f.snap
}

type recordingPublisher struct {
	published []worker.UpdateMessage
	err       error
}

func (p *recordingPublisher) PublishSnapshot(_ context.Context, snap *conditions.Snapshot) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, worker.NewUpdateMessage(snap))
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type failingSaver struct{}

func (failingSaver) SaveSnapshot(context.Context, *conditions.Snapshot) (*conditions.Snapshot, error) {
	return nil, errors.New("disk full")
}

func testSnapshot() *conditions.Snapshot {
	snap := conditions.EmptySnapshot(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	rating := conditions.RatingGood
	snap.Rating = &rating
	snap.Stale = false
	snap.Errors = []string{"moon: upstream unavailable: unexpected status code: 503"}
	return snap
}

func TestDefaultPollConfig(t *testing.T) {
	cfg := worker.DefaultPollConfig()

	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, 10*time.Second, cfg.PublishTimeout)
}

func TestPollJob_Run(t *testing.T) {
	store := snapshot.NewStore(snapshot.NewMemoryBackend(), zerolog.Nop())
	pub := &recordingPublisher{}
	agg := &fakeAggregator{snap: testSnapshot()}

	job := worker.NewPollJob(worker.PollJobConfig{
		Aggregator: agg,
		Store:      store,
		Publisher:  pub,
		Logger:     zerolog.Nop(),
	})

	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.True(t, result.Published)
	require.NotNil(t, result.Snapshot)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, conditions.RatingGood, *loaded.Rating)

	require.Len(t, pub.published, 1)
	msg := pub.published[0]
	assert.Equal(t, worker.UpdatedMessageType, msg.Type)
	assert.Equal(t, conditions.RatingGood, *msg.Rating)
	assert.Len(t, msg.Errors, 1)

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalRuns)
	assert.Equal(t, int64(1), metrics.SuccessfulRuns)
	assert.Equal(t, int64(1), metrics.SourceErrors)
	assert.Equal(t, result.RunID, metrics.LastRunID)
	assert.NotZero(t, metrics.LastRunAt)
}

func TestPollJob_SaveFailure(t *testing.T) {
	pub := &recordingPublisher{}
	job := worker.NewPollJob(worker.PollJobConfig{
		Aggregator: &fakeAggregator{snap: testSnapshot()},
		Store:      failingSaver{},
		Publisher:  pub,
		Logger:     zerolog.Nop(),
	})

	_, err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, pub.published, "nothing is published when the save fails")
	assert.Equal(t, int64(1), job.GetMetrics().FailedRuns)
}

func TestPollJob_PublishFailureDoesNotFailRun(t *testing.T) {
	job := worker.NewPollJob(worker.PollJobConfig{
		Aggregator: &fakeAggregator{snap: testSnapshot()},
		Store:      snapshot.NewStore(snapshot.NewMemoryBackend(), zerolog.Nop()),
		Publisher:  &recordingPublisher{err: errors.New("topic not found")},
		Logger:     zerolog.Nop(),
	})

	result, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Published)
	assert.Equal(t, int64(1), job.GetMetrics().PublishFailures)
}

func TestPollJob_NoSnapshot(t *testing.T) {
	job := worker.NewPollJob(worker.PollJobConfig{
		Aggregator: &fakeAggregator{},
		Store:      snapshot.NewStore(snapshot.NewMemoryBackend(), zerolog.Nop()),
		Logger:     zerolog.Nop(),
	})

	err := job.Refresh(context.Background())
	assert.ErrorIs(t, err, worker.ErrNoSnapshot)
}

func TestPollJob_MetricsSnapshot(t *testing.T) {
	job := worker.NewPollJob(worker.PollJobConfig{
		Aggregator: &fakeAggregator{snap: testSnapshot()},
		Store:      snapshot.NewStore(snapshot.NewMemoryBackend(), zerolog.Nop()),
		Logger:     zerolog.Nop(),
	})
	_, _ = job.Run(context.Background())

	m := job.MetricsSnapshot()
	assert.Contains(t, m, "total_runs")
	assert.Contains(t, m, "successful_runs")
	assert.Contains(t, m, "last_run_id")
	assert.Contains(t, m, "last_run_duration")
}

func TestNewUpdateMessage_EmptyErrors(t *testing.T) {
	snap := conditions.EmptySnapshot(time.Now())
	snap.Errors = nil

	msg := worker.NewUpdateMessage(snap)
	assert.NotNil(t, msg.Errors)
	assert.Nil(t, msg.Rating)
}

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls.Add(1)
	return r.err
}

func TestJobHandler_Handle(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		refreshErr error
		want       worker.Decision
		refreshes  int32
	}{
		{name: "refresh", data: `{"job_type":"conditions_refresh"}`, want: worker.Ack, refreshes: 1},
		{name: "refresh failure", data: `{"job_type":"conditions_refresh"}`, refreshErr: errors.New("boom"), want: worker.Nack, refreshes: 1},
		{name: "health check without registry", data: `{"job_type":"health_check"}`, want: worker.Ack},
		{name: "unknown job type", data: `{"job_type":"provider_refresh"}`, want: worker.Ack},
		{name: "parse failure", data: `not json`, want: worker.Nack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &countingRefresher{err: tt.refreshErr}
			h := worker.NewJobHandler(r, nil, zerolog.Nop())

			got := h.Handle(context.Background(), []byte(tt.data))

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.refreshes, r.calls.Load())
		})
	}
}

func TestJobHandler_HealthCheckAllFeedsDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("noaa")
	cfg.MaxRetries = 0
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	h := worker.NewJobHandler(&countingRefresher{}, registry, zerolog.Nop())
	assert.Equal(t, worker.Ack, h.Handle(context.Background(), []byte(`{"job_type":"health_check"}`)))

	for range 3 {
		req, err := http.NewRequest(http.MethodGet, server.URL, http.NoBody)
		require.NoError(t, err)
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
		}
	}
	require.Equal(t, resilience.StatusDown, registry.Health("noaa").Status())

	assert.Equal(t, worker.Nack, h.Handle(context.Background(), []byte(`{"job_type":"health_check"}`)))
}
