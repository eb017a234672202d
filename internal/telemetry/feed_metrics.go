package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const feedMeterName = "github.com/checkthebay/checkthebay/internal/source"

// Fetch outcomes recorded on feed.fetch.total.
const (
	OutcomeFresh    = "fresh"
	OutcomeCached   = "cached"
	OutcomeStale    = "stale"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
)

// FeedMetrics holds the instruments recorded by source adapters. A nil
// *FeedMetrics is valid and records nothing.
type FeedMetrics struct {
	fetchDuration metric.Float64Histogram
	fetchTotal    metric.Int64Counter
	coalesced     metric.Int64Counter
}

// NewFeedMetrics creates the feed instruments on the global meter provider.
func NewFeedMetrics() (*FeedMetrics, error) {
	meter := otel.Meter(feedMeterName)

	fetchDuration, err := meter.Float64Histogram(
		"feed.fetch.duration",
		metric.WithDescription("Duration of upstream feed fetches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	fetchTotal, err := meter.Int64Counter(
		"feed.fetch.total",
		metric.WithDescription("Adapter fetches by source and outcome"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	coalesced, err := meter.Int64Counter(
		"feed.fetch.coalesced",
		metric.WithDescription("Callers that joined an in-flight fetch"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	return &FeedMetrics{
		fetchDuration: fetchDuration,
		fetchTotal:    fetchTotal,
		coalesced:     coalesced,
	}, nil
}

// RecordUpstream records one upstream call for a source.
func (m *FeedMetrics) RecordUpstream(source string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("feed.source", source)}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	// metrics outlive the request context
	m.fetchDuration.Record(context.Background(), duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOutcome counts how a fetch was answered.
func (m *FeedMetrics) RecordOutcome(source, outcome string) {
	if m == nil {
		return
	}
	m.fetchTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("feed.source", source),
		attribute.String("feed.outcome", outcome),
	))
}

// RecordCoalesced counts a caller that shared another caller's fetch.
func (m *FeedMetrics) RecordCoalesced(source string) {
	if m == nil {
		return
	}
	m.coalesced.Add(context.Background(), 1, metric.WithAttributes(attribute.String("feed.source", source)))
}
