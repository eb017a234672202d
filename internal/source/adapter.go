package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/checkthebay/checkthebay/internal/provider"
	"github.com/checkthebay/checkthebay/internal/telemetry"
)

// DefaultTimeout bounds a single upstream fetch.
const DefaultTimeout = 12 * time.Second

// Fetcher performs one live upstream call for a feed.
type Fetcher[T any] interface {
	Fetch(ctx context.Context) (T, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc[T any] func(ctx context.Context) (T, error)

// Fetch calls f(ctx).
func (f FetcherFunc[T]) Fetch(ctx context.Context) (T, error) {
	return f(ctx)
}

// Config configures an Adapter.
type Config[T any] struct {
	ID      ID
	Fetcher Fetcher[T]

	// Fallback produces an offline value when the fetcher reports
	// provider.ErrNotConfigured. The value is cached like a live one.
	Fallback func(now time.Time) T

	// TTL defaults to DefaultTTL(ID).
	TTL time.Duration

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	Logger  zerolog.Logger
	Metrics *telemetry.FeedMetrics

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Adapter serves one feed. Fetch never fails: errors are reported inside the
// Reading and the last good value is kept alive past its window.
type Adapter[T any] struct {
	id       ID
	fetcher  Fetcher[T]
	fallback func(now time.Time) T
	timeout  time.Duration
	cache    *TTLCache[T]
	group    singleflight.Group
	logger   zerolog.Logger
	metrics  *telemetry.FeedMetrics
	now      func() time.Time
}

type refreshResult[T any] struct {
	entry    Entry[T]
	fallback bool
}

// NewAdapter creates an adapter with its own empty cache.
func NewAdapter[T any](cfg Config[T]) *Adapter[T] {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL(cfg.ID)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Adapter[T]{
		id:       cfg.ID,
		fetcher:  cfg.Fetcher,
		fallback: cfg.Fallback,
		timeout:  cfg.Timeout,
		cache:    NewTTLCache[T](cfg.TTL, cfg.Clock),
		logger:   cfg.Logger.With().Str("source_id", string(cfg.ID)).Logger(),
		metrics:  cfg.Metrics,
		now:      cfg.Clock,
	}
}

// ID returns the feed identifier.
func (a *Adapter[T]) ID() ID {
	return a.id
}

// Cache exposes the adapter's cache.
func (a *Adapter[T]) Cache() *TTLCache[T] {
	return a.cache
}

// Fetch returns the feed's current reading.
//
// A fresh cache entry is returned without an upstream call. Otherwise one
// live call is made, shared with any concurrent callers, on a context that
// ignores the caller's cancellation but is bounded by the adapter timeout.
// If the caller's ctx ends first, the last cached value is returned as stale.
func (a *Adapter[T]) Fetch(ctx context.Context) Reading[T] {
	if e, ok := a.cache.Fresh(); ok {
		a.metrics.RecordOutcome(string(a.id), telemetry.OutcomeCached)
		return a.success(e, true)
	}

	ch := a.group.DoChan(string(a.id), func() (any, error) {
		return a.refresh(ctx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			a.metrics.RecordCoalesced(string(a.id))
		}
		if res.Err != nil {
			return a.failure(res.Err)
		}
		r, _ := res.Val.(refreshResult[T])
		if r.fallback {
			a.metrics.RecordOutcome(string(a.id), telemetry.OutcomeFallback)
		} else {
			a.metrics.RecordOutcome(string(a.id), telemetry.OutcomeFresh)
		}
		return a.success(r.entry, false)
	case <-ctx.Done():
		return a.failure(ctx.Err())
	}
}

func (a *Adapter[T]) refresh(parent context.Context) (result refreshResult[T], err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: fetcher panicked: %v", provider.ErrUpstreamUnavailable, r)
		}
		a.metrics.RecordUpstream(string(a.id), time.Since(start), err)
	}()

	v, err := a.fetcher.Fetch(ctx)
	if err != nil {
		if !errors.Is(err, provider.ErrNotConfigured) || a.fallback == nil {
			return refreshResult[T]{}, err
		}
		a.logger.Debug().Err(err).Msg("feed not configured, serving fallback")
		v = a.fallback(a.now())
		result.fallback = true
		err = nil
	}

	result.entry = a.cache.Set(v)
	return result, nil
}

func (a *Adapter[T]) success(e Entry[T], cached bool) Reading[T] {
	v := e.Value
	fetchedAt, expiresAt := e.FetchedAt, e.ExpiresAt
	return Reading[T]{
		SourceID:  a.id,
		FetchedAt: &fetchedAt,
		ExpiresAt: &expiresAt,
		Cached:    cached,
		Value:     &v,
	}
}

func (a *Adapter[T]) failure(err error) Reading[T] {
	msg := provider.Describe(err)
	r := Reading[T]{
		SourceID: a.id,
		Stale:    true,
		Error:    &msg,
	}

	e, ok := a.cache.Last()
	if ok {
		v := e.Value
		fetchedAt, expiresAt := e.FetchedAt, e.ExpiresAt
		r.FetchedAt = &fetchedAt
		r.ExpiresAt = &expiresAt
		r.Cached = true
		r.Value = &v
		a.metrics.RecordOutcome(string(a.id), telemetry.OutcomeStale)
	} else {
		a.metrics.RecordOutcome(string(a.id), telemetry.OutcomeFailed)
	}

	a.logger.Warn().
		Err(err).
		Bool("stale", ok).
		Msg("feed fetch failed")

	return r
}
