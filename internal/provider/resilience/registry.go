package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Feed status values reported by FeedHealth.Status.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// FeedHealth is a point-in-time view of one upstream feed.
type FeedHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// IsHealthy reports whether the breaker is closed.
func (h *FeedHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded reports whether the breaker is probing (half-open).
func (h *FeedHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy reports whether the breaker is open.
func (h *FeedHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Status maps the breaker state onto ok, degraded or down.
func (h *FeedHealth) Status() string {
	switch {
	case h.IsUnhealthy():
		return StatusDown
	case h.IsDegraded():
		return StatusDegraded
	default:
		return StatusOK
	}
}

// Registry tracks every feed client so the ops endpoints can report on them.
type Registry struct {
	mu    sync.RWMutex
	feeds map[string]*trackedFeed
	now   func() time.Time
}

type trackedFeed struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		feeds: make(map[string]*trackedFeed),
		now:   time.Now,
	}
}

// Register adds a client under name, replacing any previous one.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds[name] = &trackedFeed{client: client}
}

// Unregister removes a feed.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.feeds, name)
}

// RecordSuccess stamps the last successful call for a feed.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.feeds[name]; ok {
		now := r.now()
		f.lastSuccessAt = &now
	}
}

// RecordFailure stamps the last failed call for a feed along with its error.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.feeds[name]; ok {
		now := r.now()
		f.lastFailureAt = &now
		if err != nil {
			f.lastError = err.Error()
		}
	}
}

// Health returns the health of one feed, or nil if it is not registered.
func (r *Registry) Health(name string) *FeedHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.feeds[name]
	if !ok {
		return nil
	}
	return f.health(name)
}

// All returns the health of every feed ordered by name.
func (r *Registry) All() []*FeedHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*FeedHealth, 0, len(r.feeds))
	for name, f := range r.feeds {
		out = append(out, f.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered feed names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.feeds))
	for name := range r.feeds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered feeds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.feeds)
}

func (f *trackedFeed) health(name string) *FeedHealth {
	return &FeedHealth{
		Name:          name,
		CircuitState:  f.client.CircuitBreakerState(),
		Counts:        f.client.CircuitBreakerCounts(),
		LastSuccessAt: f.lastSuccessAt,
		LastFailureAt: f.lastFailureAt,
		LastError:     f.lastError,
	}
}
