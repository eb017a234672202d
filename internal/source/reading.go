// Package source wraps each upstream feed in an adapter that owns a
// single-entry TTL cache, isolates failures and coalesces concurrent fetches.
package source

import "time"

// ID names one of the closed set of feeds that make up a snapshot.
type ID string

// Feed identifiers.
const (
	Tide       ID = "tide"
	WaterLevel ID = "waterLevel"
	Weather    ID = "weather"
	Wind       ID = "wind"
	WindField  ID = "windField"
	Marine     ID = "marine"
	Moon       ID = "moon"
	Radar      ID = "radar"
)

// AllIDs returns every feed identifier in snapshot order.
func AllIDs() []ID {
	return []ID{Tide, WaterLevel, Weather, Wind, WindField, Marine, Moon, Radar}
}

// DefaultTTL returns the freshness window for a feed.
func DefaultTTL(id ID) time.Duration {
	switch id {
	case Tide, WaterLevel:
		return 6 * time.Minute
	case Weather, Wind:
		return 5 * time.Minute
	case WindField:
		return 15 * time.Minute
	case Marine:
		return 30 * time.Minute
	case Moon:
		return 6 * time.Hour
	case Radar:
		return 10 * time.Minute
	default:
		return 5 * time.Minute
	}
}

// Reading is the result of one adapter fetch.
//
// Value is nil only when the feed failed and nothing was ever cached.
// Stale is true whenever Value did not come from a fetch that succeeded
// within its freshness window.
type Reading[T any] struct {
	SourceID  ID         `json:"sourceId"`
	FetchedAt *time.Time `json:"fetchedAt"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Stale     bool       `json:"stale"`
	Cached    bool       `json:"cached"`
	Value     *T         `json:"value"`
	Error     *string    `json:"error"`
}

// Failed reports whether the reading carries an error.
func (r Reading[T]) Failed() bool {
	return r.Error != nil
}

// Err returns the error message, or "" when the fetch succeeded.
func (r Reading[T]) Err() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}
