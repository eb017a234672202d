package models

import (
	"encoding/json"
	"time"

	"github.com/checkthebay/checkthebay/internal/conditions"
)

// SectionResponse wraps one section of the snapshot with the snapshot's
// freshness fields.
type SectionResponse struct {
	UpdatedAt time.Time `json:"updatedAt"`
	Stale     bool      `json:"stale"`
}

// TidesResponse is returned by GET /v1/conditions/tides.
type TidesResponse struct {
	SectionResponse
	Tides conditions.Tides `json:"tides"`
}

// StationsResponse is returned by GET /v1/conditions/stations.
type StationsResponse struct {
	SectionResponse
	Stations []conditions.StationConditions `json:"stations"`
}

// WindFieldResponse is returned by GET /v1/conditions/wind-field.
type WindFieldResponse struct {
	SectionResponse
	WindField conditions.WindField `json:"windField"`
}

// NewSection copies the freshness fields of a snapshot.
func NewSection(snap *conditions.Snapshot) SectionResponse {
	return SectionResponse{UpdatedAt: snap.UpdatedAt, Stale: snap.Stale}
}

// StationListResponse is returned by GET /v1/stations.
type StationListResponse struct {
	Primary  string               `json:"primary"`
	Stations []conditions.Station `json:"stations"`
}

// TideLookupResponse is returned by GET /v1/tides.
type TideLookupResponse struct {
	Source string                `json:"source"`
	Series conditions.TideSeries `json:"series"`
	Tides  conditions.Tides      `json:"tides"`
}

// ReefsResponse is returned by GET /v1/reefs/inshore. Entries are passed
// through as stored.
type ReefsResponse struct {
	Reefs []json.RawMessage `json:"reefs"`
}
