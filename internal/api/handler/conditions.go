// Package handler provides HTTP handlers for the CheckTheBay API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/api/models"
	"github.com/checkthebay/checkthebay/internal/api/response"
	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/worker"
)

// SnapshotReader loads the last persisted snapshot. A nil snapshot with a
// nil error means nothing has been saved yet.
type SnapshotReader interface {
	Load(ctx context.Context) (*conditions.Snapshot, error)
}

// Refresher runs the poll pipeline on demand.
type Refresher interface {
	Run(ctx context.Context) (*worker.PollResult, error)
}

// ConditionsHandler serves the snapshot and its sections.
type ConditionsHandler struct {
	store     SnapshotReader
	refresher Refresher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewConditionsHandler creates a new ConditionsHandler. refresher may be nil,
// in which case POST /v1/conditions/refresh answers 503.
func NewConditionsHandler(store SnapshotReader, refresher Refresher, logger zerolog.Logger) *ConditionsHandler {
	return &ConditionsHandler{
		store:     store,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
	}
}

// load returns the stored snapshot, or the empty cold-start snapshot.
func (h *ConditionsHandler) load(w http.ResponseWriter, r *http.Request) (*conditions.Snapshot, bool) {
	snap, err := h.store.Load(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load snapshot")
		response.InternalError(w, r, "conditions snapshot could not be read")
		return nil, false
	}
	if snap == nil {
		snap = conditions.EmptySnapshot(h.now())
	}
	// Snapshots change at most once per poll.
	w.Header().Set("Cache-Control", "public, max-age=60")
	return snap, true
}

// GetConditions handles GET /v1/conditions - the full snapshot.
func (h *ConditionsHandler) GetConditions(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.load(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, snap)
}

// GetTides handles GET /v1/conditions/tides.
func (h *ConditionsHandler) GetTides(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.load(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, models.TidesResponse{
		SectionResponse: models.NewSection(snap),
		Tides:           snap.Tides,
	})
}

// GetStations handles GET /v1/conditions/stations.
func (h *ConditionsHandler) GetStations(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.load(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, models.StationsResponse{
		SectionResponse: models.NewSection(snap),
		Stations:        snap.Stations,
	})
}

// GetWindField handles GET /v1/conditions/wind-field.
func (h *ConditionsHandler) GetWindField(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.load(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, models.WindFieldResponse{
		SectionResponse: models.NewSection(snap),
		WindField:       snap.WindField,
	})
}

// GetSummary handles GET /v1/conditions/summary.
func (h *ConditionsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.load(w, r)
	if !ok {
		return
	}
	if snap.Summary == nil {
		w.Header().Set("Cache-Control", "no-store")
		response.ServiceUnavailable(w, r, "no conditions summary is available yet")
		return
	}
	response.JSON(w, r, http.StatusOK, snap.Summary)
}

// Refresh handles POST /v1/conditions/refresh - runs a poll and returns the
// saved snapshot.
func (h *ConditionsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		response.ServiceUnavailable(w, r, "on-demand refresh is not enabled")
		return
	}

	// A client hanging up must not turn in-flight fetches into feed errors
	// in the saved snapshot; PollJob bounds the run with its own timeout.
	result, err := h.refresher.Run(context.WithoutCancel(r.Context()))
	if err != nil || result == nil || result.Snapshot == nil {
		h.logger.Error().Err(err).Msg("on-demand refresh failed")
		response.InternalError(w, r, "conditions refresh failed")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	if result.RunID != "" {
		w.Header().Set("X-Run-Id", result.RunID)
	}
	response.JSON(w, r, http.StatusOK, result.Snapshot)
}
