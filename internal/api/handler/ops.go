package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/checkthebay/checkthebay/internal/api/models"
	"github.com/checkthebay/checkthebay/internal/api/response"
	"github.com/checkthebay/checkthebay/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	store     SnapshotReader
}

// NewOpsHandler creates a new OpsHandler. registry and store may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, store SnapshotReader) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		store:     store,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - the snapshot store must be
// readable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	store := h.storeStatus(r.Context())
	health := models.Health{
		Status: store.Status,
		Time:   models.Timestamp(time.Now()),
	}
	if store.Status != models.HealthStatusOK {
		health.Details = map[string]interface{}{"snapshotStore": store.Detail}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - per-feed breaker state and
// snapshot freshness.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{h.storeStatus(r.Context())},
		Providers:  h.providerStatuses(),
	}

	down := 0
	for _, p := range status.Providers {
		switch p.Status {
		case models.HealthStatusFail:
			down++
			status.Status = models.HealthStatusDegraded
		case models.HealthStatusDegraded:
			status.Status = models.HealthStatusDegraded
		}
	}
	if len(status.Providers) > 0 && down == len(status.Providers) {
		status.Status = models.HealthStatusFail
	}
	if status.Subsystems[0].Status == models.HealthStatusFail {
		status.Status = models.HealthStatusFail
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) storeStatus(ctx context.Context) models.SubsystemStatus {
	st := models.SubsystemStatus{Name: "snapshot-store", Status: models.HealthStatusOK}
	if h.store == nil {
		return st
	}

	snap, err := h.store.Load(ctx)
	switch {
	case err != nil:
		st.Status = models.HealthStatusFail
		st.Detail = strPtr(err.Error())
	case snap == nil:
		st.Detail = strPtr("no snapshot saved yet")
	case snap.Stale:
		st.Status = models.HealthStatusDegraded
		st.Detail = strPtr("last snapshot is stale")
	}
	return st
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	feeds := h.registry.All()
	out := make([]models.ProviderStatus, 0, len(feeds))
	for _, f := range feeds {
		ps := models.ProviderStatus{
			Provider:      f.Name,
			Status:        healthFromFeed(f.Status()),
			CircuitState:  f.CircuitState.String(),
			Failures:      f.Counts.ConsecutiveFailures,
			LastSuccessAt: models.TimestampPtr(f.LastSuccessAt),
			LastFailureAt: models.TimestampPtr(f.LastFailureAt),
		}
		if f.LastError != "" {
			ps.Message = strPtr(f.LastError)
		}
		out = append(out, ps)
	}
	return out
}

func healthFromFeed(status string) models.HealthStatus {
	switch status {
	case resilience.StatusDown:
		return models.HealthStatusFail
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

func strPtr(s string) *string {
	return &s
}
