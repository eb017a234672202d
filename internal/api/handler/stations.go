package handler

import (
	"net/http"

	"github.com/checkthebay/checkthebay/internal/api/models"
	"github.com/checkthebay/checkthebay/internal/api/response"
	"github.com/checkthebay/checkthebay/internal/conditions"
)

// StationsHandler lists the configured stations.
type StationsHandler struct {
	stations []conditions.Station
	primary  string
}

// NewStationsHandler creates a new StationsHandler.
func NewStationsHandler(stations []conditions.Station, primaryID string) *StationsHandler {
	if primary, ok := conditions.PrimaryStation(stations, primaryID); ok {
		primaryID = primary.ID
	}
	return &StationsHandler{stations: stations, primary: primaryID}
}

// ListStations handles GET /v1/stations.
func (h *StationsHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	stations := h.stations
	if stations == nil {
		stations = []conditions.Station{}
	}
	response.JSON(w, r, http.StatusOK, models.StationListResponse{
		Primary:  h.primary,
		Stations: stations,
	})
}
