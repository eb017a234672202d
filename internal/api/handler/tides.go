package handler

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/api/models"
	"github.com/checkthebay/checkthebay/internal/api/response"
	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/provider"
	"github.com/checkthebay/checkthebay/internal/provider/worldtides"
)

// Tide lookup sources reported in TideLookupResponse.Source.
const (
	TideSourceWorldTides = "worldtides"
	TideSourceSample     = "sample"
	TideSourceNOAA       = "noaa"
)

const predictionHours = 48

var coopsStationID = regexp.MustCompile(`^\d{7}$`)

// TideSeriesFetcher returns a tide series for a coordinate.
type TideSeriesFetcher interface {
	Configured() bool
	Series(ctx context.Context, lat, lon float64) (*conditions.TideSeries, error)
}

// TidePredictor returns high/low predictions for a CO-OPS station.
type TidePredictor interface {
	TidePredictions(ctx context.Context, stationID string, rangeHours int) ([]conditions.TideExtreme, error)
}

// TidesConfig holds the dependencies of TidesHandler.
type TidesConfig struct {
	Series    TideSeriesFetcher
	Predictor TidePredictor
	Stations  []conditions.Station
	Logger    zerolog.Logger
	Clock     func() time.Time
}

// TidesHandler serves live tide lookups outside the cached snapshot.
type TidesHandler struct {
	series    TideSeriesFetcher
	predictor TidePredictor
	stations  map[string]conditions.Station
	validate  *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

type coordinateQuery struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}

// NewTidesHandler creates a new TidesHandler.
func NewTidesHandler(cfg TidesConfig) *TidesHandler {
	stations := make(map[string]conditions.Station, len(cfg.Stations))
	for _, s := range cfg.Stations {
		stations[s.ID] = s
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &TidesHandler{
		series:    cfg.Series,
		predictor: cfg.Predictor,
		stations:  stations,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    cfg.Logger,
		now:       now,
	}
}

// GetTides handles GET /v1/tides.
//
// With ?station= it returns CO-OPS hilo predictions for a configured station
// ID or a raw seven-digit CO-OPS ID. With ?lat=&lon= it returns a WorldTides
// series, or the synthetic sample when no key is configured.
func (h *TidesHandler) GetTides(w http.ResponseWriter, r *http.Request) {
	if station := r.URL.Query().Get("station"); station != "" {
		h.byStation(w, r, station)
		return
	}
	h.byCoordinates(w, r)
}

func (h *TidesHandler) byStation(w http.ResponseWriter, r *http.Request, station string) {
	coopsID := station
	name := station
	if s, ok := h.stations[station]; ok {
		coopsID = s.NOAAStationID
		name = s.Name
	} else if !coopsStationID.MatchString(station) {
		response.BadRequest(w, r, "unknown station", []models.FieldError{
			{Field: "station", Message: "must be a configured station or a 7-digit CO-OPS ID", Code: "INVALID"},
		})
		return
	}

	if h.predictor == nil {
		response.ServiceUnavailable(w, r, "tide predictions are not configured")
		return
	}

	extremes, err := h.predictor.TidePredictions(r.Context(), coopsID, predictionHours)
	if err != nil {
		h.upstreamError(w, r, "noaa", err)
		return
	}

	now := h.now()
	series := conditions.TideSeries{
		Station:   name,
		Extremes:  extremes,
		Heights:   []conditions.TidePoint{},
		UpdatedAt: now.UTC(),
	}
	response.JSON(w, r, http.StatusOK, models.TideLookupResponse{
		Source: TideSourceNOAA,
		Series: series,
		Tides:  conditions.NewTides(series, now),
	})
}

func (h *TidesHandler) byCoordinates(w http.ResponseWriter, r *http.Request) {
	q, fieldErrors := h.parseCoordinates(r)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid coordinates", fieldErrors)
		return
	}

	now := h.now()
	var (
		series *conditions.TideSeries
		source = TideSourceWorldTides
	)
	if h.series == nil || !h.series.Configured() {
		sample := worldtides.SampleSeries(now)
		series = &sample
		source = TideSourceSample
	} else {
		var err error
		series, err = h.series.Series(r.Context(), q.Lat, q.Lon)
		if errors.Is(err, provider.ErrNotConfigured) {
			sample := worldtides.SampleSeries(now)
			series, source, err = &sample, TideSourceSample, nil
		}
		if err != nil {
			h.upstreamError(w, r, "worldtides", err)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, models.TideLookupResponse{
		Source: source,
		Series: *series,
		Tides:  conditions.NewTides(*series, now),
	})
}

func (h *TidesHandler) parseCoordinates(r *http.Request) (coordinateQuery, []models.FieldError) {
	var (
		q    coordinateQuery
		errs []models.FieldError
	)
	for _, f := range []struct {
		name string
		dst  *float64
	}{{"lat", &q.Lat}, {"lon", &q.Lon}} {
		raw := r.URL.Query().Get(f.name)
		if raw == "" {
			errs = append(errs, models.FieldError{Field: f.name, Message: "required", Code: "REQUIRED"})
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, models.FieldError{Field: f.name, Message: "must be a number", Code: "INVALID"})
			continue
		}
		*f.dst = v
	}
	if len(errs) > 0 {
		return q, errs
	}

	var verrs validator.ValidationErrors
	if err := h.validate.Struct(q); errors.As(err, &verrs) {
		for _, fe := range verrs {
			field := "lat"
			if fe.Field() == "Lon" {
				field = "lon"
			}
			errs = append(errs, models.FieldError{
				Field:   field,
				Message: "out of range",
				Code:    "OUT_OF_RANGE",
			})
		}
	}
	return q, errs
}

func (h *TidesHandler) upstreamError(w http.ResponseWriter, r *http.Request, feed string, err error) {
	detail := feed + ": " + provider.Describe(err)
	h.logger.Warn().Err(err).Str("feed", feed).Msg("tide lookup failed")
	response.BadGateway(w, r, detail)
}
