// Package aggregator fans out to every feed adapter in parallel and folds
// the readings into a single conditions snapshot.
package aggregator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/source"
)

// Config configures an Aggregator.
type Config struct {
	Sources          Sources
	Stations         []conditions.Station
	PrimaryStationID string
	Logger           zerolog.Logger
	Clock            func() time.Time
}

// Aggregator builds snapshots. It holds no state of its own beyond the
// adapters it was given.
type Aggregator struct {
	sources   Sources
	stations  []conditions.Station
	primaryID string
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates an Aggregator.
func New(cfg Config) *Aggregator {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	primaryID := cfg.PrimaryStationID
	if primary, ok := conditions.PrimaryStation(cfg.Stations, primaryID); ok {
		primaryID = primary.ID
	}

	return &Aggregator{
		sources:   cfg.Sources,
		stations:  cfg.Stations,
		primaryID: primaryID,
		logger:    cfg.Logger,
		now:       cfg.Clock,
	}
}

// Stations returns the configured stations in display order.
func (a *Aggregator) Stations() []conditions.Station {
	return a.stations
}

// readings holds one reading per feed. Unconfigured feeds stay zero.
type readings struct {
	tide       source.Reading[conditions.TideSeries]
	waterLevel source.Reading[conditions.WaterLevels]
	weather    source.Reading[conditions.Weather]
	wind       source.Reading[map[string]conditions.StationWind]
	windField  source.Reading[conditions.WindField]
	marine     source.Reading[conditions.Marine]
	moon       source.Reading[conditions.Moon]
	radar      source.Reading[conditions.Radar]
}

// Run fetches every configured feed concurrently, waits for all of them and
// returns the merged snapshot. It never fails: feed errors are listed in
// Snapshot.Errors and their sections fall back to empty shapes.
func (a *Aggregator) Run(ctx context.Context) *conditions.Snapshot {
	start := time.Now()
	r := a.fetchAll(ctx)
	snap := a.build(r)

	a.logger.Info().
		Dur("duration", time.Since(start)).
		Int("errors", len(snap.Errors)).
		Bool("stale", snap.Stale).
		Msg("conditions aggregated")

	return snap
}

func (a *Aggregator) fetchAll(ctx context.Context) readings {
	var (
		r  readings
		wg sync.WaitGroup
	)

	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	s := a.sources
	if s.Tide != nil {
		run(func() { r.tide = s.Tide.Fetch(ctx) })
	}
	if s.WaterLevel != nil {
		run(func() { r.waterLevel = s.WaterLevel.Fetch(ctx) })
	}
	if s.Weather != nil {
		run(func() { r.weather = s.Weather.Fetch(ctx) })
	}
	if s.Wind != nil {
		run(func() { r.wind = s.Wind.Fetch(ctx) })
	}
	if s.WindField != nil {
		run(func() { r.windField = s.WindField.Fetch(ctx) })
	}
	if s.Marine != nil {
		run(func() { r.marine = s.Marine.Fetch(ctx) })
	}
	if s.Moon != nil {
		run(func() { r.moon = s.Moon.Fetch(ctx) })
	}
	if s.Radar != nil {
		run(func() { r.radar = s.Radar.Fetch(ctx) })
	}

	wg.Wait()
	return r
}

func (a *Aggregator) build(r readings) *conditions.Snapshot {
	now := a.now().UTC()
	snap := conditions.EmptySnapshot(now)
	snap.Stale = false

	var tideHeights []conditions.TidePoint
	if r.tide.Value != nil {
		snap.Tides = conditions.NewTides(*r.tide.Value, now)
		tideHeights = r.tide.Value.Heights
	}
	if r.weather.Value != nil {
		snap.Weather = *r.weather.Value
	}
	if r.windField.Value != nil {
		snap.WindField = *r.windField.Value
		if snap.WindField.Vectors == nil {
			snap.WindField.Vectors = []conditions.WindVector{}
		}
	}
	if r.marine.Value != nil {
		snap.Marine = *r.marine.Value
	}
	if r.moon.Value != nil {
		snap.Moon = *r.moon.Value
	}
	if r.radar.Value != nil {
		snap.Radar = *r.radar.Value
	}

	var winds map[string]conditions.StationWind
	if r.wind.Value != nil {
		winds = *r.wind.Value
	}
	var levels conditions.WaterLevels
	if r.waterLevel.Value != nil {
		levels = *r.waterLevel.Value
	}

	var primary *conditions.StationConditions
	for _, st := range a.stations {
		sc := buildStation(st, winds[st.ID], levels)
		if st.ID == a.primaryID {
			sc.TidePhase = conditions.ResolveTidePhase(tideHeights, now)
			if sc.TidePhase == nil {
				sc.TidePhase = snap.Tides.Trend
			}
			primary = &sc
		}
		snap.Stations = append(snap.Stations, sc)
	}

	snap.Wind = buildWind(winds, a.primaryID)

	if primary != nil && (primary.WindSpeedKts != nil || primary.WaterLevelFt != nil) {
		rating, reason := conditions.ComputeRating(conditions.RatingInput{
			WindSpeedKts: primary.WindSpeedKts,
			WaterLevelFt: primary.WaterLevelFt,
			VisibilityMi: snap.Weather.VisibilityMi,
			HasAirTemp:   primary.AirTempF != nil,
			HasWaterTemp: primary.WaterTempF != nil,
		})
		snap.Rating = &rating
		snap.RatingReason = &reason
		snap.Summary = conditions.BuildSummary(*primary, rating, snap.Marine.WaveHeightFt, now)
	}

	for _, id := range source.AllIDs() {
		msg, stale := r.status(id)
		if msg != "" {
			snap.Errors = append(snap.Errors, fmt.Sprintf("%s: %s", id, msg))
		}
		if stale {
			snap.Stale = true
		}
	}

	if r.waterLevel.Value != nil && !r.waterLevel.Failed() {
		for _, gauge := range missingGauges(a.stations, levels) {
			snap.Errors = append(snap.Errors, fmt.Sprintf("%s: station %s: no reading", source.WaterLevel, gauge))
		}
	}

	return snap
}

// missingGauges lists the CO-OPS gauges, in station order, that no station
// has a level for. A partly failed water level fetch still succeeds, so this
// is where those gaps surface.
func missingGauges(stations []conditions.Station, levels conditions.WaterLevels) []string {
	covered := make(map[string]bool)
	for _, st := range stations {
		if _, ok := levels[st.ID]; ok && st.NOAAStationID != "" {
			covered[st.NOAAStationID] = true
		}
	}

	var missing []string
	seen := make(map[string]bool)
	for _, st := range stations {
		gauge := st.NOAAStationID
		if gauge == "" || covered[gauge] || seen[gauge] {
			continue
		}
		seen[gauge] = true
		missing = append(missing, gauge)
	}
	return missing
}

func (r *readings) status(id source.ID) (string, bool) {
	switch id {
	case source.Tide:
		return r.tide.Err(), r.tide.Stale
	case source.WaterLevel:
		return r.waterLevel.Err(), r.waterLevel.Stale
	case source.Weather:
		return r.weather.Err(), r.weather.Stale
	case source.Wind:
		return r.wind.Err(), r.wind.Stale
	case source.WindField:
		return r.windField.Err(), r.windField.Stale
	case source.Marine:
		return r.marine.Err(), r.marine.Stale
	case source.Moon:
		return r.moon.Err(), r.moon.Stale
	case source.Radar:
		return r.radar.Err(), r.radar.Stale
	default:
		return "", false
	}
}

func buildStation(st conditions.Station, wind conditions.StationWind, levels conditions.WaterLevels) conditions.StationConditions {
	sc := conditions.StationConditions{
		StationID:    st.ID,
		Name:         st.Name,
		Coordinates:  st.Coordinates(),
		WindSpeedKts: wind.SpeedKts,
		WindGustKts:  wind.GustKts,
		WindDirDeg:   wind.DirectionDeg,
		AirTempF:     wind.AirTempF,
	}

	var sources []string
	if wind != (conditions.StationWind{}) {
		sources = append(sources, "nws")
	}

	if level, ok := levels[st.ID]; ok {
		sc.WaterLevelFt = level.WaterLevelFt
		sc.WaterTempF = level.WaterTempF
		sc.ObservedAt = level.Time
		sources = append(sources, "noaa")
	}
	if sc.ObservedAt == nil {
		sc.ObservedAt = wind.StartTime
	}

	sc.Source = strings.Join(sources, "+")
	if sc.Source == "" {
		sc.Source = "none"
	}
	return sc
}

func buildWind(winds map[string]conditions.StationWind, primaryID string) conditions.Wind {
	wind := conditions.EmptyWind()
	for id, w := range winds {
		wind.Stations[id] = w
	}

	p, ok := winds[primaryID]
	if !ok {
		return wind
	}
	wind.SpeedKts = p.SpeedKts
	wind.GustKts = p.GustKts
	wind.DirectionDeg = p.DirectionDeg
	if p.DirectionDeg != nil {
		wind.DirectionCardinal = conditions.Ptr(conditions.DegreesToCardinal(*p.DirectionDeg))
	}
	return wind
}
