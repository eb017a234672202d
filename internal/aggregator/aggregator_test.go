package aggregator_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkthebay/checkthebay/internal/aggregator"
	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/provider/resilience"
	"github.com/checkthebay/checkthebay/internal/source"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func adapter[T any](id source.ID, fn func(ctx context.Context) (T, error)) *source.Adapter[T] {
	return source.NewAdapter(source.Config[T]{
		ID:      id,
		Fetcher: source.FetcherFunc[T](fn),
		Timeout: time.Second,
		Logger:  zerolog.Nop(),
		Clock:   clock,
	})
}

func failing[T any](id source.ID) *source.Adapter[T] {
	return adapter(id, func(context.Context) (T, error) {
		var zero T
		return zero, &resilience.StatusError{StatusCode: 503}
	})
}

func failingSources() aggregator.Sources {
	return aggregator.Sources{
		Tide:       failing[conditions.TideSeries](source.Tide),
		WaterLevel: failing[conditions.WaterLevels](source.WaterLevel),
		Weather:    failing[conditions.Weather](source.Weather),
		Wind:       failing[map[string]conditions.StationWind](source.Wind),
		WindField:  failing[conditions.WindField](source.WindField),
		Marine:     failing[conditions.Marine](source.Marine),
		Moon:       failing[conditions.Moon](source.Moon),
		Radar:      failing[conditions.Radar](source.Radar),
	}
}

func newAggregator(s aggregator.Sources) *aggregator.Aggregator {
	return aggregator.New(aggregator.Config{
		Sources:          s,
		Stations:         conditions.DefaultStations(),
		PrimaryStationID: conditions.PrimaryStationID,
		Logger:           zerolog.Nop(),
		Clock:            clock,
	})
}

func TestRun_AllSourcesFail(t *testing.T) {
	agg := newAggregator(failingSources())

	snap := agg.Run(context.Background())

	require.Len(t, snap.Errors, len(source.AllIDs()))
	for i, id := range source.AllIDs() {
		assert.True(t, strings.HasPrefix(snap.Errors[i], string(id)+": "), snap.Errors[i])
		assert.Contains(t, snap.Errors[i], "503")
	}

	assert.Nil(t, snap.Rating)
	assert.Nil(t, snap.RatingReason)
	assert.Nil(t, snap.Summary)
	assert.True(t, snap.Stale, "a failed reading is stale even on a cold start")
	assert.Equal(t, testNow, snap.UpdatedAt)

	assert.NotNil(t, snap.Tides.Extremes)
	assert.NotNil(t, snap.WindField.Vectors)
	assert.NotNil(t, snap.Wind.Stations)
	assert.Nil(t, snap.Weather.TempF)
	assert.Nil(t, snap.Radar.ImageURL)

	require.Len(t, snap.Stations, 4)
	for _, st := range snap.Stations {
		assert.Equal(t, "none", st.Source)
		assert.Nil(t, st.WindSpeedKts)
		assert.Nil(t, st.WaterLevelFt)
	}
}

func TestRun_HappyPath(t *testing.T) {
	ts := testNow.Unix()
	s := failingSources()

	s.Tide = adapter(source.Tide, func(context.Context) (conditions.TideSeries, error) {
		return conditions.TideSeries{
			Station: "Point Clear, AL",
			Extremes: []conditions.TideExtreme{
				{Type: conditions.ExtremeLow, TimestampSeconds: ts - 3*3600, HeightFt: 0.2},
				{Type: conditions.ExtremeHigh, TimestampSeconds: ts + 3*3600, HeightFt: 1.6},
			},
			Heights: []conditions.TidePoint{
				{TimestampSeconds: ts - 1800, HeightFt: 0.8},
				{TimestampSeconds: ts + 1800, HeightFt: 1.1},
			},
			UpdatedAt: testNow,
		}, nil
	})
	s.WaterLevel = adapter(source.WaterLevel, func(context.Context) (conditions.WaterLevels, error) {
		return conditions.WaterLevels{
			conditions.PrimaryStationID: {
				NOAAStationID: "8737048",
				Time:          conditions.Ptr("2024-06-01T11:54:00Z"),
				WaterLevelFt:  conditions.Ptr(0.9),
				WaterTempF:    conditions.Ptr(81.0),
			},
			"lower_bay":     {NOAAStationID: "8735180", WaterLevelFt: conditions.Ptr(1.0)},
			"gulf_entrance": {NOAAStationID: "8732899", WaterLevelFt: conditions.Ptr(0.7)},
		}, nil
	})
	s.Wind = adapter(source.Wind, func(context.Context) (map[string]conditions.StationWind, error) {
		return map[string]conditions.StationWind{
			conditions.PrimaryStationID: {
				SpeedKts:     conditions.Ptr(8.0),
				DirectionDeg: conditions.Ptr(225.0),
				AirTempF:     conditions.Ptr(84.0),
				StartTime:    conditions.Ptr("2024-06-01T12:00:00Z"),
			},
			"upper_bay": {SpeedKts: conditions.Ptr(10.0)},
		}, nil
	})
	s.Marine = adapter(source.Marine, func(context.Context) (conditions.Marine, error) {
		return conditions.Marine{Zone: conditions.Ptr("GMZ631"), WaveHeightFt: conditions.Ptr(1.0)}, nil
	})

	snap := newAggregator(s).Run(context.Background())

	require.NotNil(t, snap.Rating)
	assert.Equal(t, conditions.RatingGood, *snap.Rating)
	assert.Equal(t, conditions.ReasonLightWinds, *snap.RatingReason)

	require.NotNil(t, snap.Summary)
	assert.Equal(t, conditions.PrimaryStationID, snap.Summary.StationID)
	assert.Equal(t, 1.0, *snap.Summary.WaveHeightFt)
	require.NotNil(t, snap.Summary.TidePhase)
	assert.Equal(t, conditions.TidePhaseRising, *snap.Summary.TidePhase)

	assert.Equal(t, "SW", *snap.Wind.DirectionCardinal)
	assert.Equal(t, 8.0, *snap.Wind.SpeedKts)
	assert.Len(t, snap.Wind.Stations, 2)

	primary := snap.Stations[0]
	assert.Equal(t, "nws+noaa", primary.Source)
	assert.Equal(t, "2024-06-01T11:54:00Z", *primary.ObservedAt)
	assert.Equal(t, 81.0, *primary.WaterTempF)
	require.NotNil(t, primary.TidePhase)

	upper := snap.Stations[1]
	assert.Equal(t, "nws", upper.Source)
	assert.Nil(t, upper.TidePhase, "only the primary station carries a tide phase")

	// weather, wind field, moon and radar still fail
	assert.Len(t, snap.Errors, 4)
	assert.True(t, strings.HasPrefix(snap.Errors[0], "weather: "))
}

func TestRun_PartialWaterLevelsAreReported(t *testing.T) {
	s := aggregator.Sources{}
	s.WaterLevel = adapter(source.WaterLevel, func(context.Context) (conditions.WaterLevels, error) {
		return conditions.WaterLevels{
			conditions.PrimaryStationID: {NOAAStationID: "8737048", WaterLevelFt: conditions.Ptr(0.9)},
			"gulf_entrance":             {NOAAStationID: "8732899", WaterLevelFt: conditions.Ptr(0.7)},
		}, nil
	})

	snap := newAggregator(s).Run(context.Background())

	// upper_bay and lower_bay share one gauge; it is reported once.
	assert.Equal(t, []string{"waterLevel: station 8735180: no reading"}, snap.Errors)
	assert.False(t, snap.Stale)
	assert.Nil(t, snap.Stations[1].WaterLevelFt)
	require.NotNil(t, snap.Stations[0].WaterLevelFt)
}

func TestRun_StaleWhenServingExpiredCache(t *testing.T) {
	now := testNow
	fail := false
	tick := func() time.Time { return now }

	radar := source.NewAdapter(source.Config[conditions.Radar]{
		ID: source.Radar,
		Fetcher: source.FetcherFunc[conditions.Radar](func(context.Context) (conditions.Radar, error) {
			if fail {
				return conditions.Radar{}, errors.New("boom")
			}
			return conditions.Radar{ImageURL: conditions.Ptr("https://example.test/mob.gif")}, nil
		}),
		Logger: zerolog.Nop(),
		Clock:  tick,
	})

	agg := aggregator.New(aggregator.Config{
		Sources:  aggregator.Sources{Radar: radar},
		Stations: conditions.DefaultStations(),
		Logger:   zerolog.Nop(),
		Clock:    tick,
	})

	first := agg.Run(context.Background())
	assert.False(t, first.Stale)
	assert.Empty(t, first.Errors)

	fail = true
	now = now.Add(time.Hour)

	second := agg.Run(context.Background())
	assert.True(t, second.Stale)
	require.Len(t, second.Errors, 1)
	assert.Equal(t, "https://example.test/mob.gif", *second.Radar.ImageURL)
}

func TestRun_UnconfiguredSourcesAreSilent(t *testing.T) {
	snap := newAggregator(aggregator.Sources{}).Run(context.Background())

	assert.Empty(t, snap.Errors)
	assert.Nil(t, snap.Rating)
	assert.Len(t, snap.Stations, 4)
}

func TestRun_HighWindRatesBad(t *testing.T) {
	s := aggregator.Sources{
		Wind: adapter(source.Wind, func(context.Context) (map[string]conditions.StationWind, error) {
			return map[string]conditions.StationWind{
				conditions.PrimaryStationID: {SpeedKts: conditions.Ptr(24.0)},
			}, nil
		}),
	}

	snap := newAggregator(s).Run(context.Background())

	require.NotNil(t, snap.Rating)
	assert.Equal(t, conditions.RatingBad, *snap.Rating)
	assert.Equal(t, conditions.ReasonStrongWinds, *snap.RatingReason)
}
