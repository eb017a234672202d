package aggregator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/provider/gcoos"
	"github.com/checkthebay/checkthebay/internal/provider/noaa"
	"github.com/checkthebay/checkthebay/internal/provider/nws"
	"github.com/checkthebay/checkthebay/internal/provider/radar"
	"github.com/checkthebay/checkthebay/internal/provider/usno"
	"github.com/checkthebay/checkthebay/internal/provider/worldtides"
	"github.com/checkthebay/checkthebay/internal/source"
	"github.com/checkthebay/checkthebay/internal/telemetry"
)

// Sources is the closed set of feed adapters behind a snapshot. A nil field
// is a feed that is not configured; its section keeps the fallback shape.
type Sources struct {
	Tide       *source.Adapter[conditions.TideSeries]
	WaterLevel *source.Adapter[conditions.WaterLevels]
	Weather    *source.Adapter[conditions.Weather]
	Wind       *source.Adapter[map[string]conditions.StationWind]
	WindField  *source.Adapter[conditions.WindField]
	Marine     *source.Adapter[conditions.Marine]
	Moon       *source.Adapter[conditions.Moon]
	Radar      *source.Adapter[conditions.Radar]
}

// Clients are the upstream feed clients the adapters wrap.
type Clients struct {
	WorldTides *worldtides.Client
	NOAA       *noaa.Client
	NWS        *nws.Client
	GCOOS      *gcoos.Client
	Radar      *radar.Client
	USNO       *usno.Client
}

// SourcesConfig configures NewSources.
type SourcesConfig struct {
	Clients  Clients
	Stations []conditions.Station

	// PrimaryStationID selects the station used for weather and moon lookups.
	PrimaryStationID string

	// TideLat and TideLon locate the WorldTides series.
	TideLat, TideLon float64

	MarineZone string

	// TTLs overrides per-feed freshness windows.
	TTLs map[source.ID]time.Duration

	// Timeout bounds each upstream fetch.
	Timeout time.Duration

	Logger  zerolog.Logger
	Metrics *telemetry.FeedMetrics
	Clock   func() time.Time
}

// NewSources wires each client into its adapter. Feeds whose client is nil
// are left unset.
func NewSources(cfg SourcesConfig) Sources {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	primary, _ := conditions.PrimaryStation(cfg.Stations, cfg.PrimaryStationID)
	stations := cfg.Stations
	cl := cfg.Clients

	var s Sources

	if cl.WorldTides != nil {
		s.Tide = newAdapter(cfg, source.Tide,
			func(ctx context.Context) (conditions.TideSeries, error) {
				series, err := cl.WorldTides.Series(ctx, cfg.TideLat, cfg.TideLon)
				if err != nil {
					return conditions.TideSeries{}, err
				}
				return *series, nil
			},
			worldtides.SampleSeries)
	}

	if cl.NOAA != nil {
		s.WaterLevel = newAdapter(cfg, source.WaterLevel,
			func(ctx context.Context) (conditions.WaterLevels, error) {
				return cl.NOAA.LatestWaterLevels(ctx, stations)
			}, nil)
	}

	if cl.NWS != nil {
		s.Weather = newAdapter(cfg, source.Weather,
			func(ctx context.Context) (conditions.Weather, error) {
				w, err := cl.NWS.LatestObservation(ctx, primary.Lat, primary.Lon)
				if err != nil {
					return conditions.Weather{}, err
				}
				return *w, nil
			}, nil)

		s.Wind = newAdapter(cfg, source.Wind,
			func(ctx context.Context) (map[string]conditions.StationWind, error) {
				return cl.NWS.StationWinds(ctx, stations)
			}, nil)

		s.Marine = newAdapter(cfg, source.Marine,
			func(ctx context.Context) (conditions.Marine, error) {
				m, err := cl.NWS.ZoneForecast(ctx, cfg.MarineZone)
				if err != nil {
					return conditions.Marine{}, err
				}
				return *m, nil
			}, nil)
	}

	if cl.GCOOS != nil {
		s.WindField = newAdapter(cfg, source.WindField,
			func(ctx context.Context) (conditions.WindField, error) {
				f, err := cl.GCOOS.WindField(ctx)
				if err != nil {
					return conditions.WindField{}, err
				}
				return *f, nil
			}, nil)
	}

	if cl.USNO != nil {
		s.Moon = newAdapter(cfg, source.Moon,
			func(ctx context.Context) (conditions.Moon, error) {
				m, err := cl.USNO.Moon(ctx, cfg.Clock(), primary.Lat, primary.Lon)
				if err != nil {
					return conditions.Moon{}, err
				}
				return *m, nil
			}, nil)
	}

	if cl.Radar != nil {
		s.Radar = newAdapter(cfg, source.Radar,
			func(ctx context.Context) (conditions.Radar, error) {
				r, err := cl.Radar.Latest(ctx)
				if err != nil {
					return conditions.Radar{}, err
				}
				return *r, nil
			}, nil)
	}

	return s
}

func newAdapter[T any](cfg SourcesConfig, id source.ID, fetch func(context.Context) (T, error), fallback func(time.Time) T) *source.Adapter[T] {
	timeout := cfg.Timeout
	// ERDDAP needs the top of the allowed range
	if id == source.WindField && timeout < gcoos.DefaultTimeout {
		timeout = gcoos.DefaultTimeout
	}

	return source.NewAdapter(source.Config[T]{
		ID:       id,
		Fetcher:  source.FetcherFunc[T](fetch),
		Fallback: fallback,
		TTL:      cfg.TTLs[id],
		Timeout:  timeout,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
		Clock:    cfg.Clock,
	})
}
