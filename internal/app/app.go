// Package app assembles the feed clients, adapters, aggregator, snapshot
// store and poll job shared by the API and worker binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/aggregator"
	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/config"
	"github.com/checkthebay/checkthebay/internal/database"
	"github.com/checkthebay/checkthebay/internal/provider/gcoos"
	"github.com/checkthebay/checkthebay/internal/provider/noaa"
	"github.com/checkthebay/checkthebay/internal/provider/nws"
	"github.com/checkthebay/checkthebay/internal/provider/radar"
	"github.com/checkthebay/checkthebay/internal/provider/resilience"
	"github.com/checkthebay/checkthebay/internal/provider/usno"
	"github.com/checkthebay/checkthebay/internal/provider/worldtides"
	"github.com/checkthebay/checkthebay/internal/snapshot"
	"github.com/checkthebay/checkthebay/internal/source"
	"github.com/checkthebay/checkthebay/internal/telemetry"
	"github.com/checkthebay/checkthebay/internal/worker"
)

// App is the assembled conditions pipeline.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Registry   *resilience.Registry
	Stations   []conditions.Station
	Clients    aggregator.Clients
	Aggregator *aggregator.Aggregator
	Store      *snapshot.Store
	PollJob    *worker.PollJob

	publisher worker.Publisher
	pool      *pgxpool.Pool
}

// NewLogger returns the root logger for a service.
func NewLogger(w io.Writer, serviceName, version string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return zerolog.New(w).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", version).
		Logger()
}

// New builds the pipeline. It connects to Postgres and Pub/Sub when the
// configuration asks for them; feed clients make no calls until polled.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: resilience.NewRegistry(),
		Stations: conditions.DefaultStations(),
	}

	a.Clients = a.newClients()

	metrics, err := telemetry.NewFeedMetrics()
	if err != nil {
		return nil, fmt.Errorf("creating feed metrics: %w", err)
	}

	ttls := make(map[source.ID]time.Duration, len(source.AllIDs()))
	for _, id := range source.AllIDs() {
		ttls[id] = cfg.TTL(id)
	}

	sources := aggregator.NewSources(aggregator.SourcesConfig{
		Clients:          a.Clients,
		Stations:         a.Stations,
		PrimaryStationID: conditions.PrimaryStationID,
		TideLat:          cfg.TideLat,
		TideLon:          cfg.TideLon,
		MarineZone:       cfg.MarineZone,
		TTLs:             ttls,
		Timeout:          cfg.UpstreamTimeout,
		Logger:           logger.With().Str("component", "source").Logger(),
		Metrics:          metrics,
	})

	a.Aggregator = aggregator.New(aggregator.Config{
		Sources:          sources,
		Stations:         a.Stations,
		PrimaryStationID: conditions.PrimaryStationID,
		Logger:           logger.With().Str("component", "aggregator").Logger(),
	})

	backend, err := a.newBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = snapshot.NewStore(backend, logger.With().Str("component", "snapshot").Logger())

	a.publisher = worker.NoopPublisher{}
	if cfg.PubSubEnabled() && cfg.PubSubTopic != "" {
		pub, err := worker.NewPubSubPublisher(ctx, worker.PubSubPublisherConfig{
			ProjectID: cfg.PubSubProjectID,
			Topic:     cfg.PubSubTopic,
			Logger:    logger,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.publisher = pub
		logger.Info().Str("topic", cfg.PubSubTopic).Msg("publishing conditions updates")
	}

	a.PollJob = worker.NewPollJob(worker.PollJobConfig{
		Config:     worker.DefaultPollConfig(),
		Aggregator: a.Aggregator,
		Store:      a.Store,
		Publisher:  a.publisher,
		Logger:     logger.With().Str("component", "poll").Logger(),
	})

	return a, nil
}

func (a *App) resilientClient(name string, timeout time.Duration) *resilience.Client {
	cc := resilience.DefaultClientConfig(name)
	cc.Timeout = timeout
	cc.UserAgent = a.Config.NWSUserAgent
	cc.Registry = a.Registry
	return resilience.NewClient(cc)
}

func (a *App) newClients() aggregator.Clients {
	timeout := a.Config.UpstreamTimeout
	log := a.Logger

	cl := aggregator.Clients{
		NOAA: noaa.NewClient(noaa.ClientConfig{
			HTTPClient: a.resilientClient(noaa.ProviderName, timeout),
			Logger:     log.With().Str("feed", noaa.ProviderName).Logger(),
		}),
		NWS: nws.NewClient(nws.ClientConfig{
			UserAgent:  a.Config.NWSUserAgent,
			HTTPClient: a.resilientClient(nws.ProviderName, timeout),
			Logger:     log.With().Str("feed", nws.ProviderName).Logger(),
		}),
		GCOOS: gcoos.NewClient(gcoos.ClientConfig{
			HTTPClient: a.resilientClient(gcoos.ProviderName, max(timeout, gcoos.DefaultTimeout)),
			Logger:     log.With().Str("feed", gcoos.ProviderName).Logger(),
		}),
		Radar: radar.NewClient(radar.ClientConfig{
			HTTPClient: a.resilientClient(radar.ProviderName, timeout),
			Logger:     log.With().Str("feed", radar.ProviderName).Logger(),
		}),
		USNO: usno.NewClient(usno.ClientConfig{
			HTTPClient: a.resilientClient(usno.ProviderName, timeout),
			Logger:     log.With().Str("feed", usno.ProviderName).Logger(),
		}),
	}

	// Without a key the tide adapter serves the synthetic sample, so the
	// client is still wired; it is only registered for health when live.
	var wtHTTP *resilience.Client
	if a.Config.WorldTidesAPIKey != "" {
		wtHTTP = a.resilientClient(worldtides.ProviderName, timeout)
	} else {
		wtHTTP = resilience.NewClient(resilience.DefaultClientConfig(worldtides.ProviderName))
		log.Warn().Msg("WORLD_TIDES_API_KEY not set, serving sample tide data")
	}
	cl.WorldTides = worldtides.NewClient(worldtides.ClientConfig{
		APIKey:     a.Config.WorldTidesAPIKey,
		HTTPClient: wtHTTP,
		Logger:     log.With().Str("feed", worldtides.ProviderName).Logger(),
	})

	return cl
}

func (a *App) newBackend(ctx context.Context) (snapshot.Backend, error) {
	switch a.Config.SnapshotBackend {
	case config.BackendMemory:
		return snapshot.NewMemoryBackend(), nil

	case config.BackendPostgres:
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.pool = pool

		backend := snapshot.NewPostgresBackend(pool)
		if err := backend.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("preparing snapshot table: %w", err)
		}
		a.Logger.Info().
			Str("host", dbConfig.Host).
			Str("database", dbConfig.Database).
			Msg("snapshot store on postgres")
		return backend, nil

	default:
		a.Logger.Info().Str("path", a.Config.SnapshotPath).Msg("snapshot store on file")
		return snapshot.NewFileBackend(a.Config.SnapshotPath), nil
	}
}

// Close releases the publisher and database pool.
func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("failed to close publisher")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
