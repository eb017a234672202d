// Package config loads service configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/checkthebay/checkthebay/internal/provider/nws"
	"github.com/checkthebay/checkthebay/internal/provider/resilience"
	"github.com/checkthebay/checkthebay/internal/provider/worldtides"
	"github.com/checkthebay/checkthebay/internal/scheduler"
	"github.com/checkthebay/checkthebay/internal/snapshot"
	"github.com/checkthebay/checkthebay/internal/source"
)

// Snapshot backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is the full service configuration.
type Config struct {
	Port string `validate:"required,numeric"`
	Env  string `validate:"required,oneof=development staging production test"`

	// SchedulerEnabled runs the poll loop inside this process.
	SchedulerEnabled bool

	PollInterval    time.Duration `validate:"gte=1m,lte=24h"`
	UpstreamTimeout time.Duration `validate:"gte=10s,lte=15s"`

	// TTLs overrides the freshness window per feed.
	TTLs map[source.ID]time.Duration `validate:"dive,gt=0"`

	WorldTidesAPIKey string
	TideLat          float64 `validate:"gte=-90,lte=90"`
	TideLon          float64 `validate:"gte=-180,lte=180"`

	NWSUserAgent string `validate:"required"`
	MarineZone   string `validate:"required,alphanum,len=6"`

	SnapshotBackend string `validate:"required,oneof=file postgres memory"`
	SnapshotPath    string `validate:"required_if=SnapshotBackend file"`

	ReefsPath string `validate:"required"`

	PubSubProjectID    string `validate:"required_with=PubSubTopic PubSubSubscription"`
	PubSubTopic        string
	PubSubSubscription string

	OTelEnabled     bool
	OTLPEndpoint    string  `validate:"required_if=OTelEnabled true"`
	OTelSampleRatio float64 `validate:"gte=0,lte=1"`
}

// ttlKeys maps each feed to its TTL override variable.
var ttlKeys = map[source.ID]string{
	source.Tide:       "TIDE_TTL",
	source.WaterLevel: "WATER_LEVEL_TTL",
	source.Weather:    "WEATHER_TTL",
	source.Wind:       "WIND_TTL",
	source.WindField:  "WIND_FIELD_TTL",
	source.Marine:     "MARINE_TTL",
	source.Moon:       "MOON_TTL",
	source.Radar:      "RADAR_TTL",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads an optional .env file, then the environment, and validates the
// result. Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds and validates a Config from the environment alone.
func FromEnv() (*Config, error) {
	p := &parser{}

	pollMinutes := p.int("POLL_MINUTES", int(scheduler.DefaultInterval/time.Minute))

	cfg := &Config{
		Port:               getEnvOrDefault("APP_PORT", "8080"),
		Env:                getEnvOrDefault("APP_ENV", "development"),
		SchedulerEnabled:   p.bool("SCHEDULER_ENABLED", true),
		PollInterval:       time.Duration(pollMinutes) * time.Minute,
		UpstreamTimeout:    p.seconds("UPSTREAM_TIMEOUT", source.DefaultTimeout),
		TTLs:               make(map[source.ID]time.Duration),
		WorldTidesAPIKey:   os.Getenv("WORLD_TIDES_API_KEY"),
		TideLat:            p.float("TIDE_LAT", worldtides.DefaultLat),
		TideLon:            p.float("TIDE_LON", worldtides.DefaultLon),
		NWSUserAgent:       getEnvOrDefault("NWS_USER_AGENT", resilience.DefaultUserAgent),
		MarineZone:         strings.ToUpper(getEnvOrDefault("MARINE_ZONE", nws.DefaultMarineZone)),
		SnapshotBackend:    strings.ToLower(getEnvOrDefault("SNAPSHOT_BACKEND", BackendFile)),
		SnapshotPath:       getEnvOrDefault("SNAPSHOT_PATH", snapshot.DefaultPath),
		ReefsPath:          getEnvOrDefault("REEFS_PATH", "data/reefs-inshore.json"),
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubTopic:        os.Getenv("PUBSUB_TOPIC"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
		OTelEnabled:        p.bool("OTEL_ENABLED", false),
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio:    p.float("OTEL_TRACES_SAMPLER_ARG", 1),
	}

	for id, key := range ttlKeys {
		if _, ok := os.LookupEnv(key); ok {
			cfg.TTLs[id] = p.duration(key, 0)
		}
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// TTL returns the configured freshness window for id, or the feed default.
func (c *Config) TTL(id source.ID) time.Duration {
	if ttl, ok := c.TTLs[id]; ok {
		return ttl
	}
	return source.DefaultTTL(id)
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// PubSubEnabled reports whether a Pub/Sub project is configured.
func (c *Config) PubSubEnabled() bool {
	return c.PubSubProjectID != ""
}

// parser collects parse errors so every bad variable is reported at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}

// seconds accepts either a duration ("12s") or a bare number of seconds.
func (p *parser) seconds(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	return p.duration(key, def)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
