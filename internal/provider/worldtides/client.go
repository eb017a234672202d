// Package worldtides is a client for the WorldTides v3 API, with a synthetic
// offline series for when no API key is configured.
package worldtides

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/provider"
	"github.com/checkthebay/checkthebay/internal/provider/resilience"
)

const (
	// ProviderName identifies this feed.
	ProviderName = "worldtides"

	// DefaultBaseURL is the WorldTides v3 endpoint.
	DefaultBaseURL = "https://www.worldtides.info/api/v3"

	// DefaultLat and DefaultLon locate Point Clear, AL.
	DefaultLat = 30.49
	DefaultLon = -87.93

	// SampleStation names the synthetic series.
	SampleStation = "Point Clear, AL"

	feetPerMeter = 3.28084
	windowHours  = 48
)

// ClientConfig holds configuration for the WorldTides client.
type ClientConfig struct {
	// APIKey is the WorldTides key. Without one every call returns
	// provider.ErrNotConfigured.
	APIKey string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is a WorldTides API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new WorldTides client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Series fetches 48 hours of hourly heights and extremes for a coordinate.
// WorldTides reports meters; heights are returned in feet.
func (c *Client) Series(ctx context.Context, lat, lon float64) (*conditions.TideSeries, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("worldtides: %w", provider.ErrNotConfigured)
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("heights", "")
	params.Set("extremes", "")
	params.Set("datum", "MLLW")
	params.Set("step", "3600")
	params.Set("length", strconv.Itoa(windowHours*3600))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := resilience.CheckStatus(resp); err != nil {
		return nil, err
	}

	var wtResp seriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&wtResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", provider.ErrMalformedResponse, err)
	}
	if wtResp.Error != "" {
		return nil, fmt.Errorf("%w: %s", provider.ErrUpstreamUnavailable, wtResp.Error)
	}

	return wtResp.toSeries(lat, lon, time.Now()), nil
}

// SampleSeries returns the synthetic series served when no key is set:
// four alternating extremes around now and 24 hourly sinusoidal heights
// starting twelve hours back.
func SampleSeries(now time.Time) conditions.TideSeries {
	ts := now.Unix()

	extremes := []conditions.TideExtreme{
		{Type: conditions.ExtremeLow, TimestampSeconds: ts - 5*3600, HeightFt: 1.4},
		{Type: conditions.ExtremeHigh, TimestampSeconds: ts - 2*3600, HeightFt: 2.1},
		{Type: conditions.ExtremeLow, TimestampSeconds: ts + 2*3600, HeightFt: 1.2},
		{Type: conditions.ExtremeHigh, TimestampSeconds: ts + 5*3600, HeightFt: 2.4},
	}

	heights := make([]conditions.TidePoint, 0, 24)
	for i := 0; i < 24; i++ {
		heights = append(heights, conditions.TidePoint{
			TimestampSeconds: ts - int64(3600*(12-i)),
			HeightFt:         1.5 + math.Sin(float64(i)/3)*0.4,
		})
	}

	return conditions.TideSeries{
		Station:   SampleStation,
		Extremes:  extremes,
		Heights:   heights,
		Sample:    true,
		UpdatedAt: now.UTC(),
	}
}

func (r *seriesResponse) toSeries(lat, lon float64, now time.Time) *conditions.TideSeries {
	station := r.Station
	if station == "" {
		station = fmt.Sprintf("%.3f, %.3f", lat, lon)
	}

	series := &conditions.TideSeries{
		Station:   station,
		Extremes:  make([]conditions.TideExtreme, 0, len(r.Extremes)),
		Heights:   make([]conditions.TidePoint, 0, len(r.Heights)),
		UpdatedAt: now.UTC(),
	}

	for _, e := range r.Extremes {
		series.Extremes = append(series.Extremes, conditions.TideExtreme{
			Type:             e.Type,
			TimestampSeconds: e.Dt,
			HeightFt:         metersToFeet(e.Height),
		})
	}
	for _, h := range r.Heights {
		series.Heights = append(series.Heights, conditions.TidePoint{
			TimestampSeconds: h.Dt,
			HeightFt:         metersToFeet(h.Height),
		})
	}

	return series
}

func metersToFeet(m float64) float64 {
	return math.Round(m*feetPerMeter*1000) / 1000
}

// WorldTides response structures.

type seriesResponse struct {
	Status   int    `json:"status"`
	Error    string `json:"error"`
	Station  string `json:"station"`
	Heights  []struct {
		Dt     int64   `json:"dt"`
		Height float64 `json:"height"`
	} `json:"heights"`
	Extremes []struct {
		Dt     int64   `json:"dt"`
		Height float64 `json:"height"`
		Type   string  `json:"type"`
	} `json:"extremes"`
}
