// Package nws is a client for the National Weather Service API
// (api.weather.gov): gridpoint metadata, hourly forecasts, station
// observations and marine zone forecasts.
package nws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/provider"
	"github.com/checkthebay/checkthebay/internal/provider/resilience"
)

const (
	// ProviderName identifies this feed.
	ProviderName = "nws"

	// DefaultBaseURL is the NWS API base URL.
	DefaultBaseURL = "https://api.weather.gov"

	acceptHeader = "application/geo+json, application/json"
)

// ClientConfig holds configuration for the NWS client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional).
	BaseURL string

	// UserAgent is required by NWS; requests without one are rejected.
	// If empty, the resilient client's default is used.
	UserAgent string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is an NWS API client. Gridpoint metadata is cached for the life of
// the client since forecast offices and grids do not move.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *resilience.Client
	logger     zerolog.Logger

	mu     sync.RWMutex
	points map[string]*Point
}

// NewClient creates a new NWS client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		logger:     cfg.Logger,
		points:     make(map[string]*Point),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Point is the gridpoint metadata for a coordinate.
type Point struct {
	Forecast            string
	ForecastHourly      string
	ObservationStations string
}

// Point resolves the forecast and observation URLs for a coordinate.
func (c *Client) Point(ctx context.Context, lat, lon float64) (*Point, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)

	c.mu.RLock()
	cached, ok := c.points[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	var resp pointResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/points/%s", c.baseURL, key), &resp); err != nil {
		return nil, err
	}
	if resp.Properties.ForecastHourly == "" {
		return nil, fmt.Errorf("%w: point %s has no hourly forecast", provider.ErrMalformedResponse, key)
	}

	point := &Point{
		Forecast:            resp.Properties.Forecast,
		ForecastHourly:      resp.Properties.ForecastHourly,
		ObservationStations: resp.Properties.ObservationStations,
	}

	c.mu.Lock()
	c.points[key] = point
	c.mu.Unlock()

	return point, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := resilience.CheckStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", provider.ErrMalformedResponse, err)
	}
	return nil
}

// NWS response structures.

type pointResponse struct {
	Properties struct {
		Forecast            string `json:"forecast"`
		ForecastHourly      string `json:"forecastHourly"`
		ObservationStations string `json:"observationStations"`
	} `json:"properties"`
}

type quantity struct {
	Value    *float64 `json:"value"`
	UnitCode string   `json:"unitCode"`
}
