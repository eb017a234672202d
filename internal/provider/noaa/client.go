// Package noaa is a client for the NOAA CO-OPS tides and currents data API.
package noaa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/provider"
	"github.com/checkthebay/checkthebay/internal/provider/resilience"
)

const (
	// ProviderName identifies this feed.
	ProviderName = "noaa"

	// DefaultBaseURL is the CO-OPS datagetter endpoint.
	DefaultBaseURL = "https://api.tidesandcurrents.noaa.gov/api/prod/datagetter"

	// Application is reported to CO-OPS on every request.
	Application = "checkthebay"

	coopsTimeLayout = "2006-01-02 15:04"
)

// ClientConfig holds configuration for the CO-OPS client.
type ClientConfig struct {
	// BaseURL is the datagetter URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is a NOAA CO-OPS API client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new CO-OPS client.
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
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// WaterLevel fetches the latest MLLW water level observation for a station.
// A station with no recent observation yields a WaterLevel with nil fields.
func (c *Client) WaterLevel(ctx context.Context, stationID string) (*conditions.WaterLevel, error) {
	params := c.params("water_level", stationID)
	params.Set("datum", "MLLW")
	params.Set("date", "latest")

	var resp dataResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	level := &conditions.WaterLevel{NOAAStationID: stationID}
	if len(resp.Data) == 0 {
		return level, nil
	}

	obs := resp.Data[0]
	level.Time = parseTime(obs.T)
	level.WaterLevelFt = conditions.ParseFinite(obs.V)
	level.Sigma = conditions.ParseFinite(obs.S)
	if obs.Q != "" {
		level.Quality = conditions.Ptr(obs.Q)
	}
	return level, nil
}

// WaterTemperature fetches the latest water temperature in °F. Many
// stations carry no temperature sensor; those return nil without error.
func (c *Client) WaterTemperature(ctx context.Context, stationID string) (*float64, error) {
	params := c.params("water_temperature", stationID)
	params.Set("date", "latest")

	var resp dataResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return conditions.ParseFinite(resp.Data[0].V), nil
}

// TidePredictions fetches high/low predictions for the next rangeHours.
func (c *Client) TidePredictions(ctx context.Context, stationID string, rangeHours int) ([]conditions.TideExtreme, error) {
	if rangeHours <= 0 {
		rangeHours = 48
	}

	params := c.params("predictions", stationID)
	params.Set("datum", "MLLW")
	params.Set("interval", "hilo")
	params.Set("range", strconv.Itoa(rangeHours))

	var resp predictionsResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	extremes := make([]conditions.TideExtreme, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		ts, err := time.ParseInLocation(coopsTimeLayout, p.T, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: prediction time %q", provider.ErrMalformedResponse, p.T)
		}
		height := conditions.ParseFinite(p.V)
		if height == nil {
			continue
		}

		kind := conditions.ExtremeLow
		if strings.HasPrefix(p.Type, "H") {
			kind = conditions.ExtremeHigh
		}

		extremes = append(extremes, conditions.TideExtreme{
			Type:             kind,
			TimestampSeconds: ts.Unix(),
			HeightFt:         *height,
		})
	}

	return extremes, nil
}

// LatestWaterLevels fetches water level and, best effort, water temperature
// for every station. Stations sharing a CO-OPS gauge are fetched once. The
// call fails only when no station could be read; stations whose gauge failed
// are absent from the result.
func (c *Client) LatestWaterLevels(ctx context.Context, stations []conditions.Station) (conditions.WaterLevels, error) {
	var (
		mu       sync.Mutex
		byGauge  = make(map[string]conditions.WaterLevel)
		firstErr error
	)

	g := new(errgroup.Group)
	g.SetLimit(4)

	seen := make(map[string]bool)
	for _, st := range stations {
		if st.NOAAStationID == "" || seen[st.NOAAStationID] {
			continue
		}
		seen[st.NOAAStationID] = true
		gauge := st.NOAAStationID

		g.Go(func() error {
			level, err := c.WaterLevel(ctx, gauge)
			if err != nil {
				c.logger.Warn().Err(err).Str("noaa_station", gauge).Msg("water level unavailable")
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("station %s: %w", gauge, err)
				}
				mu.Unlock()
				return nil
			}

			temp, err := c.WaterTemperature(ctx, gauge)
			if err != nil {
				c.logger.Debug().Err(err).Str("noaa_station", gauge).Msg("water temperature unavailable")
			}
			level.WaterTempF = temp

			mu.Lock()
			byGauge[gauge] = *level
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(byGauge) == 0 {
		if firstErr == nil {
			firstErr = fmt.Errorf("%w: no stations configured", provider.ErrNotConfigured)
		}
		return nil, firstErr
	}

	levels := make(conditions.WaterLevels, len(stations))
	for _, st := range stations {
		if level, ok := byGauge[st.NOAAStationID]; ok {
			levels[st.ID] = level
		}
	}
	return levels, nil
}

func (c *Client) params(product, stationID string) url.Values {
	params := url.Values{}
	params.Set("product", product)
	params.Set("application", Application)
	params.Set("station", stationID)
	params.Set("time_zone", "gmt")
	params.Set("units", "english")
	params.Set("format", "json")
	return params
}

func (c *Client) get(ctx context.Context, params url.Values, out errorCarrier) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
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

	// CO-OPS reports bad stations and missing products with a 200.
	if msg := out.apiError(); msg != "" {
		return fmt.Errorf("%w: %s", provider.ErrUpstreamUnavailable, msg)
	}
	return nil
}

func parseTime(raw string) *string {
	ts, err := time.ParseInLocation(coopsTimeLayout, raw, time.UTC)
	if err != nil {
		return nil
	}
	return conditions.Ptr(ts.Format(time.RFC3339))
}

// CO-OPS response structures.

type errorCarrier interface {
	apiError() string
}

type apiErrorBody struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (b *apiErrorBody) apiError() string {
	if b.Error == nil {
		return ""
	}
	if b.Error.Message == "" {
		return "unknown error"
	}
	return b.Error.Message
}

type dataResponse struct {
	apiErrorBody
	Data []struct {
		T string `json:"t"`
		V string `json:"v"`
		S string `json:"s"`
		F string `json:"f"`
		Q string `json:"q"`
	} `json:"data"`
}

type predictionsResponse struct {
	apiErrorBody
	Predictions []struct {
		T    string `json:"t"`
		V    string `json:"v"`
		Type string `json:"type"`
	} `json:"predictions"`
}
