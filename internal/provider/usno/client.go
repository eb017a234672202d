// Package usno is a client for the US Naval Observatory one-day
// rise/set/transit API, used for moon phase and moonrise/moonset.
package usno

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/provider"
	"github.com/checkthebay/checkthebay/internal/provider/resilience"
)

const (
	// ProviderName identifies this feed.
	ProviderName = "usno"

	// DefaultBaseURL is the one-day RSTT endpoint.
	DefaultBaseURL = "https://aa.usno.navy.mil/api/rstt/oneday"
)

// ClientConfig holds configuration for the USNO client.
type ClientConfig struct {
	// BaseURL is the API URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is a USNO API client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new USNO client.
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

// Moon fetches the moon phase, illumination and UTC rise/set times for the
// given day at a coordinate. Rise or set is nil on days the event does not
// occur.
func (c *Client) Moon(ctx context.Context, day time.Time, lat, lon float64) (*conditions.Moon, error) {
	day = day.UTC()

	params := url.Values{}
	params.Set("date", day.Format("2006-01-02"))
	params.Set("coords", fmt.Sprintf("%.4f,%.4f", lat, lon))
	params.Set("tz", "0")

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

	var usnoResp onedayResponse
	if err := json.NewDecoder(resp.Body).Decode(&usnoResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", provider.ErrMalformedResponse, err)
	}
	if usnoResp.Error != "" {
		return nil, fmt.Errorf("%w: %s", provider.ErrUpstreamUnavailable, usnoResp.Error)
	}

	return usnoResp.toMoon(day), nil
}

func (r *onedayResponse) toMoon(day time.Time) *conditions.Moon {
	data := r.Properties.Data
	moon := &conditions.Moon{
		IlluminationPct: parsePercent(data.FracIllum),
	}
	if data.CurPhase != "" {
		moon.Phase = conditions.Ptr(data.CurPhase)
	}

	for _, ev := range data.MoonData {
		ts := eventTime(day, ev.Time)
		if ts == nil {
			continue
		}
		switch ev.Phen {
		case "Rise":
			moon.Moonrise = ts
		case "Set":
			moon.Moonset = ts
		}
	}
	return moon
}

func eventTime(day time.Time, hhmm string) *string {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return nil
	}
	ts := time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	return conditions.Ptr(ts.Format(time.RFC3339))
}

func parsePercent(raw string) *float64 {
	return conditions.ParseFinite(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
}

// USNO response structures.

type onedayResponse struct {
	Error      string `json:"error"`
	Properties struct {
		Data struct {
			CurPhase  string `json:"curphase"`
			FracIllum string `json:"fracillum"`
			MoonData  []struct {
				Phen string `json:"phen"`
				Time string `json:"time"`
			} `json:"moondata"`
		} `json:"data"`
	} `json:"properties"`
}
