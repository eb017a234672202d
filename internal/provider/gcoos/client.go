// Package gcoos fetches the GFS surface wind field over Mobile Bay from the
// GCOOS ERDDAP griddap service.
package gcoos

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/provider"
	"github.com/checkthebay/checkthebay/internal/provider/resilience"
)

const (
	// ProviderName identifies this feed.
	ProviderName = "gcoos"

	// DefaultBaseURL is the GFS 0.25° dataset as CSV.
	DefaultBaseURL = "https://erddap.gcoos.org/erddap/griddap/gfs_pgrb2_global_0p25deg.csv"

	// DefaultTimeout is longer than other feeds; ERDDAP subsetting is slow.
	DefaultTimeout = 15 * time.Second

	// Description is reported in the wind field metadata.
	Description = "GFS surface wind field via GCOOS ERDDAP"
)

// Bounds is a lat/lon box sampled at Step degrees.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	Step           float64
}

// DefaultBounds covers Mobile Bay and the adjacent Gulf.
func DefaultBounds() Bounds {
	return Bounds{MinLat: 28.0, MaxLat: 31.5, MinLon: -89.5, MaxLon: -86.5, Step: 0.25}
}

// ClientConfig holds configuration for the ERDDAP client.
type ClientConfig struct {
	// BaseURL is the griddap CSV URL (optional).
	BaseURL string

	// Bounds defaults to DefaultBounds.
	Bounds *Bounds

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with a 15 s timeout.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is a GCOOS ERDDAP client.
type Client struct {
	baseURL    string
	bounds     Bounds
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new ERDDAP client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	bounds := DefaultBounds()
	if cfg.Bounds != nil {
		bounds = *cfg.Bounds
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Timeout = DefaultTimeout
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		baseURL:    baseURL,
		bounds:     bounds,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// WindField fetches the latest GFS timestep for the configured bounds.
func (c *Client) WindField(ctx context.Context) (*conditions.WindField, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.queryURL(), http.NoBody)
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

	field, err := parseCSV(resp.Body, c.bounds.Step)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrMalformedResponse, err)
	}
	return field, nil
}

// queryURL selects the last timestep of u and v at 10 m. Latitude runs north
// to south to match the dataset's axis order.
func (c *Client) queryURL() string {
	b := c.bounds
	return fmt.Sprintf("%s?time,latitude,longitude,"+
		"u-component_of_wind_height_above_ground,v-component_of_wind_height_above_ground"+
		"&time=(last)&latitude=(%g):%g:(%g)&longitude=(%g):%g:(%g)",
		c.baseURL, b.MaxLat, b.Step, b.MinLat, b.MinLon, b.Step, b.MaxLon)
}

// parseCSV reads ERDDAP CSV output. The first row names the columns and the
// second carries units. Rows with a missing or non-finite value are skipped.
func parseCSV(r io.Reader, step float64) (*conditions.WindField, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	field := &conditions.WindField{
		Meta: &conditions.WindFieldMeta{
			LatStep:     step,
			LonStep:     step,
			Description: Description,
		},
		Vectors: []conditions.WindVector{},
	}

	header := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(record) < 5 {
			continue
		}

		vector, ok := parseVector(record[1:5])
		if !ok {
			continue
		}
		if field.Meta.Time == nil && record[0] != "" {
			field.Meta.Time = conditions.Ptr(record[0])
		}
		field.Vectors = append(field.Vectors, vector)
	}

	if len(field.Vectors) == 0 {
		return nil, errors.New("no wind vectors in response")
	}
	return field, nil
}

func parseVector(cols []string) (conditions.WindVector, bool) {
	var vals [4]float64
	for i, col := range cols {
		v, err := strconv.ParseFloat(col, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return conditions.WindVector{}, false
		}
		vals[i] = v
	}
	return conditions.WindVector{Lat: vals[0], Lon: vals[1], U: vals[2], V: vals[3]}, true
}
