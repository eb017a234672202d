package nws

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/provider"
)

// DefaultMarineZone covers Mobile Bay.
const DefaultMarineZone = "GMZ631"

// ZoneForecast fetches the text forecast for a marine zone. The summary is
// the first period's detailed forecast; wave height is read out of it.
func (c *Client) ZoneForecast(ctx context.Context, zone string) (*conditions.Marine, error) {
	if zone == "" {
		zone = DefaultMarineZone
	}

	var resp zoneForecastResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/zones/forecast/%s/forecast", c.baseURL, zone), &resp); err != nil {
		return nil, err
	}
	if len(resp.Properties.Periods) == 0 {
		return nil, fmt.Errorf("%w: zone %s has no forecast periods", provider.ErrMalformedResponse, zone)
	}

	text := strings.TrimSpace(resp.Properties.Periods[0].DetailedForecast)
	marine := &conditions.Marine{
		Zone:         conditions.Ptr(zone),
		WaveHeightFt: ParseWaveHeightFt(text),
	}
	if text != "" {
		marine.Summary = conditions.Ptr(text)
	}
	if resp.Properties.Updated != "" {
		marine.IssuedAt = conditions.Ptr(resp.Properties.Updated)
	}
	return marine, nil
}

var waveHeightPattern = regexp.MustCompile(
	`(?i)\b(?:waves|seas)\s+(?:around\s+|less\s+than\s+)?(\d+(?:\.\d+)?)(?:\s+to\s+(\d+(?:\.\d+)?))?\s+(?:foot|feet|ft)`)

// ParseWaveHeightFt extracts a wave height from marine forecast text such as
// "Waves 1 to 2 feet" or "Seas around 3 feet". Ranges resolve to their upper
// bound. "Smooth" or "calm" water reads as zero.
func ParseWaveHeightFt(text string) *float64 {
	m := waveHeightPattern.FindStringSubmatch(text)
	if m == nil {
		lower := strings.ToLower(text)
		if strings.Contains(lower, "waters smooth") || strings.Contains(lower, "waters calm") {
			return conditions.Ptr(0.0)
		}
		return nil
	}

	raw := m[1]
	if m[2] != "" {
		raw = m[2]
	}
	return conditions.ParseFinite(raw)
}

type zoneForecastResponse struct {
	Properties struct {
		Updated string `json:"updated"`
		Periods []struct {
			Name             string `json:"name"`
			DetailedForecast string `json:"detailedForecast"`
		} `json:"periods"`
	} `json:"properties"`
}
