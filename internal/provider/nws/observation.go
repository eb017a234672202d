package nws

import (
	"context"
	"fmt"
	"strings"

	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/provider"
)

// LatestObservation fetches the most recent observation from the station
// nearest to a coordinate, converted to imperial units.
func (c *Client) LatestObservation(ctx context.Context, lat, lon float64) (*conditions.Weather, error) {
	point, err := c.Point(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	if point.ObservationStations == "" {
		return nil, fmt.Errorf("%w: point has no observation stations", provider.ErrMalformedResponse)
	}

	var stations stationsResponse
	if err := c.getJSON(ctx, point.ObservationStations, &stations); err != nil {
		return nil, err
	}
	if len(stations.Features) == 0 || stations.Features[0].ID == "" {
		return nil, fmt.Errorf("%w: no observation station found", provider.ErrMalformedResponse)
	}

	var obs observationResponse
	if err := c.getJSON(ctx, strings.TrimSuffix(stations.Features[0].ID, "/")+"/observations/latest", &obs); err != nil {
		return nil, err
	}

	return obs.toWeather(), nil
}

func (o *observationResponse) toWeather() *conditions.Weather {
	p := o.Properties
	w := &conditions.Weather{
		TempF:        celsiusToF(p.Temperature),
		HumidityPct:  round1(p.RelativeHumidity.Value),
		VisibilityMi: metersToMi(p.Visibility),
	}

	// heat index and wind chill are null outside their ranges
	switch {
	case p.HeatIndex.Value != nil:
		w.FeelsLikeF = celsiusToF(p.HeatIndex)
	case p.WindChill.Value != nil:
		w.FeelsLikeF = celsiusToF(p.WindChill)
	default:
		w.FeelsLikeF = w.TempF
	}

	if p.TextDescription != "" {
		w.Summary = conditions.Ptr(p.TextDescription)
	}
	if p.Timestamp != "" {
		w.ObservedAt = conditions.Ptr(p.Timestamp)
	}
	return w
}

func celsiusToF(q quantity) *float64 {
	if q.Value == nil {
		return nil
	}
	if strings.HasSuffix(q.UnitCode, "degF") {
		return conditions.Ptr(conditions.Round1(*q.Value))
	}
	return conditions.Ptr(conditions.Round1(conditions.CelsiusToFahrenheit(*q.Value)))
}

func metersToMi(q quantity) *float64 {
	if q.Value == nil {
		return nil
	}
	return conditions.Ptr(conditions.Round1(conditions.MetersToMiles(*q.Value)))
}

func round1(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return conditions.Ptr(conditions.Round1(*v))
}

type stationsResponse struct {
	Features []struct {
		ID string `json:"id"`
	} `json:"features"`
}

type observationResponse struct {
	Properties struct {
		Timestamp        string   `json:"timestamp"`
		TextDescription  string   `json:"textDescription"`
		Temperature      quantity `json:"temperature"`
		HeatIndex        quantity `json:"heatIndex"`
		WindChill        quantity `json:"windChill"`
		RelativeHumidity quantity `json:"relativeHumidity"`
		Visibility       quantity `json:"visibility"`
	} `json:"properties"`
}
