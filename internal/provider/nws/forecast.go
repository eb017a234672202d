package nws

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/provider"
)

// Period is one hourly forecast period.
type Period struct {
	StartTime     string
	TemperatureF  *float64
	WindSpeed     string
	WindGust      string
	WindDirection string
	ShortForecast string
}

// HourlyForecast fetches the hourly forecast periods for a coordinate.
func (c *Client) HourlyForecast(ctx context.Context, lat, lon float64) ([]Period, error) {
	point, err := c.Point(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	var resp hourlyResponse
	if err := c.getJSON(ctx, point.ForecastHourly, &resp); err != nil {
		return nil, err
	}

	periods := make([]Period, 0, len(resp.Properties.Periods))
	for _, p := range resp.Properties.Periods {
		period := Period{
			StartTime:     p.StartTime,
			TemperatureF:  p.Temperature,
			WindSpeed:     p.WindSpeed,
			WindDirection: p.WindDirection,
			ShortForecast: p.ShortForecast,
		}
		if p.WindGust != nil {
			period.WindGust = *p.WindGust
		}
		periods = append(periods, period)
	}
	return periods, nil
}

// StationWind converts the first forecast period into a station wind reading.
func (p Period) StationWind() conditions.StationWind {
	w := conditions.StationWind{
		SpeedKts:     conditions.ParseWindSpeedKts(p.WindSpeed),
		DirectionDeg: conditions.CardinalToDegrees(p.WindDirection),
		AirTempF:     p.TemperatureF,
	}
	if p.WindGust != "" {
		w.GustKts = conditions.ParseWindSpeedKts(p.WindGust)
	}
	if p.ShortForecast != "" {
		w.ShortForecast = conditions.Ptr(p.ShortForecast)
	}
	if p.StartTime != "" {
		w.StartTime = conditions.Ptr(p.StartTime)
	}
	return w
}

// StationWinds fetches the current hourly period for each station. Stations
// whose forecast fails are left out; the call fails only when every station
// failed.
func (c *Client) StationWinds(ctx context.Context, stations []conditions.Station) (map[string]conditions.StationWind, error) {
	var (
		mu       sync.Mutex
		winds    = make(map[string]conditions.StationWind, len(stations))
		firstErr error
	)

	g := new(errgroup.Group)
	g.SetLimit(4)

	for _, st := range stations {
		g.Go(func() error {
			periods, err := c.HourlyForecast(ctx, st.Lat, st.Lon)
			if err == nil && len(periods) == 0 {
				err = fmt.Errorf("%w: empty hourly forecast", provider.ErrMalformedResponse)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("station %s: %w", st.ID, err)
				}
				c.logger.Debug().Err(err).Str("station_id", st.ID).Msg("hourly forecast unavailable")
				return nil
			}
			winds[st.ID] = periods[0].StationWind()
			return nil
		})
	}
	_ = g.Wait()

	if len(winds) == 0 {
		if firstErr == nil {
			firstErr = fmt.Errorf("%w: no stations configured", provider.ErrNotConfigured)
		}
		return nil, firstErr
	}
	return winds, nil
}

type hourlyResponse struct {
	Properties struct {
		Periods []struct {
			StartTime     string   `json:"startTime"`
			Temperature   *float64 `json:"temperature"`
			WindSpeed     string   `json:"windSpeed"`
			WindGust      *string  `json:"windGust"`
			WindDirection string   `json:"windDirection"`
			ShortForecast string   `json:"shortForecast"`
		} `json:"periods"`
	} `json:"properties"`
}
