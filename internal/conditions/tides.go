package conditions

import (
	"sort"
	"strings"
	"time"
)

// NewTides folds a provider tide series into the snapshot tide section as
// seen at now.
func NewTides(series TideSeries, now time.Time) Tides {
	tides := EmptyTides()
	if series.Station != "" {
		tides.Station = Ptr(series.Station)
	}
	if !series.UpdatedAt.IsZero() {
		tides.UpdatedAt = Ptr(series.UpdatedAt.UTC())
	}
	tides.Sample = series.Sample

	if len(series.Heights) > 0 {
		tides.Heights = sortedPoints(series.Heights)
	}
	if len(series.Extremes) > 0 {
		tides.Extremes = append(tides.Extremes, series.Extremes...)
		sort.SliceStable(tides.Extremes, func(i, j int) bool {
			return tides.Extremes[i].TimestampSeconds < tides.Extremes[j].TimestampSeconds
		})
	}

	nowSec := now.Unix()
	for i := range tides.Extremes {
		e := tides.Extremes[i]
		if e.TimestampSeconds <= nowSec {
			continue
		}
		switch {
		case tides.NextHigh == nil && strings.EqualFold(e.Type, ExtremeHigh):
			tides.NextHigh = &e
		case tides.NextLow == nil && strings.EqualFold(e.Type, ExtremeLow):
			tides.NextLow = &e
		}
	}

	tides.CurrentFt = interpolateHeight(tides.Heights, nowSec)

	// Extremes are a coarser series but still give a direction when no
	// hourly heights are available.
	trendSource := tides.Heights
	if len(trendSource) == 0 {
		for _, e := range tides.Extremes {
			trendSource = append(trendSource, TidePoint{TimestampSeconds: e.TimestampSeconds, HeightFt: e.HeightFt})
		}
	}
	tides.Trend = ResolveTidePhase(trendSource, now)

	return tides
}

// interpolateHeight linearly interpolates the height at ts from a sorted
// series. It returns nil when ts is outside the series.
func interpolateHeight(points []TidePoint, ts int64) *float64 {
	if len(points) == 0 {
		return nil
	}
	if ts < points[0].TimestampSeconds || ts > points[len(points)-1].TimestampSeconds {
		return nil
	}
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		if ts > b.TimestampSeconds {
			continue
		}
		span := b.TimestampSeconds - a.TimestampSeconds
		if span == 0 {
			return Ptr(b.HeightFt)
		}
		frac := float64(ts-a.TimestampSeconds) / float64(span)
		return Ptr(a.HeightFt + frac*(b.HeightFt-a.HeightFt))
	}
	return Ptr(points[0].HeightFt)
}

func sortedPoints(points []TidePoint) []TidePoint {
	out := make([]TidePoint, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampSeconds < out[j].TimestampSeconds
	})
	return out
}
