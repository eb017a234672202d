package conditions

import (
	"fmt"
	"strings"
	"time"
)

// SummaryMessage renders the one-line headline for a station, for example
// "Caution conditions. Winds 14 kt, rising tide."
func SummaryMessage(station StationConditions, rating Rating) string {
	pieces := make([]string, 0, 2)
	if station.WindSpeedKts != nil {
		pieces = append(pieces, fmt.Sprintf("Winds %.0f kt", *station.WindSpeedKts))
	} else {
		pieces = append(pieces, "Winds n/a")
	}
	if station.TidePhase != nil {
		pieces = append(pieces, string(*station.TidePhase)+" tide")
	}

	var status string
	switch rating {
	case RatingGood:
		status = "Good"
	case RatingCaution:
		status = "Caution"
	default:
		status = "Rough"
	}

	return fmt.Sprintf("%s conditions. %s.", status, strings.Join(pieces, ", "))
}

// BuildSummary assembles the headline summary for the primary station.
func BuildSummary(station StationConditions, rating Rating, waveHeightFt *float64, updatedAt time.Time) *Summary {
	return &Summary{
		Rating:       rating,
		Message:      SummaryMessage(station, rating),
		StationID:    station.StationID,
		StationName:  station.Name,
		Area:         Area,
		WindSpeedKts: station.WindSpeedKts,
		WindDirDeg:   station.WindDirDeg,
		WaveHeightFt: waveHeightFt,
		TidePhase:    station.TidePhase,
		UpdatedAt:    updatedAt.UTC(),
	}
}
