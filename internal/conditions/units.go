package conditions

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	knotsPerMph   = 0.868976
	milesPerMeter = 0.000621371
	mphPerMps     = 2.23694
)

// MphToKnots converts miles per hour to knots.
func MphToKnots(mph float64) float64 {
	return mph * knotsPerMph
}

// MpsToKnots converts meters per second to knots.
func MpsToKnots(mps float64) float64 {
	return MphToKnots(mps * mphPerMps)
}

// CelsiusToFahrenheit converts degrees Celsius to Fahrenheit.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// MetersToMiles converts meters to statute miles.
func MetersToMiles(m float64) float64 {
	return m * milesPerMeter
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

var cardinalDegrees = map[string]float64{
	"N": 0, "NNE": 22.5, "NE": 45, "ENE": 67.5,
	"E": 90, "ESE": 112.5, "SE": 135, "SSE": 157.5,
	"S": 180, "SSW": 202.5, "SW": 225, "WSW": 247.5,
	"W": 270, "WNW": 292.5, "NW": 315, "NNW": 337.5,
}

var cardinals = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// CardinalToDegrees maps a 16-point compass direction to degrees.
func CardinalToDegrees(cardinal string) *float64 {
	deg, ok := cardinalDegrees[strings.ToUpper(strings.TrimSpace(cardinal))]
	if !ok {
		return nil
	}
	return Ptr(deg)
}

// DegreesToCardinal maps degrees to the nearest 16-point compass direction.
func DegreesToCardinal(deg float64) string {
	if math.IsNaN(deg) {
		return ""
	}
	norm := math.Mod(deg, 360)
	if norm < 0 {
		norm += 360
	}
	idx := int(math.Round(norm/22.5)) % 16
	return cardinals[idx]
}

var windNumberPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// ParseFinite parses a numeric feed field. Blank, unparsable and non-finite
// values ("NaN", "Inf") yield nil; they cannot be encoded in a snapshot.
func ParseFinite(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseWindSpeedKts parses NWS wind speed strings such as "10 mph",
// "5 to 10 mph" or "12 kt". Ranges are averaged; values without a knot unit
// are treated as mph. The result is rounded to 0.1 kt.
func ParseWindSpeedKts(raw string) *float64 {
	matches := windNumberPattern.FindAllString(raw, -1)
	if len(matches) == 0 {
		return nil
	}

	var sum float64
	for _, m := range matches {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil
		}
		sum += v
	}
	avg := sum / float64(len(matches))

	lower := strings.ToLower(raw)
	if strings.Contains(lower, "kt") || strings.Contains(lower, "knot") {
		return Ptr(Round1(avg))
	}
	return Ptr(Round1(MphToKnots(avg)))
}
