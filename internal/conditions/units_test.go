package conditions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkthebay/checkthebay/internal/conditions"
)

func TestParseWindSpeedKts(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{raw: "10 mph", want: fptr(8.7)},
		{raw: "5 to 10 mph", want: fptr(6.5)},
		{raw: "12 kt", want: fptr(12)},
		{raw: "15 knots", want: fptr(15)},
		{raw: "calm", want: nil},
		{raw: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := conditions.ParseWindSpeedKts(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 0.001)
		})
	}
}

func TestParseFinite(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{raw: "1.25", want: conditions.Ptr(1.25)},
		{raw: " -0.4 ", want: conditions.Ptr(-0.4)},
		{raw: "", want: nil},
		{raw: "n/a", want: nil},
		{raw: "NaN", want: nil},
		{raw: "nan", want: nil},
		{raw: "Inf", want: nil},
		{raw: "+Inf", want: nil},
		{raw: "-Infinity", want: nil},
		{raw: "1e400", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, conditions.ParseFinite(tt.raw))
		})
	}
}

func TestCardinalToDegrees(t *testing.T) {
	deg := conditions.CardinalToDegrees("wsw")
	require.NotNil(t, deg)
	assert.Equal(t, 247.5, *deg)

	assert.Nil(t, conditions.CardinalToDegrees("XYZ"))
}

func TestDegreesToCardinal(t *testing.T) {
	assert.Equal(t, "N", conditions.DegreesToCardinal(0))
	assert.Equal(t, "N", conditions.DegreesToCardinal(359))
	assert.Equal(t, "WSW", conditions.DegreesToCardinal(245))
	assert.Equal(t, "SE", conditions.DegreesToCardinal(-225))
}

func TestConversions(t *testing.T) {
	assert.InDelta(t, 68.0, conditions.CelsiusToFahrenheit(20), 0.001)
	assert.InDelta(t, 6.2137, conditions.MetersToMiles(10000), 0.001)
	assert.InDelta(t, 19.438, conditions.MpsToKnots(10), 0.01)
}
