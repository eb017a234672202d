package conditions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/checkthebay/checkthebay/internal/conditions"
)

func fptr(v float64) *float64 { return &v }

func TestComputeRating(t *testing.T) {
	tests := []struct {
		name       string
		input      conditions.RatingInput
		wantRating conditions.Rating
		wantReason string
	}{
		{
			name:       "strong winds",
			input:      conditions.RatingInput{WindSpeedKts: fptr(21), HasAirTemp: true, HasWaterTemp: true},
			wantRating: conditions.RatingBad,
			wantReason: "strong winds",
		},
		{
			name:       "exactly 20 kt is not strong",
			input:      conditions.RatingInput{WindSpeedKts: fptr(20), HasAirTemp: true, HasWaterTemp: true},
			wantRating: conditions.RatingCaution,
			wantReason: "breezy, choppy water likely",
		},
		{
			name:       "abnormal high water",
			input:      conditions.RatingInput{WindSpeedKts: fptr(5), WaterLevelFt: fptr(2.3), HasAirTemp: true, HasWaterTemp: true},
			wantRating: conditions.RatingBad,
			wantReason: "abnormal water level",
		},
		{
			name:       "abnormal low water",
			input:      conditions.RatingInput{WaterLevelFt: fptr(-2.1), HasAirTemp: true, HasWaterTemp: true},
			wantRating: conditions.RatingBad,
			wantReason: "abnormal water level",
		},
		{
			name:       "limited data and breezy",
			input:      conditions.RatingInput{WindSpeedKts: fptr(15), HasAirTemp: true, HasWaterTemp: false},
			wantRating: conditions.RatingBad,
			wantReason: "limited data + breezy",
		},
		{
			name:       "full data at 15 kt is only caution",
			input:      conditions.RatingInput{WindSpeedKts: fptr(15), HasAirTemp: true, HasWaterTemp: true},
			wantRating: conditions.RatingCaution,
			wantReason: "breezy, choppy water likely",
		},
		{
			name:       "missing temps alone do not degrade",
			input:      conditions.RatingInput{WindSpeedKts: fptr(5)},
			wantRating: conditions.RatingGood,
			wantReason: "light winds, generally smooth",
		},
		{
			name:       "breezy at 13 kt",
			input:      conditions.RatingInput{WindSpeedKts: fptr(13), HasAirTemp: true, HasWaterTemp: true},
			wantRating: conditions.RatingCaution,
			wantReason: "breezy, choppy water likely",
		},
		{
			name:       "12.9 kt is still good",
			input:      conditions.RatingInput{WindSpeedKts: fptr(12.9), HasAirTemp: true, HasWaterTemp: true},
			wantRating: conditions.RatingGood,
			wantReason: "light winds, generally smooth",
		},
		{
			name:       "elevated water",
			input:      conditions.RatingInput{WindSpeedKts: fptr(4), WaterLevelFt: fptr(1.6), HasAirTemp: true, HasWaterTemp: true},
			wantRating: conditions.RatingCaution,
			wantReason: "elevated water level",
		},
		{
			name:       "reduced visibility",
			input:      conditions.RatingInput{WindSpeedKts: fptr(4), VisibilityMi: fptr(2.5), HasAirTemp: true, HasWaterTemp: true},
			wantRating: conditions.RatingCaution,
			wantReason: "reduced visibility",
		},
		{
			name:       "all nil is good",
			input:      conditions.RatingInput{},
			wantRating: conditions.RatingGood,
			wantReason: "light winds, generally smooth",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rating, reason := conditions.ComputeRating(tt.input)
			assert.Equal(t, tt.wantRating, rating)
			assert.Equal(t, tt.wantReason, reason)
			assert.True(t, rating.Valid())
		})
	}
}

func TestComputeRating_Idempotent(t *testing.T) {
	input := conditions.RatingInput{
		WindSpeedKts: fptr(14.2),
		WaterLevelFt: fptr(1.1),
		VisibilityMi: fptr(6),
		HasAirTemp:   true,
	}

	r1, reason1 := conditions.ComputeRating(input)
	r2, reason2 := conditions.ComputeRating(input)

	assert.Equal(t, r1, r2)
	assert.Equal(t, reason1, reason2)
}

func TestRating_Valid(t *testing.T) {
	assert.True(t, conditions.RatingGood.Valid())
	assert.True(t, conditions.RatingCaution.Valid())
	assert.True(t, conditions.RatingBad.Valid())
	assert.False(t, conditions.Rating("rough").Valid())
	assert.False(t, conditions.Rating("").Valid())
}
