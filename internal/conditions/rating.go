package conditions

import "math"

// Rating thresholds.
const (
	strongWindKts       = 20.0
	limitedDataWindKts  = 15.0
	breezyWindKts       = 13.0
	abnormalWaterFt     = 2.0
	elevatedWaterFt     = 1.5
	reducedVisibilityMi = 3.0
)

// Rating reasons.
const (
	ReasonStrongWinds       = "strong winds"
	ReasonAbnormalWater     = "abnormal water level"
	ReasonLimitedDataBreezy = "limited data + breezy"
	ReasonBreezy            = "breezy, choppy water likely"
	ReasonElevatedWater     = "elevated water level"
	ReasonReducedVisibility = "reduced visibility"
	ReasonLightWinds        = "light winds, generally smooth"
)

// RatingInput holds the observations a rating is derived from.
// A nil value never satisfies a threshold.
type RatingInput struct {
	WindSpeedKts *float64
	WaterLevelFt *float64
	VisibilityMi *float64
	HasAirTemp   bool
	HasWaterTemp bool
}

// ComputeRating applies the ordered rating policy; the first matching rule
// wins. It is pure.
func ComputeRating(in RatingInput) (Rating, string) {
	wind := in.WindSpeedKts
	level := in.WaterLevelFt

	switch {
	case wind != nil && *wind > strongWindKts:
		return RatingBad, ReasonStrongWinds
	case level != nil && math.Abs(*level) > abnormalWaterFt:
		return RatingBad, ReasonAbnormalWater
	case (!in.HasAirTemp || !in.HasWaterTemp) && wind != nil && *wind >= limitedDataWindKts:
		return RatingBad, ReasonLimitedDataBreezy
	case wind != nil && *wind >= breezyWindKts:
		return RatingCaution, ReasonBreezy
	case level != nil && math.Abs(*level) > elevatedWaterFt:
		return RatingCaution, ReasonElevatedWater
	case in.VisibilityMi != nil && *in.VisibilityMi < reducedVisibilityMi:
		return RatingCaution, ReasonReducedVisibility
	default:
		return RatingGood, ReasonLightWinds
	}
}

// Valid reports whether r is one of the defined ratings.
func (r Rating) Valid() bool {
	switch r {
	case RatingGood, RatingCaution, RatingBad:
		return true
	}
	return false
}
