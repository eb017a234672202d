// Package conditions defines the Mobile Bay conditions snapshot and the pure
// derivations (tide phase, safety rating, summary text) computed from it.
//
// Every observational field is a pointer: an absent value serializes as
// null, never as 0 or "".
package conditions

import "time"

// Rating is the qualitative safety judgment for on-water activity.
type Rating string

const (
	RatingGood    Rating = "good"
	RatingCaution Rating = "caution"
	RatingBad     Rating = "bad"
)

// TidePhase is the direction of water-height change at the current instant.
type TidePhase string

const (
	TidePhaseRising  TidePhase = "rising"
	TidePhaseFalling TidePhase = "falling"
	TidePhaseSlack   TidePhase = "slack"
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// TidePoint is a single predicted water height.
type TidePoint struct {
	TimestampSeconds int64   `json:"timestampSeconds"`
	HeightFt         float64 `json:"heightFt"`
}

// Time returns the point's timestamp.
func (p TidePoint) Time() time.Time {
	return time.Unix(p.TimestampSeconds, 0).UTC()
}

// TideExtreme is a predicted high or low tide.
type TideExtreme struct {
	Type             string  `json:"type"`
	TimestampSeconds int64   `json:"timestampSeconds"`
	HeightFt         float64 `json:"heightFt"`
}

// Extreme types as reported by tide providers.
const (
	ExtremeHigh = "High"
	ExtremeLow  = "Low"
)

// TideSeries is the raw output of a tide provider before it is folded into
// a snapshot.
type TideSeries struct {
	Station  string        `json:"station"`
	Extremes []TideExtreme `json:"extremes"`
	Heights  []TidePoint   `json:"heights"`
	// Sample is true when the series is the synthetic offline fallback.
	Sample    bool      `json:"sample"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Tides is the tide section of a snapshot.
type Tides struct {
	Station   *string       `json:"station"`
	CurrentFt *float64      `json:"currentFt"`
	NextHigh  *TideExtreme  `json:"nextHigh"`
	NextLow   *TideExtreme  `json:"nextLow"`
	Trend     *TidePhase    `json:"trend"`
	Extremes  []TideExtreme `json:"extremes"`
	Heights   []TidePoint   `json:"heights"`
	Sample    bool          `json:"sample"`
	UpdatedAt *time.Time    `json:"updatedAt"`
}

// WaterLevel is the latest CO-OPS observation for one station.
type WaterLevel struct {
	NOAAStationID string   `json:"noaaStationId"`
	Time          *string  `json:"time"`
	WaterLevelFt  *float64 `json:"waterLevelFt"`
	WaterTempF    *float64 `json:"waterTempF"`
	Sigma         *float64 `json:"sigma"`
	Quality       *string  `json:"quality"`
}

// WaterLevels maps station IDs to their latest water level.
type WaterLevels map[string]WaterLevel

// Weather is the weather section of a snapshot.
type Weather struct {
	TempF        *float64 `json:"tempF"`
	FeelsLikeF   *float64 `json:"feelsLikeF"`
	HumidityPct  *float64 `json:"humidityPct"`
	VisibilityMi *float64 `json:"visibilityMi"`
	Summary      *string  `json:"summary"`
	ObservedAt   *string  `json:"observedAt"`
}

// StationWind is the first hourly forecast period for one station.
type StationWind struct {
	SpeedKts      *float64 `json:"speedKts"`
	GustKts       *float64 `json:"gustKts"`
	DirectionDeg  *float64 `json:"directionDeg"`
	AirTempF      *float64 `json:"airTempF"`
	ShortForecast *string  `json:"shortForecast"`
	StartTime     *string  `json:"startTime"`
}

// Wind is the wind section of a snapshot. The top-level values describe the
// primary station.
type Wind struct {
	SpeedKts          *float64               `json:"speedKts"`
	GustKts           *float64               `json:"gustKts"`
	DirectionDeg      *float64               `json:"directionDeg"`
	DirectionCardinal *string                `json:"directionCardinal"`
	Stations          map[string]StationWind `json:"stations"`
}

// WindVector is one grid cell of a gridded wind field, in m/s.
type WindVector struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	U   float64 `json:"u"`
	V   float64 `json:"v"`
}

// WindFieldMeta describes the grid a wind field was sampled on.
type WindFieldMeta struct {
	LatStep     float64 `json:"latStep"`
	LonStep     float64 `json:"lonStep"`
	Description string  `json:"description"`
	Time        *string `json:"time"`
}

// WindField is a gridded surface wind field over the bay.
type WindField struct {
	Meta    *WindFieldMeta `json:"meta"`
	Vectors []WindVector   `json:"vectors"`
}

// Marine is the marine zone forecast section of a snapshot.
type Marine struct {
	Zone         *string  `json:"zone"`
	WaveHeightFt *float64 `json:"waveHeightFt"`
	Summary      *string  `json:"summary"`
	IssuedAt     *string  `json:"issuedAt"`
}

// Moon is the moon section of a snapshot.
type Moon struct {
	Phase           *string  `json:"phase"`
	IlluminationPct *float64 `json:"illuminationPct"`
	Moonrise        *string  `json:"moonrise"`
	Moonset         *string  `json:"moonset"`
}

// Radar is the radar section of a snapshot.
type Radar struct {
	ImageURL  *string `json:"imageUrl"`
	UpdatedAt *string `json:"updatedAt"`
}

// StationConditions is the merged view of one configured station.
type StationConditions struct {
	StationID    string      `json:"stationId"`
	Name         string      `json:"name"`
	Coordinates  Coordinates `json:"coordinates"`
	WindSpeedKts *float64    `json:"windSpeedKts"`
	WindGustKts  *float64    `json:"windGustKts"`
	WindDirDeg   *float64    `json:"windDirDeg"`
	AirTempF     *float64    `json:"airTempF"`
	WaterTempF   *float64    `json:"waterTempF"`
	WaterLevelFt *float64    `json:"waterLevelFt"`
	TidePhase    *TidePhase  `json:"tidePhase"`
	Source       string      `json:"source"`
	ObservedAt   *string     `json:"observedAt"`
}

// Summary is the headline view of the primary station.
type Summary struct {
	Rating       Rating     `json:"rating"`
	Message      string     `json:"message"`
	StationID    string     `json:"stationId"`
	StationName  string     `json:"stationName"`
	Area         string     `json:"area"`
	WindSpeedKts *float64   `json:"windSpeedKts"`
	WindDirDeg   *float64   `json:"windDirDeg"`
	WaveHeightFt *float64   `json:"waveHeightFt"`
	TidePhase    *TidePhase `json:"tidePhase"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Snapshot is the merged, persisted representation of every source's latest
// known conditions.
type Snapshot struct {
	UpdatedAt    time.Time           `json:"updatedAt"`
	Rating       *Rating             `json:"rating"`
	RatingReason *string             `json:"ratingReason"`
	Summary      *Summary            `json:"summary"`
	Stations     []StationConditions `json:"stations"`
	Tides        Tides               `json:"tides"`
	Weather      Weather             `json:"weather"`
	Wind         Wind                `json:"wind"`
	WindField    WindField           `json:"windField"`
	Marine       Marine              `json:"marine"`
	Moon         Moon                `json:"moon"`
	Radar        Radar               `json:"radar"`
	Stale        bool                `json:"stale"`
	Errors       []string            `json:"errors"`
}

// EmptyTides returns the tide fallback shape.
func EmptyTides() Tides {
	return Tides{Extremes: []TideExtreme{}, Heights: []TidePoint{}}
}

// EmptyWind returns the wind fallback shape.
func EmptyWind() Wind {
	return Wind{Stations: map[string]StationWind{}}
}

// EmptyWindField returns the wind field fallback shape.
func EmptyWindField() WindField {
	return WindField{Vectors: []WindVector{}}
}

// EmptySnapshot returns the cold-start payload: every section in its fallback
// shape and every observational leaf null.
func EmptySnapshot(updatedAt time.Time) *Snapshot {
	return &Snapshot{
		UpdatedAt: updatedAt.UTC(),
		Stations:  []StationConditions{},
		Tides:     EmptyTides(),
		Wind:      EmptyWind(),
		WindField: EmptyWindField(),
		Stale:     true,
		Errors:    []string{},
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
