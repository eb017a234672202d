package conditions

// PrimaryStationID is the station the headline rating and tide phase
// describe.
const PrimaryStationID = "central_bay"

// Area is the human-readable name of the covered area.
const Area = "Mobile Bay"

// Station is a configured observation point on the bay.
type Station struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	NOAAStationID string  `json:"noaaStationId"`
}

// Coordinates returns the station position.
func (s Station) Coordinates() Coordinates {
	return Coordinates{Lat: s.Lat, Lon: s.Lon}
}

// DefaultStations returns the Mobile Bay stations in display order.
func DefaultStations() []Station {
	return []Station{
		{
			ID:            PrimaryStationID,
			Name:          "Mobile Bay Mid-Bay",
			Lat:           30.3,
			Lon:           -88.0,
			NOAAStationID: "8737048",
		},
		{
			ID:            "upper_bay",
			Name:          "Mobile River Entrance",
			Lat:           30.7,
			Lon:           -88.0,
			NOAAStationID: "8735180",
		},
		{
			ID:            "lower_bay",
			Name:          "Dauphin Island Bay Side",
			Lat:           30.25,
			Lon:           -88.1,
			NOAAStationID: "8735180",
		},
		{
			ID:            "gulf_entrance",
			Name:          "Mobile Bay Entrance",
			Lat:           30.21,
			Lon:           -88.04,
			NOAAStationID: "8732899",
		},
	}
}

// PrimaryStation returns the station with primaryID, or the first station
// when none matches. ok is false only for an empty list.
func PrimaryStation(stations []Station, primaryID string) (Station, bool) {
	if len(stations) == 0 {
		return Station{}, false
	}
	for _, s := range stations {
		if s.ID == primaryID {
			return s, true
		}
	}
	return stations[0], true
}
