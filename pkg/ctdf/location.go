package ctdf

import "math"

// EarthRadiusKm is the mean radius used for all great-circle distances
const EarthRadiusKm = 6371.0

// Location is a GeoJSON style point, coordinates are ordered longitude then latitude
type Location struct {
	Type        string    `json:"-" groups:"basic"`
	Coordinates []float64 `json:"coordinates" groups:"basic"`
}

func NewPointLocation(latitude float64, longitude float64) Location {
	return Location{
		Type:        "Point",
		Coordinates: []float64{longitude, latitude},
	}
}

func (l *Location) IsPoint() bool {
	return l != nil && l.Type == "Point" && len(l.Coordinates) == 2
}

func (l *Location) Latitude() float64 {
	return l.Coordinates[1]
}

func (l *Location) Longitude() float64 {
	return l.Coordinates[0]
}

// DistanceKm returns the great-circle distance in kilometres between two point locations
func (l *Location) DistanceKm(other *Location) float64 {
	return DistanceKm(l.Latitude(), l.Longitude(), other.Latitude(), other.Longitude())
}

// DistanceKm implements the haversine formula on a sphere of radius EarthRadiusKm
func DistanceKm(lat1 float64, lon1 float64, lat2 float64, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degreesToRadians(lat1))*math.Cos(degreesToRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
