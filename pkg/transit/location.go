package transit

import (
	"errors"
	"math"
)

// Location is a GeoJSON style point, coordinates always [longitude, latitude]
type Location struct {
	Type        string    `json:"type" groups:"basic"`
	Coordinates []float64 `json:"coordinates" groups:"basic"`
}

func NewPoint(longitude float64, latitude float64) Location {
	return Location{
		Type:        "Point",
		Coordinates: []float64{longitude, latitude},
	}
}

func (l *Location) Longitude() float64 {
	return l.Coordinates[0]
}

func (l *Location) Latitude() float64 {
	return l.Coordinates[1]
}

var ErrInvalidCoordinates = errors.New("coordinates must be two finite values of [longitude, latitude]")

func (l *Location) Validate() error {
	if len(l.Coordinates) != 2 {
		return ErrInvalidCoordinates
	}

	longitude := l.Coordinates[0]
	latitude := l.Coordinates[1]

	if math.IsNaN(longitude) || math.IsInf(longitude, 0) || math.IsNaN(latitude) || math.IsInf(latitude, 0) {
		return ErrInvalidCoordinates
	}

	if longitude < -180 || longitude > 180 || latitude < -90 || latitude > 90 {
		return ErrInvalidCoordinates
	}

	return nil
}

const earthRadiusMeters = 6371e3

// Distance returns the great-circle (haversine) distance in meters
func (l *Location) Distance(other *Location) float64 {
	phi1 := l.Coordinates[1] * math.Pi / 180
	phi2 := other.Coordinates[1] * math.Pi / 180
	deltaPhi := (other.Coordinates[1] - l.Coordinates[1]) * math.Pi / 180
	deltaLambda := (other.Coordinates[0] - l.Coordinates[0]) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
