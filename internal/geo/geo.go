package geo

import (
	"errors"
	"fmt"
	"math"

	"crash_watcher/internal/model"
)

const earthRadiusKm = 6371.0088

var ErrInvalidCoordinate = errors.New("invalid coordinate")

// DistanceKm returns the great-circle (haversine) distance between two points.
func DistanceKm(a, b model.Coordinate) (float64, error) {
	if err := Validate(a); err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}
	const degToRad = math.Pi / 180
	lat1 := a.Lat * degToRad
	lon1 := a.Lon * degToRad
	lat2 := b.Lat * degToRad
	lon2 := b.Lon * degToRad
	dlat := lat2 - lat1
	dlon := lon2 - lon1
	h := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c, nil
}

// Validate rejects NaN, infinite and out-of-range coordinates.
func Validate(c model.Coordinate) error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinate, c.Lat, c.Lon)
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: (%v, %v) out of range", ErrInvalidCoordinate, c.Lat, c.Lon)
	}
	return nil
}
