// Package geo validates that a check-in happens near the merchant.
package geo

import (
	"errors"
	"math"
)

const earthRadiusMeters = 6371000.0

// DefaultRadiusMeters is the admissible distance around a tenant's location.
const DefaultRadiusMeters = 200.0

var (
	ErrLocationRequired = errors.New("client location required")
	ErrLocationInvalid  = errors.New("client location invalid")
	ErrTooFar           = errors.New("client too far from store")
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the point is finite and within coordinate ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// TooFarError carries the rounded distance for user feedback.
type TooFarError struct {
	DistanceMeters int
	RadiusMeters   float64
}

func (e *TooFarError) Error() string {
	return ErrTooFar.Error()
}

func (e *TooFarError) Unwrap() error {
	return ErrTooFar
}

// Distance returns the great-circle distance in meters.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Check admits the client when the tenant has no center configured, or when
// the client is within radius of it. A nil client with a configured center
// fails with ErrLocationRequired.
func Check(center, client *Point, radius float64) error {
	if center == nil {
		return nil
	}
	if client == nil {
		return ErrLocationRequired
	}
	if !client.Valid() {
		return ErrLocationInvalid
	}
	if radius <= 0 {
		radius = DefaultRadiusMeters
	}

	d := Distance(*center, *client)
	if d > radius {
		return &TooFarError{DistanceMeters: int(math.Round(d)), RadiusMeters: radius}
	}
	return nil
}
