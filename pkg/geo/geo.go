// Package geo holds the closed-form distance estimator used whenever no routing
// provider answers.
package geo

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	EarthRadiusKm          = 6371.0
	DefaultAssumedSpeedKmh = 60.0
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the position lies on the globe.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Equal compares positions after rounding to roughly one meter.
func (c Coordinates) Equal(other Coordinates) bool {
	return round(c.Lat, 5) == round(other.Lat, 5) && round(c.Lng, 5) == round(other.Lng, 5)
}

// LngLat returns the [lng, lat] pair routing APIs expect.
func (c Coordinates) LngLat() []float64 {
	return []float64{c.Lng, c.Lat}
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// HaversineKm is the great-circle distance between a and b on a sphere of EarthRadiusKm.
func HaversineKm(a, b Coordinates) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dphi := (b.Lat - a.Lat) * math.Pi / 180
	dlam := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dphi/2)*math.Sin(dphi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dlam/2)*math.Sin(dlam/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// Leg is a rounded distance/duration pair between two consecutive points.
type Leg struct {
	DistanceKm  float64
	DurationMin int
}

// Estimator derives legs from straight-line distance at a constant speed.
type Estimator struct {
	speedKmh float64
}

// NewEstimator builds an estimator. A non-positive speed falls back to DefaultAssumedSpeedKmh.
func NewEstimator(speedKmh float64) Estimator {
	if speedKmh <= 0 || math.IsNaN(speedKmh) {
		speedKmh = DefaultAssumedSpeedKmh
	}
	return Estimator{speedKmh: speedKmh}
}

// Estimate never fails; identical points yield a zero leg.
func (e Estimator) Estimate(from, to Coordinates) Leg {
	km := HaversineKm(from, to)
	return Leg{
		DistanceKm:  RoundKm(km),
		DurationMin: RoundMinutes(km / e.speedKmh * 60),
	}
}

// RoundKm rounds half away from zero to one decimal place.
func RoundKm(km float64) float64 {
	return round(km, 1)
}

// RoundMinutes rounds half away from zero to a whole minute.
func RoundMinutes(minutes float64) int {
	return int(decimal.NewFromFloat(minutes).Round(0).IntPart())
}

// MetersToKm converts a provider distance and rounds it like every other leg.
func MetersToKm(meters float64) float64 {
	return RoundKm(meters / 1000)
}

// SecondsToMinutes converts a provider duration and rounds it like every other leg.
func SecondsToMinutes(seconds float64) int {
	return RoundMinutes(seconds / 60)
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
