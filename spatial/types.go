// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package spatial holds the geographic primitives shared by the geocoders,
// the country classifier and the map renderer.
package spatial

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const earthRadius = 6371e3 // meters

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lng)
}

// Valid reports whether both components are finite and inside the WGS84 range.
func (p Point) Valid() bool {
	return validComponent(p.Lat, 90) && validComponent(p.Lng, 180)
}

// LngLat returns the point in [lon, lat] order, as expected by GeoJSON.
func (p Point) LngLat() [2]float64 {
	return [2]float64{p.Lng, p.Lat}
}

func validComponent(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -limit && v <= limit
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p Point) HaversineDistance(other Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// Centroid returns the arithmetic mean of the points. It is what the map
// uses as its initial view, not a geodesic center.
func Centroid(points []Point) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}

	var lat, lng float64
	for _, p := range points {
		lat += p.Lat
		lng += p.Lng
	}

	n := float64(len(points))

	return Point{Lat: lat / n, Lng: lng / n}, true
}

// CoordinateParseError reports a latitude/longitude pair that cannot be used.
type CoordinateParseError struct {
	Lat    string
	Lng    string
	Reason string
}

func (e *CoordinateParseError) Error() string {
	return fmt.Sprintf("invalid coordinates (%q, %q): %s", e.Lat, e.Lng, e.Reason)
}

// NewPoint validates a numeric pair.
func NewPoint(lat, lng float64) (Point, error) {
	p := Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return Point{}, &CoordinateParseError{
			Lat:    strconv.FormatFloat(lat, 'f', -1, 64),
			Lng:    strconv.FormatFloat(lng, 'f', -1, 64),
			Reason: "out of range",
		}
	}

	return p, nil
}

// ParsePoint parses textual latitude and longitude, as found in spreadsheets
// and in provider responses.
func ParsePoint(lat, lng string) (Point, error) {
	la, errLat := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	lo, errLng := strconv.ParseFloat(strings.TrimSpace(lng), 64)

	if errLat != nil || errLng != nil {
		return Point{}, &CoordinateParseError{Lat: lat, Lng: lng, Reason: "not a number"}
	}

	p := Point{Lat: la, Lng: lo}
	if !p.Valid() {
		return Point{}, &CoordinateParseError{Lat: lat, Lng: lng, Reason: "out of range"}
	}

	return p, nil
}
