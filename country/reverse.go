// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package country

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cairibu/instmap/spatial"
	"github.com/uber/h3-go/v4"
)

// ReverseGeocoder maps a point to an ISO country code without network
// access. An empty code with a nil error means no match.
type ReverseGeocoder interface {
	CountryCode(p spatial.Point) (string, error)
}

const (
	cityResolution  = 3
	cityRings       = 2
	cityMaxDistance = 150e3 // meters
)

type city struct {
	point spatial.Point
	code  string
}

// CityIndex is a nearest-city reverse geocoder over a GeoNames dump, bucketed
// by H3 cell. A point resolves to the country of the closest known city
// within cityMaxDistance.
type CityIndex struct {
	cells map[h3.Cell][]city
	size  int
}

// NewCityIndex creates an empty index.
func NewCityIndex() *CityIndex {
	return &CityIndex{cells: make(map[h3.Cell][]city)}
}

// LoadCityIndex reads a GeoNames cities file (e.g. cities15000.txt).
func LoadCityIndex(path string) (*CityIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cities file: %w", err)
	}
	defer f.Close()

	idx, err := ReadCityIndex(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return idx, nil
}

// ReadCityIndex parses the tab separated GeoNames format: latitude in column
// 5, longitude in column 6 and the country code in column 9 (1-based).
// Malformed lines are skipped.
func ReadCityIndex(r io.Reader) (*CityIndex, error) {
	idx := NewCityIndex()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cols := strings.Split(line, "\t")
		if len(cols) < 9 || cols[8] == "" {
			continue
		}

		p, err := spatial.ParsePoint(cols[4], cols[5])
		if err != nil {
			continue
		}

		if err := idx.Add(p, cols[8]); err != nil {
			return nil, err
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning cities: %w", err)
	}

	return idx, nil
}

// Add indexes a city.
func (x *CityIndex) Add(p spatial.Point, code string) error {
	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), cityResolution)
	if err != nil {
		return fmt.Errorf("error converting to h3 cell: %w", err)
	}

	x.cells[cell] = append(x.cells[cell], city{point: p, code: strings.ToUpper(code)})
	x.size++

	return nil
}

// Len returns the number of indexed cities.
func (x *CityIndex) Len() int {
	return x.size
}

// CountryCode implements ReverseGeocoder.
func (x *CityIndex) CountryCode(p spatial.Point) (string, error) {
	if x.size == 0 {
		return "", nil
	}

	origin, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), cityResolution)
	if err != nil {
		return "", fmt.Errorf("error converting to h3 cell: %w", err)
	}

	disk, err := h3.GridDisk(origin, cityRings)
	if err != nil {
		return "", fmt.Errorf("computing grid disk: %w", err)
	}

	best, bestDistance := "", cityMaxDistance

	for _, cell := range disk {
		for _, c := range x.cells[cell] {
			if d := p.HaversineDistance(c.point); d <= bestDistance {
				best, bestDistance = c.code, d
			}
		}
	}

	return best, nil
}
