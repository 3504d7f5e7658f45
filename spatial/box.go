// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

// Box is a latitude/longitude rectangle. Bounds are inclusive and the box
// never crosses the antimeridian.
type Box struct {
	Name   string
	MinLat float64
	MinLng float64
	MaxLat float64
	MaxLng float64
}

// Contains reports whether p lies inside the box, edges included.
func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// AnyContains returns the first box containing p.
func AnyContains(boxes []Box, p Point) (Box, bool) {
	for _, b := range boxes {
		if b.Contains(p) {
			return b, true
		}
	}

	return Box{}, false
}
