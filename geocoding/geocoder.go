// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocoding resolves free-text institutional addresses into points
// through an ordered chain of external providers, one address at a time.
package geocoding

import (
	"context"
	"errors"
	"time"

	"github.com/cairibu/instmap/spatial"
)

// Provider names as they appear in results, logs and metrics.
const (
	ProviderArcGIS    = "arcgis"
	ProviderNominatim = "nominatim"
	ProviderGoogle    = "google_maps"
)

// Result represents a geocoding result from any provider.
type Result struct {
	Point       spatial.Point
	Confidence  string // high, medium, low; empty when the provider has no notion of it
	Provider    string
	DisplayName string
}

// Geocoder is a single external provider. Implementations return a
// *GeocodingError with ErrorTypeNotFound when the provider answered but had
// no match.
type Geocoder interface {
	Name() string
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Attempt is the outcome of asking one provider about one address.
type Attempt struct {
	Provider string
	Result   *Result
	Err      error
	Elapsed  time.Duration
}

// Outcome classifies the attempt for reporting: found, not_found or error.
func (a Attempt) Outcome() string {
	switch {
	case a.Result != nil:
		return "found"
	case IsNotFoundError(a.Err):
		return "not_found"
	default:
		return "error"
	}
}

// Resolution is the per-address result of a run: the point, if any, plus
// every provider attempt that led to it.
type Resolution struct {
	Address     string
	Point       *spatial.Point
	Provider    string
	DisplayName string
	Attempts    []Attempt
}

// Found reports whether any provider produced a point.
func (r Resolution) Found() bool {
	return r.Point != nil
}

// Err joins the errors of every failed attempt, nil when the address was found.
func (r Resolution) Err() error {
	if r.Found() {
		return nil
	}

	errs := make([]error, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}

	return errors.Join(errs...)
}
