// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package country labels map points with a country and tallies how much of
// the roster sits outside the United States.
package country

import (
	"context"
	"strings"

	"github.com/cairibu/instmap/metrics"
	"github.com/cairibu/instmap/spatial"
	"github.com/rs/zerolog"
)

// Source names the branch that produced a classification.
type Source string

const (
	SourceColumn      Source = "column"
	SourceReverse     Source = "reverse"
	SourceBoundingBox Source = "bbox"
	SourceInvalid     Source = "invalid"
)

// USBoxes are the bounding boxes of the contiguous US, Alaska, Hawaii and
// Puerto Rico.
var USBoxes = []spatial.Box{
	{Name: "contiguous", MinLat: 24, MaxLat: 50, MinLng: -125, MaxLng: -66},
	{Name: "alaska", MinLat: 50, MaxLat: 72, MinLng: -170, MaxLng: -129},
	{Name: "hawaii", MinLat: 18, MaxLat: 23, MinLng: -161, MaxLng: -154},
	{Name: "puerto_rico", MinLat: 17, MaxLat: 19, MinLng: -68, MaxLng: -65},
}

// Classification is a country label plus where it came from. Label is empty
// when the point was unusable; Err then holds a *spatial.CoordinateParseError.
type Classification struct {
	Label  string
	Source Source
	Err    error
}

// Classifier evaluates, in order: the explicit country value, the offline
// reverse geocoder and the US bounding boxes.
type Classifier struct {
	reverse ReverseGeocoder
	metrics *metrics.Metrics
}

// NewClassifier creates a classifier. reverse and m may be nil.
func NewClassifier(reverse ReverseGeocoder, m *metrics.Metrics) *Classifier {
	return &Classifier{reverse: reverse, metrics: m}
}

// Classify labels a numeric point. A non-blank explicit value always wins.
// Diagnostics go to the logger carried by ctx.
func (c *Classifier) Classify(ctx context.Context, explicit string, lat, lng float64) Classification {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return c.done(Classification{Label: explicit, Source: SourceColumn})
	}

	p, err := spatial.NewPoint(lat, lng)
	if err != nil {
		return c.done(Classification{Source: SourceInvalid, Err: err})
	}

	return c.classifyPoint(ctx, p)
}

// ClassifyText labels a point given as text, as read from a spreadsheet.
func (c *Classifier) ClassifyText(ctx context.Context, explicit, lat, lng string) Classification {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return c.done(Classification{Label: explicit, Source: SourceColumn})
	}

	p, err := spatial.ParsePoint(lat, lng)
	if err != nil {
		return c.done(Classification{Source: SourceInvalid, Err: err})
	}

	return c.classifyPoint(ctx, p)
}

func (c *Classifier) classifyPoint(ctx context.Context, p spatial.Point) Classification {
	if c.reverse != nil {
		code, err := c.reverse.CountryCode(p)

		switch {
		case err != nil:
			zerolog.Ctx(ctx).Debug().Err(err).Stringer("point", p).Msg("reverse geocoding failed, using bounding boxes")
		case code != "":
			return c.done(Classification{Label: Name(code), Source: SourceReverse})
		}
	}

	label := NonUS
	if _, ok := spatial.AnyContains(USBoxes, p); ok {
		label = UnitedStates
	}

	return c.done(Classification{Label: label, Source: SourceBoundingBox})
}

func (c *Classifier) done(cl Classification) Classification {
	c.metrics.ObserveClassification(string(cl.Source))

	return cl
}
