// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"time"

	"github.com/cairibu/instmap/metrics"
	"github.com/rs/zerolog"
)

// Chain asks its providers in order and stops at the first one that returns
// a point. Provider errors are recorded, never returned.
type Chain struct {
	providers []Geocoder
	metrics   *metrics.Metrics
}

// NewChain creates a fallback chain. m may be nil.
func NewChain(m *metrics.Metrics, providers ...Geocoder) *Chain {
	return &Chain{providers: providers, metrics: m}
}

// Providers returns the provider names in the order they are tried.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}

	return names
}

// Resolve runs the chain for one address.
func (c *Chain) Resolve(ctx context.Context, address string) Resolution {
	logger := zerolog.Ctx(ctx)
	res := Resolution{Address: address}

	for _, p := range c.providers {
		start := time.Now()
		result, err := p.Geocode(ctx, address)

		attempt := Attempt{Provider: p.Name(), Result: result, Err: err, Elapsed: time.Since(start)}
		if err != nil {
			attempt.Result = nil
		} else if result == nil {
			attempt.Err = notFound(p.Name(), address)
		}

		res.Attempts = append(res.Attempts, attempt)
		c.metrics.ObserveGeocode(attempt.Provider, attempt.Outcome(), attempt.Elapsed)

		if attempt.Result != nil {
			point := attempt.Result.Point
			res.Point = &point
			res.Provider = attempt.Result.Provider
			res.DisplayName = attempt.Result.DisplayName

			return res
		}

		logger.Debug().
			Str("provider", attempt.Provider).
			Str("address", address).
			Err(attempt.Err).
			Msg("provider failed, trying next")

		if ctx.Err() != nil {
			break
		}
	}

	return res
}
