// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/cairibu/instmap/metrics"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// MinDelay is the shortest pause allowed after an address is sent to the
// providers. Configuration never goes below it.
const MinDelay = 500 * time.Millisecond

// DefaultDelay is the pause after every address sent to the providers.
const DefaultDelay = MinDelay

// Resolver turns addresses into resolutions strictly one at a time: cache
// lookup, provider chain on a miss, then a fixed pause before the next key.
type Resolver struct {
	chain    *Chain
	cache    *Cache
	clock    clockwork.Clock
	delay    time.Duration
	metrics  *metrics.Metrics
	progress io.Writer
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithClock replaces the clock used for the inter-request pause.
func WithClock(c clockwork.Clock) ResolverOption {
	return func(r *Resolver) { r.clock = c }
}

// WithDelay sets the pause after each external resolution. Zero disables it;
// user-facing settings are validated against MinDelay before reaching here.
func WithDelay(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.delay = d }
}

// WithMetrics records cache lookups.
func WithMetrics(m *metrics.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// WithProgress draws a progress bar on w while resolving batches.
func WithProgress(w io.Writer) ResolverOption {
	return func(r *Resolver) { r.progress = w }
}

// NewResolver creates a resolver over a chain and a run-scoped cache.
func NewResolver(chain *Chain, cache *Cache, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		chain: chain,
		cache: cache,
		clock: clockwork.NewRealClock(),
		delay: DefaultDelay,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Cache returns the run cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve resolves a single address. Blank addresses are never sent to a
// provider. The only error is the context's.
func (r *Resolver) Resolve(ctx context.Context, address string) (Resolution, error) {
	key := strings.TrimSpace(address)
	if key == "" {
		return Resolution{}, nil
	}

	if cached, ok := r.cache.Get(key); ok {
		r.metrics.ObserveCache(true)

		return cached, nil
	}

	r.metrics.ObserveCache(false)

	res := r.chain.Resolve(ctx, key)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	r.cache.Put(key, res)

	logger := zerolog.Ctx(ctx)
	if res.Found() {
		logger.Debug().Str("address", key).Str("provider", res.Provider).Stringer("point", res.Point).Msg("geocoded")
	} else {
		logger.Warn().Str("address", key).Err(res.Err()).Msg("no provider could geocode address")
	}

	if r.delay > 0 {
		select {
		case <-r.clock.After(r.delay):
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}

	return res, nil
}

// ResolveAll resolves the distinct non-blank addresses in first-seen order.
func (r *Resolver) ResolveAll(ctx context.Context, addresses []string) ([]Resolution, error) {
	keys := UniqueAddresses(addresses)

	var bar *progressbar.ProgressBar
	if r.progress != nil && len(keys) > 0 {
		bar = progressbar.NewOptions(len(keys),
			progressbar.OptionSetDescription("Geocoding addresses"),
			progressbar.OptionSetWriter(r.progress),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	out := make([]Resolution, 0, len(keys))

	for _, key := range keys {
		res, err := r.Resolve(ctx, key)
		if err != nil {
			return out, err
		}

		out = append(out, res)

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}

	return out, nil
}

// UniqueAddresses returns the distinct trimmed, non-blank addresses in
// first-seen order.
func UniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	keys := make([]string, 0, len(addresses))

	for _, a := range addresses {
		key := strings.TrimSpace(a)
		if key == "" {
			continue
		}

		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	return keys
}
