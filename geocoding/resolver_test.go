// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cairibu/instmap/metrics"
	"github.com/cairibu/instmap/spatial"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGeocoder answers from a fixed table and counts calls per address.
type mockGeocoder struct {
	name   string
	points map[string]spatial.Point
	err    error
	calls  map[string]int
	total  int
}

func newMockGeocoder(name string, points map[string]spatial.Point) *mockGeocoder {
	return &mockGeocoder{name: name, points: points, calls: make(map[string]int)}
}

func (m *mockGeocoder) Name() string { return m.name }

func (m *mockGeocoder) Geocode(_ context.Context, address string) (*Result, error) {
	m.calls[address]++
	m.total++

	if m.err != nil {
		return nil, m.err
	}

	p, ok := m.points[address]
	if !ok {
		return nil, notFound(m.name, address)
	}

	return &Result{Point: p, Provider: m.name, DisplayName: address}, nil
}

func TestChainFallbackOrder(t *testing.T) {
	primary := newMockGeocoder("primary", map[string]spatial.Point{"A": {Lat: 1, Lng: 1}})
	secondary := newMockGeocoder("secondary", map[string]spatial.Point{
		"A": {Lat: 9, Lng: 9},
		"B": {Lat: 2, Lng: 2},
	})
	m := metrics.NewForTesting()
	chain := NewChain(m, primary, secondary)

	assert.Equal(t, []string{"primary", "secondary"}, chain.Providers())

	a := chain.Resolve(context.Background(), "A")
	require.True(t, a.Found())
	assert.Equal(t, spatial.Point{Lat: 1, Lng: 1}, *a.Point)
	assert.Equal(t, "primary", a.Provider)
	assert.Len(t, a.Attempts, 1)
	assert.Zero(t, secondary.calls["A"], "secondary must not be asked when primary succeeds")

	b := chain.Resolve(context.Background(), "B")
	require.True(t, b.Found())
	assert.Equal(t, "secondary", b.Provider)
	require.Len(t, b.Attempts, 2)
	assert.Equal(t, "not_found", b.Attempts[0].Outcome())
	assert.Equal(t, "found", b.Attempts[1].Outcome())

	c := chain.Resolve(context.Background(), "C")
	assert.False(t, c.Found())
	assert.Len(t, c.Attempts, 2)
	assert.True(t, IsNotFoundError(c.Err()))

	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("primary", "found")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("primary", "not_found")), 0)
}

func TestChainProviderErrorsDoNotPropagate(t *testing.T) {
	primary := newMockGeocoder("primary", nil)
	primary.err = &GeocodingError{Type: ErrorTypeTimeout, Message: "request timed out"}
	secondary := newMockGeocoder("secondary", map[string]spatial.Point{"A": {Lat: 3, Lng: 3}})

	res := NewChain(nil, primary, secondary).Resolve(context.Background(), "A")
	require.True(t, res.Found())
	assert.Equal(t, "error", res.Attempts[0].Outcome())
	assert.True(t, IsTimeoutError(res.Attempts[0].Err))
	assert.NoError(t, res.Err())
}

func TestResolverMemoizes(t *testing.T) {
	primary := newMockGeocoder("primary", map[string]spatial.Point{"1 Main St": {Lat: 40, Lng: -75}})
	secondary := newMockGeocoder("secondary", nil)
	m := metrics.NewForTesting()
	cache := NewCache()

	r := NewResolver(NewChain(nil, primary, secondary), cache, WithDelay(0), WithMetrics(m))

	addresses := []string{"1 Main St", " 1 Main St ", "Unknown Rd", "", "1 Main St", "Unknown Rd", "   "}
	got, err := r.ResolveAll(context.Background(), addresses)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "1 Main St", got[0].Address)
	assert.True(t, got[0].Found())
	assert.Equal(t, "Unknown Rd", got[1].Address)
	assert.False(t, got[1].Found())

	assert.Equal(t, 1, primary.calls["1 Main St"])
	assert.Equal(t, 1, primary.calls["Unknown Rd"])
	assert.Equal(t, 1, secondary.calls["Unknown Rd"], "not-found keys are attempted once per provider")
	assert.Zero(t, primary.calls[""])

	// Later lookups of the same key come from the cache, failures included.
	again, err := r.Resolve(context.Background(), "Unknown Rd")
	require.NoError(t, err)
	assert.False(t, again.Found())
	assert.Equal(t, 1, primary.calls["Unknown Rd"])
	assert.Equal(t, 2, primary.total)

	assert.Equal(t, CacheStats{Entries: 2, Hits: 1, Misses: 2}, cache.Stats())
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("hit")), 0)
}

func TestResolverBlankAddress(t *testing.T) {
	primary := newMockGeocoder("primary", nil)
	r := NewResolver(NewChain(nil, primary), NewCache(), WithDelay(time.Hour))

	res, err := r.Resolve(context.Background(), "  ")
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Empty(t, res.Attempts)
	assert.Zero(t, primary.total)
}

func TestResolverWaitsAfterEachExternalResolution(t *testing.T) {
	primary := newMockGeocoder("primary", map[string]spatial.Point{"A": {Lat: 1, Lng: 1}})
	clock := clockwork.NewFakeClock()
	start := clock.Now()

	r := NewResolver(NewChain(nil, primary), NewCache(), WithClock(clock), WithDelay(500*time.Millisecond))

	type result struct {
		res []Resolution
		err error
	}

	done := make(chan result, 1)

	go func() {
		res, err := r.ResolveAll(context.Background(), []string{"A", "B", "A", "C"})
		done <- result{res, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// One pause per distinct key, found or not; none for the repeated "A".
	for i := 0; i < 3; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		assert.Equal(t, i+1, primary.total, "a request must not start before the previous pause ends")
		clock.Advance(500 * time.Millisecond)
	}

	select {
	case got := <-done:
		require.NoError(t, got.err)
		assert.Len(t, got.res, 3)
	case <-ctx.Done():
		t.Fatal("resolver did not finish")
	}

	assert.Equal(t, 1500*time.Millisecond, clock.Since(start))
	assert.Equal(t, 3, primary.total)
}

func TestResolverCancelledDuringPause(t *testing.T) {
	primary := newMockGeocoder("primary", nil)
	clock := clockwork.NewFakeClock()
	r := NewResolver(NewChain(nil, primary), NewCache(), WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)

	go func() {
		_, err := r.ResolveAll(ctx, []string{"A", "B"})
		errc <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()

	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	select {
	case err := <-errc:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-waitCtx.Done():
		t.Fatal("resolver ignored cancellation")
	}

	assert.Equal(t, 1, primary.total)
}

func TestUniqueAddresses(t *testing.T) {
	got := UniqueAddresses([]string{" b", "a", "b ", "", "c", "a"})
	assert.Equal(t, []string{"b", "a", "c"}, got)
}
