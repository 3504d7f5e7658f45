// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cairibu/instmap/aggregate"
	"github.com/cairibu/instmap/config"
	"github.com/cairibu/instmap/country"
	"github.com/cairibu/instmap/geocoding"
	"github.com/cairibu/instmap/pipeline"
	"github.com/cairibu/instmap/spatial"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFlags(t *testing.T) {
	opts := &rootOptions{}
	cmd := &cobra.Command{Use: "test"}
	registerRootFlags(cmd.Flags(), opts)

	require.NoError(t, cmd.ParseFlags([]string{"--delay=2s", "--max-addresses=10", "--cities=cities.txt", "--log-level=debug"}))

	c := &config.Config{GeocodeDelay: time.Second, UserAgent: "from-env", MaxAddresses: 3}
	require.NoError(t, applyFlags(cmd, c, opts))

	assert.Equal(t, 2*time.Second, c.GeocodeDelay)
	assert.Equal(t, 10, c.MaxAddresses)
	assert.Equal(t, "cities.txt", c.CitiesFile)
	assert.Equal(t, "from-env", c.UserAgent, "unset flags keep the environment value")
	assert.Equal(t, "debug", c.LogLevel.String())
}

func TestApplyFlagsRejectsBadValues(t *testing.T) {
	tests := [][]string{
		{"--delay=-1s"},
		{"--delay=0s"},
		{"--delay=100ms"},
		{"--max-addresses=-1"},
		{"--log-level=loud"},
	}

	for _, args := range tests {
		opts := &rootOptions{}
		cmd := &cobra.Command{Use: "test"}
		registerRootFlags(cmd.Flags(), opts)
		require.NoError(t, cmd.ParseFlags(args))

		assert.Error(t, applyFlags(cmd, &config.Config{}, opts), args)
	}
}

func TestApplyFlagsAcceptsMinimumDelay(t *testing.T) {
	opts := &rootOptions{}
	cmd := &cobra.Command{Use: "test"}
	registerRootFlags(cmd.Flags(), opts)
	require.NoError(t, cmd.ParseFlags([]string{"--delay=500ms"}))

	c := &config.Config{GeocodeDelay: time.Second}
	require.NoError(t, applyFlags(cmd, c, opts))
	assert.Equal(t, geocoding.MinDelay, c.GeocodeDelay)
}

func TestPrintReport(t *testing.T) {
	report := &pipeline.Report{
		Mode:    pipeline.ModeAddress,
		Records: 4,
		Markers: []pipeline.Marker{{
			InstitutionAggregate: aggregate.InstitutionAggregate{
				Institution: "Acme", Point: spatial.Point{Lat: 40, Lng: -75}, Count: 3, Country: country.UnitedStates,
			},
		}},
		Dropped: []aggregate.Dropped{{Institution: "Beta", Key: "Atlantis", Reason: aggregate.ReasonGeocodeFailed, Count: 1}},
		Geocodes: []geocoding.Resolution{
			{Address: "1 Main St", Point: &spatial.Point{Lat: 40, Lng: -75}, Provider: "arcgis"},
			{Address: "Atlantis"},
		},
		CacheStats: geocoding.CacheStats{Entries: 2, Misses: 2},
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "Raw geocode results:")
	assert.Contains(t, out, "not found")
	assert.Contains(t, out, "│ Acme ")
	assert.Contains(t, out, "geocode_failed")
	assert.Contains(t, out, "3 of 4 rows mapped to 1 markers")
	assert.Contains(t, out, "Non-US: 0 people across 0 institutions")
	assert.Contains(t, out, "1 rows are not on the map")
}

type lineGeocoder struct{ calls int }

func (*lineGeocoder) Name() string { return "line" }

func (g *lineGeocoder) Geocode(_ context.Context, address string) (*geocoding.Result, error) {
	g.calls++
	if address == "nowhere" {
		return nil, &geocoding.GeocodingError{Provider: "line", Type: geocoding.ErrorTypeNotFound, Message: "no results"}
	}

	return &geocoding.Result{Point: spatial.Point{Lat: 1, Lng: 2}, Provider: "line"}, nil
}

func TestDebugGeocode(t *testing.T) {
	g := &lineGeocoder{}
	resolver := geocoding.NewResolver(geocoding.NewChain(nil, g), geocoding.NewCache(), geocoding.WithDelay(0))

	var out bytes.Buffer
	require.NoError(t, debugGeocode(context.Background(), strings.NewReader("somewhere\n\nnowhere\nsomewhere\n"), &out, resolver))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "somewhere\tline\tfound\t"))
	assert.Equal(t, "somewhere\t=> (1.000000, 2.000000) line", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "nowhere\tline\tnot_found\t"))
	assert.Equal(t, "nowhere\t=> not found", lines[3])
	assert.Equal(t, 2, g.calls, "repeated addresses come from the cache")
}

func TestResolverOptionsProgress(t *testing.T) {
	c := &config.Config{}

	assert.Len(t, resolverOptions(c, nil, nil), 3, "server runs draw no progress bar")

	var progress bytes.Buffer

	opts := resolverOptions(c, nil, &progress)
	require.Len(t, opts, 4)

	resolver := geocoding.NewResolver(geocoding.NewChain(nil, &lineGeocoder{}), geocoding.NewCache(), opts...)
	_, err := resolver.ResolveAll(t.Context(), []string{"somewhere", "elsewhere"})
	require.NoError(t, err)

	assert.Contains(t, progress.String(), "Geocoding addresses")
}
