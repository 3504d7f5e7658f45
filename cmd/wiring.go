// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cairibu/instmap/config"
	"github.com/cairibu/instmap/country"
	"github.com/cairibu/instmap/geocoding"
	"github.com/cairibu/instmap/mapview"
	"github.com/cairibu/instmap/metrics"
	"github.com/cairibu/instmap/pipeline"
	"github.com/cairibu/instmap/utils/httputils"
	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// newChain builds the provider chain: ArcGIS, then Nominatim, then Google
// Maps when a key is configured or can be found through ADC.
func newChain(ctx context.Context, c *config.Config, m *metrics.Metrics, traceHTTP bool) *geocoding.Chain {
	var trace *zerolog.Logger
	if traceHTTP {
		trace = &log.Logger
	}

	client := httputils.NewClient(c.HTTPTimeout, map[string]string{"User-Agent": c.UserAgent}, trace)

	providers := []geocoding.Geocoder{
		geocoding.NewArcGISGeocoder(client, c.ArcGISURL),
		geocoding.NewNominatimGeocoder(client, c.NominatimURL, c.UserAgent, rate.NewLimiter(rate.Limit(c.NominatimRPS), 1)),
	}

	apiKey := c.GoogleMapsAPIKey
	if apiKey == "" && c.GoogleADC {
		var err error

		apiKey, err = geocoding.APIKeyFromADC(ctx, c.GoogleProject, geocoding.DefaultGoogleKeyName)
		if err != nil {
			log.Warn().Err(err).Msg("Google Maps API key not available through ADC; continuing without it")
		} else {
			log.Info().Msg("retrieved Google Maps API key via ADC")
		}
	}

	if apiKey != "" {
		providers = append(providers, geocoding.NewGoogleMapsGeocoder(client, "", apiKey))
	}

	chain := geocoding.NewChain(m, providers...)
	fmt.Fprintf(os.Stderr, "📍 Geocoding: %v\n", chain.Providers())

	return chain
}

// newClassifier loads the offline reverse geocoder when a cities file is
// configured. Without one the bounding boxes decide.
func newClassifier(c *config.Config, m *metrics.Metrics) (*country.Classifier, error) {
	if c.CitiesFile == "" {
		return country.NewClassifier(nil, m), nil
	}

	idx, err := country.LoadCityIndex(c.CitiesFile)
	if err != nil {
		return nil, fmt.Errorf("loading cities file: %w", err)
	}

	log.Info().Str("file", c.CitiesFile).Int("cities", idx.Len()).Msg("loaded reverse geocoding index")

	return country.NewClassifier(idx, m), nil
}

// resolverOptions returns the pause and, when progress is not nil, a progress
// bar drawn on it.
func resolverOptions(c *config.Config, m *metrics.Metrics, progress io.Writer) []geocoding.ResolverOption {
	opts := []geocoding.ResolverOption{
		geocoding.WithDelay(c.GeocodeDelay),
		geocoding.WithClock(clockwork.NewRealClock()),
		geocoding.WithMetrics(m),
	}

	if progress != nil {
		opts = append(opts, geocoding.WithProgress(progress))
	}

	return opts
}

// terminalProgress returns stderr when it is a terminal. Only single-run
// commands draw progress; concurrent server runs would interleave their bars.
func terminalProgress() io.Writer {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return os.Stderr
	}

	return nil
}

func writeMap(path string, report *pipeline.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := mapview.Render(f, mapview.NewPage(report, time.Now())); err != nil {
		f.Close()

		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}
