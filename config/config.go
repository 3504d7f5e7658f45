// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package config reads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cairibu/instmap/geocoding"
	"github.com/rs/zerolog"
)

// DefaultUserAgent identifies instmap to providers that require it.
const DefaultUserAgent = "instmap_address_mapper"

// Config holds all settings, populated from environment variables.
// Command-line flags override individual fields afterwards.
type Config struct {
	UserAgent    string
	GeocodeDelay time.Duration
	HTTPTimeout  time.Duration
	// MaxAddresses caps the unique addresses of a run; 0 means no cap.
	MaxAddresses int
	NominatimRPS float64
	CitiesFile   string
	ArcGISURL    string
	NominatimURL string

	GoogleMapsAPIKey string
	// GoogleADC enables discovering the Google Maps key through
	// application default credentials when GoogleMapsAPIKey is empty.
	GoogleADC     bool
	GoogleProject string

	ListenAddr string
	LogLevel   zerolog.Level
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	delay, err := parseDuration("INSTMAP_GEOCODE_DELAY", geocoding.DefaultDelay)
	if err != nil {
		return nil, err
	}

	if delay < geocoding.MinDelay {
		return nil, fmt.Errorf("invalid INSTMAP_GEOCODE_DELAY %s: must be at least %s", delay, geocoding.MinDelay)
	}

	timeout, err := parseDuration("INSTMAP_HTTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		return nil, fmt.Errorf("invalid INSTMAP_HTTP_TIMEOUT %s: must be positive", timeout)
	}

	maxAddresses := 0
	if s := os.Getenv("INSTMAP_MAX_ADDRESSES"); s != "" {
		maxAddresses, err = strconv.Atoi(s)
		if err != nil || maxAddresses < 0 {
			return nil, fmt.Errorf("invalid INSTMAP_MAX_ADDRESSES %q: must be a non-negative integer", s)
		}
	}

	rps := 1.0
	if s := os.Getenv("INSTMAP_NOMINATIM_RPS"); s != "" {
		rps, err = strconv.ParseFloat(s, 64)
		if err != nil || rps <= 0 {
			return nil, fmt.Errorf("invalid INSTMAP_NOMINATIM_RPS %q: must be a positive number", s)
		}
	}

	adc := false
	if s := os.Getenv("INSTMAP_GOOGLE_ADC"); s != "" {
		adc, err = strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("invalid INSTMAP_GOOGLE_ADC %q: %w", s, err)
		}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(envOrDefault("INSTMAP_LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("invalid INSTMAP_LOG_LEVEL: %w", err)
	}

	return &Config{
		UserAgent:        envOrDefault("INSTMAP_USER_AGENT", DefaultUserAgent),
		GeocodeDelay:     delay,
		HTTPTimeout:      timeout,
		MaxAddresses:     maxAddresses,
		NominatimRPS:     rps,
		CitiesFile:       os.Getenv("INSTMAP_CITIES_FILE"),
		ArcGISURL:        envOrDefault("INSTMAP_ARCGIS_URL", geocoding.DefaultArcGISURL),
		NominatimURL:     envOrDefault("INSTMAP_NOMINATIM_URL", geocoding.DefaultNominatimURL),
		GoogleMapsAPIKey: os.Getenv("GOOGLE_MAPS_API_KEY"),
		GoogleADC:        adc,
		GoogleProject:    os.Getenv("INSTMAP_GOOGLE_PROJECT"),
		ListenAddr:       envOrDefault("INSTMAP_LISTEN_ADDR", "localhost:8080"),
		LogLevel:         level,
	}, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}

	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}

	return d, nil
}
