// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cairibu/instmap/spatial"
	"golang.org/x/time/rate"
)

// DefaultNominatimURL is the public OpenStreetMap search endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// NominatimGeocoder uses the OpenStreetMap Nominatim search API. The public
// instance requires an identifying User-Agent and at most one request per
// second, which the limiter enforces.
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewNominatimGeocoder creates a new Nominatim geocoder. A nil limiter means
// no client-side limit.
func NewNominatimGeocoder(httpClient *http.Client, baseURL, userAgent string, limiter *rate.Limiter) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}

	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	return &NominatimGeocoder{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (g *NominatimGeocoder) Name() string { return ProviderNominatim }

func (g *NominatimGeocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		geoErr := ClassifyTransportError(err)
		geoErr.Provider = ProviderNominatim

		return nil, geoErr
	}

	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")

	header := http.Header{}
	if g.userAgent != "" {
		header.Set("User-Agent", g.userAgent)
	}

	var places []nominatimPlace
	if err := getJSON(ctx, g.httpClient, ProviderNominatim, g.baseURL+"?"+params.Encode(), header, &places); err != nil {
		return nil, err
	}

	if len(places) == 0 {
		return nil, notFound(ProviderNominatim, address)
	}

	point, err := spatial.ParsePoint(places[0].Lat, places[0].Lon)
	if err != nil {
		return nil, &GeocodingError{
			Provider: ProviderNominatim,
			Type:     ErrorTypeUnknown,
			Message:  fmt.Sprintf("place for %q", address),
			Err:      err,
		}
	}

	return &Result{
		Point:       point,
		Provider:    ProviderNominatim,
		DisplayName: places[0].DisplayName,
	}, nil
}
