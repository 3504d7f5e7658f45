// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cairibu/instmap/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv
}

func TestArcGISGeocode(t *testing.T) {
	var gotQuery string

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("SingleLine")
		assert.Equal(t, "json", r.URL.Query().Get("f"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"spatialReference": {"wkid": 4326},
			"candidates": [
				{"address": "1 Main St, Springfield", "location": {"x": -75.16, "y": 39.95}, "score": 98.2}
			]
		}`))
	})

	g := NewArcGISGeocoder(srv.Client(), srv.URL)
	got, err := g.Geocode(context.Background(), "1 Main St, Springfield")
	require.NoError(t, err)

	assert.Equal(t, "1 Main St, Springfield", gotQuery)
	assert.Equal(t, &Result{
		Point:       spatial.Point{Lat: 39.95, Lng: -75.16},
		Confidence:  "high",
		Provider:    ProviderArcGIS,
		DisplayName: "1 Main St, Springfield",
	}, got)
}

func TestArcGISNoCandidates(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	})

	_, err := NewArcGISGeocoder(srv.Client(), srv.URL).Geocode(context.Background(), "nowhere")
	assert.True(t, IsNotFoundError(err))
}

func TestArcGISErrorBody(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": {"code": 498, "message": "Invalid Token", "details": []}}`))
	})

	_, err := NewArcGISGeocoder(srv.Client(), srv.URL).Geocode(context.Background(), "x")
	assert.True(t, IsQuotaExceededError(err))
	assert.ErrorContains(t, err, "arcgis")
}

func TestArcGISServerError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := NewArcGISGeocoder(srv.Client(), srv.URL).Geocode(context.Background(), "x")

	var geoErr *GeocodingError
	require.ErrorAs(t, err, &geoErr)
	assert.Equal(t, ErrorTypeNetworkError, geoErr.Type)
	assert.Equal(t, ProviderArcGIS, geoErr.Provider)
}

func TestNominatimGeocode(t *testing.T) {
	var gotUA, gotQuery string

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[{"lat": "48.8566", "lon": "2.3522", "display_name": "Paris, France"}]`))
	})

	g := NewNominatimGeocoder(srv.Client(), srv.URL, "instmap-test/1.0", nil)
	got, err := g.Geocode(context.Background(), "Paris")
	require.NoError(t, err)

	assert.Equal(t, "instmap-test/1.0", gotUA)
	assert.Equal(t, "Paris", gotQuery)
	assert.Equal(t, spatial.Point{Lat: 48.8566, Lng: 2.3522}, got.Point)
	assert.Equal(t, ProviderNominatim, got.Provider)
	assert.Equal(t, "Paris, France", got.DisplayName)
}

func TestNominatimEmpty(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := NewNominatimGeocoder(srv.Client(), srv.URL, "ua", nil).Geocode(context.Background(), "nowhere")
	assert.True(t, IsNotFoundError(err))
}

func TestNominatimBadCoordinates(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"lat": "north", "lon": "2"}]`))
	})

	_, err := NewNominatimGeocoder(srv.Client(), srv.URL, "ua", nil).Geocode(context.Background(), "x")

	var parseErr *spatial.CoordinateParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestNominatimRateLimited(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := NewNominatimGeocoder(srv.Client(), srv.URL, "ua", nil).Geocode(context.Background(), "x")
	assert.True(t, IsRateLimitError(err))
}

func TestNominatimLimiterHonoursContext(t *testing.T) {
	calls := 0
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`[]`))
	})

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	g := NewNominatimGeocoder(srv.Client(), srv.URL, "ua", limiter)

	_, err := g.Geocode(context.Background(), "first")
	require.True(t, IsNotFoundError(err))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = g.Geocode(ctx, "second")
	require.Error(t, err)
	assert.False(t, IsNotFoundError(err))
	assert.Equal(t, 1, calls, "second request must wait for the limiter")
}

func TestGoogleMapsGeocode(t *testing.T) {
	var gotKey string

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"formatted_address": "Honolulu, HI, USA",
				"geometry": {"location": {"lat": 21.3, "lng": -157.85}, "location_type": "APPROXIMATE"}
			}]
		}`))
	})

	g := NewGoogleMapsGeocoder(srv.Client(), srv.URL, "secret")
	got, err := g.Geocode(context.Background(), "Honolulu")
	require.NoError(t, err)

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, spatial.Point{Lat: 21.3, Lng: -157.85}, got.Point)
	assert.Equal(t, "low", got.Confidence)
	assert.Equal(t, ProviderGoogle, got.Provider)
}

func TestGoogleMapsStatuses(t *testing.T) {
	tests := []struct {
		status string
		check  func(error) bool
	}{
		{"ZERO_RESULTS", IsNotFoundError},
		{"OVER_QUERY_LIMIT", IsRateLimitError},
		{"REQUEST_DENIED", IsQuotaExceededError},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"status": "` + tt.status + `", "results": []}`))
			})

			_, err := NewGoogleMapsGeocoder(srv.Client(), srv.URL, "k").Geocode(context.Background(), "x")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected classification: %v", err)
		})
	}
}
