// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cairibu/instmap/spatial"
)

// DefaultArcGISURL is the public World Geocoding Service endpoint.
const DefaultArcGISURL = "https://geocode.arcgis.com/arcgis/rest/services/World/GeocodeServer/findAddressCandidates"

// ArcGISGeocoder uses the ArcGIS World Geocoding Service.
type ArcGISGeocoder struct {
	baseURL    string
	httpClient *http.Client
}

// NewArcGISGeocoder creates a new ArcGIS geocoder. An empty baseURL selects
// DefaultArcGISURL.
func NewArcGISGeocoder(httpClient *http.Client, baseURL string) *ArcGISGeocoder {
	if baseURL == "" {
		baseURL = DefaultArcGISURL
	}

	return &ArcGISGeocoder{baseURL: baseURL, httpClient: httpClient}
}

type arcgisResponse struct {
	Candidates []struct {
		Address  string `json:"address"`
		Location struct {
			X float64 `json:"x"` // longitude
			Y float64 `json:"y"` // latitude
		} `json:"location"`
		Score float64 `json:"score"`
	} `json:"candidates"`
	// The service reports some failures with a 200 status and this body.
	Error *struct {
		Code    int      `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
}

func (g *ArcGISGeocoder) Name() string { return ProviderArcGIS }

func (g *ArcGISGeocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	params := url.Values{}
	params.Set("SingleLine", address)
	params.Set("f", "json")
	params.Set("maxLocations", "1")
	params.Set("outFields", "Match_addr")

	var resp arcgisResponse
	if err := getJSON(ctx, g.httpClient, ProviderArcGIS, g.baseURL+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		geoErr := ClassifyHTTPError(resp.Error.Code, resp.Error.Message)
		if resp.Error.Code == 498 || resp.Error.Code == 499 { // invalid or missing token
			geoErr.Type = ErrorTypeQuotaExceeded
		}

		geoErr.Provider = ProviderArcGIS

		return nil, geoErr
	}

	if len(resp.Candidates) == 0 {
		return nil, notFound(ProviderArcGIS, address)
	}

	best := resp.Candidates[0]

	point, err := spatial.NewPoint(best.Location.Y, best.Location.X)
	if err != nil {
		return nil, &GeocodingError{
			Provider: ProviderArcGIS,
			Type:     ErrorTypeUnknown,
			Message:  fmt.Sprintf("candidate for %q", address),
			Err:      err,
		}
	}

	confidence := "low"

	switch {
	case best.Score >= 90:
		confidence = "high"
	case best.Score >= 75:
		confidence = "medium"
	}

	return &Result{
		Point:       point,
		Confidence:  confidence,
		Provider:    ProviderArcGIS,
		DisplayName: best.Address,
	}, nil
}
