// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// getJSON performs a GET and decodes a 200 response into out. Every failure
// comes back as a *GeocodingError tagged with the provider name.
func getJSON(ctx context.Context, client *http.Client, provider, reqURL string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &GeocodingError{Provider: provider, Type: ErrorTypeInvalidRequest, Message: "building request", Err: err}
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		geoErr := ClassifyTransportError(err)
		geoErr.Provider = provider

		return geoErr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		geoErr := ClassifyHTTPError(resp.StatusCode, string(body))
		geoErr.Provider = provider

		return geoErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &GeocodingError{Provider: provider, Type: ErrorTypeUnknown, Message: "decoding response", Err: err}
	}

	return nil
}
