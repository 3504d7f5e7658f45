// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package httputils provides utility functions for working with HTTP.
package httputils

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

/////////////////////////////////////////
/// RoundTrippers

// secretParams are query parameters whose values never reach the logs.
var secretParams = []string{"key", "token", "api_key", "apikey"}

// TracingRoundTripper logs every HTTP exchange through a zerolog logger.
type TracingRoundTripper struct {
	Transport http.RoundTripper
	Logger    zerolog.Logger
	DumpBody  bool
}

// RedactURL masks credentials carried in the query string.
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	q := u.Query()
	changed := false

	for _, p := range secretParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")

			changed = true
		}
	}

	if !changed {
		return u.String()
	}

	clone := *u
	clone.RawQuery = q.Encode()

	return clone.String()
}

// reduce the content of the lines.
func abbreviate(lines []string, prefix rune) []string {
	const maxLines, maxChars = 64, 512

	if len(lines) > maxLines {
		lines = append(lines[:maxLines], "…")
	}

	for i, line := range lines {
		if len(line) > maxChars {
			line = line[0:maxChars] + "…"
		}

		lines[i] = fmt.Sprintf("%c %s", prefix, line)
	}

	return lines
}

// RoundTrip implements the http.RoundTripper interface.
func (t *TracingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	elapsed := time.Since(start)

	event := t.Logger.Info().
		Str("method", req.Method).
		Str("url", RedactURL(req.URL)).
		Dur("elapsed", elapsed)

	if err != nil {
		event.Err(err).Msg("http request failed")

		return nil, err
	}

	event = event.Int("status", resp.StatusCode)

	if t.DumpBody {
		dump, dumpErr := httputil.DumpResponse(resp, true)
		if dumpErr != nil {
			return nil, fmt.Errorf("tracing HTTP response: %w", dumpErr)
		}

		lines := abbreviate(strings.Split(strings.TrimRight(string(dump), "\r\n"), "\n"), '<')
		event = event.Str("response", strings.Join(lines, "\n"))
	}

	event.Msg("http request")

	return resp, nil
}

// DefaultHeadersRoundTripper sets headers on requests that don't carry them yet.
type DefaultHeadersRoundTripper struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip implements the http.RoundTripper interface.
func (t *DefaultHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var clone *http.Request

	for k, v := range t.Headers {
		if req.Header.Get(k) != "" {
			continue
		}

		if clone == nil {
			clone = req.Clone(req.Context())
		}

		clone.Header.Set(k, v)
	}

	if clone == nil {
		clone = req
	}

	return t.Transport.RoundTrip(clone)
}

// NewClient builds an HTTP client with a timeout, default headers and,
// when trace is set, request logging.
func NewClient(timeout time.Duration, headers map[string]string, trace *zerolog.Logger) *http.Client {
	var transport http.RoundTripper = http.DefaultTransport

	if trace != nil {
		transport = &TracingRoundTripper{Transport: transport, Logger: *trace}
	}

	if len(headers) > 0 {
		transport = &DefaultHeadersRoundTripper{Transport: transport, Headers: headers}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
