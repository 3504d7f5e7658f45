// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package httputils

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dummyRoundTripper records the request and replays a canned response.
type dummyRoundTripper struct {
	lastRequest *http.Request
	response    *http.Response
	err         error
}

func (d *dummyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	d.lastRequest = req
	if d.err != nil {
		return nil, d.err
	}

	if d.response != nil {
		return d.response, nil
	}

	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader("")),
	}, nil
}

func TestRedactURL(t *testing.T) {
	u, err := url.Parse("https://maps.example/geocode/json?address=1+Main+St&key=secret")
	require.NoError(t, err)

	got := RedactURL(u)
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "key=REDACTED")
	assert.Contains(t, got, "address=1+Main+St")
	assert.Contains(t, u.String(), "secret", "original URL must not be modified")

	plain, err := url.Parse("https://nominatim.example/search?q=x")
	require.NoError(t, err)
	assert.Equal(t, "https://nominatim.example/search?q=x", RedactURL(plain))
}

func TestTracingRoundTripper(t *testing.T) {
	var logBuffer bytes.Buffer

	drt := &dummyRoundTripper{
		response: &http.Response{
			Status:     "200 OK",
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader("response body")),
		},
	}

	lt := &TracingRoundTripper{
		Transport: drt,
		Logger:    zerolog.New(&logBuffer),
		DumpBody:  true,
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/abc?key=secret", nil)
	require.NoError(t, err)

	resp, err := lt.RoundTrip(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "response body", string(body), "body must still be readable after dumping")

	logContent := logBuffer.String()
	assert.Contains(t, logContent, `"method":"GET"`)
	assert.Contains(t, logContent, `"status":200`)
	assert.Contains(t, logContent, "response body")
	assert.NotContains(t, logContent, "secret")
}

func TestTracingRoundTripperError(t *testing.T) {
	var logBuffer bytes.Buffer

	lt := &TracingRoundTripper{
		Transport: &dummyRoundTripper{err: errors.New("connection refused")},
		Logger:    zerolog.New(&logBuffer),
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)

	_, err = lt.RoundTrip(req)
	require.Error(t, err)
	assert.Contains(t, logBuffer.String(), "connection refused")
}

func TestDefaultHeadersRoundTripper(t *testing.T) {
	dummy := &dummyRoundTripper{}
	atr := &DefaultHeadersRoundTripper{
		Transport: dummy,
		Headers: map[string]string{
			"User-Agent":    "instmap-test",
			"X-Test-Header": "TestValue",
		},
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.org", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "explicit")

	_, err = atr.RoundTrip(req)
	require.NoError(t, err)

	require.NotNil(t, dummy.lastRequest)
	assert.Equal(t, "TestValue", dummy.lastRequest.Header.Get("X-Test-Header"))
	assert.Equal(t, "explicit", dummy.lastRequest.Header.Get("User-Agent"), "explicit headers win")
	assert.Empty(t, req.Header.Get("X-Test-Header"), "caller request must not be mutated")
}

func TestNewClient(t *testing.T) {
	var gotUA string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var logBuffer bytes.Buffer
	trace := zerolog.New(&logBuffer)

	client := NewClient(time.Second, map[string]string{"User-Agent": "instmap-test"}, &trace)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "instmap-test", gotUA)
	assert.Equal(t, time.Second, client.Timeout)
	assert.Contains(t, logBuffer.String(), `"status":204`)
}
