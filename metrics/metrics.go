// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes the Prometheus instruments updated by map runs.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "instmap"

// Metrics holds the counters and histograms of the map pipeline.
type Metrics struct {
	Runs            *prometheus.CounterVec   // labels: mode, outcome={ok,error}
	RosterRows      *prometheus.CounterVec   // labels: mode
	DroppedRows     *prometheus.CounterVec   // labels: mode, reason
	GeocodeRequests *prometheus.CounterVec   // labels: provider, outcome={found,not_found,error}
	GeocodeDuration *prometheus.HistogramVec // labels: provider
	GeocodeCache    *prometheus.CounterVec   // labels: result={hit,miss}
	Classifications *prometheus.CounterVec   // labels: source={column,reverse,bbox,invalid}
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := NewForTesting()
	reg.MustRegister(
		m.Runs,
		m.RosterRows,
		m.DroppedRows,
		m.GeocodeRequests,
		m.GeocodeDuration,
		m.GeocodeCache,
		m.Classifications,
	)

	return m
}

// NewForTesting creates metrics that are not registered anywhere, so tests
// can build as many as they need.
func NewForTesting() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Map runs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		RosterRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roster_rows_total",
			Help:      "Roster rows read, by mode.",
		}, []string{"mode"}),
		DroppedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_rows_total",
			Help:      "Roster rows left off the map, by mode and reason.",
		}, []string{"mode", "reason"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_request_duration_seconds",
			Help:      "Geocoding provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Run cache lookups by result.",
		}, []string{"result"}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "country_classifications_total",
			Help:      "Country classifications by the branch that produced them.",
		}, []string{"source"}),
	}
}

// ObserveGeocode records one provider attempt.
func (m *Metrics) ObserveGeocode(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}

	m.GeocodeRequests.WithLabelValues(provider, outcome).Inc()
	m.GeocodeDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveCache records a run cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}

	m.GeocodeCache.WithLabelValues(result).Inc()
}

// ObserveRun records the end of a run.
func (m *Metrics) ObserveRun(mode string, rows int, err error) {
	if m == nil {
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	m.Runs.WithLabelValues(mode, outcome).Inc()
	m.RosterRows.WithLabelValues(mode).Add(float64(rows))
}

// ObserveDropped records rows left off the map.
func (m *Metrics) ObserveDropped(mode, reason string, n int) {
	if m == nil || n == 0 {
		return
	}

	m.DroppedRows.WithLabelValues(mode, reason).Add(float64(n))
}

// ObserveClassification records which classifier branch answered.
func (m *Metrics) ObserveClassification(source string) {
	if m == nil {
		return
	}

	m.Classifications.WithLabelValues(source).Inc()
}
