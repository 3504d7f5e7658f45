// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline runs a roster end to end: column resolution, coordinate
// resolution, aggregation and country classification.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/cairibu/instmap/aggregate"
	"github.com/cairibu/instmap/country"
	"github.com/cairibu/instmap/geocoding"
	"github.com/cairibu/instmap/metrics"
	"github.com/cairibu/instmap/reference"
	"github.com/cairibu/instmap/roster"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Mode selects how roster rows get their coordinates.
type Mode string

const (
	// ModeLookup joins institution names against a reference table.
	ModeLookup Mode = "lookup"
	// ModeAddress geocodes each row's institutional mailing address.
	ModeAddress Mode = "address"
)

// Marker is an aggregate placed on the map with its country classification.
// The embedded Country holds the final label.
type Marker struct {
	aggregate.InstitutionAggregate
	Source country.Source `json:"source"`
}

// Report is everything a run produced.
type Report struct {
	RunID   uuid.UUID
	Mode    Mode
	Records int
	Markers []Marker
	Dropped []aggregate.Dropped
	// Geocodes holds one resolution per unique address, in first-seen
	// order. Empty in lookup mode.
	Geocodes   []geocoding.Resolution
	CacheStats geocoding.CacheStats
	Summary    country.Summary
}

// DroppedRows returns the number of rows left off the map.
func (r *Report) DroppedRows() int {
	n := 0
	for _, d := range r.Dropped {
		n += d.Count
	}

	return n
}

// MappedRows returns the number of rows represented by markers.
func (r *Report) MappedRows() int {
	n := 0
	for _, m := range r.Markers {
		n += m.Count
	}

	return n
}

// Pipeline holds what runs share. Nothing in it caches results between runs.
type Pipeline struct {
	classifier   *country.Classifier
	chain        *geocoding.Chain
	resolverOpts []geocoding.ResolverOption
	maxAddresses int
	metrics      *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithChain sets the provider chain used in address mode.
func WithChain(chain *geocoding.Chain) Option {
	return func(p *Pipeline) { p.chain = chain }
}

// WithResolverOptions is applied to the resolver of every address run.
func WithResolverOptions(opts ...geocoding.ResolverOption) Option {
	return func(p *Pipeline) { p.resolverOpts = append(p.resolverOpts, opts...) }
}

// WithMaxAddresses caps the unique addresses of an address run; 0 disables the cap.
func WithMaxAddresses(n int) Option {
	return func(p *Pipeline) { p.maxAddresses = n }
}

// WithMetrics records run outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a pipeline. A nil classifier uses the bounding boxes only.
func New(classifier *country.Classifier, opts ...Option) *Pipeline {
	p := &Pipeline{classifier: classifier}
	for _, opt := range opts {
		opt(p)
	}

	if p.classifier == nil {
		p.classifier = country.NewClassifier(nil, p.metrics)
	}

	return p
}

// RunLookup maps a roster whose institutions are joined by exact name
// against ref. Institutions missing from ref are reported as dropped.
//
// On an *EmptyResultError the returned report is still populated with the
// dropped rows.
func (p *Pipeline) RunLookup(ctx context.Context, t *roster.Table, ref *reference.Table) (*Report, error) {
	report, ctx := p.newReport(ctx, ModeLookup)

	err := p.runLookup(ctx, report, t, ref)
	p.finish(ctx, report, err)

	return report, err
}

func (p *Pipeline) runLookup(ctx context.Context, report *Report, t *roster.Table, ref *reference.Table) error {
	layout, err := t.InstitutionLayout()
	if err != nil {
		return err
	}

	records := t.Records(layout)
	report.Records = len(records)

	rows := make([]aggregate.Row, 0, len(records))
	for _, rec := range records {
		row := aggregate.Row{Institution: rec.Institution, Key: rec.Institution, Country: rec.Country}

		switch pt, ok := ref.Lookup(rec.Institution); {
		case rec.Institution == "":
			row.Reason = aggregate.ReasonMissingInstitution
		case ok:
			row.Point = &pt
		default:
			row.Reason = aggregate.ReasonNoReference
		}

		rows = append(rows, row)
	}

	zerolog.Ctx(ctx).Debug().Int("records", len(records)).Int("references", ref.Len()).Msg("joined roster against reference table")

	return p.aggregate(ctx, report, rows, (*aggregate.Aggregator).ByInstitution)
}

// RunAddress maps a roster by geocoding its institutional mailing
// addresses. Every run gets its own cache.
//
// On an *EmptyResultError the returned report is still populated with the
// dropped rows and the raw geocode results.
func (p *Pipeline) RunAddress(ctx context.Context, t *roster.Table) (*Report, error) {
	report, ctx := p.newReport(ctx, ModeAddress)

	err := p.runAddress(ctx, report, t)
	p.finish(ctx, report, err)

	return report, err
}

func (p *Pipeline) runAddress(ctx context.Context, report *Report, t *roster.Table) error {
	if p.chain == nil {
		return errors.New("address mode needs a geocoding provider chain")
	}

	layout, err := t.AddressLayout()
	if err != nil {
		return err
	}

	records := t.Records(layout)
	report.Records = len(records)

	addresses := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.Institution != "" {
			addresses = append(addresses, rec.Address)
		}
	}

	keys := geocoding.UniqueAddresses(addresses)
	if p.maxAddresses > 0 && len(keys) > p.maxAddresses {
		return &TooManyAddressesError{Unique: len(keys), Max: p.maxAddresses}
	}

	zerolog.Ctx(ctx).Info().Int("records", len(records)).Int("addresses", len(keys)).Msg("geocoding unique addresses")

	resolver := geocoding.NewResolver(p.chain, geocoding.NewCache(), p.resolverOpts...)

	resolutions, err := resolver.ResolveAll(ctx, keys)
	if err != nil {
		return fmt.Errorf("geocoding addresses: %w", err)
	}

	report.Geocodes = resolutions
	report.CacheStats = resolver.Cache().Stats()

	byKey := make(map[string]geocoding.Resolution, len(resolutions))
	for _, r := range resolutions {
		byKey[r.Address] = r
	}

	rows := make([]aggregate.Row, 0, len(records))
	for _, rec := range records {
		row := aggregate.Row{Institution: rec.Institution, Key: rec.Address, Country: rec.Country}

		switch res, ok := byKey[rec.Address]; {
		case rec.Institution == "":
			row.Reason = aggregate.ReasonMissingInstitution
		case rec.Address == "":
			row.Reason = aggregate.ReasonMissingAddress
		case ok && res.Found():
			row.Point = res.Point
		default:
			row.Reason = aggregate.ReasonGeocodeFailed
		}

		rows = append(rows, row)
	}

	return p.aggregate(ctx, report, rows, (*aggregate.Aggregator).ByInstitutionAndPoint)
}

func (p *Pipeline) aggregate(ctx context.Context, report *Report, rows []aggregate.Row, group func(*aggregate.Aggregator) ([]aggregate.InstitutionAggregate, error)) error {
	agg, err := aggregate.New()
	if err != nil {
		return err
	}
	defer agg.Close()

	if err := agg.Add(rows); err != nil {
		return err
	}

	report.Dropped, err = agg.Dropped()
	if err != nil {
		return err
	}

	aggs, err := group(agg)
	if err != nil {
		return err
	}

	if len(aggs) == 0 {
		return &EmptyResultError{Mode: report.Mode, Records: report.Records, Dropped: report.DroppedRows()}
	}

	tallies := make([]country.Tally, 0, len(aggs))
	report.Markers = make([]Marker, 0, len(aggs))

	for _, a := range aggs {
		cl := p.classifier.Classify(ctx, a.Country, a.Point.Lat, a.Point.Lng)
		a.Country = cl.Label

		report.Markers = append(report.Markers, Marker{InstitutionAggregate: a, Source: cl.Source})
		tallies = append(tallies, country.Tally{Institution: a.Institution, Label: cl.Label, Count: a.Count})
	}

	report.Summary = country.Summarize(tallies)

	return nil
}

func (p *Pipeline) newReport(ctx context.Context, mode Mode) (*Report, context.Context) {
	report := &Report{RunID: uuid.New(), Mode: mode}

	logger := zerolog.Ctx(ctx).With().Str("run_id", report.RunID.String()).Str("mode", string(mode)).Logger()

	return report, logger.WithContext(ctx)
}

func (p *Pipeline) finish(ctx context.Context, report *Report, err error) {
	mode := string(report.Mode)

	p.metrics.ObserveRun(mode, report.Records, err)
	for reason, n := range aggregate.DroppedByReason(report.Dropped) {
		p.metrics.ObserveDropped(mode, string(reason), n)
	}

	logger := zerolog.Ctx(ctx)
	if err != nil {
		logger.Error().Err(err).Int("records", report.Records).Msg("run failed")

		return
	}

	logger.Info().
		Int("records", report.Records).
		Int("markers", len(report.Markers)).
		Int("mapped", report.MappedRows()).
		Int("dropped", report.DroppedRows()).
		Msg("run finished")
}
