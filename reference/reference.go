// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package reference holds the table of institutions with known coordinates
// used by lookup mode.
package reference

import (
	"context"

	"github.com/cairibu/instmap/roster"
	"github.com/cairibu/instmap/spatial"
	"github.com/rs/zerolog"
)

// Invalid is a reference row that was skipped.
type Invalid struct {
	Line        int
	Institution string
	Err         error
}

// Table maps institution names to points. Names match exactly, after
// trimming surrounding whitespace.
type Table struct {
	points  map[string]spatial.Point
	Invalid []Invalid
}

// New builds a table from a roster-style table with institution, latitude
// and longitude columns. Rows with unusable coordinates are recorded in
// Invalid and left out. When a name repeats, its first usable row wins.
// Skipped rows are logged through the logger carried by ctx.
func New(ctx context.Context, t *roster.Table) (*Table, error) {
	inst, err := t.Column(roster.FieldInstitution)
	if err != nil {
		return nil, err
	}

	lat, err := t.Column(roster.FieldLatitude)
	if err != nil {
		return nil, err
	}

	lng, err := t.Column(roster.FieldLongitude)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx)
	ref := &Table{points: make(map[string]spatial.Point, len(t.Rows))}

	for i, row := range t.Rows {
		name := row[inst]
		if name == "" {
			continue
		}

		p, err := spatial.ParsePoint(row[lat], row[lng])
		if err != nil {
			ref.Invalid = append(ref.Invalid, Invalid{Line: t.Lines[i], Institution: name, Err: err})
			logger.Warn().Int("line", t.Lines[i]).Str("institution", name).Err(err).Msg("skipping reference row")

			continue
		}

		if _, dup := ref.points[name]; !dup {
			ref.points[name] = p
		}
	}

	return ref, nil
}

// Load reads a reference table from a .csv or .xlsx file.
func Load(ctx context.Context, path string) (*Table, error) {
	t, err := roster.Load(path)
	if err != nil {
		return nil, err
	}

	return New(ctx, t)
}

// Lookup returns the point of an institution.
func (t *Table) Lookup(institution string) (spatial.Point, bool) {
	p, ok := t.points[institution]

	return p, ok
}

// Len returns the number of institutions with usable coordinates.
func (t *Table) Len() int {
	return len(t.points)
}
