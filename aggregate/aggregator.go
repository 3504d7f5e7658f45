// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package aggregate groups resolved roster rows into per-institution counts
// inside a run-scoped, in-memory DuckDB workspace.
package aggregate

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/cairibu/instmap/spatial"
	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
)

// Reason explains why a row is left off the map.
type Reason string

const (
	ReasonNoReference        Reason = "no_reference"
	ReasonGeocodeFailed      Reason = "geocode_failed"
	ReasonMissingAddress     Reason = "missing_address"
	ReasonMissingInstitution Reason = "missing_institution"
)

// Row is one roster record after coordinate resolution. Point is nil when
// the row could not be placed, in which case Reason says why.
type Row struct {
	Institution string
	// Key is the value the coordinates were looked up by: the institution
	// name in lookup mode, the trimmed address otherwise.
	Key     string
	Point   *spatial.Point
	Country string
	Reason  Reason
}

// InstitutionAggregate is one marker on the map.
type InstitutionAggregate struct {
	Institution string        `json:"institution"`
	Point       spatial.Point `json:"point"`
	Count       int           `json:"count"`
	// Country is the first non-blank explicit country value among the
	// grouped rows; the classifier fills in the rest.
	Country string `json:"country,omitempty"`
}

// Dropped is a group of rows that did not make it to the map.
type Dropped struct {
	Institution string `json:"institution"`
	Key         string `json:"key"`
	Reason      Reason `json:"reason"`
	Count       int    `json:"count"`
}

// Aggregator owns the workspace of a single run.
type Aggregator struct {
	db   *sql.DB
	rows int
}

// New opens an in-memory workspace. Call Close when the run ends.
func New() (*Aggregator, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("opening workspace: %w", err)
	}

	a := &Aggregator{db: db}
	if err := a.createSchema(); err != nil {
		db.Close()

		return nil, err
	}

	return a, nil
}

func (a *Aggregator) createSchema() error {
	_, err := a.db.Exec(`
		CREATE TABLE roster_rows (
			ord         INTEGER NOT NULL,
			institution VARCHAR NOT NULL,
			lookup_key  VARCHAR NOT NULL,
			lat         DOUBLE,
			lng         DOUBLE,
			country     VARCHAR NOT NULL,
			reason      VARCHAR NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating workspace schema: %w", err)
	}

	return nil
}

// Close releases the workspace.
func (a *Aggregator) Close() error {
	return a.db.Close()
}

// Len returns the number of rows added so far.
func (a *Aggregator) Len() int {
	return a.rows
}

// Add stores rows. A row without a point must carry a Reason.
func (a *Aggregator) Add(rows []Row) (err error) {
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rErr := tx.Rollback(); rErr != nil {
				err = errors.Join(err, rErr)
			}
		}
	}()

	stmt, err := tx.Prepare(`
		INSERT INTO roster_rows (ord, institution, lookup_key, lat, lng, country, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		var lat, lng sql.NullFloat64

		reason := r.Reason
		if r.Point != nil {
			lat = sql.NullFloat64{Float64: r.Point.Lat, Valid: true}
			lng = sql.NullFloat64{Float64: r.Point.Lng, Valid: true}
			reason = ""
		} else if reason == "" {
			return fmt.Errorf("row %d (%q) has neither point nor drop reason", a.rows, r.Institution)
		}

		if _, err = stmt.Exec(a.rows, r.Institution, r.Key, lat, lng, r.Country, string(reason)); err != nil {
			return fmt.Errorf("inserting row %d: %w", a.rows, err)
		}

		a.rows++
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing rows: %w", err)
	}

	return nil
}

// ByInstitution groups placed rows by institution. When an institution was
// placed at several points the first row's point is used.
func (a *Aggregator) ByInstitution() ([]InstitutionAggregate, error) {
	return a.query(`
		SELECT
			institution,
			arg_min(lat, ord) AS lat,
			arg_min(lng, ord) AS lng,
			count(*) AS n,
			coalesce(arg_min(country, ord) FILTER (WHERE country <> ''), '') AS country
		FROM roster_rows
		WHERE lat IS NOT NULL
		GROUP BY institution
		ORDER BY n DESC, institution
	`)
}

// ByInstitutionAndPoint groups placed rows by institution and point.
func (a *Aggregator) ByInstitutionAndPoint() ([]InstitutionAggregate, error) {
	return a.query(`
		SELECT
			institution,
			lat,
			lng,
			count(*) AS n,
			coalesce(arg_min(country, ord) FILTER (WHERE country <> ''), '') AS country
		FROM roster_rows
		WHERE lat IS NOT NULL
		GROUP BY institution, lat, lng
		ORDER BY n DESC, institution, lat, lng
	`)
}

func (a *Aggregator) query(q string) ([]InstitutionAggregate, error) {
	rows, err := a.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("aggregating rows: %w", err)
	}
	defer rows.Close()

	var out []InstitutionAggregate

	for rows.Next() {
		var agg InstitutionAggregate
		if err := rows.Scan(&agg.Institution, &agg.Point.Lat, &agg.Point.Lng, &agg.Count, &agg.Country); err != nil {
			return nil, fmt.Errorf("scanning aggregate: %w", err)
		}

		out = append(out, agg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating aggregates: %w", err)
	}

	return out, nil
}

// Dropped returns the rows left off the map, grouped by institution, lookup
// key and reason.
func (a *Aggregator) Dropped() ([]Dropped, error) {
	rows, err := a.db.Query(`
		SELECT institution, lookup_key, reason, count(*) AS n
		FROM roster_rows
		WHERE lat IS NULL
		GROUP BY institution, lookup_key, reason
		ORDER BY n DESC, institution, lookup_key, reason
	`)
	if err != nil {
		return nil, fmt.Errorf("listing dropped rows: %w", err)
	}
	defer rows.Close()

	var out []Dropped

	for rows.Next() {
		var (
			d      Dropped
			reason string
		)

		if err := rows.Scan(&d.Institution, &d.Key, &reason, &d.Count); err != nil {
			return nil, fmt.Errorf("scanning dropped row: %w", err)
		}

		d.Reason = Reason(reason)
		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dropped rows: %w", err)
	}

	return out, nil
}

// DroppedByReason totals dropped rows per reason.
func DroppedByReason(dropped []Dropped) map[Reason]int {
	totals := make(map[Reason]int)
	for _, d := range dropped {
		totals[d.Reason] += d.Count
	}

	return totals
}

// Total sums the counts of a set of aggregates.
func Total(aggs []InstitutionAggregate) int {
	n := 0
	for _, a := range aggs {
		n += a.Count
	}

	return n
}
