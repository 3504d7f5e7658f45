// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/cairibu/instmap/pipeline"
	"github.com/cairibu/instmap/utils/textutils"
)

// printReport writes the terminal tables of a run. It works on partial
// reports too, so the raw geocode results are visible when a run halts.
func printReport(w io.Writer, r *pipeline.Report) {
	if len(r.Geocodes) > 0 {
		printGeocodes(w, r)
	}

	if len(r.Markers) > 0 {
		printCounts(w, r)
	}

	if len(r.Dropped) > 0 {
		printDropped(w, r)
	}

	if len(r.Markers) > 0 {
		fmt.Fprintf(w, "👥 %s of %s rows mapped to %s markers\n",
			fmtInt(r.MappedRows()), fmtInt(r.Records), fmtInt(len(r.Markers)))
		fmt.Fprintf(w, "🌎 Non-US: %s people across %s institutions\n",
			fmtInt(r.Summary.NonUSTotal), fmtInt(r.Summary.NonUSInstitutions))
	}

	if n := r.DroppedRows(); n > 0 {
		fmt.Fprintf(w, "⚠️  %s rows are not on the map\n", fmtInt(n))
	}
}

func fmtInt(n int) string {
	return textutils.FormatInt(int64(n))
}

func rule(widths ...int) []string {
	out := make([]string, len(widths))
	for i, n := range widths {
		out[i] = strings.Repeat("─", n)
	}

	return out
}

func printCounts(w io.Writer, r *pipeline.Report) {
	cols := rule(40, 26, 22, 6)
	a, b, c, d := cols[0], cols[1], cols[2], cols[3]

	fmt.Fprintln(w, "Counts by institution:")
	fmt.Fprintf(w, "╭─%s─┬─%s─┬─%s─┬─%s─╮\n", a, b, c, d)
	fmt.Fprintf(w, "│ %-40s │ %-26s │ %-22s │ %6s │\n", "Institution", "Point", "Country", "Count")
	fmt.Fprintf(w, "├─%s─┼─%s─┼─%s─┼─%s─┤\n", a, b, c, d)

	for _, m := range r.Markers {
		fmt.Fprintf(w, "│ %-40s │ %-26s │ %-22s │ %6d │\n",
			textutils.Truncate(m.Institution, 40),
			textutils.Truncate(m.Point.String(), 26),
			textutils.Truncate(m.Country, 22),
			m.Count)
	}

	fmt.Fprintf(w, "╰─%s─┴─%s─┴─%s─┴─%s─╯\n", a, b, c, d)
}

func printDropped(w io.Writer, r *pipeline.Report) {
	cols := rule(40, 40, 19, 6)
	a, b, c, d := cols[0], cols[1], cols[2], cols[3]

	fmt.Fprintln(w, "Not on the map:")
	fmt.Fprintf(w, "╭─%s─┬─%s─┬─%s─┬─%s─╮\n", a, b, c, d)
	fmt.Fprintf(w, "│ %-40s │ %-40s │ %-19s │ %6s │\n", "Institution", "Lookup key", "Reason", "Rows")
	fmt.Fprintf(w, "├─%s─┼─%s─┼─%s─┼─%s─┤\n", a, b, c, d)

	for _, dr := range r.Dropped {
		fmt.Fprintf(w, "│ %-40s │ %-40s │ %-19s │ %6d │\n",
			textutils.Truncate(dr.Institution, 40),
			textutils.Truncate(dr.Key, 40),
			dr.Reason,
			dr.Count)
	}

	fmt.Fprintf(w, "╰─%s─┴─%s─┴─%s─┴─%s─╯\n", a, b, c, d)
}

func printGeocodes(w io.Writer, r *pipeline.Report) {
	cols := rule(50, 26, 11)
	a, b, c := cols[0], cols[1], cols[2]

	fmt.Fprintln(w, "Raw geocode results:")
	fmt.Fprintf(w, "╭─%s─┬─%s─┬─%s─╮\n", a, b, c)
	fmt.Fprintf(w, "│ %-50s │ %-26s │ %-11s │\n", "Address", "Point", "Provider")
	fmt.Fprintf(w, "├─%s─┼─%s─┼─%s─┤\n", a, b, c)

	for _, g := range r.Geocodes {
		point, provider := "not found", "-"
		if g.Found() {
			point, provider = g.Point.String(), g.Provider
		}

		fmt.Fprintf(w, "│ %-50s │ %-26s │ %-11s │\n",
			textutils.Truncate(g.Address, 50),
			textutils.Truncate(point, 26),
			provider)
	}

	fmt.Fprintf(w, "╰─%s─┴─%s─┴─%s─╯\n", a, b, c)

	stats := r.CacheStats
	fmt.Fprintf(w, "🗂️  %s unique addresses, %s cache hits\n", fmtInt(stats.Entries), fmtInt(stats.Hits))
}
