// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package country

import "strings"

// Tally is one classified aggregate row.
type Tally struct {
	Institution string
	Label       string
	Count       int
}

// Summary splits headcounts between the US and everywhere else. Rows with a
// blank label count towards neither side.
type Summary struct {
	USTotal             int
	USInstitutions      int
	NonUSTotal          int
	NonUSInstitutions   int
	UnclassifiedTotal   int
	UnclassifiedEntries int
}

// Summarize tallies classified rows. Institutions are counted once per side
// even when they appear at several points.
func Summarize(rows []Tally) Summary {
	var s Summary

	us := make(map[string]struct{})
	nonUS := make(map[string]struct{})

	for _, r := range rows {
		switch {
		case strings.TrimSpace(r.Label) == "":
			s.UnclassifiedTotal += r.Count
			s.UnclassifiedEntries++
		case IsUnitedStates(r.Label):
			s.USTotal += r.Count
			us[r.Institution] = struct{}{}
		default:
			s.NonUSTotal += r.Count
			nonUS[r.Institution] = struct{}{}
		}
	}

	s.USInstitutions = len(us)
	s.NonUSInstitutions = len(nonUS)

	return s
}
