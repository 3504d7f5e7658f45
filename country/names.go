// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package country

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// UnitedStates is the label given to points inside the US bounding boxes.
const UnitedStates = "United States"

// NonUS is the label given to valid points outside every US bounding box.
const NonUS = "Non-US"

var usVariants = map[string]struct{}{
	"united states":            {},
	"united states of america": {},
	"usa":                      {},
	"us":                       {},
	"u.s.":                     {},
	"u.s.a.":                   {},
}

// IsUnitedStates reports whether a classification names the United States.
func IsUnitedStates(label string) bool {
	_, ok := usVariants[strings.ToLower(strings.TrimSpace(label))]

	return ok
}

// Name expands an ISO 3166-1 alpha-2 code into its English short name. Codes
// the CLDR tables don't know are returned upper-cased.
func Name(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))

	region, err := language.ParseRegion(code)
	if err != nil {
		return code
	}

	if name := display.English.Regions().Name(region); name != "" {
		return name
	}

	return code
}
