// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package roster

import (
	"fmt"
	"strings"

	"github.com/cairibu/instmap/utils/textutils"
)

// Semantic fields looked up in roster headers. Matching is by normalized
// substring, so "Current Institution (2024)" satisfies FieldCurrentInstitution.
const (
	FieldCurrentInstitution = "current institution"
	FieldMailingAddress     = "institutional mailing address"
	FieldCountry            = "country"

	FieldInstitution = "institution"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
)

// MissingColumnError reports that no header matched a required field.
type MissingColumnError struct {
	Field     string
	Available []string
}

func (e *MissingColumnError) Error() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "couldn't find %q header", e.Field)

	if len(e.Available) == 0 {
		sb.WriteString("; the table has no headers")

		return sb.String()
	}

	sb.WriteString(". Available:")

	for _, h := range e.Available {
		sb.WriteString("\n• ")
		sb.WriteString(h)
	}

	return sb.String()
}

// FindHeader returns the index of the first header, in column order, whose
// normalized form contains the normalized field.
func FindHeader(headers []string, field string) (int, bool) {
	needle := textutils.NormalizeHeader(field)
	if needle == "" {
		return -1, false
	}

	for i, h := range headers {
		if strings.Contains(textutils.NormalizeHeader(h), needle) {
			return i, true
		}
	}

	return -1, false
}

// ResolveHeader returns the original header name matching field, or a
// *MissingColumnError listing every available header.
func ResolveHeader(headers []string, field string) (string, error) {
	idx, ok := FindHeader(headers, field)
	if !ok {
		return "", &MissingColumnError{Field: field, Available: headers}
	}

	return headers[idx], nil
}
