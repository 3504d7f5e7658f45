// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package roster

// Record is one person in the roster.
type Record struct {
	// Row is the 1-based row number in the source file, header included.
	Row         int
	Institution string
	// Address is the institutional mailing address; empty when the column
	// is absent or the cell is blank.
	Address string
	// Country is the explicit country cell, empty when there is none.
	Country string
	// Fields holds every cell keyed by its original header.
	Fields map[string]string
}

// Layout is the set of resolved column indexes; -1 means absent.
type Layout struct {
	Institution int
	Address     int
	Country     int
}

// InstitutionLayout resolves the columns needed when institutions are joined
// against a reference table.
func (t *Table) InstitutionLayout() (Layout, error) {
	inst, err := t.Column(FieldCurrentInstitution)
	if err != nil {
		return Layout{}, err
	}

	return Layout{Institution: inst, Address: -1, Country: t.optional(FieldCountry)}, nil
}

// AddressLayout resolves the columns needed when addresses are geocoded.
func (t *Table) AddressLayout() (Layout, error) {
	inst, err := t.Column(FieldCurrentInstitution)
	if err != nil {
		return Layout{}, err
	}

	addr, err := t.Column(FieldMailingAddress)
	if err != nil {
		return Layout{}, err
	}

	return Layout{Institution: inst, Address: addr, Country: t.optional(FieldCountry)}, nil
}

func (t *Table) optional(field string) int {
	idx, ok := FindHeader(t.Headers, field)
	if !ok {
		return -1
	}

	return idx
}

// Records projects the table rows through a layout.
func (t *Table) Records(layout Layout) []Record {
	records := make([]Record, 0, len(t.Rows))

	for i, row := range t.Rows {
		rec := Record{
			Row:    t.Lines[i],
			Fields: make(map[string]string, len(t.Headers)),
		}

		for j, h := range t.Headers {
			if _, dup := rec.Fields[h]; !dup {
				rec.Fields[h] = row[j]
			}
		}

		rec.Institution = cell(row, layout.Institution)
		rec.Address = cell(row, layout.Address)
		rec.Country = cell(row, layout.Country)

		records = append(records, rec)
	}

	return records
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return row[idx]
}
