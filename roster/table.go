// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package roster loads people/institution spreadsheets and turns their rows
// into records, independently of how the columns happen to be titled.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format is the on-disk encoding of a table.
type Format int

const (
	// FormatCSV is a comma separated file with a header row.
	FormatCSV Format = iota
	// FormatXLSX is an Office Open XML workbook; only its first sheet is read.
	FormatXLSX
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXLSX:
		return "xlsx"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ErrEmptyTable is returned when a file has no header row.
var ErrEmptyTable = errors.New("table has no header row")

// FormatFromName infers the format from a file name extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return 0, fmt.Errorf("unsupported file type %q (expected .csv or .xlsx)", filepath.Ext(name))
	}
}

// Table is a header row plus data rows. Every row has exactly len(Headers)
// cells; cell values are trimmed.
type Table struct {
	Headers []string
	Rows    [][]string
	// Lines maps Rows[i] to its 1-based line/row number in the source file.
	Lines []int
}

// Load reads a table from path, choosing the decoder by extension.
func Load(path string) (*Table, error) {
	format, err := FormatFromName(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	t, err := Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return t, nil
}

// Read decodes a table in the given format.
func Read(r io.Reader, format Format) (*Table, error) {
	var (
		raw [][]string
		err error
	)

	switch format {
	case FormatCSV:
		raw, err = readCSV(r)
	case FormatXLSX:
		raw, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}

	if err != nil {
		return nil, err
	}

	return newTable(raw)
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}

	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}

	return records, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrEmptyTable
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}

	return rows, nil
}

func newTable(raw [][]string) (*Table, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyTable
	}

	headers := make([]string, len(raw[0]))
	for i, h := range raw[0] {
		headers[i] = strings.TrimSpace(h)
	}

	if len(headers) == 0 {
		return nil, ErrEmptyTable
	}

	t := &Table{Headers: headers}

	for i, row := range raw[1:] {
		cells := make([]string, len(headers))
		blank := true

		for j := range cells {
			if j < len(row) {
				cells[j] = strings.TrimSpace(row[j])
			}

			if cells[j] != "" {
				blank = false
			}
		}

		if blank {
			continue
		}

		t.Rows = append(t.Rows, cells)
		t.Lines = append(t.Lines, i+2)
	}

	return t, nil
}

// Column resolves a semantic field to a column index.
func (t *Table) Column(field string) (int, error) {
	idx, ok := FindHeader(t.Headers, field)
	if !ok {
		return -1, &MissingColumnError{Field: field, Available: t.Headers}
	}

	return idx, nil
}
