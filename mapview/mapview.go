// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package mapview renders the HTML pages of instmap: the standalone map of a
// run, the upload form and the error page.
package mapview

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/cairibu/instmap/aggregate"
	"github.com/cairibu/instmap/country"
	"github.com/cairibu/instmap/pipeline"
	"github.com/cairibu/instmap/spatial"
	"github.com/cairibu/instmap/utils/textutils"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates holds every page, by file name.
var Templates = template.Must(template.New("").Funcs(template.FuncMap{
	"thousands": func(n int) string { return textutils.FormatInt(int64(n)) },
}).ParseFS(templatesFS, "templates/*.html"))

// Template names.
const (
	MapTemplate    = "map.html"
	UploadTemplate = "upload.html"
	ErrorTemplate  = "error.html"
)

// Marker is a circle on the map.
type Marker struct {
	Institution string  `json:"institution"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Count       int     `json:"count"`
	Country     string  `json:"country"`
	// Radius is in meters.
	Radius  float64 `json:"radius"`
	Tooltip string  `json:"tooltip"`
}

// Geocode is one row of the raw geocode results table.
type Geocode struct {
	Address     string
	Point       string
	Provider    string
	DisplayName string
	Error       string
}

// Page is the data behind map.html.
type Page struct {
	Title       string
	RunID       string
	Mode        pipeline.Mode
	GeneratedAt time.Time
	Center      spatial.Point
	Zoom        int
	Markers     []Marker
	Records     int
	Mapped      int
	DroppedRows int
	Summary     country.Summary
	Dropped     []aggregate.Dropped
	Geocodes    []Geocode
}

// ErrorPage is the data behind error.html. Page is set when the run got far
// enough to have dropped rows or geocode results worth showing.
type ErrorPage struct {
	Message string
	Page    *Page
}

// UploadForm is the data behind upload.html.
type UploadForm struct {
	MaxAddresses int
}

// Radius returns the circle radius in meters for an aggregate count.
func Radius(mode pipeline.Mode, count int) float64 {
	if mode == pipeline.ModeAddress {
		return float64(count) * 30000
	}

	return 20000 + float64(count)*100
}

// Tooltip returns the hover text of a marker as HTML.
func Tooltip(institution string, count int) string {
	return fmt.Sprintf("Institution: %s<br>Count: %d", template.HTMLEscapeString(institution), count)
}

// NewPage builds the page of a finished run.
func NewPage(report *pipeline.Report, now time.Time) Page {
	page := Page{
		Title:       "Institution Map",
		RunID:       report.RunID.String(),
		Mode:        report.Mode,
		GeneratedAt: now,
		Zoom:        1,
		Records:     report.Records,
		Mapped:      report.MappedRows(),
		DroppedRows: report.DroppedRows(),
		Summary:     report.Summary,
		Dropped:     report.Dropped,
		Markers:     make([]Marker, 0, len(report.Markers)),
	}

	if report.Mode == pipeline.ModeAddress {
		page.Title = "Institution Map (by Mailing Address)"
		page.Zoom = 3
	}

	points := make([]spatial.Point, 0, len(report.Markers))
	for _, m := range report.Markers {
		points = append(points, m.Point)
		page.Markers = append(page.Markers, Marker{
			Institution: m.Institution,
			Lat:         m.Point.Lat,
			Lng:         m.Point.Lng,
			Count:       m.Count,
			Country:     m.Country,
			Radius:      Radius(report.Mode, m.Count),
			Tooltip:     Tooltip(m.Institution, m.Count),
		})
	}

	page.Center, _ = spatial.Centroid(points)

	for _, g := range report.Geocodes {
		row := Geocode{Address: g.Address, Provider: g.Provider, DisplayName: g.DisplayName}
		if g.Found() {
			row.Point = g.Point.String()
		} else if err := g.Err(); err != nil {
			row.Error = err.Error()
		} else {
			row.Error = "not found"
		}

		page.Geocodes = append(page.Geocodes, row)
	}

	return page
}

// Render writes the standalone map page of a run.
func Render(w io.Writer, page Page) error {
	if err := Templates.ExecuteTemplate(w, MapTemplate, page); err != nil {
		return fmt.Errorf("rendering map: %w", err)
	}

	return nil
}

// RenderError writes the page shown when a run halts.
func RenderError(w io.Writer, data ErrorPage) error {
	if err := Templates.ExecuteTemplate(w, ErrorTemplate, data); err != nil {
		return fmt.Errorf("rendering error page: %w", err)
	}

	return nil
}
