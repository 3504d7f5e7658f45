// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package reference

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cairibu/instmap/roster"
	"github.com/cairibu/instmap/spatial"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coordinatesCSV = `Institution,Latitude,Longitude
Acme University,40.0,-75.0
Beta College,48.8,2.3
Gamma Institute,,
Delta Lab,north,south
Acme University,1,1
`

func TestNew(t *testing.T) {
	table, err := roster.Read(strings.NewReader(coordinatesCSV), roster.FormatCSV)
	require.NoError(t, err)

	ref, err := New(t.Context(), table)
	require.NoError(t, err)

	assert.Equal(t, 2, ref.Len())

	p, ok := ref.Lookup("Acme University")
	require.True(t, ok)
	assert.Equal(t, spatial.Point{Lat: 40, Lng: -75}, p, "first row wins")

	_, ok = ref.Lookup("acme university")
	assert.False(t, ok, "lookup is exact")

	_, ok = ref.Lookup("Gamma Institute")
	assert.False(t, ok)

	require.Len(t, ref.Invalid, 2)
	assert.Equal(t, "Gamma Institute", ref.Invalid[0].Institution)
	assert.Equal(t, 4, ref.Invalid[0].Line)
	assert.Equal(t, "Delta Lab", ref.Invalid[1].Institution)
}

func TestNewMissingColumn(t *testing.T) {
	table, err := roster.Read(strings.NewReader("Institution,Lat,Lon\nAcme,1,2\n"), roster.FormatCSV)
	require.NoError(t, err)

	_, err = New(t.Context(), table)

	var missing *roster.MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, roster.FieldLatitude, missing.Field)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Institution_Coordinates.csv")
	require.NoError(t, os.WriteFile(path, []byte(coordinatesCSV), 0o600))

	ref, err := Load(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, ref.Len())
}

func TestNewLogsSkippedRowsThroughContext(t *testing.T) {
	var buf bytes.Buffer

	logger := zerolog.New(&buf).With().Str("run_id", "run-1").Logger()

	table, err := roster.Read(strings.NewReader(coordinatesCSV), roster.FormatCSV)
	require.NoError(t, err)

	_, err = New(logger.WithContext(t.Context()), table)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	for _, line := range lines {
		assert.Contains(t, line, `"run_id":"run-1"`)
		assert.Contains(t, line, "skipping reference row")
	}
}
