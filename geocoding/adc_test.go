// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"testing"

	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestPickKey(t *testing.T) {
	keys := []*apikeyspb.Key{
		{Name: "projects/p/locations/global/keys/old", DisplayName: DefaultGoogleKeyName, DeleteTime: timestamppb.Now()},
		{Name: "projects/p/locations/global/keys/other", DisplayName: "Browser key"},
		{Name: "projects/p/locations/global/keys/live", DisplayName: DefaultGoogleKeyName},
		{Name: "projects/p/locations/global/keys/dup", DisplayName: DefaultGoogleKeyName},
	}

	key, err := pickKey(keys, DefaultGoogleKeyName)
	require.NoError(t, err)
	assert.Equal(t, "projects/p/locations/global/keys/live", key.Name, "deleted keys are skipped, first live match wins")
}

func TestPickKeyNotFound(t *testing.T) {
	_, err := pickKey([]*apikeyspb.Key{{DisplayName: "Browser key"}, {DisplayName: "Server key"}}, DefaultGoogleKeyName)
	require.ErrorIs(t, err, ErrKeyNotFound)
	assert.Contains(t, err.Error(), `"Browser key", "Server key"`)

	_, err = pickKey(nil, DefaultGoogleKeyName)
	require.ErrorIs(t, err, ErrKeyNotFound)
	assert.Contains(t, err.Error(), "no other keys")
}

func TestADCProjectOverride(t *testing.T) {
	project, err := adcProject(t.Context(), "my-project")
	require.NoError(t, err)
	assert.Equal(t, "my-project", project)
}
