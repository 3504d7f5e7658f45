// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

// DefaultGoogleKeyName is the display name of the API key looked up through
// Application Default Credentials.
const DefaultGoogleKeyName = "Instmap Geocoding Key"

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ErrKeyNotFound is returned when no live key carries the wanted display name.
var ErrKeyNotFound = errors.New("google maps api key not found")

// APIKeyFromADC resolves the Google Maps key named displayName in a Cloud
// project, authenticating with Application Default Credentials. An empty
// projectID means the credentials' own project.
func APIKeyFromADC(ctx context.Context, projectID, displayName string) (string, error) {
	project, err := adcProject(ctx, projectID)
	if err != nil {
		return "", err
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("api keys client: %w", err)
	}
	defer client.Close()

	keys, err := projectKeys(ctx, client, project)
	if err != nil {
		return "", err
	}

	key, err := pickKey(keys, displayName)
	if err != nil {
		return "", fmt.Errorf("project %s: %w", project, err)
	}

	zerolog.Ctx(ctx).Debug().Str("key", key.Name).Msg("reading api key secret")

	// Listed keys come back redacted.
	secret, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.Name})
	if err != nil {
		return "", fmt.Errorf("reading secret of %s: %w", key.Name, err)
	}

	if secret.KeyString == "" {
		return "", fmt.Errorf("%s has an empty secret", key.Name)
	}

	return secret.KeyString, nil
}

func adcProject(ctx context.Context, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
	if err != nil {
		return "", fmt.Errorf("application default credentials: %w", err)
	}

	if creds.ProjectID == "" {
		return "", errors.New("application default credentials carry no project; set INSTMAP_GOOGLE_PROJECT")
	}

	return creds.ProjectID, nil
}

func projectKeys(ctx context.Context, client *apikeys.Client, project string) ([]*apikeyspb.Key, error) {
	it := client.ListKeys(ctx, &apikeyspb.ListKeysRequest{
		Parent: "projects/" + project + "/locations/global",
	})

	var keys []*apikeyspb.Key

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return keys, nil
		}

		if err != nil {
			return nil, fmt.Errorf("listing api keys of %s: %w", project, err)
		}

		keys = append(keys, key)
	}
}

// pickKey returns the first key named displayName that is not scheduled for
// deletion. The error lists the names that were available.
func pickKey(keys []*apikeyspb.Key, displayName string) (*apikeyspb.Key, error) {
	names := make([]string, 0, len(keys))

	for _, k := range keys {
		if k.GetDeleteTime() != nil {
			continue
		}

		if k.GetDisplayName() == displayName {
			return k, nil
		}

		names = append(names, fmt.Sprintf("%q", k.GetDisplayName()))
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no %q and no other keys", ErrKeyNotFound, displayName)
	}

	return nil, fmt.Errorf("%w: no %q among %s", ErrKeyNotFound, displayName, strings.Join(names, ", "))
}
