// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import "fmt"

// EmptyResultError is returned when no roster row could be placed on the map.
type EmptyResultError struct {
	Mode    Mode
	Records int
	Dropped int
}

func (e *EmptyResultError) Error() string {
	if e.Mode == ModeAddress {
		return fmt.Sprintf("no valid geocoded addresses: %d of %d rows dropped, check the raw geocode results", e.Dropped, e.Records)
	}

	return fmt.Sprintf("no institution has reference coordinates: %d of %d rows dropped", e.Dropped, e.Records)
}

// TooManyAddressesError is returned before any provider request when a
// roster holds more unique addresses than the configured cap.
type TooManyAddressesError struct {
	Unique int
	Max    int
}

func (e *TooManyAddressesError) Error() string {
	return fmt.Sprintf("roster has %d unique addresses, more than the limit of %d", e.Unique, e.Max)
}
