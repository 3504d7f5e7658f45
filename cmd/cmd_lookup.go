// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/cairibu/instmap/pipeline"
	"github.com/cairibu/instmap/reference"
	"github.com/cairibu/instmap/roster"
	"github.com/spf13/cobra"
)

const (
	defaultRoster     = "Institutions.csv"
	defaultReference  = "Institution_Coordinates.csv"
	defaultLookupMap  = "institution_map.html"
	defaultAddressMap = "address_map.html"
)

var lookupOut string

var lookupCmd = &cobra.Command{
	Use:   "lookup [roster] [coordinates]",
	Short: "Map a roster by looking institutions up in a coordinates table",
	Long: `Counts the people of the roster per "Current Institution" and joins every
institution by exact name against a table with Institution, Latitude and
Longitude columns. Institutions missing from that table are listed, not mapped.

Defaults to Institutions.csv and Institution_Coordinates.csv in the current
directory.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rosterPath, refPath := defaultRoster, defaultReference
		if len(args) > 0 {
			rosterPath = args[0]
		}

		if len(args) > 1 {
			refPath = args[1]
		}

		table, err := roster.Load(rosterPath)
		if err != nil {
			return err
		}

		ref, err := reference.Load(cmd.Context(), refPath)
		if err != nil {
			return err
		}

		if n := len(ref.Invalid); n > 0 {
			fmt.Fprintf(os.Stderr, "⚠️  skipped %s rows of %s without usable coordinates\n", fmtInt(n), refPath)
		}

		classifier, err := newClassifier(cfg, nil)
		if err != nil {
			return err
		}

		report, err := pipeline.New(classifier).RunLookup(cmd.Context(), table, ref)
		if report != nil {
			printReport(os.Stdout, report)
		}

		if err != nil {
			return err
		}

		if err := writeMap(lookupOut, report); err != nil {
			return err
		}

		fmt.Printf("✅ Map written to %s\n", lookupOut)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().StringVarP(&lookupOut, "out", "o", defaultLookupMap, "Where to write the HTML map")
}
