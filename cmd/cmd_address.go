// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/cairibu/instmap/pipeline"
	"github.com/cairibu/instmap/roster"
	"github.com/spf13/cobra"
)

var addressOut string

var addressCmd = &cobra.Command{
	Use:   "address <roster.xlsx>",
	Short: "Map a roster by geocoding institutional mailing addresses",
	Long: `Geocodes every distinct "Institutional Mailing Address" of the roster,
trying ArcGIS first, then Nominatim and, when an API key is available, Google
Maps. Addresses are sent one at a time with a pause in between; each is sent
at most once per run.

People are counted per institution and geocoded point.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := roster.Load(args[0])
		if err != nil {
			return err
		}

		classifier, err := newClassifier(cfg, nil)
		if err != nil {
			return err
		}

		p := pipeline.New(classifier,
			pipeline.WithChain(newChain(cmd.Context(), cfg, nil, rootOpts.traceHTTP)),
			pipeline.WithResolverOptions(resolverOptions(cfg, nil, terminalProgress())...),
			pipeline.WithMaxAddresses(cfg.MaxAddresses),
		)

		report, err := p.RunAddress(cmd.Context(), table)
		if report != nil {
			printReport(os.Stdout, report)
		}

		if err != nil {
			return err
		}

		if err := writeMap(addressOut, report); err != nil {
			return err
		}

		fmt.Printf("✅ Map written to %s\n", addressOut)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
	addressCmd.Flags().StringVarP(&addressOut, "out", "o", defaultAddressMap, "Where to write the HTML map")
}
