// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cairibu/instmap/country"
	"github.com/cairibu/instmap/geocoding"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var debugGeocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocode addresses read from stdin, one per line",
	Long: `Reads one address per line and prints every provider attempt followed by
the final point. Repeated addresses are answered from the cache.

$ echo "1600 Pennsylvania Ave NW, Washington, DC" | instmap debug geocode
1600 Pennsylvania Ave NW, Washington, DC	arcgis	found	312ms
1600 Pennsylvania Ave NW, Washington, DC	=> (38.897700, -77.036500) arcgis
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		input := os.Stdin
		if isatty.IsTerminal(input.Fd()) {
			fmt.Fprintln(os.Stderr, "Enter addresses to geocode, one per line…")
		}

		chain := newChain(cmd.Context(), cfg, nil, rootOpts.traceHTTP)
		resolver := geocoding.NewResolver(chain, geocoding.NewCache(), geocoding.WithDelay(cfg.GeocodeDelay))

		return debugGeocode(cmd.Context(), input, os.Stdout, resolver)
	},
}

func debugGeocode(ctx context.Context, in io.Reader, out io.Writer, resolver *geocoding.Resolver) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		address := scanner.Text()

		res, err := resolver.Resolve(ctx, address)
		if err != nil {
			return err
		}

		if res.Address == "" {
			continue
		}

		for _, a := range res.Attempts {
			line := fmt.Sprintf("%s\t%s\t%s\t%s", res.Address, a.Provider, a.Outcome(), a.Elapsed.Round(time.Millisecond))
			if a.Err != nil && a.Outcome() == "error" {
				line += fmt.Sprintf("\t%q", a.Err)
			}

			fmt.Fprintln(out, line)
		}

		if res.Found() {
			fmt.Fprintf(out, "%s\t=> %s %s\n", res.Address, res.Point, res.Provider)
		} else {
			fmt.Fprintf(out, "%s\t=> not found\n", res.Address)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	return nil
}

var debugClassifyCmd = &cobra.Command{
	Use:   "classify <lat> <lon> [country]",
	Short: "Print the country label of a point and the rule that produced it",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		classifier, err := newClassifier(cfg, nil)
		if err != nil {
			return err
		}

		explicit := ""
		if len(args) > 2 {
			explicit = args[2]
		}

		cl := classifier.ClassifyText(cmd.Context(), explicit, args[0], args[1])
		if cl.Err != nil {
			return cl.Err
		}

		fmt.Printf("%s\t%s\tus=%t\n", cl.Label, cl.Source, country.IsUnitedStates(cl.Label))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugGeocodeCmd)
	debugCmd.AddCommand(debugClassifyCmd)
}
