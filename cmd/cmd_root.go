// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/cairibu/instmap/config"
	"github.com/cairibu/instmap/geocoding"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type rootOptions struct {
	logLevel     string
	delay        time.Duration
	maxAddresses int
	cities       string
	traceHTTP    bool
	userAgent    string
	googleADC    bool
}

var (
	rootOpts = &rootOptions{}
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "instmap",
	Short: "map where the people of a roster work",
	Long: `
instmap counts the people of a roster per institution and plots them on an
interactive map, either by looking institutions up in a table of known
coordinates or by geocoding their institutional mailing addresses.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error

		cfg, err = config.Load()
		if err != nil {
			return err
		}

		if err := applyFlags(cmd, cfg, rootOpts); err != nil {
			return err
		}

		setupLogging(cfg.LogLevel)

		return nil
	},
}

// applyFlags overrides environment settings with the flags set explicitly.
func applyFlags(cmd *cobra.Command, c *config.Config, o *rootOptions) error {
	flags := cmd.Flags()

	if flags.Changed("log-level") {
		level, err := zerolog.ParseLevel(o.logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}

		c.LogLevel = level
	}

	if flags.Changed("delay") {
		if o.delay < geocoding.MinDelay {
			return fmt.Errorf("invalid --delay %s: must be at least %s", o.delay, geocoding.MinDelay)
		}

		c.GeocodeDelay = o.delay
	}

	if flags.Changed("max-addresses") {
		if o.maxAddresses < 0 {
			return fmt.Errorf("invalid --max-addresses %d: must not be negative", o.maxAddresses)
		}

		c.MaxAddresses = o.maxAddresses
	}

	if flags.Changed("cities") {
		c.CitiesFile = o.cities
	}

	if flags.Changed("user-agent") {
		c.UserAgent = o.userAgent
	}

	if flags.Changed("google-adc") {
		c.GoogleADC = o.googleADC
	}

	return nil
}

func setupLogging(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)

	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}

var Version = "dev"

func Execute(version string) {
	Version = version
	rootCmd.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func registerRootFlags(flags *pflag.FlagSet, o *rootOptions) {
	flags.StringVar(&o.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error); overrides INSTMAP_LOG_LEVEL")
	flags.DurationVar(&o.delay, "delay", geocoding.DefaultDelay, "Pause after each address sent to the geocoding providers, at least 500ms; overrides INSTMAP_GEOCODE_DELAY")
	flags.IntVar(&o.maxAddresses, "max-addresses", 0, "Refuse rosters with more unique addresses than this (0: no limit); overrides INSTMAP_MAX_ADDRESSES")
	flags.StringVar(&o.cities, "cities", "", "GeoNames cities file for offline reverse geocoding; overrides INSTMAP_CITIES_FILE")
	flags.BoolVar(&o.traceHTTP, "trace-http", false, "Log every geocoding HTTP request")
	flags.StringVar(&o.userAgent, "user-agent", config.DefaultUserAgent, "User-Agent sent to geocoding providers; overrides INSTMAP_USER_AGENT")
	flags.BoolVar(&o.googleADC, "google-adc", false, "Look up the Google Maps API key with application default credentials; overrides INSTMAP_GOOGLE_ADC")
}

func init() {
	registerRootFlags(rootCmd.PersistentFlags(), rootOpts)
}
