// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/cairibu/instmap/metrics"
	"github.com/cairibu/instmap/pipeline"
	"github.com/cairibu/instmap/reference"
	"github.com/cairibu/instmap/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveOptions struct {
	listen    string
	reference string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload web server",
	Long: `Serves an upload form; every uploaded roster runs its own pipeline and
gets its map back. Nothing is cached between uploads.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		listen := cfg.ListenAddr
		if cmd.Flags().Changed("listen") {
			listen = serveOptions.listen
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New(reg)

		classifier, err := newClassifier(cfg, m)
		if err != nil {
			return err
		}

		p := pipeline.New(classifier,
			pipeline.WithChain(newChain(cmd.Context(), cfg, m, rootOpts.traceHTTP)),
			pipeline.WithResolverOptions(resolverOptions(cfg, m, nil)...),
			pipeline.WithMaxAddresses(cfg.MaxAddresses),
			pipeline.WithMetrics(m),
		)

		opts := []web.Option{web.WithGatherer(reg), web.WithMaxAddresses(cfg.MaxAddresses)}

		if serveOptions.reference != "" {
			ref, err := reference.Load(cmd.Context(), serveOptions.reference)
			if err != nil {
				return err
			}

			opts = append(opts, web.WithReference(ref))
		}

		fmt.Println("🗺️  Institution map server starting...")
		fmt.Printf("📍 Open http://%s in your browser\n", listen)

		return web.NewServer(p, opts...).Run(listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveOptions.listen, "listen", "localhost:8080", "Address to listen on; overrides INSTMAP_LISTEN_ADDR")
	serveCmd.Flags().StringVar(&serveOptions.reference, "reference", "", "Default institution coordinates file for lookup uploads")
}
