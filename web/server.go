// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

// Package web serves the upload form and renders maps of uploaded rosters.
// Every upload runs its own pipeline; nothing is shared between requests.
package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/cairibu/instmap/mapview"
	"github.com/cairibu/instmap/pipeline"
	"github.com/cairibu/instmap/reference"
	"github.com/cairibu/instmap/roster"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultMaxUploadBytes bounds the multipart form kept in memory.
const DefaultMaxUploadBytes = 32 << 20

type Server struct {
	pipeline     *pipeline.Pipeline
	reference    *reference.Table
	gatherer     prometheus.Gatherer
	clock        clockwork.Clock
	maxAddresses int
}

// Option configures a Server.
type Option func(*Server)

// WithReference sets the coordinates table used by lookup uploads that do
// not bring their own.
func WithReference(ref *reference.Table) Option {
	return func(s *Server) { s.reference = ref }
}

// WithGatherer exposes g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithClock sets the clock used to timestamp rendered maps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithMaxAddresses is shown on the upload form. The pipeline enforces it.
func WithMaxAddresses(n int) Option {
	return func(s *Server) { s.maxAddresses = n }
}

func NewServer(p *pipeline.Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline: p,
		gatherer: prometheus.DefaultGatherer,
		clock:    clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.MaxMultipartMemory = DefaultMaxUploadBytes
	r.SetHTMLTemplate(mapview.Templates)

	r.GET("/", s.uploadView)
	r.POST("/map", s.renderMap)
	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	return r
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	log.Info().Str("addr", addr).Msg("serving institution maps")

	return s.Router().Run(addr)
}

func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		logger := log.With().Str("method", ctx.Request.Method).Str("path", ctx.Request.URL.Path).Logger()
		ctx.Request = ctx.Request.WithContext(logger.WithContext(ctx.Request.Context()))

		ctx.Next()

		logger.Info().
			Int("status", ctx.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) uploadView(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, mapview.UploadTemplate, mapview.UploadForm{MaxAddresses: s.maxAddresses})
}

func (s *Server) healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) renderMap(ctx *gin.Context) {
	mode := pipeline.Mode(ctx.DefaultPostForm("mode", string(pipeline.ModeAddress)))

	table, err := readUpload(ctx, "roster")
	if err != nil {
		s.fail(ctx, http.StatusUnprocessableEntity, err, nil)

		return
	}

	var report *pipeline.Report

	switch mode {
	case pipeline.ModeLookup:
		ref, err := s.lookupReference(ctx)
		if err != nil {
			s.fail(ctx, http.StatusUnprocessableEntity, err, nil)

			return
		}

		report, err = s.pipeline.RunLookup(ctx.Request.Context(), table, ref)
		if err != nil {
			s.fail(ctx, statusFor(err), err, report)

			return
		}
	case pipeline.ModeAddress:
		report, err = s.pipeline.RunAddress(ctx.Request.Context(), table)
		if err != nil {
			s.fail(ctx, statusFor(err), err, report)

			return
		}
	default:
		s.fail(ctx, http.StatusBadRequest, fmt.Errorf("unknown mode %q", mode), nil)

		return
	}

	ctx.HTML(http.StatusOK, mapview.MapTemplate, mapview.NewPage(report, s.clock.Now()))
}

func (s *Server) lookupReference(ctx *gin.Context) (*reference.Table, error) {
	if _, err := ctx.FormFile("reference"); errors.Is(err, http.ErrMissingFile) {
		if s.reference == nil {
			return nil, errors.New("lookup mode needs an institution coordinates file")
		}

		return s.reference, nil
	}

	table, err := readUpload(ctx, "reference")
	if err != nil {
		return nil, err
	}

	return reference.New(ctx.Request.Context(), table)
}

func readUpload(ctx *gin.Context, field string) (*roster.Table, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("missing %s file: %w", field, err)
	}

	format, err := roster.FormatFromName(fh.Filename)
	if err != nil {
		return nil, err
	}

	return readFile(fh, format)
}

func readFile(fh *multipart.FileHeader, format roster.Format) (*roster.Table, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", fh.Filename, err)
	}
	defer f.Close()

	table, err := roster.Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
	}

	return table, nil
}

// statusFor maps halting run errors to 422 and everything else to 500.
func statusFor(err error) int {
	var (
		missing *roster.MissingColumnError
		empty   *pipeline.EmptyResultError
		tooMany *pipeline.TooManyAddressesError
	)

	if errors.As(err, &missing) || errors.As(err, &empty) || errors.As(err, &tooMany) {
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}

func (s *Server) fail(ctx *gin.Context, status int, err error, report *pipeline.Report) {
	zerolog.Ctx(ctx.Request.Context()).Warn().Err(err).Int("status", status).Msg("map not rendered")

	data := mapview.ErrorPage{Message: err.Error()}
	if report != nil && (len(report.Dropped) > 0 || len(report.Geocodes) > 0) {
		page := mapview.NewPage(report, s.clock.Now())
		data.Page = &page
	}

	ctx.HTML(status, mapview.ErrorTemplate, data)
}
