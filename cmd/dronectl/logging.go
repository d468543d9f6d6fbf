package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/skyops/dronectl/internal/config"
	"github.com/skyops/dronectl/internal/logging"
	intOtel "github.com/skyops/dronectl/internal/otel"

	"github.com/rs/zerolog"
)

// sessionLogs owns every log sink of one console session.
type sessionLogs struct {
	path    string
	level   string
	file    io.WriteCloser
	graylog io.WriteCloser
	otel    *intOtel.Provider

	slog    *logging.SlogManager
	zerolog zerolog.Logger
}

// setupLogging opens the session log file, the optional Graylog stream and the OTel providers.
// The terminal is in raw mode while the console runs, so nothing is logged to stdout.
func setupLogging(sessionStart time.Time) (*sessionLogs, error) {
	lc := config.GetLoggingConfig()

	if err := os.MkdirAll(lc.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir %s: %w", lc.Dir, err)
	}

	s := &sessionLogs{
		path:  logging.LogFilePath(lc.Dir, AppName, sessionStart),
		level: lc.Level,
		slog:  logging.NewSlogManager(),
	}
	s.file = logging.NewRotatingFile(s.path, lc.MaxSizeMB, lc.MaxBackups)
	s.zerolog = logging.NewZerolog(s.file, lc.Level)

	var graylogErr error
	if lc.GraylogEnabled {
		w, err := logging.NewGraylogWriter(lc.GraylogAddress)
		if err != nil {
			graylogErr = err
		} else {
			s.graylog = w
		}
	}

	oc := config.GetOTelConfig()
	provider, err := intOtel.New(intOtel.Config{
		Enabled:        oc.Enabled,
		ServiceName:    oc.ServiceName,
		ServiceVersion: CurrentVersion,
		BatchTimeout:   oc.BatchTimeout,
		LogWriter:      s.file,
		MetricWriter:   s.file,
		MetricInterval: oc.MetricInterval,
		Endpoint:       oc.Endpoint,
		Insecure:       oc.Insecure,
	})
	s.otel = provider

	s.setup(nil)
	logger := s.slog.Logger()
	if graylogErr != nil {
		logger.Warn("Failed to connect to Graylog", "address", lc.GraylogAddress, "error", graylogErr)
	}
	if err != nil {
		logger.Warn("Failed to set up OpenTelemetry", "error", err)
	} else if provider.Enabled() {
		logger.Info("OpenTelemetry enabled", "endpoint", oc.Endpoint)
	}
	return s, nil
}

// setup (re)builds the slog logger, adding ctx attributes to every record when given.
func (s *sessionLogs) setup(ctx logging.ContextProvider) {
	opts := logging.Options{
		File:    s.file,
		Level:   s.level,
		Context: ctx,
	}
	if s.graylog != nil {
		opts.Graylog = s.graylog
	}
	if s.otel != nil && s.otel.Enabled() {
		opts.Provider = s.otel.LoggerProvider()
	}
	s.slog.Setup(opts)
}

// Close flushes and shuts down every sink.
func (s *sessionLogs) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.slog.Flush(ctx)
	if s.otel != nil {
		s.otel.Shutdown(ctx)
	}
	if s.graylog != nil {
		s.graylog.Close()
	}
	s.file.Close()
}
