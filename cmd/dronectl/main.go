package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skyops/dronectl/internal/api"
	"github.com/skyops/dronectl/internal/config"
	"github.com/skyops/dronectl/internal/console"
	"github.com/skyops/dronectl/internal/dispatcher"
	"github.com/skyops/dronectl/internal/logging"
	"github.com/skyops/dronectl/internal/mission"
	"github.com/skyops/dronectl/internal/monitor"
	"github.com/skyops/dronectl/internal/recorder"
	"github.com/skyops/dronectl/internal/storage"
	"github.com/skyops/dronectl/internal/telemetry"
	"github.com/skyops/dronectl/internal/terminal"
	"github.com/skyops/dronectl/internal/vehicle"
	"github.com/skyops/dronectl/pkg/core"

	"golang.org/x/sync/errgroup"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "dronectl"
)

// shutdownTimeout bounds the exit sequence, including the final landing.
const shutdownTimeout = 90 * time.Second

var (
	configDir = flag.String("config", ".", "directory holding dronectl.cfg.json")
	simulate  = flag.Bool("sim", false, "fly a simulated vehicle instead of a MAVLink link")
	endpoint  = flag.String("endpoint", "", "MAVLink endpoint, e.g. udp://:14540 (overrides config)")
	showVer   = flag.Bool("version", false, "print the version and exit")
)

func main() {
	flag.Parse()
	if *showVer {
		fmt.Printf("%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
	fmt.Println("Exiting...")
}

func run() error {
	sessionStart := time.Now()

	cfgErr := config.Load(*configDir)
	if *simulate {
		config.Set("link.type", "sim")
	}
	if *endpoint != "" {
		config.Set("link.endpoint", *endpoint)
	}

	logs, err := setupLogging(sessionStart)
	if err != nil {
		return err
	}
	defer logs.Close()
	logger := logs.slog.Logger()

	if cfgErr != nil {
		logger.Warn("Failed to load config, using defaults!", "error", cfgErr)
	} else {
		logger.Info("Loaded config", "dir", *configDir)
	}
	logger.Info("Starting up...", "version", CurrentVersion, "buildDate", BuildDate, "logFile", logs.path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	linkCfg := config.GetLinkConfig()

	// the vehicle discovery and the recorder connection are independent and either may take a while
	var (
		link    vehicle.Link
		target  uint8
		backend storage.Backend
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		link, target, err = openLink(gctx, linkCfg, logger)
		return err
	})
	g.Go(func() error {
		var err error
		backend, err = recorder.New(recorder.Dependencies{
			Recorder: config.GetRecorderConfig(),
			DB:       config.GetDBConfig(),
			Influx:   config.GetInfluxConfig(),
			Logger:   logger,
			DBLogger: logs.zerolog,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		if link != nil {
			link.Close()
		}
		if backend != nil {
			backend.Close()
		}
		return err
	}

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(logs.zerolog))
	if err != nil {
		link.Close()
		backend.Close()
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	// records reach the backend through buffered dispatcher queues
	records := recorder.NewQueued(backend, eventDispatcher)

	cache := telemetry.NewCache()
	link.Subscribe(cache.Callbacks())
	recorded := storage.NewRecordingLink(link, records, logger)

	missionCfg := missionConfig(config.GetMissionConfig())
	controller, err := mission.NewController(recorded, missionCfg, logger)
	if err != nil {
		link.Close()
		backend.Close()
		return fmt.Errorf("failed to create mission controller: %w", err)
	}

	// from here on every record carries the active mode
	logs.setup(logging.ModeContext(controller.ModeName))
	logger = logs.slog.Logger()
	controller.OnTransition(recorder.TransitionObserver(records, logger))

	flight := &core.Flight{
		StartTime:      sessionStart.UTC(),
		LinkType:       linkCfg.Type,
		Endpoint:       linkCfg.Endpoint,
		VehicleSystem:  target,
		ConsoleVersion: CurrentVersion,
		Params:         flightParams(missionCfg),
	}
	if err := backend.StartFlight(flight); err != nil {
		logger.Error("Failed to start flight record", "error", err)
	} else {
		logger.Info("Flight record started", "flightId", flight.ID)
	}

	monitorService := monitor.NewService(monitor.Dependencies{
		Telemetry: cache,
		Mode:      controller,
		Out:       os.Stdout,
		Recorder:  records,
		Logger:    logger,
		Hz:        config.GetMonitorConfig().Hz,
	})

	sess := &session{
		logger:     logger,
		controller: controller,
		monitor:    monitorService,
		backend:    backend,
		records:    records,
		link:       link,
		flight:     flight,
		upload:     config.GetRecorderConfig().Upload,
	}

	keyboard, err := terminal.Open(os.Stdin)
	if err != nil {
		logger.Warn("Raw terminal unavailable, reading keys line by line", "error", err)
		keyboard = terminal.NewReader(os.Stdin)
	}
	sess.keyboard = keyboard

	ui := console.New(console.Dependencies{
		Dispatcher: eventDispatcher,
		Controller: controller,
		Input:      keyboard,
		Out:        os.Stdout,
		Logger:     logger,
	})

	if err := monitorService.Start(ctx); err != nil {
		logger.Warn("Failed to start status monitor", "error", err)
	}

	runErr := ui.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		logger.Info("Interrupted")
		runErr = nil
	}

	sess.shutdown()
	return runErr
}

// session holds what the exit sequence tears down.
type session struct {
	logger     *slog.Logger
	controller *mission.Controller
	monitor    *monitor.Service
	backend    storage.Backend
	records    *recorder.Queued
	link       vehicle.Link
	keyboard   *terminal.Keyboard
	flight     *core.Flight
	upload     config.UploadConfig
}

// shutdown stops the active task, brings the vehicle down and releases every resource. It
// runs on a fresh context because the session context is usually already cancelled.
func (s *session) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down...")

	// a grounded vehicle may still be armed after an aborted takeoff
	s.logger.Info("Landing and disarming before exit", "inAir", s.link.InAir())
	if err := s.controller.Shutdown(ctx); err != nil {
		s.logger.Error("Landing on exit failed", "error", err)
	}

	s.monitor.Stop()

	if s.records != nil {
		if err := s.records.Flush(ctx); err != nil {
			s.logger.Warn("Flight records still queued at exit", "error", err)
		}
	}
	if err := s.backend.EndFlight(); err != nil {
		s.logger.Error("Failed to end flight record", "error", err)
	}
	if exp, ok := s.backend.(storage.Exporter); ok && exp.ExportedFilePath() != "" {
		path := exp.ExportedFilePath()
		s.logger.Info("Flight exported", "path", path)
		fmt.Printf("\r\nFlight saved to %s\r\n", path)
		s.uploadFlight(ctx, path)
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("Failed to close flight recorder", "error", err)
	}

	if s.keyboard != nil {
		s.keyboard.Close()
	}
	if err := s.link.Close(); err != nil {
		s.logger.Warn("Failed to close vehicle link", "error", err)
	}
}

// uploadFlight sends the exported file to the archive when one is configured. The local file
// is kept either way.
func (s *session) uploadFlight(ctx context.Context, path string) {
	if s.upload.URL == "" {
		return
	}
	client := api.New(s.upload.URL, s.upload.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		s.logger.Warn("Flight archive unreachable, skipping upload", "url", s.upload.URL, "error", err)
		return
	}
	meta := api.FlightMeta{
		FlightID:  s.flight.ID,
		LinkType:  s.flight.LinkType,
		Endpoint:  s.flight.Endpoint,
		DurationS: time.Since(s.flight.StartTime).Seconds(),
		Tag:       s.upload.Tag,
	}
	if err := client.Upload(ctx, path, meta); err != nil {
		s.logger.Error("Failed to upload flight", "path", path, "error", err)
		return
	}
	s.logger.Info("Flight uploaded", "url", s.upload.URL, "flightId", meta.FlightID)
}

func missionConfig(mc config.MissionConfig) mission.Config {
	cfg := mission.DefaultConfig()
	cfg.Params.AltitudeM = mc.AltitudeM
	cfg.Params.RadiusM = mc.RadiusM
	cfg.Params.EdgeM = mc.EdgeM
	cfg.Params.AmplitudeM = mc.AmplitudeM
	cfg.Params.WavelengthM = mc.WavelengthM
	cfg.Params.CircleSpeed = mc.CircleSpeed
	cfg.Params.SineSpeed = mc.SineSpeed
	cfg.ManualStepM = mc.ManualStepM
	cfg.FixTimeout = mc.FixTimeout
	cfg.TakeoffTimeout = mc.TakeoffTimeout
	cfg.LandTimeout = mc.LandTimeout
	return cfg
}

func flightParams(cfg mission.Config) map[string]any {
	return map[string]any{
		"altitudeM":   cfg.Params.AltitudeM,
		"radiusM":     cfg.Params.RadiusM,
		"edgeM":       cfg.Params.EdgeM,
		"amplitudeM":  cfg.Params.AmplitudeM,
		"wavelengthM": cfg.Params.WavelengthM,
		"circleSpeed": cfg.Params.CircleSpeed,
		"sineSpeed":   cfg.Params.SineSpeed,
		"manualStepM": cfg.ManualStepM,
	}
}
