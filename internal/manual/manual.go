// Package manual turns single keystrokes into position setpoint nudges.
package manual

import (
	"context"
	"log/slog"
	"time"

	"github.com/skyops/dronectl/internal/geo"
	"github.com/skyops/dronectl/internal/telemetry"
	"github.com/skyops/dronectl/internal/vehicle"
	"github.com/skyops/dronectl/internal/worker"
)

const (
	// DefaultStepM is how far one keystroke moves the setpoint.
	DefaultStepM = 2.0

	// PollInterval is how often the keyboard is checked.
	PollInterval = 50 * time.Millisecond

	ExitKey = 'q'
)

// Input is a non-blocking character source.
type Input interface {
	HasInput() bool
	ReadChar() byte
}

// Setpoint is the commanded position the keys nudge around.
type Setpoint struct {
	LatitudeDeg  float64
	LongitudeDeg float64
	AltitudeM    float64
}

func (s Setpoint) Waypoint() vehicle.Waypoint {
	return vehicle.Waypoint{LatitudeDeg: s.LatitudeDeg, LongitudeDeg: s.LongitudeDeg, AltitudeM: s.AltitudeM}
}

// Apply moves sp by one key press. moved is false for keys that do not command anything,
// exit is true for the exit key.
//
//	w/s  north/south    a/d  west/east    r/f  up/down    q  exit
func Apply(sp Setpoint, key byte, stepM float64) (next Setpoint, moved, exit bool) {
	next = sp
	switch key {
	case 'w':
		next.LatitudeDeg += geo.MetersToLatitude(stepM)
	case 's':
		next.LatitudeDeg -= geo.MetersToLatitude(stepM)
	case 'd':
		next.LongitudeDeg += geo.MetersToLongitude(stepM, sp.LatitudeDeg)
	case 'a':
		next.LongitudeDeg -= geo.MetersToLongitude(stepM, sp.LatitudeDeg)
	case 'r':
		next.AltitudeM += stepM
	case 'f':
		next.AltitudeM -= stepM
	case ExitKey:
		return sp, false, true
	default:
		return sp, false, false
	}
	return next, true, false
}

// Config tunes the manual controller.
type Config struct {
	StepM      float64
	FixTimeout time.Duration
}

// Controller drives the vehicle from keyboard input.
type Controller struct {
	link   vehicle.Link
	cfg    Config
	logger *slog.Logger
}

func NewController(link vehicle.Link, cfg Config, logger *slog.Logger) *Controller {
	if cfg.StepM <= 0 {
		cfg.StepM = DefaultStepM
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{link: link, cfg: cfg, logger: logger}
}

// Run is the body of a manual task. It returns when the exit key is read, the task is stopped,
// or no position fix arrives. Every movement key issues exactly one goto.
func (c *Controller) Run(t *worker.Task, in Input) error {
	pos, err := telemetry.WaitForPosition(t.Context(), c.link, c.cfg.FixTimeout)
	if err != nil {
		return err
	}
	if err := geo.NewOrigin(pos.LatitudeDeg, pos.LongitudeDeg).Validate(); err != nil {
		return err
	}
	sp := Setpoint{
		LatitudeDeg:  pos.LatitudeDeg,
		LongitudeDeg: pos.LongitudeDeg,
		AltitudeM:    pos.RelativeAltitudeM,
	}
	c.logger.Info("manual control engaged",
		"lat", sp.LatitudeDeg, "lon", sp.LongitudeDeg, "alt", sp.AltitudeM)

	for t.Running() {
		if !in.HasInput() {
			t.Sleep(PollInterval)
			continue
		}

		next, moved, exit := Apply(sp, in.ReadChar(), c.cfg.StepM)
		if exit {
			c.logger.Info("manual control released")
			return nil
		}
		if !moved {
			continue
		}
		sp = next
		if err := c.link.GotoLocation(context.WithoutCancel(t.Context()), sp.Waypoint()); err != nil {
			c.logger.Warn("manual goto failed", "error", err)
		}
	}
	return nil
}
