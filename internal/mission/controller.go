// Package mission owns the control-mode state machine of the vehicle.
//
// At most one background task (a flight pattern or manual control) issues commands at any time.
// Every mode change stops and joins the previous task before anything new is started. Arm+takeoff
// and land+disarm run synchronously on the caller's goroutine.
package mission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/skyops/dronectl/internal/geo"
	"github.com/skyops/dronectl/internal/manual"
	"github.com/skyops/dronectl/internal/pattern"
	"github.com/skyops/dronectl/internal/telemetry"
	"github.com/skyops/dronectl/internal/vehicle"
	"github.com/skyops/dronectl/internal/worker"
)

// previewPoints is how many waypoints of a new pattern are logged as WKT.
const previewPoints = 8

// Config holds the timing and shape parameters of every sequence.
type Config struct {
	Params      pattern.Params
	ManualStepM float64

	FixTimeout     time.Duration
	TakeoffTimeout time.Duration
	LandTimeout    time.Duration

	// PollInterval is the period of the in-air and landed-state polls.
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Params:         pattern.DefaultParams(),
		ManualStepM:    manual.DefaultStepM,
		FixTimeout:     10 * time.Second,
		TakeoffTimeout: 10 * time.Second,
		LandTimeout:    60 * time.Second,
		PollInterval:   200 * time.Millisecond,
	}
}

// Controller is the mode state machine. All exported methods are safe to call from any
// goroutine; mode changes are serialized.
type Controller struct {
	link   vehicle.Link
	cfg    Config
	logger *slog.Logger
	manual *manual.Controller

	// opMu serializes mode-changing operations.
	opMu sync.Mutex

	modeMu sync.RWMutex
	mode   Mode
	task   *worker.Task

	// notifyMu keeps observer callbacks in transition order.
	notifyMu  sync.Mutex
	observers []func(Transition)

	live atomic.Int32

	transitions  metric.Int64Counter
	gotoFailures metric.Int64Counter

	now func() time.Time
}

// NewController creates an idle controller driving link.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewController(link vehicle.Link, cfg Config, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = telemetry.FixPollInterval
	}

	c := &Controller{
		link:   link,
		cfg:    cfg,
		logger: logger,
		manual: manual.NewController(link, manual.Config{StepM: cfg.ManualStepM, FixTimeout: cfg.FixTimeout}, logger),
		mode:   IdleMode(),
		now:    time.Now,
	}

	m := meter()
	var err error

	c.transitions, err = m.Int64Counter(
		"mission.transitions",
		metric.WithDescription("Total control mode transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}

	c.gotoFailures, err = m.Int64Counter(
		"mission.goto.failures",
		metric.WithDescription("Pattern waypoints the vehicle did not accept"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating goto failures counter: %w", err)
	}

	return c, nil
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.modeMu.RLock()
	defer c.modeMu.RUnlock()
	return c.mode
}

// ModeName returns the display name of the current mode.
func (c *Controller) ModeName() string {
	return c.Mode().String()
}

// ActiveTasks returns the number of live background task goroutines.
func (c *Controller) ActiveTasks() int {
	return int(c.live.Load())
}

// OnTransition registers fn to be called after every mode change. fn runs on the goroutine
// that changed the mode and must not call back into the controller.
func (c *Controller) OnTransition(fn func(Transition)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.observers = append(c.observers, fn)
}

// StartMission stops the active task and starts flying the given pattern.
func (c *Controller) StartMission(kind pattern.Kind) error {
	if _, err := pattern.New(kind, geo.NewOrigin(0, 0), c.cfg.Params); err != nil {
		return err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.stopTask()
	c.spawn(MissionMode(kind), "pattern "+kind.String(), func(t *worker.Task) {
		c.runPattern(t, kind)
	})
	return nil
}

// StartManual stops the active task and hands control to the keyboard. The returned channel is
// closed when manual control ends, either on the exit key or because another mode took over.
func (c *Controller) StartManual(in manual.Input) (<-chan struct{}, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.stopTask()
	t := c.spawn(Mode{State: Manual}, "manual", func(t *worker.Task) {
		if err := c.manual.Run(t, in); err != nil && t.Running() {
			c.logger.Error("manual control aborted", "error", err)
		}
		c.selfTerminate(t, "manual control ended")
	})
	return t.Done(), nil
}

// Stop ends the active task, if any, and returns to Idle.
func (c *Controller) Stop() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.stopTask()
	c.setMode(IdleMode(), "stop")
}

// Shutdown stops the active task and lands the vehicle.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.Stop()
	return c.Land(ctx)
}

func (c *Controller) runPattern(t *worker.Task, kind pattern.Kind) {
	pos, err := telemetry.WaitForPosition(t.Context(), c.link, c.cfg.FixTimeout)
	if err != nil {
		if t.Running() {
			c.logger.Error("mission aborted", "pattern", kind.String(), "error", err)
		}
		c.selfTerminate(t, "no position fix")
		return
	}

	origin := geo.NewOrigin(pos.LatitudeDeg, pos.LongitudeDeg)
	if err := origin.Validate(); err != nil {
		c.logger.Error("mission aborted", "pattern", kind.String(),
			"lat", pos.LatitudeDeg, "lon", pos.LongitudeDeg, "error", err)
		c.selfTerminate(t, "invalid origin")
		return
	}
	gen, err := pattern.New(kind, origin, c.cfg.Params)
	if err != nil {
		c.logger.Error("mission aborted", "pattern", kind.String(), "error", err)
		c.selfTerminate(t, err.Error())
		return
	}
	if preview, err := pattern.New(kind, origin, c.cfg.Params); err == nil {
		c.logger.Debug("mission path", "pattern", kind.String(),
			"wkt", pattern.Preview(preview, previewPoints).AsText())
	}
	c.logger.Info("mission started", "pattern", kind.String(),
		"originLat", origin.LatitudeDeg, "originLon", origin.LongitudeDeg)

	attrs := metric.WithAttributes(attribute.String("pattern", kind.String()))
	for t.Running() {
		wp, hold := gen.Next()
		if err := c.link.GotoLocation(t.Context(), wp); err != nil && t.Running() {
			c.gotoFailures.Add(context.Background(), 1, attrs)
			c.logger.Warn("goto failed", "pattern", kind.String(),
				"lat", wp.LatitudeDeg, "lon", wp.LongitudeDeg, "error", err)
		}
		if !t.Sleep(hold) {
			break
		}
	}
	c.logger.Info("mission stopped", "pattern", kind.String())
}

// spawn enters mode and starts fn as the active task. Callers hold opMu and have already
// stopped the previous task.
func (c *Controller) spawn(mode Mode, name string, fn func(t *worker.Task)) *worker.Task {
	c.notifyMu.Lock()
	c.modeMu.Lock()
	tr := c.transitionLocked(mode, "start "+name)

	c.live.Add(1)
	t := worker.Start(name, func(t *worker.Task) {
		defer c.live.Add(-1)
		fn(t)
	})
	c.task = t
	c.modeMu.Unlock()
	c.notifyLocked(tr)
	c.notifyMu.Unlock()
	return t
}

// stopTask stops and joins the active task. Callers hold opMu.
func (c *Controller) stopTask() {
	c.modeMu.RLock()
	t := c.task
	c.modeMu.RUnlock()
	if t == nil {
		return
	}

	t.Stop()
	c.logger.Debug("task stopped", "task", t.Name(), "uptime", t.Uptime())

	c.modeMu.Lock()
	if c.task == t {
		c.task = nil
	}
	c.modeMu.Unlock()
}

// selfTerminate is called by a task that ends on its own. The mode is only reset when the task
// is still the current one and nobody has asked it to stop.
func (c *Controller) selfTerminate(t *worker.Task, reason string) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.modeMu.Lock()
	if c.task != t || !t.Running() {
		c.modeMu.Unlock()
		return
	}
	tr := c.transitionLocked(IdleMode(), reason)
	c.modeMu.Unlock()
	c.notifyLocked(tr)
}

func (c *Controller) setMode(to Mode, reason string) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.modeMu.Lock()
	tr := c.transitionLocked(to, reason)
	c.modeMu.Unlock()
	c.notifyLocked(tr)
}

// transitionLocked changes the mode. Callers hold notifyMu and modeMu.
func (c *Controller) transitionLocked(to Mode, reason string) *Transition {
	if c.mode == to {
		return nil
	}
	tr := &Transition{From: c.mode, To: to, Reason: reason, At: c.now()}
	c.mode = to
	return tr
}

// notifyLocked reports tr to observers. Callers hold notifyMu.
func (c *Controller) notifyLocked(tr *Transition) {
	if tr == nil {
		return
	}
	c.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", tr.From.String()),
		attribute.String("to", tr.To.String()),
	))
	c.logger.Info("mode changed", "from", tr.From.String(), "to", tr.To.String(), "reason", tr.Reason)
	for _, fn := range c.observers {
		fn(*tr)
	}
}
