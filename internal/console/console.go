// Package console is the operator's foreground loop: it polls the keyboard, maps keys to
// commands and pushes them through the dispatcher one at a time.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/skyops/dronectl/internal/dispatcher"
	"github.com/skyops/dronectl/internal/manual"
	"github.com/skyops/dronectl/internal/pattern"
)

// PollInterval is how often the keyboard is checked for a new command.
const PollInterval = 50 * time.Millisecond

// Command names registered with the dispatcher.
const (
	CmdTakeoff  = "takeoff"
	CmdLand     = "land"
	CmdCircle   = "circle"
	CmdSquare   = "square"
	CmdTriangle = "triangle"
	CmdSine     = "sine"
	CmdManual   = "manual"
	CmdStop     = "stop"
	CmdQuit     = "quit"
)

// ctrlC is what raw mode delivers for Ctrl-C.
const ctrlC = 0x03

// Controller is the part of the mission controller the console drives.
type Controller interface {
	ArmTakeoff(ctx context.Context) error
	Land(ctx context.Context) error
	StartMission(kind pattern.Kind) error
	StartManual(in manual.Input) (<-chan struct{}, error)
	Stop()
}

// Binding maps a key to a command.
type Binding struct {
	Key         byte
	Command     string
	Description string
}

// DefaultBindings is the stock key layout.
func DefaultBindings() []Binding {
	return []Binding{
		{'t', CmdTakeoff, "Arm and takeoff"},
		{'l', CmdLand, "Land and disarm"},
		{'c', CmdCircle, "Circle mission"},
		{'s', CmdSquare, "Square mission"},
		{'1', CmdTriangle, "Triangle mission"},
		{'2', CmdSine, "Sine wave mission"},
		{'m', CmdManual, "Manual control (w/a/s/d move, r/f up/down, q exit)"},
		{'x', CmdStop, "Stop current mission"},
		{'q', CmdQuit, "Quit"},
	}
}

// Dependencies holds all dependencies for the console
type Dependencies struct {
	Dispatcher *dispatcher.Dispatcher
	Controller Controller
	Input      manual.Input
	Out        io.Writer
	Logger     *slog.Logger
	Bindings   []Binding
}

// Console runs the operator loop.
type Console struct {
	deps     Dependencies
	bindings map[byte]string

	// ctx is the context of the running loop, used by blocking sequences.
	ctx context.Context
}

// New creates a console and registers its commands with the dispatcher.
func New(deps Dependencies) *Console {
	if deps.Bindings == nil {
		deps.Bindings = DefaultBindings()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}

	c := &Console{
		deps:     deps,
		bindings: make(map[byte]string, len(deps.Bindings)),
		ctx:      context.Background(),
	}
	for _, b := range deps.Bindings {
		c.bindings[b.Key] = b.Command
	}
	c.register()
	for _, b := range deps.Bindings {
		if !deps.Dispatcher.HasHandler(b.Command) {
			deps.Logger.Warn("key bound to unknown command", "key", string(b.Key), "command", b.Command)
		}
	}
	return c
}

func (c *Console) register() {
	d := c.deps.Dispatcher
	ctrl := c.deps.Controller

	d.Register(CmdTakeoff, func(e dispatcher.Event) (any, error) {
		c.printf("Arming and taking off...")
		if err := ctrl.ArmTakeoff(c.ctx); err != nil {
			return nil, err
		}
		c.printf("Takeoff complete")
		return nil, nil
	}, dispatcher.Blocking(), dispatcher.Logged())

	d.Register(CmdLand, func(e dispatcher.Event) (any, error) {
		c.printf("Landing...")
		if err := ctrl.Land(c.ctx); err != nil {
			return nil, err
		}
		c.printf("Landed and disarmed")
		return nil, nil
	}, dispatcher.Blocking(), dispatcher.Logged())

	// the command name is the pattern name
	startMission := func(e dispatcher.Event) (any, error) {
		kind, err := pattern.ParseKind(e.Command)
		if err != nil {
			return nil, err
		}
		if err := ctrl.StartMission(kind); err != nil {
			return nil, err
		}
		// the task may still abort without a fix, the status line shows the active mode
		c.printf("%s mission requested", kind)
		return kind, nil
	}
	for _, cmd := range []string{CmdCircle, CmdSquare, CmdTriangle, CmdSine} {
		d.Register(cmd, startMission, dispatcher.SpawnsTask(), dispatcher.Logged())
	}

	// manual control owns the keyboard until it ends, so the loop waits for it
	d.Register(CmdManual, func(e dispatcher.Event) (any, error) {
		done, err := ctrl.StartManual(c.deps.Input)
		if err != nil {
			return nil, err
		}
		c.printf("Manual control: w/a/s/d move, r/f up/down, q exit")
		select {
		case <-done:
			c.printf("Manual control ended")
		case <-c.ctx.Done():
		}
		return nil, nil
	}, dispatcher.Blocking(), dispatcher.Logged())

	d.Register(CmdStop, func(e dispatcher.Event) (any, error) {
		ctrl.Stop()
		c.printf("Mission stopped")
		return nil, nil
	}, dispatcher.Logged())

	d.Register(CmdQuit, func(e dispatcher.Event) (any, error) {
		return nil, nil
	}, dispatcher.Logged())
}

// Menu renders the key bindings.
func (c *Console) Menu() string {
	var sb strings.Builder
	sb.WriteString("\r\n=== Drone Control ===\r\n")
	for _, b := range c.deps.Bindings {
		fmt.Fprintf(&sb, "  %c : %s\r\n", b.Key, b.Description)
	}
	return sb.String()
}

// CommandFor maps a key to its command. Letters match in either case and Ctrl-C always quits.
func (c *Console) CommandFor(key byte) (string, bool) {
	if key == ctrlC {
		return CmdQuit, true
	}
	if key >= 'A' && key <= 'Z' {
		key += 'a' - 'A'
	}
	cmd, ok := c.bindings[key]
	return cmd, ok
}

// Run polls the keyboard until the quit key is pressed or ctx is done. It returns nil on quit
// and ctx.Err() on cancellation; the caller owns the shutdown sequence in both cases.
func (c *Console) Run(ctx context.Context) error {
	c.ctx = ctx
	io.WriteString(c.deps.Out, c.Menu())

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		for c.deps.Input.HasInput() {
			cmd, ok := c.CommandFor(c.deps.Input.ReadChar())
			if !ok {
				continue
			}
			if cmd == CmdQuit {
				c.deps.Dispatcher.Dispatch(dispatcher.Event{Command: cmd})
				return nil
			}
			if _, err := c.deps.Dispatcher.Dispatch(dispatcher.Event{Command: cmd}); err != nil {
				c.printf("%s failed: %v", cmd, err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.deps.Out, "\r\n"+format+"\r\n", args...)
}
