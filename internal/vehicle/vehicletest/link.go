// Package vehicletest provides a scriptable in-memory vehicle.Link for tests.
package vehicletest

import (
	"context"
	"sync"
	"time"

	"github.com/skyops/dronectl/internal/vehicle"
)

// Call is one command observed by the Link.
type Call struct {
	Name     string
	Waypoint vehicle.Waypoint
	At       time.Time
}

// Link records every command and answers state queries from settable fields.
type Link struct {
	mu       sync.Mutex
	calls    []Call
	errs     map[string]error
	position vehicle.Position
	inAir    bool
	landed   vehicle.LandedState
	subs     []vehicle.Callbacks
	closed   bool

	// OnCommand, when set, runs after a command is recorded and before it returns.
	OnCommand func(c Call)
}

// New returns a Link on the ground with no position fix.
func New() *Link {
	return &Link{
		errs:   make(map[string]error),
		landed: vehicle.LandedStateOnGround,
	}
}

// FailWith makes every subsequent call of the named command return err.
// Passing nil clears the failure.
func (l *Link) FailWith(command string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.errs, command)
		return
	}
	l.errs[command] = err
}

// SetPosition updates the polled position and pushes it to subscribers.
func (l *Link) SetPosition(p vehicle.Position) {
	l.mu.Lock()
	l.position = p
	subs := append([]vehicle.Callbacks(nil), l.subs...)
	l.mu.Unlock()
	for _, s := range subs {
		if s.Position != nil {
			s.Position(p)
		}
	}
}

// SetInAir sets the in-air flag.
func (l *Link) SetInAir(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inAir = v
}

// SetLandedState sets the landed state and pushes it to subscribers.
func (l *Link) SetLandedState(s vehicle.LandedState) {
	l.mu.Lock()
	l.landed = s
	subs := append([]vehicle.Callbacks(nil), l.subs...)
	l.mu.Unlock()
	for _, sub := range subs {
		if sub.LandedState != nil {
			sub.LandedState(s)
		}
	}
}

// PushVelocity delivers a velocity sample to subscribers.
func (l *Link) PushVelocity(v vehicle.VelocityNED) {
	l.mu.Lock()
	subs := append([]vehicle.Callbacks(nil), l.subs...)
	l.mu.Unlock()
	for _, s := range subs {
		if s.Velocity != nil {
			s.Velocity(v)
		}
	}
}

// PushBattery delivers a battery sample to subscribers.
func (l *Link) PushBattery(b vehicle.Battery) {
	l.mu.Lock()
	subs := append([]vehicle.Callbacks(nil), l.subs...)
	l.mu.Unlock()
	for _, s := range subs {
		if s.Battery != nil {
			s.Battery(b)
		}
	}
}

// Calls returns a copy of the recorded commands in order.
func (l *Link) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Call, len(l.calls))
	copy(out, l.calls)
	return out
}

// CallNames returns the names of the recorded commands in order.
func (l *Link) CallNames() []string {
	calls := l.Calls()
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return names
}

// Gotos returns the waypoints of all recorded goto commands.
func (l *Link) Gotos() []vehicle.Waypoint {
	var out []vehicle.Waypoint
	for _, c := range l.Calls() {
		if c.Name == "goto" {
			out = append(out, c.Waypoint)
		}
	}
	return out
}

func (l *Link) record(name string, wp vehicle.Waypoint) error {
	c := Call{Name: name, Waypoint: wp, At: time.Now()}
	l.mu.Lock()
	l.calls = append(l.calls, c)
	err := l.errs[name]
	hook := l.OnCommand
	l.mu.Unlock()
	if hook != nil {
		hook(c)
	}
	return err
}

func (l *Link) Arm(ctx context.Context) error    { return l.record("arm", vehicle.Waypoint{}) }
func (l *Link) Disarm(ctx context.Context) error { return l.record("disarm", vehicle.Waypoint{}) }
func (l *Link) Takeoff(ctx context.Context) error {
	return l.record("takeoff", vehicle.Waypoint{})
}
func (l *Link) Land(ctx context.Context) error { return l.record("land", vehicle.Waypoint{}) }

func (l *Link) GotoLocation(ctx context.Context, wp vehicle.Waypoint) error {
	return l.record("goto", wp)
}

func (l *Link) Position() vehicle.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

func (l *Link) InAir() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inAir
}

func (l *Link) LandedState() vehicle.LandedState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.landed
}

func (l *Link) Subscribe(cb vehicle.Callbacks) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, cb)
}

func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Closed reports whether Close was called.
func (l *Link) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

var _ vehicle.Link = (*Link)(nil)
