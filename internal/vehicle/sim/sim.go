// Package sim is a kinematic stand-in for a real vehicle. It flies straight at a fixed speed
// toward the last goto target and answers commands the way an autopilot in a guided mode would.
package sim

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/skyops/dronectl/internal/geo"
	"github.com/skyops/dronectl/internal/vehicle"
)

// Defaults. The home position is the PX4 SITL default.
const (
	DefaultHomeLatitude     = 47.397742
	DefaultHomeLongitude    = 8.545594
	DefaultTakeoffAltitudeM = 10.0
	DefaultSpeedMS          = 5.0
	DefaultClimbMS          = 2.0
	DefaultTickInterval     = 50 * time.Millisecond
	DefaultBatteryDrain     = 0.02 // percent per second while armed
)

// Config holds the simulated vehicle's parameters.
type Config struct {
	HomeLatitude     float64
	HomeLongitude    float64
	TakeoffAltitudeM float64
	SpeedMS          float64
	ClimbMS          float64
	BatteryDrain     float64
	// TickInterval is the integration step. Negative disables the internal clock; the vehicle
	// then only moves on Step.
	TickInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.HomeLatitude == 0 && c.HomeLongitude == 0 {
		c.HomeLatitude, c.HomeLongitude = DefaultHomeLatitude, DefaultHomeLongitude
	}
	if c.TakeoffAltitudeM <= 0 {
		c.TakeoffAltitudeM = DefaultTakeoffAltitudeM
	}
	if c.SpeedMS <= 0 {
		c.SpeedMS = DefaultSpeedMS
	}
	if c.ClimbMS <= 0 {
		c.ClimbMS = DefaultClimbMS
	}
	if c.BatteryDrain <= 0 {
		c.BatteryDrain = DefaultBatteryDrain
	}
	if c.TickInterval == 0 {
		c.TickInterval = DefaultTickInterval
	}
}

// Link is a simulated vehicle.Link.
type Link struct {
	cfg    Config
	origin geo.Origin
	logger *slog.Logger

	mu      sync.Mutex
	armed   bool
	landed  vehicle.LandedState
	northM  float64
	eastM   float64
	altM    float64
	vel     vehicle.VelocityNED
	battery float64
	target  *target
	subs    []vehicle.Callbacks
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type target struct {
	northM, eastM, altM float64
}

// New creates a vehicle on the ground at home, disarmed, with a full battery.
func New(cfg Config, logger *slog.Logger) *Link {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	l := &Link{
		cfg:     cfg,
		origin:  geo.NewOrigin(cfg.HomeLatitude, cfg.HomeLongitude),
		logger:  logger,
		landed:  vehicle.LandedStateOnGround,
		battery: 100,
		done:    make(chan struct{}),
	}
	if cfg.TickInterval > 0 {
		l.wg.Add(1)
		go l.run()
	}
	return l
}

func (l *Link) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			l.Step(now.Sub(last))
			last = now
		}
	}
}

// Close stops the internal clock.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.done)
	})
	l.wg.Wait()
	return nil
}

// Step advances the simulation by dt and publishes the new state.
func (l *Link) Step(dt time.Duration) {
	sec := dt.Seconds()

	l.mu.Lock()
	prevLanded := l.landed
	l.vel = vehicle.VelocityNED{}

	switch l.landed {
	case vehicle.LandedStateTakingOff:
		l.climbTo(l.cfg.TakeoffAltitudeM, sec)
		if l.altM >= l.cfg.TakeoffAltitudeM {
			l.landed = vehicle.LandedStateInAir
		}
	case vehicle.LandedStateInAir:
		if t := l.target; t != nil {
			l.moveTo(t, sec)
		}
	case vehicle.LandedStateLanding:
		l.climbTo(0, sec)
		if l.altM <= 0 {
			l.landed = vehicle.LandedStateOnGround
			l.target = nil
		}
	}

	if l.armed {
		l.battery = math.Max(0, l.battery-l.cfg.BatteryDrain*sec)
	}

	pos := l.positionLocked()
	vel := l.vel
	bat := vehicle.Battery{RemainingPercent: l.battery}
	landed := l.landed
	subs := append([]vehicle.Callbacks(nil), l.subs...)
	l.mu.Unlock()

	if landed != prevLanded {
		l.logger.Debug("sim landed state", "from", prevLanded, "to", landed)
	}
	for _, s := range subs {
		if s.Position != nil {
			s.Position(pos)
		}
		if s.Velocity != nil {
			s.Velocity(vel)
		}
		if s.Battery != nil {
			s.Battery(bat)
		}
		if s.LandedState != nil {
			s.LandedState(landed)
		}
	}
}

func (l *Link) climbTo(alt, sec float64) {
	step := l.cfg.ClimbMS * sec
	d := alt - l.altM
	if math.Abs(d) <= step {
		l.altM = alt
		return
	}
	dir := math.Copysign(1, d)
	l.altM += dir * step
	l.vel.DownMS = -dir * l.cfg.ClimbMS
}

func (l *Link) moveTo(t *target, sec float64) {
	dn, de := t.northM-l.northM, t.eastM-l.eastM
	dist := math.Hypot(dn, de)
	step := l.cfg.SpeedMS * sec
	if dist <= step {
		l.northM, l.eastM = t.northM, t.eastM
	} else {
		l.northM += dn / dist * step
		l.eastM += de / dist * step
		l.vel.NorthMS = dn / dist * l.cfg.SpeedMS
		l.vel.EastMS = de / dist * l.cfg.SpeedMS
	}
	l.climbTo(t.altM, sec)
}

func (l *Link) positionLocked() vehicle.Position {
	lat, lon := l.origin.Offset(l.northM, l.eastM)
	return vehicle.Position{LatitudeDeg: lat, LongitudeDeg: lon, RelativeAltitudeM: l.altM}
}

func (l *Link) reject(command string) error {
	return &vehicle.CommandError{Command: command, Result: "DENIED"}
}

// command runs fn under the state lock unless ctx is done or the link is closed.
func (l *Link) command(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return vehicle.ErrNotConnected
	}
	return fn()
}

func (l *Link) Arm(ctx context.Context) error {
	return l.command(ctx, func() error {
		if l.battery <= 0 {
			return l.reject("arm")
		}
		l.armed = true
		return nil
	})
}

// Disarm is refused while airborne.
func (l *Link) Disarm(ctx context.Context) error {
	return l.command(ctx, func() error {
		if l.landed != vehicle.LandedStateOnGround {
			return l.reject("disarm")
		}
		l.armed = false
		return nil
	})
}

func (l *Link) Takeoff(ctx context.Context) error {
	return l.command(ctx, func() error {
		if !l.armed {
			return l.reject("takeoff")
		}
		if l.landed == vehicle.LandedStateOnGround {
			l.landed = vehicle.LandedStateTakingOff
		}
		return nil
	})
}

func (l *Link) Land(ctx context.Context) error {
	return l.command(ctx, func() error {
		if l.landed != vehicle.LandedStateOnGround {
			l.landed = vehicle.LandedStateLanding
		}
		l.target = nil
		return nil
	})
}

// GotoLocation is accepted only in the air.
func (l *Link) GotoLocation(ctx context.Context, wp vehicle.Waypoint) error {
	return l.command(ctx, func() error {
		if l.landed != vehicle.LandedStateInAir {
			return l.reject("goto")
		}
		n, e := l.origin.Local(wp.LatitudeDeg, wp.LongitudeDeg)
		l.target = &target{northM: n, eastM: e, altM: wp.AltitudeM}
		return nil
	})
}

func (l *Link) Position() vehicle.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positionLocked()
}

func (l *Link) InAir() bool {
	return l.LandedState().Airborne()
}

func (l *Link) LandedState() vehicle.LandedState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.landed
}

// Armed reports whether the motors are armed.
func (l *Link) Armed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.armed
}

func (l *Link) Subscribe(cb vehicle.Callbacks) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, cb)
}
