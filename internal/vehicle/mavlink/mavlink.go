// Package mavlink implements vehicle.Link over MAVLink v2 with gomavlib. One receive goroutine
// decodes telemetry into the polled state and the subscribers, and routes COMMAND_ACKs to the
// command waiting for them.
package mavlink

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/skyops/dronectl/internal/vehicle"
)

const (
	DefaultSystemID         = 245
	DefaultCommandTimeout   = 3 * time.Second
	DefaultDiscoveryTimeout = 30 * time.Second
)

// Config holds the link settings.
type Config struct {
	Endpoint         string
	SystemID         int
	CommandTimeout   time.Duration
	DiscoveryTimeout time.Duration
}

// Link is a MAVLink connection to one vehicle, the first autopilot that sends a heartbeat.
type Link struct {
	node   *gomavlib.Node
	cfg    Config
	logger *slog.Logger

	mu           sync.RWMutex
	targetSystem uint8
	targetComp   uint8
	position     vehicle.Position
	landed       vehicle.LandedState
	armed        bool

	subsMu sync.Mutex
	subs   []vehicle.Callbacks

	// cmdMu allows one command in flight, so an ack always belongs to the pending command.
	cmdMu   sync.Mutex
	ackMu   sync.Mutex
	pending chan *common.MessageCommandAck
	pendCmd common.MAV_CMD

	discovered chan struct{}
	discOnce   sync.Once
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// Dial opens the endpoint and waits until a vehicle announces itself or the discovery timeout
// expires.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Link, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SystemID <= 0 || cfg.SystemID > 255 {
		cfg.SystemID = DefaultSystemID
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = DefaultDiscoveryTimeout
	}

	endpoint, err := ParseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:   []gomavlib.EndpointConf{endpoint},
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: byte(cfg.SystemID),
	})
	if err != nil {
		return nil, fmt.Errorf("open mavlink endpoint %s: %w", cfg.Endpoint, err)
	}

	l := newLink(node, cfg, logger)
	l.wg.Add(1)
	go l.receive()

	timer := time.NewTimer(cfg.DiscoveryTimeout)
	defer timer.Stop()

	select {
	case <-l.discovered:
		l.mu.RLock()
		logger.Info("Vehicle discovered", "endpoint", cfg.Endpoint, "system", l.targetSystem)
		l.mu.RUnlock()
		return l, nil
	case <-timer.C:
		l.Close()
		return nil, fmt.Errorf("no vehicle on %s after %s: %w", cfg.Endpoint, cfg.DiscoveryTimeout, vehicle.ErrNotConnected)
	case <-ctx.Done():
		l.Close()
		return nil, ctx.Err()
	}
}

func newLink(node *gomavlib.Node, cfg Config, logger *slog.Logger) *Link {
	return &Link{
		node:       node,
		cfg:        cfg,
		logger:     logger,
		landed:     vehicle.LandedStateUnknown,
		discovered: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Close stops the receive goroutine and closes the endpoint.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.node.Close()
	})
	l.wg.Wait()
	return nil
}

// Target is the system and component ID of the vehicle.
func (l *Link) Target() (system, component uint8) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.targetSystem, l.targetComp
}

func (l *Link) Position() vehicle.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.position
}

func (l *Link) InAir() bool {
	return l.LandedState().Airborne()
}

func (l *Link) LandedState() vehicle.LandedState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.landed
}

// Armed reports the armed flag of the last heartbeat.
func (l *Link) Armed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.armed
}

func (l *Link) Subscribe(cb vehicle.Callbacks) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	l.subs = append(l.subs, cb)
}

func (l *Link) subscribers() []vehicle.Callbacks {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	return append([]vehicle.Callbacks(nil), l.subs...)
}

func (l *Link) Arm(ctx context.Context) error {
	return l.commandLong(ctx, "arm", common.MAV_CMD_COMPONENT_ARM_DISARM, [7]float32{1})
}

func (l *Link) Disarm(ctx context.Context) error {
	return l.commandLong(ctx, "disarm", common.MAV_CMD_COMPONENT_ARM_DISARM, [7]float32{0})
}

// Takeoff climbs to the autopilot's configured takeoff altitude.
func (l *Link) Takeoff(ctx context.Context) error {
	nan := float32(math.NaN())
	return l.commandLong(ctx, "takeoff", common.MAV_CMD_NAV_TAKEOFF,
		[7]float32{-1, 0, 0, nan, nan, nan, nan})
}

// Land lands at the current position.
func (l *Link) Land(ctx context.Context) error {
	nan := float32(math.NaN())
	return l.commandLong(ctx, "land", common.MAV_CMD_NAV_LAND,
		[7]float32{0, 0, 0, nan, nan, nan, nan})
}

// GotoLocation repositions the vehicle with DO_REPOSITION, altitude relative to home.
func (l *Link) GotoLocation(ctx context.Context, wp vehicle.Waypoint) error {
	system, comp := l.Target()
	msg := &common.MessageCommandInt{
		TargetSystem:    system,
		TargetComponent: comp,
		Frame:           common.MAV_FRAME_GLOBAL_RELATIVE_ALT_INT,
		Command:         common.MAV_CMD_DO_REPOSITION,
		Param1:          -1, // default ground speed
		Param2:          float32(common.MAV_DO_REPOSITION_FLAGS_CHANGE_MODE),
		Param4:          float32(wp.YawDeg * math.Pi / 180),
		X:               int32(math.Round(wp.LatitudeDeg * 1e7)),
		Y:               int32(math.Round(wp.LongitudeDeg * 1e7)),
		Z:               float32(wp.AltitudeM),
	}
	return l.send(ctx, "goto", common.MAV_CMD_DO_REPOSITION, msg)
}

func (l *Link) commandLong(ctx context.Context, name string, cmd common.MAV_CMD, p [7]float32) error {
	system, comp := l.Target()
	msg := &common.MessageCommandLong{
		TargetSystem:    system,
		TargetComponent: comp,
		Command:         cmd,
		Param1:          p[0],
		Param2:          p[1],
		Param3:          p[2],
		Param4:          p[3],
		Param5:          p[4],
		Param6:          p[5],
		Param7:          p[6],
	}
	return l.send(ctx, name, cmd, msg)
}

// send writes msg and waits for the COMMAND_ACK of cmd. IN_PROGRESS acks are skipped; the
// command timeout covers the whole exchange.
func (l *Link) send(ctx context.Context, name string, cmd common.MAV_CMD, msg message.Message) error {
	select {
	case <-l.done:
		return fmt.Errorf("%s: %w", name, vehicle.ErrNotConnected)
	default:
	}

	l.cmdMu.Lock()
	defer l.cmdMu.Unlock()

	acks := make(chan *common.MessageCommandAck, 4)
	l.ackMu.Lock()
	l.pending = acks
	l.pendCmd = cmd
	l.ackMu.Unlock()
	defer func() {
		l.ackMu.Lock()
		l.pending = nil
		l.ackMu.Unlock()
	}()

	l.node.WriteMessageAll(msg)

	timer := time.NewTimer(l.cfg.CommandTimeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-acks:
			switch ack.Result {
			case common.MAV_RESULT_ACCEPTED:
				return nil
			case common.MAV_RESULT_IN_PROGRESS:
				continue
			default:
				return &vehicle.CommandError{Command: name, Result: ack.Result.String()}
			}
		case <-timer.C:
			return fmt.Errorf("%s: %w", name, vehicle.ErrTimeout)
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return fmt.Errorf("%s: %w", name, vehicle.ErrNotConnected)
		}
	}
}

func (l *Link) receive() {
	defer l.wg.Done()

	for evt := range l.node.Events() {
		frm, ok := evt.(*gomavlib.EventFrame)
		if !ok {
			continue
		}
		l.handle(frm.SystemID(), frm.ComponentID(), frm.Message())
	}
}

// handle applies one message from (system, component). Messages from systems other than the
// discovered vehicle are ignored.
func (l *Link) handle(system, component uint8, msg message.Message) {
	if hb, ok := msg.(*common.MessageHeartbeat); ok {
		l.heartbeat(system, component, hb)
		return
	}

	l.mu.RLock()
	target := l.targetSystem
	l.mu.RUnlock()
	if target == 0 || system != target {
		return
	}

	switch m := msg.(type) {
	case *common.MessageGlobalPositionInt:
		pos := vehicle.Position{
			LatitudeDeg:       float64(m.Lat) / 1e7,
			LongitudeDeg:      float64(m.Lon) / 1e7,
			RelativeAltitudeM: float64(m.RelativeAlt) / 1000,
		}
		vel := vehicle.VelocityNED{
			NorthMS: float64(m.Vx) / 100,
			EastMS:  float64(m.Vy) / 100,
			DownMS:  float64(m.Vz) / 100,
		}
		l.mu.Lock()
		l.position = pos
		l.mu.Unlock()
		for _, s := range l.subscribers() {
			if s.Position != nil {
				s.Position(pos)
			}
			if s.Velocity != nil {
				s.Velocity(vel)
			}
		}

	case *common.MessageSysStatus:
		if m.BatteryRemaining < 0 {
			return
		}
		b := vehicle.Battery{RemainingPercent: float64(m.BatteryRemaining)}
		for _, s := range l.subscribers() {
			if s.Battery != nil {
				s.Battery(b)
			}
		}

	case *common.MessageExtendedSysState:
		state := landedState(m.LandedState)
		l.mu.Lock()
		l.landed = state
		l.mu.Unlock()
		for _, s := range l.subscribers() {
			if s.LandedState != nil {
				s.LandedState(state)
			}
		}

	case *common.MessageCommandAck:
		l.ackMu.Lock()
		if l.pending != nil && m.Command == l.pendCmd {
			select {
			case l.pending <- m:
			default:
			}
		}
		l.ackMu.Unlock()
	}
}

func (l *Link) heartbeat(system, component uint8, hb *common.MessageHeartbeat) {
	if hb.Type == common.MAV_TYPE_GCS {
		return
	}

	l.mu.Lock()
	if l.targetSystem == 0 {
		l.targetSystem = system
		l.targetComp = component
	}
	if system == l.targetSystem {
		l.armed = hb.BaseMode&common.MAV_MODE_FLAG_SAFETY_ARMED != 0
	}
	l.mu.Unlock()

	l.discOnce.Do(func() { close(l.discovered) })
}

func landedState(s common.MAV_LANDED_STATE) vehicle.LandedState {
	switch s {
	case common.MAV_LANDED_STATE_ON_GROUND:
		return vehicle.LandedStateOnGround
	case common.MAV_LANDED_STATE_TAKEOFF:
		return vehicle.LandedStateTakingOff
	case common.MAV_LANDED_STATE_IN_AIR:
		return vehicle.LandedStateInAir
	case common.MAV_LANDED_STATE_LANDING:
		return vehicle.LandedStateLanding
	default:
		return vehicle.LandedStateUnknown
	}
}
