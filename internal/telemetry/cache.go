// Package telemetry keeps the latest vehicle samples pushed by the link.
package telemetry

import (
	"sync"
	"time"

	"github.com/skyops/dronectl/internal/vehicle"
)

// Cache holds the most recent sample of each telemetry group. Writers are the link's delivery
// goroutine, readers are the monitor and mission tasks. Each group has its own lock so a slow
// reader of one group never delays delivery of another.
type Cache struct {
	posMu      sync.Mutex
	position   vehicle.Position
	positionAt time.Time

	velMu      sync.Mutex
	velocity   vehicle.VelocityNED
	velocityAt time.Time

	batMu     sync.Mutex
	battery   vehicle.Battery
	batteryAt time.Time

	landedMu sync.Mutex
	landed   vehicle.LandedState
	landedAt time.Time

	now func() time.Time
}

// Snapshot is a copy of every group. Groups are read one after another and are not
// consistent with each other.
type Snapshot struct {
	Position    vehicle.Position
	Velocity    vehicle.VelocityNED
	Battery     vehicle.Battery
	LandedState vehicle.LandedState

	PositionAt time.Time
	VelocityAt time.Time
	BatteryAt  time.Time
	LandedAt   time.Time
}

func NewCache() *Cache {
	return &Cache{now: time.Now}
}

func (c *Cache) SetPosition(p vehicle.Position) {
	c.posMu.Lock()
	defer c.posMu.Unlock()
	c.position = p
	c.positionAt = c.now()
}

func (c *Cache) SetVelocity(v vehicle.VelocityNED) {
	c.velMu.Lock()
	defer c.velMu.Unlock()
	c.velocity = v
	c.velocityAt = c.now()
}

func (c *Cache) SetBattery(b vehicle.Battery) {
	c.batMu.Lock()
	defer c.batMu.Unlock()
	c.battery = b
	c.batteryAt = c.now()
}

func (c *Cache) SetLandedState(s vehicle.LandedState) {
	c.landedMu.Lock()
	defer c.landedMu.Unlock()
	c.landed = s
	c.landedAt = c.now()
}

func (c *Cache) Position() vehicle.Position {
	c.posMu.Lock()
	defer c.posMu.Unlock()
	return c.position
}

func (c *Cache) Velocity() vehicle.VelocityNED {
	c.velMu.Lock()
	defer c.velMu.Unlock()
	return c.velocity
}

func (c *Cache) Battery() vehicle.Battery {
	c.batMu.Lock()
	defer c.batMu.Unlock()
	return c.battery
}

func (c *Cache) LandedState() vehicle.LandedState {
	c.landedMu.Lock()
	defer c.landedMu.Unlock()
	return c.landed
}

// Snapshot copies all groups, taking each lock briefly in turn.
func (c *Cache) Snapshot() Snapshot {
	var s Snapshot

	c.posMu.Lock()
	s.Position, s.PositionAt = c.position, c.positionAt
	c.posMu.Unlock()

	c.velMu.Lock()
	s.Velocity, s.VelocityAt = c.velocity, c.velocityAt
	c.velMu.Unlock()

	c.batMu.Lock()
	s.Battery, s.BatteryAt = c.battery, c.batteryAt
	c.batMu.Unlock()

	c.landedMu.Lock()
	s.LandedState, s.LandedAt = c.landed, c.landedAt
	c.landedMu.Unlock()

	return s
}

// Callbacks returns link callbacks that feed this cache.
func (c *Cache) Callbacks() vehicle.Callbacks {
	return vehicle.Callbacks{
		Position:    c.SetPosition,
		Velocity:    c.SetVelocity,
		Battery:     c.SetBattery,
		LandedState: c.SetLandedState,
	}
}
