// Package vehicle defines the flight-interface contract the console drives and the
// telemetry types it exchanges with it.
package vehicle

import (
	"context"
	"fmt"
	"math"
)

// Position is the global position of the vehicle.
type Position struct {
	LatitudeDeg       float64 `json:"latitudeDeg"`
	LongitudeDeg      float64 `json:"longitudeDeg"`
	RelativeAltitudeM float64 `json:"relativeAltitudeM"`
}

// VelocityNED is the vehicle velocity in the local north-east-down frame.
type VelocityNED struct {
	NorthMS float64 `json:"northMS"`
	EastMS  float64 `json:"eastMS"`
	DownMS  float64 `json:"downMS"`
}

// Speed returns the Euclidean norm of the velocity vector.
func (v VelocityNED) Speed() float64 {
	return math.Sqrt(v.NorthMS*v.NorthMS + v.EastMS*v.EastMS + v.DownMS*v.DownMS)
}

// Battery holds the remaining charge reported by the vehicle.
type Battery struct {
	RemainingPercent float64 `json:"remainingPercent"`
}

// LandedState is the coarse flight phase reported by the autopilot.
type LandedState int

const (
	LandedStateUnknown LandedState = iota
	LandedStateOnGround
	LandedStateTakingOff
	LandedStateInAir
	LandedStateLanding
)

func (s LandedState) String() string {
	switch s {
	case LandedStateOnGround:
		return "OnGround"
	case LandedStateTakingOff:
		return "TakingOff"
	case LandedStateInAir:
		return "InAir"
	case LandedStateLanding:
		return "Landing"
	case LandedStateUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("LandedState(%d)", int(s))
	}
}

// Airborne reports whether the state counts as "in air" for takeoff confirmation.
func (s LandedState) Airborne() bool {
	return s == LandedStateTakingOff || s == LandedStateInAir || s == LandedStateLanding
}

// Waypoint is the unit of command sent to the vehicle.
type Waypoint struct {
	LatitudeDeg  float64 `json:"latitudeDeg"`
	LongitudeDeg float64 `json:"longitudeDeg"`
	AltitudeM    float64 `json:"altitudeM"`
	YawDeg       float64 `json:"yawDeg"`
}

// Callbacks receive pushed telemetry. They are invoked on a goroutine owned by the
// link and must not block. Nil callbacks are skipped.
type Callbacks struct {
	Position    func(Position)
	Velocity    func(VelocityNED)
	Battery     func(Battery)
	LandedState func(LandedState)
}

// Link is the command and state surface of a connected vehicle.
type Link interface {
	Arm(ctx context.Context) error
	Disarm(ctx context.Context) error
	Takeoff(ctx context.Context) error
	Land(ctx context.Context) error
	GotoLocation(ctx context.Context, wp Waypoint) error

	Position() Position
	InAir() bool
	LandedState() LandedState

	// Subscribe registers push callbacks. Each call adds a subscriber.
	Subscribe(cb Callbacks)

	Close() error
}
