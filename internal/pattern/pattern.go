// Package pattern generates the waypoint sequences of the autonomous flight patterns.
//
// Generators are pure state machines over a fixed origin: every call to Next advances the
// pattern by one step and returns the waypoint to command plus how long to hold it before the
// next call. They never talk to the vehicle.
package pattern

import (
	"fmt"
	"strings"
	"time"

	"github.com/skyops/dronectl/internal/geo"
	"github.com/skyops/dronectl/internal/vehicle"
)

// Kind identifies a flight pattern.
type Kind int

const (
	Circle Kind = iota + 1
	Square
	Triangle
	Sine
)

func (k Kind) String() string {
	switch k {
	case Circle:
		return "Circle"
	case Square:
		return "Square"
	case Triangle:
		return "Triangle"
	case Sine:
		return "Sine"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a pattern name (any case) to its Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown pattern %q", s)
}

// Kinds lists every pattern in menu order.
func Kinds() []Kind {
	return []Kind{Circle, Square, Triangle, Sine}
}

const (
	// Epsilon guards every denominator against zero-sized patterns.
	Epsilon = 1e-3

	// TickPeriod is the re-issue period of the continuous patterns.
	TickPeriod = time.Second

	// DwellPeriod is how long a polygon pattern holds each corner.
	DwellPeriod = 5 * time.Second
)

// Generator produces successive waypoints of a pattern.
type Generator interface {
	Kind() Kind
	Next() (vehicle.Waypoint, time.Duration)
}

// Params are the shape parameters of all patterns, in metres and metres per second.
type Params struct {
	AltitudeM   float64 `json:"altitudeM"`
	RadiusM     float64 `json:"radiusM"`
	EdgeM       float64 `json:"edgeM"`
	AmplitudeM  float64 `json:"amplitudeM"`
	WavelengthM float64 `json:"wavelengthM"`
	CircleSpeed float64 `json:"circleSpeed"`
	SineSpeed   float64 `json:"sineSpeed"`
}

// DefaultParams returns the stock pattern shapes.
func DefaultParams() Params {
	return Params{
		AltitudeM:   10,
		RadiusM:     10,
		EdgeM:       10,
		AmplitudeM:  5,
		WavelengthM: 10,
		CircleSpeed: 1,
		SineSpeed:   1,
	}
}

// New builds a fresh generator of the given kind anchored at origin.
func New(kind Kind, origin geo.Origin, p Params) (Generator, error) {
	switch kind {
	case Circle:
		return NewCircle(origin, p.RadiusM, p.AltitudeM, p.CircleSpeed), nil
	case Square:
		return NewSquare(origin, p.EdgeM, p.AltitudeM), nil
	case Triangle:
		return NewTriangle(origin, p.EdgeM, p.AltitudeM), nil
	case Sine:
		return NewSine(origin, p.AmplitudeM, p.WavelengthM, p.AltitudeM, p.SineSpeed), nil
	default:
		return nil, fmt.Errorf("unknown pattern kind %d", int(kind))
	}
}

func waypoint(origin geo.Origin, northM, eastM, altM float64) vehicle.Waypoint {
	lat, lon := origin.Offset(northM, eastM)
	return vehicle.Waypoint{
		LatitudeDeg:  lat,
		LongitudeDeg: lon,
		AltitudeM:    altM,
	}
}
