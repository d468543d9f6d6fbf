package pattern

import (
	"math"
	"time"

	"github.com/skyops/dronectl/internal/geo"
	"github.com/skyops/dronectl/internal/vehicle"
)

// SineGenerator advances east at constant speed while oscillating north-south.
// The east offset grows without bound.
type SineGenerator struct {
	origin      geo.Origin
	amplitudeM  float64
	wavelengthM float64
	altM        float64
	speed       float64
	x           float64
}

func NewSine(origin geo.Origin, amplitudeM, wavelengthM, altM, speed float64) *SineGenerator {
	return &SineGenerator{
		origin:      origin,
		amplitudeM:  amplitudeM,
		wavelengthM: wavelengthM,
		altM:        altM,
		speed:       speed,
	}
}

func (s *SineGenerator) Kind() Kind { return Sine }

func (s *SineGenerator) Next() (vehicle.Waypoint, time.Duration) {
	north := s.amplitudeM * math.Sin(2*math.Pi*s.x/math.Max(s.wavelengthM, Epsilon))
	wp := waypoint(s.origin, north, s.x, s.altM)
	s.x += s.speed * TickPeriod.Seconds()
	return wp, TickPeriod
}
