package pattern

import (
	"math"
	"time"

	"github.com/skyops/dronectl/internal/geo"
	"github.com/skyops/dronectl/internal/vehicle"
)

// CircleGenerator flies a circle of constant radius around the origin.
type CircleGenerator struct {
	origin  geo.Origin
	radiusM float64
	altM    float64
	speed   float64
	angle   float64
}

func NewCircle(origin geo.Origin, radiusM, altM, speed float64) *CircleGenerator {
	return &CircleGenerator{origin: origin, radiusM: radiusM, altM: altM, speed: speed}
}

func (c *CircleGenerator) Kind() Kind { return Circle }

func (c *CircleGenerator) Next() (vehicle.Waypoint, time.Duration) {
	wp := waypoint(c.origin, c.radiusM*math.Cos(c.angle), c.radiusM*math.Sin(c.angle), c.altM)

	step := c.speed / math.Max(c.radiusM, Epsilon) * TickPeriod.Seconds()
	c.angle = math.Mod(c.angle+step, 2*math.Pi)
	if c.angle < 0 {
		c.angle += 2 * math.Pi
	}
	return wp, TickPeriod
}
