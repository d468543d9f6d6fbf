package pattern

import (
	"math"
	"time"

	"github.com/skyops/dronectl/internal/geo"
	"github.com/skyops/dronectl/internal/vehicle"
)

// offset is a north/east displacement from the origin in metres.
type offset struct {
	north, east float64
}

// PolygonGenerator visits a fixed list of corners cyclically, dwelling on each.
type PolygonGenerator struct {
	kind    Kind
	origin  geo.Origin
	altM    float64
	corners []offset
	next    int
}

// NewSquare visits (e,0), (e,e), (0,e), (0,0).
func NewSquare(origin geo.Origin, edgeM, altM float64) *PolygonGenerator {
	return &PolygonGenerator{
		kind:   Square,
		origin: origin,
		altM:   altM,
		corners: []offset{
			{edgeM, 0},
			{edgeM, edgeM},
			{0, edgeM},
			{0, 0},
		},
	}
}

// NewTriangle visits (0,0), (e√3/2, e/2), (0,e) and closes back on (0,0).
func NewTriangle(origin geo.Origin, edgeM, altM float64) *PolygonGenerator {
	return &PolygonGenerator{
		kind:   Triangle,
		origin: origin,
		altM:   altM,
		corners: []offset{
			{0, 0},
			{edgeM * math.Sqrt(3) / 2, edgeM / 2},
			{0, edgeM},
			{0, 0},
		},
	}
}

func (p *PolygonGenerator) Kind() Kind { return p.kind }

func (p *PolygonGenerator) Next() (vehicle.Waypoint, time.Duration) {
	c := p.corners[p.next]
	p.next = (p.next + 1) % len(p.corners)
	return waypoint(p.origin, c.north, c.east, p.altM), DwellPeriod
}
