package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Waypoint latitude/longitude are always derived from a fixed origin using a local flat-earth
// approximation: one degree of latitude is MetersPerDegree metres everywhere, one degree of
// longitude shrinks with cos(latitude of the origin).

// MetersPerDegree is the flat-earth scale of one degree of latitude.
const MetersPerDegree = 111320.0

// ErrInvalidOrigin is returned for origins outside the valid latitude/longitude range.
var ErrInvalidOrigin = errors.New("invalid origin coordinates")

// Origin is the fixed reference a trajectory is computed from.
type Origin struct {
	LatitudeDeg  float64
	LongitudeDeg float64

	metersToLat float64
	metersToLon float64
}

// NewOrigin fixes the flat-earth scale factors at the given position.
func NewOrigin(latDeg, lonDeg float64) Origin {
	return Origin{
		LatitudeDeg:  latDeg,
		LongitudeDeg: lonDeg,
		metersToLat:  1.0 / MetersPerDegree,
		metersToLon:  MetersToLongitude(1, latDeg),
	}
}

// Validate checks the origin is a plausible WGS84 position.
func (o Origin) Validate() error {
	if math.IsNaN(o.LatitudeDeg) || math.IsNaN(o.LongitudeDeg) ||
		math.Abs(o.LatitudeDeg) >= 90 || math.Abs(o.LongitudeDeg) > 180 {
		return ErrInvalidOrigin
	}
	return nil
}

// Offset converts a north/east displacement in metres from the origin into degrees.
func (o Origin) Offset(northM, eastM float64) (latDeg, lonDeg float64) {
	return o.LatitudeDeg + northM*o.metersToLat, o.LongitudeDeg + eastM*o.metersToLon
}

// Local converts a position back into north/east metres relative to the origin.
func (o Origin) Local(latDeg, lonDeg float64) (northM, eastM float64) {
	northM = (latDeg - o.LatitudeDeg) / o.metersToLat
	eastM = (lonDeg - o.LongitudeDeg) / o.metersToLon
	return northM, eastM
}

// Distance is the flat-earth distance in metres between the origin and a position.
func (o Origin) Distance(latDeg, lonDeg float64) float64 {
	n, e := o.Local(latDeg, lonDeg)
	return math.Hypot(n, e)
}

// MetersToLatitude converts a north-south distance into degrees of latitude.
func MetersToLatitude(m float64) float64 {
	return m / MetersPerDegree
}

// MetersToLongitude converts an east-west distance into degrees of longitude at the given latitude.
func MetersToLongitude(m, atLatDeg float64) float64 {
	return m / (MetersPerDegree * math.Cos(atLatDeg*math.Pi/180.0))
}

// Point3857 projects a WGS84 position to a web-mercator point, the form positions are
// stored in by the flight recorder.
func Point3857(latDeg, lonDeg float64) geom.Point {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(lonDeg, latDeg, 0)
	return geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
		},
	)
}
