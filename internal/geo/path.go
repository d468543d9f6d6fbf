package geo

import (
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/skyops/dronectl/internal/vehicle"
)

// PathLineString builds a longitude/latitude/altitude line through the waypoints.
// Fewer than two waypoints yield an empty line string.
func PathLineString(wps []vehicle.Waypoint) geom.LineString {
	if len(wps) < 2 {
		return geom.LineString{}
	}

	flatCoords := make([]float64, 0, len(wps)*3)
	for _, wp := range wps {
		flatCoords = append(flatCoords, wp.LongitudeDeg, wp.LatitudeDeg, wp.AltitudeM)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXYZ)
	return geom.NewLineString(seq)
}
