package pattern

import (
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/skyops/dronectl/internal/geo"
	"github.com/skyops/dronectl/internal/vehicle"
)

// Preview returns the first n waypoints of gen as a line string. It advances gen, so callers
// pass a generator built only for the preview.
func Preview(gen Generator, n int) geom.LineString {
	wps := make([]vehicle.Waypoint, 0, n)
	for i := 0; i < n; i++ {
		wp, _ := gen.Next()
		wps = append(wps, wp)
	}
	return geo.PathLineString(wps)
}
