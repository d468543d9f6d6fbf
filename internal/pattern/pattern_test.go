package pattern

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyops/dronectl/internal/geo"
	"github.com/skyops/dronectl/internal/vehicle"
)

var origin = geo.NewOrigin(47.397742, 8.545594)

func local(wp vehicle.Waypoint) (north, east float64) {
	return origin.Local(wp.LatitudeDeg, wp.LongitudeDeg)
}

func TestKind_StringAndParse(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	got, err := ParseKind("sine")
	require.NoError(t, err)
	assert.Equal(t, Sine, got)

	_, err = ParseKind("figure8")
	assert.Error(t, err)
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestNew_AllKinds(t *testing.T) {
	for _, k := range Kinds() {
		gen, err := New(k, origin, DefaultParams())
		require.NoError(t, err)
		assert.Equal(t, k, gen.Kind())
	}

	_, err := New(Kind(0), origin, DefaultParams())
	assert.Error(t, err)
}

func TestCircle_ConstantRadius(t *testing.T) {
	gen := NewCircle(origin, 10, 15, 1)

	for i := 0; i < 200; i++ {
		wp, period := gen.Next()
		assert.Equal(t, TickPeriod, period)
		assert.Equal(t, 15.0, wp.AltitudeM)
		assert.Equal(t, 0.0, wp.YawDeg)
		assert.InDelta(t, 10.0, origin.Distance(wp.LatitudeDeg, wp.LongitudeDeg), 1e-6)
	}
}

func TestCircle_StartsNorthAndCloses(t *testing.T) {
	gen := NewCircle(origin, 10, 10, 1)

	first, _ := gen.Next()
	n, e := local(first)
	assert.InDelta(t, 10.0, n, 1e-6)
	assert.InDelta(t, 0.0, e, 1e-6)

	// 0.1 rad per tick: the 63rd step wraps past 2π
	var wp vehicle.Waypoint
	for i := 0; i < 63; i++ {
		wp, _ = gen.Next()
	}
	n2, e2 := local(wp)
	assert.Less(t, math.Hypot(n2-n, e2-e), 1.0)
}

func TestCircle_ZeroRadiusStaysAtOrigin(t *testing.T) {
	gen := NewCircle(origin, 0, 10, 1)

	for i := 0; i < 5; i++ {
		wp, _ := gen.Next()
		assert.InDelta(t, 0.0, origin.Distance(wp.LatitudeDeg, wp.LongitudeDeg), 1e-9)
	}
}

func TestSquare_FourDistinctCornersWithDwell(t *testing.T) {
	gen := NewSquare(origin, 10, 10)

	want := [][2]float64{{10, 0}, {10, 10}, {0, 10}, {0, 0}, {10, 0}}
	seen := map[[2]float64]bool{}
	for i, w := range want {
		wp, period := gen.Next()
		assert.Equal(t, DwellPeriod, period)
		n, e := local(wp)
		assert.InDelta(t, w[0], n, 1e-6, "corner %d north", i)
		assert.InDelta(t, w[1], e, 1e-6, "corner %d east", i)
		seen[[2]float64{math.Round(n), math.Round(e)}] = true
	}
	assert.Len(t, seen, 4)
}

func TestTriangle_ClosesOnOrigin(t *testing.T) {
	gen := NewTriangle(origin, 10, 10)

	want := [][2]float64{{0, 0}, {10 * math.Sqrt(3) / 2, 5}, {0, 10}, {0, 0}, {0, 0}}
	for i, w := range want {
		wp, period := gen.Next()
		assert.Equal(t, DwellPeriod, period)
		n, e := local(wp)
		assert.InDelta(t, w[0], n, 1e-6, "corner %d north", i)
		assert.InDelta(t, w[1], e, 1e-6, "corner %d east", i)
	}
}

func TestSine_QuarterWavelengthSteps(t *testing.T) {
	// speed λ/4 puts consecutive waypoints on the quarter-wave points
	gen := NewSine(origin, 5, 10, 10, 2.5)

	wantNorth := []float64{0, 5, 0, -5, 0}
	for i, w := range wantNorth {
		wp, period := gen.Next()
		assert.Equal(t, TickPeriod, period)
		n, e := local(wp)
		assert.InDelta(t, w, n, 1e-6, "step %d north", i)
		assert.InDelta(t, 2.5*float64(i), e, 1e-6, "step %d east", i)
	}
}

func TestSine_ZeroWavelengthIsFinite(t *testing.T) {
	gen := NewSine(origin, 5, 0, 10, 1)

	for i := 0; i < 3; i++ {
		wp, _ := gen.Next()
		assert.False(t, math.IsNaN(wp.LatitudeDeg))
		assert.False(t, math.IsInf(wp.LatitudeDeg, 0))
	}
}

func TestPreview(t *testing.T) {
	gen := NewSquare(origin, 10, 20)

	ls := Preview(gen, 4)

	seq := ls.Coordinates()
	require.Equal(t, 4, seq.Length())
	assert.Equal(t, 20.0, seq.Get(0).Z)
	assert.Contains(t, ls.AsText(), "LINESTRING Z")
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()

	assert.Equal(t, 10.0, p.RadiusM)
	assert.Equal(t, 10.0, p.EdgeM)
	assert.Equal(t, 5.0, p.AmplitudeM)
	assert.Equal(t, 10.0, p.WavelengthM)
	assert.Equal(t, 10.0, p.AltitudeM)
	assert.Equal(t, 1.0, p.CircleSpeed)
	assert.Equal(t, 1.0, p.SineSpeed)
	assert.Equal(t, 5*time.Second, DwellPeriod)
}
