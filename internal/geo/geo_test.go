package geo

import (
	"math"
	"testing"

	"github.com/skyops/dronectl/internal/vehicle"
)

func TestOffset_NorthOnly(t *testing.T) {
	o := NewOrigin(47.397742, 8.545594)

	lat, lon := o.Offset(111.32, 0)

	if math.Abs(lat-(47.397742+0.001)) > 1e-12 {
		t.Errorf("expected lat=%f, got %f", 47.398742, lat)
	}
	if lon != 8.545594 {
		t.Errorf("expected lon unchanged, got %f", lon)
	}
}

func TestOffset_EastScalesWithLatitude(t *testing.T) {
	equator := NewOrigin(0, 0)
	north := NewOrigin(60, 0)

	_, lonEq := equator.Offset(0, 1000)
	_, lon60 := north.Offset(0, 1000)

	// cos(60°) = 0.5, so the same distance spans twice the longitude
	if math.Abs(lon60-2*lonEq) > 1e-9 {
		t.Errorf("expected %f at 60N, got %f", 2*lonEq, lon60)
	}
}

func TestLocal_InvertsOffset(t *testing.T) {
	o := NewOrigin(-33.8688, 151.2093)

	lat, lon := o.Offset(-12.5, 40)
	n, e := o.Local(lat, lon)

	if math.Abs(n+12.5) > 1e-6 || math.Abs(e-40) > 1e-6 {
		t.Errorf("expected (-12.5, 40), got (%f, %f)", n, e)
	}
	if d := o.Distance(lat, lon); math.Abs(d-math.Hypot(12.5, 40)) > 1e-6 {
		t.Errorf("unexpected distance %f", d)
	}
}

func TestMetersToLatitude(t *testing.T) {
	if got := MetersToLatitude(MetersPerDegree); got != 1 {
		t.Errorf("expected 1 degree, got %f", got)
	}
}

func TestValidate(t *testing.T) {
	if err := NewOrigin(47.1, 8.5).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := NewOrigin(90, 8.5).Validate(); err != ErrInvalidOrigin {
		t.Errorf("expected ErrInvalidOrigin, got %v", err)
	}
	if err := NewOrigin(10, 181).Validate(); err != ErrInvalidOrigin {
		t.Errorf("expected ErrInvalidOrigin, got %v", err)
	}
}

func TestPoint3857_Origin(t *testing.T) {
	p := Point3857(0, 0)

	coords, ok := p.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if math.Abs(coords.X) > 1e-6 || math.Abs(coords.Y) > 1e-6 {
		t.Errorf("expected (0,0), got (%f,%f)", coords.X, coords.Y)
	}
}

func TestPoint3857_EastIsPositiveX(t *testing.T) {
	p := Point3857(10, 20)

	coords, ok := p.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if coords.X <= 0 || coords.Y <= 0 {
		t.Errorf("expected positive x/y, got (%f,%f)", coords.X, coords.Y)
	}
}

func TestPathLineString(t *testing.T) {
	ls := PathLineString([]vehicle.Waypoint{
		{LatitudeDeg: 1, LongitudeDeg: 2, AltitudeM: 10},
		{LatitudeDeg: 3, LongitudeDeg: 4, AltitudeM: 10},
	})

	seq := ls.Coordinates()
	if seq.Length() != 2 {
		t.Fatalf("expected 2 points, got %d", seq.Length())
	}
	first := seq.Get(0)
	if first.X != 2 || first.Y != 1 || first.Z != 10 {
		t.Errorf("expected lon/lat/alt ordering, got %+v", first)
	}
}

func TestPathLineString_TooShort(t *testing.T) {
	ls := PathLineString([]vehicle.Waypoint{{LatitudeDeg: 1, LongitudeDeg: 2}})

	if !ls.IsEmpty() {
		t.Errorf("expected empty line string, got %s", ls.AsText())
	}
}
