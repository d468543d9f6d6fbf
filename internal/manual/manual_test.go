package manual

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyops/dronectl/internal/geo"
	"github.com/skyops/dronectl/internal/telemetry"
	"github.com/skyops/dronectl/internal/vehicle"
	"github.com/skyops/dronectl/internal/vehicle/vehicletest"
	"github.com/skyops/dronectl/internal/worker"
)

// scriptedInput replays a fixed key sequence, then reports no input.
type scriptedInput struct {
	mu   sync.Mutex
	keys []byte
}

func (s *scriptedInput) HasInput() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys) > 0
}

func (s *scriptedInput) ReadChar() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.keys[0]
	s.keys = s.keys[1:]
	return k
}

func TestApply(t *testing.T) {
	start := Setpoint{LatitudeDeg: 60, LongitudeDeg: 10, AltitudeM: 5}

	tests := []struct {
		key   byte
		moved bool
		exit  bool
		dLat  float64
		dLon  float64
		dAltM float64
	}{
		{key: 'w', moved: true, dLat: geo.MetersToLatitude(2)},
		{key: 's', moved: true, dLat: -geo.MetersToLatitude(2)},
		{key: 'd', moved: true, dLon: geo.MetersToLongitude(2, 60)},
		{key: 'a', moved: true, dLon: -geo.MetersToLongitude(2, 60)},
		{key: 'r', moved: true, dAltM: 2},
		{key: 'f', moved: true, dAltM: -2},
		{key: 'q', exit: true},
		{key: 'z'},
		{key: 'W'},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			next, moved, exit := Apply(start, tt.key, 2)

			assert.Equal(t, tt.moved, moved)
			assert.Equal(t, tt.exit, exit)
			assert.InDelta(t, start.LatitudeDeg+tt.dLat, next.LatitudeDeg, 1e-12)
			assert.InDelta(t, start.LongitudeDeg+tt.dLon, next.LongitudeDeg, 1e-12)
			assert.InDelta(t, start.AltitudeM+tt.dAltM, next.AltitudeM, 1e-12)
		})
	}
}

func TestApply_EastStepIsTwoMetres(t *testing.T) {
	o := geo.NewOrigin(47.4, 8.5)
	sp := Setpoint{LatitudeDeg: 47.4, LongitudeDeg: 8.5}

	next, _, _ := Apply(sp, 'd', 2)

	n, e := o.Local(next.LatitudeDeg, next.LongitudeDeg)
	assert.InDelta(t, 0, n, 1e-9)
	assert.InDelta(t, 2, e, 1e-9)
}

func TestRun_OneGotoPerMovementKey(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(vehicle.Position{LatitudeDeg: 47.4, LongitudeDeg: 8.5, RelativeAltitudeM: 7})
	c := NewController(link, Config{StepM: 2, FixTimeout: time.Second}, nil)
	in := &scriptedInput{keys: []byte("wx?rdq")}

	var runErr error
	task := worker.Start("manual", func(t *worker.Task) {
		runErr = c.Run(t, in)
	})
	<-task.Done()

	require.NoError(t, runErr)
	gotos := link.Gotos()
	require.Len(t, gotos, 3)
	assert.Greater(t, gotos[0].LatitudeDeg, 47.4)
	assert.Equal(t, 7.0, gotos[0].AltitudeM, "altitude seeded from the fix")
	assert.Equal(t, 9.0, gotos[1].AltitudeM)
	assert.Greater(t, gotos[2].LongitudeDeg, 8.5)
}

func TestRun_ExitIssuesNoCommand(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(vehicle.Position{LatitudeDeg: 1, LongitudeDeg: 1})
	c := NewController(link, Config{FixTimeout: time.Second}, nil)

	task := worker.Start("manual", func(t *worker.Task) {
		_ = c.Run(t, &scriptedInput{keys: []byte("q")})
	})
	<-task.Done()

	assert.Empty(t, link.Calls())
}

func TestRun_NoFix(t *testing.T) {
	link := vehicletest.New()
	c := NewController(link, Config{FixTimeout: 300 * time.Millisecond}, nil)

	var runErr error
	task := worker.Start("manual", func(t *worker.Task) {
		runErr = c.Run(t, &scriptedInput{keys: []byte("www")})
	})
	<-task.Done()

	assert.ErrorIs(t, runErr, telemetry.ErrNoPositionFix)
	assert.Empty(t, link.Calls())
}

func TestRun_InvalidOrigin(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(vehicle.Position{LatitudeDeg: -90, LongitudeDeg: 10})
	c := NewController(link, Config{FixTimeout: time.Second}, nil)

	var runErr error
	task := worker.Start("manual", func(t *worker.Task) {
		runErr = c.Run(t, &scriptedInput{keys: []byte("ww")})
	})
	<-task.Done()

	assert.ErrorIs(t, runErr, geo.ErrInvalidOrigin)
	assert.Empty(t, link.Calls())
}

func TestRun_GotoFailureContinues(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(vehicle.Position{LatitudeDeg: 1, LongitudeDeg: 1})
	link.FailWith("goto", errors.New("link down"))
	c := NewController(link, Config{FixTimeout: time.Second}, nil)

	task := worker.Start("manual", func(t *worker.Task) {
		_ = c.Run(t, &scriptedInput{keys: []byte("wwq")})
	})
	<-task.Done()

	assert.Len(t, link.Gotos(), 2)
}

func TestRun_StopWhileIdle(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(vehicle.Position{LatitudeDeg: 1, LongitudeDeg: 1})
	c := NewController(link, Config{FixTimeout: time.Second}, nil)

	task := worker.Start("manual", func(t *worker.Task) {
		_ = c.Run(t, &scriptedInput{})
	})
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	task.Stop()
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, link.Calls())
}
