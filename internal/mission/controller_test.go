package mission

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyops/dronectl/internal/geo"
	"github.com/skyops/dronectl/internal/pattern"
	"github.com/skyops/dronectl/internal/telemetry"
	"github.com/skyops/dronectl/internal/vehicle"
	"github.com/skyops/dronectl/internal/vehicle/vehicletest"
)

var home = vehicle.Position{LatitudeDeg: 47.397742, LongitudeDeg: 8.545594, RelativeAltitudeM: 10}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FixTimeout = 300 * time.Millisecond
	cfg.TakeoffTimeout = 300 * time.Millisecond
	cfg.LandTimeout = 300 * time.Millisecond
	cfg.PollInterval = 20 * time.Millisecond
	return cfg
}

func newTestController(t *testing.T, link *vehicletest.Link) *Controller {
	t.Helper()
	c, err := NewController(link, testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(c.Stop)
	return c
}

// keys is a manual.Input replaying a fixed sequence.
type keys struct {
	mu  sync.Mutex
	buf []byte
}

func (k *keys) HasInput() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buf) > 0
}

func (k *keys) ReadChar() byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	b := k.buf[0]
	k.buf = k.buf[1:]
	return b
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "None", IdleMode().String())
	assert.Equal(t, "Takeoff", Mode{State: ArmTakeoff}.String())
	assert.Equal(t, "Landing", Mode{State: Landing}.String())
	assert.Equal(t, "Manual", Mode{State: Manual}.String())
	assert.Equal(t, "Circle", MissionMode(pattern.Circle).String())
	assert.Equal(t, "Triangle", MissionMode(pattern.Triangle).String())
}

func TestController_StartsIdle(t *testing.T) {
	c := newTestController(t, vehicletest.New())

	assert.Equal(t, IdleMode(), c.Mode())
	assert.Equal(t, "None", c.ModeName())
	assert.Equal(t, 0, c.ActiveTasks())
}

func TestArmTakeoff_Success(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(home)
	link.OnCommand = func(call vehicletest.Call) {
		if call.Name == "takeoff" {
			go func() {
				time.Sleep(50 * time.Millisecond)
				link.SetInAir(true)
			}()
		}
	}
	c := newTestController(t, link)

	var seen []string
	c.OnTransition(func(tr Transition) { seen = append(seen, tr.To.String()) })

	require.NoError(t, c.ArmTakeoff(context.Background()))

	assert.Equal(t, []string{"arm", "takeoff"}, link.CallNames())
	assert.Equal(t, IdleMode(), c.Mode())
	assert.Equal(t, []string{"Takeoff", "None"}, seen)
}

func TestArmTakeoff_ArmRejected(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(home)
	link.FailWith("arm", &vehicle.CommandError{Command: "arm", Result: "DENIED"})
	c := newTestController(t, link)

	err := c.ArmTakeoff(context.Background())

	require.ErrorIs(t, err, ErrArmFailed)
	assert.True(t, vehicle.IsRejected(err))
	assert.Equal(t, []string{"arm"}, link.CallNames())
	assert.Equal(t, IdleMode(), c.Mode())
}

func TestArmTakeoff_NoFixAfterArm(t *testing.T) {
	link := vehicletest.New()
	c := newTestController(t, link)

	err := c.ArmTakeoff(context.Background())

	require.ErrorIs(t, err, ErrTakeoffFailed)
	assert.ErrorIs(t, err, telemetry.ErrNoPositionFix)
	assert.Equal(t, []string{"arm"}, link.CallNames())
}

func TestArmTakeoff_TakeoffRejected(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(home)
	link.FailWith("takeoff", vehicle.ErrTimeout)
	c := newTestController(t, link)

	err := c.ArmTakeoff(context.Background())

	require.ErrorIs(t, err, ErrTakeoffFailed)
	assert.ErrorIs(t, err, vehicle.ErrTimeout)
	assert.Equal(t, []string{"arm", "takeoff"}, link.CallNames())
}

func TestArmTakeoff_NotAirborneIssuesNothingMore(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(home)
	c := newTestController(t, link)

	start := time.Now()
	err := c.ArmTakeoff(context.Background())

	require.ErrorIs(t, err, ErrNotAirborne)
	assert.GreaterOrEqual(t, time.Since(start), testConfig().TakeoffTimeout)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"arm", "takeoff"}, link.CallNames())
	assert.Equal(t, IdleMode(), c.Mode())
}

func TestArmTakeoff_RefusedWhileMissionActive(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(home)
	c := newTestController(t, link)

	require.NoError(t, c.StartMission(pattern.Circle))
	err := c.ArmTakeoff(context.Background())

	assert.ErrorIs(t, err, ErrBusy)
	assert.NotContains(t, link.CallNames(), "arm")
	assert.Equal(t, MissionMode(pattern.Circle), c.Mode())
}

func TestLand_Success(t *testing.T) {
	link := vehicletest.New()
	link.SetLandedState(vehicle.LandedStateInAir)
	link.OnCommand = func(call vehicletest.Call) {
		if call.Name == "land" {
			go func() {
				time.Sleep(50 * time.Millisecond)
				link.SetLandedState(vehicle.LandedStateOnGround)
			}()
		}
	}
	c := newTestController(t, link)

	require.NoError(t, c.Land(context.Background()))

	assert.Equal(t, []string{"land", "disarm"}, link.CallNames())
	assert.Equal(t, IdleMode(), c.Mode())
}

func TestLand_TimeoutNeverDisarms(t *testing.T) {
	link := vehicletest.New()
	link.SetLandedState(vehicle.LandedStateInAir)
	c := newTestController(t, link)

	err := c.Land(context.Background())

	require.ErrorIs(t, err, ErrLandTimeout)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"land"}, link.CallNames())
	assert.Equal(t, IdleMode(), c.Mode())
}

func TestLand_Rejected(t *testing.T) {
	link := vehicletest.New()
	link.FailWith("land", errors.New("denied"))
	c := newTestController(t, link)

	err := c.Land(context.Background())

	require.ErrorIs(t, err, ErrLandFailed)
	assert.Equal(t, []string{"land"}, link.CallNames())
	assert.Equal(t, IdleMode(), c.Mode())
}

func TestLand_DisarmRejected(t *testing.T) {
	link := vehicletest.New()
	link.FailWith("disarm", errors.New("denied"))
	c := newTestController(t, link)

	err := c.Land(context.Background())

	require.ErrorIs(t, err, ErrDisarmFailed)
	assert.Equal(t, []string{"land", "disarm"}, link.CallNames())
}

func TestLand_StopsActiveMission(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(home)
	c := newTestController(t, link)

	require.NoError(t, c.StartMission(pattern.Circle))
	require.Eventually(t, func() bool { return len(link.Gotos()) > 0 }, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Land(context.Background()))

	assert.Equal(t, 0, c.ActiveTasks())
	names := link.CallNames()
	assert.Equal(t, []string{"land", "disarm"}, names[len(names)-2:])
	n := len(link.Calls())
	time.Sleep(1200 * time.Millisecond)
	assert.Len(t, link.Calls(), n, "no goto after the mission was stopped")
}

func TestStartMission_NoFixReturnsToIdle(t *testing.T) {
	link := vehicletest.New()
	c := newTestController(t, link)

	require.NoError(t, c.StartMission(pattern.Square))
	assert.Equal(t, "Square", c.ModeName())

	require.Eventually(t, func() bool { return c.Mode() == IdleMode() }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return c.ActiveTasks() == 0 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, link.Calls())
}

func TestStartMission_InvalidOriginReturnsToIdle(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(vehicle.Position{LatitudeDeg: 90, LongitudeDeg: 8.5})
	c := newTestController(t, link)

	var mu sync.Mutex
	var reasons []string
	c.OnTransition(func(tr Transition) {
		mu.Lock()
		reasons = append(reasons, tr.Reason)
		mu.Unlock()
	})

	require.NoError(t, c.StartMission(pattern.Circle))

	require.Eventually(t, func() bool { return c.Mode() == IdleMode() }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return c.ActiveTasks() == 0 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, link.Calls())
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, reasons, "invalid origin")
}

func TestStartMission_UnknownKind(t *testing.T) {
	c := newTestController(t, vehicletest.New())

	assert.Error(t, c.StartMission(pattern.Kind(42)))
	assert.Equal(t, IdleMode(), c.Mode())
}

func TestStartMission_IssuesWaypointsFromOrigin(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(home)
	c := newTestController(t, link)

	require.NoError(t, c.StartMission(pattern.Circle))
	require.Eventually(t, func() bool { return len(link.Gotos()) >= 2 }, 3*time.Second, 10*time.Millisecond)
	c.Stop()

	origin := geo.NewOrigin(home.LatitudeDeg, home.LongitudeDeg)
	for _, wp := range link.Gotos() {
		assert.InDelta(t, 10.0, origin.Distance(wp.LatitudeDeg, wp.LongitudeDeg), 1e-6)
		assert.Equal(t, 10.0, wp.AltitudeM)
	}
	assert.Equal(t, IdleMode(), c.Mode())
	assert.Equal(t, 0, c.ActiveTasks())
}

func TestStopThenStart_NoInterleavedGotos(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(home)
	cfg := testConfig()
	cfg.Params.EdgeM = 30
	c, err := NewController(link, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(c.Stop)

	require.NoError(t, c.StartMission(pattern.Circle))
	require.Eventually(t, func() bool { return len(link.Gotos()) >= 2 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, c.StartMission(pattern.Square))
	require.Eventually(t, func() bool { return len(link.Gotos()) >= 3 }, 3*time.Second, 10*time.Millisecond)
	c.Stop()

	origin := geo.NewOrigin(home.LatitudeDeg, home.LongitudeDeg)
	squareSeen := false
	for i, wp := range link.Gotos() {
		onCircle := math.Abs(origin.Distance(wp.LatitudeDeg, wp.LongitudeDeg)-10) < 1e-3
		if !onCircle {
			squareSeen = true
			continue
		}
		assert.False(t, squareSeen, "circle goto %d issued after the square started", i)
	}
	assert.True(t, squareSeen)
}

func TestModeChanges_NeverOverlap(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(home)
	c := newTestController(t, link)

	var maxLive atomic.Int32
	stop := make(chan struct{})
	sampled := make(chan struct{})
	go func() {
		defer close(sampled)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if n := int32(c.ActiveTasks()); n > maxLive.Load() {
				maxLive.Store(n)
			}
		}
	}()

	steps := []func(){
		func() { _ = c.StartMission(pattern.Circle) },
		func() { _ = c.StartMission(pattern.Square) },
		func() { _, _ = c.StartManual(&keys{}) },
		func() { _ = c.StartMission(pattern.Sine) },
		c.Stop,
		func() { _ = c.StartMission(pattern.Triangle) },
		func() { _, _ = c.StartManual(&keys{buf: []byte("wq")}) },
		func() { _ = c.StartMission(pattern.Circle) },
		c.Stop,
	}
	for i := 0; i < 3; i++ {
		for _, step := range steps {
			step()
			assert.LessOrEqual(t, c.ActiveTasks(), 1)
			time.Sleep(15 * time.Millisecond)
		}
	}

	close(stop)
	<-sampled
	assert.LessOrEqual(t, maxLive.Load(), int32(1))
	assert.Equal(t, 0, c.ActiveTasks())
}

func TestStartManual_ExitKeyReturnsToIdle(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(home)
	c := newTestController(t, link)

	done, err := c.StartManual(&keys{buf: []byte("wdq")})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("manual control did not end")
	}
	require.Eventually(t, func() bool { return c.Mode() == IdleMode() }, time.Second, 10*time.Millisecond)
	assert.Len(t, link.Gotos(), 2)
}

func TestStartManual_SupersededByMission(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(home)
	c := newTestController(t, link)

	done, err := c.StartManual(&keys{})
	require.NoError(t, err)
	assert.Equal(t, "Manual", c.ModeName())

	require.NoError(t, c.StartMission(pattern.Sine))

	select {
	case <-done:
	default:
		t.Fatal("manual task must be joined before the mission starts")
	}
	assert.Equal(t, "Sine", c.ModeName())
	assert.Equal(t, 1, c.ActiveTasks())
}

func TestShutdown_StopsAndLands(t *testing.T) {
	link := vehicletest.New()
	link.SetPosition(home)
	c := newTestController(t, link)

	var transitions []Transition
	c.OnTransition(func(tr Transition) { transitions = append(transitions, tr) })

	require.NoError(t, c.StartMission(pattern.Triangle))
	require.Eventually(t, func() bool { return len(link.Gotos()) > 0 }, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Shutdown(context.Background()))

	names := link.CallNames()
	assert.Equal(t, []string{"land", "disarm"}, names[len(names)-2:])
	assert.Equal(t, 0, c.ActiveTasks())
	assert.Equal(t, IdleMode(), c.Mode())

	var to []string
	for _, tr := range transitions {
		to = append(to, tr.To.String())
	}
	assert.Equal(t, []string{"Triangle", "None", "Landing", "None"}, to)
}
