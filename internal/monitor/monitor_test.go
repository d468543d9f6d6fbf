package monitor

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyops/dronectl/internal/telemetry"
	"github.com/skyops/dronectl/internal/vehicle"
	"github.com/skyops/dronectl/pkg/core"
)

type fixedMode string

func (m fixedMode) ModeName() string { return string(m) }

// syncBuffer is a bytes.Buffer safe for the monitor goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type recorderStub struct {
	mu      sync.Mutex
	samples []core.TelemetrySample
}

func (r *recorderStub) RecordSample(s *core.TelemetrySample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, *s)
	return nil
}

func (r *recorderStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

func TestFormatStatus(t *testing.T) {
	s := core.TelemetrySample{
		Time:              time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		LatitudeDeg:       47.3977419,
		LongitudeDeg:      8.5455938,
		RelativeAltitudeM: 10.004,
		SpeedMS:           5,
		BatteryPercent:    87.5,
		Mode:              "Circle",
	}

	line := FormatStatus(s)

	assert.True(t, strings.HasPrefix(line, "\r[2026-03-04 05:06:07] "))
	assert.Contains(t, line, "Lat: 47.397742°")
	assert.Contains(t, line, "Lon:   8.545594°")
	assert.Contains(t, line, "Alt:  10.00 m")
	assert.Contains(t, line, "Speed:  5.00 m/s")
	assert.Contains(t, line, "Bat: 87.5%")
	assert.True(t, strings.HasSuffix(line, "Mission:Circle    "))
	assert.NotContains(t, line, "\n")
}

func TestSample_SpeedIsVelocityNorm(t *testing.T) {
	snap := telemetry.Snapshot{
		Position:    vehicle.Position{LatitudeDeg: 1, LongitudeDeg: 2, RelativeAltitudeM: 3},
		Velocity:    vehicle.VelocityNED{NorthMS: 2, EastMS: 3, DownMS: 6},
		Battery:     vehicle.Battery{RemainingPercent: 50},
		LandedState: vehicle.LandedStateInAir,
	}

	s := Sample(time.Unix(0, 0), snap, "None")

	assert.Equal(t, 7.0, s.SpeedMS)
	assert.Equal(t, "InAir", s.LandedState)
	assert.Equal(t, "None", s.Mode)
	assert.Equal(t, 50.0, s.BatteryPercent)
}

func TestService_Tick(t *testing.T) {
	cache := telemetry.NewCache()
	cache.SetPosition(vehicle.Position{LatitudeDeg: 47.1, LongitudeDeg: 8.5})
	out := &syncBuffer{}
	rec := &recorderStub{}

	svc := NewService(Dependencies{Telemetry: cache, Mode: fixedMode("Square"), Out: out, Recorder: rec})
	sample := svc.Tick()

	assert.Equal(t, "Square", sample.Mode)
	assert.Contains(t, out.String(), "Mission:Square")
	assert.Equal(t, 1, rec.count())
}

func TestService_StartStop(t *testing.T) {
	out := &syncBuffer{}
	rec := &recorderStub{}
	svc := NewService(Dependencies{
		Telemetry: telemetry.NewCache(),
		Mode:      fixedMode("None"),
		Out:       out,
		Recorder:  rec,
		Hz:        50,
	})
	assert.Equal(t, 20*time.Millisecond, svc.Period())

	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Start(context.Background()), "second start is a no-op")
	assert.True(t, svc.IsRunning())

	require.Eventually(t, func() bool { return rec.count() >= 3 }, time.Second, 5*time.Millisecond)
	svc.Stop()

	assert.False(t, svc.IsRunning())
	n := rec.count()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, n, rec.count(), "no ticks after Stop")
	assert.Equal(t, n, strings.Count(out.String(), "\r"))

	svc.Stop()
}

func TestService_StopsWithContext(t *testing.T) {
	svc := NewService(Dependencies{Telemetry: telemetry.NewCache(), Mode: fixedMode("None"), Hz: 100})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, svc.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return !svc.IsRunning() }, time.Second, 5*time.Millisecond)
}

func TestNewService_DefaultRate(t *testing.T) {
	svc := NewService(Dependencies{Telemetry: telemetry.NewCache(), Mode: fixedMode("None")})

	assert.Equal(t, 200*time.Millisecond, svc.Period())
}
