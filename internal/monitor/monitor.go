package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/skyops/dronectl/internal/telemetry"
	"github.com/skyops/dronectl/pkg/core"
)

// DefaultHz is the default status refresh rate.
const DefaultHz = 5.0

// TimestampLayout is the timestamp format of the status line.
const TimestampLayout = "2006-01-02 15:04:05"

// Snapshotter provides the cached vehicle state.
type Snapshotter interface {
	Snapshot() telemetry.Snapshot
}

// ModeSource provides the display name of the active control mode.
type ModeSource interface {
	ModeName() string
}

// SampleRecorder receives every sample the monitor renders.
type SampleRecorder interface {
	RecordSample(s *core.TelemetrySample) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Telemetry Snapshotter
	Mode      ModeSource
	Out       io.Writer
	Recorder  SampleRecorder // optional
	Logger    *slog.Logger
	Hz        float64
	Now       func() time.Time
}

// Service renders the status line at a fixed rate. It only reads state.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Hz <= 0 {
		deps.Hz = DefaultHz
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Period is the time between two status lines.
func (s *Service) Period() time.Duration {
	return time.Duration(float64(time.Second) / s.deps.Hz)
}

// Start launches the monitor goroutine. It runs until Stop is called or ctx is done.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	stop, done := s.stopChan, s.doneChan
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug("starting status monitor", "hz", s.deps.Hz)
		ticker := time.NewTicker(s.Period())
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick()
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for its goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	done := s.doneChan
	s.mu.Unlock()
	<-done
}

// Tick renders one status line and hands the sample to the recorder.
func (s *Service) Tick() core.TelemetrySample {
	sample := Sample(s.deps.Now(), s.deps.Telemetry.Snapshot(), s.deps.Mode.ModeName())

	if _, err := io.WriteString(s.deps.Out, FormatStatus(sample)); err != nil {
		s.deps.Logger.Debug("status write failed", "error", err)
	}
	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.RecordSample(&sample); err != nil {
			s.deps.Logger.Warn("failed to record telemetry sample", "error", err)
		}
	}
	return sample
}

// Sample flattens a telemetry snapshot into a record.
func Sample(now time.Time, snap telemetry.Snapshot, mode string) core.TelemetrySample {
	return core.TelemetrySample{
		Time:              now,
		LatitudeDeg:       snap.Position.LatitudeDeg,
		LongitudeDeg:      snap.Position.LongitudeDeg,
		RelativeAltitudeM: snap.Position.RelativeAltitudeM,
		VelocityNorthMS:   snap.Velocity.NorthMS,
		VelocityEastMS:    snap.Velocity.EastMS,
		VelocityDownMS:    snap.Velocity.DownMS,
		SpeedMS:           snap.Velocity.Speed(),
		BatteryPercent:    snap.Battery.RemainingPercent,
		LandedState:       snap.LandedState.String(),
		Mode:              mode,
	}
}

// FormatStatus renders the single overwriting status line for a sample.
func FormatStatus(s core.TelemetrySample) string {
	return fmt.Sprintf("\r[%s] Lat:%10.6f° Lon:%11.6f° Alt:%7.2f m | Speed:%6.2f m/s | Bat:%5.1f%% | Mission:%-10s",
		s.Time.Format(TimestampLayout),
		s.LatitudeDeg,
		s.LongitudeDeg,
		s.RelativeAltitudeM,
		s.SpeedMS,
		s.BatteryPercent,
		s.Mode,
	)
}
