// Package influxstorage records flights as InfluxDB time series: one "telemetry" point per
// monitor tick, plus "mode" and "command" points. Each point is tagged with the flight ID.
package influxstorage

import (
	"context"
	"strconv"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/skyops/dronectl/internal/influx"
	"github.com/skyops/dronectl/pkg/core"
)

// Measurement names.
const (
	MeasurementFlight    = "flight"
	MeasurementTelemetry = "telemetry"
	MeasurementMode      = "mode"
	MeasurementCommand   = "command"
)

// ConnectTimeout bounds the initial ping.
const ConnectTimeout = 5 * time.Second

// Backend implements storage.Backend on an influx.Manager.
type Backend struct {
	manager *influx.Manager

	mu       sync.Mutex
	flightID uint
	flight   string // tag value of the open flight, empty if none
}

// New creates a backend that connects on Init.
func New(cfg influx.Config, log zerolog.Logger) *Backend {
	return &Backend{manager: influx.NewManager(log, cfg)}
}

// Init connects to the server or opens the backup file.
func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()
	return b.manager.Connect(ctx)
}

// Close flushes pending points and closes the connection.
func (b *Backend) Close() error {
	return b.manager.Close()
}

// BackupPath is the line-protocol file in use when the server was unreachable.
func (b *Backend) BackupPath() string {
	return b.manager.BackupPath
}

// StartFlight assigns the next flight ID, taken from the start time so IDs stay unique across
// console runs, and writes a start marker.
func (b *Backend) StartFlight(flight *core.Flight) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uint(flight.StartTime.Unix())
	if id <= b.flightID {
		id = b.flightID + 1
	}
	b.flightID = id
	flight.ID = id
	b.flight = strconv.FormatUint(uint64(id), 10)

	p := influxdb2_write.NewPoint(MeasurementFlight,
		tags("flight", b.flight, "link", flight.LinkType),
		map[string]any{
			"event":          "start",
			"endpoint":       flight.Endpoint,
			"vehicleSystem":  int(flight.VehicleSystem),
			"consoleVersion": flight.ConsoleVersion,
		},
		flight.StartTime)
	return b.manager.WritePoint(p)
}

// EndFlight writes an end marker and flushes.
func (b *Backend) EndFlight() error {
	b.mu.Lock()
	flight := b.flight
	b.flight = ""
	b.mu.Unlock()

	if flight == "" {
		return nil
	}
	p := influxdb2_write.NewPoint(MeasurementFlight,
		map[string]string{"flight": flight},
		map[string]any{"event": "end"},
		time.Now().UTC())
	if err := b.manager.WritePoint(p); err != nil {
		return err
	}
	return b.manager.Flush()
}

func (b *Backend) currentFlight() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flight
}

// RecordSample writes a telemetry point. Samples outside a flight are dropped.
func (b *Backend) RecordSample(s *core.TelemetrySample) error {
	flight := b.currentFlight()
	if flight == "" {
		return nil
	}
	return b.manager.WritePoint(SamplePoint(flight, s))
}

// RecordTransition writes a mode point.
func (b *Backend) RecordTransition(t *core.ModeTransition) error {
	flight := b.currentFlight()
	if flight == "" {
		return nil
	}
	return b.manager.WritePoint(TransitionPoint(flight, t))
}

// RecordCommand writes a command point.
func (b *Backend) RecordCommand(c *core.CommandRecord) error {
	flight := b.currentFlight()
	if flight == "" {
		return nil
	}
	return b.manager.WritePoint(CommandPoint(flight, c))
}

// SamplePoint converts a telemetry sample.
func SamplePoint(flight string, s *core.TelemetrySample) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(MeasurementTelemetry,
		tags("flight", flight, "mode", s.Mode, "landedState", s.LandedState),
		map[string]any{
			"lat":     s.LatitudeDeg,
			"lon":     s.LongitudeDeg,
			"alt":     s.RelativeAltitudeM,
			"vn":      s.VelocityNorthMS,
			"ve":      s.VelocityEastMS,
			"vd":      s.VelocityDownMS,
			"speed":   s.SpeedMS,
			"battery": s.BatteryPercent,
		},
		s.Time)
}

// TransitionPoint converts a mode transition.
func TransitionPoint(flight string, t *core.ModeTransition) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(MeasurementMode,
		tags("flight", flight, "from", t.From, "to", t.To),
		map[string]any{"reason": t.Reason},
		t.Time)
}

// CommandPoint converts a command record.
func CommandPoint(flight string, c *core.CommandRecord) *influxdb2_write.Point {
	fields := map[string]any{
		"durationMs": float64(c.Duration.Microseconds()) / 1000,
		"success":    c.Success,
	}
	if c.Error != "" {
		fields["error"] = c.Error
	}
	return influxdb2_write.NewPoint(MeasurementCommand,
		tags("flight", flight, "command", c.Command),
		fields,
		c.Time)
}

// tags builds a tag set from key/value pairs, leaving out empty values.
func tags(kv ...string) map[string]string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			m[kv[i]] = kv[i+1]
		}
	}
	return m
}
