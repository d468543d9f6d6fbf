package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/skyops/dronectl/internal/vehicle"
	"github.com/skyops/dronectl/pkg/core"
)

// RecordingLink wraps a vehicle link and records every command with its outcome. State
// queries and subscriptions pass straight through.
type RecordingLink struct {
	vehicle.Link
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecordingLink wraps link so commands are written to backend.
func NewRecordingLink(link vehicle.Link, backend Backend, logger *slog.Logger) *RecordingLink {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingLink{
		Link:    link,
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
}

func (l *RecordingLink) Arm(ctx context.Context) error {
	return l.record("arm", nil, func() error { return l.Link.Arm(ctx) })
}

func (l *RecordingLink) Disarm(ctx context.Context) error {
	return l.record("disarm", nil, func() error { return l.Link.Disarm(ctx) })
}

func (l *RecordingLink) Takeoff(ctx context.Context) error {
	return l.record("takeoff", nil, func() error { return l.Link.Takeoff(ctx) })
}

func (l *RecordingLink) Land(ctx context.Context) error {
	return l.record("land", nil, func() error { return l.Link.Land(ctx) })
}

func (l *RecordingLink) GotoLocation(ctx context.Context, wp vehicle.Waypoint) error {
	params := map[string]any{
		"lat": wp.LatitudeDeg,
		"lon": wp.LongitudeDeg,
		"alt": wp.AltitudeM,
		"yaw": wp.YawDeg,
	}
	return l.record("goto", params, func() error { return l.Link.GotoLocation(ctx, wp) })
}

// record runs cmd and stores its outcome. The command's own error is returned unchanged; a
// failure to record is only logged.
func (l *RecordingLink) record(name string, params map[string]any, cmd func() error) error {
	start := l.now()
	err := cmd()

	rec := core.CommandRecord{
		Time:     start,
		Command:  name,
		Params:   params,
		Duration: l.now().Sub(start),
		Success:  err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if rerr := l.backend.RecordCommand(&rec); rerr != nil {
		l.logger.Warn("Failed to record command", "command", name, "error", rerr)
	}
	return err
}
