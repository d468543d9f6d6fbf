package recorder

import (
	"log/slog"

	"github.com/skyops/dronectl/internal/mission"
	"github.com/skyops/dronectl/internal/storage"
	"github.com/skyops/dronectl/pkg/core"
)

// ModeTransition converts a controller transition into its record.
func ModeTransition(tr mission.Transition) core.ModeTransition {
	return core.ModeTransition{
		Time:   tr.At.UTC(),
		From:   tr.From.String(),
		To:     tr.To.String(),
		Reason: tr.Reason,
	}
}

// TransitionObserver returns a mission.Controller observer that records every mode change.
// Recording failures are logged and never reach the controller.
func TransitionObserver(backend storage.Backend, logger *slog.Logger) func(mission.Transition) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(tr mission.Transition) {
		rec := ModeTransition(tr)
		if err := backend.RecordTransition(&rec); err != nil {
			logger.Warn("Failed to record mode transition", "from", rec.From, "to", rec.To, "error", err)
		}
	}
}
