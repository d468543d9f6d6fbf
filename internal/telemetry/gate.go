package telemetry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/skyops/dronectl/internal/vehicle"
)

const (
	// FixEpsilonDeg is the smallest |lat| or |lon| that counts as a valid fix.
	FixEpsilonDeg = 1e-7

	// FixPollInterval is the 5 Hz polling period of WaitForPosition.
	FixPollInterval = 200 * time.Millisecond
)

// ErrNoPositionFix is returned when no valid position arrives before the deadline.
var ErrNoPositionFix = errors.New("no position fix")

// PositionSource is anything that reports the latest known position.
type PositionSource interface {
	Position() vehicle.Position
}

// HasFix reports whether p is distinguishable from the zero "no fix yet" position.
func HasFix(p vehicle.Position) bool {
	return math.Abs(p.LatitudeDeg) > FixEpsilonDeg || math.Abs(p.LongitudeDeg) > FixEpsilonDeg
}

// WaitForPosition polls src until it reports a fix, the timeout elapses or ctx is done.
func WaitForPosition(ctx context.Context, src PositionSource, timeout time.Duration) (vehicle.Position, error) {
	if p := src.Position(); HasFix(p) {
		return p, nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(FixPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return vehicle.Position{}, errors.Join(ErrNoPositionFix, ctx.Err())
		case <-deadline.C:
			// a sample that arrived with the deadline still counts
			if p := src.Position(); HasFix(p) {
				return p, nil
			}
			return vehicle.Position{}, ErrNoPositionFix
		case <-ticker.C:
			if p := src.Position(); HasFix(p) {
				return p, nil
			}
		}
	}
}
