package mission

import (
	"context"
	"fmt"
	"time"

	"github.com/skyops/dronectl/internal/telemetry"
	"github.com/skyops/dronectl/internal/vehicle"
)

// ArmTakeoff arms the vehicle, waits for a position fix, commands takeoff and waits for the
// vehicle to report it is airborne. It runs on the caller's goroutine and always returns the
// controller to Idle. Each step is attempted once.
func (c *Controller) ArmTakeoff(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if m := c.Mode(); m.State != Idle {
		return fmt.Errorf("%w: %s", ErrBusy, m)
	}

	c.setMode(Mode{State: ArmTakeoff}, "arm+takeoff")
	defer c.setMode(IdleMode(), "arm+takeoff finished")

	c.logger.Info("arming")
	if err := c.link.Arm(ctx); err != nil {
		c.logger.Error("arm failed", "error", err)
		return fmt.Errorf("%w: %w", ErrArmFailed, err)
	}

	if _, err := telemetry.WaitForPosition(ctx, c.link, c.cfg.FixTimeout); err != nil {
		c.logger.Error("takeoff aborted", "error", err)
		return fmt.Errorf("%w: %w", ErrTakeoffFailed, err)
	}

	c.logger.Info("taking off")
	if err := c.link.Takeoff(ctx); err != nil {
		c.logger.Error("takeoff failed", "error", err)
		return fmt.Errorf("%w: %w", ErrTakeoffFailed, err)
	}

	if !c.pollUntil(ctx, c.link.InAir, c.cfg.TakeoffTimeout) {
		c.logger.Error("vehicle not airborne", "timeout", c.cfg.TakeoffTimeout)
		return ErrNotAirborne
	}

	c.logger.Info("airborne")
	return nil
}

// Land stops the active task, commands landing, waits for the vehicle to settle on the ground
// and disarms. The controller returns to Idle whatever the outcome. Disarm is never attempted
// when the vehicle did not reach the ground.
func (c *Controller) Land(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.stopTask()
	c.setMode(Mode{State: Landing}, "land")
	defer c.setMode(IdleMode(), "land finished")

	c.logger.Info("landing")
	if err := c.link.Land(ctx); err != nil {
		c.logger.Error("land failed", "error", err)
		return fmt.Errorf("%w: %w", ErrLandFailed, err)
	}

	onGround := func() bool {
		return c.link.LandedState() == vehicle.LandedStateOnGround
	}
	if !c.pollUntil(ctx, onGround, c.cfg.LandTimeout) {
		c.logger.Error("vehicle did not land", "timeout", c.cfg.LandTimeout)
		return ErrLandTimeout
	}

	c.logger.Info("landed, disarming")
	if err := c.link.Disarm(ctx); err != nil {
		c.logger.Error("disarm failed", "error", err)
		return fmt.Errorf("%w: %w", ErrDisarmFailed, err)
	}
	return nil
}

// pollUntil checks cond every PollInterval until it holds, timeout elapses or ctx is done.
func (c *Controller) pollUntil(ctx context.Context, cond func() bool, timeout time.Duration) bool {
	if cond() {
		return true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return cond()
		case <-ticker.C:
			if cond() {
				return true
			}
		}
	}
}
