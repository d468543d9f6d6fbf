package mission

import "errors"

var (
	ErrArmFailed     = errors.New("arm failed")
	ErrTakeoffFailed = errors.New("takeoff failed")
	ErrNotAirborne   = errors.New("vehicle did not become airborne")
	ErrLandFailed    = errors.New("land failed")
	ErrLandTimeout   = errors.New("vehicle did not reach the ground")
	ErrDisarmFailed  = errors.New("disarm failed")

	// ErrBusy is returned when arm+takeoff is requested while another mode owns the vehicle.
	ErrBusy = errors.New("another mode is active")
)
