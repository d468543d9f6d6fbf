// pkg/core/records.go
package core

import "time"

// TelemetrySample is one monitor tick: the cached vehicle state plus the active mode.
// Fields come from independent telemetry groups and may have different ages.
type TelemetrySample struct {
	Time              time.Time
	LatitudeDeg       float64
	LongitudeDeg      float64
	RelativeAltitudeM float64
	VelocityNorthMS   float64
	VelocityEastMS    float64
	VelocityDownMS    float64
	SpeedMS           float64
	BatteryPercent    float64
	LandedState       string
	Mode              string
}

// ModeTransition is one change of the console's control mode.
type ModeTransition struct {
	Time   time.Time
	From   string
	To     string
	Reason string
}

// CommandRecord is one command sent to the vehicle and its outcome.
type CommandRecord struct {
	Time     time.Time
	Command  string
	Params   map[string]any
	Duration time.Duration
	Success  bool
	Error    string
}
