package convert

import (
	"encoding/json"
	"time"

	"github.com/skyops/dronectl/internal/model"
	"github.com/skyops/dronectl/pkg/core"
	"gorm.io/datatypes"
)

// jsonToParams decodes a stored parameter object. Invalid or empty JSON yields nil.
func jsonToParams(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil || len(params) == 0 {
		return nil
	}
	return params
}

// FlightToCore converts a GORM model.Flight to a core.Flight.
func FlightToCore(f model.Flight) core.Flight {
	return core.Flight{
		ID:             f.ID,
		StartTime:      f.StartTime,
		EndTime:        f.EndTime,
		LinkType:       f.LinkType,
		Endpoint:       f.Endpoint,
		VehicleSystem:  f.VehicleSystem,
		ConsoleVersion: f.ConsoleVersion,
		Params:         jsonToParams(f.Params),
	}
}

// TelemetrySampleToCore converts a stored sample back. The WGS84 columns are authoritative;
// the projected point is not read back.
func TelemetrySampleToCore(s model.TelemetrySample) core.TelemetrySample {
	return core.TelemetrySample{
		Time:              s.Time,
		LatitudeDeg:       s.Latitude,
		LongitudeDeg:      s.Longitude,
		RelativeAltitudeM: float64(s.RelativeAltitude),
		VelocityNorthMS:   float64(s.VelocityNorth),
		VelocityEastMS:    float64(s.VelocityEast),
		VelocityDownMS:    float64(s.VelocityDown),
		SpeedMS:           float64(s.Speed),
		BatteryPercent:    float64(s.BatteryPercent),
		LandedState:       s.LandedState,
		Mode:              s.Mode,
	}
}

// ModeTransitionToCore converts a GORM model.ModeTransition to a core.ModeTransition.
func ModeTransitionToCore(t model.ModeTransition) core.ModeTransition {
	return core.ModeTransition{
		Time:   t.Time,
		From:   t.FromMode,
		To:     t.ToMode,
		Reason: t.Reason,
	}
}

// CommandRecordToCore converts a GORM model.CommandRecord to a core.CommandRecord.
// Durations are stored in milliseconds, so sub-microsecond precision is lost.
func CommandRecordToCore(c model.CommandRecord) core.CommandRecord {
	return core.CommandRecord{
		Time:     c.Time,
		Command:  c.Command,
		Params:   jsonToParams(c.Params),
		Duration: time.Duration(c.DurationMs * float64(time.Millisecond)),
		Success:  c.Success,
		Error:    c.Error,
	}
}
