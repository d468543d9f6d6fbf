// Package convert provides functions to convert between GORM models and core records
package convert

import (
	"encoding/json"

	"github.com/skyops/dronectl/internal/geo"
	"github.com/skyops/dronectl/internal/model"
	"github.com/skyops/dronectl/pkg/core"
	"gorm.io/datatypes"
)

// paramsToJSON converts a parameter map to datatypes.JSON, "{}" when empty or unencodable.
func paramsToJSON(params map[string]any) datatypes.JSON {
	if len(params) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(params)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToFlight converts a core.Flight to a GORM model.Flight.
// core.Flight.ID maps to the gorm primary key.
func CoreToFlight(f core.Flight) model.Flight {
	m := model.Flight{
		StartTime:      f.StartTime,
		EndTime:        f.EndTime,
		LinkType:       f.LinkType,
		Endpoint:       f.Endpoint,
		VehicleSystem:  f.VehicleSystem,
		ConsoleVersion: f.ConsoleVersion,
		Params:         paramsToJSON(f.Params),
	}
	m.ID = f.ID
	return m
}

// CoreToTelemetrySample converts a sample, projecting its position to EPSG:3857.
func CoreToTelemetrySample(s core.TelemetrySample) model.TelemetrySample {
	return model.TelemetrySample{
		Time:             s.Time,
		Position:         geo.Point3857(s.LatitudeDeg, s.LongitudeDeg),
		Latitude:         s.LatitudeDeg,
		Longitude:        s.LongitudeDeg,
		RelativeAltitude: float32(s.RelativeAltitudeM),
		VelocityNorth:    float32(s.VelocityNorthMS),
		VelocityEast:     float32(s.VelocityEastMS),
		VelocityDown:     float32(s.VelocityDownMS),
		Speed:            float32(s.SpeedMS),
		BatteryPercent:   float32(s.BatteryPercent),
		LandedState:      s.LandedState,
		Mode:             s.Mode,
	}
}

// CoreToModeTransition converts a core.ModeTransition to a GORM model.ModeTransition.
func CoreToModeTransition(t core.ModeTransition) model.ModeTransition {
	return model.ModeTransition{
		Time:     t.Time,
		FromMode: t.From,
		ToMode:   t.To,
		Reason:   t.Reason,
	}
}

// CoreToCommandRecord converts a core.CommandRecord to a GORM model.CommandRecord.
func CoreToCommandRecord(c core.CommandRecord) model.CommandRecord {
	return model.CommandRecord{
		Time:       c.Time,
		Command:    c.Command,
		Params:     paramsToJSON(c.Params),
		DurationMs: float64(c.Duration.Microseconds()) / 1000.0,
		Success:    c.Success,
		Error:      c.Error,
	}
}
