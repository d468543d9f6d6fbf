// Package model holds the gorm schema of the flight recorder.
package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels lists every table of the recorder schema, in migration order.
var DatabaseModels = []any{
	&Flight{},
	&TelemetrySample{},
	&ModeTransition{},
	&CommandRecord{},
}

////////////////////////
// SESSION
////////////////////////

// Flight is one console session against one vehicle
type Flight struct {
	gorm.Model
	StartTime      time.Time      `json:"startTime" gorm:"type:timestamptz;index:idx_flight_start_time"`
	EndTime        time.Time      `json:"endTime" gorm:"type:timestamptz"`
	LinkType       string         `json:"linkType" gorm:"size:16"`
	Endpoint       string         `json:"endpoint" gorm:"size:255"`
	VehicleSystem  uint8          `json:"vehicleSystem"`
	ConsoleVersion string         `json:"consoleVersion" gorm:"size:64"`
	Params         datatypes.JSON `json:"params" gorm:"default:'{}'"` // pattern parameters in effect
}

func (*Flight) TableName() string {
	return "flights"
}

////////////////////////
// TIME SERIES
////////////////////////

// TelemetrySample is one monitor tick
type TelemetrySample struct {
	ID       uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time `json:"time" gorm:"type:timestamptz;index:idx_sample_time"`
	FlightID uint      `json:"flightId" gorm:"index:idx_sample_flight_id"`
	Flight   Flight    `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:FlightID;"`

	Position         geom.Point `json:"position"` // EPSG:3857
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	RelativeAltitude float32    `json:"relativeAltitude"`
	VelocityNorth    float32    `json:"velocityNorth"`
	VelocityEast     float32    `json:"velocityEast"`
	VelocityDown     float32    `json:"velocityDown"`
	Speed            float32    `json:"speed"`
	BatteryPercent   float32    `json:"batteryPercent"`
	LandedState      string     `json:"landedState" gorm:"size:16"`
	Mode             string     `json:"mode" gorm:"size:16;index:idx_sample_mode"`
}

func (*TelemetrySample) TableName() string {
	return "telemetry_samples"
}

// ModeTransition is one change of the console's control mode
type ModeTransition struct {
	ID       uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time `json:"time" gorm:"type:timestamptz;"`
	FlightID uint      `json:"flightId" gorm:"index:idx_transition_flight_id"`
	Flight   Flight    `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:FlightID;"`
	FromMode string    `json:"from" gorm:"size:16"`
	ToMode   string    `json:"to" gorm:"size:16"`
	Reason   string    `json:"reason" gorm:"size:255"`
}

func (*ModeTransition) TableName() string {
	return "mode_transitions"
}

// CommandRecord is one command sent to the vehicle
type CommandRecord struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time      `json:"time" gorm:"type:timestamptz;"`
	FlightID   uint           `json:"flightId" gorm:"index:idx_command_flight_id"`
	Flight     Flight         `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:FlightID;"`
	Command    string         `json:"command" gorm:"size:32;index:idx_command_name"`
	Params     datatypes.JSON `json:"params" gorm:"default:'{}'"`
	DurationMs float64        `json:"durationMs"`
	Success    bool           `json:"success"`
	Error      string         `json:"error" gorm:"size:512"`
}

func (*CommandRecord) TableName() string {
	return "command_records"
}
