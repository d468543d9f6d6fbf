// pkg/core/flight.go
package core

import "time"

// Flight is one console session against one vehicle, from connect to exit.
type Flight struct {
	ID             uint
	StartTime      time.Time
	EndTime        time.Time
	LinkType       string
	Endpoint       string
	VehicleSystem  uint8
	ConsoleVersion string
	Params         map[string]any
}
