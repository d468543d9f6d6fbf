// Package storage defines the flight recorder contract and the link decorator that feeds it.
package storage

import "github.com/skyops/dronectl/pkg/core"

// Backend is the interface all flight recorder implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Flight management (StartFlight assigns the ID to the passed pointer)
	StartFlight(flight *core.Flight) error
	EndFlight() error

	// Recording
	RecordSample(s *core.TelemetrySample) error
	RecordTransition(t *core.ModeTransition) error
	RecordCommand(c *core.CommandRecord) error
}

// Exporter is an optional interface for backends that produce a file when a flight ends.
type Exporter interface {
	ExportedFilePath() string
}

// Discard is the backend used when recording is off.
type Discard struct{}

func (Discard) Init() error                                 { return nil }
func (Discard) Close() error                                { return nil }
func (Discard) StartFlight(*core.Flight) error              { return nil }
func (Discard) EndFlight() error                            { return nil }
func (Discard) RecordSample(*core.TelemetrySample) error    { return nil }
func (Discard) RecordTransition(*core.ModeTransition) error { return nil }
func (Discard) RecordCommand(*core.CommandRecord) error     { return nil }
