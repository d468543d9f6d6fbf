// Package memory keeps a flight's records in memory and exports them as a JSON document when
// the flight ends.
package memory

import (
	"sync"

	"github.com/skyops/dronectl/internal/config"
	"github.com/skyops/dronectl/pkg/core"
)

// Backend stores flight data in memory and exports to JSON
type Backend struct {
	cfg    config.MemoryConfig
	flight *core.Flight

	samples     []core.TelemetrySample
	transitions []core.ModeTransition
	commands    []core.CommandRecord

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartFlight begins recording a new flight and discards anything left from the previous one.
func (b *Backend) StartFlight(flight *core.Flight) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	flight.ID = b.idCounter
	b.flight = flight

	b.samples = nil
	b.transitions = nil
	b.commands = nil
	b.lastExportPath = ""
	return nil
}

// EndFlight finalizes and exports the flight data
func (b *Backend) EndFlight() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.flight == nil {
		return nil
	}
	if err := b.exportJSON(); err != nil {
		return err
	}
	b.flight = nil
	return nil
}

// ExportedFilePath returns the file written by the last EndFlight.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// RecordSample records a telemetry sample; samples outside a flight are ignored.
func (b *Backend) RecordSample(s *core.TelemetrySample) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flight != nil {
		b.samples = append(b.samples, *s)
	}
	return nil
}

// RecordTransition records a mode transition
func (b *Backend) RecordTransition(t *core.ModeTransition) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flight != nil {
		b.transitions = append(b.transitions, *t)
	}
	return nil
}

// RecordCommand records a vehicle command
func (b *Backend) RecordCommand(c *core.CommandRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flight != nil {
		b.commands = append(b.commands, *c)
	}
	return nil
}
