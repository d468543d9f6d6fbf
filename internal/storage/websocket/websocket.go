// Package websocket streams a flight to a ground station over a WebSocket. Start and end of
// the flight wait for a server ack; everything else is fire-and-forget.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/skyops/dronectl/pkg/core"
	"github.com/skyops/dronectl/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams flight data over WebSocket to a ground station.
// It implements storage.Backend but not storage.Exporter.
type Backend struct {
	conn         *connection
	cfg          Config
	nextFlightID atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Connected reports whether the stream is currently up.
func (b *Backend) Connected() bool {
	return b.conn.connected()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartFlight assigns the flight ID, sends the flight header and waits for the server ack.
func (b *Backend) StartFlight(flight *core.Flight) error {
	flight.ID = uint(b.nextFlightID.Add(1))

	data, err := marshalEnvelope(streaming.TypeStartFlight, streaming.StartFlightPayload{Flight: flight})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartFlight, ackTimeout)
}

// EndFlight sends end_flight and waits for server ack.
func (b *Backend) EndFlight() error {
	data, err := marshalEnvelope(streaming.TypeEndFlight, nil)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndFlight, ackTimeout)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()

	return err
}

func (b *Backend) RecordSample(s *core.TelemetrySample) error {
	return b.sendEnvelope(streaming.TypeTelemetrySample, s)
}

func (b *Backend) RecordTransition(t *core.ModeTransition) error {
	return b.sendEnvelope(streaming.TypeModeTransition, t)
}

func (b *Backend) RecordCommand(c *core.CommandRecord) error {
	return b.sendEnvelope(streaming.TypeCommand, c)
}
