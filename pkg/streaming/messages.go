// Package streaming defines the JSON protocol between the console and a ground station.
// Every message is an Envelope; start and end of a flight are acknowledged by the server.
package streaming

import (
	"encoding/json"

	"github.com/skyops/dronectl/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartFlight     = "start_flight"
	TypeEndFlight       = "end_flight"
	TypeTelemetrySample = "telemetry_sample"
	TypeModeTransition  = "mode_transition"
	TypeCommand         = "command"
	TypeAck             = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type  string `json:"type"`            // always "ack"
	For   string `json:"for"`             // the message type being acknowledged
	Error string `json:"error,omitempty"` // set when the server rejected the message
}

// StartFlightPayload carries the flight header.
type StartFlightPayload struct {
	Flight *core.Flight `json:"flight"`
}
