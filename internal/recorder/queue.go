package recorder

import (
	"context"
	"fmt"

	"github.com/skyops/dronectl/internal/dispatcher"
	"github.com/skyops/dronectl/internal/storage"
	"github.com/skyops/dronectl/pkg/core"
)

// Dispatcher commands of the recording queues.
const (
	CmdSample     = ":RECORD:SAMPLE:"
	CmdCommand    = ":RECORD:COMMAND:"
	CmdTransition = ":RECORD:TRANSITION:"
)

// Queue sizes per record kind. Samples arrive at the monitor rate and are dropped first.
const (
	SampleQueueSize     = 1000
	CommandQueueSize    = 500
	TransitionQueueSize = 100
)

// Queued hands every record to a buffered dispatcher command so a slow backend never stalls
// the monitor or the vehicle sequences. Flight lifecycle calls go straight to the backend.
type Queued struct {
	storage.Backend
	d *dispatcher.Dispatcher
}

// NewQueued registers the recording commands on d and returns the queued recorder.
func NewQueued(backend storage.Backend, d *dispatcher.Dispatcher) *Queued {
	q := &Queued{Backend: backend, d: d}

	d.Register(CmdSample, q.handleSample, dispatcher.Buffered(SampleQueueSize), dispatcher.Logged())
	d.Register(CmdCommand, q.handleCommand, dispatcher.Buffered(CommandQueueSize), dispatcher.Logged())
	d.Register(CmdTransition, q.handleTransition, dispatcher.Buffered(TransitionQueueSize), dispatcher.Logged())
	return q
}

func (q *Queued) RecordSample(s *core.TelemetrySample) error {
	return q.enqueue(CmdSample, s)
}

func (q *Queued) RecordCommand(c *core.CommandRecord) error {
	return q.enqueue(CmdCommand, c)
}

func (q *Queued) RecordTransition(t *core.ModeTransition) error {
	return q.enqueue(CmdTransition, t)
}

// Flush waits until every queued record has reached the backend.
func (q *Queued) Flush(ctx context.Context) error {
	return q.d.Drain(ctx)
}

func (q *Queued) enqueue(cmd string, data any) error {
	_, err := q.d.Dispatch(dispatcher.Event{Command: cmd, Data: data})
	return err
}

func (q *Queued) handleSample(e dispatcher.Event) (any, error) {
	s, ok := e.Data.(*core.TelemetrySample)
	if !ok {
		return nil, fmt.Errorf("unexpected sample payload %T", e.Data)
	}
	return nil, q.Backend.RecordSample(s)
}

func (q *Queued) handleCommand(e dispatcher.Event) (any, error) {
	c, ok := e.Data.(*core.CommandRecord)
	if !ok {
		return nil, fmt.Errorf("unexpected command payload %T", e.Data)
	}
	return nil, q.Backend.RecordCommand(c)
}

func (q *Queued) handleTransition(e dispatcher.Event) (any, error) {
	t, ok := e.Data.(*core.ModeTransition)
	if !ok {
		return nil, fmt.Errorf("unexpected transition payload %T", e.Data)
	}
	return nil, q.Backend.RecordTransition(t)
}
