package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event represents an operator command or a recorder event.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
	// Data carries a typed payload for events raised inside the process.
	Data any
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Kind classifies how a handler runs relative to the dispatch loop.
type Kind int

const (
	// KindPlain handlers run inline and return quickly.
	KindPlain Kind = iota
	// KindBlocking handlers run a whole vehicle sequence inline; the caller waits for it.
	KindBlocking
	// KindTask handlers hand work to a background task and return once it has started.
	KindTask
	// KindBuffered handlers run on their own goroutine fed by a queue.
	KindBuffered
)

func (k Kind) String() string {
	switch k {
	case KindBlocking:
		return "blocking"
	case KindTask:
		return "task"
	case KindBuffered:
		return "buffered"
	default:
		return "plain"
	}
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	kind       Kind
	logged     bool
}

// Buffered makes the handler async with a queue of the given size. Events are dropped when the
// queue is full.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
		c.kind = KindBuffered
	}
}

// Blocking marks a handler that runs a synchronous vehicle sequence.
func Blocking() Option {
	return func(c *config) {
		c.kind = KindBlocking
	}
}

// SpawnsTask marks a handler that starts a background mission task.
func SpawnsTask() Option {
	return func(c *config) {
		c.kind = KindTask
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type registration struct {
	handler HandlerFunc
	kind    Kind
}

// Dispatcher routes events to registered handlers. Inline handlers are serialized: at most one
// runs at a time, in the order Dispatch was called.
type Dispatcher struct {
	handlers map[string]registration
	logger   Logger

	serial sync.Mutex

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter

	// Track buffers for gauge callback
	mu      sync.RWMutex
	buffers map[string]chan Event

	// pending counts queued events that have not been handled yet
	pending atomic.Int64
}

// drainPollInterval is how often Drain checks the buffered queues.
const drainPollInterval = 10 * time.Millisecond

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]registration),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}

	// Get meter from global OTel provider (returns no-op if not configured)
	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.events.failed",
		metric.WithDescription("Total events whose handler returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
// Registration is not safe for concurrent use with Dispatch.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withMetrics(command, cfg.kind, h)

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(command, cfg.bufferSize, handler)
	}

	if cfg.logged {
		handler = d.withLogging(command, cfg.kind, handler)
	}

	d.handlers[command] = registration{handler: handler, kind: cfg.kind}
}

// Dispatch routes an event to its registered handler. Buffered handlers return immediately
// with "queued"; all other handlers run on the calling goroutine, one at a time.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	r, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if r.kind == KindBuffered {
		return r.handler(e)
	}

	d.serial.Lock()
	defer d.serial.Unlock()
	return r.handler(e)
}

// Drain waits until every event queued on a buffered handler has been handled, or ctx is done.
func (d *Dispatcher) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for d.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("draining %d queued events: %w", d.pending.Load(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Kind returns the request kind a command was registered with.
func (d *Dispatcher) Kind(command string) (Kind, bool) {
	r, ok := d.handlers[command]
	return r.kind, ok
}

func (d *Dispatcher) withMetrics(command string, kind Kind, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("kind", kind.String()),
	)
	return func(e Event) (any, error) {
		result, err := h(e)
		d.processed.Add(context.Background(), 1, attrs)
		if err != nil {
			d.failed.Add(context.Background(), 1, attrs)
		}
		return result, err
	}
}

func (d *Dispatcher) withBuffer(command string, size int, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	cmdAttr := attribute.String("command", command)

	go func() {
		for e := range buffer {
			h(e)
			d.pending.Add(-1)
		}
	}()

	return func(e Event) (any, error) {
		d.pending.Add(1)
		select {
		case buffer <- e:
			return "queued", nil
		default:
			d.pending.Add(-1)
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			return nil, fmt.Errorf("queue full: %s", command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, kind Kind, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "kind", kind.String(), "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
