// Package gormstorage implements the storage.Backend interface on any gorm database with
// write-behind queues drained by a background writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/skyops/dronectl/internal/database"
	"github.com/skyops/dronectl/internal/model"
	"github.com/skyops/dronectl/internal/model/convert"
	"github.com/skyops/dronectl/internal/queue"
	"github.com/skyops/dronectl/pkg/core"
)

// DefaultFlushInterval is how often queued records are written.
const DefaultFlushInterval = 2 * time.Second

// ErrNoFlight is returned when records arrive before StartFlight.
var ErrNoFlight = errors.New("no flight started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	Samples     *queue.Queue[model.TelemetrySample]
	Transitions *queue.Queue[model.ModeTransition]
	Commands    *queue.Queue[model.CommandRecord]
}

func newQueues() *queues {
	return &queues{
		Samples:     queue.New[model.TelemetrySample](),
		Transitions: queue.New[model.ModeTransition](),
		Commands:    queue.New[model.CommandRecord](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	queues   *queues
	flightID atomic.Uint64

	// writeMu serializes queue drains between the writer goroutine and explicit flushes.
	writeMu  sync.Mutex
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// DB returns the underlying database.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema and starts the writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend: no database")
	}
	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Dialector.Name())
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}

	b.stopChan = make(chan struct{})
	b.doneChan = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the writer goroutine after a final drain.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() { close(b.stopChan) })
	<-b.doneChan
	return b.Flush()
}

// StartFlight inserts the flight synchronously so its ID can stamp every queued record.
func (b *Backend) StartFlight(flight *core.Flight) error {
	row := convert.CoreToFlight(*flight)
	row.ID = 0
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert flight: %w", err)
	}
	flight.ID = row.ID
	b.flightID.Store(uint64(row.ID))
	b.deps.Logger.Info("Flight started", "flightId", row.ID)
	return nil
}

// EndFlight drains the queues and stamps the flight's end time.
func (b *Backend) EndFlight() error {
	id := uint(b.flightID.Load())
	if id == 0 {
		return ErrNoFlight
	}
	if err := b.Flush(); err != nil {
		return err
	}
	if err := b.deps.DB.Model(&model.Flight{}).Where("id = ?", id).
		Update("end_time", time.Now().UTC()).Error; err != nil {
		return fmt.Errorf("failed to close flight %d: %w", id, err)
	}
	b.flightID.Store(0)
	return nil
}

// FlightID is the ID of the open flight, 0 if none.
func (b *Backend) FlightID() uint {
	return uint(b.flightID.Load())
}

// RecordSample converts and queues a telemetry sample.
func (b *Backend) RecordSample(s *core.TelemetrySample) error {
	if b.flightID.Load() == 0 {
		return ErrNoFlight
	}
	b.queues.Samples.Push(convert.CoreToTelemetrySample(*s))
	return nil
}

// RecordTransition converts and queues a mode transition.
func (b *Backend) RecordTransition(t *core.ModeTransition) error {
	if b.flightID.Load() == 0 {
		return ErrNoFlight
	}
	b.queues.Transitions.Push(convert.CoreToModeTransition(*t))
	return nil
}

// RecordCommand converts and queues a command record.
func (b *Backend) RecordCommand(c *core.CommandRecord) error {
	if b.flightID.Load() == 0 {
		return ErrNoFlight
	}
	b.queues.Commands.Push(convert.CoreToCommandRecord(*c))
	return nil
}

// Flush writes everything queued so far.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	flightID := uint(b.flightID.Load())
	return errors.Join(
		writeQueue(b.deps.DB, b.queues.Samples, "telemetry samples", func(items []model.TelemetrySample) {
			for i := range items {
				items[i].FlightID = flightID
			}
		}),
		writeQueue(b.deps.DB, b.queues.Transitions, "mode transitions", func(items []model.ModeTransition) {
			for i := range items {
				items[i].FlightID = flightID
			}
		}),
		writeQueue(b.deps.DB, b.queues.Commands, "command records", func(items []model.CommandRecord) {
			for i := range items {
				items[i].FlightID = flightID
			}
		}),
	)
}

// writeQueue writes all items from a queue in one transaction. On failure the items go
// back to the head of the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, prepare func([]T)) error {
	if q.Empty() {
		return nil
	}

	items := q.GetAndEmpty()
	if prepare != nil {
		prepare(items)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
	if err != nil {
		q.Requeue(items...)
		return fmt.Errorf("error creating %s: %w", name, err)
	}
	return nil
}

func (b *Backend) writeLoop() {
	defer close(b.doneChan)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("DB write failed", "error", err)
				continue
			}
			b.deps.Logger.Debug("DB write cycle", "duration", time.Since(start))
		}
	}
}
