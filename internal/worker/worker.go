// Package worker runs cancellable background goroutines with a cooperative stop flag and a join.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a handle to one background goroutine. The goroutine is expected to poll Running (or
// use Sleep) and return once it reports false. Stop clears the flag and blocks until the
// goroutine has returned.
type Task struct {
	name    string
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
}

// Start launches fn on a new goroutine and returns its handle.
func Start(name string, fn func(t *Task)) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		name:    name,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
	}
	t.running.Store(true)

	go func() {
		defer close(t.done)
		defer cancel()
		fn(t)
	}()
	return t
}

func (t *Task) Name() string { return t.name }

// Running reports whether the task has not been asked to stop.
func (t *Task) Running() bool {
	return t.running.Load()
}

// Context is cancelled when the task is stopped or returns.
func (t *Task) Context() context.Context {
	return t.ctx
}

// Sleep waits for d or until the task is stopped. It returns false if the task was stopped.
func (t *Task) Sleep(d time.Duration) bool {
	if !t.Running() {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return t.Running()
	case <-t.stop:
		return false
	}
}

// Signal asks the goroutine to stop without waiting for it.
func (t *Task) Signal() {
	t.once.Do(func() {
		t.running.Store(false)
		close(t.stop)
		t.cancel()
	})
}

// Stop signals the goroutine and joins it. Calling Stop from the task's own goroutine
// would deadlock; use Signal there.
func (t *Task) Stop() {
	t.Signal()
	<-t.done
}

// Done is closed once the goroutine has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Uptime is the time since the task was started.
func (t *Task) Uptime() time.Duration {
	return time.Since(t.started)
}
