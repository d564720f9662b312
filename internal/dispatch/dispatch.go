// Package dispatch provides delivery contexts: the goroutine or queue on
// which callbacks are run.
package dispatch

import (
	"sync"
)

// Dispatcher runs fn on some delivery context.
type Dispatcher interface {
	Dispatch(fn func())
}

// Func adapts a function to a Dispatcher.
type Func func(fn func())

// Dispatch calls f(fn).
func (f Func) Dispatch(fn func()) {
	f(fn)
}

type immediate struct{}

func (immediate) Dispatch(fn func()) {
	fn()
}

// Immediate runs callbacks synchronously on whichever goroutine dispatches
// them. For tasks that is the worker goroutine.
var Immediate Dispatcher = immediate{}

// Queue is a serialized FIFO event queue drained by a single goroutine.
// Dispatch never blocks: the backlog grows as needed.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	closed  bool
	done    chan struct{}
}

// NewQueue starts a queue and its draining goroutine.
func NewQueue() *Queue {
	q := &Queue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

// Dispatch enqueues fn. After Close, fn is dropped.
func (q *Queue) Dispatch(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, fn)
	q.cond.Signal()
}

// Close stops accepting new callbacks. Everything already queued still runs.
// Close returns once the queue has drained, so it must not be called from a
// queued callback.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.cond.Signal()
	}
	q.mu.Unlock()
	<-q.done
}

// Done is closed after the queue has been closed and drained.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
	}
}
