// Package task runs units of work off the caller's goroutine and reports
// their lifecycle through ordered callbacks.
//
// Every run delivers exactly one of these sequences through the dispatcher
// passed to Start:
//
//	BeforeStart, Started, OK, Stopped
//	BeforeStart, Started, Error, Stopped
//	BeforeStart, Started, Cancelled, Stopped
//
// Cancellation is cooperative. The work body sees it through ctx and
// Control.Cancelled and is expected to return promptly; a body that ignores
// both runs to completion and is then reported as cancelled.
package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/spiffcs/staticmap/internal/dispatch"
	"github.com/spiffcs/staticmap/internal/log"
	"github.com/spiffcs/staticmap/internal/notify"
)

// Work is a task body. The returned value is only delivered when the task
// was not cancelled.
type Work[T any] func(ctx context.Context, c *Control) (T, error)

// Handler holds the lifecycle callbacks. Nil fields are skipped.
type Handler[T any] struct {
	BeforeStart func(t *Task[T])
	Started     func(t *Task[T])
	OK          func(t *Task[T], v T, elapsed time.Duration)
	// Interrupted runs just before Error when the work failed because its
	// notification stream broke.
	Interrupted func(t *Task[T], err error)
	Error       func(t *Task[T], err error, elapsed time.Duration)
	Cancelled   func(t *Task[T], elapsed time.Duration)
	Stopped     func(t *Task[T], elapsed time.Duration)
}

// Control is the work body's view of its own task.
type Control struct {
	id        string
	name      string
	ch        *notify.Channel
	cancelled *atomic.Bool
}

// Cancelled reports whether cancellation has been requested.
func (c *Control) Cancelled() bool {
	return c.cancelled.Load()
}

// Channel returns the task's notification channel.
func (c *Control) Channel() *notify.Channel {
	return c.ch
}

// Name returns the task name.
func (c *Control) Name() string {
	return c.name
}

// ID returns the task ID.
func (c *Control) ID() string {
	return c.id
}

type options struct {
	channel *notify.Channel
	now     func() time.Time
}

// Option configures a task.
type Option func(*options)

// WithChannel uses ch instead of a fresh notification channel.
func WithChannel(ch *notify.Channel) Option {
	return func(o *options) {
		o.channel = ch
	}
}

// WithClock overrides the time source used for elapsed durations.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Task is a handle to one unit of work.
type Task[T any] struct {
	id      string
	name    string
	kind    Kind
	work    Work[T]
	ch      *notify.Channel
	manager *Manager
	now     func() time.Time

	cancelled atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc

	mu      sync.Mutex
	state   State
	history []State
	started bool
	retired bool
	value   T
	err     error
	elapsed time.Duration

	done chan struct{}
}

// New creates a task and registers it with m. A nil manager leaves the task
// unregistered.
func New[T any](m *Manager, name string, kind Kind, work Work[T], opts ...Option) (*Task[T], error) {
	if work == nil {
		return nil, fmt.Errorf("%w: task %q has no work", ErrInvalidState, name)
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.channel == nil {
		o.channel = notify.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Task[T]{
		id:      ulid.Make().String(),
		name:    name,
		kind:    kind,
		work:    work,
		ch:      o.channel,
		manager: m,
		now:     o.now,
		ctx:     ctx,
		cancel:  cancel,
		state:   Created,
		history: []State{Created},
		done:    make(chan struct{}),
	}

	if m != nil {
		if err := m.register(t); err != nil {
			cancel()
			return nil, err
		}
	}

	log.Trace("task created", "id", t.id, "name", name, "kind", kind)
	return t, nil
}

// ID returns the task's unique identifier.
func (t *Task[T]) ID() string {
	return t.id
}

// Name returns the human-readable task name.
func (t *Task[T]) Name() string {
	return t.name
}

// Kind returns the shutdown policy of the task.
func (t *Task[T]) Kind() Kind {
	return t.kind
}

// Channel returns the task's notification channel.
func (t *Task[T]) Channel() *notify.Channel {
	return t.ch
}

// State returns the current state.
func (t *Task[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// History returns every state the task has been in, in order.
func (t *Task[T]) History() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]State, len(t.history))
	copy(out, t.history)
	return out
}

// Started reports whether Start has been called.
func (t *Task[T]) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// CancelRequested reports whether Cancel has been called.
func (t *Task[T]) CancelRequested() bool {
	return t.cancelled.Load()
}

// Result returns the outcome after the task is terminal.
func (t *Task[T]) Result() (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	switch t.state {
	case OK:
		return t.value, nil
	case Error:
		return zero, t.err
	case Cancelled:
		return zero, ErrCancelled
	default:
		return zero, ErrNotFinished
	}
}

// Elapsed returns the run time recorded at the terminal transition.
func (t *Task[T]) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// Done is closed once the Stopped callback has been dispatched.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until Done is closed or ctx ends.
func (t *Task[T]) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel requests cancellation. Cancelling a terminal task does nothing.
// Cancelling before Start makes Start report the task as cancelled without
// running the work.
func (t *Task[T]) Cancel() error {
	if t == nil {
		return fmt.Errorf("%w: cancel on nil task", ErrInvalidState)
	}
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return nil
	}
	t.cancelled.Store(true)
	t.mu.Unlock()

	t.cancel()
	log.Trace("task cancel requested", "id", t.id, "name", t.name)
	return nil
}

// Start runs the work on a new goroutine. Every callback in h goes through d;
// a nil d means dispatch.Immediate. BeforeStart is dispatched before Start
// returns and the work does not begin until it has run, so listeners it
// subscribes see every event. Starting a task twice returns ErrInvalidState;
// starting one that a manager shutdown retired returns ErrShutdown.
func (t *Task[T]) Start(h Handler[T], d dispatch.Dispatcher) error {
	if t == nil {
		return fmt.Errorf("%w: start on nil task", ErrInvalidState)
	}
	t.mu.Lock()
	if t.retired {
		t.mu.Unlock()
		return fmt.Errorf("cannot start task %q: %w", t.name, ErrShutdown)
	}
	if t.started {
		t.mu.Unlock()
		return fmt.Errorf("%w: task %q already started", ErrInvalidState, t.name)
	}
	t.started = true
	t.mu.Unlock()

	if d == nil {
		d = dispatch.Immediate
	}

	begin := t.now()
	ready := make(chan struct{})
	d.Dispatch(func() {
		defer close(ready)
		if h.BeforeStart != nil {
			h.BeforeStart(t)
		}
	})

	go t.run(h, d, begin, ready)
	return nil
}

func (t *Task[T]) run(h Handler[T], d dispatch.Dispatcher, begin time.Time, ready <-chan struct{}) {
	defer func() {
		if t.manager != nil {
			t.manager.remove(t.id)
		}
	}()

	// a dispatcher that dropped BeforeStart would hold us here forever, so
	// cancellation also releases the wait
	select {
	case <-ready:
	case <-t.ctx.Done():
	}

	t.transition(Running)
	d.Dispatch(func() {
		if h.Started != nil {
			h.Started(t)
		}
	})

	var (
		v   T
		err error
	)
	if !t.cancelled.Load() {
		v, err = t.invoke()
	}
	elapsed := t.now().Sub(begin)

	switch {
	case t.cancelled.Load():
		t.finish(Cancelled, v, nil, elapsed)
		log.Debug("task cancelled", "id", t.id, "name", t.name, "elapsed", elapsed)
		d.Dispatch(func() {
			if h.Cancelled != nil {
				h.Cancelled(t, elapsed)
			}
		})
	case err != nil:
		err = t.classify(err)
		t.finish(Error, v, err, elapsed)
		log.Debug("task failed", "id", t.id, "name", t.name, "elapsed", elapsed, "error", err)
		var ie *InterruptedError
		if errors.As(err, &ie) {
			d.Dispatch(func() {
				if h.Interrupted != nil {
					h.Interrupted(t, err)
				}
			})
		}
		d.Dispatch(func() {
			if h.Error != nil {
				h.Error(t, err, elapsed)
			}
		})
	default:
		t.finish(OK, v, nil, elapsed)
		log.Debug("task finished", "id", t.id, "name", t.name, "elapsed", elapsed)
		d.Dispatch(func() {
			if h.OK != nil {
				h.OK(t, v, elapsed)
			}
		})
	}

	// stopped must be the last thing any subscriber sees
	t.ch.Detach()
	d.Dispatch(func() {
		if h.Stopped != nil {
			h.Stopped(t, elapsed)
		}
	})
	t.cancel()
	close(t.done)
}

func (t *Task[T]) retire() bool {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return false
	}
	t.started = true
	t.retired = true
	t.cancelled.Store(true)
	t.state = Cancelled
	t.history = append(t.history, Cancelled)
	t.mu.Unlock()

	t.ch.Detach()
	t.cancel()
	close(t.done)
	log.Debug("task retired before start", "id", t.id, "name", t.name)
	return true
}

func (t *Task[T]) invoke() (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug("task panicked", "id", t.id, "name", t.name, "panic", r, "stack", string(debug.Stack()))
			err = &WorkError{Task: t.name, Panic: r}
		}
	}()
	c := &Control{id: t.id, name: t.name, ch: t.ch, cancelled: &t.cancelled}
	return t.work(t.ctx, c)
}

// classify turns a work error into a WorkError, routing stream breaks
// through the Interrupted state.
func (t *Task[T]) classify(err error) error {
	var we *WorkError
	if errors.As(err, &we) && we.Panic != nil {
		return we
	}
	if errors.Is(err, notify.ErrInterrupted) {
		t.transition(Interrupted)
		return &InterruptedError{WorkError{Task: t.name, Err: err}}
	}
	if errors.As(err, &we) {
		return err
	}
	return &WorkError{Task: t.name, Err: err}
}

func (t *Task[T]) transition(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
	t.history = append(t.history, s)
}

func (t *Task[T]) finish(s State, v T, err error, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
	t.history = append(t.history, s)
	t.elapsed = elapsed
	if s == OK {
		t.value = v
	}
	t.err = err
}
