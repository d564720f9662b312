package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spiffcs/staticmap/internal/constants"
	"github.com/spiffcs/staticmap/internal/log"
)

// handle is the type-erased view of a Task the manager keeps.
type handle interface {
	ID() string
	Name() string
	Kind() Kind
	State() State
	Started() bool
	Cancel() error
	Done() <-chan struct{}
	// retire makes a never-started task terminal. It reports false when the
	// task had already been started.
	retire() bool
}

// Info describes an outstanding task.
type Info struct {
	ID    string
	Name  string
	Kind  Kind
	State State
}

// ShutdownReport lists what Shutdown did with each outstanding task.
type ShutdownReport struct {
	// Daemon tasks were cancelled and not waited for.
	Daemon []string
	// Finished non-daemon tasks reached a terminal state during the wait.
	Finished []string
	// Unstarted non-daemon tasks were never started. They end Cancelled
	// without running and can no longer be started.
	Unstarted []string
	// Abandoned non-daemon tasks were still running when the wait gave up.
	Abandoned []string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithShutdownTimeout bounds how long Shutdown waits for non-daemon tasks.
func WithShutdownTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.shutdownTimeout = d
		}
	}
}

// Manager is the registry of outstanding tasks. Tasks register themselves in
// New and leave once they are terminal.
type Manager struct {
	mu              sync.Mutex
	tasks           map[string]handle
	order           []string
	closed          bool
	shutdownTimeout time.Duration
}

// NewManager creates an empty registry.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		tasks:           make(map[string]handle),
		shutdownTimeout: constants.DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) register(h handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("cannot create task %q: %w", h.Name(), ErrShutdown)
	}
	m.tasks[h.ID()] = h
	m.order = append(m.order, h.ID())
	return nil
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return
	}
	delete(m.tasks, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Manager) snapshot() []handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]handle, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id])
	}
	return out
}

// Outstanding lists registered tasks that are not yet terminal, in creation
// order.
func (m *Manager) Outstanding() []Info {
	var out []Info
	for _, h := range m.snapshot() {
		s := h.State()
		if s.Terminal() {
			continue
		}
		out = append(out, Info{ID: h.ID(), Name: h.Name(), Kind: h.Kind(), State: s})
	}
	return out
}

// Closed reports whether Shutdown has been called.
func (m *Manager) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Shutdown stops accepting tasks, cancels every outstanding task and waits
// for the running non-daemon ones. The wait ends at the shutdown timeout or
// when ctx ends, whichever comes first; in that case the report lists the
// abandoned tasks and the error wraps ErrShutdownTimeout.
func (m *Manager) Shutdown(ctx context.Context) (ShutdownReport, error) {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	var (
		report  ShutdownReport
		waitFor []handle
	)
	for _, h := range m.snapshot() {
		if h.State().Terminal() {
			continue
		}
		_ = h.Cancel()
		retired := h.retire()
		if retired {
			m.remove(h.ID())
		}
		switch {
		case h.Kind() == Daemon:
			report.Daemon = append(report.Daemon, h.ID())
		case retired:
			report.Unstarted = append(report.Unstarted, h.ID())
		default:
			waitFor = append(waitFor, h)
		}
	}

	log.Debug("shutting down tasks", "daemon", len(report.Daemon), "waiting", len(waitFor), "timeout", m.shutdownTimeout)
	if len(waitFor) == 0 {
		return report, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
	defer cancel()

	finished := make([]bool, len(waitFor))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range waitFor {
		g.Go(func() error {
			select {
			case <-h.Done():
				finished[i] = true
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	err := g.Wait()

	for i, h := range waitFor {
		if finished[i] {
			report.Finished = append(report.Finished, h.ID())
		} else {
			report.Abandoned = append(report.Abandoned, h.ID())
		}
	}

	if err != nil && len(report.Abandoned) > 0 {
		for _, h := range waitFor {
			if !h.State().Terminal() {
				log.Warn("abandoning task at shutdown", "id", h.ID(), "name", h.Name())
			}
		}
		return report, fmt.Errorf("%w: %d task(s) still running: %w", ErrShutdownTimeout, len(report.Abandoned), err)
	}
	return report, nil
}
