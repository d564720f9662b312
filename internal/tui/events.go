package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/spiffcs/staticmap/internal/constants"
	"github.com/spiffcs/staticmap/internal/dispatch"
	"github.com/spiffcs/staticmap/internal/task"
)

// callbackMsg carries a task or notification callback onto the event loop.
// Update runs it.
type callbackMsg func()

// fetchMsg asks the model to fetch the current viewport.
type fetchMsg struct{}

// shutdownMsg reports the result of Manager.Shutdown.
type shutdownMsg struct {
	report task.ShutdownReport
	err    error
}

// savedMsg reports a finished PNG write.
type savedMsg struct {
	path string
	err  error
}

// waypointMsg reports a finished waypoint write.
type waypointMsg struct {
	name string
	err  error
}

// tickMsg refreshes elapsed times while a fetch runs.
type tickMsg time.Time

// Sender is the part of *tea.Program the dispatcher needs.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramDispatcher marshals callbacks onto a bubbletea event loop. Dispatch
// never blocks: callbacks are queued and a single goroutine forwards them to
// the program, so Send is never called from inside Update.
type ProgramDispatcher struct {
	queue  *dispatch.Queue
	sender Sender
}

// NewProgramDispatcher creates a dispatcher that delivers through s.
func NewProgramDispatcher(s Sender) *ProgramDispatcher {
	return &ProgramDispatcher{
		queue:  dispatch.NewQueue(),
		sender: s,
	}
}

// Dispatch queues fn for the event loop.
func (d *ProgramDispatcher) Dispatch(fn func()) {
	d.queue.Dispatch(func() {
		d.sender.Send(callbackMsg(fn))
	})
}

// Close stops accepting callbacks and waits for the backlog to be forwarded.
func (d *ProgramDispatcher) Close() {
	d.queue.Close()
}

func tick() tea.Cmd {
	return tea.Tick(constants.TUIUpdateInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
