package task

import "fmt"

// State is a task lifecycle state.
type State int

const (
	Created State = iota
	Running
	OK
	Error
	Cancelled
	// Interrupted is transient: the task passes through it on its way to
	// Error when its I/O stream breaks.
	Interrupted
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case OK:
		return "ok"
	case Error:
		return "error"
	case Cancelled:
		return "cancelled"
	case Interrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == OK || s == Error || s == Cancelled
}

// Kind decides how the manager treats a task at shutdown.
type Kind int

const (
	// Daemon tasks are cancelled and abandoned at shutdown.
	Daemon Kind = iota
	// NonDaemon tasks are cancelled and waited for.
	NonDaemon
)

func (k Kind) String() string {
	switch k {
	case Daemon:
		return "daemon"
	case NonDaemon:
		return "non-daemon"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}
