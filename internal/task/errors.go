package task

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned synchronously when an operation is not
	// allowed in the task's current state, such as starting it twice.
	ErrInvalidState = errors.New("invalid task state")

	// ErrShutdown is returned by New once the manager has been shut down, and
	// by Start on a task the shutdown retired before it ran.
	ErrShutdown = errors.New("task manager is shut down")

	// ErrShutdownTimeout is returned by Shutdown when non-daemon tasks were
	// still running when the wait gave up.
	ErrShutdownTimeout = errors.New("timed out waiting for tasks")

	// ErrNotFinished is returned by Result before the task is terminal.
	ErrNotFinished = errors.New("task not finished")

	// ErrCancelled is the result error of a cancelled task.
	ErrCancelled = errors.New("task cancelled")
)

// WorkError is a failure captured from a work body, either a returned error
// or a recovered panic.
type WorkError struct {
	Task  string
	Err   error
	Panic any
}

func (e *WorkError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("%s panicked: %v", e.Task, e.Panic)
	}
	return fmt.Sprintf("%s failed: %v", e.Task, e.Err)
}

func (e *WorkError) Unwrap() error {
	return e.Err
}

// InterruptedError is a WorkError caused by the task's I/O stream being
// closed or broken underneath it. errors.As finds both this type and the
// WorkError inside it.
type InterruptedError struct {
	WorkError
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("%s interrupted: %v", e.Task, e.Err)
}

func (e *InterruptedError) Unwrap() error {
	return &e.WorkError
}
