package coop

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

var (
	// ErrInvalidState is matched by the error returned when a Task that has
	// already completed is advanced again.
	ErrInvalidState = errors.New("coop: task advanced after completion")

	// ErrUncapturedRead is matched by the error returned by [Builder.Build]
	// when a step reads a variable that no earlier step writes.
	ErrUncapturedRead = errors.New("coop: variable read before it is written")

	// ErrTimeout is the failure of a [Timeout] task whose inner task did not
	// complete in time.
	ErrTimeout = errors.New("coop: task timed out")

	// ErrAbandoned is returned by [RunToCompletion] when the task was
	// abandoned before it completed.
	ErrAbandoned = errors.New("coop: task abandoned")

	// ErrBusy is returned when a [Scheduler] is run while it is already
	// running, e.g. from inside one of its own tasks.
	ErrBusy = errors.New("coop: scheduler is already running")
)

// An InvalidStateError reports an attempt to advance a Task that is already
// in a terminal state. It is a programming defect, not a task failure.
type InvalidStateError struct {
	Task  string
	State string
}

func (e *InvalidStateError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("coop: task advanced in terminal state %q", e.State)
	}
	return fmt.Sprintf("coop: task %q advanced in terminal state %q", e.Task, e.State)
}

// Is makes errors.Is(err, ErrInvalidState) hold for any *InvalidStateError.
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

func invalidState(task, state string) error {
	return withStackTrace(&InvalidStateError{Task: task, State: state})
}

// withStackTrace wraps err in an error that records the current call stack.
// If err already carries a stack trace, it is returned unchanged.
func withStackTrace(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, 1)
}

func errorf(format string, args ...any) error {
	return goerrors.Wrap(fmt.Errorf(format, args...), 1)
}

// ErrorStack returns the message of err followed by the call stack recorded
// when the engine created it. Errors not created by the engine are returned
// with the stack of the first wrapper found, or with no stack at all.
func ErrorStack(err error) string {
	if err == nil {
		return ""
	}
	var goerr *goerrors.Error
	if errors.As(err, &goerr) {
		return goerr.ErrorStack()
	}
	return err.Error()
}
