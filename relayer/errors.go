package relayer

import (
	"errors"
	"fmt"
)

var (
	// ErrSubmissionFailed is returned when a batch exhausts its submit
	// attempts. The relayer halts rather than skip heights.
	ErrSubmissionFailed = errors.New("submission failed")

	// ErrTaskPanicked is the sentinel matched by TaskPanicError.
	ErrTaskPanicked = errors.New("task panicked")

	// ErrJournalMissing is returned on startup when a pending submission has
	// no journaled payload to resubmit.
	ErrJournalMissing = errors.New("journaled batch missing")
)

// TaskPanicError carries the panic value and stack of a relayer task.
type TaskPanicError struct {
	Task  string
	Value any
	Stack []byte
}

func (e *TaskPanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.Task, e.Value)
}

// Unwrap returns ErrTaskPanicked, or the panic value when it is an error.
func (e *TaskPanicError) Unwrap() []error {
	if err, ok := e.Value.(error); ok {
		return []error{ErrTaskPanicked, err}
	}
	return []error{ErrTaskPanicked}
}
