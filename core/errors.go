package core

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrSlotAlreadySet      = errors.New("context field already set")
	ErrLatencyRecorded     = errors.New("latency already recorded")
	ErrBatchAlreadyRun     = errors.New("batch already run")
	ErrPreconditionTimeout = errors.New("precondition wait timed out")
	ErrUpstreamFailed      = errors.New("awaited field was failed by its producer")
	ErrActionPanicked      = errors.New("action panicked")
)

// ActionError is returned by a batch when the function of one of its actions
// fails. It carries the name of the action so the caller can tell which step
// of the workflow broke.
type ActionError struct {
	Action string // Name of the failed action
	Err    error  // Error returned by the action function
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// ValidationError lists every wiring problem found when a batch is built.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid batch: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}
