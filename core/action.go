package core

import (
	"context"
	"fmt"
	"time"
)

// Unordered is the order of an action whose name carries no order prefix.
const Unordered = -1

// ActionFunc is the work of an action. It reads the fields it needs from the
// context and returns the value written to the result field, if any.
type ActionFunc[W Workflow] func(ctx context.Context, c *Context[W]) (interface{}, error)

// Action is one named and independently timed step of a workflow.
//
// Actions never reference each other: AwaitField names the field that must be
// set before Run is invoked and ResultField the field that receives the
// return value of Run. A batch infers the ordering of its actions from these
// names alone.
type Action[W Workflow] struct {
	Name        string        // Unique name, used as the latencies key
	AwaitField  string        // Field that must be set before running, empty for none
	WatchField  string        // Field whose value Run must differ from, empty for none
	ResultField string        // Field receiving the return value of Run, empty for none
	Repeatable  bool          // Run can be invoked more than once without side effects
	Ceiling     time.Duration // Overrides the ceiling of the batch when positive
	Run         ActionFunc[W] // The work itself
}

// OrderedName prefixes a name with its display order so that the latencies
// of a batch sort the way the workflow reads.
func OrderedName(order int, name string) string {
	if order < 0 {
		return name
	}
	return fmt.Sprintf("%d_%s", order, name)
}
