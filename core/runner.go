package core

import (
	"context"
	"math/big"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	// DefaultPollInterval is the pause between two invocations of an
	// action waiting for its result to change.
	DefaultPollInterval = 50 * time.Millisecond
	// DefaultCeiling bounds both the precondition wait and the
	// stabilization wait. It is also the penalty added to the completed
	// time of an action when a wait times out.
	DefaultCeiling = 60 * time.Second
)

// timing holds the wait parameters of the runners of a batch.
type timing struct {
	ceiling      time.Duration
	pollInterval time.Duration
}

// runner executes one action against the shared context and records its
// latency.
type runner[W Workflow] struct {
	action Action[W]
	ctx    *Context[W]
	timing timing
	notify func(string, Record)
}

// ceiling is the wait bound of the action.
func (r *runner[W]) ceiling() time.Duration {
	if r.action.Ceiling > 0 {
		return r.action.Ceiling
	}
	return r.timing.ceiling
}

func (r *runner[W]) run(ctx context.Context) error {
	var record Record
	var result interface{}
	var err error

	name := r.action.Name
	start := time.Now()

	zap.L().Debug("action started", zap.String("action", name))

	if r.action.AwaitField != "" {
		_, err = r.ctx.Await(ctx, r.action.AwaitField, r.ceiling())
		record.Waiting = sinceMillis(start)

		switch {
		case errors.Is(err, ErrPreconditionTimeout):
			zap.L().Warn("action timed out waiting for its precondition",
				zap.String("action", name),
				zap.String("field", r.action.AwaitField),
				zap.Duration("ceiling", r.ceiling()))
			record.Completed = record.Waiting + r.ceiling().Milliseconds()
			record.Outcome = OutcomePreconditionTimeout
			return r.settle(record, nil, nil)

		case errors.Is(err, ErrUpstreamFailed):
			zap.L().Warn("action skipped, its precondition failed",
				zap.String("action", name),
				zap.String("field", r.action.AwaitField))
			record.Completed = record.Waiting
			record.Outcome = OutcomeSkipped
			return r.settle(record, nil, err)

		case err != nil:
			record.Completed = record.Waiting
			record.Outcome = OutcomeFailed
			return r.fail(record, err)
		}
	}

	var baseline interface{}
	if r.action.WatchField != "" {
		baseline, _ = r.ctx.Lookup(r.action.WatchField)
	}

	result, err = r.invoke(ctx)
	if err != nil {
		record.Completed = sinceMillis(start)
		record.Outcome = OutcomeFailed
		return r.fail(record, err)
	}

	record.Outcome = OutcomeOK

	if r.action.WatchField != "" {
		var stable bool

		result, stable, err = r.stabilize(ctx, baseline, result)
		if err != nil {
			record.Completed = sinceMillis(start)
			record.Outcome = OutcomeFailed
			return r.fail(record, err)
		}

		if !stable {
			zap.L().Warn("action timed out waiting for a change",
				zap.String("action", name),
				zap.String("field", r.action.WatchField),
				zap.Duration("ceiling", r.ceiling()))
			record.Completed = sinceMillis(start) + r.ceiling().Milliseconds()
			record.Outcome = OutcomeStabilizationTimeout
			return r.settle(record, result, nil)
		}
	}

	record.Completed = sinceMillis(start)

	return r.settle(record, result, nil)
}

// stabilize invokes the action again until its result differs from the
// baseline. The boolean is false when the ceiling elapsed first, in which
// case the last result is returned.
func (r *runner[W]) stabilize(ctx context.Context, baseline, result interface{}) (interface{}, bool, error) {
	var err error

	deadline := time.NewTimer(r.ceiling())
	defer deadline.Stop()

	ticker := time.NewTicker(r.timing.pollInterval)
	defer ticker.Stop()

	for invocations := 1; sameValue(result, baseline); invocations++ {
		select {
		case <-deadline.C:
			return result, false, nil
		case <-ctx.Done():
			return result, false, ctx.Err()
		case <-ticker.C:
		}

		zap.L().Debug("action result unchanged, invoking again",
			zap.String("action", r.action.Name),
			zap.Int("invocations", invocations))

		result, err = r.invoke(ctx)
		if err != nil {
			return nil, false, err
		}
	}

	return result, true, nil
}

// invoke calls the function of the action. A panic is returned as an error
// wrapping ErrActionPanicked so that the action is recorded as failed.
func (r *runner[W]) invoke(ctx context.Context) (result interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = errors.Wrapf(ErrActionPanicked, "panic: %v", p)
		}
	}()

	return r.action.Run(ctx, r.ctx)
}

// settle writes the latency record and, when the action produced a value,
// its result field. upstream is the failure of the awaited field: it is
// forwarded to the result field so that the dependents are skipped too.
func (r *runner[W]) settle(record Record, result interface{}, upstream error) error {
	if err := r.ctx.Latencies().Add(r.action.Name, record); err != nil {
		return err
	}

	if r.action.ResultField != "" {
		switch record.Outcome {
		case OutcomeOK, OutcomeStabilizationTimeout:
			if err := r.ctx.Set(r.action.ResultField, result); err != nil {
				return err
			}
		case OutcomeSkipped:
			if err := r.ctx.Fail(r.action.ResultField, upstream); err != nil {
				return err
			}
		}
	}

	zap.L().Debug("action settled",
		zap.String("action", r.action.Name),
		zap.String("outcome", string(record.Outcome)),
		zap.Int64("waiting_ms", record.Waiting),
		zap.Int64("completed_ms", record.Completed))

	if r.notify != nil {
		r.notify(r.action.Name, record)
	}

	return nil
}

// fail records a failed action and returns the error the batch reports.
func (r *runner[W]) fail(record Record, cause error) error {
	actionErr := &ActionError{Action: r.action.Name, Err: cause}

	zap.L().Error("action failed",
		zap.String("action", r.action.Name),
		zap.Error(cause))

	if err := r.ctx.Latencies().Add(r.action.Name, record); err != nil {
		return errors.Join(actionErr, err)
	}

	if r.action.ResultField != "" {
		if err := r.ctx.Fail(r.action.ResultField, actionErr); err != nil {
			return errors.Join(actionErr, err)
		}
	}

	if r.notify != nil {
		r.notify(r.action.Name, record)
	}

	return actionErr
}

func sinceMillis(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// sameValue compares two action results by value. Big integers, as returned
// by balance reads, are compared numerically.
func sameValue(a, b interface{}) bool {
	if x, ok := a.(*big.Int); ok {
		if y, ok := b.(*big.Int); ok {
			if x == nil || y == nil {
				return x == y
			}
			return x.Cmp(y) == 0
		}
	}

	return reflect.DeepEqual(a, b)
}
