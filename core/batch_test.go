package core

import (
	"bytes"
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWorkflow struct{}

func (testWorkflow) Kind() string { return "test" }

func returning(v interface{}, delay time.Duration) ActionFunc[testWorkflow] {
	return func(ctx context.Context, _ *Context[testWorkflow]) (interface{}, error) {
		time.Sleep(delay)
		return v, nil
	}
}

func newTestBatch(t *testing.T, ctx *Context[testWorkflow], actions []Action[testWorkflow], opts ...BatchOption) *Batch[testWorkflow] {
	t.Helper()
	b, err := NewBatch(ctx, actions, opts...)
	require.NoError(t, err)
	return b
}

func TestWaitingIsZeroWithoutPrecondition(t *testing.T) {
	t.Parallel()
	b := newTestBatch(t, NewContext(testWorkflow{}), []Action[testWorkflow]{
		{Name: "a", Run: returning(1, 20*time.Millisecond)},
		{Name: "b", Run: returning(2, 0)},
	})

	require.NoError(t, b.Run(context.Background()))

	for _, e := range b.Latencies().Entries() {
		assert.Zero(t, e.Waiting, e.Name)
		assert.GreaterOrEqual(t, e.Completed, e.Waiting, e.Name)
		assert.Equal(t, OutcomeOK, e.Outcome, e.Name)
	}
	a, ok := b.Latencies().Get("a")
	require.True(t, ok)
	assert.GreaterOrEqual(t, a.Completed, int64(20))
}

func TestDependentWaitsForProducer(t *testing.T) {
	t.Parallel()
	var sawField atomic.Bool

	b := newTestBatch(t, NewContext(testWorkflow{}), []Action[testWorkflow]{
		{
			Name:       "B",
			AwaitField: "x",
			Run: func(_ context.Context, c *Context[testWorkflow]) (interface{}, error) {
				v, ok := Value[int](c, "x")
				sawField.Store(ok && v == 1)
				return nil, nil
			},
		},
		{Name: "A", ResultField: "x", Run: returning(1, 100*time.Millisecond)},
	})

	require.NoError(t, b.Run(context.Background()))
	require.True(t, sawField.Load(), "B ran before x was set")

	rec, ok := b.Latencies().Get("B")
	require.True(t, ok)
	assert.InDelta(t, 100, rec.Waiting, float64(DefaultPollInterval.Milliseconds()))
	assert.GreaterOrEqual(t, rec.Completed, rec.Waiting)

	// A completes before B so it is recorded first.
	require.Equal(t, []string{"A", "B"}, b.Latencies().Names())
}

func TestPreconditionTimeoutSkipsExecution(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	ceiling := 100 * time.Millisecond

	b := newTestBatch(t, NewContext(testWorkflow{}), []Action[testWorkflow]{
		{Name: "slow", ResultField: "x", Run: returning(1, 3*ceiling)},
		{
			Name:       "late",
			AwaitField: "x",
			Run: func(context.Context, *Context[testWorkflow]) (interface{}, error) {
				calls.Add(1)
				return nil, nil
			},
		},
	}, WithCeiling(ceiling))

	require.NoError(t, b.Run(context.Background()))
	require.Zero(t, calls.Load())

	rec, ok := b.Latencies().Get("late")
	require.True(t, ok)
	assert.Equal(t, OutcomePreconditionTimeout, rec.Outcome)
	assert.GreaterOrEqual(t, rec.Waiting, ceiling.Milliseconds())
	assert.GreaterOrEqual(t, rec.Completed, rec.Waiting+ceiling.Milliseconds())
}

func TestActionCeilingOverridesBatchCeiling(t *testing.T) {
	t.Parallel()
	ceiling := 50 * time.Millisecond

	b := newTestBatch(t, NewContext(testWorkflow{}), []Action[testWorkflow]{
		{Name: "producer", ResultField: "x", Run: returning(1, 4*ceiling)},
		{Name: "patient", AwaitField: "x", Ceiling: 20 * ceiling, Run: returning(nil, 0)},
		{Name: "impatient", AwaitField: "x", Run: returning(nil, 0)},
	}, WithCeiling(ceiling))

	require.NoError(t, b.Run(context.Background()))

	patient, ok := b.Latencies().Get("patient")
	require.True(t, ok)
	assert.Equal(t, OutcomeOK, patient.Outcome)
	assert.Less(t, patient.Completed, (20 * ceiling).Milliseconds())

	impatient, ok := b.Latencies().Get("impatient")
	require.True(t, ok)
	assert.Equal(t, OutcomePreconditionTimeout, impatient.Outcome)
}

func TestResultFieldHoldsReturnValue(t *testing.T) {
	t.Parallel()
	b := newTestBatch(t, NewContext(testWorkflow{}), []Action[testWorkflow]{
		{Name: "hash", ResultField: FieldHash, Run: returning("0xabc", 0)},
	})

	require.NoError(t, b.Run(context.Background()))

	v, ok := Value[string](b.Context(), FieldHash)
	require.True(t, ok)
	require.Equal(t, "0xabc", v)
}

func TestRunsWithFreshContextsHaveSameKeys(t *testing.T) {
	t.Parallel()
	actions := []Action[testWorkflow]{
		{Name: OrderedName(0, "Transfer"), AwaitField: FieldAccount, ResultField: FieldHash, Run: returning("0x1", 5*time.Millisecond)},
		{Name: OrderedName(1, "Balance"), AwaitField: FieldHash, ResultField: BalanceField(FieldHash), Run: returning(10, 0)},
		{Name: OrderedName(2, "Receipt"), AwaitField: FieldHash, ResultField: FieldReceipt, Run: returning("ok", 10*time.Millisecond)},
	}

	run := func() (*Latencies, *Context[testWorkflow]) {
		ctx := NewContext(testWorkflow{})
		require.NoError(t, ctx.Seed(FieldAccount, "me"))
		b := newTestBatch(t, ctx, actions)
		require.NoError(t, b.Run(context.Background()))
		return b.Latencies(), b.Context()
	}

	first, firstCtx := run()
	second, secondCtx := run()

	require.ElementsMatch(t, first.Names(), second.Names())
	for _, field := range []string{FieldHash, BalanceField(FieldHash), FieldReceipt} {
		a, ok := firstCtx.Lookup(field)
		require.True(t, ok, field)
		b, ok := secondCtx.Lookup(field)
		require.True(t, ok, field)
		require.Equal(t, a, b, field)
	}
}

func TestFailureRejectsRunButKeepsOtherLatencies(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	b := newTestBatch(t, NewContext(testWorkflow{}), []Action[testWorkflow]{
		{
			Name:        "C",
			ResultField: "c",
			Run: func(context.Context, *Context[testWorkflow]) (interface{}, error) {
				return nil, boom
			},
		},
		{Name: "D", ResultField: "d", Run: returning(true, 30*time.Millisecond)},
		{Name: "after-C", AwaitField: "c", Run: returning(nil, 0)},
	})

	err := b.Run(context.Background())
	require.ErrorIs(t, err, boom)

	var actionErr *ActionError
	require.True(t, errors.As(err, &actionErr))
	require.Equal(t, "C", actionErr.Action)

	c, ok := b.Latencies().Get("C")
	require.True(t, ok)
	assert.Equal(t, OutcomeFailed, c.Outcome)

	d, ok := b.Latencies().Get("D")
	require.True(t, ok)
	assert.Equal(t, OutcomeOK, d.Outcome)
	_, ok = b.Context().Lookup("d")
	assert.True(t, ok)

	skipped, ok := b.Latencies().Get("after-C")
	require.True(t, ok)
	assert.Equal(t, OutcomeSkipped, skipped.Outcome)
	assert.Less(t, skipped.Completed, DefaultCeiling.Milliseconds())
}

func TestPanicRejectsRunButKeepsOtherLatencies(t *testing.T) {
	t.Parallel()

	b := newTestBatch(t, NewContext(testWorkflow{}), []Action[testWorkflow]{
		{
			Name:        "C",
			ResultField: "c",
			Run: func(context.Context, *Context[testWorkflow]) (interface{}, error) {
				var m map[string]int
				m["x"] = 1
				return m, nil
			},
		},
		{Name: "D", ResultField: "d", Run: returning(true, 30*time.Millisecond)},
		{Name: "after-C", AwaitField: "c", Run: returning(nil, 0)},
	})

	err := b.Run(context.Background())
	require.ErrorIs(t, err, ErrActionPanicked)

	var actionErr *ActionError
	require.True(t, errors.As(err, &actionErr))
	require.Equal(t, "C", actionErr.Action)

	c, ok := b.Latencies().Get("C")
	require.True(t, ok)
	assert.Equal(t, OutcomeFailed, c.Outcome)

	d, ok := b.Latencies().Get("D")
	require.True(t, ok)
	assert.Equal(t, OutcomeOK, d.Outcome)

	skipped, ok := b.Latencies().Get("after-C")
	require.True(t, ok)
	assert.Equal(t, OutcomeSkipped, skipped.Outcome)
}

func TestPanicWhileStabilizingFailsTheAction(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32

	ctx := NewContext(testWorkflow{})
	require.NoError(t, ctx.Seed("w", 7))

	b := newTestBatch(t, ctx, []Action[testWorkflow]{
		{
			Name:        "flaky",
			WatchField:  "w",
			ResultField: "r",
			Repeatable:  true,
			Run: func(context.Context, *Context[testWorkflow]) (interface{}, error) {
				if calls.Add(1) > 1 {
					panic("balance read exploded")
				}
				return 7, nil
			},
		},
		{Name: "other", Run: returning(nil, 0)},
	}, WithPollInterval(5*time.Millisecond))

	err := b.Run(context.Background())
	require.ErrorIs(t, err, ErrActionPanicked)
	assert.Contains(t, err.Error(), "balance read exploded")
	assert.Equal(t, int32(2), calls.Load())

	rec, ok := b.Latencies().Get("flaky")
	require.True(t, ok)
	assert.Equal(t, OutcomeFailed, rec.Outcome)
	assert.Less(t, rec.Completed, DefaultCeiling.Milliseconds())

	_, ok = b.Context().Lookup("r")
	assert.False(t, ok)

	_, ok = b.Latencies().Get("other")
	assert.True(t, ok)
}

func TestFailureSkipsTheWholeChain(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	var ran atomic.Int32

	counting := func(context.Context, *Context[testWorkflow]) (interface{}, error) {
		ran.Add(1)
		return nil, nil
	}

	b := newTestBatch(t, NewContext(testWorkflow{}), []Action[testWorkflow]{
		{
			Name:        "A",
			ResultField: "a",
			Run: func(context.Context, *Context[testWorkflow]) (interface{}, error) {
				time.Sleep(20 * time.Millisecond)
				return nil, boom
			},
		},
		{Name: "B", AwaitField: "a", ResultField: "b", Run: counting},
		{Name: "C", AwaitField: "b", Run: counting},
	})

	err := b.Run(context.Background())
	require.ErrorIs(t, err, boom)

	var actionErr *ActionError
	require.True(t, errors.As(err, &actionErr))
	require.Equal(t, "A", actionErr.Action)

	for _, name := range []string{"B", "C"} {
		rec, ok := b.Latencies().Get(name)
		require.True(t, ok, name)
		assert.Equal(t, OutcomeSkipped, rec.Outcome, name)
		assert.Equal(t, rec.Waiting, rec.Completed, name)
		assert.Less(t, rec.Completed, DefaultCeiling.Milliseconds(), name)
	}
	assert.Zero(t, ran.Load())

	_, ok := b.Context().Lookup("b")
	assert.False(t, ok)
}

func TestCancelDuringPreconditionWait(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(30*time.Millisecond, cancel)

	b := newTestBatch(t, NewContext(testWorkflow{}), []Action[testWorkflow]{
		{Name: "slow", ResultField: "x", Run: returning(1, 200*time.Millisecond)},
		{Name: "waiting", AwaitField: "x", Run: returning(nil, 0)},
	})

	err := b.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	var actionErr *ActionError
	require.True(t, errors.As(err, &actionErr))
	require.Equal(t, "waiting", actionErr.Action)

	rec, ok := b.Latencies().Get("waiting")
	require.True(t, ok)
	assert.Equal(t, OutcomeFailed, rec.Outcome)
	assert.Equal(t, rec.Waiting, rec.Completed)
	assert.Less(t, rec.Waiting, int64(200))

	slow, ok := b.Latencies().Get("slow")
	require.True(t, ok)
	assert.Equal(t, OutcomeOK, slow.Outcome)
}

func TestCancelDuringStabilization(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(40*time.Millisecond, cancel)

	c := NewContext(testWorkflow{})
	require.NoError(t, c.Seed("w", 7))

	b := newTestBatch(t, c, []Action[testWorkflow]{
		{Name: "same", WatchField: "w", ResultField: "r", Repeatable: true, Run: returning(7, 0)},
	}, WithPollInterval(5*time.Millisecond))

	err := b.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	rec, ok := b.Latencies().Get("same")
	require.True(t, ok)
	assert.Equal(t, OutcomeFailed, rec.Outcome)
	assert.Less(t, rec.Completed, DefaultCeiling.Milliseconds())

	_, ok = b.Context().Lookup("r")
	assert.False(t, ok)
}

func TestStabilizationReinvokesUntilChange(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32

	ctx := NewContext(testWorkflow{})
	require.NoError(t, ctx.Seed("balance", big.NewInt(100)))

	b := newTestBatch(t, ctx, []Action[testWorkflow]{
		{
			Name:        "E",
			WatchField:  "balance",
			ResultField: "new-balance",
			Repeatable:  true,
			Run: func(context.Context, *Context[testWorkflow]) (interface{}, error) {
				if calls.Add(1) < 4 {
					return big.NewInt(100), nil
				}
				return big.NewInt(90), nil
			},
		},
	}, WithPollInterval(10*time.Millisecond))

	require.NoError(t, b.Run(context.Background()))
	require.Greater(t, calls.Load(), int32(1))

	rec, ok := b.Latencies().Get("E")
	require.True(t, ok)
	assert.Equal(t, OutcomeOK, rec.Outcome)
	assert.GreaterOrEqual(t, rec.Completed, int64(30))

	v, ok := Value[*big.Int](b.Context(), "new-balance")
	require.True(t, ok)
	require.Equal(t, int64(90), v.Int64())
}

func TestStabilizationTimeoutIsPenalized(t *testing.T) {
	t.Parallel()
	ceiling := 80 * time.Millisecond

	ctx := NewContext(testWorkflow{})
	require.NoError(t, ctx.Seed("w", 7))

	b := newTestBatch(t, ctx, []Action[testWorkflow]{
		{Name: "same", WatchField: "w", ResultField: "r", Repeatable: true, Run: returning(7, 0)},
	}, WithCeiling(ceiling), WithPollInterval(10*time.Millisecond))

	require.NoError(t, b.Run(context.Background()))

	rec, ok := b.Latencies().Get("same")
	require.True(t, ok)
	assert.Equal(t, OutcomeStabilizationTimeout, rec.Outcome)
	assert.GreaterOrEqual(t, rec.Completed, 2*ceiling.Milliseconds())

	v, ok := Value[int](b.Context(), "r")
	require.True(t, ok)
	require.Equal(t, 7, v)
}

func TestValidateRejectsBadWiring(t *testing.T) {
	t.Parallel()
	noop := returning(nil, 0)

	for _, tt := range []struct {
		name    string
		actions []Action[testWorkflow]
		problem string
	}{
		{
			name:    "duplicate names",
			actions: []Action[testWorkflow]{{Name: "a", Run: noop}, {Name: "a", Run: noop}},
			problem: "duplicate action name a",
		},
		{
			name: "two writers",
			actions: []Action[testWorkflow]{
				{Name: "a", ResultField: "x", Run: noop},
				{Name: "b", ResultField: "x", Run: noop},
			},
			problem: "field x written by both a and b",
		},
		{
			name:    "missing producer",
			actions: []Action[testWorkflow]{{Name: "a", AwaitField: "x", Run: noop}},
			problem: "action a awaits field x which nothing writes",
		},
		{
			name: "watch without repeatable",
			actions: []Action[testWorkflow]{
				{Name: "a", ResultField: "x", Run: noop},
				{Name: "b", WatchField: "x", Run: noop},
			},
			problem: "action b watches field x but is not repeatable",
		},
		{
			name:    "no function",
			actions: []Action[testWorkflow]{{Name: "a"}},
			problem: "action a has no function",
		},
		{
			name:    "negative ceiling",
			actions: []Action[testWorkflow]{{Name: "a", Ceiling: -time.Second, Run: noop}},
			problem: "action a has a negative ceiling",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewBatch(NewContext(testWorkflow{}), tt.actions)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Contains(t, verr.Problems, tt.problem)
		})
	}
}

func TestSeededFieldsSatisfyDependencies(t *testing.T) {
	t.Parallel()
	ctx := NewContext(testWorkflow{})
	require.NoError(t, ctx.Seed(FieldWallet, "wallet"))

	b := newTestBatch(t, ctx, []Action[testWorkflow]{
		{Name: "a", AwaitField: FieldWallet, Run: returning(nil, 0)},
	})
	require.NoError(t, b.Run(context.Background()))

	rec, ok := b.Latencies().Get("a")
	require.True(t, ok)
	assert.Equal(t, OutcomeOK, rec.Outcome)
	assert.Less(t, rec.Waiting, DefaultPollInterval.Milliseconds())
}

func TestBatchRunsOnce(t *testing.T) {
	t.Parallel()
	b := newTestBatch(t, NewContext(testWorkflow{}), []Action[testWorkflow]{
		{Name: "a", Run: returning(nil, 0)},
	})

	require.NoError(t, b.Run(context.Background()))
	require.ErrorIs(t, b.Run(context.Background()), ErrBatchAlreadyRun)
}

func TestBatchWorksOnACopyOfTheContext(t *testing.T) {
	t.Parallel()
	ctx := NewContext(testWorkflow{})
	require.NoError(t, ctx.Seed(FieldAccount, "me"))

	b := newTestBatch(t, ctx, []Action[testWorkflow]{
		{Name: "a", AwaitField: FieldAccount, ResultField: FieldHash, Run: returning("0x1", 0)},
	})
	require.NoError(t, b.Run(context.Background()))

	_, ok := ctx.Lookup(FieldHash)
	require.False(t, ok)
	require.Zero(t, ctx.Latencies().Len())

	account, ok := b.Context().Lookup(FieldAccount)
	require.True(t, ok)
	require.Equal(t, "me", account)
}

func TestObserverSeesEverySettledAction(t *testing.T) {
	t.Parallel()
	var seen atomic.Int32

	b := newTestBatch(t, NewContext(testWorkflow{}), []Action[testWorkflow]{
		{Name: "a", ResultField: "x", Run: returning(1, 0)},
		{Name: "b", AwaitField: "x", Run: returning(2, 0)},
	}, WithObserver(func(string, Record) { seen.Add(1) }))

	require.NoError(t, b.Run(context.Background()))
	require.Equal(t, int32(2), seen.Load())
}

func TestPrintLatencies(t *testing.T) {
	t.Parallel()
	b := newTestBatch(t, NewContext(testWorkflow{}), []Action[testWorkflow]{
		{Name: "0_TransferAction", Run: returning(nil, 0)},
	})
	require.NoError(t, b.Run(context.Background()))

	var buf bytes.Buffer
	require.NoError(t, b.PrintLatencies(&buf))
	require.Contains(t, buf.String(), LatenciesHeader)
	require.Regexp(t, `- 0_TransferAction: \d+ms\(waiting\) - \d+ms\(completed\)`, buf.String())
}
