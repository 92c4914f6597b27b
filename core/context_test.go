package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestFieldsAreWrittenOnce(t *testing.T) {
	t.Parallel()
	c := NewContext(testWorkflow{})

	require.NoError(t, c.Set(FieldHash, "0x1"))
	require.ErrorIs(t, c.Set(FieldHash, "0x2"), ErrSlotAlreadySet)
	require.ErrorIs(t, c.Fail(FieldHash, errors.New("late")), ErrSlotAlreadySet)

	v, ok := c.Lookup(FieldHash)
	require.True(t, ok)
	require.Equal(t, "0x1", v)
}

func TestAwait(t *testing.T) {
	t.Parallel()

	t.Run("value set later", func(t *testing.T) {
		t.Parallel()
		c := NewContext(testWorkflow{})
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = c.Set("x", 42)
		}()

		v, err := c.Await(context.Background(), "x", time.Second)
		require.NoError(t, err)
		require.Equal(t, 42, v)
	})

	t.Run("ceiling", func(t *testing.T) {
		t.Parallel()
		c := NewContext(testWorkflow{})
		_, err := c.Await(context.Background(), "x", 20*time.Millisecond)
		require.ErrorIs(t, err, ErrPreconditionTimeout)
	})

	t.Run("failed producer", func(t *testing.T) {
		t.Parallel()
		c := NewContext(testWorkflow{})
		require.NoError(t, c.Fail("x", errors.New("rpc down")))

		_, err := c.Await(context.Background(), "x", time.Second)
		require.ErrorIs(t, err, ErrUpstreamFailed)

		_, ok := c.Lookup("x")
		require.False(t, ok)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		c := NewContext(testWorkflow{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.Await(ctx, "x", time.Second)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestValueChecksType(t *testing.T) {
	t.Parallel()
	c := NewContext(testWorkflow{})
	require.NoError(t, c.Set("n", 3))

	_, ok := Value[string](c, "n")
	require.False(t, ok)

	n, ok := Value[int](c, "n")
	require.True(t, ok)
	require.Equal(t, 3, n)
}

func TestLatenciesKeepCompletionOrder(t *testing.T) {
	t.Parallel()
	l := NewLatencies()
	require.NoError(t, l.Add("2_b", Record{Waiting: 1, Completed: 2}))
	require.NoError(t, l.Add("1_a", Record{Waiting: 0, Completed: 5}))
	require.ErrorIs(t, l.Add("1_a", Record{}), ErrLatencyRecorded)

	require.Equal(t, []string{"2_b", "1_a"}, l.Names())

	var sb strings.Builder
	require.NoError(t, l.Print(&sb))

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Equal(t, LatenciesHeader, strings.TrimSpace(lines[0]))
	require.Equal(t, "- 2_b: 1ms(waiting) - 2ms(completed)", lines[1])

	name, rec, ok := ParseLatencyLine(lines[2])
	require.True(t, ok)
	require.Equal(t, "1_a", name)
	require.Equal(t, Record{Waiting: 0, Completed: 5}, rec)

	_, _, ok = ParseLatencyLine("Parsed Outputs:")
	require.False(t, ok)
}

func TestOrderedName(t *testing.T) {
	t.Parallel()
	require.Equal(t, "3_WaitForTransactionReceipt", OrderedName(3, "WaitForTransactionReceipt"))
	require.Equal(t, "TransferAction", OrderedName(Unordered, "TransferAction"))
}
