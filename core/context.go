package core

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Well known context fields shared by the workflows.
const (
	FieldAccount = "account"
	FieldWallet  = "wallet"
	FieldHash    = "hash"
	FieldReceipt = "receipt"
)

// BalanceField names the field a balance read writes once it has waited on
// the given field.
func BalanceField(await string) string {
	return "balance:await_" + await
}

// Workflow is the typed, workflow specific part of a context (EVM account,
// Cadence wallet, headless browser, ...).
type Workflow interface {
	Kind() string
}

// slot is a write-once value. done is closed when the slot is resolved, either
// with a value or with the error of its producer.
type slot struct {
	done  chan struct{}
	value interface{}
	err   error
}

func newSlot() *slot {
	return &slot{done: make(chan struct{})}
}

func (s *slot) resolved() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Context is shared by every action of a batch. It holds the typed workflow
// record, a table of named fields written once by their producer and read by
// any number of consumers, and the latencies measured so far.
type Context[W Workflow] struct {
	workflow  W
	mu        sync.Mutex
	slots     map[string]*slot
	seeded    map[string]bool
	latencies *Latencies
}

func NewContext[W Workflow](workflow W) *Context[W] {
	return &Context[W]{
		workflow:  workflow,
		slots:     make(map[string]*slot),
		seeded:    make(map[string]bool),
		latencies: NewLatencies(),
	}
}

func (c *Context[W]) Workflow() W {
	return c.workflow
}

func (c *Context[W]) Latencies() *Latencies {
	return c.latencies
}

func (c *Context[W]) slot(name string) *slot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[name]
	if !ok {
		s = newSlot()
		c.slots[name] = s
	}

	return s
}

func (c *Context[W]) resolve(name string, value interface{}, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[name]
	if !ok {
		s = newSlot()
		c.slots[name] = s
	}

	if s.resolved() {
		return errors.Wrapf(ErrSlotAlreadySet, "field %s", name)
	}

	s.value = value
	s.err = err
	close(s.done)

	return nil
}

// Seed sets a field before the batch runs. Seeded fields satisfy the
// dependencies of actions without a producer in the batch.
func (c *Context[W]) Seed(name string, value interface{}) error {
	if err := c.resolve(name, value, nil); err != nil {
		return err
	}

	c.mu.Lock()
	c.seeded[name] = true
	c.mu.Unlock()

	return nil
}

func (c *Context[W]) Seeded(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.seeded[name]
}

// Set writes a field and wakes up every action waiting on it. A field has a
// single writer, a second write fails with ErrSlotAlreadySet.
func (c *Context[W]) Set(name string, value interface{}) error {
	return c.resolve(name, value, nil)
}

// Fail resolves a field without a value: its producer failed and waiting
// actions give up immediately.
func (c *Context[W]) Fail(name string, cause error) error {
	if cause == nil {
		cause = errors.New("unknown failure")
	}
	return c.resolve(name, nil, cause)
}

// Lookup returns the value of a field without blocking. The boolean is false
// while the field is unset or when its producer failed.
func (c *Context[W]) Lookup(name string) (interface{}, bool) {
	c.mu.Lock()
	s, ok := c.slots[name]
	c.mu.Unlock()

	if !ok || !s.resolved() || s.err != nil {
		return nil, false
	}

	return s.value, true
}

// Await blocks until the field is set, the ceiling elapses or ctx is done.
// It returns ErrPreconditionTimeout when the ceiling elapses and
// ErrUpstreamFailed when the producer of the field failed.
func (c *Context[W]) Await(ctx context.Context, name string, ceiling time.Duration) (interface{}, error) {
	s := c.slot(name)

	timer := time.NewTimer(ceiling)
	defer timer.Stop()

	select {
	case <-s.done:
		if s.err != nil {
			return nil, errors.WithSecondaryError(
				errors.Wrapf(ErrUpstreamFailed, "field %s", name), s.err)
		}
		return s.value, nil
	case <-timer.C:
		return nil, errors.Wrapf(ErrPreconditionTimeout, "field %s after %v", name, ceiling)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Clone returns a new context for a batch run. The workflow record is shared
// with the original, resolved fields are copied and the latencies start
// empty.
func (c *Context[W]) Clone() *Context[W] {
	clone := NewContext(c.workflow)

	c.mu.Lock()
	defer c.mu.Unlock()

	for name, s := range c.slots {
		if !s.resolved() {
			continue
		}
		copied := newSlot()
		copied.value = s.value
		copied.err = s.err
		close(copied.done)
		clone.slots[name] = copied
	}

	for name := range c.seeded {
		clone.seeded[name] = true
	}

	return clone
}

// Value is the typed variant of Lookup. The boolean is false when the field
// is unset or holds a value of another type.
func Value[T any, W Workflow](c *Context[W], name string) (T, bool) {
	var zero T

	v, ok := c.Lookup(name)
	if !ok {
		return zero, false
	}

	t, ok := v.(T)
	if !ok {
		return zero, false
	}

	return t, true
}
