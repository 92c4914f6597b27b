package core

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Observer is notified every time an action of a batch settles.
type Observer func(action string, record Record)

// Batch runs a fixed set of actions concurrently over one context.
//
// Every action starts at once; the order in which they actually do their work
// only follows from the fields they await and produce.
type Batch[W Workflow] struct {
	ctx       *Context[W] // Working copy of the context given at construction
	actions   []Action[W] // Actions in declaration order
	timing    timing      // Wait parameters of the runners
	observers []Observer  // Called when an action settles
	status    time.Duration
	started   atomic.Bool
	settled   atomic.Int32
}

// BatchOption customises a batch.
type BatchOption func(*batchOptions)

type batchOptions struct {
	timing    timing
	observers []Observer
	status    time.Duration
}

// WithCeiling overrides the maximum duration of the precondition and
// stabilization waits.
func WithCeiling(ceiling time.Duration) BatchOption {
	return func(o *batchOptions) {
		o.timing.ceiling = ceiling
	}
}

// WithPollInterval overrides the pause between two invocations of an action
// waiting for its result to change.
func WithPollInterval(interval time.Duration) BatchOption {
	return func(o *batchOptions) {
		o.timing.pollInterval = interval
	}
}

// WithObserver registers a callback invoked when an action settles.
func WithObserver(observer Observer) BatchOption {
	return func(o *batchOptions) {
		o.observers = append(o.observers, observer)
	}
}

// WithStatusInterval sets how often the progress of a running batch is
// logged. Zero disables the status log.
func WithStatusInterval(interval time.Duration) BatchOption {
	return func(o *batchOptions) {
		o.status = interval
	}
}

// NewBatch checks the wiring of the actions and builds a batch working on a
// copy of the given context.
func NewBatch[W Workflow](ctx *Context[W], actions []Action[W], opts ...BatchOption) (*Batch[W], error) {
	options := batchOptions{
		timing: timing{
			ceiling:      DefaultCeiling,
			pollInterval: DefaultPollInterval,
		},
		status: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.timing.ceiling <= 0 {
		return nil, errors.Newf("invalid ceiling %v", options.timing.ceiling)
	}
	if options.timing.pollInterval <= 0 {
		return nil, errors.Newf("invalid poll interval %v", options.timing.pollInterval)
	}

	if err := Validate(ctx, actions); err != nil {
		return nil, err
	}

	return &Batch[W]{
		ctx:       ctx.Clone(),
		actions:   append([]Action[W](nil), actions...),
		timing:    options.timing,
		observers: options.observers,
		status:    options.status,
	}, nil
}

// Validate checks that the actions can be run together over the context:
// names are unique, every field has at most one producer, every awaited or
// watched field has a producer or is seeded and only repeatable actions
// watch a field.
func Validate[W Workflow](ctx *Context[W], actions []Action[W]) error {
	verr := &ValidationError{}
	names := make(map[string]bool, len(actions))
	producers := make(map[string]string, len(actions))

	for _, a := range actions {
		if a.Name == "" {
			verr.add("action without a name")
		} else if names[a.Name] {
			verr.add("duplicate action name %s", a.Name)
		}
		names[a.Name] = true

		if a.Run == nil {
			verr.add("action %s has no function", a.Name)
		}
		if a.Ceiling < 0 {
			verr.add("action %s has a negative ceiling", a.Name)
		}

		if a.ResultField == "" {
			continue
		}
		if ctx.Seeded(a.ResultField) {
			verr.add("action %s writes seeded field %s", a.Name, a.ResultField)
		}
		if other, ok := producers[a.ResultField]; ok {
			verr.add("field %s written by both %s and %s", a.ResultField, other, a.Name)
			continue
		}
		producers[a.ResultField] = a.Name
	}

	available := func(field string) bool {
		_, produced := producers[field]
		return produced || ctx.Seeded(field)
	}

	for _, a := range actions {
		if a.AwaitField != "" {
			if !available(a.AwaitField) {
				verr.add("action %s awaits field %s which nothing writes", a.Name, a.AwaitField)
			}
			if a.AwaitField == a.ResultField {
				verr.add("action %s awaits its own result field %s", a.Name, a.AwaitField)
			}
		}

		if a.WatchField != "" {
			if !a.Repeatable {
				verr.add("action %s watches field %s but is not repeatable", a.Name, a.WatchField)
			}
			if !available(a.WatchField) {
				verr.add("action %s watches field %s which nothing writes", a.Name, a.WatchField)
			}
		}
	}

	if len(verr.Problems) > 0 {
		return verr
	}

	return nil
}

// Context returns the working context of the batch.
func (b *Batch[W]) Context() *Context[W] {
	return b.ctx
}

// Latencies returns the latencies recorded by the batch.
func (b *Batch[W]) Latencies() *Latencies {
	return b.ctx.Latencies()
}

// Run starts every action at once and waits for all of them to settle. It
// returns the first error of a failed action; the other actions are not
// cancelled and their latencies are still recorded. A batch runs only once.
func (b *Batch[W]) Run(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrBatchAlreadyRun
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	if b.status > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.statusPrinter(stop)
		}()
	}

	var g errgroup.Group
	for _, action := range b.actions {
		r := &runner[W]{
			action: action,
			ctx:    b.ctx,
			timing: b.timing,
			notify: b.notify,
		}
		g.Go(func() error {
			return r.run(ctx)
		})
	}

	err := g.Wait()

	close(stop)
	wg.Wait()

	return err
}

func (b *Batch[W]) notify(action string, record Record) {
	b.settled.Add(1)
	for _, o := range b.observers {
		o(action, record)
	}
}

func (b *Batch[W]) statusPrinter(stop <-chan struct{}) {
	ticker := time.NewTicker(b.status)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			zap.L().Info("batch running",
				zap.Int32("settled", b.settled.Load()),
				zap.Int("actions", len(b.actions)))
		}
	}
}

// PrintLatencies writes the latency section of the batch.
func (b *Batch[W]) PrintLatencies(w io.Writer) error {
	return b.ctx.Latencies().Print(w)
}
