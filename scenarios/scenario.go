// Package scenarios composes the actions of the collaborators into the
// named batches the benchmark runs.
package scenarios

import (
	"context"
	"sort"
	"time"

	"flow-latency-benchmark/core"
	"flow-latency-benchmark/headless"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Scenario is a batch ready to run against a network.
type Scenario interface {
	Name() string
	// Run runs the batch once. The latencies are returned even when an
	// action failed.
	Run(ctx context.Context) (*core.Latencies, error)
	// Close releases the connections or the browser of the scenario.
	Close() error
}

// Builder connects the collaborators of a scenario.
type Builder func(ctx context.Context, env *Environment) (Scenario, error)

// Environment holds the endpoints and credentials scenarios are built with.
type Environment struct {
	Network       string                 // mainnet, testnet or emulator
	EVMEndpoint   string                 // EVM JSON-RPC endpoint
	AccessHost    string                 // Cadence access node, empty for the network default
	Token         string                 // ERC20 token, empty for the network default
	PrivateKey    string                 // EVM account key
	Recipient     string                 // EVM recipient, empty for the account itself
	FlowAddress   string                 // Cadence account
	FlowKey       string                 // Cadence account key
	FlowKeyIndex  uint32                 // Index of FlowKey on the account
	FlowRecipient string                 // Cadence or EVM recipient, empty for the account itself
	Password      string                 // Wallet extension password
	Launch        headless.LaunchOptions // Browser directories
	Ceiling       time.Duration          // Batch ceiling, zero for the default
	PollInterval  time.Duration          // Batch poll interval, zero for the default
	Observers     []core.Observer        // Notified of every settled action
}

func (e *Environment) batchOptions() []core.BatchOption {
	var opts []core.BatchOption
	if e.Ceiling > 0 {
		opts = append(opts, core.WithCeiling(e.Ceiling))
	}
	if e.PollInterval > 0 {
		opts = append(opts, core.WithPollInterval(e.PollInterval))
	}
	for _, o := range e.Observers {
		opts = append(opts, core.WithObserver(o))
	}
	return opts
}

var registry = map[string]Builder{
	"transfer-test":                       buildTransfer,
	"transfer-erc20-test":                 buildTransferERC20,
	"transfer-cadence-test":               buildCadence(false, CadenceActions),
	"transfer-cadence-soft-finality-test": buildCadence(true, CadenceSoftFinalityActions),
	"headless-kittypunch-swap-1":          buildKittyPunch("metamask", SwapFlowToUsdfActions),
	"headless-kittypunch-swap-2":          buildKittyPunch("metamask", SwapUsdfToFlowActions),
	"headless-kittypunch-swap-3":          buildKittyPunch("flowwallet", FlowWalletSwapActions),
}

// Names lists the registered scenarios.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build builds the scenario registered under name.
func Build(ctx context.Context, name string, env *Environment) (Scenario, error) {
	build, ok := registry[name]
	if !ok {
		return nil, errors.Newf("unknown scenario %q", name)
	}

	zap.L().Info("building scenario",
		zap.String("scenario", name),
		zap.String("network", env.Network))

	s, err := build(ctx, env)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s", name)
	}
	return &named{Scenario: s, name: name}, nil
}

type named struct {
	Scenario
	name string
}

func (n *named) Name() string {
	return n.name
}

// batchScenario runs the same actions over a fresh copy of its context on
// every run.
type batchScenario[W core.Workflow] struct {
	ctx     *core.Context[W]
	actions []core.Action[W]
	opts    []core.BatchOption
	close   func() error
}

func newBatchScenario[W core.Workflow](ctx *core.Context[W], actions []core.Action[W], opts []core.BatchOption, closer func() error) (*batchScenario[W], error) {
	if err := core.Validate(ctx, actions); err != nil {
		return nil, err
	}
	return &batchScenario[W]{ctx: ctx, actions: actions, opts: opts, close: closer}, nil
}

func (s *batchScenario[W]) Name() string {
	return s.ctx.Workflow().Kind()
}

func (s *batchScenario[W]) Run(ctx context.Context) (*core.Latencies, error) {
	b, err := core.NewBatch(s.ctx, s.actions, s.opts...)
	if err != nil {
		return nil, err
	}

	err = b.Run(ctx)
	return b.Latencies(), err
}

func (s *batchScenario[W]) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
