package ncadence

import (
	"context"

	"flow-latency-benchmark/core"

	"github.com/cockroachdb/errors"
	"github.com/onflow/cadence"
	"github.com/onflow/flow-go-sdk"
	"go.uber.org/zap"
)

// FieldSealed receives the sealed transaction result.
const FieldSealed = "sealed"

// DefaultTransferAmount is the amount of FLOW sent by the transfer.
const DefaultTransferAmount = "0.0001"

// Workflow carries what the Cadence actions need.
type Workflow struct {
	Wallet    *Wallet
	Recipient string // Cadence or EVM address, 0x prefixed
	Amount    string // UFix64 literal
	script    []byte // Transfer script with resolved imports
}

func (w *Workflow) Kind() string {
	return "cadence"
}

// NewWorkflow builds the workflow of a wallet. The transfer goes back to the
// wallet account unless a recipient is given.
func NewWorkflow(wallet *Wallet, recipient string) (*Workflow, error) {
	script, err := resolveImports(transferFlowScript, wallet.Connector().Network())
	if err != nil {
		return nil, err
	}

	if recipient == "" {
		recipient = wallet.Address().Hex()
	}

	w := &Workflow{
		Wallet:    wallet,
		Recipient: withPrefix(recipient),
		Amount:    DefaultTransferAmount,
		script:    script,
	}

	zap.L().Info("cadence workflow ready",
		zap.String("address", wallet.Address().HexWithPrefix()),
		zap.String("network", wallet.Connector().Network()),
		zap.Bool("soft_finality", wallet.Connector().SoftFinality()))

	return w, nil
}

func withPrefix(address string) string {
	if len(address) >= 2 && address[0] == '0' && (address[1] == 'x' || address[1] == 'X') {
		return "0x" + address[2:]
	}
	return "0x" + address
}

// NewContext builds a context seeded with the wallet.
func NewContext(w *Workflow) (*core.Context[*Workflow], error) {
	c := core.NewContext(w)
	if err := c.Seed(core.FieldWallet, w.Wallet); err != nil {
		return nil, err
	}
	return c, nil
}

func (w *Workflow) transferArguments() ([]cadence.Value, error) {
	recipient, err := cadence.NewString(w.Recipient)
	if err != nil {
		return nil, errors.Wrap(err, "encoding recipient")
	}

	amount, err := cadence.NewUFix64(w.Amount)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding amount %s", w.Amount)
	}

	return []cadence.Value{recipient, amount}, nil
}

// TransferAction sends the FLOW transfer and writes the transaction id.
func TransferAction(order int) core.Action[*Workflow] {
	return core.Action[*Workflow]{
		Name:        core.OrderedName(order, "TransferAction"),
		AwaitField:  core.FieldWallet,
		ResultField: core.FieldHash,
		Run: func(ctx context.Context, c *core.Context[*Workflow]) (interface{}, error) {
			w := c.Workflow()

			args, err := w.transferArguments()
			if err != nil {
				return nil, err
			}

			return w.Wallet.SendTransaction(ctx, w.script, args...)
		},
	}
}

// BalanceAction reads the FLOW balance of the wallet once await is set,
// repeating the read until it differs from watch when given.
func BalanceAction(await, watch string, order int) core.Action[*Workflow] {
	name := "GetBalance_Await_" + await
	if watch != "" {
		name += "->Change"
	}

	return core.Action[*Workflow]{
		Name:        core.OrderedName(order, name),
		AwaitField:  await,
		WatchField:  watch,
		ResultField: core.BalanceField(await),
		Repeatable:  true,
		Run: func(ctx context.Context, c *core.Context[*Workflow]) (interface{}, error) {
			return c.Workflow().Wallet.Balance(ctx)
		},
	}
}

func transactionID(c *core.Context[*Workflow]) (flow.Identifier, error) {
	id, ok := core.Value[flow.Identifier](c, core.FieldHash)
	if !ok {
		return flow.EmptyID, errors.New("no transaction id to await")
	}
	return id, nil
}

// WaitForExecutedAction waits until the transaction is executed and writes
// its result as the receipt.
func WaitForExecutedAction(order int) core.Action[*Workflow] {
	return core.Action[*Workflow]{
		Name:        core.OrderedName(order, "WaitForTransactionExecuted"),
		AwaitField:  core.FieldHash,
		ResultField: core.FieldReceipt,
		Run: func(ctx context.Context, c *core.Context[*Workflow]) (interface{}, error) {
			id, err := transactionID(c)
			if err != nil {
				return nil, err
			}
			return c.Workflow().Wallet.Connector().OnceExecuted(ctx, id)
		},
	}
}

// WaitForSealedAction waits until the transaction is sealed.
func WaitForSealedAction(order int) core.Action[*Workflow] {
	return core.Action[*Workflow]{
		Name:        core.OrderedName(order, "WaitForTransactionSealed"),
		AwaitField:  core.FieldHash,
		ResultField: FieldSealed,
		Run: func(ctx context.Context, c *core.Context[*Workflow]) (interface{}, error) {
			id, err := transactionID(c)
			if err != nil {
				return nil, err
			}
			return c.Workflow().Wallet.Connector().OnceSealed(ctx, id)
		},
	}
}
