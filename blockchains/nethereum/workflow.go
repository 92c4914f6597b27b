package nethereum

import (
	"context"
	"math/big"

	"flow-latency-benchmark/core"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	// DefaultTransferValue is the amount of the native transfer.
	DefaultTransferValue = "0.1"
	// DefaultTokenAmount is the amount of the ERC20 transfer, in token units.
	DefaultTokenAmount = "0.001"
)

// DefaultToken is the USDF contract of Flow EVM testnet.
var DefaultToken = common.HexToAddress("0x5e65b6b04fba51d95409712978cb91e99d93ae73")

// Workflow carries what the EVM actions need. It is shared read-only by every
// action of a batch.
type Workflow struct {
	Client      *Client
	Network     string
	Recipient   common.Address // Receiver of the transfers
	Token       common.Address // ERC20 contract of the token transfers
	Value       *big.Int       // Native transfer amount, in wei
	TokenAmount *big.Int       // ERC20 transfer amount, in token base units
}

func (w *Workflow) Kind() string {
	return "evm"
}

// WorkflowOption customises a workflow.
type WorkflowOption func(*Workflow)

// WithRecipient sends the transfers to another account than the sender.
func WithRecipient(recipient common.Address) WorkflowOption {
	return func(w *Workflow) {
		w.Recipient = recipient
	}
}

// WithToken changes the ERC20 contract.
func WithToken(token common.Address) WorkflowOption {
	return func(w *Workflow) {
		w.Token = token
	}
}

// NewWorkflow builds the workflow of a client. Transfers go back to the sender
// unless a recipient is given.
func NewWorkflow(client *Client, network string, opts ...WorkflowOption) (*Workflow, error) {
	value, err := ParseEther(DefaultTransferValue)
	if err != nil {
		return nil, err
	}
	amount, err := ParseEther(DefaultTokenAmount)
	if err != nil {
		return nil, err
	}

	w := &Workflow{
		Client:      client,
		Network:     network,
		Recipient:   client.Address(),
		Token:       DefaultToken,
		Value:       value,
		TokenAmount: amount,
	}
	for _, opt := range opts {
		opt(w)
	}

	zap.L().Info("evm workflow ready",
		zap.String("address", client.Address().Hex()),
		zap.String("network", network),
		zap.Stringer("chain", client.ChainID()))

	return w, nil
}

// NewContext builds a context seeded with the sender account.
func NewContext(w *Workflow) (*core.Context[*Workflow], error) {
	c := core.NewContext(w)
	if err := c.Seed(core.FieldAccount, w.Client.Address()); err != nil {
		return nil, err
	}
	return c, nil
}

// TransferAction sends the native transfer and writes its hash.
func TransferAction(order int) core.Action[*Workflow] {
	return core.Action[*Workflow]{
		Name:        core.OrderedName(order, "TransferAction"),
		AwaitField:  core.FieldAccount,
		ResultField: core.FieldHash,
		Run: func(ctx context.Context, c *core.Context[*Workflow]) (interface{}, error) {
			w := c.Workflow()
			return w.Client.Transfer(ctx, w.Recipient, w.Value)
		},
	}
}

// TransferERC20Action sends the token transfer and writes its hash. Its
// latency is reported under the TransferAction key, like the native transfer.
func TransferERC20Action(order int) core.Action[*Workflow] {
	return core.Action[*Workflow]{
		Name:        core.OrderedName(order, "TransferAction"),
		AwaitField:  core.FieldAccount,
		ResultField: core.FieldHash,
		Run: func(ctx context.Context, c *core.Context[*Workflow]) (interface{}, error) {
			w := c.Workflow()
			return w.Client.TransferERC20(ctx, w.Token, w.Recipient, w.TokenAmount)
		},
	}
}

func balanceName(await, watch string) string {
	name := "GetBalance_Await_" + await
	if watch != "" {
		name += "->Change"
	}
	return name
}

// BalanceAction reads the native balance of the sender once await is set.
// When watch is given the read is repeated until the balance differs from
// the value of that field.
func BalanceAction(await, watch string, order int) core.Action[*Workflow] {
	return core.Action[*Workflow]{
		Name:        core.OrderedName(order, balanceName(await, watch)),
		AwaitField:  await,
		WatchField:  watch,
		ResultField: core.BalanceField(await),
		Repeatable:  true,
		Run: func(ctx context.Context, c *core.Context[*Workflow]) (interface{}, error) {
			w := c.Workflow()
			return w.Client.Balance(ctx, w.Client.Address())
		},
	}
}

// ERC20BalanceAction is BalanceAction for the token balance.
func ERC20BalanceAction(await, watch string, order int) core.Action[*Workflow] {
	return core.Action[*Workflow]{
		Name:        core.OrderedName(order, balanceName(await, watch)),
		AwaitField:  await,
		WatchField:  watch,
		ResultField: core.BalanceField(await),
		Repeatable:  true,
		Run: func(ctx context.Context, c *core.Context[*Workflow]) (interface{}, error) {
			w := c.Workflow()
			return w.Client.ERC20Balance(ctx, w.Token, w.Client.Address())
		},
	}
}

// WaitForReceiptAction waits for the receipt of the sent transaction.
func WaitForReceiptAction(order int) core.Action[*Workflow] {
	return core.Action[*Workflow]{
		Name:        core.OrderedName(order, "WaitForTransactionReceipt"),
		AwaitField:  core.FieldHash,
		ResultField: core.FieldReceipt,
		Run: func(ctx context.Context, c *core.Context[*Workflow]) (interface{}, error) {
			hash, ok := core.Value[common.Hash](c, core.FieldHash)
			if !ok {
				return nil, errors.New("no transaction hash in context")
			}

			return c.Workflow().Client.WaitReceipt(ctx, hash)
		},
	}
}
