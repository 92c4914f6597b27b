package headless

import (
	"context"

	"flow-latency-benchmark/core"

	"github.com/cockroachdb/errors"
)

const (
	FieldKittyPunch           = "kittypunch"
	FieldSwapInitialized      = "kittypunch-swap-initialized"
	FieldSwapClicked          = "swap-clicked"
	FieldTransactionSigned    = "transaction-signed"
	FieldTransactionCompleted = "transaction-completed"
)

// Workflow carries the browser and the websites it drives.
type Workflow struct {
	Browser    *Browser
	KittyPunch *KittyPunch
}

func (w *Workflow) Kind() string {
	return "browser"
}

// NewContext builds a context seeded with the enabled websites.
func NewContext(w *Workflow) (*core.Context[*Workflow], error) {
	c := core.NewContext(w)
	if w.KittyPunch != nil {
		if err := c.Seed(FieldKittyPunch, w.KittyPunch); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func kittyPunch(c *core.Context[*Workflow]) (*KittyPunch, error) {
	k := c.Workflow().KittyPunch
	if k == nil {
		return nil, errors.New("kittypunch website not enabled")
	}
	return k, nil
}

// InitSwapAction opens the FLOW to USDF swap page and connects the wallet.
func InitSwapAction(order int) core.Action[*Workflow] {
	return core.Action[*Workflow]{
		Name:        core.OrderedName(order, "KittypunchSwap_PageInit"),
		AwaitField:  FieldKittyPunch,
		ResultField: FieldSwapInitialized,
		Run: func(ctx context.Context, c *core.Context[*Workflow]) (interface{}, error) {
			k, err := kittyPunch(c)
			if err != nil {
				return nil, err
			}
			if err := k.OpenSwapPage(TokenFLOW, TokenUSDF); err != nil {
				return nil, err
			}
			if err := k.ConnectWallet(ctx); err != nil {
				return nil, err
			}
			return true, nil
		},
	}
}

// SwapAction swaps from for to, the amount being chosen by the amount
// shortcut button of the page ("50%", "Max").
func SwapAction(order int, from, to Token, amountButton string) core.Action[*Workflow] {
	return core.Action[*Workflow]{
		Name:        core.OrderedName(order, swapName(from, to)),
		AwaitField:  FieldSwapInitialized,
		ResultField: FieldSwapClicked,
		Run: func(ctx context.Context, c *core.Context[*Workflow]) (interface{}, error) {
			k, err := kittyPunch(c)
			if err != nil {
				return nil, err
			}
			if err := k.Swap(ctx, from, to, amountButton); err != nil {
				return nil, err
			}
			return true, nil
		},
	}
}

// SignAction approves the swap in the wallet extension.
func SignAction(order int) core.Action[*Workflow] {
	return core.Action[*Workflow]{
		Name:        core.OrderedName(order, "DoSigningTransaction"),
		AwaitField:  FieldSwapClicked,
		ResultField: FieldTransactionSigned,
		Run: func(ctx context.Context, c *core.Context[*Workflow]) (interface{}, error) {
			k, err := kittyPunch(c)
			if err != nil {
				return nil, err
			}
			if err := k.SignTransaction(ctx); err != nil {
				return nil, err
			}
			return true, nil
		},
	}
}

// WaitForCompletedAction waits until the dex reports the swap completed.
func WaitForCompletedAction(order int) core.Action[*Workflow] {
	return core.Action[*Workflow]{
		Name:        core.OrderedName(order, "WaitForCompleted"),
		AwaitField:  FieldTransactionSigned,
		ResultField: FieldTransactionCompleted,
		Run: func(ctx context.Context, c *core.Context[*Workflow]) (interface{}, error) {
			k, err := kittyPunch(c)
			if err != nil {
				return nil, err
			}
			if err := k.WaitForCompleted(ctx); err != nil {
				return nil, err
			}
			return true, nil
		},
	}
}
