package scenarios

import (
	"context"

	"flow-latency-benchmark/blockchains/ncadence"
	"flow-latency-benchmark/core"

	"github.com/cockroachdb/errors"
)

// CadenceActions sends FLOW with a Cadence transaction and measures the
// executed and sealed stages.
func CadenceActions() []core.Action[*ncadence.Workflow] {
	return []core.Action[*ncadence.Workflow]{
		ncadence.TransferAction(0),
		ncadence.BalanceAction(core.FieldHash, "", 1),
		ncadence.WaitForExecutedAction(2),
		ncadence.BalanceAction(core.FieldReceipt, core.BalanceField(core.FieldHash), 3),
		ncadence.WaitForSealedAction(4),
	}
}

// CadenceSoftFinalityActions is the variant run against an access node
// answering with executed rather than sealed state. Only the transfer is
// ordered.
func CadenceSoftFinalityActions() []core.Action[*ncadence.Workflow] {
	return []core.Action[*ncadence.Workflow]{
		ncadence.TransferAction(0),
		ncadence.BalanceAction(core.FieldHash, "", core.Unordered),
		ncadence.WaitForExecutedAction(core.Unordered),
		ncadence.WaitForSealedAction(core.Unordered),
		ncadence.BalanceAction(core.FieldReceipt, core.BalanceField(core.FieldHash), core.Unordered),
	}
}

func buildCadence(soft bool, actions func() []core.Action[*ncadence.Workflow]) Builder {
	return func(_ context.Context, env *Environment) (Scenario, error) {
		if env.FlowAddress == "" || env.FlowKey == "" {
			return nil, errors.New("no Flow address or private key")
		}

		connector, err := ncadence.Dial(env.Network, env.AccessHost, soft)
		if err != nil {
			return nil, err
		}

		wallet, err := ncadence.NewWallet(connector, env.FlowAddress, env.FlowKey, env.FlowKeyIndex)
		if err != nil {
			return nil, err
		}

		w, err := ncadence.NewWorkflow(wallet, env.FlowRecipient)
		if err != nil {
			return nil, err
		}

		c, err := ncadence.NewContext(w)
		if err != nil {
			return nil, err
		}

		return newBatchScenario(c, actions(), env.batchOptions(), nil)
	}
}
