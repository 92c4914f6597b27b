package scenarios

import (
	"context"

	"flow-latency-benchmark/blockchains/nethereum"
	"flow-latency-benchmark/core"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
)

// TransferActions sends FLOW on the EVM and reads the balance before and
// after the receipt. Only the receipt wait carries an order, the latency keys
// are those of the archived reports.
func TransferActions() []core.Action[*nethereum.Workflow] {
	return []core.Action[*nethereum.Workflow]{
		nethereum.TransferAction(core.Unordered),
		nethereum.BalanceAction(core.FieldHash, "", core.Unordered),
		nethereum.WaitForReceiptAction(2),
		nethereum.BalanceAction(core.FieldReceipt, core.BalanceField(core.FieldHash), core.Unordered),
	}
}

// TransferERC20Actions does the same with the ERC20 token. The transfer is
// archived as 0_TransferAction.
func TransferERC20Actions() []core.Action[*nethereum.Workflow] {
	return []core.Action[*nethereum.Workflow]{
		nethereum.TransferERC20Action(0),
		nethereum.ERC20BalanceAction(core.FieldHash, "", core.Unordered),
		nethereum.WaitForReceiptAction(core.Unordered),
		nethereum.ERC20BalanceAction(core.FieldReceipt, core.BalanceField(core.FieldHash), core.Unordered),
	}
}

func buildTransfer(ctx context.Context, env *Environment) (Scenario, error) {
	return buildEVM(ctx, env, TransferActions())
}

func buildTransferERC20(ctx context.Context, env *Environment) (Scenario, error) {
	return buildEVM(ctx, env, TransferERC20Actions())
}

func evmOptions(env *Environment) ([]nethereum.WorkflowOption, error) {
	var opts []nethereum.WorkflowOption

	if env.Recipient != "" {
		if !common.IsHexAddress(env.Recipient) {
			return nil, errors.Newf("invalid recipient %q", env.Recipient)
		}
		opts = append(opts, nethereum.WithRecipient(common.HexToAddress(env.Recipient)))
	}

	if env.Token != "" {
		if !common.IsHexAddress(env.Token) {
			return nil, errors.Newf("invalid token %q", env.Token)
		}
		opts = append(opts, nethereum.WithToken(common.HexToAddress(env.Token)))
	}

	return opts, nil
}

func buildEVM(ctx context.Context, env *Environment, actions []core.Action[*nethereum.Workflow]) (Scenario, error) {
	if env.PrivateKey == "" {
		return nil, errors.New("no EVM private key")
	}

	opts, err := evmOptions(env)
	if err != nil {
		return nil, err
	}

	client, err := nethereum.Dial(ctx, env.EVMEndpoint, env.PrivateKey)
	if err != nil {
		return nil, err
	}

	w, err := nethereum.NewWorkflow(client, env.Network, opts...)
	if err != nil {
		return nil, err
	}

	c, err := nethereum.NewContext(w)
	if err != nil {
		return nil, err
	}

	return newBatchScenario(c, actions, env.batchOptions(), nil)
}
