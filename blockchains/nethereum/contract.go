package nethereum

import (
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// The two functions of the ERC20 standard the scenarios call.
const erc20ABI = `[
	{
		"constant": false,
		"inputs": [
			{"name": "_to", "type": "address"},
			{"name": "_value", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "_owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "balance", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

type erc20Contract struct {
	abi abi.ABI
}

func newERC20Contract() (*erc20Contract, error) {
	var parsed abi.ABI
	var err error

	parsed, err = abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, errors.Wrap(err, "parsing erc20 abi")
	}

	return &erc20Contract{abi: parsed}, nil
}

func (this *erc20Contract) transfer(to common.Address, amount *big.Int) ([]byte, error) {
	data, err := this.abi.Pack("transfer", to, amount)
	return data, errors.Wrap(err, "packing transfer")
}

func (this *erc20Contract) balanceOf(owner common.Address) ([]byte, error) {
	data, err := this.abi.Pack("balanceOf", owner)
	return data, errors.Wrap(err, "packing balanceOf")
}

func (this *erc20Contract) unpackBalance(output []byte) (*big.Int, error) {
	var values []interface{}
	var balance *big.Int
	var ok bool
	var err error

	values, err = this.abi.Unpack("balanceOf", output)
	if err != nil {
		return nil, errors.Wrap(err, "unpacking balanceOf")
	}
	if len(values) != 1 {
		return nil, errors.Newf("balanceOf returned %d values", len(values))
	}

	balance, ok = values[0].(*big.Int)
	if !ok {
		return nil, errors.Newf("balanceOf returned a %T", values[0])
	}

	return balance, nil
}
