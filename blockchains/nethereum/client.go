package nethereum

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"flow-latency-benchmark/core/configs"
	"flow-latency-benchmark/util"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const (
	// ReceiptPollInterval is the pause between two receipt lookups.
	ReceiptPollInterval = 200 * time.Millisecond
	// ReceiptTimeout bounds the wait for a receipt.
	ReceiptTimeout = 90 * time.Second
)

// Client signs transactions with one key and sends them to an EVM endpoint.
type Client struct {
	chain   Chain
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	erc20   *erc20Contract

	receiptPoll    time.Duration
	receiptTimeout time.Duration
}

// Dial connects to the JSON-RPC endpoint and builds a client for the key.
func Dial(ctx context.Context, endpoint string, privateKeyHex string) (*Client, error) {
	var client *ethclient.Client
	var err error

	zap.L().Debug("dial evm endpoint", zap.String("endpoint", endpoint))

	client, err = ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", endpoint)
	}

	return NewClient(ctx, client, privateKeyHex)
}

// NewClient builds a client over an existing chain connection. The chain id
// is read once from the endpoint.
func NewClient(ctx context.Context, chain Chain, privateKeyHex string) (*Client, error) {
	var key *ecdsa.PrivateKey
	var chainID *big.Int
	var contract *erc20Contract
	var err error

	if privateKeyHex == "" {
		return nil, errors.New("no private key provided")
	}

	key, err = crypto.HexToECDSA(configs.TrimHexPrefix(privateKeyHex))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}

	chainID, err = chain.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading chain id")
	}

	contract, err = newERC20Contract()
	if err != nil {
		return nil, err
	}

	return &Client{
		chain:          chain,
		key:            key,
		address:        crypto.PubkeyToAddress(key.PublicKey),
		chainID:        chainID,
		erc20:          contract,
		receiptPoll:    ReceiptPollInterval,
		receiptTimeout: ReceiptTimeout,
	}, nil
}

// Address is the account of the signing key.
func (this *Client) Address() common.Address {
	return this.address
}

// ChainID is the chain id the transactions are signed for.
func (this *Client) ChainID() *big.Int {
	return new(big.Int).Set(this.chainID)
}

// Transfer sends value wei of the native token.
func (this *Client) Transfer(ctx context.Context, to common.Address, value *big.Int) (common.Hash, error) {
	return this.send(ctx, to, value, nil)
}

// TransferERC20 calls transfer(to, amount) on the token contract.
func (this *Client) TransferERC20(ctx context.Context, token, to common.Address, amount *big.Int) (common.Hash, error) {
	data, err := this.erc20.transfer(to, amount)
	if err != nil {
		return common.Hash{}, err
	}

	return this.send(ctx, token, big.NewInt(0), data)
}

func (this *Client) send(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	var nonce, gas uint64
	var gasPrice *big.Int
	var stx *types.Transaction
	var err error

	nonce, err = this.chain.PendingNonceAt(ctx, this.address)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "reading nonce")
	}

	gasPrice, err = this.chain.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "reading gas price")
	}

	gas, err = this.chain.EstimateGas(ctx, ethereum.CallMsg{
		From:     this.address,
		To:       &to,
		GasPrice: gasPrice,
		Value:    value,
		Data:     data,
	})
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "estimating gas")
	}

	stx, err = types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	}), types.LatestSignerForChainID(this.chainID), this.key)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "signing transaction")
	}

	err = this.chain.SendTransaction(ctx, stx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "sending transaction")
	}

	zap.L().Info("transaction sent",
		zap.String("hash", stx.Hash().Hex()),
		zap.Uint64("nonce", nonce))

	return stx.Hash(), nil
}

// Balance returns the native balance of the account, in wei.
func (this *Client) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := this.chain.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "reading balance of %s", account.Hex())
	}

	zap.L().Debug("account balance",
		zap.String("account", account.Hex()),
		zap.String("balance", FormatEther(balance)))

	return balance, nil
}

// ERC20Balance calls balanceOf(owner) on the token contract.
func (this *Client) ERC20Balance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	var data, output []byte
	var err error

	data, err = this.erc20.balanceOf(owner)
	if err != nil {
		return nil, err
	}

	output, err = this.chain.CallContract(ctx, ethereum.CallMsg{
		From: owner,
		To:   &token,
		Data: data,
	}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "calling balanceOf on %s", token.Hex())
	}

	return this.erc20.unpackBalance(output)
}

// WaitReceipt polls the receipt of a transaction until it is mined. A
// reverted transaction still returns its receipt.
func (this *Client) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt

	zap.L().Info("waiting for transaction receipt", zap.String("hash", hash.Hex()))

	err := util.Poll(ctx, this.receiptPoll, this.receiptTimeout, func(ctx context.Context) error {
		var err error

		receipt, err = this.chain.TransactionReceipt(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			return util.ErrNotReady
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "waiting for receipt of %s", hash.Hex())
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		zap.L().Warn("transaction reverted", zap.String("hash", hash.Hex()))
	} else {
		zap.L().Info("transaction receipt",
			zap.String("hash", hash.Hex()),
			zap.Stringer("block", receipt.BlockNumber))
	}

	return receipt, nil
}
