package ncadence

import (
	"context"
	"sync"

	"flow-latency-benchmark/core/configs"

	"github.com/cockroachdb/errors"
	"github.com/onflow/cadence"
	"github.com/onflow/flow-go-sdk"
	"github.com/onflow/flow-go-sdk/crypto"
	"go.uber.org/zap"
)

// Wallet signs transactions for one account key.
type Wallet struct {
	connector *Connector
	address   flow.Address
	keyIndex  uint32
	signer    crypto.Signer

	mu sync.Mutex // serialises the use of the proposal key
}

// NewWallet builds a wallet over an ECDSA_P256 key hashed with SHA3_256.
func NewWallet(connector *Connector, address, privateKeyHex string, keyIndex uint32) (*Wallet, error) {
	if address == "" {
		return nil, errors.New("no signer address")
	}
	if privateKeyHex == "" {
		return nil, errors.Newf("the flow wallet %s has no private key", address)
	}

	sk, err := crypto.DecodePrivateKeyHex(crypto.ECDSA_P256, configs.TrimHexPrefix(privateKeyHex))
	if err != nil {
		return nil, errors.Wrap(err, "invalid flow private key")
	}

	signer, err := crypto.NewInMemorySigner(sk, crypto.SHA3_256)
	if err != nil {
		return nil, errors.Wrap(err, "building signer")
	}

	return &Wallet{
		connector: connector,
		address:   flow.HexToAddress(address),
		keyIndex:  keyIndex,
		signer:    signer,
	}, nil
}

// Address is the account of the wallet.
func (w *Wallet) Address() flow.Address {
	return w.address
}

// Connector is the connector the wallet sends through.
func (w *Wallet) Connector() *Connector {
	return w.connector
}

// Balance returns the FLOW balance of the wallet account, in 1e-8 FLOW.
func (w *Wallet) Balance(ctx context.Context) (uint64, error) {
	account, err := w.connector.GetAccount(ctx, w.address)
	if err != nil {
		return 0, err
	}

	zap.L().Debug("account balance",
		zap.String("account", w.address.Hex()),
		zap.Uint64("balance", account.Balance))

	return account.Balance, nil
}

// SendTransaction signs a script as proposer, payer and single authorizer and
// sends it.
func (w *Wallet) SendTransaction(ctx context.Context, script []byte, args ...cadence.Value) (flow.Identifier, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	account, err := w.connector.GetAccount(ctx, w.address)
	if err != nil {
		return flow.EmptyID, err
	}

	var key *flow.AccountKey
	for _, k := range account.Keys {
		if k.Index == w.keyIndex {
			key = k
			break
		}
	}
	if key == nil {
		return flow.EmptyID, errors.Newf("account %s has no key %d", w.address.Hex(), w.keyIndex)
	}
	if key.Revoked {
		return flow.EmptyID, errors.Newf("key %d of %s is revoked", w.keyIndex, w.address.Hex())
	}

	reference, err := w.connector.ReferenceBlockID(ctx)
	if err != nil {
		return flow.EmptyID, err
	}

	tx := flow.NewTransaction().
		SetScript(script).
		SetComputeLimit(ComputeLimit).
		SetProposalKey(w.address, key.Index, key.SequenceNumber).
		SetReferenceBlockID(reference).
		SetPayer(w.address).
		AddAuthorizer(w.address)

	for _, arg := range args {
		if err := tx.AddArgument(arg); err != nil {
			return flow.EmptyID, errors.Wrap(err, "encoding argument")
		}
	}

	if err := tx.SignEnvelope(w.address, key.Index, w.signer); err != nil {
		return flow.EmptyID, errors.Wrap(err, "signing transaction")
	}

	if err := w.connector.Send(ctx, tx); err != nil {
		return flow.EmptyID, err
	}

	zap.L().Info("transaction sent", zap.Stringer("id", tx.ID()))

	return tx.ID(), nil
}
