package ncadence

import (
	"context"
	"time"

	"flow-latency-benchmark/core/configs"
	"flow-latency-benchmark/util"

	"github.com/cockroachdb/errors"
	"github.com/onflow/flow-go-sdk"
	"github.com/onflow/flow-go-sdk/access/grpc"
	"go.uber.org/zap"
)

const (
	// StatusPollInterval is the pause between two transaction result
	// lookups.
	StatusPollInterval = 200 * time.Millisecond
	// StatusTimeout bounds the wait for a transaction status.
	StatusTimeout = 90 * time.Second
	// ComputeLimit is the compute limit of the sent transactions.
	ComputeLimit = 9999
)

// ErrTransactionExpired is returned when a followed transaction expired
// before reaching the awaited status.
var ErrTransactionExpired = errors.New("transaction expired")

// Access node of each network.
var accessHosts = map[string]string{
	configs.NetworkMainnet:  grpc.MainnetHost,
	configs.NetworkTestnet:  grpc.TestnetHost,
	configs.NetworkEmulator: grpc.EmulatorHost,
}

// Connector sends transactions to a network and follows their status.
type Connector struct {
	access       Access
	network      string
	softFinality bool

	pollInterval time.Duration
	timeout      time.Duration
}

// Dial connects to the access node of a network. An empty host selects the
// public access node of the network.
func Dial(network, host string, softFinality bool) (*Connector, error) {
	if host == "" {
		var ok bool
		host, ok = accessHosts[network]
		if !ok {
			return nil, errors.Newf("network type %s is not supported", network)
		}
	}

	zap.L().Debug("dial access node",
		zap.String("network", network),
		zap.String("host", host),
		zap.Bool("soft_finality", softFinality))

	client, err := grpc.NewClient(host)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", host)
	}

	return NewConnector(client, network, softFinality), nil
}

// NewConnector builds a connector over an access client.
func NewConnector(access Access, network string, softFinality bool) *Connector {
	return &Connector{
		access:       access,
		network:      network,
		softFinality: softFinality,
		pollInterval: StatusPollInterval,
		timeout:      StatusTimeout,
	}
}

// Network is the network the connector talks to.
func (c *Connector) Network() string {
	return c.network
}

// SoftFinality tells whether the connector builds on the latest finalized
// block instead of the latest sealed one.
func (c *Connector) SoftFinality() bool {
	return c.softFinality
}

// GetAccount reads an account, its balance and keys.
func (c *Connector) GetAccount(ctx context.Context, address flow.Address) (*flow.Account, error) {
	account, err := c.access.GetAccount(ctx, address)
	return account, errors.Wrapf(err, "reading account %s", address.Hex())
}

// ReferenceBlockID returns the block the next transaction refers to.
func (c *Connector) ReferenceBlockID(ctx context.Context) (flow.Identifier, error) {
	header, err := c.access.GetLatestBlockHeader(ctx, !c.softFinality)
	if err != nil {
		return flow.EmptyID, errors.Wrap(err, "reading latest block header")
	}
	return header.ID, nil
}

// Send submits a signed transaction.
func (c *Connector) Send(ctx context.Context, tx *flow.Transaction) error {
	return errors.Wrapf(c.access.SendTransaction(ctx, *tx), "sending transaction %s", tx.ID())
}

// OnceExecuted waits until the transaction is executed.
func (c *Connector) OnceExecuted(ctx context.Context, id flow.Identifier) (*flow.TransactionResult, error) {
	return c.waitStatus(ctx, id, flow.TransactionStatusExecuted)
}

// OnceSealed waits until the transaction is sealed.
func (c *Connector) OnceSealed(ctx context.Context, id flow.Identifier) (*flow.TransactionResult, error) {
	return c.waitStatus(ctx, id, flow.TransactionStatusSealed)
}

func (c *Connector) waitStatus(ctx context.Context, id flow.Identifier, status flow.TransactionStatus) (*flow.TransactionResult, error) {
	var result *flow.TransactionResult

	err := util.Poll(ctx, c.pollInterval, c.timeout, func(ctx context.Context) error {
		var err error

		result, err = c.access.GetTransactionResult(ctx, id)
		if err != nil {
			return err
		}

		switch {
		case result.Status == flow.TransactionStatusExpired:
			return ErrTransactionExpired
		case result.Status < status:
			return util.ErrNotReady
		default:
			return nil
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "waiting for %s to be %s", id, status)
	}

	if result.Error != nil {
		return result, errors.Wrapf(result.Error, "transaction %s failed", id)
	}

	zap.L().Info("transaction status",
		zap.Stringer("id", id),
		zap.Stringer("status", result.Status))

	return result, nil
}
