// Package ncadence drives the Cadence side of Flow through an access node:
// it signs and sends the FLOW transfer of the Cadence scenarios and follows
// the transaction until it is executed and sealed.
package ncadence

import (
	"context"

	"github.com/onflow/flow-go-sdk"
)

// Access is the part of the access API the connector uses. It is implemented
// by the grpc client of the SDK.
type Access interface {
	GetAccount(ctx context.Context, address flow.Address) (*flow.Account, error)
	GetLatestBlockHeader(ctx context.Context, isSealed bool) (*flow.BlockHeader, error)
	SendTransaction(ctx context.Context, tx flow.Transaction) error
	GetTransactionResult(ctx context.Context, txID flow.Identifier) (*flow.TransactionResult, error)
}
