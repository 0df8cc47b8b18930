package chainclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

// ErrTransactionFailed marks a transaction that landed on-chain with a
// failure receipt — a committed result, never retried unless the caller
// explicitly opts in via retryOnTransactionFail.
var ErrTransactionFailed = errors.New("chainclient: transaction reverted")

// ErrNoReceipt marks a transaction whose receipt could not be obtained.
var ErrNoReceipt = errors.New("chainclient: no transaction receipt")

// Retryer is the one implementation of TransactionCaller/ViewCaller;
// every concrete chain client embeds it and supplies its own
// descriptor set from core.Config.TimeLimits.
type Retryer struct{}

func (Retryer) CallView(ctx context.Context, info string, call func(context.Context) error, descriptor core.ExponentialBackoffRetryDescriptor) error {
	err := descriptor.Retry(ctx, func() error {
		if err := call(ctx); err != nil {
			return fmt.Errorf("contract view %s: %w", info, err)
		}
		return nil
	})
	return err
}

func (Retryer) CallTransaction(
	ctx context.Context,
	info string,
	send func(context.Context) (*gethtypes.Transaction, error),
	wait func(context.Context, *gethtypes.Transaction) (*gethtypes.Receipt, error),
	descriptor core.ExponentialBackoffRetryDescriptor,
	retryOnTransactionFail bool,
) (hash common.Hash, err error) {
	shouldRetry := func(e error) bool {
		return retryOnTransactionFail || !errors.Is(e, ErrTransactionFailed)
	}

	retryErr := descriptor.RetryIf(ctx, func() error {
		tx, sendErr := send(ctx)
		if sendErr != nil {
			return fmt.Errorf("contract transaction %s: send: %w", info, sendErr)
		}

		receipt, waitErr := wait(ctx, tx)
		if waitErr != nil {
			return fmt.Errorf("contract transaction %s: await receipt: %w", info, waitErr)
		}
		if receipt == nil {
			return fmt.Errorf("contract transaction %s: %w", info, ErrNoReceipt)
		}
		if receipt.Status == gethtypes.ReceiptStatusFailed {
			return fmt.Errorf("contract transaction %s: %w", info, ErrTransactionFailed)
		}
		hash = tx.Hash()
		return nil
	}, shouldRetry)

	return hash, retryErr
}
