package chainclient

import (
	"context"
	"errors"
	"testing"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

func fastDescriptor(maxAttempts int) core.ExponentialBackoffRetryDescriptor {
	return core.ExponentialBackoffRetryDescriptor{Base: 0, Factor: 1, MaxAttempts: maxAttempts}
}

func TestRetryerCallViewRetriesUntilSuccess(t *testing.T) {
	r := Retryer{}
	var calls int
	err := r.CallView(context.Background(), "test-view", func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	}, fastDescriptor(3))

	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestRetryerCallTransactionSucceeds(t *testing.T) {
	r := Retryer{}
	tx := gethtypes.NewTransaction(0, [20]byte{}, nil, 0, nil, nil)

	hash, err := r.CallTransaction(context.Background(), "test-tx",
		func(ctx context.Context) (*gethtypes.Transaction, error) { return tx, nil },
		func(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error) {
			return &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful}, nil
		},
		fastDescriptor(3), false)

	require.NoError(t, err)
	require.Equal(t, tx.Hash(), hash)
}

func TestRetryerCallTransactionDoesNotRetryFailedReceiptByDefault(t *testing.T) {
	r := Retryer{}
	tx := gethtypes.NewTransaction(0, [20]byte{}, nil, 0, nil, nil)
	var sendCalls int

	_, err := r.CallTransaction(context.Background(), "test-tx",
		func(ctx context.Context) (*gethtypes.Transaction, error) { sendCalls++; return tx, nil },
		func(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error) {
			return &gethtypes.Receipt{Status: gethtypes.ReceiptStatusFailed}, nil
		},
		fastDescriptor(5), false)

	require.ErrorIs(t, err, ErrTransactionFailed)
	require.Equal(t, 1, sendCalls)
}

func TestRetryerCallTransactionRetriesFailedReceiptWhenOptedIn(t *testing.T) {
	r := Retryer{}
	tx := gethtypes.NewTransaction(0, [20]byte{}, nil, 0, nil, nil)
	var sendCalls int

	_, err := r.CallTransaction(context.Background(), "test-tx",
		func(ctx context.Context) (*gethtypes.Transaction, error) { sendCalls++; return tx, nil },
		func(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error) {
			return &gethtypes.Receipt{Status: gethtypes.ReceiptStatusFailed}, nil
		},
		fastDescriptor(3), true)

	require.ErrorIs(t, err, ErrTransactionFailed)
	require.Equal(t, 3, sendCalls)
}

func TestRetryerCallTransactionNoReceiptIsRetried(t *testing.T) {
	r := Retryer{}
	tx := gethtypes.NewTransaction(0, [20]byte{}, nil, 0, nil, nil)
	var waitCalls int

	_, err := r.CallTransaction(context.Background(), "test-tx",
		func(ctx context.Context) (*gethtypes.Transaction, error) { return tx, nil },
		func(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error) {
			waitCalls++
			return nil, nil
		},
		fastDescriptor(2), false)

	require.ErrorIs(t, err, ErrNoReceipt)
	require.Equal(t, 2, waitCalls)
}
