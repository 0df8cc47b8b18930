// Package chainclient defines the retryable chain client contract (C1):
// view/transaction calls and block/log subscriptions against the
// Controller, Coordinator and Adapter contracts, each wrapped in one of
// three independently-tuned ExponentialBackoffRetryDescriptors.
package chainclient

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

// TransactionCaller retries a state-changing contract call. A committed
// on-chain failure (non-nil receipt, zero status) is only retried when
// retryOnTransactionFail is true — otherwise it is a final, reported
// result, per spec.md §4.7.
type TransactionCaller interface {
	CallTransaction(ctx context.Context, info string, send func(context.Context) (*gethtypes.Transaction, error), wait func(context.Context, *gethtypes.Transaction) (*gethtypes.Receipt, error), descriptor core.ExponentialBackoffRetryDescriptor, retryOnTransactionFail bool) (common.Hash, error)
}

// ViewCaller retries a read-only contract call on any error, up to
// descriptor's MaxAttempts.
type ViewCaller interface {
	CallView(ctx context.Context, info string, call func(context.Context) error, descriptor core.ExponentialBackoffRetryDescriptor) error
}

// ControllerTransactions are the Controller contract's state-changing
// entry points: node registration and DKG commit/post-process.
type ControllerTransactions interface {
	NodeRegister(ctx context.Context, idPublicKey []byte) (common.Hash, error)
	CommitDKG(ctx context.Context, groupIndex, groupEpoch int, publicKey []byte, commitments [][]byte, disqualified []common.Address) (common.Hash, error)
	PostProcessDKG(ctx context.Context, groupIndex, groupEpoch int) (common.Hash, error)
}

// ControllerViews are the Controller contract's read-only entry points.
type ControllerViews interface {
	GetNode(ctx context.Context, idAddress common.Address) (*core.Node, error)
	GetGroup(ctx context.Context, groupIndex int) (*core.Group, error)
	GetCoordinator(ctx context.Context, groupIndex int) (common.Address, error)
}

// ControllerLogs is the Controller contract's event subscription surface.
// cb is invoked once per NewDKGTask announcement; the subscription loop
// ends (and the scheduler respawns it) when the upstream log stream ends.
type ControllerLogs interface {
	SubscribeDKGTask(ctx context.Context, cb func(context.Context, DKGTask) error) error
}

// DKGTask is a freshly-announced grouping task, as reported by the
// Controller's DKG-task event.
type DKGTask struct {
	GroupIndex          int
	Epoch               int
	Threshold           int
	Members             []common.Address
	AssignmentBlockHeight int
	CoordinatorAddress  common.Address
}

// CoordinatorTransactions is the DKG coordinator board's single write
// entry point: every phase (share, response, justification) publishes
// through the same call, keyed by DKG phase on-chain. Each group has its
// own coordinator contract instance, so this (and CoordinatorViews) is
// always obtained by binding a specific address via Client.BindCoordinator.
type CoordinatorTransactions interface {
	Publish(ctx context.Context, value []byte) (common.Hash, error)
}

// CoordinatorViews reads the coordinator board's per-phase mappings. An
// element at a participant's index is the zero value if that participant
// has registered but not yet published for the current phase.
type CoordinatorViews interface {
	GetShares(ctx context.Context) ([][]byte, error)
	GetResponses(ctx context.Context) ([][]byte, error)
	GetJustifications(ctx context.Context) ([][]byte, error)
	GetParticipants(ctx context.Context) ([]common.Address, error)
	GetDKGKeys(ctx context.Context) (threshold int, keys [][]byte, err error)
	// InPhase returns the coordinator's current DKG phase: -1 before the
	// DKG starts, 0/1/2 the Joint-Feldman share/response/justification
	// phases.
	InPhase(ctx context.Context) (int, error)
}

// AdapterTransactions is the randomness adapter's write entry point: the
// on-chain commit of a recovered group signature.
type AdapterTransactions interface {
	FulfillRandomness(ctx context.Context, groupIndex int, task core.RandomnessTask, signature []byte, partials map[common.Address][]byte) (common.Hash, error)
}

// AdapterViews is the randomness adapter's read-only surface.
type AdapterViews interface {
	GetLastRandomness(ctx context.Context) (*big.Int, error)
	IsTaskPending(ctx context.Context, requestID []byte) (bool, error)
}

// AdapterLogs is the randomness adapter's event subscription surface.
type AdapterLogs interface {
	SubscribeRandomnessTask(ctx context.Context, cb func(context.Context, core.RandomnessTask) error) error
}

// BlockFetcher is the chain provider's block-height subscription surface,
// shared read-only by every block-driven listener.
type BlockFetcher interface {
	SubscribeNewBlockHeight(ctx context.Context, cb func(context.Context, int) error) error
}

// CoordinatorClient is the full read/write surface of one group's
// coordinator contract.
type CoordinatorClient interface {
	CoordinatorTransactions
	CoordinatorViews
}

// Client bundles every chain-facing capability this node needs. A
// go-ethereum-backed implementation lives in ethchain.go; tests use a
// hand-rolled fake satisfying the same interfaces.
type Client interface {
	ControllerTransactions
	ControllerViews
	ControllerLogs
	AdapterTransactions
	AdapterViews
	AdapterLogs
	BlockFetcher

	// BindCoordinator returns the CoordinatorClient for one group's
	// coordinator contract. Coordinators rotate per group/DKG run, unlike
	// the controller and adapter, which are fixed per deployment.
	BindCoordinator(coordinatorAddr common.Address) CoordinatorClient
}

// TransactOpts is the subset of bind.TransactOpts a Client implementation
// needs to sign and send transactions; kept as its own type so callers
// need not import go-ethereum's accounts/abi/bind package directly.
type TransactOpts = bind.TransactOpts
