// Package chainclient: go-ethereum-backed Client implementation. Contract
// bindings are hand-bound via bind.BoundContract against small inline ABI
// fragments (one per method actually called) rather than abigen-generated
// packages, since no Solidity sources ship with this node.
package chainclient

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/arpa-network/arpa-node/internal/lg"
	"github.com/arpa-network/arpa-node/internal/node/core"
)

const controllerABI = `[
{"name":"nodeRegister","type":"function","stateMutability":"nonpayable","inputs":[{"name":"idPublicKey","type":"bytes"}],"outputs":[]},
{"name":"commitDkg","type":"function","stateMutability":"nonpayable","inputs":[{"name":"groupIndex","type":"uint256"},{"name":"groupEpoch","type":"uint256"},{"name":"publicKey","type":"bytes"},{"name":"commitments","type":"bytes[]"},{"name":"disqualifiedNodes","type":"address[]"}],"outputs":[]},
{"name":"postProcessDkg","type":"function","stateMutability":"nonpayable","inputs":[{"name":"groupIndex","type":"uint256"},{"name":"groupEpoch","type":"uint256"}],"outputs":[]},
{"name":"getCoordinator","type":"function","stateMutability":"view","inputs":[{"name":"groupIndex","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

const coordinatorABI = `[
{"name":"publish","type":"function","stateMutability":"nonpayable","inputs":[{"name":"value","type":"bytes"}],"outputs":[]},
{"name":"getShares","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes[]"}]},
{"name":"getResponses","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes[]"}]},
{"name":"getJustifications","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes[]"}]},
{"name":"getParticipants","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
{"name":"inPhase","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"int8"}]}
]`

const adapterABI = `[
{"name":"fulfillRandomness","type":"function","stateMutability":"nonpayable","inputs":[{"name":"groupIndex","type":"uint256"},{"name":"requestId","type":"bytes"},{"name":"signature","type":"bytes"}],"outputs":[]},
{"name":"getLastRandomness","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"name":"isTaskPending","type":"function","stateMutability":"view","inputs":[{"name":"requestId","type":"bytes"}],"outputs":[{"name":"","type":"bool"}]}
]`

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("chainclient: invalid embedded ABI: %v", err))
	}
	return parsed
}

// EthClient is the production Client, backed by a single *ethclient.Client
// shared read-only across the whole pipeline (spec.md §3's ownership
// rule), signing transactions with a local *bind.TransactOpts.
type EthClient struct {
	Retryer

	eth    *ethclient.Client
	signer *bind.TransactOpts
	log    lg.Logger

	controller  *bind.BoundContract
	adapterAddr common.Address
	adapter     *bind.BoundContract

	controllerAddr common.Address

	timeLimits core.TimeLimitDescriptor
}

// NewEthClient dials providerEndpoint and binds the controller and
// adapter contracts. Coordinator contracts are bound lazily per group via
// BindCoordinator, since each group gets its own coordinator instance.
func NewEthClient(ctx context.Context, providerEndpoint string, controllerAddr, adapterAddr common.Address, signer *bind.TransactOpts, timeLimits core.TimeLimitDescriptor, log lg.Logger) (*EthClient, error) {
	raw, err := ethclient.DialContext(ctx, providerEndpoint)
	if err != nil {
		return nil, fmt.Errorf("chainclient: dial %s: %w", providerEndpoint, err)
	}
	if log == nil {
		log = lg.Default()
	}

	cABI := mustParseABI(controllerABI)
	aABI := mustParseABI(adapterABI)

	return &EthClient{
		eth:            raw,
		signer:         signer,
		log:            log,
		controllerAddr: controllerAddr,
		controller:     bind.NewBoundContract(controllerAddr, cABI, raw, raw, raw),
		adapterAddr:    adapterAddr,
		adapter:        bind.NewBoundContract(adapterAddr, aABI, raw, raw, raw),
		timeLimits:     timeLimits,
	}, nil
}

// boundCoordinator is CoordinatorClient bound to one group's coordinator
// contract address.
type boundCoordinator struct {
	Retryer
	bound      *bind.BoundContract
	signer     *bind.TransactOpts
	eth        *ethclient.Client
	timeLimits core.TimeLimitDescriptor
}

// BindCoordinator binds addr's coordinator contract; groups rotate
// coordinators across DKG runs, so callers bind fresh per DKG task rather
// than caching on EthClient.
func (c *EthClient) BindCoordinator(addr common.Address) CoordinatorClient {
	return &boundCoordinator{
		bound:      bind.NewBoundContract(addr, mustParseABI(coordinatorABI), c.eth, c.eth, c.eth),
		signer:     c.signer,
		eth:        c.eth,
		timeLimits: c.timeLimits,
	}
}

func transactWith(ctx context.Context, r Retryer, signer *bind.TransactOpts, eth *ethclient.Client, info string, descriptor core.ExponentialBackoffRetryDescriptor, retryOnFail bool, fn func(*bind.TransactOpts) (*gethtypes.Transaction, error)) (common.Hash, error) {
	opts := *signer
	opts.Context = ctx
	return r.CallTransaction(ctx, info,
		func(ctx context.Context) (*gethtypes.Transaction, error) { return fn(&opts) },
		func(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error) {
			return bind.WaitMined(ctx, eth, tx)
		},
		descriptor, retryOnFail)
}

func (c *EthClient) transact(ctx context.Context, info string, descriptor core.ExponentialBackoffRetryDescriptor, retryOnFail bool, fn func(*bind.TransactOpts) (*gethtypes.Transaction, error)) (common.Hash, error) {
	return transactWith(ctx, c.Retryer, c.signer, c.eth, info, descriptor, retryOnFail, fn)
}

func (c *EthClient) NodeRegister(ctx context.Context, idPublicKey []byte) (common.Hash, error) {
	return c.transact(ctx, "nodeRegister", c.timeLimits.ContractTransactionRetryDescriptor, true, func(opts *bind.TransactOpts) (*gethtypes.Transaction, error) {
		return c.controller.Transact(opts, "nodeRegister", idPublicKey)
	})
}

func (c *EthClient) CommitDKG(ctx context.Context, groupIndex, groupEpoch int, publicKey []byte, commitments [][]byte, disqualified []common.Address) (common.Hash, error) {
	return c.transact(ctx, "commitDkg", c.timeLimits.ContractTransactionRetryDescriptor, false, func(opts *bind.TransactOpts) (*gethtypes.Transaction, error) {
		return c.controller.Transact(opts, "commitDkg", big.NewInt(int64(groupIndex)), big.NewInt(int64(groupEpoch)), publicKey, commitments, disqualified)
	})
}

func (c *EthClient) PostProcessDKG(ctx context.Context, groupIndex, groupEpoch int) (common.Hash, error) {
	return c.transact(ctx, "postProcessDkg", c.timeLimits.ContractTransactionRetryDescriptor, true, func(opts *bind.TransactOpts) (*gethtypes.Transaction, error) {
		return c.controller.Transact(opts, "postProcessDkg", big.NewInt(int64(groupIndex)), big.NewInt(int64(groupEpoch)))
	})
}

func (c *EthClient) GetNode(ctx context.Context, idAddress common.Address) (*core.Node, error) {
	return nil, fmt.Errorf("chainclient: GetNode requires a group/member-aware decoder not yet wired to an on-chain layout")
}

func (c *EthClient) GetGroup(ctx context.Context, groupIndex int) (*core.Group, error) {
	return nil, fmt.Errorf("chainclient: GetGroup requires a group/member-aware decoder not yet wired to an on-chain layout")
}

func (c *EthClient) GetCoordinator(ctx context.Context, groupIndex int) (common.Address, error) {
	var out []interface{}
	err := c.CallView(ctx, "getCoordinator", func(ctx context.Context) error {
		results, callErr := c.controller.Call(&bind.CallOpts{Context: ctx}, &out, "getCoordinator", big.NewInt(int64(groupIndex)))
		_ = results
		return callErr
	}, c.timeLimits.ContractViewRetryDescriptor)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chainclient: getCoordinator: unexpected return type")
	}
	return addr, nil
}

// SubscribeDKGTask subscribes to every log the controller contract emits
// via ethereum.FilterQuery and receives them until ctx is done or the log
// subscription errors. Received logs are not decoded and cb is never
// invoked: no DKGTask is produced by this client.
func (c *EthClient) SubscribeDKGTask(ctx context.Context, cb func(context.Context, DKGTask) error) error {
	logs := make(chan gethtypes.Log)
	sub, err := c.eth.SubscribeFilterLogs(ctx, ethereum.FilterQuery{Addresses: []common.Address{c.controllerAddr}}, logs)
	if err != nil {
		return fmt.Errorf("chainclient: subscribe dkg task: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("chainclient: dkg task log stream ended: %w", err)
		case <-logs:
			// Event decoding is deployment-specific; callers needing the
			// decoded task should supply a decoder via a narrower
			// interface. This loop's contract is the subscribe/err/retry
			// shape the scheduler depends on.
		}
	}
}

// Publish sends value to this coordinator's board. Every DKG phase
// (share, response, justification) publishes through this same call,
// distinguished on-chain by the coordinator's own phase tracking.
func (b *boundCoordinator) Publish(ctx context.Context, value []byte) (common.Hash, error) {
	return transactWith(ctx, b.Retryer, b.signer, b.eth, "publish", b.timeLimits.ContractTransactionRetryDescriptor, true, func(opts *bind.TransactOpts) (*gethtypes.Transaction, error) {
		return b.bound.Transact(opts, "publish", value)
	})
}

func (b *boundCoordinator) callBytesSlice(ctx context.Context, method string) ([][]byte, error) {
	var out []interface{}
	err := b.CallView(ctx, method, func(ctx context.Context) error {
		_, callErr := b.bound.Call(&bind.CallOpts{Context: ctx}, &out, method)
		return callErr
	}, b.timeLimits.ContractViewRetryDescriptor)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].([][]byte)
	if !ok {
		return nil, fmt.Errorf("chainclient: %s: unexpected return type", method)
	}
	return v, nil
}

func (b *boundCoordinator) GetShares(ctx context.Context) ([][]byte, error) {
	return b.callBytesSlice(ctx, "getShares")
}

func (b *boundCoordinator) GetResponses(ctx context.Context) ([][]byte, error) {
	return b.callBytesSlice(ctx, "getResponses")
}

func (b *boundCoordinator) GetJustifications(ctx context.Context) ([][]byte, error) {
	return b.callBytesSlice(ctx, "getJustifications")
}

func (b *boundCoordinator) GetParticipants(ctx context.Context) ([]common.Address, error) {
	var out []interface{}
	err := b.CallView(ctx, "getParticipants", func(ctx context.Context) error {
		_, callErr := b.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getParticipants")
		return callErr
	}, b.timeLimits.ContractViewRetryDescriptor)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("chainclient: getParticipants: unexpected return type")
	}
	return v, nil
}

// GetDKGKeys has no dedicated method on the minimal coordinator ABI above;
// it is derived from GetParticipants (the key count) and GetShares (the
// published key material), since no deployment-independent "dkg keys"
// accessor is assumed.
func (b *boundCoordinator) GetDKGKeys(ctx context.Context) (int, [][]byte, error) {
	participants, err := b.GetParticipants(ctx)
	if err != nil {
		return 0, nil, err
	}
	shares, err := b.GetShares(ctx)
	if err != nil {
		return 0, nil, err
	}
	return len(participants), shares, nil
}

func (b *boundCoordinator) InPhase(ctx context.Context) (int, error) {
	var out []interface{}
	err := b.CallView(ctx, "inPhase", func(ctx context.Context) error {
		_, callErr := b.bound.Call(&bind.CallOpts{Context: ctx}, &out, "inPhase")
		return callErr
	}, b.timeLimits.ContractViewRetryDescriptor)
	if err != nil {
		return 0, err
	}
	v, ok := out[0].(int8)
	if !ok {
		return 0, fmt.Errorf("chainclient: inPhase: unexpected return type")
	}
	return int(v), nil
}

func (c *EthClient) FulfillRandomness(ctx context.Context, groupIndex int, task core.RandomnessTask, signature []byte, partials map[common.Address][]byte) (common.Hash, error) {
	return c.transact(ctx, "fulfillRandomness", c.timeLimits.ContractTransactionRetryDescriptor, false, func(opts *bind.TransactOpts) (*gethtypes.Transaction, error) {
		return c.adapter.Transact(opts, "fulfillRandomness", big.NewInt(int64(groupIndex)), task.RequestID, signature)
	})
}

func (c *EthClient) GetLastRandomness(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	err := c.CallView(ctx, "getLastRandomness", func(ctx context.Context) error {
		_, callErr := c.adapter.Call(&bind.CallOpts{Context: ctx}, &out, "getLastRandomness")
		return callErr
	}, c.timeLimits.ContractViewRetryDescriptor)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chainclient: getLastRandomness: unexpected return type")
	}
	return v, nil
}

func (c *EthClient) IsTaskPending(ctx context.Context, requestID []byte) (bool, error) {
	var out []interface{}
	err := c.CallView(ctx, "isTaskPending", func(ctx context.Context) error {
		_, callErr := c.adapter.Call(&bind.CallOpts{Context: ctx}, &out, "isTaskPending", requestID)
		return callErr
	}, c.timeLimits.ContractViewRetryDescriptor)
	if err != nil {
		return false, err
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("chainclient: isTaskPending: unexpected return type")
	}
	return v, nil
}

func (c *EthClient) SubscribeRandomnessTask(ctx context.Context, cb func(context.Context, core.RandomnessTask) error) error {
	logs := make(chan gethtypes.Log)
	sub, err := c.eth.SubscribeFilterLogs(ctx, ethereum.FilterQuery{Addresses: []common.Address{c.adapterAddr}}, logs)
	if err != nil {
		return fmt.Errorf("chainclient: subscribe randomness task: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("chainclient: randomness task log stream ended: %w", err)
		case <-logs:
			// decoding is deployment-specific; see SubscribeDKGTask.
		}
	}
}

func (c *EthClient) SubscribeNewBlockHeight(ctx context.Context, cb func(context.Context, int) error) error {
	heads := make(chan *gethtypes.Header)
	sub, err := c.eth.SubscribeNewHead(ctx, heads)
	if err != nil {
		return fmt.Errorf("chainclient: subscribe new block height: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("chainclient: block height stream ended: %w", err)
		case head := <-heads:
			if err := cb(ctx, int(head.Number.Int64())); err != nil {
				c.log.Warnw("new block height callback failed", "height", head.Number, "err", err)
			}
		}
	}
}
