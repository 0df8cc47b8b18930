// Package node wires C1-C8 together into one running process: it owns
// the chain client, every store, the event queue, and the scheduler, and
// is the single place that knows how all of them fit together. cmd/arpa-node
// is a thin CLI shell around this package.
package node

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/drand/kyber"
	"github.com/ethereum/go-ethereum/common"
	clock "github.com/jonboulle/clockwork"

	"github.com/arpa-network/arpa-node/internal/lg"
	"github.com/arpa-network/arpa-node/internal/node/account"
	"github.com/arpa-network/arpa-node/internal/node/bls"
	"github.com/arpa-network/arpa-node/internal/node/chainclient"
	"github.com/arpa-network/arpa-node/internal/node/committer"
	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/event"
	"github.com/arpa-network/arpa-node/internal/node/listener"
	"github.com/arpa-network/arpa-node/internal/node/management"
	"github.com/arpa-network/arpa-node/internal/node/queue"
	"github.com/arpa-network/arpa-node/internal/node/scheduler"
	"github.com/arpa-network/arpa-node/internal/node/subscriber"
)

// Node bundles every store and long-lived task the process runs.
type Node struct {
	cfg *core.Config
	log lg.Logger

	chain      chainclient.Client
	nodeStore  *dal.NodeInfoStore
	groupStore *dal.GroupInfoStore
	taskStore  *dal.TaskStore
	resultCache *dal.ResultCache
	blockStore *dal.BlockHeightStore

	queue     *queue.EventQueue
	scheduler *scheduler.Scheduler
}

// New constructs a Node from cfg: it dials the chain, resolves the
// configured signer, and registers every listener, subscriber, and RPC
// server the pipeline needs. It does not start anything; call Run for
// that.
func New(ctx context.Context, cfg *core.Config, log lg.Logger) (*Node, error) {
	if log == nil {
		log = lg.Default()
	}

	chainID := new(big.Int).SetUint64(cfg.ChainID)
	opts, selfAddr, err := account.Resolve(&cfg.Account, chainID)
	if err != nil {
		return nil, fmt.Errorf("node: resolve account: %w", err)
	}

	ethClient, err := chainclient.NewEthClient(ctx, cfg.ProviderEndpoint, common.HexToAddress(cfg.ControllerAddress), common.HexToAddress(cfg.AdapterAddress), opts, cfg.TimeLimits, log.Named("chainclient"))
	if err != nil {
		return nil, fmt.Errorf("node: dial chain: %w", err)
	}

	n := &Node{
		cfg:         cfg,
		log:         log,
		chain:       ethClient,
		nodeStore:   dal.NewNodeInfoStore(selfAddr, cfg.NodeAdvertisedCommitterRPCEndpoint),
		groupStore:  dal.NewGroupInfoStore(),
		taskStore:   dal.NewTaskStore(),
		resultCache: dal.NewResultCache(),
		blockStore:  dal.NewBlockHeightStore(),
		queue:       queue.New(log.Named("queue")),
		scheduler:   scheduler.New(log.Named("scheduler"), time.Second),
	}

	if cfg.DataPath != "" {
		persist, err := dal.OpenNodeIdentityPersistence(cfg.DataPath)
		if err != nil {
			return nil, fmt.Errorf("node: open identity persistence: %w", err)
		}
		if err := n.nodeStore.AttachPersistence(persist); err != nil {
			return nil, fmt.Errorf("node: load persisted identity: %w", err)
		}
	}

	n.wire(selfAddr)
	return n, nil
}

// Run starts every registered listener and RPC server and blocks until
// ctx is cancelled or a task fails un-restartably.
func (n *Node) Run(ctx context.Context) error {
	return n.scheduler.Start(ctx)
}

func (n *Node) wire(selfAddr common.Address) {
	pub := n.queue

	n.registerBridgeSubscribers()
	n.registerGroupingSubscribers(pub)
	n.registerRandomnessSubscribers(pub)
	n.registerListeners(selfAddr, pub)
	n.registerRPCServers(selfAddr)
}

// registerBridgeSubscribers wires the two event topics that feed stores
// directly rather than a formal C5 subscriber: NewBlock updates the
// locally observed chain height, and NewRandomnessTask enqueues the task
// for ReadyToHandleRandomnessTaskListener to later pick up.
func (n *Node) registerBridgeSubscribers() {
	n.queue.Subscribe(event.NewBlock, func(e event.Event) error {
		ev := e.(event.NewBlockEvent)
		n.blockStore.SetBlockHeight(ev.BlockHeight)
		return nil
	})
	n.queue.Subscribe(event.NewRandomnessTask, func(e event.Event) error {
		ev := e.(event.NewRandomnessTaskEvent)
		return n.taskStore.Add(ev.Task)
	})
}

func (n *Node) registerGroupingSubscribers(pub subscriber.Publisher) {
	preGrouping := subscriber.NewPreGroupingSubscriber(n.groupStore, n.groupStore, pub)
	inGrouping := subscriber.NewInGroupingSubscriber(n.chain, n.groupStore, n.groupStore, n.nodeStore, pub, n.cfg.TimeLimits, n.log.Named("dkg"))
	postSuccess := subscriber.NewPostSuccessGroupingSubscriber(n.groupStore)
	postGrouping := subscriber.NewPostGroupingSubscriber(n.chain, n.groupStore)

	for _, s := range []subscriber.Subscriber{preGrouping, inGrouping, postSuccess, postGrouping} {
		n.queue.Subscribe(s.Topic(), s.Handle)
		n.scheduler.RecordSubscriber(s.Type())
	}
}

func (n *Node) registerRandomnessSubscribers(pub subscriber.Publisher) {
	blsCore := bls.SimpleBLSCore{}
	client := committer.NewClient(nil, n.cfg.TimeLimits.CommitPartialSigRetryDescriptor)

	ready := subscriber.NewReadyToHandleRandomnessTaskSubscriber(n.chain, n.groupStore, n.nodeStore, n.resultCache, n.blockStore, blsCore, client, pub, n.cfg.ChainID, n.log.Named("committer"))
	aggregate := subscriber.NewRandomnessSignatureAggregationSubscriber(n.resultCache, n.resultCache, n.groupStore, n.chain, n.chain, blsCore)

	for _, s := range []subscriber.Subscriber{ready, aggregate} {
		n.queue.Subscribe(s.Topic(), s.Handle)
		n.scheduler.RecordSubscriber(s.Type())
	}
}

func (n *Node) registerListeners(selfAddr common.Address, pub listener.Publisher) {
	clk := clock.NewRealClock()
	descriptorFor := func(t core.ListenerType) core.ListenerDescriptor {
		for _, d := range n.cfg.Listeners {
			if d.Type == t {
				return d
			}
		}
		return core.ListenerDescriptor{Type: t, IntervalMillis: core.DefaultListenerIntervalMillis, UseJitter: core.DefaultListenerUseJitter}
	}

	n.scheduler.RegisterListener(listener.NewBlockListener(n.chain, pub))
	n.scheduler.RegisterListener(listener.NewPreGroupingListener(n.chain, selfAddr, pub))
	n.scheduler.RegisterListener(listener.NewDKGFinalizationListener(n.chain, n.groupStore, pub, clk, descriptorFor(core.ListenerDKGFinalization)))
	n.scheduler.RegisterListener(listener.NewPostCommitGroupingListener(n.chain, n.groupStore, pub, clk, descriptorFor(core.ListenerPostCommitGrouping)))
	n.scheduler.RegisterListener(listener.NewPostGroupingListener(n.chain, n.groupStore, n.groupStore, clk, descriptorFor(core.ListenerPostGrouping)))
	n.scheduler.RegisterListener(listener.NewNewRandomnessTaskListener(n.chain, pub))
	n.scheduler.RegisterListener(listener.NewReadyToHandleRandomnessTaskListener(n.taskStore, n.blockStore, n.groupStore, pub, n.cfg.TimeLimits.RandomnessTaskExclusiveWindow, clk, descriptorFor(core.ListenerReadyToHandleRandomnessTask)))
	n.scheduler.RegisterListener(listener.NewRandomnessSignatureAggregationListener(n.resultCache, n.blockStore, pub, clk, descriptorFor(core.ListenerRandomnessSignatureAggregation), n.cfg.TimeLimits.ResultCacheRetentionBlocks))
}

func (n *Node) registerRPCServers(selfAddr common.Address) {
	blsCore := bls.SimpleBLSCore{}
	committerServer := committer.NewServer(n.cfg.NodeCommitterRPCEndpoint, selfAddr, n.cfg.ChainID, n.groupStore, n.resultCache, n.resultCache, blsCore, n.log.Named("committer-server"))
	n.scheduler.RegisterRPCServer(committerServer)

	token, err := n.cfg.ManagementRPCToken()
	if err != nil {
		n.log.Warnw("node: management rpc token unresolved, starting without auth", "err", err)
	}
	managementServer := management.NewServer(n.cfg.NodeManagementRPCEndpoint, token, n.scheduler, n.log.Named("management-server"))
	n.scheduler.RegisterRPCServer(managementServer)
}

// SetDKGKeyPair records this node's long-term DKG keypair, generated by
// the CLI's generate-keypair subcommand before the node ever registers
// on-chain.
func (n *Node) SetDKGKeyPair(priv kyber.Scalar, pub kyber.Point) error {
	return n.nodeStore.SetDKGKeyPair(priv, pub)
}

// GenerateDKGKeyPair draws a fresh long-term DKG keypair from the
// pairing suite's random stream, for the CLI's generate-keypair
// subcommand.
func GenerateDKGKeyPair() (kyber.Scalar, kyber.Point) {
	priv := core.Suite.G2().Scalar().Pick(core.Suite.RandomStream())
	pub := core.Suite.G2().Point().Mul(priv, nil)
	return priv, pub
}

// Register submits this node's long-term DKG public key to the
// controller contract, the on-chain step that makes it eligible for
// future grouping tasks.
func (n *Node) Register(ctx context.Context) (common.Hash, error) {
	pub, err := n.nodeStore.GetDKGPublicKey()
	if err != nil {
		return common.Hash{}, fmt.Errorf("node: register: %w", err)
	}
	raw, err := pub.MarshalBinary()
	if err != nil {
		return common.Hash{}, fmt.Errorf("node: register: marshal public key: %w", err)
	}
	return n.chain.NodeRegister(ctx, raw)
}

// IDAddress returns this node's chain identity address.
func (n *Node) IDAddress() (common.Address, error) {
	return n.nodeStore.GetIDAddress()
}
