package subscriber

import (
	"errors"
	"io"
	"testing"

	"github.com/drand/kyber/share"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/arpa-network/arpa-node/internal/lg"
	"github.com/arpa-network/arpa-node/internal/node/bls"
	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

var errSendFailed = errors.New("send failed")

func testLogger() lg.Logger {
	return lg.New(zapcore.AddSync(io.Discard), lg.ErrorLevel, false)
}

// threeMemberGroup builds a CommitSuccess group over a real threshold-2-of-3
// Shamir polynomial, self bound at share index 0.
func threeMemberGroup(t *testing.T) (*core.Group, *share.PriPoly) {
	t.Helper()
	const threshold, size = 2, 3
	g2 := core.Suite.G2()
	priPoly := share.NewPriPoly(g2, threshold, nil, core.Suite.RandomStream())
	pubPoly := priPoly.Commit(nil)
	priShares := priPoly.Shares(size)

	self := common.HexToAddress("0x1")
	peerA := common.HexToAddress("0x2")
	peerB := common.HexToAddress("0x3")
	order := []common.Address{self, peerA, peerB}

	members := map[common.Address]*core.Member{}
	for i, addr := range order {
		members[addr] = &core.Member{Address: addr, Index: i, PartialPublicKey: pubPoly.Eval(i).V}
	}

	group := &core.Group{
		GroupIndex:  1,
		Epoch:       1,
		Threshold:   threshold,
		Size:        size,
		Members:     members,
		MemberOrder: order,
		Committers:  order,
		PublicKey:   pubPoly.Commit(),
		SelfIndex:   0,
		SecretShare: priShares[0].V,
		Status:      core.DKGStatusCommitSuccess,
	}
	return group, priPoly
}

func TestReadyToHandleRandomnessTaskSubscriberSignsAndFansOut(t *testing.T) {
	group, _ := threeMemberGroup(t)
	groupFetcher := &fakeGroupFetcher{group: group}
	nodeStore := dal.NewNodeInfoStore(group.MemberOrder[0], "self:1")
	cache := dal.NewResultCache()

	nodes := map[common.Address]*core.Node{
		group.MemberOrder[1]: {IDAddress: group.MemberOrder[1], RPCEndpoint: "peer-a:1"},
		group.MemberOrder[2]: {IDAddress: group.MemberOrder[2], RPCEndpoint: "peer-b:1"},
	}
	chain := &fakeControllerViewsForNodes{nodes: nodes}
	sender := &fakeSender{}
	pub := &fakePublisher{}

	s := NewReadyToHandleRandomnessTaskSubscriber(chain, groupFetcher, nodeStore, cache, &fakeBlockHeight{height: 5}, bls.SimpleBLSCore{}, sender, pub, 1, testLogger())
	require.Equal(t, event.ReadyToHandleRandomnessTask, s.Topic())

	task := core.RandomnessTask{RequestID: []byte("r1"), Message: []byte("msg"), GroupIndex: 1}
	require.NoError(t, s.Handle(event.ReadyToHandleRandomnessTaskEvent{Task: task}))

	entry, ok := cache.Get(task.RequestID)
	require.True(t, ok)
	require.Equal(t, 1, entry.PartialCount())

	require.Len(t, sender.sent, 2)
	require.Len(t, pub.events, 2)
	for _, req := range sender.sent {
		require.Equal(t, group.MemberOrder[0], req.IDAddress)
		require.Equal(t, uint64(1), req.ChainID)
		require.Equal(t, core.CommitterTaskTypeRandomness, req.TaskType)
		require.Equal(t, task.RequestID, req.RequestID)
	}
}

type fakeBlockHeight struct{ height int }

func (f *fakeBlockHeight) CurrentBlockHeight() int { return f.height }

func TestReadyToHandleRandomnessTaskSubscriberContinuesAfterSendFailure(t *testing.T) {
	group, _ := threeMemberGroup(t)
	groupFetcher := &fakeGroupFetcher{group: group}
	nodeStore := dal.NewNodeInfoStore(group.MemberOrder[0], "self:1")
	cache := dal.NewResultCache()

	nodes := map[common.Address]*core.Node{
		group.MemberOrder[1]: {IDAddress: group.MemberOrder[1], RPCEndpoint: "peer-a:1"},
		group.MemberOrder[2]: {IDAddress: group.MemberOrder[2], RPCEndpoint: "peer-b:1"},
	}
	chain := &fakeControllerViewsForNodes{nodes: nodes}
	sender := &fakeSender{err: errSendFailed}
	pub := &fakePublisher{}

	s := NewReadyToHandleRandomnessTaskSubscriber(chain, groupFetcher, nodeStore, cache, &fakeBlockHeight{height: 5}, bls.SimpleBLSCore{}, sender, pub, 1, testLogger())

	task := core.RandomnessTask{RequestID: []byte("r1"), Message: []byte("msg"), GroupIndex: 1}
	// SendPartialSignature failures are logged and skipped, not fatal: the
	// cache entry must still exist with this node's own partial recorded.
	require.NoError(t, s.Handle(event.ReadyToHandleRandomnessTaskEvent{Task: task}))

	entry, ok := cache.Get(task.RequestID)
	require.True(t, ok)
	require.Equal(t, 1, entry.PartialCount())
	require.Empty(t, sender.sent)
	require.Empty(t, pub.events)
}
