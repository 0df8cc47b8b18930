package subscriber

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arpa-network/arpa-node/internal/node/bls"
	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

func TestRandomnessSignatureAggregationSubscriberRecoversAndFulfills(t *testing.T) {
	group, priPoly := threeMemberGroup(t)
	msg := []byte("randomness request r1")
	bcore := bls.SimpleBLSCore{}

	cache := dal.NewResultCache()
	task := core.RandomnessTask{RequestID: []byte("r1"), Message: msg, GroupIndex: group.GroupIndex}
	require.True(t, cache.Add(task, msg, group.Threshold, 0))

	shares := priPoly.Shares(group.Size)
	for i := 0; i < group.Threshold; i++ {
		addr := group.MemberOrder[i]
		ps, err := bcore.PartialSign(shares[i].V, shares[i].I, msg)
		require.NoError(t, err)
		_, err = cache.AddPartialSignature(task.RequestID, addr, ps.Signature)
		require.NoError(t, err)
	}
	// claim the entry the way the listener's ReadyToCommit does.
	ready := cache.ReadyToCommit(100)
	require.Len(t, ready, 1)

	groupFetcher := &fakeGroupFetcher{group: group}
	chain := &fakeAdapterTransactions{}
	s := NewRandomnessSignatureAggregationSubscriber(cache, cache, groupFetcher, chain, &fakeAdapterViews{pending: true}, bcore)

	require.Equal(t, event.ReadyToAggregate, s.Topic())
	require.NoError(t, s.Handle(event.ReadyToAggregateEvent{RequestID: task.RequestID}))

	require.Equal(t, 1, chain.calls)
	entry, ok := cache.Get(task.RequestID)
	require.True(t, ok)
	require.Equal(t, core.Committed, entry.State)
}

func TestRandomnessSignatureAggregationSubscriberRevertsOnFulfillError(t *testing.T) {
	group, priPoly := threeMemberGroup(t)
	msg := []byte("randomness request r2")
	bcore := bls.SimpleBLSCore{}

	cache := dal.NewResultCache()
	task := core.RandomnessTask{RequestID: []byte("r2"), Message: msg, GroupIndex: group.GroupIndex}
	require.True(t, cache.Add(task, msg, group.Threshold, 0))

	shares := priPoly.Shares(group.Size)
	for i := 0; i < group.Threshold; i++ {
		ps, err := bcore.PartialSign(shares[i].V, shares[i].I, msg)
		require.NoError(t, err)
		_, err = cache.AddPartialSignature(task.RequestID, group.MemberOrder[i], ps.Signature)
		require.NoError(t, err)
	}
	cache.ReadyToCommit(100)

	groupFetcher := &fakeGroupFetcher{group: group}
	chain := &fakeAdapterTransactions{err: errSendFailed}
	s := NewRandomnessSignatureAggregationSubscriber(cache, cache, groupFetcher, chain, &fakeAdapterViews{pending: true}, bcore)

	err := s.Handle(event.ReadyToAggregateEvent{RequestID: task.RequestID})
	require.Error(t, err)

	entry, ok := cache.Get(task.RequestID)
	require.True(t, ok)
	require.Equal(t, core.NotCommitted, entry.State)
}

func TestRandomnessSignatureAggregationSubscriberMarksCommittedByOthersWhenTaskNoLongerPending(t *testing.T) {
	group, priPoly := threeMemberGroup(t)
	msg := []byte("randomness request r3")
	bcore := bls.SimpleBLSCore{}

	cache := dal.NewResultCache()
	task := core.RandomnessTask{RequestID: []byte("r3"), Message: msg, GroupIndex: group.GroupIndex}
	require.True(t, cache.Add(task, msg, group.Threshold, 0))

	shares := priPoly.Shares(group.Size)
	for i := 0; i < group.Threshold; i++ {
		ps, err := bcore.PartialSign(shares[i].V, shares[i].I, msg)
		require.NoError(t, err)
		_, err = cache.AddPartialSignature(task.RequestID, group.MemberOrder[i], ps.Signature)
		require.NoError(t, err)
	}
	cache.ReadyToCommit(100)

	groupFetcher := &fakeGroupFetcher{group: group}
	chain := &fakeAdapterTransactions{err: errSendFailed}
	s := NewRandomnessSignatureAggregationSubscriber(cache, cache, groupFetcher, chain, &fakeAdapterViews{pending: false}, bcore)

	err := s.Handle(event.ReadyToAggregateEvent{RequestID: task.RequestID})
	require.Error(t, err)

	entry, ok := cache.Get(task.RequestID)
	require.True(t, ok)
	require.Equal(t, core.CommittedByOthers, entry.State)
}

func TestRandomnessSignatureAggregationSubscriberMissingCacheEntry(t *testing.T) {
	group, _ := threeMemberGroup(t)
	cache := dal.NewResultCache()
	groupFetcher := &fakeGroupFetcher{group: group}
	s := NewRandomnessSignatureAggregationSubscriber(cache, cache, groupFetcher, &fakeAdapterTransactions{}, &fakeAdapterViews{pending: true}, bls.SimpleBLSCore{})

	err := s.Handle(event.ReadyToAggregateEvent{RequestID: []byte("missing")})
	require.ErrorIs(t, err, core.ErrCommitterCacheNotExisted)
}

