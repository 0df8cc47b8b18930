package listener

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

type fakeControllerViews struct {
	group *core.Group
	err   error
}

func (f *fakeControllerViews) GetNode(ctx context.Context, idAddress common.Address) (*core.Node, error) {
	return nil, nil
}
func (f *fakeControllerViews) GetGroup(ctx context.Context, groupIndex int) (*core.Group, error) {
	return f.group, f.err
}
func (f *fakeControllerViews) GetCoordinator(ctx context.Context, groupIndex int) (common.Address, error) {
	return common.Address{}, nil
}

func groupInCommitSuccess(t *testing.T) *dal.GroupInfoStore {
	t.Helper()
	s := dal.NewGroupInfoStore()
	members := map[common.Address]*core.Member{}
	require.NoError(t, s.SaveTaskInfo(0, 1, 1, 0, 2, 2, members, nil))
	_, err := s.UpdateDKGStatus(1, 1, core.DKGStatusInPhase)
	require.NoError(t, err)
	_, err = s.UpdateDKGStatus(1, 1, core.DKGStatusCommitSuccess)
	require.NoError(t, err)
	return s
}

func TestPostCommitGroupingListenerPublishesOnceCommitteesFinalized(t *testing.T) {
	groupStore := groupInCommitSuccess(t)
	committers := []common.Address{common.HexToAddress("0x1"), common.HexToAddress("0x2")}
	chain := &fakeControllerViews{group: &core.Group{Committers: committers}}
	pub := &fakePublisher{}

	l := &PostCommitGroupingListener{chain: chain, groupStore: groupStore, pub: pub}
	require.NoError(t, l.tick(context.Background()))

	require.Len(t, pub.events, 1)
	got := pub.events[0].(event.DKGPostProcessEvent)
	require.Equal(t, 1, got.GroupIndex)
	require.Equal(t, 1, got.Epoch)
	require.Equal(t, committers, got.Committers)
}

func TestPostCommitGroupingListenerNoOpWhileCommitteesEmpty(t *testing.T) {
	groupStore := groupInCommitSuccess(t)
	chain := &fakeControllerViews{group: &core.Group{}}
	pub := &fakePublisher{}

	l := &PostCommitGroupingListener{chain: chain, groupStore: groupStore, pub: pub}
	require.NoError(t, l.tick(context.Background()))
	require.Empty(t, pub.events)
}

func TestPostCommitGroupingListenerNoOpWhenNotCommitSuccess(t *testing.T) {
	groupStore := dal.NewGroupInfoStore()
	require.NoError(t, groupStore.SaveTaskInfo(0, 1, 1, 0, 2, 2, map[common.Address]*core.Member{}, nil))

	chain := &fakeControllerViews{group: &core.Group{Committers: []common.Address{common.HexToAddress("0x1")}}}
	pub := &fakePublisher{}

	l := &PostCommitGroupingListener{chain: chain, groupStore: groupStore, pub: pub}
	require.NoError(t, l.tick(context.Background()))
	require.Empty(t, pub.events)
}
