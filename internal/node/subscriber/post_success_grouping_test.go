package subscriber

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

type fakeControllerTransactions struct {
	commitDKGCalls      int
	postProcessDKGCalls int
	commitDKGErr        error
	postProcessDKGErr   error
	lastDisqualified    []common.Address
}

func (f *fakeControllerTransactions) NodeRegister(ctx context.Context, idPublicKey []byte) (common.Hash, error) {
	return common.Hash{}, nil
}

func (f *fakeControllerTransactions) CommitDKG(ctx context.Context, groupIndex, groupEpoch int, publicKey []byte, commitments [][]byte, disqualified []common.Address) (common.Hash, error) {
	f.commitDKGCalls++
	f.lastDisqualified = disqualified
	return common.Hash{}, f.commitDKGErr
}

func (f *fakeControllerTransactions) PostProcessDKG(ctx context.Context, groupIndex, groupEpoch int) (common.Hash, error) {
	f.postProcessDKGCalls++
	return common.Hash{}, f.postProcessDKGErr
}

func TestPostSuccessGroupingSubscriberSavesCommittersAndMarksCommitSuccess(t *testing.T) {
	groupStore := dal.NewGroupInfoStore()
	require.NoError(t, groupStore.SaveTaskInfo(0, 1, 1, 0, 2, 2, map[common.Address]*core.Member{}, nil))
	_, err := groupStore.UpdateDKGStatus(1, 1, core.DKGStatusInPhase)
	require.NoError(t, err)

	s := NewPostSuccessGroupingSubscriber(groupStore)
	require.Equal(t, event.DKGSuccess, s.Topic())

	committers := []common.Address{common.HexToAddress("0x1"), common.HexToAddress("0x2")}
	ev := event.DKGSuccessEvent{GroupIndex: 1, Epoch: 1, Committers: committers}
	require.NoError(t, s.Handle(ev))

	status, err := groupStore.GetDKGStatus()
	require.NoError(t, err)
	require.Equal(t, core.DKGStatusCommitSuccess, status)

	got, err := groupStore.GetCommitters()
	require.NoError(t, err)
	require.Equal(t, committers, got)
}

func TestPostSuccessGroupingSubscriberRejectsUnexpectedEvent(t *testing.T) {
	groupStore := dal.NewGroupInfoStore()
	s := NewPostSuccessGroupingSubscriber(groupStore)

	err := s.Handle(event.NewBlockEvent{BlockHeight: 1})
	require.Error(t, err)
}
