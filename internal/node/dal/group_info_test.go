package dal

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

func TestGroupInfoStoreSaveTaskInfoStartsInNone(t *testing.T) {
	s := NewGroupInfoStore()
	addr := common.HexToAddress("0x1")
	members := map[common.Address]*core.Member{addr: {Address: addr, Index: 0}}

	require.NoError(t, s.SaveTaskInfo(0, 1, 1, 50, 2, 3, members, []common.Address{addr}))

	status, err := s.GetDKGStatus()
	require.NoError(t, err)
	require.Equal(t, core.DKGStatusNone, status)

	ready, err := s.GetState()
	require.NoError(t, err)
	require.False(t, ready)
}

func TestGroupInfoStoreUpdateDKGStatusRejectsIllegalTransition(t *testing.T) {
	s := NewGroupInfoStore()
	members := map[common.Address]*core.Member{}
	require.NoError(t, s.SaveTaskInfo(0, 1, 1, 0, 2, 2, members, nil))

	// None -> CommitSuccess skips InPhase, which is illegal.
	_, err := s.UpdateDKGStatus(1, 1, core.DKGStatusCommitSuccess)
	require.Error(t, err)
}

func TestGroupInfoStoreUpdateDKGStatusIsIdempotent(t *testing.T) {
	s := NewGroupInfoStore()
	members := map[common.Address]*core.Member{}
	require.NoError(t, s.SaveTaskInfo(0, 1, 1, 0, 2, 2, members, nil))

	changed, err := s.UpdateDKGStatus(1, 1, core.DKGStatusInPhase)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = s.UpdateDKGStatus(1, 1, core.DKGStatusInPhase)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestGroupInfoStoreSaveCommittersRequiresCommitSuccess(t *testing.T) {
	s := NewGroupInfoStore()
	members := map[common.Address]*core.Member{}
	require.NoError(t, s.SaveTaskInfo(0, 1, 1, 0, 2, 2, members, nil))

	addr := common.HexToAddress("0x1")
	require.Error(t, s.SaveCommitters(1, 1, []common.Address{addr}))

	_, err := s.UpdateDKGStatus(1, 1, core.DKGStatusInPhase)
	require.NoError(t, err)
	_, err = s.UpdateDKGStatus(1, 1, core.DKGStatusCommitSuccess)
	require.NoError(t, err)

	require.NoError(t, s.SaveCommitters(1, 1, []common.Address{addr}))

	isCommitter, err := s.IsCommitter(addr)
	require.NoError(t, err)
	require.True(t, isCommitter)

	other := common.HexToAddress("0x2")
	isCommitter, err = s.IsCommitter(other)
	require.NoError(t, err)
	require.False(t, isCommitter)
}

func TestGroupInfoStoreGetMemberNotFound(t *testing.T) {
	s := NewGroupInfoStore()
	members := map[common.Address]*core.Member{}
	require.NoError(t, s.SaveTaskInfo(0, 1, 1, 0, 2, 2, members, nil))

	_, err := s.GetMember(common.HexToAddress("0x1"))
	require.ErrorIs(t, err, core.ErrMemberNotExisted)
}

func TestGroupInfoStoreOutOfDateEpochRejected(t *testing.T) {
	s := NewGroupInfoStore()
	members := map[common.Address]*core.Member{}
	require.NoError(t, s.SaveTaskInfo(0, 1, 1, 0, 2, 2, members, nil))

	_, err := s.UpdateDKGStatus(1, 2, core.DKGStatusInPhase)
	require.Error(t, err)
}
