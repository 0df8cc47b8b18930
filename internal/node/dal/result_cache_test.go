package dal

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

func newTestEntry(id string) core.RandomnessTask {
	return core.RandomnessTask{RequestID: []byte(id), GroupIndex: 0, AssignmentBlockHeight: 1}
}

func TestResultCacheAddIsOnce(t *testing.T) {
	c := NewResultCache()
	task := newTestEntry("r1")

	require.True(t, c.Add(task, []byte("msg"), 2, 10))
	require.False(t, c.Add(task, []byte("msg"), 2, 10))

	entry, ok := c.Get(task.RequestID)
	require.True(t, ok)
	require.Equal(t, core.NotCommitted, entry.State)
	require.Equal(t, 10, entry.EnteredBlockHeight)
}

func TestResultCacheAddPartialSignatureDedupsBySender(t *testing.T) {
	c := NewResultCache()
	task := newTestEntry("r1")
	c.Add(task, []byte("msg"), 2, 10)

	addr := common.HexToAddress("0x1")
	added, err := c.AddPartialSignature(task.RequestID, addr, []byte("sig1"))
	require.NoError(t, err)
	require.True(t, added)

	added, err = c.AddPartialSignature(task.RequestID, addr, []byte("sig1-again"))
	require.NoError(t, err)
	require.False(t, added)

	entry, _ := c.Get(task.RequestID)
	require.Equal(t, 1, entry.PartialCount())
}

func TestResultCacheAddPartialSignatureMissingEntry(t *testing.T) {
	c := NewResultCache()
	_, err := c.AddPartialSignature([]byte("missing"), common.HexToAddress("0x1"), []byte("sig"))
	require.ErrorIs(t, err, core.ErrCommitterCacheNotExisted)
}

func TestResultCacheReadyToCommitAtThreshold(t *testing.T) {
	c := NewResultCache()
	task := newTestEntry("r1")
	c.Add(task, []byte("msg"), 2, 10)

	c.AddPartialSignature(task.RequestID, common.HexToAddress("0x1"), []byte("s1"))
	require.Empty(t, c.ReadyToCommit(10))

	c.AddPartialSignature(task.RequestID, common.HexToAddress("0x2"), []byte("s2"))
	ready := c.ReadyToCommit(10)
	require.Len(t, ready, 1)
	require.Equal(t, core.Committing, ready[0].State)

	// A second call must not return the same entry again: ReadyToCommit
	// is the sole atomic claim operation.
	require.Empty(t, c.ReadyToCommit(10))
}

func TestResultCacheUpdateCommitResultIsImmutableOnceTerminal(t *testing.T) {
	c := NewResultCache()
	task := newTestEntry("r1")
	c.Add(task, []byte("msg"), 1, 10)
	c.AddPartialSignature(task.RequestID, common.HexToAddress("0x1"), []byte("s1"))
	c.ReadyToCommit(10)

	require.NoError(t, c.UpdateCommitResult(task.RequestID, core.Committed))
	entry, _ := c.Get(task.RequestID)
	require.Equal(t, core.Committed, entry.State)

	// Further updates to a terminal entry are a no-op.
	require.NoError(t, c.UpdateCommitResult(task.RequestID, core.CommittedByOthers))
	entry, _ = c.Get(task.RequestID)
	require.Equal(t, core.Committed, entry.State)
}

func TestResultCacheSweepRemovesOldTerminalEntries(t *testing.T) {
	c := NewResultCache()
	task := newTestEntry("r1")
	c.Add(task, []byte("msg"), 1, 10)
	c.AddPartialSignature(task.RequestID, common.HexToAddress("0x1"), []byte("s1"))
	c.ReadyToCommit(10)
	c.UpdateCommitResult(task.RequestID, core.Committed)

	c.Sweep(15, 100)
	require.True(t, c.Contains(task.RequestID))

	c.Sweep(200, 100)
	require.False(t, c.Contains(task.RequestID))
}
