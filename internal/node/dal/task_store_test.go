package dal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

func TestTaskStoreAddAndGet(t *testing.T) {
	s := NewTaskStore()
	task := core.RandomnessTask{RequestID: []byte("r1"), GroupIndex: 1, AssignmentBlockHeight: 10}

	require.False(t, s.Contains(task.RequestID))
	require.NoError(t, s.Add(task))
	require.True(t, s.Contains(task.RequestID))

	got, ok := s.Get(task.RequestID)
	require.True(t, ok)
	require.Equal(t, task, got)
}

func TestTaskStoreMarkHandledExcludesFromAvailable(t *testing.T) {
	s := NewTaskStore()
	task := core.RandomnessTask{RequestID: []byte("r1"), GroupIndex: 1, AssignmentBlockHeight: 10}
	require.NoError(t, s.Add(task))

	require.False(t, s.IsHandled(task.RequestID))
	available := s.CheckAndGetAvailableTasks(10, 1, 5)
	require.Len(t, available, 1)

	s.MarkHandled(task.RequestID)
	require.True(t, s.IsHandled(task.RequestID))
	require.Empty(t, s.CheckAndGetAvailableTasks(10, 1, 5))
}

func TestCheckAndGetAvailableTasksOwnGroupImmediate(t *testing.T) {
	s := NewTaskStore()
	task := core.RandomnessTask{RequestID: []byte("r1"), GroupIndex: 2, AssignmentBlockHeight: 100}
	require.NoError(t, s.Add(task))

	// Before assignment height, never available.
	require.Empty(t, s.CheckAndGetAvailableTasks(99, 2, 5))

	// At assignment height, a task belonging to the caller's own group is
	// immediately available.
	available := s.CheckAndGetAvailableTasks(100, 2, 5)
	require.Len(t, available, 1)
	require.Equal(t, task.RequestID, available[0].RequestID)
}

func TestCheckAndGetAvailableTasksOtherGroupWaitsForExclusiveWindow(t *testing.T) {
	s := NewTaskStore()
	task := core.RandomnessTask{RequestID: []byte("r1"), GroupIndex: 2, AssignmentBlockHeight: 100}
	require.NoError(t, s.Add(task))

	// A different group's task is not available until the exclusive
	// window has elapsed.
	require.Empty(t, s.CheckAndGetAvailableTasks(103, 9, 5))
	require.Empty(t, s.CheckAndGetAvailableTasks(105, 9, 5))

	available := s.CheckAndGetAvailableTasks(106, 9, 5)
	require.Len(t, available, 1)
}
