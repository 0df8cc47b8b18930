package dal

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

// handledSetSize bounds how many "handled" request ids TaskStore tracks at
// once. A node that runs for a long time otherwise accumulates one
// handled-marker per randomness request forever; an ARC cache recency-evicts
// the tail the way the teacher's client.Cache does for recently-fetched
// rounds (client/cache.go, cmd/drand-gossip-relay/client/caching.go).
const handledSetSize = 8192

// BLSTasksFetcher reads the pending randomness task backlog.
type BLSTasksFetcher interface {
	Contains(requestID []byte) bool
	Get(requestID []byte) (core.RandomnessTask, bool)
	IsHandled(requestID []byte) bool
}

// BLSTasksUpdater mutates the pending randomness task backlog.
type BLSTasksUpdater interface {
	Add(task core.RandomnessTask) error
	CheckAndGetAvailableTasks(currentBlockHeight, currentGroupIndex, exclusiveWindow int) []core.RandomnessTask
	MarkHandled(requestID []byte)
}

// TaskStore is the in-memory BLS task queue (C2): tasks land here when a
// NewRandomnessTask event fires, and are marked handled (so
// CheckAndGetAvailableTasks no longer returns them) once the
// ReadyToHandleRandomnessTaskListener has published them. Tasks are never
// removed from the task map itself.
type TaskStore struct {
	mu      sync.RWMutex
	tasks   map[string]core.RandomnessTask
	handled *lru.ARCCache
}

// NewTaskStore returns an empty task queue.
func NewTaskStore() *TaskStore {
	handled, err := lru.NewARC(handledSetSize)
	if err != nil {
		// only returns an error for a non-positive size, which
		// handledSetSize never is.
		panic(err)
	}
	return &TaskStore{tasks: map[string]core.RandomnessTask{}, handled: handled}
}

func (s *TaskStore) Contains(requestID []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tasks[string(requestID)]
	return ok
}

func (s *TaskStore) Get(requestID []byte) (core.RandomnessTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[string(requestID)]
	return t, ok
}

func (s *TaskStore) IsHandled(requestID []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handled.Contains(string(requestID))
}

func (s *TaskStore) Add(task core.RandomnessTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[string(task.RequestID)] = task
	return nil
}

// CheckAndGetAvailableTasks returns every task assignable starting at
// AssignmentBlockHeight and not yet handled, applying the committer
// assignment algorithm from spec.md §4.3: a task belonging to
// currentGroupIndex is immediately available; a task belonging to another
// group only becomes available once
// currentBlockHeight - AssignmentBlockHeight > exclusiveWindow.
func (s *TaskStore) CheckAndGetAvailableTasks(currentBlockHeight, currentGroupIndex, exclusiveWindow int) []core.RandomnessTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.RandomnessTask
	for id, t := range s.tasks {
		if s.handled.Contains(id) {
			continue
		}
		if currentBlockHeight < t.AssignmentBlockHeight {
			continue
		}
		if t.GroupIndex == currentGroupIndex {
			out = append(out, t)
			continue
		}
		if currentBlockHeight-t.AssignmentBlockHeight > exclusiveWindow {
			out = append(out, t)
		}
	}
	return out
}

func (s *TaskStore) MarkHandled(requestID []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handled.Add(string(requestID), struct{}{})
}
