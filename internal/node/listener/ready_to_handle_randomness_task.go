package listener

import (
	"context"
	"fmt"
	"time"

	clock "github.com/jonboulle/clockwork"

	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// ReadyToHandleRandomnessTaskListener polls the task store for tasks that
// have become assignable to this node: tasks belonging to its own group
// immediately, tasks belonging to another group only once
// RandomnessTaskExclusiveWindow blocks have elapsed without that group
// acting, per spec.md §4.3's committer-assignment fallback.
type ReadyToHandleRandomnessTaskListener struct {
	tasks      dal.BLSTasksUpdater
	blockStore BlockHeightFetcher
	groupStore dal.GroupInfoFetcher
	pub        Publisher
	exclusiveWindow int
	clock      clock.Clock
	interval   time.Duration
	useJitter  bool
}

// BlockHeightFetcher is the narrow surface this listener needs from
// whatever tracks the locally-observed chain height (maintained by the
// BlockListener's subscriber).
type BlockHeightFetcher interface {
	CurrentBlockHeight() int
}

func NewReadyToHandleRandomnessTaskListener(tasks dal.BLSTasksUpdater, blockStore BlockHeightFetcher, groupStore dal.GroupInfoFetcher, pub Publisher, exclusiveWindow int, clk clock.Clock, desc core.ListenerDescriptor) *ReadyToHandleRandomnessTaskListener {
	return &ReadyToHandleRandomnessTaskListener{
		tasks:           tasks,
		blockStore:      blockStore,
		groupStore:      groupStore,
		pub:             pub,
		exclusiveWindow: exclusiveWindow,
		clock:           clk,
		interval:        time.Duration(desc.IntervalMillis) * time.Millisecond,
		useJitter:       desc.UseJitter,
	}
}

func (l *ReadyToHandleRandomnessTaskListener) Type() core.ListenerType {
	return core.ListenerReadyToHandleRandomnessTask
}

func (l *ReadyToHandleRandomnessTaskListener) Start(ctx context.Context) error {
	err := pollLoop(ctx, l.clock, l.interval, l.useJitter, l.tick)
	if err != nil {
		return fmt.Errorf("ready-to-handle-randomness-task listener: %w", err)
	}
	return nil
}

func (l *ReadyToHandleRandomnessTaskListener) tick(ctx context.Context) error {
	groupIndex, err := l.groupStore.GetIndex()
	if err != nil {
		return err
	}
	height := l.blockStore.CurrentBlockHeight()
	for _, task := range l.tasks.CheckAndGetAvailableTasks(height, groupIndex, l.exclusiveWindow) {
		if err := l.pub.Publish(event.ReadyToHandleRandomnessTaskEvent{Task: task}); err != nil {
			return err
		}
		l.tasks.MarkHandled(task.RequestID)
	}
	return nil
}
