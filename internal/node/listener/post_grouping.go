package listener

import (
	"context"
	"fmt"
	"time"

	clock "github.com/jonboulle/clockwork"

	"github.com/arpa-network/arpa-node/internal/node/chainclient"
	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
)

// PostGroupingListener polls the controller while this node's local
// status is WaitForPostProcess, watching for another committer having
// already called PostProcessDKG first. The PostGroupingSubscriber itself
// drives the happy path (calling PostProcessDKG and moving status to
// WaitForPostProcess on success); this listener resets local status from
// WaitForPostProcess back to None once the on-chain group epoch has moved
// on.
type PostGroupingListener struct {
	chain      chainclient.ControllerViews
	groupStore dal.GroupInfoFetcher
	groupStoreUpdater dal.GroupInfoUpdater
	clock      clock.Clock
	interval   time.Duration
	useJitter  bool
}

func NewPostGroupingListener(chain chainclient.ControllerViews, groupStore dal.GroupInfoFetcher, groupStoreUpdater dal.GroupInfoUpdater, clk clock.Clock, desc core.ListenerDescriptor) *PostGroupingListener {
	return &PostGroupingListener{
		chain:             chain,
		groupStore:        groupStore,
		groupStoreUpdater: groupStoreUpdater,
		clock:             clk,
		interval:          time.Duration(desc.IntervalMillis) * time.Millisecond,
		useJitter:         desc.UseJitter,
	}
}

func (l *PostGroupingListener) Type() core.ListenerType { return core.ListenerPostGrouping }

func (l *PostGroupingListener) Start(ctx context.Context) error {
	err := pollLoop(ctx, l.clock, l.interval, l.useJitter, l.tick)
	if err != nil {
		return fmt.Errorf("post-grouping listener: %w", err)
	}
	return nil
}

func (l *PostGroupingListener) tick(ctx context.Context) error {
	status, err := l.groupStore.GetDKGStatus()
	if err != nil {
		return err
	}
	if status != core.DKGStatusWaitForPostProcess {
		return nil
	}

	groupIndex, err := l.groupStore.GetIndex()
	if err != nil {
		return err
	}
	epoch, err := l.groupStore.GetEpoch()
	if err != nil {
		return err
	}

	onChain, err := l.chain.GetGroup(ctx, groupIndex)
	if err != nil {
		return err
	}
	if onChain.Epoch <= epoch {
		return nil
	}
	_, err = l.groupStoreUpdater.UpdateDKGStatus(groupIndex, epoch, core.DKGStatusNone)
	return err
}
