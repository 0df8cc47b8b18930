package listener

import (
	"context"
	"fmt"
	"time"

	clock "github.com/jonboulle/clockwork"

	"github.com/arpa-network/arpa-node/internal/node/chainclient"
	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// PostCommitGroupingListener polls the controller's on-chain group record
// while this node's local status is CommitSuccess, waiting for the
// controller to have finalized the group's committer set (every member's
// CommitDKG landed, or enough of them did). Once the on-chain record
// carries a non-empty committer list, it publishes DKGPostProcessEvent so
// the matching subscriber can call PostProcessDKG.
type PostCommitGroupingListener struct {
	chain      chainclient.ControllerViews
	groupStore dal.GroupInfoFetcher
	pub        Publisher
	clock      clock.Clock
	interval   time.Duration
	useJitter  bool
}

func NewPostCommitGroupingListener(chain chainclient.ControllerViews, groupStore dal.GroupInfoFetcher, pub Publisher, clk clock.Clock, desc core.ListenerDescriptor) *PostCommitGroupingListener {
	return &PostCommitGroupingListener{
		chain:      chain,
		groupStore: groupStore,
		pub:        pub,
		clock:      clk,
		interval:   time.Duration(desc.IntervalMillis) * time.Millisecond,
		useJitter:  desc.UseJitter,
	}
}

func (l *PostCommitGroupingListener) Type() core.ListenerType { return core.ListenerPostCommitGrouping }

func (l *PostCommitGroupingListener) Start(ctx context.Context) error {
	err := pollLoop(ctx, l.clock, l.interval, l.useJitter, l.tick)
	if err != nil {
		return fmt.Errorf("post-commit-grouping listener: %w", err)
	}
	return nil
}

func (l *PostCommitGroupingListener) tick(ctx context.Context) error {
	status, err := l.groupStore.GetDKGStatus()
	if err != nil {
		return err
	}
	if status != core.DKGStatusCommitSuccess {
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
	if len(onChain.Committers) == 0 {
		return nil
	}
	return l.pub.Publish(event.DKGPostProcessEvent{
		GroupIndex: groupIndex,
		Epoch:      epoch,
		Committers: onChain.Committers,
	})
}
