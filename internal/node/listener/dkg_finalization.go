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

// DKGFinalizationListener watches the controller's on-chain group record
// while this node's local DKG status is still InPhase (InGroupingSubscriber
// has already submitted CommitDKG; the node is waiting to see its own and
// its peers' commits land). Once the on-chain record's epoch matches and
// carries a non-empty committer set, the group is finalized and this
// listener publishes DKGSuccessEvent so PostSuccessGroupingSubscriber can
// catch local state up to it.
type DKGFinalizationListener struct {
	chain      chainclient.ControllerViews
	groupStore dal.GroupInfoFetcher
	pub        Publisher
	clock      clock.Clock
	interval   time.Duration
	useJitter  bool
}

func NewDKGFinalizationListener(chain chainclient.ControllerViews, groupStore dal.GroupInfoFetcher, pub Publisher, clk clock.Clock, desc core.ListenerDescriptor) *DKGFinalizationListener {
	return &DKGFinalizationListener{
		chain:      chain,
		groupStore: groupStore,
		pub:        pub,
		clock:      clk,
		interval:   time.Duration(desc.IntervalMillis) * time.Millisecond,
		useJitter:  desc.UseJitter,
	}
}

func (l *DKGFinalizationListener) Type() core.ListenerType { return core.ListenerDKGFinalization }

func (l *DKGFinalizationListener) Start(ctx context.Context) error {
	err := pollLoop(ctx, l.clock, l.interval, l.useJitter, l.tick)
	if err != nil {
		return fmt.Errorf("dkg-finalization listener: %w", err)
	}
	return nil
}

func (l *DKGFinalizationListener) tick(ctx context.Context) error {
	status, err := l.groupStore.GetDKGStatus()
	if err != nil {
		return err
	}
	if status != core.DKGStatusInPhase {
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
	if onChain.Epoch != epoch || len(onChain.Committers) == 0 {
		return nil
	}
	return l.pub.Publish(event.DKGSuccessEvent{
		GroupIndex: groupIndex,
		Epoch:      epoch,
		Committers: onChain.Committers,
	})
}
