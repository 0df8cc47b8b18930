package listener

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arpa-network/arpa-node/internal/node/chainclient"
	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// PreGroupingListener translates the controller's NewDKGTask announcement
// into a NewDKGTaskEvent, resolving this node's own share index within
// the task's member list before publishing (the DKG runner needs its own
// index up front, not derived later from the group store).
type PreGroupingListener struct {
	chain     chainclient.ControllerLogs
	selfAddr  common.Address
	pub       Publisher
}

func NewPreGroupingListener(chain chainclient.ControllerLogs, selfAddr common.Address, pub Publisher) *PreGroupingListener {
	return &PreGroupingListener{chain: chain, selfAddr: selfAddr, pub: pub}
}

func (l *PreGroupingListener) Type() core.ListenerType { return core.ListenerPreGrouping }

func (l *PreGroupingListener) Start(ctx context.Context) error {
	err := l.chain.SubscribeDKGTask(ctx, func(ctx context.Context, task chainclient.DKGTask) error {
		members := make(map[common.Address]*core.Member, len(task.Members))
		selfIndex := -1
		for i, addr := range task.Members {
			members[addr] = &core.Member{Address: addr, Index: i}
			if addr == l.selfAddr {
				selfIndex = i
			}
		}
		if selfIndex < 0 {
			// This node was not assigned to this group; nothing to do.
			return nil
		}
		return l.pub.Publish(event.NewDKGTaskEvent{
			GroupIndex:          task.GroupIndex,
			Epoch:               task.Epoch,
			Threshold:           task.Threshold,
			Size:                len(task.Members),
			Members:             members,
			MemberOrder:         task.Members,
			SelfIndex:           selfIndex,
			DKGStartBlockHeight: task.AssignmentBlockHeight,
		})
	})
	if err != nil {
		return fmt.Errorf("pre-grouping listener: %w", err)
	}
	return nil
}
