package subscriber

import (
	"fmt"

	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// PreGroupingSubscriber reacts to a NewDKGTaskEvent: if the task names a
// group/epoch this node hasn't already recorded, it saves the task info
// and transitions DKG status None -> InPhase, then republishes RunDKG so
// InGroupingSubscriber picks up the actual protocol run. Ported directly
// from the original node's PreGroupingSubscriber::notify.
type PreGroupingSubscriber struct {
	groupFetcher dal.GroupInfoFetcher
	groupUpdater dal.GroupInfoUpdater
	pub          Publisher
}

func NewPreGroupingSubscriber(groupFetcher dal.GroupInfoFetcher, groupUpdater dal.GroupInfoUpdater, pub Publisher) *PreGroupingSubscriber {
	return &PreGroupingSubscriber{groupFetcher: groupFetcher, groupUpdater: groupUpdater, pub: pub}
}

func (s *PreGroupingSubscriber) Topic() event.Topic        { return event.NewDKGTask }
func (s *PreGroupingSubscriber) Type() core.SubscriberType { return core.SubscriberPreGrouping }

func (s *PreGroupingSubscriber) Handle(e event.Event) error {
	task, ok := e.(event.NewDKGTaskEvent)
	if !ok {
		return fmt.Errorf("pre-grouping subscriber: unexpected event %T", e)
	}

	cacheIndex, err := s.groupFetcher.GetIndex()
	if err != nil {
		return err
	}
	cacheEpoch, err := s.groupFetcher.GetEpoch()
	if err != nil {
		return err
	}
	if cacheIndex == task.GroupIndex && cacheEpoch == task.Epoch {
		return nil
	}

	if err := s.groupUpdater.SaveTaskInfo(task.SelfIndex, task.GroupIndex, task.Epoch, task.DKGStartBlockHeight, task.Threshold, task.Size, task.Members, task.MemberOrder); err != nil {
		return err
	}

	transitioned, err := s.groupUpdater.UpdateDKGStatus(task.GroupIndex, task.Epoch, core.DKGStatusInPhase)
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	return s.pub.Publish(event.RunDKGEvent{GroupIndex: task.GroupIndex, Epoch: task.Epoch})
}
