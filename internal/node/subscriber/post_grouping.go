package subscriber

import (
	"context"
	"fmt"

	"github.com/arpa-network/arpa-node/internal/node/chainclient"
	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// PostGroupingSubscriber reacts to DKGPostProcessEvent: it saves the
// controller-finalized committer set locally, calls PostProcessDKG, and
// moves DKG status to WaitForPostProcess. PostGroupingListener resets it
// to None once the on-chain group epoch has moved on.
type PostGroupingSubscriber struct {
	chain        chainclient.ControllerTransactions
	groupUpdater dal.GroupInfoUpdater
}

func NewPostGroupingSubscriber(chain chainclient.ControllerTransactions, groupUpdater dal.GroupInfoUpdater) *PostGroupingSubscriber {
	return &PostGroupingSubscriber{chain: chain, groupUpdater: groupUpdater}
}

func (s *PostGroupingSubscriber) Topic() event.Topic        { return event.DKGPostProcess }
func (s *PostGroupingSubscriber) Type() core.SubscriberType { return core.SubscriberPostGrouping }

func (s *PostGroupingSubscriber) Handle(e event.Event) error {
	task, ok := e.(event.DKGPostProcessEvent)
	if !ok {
		return fmt.Errorf("post-grouping subscriber: unexpected event %T", e)
	}

	if err := s.groupUpdater.SaveCommitters(task.GroupIndex, task.Epoch, task.Committers); err != nil {
		return err
	}
	if _, err := s.chain.PostProcessDKG(context.Background(), task.GroupIndex, task.Epoch); err != nil {
		return err
	}
	_, err := s.groupUpdater.UpdateDKGStatus(task.GroupIndex, task.Epoch, core.DKGStatusWaitForPostProcess)
	return err
}
