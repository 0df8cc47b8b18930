package subscriber

import (
	"fmt"

	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// PostSuccessGroupingSubscriber reacts to DKGSuccessEvent — the
// chain-confirmed finalization of this group's DKG commit — by recording
// the elected committer set and flipping local status to CommitSuccess.
// The on-chain CommitDKG call itself already happened earlier, in
// InGroupingSubscriber; this subscriber only catches up local state to
// what the chain has already confirmed.
type PostSuccessGroupingSubscriber struct {
	groupUpdater dal.GroupInfoUpdater
}

func NewPostSuccessGroupingSubscriber(groupUpdater dal.GroupInfoUpdater) *PostSuccessGroupingSubscriber {
	return &PostSuccessGroupingSubscriber{groupUpdater: groupUpdater}
}

func (s *PostSuccessGroupingSubscriber) Topic() event.Topic { return event.DKGSuccess }
func (s *PostSuccessGroupingSubscriber) Type() core.SubscriberType {
	return core.SubscriberPostSuccessGrouping
}

func (s *PostSuccessGroupingSubscriber) Handle(e event.Event) error {
	out, ok := e.(event.DKGSuccessEvent)
	if !ok {
		return fmt.Errorf("post-success-grouping subscriber: unexpected event %T", e)
	}
	if err := s.groupUpdater.SaveCommitters(out.GroupIndex, out.Epoch, out.Committers); err != nil {
		return err
	}
	_, err := s.groupUpdater.UpdateDKGStatus(out.GroupIndex, out.Epoch, core.DKGStatusCommitSuccess)
	return err
}
