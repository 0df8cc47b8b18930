package subscriber

import (
	"context"
	"fmt"
	"time"

	"github.com/drand/kyber"
	kdkg "github.com/drand/kyber/share/dkg"
	"github.com/ethereum/go-ethereum/common"

	"github.com/arpa-network/arpa-node/internal/lg"
	"github.com/arpa-network/arpa-node/internal/node/chainclient"
	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/dkg"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// InGroupingSubscriber reacts to RunDKGEvent by binding the group's
// coordinator contract and driving dkg.Runner to completion, then saving
// the result locally and submitting it on-chain via CommitDKG. DKGSuccess
// is not published here: a chain-watching listener fires it once this
// group's commit is actually visible on-chain, since another committer's
// commit or a dropped transaction can both leave this call without
// finalizing anything.
type InGroupingSubscriber struct {
	chain        chainclient.Client
	groupFetcher dal.GroupInfoFetcher
	groupUpdater dal.GroupInfoUpdater
	nodeFetcher  dal.NodeInfoFetcher
	pub          Publisher
	timeLimits   core.TimeLimitDescriptor
	log          lg.Logger
}

func NewInGroupingSubscriber(chain chainclient.Client, groupFetcher dal.GroupInfoFetcher, groupUpdater dal.GroupInfoUpdater, nodeFetcher dal.NodeInfoFetcher, pub Publisher, timeLimits core.TimeLimitDescriptor, log lg.Logger) *InGroupingSubscriber {
	return &InGroupingSubscriber{
		chain:        chain,
		groupFetcher: groupFetcher,
		groupUpdater: groupUpdater,
		nodeFetcher:  nodeFetcher,
		pub:          pub,
		timeLimits:   timeLimits,
		log:          log,
	}
}

func (s *InGroupingSubscriber) Topic() event.Topic        { return event.RunDKG }
func (s *InGroupingSubscriber) Type() core.SubscriberType { return core.SubscriberInGrouping }

func (s *InGroupingSubscriber) Handle(e event.Event) error {
	task, ok := e.(event.RunDKGEvent)
	if !ok {
		return fmt.Errorf("in-grouping subscriber: unexpected event %T", e)
	}

	group, err := s.groupFetcher.GetGroup()
	if err != nil {
		return err
	}
	if group.GroupIndex != task.GroupIndex || group.Epoch != task.Epoch {
		return fmt.Errorf("in-grouping subscriber: group/epoch mismatch")
	}

	longterm, err := s.nodeFetcher.GetDKGPrivateKey()
	if err != nil {
		return err
	}

	members := make([]kdkg.Node, group.Size)
	for _, addr := range group.MemberOrder {
		m := group.Members[addr]
		pub, err := s.memberPublicKey(addr)
		if err != nil {
			return fmt.Errorf("in-grouping subscriber: %w", err)
		}
		members[m.Index] = kdkg.Node{Index: uint32(m.Index), Public: pub}
	}

	coordinatorAddr, err := s.chain.GetCoordinator(context.Background(), task.GroupIndex)
	if err != nil {
		return fmt.Errorf("in-grouping subscriber: get coordinator: %w", err)
	}
	coordinator := s.chain.BindCoordinator(coordinatorAddr)

	pollInterval := time.Duration(s.timeLimits.DKGWaitForPhaseIntervalMillis) * time.Millisecond
	timeout := time.Duration(s.timeLimits.DKGTimeoutDuration) * time.Second
	runner := dkg.NewRunner(coordinator, group.SelfIndex, group.Size, pollInterval, timeout, s.log)

	ctx, cancel := context.WithTimeout(context.Background(), timeout*time.Duration(len(members)))
	defer cancel()

	out, err := runner.Run(ctx, group.SelfIndex, longterm, members, group.Threshold)
	if err != nil {
		s.log.Errorw("dkg run failed", "group", task.GroupIndex, "epoch", task.Epoch, "err", err)
		_, updateErr := s.groupUpdater.UpdateDKGStatus(task.GroupIndex, task.Epoch, core.DKGStatusTimeout)
		if updateErr != nil {
			return updateErr
		}
		return err
	}

	disqualified := make([]common.Address, 0, len(out.Disqualified))
	for _, idx := range out.Disqualified {
		disqualified = append(disqualified, group.MemberOrder[idx])
	}

	if err := s.groupUpdater.SaveOutput(task.GroupIndex, task.Epoch, out.PublicKey, out.SecretShare, out.Commitments, disqualified); err != nil {
		return err
	}

	pubKeyRaw, err := out.PublicKey.MarshalBinary()
	if err != nil {
		return err
	}
	commitmentsRaw := make([][]byte, len(out.Commitments))
	for i, c := range out.Commitments {
		raw, err := c.MarshalBinary()
		if err != nil {
			return err
		}
		commitmentsRaw[i] = raw
	}

	if _, err := s.chain.CommitDKG(context.Background(), task.GroupIndex, task.Epoch, pubKeyRaw, commitmentsRaw, disqualified); err != nil {
		s.log.Errorw("commit dkg failed", "group", task.GroupIndex, "epoch", task.Epoch, "err", err)
		if _, updateErr := s.groupUpdater.UpdateDKGStatus(task.GroupIndex, task.Epoch, core.DKGStatusTimeout); updateErr != nil {
			return updateErr
		}
		return err
	}

	return nil
}

// memberPublicKey returns addr's long-term DKG public key. Group does not
// carry member long-term keys separately from the controller's node
// registry; the chain client's GetNode view is the source of truth and is
// intentionally re-fetched here rather than cached, since it is only
// needed once per DKG run.
func (s *InGroupingSubscriber) memberPublicKey(addr common.Address) (kyber.Point, error) {
	node, err := s.chain.GetNode(context.Background(), addr)
	if err != nil {
		return nil, err
	}
	return node.DKGPublicKey, nil
}
