package subscriber

import (
	"context"
	"fmt"

	"github.com/arpa-network/arpa-node/internal/lg"
	"github.com/arpa-network/arpa-node/internal/node/bls"
	"github.com/arpa-network/arpa-node/internal/node/chainclient"
	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// ReadyToHandleRandomnessTaskSubscriber reacts to
// ReadyToHandleRandomnessTaskEvent: it opens the task's signature-result
// cache entry, signs this node's own partial, records it locally, and
// fans it out to every other committer so RandomnessSignatureAggregation
// can later recombine them (spec.md §4.5).
type ReadyToHandleRandomnessTaskSubscriber struct {
	chain        chainclient.ControllerViews
	groupFetcher dal.GroupInfoFetcher
	nodeFetcher  dal.NodeInfoFetcher
	cache        dal.SignatureResultCacheUpdater
	blockStore   BlockHeightFetcher
	blsCore      bls.Core
	sender       PartialSignatureSender
	pub          Publisher
	chainID      uint64
	log          lg.Logger
}

// BlockHeightFetcher is the narrow surface this subscriber needs from
// whatever tracks the locally-observed chain height, shared with the
// listener package's interface of the same name.
type BlockHeightFetcher interface {
	CurrentBlockHeight() int
}

func NewReadyToHandleRandomnessTaskSubscriber(chain chainclient.ControllerViews, groupFetcher dal.GroupInfoFetcher, nodeFetcher dal.NodeInfoFetcher, cache dal.SignatureResultCacheUpdater, blockStore BlockHeightFetcher, blsCore bls.Core, sender PartialSignatureSender, pub Publisher, chainID uint64, log lg.Logger) *ReadyToHandleRandomnessTaskSubscriber {
	return &ReadyToHandleRandomnessTaskSubscriber{
		chain:        chain,
		groupFetcher: groupFetcher,
		nodeFetcher:  nodeFetcher,
		cache:        cache,
		blockStore:   blockStore,
		blsCore:      blsCore,
		sender:       sender,
		pub:          pub,
		chainID:      chainID,
		log:          log,
	}
}

func (s *ReadyToHandleRandomnessTaskSubscriber) Topic() event.Topic {
	return event.ReadyToHandleRandomnessTask
}

func (s *ReadyToHandleRandomnessTaskSubscriber) Type() core.SubscriberType {
	return core.SubscriberReadyToHandleRandomnessTask
}

func (s *ReadyToHandleRandomnessTaskSubscriber) Handle(e event.Event) error {
	ev, ok := e.(event.ReadyToHandleRandomnessTaskEvent)
	if !ok {
		return fmt.Errorf("ready-to-handle-randomness-task subscriber: unexpected event %T", e)
	}
	task := ev.Task

	group, err := s.groupFetcher.GetGroup()
	if err != nil {
		return err
	}
	secretShare, err := s.groupFetcher.GetSecretShare()
	if err != nil {
		return err
	}
	selfAddr, err := s.nodeFetcher.GetIDAddress()
	if err != nil {
		return err
	}

	s.cache.Add(task, task.Message, group.Threshold, s.blockStore.CurrentBlockHeight())

	partial, err := s.blsCore.PartialSign(secretShare, group.SelfIndex, task.Message)
	if err != nil {
		return fmt.Errorf("ready-to-handle-randomness-task subscriber: partial sign: %w", err)
	}
	if _, err := s.cache.AddPartialSignature(task.RequestID, selfAddr, partial.Signature); err != nil {
		return err
	}

	ctx := context.Background()
	for _, addr := range group.Committers {
		if addr == selfAddr {
			continue
		}
		node, err := s.chain.GetNode(ctx, addr)
		if err != nil {
			s.log.Errorw("ready-to-handle-randomness-task subscriber: resolve committer endpoint", "committer", addr, "err", err)
			continue
		}
		req := PartialSignatureRequest{
			IDAddress:    selfAddr,
			ChainID:      s.chainID,
			TaskType:     core.CommitterTaskTypeRandomness,
			GroupIndex:   task.GroupIndex,
			RequestID:    task.RequestID,
			Message:      task.Message,
			PartialIndex: group.SelfIndex,
			Partial:      partial.Signature,
		}
		if err := s.sender.SendPartialSignature(ctx, addr, node.RPCEndpoint, req); err != nil {
			s.log.Errorw("ready-to-handle-randomness-task subscriber: send partial signature", "committer", addr, "err", err)
			continue
		}
		if err := s.pub.Publish(event.PartialSignatureSentEvent{RequestID: task.RequestID, To: addr}); err != nil {
			return err
		}
	}
	return nil
}
