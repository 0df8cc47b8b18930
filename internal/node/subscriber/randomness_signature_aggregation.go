package subscriber

import (
	"context"
	"fmt"

	"github.com/arpa-network/arpa-node/internal/node/bls"
	"github.com/arpa-network/arpa-node/internal/node/chainclient"
	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// RandomnessSignatureAggregationSubscriber reacts to ReadyToAggregateEvent:
// the cached entry has already been claimed (State == Committing, via
// ResultCache.ReadyToCommit) by the time this fires, so recovery here never
// races a sibling aggregation for the same request.
type RandomnessSignatureAggregationSubscriber struct {
	cacheFetcher dal.SignatureResultCacheFetcher
	cacheUpdater dal.SignatureResultCacheUpdater
	groupFetcher dal.GroupInfoFetcher
	chain        chainclient.AdapterTransactions
	views        chainclient.AdapterViews
	blsCore      bls.Core
}

func NewRandomnessSignatureAggregationSubscriber(cacheFetcher dal.SignatureResultCacheFetcher, cacheUpdater dal.SignatureResultCacheUpdater, groupFetcher dal.GroupInfoFetcher, chain chainclient.AdapterTransactions, views chainclient.AdapterViews, blsCore bls.Core) *RandomnessSignatureAggregationSubscriber {
	return &RandomnessSignatureAggregationSubscriber{
		cacheFetcher: cacheFetcher,
		cacheUpdater: cacheUpdater,
		groupFetcher: groupFetcher,
		chain:        chain,
		views:        views,
		blsCore:      blsCore,
	}
}

// resolveFailedCommit decides what a failed/reverted FulfillRandomness call
// means for the cache entry: if the adapter no longer considers the request
// pending, another committer already fulfilled it first, so the entry is
// terminal (CommittedByOthers); otherwise it reverts to NotCommitted so the
// next RandomnessSignatureAggregation round retries it.
func (s *RandomnessSignatureAggregationSubscriber) resolveFailedCommit(ctx context.Context, requestID []byte) error {
	pending, err := s.views.IsTaskPending(ctx, requestID)
	if err != nil {
		return s.cacheUpdater.UpdateCommitResult(requestID, core.NotCommitted)
	}
	if !pending {
		return s.cacheUpdater.UpdateCommitResult(requestID, core.CommittedByOthers)
	}
	return s.cacheUpdater.UpdateCommitResult(requestID, core.NotCommitted)
}

func (s *RandomnessSignatureAggregationSubscriber) Topic() event.Topic { return event.ReadyToAggregate }
func (s *RandomnessSignatureAggregationSubscriber) Type() core.SubscriberType {
	return core.SubscriberRandomnessSignatureAggregation
}

func (s *RandomnessSignatureAggregationSubscriber) Handle(e event.Event) error {
	ev, ok := e.(event.ReadyToAggregateEvent)
	if !ok {
		return fmt.Errorf("randomness-signature-aggregation subscriber: unexpected event %T", e)
	}

	entry, ok := s.cacheFetcher.Get(ev.RequestID)
	if !ok {
		return core.ErrCommitterCacheNotExisted
	}

	groupPublicKey, err := s.groupFetcher.GetPublicKey()
	if err != nil {
		return err
	}
	group, err := s.groupFetcher.GetGroup()
	if err != nil {
		return err
	}

	partials := make([]bls.PartialSignature, 0, len(entry.Partials))
	for addr, sig := range entry.Partials {
		m, err := s.groupFetcher.GetMember(addr)
		if err != nil {
			return err
		}
		partials = append(partials, bls.PartialSignature{Index: m.Index, Signature: sig})
	}

	ctx := context.Background()

	signature, err := s.blsCore.RecoverSignature(partials, entry.Message, groupPublicKey, entry.Threshold, group.Size)
	if err != nil {
		if revertErr := s.resolveFailedCommit(ctx, ev.RequestID); revertErr != nil {
			return revertErr
		}
		return fmt.Errorf("randomness-signature-aggregation subscriber: recover signature: %w", err)
	}

	if _, err := s.chain.FulfillRandomness(ctx, entry.Task.GroupIndex, entry.Task, signature, entry.Partials); err != nil {
		if revertErr := s.resolveFailedCommit(ctx, ev.RequestID); revertErr != nil {
			return revertErr
		}
		return fmt.Errorf("randomness-signature-aggregation subscriber: fulfill randomness: %w", err)
	}

	return s.cacheUpdater.UpdateCommitResult(ev.RequestID, core.Committed)
}
