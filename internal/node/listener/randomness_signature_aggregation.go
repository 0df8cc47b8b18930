package listener

import (
	"context"
	"fmt"
	"time"

	clock "github.com/jonboulle/clockwork"

	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// RandomnessSignatureAggregationListener polls the signature-result cache
// for entries that have reached threshold partials, atomically claims
// each one (ResultCache.ReadyToCommit flips NotCommitted -> Committing
// under its own lock, so at most one goroutine ever proceeds to commit a
// given request), and publishes a ReadyToAggregateEvent per claimed entry.
// Each tick also sweeps terminal entries past their retention window, since
// it already holds the cache and the current block height this cadence
// needs.
type RandomnessSignatureAggregationListener struct {
	cache           *dal.ResultCache
	blockStore      BlockHeightFetcher
	pub             Publisher
	clock           clock.Clock
	interval        time.Duration
	useJitter       bool
	retentionBlocks int
}

func NewRandomnessSignatureAggregationListener(cache *dal.ResultCache, blockStore BlockHeightFetcher, pub Publisher, clk clock.Clock, desc core.ListenerDescriptor, retentionBlocks int) *RandomnessSignatureAggregationListener {
	return &RandomnessSignatureAggregationListener{
		cache:           cache,
		blockStore:      blockStore,
		pub:             pub,
		clock:           clk,
		interval:        time.Duration(desc.IntervalMillis) * time.Millisecond,
		useJitter:       desc.UseJitter,
		retentionBlocks: retentionBlocks,
	}
}

func (l *RandomnessSignatureAggregationListener) Type() core.ListenerType {
	return core.ListenerRandomnessSignatureAggregation
}

func (l *RandomnessSignatureAggregationListener) Start(ctx context.Context) error {
	err := pollLoop(ctx, l.clock, l.interval, l.useJitter, l.tick)
	if err != nil {
		return fmt.Errorf("randomness-signature-aggregation listener: %w", err)
	}
	return nil
}

func (l *RandomnessSignatureAggregationListener) tick(ctx context.Context) error {
	height := l.blockStore.CurrentBlockHeight()
	for _, entry := range l.cache.ReadyToCommit(height) {
		if err := l.pub.Publish(event.ReadyToAggregateEvent{RequestID: entry.Task.RequestID}); err != nil {
			return err
		}
	}
	l.cache.Sweep(height, l.retentionBlocks)
	return nil
}
