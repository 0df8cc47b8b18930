// Package listener implements the node's periodic and chain-subscription
// producer tasks (C4): each Listener watches one chain or local-store
// signal and publishes events onto the shared queue for the matching
// subscriber (C5) to act on. Grounded on the teacher's clockwork-driven
// polling loops (chain/beacon/sync_manager.go, chain/sync/heartbeat.go):
// a clockwork.Clock field for test determinism, context cancellation to
// stop, and a jittered tick interval.
package listener

import (
	"context"
	"time"

	clock "github.com/jonboulle/clockwork"

	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// Listener is a long-lived task the scheduler spawns and, on failure,
// respawns per spec.md §4.8.
type Listener interface {
	Start(ctx context.Context) error
	Type() core.ListenerType
}

// Publisher is the queue surface every listener needs.
type Publisher interface {
	Publish(e event.Event) error
}

// pollLoop ticks every interval (jittered unless useJitter is false),
// calling tick until ctx is cancelled or tick returns an error — the
// scheduler treats a returned error as this listener's task having
// crashed, and restarts it.
func pollLoop(ctx context.Context, clk clock.Clock, interval time.Duration, useJitter bool, tick func(context.Context) error) error {
	for {
		wait := interval
		if useJitter {
			wait = core.Jitter(interval)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(wait):
		}
		if err := tick(ctx); err != nil {
			return err
		}
	}
}
