package listener

import (
	"context"
	"fmt"

	"github.com/arpa-network/arpa-node/internal/node/chainclient"
	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// BlockListener forwards every new chain head as a NewBlockEvent. Grounded
// on the original node's listener::block::BlockListener, which likewise
// just wraps the chain provider's block-height subscription in a publish
// call with no buffering of its own.
type BlockListener struct {
	chain chainclient.BlockFetcher
	pub   Publisher
}

func NewBlockListener(chain chainclient.BlockFetcher, pub Publisher) *BlockListener {
	return &BlockListener{chain: chain, pub: pub}
}

func (l *BlockListener) Type() core.ListenerType { return core.ListenerBlock }

func (l *BlockListener) Start(ctx context.Context) error {
	err := l.chain.SubscribeNewBlockHeight(ctx, func(ctx context.Context, height int) error {
		return l.pub.Publish(event.NewBlockEvent{BlockHeight: height})
	})
	if err != nil {
		return fmt.Errorf("block listener: %w", err)
	}
	return nil
}
