package listener

import (
	"context"
	"fmt"

	"github.com/arpa-network/arpa-node/internal/node/chainclient"
	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// NewRandomnessTaskListener forwards every adapter-announced randomness
// request as a NewRandomnessTaskEvent for the task-store subscriber to
// record.
type NewRandomnessTaskListener struct {
	chain chainclient.AdapterLogs
	pub   Publisher
}

func NewNewRandomnessTaskListener(chain chainclient.AdapterLogs, pub Publisher) *NewRandomnessTaskListener {
	return &NewRandomnessTaskListener{chain: chain, pub: pub}
}

func (l *NewRandomnessTaskListener) Type() core.ListenerType { return core.ListenerNewRandomnessTask }

func (l *NewRandomnessTaskListener) Start(ctx context.Context) error {
	err := l.chain.SubscribeRandomnessTask(ctx, func(ctx context.Context, task core.RandomnessTask) error {
		return l.pub.Publish(event.NewRandomnessTaskEvent{Task: task})
	})
	if err != nil {
		return fmt.Errorf("new randomness task listener: %w", err)
	}
	return nil
}
