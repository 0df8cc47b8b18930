package listener

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

type fakeBlockFetcher struct {
	heights []int
	err     error
}

func (f *fakeBlockFetcher) SubscribeNewBlockHeight(ctx context.Context, cb func(context.Context, int) error) error {
	for _, h := range f.heights {
		if err := cb(ctx, h); err != nil {
			return err
		}
	}
	return f.err
}

func TestBlockListenerPublishesEveryHeight(t *testing.T) {
	fetcher := &fakeBlockFetcher{heights: []int{10, 11, 12}}
	pub := &fakePublisher{}
	l := NewBlockListener(fetcher, pub)

	require.Equal(t, core.ListenerBlock, l.Type())
	require.NoError(t, l.Start(context.Background()))

	require.Len(t, pub.events, 3)
	require.Equal(t, event.NewBlockEvent{BlockHeight: 10}, pub.events[0])
	require.Equal(t, event.NewBlockEvent{BlockHeight: 12}, pub.events[2])
}

func TestBlockListenerWrapsSubscriptionError(t *testing.T) {
	fetcher := &fakeBlockFetcher{err: context.DeadlineExceeded}
	pub := &fakePublisher{}
	l := NewBlockListener(fetcher, pub)

	err := l.Start(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
