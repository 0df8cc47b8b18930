package listener

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

type fakeAdapterLogs struct {
	tasks []core.RandomnessTask
}

func (f *fakeAdapterLogs) SubscribeRandomnessTask(ctx context.Context, cb func(context.Context, core.RandomnessTask) error) error {
	for _, task := range f.tasks {
		if err := cb(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

func TestNewRandomnessTaskListenerPublishesEachTask(t *testing.T) {
	fetcher := &fakeAdapterLogs{tasks: []core.RandomnessTask{
		{RequestID: []byte("r1")},
		{RequestID: []byte("r2")},
	}}
	pub := &fakePublisher{}
	l := NewNewRandomnessTaskListener(fetcher, pub)

	require.Equal(t, core.ListenerNewRandomnessTask, l.Type())
	require.NoError(t, l.Start(context.Background()))
	require.Len(t, pub.events, 2)
	require.Equal(t, event.NewRandomnessTaskEvent{Task: fetcher.tasks[0]}, pub.events[0])
}
