package subscriber

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// fakePublisher records every published event.
type fakePublisher struct {
	events []event.Event
	fail   error
}

func (f *fakePublisher) Publish(e event.Event) error {
	if f.fail != nil {
		return f.fail
	}
	f.events = append(f.events, e)
	return nil
}

func TestPreGroupingSubscriberSavesTaskAndPublishesRunDKG(t *testing.T) {
	groupStore := dal.NewGroupInfoStore()
	pub := &fakePublisher{}
	s := NewPreGroupingSubscriber(groupStore, groupStore, pub)

	require.Equal(t, event.NewDKGTask, s.Topic())

	addr := common.HexToAddress("0x1")
	members := map[common.Address]*core.Member{addr: {Address: addr, Index: 0}}
	ev := event.NewDKGTaskEvent{
		GroupIndex:  1,
		Epoch:       1,
		Threshold:   2,
		Size:        1,
		Members:     members,
		MemberOrder: []common.Address{addr},
		SelfIndex:   0,
	}

	require.NoError(t, s.Handle(ev))

	status, err := groupStore.GetDKGStatus()
	require.NoError(t, err)
	require.Equal(t, core.DKGStatusInPhase, status)

	require.Len(t, pub.events, 1)
	require.Equal(t, event.RunDKGEvent{GroupIndex: 1, Epoch: 1}, pub.events[0])
}

func TestPreGroupingSubscriberSkipsAlreadyRecordedTask(t *testing.T) {
	groupStore := dal.NewGroupInfoStore()
	require.NoError(t, groupStore.SaveTaskInfo(0, 1, 1, 0, 2, 1, map[common.Address]*core.Member{}, nil))

	pub := &fakePublisher{}
	s := NewPreGroupingSubscriber(groupStore, groupStore, pub)

	ev := event.NewDKGTaskEvent{GroupIndex: 1, Epoch: 1}
	require.NoError(t, s.Handle(ev))

	require.Empty(t, pub.events)
	status, err := groupStore.GetDKGStatus()
	require.NoError(t, err)
	require.Equal(t, core.DKGStatusNone, status)
}

func TestPreGroupingSubscriberRejectsUnexpectedEvent(t *testing.T) {
	groupStore := dal.NewGroupInfoStore()
	s := NewPreGroupingSubscriber(groupStore, groupStore, &fakePublisher{})
	require.Error(t, s.Handle(event.NewBlockEvent{}))
}
