// Package subscriber implements the node's event-driven state-transition
// rules (C5): each Subscriber registers for exactly one event.Topic and
// reacts by mutating local store state, driving the DKG, or submitting a
// chain transaction. Grounded on the original node's
// node::subscriber::pre_grouping::PreGroupingSubscriber: read the cached
// group state, compare against the incoming event, mutate only on a real
// change, and publish a follow-on event when the mutation succeeds.
package subscriber

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/event"
)

// Subscriber is registered onto the event queue at startup; Handle
// satisfies queue.Handler's signature directly.
type Subscriber interface {
	Topic() event.Topic
	Handle(e event.Event) error
	Type() core.SubscriberType
}

// Publisher is the queue surface every subscriber needs to chain a
// follow-on event.
type Publisher interface {
	Publish(e event.Event) error
}

// PartialSignatureSender delivers this node's partial signature to one
// other committer, via the committer RPC client (C7).
type PartialSignatureSender interface {
	SendPartialSignature(ctx context.Context, to common.Address, endpoint string, req PartialSignatureRequest) error
}

// PartialSignatureRequest is what gets sent to a peer committer; mirrors
// the committer RPC server's CommitPartialSignature request shape (C7/§4.6).
type PartialSignatureRequest struct {
	IDAddress    common.Address
	ChainID      uint64
	TaskType     core.CommitterTaskType
	GroupIndex   int
	RequestID    []byte
	Message      []byte
	PartialIndex int
	Partial      []byte
}
