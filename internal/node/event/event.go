// Package event defines the tagged-union payloads carried on the event
// queue (spec.md §4.1): every event knows its own Topic, so a subscriber
// narrows by topic rather than by runtime type introspection.
package event

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

// Topic discriminates event payloads. Registration order on a Topic is
// delivery order for that topic; there is no ordering across topics.
type Topic int

const (
	NewBlock Topic = iota
	NewDKGTask
	RunDKG
	DKGSuccess
	DKGPostProcess
	NewRandomnessTask
	ReadyToHandleRandomnessTask
	ReadyToAggregate
	PartialSignatureSent
)

func (t Topic) String() string {
	switch t {
	case NewBlock:
		return "NewBlock"
	case NewDKGTask:
		return "NewDKGTask"
	case RunDKG:
		return "RunDKG"
	case DKGSuccess:
		return "DKGSuccess"
	case DKGPostProcess:
		return "DKGPostProcess"
	case NewRandomnessTask:
		return "NewRandomnessTask"
	case ReadyToHandleRandomnessTask:
		return "ReadyToHandleRandomnessTask"
	case ReadyToAggregate:
		return "ReadyToAggregate"
	case PartialSignatureSent:
		return "PartialSignatureSent"
	default:
		return "Unknown"
	}
}

// Event is the common contract every payload satisfies: its own topic
// discriminant.
type Event interface {
	Topic() Topic
}

// NewBlockEvent fires whenever the chain client observes a new head.
type NewBlockEvent struct {
	BlockHeight int
}

func (NewBlockEvent) Topic() Topic { return NewBlock }

// NewDKGTaskEvent fires when the controller announces a new grouping task
// for this node.
type NewDKGTaskEvent struct {
	GroupIndex          int
	Epoch               int
	Threshold           int
	Size                int
	Members             map[common.Address]*core.Member
	MemberOrder         []common.Address
	SelfIndex           int
	DKGStartBlockHeight int
}

func (NewDKGTaskEvent) Topic() Topic { return NewDKGTask }

// RunDKGEvent fires once PreGroupingSubscriber has recorded task info and
// flipped status to InPhase; it is the DKG runner's cue to start the
// Pedersen/Joint-Feldman protocol.
type RunDKGEvent struct {
	GroupIndex int
	Epoch      int
}

func (RunDKGEvent) Topic() Topic { return RunDKG }

// DKGSuccessEvent fires once a chain-watching listener observes this
// group's DKG commit finalized on-chain (CommitDKG has already been
// submitted by InGroupingSubscriber; this is the on-chain confirmation of
// it, not the local protocol run completing). PostSuccessGroupingSubscriber
// uses it only to populate the committer set from the chain's own view.
type DKGSuccessEvent struct {
	GroupIndex int
	Epoch      int
	Committers []common.Address
}

func (DKGSuccessEvent) Topic() Topic { return DKGSuccess }

// DKGPostProcessEvent fires once this node has committed its DKG output to
// the controller and the controller has finalized the group (committer
// election complete).
type DKGPostProcessEvent struct {
	GroupIndex int
	Epoch      int
	Committers []common.Address
}

func (DKGPostProcessEvent) Topic() Topic { return DKGPostProcess }

// NewRandomnessTaskEvent fires when the adapter emits a randomness request
// assigned to a group.
type NewRandomnessTaskEvent struct {
	Task core.RandomnessTask
}

func (NewRandomnessTaskEvent) Topic() Topic { return NewRandomnessTask }

// ReadyToHandleRandomnessTaskEvent fires once a task has cleared the
// committer-assignment/exclusive-window check and this node should begin
// partial-signature exchange.
type ReadyToHandleRandomnessTaskEvent struct {
	Task core.RandomnessTask
}

func (ReadyToHandleRandomnessTaskEvent) Topic() Topic { return ReadyToHandleRandomnessTask }

// ReadyToAggregateEvent fires once this node's own signature-result cache
// entry for request_id has reached threshold partials and is ready for
// recovery + on-chain commit.
type ReadyToAggregateEvent struct {
	RequestID []byte
}

func (ReadyToAggregateEvent) Topic() Topic { return ReadyToAggregate }

// PartialSignatureSentEvent fires after this node has dispatched its own
// partial signature to its committers, for observability/metrics
// subscribers.
type PartialSignatureSentEvent struct {
	RequestID []byte
	To        common.Address
}

func (PartialSignatureSentEvent) Topic() Topic { return PartialSignatureSent }
