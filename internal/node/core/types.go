package core

import (
	"github.com/drand/kyber"
	bls "github.com/drand/kyber-bls12381"
	"github.com/ethereum/go-ethereum/common"
)

// Suite is the pairing suite every group/member/share value in this package
// is expressed over. The concrete curve choice is a cryptographic primitive
// concern (out of scope per spec.md §1); this is simply the instance the
// rest of the pipeline treats opaquely via kyber's Group/Point/Scalar
// interfaces.
var Suite = bls.NewBLS12381Suite()

// DKGStatus is a Group's DKG lifecycle state. Status transitions form a DAG:
// None -> InPhase -> CommitSuccess -> WaitForPostProcess -> None, with
// Timeout a terminal fork reachable from any non-terminal state.
type DKGStatus int

const (
	DKGStatusNone DKGStatus = iota
	DKGStatusInPhase
	DKGStatusCommitSuccess
	DKGStatusWaitForPostProcess
	DKGStatusTimeout
)

func (s DKGStatus) String() string {
	switch s {
	case DKGStatusNone:
		return "None"
	case DKGStatusInPhase:
		return "InPhase"
	case DKGStatusCommitSuccess:
		return "CommitSuccess"
	case DKGStatusWaitForPostProcess:
		return "WaitForPostProcess"
	case DKGStatusTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// CanTransitionTo reports whether s -> next is a legal DKG status edge.
func (s DKGStatus) CanTransitionTo(next DKGStatus) bool {
	if next == DKGStatusTimeout {
		return s != DKGStatusTimeout
	}
	switch s {
	case DKGStatusNone:
		return next == DKGStatusInPhase
	case DKGStatusInPhase:
		return next == DKGStatusCommitSuccess
	case DKGStatusCommitSuccess:
		return next == DKGStatusWaitForPostProcess
	case DKGStatusWaitForPostProcess:
		return next == DKGStatusNone
	default:
		return false
	}
}

// Member is one party of a Group: its address, share index, and (once the
// DKG completes) its partial public key used to verify its partial
// signatures.
type Member struct {
	Address           common.Address
	Index             int
	PartialPublicKey  kyber.Point // nil until DKG completes
}

// Node is this process's chain identity: account address, signing key, DKG
// key pair, and the committer RPC endpoint it advertises to peers/chain.
type Node struct {
	IDAddress             common.Address
	DKGPrivateKey         kyber.Scalar
	DKGPublicKey          kyber.Point
	RPCEndpoint           string
}

// Group is identified by (GroupIndex, Epoch); see spec.md §3 for the
// invariants: Share present iff Status in {CommitSuccess,
// WaitForPostProcess}; Committers non-empty iff Status == CommitSuccess.
type Group struct {
	GroupIndex  int
	Epoch       int
	Threshold   int
	Size        int
	Members     map[common.Address]*Member
	MemberOrder []common.Address // insertion order, for deterministic iteration
	Committers  []common.Address
	PublicKey   kyber.Point
	// Commitments are the group's public polynomial coefficients, as
	// produced by the DKG run. A member's PartialPublicKey is this
	// polynomial evaluated at its share index; Commitments is kept
	// alongside so the BLS recovery step can reconstruct a share.PubPoly
	// without re-deriving it from every member.
	Commitments         []kyber.Point
	SelfIndex           int
	SecretShare         kyber.Scalar // this node's share; nil unless HasShare()
	DKGStartBlockHeight int
	Status              DKGStatus
}

// HasShare reports the invariant "share present iff status in
// {CommitSuccess, WaitForPostProcess}".
func (g *Group) HasShare() bool {
	return g.Status == DKGStatusCommitSuccess || g.Status == DKGStatusWaitForPostProcess
}

// IsCommitter reports whether addr is one of this group's elected
// committers.
func (g *Group) IsCommitter(addr common.Address) bool {
	for _, c := range g.Committers {
		if c == addr {
			return true
		}
	}
	return false
}

// TaskState is a randomness task's lifecycle stage.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskAvailable
	TaskInFlight
	TaskCached
	TaskCommitted
)

// Task is the common contract every schedulable BLS task satisfies: a
// unique, opaque task id.
type Task interface {
	TaskID() []byte
}

// RandomnessTask is one on-chain randomness request assigned to a group.
type RandomnessTask struct {
	RequestID             []byte
	GroupIndex            int
	AssignmentBlockHeight int
	Message               []byte
}

// TaskID satisfies Task; it is RequestID, the task's unique identifier.
func (t RandomnessTask) TaskID() []byte { return t.RequestID }

// CommitterTaskType is the committer RPC wire protocol's task_type field
// (spec.md §4.6/§6): it tags what kind of task a partial signature belongs
// to, independent of the scheduler's own TaskType discriminated union.
type CommitterTaskType uint32

// CommitterTaskTypeRandomness is the only task type the committer RPC
// server currently accepts.
const CommitterTaskTypeRandomness CommitterTaskType = 1

// SignatureIndex derives the deterministic cache key for a task, anchored
// on RequestID bytes rather than an insertion counter so every group member
// computes the same index (open question in spec.md §9, resolved here).
func (t RandomnessTask) SignatureIndex() string {
	return string(t.RequestID)
}

// BLSResultCacheState is a signature-result cache entry's commit state.
type BLSResultCacheState int

const (
	NotCommitted BLSResultCacheState = iota
	Committing
	Committed
	CommittedByOthers
)

func (s BLSResultCacheState) String() string {
	switch s {
	case NotCommitted:
		return "NotCommitted"
	case Committing:
		return "Committing"
	case Committed:
		return "Committed"
	case CommittedByOthers:
		return "CommittedByOthers"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s is a final commit state (Committed or
// CommittedByOthers); entries in a terminal state are immutable.
func (s BLSResultCacheState) IsTerminal() bool {
	return s == Committed || s == CommittedByOthers
}
