package dal

import (
	"fmt"
	"sync"

	"github.com/drand/kyber"
	"github.com/drand/kyber/share"
	"github.com/ethereum/go-ethereum/common"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

// GroupInfoFetcher reads this node's current group membership and DKG
// state.
type GroupInfoFetcher interface {
	GetGroup() (*core.Group, error)
	GetIndex() (int, error)
	GetEpoch() (int, error)
	GetThreshold() (int, error)
	GetState() (bool, error) // true once Status == CommitSuccess
	GetSelfIndex() (int, error)
	GetPublicKey() (kyber.Point, error)
	GetSecretShare() (kyber.Scalar, error)
	GetMember(addr common.Address) (*core.Member, error)
	GetCommitters() ([]common.Address, error)
	GetDKGStartBlockHeight() (int, error)
	GetDKGStatus() (core.DKGStatus, error)
	IsCommitter(addr common.Address) (bool, error)
}

// GroupInfoUpdater mutates group state as the DKG and committer protocols
// advance.
type GroupInfoUpdater interface {
	SaveTaskInfo(selfIndex int, groupIndex, epoch, dkgStartBlockHeight int, threshold, size int, members map[common.Address]*core.Member, order []common.Address) error
	SaveOutput(groupIndex, epoch int, publicKey kyber.Point, secretShare kyber.Scalar, commitments []kyber.Point, disqualified []common.Address) error
	UpdateDKGStatus(groupIndex, epoch int, status core.DKGStatus) (bool, error)
	SaveCommitters(groupIndex, epoch int, committers []common.Address) error
}

// GroupInfoStore is the in-memory GroupInfoFetcher/Updater implementation.
// It holds exactly one Group: the group this node currently belongs to.
// Epoch bumps on every regrouping replace it wholesale.
type GroupInfoStore struct {
	mu    sync.RWMutex
	group *core.Group
}

// NewGroupInfoStore returns an empty store (no group yet, Status == None).
func NewGroupInfoStore() *GroupInfoStore {
	return &GroupInfoStore{group: &core.Group{Status: core.DKGStatusNone}}
}

func (s *GroupInfoStore) GetGroup() (*core.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.group, nil
}

func (s *GroupInfoStore) GetIndex() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.group.GroupIndex, nil
}

func (s *GroupInfoStore) GetEpoch() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.group.Epoch, nil
}

func (s *GroupInfoStore) GetThreshold() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.group.Threshold, nil
}

func (s *GroupInfoStore) GetState() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.group.Status == core.DKGStatusCommitSuccess, nil
}

func (s *GroupInfoStore) GetSelfIndex() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.group.SelfIndex, nil
}

func (s *GroupInfoStore) GetPublicKey() (kyber.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.group.PublicKey == nil {
		return nil, fmt.Errorf("group public key not available")
	}
	return s.group.PublicKey, nil
}

func (s *GroupInfoStore) GetSecretShare() (kyber.Scalar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.group.HasShare() || s.group.SecretShare == nil {
		return nil, fmt.Errorf("secret share not available in status %s", s.group.Status)
	}
	return s.group.SecretShare, nil
}

func (s *GroupInfoStore) GetMember(addr common.Address) (*core.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.group.Members[addr]
	if !ok {
		return nil, core.ErrMemberNotExisted
	}
	return m, nil
}

func (s *GroupInfoStore) GetCommitters() ([]common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.Address, len(s.group.Committers))
	copy(out, s.group.Committers)
	return out, nil
}

func (s *GroupInfoStore) GetDKGStartBlockHeight() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.group.DKGStartBlockHeight, nil
}

func (s *GroupInfoStore) GetDKGStatus() (core.DKGStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.group.Status, nil
}

func (s *GroupInfoStore) IsCommitter(addr common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.group.IsCommitter(addr), nil
}

// SaveTaskInfo records a freshly-announced DKG task: group shape, member
// set and the block height the DKG was announced at. Called by
// PreGroupingSubscriber before it flips status to InPhase.
func (s *GroupInfoStore) SaveTaskInfo(selfIndex int, groupIndex, epoch, dkgStartBlockHeight int, threshold, size int, members map[common.Address]*core.Member, order []common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.group = &core.Group{
		GroupIndex:          groupIndex,
		Epoch:               epoch,
		Threshold:           threshold,
		Size:                size,
		Members:             members,
		MemberOrder:         order,
		SelfIndex:           selfIndex,
		DKGStartBlockHeight: dkgStartBlockHeight,
		Status:              core.DKGStatusNone,
	}
	return nil
}

// SaveOutput records the result of a successful DKG run: group public key,
// this node's secret share, the group's public polynomial coefficients,
// plus the disqualified set for the caller to report to the controller.
// Each member's PartialPublicKey is derived by evaluating the public
// polynomial at that member's share index, per Joint-Feldman DKG.
func (s *GroupInfoStore) SaveOutput(groupIndex, epoch int, publicKey kyber.Point, secretShare kyber.Scalar, commitments []kyber.Point, disqualified []common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group.GroupIndex != groupIndex || s.group.Epoch != epoch {
		return fmt.Errorf("group/epoch mismatch: have (%d,%d) want (%d,%d)", s.group.GroupIndex, s.group.Epoch, groupIndex, epoch)
	}
	s.group.PublicKey = publicKey
	s.group.SecretShare = secretShare
	s.group.Commitments = commitments

	pubPoly := share.NewPubPoly(core.Suite.G2(), nil, commitments)
	for _, m := range s.group.Members {
		m.PartialPublicKey = pubPoly.Eval(m.Index).V
	}
	return nil
}

// UpdateDKGStatus transitions the group's DKG status, enforcing the legal
// transition DAG (spec.md §8's DKG status monotonicity property). It
// returns false (no error) if the requested transition is a no-op repeat
// of the current state, mirroring the original node's idempotent update.
func (s *GroupInfoStore) UpdateDKGStatus(groupIndex, epoch int, status core.DKGStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group.GroupIndex != groupIndex || s.group.Epoch != epoch {
		return false, fmt.Errorf("group/epoch mismatch: have (%d,%d) want (%d,%d)", s.group.GroupIndex, s.group.Epoch, groupIndex, epoch)
	}
	if s.group.Status == status {
		return false, nil
	}
	if !s.group.Status.CanTransitionTo(status) {
		return false, fmt.Errorf("illegal dkg status transition %s -> %s", s.group.Status, status)
	}
	s.group.Status = status
	if status != core.DKGStatusCommitSuccess {
		s.group.Committers = nil
	}
	return true, nil
}

// SaveCommitters populates the committer set; only valid once Status ==
// CommitSuccess (spec.md §3 invariant: committer set non-empty iff
// CommitSuccess).
func (s *GroupInfoStore) SaveCommitters(groupIndex, epoch int, committers []common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group.GroupIndex != groupIndex || s.group.Epoch != epoch {
		return fmt.Errorf("group/epoch mismatch: have (%d,%d) want (%d,%d)", s.group.GroupIndex, s.group.Epoch, groupIndex, epoch)
	}
	if s.group.Status != core.DKGStatusCommitSuccess {
		return fmt.Errorf("cannot save committers in status %s", s.group.Status)
	}
	s.group.Committers = append([]common.Address(nil), committers...)
	return nil
}
