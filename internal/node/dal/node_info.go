// Package dal is the node's data-access layer (C2): node identity, group
// state, the BLS task queue and the signature-result cache, each an
// in-memory store behind a single sync.RWMutex with an optional
// persistence hook. The SQL/embedded-store specifics beyond that hook are
// an external collaborator per spec.md §1.
package dal

import (
	"sync"

	"github.com/drand/kyber"
	"github.com/ethereum/go-ethereum/common"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

// NodeInfoFetcher reads this node's own identity.
type NodeInfoFetcher interface {
	GetIDAddress() (common.Address, error)
	GetNodeRPCEndpoint() (string, error)
	GetDKGPrivateKey() (kyber.Scalar, error)
	GetDKGPublicKey() (kyber.Point, error)
}

// NodeInfoUpdater mutates this node's own identity.
type NodeInfoUpdater interface {
	SetNodeRPCEndpoint(endpoint string) error
	SetDKGKeyPair(priv kyber.Scalar, pub kyber.Point) error
}

// NodeInfoStore is the in-memory NodeInfoFetcher/Updater implementation.
type NodeInfoStore struct {
	mu          sync.RWMutex
	idAddress   common.Address
	rpcEndpoint string
	dkgPrivate  kyber.Scalar
	dkgPublic   kyber.Point
	persist     *NodeIdentityPersistence
}

// NewNodeInfoStore seeds a store with this node's chain identity.
func NewNodeInfoStore(idAddress common.Address, rpcEndpoint string) *NodeInfoStore {
	return &NodeInfoStore{idAddress: idAddress, rpcEndpoint: rpcEndpoint}
}

// AttachPersistence wires p into the store: any previously-saved keypair is
// loaded immediately, and every subsequent SetDKGKeyPair call is mirrored
// to it.
func (s *NodeInfoStore) AttachPersistence(p *NodeIdentityPersistence) error {
	priv, pub, ok, err := p.Load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.persist = p
	if ok {
		s.dkgPrivate = priv
		s.dkgPublic = pub
	}
	s.mu.Unlock()
	return nil
}

func (s *NodeInfoStore) GetIDAddress() (common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idAddress, nil
}

func (s *NodeInfoStore) GetNodeRPCEndpoint() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rpcEndpoint, nil
}

func (s *NodeInfoStore) GetDKGPrivateKey() (kyber.Scalar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dkgPrivate == nil {
		return nil, core.ErrLackOfAccount
	}
	return s.dkgPrivate, nil
}

func (s *NodeInfoStore) GetDKGPublicKey() (kyber.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dkgPublic == nil {
		return nil, core.ErrLackOfAccount
	}
	return s.dkgPublic, nil
}

func (s *NodeInfoStore) SetNodeRPCEndpoint(endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rpcEndpoint = endpoint
	return nil
}

func (s *NodeInfoStore) SetDKGKeyPair(priv kyber.Scalar, pub kyber.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dkgPrivate = priv
	s.dkgPublic = pub
	if s.persist != nil {
		return s.persist.Save(priv, pub)
	}
	return nil
}
