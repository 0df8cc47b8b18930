// Package bls wraps kyber's BLS primitives over the BLS12-381 pairing
// (kyber-bls12381) behind the narrow interface the rest of the pipeline
// needs: sign with a DKG share, verify a partial against its owner's
// partial public key, and recover/verify the group signature once
// threshold partials are in hand. Grounded on the non-threshold
// kyber/sign/bls usage in the teacher's crypto.Scheme (AuthScheme) and on
// kyber/share's Lagrange-interpolation recovery primitives.
package bls

import (
	"fmt"

	"github.com/drand/kyber"
	blssig "github.com/drand/kyber/sign/bls"
	"github.com/drand/kyber/share"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

// sigGroup is the group partial and group signatures live in. kyber's
// non-threshold bls.Sign/Verify fix public keys to G2 points and
// signatures to G1 points (messages hash into G1); every DKG and group
// public key in this package follows that same convention.
var sigGroup = core.Suite.G1()

// PartialSignature pairs a raw BLS signature with the DKG share index that
// produced it, mirroring the (index, point) pair the Joint-Feldman public
// polynomial evaluates to for that party.
type PartialSignature struct {
	Index     int
	Signature []byte
}

// Core is the contract every BLS operation in this node goes through.
// Keeping it as an interface (rather than calling kyber directly from
// callers) gives the committer RPC server and the DKG runner one mockable
// boundary in tests.
type Core interface {
	// PartialSign produces this node's partial signature over msg using
	// its DKG secret share.
	PartialSign(shareScalar kyber.Scalar, shareIndex int, msg []byte) (PartialSignature, error)
	// PartialVerify checks a partial signature against the signer's
	// partial public key.
	PartialVerify(partialPublicKey kyber.Point, msg []byte, partial PartialSignature) error
	// RecoverSignature combines threshold partial signatures over msg
	// into the group signature, then verifies it against groupPublicKey.
	RecoverSignature(partials []PartialSignature, msg []byte, groupPublicKey kyber.Point, threshold, size int) ([]byte, error)
}

// SimpleBLSCore is the production Core implementation.
type SimpleBLSCore struct{}

func (SimpleBLSCore) PartialSign(shareScalar kyber.Scalar, shareIndex int, msg []byte) (PartialSignature, error) {
	sig, err := blssig.Sign(core.Suite, shareScalar, msg)
	if err != nil {
		return PartialSignature{}, fmt.Errorf("bls partial sign: %w", err)
	}
	return PartialSignature{Index: shareIndex, Signature: sig}, nil
}

func (SimpleBLSCore) PartialVerify(partialPublicKey kyber.Point, msg []byte, partial PartialSignature) error {
	if err := blssig.Verify(core.Suite, partialPublicKey, msg, partial.Signature); err != nil {
		return fmt.Errorf("bls partial verify: %w", err)
	}
	return nil
}

func (SimpleBLSCore) RecoverSignature(partials []PartialSignature, msg []byte, groupPublicKey kyber.Point, threshold, size int) ([]byte, error) {
	if len(partials) < threshold {
		return nil, fmt.Errorf("bls recover: have %d partials, need %d", len(partials), threshold)
	}

	pubShares := make([]*share.PubShare, 0, threshold)
	for _, p := range partials[:threshold] {
		point := sigGroup.Point()
		if err := point.UnmarshalBinary(p.Signature); err != nil {
			return nil, fmt.Errorf("bls recover: unmarshal partial %d: %w", p.Index, err)
		}
		pubShares = append(pubShares, &share.PubShare{I: p.Index, V: point})
	}

	recovered, err := share.RecoverCommit(sigGroup, pubShares, threshold, size)
	if err != nil {
		return nil, fmt.Errorf("bls recover: %w", err)
	}
	sig, err := recovered.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("bls recover: marshal recovered signature: %w", err)
	}
	if err := blssig.Verify(core.Suite, groupPublicKey, msg, sig); err != nil {
		return nil, fmt.Errorf("bls recover: recovered signature failed verification: %w", err)
	}
	return sig, nil
}
