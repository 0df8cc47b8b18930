package dkg

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/drand/kyber"
	kdkg "github.com/drand/kyber/share/dkg"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

// Wire encodings for the three DKG packet bundles. No ABI or protobuf
// schema for these ships with this node (there is no Solidity source to
// generate one from, and the teacher's own wire format is protobuf
// generated from a .proto this repo doesn't carry), so bundles round-trip
// through encoding/gob plus kyber's own MarshalBinary/UnmarshalBinary for
// the points and scalars it nests. This is the one place in the DKG
// package that falls back to the standard library for serialization.

type wireDeal struct {
	DealerIndex uint32
	Deals       []wireDealEntry
	SessionID   []byte
	Signature   []byte
}

type wireDealEntry struct {
	ShareIndex uint32
	Deal       []byte
}

func encodeDealBundle(b *kdkg.DealBundle) ([]byte, error) {
	w := wireDeal{DealerIndex: b.DealerIndex, SessionID: b.SessionID, Signature: b.Signature}
	for _, d := range b.Deals {
		w.Deals = append(w.Deals, wireDealEntry{ShareIndex: d.ShareIndex, Deal: d.Cipher})
	}
	return gobEncode(w)
}

func decodeDealBundle(raw []byte) (kdkg.DealBundle, error) {
	var w wireDeal
	if err := gobDecode(raw, &w); err != nil {
		return kdkg.DealBundle{}, err
	}
	bundle := kdkg.DealBundle{DealerIndex: w.DealerIndex, SessionID: w.SessionID, Signature: w.Signature}
	for _, e := range w.Deals {
		bundle.Deals = append(bundle.Deals, kdkg.Deal{ShareIndex: e.ShareIndex, Cipher: e.Deal})
	}
	return bundle, nil
}

type wireResponse struct {
	ShareIndex uint32
	Responses  []wireResponseEntry
	SessionID  []byte
	Signature  []byte
}

type wireResponseEntry struct {
	DealerIndex uint32
	Status      bool
}

func encodeResponseBundle(b *kdkg.ResponseBundle) ([]byte, error) {
	w := wireResponse{ShareIndex: b.ShareIndex, SessionID: b.SessionID, Signature: b.Signature}
	for _, r := range b.Responses {
		w.Responses = append(w.Responses, wireResponseEntry{DealerIndex: r.DealerIndex, Status: r.Status})
	}
	return gobEncode(w)
}

func decodeResponseBundle(raw []byte) (kdkg.ResponseBundle, error) {
	var w wireResponse
	if err := gobDecode(raw, &w); err != nil {
		return kdkg.ResponseBundle{}, err
	}
	bundle := kdkg.ResponseBundle{ShareIndex: w.ShareIndex, SessionID: w.SessionID, Signature: w.Signature}
	for _, e := range w.Responses {
		bundle.Responses = append(bundle.Responses, kdkg.Response{DealerIndex: e.DealerIndex, Status: e.Status})
	}
	return bundle, nil
}

type wireJustification struct {
	DealerIndex    uint32
	Justifications []wireJustificationEntry
	SessionID      []byte
	Signature      []byte
}

type wireJustificationEntry struct {
	ShareIndex uint32
	Valid      bool
	Share      []byte // marshaled kyber.Scalar, present iff Valid
}

func encodeJustificationBundle(b *kdkg.JustificationBundle) ([]byte, error) {
	w := wireJustification{DealerIndex: b.DealerIndex, SessionID: b.SessionID, Signature: b.Signature}
	for _, j := range b.Justifications {
		entry := wireJustificationEntry{ShareIndex: j.ShareIndex, Valid: j.Justification.Valid}
		if j.Justification.Valid && j.Justification.Share != nil {
			raw, err := j.Justification.Share.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("marshal justification share: %w", err)
			}
			entry.Share = raw
		}
		w.Justifications = append(w.Justifications, entry)
	}
	return gobEncode(w)
}

func decodeJustificationBundle(raw []byte) (kdkg.JustificationBundle, error) {
	var w wireJustification
	if err := gobDecode(raw, &w); err != nil {
		return kdkg.JustificationBundle{}, err
	}
	bundle := kdkg.JustificationBundle{DealerIndex: w.DealerIndex, SessionID: w.SessionID, Signature: w.Signature}
	for _, e := range w.Justifications {
		j := kdkg.Justification{ShareIndex: e.ShareIndex, Justification: kdkg.VerifiableJustification{Valid: e.Valid}}
		if e.Valid && len(e.Share) > 0 {
			s := core.Suite.Scalar()
			if err := s.UnmarshalBinary(e.Share); err != nil {
				return kdkg.JustificationBundle{}, fmt.Errorf("unmarshal justification share: %w", err)
			}
			j.Justification.Share = s
		}
		bundle.Justifications = append(bundle.Justifications, j)
	}
	return bundle, nil
}

func gobEncode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func gobDecode(raw []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(v); err != nil {
		return fmt.Errorf("gob decode: %w", err)
	}
	return nil
}

// marshalPoint and marshalScalar are small helpers the runner uses when
// translating a completed DistKeyShare into the wire bytes CommitDKG sends
// on-chain.
func marshalPoint(p kyber.Point) ([]byte, error) { return p.MarshalBinary() }

func marshalPoints(pts []kyber.Point) ([][]byte, error) {
	out := make([][]byte, len(pts))
	for i, p := range pts {
		raw, err := marshalPoint(p)
		if err != nil {
			return nil, fmt.Errorf("marshal commitment %d: %w", i, err)
		}
		out[i] = raw
	}
	return out, nil
}
