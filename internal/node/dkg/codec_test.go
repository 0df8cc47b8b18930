package dkg

import (
	"testing"

	"github.com/drand/kyber"
	kdkg "github.com/drand/kyber/share/dkg"
	"github.com/stretchr/testify/require"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

func TestEncodeDecodeDealBundleRoundTrips(t *testing.T) {
	in := &kdkg.DealBundle{
		DealerIndex: 2,
		Deals: []kdkg.Deal{
			{ShareIndex: 0, Cipher: []byte("deal-for-0")},
			{ShareIndex: 1, Cipher: []byte("deal-for-1")},
		},
		SessionID: []byte("session"),
		Signature: []byte("sig"),
	}

	raw, err := encodeDealBundle(in)
	require.NoError(t, err)

	out, err := decodeDealBundle(raw)
	require.NoError(t, err)
	require.Equal(t, in.DealerIndex, out.DealerIndex)
	require.Equal(t, in.SessionID, out.SessionID)
	require.Equal(t, in.Signature, out.Signature)
	require.Equal(t, in.Deals, out.Deals)
}

func TestEncodeDecodeResponseBundleRoundTrips(t *testing.T) {
	in := &kdkg.ResponseBundle{
		ShareIndex: 1,
		Responses: []kdkg.Response{
			{DealerIndex: 0, Status: true},
			{DealerIndex: 2, Status: false},
		},
		SessionID: []byte("session"),
		Signature: []byte("sig"),
	}

	raw, err := encodeResponseBundle(in)
	require.NoError(t, err)

	out, err := decodeResponseBundle(raw)
	require.NoError(t, err)
	require.Equal(t, in.ShareIndex, out.ShareIndex)
	require.Equal(t, in.Responses, out.Responses)
}

func TestEncodeDecodeJustificationBundleRoundTrips(t *testing.T) {
	share := core.Suite.Scalar().Pick(core.Suite.RandomStream())

	in := &kdkg.JustificationBundle{
		DealerIndex: 0,
		Justifications: []kdkg.Justification{
			{ShareIndex: 1, Justification: kdkg.VerifiableJustification{Valid: true, Share: share}},
			{ShareIndex: 2, Justification: kdkg.VerifiableJustification{Valid: false}},
		},
		SessionID: []byte("session"),
		Signature: []byte("sig"),
	}

	raw, err := encodeJustificationBundle(in)
	require.NoError(t, err)

	out, err := decodeJustificationBundle(raw)
	require.NoError(t, err)
	require.Equal(t, in.DealerIndex, out.DealerIndex)
	require.Len(t, out.Justifications, 2)

	require.True(t, out.Justifications[0].Justification.Valid)
	require.True(t, out.Justifications[0].Justification.Share.Equal(share))

	require.False(t, out.Justifications[1].Justification.Valid)
	require.Nil(t, out.Justifications[1].Justification.Share)
}

func TestMarshalPointsProducesOneEntryPerPoint(t *testing.T) {
	g2 := core.Suite.G2()
	p1 := g2.Point().Mul(core.Suite.Scalar().Pick(core.Suite.RandomStream()), nil)
	p2 := g2.Point().Mul(core.Suite.Scalar().Pick(core.Suite.RandomStream()), nil)

	raw, err := marshalPoints([]kyber.Point{p1, p2})
	require.NoError(t, err)
	require.Len(t, raw, 2)

	p1Raw, err := marshalPoint(p1)
	require.NoError(t, err)
	require.Equal(t, p1Raw, raw[0])
}
