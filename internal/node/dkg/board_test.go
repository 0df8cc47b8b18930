package dkg

import (
	"context"
	"io"
	"testing"

	kdkg "github.com/drand/kyber/share/dkg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/arpa-network/arpa-node/internal/lg"
)

// fakeCoordinator is an in-memory CoordinatorClient: Publish appends the
// caller's raw bytes at the index the test has pre-assigned it (mirroring
// the real contract's one-slot-per-participant array), and the Get*
// accessors return whatever the test seeded.
type fakeCoordinator struct {
	callerIndex int
	shares      [][]byte
	responses   [][]byte
	justifs     [][]byte
	published   [][]byte
}

func (f *fakeCoordinator) Publish(ctx context.Context, value []byte) (common.Hash, error) {
	f.published = append(f.published, value)
	return common.Hash{}, nil
}
func (f *fakeCoordinator) GetShares(ctx context.Context) ([][]byte, error)        { return f.shares, nil }
func (f *fakeCoordinator) GetResponses(ctx context.Context) ([][]byte, error)     { return f.responses, nil }
func (f *fakeCoordinator) GetJustifications(ctx context.Context) ([][]byte, error) { return f.justifs, nil }
func (f *fakeCoordinator) GetParticipants(ctx context.Context) ([]common.Address, error) {
	return nil, nil
}
func (f *fakeCoordinator) GetDKGKeys(ctx context.Context) (int, [][]byte, error) { return 0, nil, nil }
func (f *fakeCoordinator) InPhase(ctx context.Context) (int, error)              { return 0, nil }

func testLogger() lg.Logger {
	return lg.New(zapcore.AddSync(io.Discard), lg.ErrorLevel, false)
}

func TestContractBoardPushDealsPublishesEncodedBundle(t *testing.T) {
	coord := &fakeCoordinator{}
	b := NewContractBoard(coord, 0, 3, testLogger())

	bundle := &kdkg.DealBundle{DealerIndex: 0, SessionID: []byte("s")}
	b.PushDeals(bundle)

	require.Len(t, coord.published, 1)
	decoded, err := decodeDealBundle(coord.published[0])
	require.NoError(t, err)
	require.Equal(t, bundle.DealerIndex, decoded.DealerIndex)
}

func TestContractBoardPollDealsSkipsSelfAndEmptyAndAlreadySeen(t *testing.T) {
	raw, err := encodeDealBundle(&kdkg.DealBundle{DealerIndex: 1, SessionID: []byte("s1")})
	require.NoError(t, err)

	coord := &fakeCoordinator{shares: [][]byte{
		nil, // index 0: this node's own slot, selfIndex below
		raw, // index 1: a peer's deal
		{},  // index 2: empty, not yet published
	}}
	b := NewContractBoard(coord, 0, 3, testLogger())

	require.NoError(t, b.pollDeals(context.Background()))

	select {
	case got := <-b.IncomingDeal():
		require.Equal(t, uint32(1), got.DealerIndex)
	default:
		t.Fatal("expected one deal forwarded")
	}

	// no second entry queued: index 0 is self, index 2 is empty.
	select {
	case got := <-b.IncomingDeal():
		t.Fatalf("unexpected extra deal forwarded: %+v", got)
	default:
	}

	// polling again must not re-forward the already-seen entry at index 1.
	require.NoError(t, b.pollDeals(context.Background()))
	select {
	case got := <-b.IncomingDeal():
		t.Fatalf("unexpected re-forwarded deal: %+v", got)
	default:
	}
}

func TestContractBoardPollResponsesAndJustifications(t *testing.T) {
	respRaw, err := encodeResponseBundle(&kdkg.ResponseBundle{ShareIndex: 2, SessionID: []byte("r")})
	require.NoError(t, err)
	justRaw, err := encodeJustificationBundle(&kdkg.JustificationBundle{DealerIndex: 2, SessionID: []byte("j")})
	require.NoError(t, err)

	coord := &fakeCoordinator{
		responses: [][]byte{nil, nil, respRaw},
		justifs:   [][]byte{nil, nil, justRaw},
	}
	b := NewContractBoard(coord, 0, 3, testLogger())

	require.NoError(t, b.pollResponses(context.Background()))
	select {
	case got := <-b.IncomingResponse():
		require.Equal(t, uint32(2), got.ShareIndex)
	default:
		t.Fatal("expected one response forwarded")
	}

	require.NoError(t, b.pollJustifications(context.Background()))
	select {
	case got := <-b.IncomingJustification():
		require.Equal(t, uint32(2), got.DealerIndex)
	default:
		t.Fatal("expected one justification forwarded")
	}
}
