package subscriber

import (
	"context"
	"errors"
	"math/big"

	"github.com/drand/kyber"
	"github.com/ethereum/go-ethereum/common"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

// fakeGroupFetcher is a hand-built dal.GroupInfoFetcher: tests construct
// the *core.Group directly (with real BLS public/secret material derived
// from a Shamir polynomial) rather than driving it through a full DKG run.
type fakeGroupFetcher struct {
	group *core.Group
}

func (f *fakeGroupFetcher) GetGroup() (*core.Group, error) { return f.group, nil }
func (f *fakeGroupFetcher) GetIndex() (int, error)         { return f.group.GroupIndex, nil }
func (f *fakeGroupFetcher) GetEpoch() (int, error)         { return f.group.Epoch, nil }
func (f *fakeGroupFetcher) GetThreshold() (int, error)     { return f.group.Threshold, nil }
func (f *fakeGroupFetcher) GetState() (bool, error) {
	return f.group.Status == core.DKGStatusCommitSuccess, nil
}
func (f *fakeGroupFetcher) GetSelfIndex() (int, error)            { return f.group.SelfIndex, nil }
func (f *fakeGroupFetcher) GetPublicKey() (kyber.Point, error)    { return f.group.PublicKey, nil }
func (f *fakeGroupFetcher) GetSecretShare() (kyber.Scalar, error) { return f.group.SecretShare, nil }
func (f *fakeGroupFetcher) GetMember(addr common.Address) (*core.Member, error) {
	m, ok := f.group.Members[addr]
	if !ok {
		return nil, core.ErrMemberNotExisted
	}
	return m, nil
}
func (f *fakeGroupFetcher) GetCommitters() ([]common.Address, error) { return f.group.Committers, nil }
func (f *fakeGroupFetcher) GetDKGStartBlockHeight() (int, error) {
	return f.group.DKGStartBlockHeight, nil
}
func (f *fakeGroupFetcher) GetDKGStatus() (core.DKGStatus, error) { return f.group.Status, nil }
func (f *fakeGroupFetcher) IsCommitter(addr common.Address) (bool, error) {
	return f.group.IsCommitter(addr), nil
}

// fakeControllerViewsForNodes resolves a fixed set of Node records by
// address, for the subscribers that look up a committer's RPC endpoint or
// long-term DKG public key.
type fakeControllerViewsForNodes struct {
	nodes map[common.Address]*core.Node
}

func (f *fakeControllerViewsForNodes) GetNode(ctx context.Context, addr common.Address) (*core.Node, error) {
	n, ok := f.nodes[addr]
	if !ok {
		return nil, errors.New("node not found")
	}
	return n, nil
}
func (f *fakeControllerViewsForNodes) GetGroup(ctx context.Context, groupIndex int) (*core.Group, error) {
	return nil, nil
}
func (f *fakeControllerViewsForNodes) GetCoordinator(ctx context.Context, groupIndex int) (common.Address, error) {
	return common.Address{}, nil
}

type fakeSender struct {
	sent []PartialSignatureRequest
	err  error
}

func (f *fakeSender) SendPartialSignature(ctx context.Context, to common.Address, endpoint string, req PartialSignatureRequest) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, req)
	return nil
}

type fakeAdapterTransactions struct {
	calls int
	err   error
}

func (f *fakeAdapterTransactions) FulfillRandomness(ctx context.Context, groupIndex int, task core.RandomnessTask, signature []byte, partials map[common.Address][]byte) (common.Hash, error) {
	f.calls++
	return common.Hash{}, f.err
}

// fakeAdapterViews defaults to reporting the task still pending, i.e. no
// other committer has fulfilled it; tests override pending to exercise the
// CommittedByOthers path.
type fakeAdapterViews struct {
	pending bool
	err     error
}

func (f *fakeAdapterViews) GetLastRandomness(ctx context.Context) (*big.Int, error) {
	return nil, nil
}

func (f *fakeAdapterViews) IsTaskPending(ctx context.Context, requestID []byte) (bool, error) {
	return f.pending, f.err
}
