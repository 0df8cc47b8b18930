package dal

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

func TestNodeInfoStoreIdentitySeed(t *testing.T) {
	addr := common.HexToAddress("0x1")
	s := NewNodeInfoStore(addr, "127.0.0.1:8080")

	got, err := s.GetIDAddress()
	require.NoError(t, err)
	require.Equal(t, addr, got)

	endpoint, err := s.GetNodeRPCEndpoint()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8080", endpoint)
}

func TestNodeInfoStoreDKGKeyPairUnsetByDefault(t *testing.T) {
	s := NewNodeInfoStore(common.HexToAddress("0x1"), "")

	_, err := s.GetDKGPrivateKey()
	require.ErrorIs(t, err, core.ErrLackOfAccount)
	_, err = s.GetDKGPublicKey()
	require.ErrorIs(t, err, core.ErrLackOfAccount)
}

func TestNodeInfoStoreSetDKGKeyPair(t *testing.T) {
	s := NewNodeInfoStore(common.HexToAddress("0x1"), "")

	g2 := core.Suite.G2()
	priv := g2.Scalar().Pick(core.Suite.RandomStream())
	pub := g2.Point().Mul(priv, nil)

	require.NoError(t, s.SetDKGKeyPair(priv, pub))

	gotPriv, err := s.GetDKGPrivateKey()
	require.NoError(t, err)
	require.True(t, gotPriv.Equal(priv))

	gotPub, err := s.GetDKGPublicKey()
	require.NoError(t, err)
	require.True(t, gotPub.Equal(pub))
}

func TestNodeInfoStoreSetNodeRPCEndpoint(t *testing.T) {
	s := NewNodeInfoStore(common.HexToAddress("0x1"), "old:1")
	require.NoError(t, s.SetNodeRPCEndpoint("new:2"))

	endpoint, err := s.GetNodeRPCEndpoint()
	require.NoError(t, err)
	require.Equal(t, "new:2", endpoint)
}
