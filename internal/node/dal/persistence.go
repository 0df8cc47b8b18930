package dal

import (
	"encoding/binary"
	"fmt"

	"github.com/drand/kyber"
	bolt "go.etcd.io/bbolt"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

var (
	nodeIdentityBucket  = []byte("node_identity")
	dkgKeyPairRecordKey = []byte("dkg_keypair")
)

// NodeIdentityPersistence is the optional core.Config.DataPath-backed
// durability hook for this node's long-term DKG keypair: every other store
// in this package is purely in-memory (spec.md §1 leaves a full SQL/KV
// datastore to an external collaborator), but losing the DKG keypair on
// every restart would force a fresh on-chain registration, so it alone
// gets a small embedded-store hook.
type NodeIdentityPersistence struct {
	db *bolt.DB
}

// OpenNodeIdentityPersistence opens (creating if necessary) the bbolt file
// at path and ensures its bucket exists.
func OpenNodeIdentityPersistence(path string) (*NodeIdentityPersistence, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("node identity persistence: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(nodeIdentityBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("node identity persistence: init bucket: %w", err)
	}
	return &NodeIdentityPersistence{db: db}, nil
}

func (p *NodeIdentityPersistence) Close() error { return p.db.Close() }

// Save persists priv and pub as length-prefixed MarshalBinary encodings.
func (p *NodeIdentityPersistence) Save(priv kyber.Scalar, pub kyber.Point) error {
	privRaw, err := priv.MarshalBinary()
	if err != nil {
		return fmt.Errorf("node identity persistence: marshal private key: %w", err)
	}
	pubRaw, err := pub.MarshalBinary()
	if err != nil {
		return fmt.Errorf("node identity persistence: marshal public key: %w", err)
	}

	record := make([]byte, 0, 8+len(privRaw)+len(pubRaw))
	record = appendLengthPrefixed(record, privRaw)
	record = appendLengthPrefixed(record, pubRaw)

	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(nodeIdentityBucket).Put(dkgKeyPairRecordKey, record)
	})
}

// Load reconstructs the last-saved keypair against core.Suite's G2 group.
// ok is false if no keypair has ever been saved.
func (p *NodeIdentityPersistence) Load() (priv kyber.Scalar, pub kyber.Point, ok bool, err error) {
	var record []byte
	err = p.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(nodeIdentityBucket).Get(dkgKeyPairRecordKey)
		if v != nil {
			record = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || record == nil {
		return nil, nil, false, err
	}

	privRaw, rest, err := readLengthPrefixed(record)
	if err != nil {
		return nil, nil, false, fmt.Errorf("node identity persistence: corrupt record: %w", err)
	}
	pubRaw, _, err := readLengthPrefixed(rest)
	if err != nil {
		return nil, nil, false, fmt.Errorf("node identity persistence: corrupt record: %w", err)
	}

	g2 := core.Suite.G2()
	priv = g2.Scalar()
	if err := priv.UnmarshalBinary(privRaw); err != nil {
		return nil, nil, false, fmt.Errorf("node identity persistence: unmarshal private key: %w", err)
	}
	pub = g2.Point()
	if err := pub.UnmarshalBinary(pubRaw); err != nil {
		return nil, nil, false, fmt.Errorf("node identity persistence: unmarshal public key: %w", err)
	}
	return priv, pub, true, nil
}

func appendLengthPrefixed(buf, v []byte) []byte {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(v)))
	buf = append(buf, length[:]...)
	return append(buf, v...)
}

func readLengthPrefixed(buf []byte) (v, rest []byte, err error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("truncated length prefix")
	}
	n := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return nil, nil, fmt.Errorf("truncated record")
	}
	return buf[:n], buf[n:], nil
}
