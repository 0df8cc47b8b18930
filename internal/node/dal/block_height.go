package dal

import "sync/atomic"

// BlockHeightStore tracks the most recently observed chain height, as
// published by the BlockListener and consumed by every listener/subscriber
// that gates on "has block height X been reached yet" without re-querying
// the chain itself.
type BlockHeightStore struct {
	height int64
}

func NewBlockHeightStore() *BlockHeightStore { return &BlockHeightStore{} }

func (s *BlockHeightStore) CurrentBlockHeight() int {
	return int(atomic.LoadInt64(&s.height))
}

func (s *BlockHeightStore) SetBlockHeight(height int) {
	atomic.StoreInt64(&s.height, int64(height))
}
