package dal

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arpa-network/arpa-node/internal/node/core"
)

// ResultCacheEntry is one signature-result cache entry (spec.md §3): the
// enforcement point of at-most-one on-chain commit per request from this
// node.
type ResultCacheEntry struct {
	Task               core.RandomnessTask
	Message            []byte
	Threshold          int
	Partials           map[common.Address][]byte
	State              core.BLSResultCacheState
	EnteredBlockHeight int
}

// PartialCount returns how many distinct members have contributed a
// partial signature so far.
func (e *ResultCacheEntry) PartialCount() int {
	return len(e.Partials)
}

// SignatureResultCacheFetcher reads signature-result cache entries.
type SignatureResultCacheFetcher interface {
	Contains(requestID []byte) bool
	Get(requestID []byte) (ResultCacheEntry, bool)
}

// SignatureResultCacheUpdater mutates signature-result cache entries.
type SignatureResultCacheUpdater interface {
	Add(task core.RandomnessTask, message []byte, threshold, currentBlockHeight int) bool
	AddPartialSignature(requestID []byte, from common.Address, partial []byte) (bool, error)
	ReadyToCommit(currentBlockHeight int) []ResultCacheEntry
	UpdateCommitResult(requestID []byte, state core.BLSResultCacheState) error
}

// ResultCache is the in-memory signature-result cache (C2 sub-component).
// A single RWMutex guards the whole map: the cache is small, short-lived
// (entries are retired after a retention window) and every operation is
// already a single critical section in the original design.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]*ResultCacheEntry
}

// NewResultCache returns an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{entries: map[string]*ResultCacheEntry{}}
}

func (c *ResultCache) Contains(requestID []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[string(requestID)]
	return ok
}

func (c *ResultCache) Get(requestID []byte) (ResultCacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[string(requestID)]
	if !ok {
		return ResultCacheEntry{}, false
	}
	return *e, true
}

// Add inserts a new entry for task.RequestID, returning true iff this call
// performed the insertion (false if an entry already existed).
func (c *ResultCache) Add(task core.RandomnessTask, message []byte, threshold, currentBlockHeight int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := string(task.RequestID)
	if _, ok := c.entries[key]; ok {
		return false
	}
	c.entries[key] = &ResultCacheEntry{
		Task:               task,
		Message:            message,
		Threshold:          threshold,
		Partials:           map[common.Address][]byte{},
		State:              core.NotCommitted,
		EnteredBlockHeight: currentBlockHeight,
	}
	return true
}

// AddPartialSignature records from's partial signature for requestID. It
// returns ErrCommitterCacheNotExisted if no entry exists, and rejects with
// (false, nil) if from already contributed.
// Cryptographic verification against the sender's partial public key is
// the caller's responsibility (spec.md §4.5) — the cache only dedups.
func (c *ResultCache) AddPartialSignature(requestID []byte, from common.Address, partial []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[string(requestID)]
	if !ok {
		return false, core.ErrCommitterCacheNotExisted
	}
	if _, already := e.Partials[from]; already {
		return false, nil
	}
	e.Partials[from] = partial
	return true, nil
}

// ReadyToCommit returns every entry whose state is NotCommitted and whose
// partial count has reached its threshold, ordered oldest-first, and
// atomically flips each returned entry to Committing so only one caller
// per process ever proceeds to fulfill_randomness for a given request.
func (c *ResultCache) ReadyToCommit(currentBlockHeight int) []ResultCacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ready []*ResultCacheEntry
	for _, e := range c.entries {
		if e.State == core.NotCommitted && e.PartialCount() >= e.Threshold {
			ready = append(ready, e)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].EnteredBlockHeight < ready[j].EnteredBlockHeight })

	out := make([]ResultCacheEntry, 0, len(ready))
	for _, e := range ready {
		e.State = core.Committing
		out = append(out, *e)
	}
	return out
}

// UpdateCommitResult records the outcome of a commit attempt: Committed
// (from Committing only), CommittedByOthers, or NotCommitted, which reverts
// a Committing entry so it can be claimed again. Terminal states
// (Committed, CommittedByOthers) are final: once reached the method is a
// no-op, preserving the "once terminal, immutable" invariant.
func (c *ResultCache) UpdateCommitResult(requestID []byte, state core.BLSResultCacheState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[string(requestID)]
	if !ok {
		return core.ErrCommitterCacheNotExisted
	}
	if e.State.IsTerminal() {
		return nil
	}
	switch state {
	case core.Committed:
		if e.State != core.Committing {
			return nil
		}
	case core.CommittedByOthers:
		// reachable from NotCommitted or Committing
	case core.NotCommitted:
		if e.State == core.Committing {
			e.State = core.NotCommitted
			return nil
		}
		return nil
	}
	e.State = state
	return nil
}

// Sweep removes every terminal entry that entered the cache more than
// retentionBlocks ago, relative to currentBlockHeight. Called by
// listener.RandomnessSignatureAggregationListener on every tick.
func (c *ResultCache) Sweep(currentBlockHeight, retentionBlocks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if e.State.IsTerminal() && currentBlockHeight-e.EnteredBlockHeight > retentionBlocks {
			delete(c.entries, id)
		}
	}
}
