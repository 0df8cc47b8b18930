// Package dkg drives kyber's Joint-Feldman distributed key generation
// protocol (github.com/drand/kyber/share/dkg, the same package the teacher
// wires into its gossip-network dkg.Board in core/dkg.go) against the
// on-chain Coordinator contract instead of a push-based network board.
//
// The teacher's dkgBoard pushes authenticated packets directly to every
// peer over the network and trusts per-packet signatures for authenticity.
// Our board publishes each packet as one Coordinator.Publish call and
// authenticity comes for free from the contract's msg.sender check, so
// packets travel unauthenticated (dkg.NewProtocol is run with skipVerify
// true) and this board's only job is translating kyber bundles to and from
// the Coordinator's getShares/getResponses/getJustifications arrays.
package dkg

import (
	"context"
	"fmt"

	kdkg "github.com/drand/kyber/share/dkg"

	"github.com/arpa-network/arpa-node/internal/lg"
	"github.com/arpa-network/arpa-node/internal/node/chainclient"
)

// ContractBoard is a kdkg.Board backed by one group's Coordinator contract.
// Push methods publish synchronously (the caller — the DKG runner's single
// goroutine — already serializes these calls, so no locking is needed
// here); poll, called by the DKG runner's phaser, feeds the Incoming
// channels by diffing each GetShares/GetResponses/GetJustifications array
// against what this node has already forwarded.
type ContractBoard struct {
	coordinator chainclient.CoordinatorClient
	selfIndex   int
	log         lg.Logger

	dealCh chan kdkg.DealBundle
	respCh chan kdkg.ResponseBundle
	justCh chan kdkg.JustificationBundle

	seenDeals    map[int]bool
	seenResps    map[int]bool
	seenJustifs  map[int]bool
}

// NewContractBoard returns a board bound to coordinator, sized for a group
// of n members. selfIndex is this node's own share index, skipped when
// diffing incoming arrays (a node never needs its own packet echoed back).
func NewContractBoard(coordinator chainclient.CoordinatorClient, selfIndex, n int, log lg.Logger) *ContractBoard {
	return &ContractBoard{
		coordinator: coordinator,
		selfIndex:   selfIndex,
		log:         log,
		dealCh:      make(chan kdkg.DealBundle, n),
		respCh:      make(chan kdkg.ResponseBundle, n),
		justCh:      make(chan kdkg.JustificationBundle, n),
		seenDeals:   make(map[int]bool, n),
		seenResps:   make(map[int]bool, n),
		seenJustifs: make(map[int]bool, n),
	}
}

func (b *ContractBoard) PushDeals(bundle *kdkg.DealBundle) {
	raw, err := encodeDealBundle(bundle)
	if err != nil {
		b.log.Errorw("board: encode deal bundle", "err", err)
		return
	}
	if _, err := b.coordinator.Publish(context.Background(), raw); err != nil {
		b.log.Errorw("board: publish deal bundle", "err", err)
	}
}

func (b *ContractBoard) PushResponses(bundle *kdkg.ResponseBundle) {
	raw, err := encodeResponseBundle(bundle)
	if err != nil {
		b.log.Errorw("board: encode response bundle", "err", err)
		return
	}
	if _, err := b.coordinator.Publish(context.Background(), raw); err != nil {
		b.log.Errorw("board: publish response bundle", "err", err)
	}
}

func (b *ContractBoard) PushJustifications(bundle *kdkg.JustificationBundle) {
	raw, err := encodeJustificationBundle(bundle)
	if err != nil {
		b.log.Errorw("board: encode justification bundle", "err", err)
		return
	}
	if _, err := b.coordinator.Publish(context.Background(), raw); err != nil {
		b.log.Errorw("board: publish justification bundle", "err", err)
	}
}

func (b *ContractBoard) IncomingDeal() <-chan kdkg.DealBundle               { return b.dealCh }
func (b *ContractBoard) IncomingResponse() <-chan kdkg.ResponseBundle       { return b.respCh }
func (b *ContractBoard) IncomingJustification() <-chan kdkg.JustificationBundle { return b.justCh }

// poll reads the coordinator's three published-packet arrays and forwards
// every entry this board has not already seen (indexed by array position,
// which the coordinator guarantees is the publishing member's share
// index). It is not run as its own loop: the DKG runner's phaser calls it
// at the start of each phase and after every jittered
// DKGWaitForPhaseIntervalMillis wait.
func (b *ContractBoard) poll(ctx context.Context) error {
	if err := b.pollDeals(ctx); err != nil {
		return fmt.Errorf("board: poll deals: %w", err)
	}
	if err := b.pollResponses(ctx); err != nil {
		return fmt.Errorf("board: poll responses: %w", err)
	}
	if err := b.pollJustifications(ctx); err != nil {
		return fmt.Errorf("board: poll justifications: %w", err)
	}
	return nil
}

func (b *ContractBoard) pollDeals(ctx context.Context) error {
	raw, err := b.coordinator.GetShares(ctx)
	if err != nil {
		return err
	}
	for i, entry := range raw {
		if i == b.selfIndex || len(entry) == 0 || b.seenDeals[i] {
			continue
		}
		bundle, err := decodeDealBundle(entry)
		if err != nil {
			b.log.Warnw("board: decode deal bundle", "index", i, "err", err)
			continue
		}
		b.seenDeals[i] = true
		b.dealCh <- bundle
	}
	return nil
}

func (b *ContractBoard) pollResponses(ctx context.Context) error {
	raw, err := b.coordinator.GetResponses(ctx)
	if err != nil {
		return err
	}
	for i, entry := range raw {
		if i == b.selfIndex || len(entry) == 0 || b.seenResps[i] {
			continue
		}
		bundle, err := decodeResponseBundle(entry)
		if err != nil {
			b.log.Warnw("board: decode response bundle", "index", i, "err", err)
			continue
		}
		b.seenResps[i] = true
		b.respCh <- bundle
	}
	return nil
}

func (b *ContractBoard) pollJustifications(ctx context.Context) error {
	raw, err := b.coordinator.GetJustifications(ctx)
	if err != nil {
		return err
	}
	for i, entry := range raw {
		if i == b.selfIndex || len(entry) == 0 || b.seenJustifs[i] {
			continue
		}
		bundle, err := decodeJustificationBundle(entry)
		if err != nil {
			b.log.Warnw("board: decode justification bundle", "index", i, "err", err)
			continue
		}
		b.seenJustifs[i] = true
		b.justCh <- bundle
	}
	return nil
}
