package dkg

import (
	"context"
	"fmt"
	"time"

	"github.com/drand/kyber"
	kdkg "github.com/drand/kyber/share/dkg"
	"github.com/google/uuid"

	"github.com/arpa-network/arpa-node/internal/lg"
	"github.com/arpa-network/arpa-node/internal/node/chainclient"
	"github.com/arpa-network/arpa-node/internal/node/core"
)

// Output is a completed DKG run's result: the group's public polynomial
// (Commitments), this node's secret share, and the set of members the
// protocol could not certify (passed as the disqualified list of the
// controller's CommitDKG call by the in-grouping subscriber).
type Output struct {
	PublicKey    kyber.Point
	SecretShare  kyber.Scalar
	Commitments  []kyber.Point
	Disqualified []int // share indices the protocol's QUAL excluded
}

// Runner drives one DKG protocol run to completion against a group's
// Coordinator contract. Unlike the teacher's dkgInfo (driven by a
// wall-clock dkg.TimePhaser ticking on a fixed per-phase timeout), this
// runner's phaser advances once the Coordinator itself reports the next
// on-chain phase, or once its per-phase timeout runs out, so every member
// follows the chain rather than its own local clock whenever the chain
// advances in time.
type Runner struct {
	coordinator chainclient.CoordinatorClient
	board       *ContractBoard
	log         lg.Logger
	pollInterval time.Duration
	timeout      time.Duration
}

// NewRunner builds a Runner polling coordinator every pollInterval (the
// phaser applies core.Jitter to it) and waiting at most timeout per phase
// for the on-chain phase to advance. When that wait runs out the phaser
// logs it and moves the protocol on to its next phase; the run itself is
// bounded only by the ctx passed to Run, whose failure the caller maps to
// DKGStatusTimeout.
func NewRunner(coordinator chainclient.CoordinatorClient, selfIndex, groupSize int, pollInterval, timeout time.Duration, log lg.Logger) *Runner {
	return &Runner{
		coordinator:  coordinator,
		board:        NewContractBoard(coordinator, selfIndex, groupSize, log),
		log:          log,
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// Run builds the protocol config from members/threshold/longterm key and
// blocks until the protocol ends (with a result or an error) or ctx is
// done. A phase whose on-chain advance does not arrive within r.timeout
// does not end the run by itself.
//
// Packet authenticity in the teacher's gossip-network board comes from a
// per-packet signature checked against an Auth scheme (key.DKGAuthScheme);
// here every packet travels inside a Coordinator.Publish transaction,
// already authenticated by msg.sender on-chain, so Config.Auth is left
// unset and the protocol is run with skipVerify true.
func (r *Runner) Run(ctx context.Context, selfIndex int, longterm kyber.Scalar, members []kdkg.Node, threshold int) (*Output, error) {
	runID := uuid.NewString()
	runLog := r.log.With("dkg_run_id", runID)
	runLog.Infow("dkg: run started", "self_index", selfIndex, "members", len(members), "threshold", threshold)

	conf := &kdkg.Config{
		Suite:     core.Suite.(kdkg.Suite),
		NewNodes:  members,
		Longterm:  longterm,
		Threshold: threshold,
		FastSync:  true,
	}

	phaser := r.newContractPhaser(ctx, runLog)
	proto, err := kdkg.NewProtocol(conf, r.board, phaser, true)
	if err != nil {
		return nil, fmt.Errorf("dkg: new protocol: %w", err)
	}

	go phaser.Start()

	select {
	case res := <-proto.WaitEnd():
		if res.Error != nil {
			runLog.Warnw("dkg: run failed", "err", res.Error)
			return nil, fmt.Errorf("dkg: protocol failed: %w", res.Error)
		}
		var disqualified []int
		qualified := make(map[int]bool, len(res.Result.QUAL))
		for _, n := range res.Result.QUAL {
			qualified[int(n.Index)] = true
		}
		for _, m := range members {
			if !qualified[int(m.Index)] {
				disqualified = append(disqualified, int(m.Index))
			}
		}
		runLog.Infow("dkg: run succeeded", "disqualified", len(disqualified))
		return &Output{
			PublicKey:    res.Result.Key.Public(),
			SecretShare:  res.Result.Key.Share.V,
			Commitments:  res.Result.Key.Commits,
			Disqualified: disqualified,
		}, nil
	case <-ctx.Done():
		runLog.Warnw("dkg: run cancelled", "err", ctx.Err())
		return nil, ctx.Err()
	}
}

// newContractPhaser builds a dkg.TimePhaser whose per-phase "timeout" is
// not a fixed sleep (as the teacher's getPhaser uses) but a poll loop
// against the Coordinator's InPhase view, jittered at r.pollInterval and
// bounded by r.timeout. log is already tagged with this run's correlation
// id so every phase-transition line can be grepped back to one DKG run.
func (r *Runner) newContractPhaser(ctx context.Context, log lg.Logger) *kdkg.TimePhaser {
	startPhase := -1
	return kdkg.NewTimePhaserFunc(func(phase kdkg.Phase) {
		if err := r.board.poll(ctx); err != nil {
			log.Warnw("dkg: board poll failed", "phase", phase, "err", err)
		}
		deadline := time.Now().Add(r.timeout)
		for time.Now().Before(deadline) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(core.Jitter(r.pollInterval)):
			}
			if err := r.board.poll(ctx); err != nil {
				log.Warnw("dkg: board poll failed", "phase", phase, "err", err)
				continue
			}
			current, err := r.coordinator.InPhase(ctx)
			if err != nil {
				log.Warnw("dkg: coordinator in_phase failed", "phase", phase, "err", err)
				continue
			}
			if current > startPhase && current != int(phase) {
				startPhase = current
				return
			}
		}
		log.Warnw("dkg: phase timed out waiting for on-chain advance", "phase", phase)
	})
}
