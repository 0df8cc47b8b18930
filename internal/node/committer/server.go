package committer

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi"
	json "github.com/nikkolasg/hexjson"
	"google.golang.org/grpc/codes"

	"github.com/arpa-network/arpa-node/internal/lg"
	"github.com/arpa-network/arpa-node/internal/node/bls"
	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/dal"
)

// Server is the committer RPC server (C7): it accepts a peer's partial
// signature and gates it through the checks in spec.md §4.6 before
// admitting it into the local signature-result cache. Ported from the
// original node's BLSCommitterServiceServer::commit_partial_signature,
// re-expressed as a chi-routed HTTP handler instead of a tonic gRPC
// service — there is no committer.proto in this tree to generate a grpc
// stub from, so the wire boundary is JSON over HTTP, kept as close to the
// original request/response shape as the transport allows.
type Server struct {
	idAddress    common.Address
	chainID      uint64
	groupFetcher dal.GroupInfoFetcher
	cacheFetcher dal.SignatureResultCacheFetcher
	cacheUpdater dal.SignatureResultCacheUpdater
	blsCore      bls.Core
	log          lg.Logger

	listenAddr string
	mux        http.Handler
}

func NewServer(listenAddr string, idAddress common.Address, chainID uint64, groupFetcher dal.GroupInfoFetcher, cacheFetcher dal.SignatureResultCacheFetcher, cacheUpdater dal.SignatureResultCacheUpdater, blsCore bls.Core, log lg.Logger) *Server {
	if log == nil {
		log = lg.Default()
	}
	s := &Server{
		listenAddr:   listenAddr,
		idAddress:    idAddress,
		chainID:      chainID,
		groupFetcher: groupFetcher,
		cacheFetcher: cacheFetcher,
		cacheUpdater: cacheUpdater,
		blsCore:      blsCore,
		log:          log,
	}

	r := chi.NewRouter()
	r.Post(partialSignaturePath, s.handleCommitPartialSignature)
	s.mux = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Type satisfies scheduler.RPCServer.
func (s *Server) Type() core.RpcServerType { return core.RpcServerCommitter }

// Serve runs the committer HTTP server until ctx is cancelled, then shuts
// it down gracefully. Satisfies scheduler.RPCServer; the scheduler
// restarts it with a jittered backoff if ListenAndServe ever returns a
// non-shutdown error.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{Addr: s.listenAddr, Handler: s.mux}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) handleCommitPartialSignature(w http.ResponseWriter, r *http.Request) {
	var req wireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, http.StatusBadRequest, err)
		return
	}

	if err := s.commitPartialSignature(req); err != nil {
		s.reject(w, statusFor(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, wireResponse{OK: true})
}

// commitPartialSignature runs the full gating sequence: group readiness,
// committer membership, sender address format, sender's partial public
// key lookup, BLS partial verification, task type, chain id, cache
// existence, and message match — in that order, matching the original
// node's check ordering so failure codes surface identically.
func (s *Server) commitPartialSignature(req wireRequest) error {
	ready, err := s.groupFetcher.GetState()
	if err != nil || !ready {
		return core.ErrGroupNotReady
	}
	isCommitter, err := s.groupFetcher.IsCommitter(s.idAddress)
	if err != nil || !isCommitter {
		return core.ErrNotCommitter
	}

	senderAddr, err := parseAddress(req.IDAddress)
	if err != nil {
		return core.ErrAddressFormatError
	}

	member, err := s.groupFetcher.GetMember(senderAddr)
	if err != nil {
		return err
	}
	if member.PartialPublicKey == nil {
		return core.ErrGroupNotReady
	}

	if err := s.blsCore.PartialVerify(member.PartialPublicKey, req.Message, bls.PartialSignature{Index: req.PartialIndex, Signature: req.Partial}); err != nil {
		return err
	}

	if req.TaskType != core.CommitterTaskTypeRandomness {
		return core.ErrInvalidTaskType
	}
	if req.ChainID != s.chainID {
		return core.ErrInvalidChainID(req.ChainID)
	}

	entry, ok := s.cacheFetcher.Get(req.RequestID)
	if !ok {
		return core.ErrCommitterCacheNotExisted
	}
	if !bytes.Equal(req.Message, entry.Message) {
		return core.ErrInvalidTaskMessage
	}

	_, err = s.cacheUpdater.AddPartialSignature(req.RequestID, senderAddr, req.Partial)
	return err
}

func parseAddress(hex string) (common.Address, error) {
	if !common.IsHexAddress(hex) {
		return common.Address{}, errors.New("malformed address")
	}
	return common.HexToAddress(hex), nil
}

func statusFor(err error) int {
	switch core.CodeOf(err) {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) reject(w http.ResponseWriter, status int, err error) {
	s.log.Warnw("committer server: rejected partial signature", "err", err)
	s.writeJSON(w, status, wireResponse{OK: false, Message: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorw("committer server: write response", "err", err)
	}
}
