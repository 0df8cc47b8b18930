package core

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
)

// NodeError is the node's sentinel error hierarchy (spec.md §7): protocol
// violations and local data errors the committer RPC boundary needs to map
// onto a semantic status code, without coupling every internal caller to
// gRPC.
type NodeError struct {
	msg  string
	code codes.Code
}

func (e *NodeError) Error() string { return e.msg }

// Code returns the grpc status code this error should surface as at an RPC
// boundary.
func (e *NodeError) Code() codes.Code { return e.code }

func newNodeError(code codes.Code, format string, args ...interface{}) *NodeError {
	return &NodeError{msg: fmt.Sprintf(format, args...), code: code}
}

var (
	ErrGroupNotReady        = newNodeError(codes.NotFound, "group not ready")
	ErrNotCommitter         = newNodeError(codes.NotFound, "node is not a committer for the current group")
	ErrMemberNotExisted     = newNodeError(codes.NotFound, "member not found in group")
	ErrAddressFormatError   = newNodeError(codes.InvalidArgument, "malformed sender address")
	ErrInvalidTaskType      = newNodeError(codes.InvalidArgument, "invalid task type")
	ErrInvalidTaskMessage   = newNodeError(codes.InvalidArgument, "submitted message does not match cached task message")
)

// ErrInvalidChainID reports a committer RPC request for a chain id this
// node does not serve.
func ErrInvalidChainID(chainID uint64) *NodeError {
	return newNodeError(codes.InvalidArgument, "invalid chain id %d", chainID)
}

// BLSTaskError mirrors the BLS-task-specific error family: missing cache
// entries are local data errors, surfaced but never retried by the RPC
// caller itself (the listener pipeline will retry on its next tick).
type BLSTaskError struct{ *NodeError }

// ErrCommitterCacheNotExisted is returned by the committer RPC server when
// it refuses to create a cache entry it has not independently observed —
// the anti-oracle-amplification invariant from spec.md §4.6.
var ErrCommitterCacheNotExisted = &BLSTaskError{newNodeError(codes.InvalidArgument, "committer cache not existed for request id")}

// CodeOf extracts a grpc code from err if it is (or wraps) a *NodeError or
// *BLSTaskError, defaulting to codes.Internal otherwise.
func CodeOf(err error) codes.Code {
	switch e := err.(type) {
	case *NodeError:
		return e.code
	case *BLSTaskError:
		return e.code
	}
	var ne *NodeError
	if errors.As(err, &ne) {
		return ne.code
	}
	var be *BLSTaskError
	if errors.As(err, &be) {
		return be.code
	}
	return codes.Internal
}
