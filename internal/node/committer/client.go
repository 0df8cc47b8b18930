// Package committer implements the committer-to-committer RPC surface
// (C7): an HTTP/JSON client that dispatches a node's own partial
// signature to its peer committers, and a chi-routed server that accepts
// and gates incoming partials per spec.md §4.6. Grounded on the teacher's
// http package (chi routing, withCommonHeaders-style instrumentation) and
// on nikkolasg/hexjson for wire encoding of the []byte-heavy request, the
// same library the teacher reaches for whenever a JSON payload carries
// raw crypto material.
package committer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/nikkolasg/hexjson"

	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/subscriber"
)

const partialSignaturePath = "/committer/v1/partial-signature"

// shutdownGrace bounds how long Server.Serve waits for in-flight
// requests to finish once its context is cancelled.
const shutdownGrace = 5 * time.Second

// Client dispatches partial signatures to peer committers over HTTP,
// retrying every failed delivery (transport errors and peer rejections
// alike) per core.Config.TimeLimits.CommitPartialSigRetryDescriptor.
type Client struct {
	http       *http.Client
	descriptor core.ExponentialBackoffRetryDescriptor
}

func NewClient(httpClient *http.Client, descriptor core.ExponentialBackoffRetryDescriptor) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, descriptor: descriptor}
}

// wireRequest mirrors subscriber.PartialSignatureRequest; kept as its own
// type so the wire shape can evolve independently of the internal one.
type wireRequest struct {
	IDAddress    string                 `json:"id_address"`
	ChainID      uint64                 `json:"chain_id"`
	TaskType     core.CommitterTaskType `json:"task_type"`
	GroupIndex   int                    `json:"group_index"`
	RequestID    []byte                 `json:"request_id"`
	Message      []byte                 `json:"message"`
	PartialIndex int                    `json:"partial_index"`
	Partial      []byte                 `json:"partial"`
}

type wireResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// SendPartialSignature satisfies subscriber.PartialSignatureSender.
func (c *Client) SendPartialSignature(ctx context.Context, to common.Address, endpoint string, req subscriber.PartialSignatureRequest) error {
	body, err := json.Marshal(wireRequest{
		IDAddress:    req.IDAddress.Hex(),
		ChainID:      req.ChainID,
		TaskType:     req.TaskType,
		GroupIndex:   req.GroupIndex,
		RequestID:    req.RequestID,
		Message:      req.Message,
		PartialIndex: req.PartialIndex,
		Partial:      req.Partial,
	})
	if err != nil {
		return fmt.Errorf("committer client: marshal request: %w", err)
	}

	return c.descriptor.Retry(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+partialSignaturePath, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("committer client: build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return fmt.Errorf("committer client: %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		var wr wireResponse
		if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
			return fmt.Errorf("committer client: %s: decode response: %w", endpoint, err)
		}
		if resp.StatusCode != http.StatusOK || !wr.OK {
			return fmt.Errorf("committer client: %s: %s (status %d)", endpoint, wr.Message, resp.StatusCode)
		}
		return nil
	})
}
