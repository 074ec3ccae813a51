// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	valid "github.com/blocksync/chain/business/sys/validate"
	"github.com/blocksync/chain/business/web/errs"
	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/peer"
	"github.com/blocksync/chain/foundation/blockchain/state"
	"github.com/blocksync/chain/foundation/blockchain/validate"
	"github.com/blocksync/chain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// Status returns the current status of the node, its chain tip and the
// peers it knows about.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latestBlock := h.State.RetrieveLatestBlock()

	status := peer.Status{
		LatestBlockHash:   latestBlock.Hash(),
		LatestBlockNumber: latestBlock.Header.Number,
		KnownPeers:        h.State.RetrieveKnownPeers(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// HeadersByNumber returns the canonical block headers for the specified
// range so a syncing peer can audit linkage before pulling full blocks.
func (h Handlers) HeadersByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, to, err := blockRange(r)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	recs, err := h.State.QueryBlocksByNumber(from, to)
	if err != nil {
		return queryError(err)
	}

	headers := make([]database.BlockHeader, 0, len(recs))
	for _, rec := range recs {
		headers = append(headers, rec.Header)
	}

	return web.Respond(ctx, w, headers, http.StatusOK)
}

// BlocksByNumber returns the canonical blocks for the specified range.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, to, err := blockRange(r)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	recs, err := h.State.QueryBlocksByNumber(from, to)
	if err != nil {
		return queryError(err)
	}

	blocks := make([]database.BlockData, 0, len(recs))
	for _, rec := range recs {
		blocks = append(blocks, rec.BlockData)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// ProposeBlock takes a block announced by a peer and runs it through the
// acceptance queue.
func (h Handlers) ProposeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var blockData database.BlockData
	if err := web.Decode(r, &blockData); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	decision, err := h.State.ProcessProposedBlock(ctx, blockData)
	if err != nil {
		switch {
		case errors.Is(err, validate.ErrOrphan):
			return errs.NewTrusted(err, http.StatusAccepted)

		case validate.IsError(err):
			return errs.NewTrusted(err, http.StatusBadRequest)

		case errors.Is(err, database.ErrStoreCorrupted):
			return errs.NewTrusted(err, http.StatusServiceUnavailable)

		default:
			return err
		}
	}

	h.Log.Infow("propose block", "traceid", v.TraceID, "block", blockData.Hash, "decision", decision)

	resp := struct {
		Status string `json:"status"`
	}{
		Status: string(decision),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs := h.State.RetrieveMempool()
	return web.Respond(ctx, w, txs, http.StatusOK)
}

// SubmitNodeTransaction adds a new transaction shared by a peer to the
// mempool.
func (h Handlers) SubmitNodeTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req nodeTxRequest
	if err := web.Decode(r, &req); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}
	if err := valid.Check(req); err != nil {
		return fmt.Errorf("validating data: %w", err)
	}

	tx := req.toBlockTx()

	h.Log.Infow("add tran", "traceid", v.TraceID, "from:nonce", tx, "to", tx.ToID, "value", tx.Value, "tip", tx.Tip)
	if err := h.State.UpsertNodeTransaction(tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// AddPeer adds the calling node to the known peer list.
func (h Handlers) AddPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req addPeerRequest
	if err := web.Decode(r, &req); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}
	if err := valid.Check(req); err != nil {
		return fmt.Errorf("validating data: %w", err)
	}

	added := h.State.AddKnownPeer(peer.New(req.Host))

	resp := struct {
		Status string `json:"status"`
		Added  bool   `json:"added"`
	}{
		Status: "peer recorded",
		Added:  added,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

// blockRange parses the from/to route parameters, supporting the "latest"
// keyword.
func blockRange(r *http.Request) (uint64, uint64, error) {
	parse := func(value string) (uint64, error) {
		if value == "latest" {
			return database.QueryLatest, nil
		}
		return strconv.ParseUint(value, 10, 64)
	}

	from, err := parse(web.Param(r, "from"))
	if err != nil {
		return 0, 0, err
	}
	to, err := parse(web.Param(r, "to"))
	if err != nil {
		return 0, 0, err
	}

	return from, to, nil
}

// queryError maps a chain query failure to an API response code.
func queryError(err error) error {
	if errors.Is(err, database.ErrStoreCorrupted) {
		return errs.NewTrusted(err, http.StatusServiceUnavailable)
	}
	return errs.NewTrusted(err, http.StatusBadRequest)
}
