// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	valid "github.com/blocksync/chain/business/sys/validate"
	"github.com/blocksync/chain/business/web/errs"
	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/state"
	"github.com/blocksync/chain/foundation/blockchain/validate"
	"github.com/blocksync/chain/foundation/events"
	"github.com/blocksync/chain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	h.Log.Infow("events", "traceid", v.TraceID, "status", "websocket open", "path", r.URL.Path, "remoteaddr", r.RemoteAddr)
	defer h.Log.Infow("events", "traceid", v.TraceID, "status", "websocket closed", "path", r.URL.Path, "remoteaddr", r.RemoteAddr)

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information for the chain.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Tip returns the current chain tip.
func (h Handlers) Tip(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tip, err := h.State.RetrieveTip()
	if err != nil {
		return storeError(err)
	}

	return web.Respond(ctx, w, tip, http.StatusOK)
}

// Accounts returns the current balances for all accounts or one account.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountStr := web.Param(r, "account")

	var accounts map[database.AccountID]database.Account
	switch accountStr {
	case "":
		accounts = h.State.RetrieveAccounts()

	default:
		accountID, err := database.ToAccountID(accountStr)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}

		account, err := h.State.QueryAccount(accountID)
		if err != nil {
			if errors.Is(err, database.ErrStoreCorrupted) {
				return storeError(err)
			}
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		accounts = map[database.AccountID]database.Account{accountID: account}
	}

	resp := accountsResponse{
		LatestBlock: h.State.RetrieveLatestBlock().Hash(),
		Uncommitted: h.State.QueryMempoolLength(),
	}
	for accountID, account := range accounts {
		resp.Accounts = append(resp.Accounts, act{
			Account: accountID,
			Balance: account.Balance,
			Nonce:   account.Nonce,
		})
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlocksByNumber returns the canonical blocks for the specified range. Use
// the value "latest" to read through the current tip.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, err := blockNumber(web.Param(r, "from"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	to, err := blockNumber(web.Param(r, "to"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	recs, err := h.State.QueryBlocksByNumber(from, to)
	if err != nil {
		if errors.Is(err, database.ErrStoreCorrupted) {
			return storeError(err)
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	blocks := make([]database.BlockData, 0, len(recs))
	for _, rec := range recs {
		blocks = append(blocks, rec.BlockData)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs := h.State.RetrieveMempool()
	return web.Respond(ctx, w, txs, http.StatusOK)
}

// SubmitWalletTransaction adds a new signed transaction to the mempool.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req submitTxRequest
	if err := web.Decode(r, &req); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}
	if err := valid.Check(req); err != nil {
		return fmt.Errorf("validating data: %w", err)
	}

	signedTx := req.toSignedTx()

	h.Log.Infow("add tran", "traceid", v.TraceID, "sig:nonce", signedTx, "to", signedTx.ToID, "value", signedTx.Value, "tip", signedTx.Tip)
	if err := h.State.UpsertWalletTransaction(signedTx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitBlock accepts an externally authored block. The block runs through
// the same validation and acceptance path as blocks arriving from peers.
func (h Handlers) SubmitBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var blockData database.BlockData
	if err := web.Decode(r, &blockData); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	decision, err := h.State.ProcessProposedBlock(ctx, blockData)
	if err != nil {
		return acceptError(err)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: string(decision),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

// blockNumber parses a block range value, supporting the "latest" keyword.
func blockNumber(value string) (uint64, error) {
	if value == "latest" {
		return database.QueryLatest, nil
	}
	return strconv.ParseUint(value, 10, 64)
}

// storeError reports the node's storage is unusable.
func storeError(err error) error {
	return errs.NewTrusted(err, http.StatusServiceUnavailable)
}

// acceptError maps a block acceptance failure to an API response code.
func acceptError(err error) error {
	switch {
	case errors.Is(err, validate.ErrOrphan):
		return errs.NewTrusted(err, http.StatusAccepted)

	case validate.IsError(err):
		return errs.NewTrusted(err, http.StatusBadRequest)

	case errors.Is(err, database.ErrStoreCorrupted):
		return storeError(err)

	default:
		return err
	}
}
