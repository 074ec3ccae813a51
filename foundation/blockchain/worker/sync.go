package worker

import (
	"context"
	"errors"

	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/peer"
	"github.com/blocksync/chain/foundation/blockchain/validate"
)

// Bounds on a sync pass. The batch size caps how much a peer can make this
// node buffer per request and maxSyncTargets caps how many peers are tried
// before the pass gives up.
const (
	syncBatchSize  = 64
	maxSyncTargets = 3
)

// Sync updates the peer list, mempool and blocks for this node. Peers are
// tried best announced tip first, rotating to the next target when a peer
// stalls or serves bad data.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	for _, pr := range w.state.SelectSyncTargets(maxSyncTargets) {

		// Retrieve the status of this peer.
		peerStatus, err := w.state.NetRequestPeerStatus(pr)
		if err != nil {
			w.evHandler("worker: sync: requestPeerStatus: %s: ERROR: %s", pr.Host, err)
			w.state.MarkPeerUnreachable(pr)
			continue
		}
		w.state.MarkPeerContact(pr, peerStatus.LatestBlockNumber, peerStatus.LatestBlockHash)

		// Add new peers to this node's list.
		w.addNewPeers(peerStatus.KnownPeers)

		// Retrieve the mempool from the peer.
		pool, err := w.state.NetRequestPeerMempool(pr)
		if err != nil {
			w.evHandler("worker: sync: requestPeerMempool: %s: ERROR: %s", pr.Host, err)
		}
		for _, tx := range pool {
			if err := w.state.UpsertNodeTransaction(tx); err != nil {
				w.evHandler("worker: sync: requestPeerMempool: %s: WARNING: tx[%s]: %s", pr.Host, tx, err)
			}
		}

		// If this peer is not ahead of us, try the next target. Announced
		// tips can be stale, a lower ranked peer may still be ahead.
		localNumber := w.state.RetrieveLatestBlock().Header.Number
		if peerStatus.LatestBlockNumber <= localNumber {
			continue
		}

		w.evHandler("worker: sync: syncBlocks: %s: local[%d] peer[%d]", pr.Host, localNumber, peerStatus.LatestBlockNumber)

		if err := w.syncBlocks(pr, localNumber+1, peerStatus.LatestBlockNumber); err != nil {
			w.evHandler("worker: sync: syncBlocks: %s: ERROR: %s", pr.Host, err)
			continue
		}

		return
	}
}

// maxSyncBackup bounds how far syncBlocks will walk back looking for the
// block this node and the peer agree on.
const maxSyncBackup = 128

// errUnlinked reports the peer's headers do not link against this node's
// canonical chain at the requested starting point.
var errUnlinked = errors.New("headers do not link to the local chain")

// syncBlocks pulls the specified block range from the peer in bounded
// batches, headers first. When the peer's chain does not link at the
// starting point, this node's tip sits on a branch the peer abandoned, so
// the start is walked back until the chains agree and acceptance can see
// the fork.
func (w *Worker) syncBlocks(pr peer.Peer, from uint64, to uint64) error {
	for backup := 0; backup <= maxSyncBackup; backup++ {
		err := w.syncRange(pr, from, to)
		if errors.Is(err, errUnlinked) && from > 1 {
			w.evHandler("worker: syncBlocks: %s: headers unlink at [%d], backing up", pr.Host, from)
			from--
			continue
		}
		return err
	}

	w.state.MarkPeerInvalidBlock(pr)
	return errUnlinked
}

// syncRange pulls one block range from the peer. Header linkage is audited
// before block bodies are requested and every body runs through the
// acceptance queue.
func (w *Worker) syncRange(pr peer.Peer, from uint64, to uint64) error {

	// The linkage audit starts against our canonical block below the range.
	var prev database.BlockHeader
	if from > 1 {
		recs, err := w.state.QueryBlocksByNumber(from-1, from-1)
		if err != nil || len(recs) != 1 {
			return errUnlinked
		}
		prev = recs[0].Header
	}

	for start := from; start <= to; start += syncBatchSize {
		end := start + syncBatchSize - 1
		if end > to {
			end = to
		}

		// Audit the headers before spending bandwidth on the bodies.
		headers, err := w.state.NetRequestPeerHeaders(pr, start, end)
		if err != nil {
			w.state.MarkPeerUnreachable(pr)
			return err
		}

		for _, header := range headers {
			if err := validate.CheckHeader(header, prev); err != nil {
				if start == from && header.Number == from {
					return errUnlinked
				}

				w.state.MarkPeerInvalidBlock(pr)
				return err
			}
			prev = header
		}

		blocks, err := w.state.NetRequestPeerBlocks(pr, start, end)
		if err != nil {
			w.state.MarkPeerUnreachable(pr)
			return err
		}

		for _, blockData := range blocks {
			if err := w.processPeerBlock(pr, blockData); err != nil {
				return err
			}
		}
	}

	return nil
}

// processPeerBlock runs one peer sourced block through acceptance and maps
// the outcome to peer scoring.
func (w *Worker) processPeerBlock(pr peer.Peer, blockData database.BlockData) error {
	decision, err := w.state.ProcessProposedBlock(context.Background(), blockData)

	switch {
	case err == nil:
		w.evHandler("worker: processPeerBlock: %s: blk[%d] %s", pr.Host, blockData.Header.Number, decision)
		return nil

	// An orphan is buffered, not held against the peer.
	case errors.Is(err, validate.ErrOrphan):
		w.evHandler("worker: processPeerBlock: %s: blk[%d] orphaned", pr.Host, blockData.Header.Number)
		return nil

	case validate.IsError(err):
		w.state.MarkPeerInvalidBlock(pr)
		return err

	default:
		return err
	}
}

// addNewPeers takes the list of known peers and makes sure they are included
// in this node's list of known peers.
func (w *Worker) addNewPeers(knownPeers []peer.Peer) {
	w.evHandler("worker: addNewPeers: started")
	defer w.evHandler("worker: addNewPeers: completed")

	for _, pr := range knownPeers {

		// Don't add this running node to the known peer list.
		if pr.Match(w.state.RetrieveHost()) {
			continue
		}

		if w.state.AddKnownPeer(pr) {
			w.evHandler("worker: addNewPeers: adding peer-node %s", pr)
		}
	}
}
