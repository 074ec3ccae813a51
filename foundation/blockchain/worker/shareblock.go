package worker

import (
	"github.com/blocksync/chain/foundation/blockchain/database"
)

// maxBlockShareRequests represents the max number of pending block
// announcements that can be outstanding before announcements are dropped.
// Peers that miss an announcement catch up on their next sync pass.
const maxBlockShareRequests = 10

// shareBlockOperations handles announcing accepted blocks.
func (w *Worker) shareBlockOperations() {
	w.evHandler("worker: shareBlockOperations: G started")
	defer w.evHandler("worker: shareBlockOperations: G completed")

	for {
		select {
		case blockData := <-w.blockSharing:
			if !w.isShutdown() {
				w.runShareBlockOperation(blockData)
			}
		case <-w.shut:
			w.evHandler("worker: shareBlockOperations: received shut signal")
			return
		}
	}
}

// runShareBlockOperation announces an accepted block to the known peers.
func (w *Worker) runShareBlockOperation(blockData database.BlockData) {
	w.evHandler("worker: runShareBlockOperation: started: blk[%s]", blockData.Hash)
	defer w.evHandler("worker: runShareBlockOperation: completed")

	if err := w.state.NetSendBlockToPeers(blockData); err != nil {
		w.evHandler("worker: runShareBlockOperation: WARNING: %s", err)
	}
}
