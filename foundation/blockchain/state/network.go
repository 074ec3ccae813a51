package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/peer"
)

const baseURL = "http://%s/v1/node"

// netTimeout bounds every node to node network operation. A stalled peer is
// cancelled after this timeout rather than held indefinitely.
const netTimeout = 10 * time.Second

// =============================================================================

// NetRequestPeerStatus asks the specified peer for its current chain tip
// and known peer list.
func (s *State) NetRequestPeerStatus(pr peer.Peer) (peer.Status, error) {
	s.evHandler("state: NetRequestPeerStatus: started: %s", pr)
	defer s.evHandler("state: NetRequestPeerStatus: completed: %s", pr)

	url := fmt.Sprintf("%s/status", fmt.Sprintf(baseURL, pr.Host))

	var ps peer.Status
	if err := send(http.MethodGet, url, nil, &ps); err != nil {
		return peer.Status{}, err
	}

	s.evHandler("state: NetRequestPeerStatus: peer-node[%s]: latest-blknum[%d]: peer-list[%s]", pr, ps.LatestBlockNumber, ps.KnownPeers)

	return ps, nil
}

// NetRequestPeerMempool asks the peer for the transactions in their mempool.
func (s *State) NetRequestPeerMempool(pr peer.Peer) ([]database.BlockTx, error) {
	s.evHandler("state: NetRequestPeerMempool: started: %s", pr)
	defer s.evHandler("state: NetRequestPeerMempool: completed: %s", pr)

	url := fmt.Sprintf("%s/tx/list", fmt.Sprintf(baseURL, pr.Host))

	var pool []database.BlockTx
	if err := send(http.MethodGet, url, nil, &pool); err != nil {
		return nil, err
	}

	s.evHandler("state: NetRequestPeerMempool: len[%d]", len(pool))

	return pool, nil
}

// NetRequestPeerHeaders asks the peer for the block headers in the specified
// inclusive range. Headers are cheap to audit before block bodies are
// requested.
func (s *State) NetRequestPeerHeaders(pr peer.Peer, from uint64, to uint64) ([]database.BlockHeader, error) {
	s.evHandler("state: NetRequestPeerHeaders: started: %s: from[%d] to[%d]", pr, from, to)
	defer s.evHandler("state: NetRequestPeerHeaders: completed: %s", pr)

	url := fmt.Sprintf("%s/headers/list/%d/%d", fmt.Sprintf(baseURL, pr.Host), from, to)

	var headers []database.BlockHeader
	if err := send(http.MethodGet, url, nil, &headers); err != nil {
		return nil, err
	}

	s.evHandler("state: NetRequestPeerHeaders: found headers[%d]", len(headers))

	return headers, nil
}

// NetRequestPeerBlocks asks the peer for the full blocks in the specified
// inclusive range. The caller runs the blocks through acceptance.
func (s *State) NetRequestPeerBlocks(pr peer.Peer, from uint64, to uint64) ([]database.BlockData, error) {
	s.evHandler("state: NetRequestPeerBlocks: started: %s: from[%d] to[%d]", pr, from, to)
	defer s.evHandler("state: NetRequestPeerBlocks: completed: %s", pr)

	url := fmt.Sprintf("%s/block/list/%d/%d", fmt.Sprintf(baseURL, pr.Host), from, to)

	var blocks []database.BlockData
	if err := send(http.MethodGet, url, nil, &blocks); err != nil {
		return nil, err
	}

	s.evHandler("state: NetRequestPeerBlocks: found blocks[%d]", len(blocks))

	return blocks, nil
}

// NetRequestAddPeer lets the specified peer know this node is available to
// participate in the network.
func (s *State) NetRequestAddPeer(pr peer.Peer) error {
	s.evHandler("state: NetRequestAddPeer: started: %s", pr)
	defer s.evHandler("state: NetRequestAddPeer: completed: %s", pr)

	url := fmt.Sprintf("%s/peers", fmt.Sprintf(baseURL, pr.Host))

	return send(http.MethodPost, url, peer.New(s.host), nil)
}

// NetSendBlockToPeers takes a newly accepted block and announces it to the
// known peers.
func (s *State) NetSendBlockToPeers(blockData database.BlockData) error {
	s.evHandler("state: NetSendBlockToPeers: started")
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	var errCount int
	for _, pr := range s.RetrieveKnownPeers() {
		url := fmt.Sprintf("%s/block/propose", fmt.Sprintf(baseURL, pr.Host))

		if err := send(http.MethodPost, url, blockData, nil); err != nil {
			s.evHandler("state: NetSendBlockToPeers: WARNING: %s: %s", pr.Host, err)
			errCount++
			continue
		}

		s.evHandler("state: NetSendBlockToPeers: sent to peer[%s]", pr)
	}

	if errCount > 0 {
		return fmt.Errorf("failed to send block to %d peers", errCount)
	}

	return nil
}

// NetSendTxToPeers shares a new block transaction with the known peers.
func (s *State) NetSendTxToPeers(tx database.BlockTx) {
	s.evHandler("state: NetSendTxToPeers: started")
	defer s.evHandler("state: NetSendTxToPeers: completed")

	for _, pr := range s.RetrieveKnownPeers() {
		url := fmt.Sprintf("%s/tx/submit", fmt.Sprintf(baseURL, pr.Host))
		if err := send(http.MethodPost, url, tx, nil); err != nil {
			s.evHandler("state: NetSendTxToPeers: WARNING: %s: %s", pr.Host, err)
		}
	}
}

// =============================================================================

// send is a helper function to send an HTTP request to a node. Every request
// carries a deadline.
func send(method string, url string, dataSend any, dataRecv any) error {
	ctx, cancel := context.WithTimeout(context.Background(), netTimeout)
	defer cancel()

	var req *http.Request

	switch {
	case dataSend != nil:
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		req, err = http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
		if err != nil {
			return err
		}

	default:
		var err error
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return err
		}
	}

	var client http.Client
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return errors.New(string(msg))
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
