package state

import (
	"github.com/blocksync/chain/foundation/blockchain/peer"
)

// AddKnownPeer provides the ability to add a new peer. Reports whether the
// peer was not already known.
func (s *State) AddKnownPeer(pr peer.Peer) bool {
	return s.knownPeers.Add(pr)
}

// RemoveKnownPeer removes a peer from the known peer list.
func (s *State) RemoveKnownPeer(pr peer.Peer) {
	s.knownPeers.Remove(pr)
}

// MarkPeerContact records a successful exchange with the peer along with
// the chain tip it announced.
func (s *State) MarkPeerContact(pr peer.Peer, tipNumber uint64, tipHash string) {
	s.knownPeers.MarkContact(pr, tipNumber, tipHash)
}

// MarkPeerUnreachable records a failed network operation against the peer.
// Reports whether the peer was evicted.
func (s *State) MarkPeerUnreachable(pr peer.Peer) bool {
	evicted := s.knownPeers.MarkUnreachable(pr)
	if evicted {
		s.evHandler("state: MarkPeerUnreachable: EVICTED: %s", pr)
	}
	return evicted
}

// MarkPeerInvalidBlock records that the peer supplied an invalid block.
// Reports whether the peer was evicted.
func (s *State) MarkPeerInvalidBlock(pr peer.Peer) bool {
	evicted := s.knownPeers.MarkInvalidBlock(pr)
	if evicted {
		s.evHandler("state: MarkPeerInvalidBlock: EVICTED: %s", pr)
	}
	return evicted
}

// SelectSyncTargets returns up to n peers to sync against, best announced
// tip first.
func (s *State) SelectSyncTargets(n int) []peer.Peer {
	return s.knownPeers.SelectSyncTargets(n)
}
