package state

import (
	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/genesis"
	"github.com/blocksync/chain/foundation/blockchain/peer"
)

// RetrieveHost returns a copy of the host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveConsensus returns the name of the consensus rule in use.
func (s *State) RetrieveConsensus() string {
	return s.consensusName
}

// RetrieveLatestBlock returns a copy of the current canonical head block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveTip returns the current chain tip marker.
func (s *State) RetrieveTip() (database.Tip, error) {
	return s.db.Tip()
}

// RetrieveMempool returns a copy of the mempool in the configured selection
// order.
func (s *State) RetrieveMempool() []database.BlockTx {
	return s.mempool.PickBest(-1)
}

// RetrieveAccounts returns a copy of the account database.
func (s *State) RetrieveAccounts() map[database.AccountID]database.Account {
	return s.db.CopyAccounts()
}

// RetrieveKnownPeers retrieves a copy of the known peer list without this
// node.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}
