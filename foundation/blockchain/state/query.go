package state

import (
	"github.com/blocksync/chain/foundation/blockchain/database"
)

// QueryAccount returns a copy of the account from the database.
func (s *State) QueryAccount(accountID database.AccountID) (database.Account, error) {
	if s.Faulted() {
		return database.Account{}, database.ErrStoreCorrupted
	}

	return s.db.Query(accountID)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryBlocksByNumber returns the canonical blocks in the specified
// inclusive range. Use database.QueryLatest for either value to read
// through the current tip.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) ([]database.StoredBlock, error) {
	if s.Faulted() {
		return nil, database.ErrStoreCorrupted
	}

	if from == database.QueryLatest {
		tip, err := s.db.Tip()
		if err != nil {
			return nil, err
		}
		from = tip.Number
		to = tip.Number
	}

	return s.db.ChainSegment(from, to)
}

// QueryBlockByHash returns the stored block with the specified hash,
// canonical or not.
func (s *State) QueryBlockByHash(hash string) (database.StoredBlock, error) {
	if s.Faulted() {
		return database.StoredBlock{}, database.ErrStoreCorrupted
	}

	return s.db.GetBlock(hash)
}
