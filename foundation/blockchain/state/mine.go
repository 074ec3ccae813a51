package state

import (
	"context"
	"errors"

	"github.com/blocksync/chain/foundation/blockchain/database"
)

// ErrNoTransactions is returned when a block is requested to be created
// and there are not enough transactions.
var ErrNoTransactions = errors.New("no transactions in mempool")

// =============================================================================

// MineNewBlock attempts to create a new block with a proper hash that can
// become the next block in the chain. The mined block is run through the
// same acceptance queue as blocks arriving from the network.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	// Are there enough transactions in the pool.
	if s.mempool.Count() == 0 {
		return database.Block{}, ErrNoTransactions
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW")

	// Pick the best transactions from the mempool.
	trans := s.mempool.PickBest(int(s.genesis.TransPerBlock))

	// Attempt to create a new block by solving the POW puzzle. This can be
	// cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		BeneficiaryID: s.beneficiaryID,
		Difficulty:    s.genesis.Difficulty,
		PrevBlock:     s.db.LatestBlock(),
		Trans:         trans,
		EvHandler:     s.evHandler,
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: submit block for acceptance")

	// The chain may have moved while we were mining. Acceptance decides if
	// the mined block still extends the tip, loses to a heavier chain, or
	// arrived too late.
	decision, err := s.SubmitBlock(ctx, block)
	if err != nil {
		return database.Block{}, err
	}
	if decision != DecisionExtended && decision != DecisionReorganized {
		return database.Block{}, errors.New("mined block no longer extends the chain")
	}

	return block, nil
}
