package state

import (
	"fmt"

	"github.com/blocksync/chain/foundation/blockchain/database"
)

// UpsertWalletTransaction accepts a transaction from a wallet for inclusion.
func (s *State) UpsertWalletTransaction(signedTx database.SignedTx) error {
	if err := s.validateTransaction(signedTx); err != nil {
		return err
	}

	tx := database.NewBlockTx(signedTx)

	if _, err := s.mempool.Upsert(tx); err != nil {
		return err
	}

	s.Worker.SignalShareTx(tx)
	s.Worker.SignalStartMining()

	return nil
}

// UpsertNodeTransaction accepts a transaction from a node for inclusion.
func (s *State) UpsertNodeTransaction(tx database.BlockTx) error {
	if err := s.validateTransaction(tx.SignedTx); err != nil {
		return err
	}

	if _, err := s.mempool.Upsert(tx); err != nil {
		return err
	}

	s.Worker.SignalStartMining()

	return nil
}

// =============================================================================

// validateTransaction takes the signed transaction and validates it has a
// proper signature and that the sending account can cover it, counting the
// account's pending outgoing transactions already in the mempool.
func (s *State) validateTransaction(signedTx database.SignedTx) error {
	if err := signedTx.Validate(s.genesis.ChainID); err != nil {
		return err
	}

	if signedTx.Value == 0 {
		return fmt.Errorf("transaction value must be greater than zero")
	}

	fromID, err := signedTx.FromAccount()
	if err != nil {
		return err
	}

	account, err := s.db.Query(fromID)
	if err == nil && signedTx.Nonce <= account.Nonce {
		return fmt.Errorf("nonce too small, current %d, provided %d", account.Nonce, signedTx.Nonce)
	}

	// Funds must cover this transaction plus everything the account already
	// has pending. A transaction replacing a pending nonce only has to
	// cover the replacement.
	var pending uint64
	for _, tx := range s.mempool.PickBest(-1) {
		pendingFrom, err := tx.FromAccount()
		if err != nil || pendingFrom != fromID || tx.Nonce == signedTx.Nonce {
			continue
		}
		pending += tx.Value + tx.Tip
	}

	if account.Balance < signedTx.Value+signedTx.Tip+pending {
		return fmt.Errorf("insufficient funds, bal %d, needed %d, pending %d",
			account.Balance, signedTx.Value+signedTx.Tip, pending)
	}

	return nil
}
