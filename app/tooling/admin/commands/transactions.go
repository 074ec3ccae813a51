package commands

import (
	"fmt"

	"github.com/blocksync/chain/foundation/blockchain/database"
)

// Transactions prints every transaction on the canonical chain. An optional
// third argument restricts the output to a single sending account.
func Transactions(args []string, db *database.Database) error {
	var onlyAct string
	if len(args) == 3 {
		onlyAct = args[2]
	}

	tip, err := db.Tip()
	if err != nil {
		return err
	}

	blocks, err := db.ChainSegment(1, tip.Number)
	if err != nil {
		return err
	}

	for _, block := range blocks {
		for _, tx := range block.Trans {
			from, err := tx.FromAccount()
			if err != nil {
				return fmt.Errorf("block %d: recovering sender: %w", block.Header.Number, err)
			}
			if onlyAct != "" && onlyAct != string(from) {
				continue
			}
			fmt.Printf("Block: %d  From: %s  To: %s  Value: %d  Tip: %d  Nonce: %d\n",
				block.Header.Number, from, tx.ToID, tx.Value, tx.Tip, tx.Nonce)
		}
	}

	return nil
}
