package commands

import (
	"fmt"

	"github.com/blocksync/chain/foundation/blockchain/database"
)

// Blocks prints the canonical chain from the genesis block to the tip.
func Blocks(args []string, db *database.Database) error {
	tip, err := db.Tip()
	if err != nil {
		return err
	}

	blocks, err := db.ChainSegment(1, tip.Number)
	if err != nil {
		return err
	}

	for _, block := range blocks {
		fmt.Printf("Number: %d  Hash: %s  Prev: %s  Trans: %d  Weight: %d\n",
			block.Header.Number, block.Hash, block.Header.PrevBlockHash, len(block.Trans), block.Weight)
	}

	return nil
}
