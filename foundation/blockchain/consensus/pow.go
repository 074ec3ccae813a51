package consensus

import (
	"fmt"

	"github.com/blocksync/chain/foundation/blockchain/database"
)

// powRule implements the Rule interface for proof of work. A block is valid
// when its hash solves the difficulty puzzle and the difficulty never drops
// below the parent's.
type powRule struct{}

// Verify checks the proof of work properties of the block.
func (powRule) Verify(block database.Block, parent database.Block) error {
	if parent.Header.Number > 0 && block.Header.Difficulty < parent.Header.Difficulty {
		return fmt.Errorf("block difficulty is less than parent block difficulty, parent %d, block %d",
			parent.Header.Difficulty, block.Header.Difficulty)
	}

	hash := block.Hash()
	if !database.IsHashSolved(block.Header.Difficulty, hash) {
		return fmt.Errorf("%s invalid block hash", hash)
	}

	return nil
}

// Weight prices the block by its difficulty. A chain of harder blocks
// outweighs a longer chain of easier ones.
func (powRule) Weight(block database.Block) uint64 {
	return uint64(block.Header.Difficulty)
}
