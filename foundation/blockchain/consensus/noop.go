package consensus

import (
	"github.com/blocksync/chain/foundation/blockchain/database"
)

// noopRule implements the Rule interface with no consensus specific checks.
// Every block weighs the same. This exists for tests and development where
// mining real blocks would slow everything down.
type noopRule struct{}

// Verify accepts every block.
func (noopRule) Verify(block database.Block, parent database.Block) error {
	return nil
}

// Weight prices every block equally.
func (noopRule) Weight(block database.Block) uint64 {
	return 1
}
