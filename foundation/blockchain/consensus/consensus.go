// Package consensus provides the pluggable rule every candidate block must
// satisfy before it can join the chain. The rule also prices blocks so
// competing chains can be compared by cumulative weight.
package consensus

import (
	"fmt"

	"github.com/blocksync/chain/foundation/blockchain/database"
)

// Set of rule names the node can be configured with.
const (
	RulePOW  = "pow"
	RuleNoop = "noop"
)

// Rule represents the behavior required to be implemented by any consensus
// mechanism. Verify checks the consensus specific validity of a block
// against its parent. Weight prices the block's contribution to the
// cumulative chain weight.
type Rule interface {
	Verify(block database.Block, parent database.Block) error
	Weight(block database.Block) uint64
}

// rules holds the set of registered consensus rules.
var rules = map[string]Rule{
	RulePOW:  powRule{},
	RuleNoop: noopRule{},
}

// Retrieve returns the specified consensus rule.
func Retrieve(name string) (Rule, error) {
	rule, exists := rules[name]
	if !exists {
		return nil, fmt.Errorf("consensus rule %q does not exist", name)
	}

	return rule, nil
}
