// Package validate implements the ordered rule checks a candidate block
// must pass against its parent before the chain state machine will accept
// it. All checks are pure, the first failing rule short-circuits the rest
// and the failure names the rule for diagnosability.
package validate

import (
	"errors"
	"fmt"
	"time"

	"github.com/blocksync/chain/foundation/blockchain/consensus"
	"github.com/blocksync/chain/foundation/blockchain/database"
)

// Rule names reported on validation failure.
const (
	RuleStructural = "structural"
	RuleLinkage    = "linkage"
	RuleHeight     = "height"
	RuleTimestamp  = "timestamp"
	RuleConsensus  = "consensus"
	RuleReorgDepth = "reorg-depth"
)

// ErrOrphan classifies a block whose parent is not known locally. The block
// is not invalid, it may become valid once its ancestor arrives.
var ErrOrphan = errors.New("parent block not known")

// Error reports which rule a block failed and why. It is never fatal to the
// node, the block is simply rejected and the supplying peer scored down.
type Error struct {
	Rule   string
	Detail string
}

// NewError constructs a validation error for the specified rule.
func NewError(rule string, format string, args ...any) *Error {
	return &Error{
		Rule:   rule,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("invalid block: rule[%s]: %s", e.Rule, e.Detail)
}

// IsError checks if an error of type Error exists.
func IsError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

// GetError returns a copy of the Error pointer.
func GetError(err error) *Error {
	var ve *Error
	if !errors.As(err, &ve) {
		return nil
	}
	return ve
}

// =============================================================================

// Config holds the tunable bounds the checks run against.
type Config struct {
	MaxTimestampSkew time.Duration
}

// Check validates the candidate block against its parent. The parent must
// be the block the candidate's PrevBlockHash claims, resolving the parent
// (or classifying the block as an orphan) is the caller's job.
func Check(block database.Block, parent database.Block, rule consensus.Rule, now time.Time, cfg Config) error {

	// Structural: required fields present and the content hash honest.
	if err := checkStructural(block); err != nil {
		return err
	}

	// Linkage: the parent hash must reference the supplied parent.
	parentHash := parent.Hash()
	if block.Header.PrevBlockHash != parentHash {
		return NewError(RuleLinkage, "parent block hash doesn't match our known parent, got %s, exp %s",
			block.Header.PrevBlockHash, parentHash)
	}

	// Monotonicity: heights increase one at a time.
	nextNumber := parent.Header.Number + 1
	if block.Header.Number != nextNumber {
		return NewError(RuleHeight, "this block is not the next number, got %d, exp %d",
			block.Header.Number, nextNumber)
	}

	// Timestamp plausibility: never before the parent, never too far in
	// our future.
	if parent.Header.Number > 0 && block.Header.TimeStamp < parent.Header.TimeStamp {
		return NewError(RuleTimestamp, "block timestamp is before parent block, parent %d, block %d",
			parent.Header.TimeStamp, block.Header.TimeStamp)
	}
	if cfg.MaxTimestampSkew > 0 {
		limit := now.Add(cfg.MaxTimestampSkew)
		if blockTime := time.Unix(int64(block.Header.TimeStamp), 0); blockTime.After(limit) {
			return NewError(RuleTimestamp, "block timestamp too far in the future, block %s, limit %s",
				blockTime.UTC(), limit.UTC())
		}
	}

	// Consensus specific rule, pluggable.
	if err := rule.Verify(block, parent); err != nil {
		return NewError(RuleConsensus, "%s", err)
	}

	return nil
}

// CheckData converts a wire block into a database block, verifying the
// advertised content hash is the deterministic digest of the block's fields.
// This is the tamper/corruption check for blocks arriving off the network.
func CheckData(blockData database.BlockData) (database.Block, error) {
	block, err := database.ToBlock(blockData)
	if err != nil {
		return database.Block{}, NewError(RuleStructural, "%s", err)
	}

	if hash := block.Hash(); hash != blockData.Hash {
		return database.Block{}, NewError(RuleStructural, "advertised hash does not match content, got %s, exp %s",
			blockData.Hash, hash)
	}

	return block, nil
}

// CheckHeader runs the structural portion of the checks against a header
// only. The sync engine uses this to audit headers before spending
// bandwidth on block bodies.
func CheckHeader(header database.BlockHeader, prev database.BlockHeader) error {
	if header.TransRoot == "" {
		return NewError(RuleStructural, "missing transaction root")
	}

	if prev.Number > 0 {
		if header.Number != prev.Number+1 {
			return NewError(RuleHeight, "header is not the next number, got %d, exp %d", header.Number, prev.Number+1)
		}

		prevHash := database.Block{Header: prev}.Hash()
		if header.PrevBlockHash != prevHash {
			return NewError(RuleLinkage, "header parent hash doesn't link, got %s, exp %s", header.PrevBlockHash, prevHash)
		}
	}

	return nil
}

// =============================================================================

// checkStructural validates fields are present and the block's advertised
// merkle root matches the transactions it carries.
func checkStructural(block database.Block) error {
	if block.Header.Number == 0 {
		return NewError(RuleStructural, "block number zero is reserved")
	}

	if block.Header.PrevBlockHash == "" {
		return NewError(RuleStructural, "missing parent block hash")
	}

	if block.Trans == nil || len(block.Trans.Values()) == 0 {
		return NewError(RuleStructural, "block carries no transactions")
	}

	if block.Header.TransRoot != block.Trans.RootHex() {
		return NewError(RuleStructural, "merkle root does not match transactions, got %s, exp %s",
			block.Trans.RootHex(), block.Header.TransRoot)
	}

	return nil
}
