package state

import (
	"context"
	"errors"
	"time"

	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/signature"
	"github.com/blocksync/chain/foundation/blockchain/validate"
)

// Decision describes what acceptance did with a submitted block.
type Decision string

// Set of decisions the acceptance queue can reach.
const (
	DecisionExtended     Decision = "extended"
	DecisionAlreadyKnown Decision = "already-known"
	DecisionSideChain    Decision = "side-chain"
	DecisionReorganized  Decision = "reorganized"
)

// =============================================================================

// acceptRequest carries a block into the acceptance G along with the channel
// the decision is reported on.
type acceptRequest struct {
	block database.Block
	resp  chan acceptResponse
}

type acceptResponse struct {
	decision Decision
	err      error
}

// =============================================================================

// SubmitBlock hands the specified block to the acceptance G and waits for
// the decision. Every chain mutation in the system funnels through here.
//
// On success the decision reports whether the block extended the chain,
// was already known, was stored as a side chain block, or caused a
// reorganization. An orphan is reported with validate.ErrOrphan and is
// buffered internally, it will be applied automatically when its parent
// is accepted. Invalid blocks are reported with a *validate.Error naming
// the failed rule. A corrupted store is reported with
// database.ErrStoreCorrupted and is fatal to all further submissions.
func (s *State) SubmitBlock(ctx context.Context, block database.Block) (Decision, error) {
	req := acceptRequest{
		block: block,
		resp:  make(chan acceptResponse, 1),
	}

	select {
	case s.accept <- req:
	case <-s.acceptShut:
		return "", ErrShutdown
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case resp := <-req.resp:
		return resp.decision, resp.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ProcessProposedBlock takes a block received from a peer or an outside
// client, audits the advertised hash and runs the block through the
// acceptance queue. Mining is cancelled while the submission is processed
// since a new block changes what must be mined next.
func (s *State) ProcessProposedBlock(ctx context.Context, blockData database.BlockData) (Decision, error) {
	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]: numTrans[%d]",
		blockData.Header.PrevBlockHash, blockData.Hash, len(blockData.Trans))
	defer s.evHandler("state: ProcessProposedBlock: completed: newBlk[%s]", blockData.Hash)

	// Audit the advertised hash before anything else. A tampered or corrupt
	// block off the wire never reaches the acceptance queue.
	block, err := validate.CheckData(blockData)
	if err != nil {
		return "", err
	}

	// If the runMiningOperation function is being executed it needs to stop
	// immediately. The G executing runMiningOperation will not return from
	// the function until done is called. This allows the acceptance to
	// complete its state changes before a new mining operation takes place.
	if s.Worker != nil {
		done := s.Worker.SignalCancelMining()
		defer func() {
			s.evHandler("state: ProcessProposedBlock: signal runMiningOperation to terminate")
			done()
		}()
	}

	decision, err := s.SubmitBlock(ctx, block)
	if err != nil {
		return decision, err
	}

	// Share accepted blocks with the known peers. Side chain blocks are not
	// announced, the heavier chain already was.
	if decision == DecisionExtended || decision == DecisionReorganized {
		if s.Worker != nil {
			s.Worker.SignalShareBlock(blockData)
		}
	}

	return decision, nil
}

// =============================================================================

// acceptOperations is the single-writer G. Every tip decision, reorg and
// orphan application happens here so no two decisions ever race against
// the same tip value.
func (s *State) acceptOperations() {
	s.evHandler("state: acceptOperations: G started")
	defer s.evHandler("state: acceptOperations: G completed")

	for {
		select {
		case req := <-s.accept:
			decision, err := s.processBlock(req.block)
			req.resp <- acceptResponse{decision: decision, err: err}

			// A stored block may be the missing ancestor for buffered
			// orphans. Apply them in arrival order.
			if err == nil {
				s.applyOrphans(req.block.Hash())
			}

		case <-s.acceptShut:
			return
		}
	}
}

// processBlock makes the acceptance decision for one block. Runs only on
// the acceptance G.
func (s *State) processBlock(block database.Block) (Decision, error) {
	if s.db.Corrupted() {
		return "", database.ErrStoreCorrupted
	}

	blockHash := block.Hash()

	// Resubmission of a block we already hold is a no-op.
	if _, err := s.db.GetBlock(blockHash); err == nil {
		s.evHandler("state: processBlock: blk[%s] already known", blockHash)
		return DecisionAlreadyKnown, nil
	}

	// Resolve the parent. The first block links against the zero hash and
	// has no stored parent.
	var parent database.Block
	var parentWeight uint64
	if block.Header.Number > 1 {
		parentRec, err := s.db.GetBlock(block.Header.PrevBlockHash)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				s.bufferOrphan(block)
				return "", validate.ErrOrphan
			}
			return "", s.fault(err)
		}

		if parent, err = database.ToBlock(parentRec.BlockData); err != nil {
			return "", s.fault(err)
		}
		parentWeight = parentRec.Weight
	}

	// Run the ordered validation rules against the parent.
	if err := validate.Check(block, parent, s.consensus, time.Now(), s.vCfg); err != nil {
		return "", err
	}

	weight := parentWeight + s.consensus.Weight(block)
	receivedAt := time.Now()

	tip, err := s.db.Tip()
	if err != nil {
		return "", err
	}

	// The common case, the block extends the current tip.
	if block.Header.PrevBlockHash == tip.Hash {
		if err := s.db.ExtendChain(block, weight, receivedAt); err != nil {
			return "", err
		}
		s.applyBlockToAccounts(block)

		s.evHandler("state: processBlock: EXTENDED: blk[%d] hash[%s] weight[%d]", block.Header.Number, blockHash, weight)
		s.blockEvent(block)

		return DecisionExtended, nil
	}

	// The block starts or continues a competing branch. Store it either
	// way, it only becomes canonical if its chain outweighs the tip.
	if err := s.db.StoreSideChain(block, weight, receivedAt); err != nil {
		return "", err
	}

	// A strictly lighter branch can never win.
	if weight < tip.Weight {
		s.evHandler("state: processBlock: SIDE CHAIN: blk[%d] hash[%s] weight[%d] tip-weight[%d]",
			block.Header.Number, blockHash, weight, tip.Weight)
		return DecisionSideChain, nil
	}

	// Equal weight keeps the earlier received chain. The arrival times ride
	// on the stored records so the comparison holds across restarts.
	if weight == tip.Weight {
		tipRec, err := s.db.GetBlock(tip.Hash)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return "", s.fault(err)
		}
		if err != nil || tipRec.ReceivedAt <= receivedAt.UnixNano() {
			s.evHandler("state: processBlock: SIDE CHAIN: blk[%d] hash[%s] weight[%d] tip-weight[%d]",
				block.Header.Number, blockHash, weight, tip.Weight)
			return DecisionSideChain, nil
		}
	}

	return s.reorganize(block, blockHash, tip)
}

// reorganize moves the tip to the specified heavier branch. The fork point
// is found with a bounded iterative walk up the branch's ancestry.
func (s *State) reorganize(block database.Block, blockHash string, tip database.Tip) (Decision, error) {
	s.evHandler("state: reorganize: started: tip[%s] candidate[%s]", tip.Hash, blockHash)

	// Walk the new branch back to the block it forked from. Every ancestor
	// is in storage, the branch was built one connected block at a time.
	branch := []database.Block{block}
	current := block
	for {
		if current.Header.PrevBlockHash == signature.ZeroHash {
			break
		}

		// Once the walk drops below the depth bound without reaching the
		// canonical chain, the reorg is too deep to ever be allowed.
		if tip.Number > s.maxReorgDepth && current.Header.Number <= tip.Number-s.maxReorgDepth {
			return "", validate.NewError(validate.RuleReorgDepth,
				"reorganization deeper than %d blocks, tip %d, fork below %d",
				s.maxReorgDepth, tip.Number, current.Header.Number)
		}

		parentNumber := current.Header.Number - 1
		canonical, err := s.db.GetBlockByNumber(parentNumber)
		if err == nil && canonical.Hash == current.Header.PrevBlockHash {
			break
		}
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return "", s.fault(err)
		}

		parentRec, err := s.db.GetBlock(current.Header.PrevBlockHash)
		if err != nil {
			return "", s.fault(err)
		}
		parent, err := database.ToBlock(parentRec.BlockData)
		if err != nil {
			return "", s.fault(err)
		}

		branch = append(branch, parent)
		current = parent
	}

	forkNumber := current.Header.Number - 1
	if tip.Number-forkNumber > s.maxReorgDepth {
		return "", validate.NewError(validate.RuleReorgDepth,
			"reorganization deeper than %d blocks, tip %d, fork %d",
			s.maxReorgDepth, tip.Number, forkNumber)
	}

	// Atomically adopt the new branch as canonical. The account database is
	// rebuilt by replaying the new chain, balances are derived state and a
	// replay is the only safe source of truth after a reorg.
	if err := s.db.AdoptChain(blockHash); err != nil {
		return "", err
	}

	// Transactions now mined on the canonical chain leave the mempool.
	for _, b := range branch {
		for _, tx := range b.Trans.Values() {
			s.mempool.Delete(tx)
		}
	}

	s.evHandler("state: reorganize: REORGANIZED: old-tip[%s] new-tip[%s] depth[%d]", tip.Hash, blockHash, tip.Number-forkNumber)
	s.blockEvent(block)

	return DecisionReorganized, nil
}

// applyBlockToAccounts processes the block's transactions against the
// account database and removes them from the mempool.
func (s *State) applyBlockToAccounts(block database.Block) {
	for _, tx := range block.Trans.Values() {
		s.mempool.Delete(tx)

		if err := s.db.ApplyTransaction(block, tx); err != nil {
			s.evHandler("state: applyBlockToAccounts: WARNING: tx[%s]: %s", tx, err)
			continue
		}
	}

	s.db.ApplyMiningReward(block)
}

// fault latches the fatal store corrupted state.
func (s *State) fault(err error) error {
	s.evHandler("state: fault: STORE CORRUPTED: %s", err)
	return s.db.LatchCorrupted(err)
}

// =============================================================================
// Orphan handling

// orphanBuffer is a bounded FIFO of blocks whose parent is not yet known,
// keyed by the parent hash. When full, the oldest orphan is evicted. Owned
// by the acceptance G, no locking required.
type orphanBuffer struct {
	capacity int
	entries  []database.Block
	known    map[string]struct{}
}

func newOrphanBuffer(capacity int) *orphanBuffer {
	return &orphanBuffer{
		capacity: capacity,
		known:    make(map[string]struct{}),
	}
}

// add buffers the orphan, evicting the oldest entry when full.
func (ob *orphanBuffer) add(block database.Block) bool {
	hash := block.Hash()
	if _, exists := ob.known[hash]; exists {
		return false
	}

	if len(ob.entries) == ob.capacity {
		oldest := ob.entries[0]
		ob.entries = ob.entries[1:]
		delete(ob.known, oldest.Hash())
	}

	ob.entries = append(ob.entries, block)
	ob.known[hash] = struct{}{}

	return true
}

// take removes and returns the buffered blocks waiting on the specified
// parent, preserving arrival order.
func (ob *orphanBuffer) take(parentHash string) []database.Block {
	var taken []database.Block
	remaining := ob.entries[:0]

	for _, block := range ob.entries {
		if block.Header.PrevBlockHash == parentHash {
			taken = append(taken, block)
			delete(ob.known, block.Hash())
			continue
		}
		remaining = append(remaining, block)
	}
	ob.entries = remaining

	return taken
}

// bufferOrphan records a block that arrived before its parent. Runs only on
// the acceptance G.
func (s *State) bufferOrphan(block database.Block) {
	if s.orphans.add(block) {
		s.evHandler("state: bufferOrphan: blk[%d] hash[%s] waiting on parent[%s]",
			block.Header.Number, block.Hash(), block.Header.PrevBlockHash)
	}
}

// applyOrphans runs buffered descendants of the specified block through
// acceptance in arrival order. Applications can cascade, an applied orphan
// may itself be the missing parent of later orphans. Runs only on the
// acceptance G.
func (s *State) applyOrphans(parentHash string) {
	worklist := s.orphans.take(parentHash)

	for len(worklist) > 0 {
		block := worklist[0]
		worklist = worklist[1:]

		decision, err := s.processBlock(block)
		if err != nil {
			s.evHandler("state: applyOrphans: blk[%s] rejected: %s", block.Hash(), err)
			continue
		}

		s.evHandler("state: applyOrphans: blk[%d] hash[%s] applied: %s", block.Header.Number, block.Hash(), decision)
		worklist = append(worklist, s.orphans.take(block.Hash())...)
	}
}
