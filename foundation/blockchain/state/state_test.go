package state_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blocksync/chain/foundation/blockchain/consensus"
	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/database/storage/memory"
	"github.com/blocksync/chain/foundation/blockchain/genesis"
	"github.com/blocksync/chain/foundation/blockchain/merkle"
	"github.com/blocksync/chain/foundation/blockchain/peer"
	"github.com/blocksync/chain/foundation/blockchain/state"
	"github.com/blocksync/chain/foundation/blockchain/validate"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	signPavel = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	signBill  = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"

	accountPavel = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"
	accountMiner = "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76"
)

// nopWorker satisfies the state.Worker interface for tests that never mine
// or talk to peers.
type nopWorker struct{}

func (nopWorker) Shutdown()                                     {}
func (nopWorker) Sync()                                         {}
func (nopWorker) SignalStartMining()                            {}
func (nopWorker) SignalCancelMining() (done func())             { return func() {} }
func (nopWorker) SignalShareTx(blockTx database.BlockTx)        {}
func (nopWorker) SignalShareBlock(blockData database.BlockData) {}

func newGenesis() genesis.Genesis {
	return genesis.Genesis{
		Date:          time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:       1,
		TransPerBlock: 10,
		Difficulty:    1,
		MiningReward:  100,
		Balances: map[string]uint64{
			accountPavel: 1000,
		},
	}
}

func newState(t *testing.T, cfgFn func(cfg *state.Config)) *state.State {
	t.Helper()

	engine, err := memory.New()
	if err != nil {
		t.Fatalf("Should be able to construct a memory engine: %s", err)
	}

	cfg := state.Config{
		BeneficiaryID:  database.AccountID(accountMiner),
		Host:           "localhost:9080",
		Genesis:        newGenesis(),
		Engine:         engine,
		SelectStrategy: "tip",
		ConsensusRule:  consensus.RuleNoop,
		KnownPeers:     peer.NewPeerSet(peer.Config{}),
	}
	if cfgFn != nil {
		cfgFn(&cfg)
	}

	st, err := state.New(cfg)
	if err != nil {
		t.Fatalf("Should be able to construct the state: %s", err)
	}
	st.Worker = nopWorker{}
	t.Cleanup(func() {
		st.Worker = nil
		st.Shutdown()
	})

	return st
}

func signTx(t *testing.T, hexKey string, nonce uint64, value uint64, tip uint64) database.BlockTx {
	t.Helper()

	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("Should be able to parse the private key: %s", err)
	}

	tx, err := database.NewTx(1, nonce, database.AccountID(accountMiner), value, tip, nil)
	if err != nil {
		t.Fatalf("Should be able to construct a transaction: %s", err)
	}

	signedTx, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("Should be able to sign the transaction: %s", err)
	}

	return database.NewBlockTx(signedTx)
}

func makeBlock(t *testing.T, parent database.Block, txs ...database.BlockTx) database.Block {
	t.Helper()

	tree, err := merkle.NewTree(txs)
	if err != nil {
		t.Fatalf("Should be able to construct the merkle tree: %s", err)
	}

	timeStamp := uint64(time.Now().UTC().Unix())
	if parent.Header.Number > 0 {
		timeStamp = parent.Header.TimeStamp + 1
	}

	return database.Block{
		Header: database.BlockHeader{
			Number:        parent.Header.Number + 1,
			PrevBlockHash: parent.Hash(),
			TimeStamp:     timeStamp,
			BeneficiaryID: database.AccountID(accountMiner),
			Difficulty:    1,
			TransRoot:     tree.RootHex(),
		},
		Trans: tree,
	}
}

func submit(t *testing.T, st *state.State, block database.Block) state.Decision {
	t.Helper()

	decision, err := st.SubmitBlock(context.Background(), block)
	if err != nil {
		t.Fatalf("Should be able to submit block %d: %s", block.Header.Number, err)
	}

	return decision
}

// =============================================================================

func Test_ExtendChain(t *testing.T) {
	t.Log("Given the need to extend the chain one connected block at a time.")

	st := newState(t, nil)

	b1 := makeBlock(t, database.Block{}, signTx(t, signPavel, 1, 100, 10))
	b2 := makeBlock(t, b1, signTx(t, signPavel, 2, 50, 5))

	if got := submit(t, st, b1); got != state.DecisionExtended {
		t.Fatalf("\t%s\tShould extend with the first block, got %s.", failed, got)
	}
	if got := submit(t, st, b2); got != state.DecisionExtended {
		t.Fatalf("\t%s\tShould extend with the second block, got %s.", failed, got)
	}
	t.Logf("\t%s\tShould extend with connected blocks.", success)

	if got := submit(t, st, b2); got != state.DecisionAlreadyKnown {
		t.Fatalf("\t%s\tShould treat a resubmission as already known, got %s.", failed, got)
	}
	t.Logf("\t%s\tShould treat a resubmission as already known.", success)

	tip, err := st.RetrieveTip()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to retrieve the tip: %s", failed, err)
	}
	if tip.Number != 2 || tip.Hash != b2.Hash() {
		t.Logf("\t\tgot: number %d hash %s", tip.Number, tip.Hash)
		t.Logf("\t\texp: number 2 hash %s", b2.Hash())
		t.Fatalf("\t%s\tShould see the second block at the tip.", failed)
	}
	t.Logf("\t%s\tShould see the second block at the tip.", success)

	// Accounts reflect the applied transactions, 100+10 and 50+5 out.
	account, err := st.QueryAccount(database.AccountID(accountPavel))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to query the sending account: %s", failed, err)
	}
	if account.Balance != 1000-100-10-50-5 {
		t.Logf("\t\tgot: %d", account.Balance)
		t.Logf("\t\texp: %d", 1000-100-10-50-5)
		t.Fatalf("\t%s\tShould apply both transactions to the account.", failed)
	}
	t.Logf("\t%s\tShould apply both transactions to the account.", success)
}

func Test_InvalidBlockRejected(t *testing.T) {
	t.Log("Given the need to reject a block that fails a validation rule.")

	st := newState(t, nil)

	b1 := makeBlock(t, database.Block{}, signTx(t, signPavel, 1, 100, 10))
	submit(t, st, b1)

	// Right parent, wrong height.
	bad := makeBlock(t, b1, signTx(t, signPavel, 2, 50, 5))
	bad.Header.Number = 9

	_, err := st.SubmitBlock(context.Background(), bad)
	ve := validate.GetError(err)
	if ve == nil {
		t.Fatalf("\t%s\tShould reject the invalid block with a validation error: %v", failed, err)
	}
	if ve.Rule != validate.RuleHeight {
		t.Logf("\t\tgot: %s", ve.Rule)
		t.Logf("\t\texp: %s", validate.RuleHeight)
		t.Fatalf("\t%s\tShould name the failed rule.", failed)
	}
	t.Logf("\t%s\tShould reject the invalid block naming the failed rule.", success)

	tip, err := st.RetrieveTip()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to retrieve the tip: %s", failed, err)
	}
	if tip.Number != 1 {
		t.Fatalf("\t%s\tShould keep the tip unchanged, got %d.", failed, tip.Number)
	}
	t.Logf("\t%s\tShould keep the tip unchanged.", success)
}

func Test_SideChainKeepsIncumbent(t *testing.T) {
	t.Log("Given two equal weight branches, the earlier received one keeps the tip.")

	type table struct {
		name  string
		first database.BlockTx
		other database.BlockTx
	}

	// The same scenario with the branch arrival order swapped. Whichever
	// branch arrives first must keep the tip.
	tt := []table{
		{name: "branch a first", first: signTx(t, signPavel, 2, 50, 5), other: signTx(t, signPavel, 2, 60, 6)},
		{name: "branch b first", first: signTx(t, signPavel, 2, 60, 6), other: signTx(t, signPavel, 2, 50, 5)},
	}

	for testID, tst := range tt {
		t.Logf("\tTest %d:\tWhen the %s.", testID, tst.name)
		{
			st := newState(t, nil)

			b1 := makeBlock(t, database.Block{}, signTx(t, signPavel, 1, 100, 10))
			submit(t, st, b1)

			incumbent := makeBlock(t, b1, tst.first)
			challenger := makeBlock(t, b1, tst.other)

			if got := submit(t, st, incumbent); got != state.DecisionExtended {
				t.Fatalf("\t%s\tTest %d:\tShould extend with the first branch, got %s.", failed, testID, got)
			}
			if got := submit(t, st, challenger); got != state.DecisionSideChain {
				t.Fatalf("\t%s\tTest %d:\tShould park the equal weight challenger, got %s.", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould park the equal weight challenger.", success, testID)

			tip, err := st.RetrieveTip()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to retrieve the tip: %s", failed, testID, err)
			}
			if tip.Hash != incumbent.Hash() {
				t.Logf("\t\tTest %d:\tgot: %s", testID, tip.Hash)
				t.Logf("\t\tTest %d:\texp: %s", testID, incumbent.Hash())
				t.Fatalf("\t%s\tTest %d:\tShould keep the incumbent at the tip.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the incumbent at the tip.", success, testID)
		}
	}
}

func Test_Reorganize(t *testing.T) {
	t.Log("Given the need to move the tip to a strictly heavier branch.")

	st := newState(t, nil)

	b1 := makeBlock(t, database.Block{}, signTx(t, signPavel, 1, 100, 10))
	b2a := makeBlock(t, b1, signTx(t, signPavel, 2, 50, 5))
	submit(t, st, b1)
	submit(t, st, b2a)

	// Competing branch off b1, one block heavier at its head.
	b2b := makeBlock(t, b1, signTx(t, signPavel, 2, 60, 6))
	b3b := makeBlock(t, b2b, signTx(t, signPavel, 3, 10, 1))

	if got := submit(t, st, b2b); got != state.DecisionSideChain {
		t.Fatalf("\t%s\tShould park the equal weight branch block, got %s.", failed, got)
	}
	if got := submit(t, st, b3b); got != state.DecisionReorganized {
		t.Fatalf("\t%s\tShould reorganize to the heavier branch, got %s.", failed, got)
	}
	t.Logf("\t%s\tShould reorganize to the heavier branch.", success)

	tip, err := st.RetrieveTip()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to retrieve the tip: %s", failed, err)
	}
	if tip.Hash != b3b.Hash() || tip.Number != 3 || tip.Weight != 3 {
		t.Logf("\t\tgot: hash %s number %d weight %d", tip.Hash, tip.Number, tip.Weight)
		t.Logf("\t\texp: hash %s number 3 weight 3", b3b.Hash())
		t.Fatalf("\t%s\tShould see the new branch head at the tip.", failed)
	}
	t.Logf("\t%s\tShould see the new branch head at the tip.", success)

	// The canonical height index follows the new branch.
	blocks, err := st.QueryBlocksByNumber(2, 2)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to query block 2: %s", failed, err)
	}
	if len(blocks) != 1 || blocks[0].Hash != b2b.Hash() {
		t.Fatalf("\t%s\tShould see the new branch at height 2.", failed)
	}
	t.Logf("\t%s\tShould see the new branch at height 2.", success)

	// Balances replay from the adopted branch, 100+10, 60+6 and 10+1 out.
	account, err := st.QueryAccount(database.AccountID(accountPavel))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to query the sending account: %s", failed, err)
	}
	if account.Balance != 1000-100-10-60-6-10-1 {
		t.Logf("\t\tgot: %d", account.Balance)
		t.Logf("\t\texp: %d", 1000-100-10-60-6-10-1)
		t.Fatalf("\t%s\tShould replay balances from the adopted branch.", failed)
	}
	t.Logf("\t%s\tShould replay balances from the adopted branch.", success)
}

func Test_OrphanBufferAndCascade(t *testing.T) {
	t.Log("Given blocks arriving before their ancestors.")

	st := newState(t, nil)

	b1 := makeBlock(t, database.Block{}, signTx(t, signPavel, 1, 100, 10))
	b2 := makeBlock(t, b1, signTx(t, signPavel, 2, 50, 5))
	b3 := makeBlock(t, b2, signTx(t, signPavel, 3, 20, 2))
	b4 := makeBlock(t, b3, signTx(t, signPavel, 4, 10, 1))

	submit(t, st, b1)

	if _, err := st.SubmitBlock(context.Background(), b3); !errors.Is(err, validate.ErrOrphan) {
		t.Fatalf("\t%s\tShould classify a block with an unknown parent as an orphan: %v", failed, err)
	}
	if _, err := st.SubmitBlock(context.Background(), b4); !errors.Is(err, validate.ErrOrphan) {
		t.Fatalf("\t%s\tShould classify the orphan's child as an orphan: %v", failed, err)
	}
	t.Logf("\t%s\tShould classify blocks with unknown parents as orphans.", success)

	// The tip must not move for buffered orphans.
	tip, err := st.RetrieveTip()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to retrieve the tip: %s", failed, err)
	}
	if tip.Number != 1 {
		t.Fatalf("\t%s\tShould keep the tip at block 1, got %d.", failed, tip.Number)
	}
	t.Logf("\t%s\tShould keep the tip at block 1.", success)

	// The missing ancestor arrives. The buffered orphans apply in a
	// cascade without being resubmitted.
	if got := submit(t, st, b2); got != state.DecisionExtended {
		t.Fatalf("\t%s\tShould extend with the missing ancestor, got %s.", failed, got)
	}

	tip, err = st.RetrieveTip()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to retrieve the tip: %s", failed, err)
	}
	if tip.Number != 4 || tip.Hash != b4.Hash() {
		t.Logf("\t\tgot: number %d hash %s", tip.Number, tip.Hash)
		t.Logf("\t\texp: number 4 hash %s", b4.Hash())
		t.Fatalf("\t%s\tShould apply the buffered orphans automatically.", failed)
	}
	t.Logf("\t%s\tShould apply the buffered orphans automatically.", success)
}

func Test_ReorgDepthBound(t *testing.T) {
	t.Log("Given a heavier branch forking deeper than the allowed depth.")

	st := newState(t, func(cfg *state.Config) {
		cfg.MaxReorgDepth = 2
	})

	b1 := makeBlock(t, database.Block{}, signTx(t, signPavel, 1, 10, 1))
	submit(t, st, b1)

	// Canonical chain through block 5.
	parent := b1
	for nonce := uint64(2); nonce <= 5; nonce++ {
		block := makeBlock(t, parent, signTx(t, signPavel, nonce, 10, 1))
		submit(t, st, block)
		parent = block
	}

	// Competing branch off block 1 that ends up strictly heavier.
	forkParent := b1
	var decisions []state.Decision
	var lastErr error
	for nonce := uint64(2); nonce <= 7; nonce++ {
		block := makeBlock(t, forkParent, signTx(t, signBill, nonce, 0, 0))
		block.Header.TimeStamp = forkParent.Header.TimeStamp + 2

		decision, err := st.SubmitBlock(context.Background(), block)
		if err != nil {
			lastErr = err
			break
		}
		decisions = append(decisions, decision)
		forkParent = block
	}

	if lastErr == nil {
		t.Fatalf("\t%s\tShould refuse the deep reorganization, got %v.", failed, decisions)
	}
	t.Logf("\t%s\tShould refuse the deep reorganization: %s", success, lastErr)

	tip, err := st.RetrieveTip()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to retrieve the tip: %s", failed, err)
	}
	if tip.Number != 5 {
		t.Fatalf("\t%s\tShould keep the canonical tip, got %d.", failed, tip.Number)
	}
	t.Logf("\t%s\tShould keep the canonical tip.", success)
}

func Test_ProcessProposedBlock(t *testing.T) {
	t.Log("Given the need to audit and accept blocks arriving off the wire.")

	st := newState(t, nil)

	b1 := makeBlock(t, database.Block{}, signTx(t, signPavel, 1, 100, 10))

	decision, err := st.ProcessProposedBlock(context.Background(), database.NewBlockData(b1))
	if err != nil {
		t.Fatalf("\t%s\tShould accept an honest wire block: %s", failed, err)
	}
	if decision != state.DecisionExtended {
		t.Fatalf("\t%s\tShould extend with the wire block, got %s.", failed, decision)
	}
	t.Logf("\t%s\tShould accept an honest wire block.", success)

	b2 := makeBlock(t, b1, signTx(t, signPavel, 2, 50, 5))
	tampered := database.NewBlockData(b2)
	tampered.Hash = "0x0000000000000000000000000000000000000000000000000000000000000042"

	if _, err := st.ProcessProposedBlock(context.Background(), tampered); err == nil {
		t.Fatalf("\t%s\tShould reject a tampered wire block.", failed)
	}
	t.Logf("\t%s\tShould reject a tampered wire block.", success)
}

func Test_WalletTransactions(t *testing.T) {
	t.Log("Given the need to accept wallet transactions into the mempool.")

	st := newState(t, nil)

	good := signTx(t, signPavel, 1, 100, 10)
	if err := st.UpsertWalletTransaction(good.SignedTx); err != nil {
		t.Fatalf("\t%s\tShould accept a funded transaction: %s", failed, err)
	}
	if got := st.QueryMempoolLength(); got != 1 {
		t.Fatalf("\t%s\tShould hold the transaction in the mempool, got %d.", failed, got)
	}
	t.Logf("\t%s\tShould accept a funded transaction.", success)

	// The pending transaction counts against the balance.
	tooMuch := signTx(t, signPavel, 2, 950, 0)
	if err := st.UpsertWalletTransaction(tooMuch.SignedTx); err == nil {
		t.Fatalf("\t%s\tShould reject a transaction the pending balance cannot cover.", failed)
	}
	t.Logf("\t%s\tShould reject a transaction the pending balance cannot cover.", success)

	zero := signTx(t, signPavel, 3, 0, 1)
	if err := st.UpsertWalletTransaction(zero.SignedTx); err == nil {
		t.Fatalf("\t%s\tShould reject a zero value transaction.", failed)
	}
	t.Logf("\t%s\tShould reject a zero value transaction.", success)

	broke := signTx(t, signBill, 1, 10, 0)
	if err := st.UpsertWalletTransaction(broke.SignedTx); err == nil {
		t.Fatalf("\t%s\tShould reject a transaction from an unfunded account.", failed)
	}
	t.Logf("\t%s\tShould reject a transaction from an unfunded account.", success)
}

// =============================================================================

// failGetEngine wraps the memory engine and fails reads on demand with an
// error the database cannot classify.
type failGetEngine struct {
	*memory.Memory
	fail bool
}

func (e *failGetEngine) Get(hash string) (database.StoredBlock, error) {
	if e.fail {
		return database.StoredBlock{}, errors.New("disk read failed")
	}
	return e.Memory.Get(hash)
}

func Test_FaultLatching(t *testing.T) {
	t.Log("Given a storage failure during acceptance, the node must latch faulted.")

	engine := &failGetEngine{}
	mem, err := memory.New()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a memory engine: %s", failed, err)
	}
	engine.Memory = mem

	st := newState(t, func(cfg *state.Config) {
		cfg.Engine = engine
	})

	b1 := makeBlock(t, database.Block{}, signTx(t, signPavel, 1, 100, 10))
	b2 := makeBlock(t, b1, signTx(t, signPavel, 2, 50, 5))
	submit(t, st, b1)

	engine.fail = true

	if _, err := st.SubmitBlock(context.Background(), b2); !errors.Is(err, database.ErrStoreCorrupted) {
		t.Logf("\t\tgot: %v", err)
		t.Logf("\t\texp: %v", database.ErrStoreCorrupted)
		t.Fatalf("\t%s\tShould report the store corrupted.", failed)
	}
	t.Logf("\t%s\tShould report the store corrupted.", success)

	if !st.Faulted() {
		t.Fatalf("\t%s\tShould latch the faulted state.", failed)
	}
	if st.IsMiningAllowed() {
		t.Fatalf("\t%s\tShould not allow mining while faulted.", failed)
	}
	t.Logf("\t%s\tShould latch the faulted state and stop mining.", success)

	// The fault is latched, recovery of the engine does not clear it.
	engine.fail = false
	if _, err := st.SubmitBlock(context.Background(), b2); !errors.Is(err, database.ErrStoreCorrupted) {
		t.Fatalf("\t%s\tShould keep refusing submissions: %v", failed, err)
	}
	t.Logf("\t%s\tShould keep refusing submissions.", success)

	if _, err := st.QueryAccount(database.AccountID(accountPavel)); !errors.Is(err, database.ErrStoreCorrupted) {
		t.Fatalf("\t%s\tShould report queries unavailable: %v", failed, err)
	}
	t.Logf("\t%s\tShould report queries unavailable.", success)
}

func Test_SubmitAfterShutdown(t *testing.T) {
	t.Log("Given the need to fail fast on submissions after shutdown.")

	engine, err := memory.New()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a memory engine: %s", failed, err)
	}

	st, err := state.New(state.Config{
		BeneficiaryID:  database.AccountID(accountMiner),
		Host:           "localhost:9080",
		Genesis:        newGenesis(),
		Engine:         engine,
		SelectStrategy: "tip",
		ConsensusRule:  consensus.RuleNoop,
		KnownPeers:     peer.NewPeerSet(peer.Config{}),
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %s", failed, err)
	}

	st.Shutdown()

	b1 := makeBlock(t, database.Block{}, signTx(t, signPavel, 1, 100, 10))
	if _, err := st.SubmitBlock(context.Background(), b1); !errors.Is(err, state.ErrShutdown) {
		t.Logf("\t\tgot: %v", err)
		t.Logf("\t\texp: %v", state.ErrShutdown)
		t.Fatalf("\t%s\tShould fail fast after shutdown.", failed)
	}
	t.Logf("\t%s\tShould fail fast after shutdown.", success)
}

func Test_OrphanBufferNegativeSize(t *testing.T) {
	t.Log("Given a negative orphan buffer size in the configuration.")

	// A negative size must fall back to the bounded default. An unbounded
	// buffer would apply every one of these orphans once the first block
	// arrives; the bounded buffer has long evicted the oldest, so the
	// cascade never starts and the tip stays at block 1.
	st := newState(t, func(cfg *state.Config) {
		cfg.OrphanBufferSize = -1
	})

	blocks := make([]database.Block, 0, 131)
	parent := database.Block{}
	for i := uint64(1); i <= 131; i++ {
		block := makeBlock(t, parent, signTx(t, signPavel, i, 0, 0))
		blocks = append(blocks, block)
		parent = block
	}

	for _, block := range blocks[1:] {
		if _, err := st.SubmitBlock(context.Background(), block); !errors.Is(err, validate.ErrOrphan) {
			t.Fatalf("\t%s\tShould classify block %d as an orphan: %v", failed, block.Header.Number, err)
		}
	}
	t.Logf("\t%s\tShould classify every parentless block as an orphan.", success)

	if got := submit(t, st, blocks[0]); got != state.DecisionExtended {
		t.Fatalf("\t%s\tShould extend with the first block, got %s.", failed, got)
	}

	tip, err := st.RetrieveTip()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to retrieve the tip: %s", failed, err)
	}
	if tip.Number != 1 {
		t.Logf("\t\tgot: %d", tip.Number)
		t.Logf("\t\texp: 1")
		t.Fatalf("\t%s\tShould have evicted the oldest orphans from the bounded buffer.", failed)
	}
	t.Logf("\t%s\tShould have evicted the oldest orphans from the bounded buffer.", success)
}
