package worker_test

import (
	"testing"
	"time"

	"github.com/blocksync/chain/foundation/blockchain/consensus"
	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/database/storage/memory"
	"github.com/blocksync/chain/foundation/blockchain/genesis"
	"github.com/blocksync/chain/foundation/blockchain/peer"
	"github.com/blocksync/chain/foundation/blockchain/state"
	"github.com/blocksync/chain/foundation/blockchain/worker"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/goleak"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const (
	signPavel    = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	accountPavel = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"
	accountMiner = "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76"
)

func newState(t *testing.T) *state.State {
	t.Helper()

	engine, err := memory.New()
	if err != nil {
		t.Fatalf("Should be able to construct a memory engine: %s", err)
	}

	st, err := state.New(state.Config{
		BeneficiaryID: database.AccountID(accountMiner),
		Host:          "localhost:9080",
		Genesis: genesis.Genesis{
			Date:          time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
			ChainID:       1,
			TransPerBlock: 10,
			Difficulty:    1,
			MiningReward:  100,
			Balances: map[string]uint64{
				accountPavel: 1000,
			},
		},
		Engine:         engine,
		SelectStrategy: "tip",
		ConsensusRule:  consensus.RuleNoop,
		KnownPeers:     peer.NewPeerSet(peer.Config{}),
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %s", err)
	}

	return st
}

func signTx(t *testing.T, nonce uint64, value uint64, tip uint64) database.SignedTx {
	t.Helper()

	pk, err := crypto.HexToECDSA(signPavel)
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

	return signedTx
}

// =============================================================================

func Test_RunShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Log("Given the need to start and cleanly stop the background workflows.")

	st := newState(t)
	worker.Run(st, func(v string, args ...any) {})

	if st.Worker == nil {
		t.Fatalf("\t%s\tShould register the worker with the state.", failed)
	}
	t.Logf("\t%s\tShould register the worker with the state.", success)

	if err := st.Shutdown(); err != nil {
		t.Fatalf("\t%s\tShould shut down cleanly: %s", failed, err)
	}
	t.Logf("\t%s\tShould shut down cleanly with no leaked goroutines.", success)
}

func Test_MineOnSubmit(t *testing.T) {
	t.Log("Given the need to mine accepted transactions into a block.")

	st := newState(t)
	worker.Run(st, func(v string, args ...any) {})
	defer st.Shutdown()

	if err := st.UpsertWalletTransaction(signTx(t, 1, 100, 10)); err != nil {
		t.Fatalf("\t%s\tShould accept the wallet transaction: %s", failed, err)
	}
	t.Logf("\t%s\tShould accept the wallet transaction.", success)

	// The upsert signals the miner. Wait for the block to land.
	deadline := time.Now().Add(10 * time.Second)
	for {
		tip, err := st.RetrieveTip()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to retrieve the tip: %s", failed, err)
		}
		if tip.Number == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("\t%s\tShould mine a block before the deadline.", failed)
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Logf("\t%s\tShould mine the transaction into block 1.", success)

	if got := st.QueryMempoolLength(); got != 0 {
		t.Fatalf("\t%s\tShould clear the mempool after mining, got %d.", failed, got)
	}
	t.Logf("\t%s\tShould clear the mempool after mining.", success)

	account, err := st.QueryAccount(database.AccountID(accountPavel))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to query the sending account: %s", failed, err)
	}
	if account.Balance != 1000-100-10 {
		t.Logf("\t\tgot: %d", account.Balance)
		t.Logf("\t\texp: %d", 1000-100-10)
		t.Fatalf("\t%s\tShould apply the mined transaction.", failed)
	}
	t.Logf("\t%s\tShould apply the mined transaction.", success)
}
