package bolt_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/database/storage/bolt"
	"github.com/blocksync/chain/foundation/blockchain/merkle"
	"github.com/blocksync/chain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const (
	signPavel    = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	accountMiner = "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76"
)

func makeRecord(t *testing.T, parent database.Block, nonce uint64, weight uint64) (database.Block, database.StoredBlock) {
	t.Helper()

	pk, err := crypto.HexToECDSA(signPavel)
	if err != nil {
		t.Fatalf("Should be able to parse the private key: %s", err)
	}

	tx, err := database.NewTx(1, nonce, database.AccountID(accountMiner), 10, 1, nil)
	if err != nil {
		t.Fatalf("Should be able to construct a transaction: %s", err)
	}
	signedTx, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("Should be able to sign the transaction: %s", err)
	}

	tree, err := merkle.NewTree([]database.BlockTx{database.NewBlockTx(signedTx)})
	if err != nil {
		t.Fatalf("Should be able to construct the merkle tree: %s", err)
	}

	timeStamp := uint64(time.Now().UTC().Unix())
	if parent.Header.Number > 0 {
		timeStamp = parent.Header.TimeStamp + 1
	}

	block := database.Block{
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

	return block, database.NewStoredBlock(block, weight, time.Now())
}

// =============================================================================

func Test_PersistAcrossReopen(t *testing.T) {
	t.Log("Given the need to survive a process restart with the chain intact.")

	dbPath := filepath.Join(t.TempDir(), "zblock", "blocks.db")

	engine, err := bolt.New(dbPath)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create the database file: %s", failed, err)
	}
	t.Logf("\t%s\tShould be able to create the database file.", success)

	b1, rec1 := makeRecord(t, database.Block{}, 1, 1)
	_, rec2 := makeRecord(t, b1, 2, 2)

	if err := engine.Extend(rec1); err != nil {
		t.Fatalf("\t%s\tShould be able to extend with block 1: %s", failed, err)
	}
	if err := engine.Extend(rec2); err != nil {
		t.Fatalf("\t%s\tShould be able to extend with block 2: %s", failed, err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("\t%s\tShould be able to close the database: %s", failed, err)
	}

	engine, err = bolt.New(dbPath)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to reopen the database: %s", failed, err)
	}
	defer engine.Close()
	t.Logf("\t%s\tShould be able to reopen the database.", success)

	tip, err := engine.Tip()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to read the tip: %s", failed, err)
	}
	if tip.Hash != rec2.Hash || tip.Number != 2 || tip.Weight != 2 {
		t.Logf("\t\tgot: hash %s number %d weight %d", tip.Hash, tip.Number, tip.Weight)
		t.Logf("\t\texp: hash %s number 2 weight 2", rec2.Hash)
		t.Fatalf("\t%s\tShould keep the tip across the reopen.", failed)
	}
	t.Logf("\t%s\tShould keep the tip across the reopen.", success)

	rec, err := engine.GetByNumber(1)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to read block 1 by height: %s", failed, err)
	}
	if rec.Hash != rec1.Hash {
		t.Fatalf("\t%s\tShould keep the height index across the reopen.", failed)
	}
	t.Logf("\t%s\tShould keep the height index across the reopen.", success)
}

func Test_SetTipRelinksBranch(t *testing.T) {
	t.Log("Given the need to adopt a stored side branch as canonical.")

	engine, err := bolt.New(filepath.Join(t.TempDir(), "blocks.db"))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create the database file: %s", failed, err)
	}
	defer engine.Close()

	b1, rec1 := makeRecord(t, database.Block{}, 1, 1)
	_, rec2a := makeRecord(t, b1, 2, 2)
	b2b, rec2b := makeRecord(t, b1, 3, 2)
	_, rec3b := makeRecord(t, b2b, 4, 3)

	if err := engine.Extend(rec1); err != nil {
		t.Fatalf("\t%s\tShould be able to extend with block 1: %s", failed, err)
	}
	if err := engine.Extend(rec2a); err != nil {
		t.Fatalf("\t%s\tShould be able to extend with block 2a: %s", failed, err)
	}
	if err := engine.Put(rec2b); err != nil {
		t.Fatalf("\t%s\tShould be able to store side block 2b: %s", failed, err)
	}
	if err := engine.Put(rec3b); err != nil {
		t.Fatalf("\t%s\tShould be able to store side block 3b: %s", failed, err)
	}

	if err := engine.SetTip(rec3b.Hash); err != nil {
		t.Fatalf("\t%s\tShould be able to move the tip to the branch: %s", failed, err)
	}
	t.Logf("\t%s\tShould be able to move the tip to the branch.", success)

	rec, err := engine.GetByNumber(2)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to read block 2 by height: %s", failed, err)
	}
	if rec.Hash != rec2b.Hash {
		t.Logf("\t\tgot: %s", rec.Hash)
		t.Logf("\t\texp: %s", rec2b.Hash)
		t.Fatalf("\t%s\tShould re-link the height index along the branch.", failed)
	}
	t.Logf("\t%s\tShould re-link the height index along the branch.", success)

	if err := engine.SetTip("0xmissing"); !errors.Is(err, database.ErrUnknownBlock) {
		t.Fatalf("\t%s\tShould refuse to move the tip to an unknown block: %v", failed, err)
	}
	t.Logf("\t%s\tShould refuse to move the tip to an unknown block.", success)
}

func Test_EmptyStoreTip(t *testing.T) {
	t.Log("Given the need to report an empty store as the zero tip.")

	engine, err := bolt.New(filepath.Join(t.TempDir(), "blocks.db"))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create the database file: %s", failed, err)
	}
	defer engine.Close()

	tip, err := engine.Tip()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to read the tip: %s", failed, err)
	}
	if tip.Hash != signature.ZeroHash || tip.Number != 0 {
		t.Logf("\t\tgot: hash %s number %d", tip.Hash, tip.Number)
		t.Logf("\t\texp: hash %s number 0", signature.ZeroHash)
		t.Fatalf("\t%s\tShould report the zero tip.", failed)
	}
	t.Logf("\t%s\tShould report the zero tip.", success)

	if _, err := engine.Get("0xmissing"); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("\t%s\tShould report a missing block as not found: %v", failed, err)
	}
	t.Logf("\t%s\tShould report a missing block as not found.", success)
}
