package validate_test

import (
	"errors"
	"testing"
	"time"

	"github.com/blocksync/chain/foundation/blockchain/consensus"
	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/merkle"
	"github.com/blocksync/chain/foundation/blockchain/validate"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	signPavel    = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	accountMiner = "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76"
)

func signTx(t *testing.T, nonce uint64) database.BlockTx {
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

func noopRule(t *testing.T) consensus.Rule {
	t.Helper()

	rule, err := consensus.Retrieve(consensus.RuleNoop)
	if err != nil {
		t.Fatalf("Should be able to retrieve the noop rule: %s", err)
	}

	return rule
}

// =============================================================================

func Test_Check(t *testing.T) {
	cfg := validate.Config{MaxTimestampSkew: 2 * time.Minute}
	now := time.Now()

	parent := makeBlock(t, database.Block{}, signTx(t, 1))

	type table struct {
		name   string
		mutate func(block *database.Block)
		rule   string
	}

	tt := []table{
		{
			name:   "valid",
			mutate: func(block *database.Block) {},
			rule:   "",
		},
		{
			name: "bad trans root",
			mutate: func(block *database.Block) {
				block.Header.TransRoot = "0xdeadbeef"
			},
			rule: validate.RuleStructural,
		},
		{
			name: "missing parent hash",
			mutate: func(block *database.Block) {
				block.Header.PrevBlockHash = ""
			},
			rule: validate.RuleStructural,
		},
		{
			name: "wrong parent hash",
			mutate: func(block *database.Block) {
				block.Header.PrevBlockHash = "0x0000000000000000000000000000000000000000000000000000000000000001"
			},
			rule: validate.RuleLinkage,
		},
		{
			name: "wrong height",
			mutate: func(block *database.Block) {
				block.Header.Number = 7
			},
			rule: validate.RuleHeight,
		},
		{
			name: "timestamp before parent",
			mutate: func(block *database.Block) {
				block.Header.TimeStamp = parent.Header.TimeStamp - 1
			},
			rule: validate.RuleTimestamp,
		},
		{
			name: "timestamp too far in the future",
			mutate: func(block *database.Block) {
				block.Header.TimeStamp = uint64(now.Add(time.Hour).Unix())
			},
			rule: validate.RuleTimestamp,
		},
	}

	t.Log("Given the need to run the ordered rule checks against a candidate block.")
	for testID, tst := range tt {
		t.Logf("\tTest %d:\tWhen handling a %s block.", testID, tst.name)
		{
			block := makeBlock(t, parent, signTx(t, 2))
			tst.mutate(&block)

			err := validate.Check(block, parent, noopRule(t), now, cfg)

			if tst.rule == "" {
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould pass validation: %s", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould pass validation.", success, testID)
				continue
			}

			ve := validate.GetError(err)
			if ve == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail with a validation error: %v", failed, testID, err)
			}
			if ve.Rule != tst.rule {
				t.Logf("\t\tTest %d:\tgot: %s", testID, ve.Rule)
				t.Logf("\t\tTest %d:\texp: %s", testID, tst.rule)
				t.Fatalf("\t%s\tTest %d:\tShould fail the right rule.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould fail the %s rule.", success, testID, tst.rule)
		}
	}
}

func Test_CheckFirstBlock(t *testing.T) {
	t.Log("Given the need to validate the first block against the zero parent.")

	block := makeBlock(t, database.Block{}, signTx(t, 1))
	cfg := validate.Config{MaxTimestampSkew: 2 * time.Minute}

	if err := validate.Check(block, database.Block{}, noopRule(t), time.Now(), cfg); err != nil {
		t.Fatalf("\t%s\tShould accept the first block: %s", failed, err)
	}
	t.Logf("\t%s\tShould accept the first block.", success)
}

func Test_CheckConsensusRule(t *testing.T) {
	t.Log("Given the need to run the configured consensus rule as the final check.")

	rule, err := consensus.Retrieve(consensus.RulePOW)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to retrieve the pow rule: %s", failed, err)
	}

	// An unmined block will not have a solved hash.
	block := makeBlock(t, database.Block{}, signTx(t, 1))
	block.Header.Difficulty = 16

	verr := validate.GetError(validate.Check(block, database.Block{}, rule, time.Now(), validate.Config{}))
	if verr == nil || verr.Rule != validate.RuleConsensus {
		t.Fatalf("\t%s\tShould fail the consensus rule for an unmined block: %v", failed, verr)
	}
	t.Logf("\t%s\tShould fail the consensus rule for an unmined block.", success)
}

func Test_CheckData(t *testing.T) {
	t.Log("Given the need to audit the advertised hash of a wire block.")

	block := makeBlock(t, database.Block{}, signTx(t, 1))
	blockData := database.NewBlockData(block)

	if _, err := validate.CheckData(blockData); err != nil {
		t.Fatalf("\t%s\tShould accept an honest wire block: %s", failed, err)
	}
	t.Logf("\t%s\tShould accept an honest wire block.", success)

	blockData.Hash = "0x0000000000000000000000000000000000000000000000000000000000000042"
	if _, err := validate.CheckData(blockData); !validate.IsError(err) {
		t.Fatalf("\t%s\tShould reject a tampered hash: %v", failed, err)
	}
	t.Logf("\t%s\tShould reject a tampered hash.", success)
}

func Test_CheckHeader(t *testing.T) {
	t.Log("Given the need to audit header sequences before requesting bodies.")

	b1 := makeBlock(t, database.Block{}, signTx(t, 1))
	b2 := makeBlock(t, b1, signTx(t, 2))

	if err := validate.CheckHeader(b2.Header, b1.Header); err != nil {
		t.Fatalf("\t%s\tShould accept a linked header: %s", failed, err)
	}
	t.Logf("\t%s\tShould accept a linked header.", success)

	broken := b2.Header
	broken.PrevBlockHash = "0x0000000000000000000000000000000000000000000000000000000000000001"
	ve := validate.GetError(validate.CheckHeader(broken, b1.Header))
	if ve == nil || ve.Rule != validate.RuleLinkage {
		t.Fatalf("\t%s\tShould reject an unlinked header: %v", failed, ve)
	}
	t.Logf("\t%s\tShould reject an unlinked header.", success)

	skipped := b2.Header
	skipped.Number = 5
	ve = validate.GetError(validate.CheckHeader(skipped, b1.Header))
	if ve == nil || ve.Rule != validate.RuleHeight {
		t.Fatalf("\t%s\tShould reject a height gap: %v", failed, ve)
	}
	t.Logf("\t%s\tShould reject a height gap.", success)
}

func Test_ErrOrphanIsNotValidationError(t *testing.T) {
	t.Log("Given the need to keep orphans distinct from invalid blocks.")

	if validate.IsError(validate.ErrOrphan) {
		t.Fatalf("\t%s\tShould not classify an orphan as invalid.", failed)
	}
	if !errors.Is(validate.ErrOrphan, validate.ErrOrphan) {
		t.Fatalf("\t%s\tShould match the orphan sentinel.", failed)
	}
	t.Logf("\t%s\tShould not classify an orphan as invalid.", success)
}
