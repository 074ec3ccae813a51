package selector_test

import (
	"testing"

	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/mempool/selector"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func tx(nonce uint64, tip uint64) database.BlockTx {
	return database.BlockTx{
		SignedTx: database.SignedTx{
			Tx: database.Tx{
				ChainID: 1,
				Nonce:   nonce,
				ToID:    "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76",
				Tip:     tip,
			},
		},
	}
}

func TestRetrieve(t *testing.T) {
	t.Log("Given the need to retrieve select strategies by name.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen asking for known and unknown strategies.", testID)
		{
			for _, strategy := range []string{selector.StrategyTip, selector.StrategyTipAdvanced} {
				if _, err := selector.Retrieve(strategy); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to retrieve the %q strategy: %v", failed, testID, strategy, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould be able to retrieve the known strategies.", success, testID)

			if _, err := selector.Retrieve("unknown"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not be able to retrieve an unknown strategy.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not be able to retrieve an unknown strategy.", success, testID)
		}
	}
}

func TestStrategies(t *testing.T) {
	type table struct {
		name     string
		strategy string
		txs      map[database.AccountID][]database.BlockTx
		howMany  int
		expTips  []uint64
	}

	const (
		pavel = database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
		bill  = database.AccountID("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
	)

	tt := []table{
		{
			name:     "tip-respects-nonce",
			strategy: selector.StrategyTip,
			txs: map[database.AccountID][]database.BlockTx{
				pavel: {tx(2, 200), tx(1, 75)},
			},
			howMany: 1,
			expTips: []uint64{75},
		},
		{
			name:     "tip-best-of-row",
			strategy: selector.StrategyTip,
			txs: map[database.AccountID][]database.BlockTx{
				pavel: {tx(1, 75)},
				bill:  {tx(1, 150)},
			},
			howMany: 1,
			expTips: []uint64{150},
		},
		{
			name:     "advanced-unsticks-high-value",
			strategy: selector.StrategyTipAdvanced,
			txs: map[database.AccountID][]database.BlockTx{
				pavel: {tx(1, 10), tx(2, 1000)},
				bill:  {tx(1, 150), tx(2, 150)},
			},
			howMany: 2,
			expTips: []uint64{10, 1000},
		},
	}

	t.Log("Given the need to select the best transactions from a pool.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen running the %q scenario with the %q strategy.", testID, tst.name, tst.strategy)
			{
				f := func(t *testing.T) {
					selectFn, err := selector.Retrieve(tst.strategy)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to retrieve the strategy: %v", failed, testID, err)
					}

					got := selectFn(tst.txs, tst.howMany)
					if len(got) != len(tst.expTips) {
						t.Fatalf("\t%s\tTest %d:\tShould get the right number of transactions, got %d exp %d.", failed, testID, len(got), len(tst.expTips))
					}
					t.Logf("\t%s\tTest %d:\tShould get the right number of transactions.", success, testID)

					gotTips := make(map[uint64]int)
					for _, tx := range got {
						gotTips[tx.Tip]++
					}
					for _, tip := range tst.expTips {
						if gotTips[tip] == 0 {
							t.Fatalf("\t%s\tTest %d:\tShould select the transaction with tip %d.", failed, testID, tip)
						}
						gotTips[tip]--
					}
					t.Logf("\t%s\tTest %d:\tShould select the expected transactions.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}
