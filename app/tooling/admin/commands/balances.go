package commands

import (
	"fmt"

	"github.com/blocksync/chain/foundation/blockchain/database"
)

// Balances prints the account balances produced by replaying the chain. An
// optional third argument restricts the output to a single account.
func Balances(args []string, db *database.Database) error {
	var onlyAct string
	if len(args) == 3 {
		onlyAct = args[2]
	}

	tip, err := db.Tip()
	if err != nil {
		return err
	}
	fmt.Printf("Tip: %s  Number: %d  Weight: %d\n\n", tip.Hash, tip.Number, tip.Weight)

	for _, account := range db.Accounts() {
		if onlyAct != "" && onlyAct != string(account.AccountID) {
			continue
		}
		fmt.Printf("Account: %s  Balance: %d  Nonce: %d\n", account.AccountID, account.Balance, account.Nonce)
	}

	return nil
}
