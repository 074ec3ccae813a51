// This program performs administrative tasks against a node's block store.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/blocksync/chain/app/tooling/admin/commands"
	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/database/storage/bolt"
	"github.com/blocksync/chain/foundation/blockchain/genesis"
	"github.com/blocksync/chain/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	genesis, err := genesis.Load("zblock/genesis.json")
	if err != nil {
		return fmt.Errorf("loading genesis: %w", err)
	}

	engine, err := bolt.New("zblock/blocks.db")
	if err != nil {
		return fmt.Errorf("opening block store: %w", err)
	}

	db, err := database.New(genesis, engine, func(v string, args ...any) {})
	if err != nil {
		return fmt.Errorf("replaying chain: %w", err)
	}
	defer db.Close()

	return processCommands(os.Args, db)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args []string, db *database.Database) error {
	if len(args) < 2 {
		return errors.New("expecting a command: bals, blocks, trans")
	}

	switch args[1] {
	case "bals":
		if err := commands.Balances(args, db); err != nil {
			return fmt.Errorf("getting balances: %w", err)
		}
	case "blocks":
		if err := commands.Blocks(args, db); err != nil {
			return fmt.Errorf("getting blocks: %w", err)
		}
	case "trans":
		if err := commands.Transactions(args, db); err != nil {
			return fmt.Errorf("getting transactions: %w", err)
		}
	}

	return nil
}
