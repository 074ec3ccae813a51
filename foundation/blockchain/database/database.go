// Package database handles all the lower level support for maintaining the
// blockchain in storage and maintaining an in-memory database of account
// information.
package database

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blocksync/chain/foundation/blockchain/genesis"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// Write failures are retried before the store is declared corrupted.
const (
	writeAttempts = 3
	writeBackoff  = 100 * time.Millisecond
)

// =============================================================================

// Engine represents the behavior required to be implemented by any package
// providing durable support for storing and reading the blockchain. Every
// mutating call must be atomic with respect to a process crash.
type Engine interface {
	Extend(rec StoredBlock) error
	Put(rec StoredBlock) error
	Get(hash string) (StoredBlock, error)
	GetByNumber(num uint64) (StoredBlock, error)
	Tip() (Tip, error)
	SetTip(hash string) error
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator represents the behavior required to be implemented by any package
// providing support to iterate over the canonical chain.
type Iterator interface {
	Next() (StoredBlock, error)
	Done() bool
}

// =============================================================================

// Database manages data related to blocks and accounts who have transacted
// on the blockchain.
type Database struct {
	mu sync.RWMutex

	genesis     genesis.Genesis
	latestBlock Block
	accounts    map[AccountID]Account
	corrupted   atomic.Bool

	engine Engine
}

// New constructs a new database value over the specified storage engine and
// replays the canonical chain to rebuild the account balances.
func New(gen genesis.Genesis, engine Engine, evHandler func(v string, args ...any)) (*Database, error) {
	db := Database{
		genesis:  gen,
		accounts: make(map[AccountID]Account),
		engine:   engine,
	}

	if err := db.resetAccounts(); err != nil {
		return nil, err
	}

	// Make sure the tip marker references a block we actually hold before
	// trusting anything else in the store.
	tip, err := engine.Tip()
	if err != nil {
		db.corrupted.Store(true)
		return nil, ErrStoreCorrupted
	}

	// Replay the canonical chain from storage to rebuild account balances.
	iter := engine.ForEach()
	for rec, err := iter.Next(); !iter.Done(); rec, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		block, err := ToBlock(rec.BlockData)
		if err != nil {
			return nil, err
		}

		evHandler("database: New: replay: blk[%d] hash[%s]", block.Header.Number, rec.Hash)

		for _, tx := range block.Trans.Values() {
			db.applyTransaction(block, tx)
		}
		db.applyMiningReward(block)

		db.latestBlock = block
	}

	// The replayed head must agree with the stored tip marker.
	if db.latestBlock.Hash() != tip.Hash {
		db.corrupted.Store(true)
		return nil, ErrStoreCorrupted
	}

	return &db, nil
}

// Close closes the underlying storage engine.
func (db *Database) Close() {
	db.engine.Close()
}

// Corrupted reports whether the database has latched the fatal corrupted
// state. No writes are accepted once this is true.
func (db *Database) Corrupted() bool {
	return db.corrupted.Load()
}

// LatchCorrupted latches the fatal corrupted state for a failure detected
// outside the database and returns the error to report.
func (db *Database) LatchCorrupted(err error) error {
	db.corrupted.Store(true)
	return fmt.Errorf("%w: %s", ErrStoreCorrupted, err)
}

// =============================================================================
// Block storage

// ExtendChain atomically persists the block, advances the canonical height
// index and moves the tip. All of it commits or none of it does.
func (db *Database) ExtendChain(block Block, weight uint64, receivedAt time.Time) error {
	if err := db.retryWrite(func() error {
		return db.engine.Extend(NewStoredBlock(block, weight, receivedAt))
	}); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	db.latestBlock = block

	return nil
}

// StoreSideChain persists a block that is not (yet) part of the canonical
// chain. The tip and height index are untouched.
func (db *Database) StoreSideChain(block Block, weight uint64, receivedAt time.Time) error {
	return db.retryWrite(func() error {
		return db.engine.Put(NewStoredBlock(block, weight, receivedAt))
	})
}

// AdoptChain atomically moves the tip to the specified stored block,
// re-linking the canonical height index along the new branch. The account
// database is rebuilt from the new canonical chain.
func (db *Database) AdoptChain(tipHash string) error {
	if err := db.retryWrite(func() error {
		return db.engine.SetTip(tipHash)
	}); err != nil {
		return err
	}

	rec, err := db.engine.Get(tipHash)
	if err != nil {
		db.corrupted.Store(true)
		return ErrStoreCorrupted
	}

	block, err := ToBlock(rec.BlockData)
	if err != nil {
		db.corrupted.Store(true)
		return ErrStoreCorrupted
	}

	db.mu.Lock()
	db.latestBlock = block
	db.mu.Unlock()

	// Balances are derived state. After a reorg the only safe source of
	// truth is a replay of the new canonical chain.
	return db.replayAccounts()
}

// GetBlock retrieves the block with the specified hash from storage.
func (db *Database) GetBlock(hash string) (StoredBlock, error) {
	return db.engine.Get(hash)
}

// GetBlockByNumber retrieves the canonical block at the specified height.
func (db *Database) GetBlockByNumber(num uint64) (StoredBlock, error) {
	return db.engine.GetByNumber(num)
}

// Tip returns the current chain tip from storage.
func (db *Database) Tip() (Tip, error) {
	tip, err := db.engine.Tip()
	if err != nil {
		db.corrupted.Store(true)
		return Tip{}, ErrStoreCorrupted
	}
	return tip, nil
}

// LatestBlock returns the current canonical head block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock
}

// ChainSegment returns the ordered sequence of canonical blocks for the
// specified inclusive height range. Use QueryLatest for the to value to
// read through the current tip.
func (db *Database) ChainSegment(from uint64, to uint64) ([]StoredBlock, error) {
	if to == QueryLatest {
		tip, err := db.Tip()
		if err != nil {
			return nil, err
		}
		to = tip.Number
	}

	// The chain starts at block 1, there is nothing stored below it.
	if from < 1 {
		from = 1
	}

	if from > to {
		return nil, fmt.Errorf("from[%d] greater than to[%d]", from, to)
	}

	var segment []StoredBlock
	for num := from; num <= to; num++ {
		rec, err := db.engine.GetByNumber(num)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				break
			}
			return nil, err
		}
		segment = append(segment, rec)
	}

	return segment, nil
}

// retryWrite runs the specified write against the engine, retrying transient
// failures a bounded number of times with backoff. Exhausted retries latch
// the corrupted state.
func (db *Database) retryWrite(write func() error) error {
	if db.corrupted.Load() {
		return ErrStoreCorrupted
	}

	var err error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		if err = write(); err == nil {
			return nil
		}

		// These are logic errors, not I/O failures. Retrying won't help.
		if errors.Is(err, ErrUnknownBlock) || errors.Is(err, ErrStoreCorrupted) {
			return err
		}

		time.Sleep(writeBackoff * time.Duration(attempt))
	}

	db.corrupted.Store(true)
	return fmt.Errorf("%w: %s", ErrStoreCorrupted, err)
}

// =============================================================================
// Accounts

// CopyAccounts makes a copy of the current accounts in the database.
func (db *Database) CopyAccounts() map[AccountID]Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make(map[AccountID]Account)
	for accountID, account := range db.accounts {
		accounts[accountID] = account
	}

	return accounts
}

// Accounts returns the set of accounts sorted by account id.
func (db *Database) Accounts() []Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make([]Account, 0, len(db.accounts))
	for _, account := range db.accounts {
		accounts = append(accounts, account)
	}
	sort.Sort(byAccount(accounts))

	return accounts
}

// Query returns the account from the database for the specified id.
func (db *Database) Query(accountID AccountID) (Account, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	account, exists := db.accounts[accountID]
	if !exists {
		return Account{}, errors.New("account does not exist")
	}

	return account, nil
}

// ApplyMiningReward gives the specified account the mining reward.
func (db *Database) ApplyMiningReward(block Block) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.applyMiningReward(block)
}

// ApplyTransaction performs the business logic for applying a transaction
// to the database.
func (db *Database) ApplyTransaction(block Block, tx BlockTx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.applyTransaction(block, tx)
}

// =============================================================================

func (db *Database) applyMiningReward(block Block) {
	account := db.accounts[block.Header.BeneficiaryID]
	account.AccountID = block.Header.BeneficiaryID
	account.Balance += db.genesis.MiningReward

	db.accounts[block.Header.BeneficiaryID] = account
}

func (db *Database) applyTransaction(block Block, tx BlockTx) error {
	fromID, err := tx.FromAccount()
	if err != nil {
		return fmt.Errorf("invalid signature, %s", err)
	}

	from := db.accounts[fromID]
	from.AccountID = fromID
	to := db.accounts[tx.ToID]
	to.AccountID = tx.ToID
	bnfc := db.accounts[block.Header.BeneficiaryID]
	bnfc.AccountID = block.Header.BeneficiaryID

	// Perform basic accounting checks.
	{
		if tx.ChainID != db.genesis.ChainID {
			return fmt.Errorf("transaction invalid, wrong chain id, got %d, exp %d", tx.ChainID, db.genesis.ChainID)
		}

		if fromID == tx.ToID {
			return fmt.Errorf("transaction invalid, sending money to yourself, from %s, to %s", fromID, tx.ToID)
		}

		if tx.Nonce <= from.Nonce {
			return fmt.Errorf("transaction invalid, nonce too small, current %d, provided %d", from.Nonce, tx.Nonce)
		}

		if from.Balance < (tx.Value + tx.Tip) {
			return fmt.Errorf("transaction invalid, insufficient funds, bal %d, needed %d", from.Balance, tx.Value+tx.Tip)
		}
	}

	// Update the balances between the two parties.
	from.Balance -= tx.Value
	to.Balance += tx.Value

	// Give the beneficiary the tip.
	from.Balance -= tx.Tip
	bnfc.Balance += tx.Tip

	// Update the nonce for the next transaction check.
	from.Nonce = tx.Nonce

	// Update the final changes to these accounts.
	db.accounts[fromID] = from
	db.accounts[tx.ToID] = to
	db.accounts[block.Header.BeneficiaryID] = bnfc

	return nil
}

// resetAccounts initializes the accounts back to the genesis information.
func (db *Database) resetAccounts() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.accounts = make(map[AccountID]Account)
	for accountStr, balance := range db.genesis.Balances {
		accountID, err := ToAccountID(accountStr)
		if err != nil {
			return err
		}

		db.accounts[accountID] = newAccount(accountID, balance)
	}

	return nil
}

// replayAccounts rebuilds the account database from the canonical chain.
func (db *Database) replayAccounts() error {
	if err := db.resetAccounts(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	iter := db.engine.ForEach()
	for rec, err := iter.Next(); !iter.Done(); rec, err = iter.Next() {
		if err != nil {
			return err
		}

		block, err := ToBlock(rec.BlockData)
		if err != nil {
			return err
		}

		for _, tx := range block.Trans.Values() {
			db.applyTransaction(block, tx)
		}
		db.applyMiningReward(block)
	}

	return nil
}
