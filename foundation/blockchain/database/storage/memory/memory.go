// Package memory implements the database.Engine interface using an
// in-memory data store. This is used for testing and development.
package memory

import (
	"errors"
	"sync"

	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/signature"
)

// Memory represents the storage implementation for reading and storing
// blocks in memory. This implements the database.Engine interface.
type Memory struct {
	mu     sync.RWMutex
	blocks map[string]database.StoredBlock
	chain  map[uint64]string
	tip    string
}

// New constructs a memory engine for use.
func New() (*Memory, error) {
	return &Memory{
		blocks: make(map[string]database.StoredBlock),
		chain:  make(map[uint64]string),
	}, nil
}

// Close in this implementation has nothing to do.
func (m *Memory) Close() error {
	return nil
}

// Extend stores the block record, appends it to the canonical height index
// and moves the tip as one operation.
func (m *Memory) Extend(rec database.StoredBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks[rec.Hash] = rec
	m.chain[rec.Header.Number] = rec.Hash
	m.tip = rec.Hash

	return nil
}

// Put stores the block record without touching the canonical index or tip.
func (m *Memory) Put(rec database.StoredBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks[rec.Hash] = rec

	return nil
}

// Get reads the block record with the specified hash.
func (m *Memory) Get(hash string) (database.StoredBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.blocks[hash]
	if !exists {
		return database.StoredBlock{}, database.ErrNotFound
	}

	return rec, nil
}

// GetByNumber reads the canonical block record at the specified height.
func (m *Memory) GetByNumber(num uint64) (database.StoredBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash, exists := m.chain[num]
	if !exists {
		return database.StoredBlock{}, database.ErrNotFound
	}

	rec, exists := m.blocks[hash]
	if !exists {
		return database.StoredBlock{}, database.ErrStoreCorrupted
	}

	return rec, nil
}

// Tip returns the current tip marker. An empty store reports the zero hash
// with no error.
func (m *Memory) Tip() (database.Tip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.tip == "" {
		return database.Tip{Hash: signature.ZeroHash}, nil
	}

	rec, exists := m.blocks[m.tip]
	if !exists {
		return database.Tip{}, database.ErrStoreCorrupted
	}

	return database.Tip{Hash: rec.Hash, Number: rec.Header.Number, Weight: rec.Weight}, nil
}

// SetTip atomically moves the tip to the specified stored block, re-linking
// the canonical height index along the new branch.
func (m *Memory) SetTip(hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.blocks[hash]
	if !exists {
		return database.ErrUnknownBlock
	}

	// Drop all canonical index entries above the new tip height.
	for num := range m.chain {
		if num > rec.Header.Number {
			delete(m.chain, num)
		}
	}

	// Walk the new branch backwards, re-pointing the index until it
	// already agrees with the branch.
	cur := rec
	for {
		if m.chain[cur.Header.Number] == cur.Hash {
			break
		}
		m.chain[cur.Header.Number] = cur.Hash
		if cur.Header.Number <= 1 {
			break
		}

		parent, exists := m.blocks[cur.Header.PrevBlockHash]
		if !exists {
			return database.ErrStoreCorrupted
		}
		cur = parent
	}

	m.tip = hash

	return nil
}

// ForEach returns an iterator to walk through the canonical chain starting
// with block number 1.
func (m *Memory) ForEach() database.Iterator {
	return &iterator{engine: m}
}

// Reset clears out all stored blockchain data.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = make(map[string]database.StoredBlock)
	m.chain = make(map[uint64]string)
	m.tip = ""

	return nil
}

// =============================================================================

// iterator walks the canonical chain by ascending height. This implements
// the database.Iterator interface.
type iterator struct {
	engine  *Memory
	current uint64
	eoc     bool
}

// Next retrieves the next canonical block.
func (it *iterator) Next() (database.StoredBlock, error) {
	if it.eoc {
		return database.StoredBlock{}, errors.New("end of chain")
	}

	it.current++
	rec, err := it.engine.GetByNumber(it.current)
	if errors.Is(err, database.ErrNotFound) {
		it.eoc = true
	}

	return rec, err
}

// Done returns the end of chain value.
func (it *iterator) Done() bool {
	return it.eoc
}
