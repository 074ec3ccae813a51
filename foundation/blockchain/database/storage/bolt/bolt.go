// Package bolt implements the database.Engine interface over a bbolt
// key/value file. Every mutating call runs in a single bbolt transaction so
// a crash mid-write leaves either the old or the new state, never a torn
// record.
package bolt

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/signature"
	bbolt "go.etcd.io/bbolt"
)

var (
	bucketBlocks = []byte("blocks") // block hash -> stored block record
	bucketChain  = []byte("chain")  // big endian height -> block hash
	bucketMeta   = []byte("meta")   // tip marker
	keyTip       = []byte("tip")
)

// Bolt represents the storage implementation for reading and storing blocks
// in a bbolt database file. This implements the database.Engine interface.
type Bolt struct {
	db *bbolt.DB
}

// New constructs a bolt engine, creating the database file and the buckets
// if they don't exist yet.
func New(dbPath string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening block store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketBlocks, bucketChain, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Bolt{db: db}, nil
}

// Close releases the underlying database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// Extend writes the block record, appends it to the canonical height index
// and moves the tip, all in one transaction.
func (b *Bolt) Extend(rec database.StoredBlock) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		if err := tx.Bucket(bucketBlocks).Put([]byte(rec.Hash), data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketChain).Put(heightKey(rec.Header.Number), []byte(rec.Hash)); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyTip, []byte(rec.Hash))
	})
}

// Put writes the block record without touching the canonical index or tip.
func (b *Bolt) Put(rec database.StoredBlock) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		return tx.Bucket(bucketBlocks).Put([]byte(rec.Hash), data)
	})
}

// Get reads the block record with the specified hash.
func (b *Bolt) Get(hash string) (database.StoredBlock, error) {
	var rec database.StoredBlock

	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketBlocks).Get([]byte(hash))
		if data == nil {
			return database.ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})

	return rec, err
}

// GetByNumber reads the canonical block record at the specified height.
func (b *Bolt) GetByNumber(num uint64) (database.StoredBlock, error) {
	var rec database.StoredBlock

	err := b.db.View(func(tx *bbolt.Tx) error {
		hash := tx.Bucket(bucketChain).Get(heightKey(num))
		if hash == nil {
			return database.ErrNotFound
		}

		data := tx.Bucket(bucketBlocks).Get(hash)
		if data == nil {

			// The index references a block we don't hold.
			return database.ErrStoreCorrupted
		}
		return json.Unmarshal(data, &rec)
	})

	return rec, err
}

// Tip returns the current tip marker. An empty store reports the zero hash
// with no error.
func (b *Bolt) Tip() (database.Tip, error) {
	var tip database.Tip

	err := b.db.View(func(tx *bbolt.Tx) error {
		hash := tx.Bucket(bucketMeta).Get(keyTip)
		if hash == nil {
			tip = database.Tip{Hash: signature.ZeroHash}
			return nil
		}

		data := tx.Bucket(bucketBlocks).Get(hash)
		if data == nil {
			return database.ErrStoreCorrupted
		}

		var rec database.StoredBlock
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}

		tip = database.Tip{Hash: rec.Hash, Number: rec.Header.Number, Weight: rec.Weight}
		return nil
	})

	return tip, err
}

// SetTip atomically moves the tip to the specified stored block and
// re-links the canonical height index along the new branch by walking the
// parent links back until the index agrees.
func (b *Bolt) SetTip(hash string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		blocks := tx.Bucket(bucketBlocks)
		chain := tx.Bucket(bucketChain)

		data := blocks.Get([]byte(hash))
		if data == nil {
			return database.ErrUnknownBlock
		}

		var rec database.StoredBlock
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}

		// Drop all canonical index entries above the new tip height.
		var stale [][]byte
		cursor := chain.Cursor()
		for k, _ := cursor.Seek(heightKey(rec.Header.Number + 1)); k != nil; k, _ = cursor.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := chain.Delete(k); err != nil {
				return err
			}
		}

		// Walk the new branch backwards, re-pointing the index until it
		// already agrees with the branch.
		cur := rec
		for {
			existing := chain.Get(heightKey(cur.Header.Number))
			if existing != nil && string(existing) == cur.Hash {
				break
			}
			if err := chain.Put(heightKey(cur.Header.Number), []byte(cur.Hash)); err != nil {
				return err
			}
			if cur.Header.Number <= 1 {
				break
			}

			parentData := blocks.Get([]byte(cur.Header.PrevBlockHash))
			if parentData == nil {
				return database.ErrStoreCorrupted
			}
			if err := json.Unmarshal(parentData, &cur); err != nil {
				return err
			}
		}

		return tx.Bucket(bucketMeta).Put(keyTip, []byte(hash))
	})
}

// ForEach returns an iterator to walk through the canonical chain starting
// with block number 1.
func (b *Bolt) ForEach() database.Iterator {
	return &iterator{engine: b}
}

// Reset clears out all stored blockchain data.
func (b *Bolt) Reset() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketBlocks, bucketChain, bucketMeta} {
			if err := tx.DeleteBucket(bucket); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================

// iterator walks the canonical chain by ascending height. This implements
// the database.Iterator interface.
type iterator struct {
	engine  *Bolt
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

// =============================================================================

// heightKey encodes a block number as a big endian key so the chain bucket
// sorts by height.
func heightKey(num uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, num)
	return key
}
