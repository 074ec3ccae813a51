package database

import "errors"

var (
	// ErrNotFound is returned when a block is not in the store.
	ErrNotFound = errors.New("block not found")

	// ErrUnknownBlock is returned when the tip is asked to move to a block
	// that was never stored.
	ErrUnknownBlock = errors.New("unknown block")

	// ErrStoreCorrupted is returned when the store is in an impossible
	// state, such as the tip referencing a missing block. Once raised, the
	// database refuses all further writes.
	ErrStoreCorrupted = errors.New("block store corrupted")
)
