// Package state is the core API for the blockchain node and implements all
// the business rules and processing.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/blocksync/chain/foundation/blockchain/consensus"
	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/genesis"
	"github.com/blocksync/chain/foundation/blockchain/mempool"
	"github.com/blocksync/chain/foundation/blockchain/peer"
	"github.com/blocksync/chain/foundation/blockchain/validate"
)

// Defaults applied when the configuration leaves a bound unset.
const (
	defaultMaxReorgDepth    = 100
	defaultMaxTimestampSkew = 2 * time.Minute
	defaultOrphanBufferSize = 128
)

// ErrShutdown is returned for any submission made after the acceptance
// queue has been stopped.
var ErrShutdown = errors.New("state is shut down")

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for syncing, mining, and sharing of transactions
// and blocks.
type Worker interface {
	Shutdown()
	Sync()
	SignalStartMining()
	SignalCancelMining() (done func())
	SignalShareTx(blockTx database.BlockTx)
	SignalShareBlock(blockData database.BlockData)
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	BeneficiaryID    database.AccountID
	Host             string
	Genesis          genesis.Genesis
	Engine           database.Engine
	SelectStrategy   string
	ConsensusRule    string
	MaxReorgDepth    uint64
	MaxTimestampSkew time.Duration
	OrphanBufferSize int
	KnownPeers       *peer.PeerSet
	EvHandler        EventHandler
}

// State manages the blockchain database.
type State struct {
	beneficiaryID database.AccountID
	host          string
	evHandler     EventHandler
	consensusName string
	maxReorgDepth uint64
	vCfg          validate.Config

	genesis    genesis.Genesis
	consensus  consensus.Rule
	mempool    *mempool.Mempool
	db         *database.Database
	knownPeers *peer.PeerSet

	accept     chan acceptRequest
	acceptShut chan struct{}
	acceptWG   sync.WaitGroup
	orphans    *orphanBuffer

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.MaxReorgDepth == 0 {
		cfg.MaxReorgDepth = defaultMaxReorgDepth
	}
	if cfg.MaxTimestampSkew <= 0 {
		cfg.MaxTimestampSkew = defaultMaxTimestampSkew
	}
	if cfg.OrphanBufferSize <= 0 {
		cfg.OrphanBufferSize = defaultOrphanBufferSize
	}

	// Retrieve the consensus rule the node is configured for.
	rule, err := consensus.Retrieve(cfg.ConsensusRule)
	if err != nil {
		return nil, err
	}

	// Access the storage for the blockchain and replay the canonical chain
	// to rebuild the account balances.
	db, err := database.New(cfg.Genesis, cfg.Engine, ev)
	if err != nil {
		return nil, err
	}

	// Construct a mempool with the specified sort strategy.
	mpool, err := mempool.NewWithStrategy(cfg.SelectStrategy)
	if err != nil {
		return nil, err
	}

	// Create the State to provide support for managing the blockchain.
	state := State{
		beneficiaryID: cfg.BeneficiaryID,
		host:          cfg.Host,
		evHandler:     ev,
		consensusName: cfg.ConsensusRule,
		maxReorgDepth: cfg.MaxReorgDepth,
		vCfg: validate.Config{
			MaxTimestampSkew: cfg.MaxTimestampSkew,
		},

		genesis:    cfg.Genesis,
		consensus:  rule,
		mempool:    mpool,
		db:         db,
		knownPeers: cfg.KnownPeers,

		accept:     make(chan acceptRequest),
		acceptShut: make(chan struct{}),
		orphans:    newOrphanBuffer(cfg.OrphanBufferSize),
	}

	// Every decision about the chain tip is made by this one G. The accept
	// channel serializes submissions from the network, the HTTP handlers
	// and the miner.
	hasStarted := make(chan struct{})
	state.acceptWG.Add(1)
	go func() {
		defer state.acceptWG.Done()
		close(hasStarted)
		state.acceptOperations()
	}()
	<-hasStarted

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Make sure the database file is properly closed.
	defer func() {
		s.db.Close()
	}()

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	// Terminate the acceptance G.
	close(s.acceptShut)
	s.acceptWG.Wait()

	return nil
}

// Faulted reports whether the node has latched the fatal store corrupted
// state. Submissions fail fast and queries report unavailable once this
// is true.
func (s *State) Faulted() bool {
	return s.db.Corrupted()
}

// IsMiningAllowed reports whether the node can mine new blocks.
func (s *State) IsMiningAllowed() bool {
	return !s.Faulted()
}
