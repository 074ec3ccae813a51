// Package peer maintains the peer related information such as the set of
// known peers, their announced tips, connection health and scoring.
package peer

import (
	"sort"
	"sync"
	"time"
)

// State represents the connection state of a peer.
type State int

// Set of peer connection states.
const (
	Disconnected State = iota
	Connecting
	Synced
	Stale
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Synced:
		return "synced"
	case Stale:
		return "stale"
	}
	return "unknown"
}

// =============================================================================

// Peer represents information about a node in the network.
type Peer struct {
	Host string `json:"host"`
}

// New constructs a new peer value.
func New(host string) Peer {
	return Peer{
		Host: host,
	}
}

// Match validates if the specified host matches this peer.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// =============================================================================

// Status represents information about the status of any given peer.
type Status struct {
	LatestBlockHash   string `json:"latest_block_hash"`
	LatestBlockNumber uint64 `json:"latest_block_number"`
	KnownPeers        []Peer `json:"known_peers"`
}

// =============================================================================

// info is the mutable record the peer set tracks for each known peer.
type info struct {
	state        State
	lastSeen     time.Time
	tipNumber    uint64
	tipHash      string
	failCount    int
	invalidCount int
	backoffUntil time.Time
}

// Config holds the eviction and backoff tuning for the peer set.
type Config struct {
	RetryBudget      int           // Consecutive failed contacts before eviction.
	InvalidThreshold int           // Consecutive invalid blocks before eviction.
	BackoffBase      time.Duration // First reconnect delay after a failure.
	BackoffMax       time.Duration // Upper bound for the reconnect delay.
}

// defaults fills zero values with usable settings.
func (cfg Config) defaults() Config {
	if cfg.RetryBudget == 0 {
		cfg.RetryBudget = 5
	}
	if cfg.InvalidThreshold == 0 {
		cfg.InvalidThreshold = 3
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 2 * time.Minute
	}
	return cfg
}

// PeerSet represents the data representation to maintain a set of known
// peers and their health.
type PeerSet struct {
	mu  sync.RWMutex
	cfg Config
	set map[Peer]*info
}

// NewPeerSet constructs a new peer set to manage node peer information.
func NewPeerSet(cfg Config) *PeerSet {
	return &PeerSet{
		cfg: cfg.defaults(),
		set: make(map[Peer]*info),
	}
}

// Bootstrap seeds the set from the configured seed addresses. An empty seed
// list is a valid standalone start, not an error.
func (ps *PeerSet) Bootstrap(seedHosts []string) {
	for _, host := range seedHosts {
		if host == "" {
			continue
		}
		ps.Add(New(host))
	}
}

// Add adds a new peer to the set. Re-adding an existing peer refreshes its
// last-seen time instead of creating a duplicate. It reports whether the
// peer was previously unknown.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	inf, exists := ps.set[peer]
	if exists {
		inf.lastSeen = time.Now()
		return false
	}

	ps.set[peer] = &info{
		state:    Disconnected,
		lastSeen: time.Now(),
	}
	return true
}

// Remove deletes a peer from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer)
}

// Connecting marks that a session with the peer is being established.
func (ps *PeerSet) Connecting(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if inf, exists := ps.set[peer]; exists {
		inf.state = Connecting
	}
}

// MarkContact records a successful exchange with the peer, along with the
// tip the peer announced. It clears the failure backoff.
func (ps *PeerSet) MarkContact(peer Peer, tipNumber uint64, tipHash string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	inf, exists := ps.set[peer]
	if !exists {
		inf = &info{}
		ps.set[peer] = inf
	}

	inf.state = Synced
	inf.lastSeen = time.Now()
	inf.tipNumber = tipNumber
	inf.tipHash = tipHash
	inf.failCount = 0
	inf.backoffUntil = time.Time{}
}

// MarkUnreachable records a failed contact. The peer moves toward eventual
// eviction with exponential backoff between reconnection attempts. It
// reports whether the peer was evicted.
func (ps *PeerSet) MarkUnreachable(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	inf, exists := ps.set[peer]
	if !exists {
		return false
	}

	inf.failCount++
	if inf.failCount >= ps.cfg.RetryBudget {
		delete(ps.set, peer)
		return true
	}

	backoff := ps.cfg.BackoffBase << (inf.failCount - 1)
	if backoff > ps.cfg.BackoffMax {
		backoff = ps.cfg.BackoffMax
	}

	inf.state = Stale
	inf.backoffUntil = time.Now().Add(backoff)
	return false
}

// MarkInvalidBlock records that the peer supplied a block that failed
// validation. Peers that keep doing this are evicted so no more resources
// are spent on them. It reports whether the peer was evicted.
func (ps *PeerSet) MarkInvalidBlock(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	inf, exists := ps.set[peer]
	if !exists {
		return false
	}

	inf.invalidCount++
	if inf.invalidCount >= ps.cfg.InvalidThreshold {
		delete(ps.set, peer)
		return true
	}

	return false
}

// SelectSyncTargets returns up to n peers to request data from, prioritized
// by announced tip height and then by recency of successful contact. Peers
// waiting out a failure backoff are skipped.
func (ps *PeerSet) SelectSyncTargets(n int) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	type candidate struct {
		peer Peer
		inf  info
	}

	now := time.Now()
	candidates := make([]candidate, 0, len(ps.set))
	for peer, inf := range ps.set {
		if now.Before(inf.backoffUntil) {
			continue
		}
		candidates = append(candidates, candidate{peer: peer, inf: *inf})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].inf.tipNumber != candidates[j].inf.tipNumber {
			return candidates[i].inf.tipNumber > candidates[j].inf.tipNumber
		}
		return candidates[i].inf.lastSeen.After(candidates[j].inf.lastSeen)
	})

	if n > len(candidates) {
		n = len(candidates)
	}

	peers := make([]Peer, 0, n)
	for _, c := range candidates[:n] {
		peers = append(peers, c.peer)
	}

	return peers
}

// Copy returns a list of the known peers, excluding the specified host.
func (ps *PeerSet) Copy(host string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var peers []Peer
	for peer := range ps.set {
		if !peer.Match(host) {
			peers = append(peers, peer)
		}
	}

	return peers
}

// Count returns the number of known peers.
func (ps *PeerSet) Count() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.set)
}

// StateOf returns the current connection state for the specified peer.
func (ps *PeerSet) StateOf(peer Peer) State {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	inf, exists := ps.set[peer]
	if !exists {
		return Disconnected
	}

	return inf.state
}
