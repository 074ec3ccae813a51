// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// treasuryAccount is credited with the initial supply when no genesis file
// exists. Funds are sent from here when the chain is bootstrapped standalone.
const treasuryAccount = "0x0000000000000000000000000000000000000000"

// Genesis represents the genesis file.
type Genesis struct {
	Date          time.Time         `json:"date"`
	ChainID       uint16            `json:"chain_id"`        // A unique id for this running network.
	TransPerBlock uint16            `json:"trans_per_block"` // The maximum number of transactions that can be in a block.
	Difficulty    uint16            `json:"difficulty"`      // How difficult it needs to be to solve the work problem.
	MiningReward  uint64            `json:"mining_reward"`   // Reward for mining a block.
	Balances      map[string]uint64 `json:"balances"`        // Initial account balances.
}

// =============================================================================

// Load opens and consumes the genesis file found at the specified path. If
// no file exists, a default genesis is written there first so every node
// bootstrapped against the same empty data directory starts identically.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Genesis{}, err
		}
		return create(path)
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// create writes the default genesis file to the specified path.
func create(path string) (Genesis, error) {
	genesis := Genesis{
		Date:          time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:       1,
		TransPerBlock: 100,
		Difficulty:    4,
		MiningReward:  10,
		Balances: map[string]uint64{
			treasuryAccount: 1000,
		},
	}

	data, err := json.MarshalIndent(genesis, "", "  ")
	if err != nil {
		return Genesis{}, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Genesis{}, err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}
