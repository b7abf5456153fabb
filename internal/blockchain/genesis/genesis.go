// Package genesis fixes the chain parameters every node must agree on:
// the genesis block itself, block reward, fee floors, gas limit, and
// the difficulty retarget schedule.
package genesis

import (
	"encoding/json"
	"os"

	"github.com/acem702/powchain/internal/blockchain/database"
)

// Genesis carries the network-wide constants spec.md §6 requires
// every node to agree on. The retarget window and target block time
// are genesis parameters rather than hardcoded, resolving the open
// question spec.md §9 leaves unspecified: this network fixes them to
// 10 blocks and 30 seconds respectively.
type Genesis struct {
	ChainID          uint16             `json:"chainID"`
	InitialDifficulty uint              `json:"initialDifficulty"`
	BlockReward      *database.BigInt   `json:"blockReward"`
	BlockGasLimit    *database.BigInt   `json:"blockGasLimit"`
	RetargetWindow   uint64             `json:"retargetWindow"`
	TargetBlockTimeMillis uint64        `json:"targetBlockTimeMillis"`
	AllowedSkewMillis     uint64        `json:"allowedSkewMillis"`
	Balances         map[string]*database.BigInt `json:"balances"`
}

// Default returns the genesis parameters this network ships with:
// retarget every 10 blocks, target 30s/block, block reward 100 wei,
// block gas limit 1_000_000.
func Default() Genesis {
	return Genesis{
		ChainID:               1,
		InitialDifficulty:     3,
		BlockReward:           database.NewBigInt(100),
		BlockGasLimit:         database.NewBigInt(1_000_000),
		RetargetWindow:        10,
		TargetBlockTimeMillis: 30_000,
		AllowedSkewMillis:     15 * 60 * 1000,
		Balances:              map[string]*database.BigInt{},
	}
}

// Block constructs the fixed genesis block: number 0, a constant
// parent hash, no transactions, and the network's initial difficulty.
// Its hash is not a proof-of-work solution — by definition the genesis
// block predates mining and is simply agreed upon out of band.
func (g Genesis) Block() database.Block {
	return database.Block{
		BlockNumber:  0,
		Timestamp:    0,
		Transactions: nil,
		Difficulty:   g.InitialDifficulty,
		ParentHash:   database.GenesisParentHash,
		Nonce:        0,
		Hash:         database.GenesisParentHash,
	}
}

// Load reads a genesis configuration from path, falling back to
// Default when path is empty.
func Load(path string) (Genesis, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	g := Default()
	if err := json.Unmarshal(data, &g); err != nil {
		return Genesis{}, err
	}
	return g, nil
}
