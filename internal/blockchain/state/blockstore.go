package state

import (
	"encoding/json"
	"fmt"

	"github.com/acem702/powchain/internal/blockchain/canon"
	"github.com/acem702/powchain/internal/blockchain/database"
	"github.com/acem702/powchain/internal/blockchain/storage"
)

// persistBlock writes block to blockDB under its decimal block number,
// per spec.md §6's persisted state layout.
func (s *State) persistBlock(block database.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("state: marshal block: %w", err)
	}

	key := canon.Uint(block.BlockNumber)
	if err := s.kv.Put(storage.BucketBlocks, key, data); err != nil {
		return err
	}
	return nil
}

// retrieveStoredBlock reads the block persisted at number, or
// storage.ErrNotFound if it has never been written.
func (s *State) retrieveStoredBlock(number uint64) (database.Block, error) {
	data, err := s.kv.Get(storage.BucketBlocks, canon.Uint(number))
	if err != nil {
		return database.Block{}, err
	}

	var block database.Block
	if err := json.Unmarshal(data, &block); err != nil {
		return database.Block{}, fmt.Errorf("state: unmarshal block %d: %w", number, err)
	}
	return block, nil
}

// highestStoredBlockNumber scans blockDB for the greatest persisted
// block number, or 0 when empty. Used to resume sync at the right
// height after a restart.
func (s *State) highestStoredBlockNumber() (uint64, error) {
	var highest uint64
	err := s.kv.ForEach(storage.BucketBlocks, func(key string, _ []byte) error {
		var n uint64
		if _, err := fmt.Sscanf(key, "%d", &n); err != nil {
			return nil
		}
		if n > highest {
			highest = n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return highest, nil
}

// replayPersistedChain loads every block from blockDB in ascending
// order and applies it, so a restarted node reaches the exact state a
// live run produced without re-fetching anything from peers.
func (s *State) replayPersistedChain() error {
	highest, err := s.highestStoredBlockNumber()
	if err != nil {
		return err
	}

	for n := uint64(1); n <= highest; n++ {
		block, err := s.retrieveStoredBlock(n)
		if err != nil {
			return fmt.Errorf("replay block %d: %w", n, err)
		}
		if err := s.applyBlockLocked(block); err != nil {
			return fmt.Errorf("replay block %d: %w", n, err)
		}
		s.latestBlock = block
		s.difficulty = s.retargetDifficulty(block)
	}
	return nil
}
