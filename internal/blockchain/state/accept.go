package state

import (
	"github.com/acem702/powchain/internal/blockchain/database"
)

// AcceptBlock is the single entry point both the mining coordinator
// (its own freshly mined block) and the gossip handler (a remote
// NEW_BLOCK) call to make block the new chain head. It verifies the
// block against a snapshot of the head taken under the read lock, then
// persists, commits state, retargets difficulty, and revalidates the
// mempool under the write lock so a concurrent reader never observes a
// partially-applied block. The worker is signalled after the write
// lock is released, since its signal methods read State. A storage
// failure is returned without moving the head, per spec.md §7.
func (s *State) AcceptBlock(block database.Block) error {
	s.mu.RLock()
	head := s.latestBlock
	expectedDifficulty := s.difficulty
	s.mu.RUnlock()

	if err := s.verifyAgainstHead(block, head, expectedDifficulty); err != nil {
		return err
	}

	s.mu.Lock()

	// Re-check the head under the lock: another accept may have raced
	// ahead of us between the unlocked verify above and here.
	if block.ParentHash != s.latestBlock.Hash || block.BlockNumber != s.latestBlock.BlockNumber+1 {
		s.mu.Unlock()
		return invalidBlockf("chain head advanced during verification")
	}

	// Per spec.md §7, a StorageError must not advance the in-memory
	// head: persist the block and the resulting accounts first, and
	// only touch latestBlock/currentSyncBlock once both succeeded.
	if err := s.persistBlock(block); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.applyBlockLocked(block); err != nil {
		s.mu.Unlock()
		return err
	}

	s.latestBlock = block
	s.difficulty = s.retargetDifficulty(block)

	if s.latestSyncBlock != nil && block.BlockNumber >= s.latestSyncBlock.BlockNumber {
		s.latestSyncBlock = nil
	}
	if block.BlockNumber >= s.currentSyncBlock {
		s.currentSyncBlock = block.BlockNumber + 1
	}
	s.maybeCompleteSyncLocked()

	s.mempool.Revalidate(s.accounts)
	for _, tx := range block.Transactions[1:] {
		s.mempool.Remove(tx)
	}

	s.mu.Unlock()

	s.worker.SignalCancelMining()
	s.worker.SignalStartMining()

	return nil
}
