package state

import (
	"github.com/acem702/powchain/internal/blockchain/database"
)

// ChainInfo is the in-memory summary spec.md §3 describes: the current
// head, the head observed during an active sync (nil outside sync),
// and the current difficulty target.
type ChainInfo struct {
	LatestBlock     database.Block
	LatestSyncBlock *database.Block
	Difficulty      uint
	PoolSize        int
}

// RetrieveChainInfo is the read-only interface spec.md §6 grants the
// out-of-scope query server.
func (s *State) RetrieveChainInfo() ChainInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := ChainInfo{
		LatestBlock: s.latestBlock,
		Difficulty:  s.difficulty,
		PoolSize:    s.mempool.Count(),
	}
	if s.latestSyncBlock != nil {
		cp := *s.latestSyncBlock
		info.LatestSyncBlock = &cp
	}
	return info
}

// RetrieveAccount returns the account at address, or a fresh
// zero-balance account if it has never been seen.
func (s *State) RetrieveAccount(address database.Address) database.Account {
	return s.accounts.Query(address)
}

// RetrieveBlock returns the block at number: the current head and the
// genesis block come from memory, every other height from blockDB.
func (s *State) RetrieveBlock(number uint64) (database.Block, error) {
	s.mu.RLock()
	if number == s.latestBlock.BlockNumber {
		defer s.mu.RUnlock()
		return s.latestBlock, nil
	}
	s.mu.RUnlock()

	if number == 0 {
		return s.genesis.Block(), nil
	}

	block, err := s.retrieveStoredBlock(number)
	if err != nil {
		return database.Block{}, err
	}
	return block, nil
}

// PublicKey reports the node's miner address and whether mining is
// enabled, per spec.md §6's read-only interface.
func (s *State) PublicKey() (database.Address, bool) {
	return s.minerAddress, s.enableMining
}

// HeightKnown reports whether number is at least 1 and at most the
// current head's number, used by the gossip server deciding whether to serve a
// REQUEST_BLOCK.
func (s *State) HeightKnown(number uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return number >= 1 && number <= s.latestBlock.BlockNumber
}
