package state

import (
	"fmt"
	"time"

	"github.com/acem702/powchain/internal/blockchain/database"
)

// allowedSkewMillis bounds how far into the future a block's
// timestamp may claim to be, per spec.md §4.5 step 3.
const allowedSkewMillis = 15 * 60 * 1000

// VerifyBlock implements spec.md §4.5's verifyBlock as a read-only
// check against the current head: header checks, then every
// non-coinbase transaction applied against a throwaway snapshot so
// balance constraints are checked cumulatively within the block. It
// never mutates live state; AcceptBlock runs the same check before it
// takes the write lock, then re-checks only the parent linkage under
// that lock before committing.
func (s *State) VerifyBlock(block database.Block) error {
	s.mu.RLock()
	head := s.latestBlock
	expectedDifficulty := s.difficulty
	s.mu.RUnlock()

	return s.verifyAgainstHead(block, head, expectedDifficulty)
}

// verifyAgainstHead is the lock-free core VerifyBlock, AcceptBlock and
// HandleSyncBlock call with s.mu released, passing a head and
// difficulty each read under the read lock.
func (s *State) verifyAgainstHead(block, head database.Block, expectedDifficulty uint) error {
	now := uint64(time.Now().UnixMilli())

	if err := block.ValidateHeader(head, expectedDifficulty, s.genesis.BlockReward, now, allowedSkewMillis); err != nil {
		return err
	}

	gasUsed := database.GasUsed(block.Transactions[1:])
	if gasUsed.Cmp(&s.genesis.BlockGasLimit.Int) > 0 {
		return invalidBlockf("block gas used %s exceeds the block gas limit %s", gasUsed, s.genesis.BlockGasLimit)
	}

	overlay := s.accounts.Snapshot()
	return s.transitionBlock(overlay, block)
}

func invalidBlockf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, database.ErrInvalidBlock)...)
}
