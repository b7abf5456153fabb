package state

import "github.com/acem702/powchain/internal/blockchain/database"

// retargetDifficulty implements spec.md §4.5's updateDifficulty: every
// RetargetWindow blocks, compare the elapsed wall time of the window
// to RetargetWindow*TargetBlockTimeMillis and adjust by one. Between
// retargets the difficulty is unchanged. block is the block that was
// just accepted, i.e. the new chain head. When the window's first
// block is not in blockDB the difficulty is left unchanged; the
// genesis block is never written there, so the first window (ending
// at block RetargetWindow) does not retarget.
func (s *State) retargetDifficulty(block database.Block) uint {
	window := s.genesis.RetargetWindow
	if window == 0 || block.BlockNumber == 0 || block.BlockNumber%window != 0 {
		return s.difficultyFor(block)
	}

	windowStartNumber := block.BlockNumber - window
	windowStart, err := s.retrieveStoredBlock(windowStartNumber)
	if err != nil {
		return s.difficultyFor(block)
	}

	elapsed := block.Timestamp - windowStart.Timestamp
	target := window * s.genesis.TargetBlockTimeMillis

	switch {
	case elapsed < target:
		return block.Difficulty + 1
	case elapsed > target && block.Difficulty > 1:
		return block.Difficulty - 1
	default:
		return block.Difficulty
	}
}

// difficultyFor returns the difficulty that applies to the block after
// block: unchanged, since this is not a retarget boundary.
func (s *State) difficultyFor(block database.Block) uint {
	return block.Difficulty
}
