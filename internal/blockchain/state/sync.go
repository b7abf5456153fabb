package state

import (
	"errors"

	"github.com/acem702/powchain/internal/blockchain/database"
)

// SyncState is the node's position in the initial catch-up state
// machine spec.md §4.8 describes.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncSyncing
	SyncSynced
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "IDLE"
	case SyncSyncing:
		return "SYNCING"
	case SyncSynced:
		return "SYNCED"
	default:
		return "UNKNOWN"
	}
}

// ErrSyncing is returned by SubmitTransaction while the node is mid
// initial sync, per spec.md §4.8's gossip semantics.
var ErrSyncing = errors.New("state: node is still syncing")

// beginSync enters SYNCING and sets currentSyncBlock to
// max(existing blockDB keys, 1), per spec.md §4.8.
func (s *State) beginSync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	highest, err := s.highestStoredBlockNumber()
	if err != nil || highest < 1 {
		highest = 1
	}

	s.syncState = SyncSyncing
	s.currentSyncBlock = highest
}

// SyncState reports the node's current position in the sync machine.
func (s *State) SyncState() SyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncState
}

// CurrentSyncBlock is the height the node is currently requesting.
func (s *State) CurrentSyncBlock() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSyncBlock
}

// RecordPeerHeight folds a peer-reported chain height into
// highestKnownPeer. This is fed by the HANDSHAKE payload's chain
// height field, resolving spec.md §9's second open question: rather
// than switching to SYNCED on the first NEW_BLOCK (which can leave
// gaps), sync only completes once currentSyncBlock exceeds every
// height any peer has reported.
func (s *State) RecordPeerHeight(height uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if height > s.highestKnownPeer {
		s.highestKnownPeer = height
	}
	s.maybeCompleteSyncLocked()
}

// maybeCompleteSyncLocked transitions SYNCING -> SYNCED once
// currentSyncBlock has moved past every known peer height. Callers
// must hold s.mu.
func (s *State) maybeCompleteSyncLocked() {
	if s.syncState == SyncSyncing && s.currentSyncBlock > s.highestKnownPeer {
		s.syncState = SyncSynced
	}
}

// HandleSyncBlock processes a SEND_BLOCK response. It is a no-op when
// the node is not in SYNCING or the response is for a height other
// than currentSyncBlock — a stale response from a slow peer after a
// faster peer already advanced the sync, which spec.md §5 treats as
// an implicit cancellation rather than an error. A storage failure is
// returned without advancing currentSyncBlock, per spec.md §7.
func (s *State) HandleSyncBlock(block database.Block) error {
	s.mu.RLock()
	if s.syncState != SyncSyncing || block.BlockNumber != s.currentSyncBlock {
		s.mu.RUnlock()
		return nil
	}
	bootstrap := s.latestSyncBlock == nil && block.BlockNumber == 1
	head := s.latestBlock
	difficulty := s.difficulty
	s.mu.RUnlock()

	if !bootstrap {
		if err := s.verifyAgainstHead(block, head, difficulty); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.syncState != SyncSyncing || block.BlockNumber != s.currentSyncBlock {
		return nil
	}

	// Per spec.md §7, a StorageError must not advance currentSyncBlock
	// or the head: persist first, and only touch either once both the
	// block and its resulting accounts are safely written.
	if err := s.persistBlock(block); err != nil {
		return err
	}
	if err := s.applyBlockLocked(block); err != nil {
		return err
	}

	s.latestBlock = block
	s.difficulty = s.retargetDifficulty(block)
	cp := block
	s.latestSyncBlock = &cp
	s.currentSyncBlock++

	s.maybeCompleteSyncLocked()
	return nil
}
