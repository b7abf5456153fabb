package state

import "github.com/acem702/powchain/internal/blockchain/database"

// SubmitTransaction validates tx synchronously and, on success, admits
// it to the mempool before returning. This resolves the open question
// in spec.md §9 about handleSendTransaction acknowledging before
// validation: here the caller only learns of success once tx is
// actually in the pool, and a validation failure (including a replayed
// timestamp) is returned directly rather than being silently dropped.
// The caller (the gossip server) is responsible for re-broadcasting
// once this returns nil.
func (s *State) SubmitTransaction(tx database.Tx) error {
	if s.IsSyncing() {
		return ErrSyncing
	}
	return s.mempool.Add(tx, s.accounts)
}

// IsSyncing reports whether the node is mid initial sync, per
// spec.md §4.8's gossip semantics ("if not syncing, validate, admit to
// pool").
func (s *State) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncState == SyncSyncing
}
