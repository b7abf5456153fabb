package state

import (
	"encoding/json"
	"fmt"

	"github.com/acem702/powchain/internal/blockchain/database"
	"github.com/acem702/powchain/internal/blockchain/storage"
)

// persistAccounts writes every account in overlay to stateDB. It runs
// before the overlay is committed to the live Accounts, so a storage
// failure here is returned to the caller with the in-memory state
// still untouched, per spec.md §7's "in-memory head is not advanced"
// rule for a StorageError.
func (s *State) persistAccounts(overlay map[database.Address]database.Account) error {
	for addr, acct := range overlay {
		data, err := json.Marshal(acct)
		if err != nil {
			return fmt.Errorf("state: marshal account %s: %w", addr, err)
		}
		if err := s.kv.Put(storage.BucketAccounts, string(addr), data); err != nil {
			return &storage.ErrStorage{Op: "persist account " + string(addr), Err: err}
		}
	}
	return nil
}
