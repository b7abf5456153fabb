// Package mempool maintains the in-memory, strictly ordered pool of
// pending transactions spec.md §4.6 describes. Unlike the teacher's
// fee-priority selector, ordering here is always insertion order —
// the spec calls the pool an "ordered sequence", not a market.
package mempool

import (
	"fmt"
	"sync"

	"github.com/acem702/powchain/internal/blockchain/database"
)

// Mempool is a FIFO queue of validated, not-yet-mined transactions,
// keyed by sender:timestamp so a duplicate submission is rejected
// with an error rather than added as a second entry.
type Mempool struct {
	mu    sync.RWMutex
	order []string
	pool  map[string]database.Tx
}

// New constructs an empty mempool.
func New() *Mempool {
	return &Mempool{
		pool: make(map[string]database.Tx),
	}
}

func key(from database.Address, tx database.Tx) string {
	return fmt.Sprintf("%s:%d", from, tx.Timestamp)
}

// Count returns the number of pending transactions.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return len(mp.order)
}

// Add validates tx against accounts, checks it does not collide with
// another pool entry from the same sender, checks the sender's
// projected balance across every pool entry from that sender remains
// non-negative, and appends it to the pool. It returns
// database.ErrInvalidTransaction (wrapped) on any validation failure.
func (mp *Mempool) Add(tx database.Tx, accounts *database.Accounts) error {
	if err := tx.Validate(accounts); err != nil {
		return err
	}

	from, err := tx.FromAddress()
	if err != nil {
		return err
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	k := key(from, tx)
	if _, exists := mp.pool[k]; exists {
		return fmt.Errorf("transaction %s already pending: %w", k, database.ErrInvalidTransaction)
	}

	projected := accounts.Query(from).Balance.Clone()
	for _, pending := range mp.pool {
		pendingFrom, err := pending.FromAddress()
		if err != nil {
			continue
		}
		if pendingFrom == from {
			projected = database.Sub(projected, pending.TotalCost())
		}
	}
	projected = database.Sub(projected, tx.TotalCost())
	if projected.IsNegative() {
		return fmt.Errorf("sender %s has insufficient projected balance across the pool: %w", from, database.ErrInvalidTransaction)
	}

	mp.pool[k] = tx
	mp.order = append(mp.order, k)
	return nil
}

// Transactions returns every pending transaction in pool (insertion)
// order.
func (mp *Mempool) Transactions() []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	out := make([]database.Tx, 0, len(mp.order))
	for _, k := range mp.order {
		out = append(out, mp.pool[k])
	}
	return out
}

// Remove drops tx from the pool, used once it has been included in an
// accepted block.
func (mp *Mempool) Remove(tx database.Tx) {
	from, err := tx.FromAddress()
	if err != nil {
		return
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.removeKey(key(from, tx))
}

func (mp *Mempool) removeKey(k string) {
	if _, exists := mp.pool[k]; !exists {
		return
	}
	delete(mp.pool, k)
	for i, existing := range mp.order {
		if existing == k {
			mp.order = append(mp.order[:i], mp.order[i+1:]...)
			break
		}
	}
}

// Revalidate re-checks every pending transaction against the new head
// state and drops any that are no longer valid, per spec.md §4.6's
// "On new-block acceptance, every pool transaction is re-validated".
func (mp *Mempool) Revalidate(accounts *database.Accounts) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	kept := mp.order[:0:0]
	for _, k := range mp.order {
		tx := mp.pool[k]
		if err := tx.Validate(accounts); err != nil {
			delete(mp.pool, k)
			continue
		}
		kept = append(kept, k)
	}
	mp.order = kept
}

// SelectForBlock greedily takes transactions from the pool in order,
// accumulating declared contractGas up to gasLimit, per spec.md §4.7
// step 1.
func (mp *Mempool) SelectForBlock(gasLimit *database.BigInt) []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	used := database.NewBigInt(0)
	var selected []database.Tx
	for _, k := range mp.order {
		tx := mp.pool[k]
		cost := database.NewBigInt(0)
		if tx.AdditionalData.IsContractCall() {
			cost = tx.AdditionalData.ContractGas
		}
		next := database.Add(used, cost)
		if next.Cmp(&gasLimit.Int) > 0 {
			continue
		}
		used = next
		selected = append(selected, tx)
	}
	return selected
}
