package database

import "sync"

// Accounts is the in-memory representation of stateDB: the full set of
// known accounts keyed by address. It is the event-loop-local cache the
// state package mutates; persistence to the stateStore bucket happens
// alongside it, never instead of it.
type Accounts struct {
	mu   sync.RWMutex
	info map[Address]Account
}

// NewAccounts constructs an empty account set.
func NewAccounts() *Accounts {
	return &Accounts{
		info: make(map[Address]Account),
	}
}

// FromOverlay wraps an existing overlay map in an Accounts value
// without copying it, so the state transition engine can validate a
// transaction against in-progress block state (using the same
// Query/Exists API callers use against the live stateDB) while still
// mutating that same overlay directly.
func FromOverlay(overlay map[Address]Account) *Accounts {
	return &Accounts{info: overlay}
}

// Query returns the account for address, or a fresh zero-balance account
// if it has never been seen. Per the data model, accounts are created
// lazily on first credit and never deleted, so a miss is not an error.
func (a *Accounts) Query(address Address) Account {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if acct, exists := a.info[address]; exists {
		return acct.Clone()
	}
	return newAccount(address)
}

// Exists reports whether address has ever been recorded in the state.
func (a *Accounts) Exists(address Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, exists := a.info[address]
	return exists
}

// Upsert writes acct into the live set, keyed by its own address.
func (a *Accounts) Upsert(acct Account) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.info[acct.Address] = acct
}

// Snapshot returns a deep copy of the full account set so a caller can
// mutate it speculatively (block validation, contract execution) without
// touching the live state until the caller chooses to Commit.
func (a *Accounts) Snapshot() map[Address]Account {
	a.mu.RLock()
	defer a.mu.RUnlock()

	overlay := make(map[Address]Account, len(a.info))
	for addr, acct := range a.info {
		overlay[addr] = acct.Clone()
	}
	return overlay
}

// Commit replaces the live set with overlay in a single step, so readers
// never observe a partially-applied block.
func (a *Accounts) Commit(overlay map[Address]Account) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.info = overlay
}

// Copy returns a list of deep copies of every known account, used when
// persisting the full state or computing total supply for tests.
func (a *Accounts) Copy() []Account {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Account, 0, len(a.info))
	for _, acct := range a.info {
		out = append(out, acct.Clone())
	}
	return out
}

// =============================================================================

// lookup returns the account for address from overlay, constructing a
// fresh one if this is the first time overlay has seen it. It is the
// helper the state transition engine uses while mutating a snapshot.
func lookup(overlay map[Address]Account, address Address) Account {
	if acct, exists := overlay[address]; exists {
		return acct
	}
	return newAccount(address)
}

// Lookup is the exported form of lookup, used by state and contract
// packages operating on a snapshot obtained from Snapshot.
func Lookup(overlay map[Address]Account, address Address) Account {
	return lookup(overlay, address)
}
