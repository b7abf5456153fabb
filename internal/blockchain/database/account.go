package database

import (
	"encoding/json"
	"sort"
)

// Account represents a single entry in stateDB. It is created the
// first time an address receives a transfer and is never deleted.
type Account struct {
	Address    Address        `json:"address"`
	Balance    *BigInt        `json:"balance"`
	Body       string         `json:"body,omitempty"`
	Storage    map[string]string `json:"storage,omitempty"`
	Timestamps TimestampSet   `json:"timestamps,omitempty"`
	CodeHash   string         `json:"codeHash,omitempty"`
}

// newAccount constructs a zero-balance account for address. It is used
// the first time a transaction credits a previously unknown recipient.
func newAccount(address Address) Account {
	return Account{
		Address:    address,
		Balance:    NewBigInt(0),
		Storage:    make(map[string]string),
		Timestamps: make(TimestampSet),
	}
}

// IsContract reports whether the account has deployed contract code.
func (a Account) IsContract() bool {
	return a.Body != ""
}

// Clone returns a deep copy of the account so callers can mutate a
// snapshot without touching the live stateDB entry.
func (a Account) Clone() Account {
	c := a
	if a.Balance != nil {
		c.Balance = a.Balance.Clone()
	}
	c.Storage = make(map[string]string, len(a.Storage))
	for k, v := range a.Storage {
		c.Storage[k] = v
	}
	c.Timestamps = a.Timestamps.Clone()
	return c
}

// =============================================================================

// TimestampSet is the ordered set of transaction timestamps already
// consumed by an account, used for replay protection.
type TimestampSet map[uint64]struct{}

// Contains reports whether ts has already been consumed.
func (s TimestampSet) Contains(ts uint64) bool {
	_, ok := s[ts]
	return ok
}

// Add records ts as consumed.
func (s TimestampSet) Add(ts uint64) {
	s[ts] = struct{}{}
}

// Clone returns a copy of the set.
func (s TimestampSet) Clone() TimestampSet {
	c := make(TimestampSet, len(s))
	for ts := range s {
		c[ts] = struct{}{}
	}
	return c
}

// sorted returns the consumed timestamps in ascending order.
func (s TimestampSet) sorted() []uint64 {
	out := make([]uint64, 0, len(s))
	for ts := range s {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON renders the set as a sorted array so the wire and disk
// representation is byte-stable across nodes.
func (s TimestampSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.sorted())
}

// UnmarshalJSON reads a JSON array of timestamps into the set.
func (s *TimestampSet) UnmarshalJSON(data []byte) error {
	var list []uint64
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}

	set := make(TimestampSet, len(list))
	for _, ts := range list {
		set[ts] = struct{}{}
	}
	*s = set
	return nil
}
