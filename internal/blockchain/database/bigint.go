package database

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// BigInt wraps math/big.Int so balances, amounts and gas never get
// silently narrowed to a machine int and always round-trip over the
// wire as a decimal string.
type BigInt struct {
	big.Int
}

// NewBigInt constructs a BigInt from an int64, for tests and genesis values.
func NewBigInt(v int64) *BigInt {
	b := BigInt{}
	b.SetInt64(v)
	return &b
}

// ParseBigInt parses a decimal string into a BigInt.
func ParseBigInt(s string) (*BigInt, error) {
	b := BigInt{}
	if _, ok := b.SetString(s, 10); !ok {
		return nil, fmt.Errorf("%q is not a valid decimal integer", s)
	}
	return &b, nil
}

// MarshalJSON renders the value as a quoted decimal string.
func (b BigInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON number.
func (b *BigInt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if _, ok := b.SetString(s, 10); !ok {
			return fmt.Errorf("%q is not a valid decimal integer", s)
		}
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("bigint: %w", err)
	}
	b.SetInt64(n)
	return nil
}

// Add returns a new BigInt set to the sum of a and b.
func Add(a, b *BigInt) *BigInt {
	r := BigInt{}
	r.Add(&a.Int, &b.Int)
	return &r
}

// Sub returns a new BigInt set to a - b.
func Sub(a, b *BigInt) *BigInt {
	r := BigInt{}
	r.Sub(&a.Int, &b.Int)
	return &r
}

// IsNegative reports whether b is strictly less than zero.
func (b *BigInt) IsNegative() bool {
	return b.Sign() < 0
}

// Clone returns a deep copy of b.
func (b *BigInt) Clone() *BigInt {
	c := BigInt{}
	c.Set(&b.Int)
	return &c
}
