package database

import "fmt"

// Address is a 64 hex-character SHA-256 digest of an account's public
// key. It identifies an account in stateDB.
type Address string

// IsValid reports whether a has the 64 hex character shape required of
// a real account address. The MINT address recovered by
// signature.MintAddress is itself a well-formed SHA-256 digest, so it
// satisfies this check like any other address; what makes it special
// is enforced in Tx.Validate, not here.
func (a Address) IsValid() bool {
	const length = 64

	if len(a) != length {
		return false
	}
	for _, c := range []byte(a) {
		if !isHexCharacter(c) {
			return false
		}
	}
	return true
}

func isHexCharacter(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f')
}

func (a Address) String() string {
	return string(a)
}

// RequireValid returns an error naming the offending address when it
// is not a well-formed 64 hex character account id.
func (a Address) RequireValid() error {
	if !a.IsValid() {
		return fmt.Errorf("%q is not a valid 64 hex character address", string(a))
	}
	return nil
}
