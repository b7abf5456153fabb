// Package canon builds the exact byte sequences the blockchain hashes
// and signs. Plain encoding/json struct marshalling is not used for
// this because Go gives no cross-version guarantee on field order or
// map key order, and the wire protocol requires both to be fixed so
// every implementation derives the same hash from the same value.
package canon

import (
	"sort"
	"strconv"
	"strings"
)

// Join concatenates canonical fields with "|", producing the exact
// byte sequence fed to SHA-256 for hashing or signing. Fields are not
// escaped: a free-text field (contract source, storage values) that
// contains "|" is joined as-is.
func Join(fields ...string) []byte {
	return []byte(strings.Join(fields, "|"))
}

// SortedMap renders a string->string map in lexicographic key order,
// the form spec'd for the additionalData.storageMap field and for any
// contract storage included in a preimage.
func SortedMap(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+m[k])
	}
	return strings.Join(parts, ",")
}

// Uint renders a uint64 as a decimal string, the form spec'd for the
// block number, timestamp, nonce and difficulty fields.
func Uint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
