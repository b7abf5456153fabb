// Package signature provides the cryptographic primitives the chain
// needs: SHA-256 hashing, secp256k1 ECDSA signing/recovery, and address
// derivation. It knows nothing about transactions or blocks; callers
// hand it the canonical preimage bytes built by the canon package.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// PrivateKey is the node/wallet signing key. It is a plain alias for
// crypto/ecdsa.PrivateKey, the key type go-ethereum's crypto package
// works with.
type PrivateKey = ecdsa.PrivateKey

// mintKeyHex is the well-known MINT private key (glossary: "value
// 0x...01"). It is permitted only as the signer of a block's coinbase.
const mintKeyHex = "0000000000000000000000000000000000000000000000000000000000000001"

var mintKey = func() *ecdsa.PrivateKey {
	key, err := crypto.HexToECDSA(mintKeyHex)
	if err != nil {
		panic("signature: invalid mint key: " + err.Error())
	}
	return key
}()

// MintKey returns the shared MINT signer used for every coinbase.
func MintKey() *ecdsa.PrivateKey {
	return mintKey
}

// MintAddress returns the address recovered from the MINT key. It is
// the only sender permitted in the coinbase slot, and is not permitted
// anywhere else in a block.
func MintAddress() string {
	return AddressFromPublicKey(&mintKey.PublicKey)
}

// GenerateKey creates a fresh secp256k1 key pair for a new account.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// KeyFromHex parses a hex-encoded private key, as read from the
// PRIVATE_KEY configuration value or a wallet file.
func KeyFromHex(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
}

// LoadKey reads a private key from a go-ethereum keyfile on disk, the
// same format the wallet CLI's generate command writes.
func LoadKey(path string) (*ecdsa.PrivateKey, error) {
	return crypto.LoadECDSA(path)
}

// SaveKey writes key to path in the go-ethereum keyfile format.
func SaveKey(path string, key *ecdsa.PrivateKey) error {
	return crypto.SaveECDSA(path, key)
}

// AddressFromPublicKey derives the 64 hex character account address
// for a public key: SHA-256 of the uncompressed public key bytes. This
// departs from the teacher's Keccak/20-byte Ethereum address on
// purpose, per the data model's address definition.
func AddressFromPublicKey(pub *ecdsa.PublicKey) string {
	raw := crypto.FromECDSAPub(pub)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Hash returns the lowercase hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Sign produces a recoverable ECDSA signature over the SHA-256 digest
// of data. The recovery id is returned as v so FromAddress can later
// recover the signer's public key from the signature alone.
func Sign(data []byte, key *ecdsa.PrivateKey) (v, r, s *big.Int, err error) {
	digest := sha256.Sum256(data)

	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, nil, nil, err
	}

	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:64])
	v = new(big.Int).SetBytes([]byte{sig[64]})
	return v, r, s, nil
}

// VerifySignatureValues checks the shape of a signature before it is
// used for recovery: the recovery id must be 0 or 1, and r/s must be
// in the curve's valid range.
func VerifySignatureValues(v, r, s *big.Int) error {
	if v == nil || r == nil || s == nil {
		return errors.New("signature: missing component")
	}

	recoveryID := v.Uint64()
	if recoveryID != 0 && recoveryID != 1 {
		return errors.New("signature: invalid recovery id")
	}
	if !crypto.ValidateSignatureValues(byte(recoveryID), r, s, false) {
		return errors.New("signature: invalid signature values")
	}
	return nil
}

// FromAddress recovers the address that produced (v, r, s) over data.
func FromAddress(data []byte, v, r, s *big.Int) (string, error) {
	pub, err := recoverPublicKey(data, v, r, s)
	if err != nil {
		return "", err
	}
	return AddressFromPublicKey(pub), nil
}

func recoverPublicKey(data []byte, v, r, s *big.Int) (*ecdsa.PublicKey, error) {
	if err := VerifySignatureValues(v, r, s); err != nil {
		return nil, err
	}

	digest := sha256.Sum256(data)
	sig := toSignatureBytes(v, r, s)
	return crypto.SigToPub(digest[:], sig)
}

// toSignatureBytes packs (v, r, s) into the 65 byte [R|S|V] form
// crypto.SigToPub expects.
func toSignatureBytes(v, r, s *big.Int) []byte {
	sig := make([]byte, 65)

	rBytes := r.Bytes()
	copy(sig[32-len(rBytes):32], rBytes)

	sBytes := s.Bytes()
	copy(sig[64-len(sBytes):64], sBytes)

	sig[64] = byte(v.Uint64())
	return sig
}

// SignatureHex renders (v, r, s) as a single hex string, used when a
// transaction needs to show its signature in logs or tooling output.
func SignatureHex(v, r, s *big.Int) string {
	return hex.EncodeToString(toSignatureBytes(v, r, s))
}
