package database

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/acem702/powchain/internal/blockchain/canon"
	"github.com/acem702/powchain/internal/blockchain/signature"
)

// MinTxFee and MinContractFee are the fixed minimum fees a
// transaction must declare. They live here, rather than in genesis,
// because Validate needs them and takes no genesis parameters.
const (
	MinTxFee       = 1
	MinContractFee = 1
)

// ErrInvalidTransaction is the sentinel wrapped by every transaction
// validation failure, so callers can use errors.Is to tell a bad
// transaction apart from a storage or internal error.
var ErrInvalidTransaction = errors.New("invalid transaction")

func invalidTx(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrInvalidTransaction)
}

// =============================================================================

// Tx is the transaction as exchanged over the wire and recorded inside
// a block. recipient/amount/gas/timestamp are always present;
// additionalData is only present on a contract deploy or call.
type Tx struct {
	Recipient      Address         `json:"recipient"`
	Amount         *BigInt         `json:"amount"`
	Gas            *BigInt         `json:"gas"`
	AdditionalData *AdditionalData `json:"additionalData,omitempty"`
	Timestamp      uint64          `json:"timestamp"`
	V              *big.Int        `json:"v"`
	R              *big.Int        `json:"r"`
	S              *big.Int        `json:"s"`
}

// txWire mirrors Tx but keeps additionalData as a loosely-typed JSON
// object, matching the wire format: the field's keys are not fixed
// across transactions, so it is decoded generically and only then
// converted into the typed AdditionalData via mapstructure.
type txWire struct {
	Recipient      Address        `json:"recipient"`
	Amount         *BigInt        `json:"amount"`
	Gas            *BigInt        `json:"gas"`
	AdditionalData map[string]any `json:"additionalData,omitempty"`
	Timestamp      uint64         `json:"timestamp"`
	V              *big.Int       `json:"v"`
	R              *big.Int       `json:"r"`
	S              *big.Int       `json:"s"`
}

// UnmarshalJSON decodes the loosely-typed additionalData object into a
// typed AdditionalData before the rest of the chain ever sees it.
func (tx *Tx) UnmarshalJSON(data []byte) error {
	var w txWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	ad, err := DecodeAdditionalData(w.AdditionalData)
	if err != nil {
		return fmt.Errorf("tx: decode additionalData: %w", err)
	}

	tx.Recipient = w.Recipient
	tx.Amount = w.Amount
	tx.Gas = w.Gas
	tx.AdditionalData = ad
	tx.Timestamp = w.Timestamp
	tx.V = w.V
	tx.R = w.R
	tx.S = w.S
	return nil
}

// NewTx constructs an unsigned transaction. amount and gas must be
// non-negative; Validate repeats that check for transactions that
// arrive over the wire without passing through NewTx.
func NewTx(recipient Address, amount, gas *BigInt, additionalData *AdditionalData, timestampMillis uint64) (Tx, error) {
	if err := recipient.RequireValid(); err != nil {
		return Tx{}, err
	}
	if amount == nil || amount.IsNegative() {
		return Tx{}, invalidTx("amount must be a non-negative integer")
	}
	if gas == nil || gas.IsNegative() {
		return Tx{}, invalidTx("gas must be a non-negative integer")
	}

	return Tx{
		Recipient:      recipient,
		Amount:         amount,
		Gas:            gas,
		AdditionalData: additionalData,
		Timestamp:      timestampMillis,
	}, nil
}

// signPreimage returns the canonical byte sequence signed over and
// hashed: every field except the signature itself, in fixed order,
// with additionalData's storage map rendered in lexicographic key
// order. This is bit-for-bit what spec.md §4.1 requires.
func (tx Tx) signPreimage() []byte {
	contractGas := "0"
	scBody := ""
	storage := ""
	if tx.AdditionalData != nil {
		if tx.AdditionalData.ContractGas != nil {
			contractGas = tx.AdditionalData.ContractGas.String()
		}
		scBody = tx.AdditionalData.SCBody
		storage = canon.SortedMap(tx.AdditionalData.StorageMap)
	}

	return canon.Join(
		string(tx.Recipient),
		tx.Amount.String(),
		tx.Gas.String(),
		contractGas,
		scBody,
		storage,
		canon.Uint(tx.Timestamp),
	)
}

// Hash returns the transaction's identifying hash: SHA-256 of the same
// preimage used for signing. It identifies the transaction in a
// block's mining preimage and in log output, and never changes once
// the transaction is constructed. The mempool keys entries by
// sender:timestamp instead.
func (tx Tx) Hash() string {
	return signature.Hash(tx.signPreimage())
}

// Sign signs tx with key and returns the signed copy. The MINT key is
// only ever passed here by the mining coordinator building a coinbase.
func (tx Tx) Sign(key *ecdsa.PrivateKey) (Tx, error) {
	v, r, s, err := signature.Sign(tx.signPreimage(), key)
	if err != nil {
		return Tx{}, err
	}

	signed := tx
	signed.V, signed.R, signed.S = v, r, s
	return signed, nil
}

// FromAddress recovers the sender address embedded in tx's signature.
// There is no separate public-key field on the wire: the signature
// alone is enough to recover it, per spec.md §4.2.
func (tx Tx) FromAddress() (Address, error) {
	if tx.V == nil || tx.R == nil || tx.S == nil {
		return "", invalidTx("transaction is not signed")
	}

	addr, err := signature.FromAddress(tx.signPreimage(), tx.V, tx.R, tx.S)
	if err != nil {
		return "", fmt.Errorf("%s: %w", err, ErrInvalidTransaction)
	}
	return Address(addr), nil
}

// IsCoinbase reports whether tx was signed by the MINT key, i.e. it is
// only valid in index 0 of a block.
func (tx Tx) IsCoinbase() bool {
	from, err := tx.FromAddress()
	if err != nil {
		return false
	}
	return from == Address(signature.MintAddress())
}

// Validate implements spec.md §4.2's isValid: signature, sender
// existence, balance sufficiency, replay protection, and fee floors.
// A coinbase transaction (sender == MINT) skips the balance/replay
// checks that don't apply to it; the caller is responsible for
// confirming it only appears at index 0 with the correct reward.
func (tx Tx) Validate(accounts *Accounts) error {
	if err := tx.Recipient.RequireValid(); err != nil {
		return fmt.Errorf("%s: %w", err, ErrInvalidTransaction)
	}
	if tx.Amount == nil || tx.Amount.IsNegative() {
		return invalidTx("amount must be a non-negative integer")
	}
	if tx.Gas == nil || tx.Gas.IsNegative() {
		return invalidTx("gas must be a non-negative integer")
	}
	if tx.Gas.Cmp(big.NewInt(MinTxFee)) < 0 {
		return invalidTx("gas is below the minimum transaction fee")
	}
	if tx.AdditionalData.IsContractCall() {
		if tx.AdditionalData.ContractGas.IsNegative() {
			return invalidTx("contractGas must be a non-negative integer")
		}
		if tx.AdditionalData.ContractGas.Cmp(big.NewInt(MinContractFee)) < 0 {
			return invalidTx("contractGas is below the minimum contract fee")
		}
	}

	from, err := tx.FromAddress()
	if err != nil {
		return err
	}

	if from == Address(signature.MintAddress()) {
		return nil
	}

	if !accounts.Exists(from) {
		return invalidTx("sender account does not exist")
	}

	sender := accounts.Query(from)
	if sender.Timestamps.Contains(tx.Timestamp) {
		return invalidTx("transaction timestamp has already been consumed")
	}

	total := Add(Add(tx.Amount, tx.Gas), contractGasOf(tx))
	if sender.Balance.Cmp(&total.Int) < 0 {
		return invalidTx("sender balance is insufficient")
	}

	return nil
}

// contractGasOf returns tx's declared contractGas, or zero when the
// transaction carries no additionalData.
func contractGasOf(tx Tx) *BigInt {
	if tx.AdditionalData != nil && tx.AdditionalData.ContractGas != nil {
		return tx.AdditionalData.ContractGas
	}
	return NewBigInt(0)
}

// TotalCost returns amount + gas + contractGas, the quantity debited
// from the sender's balance when this transaction is applied.
func (tx Tx) TotalCost() *BigInt {
	return Add(Add(tx.Amount, tx.Gas), contractGasOf(tx))
}

// String implements fmt.Stringer for logging.
func (tx Tx) String() string {
	from, err := tx.FromAddress()
	if err != nil {
		from = "unknown"
	}
	return fmt.Sprintf("%s->%s:%s@%d", from, tx.Recipient, tx.Amount.String(), tx.Timestamp)
}
