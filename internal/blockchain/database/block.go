package database

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/acem702/powchain/internal/blockchain/canon"
	"github.com/acem702/powchain/internal/blockchain/signature"
)

// GenesisParentHash is the fixed constant parentHash of the genesis
// block, per the data model's block invariants.
const GenesisParentHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ErrInvalidBlock is the sentinel wrapped by every block validation
// failure.
var ErrInvalidBlock = errors.New("invalid block")

func invalidBlock(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrInvalidBlock)
}

// =============================================================================

// Block is a batch of transactions plus the proof-of-work header
// linking it to its parent. Transactions[0] is always the coinbase.
type Block struct {
	BlockNumber  uint64  `json:"blockNumber"`
	Timestamp    uint64  `json:"timestamp"`
	Transactions []Tx    `json:"transactions"`
	Difficulty   uint    `json:"difficulty"`
	ParentHash   string  `json:"parentHash"`
	Nonce        uint64  `json:"nonce"`
	Hash         string  `json:"hash"`
}

// fixedPreimage returns the byte sequence that does not change across
// nonce attempts: every header field except hash and nonce, plus the
// ordered list of transaction hashes. The mining loop appends the
// varying nonce to this once-computed prefix on every attempt instead
// of re-encoding the whole block, the same "fixed prefix + varying
// suffix" trick the small JS reference chains in this space use.
func (b Block) fixedPreimage() []byte {
	hashes := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.Hash()
	}

	return canon.Join(
		canon.Uint(b.BlockNumber),
		canon.Uint(b.Timestamp),
		strings.Join(hashes, ","),
		canon.Uint(uint64(b.Difficulty)),
		b.ParentHash,
	)
}

// computeHash returns the hash of the block at its current nonce.
func (b Block) computeHash() string {
	preimage := append(b.fixedPreimage(), []byte("|"+canon.Uint(b.Nonce))...)
	return signature.Hash(preimage)
}

// leadingZeroNibbles reports how many leading hex-zero nibbles hash
// has.
func leadingZeroNibbles(hash string) int {
	n := 0
	for n < len(hash) && hash[n] == '0' {
		n++
	}
	return n
}

// isHashSolved reports whether hash satisfies difficulty.
func isHashSolved(difficulty uint, hash string) bool {
	return leadingZeroNibbles(hash) >= int(difficulty)
}

// =============================================================================

// NewCandidateBlock constructs the next block's header and coinbase,
// ready for mining, but does not search for a nonce.
func NewCandidateBlock(parent Block, difficulty uint, timestamp uint64, coinbase Tx, rest []Tx) Block {
	txs := make([]Tx, 0, len(rest)+1)
	txs = append(txs, coinbase)
	txs = append(txs, rest...)

	return Block{
		BlockNumber:  parent.BlockNumber + 1,
		Timestamp:    timestamp,
		Transactions: txs,
		Difficulty:   difficulty,
		ParentHash:   parent.Hash,
	}
}

// Mine searches for a nonce that solves the block's proof-of-work
// puzzle, returning the completed block. It is cancellable via ctx so
// the mining coordinator can pre-empt a search when a remote block
// arrives first.
func Mine(ctx context.Context, candidate Block, progress func(attempts uint64)) (Block, error) {
	b := candidate

	start, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return Block{}, err
	}
	b.Nonce = start.Uint64()

	prefix := b.fixedPreimage()

	var attempts uint64
	for {
		attempts++
		if progress != nil && attempts%1_000_000 == 0 {
			progress(attempts)
		}

		if err := ctx.Err(); err != nil {
			return Block{}, err
		}

		preimage := append(append([]byte{}, prefix...), []byte("|"+canon.Uint(b.Nonce))...)
		hash := signature.Hash(preimage)
		if isHashSolved(b.Difficulty, hash) {
			b.Hash = hash
			return b, nil
		}

		b.Nonce++
	}
}

// CoinbaseReward sums the reward paid to a block's coinbase: the fixed
// block reward plus every non-coinbase transaction's gas and
// contractGas, per the data model's coinbase invariant.
func CoinbaseReward(blockReward *BigInt, rest []Tx) *BigInt {
	total := blockReward.Clone()
	for _, tx := range rest {
		total = Add(total, tx.Gas)
		total = Add(total, contractGasOf(tx))
	}
	return total
}

// ValidateHeader checks everything about a block that does not require
// executing its transactions against state: number/parent linkage,
// timestamp monotonicity, difficulty, proof-of-work, and coinbase shape.
// Transaction execution is the caller's job (see the state package),
// because it requires a stateDB snapshot this package does not own.
func (b Block) ValidateHeader(parent Block, expectedDifficulty uint, blockReward *BigInt, now uint64, allowedSkewMillis uint64) error {
	if b.BlockNumber != parent.BlockNumber+1 {
		return invalidBlock(fmt.Sprintf("block number %d is not the next number after %d", b.BlockNumber, parent.BlockNumber))
	}
	if b.ParentHash != parent.Hash {
		return invalidBlock("parentHash does not match the current head")
	}
	if b.Timestamp < parent.Timestamp {
		return invalidBlock("timestamp precedes parent block")
	}
	if b.Timestamp > now+allowedSkewMillis {
		return invalidBlock("timestamp is too far in the future")
	}
	if b.Difficulty != expectedDifficulty {
		return invalidBlock(fmt.Sprintf("difficulty %d does not match expected %d", b.Difficulty, expectedDifficulty))
	}

	hash := b.computeHash()
	if hash != b.Hash {
		return invalidBlock("recomputed hash does not match claimed hash")
	}
	if !isHashSolved(b.Difficulty, hash) {
		return invalidBlock("hash does not satisfy the block's difficulty")
	}

	if err := b.validateCoinbase(blockReward); err != nil {
		return err
	}

	return nil
}

// validateCoinbase checks that transaction 0 is a well-formed
// coinbase: signed by MINT, amount equal to the block reward plus the
// sum of every other transaction's gas and contractGas.
func (b Block) validateCoinbase(blockReward *BigInt) error {
	if len(b.Transactions) == 0 {
		return invalidBlock("block has no transactions")
	}

	coinbase := b.Transactions[0]
	if !coinbase.IsCoinbase() {
		return invalidBlock("transaction 0 is not signed by the MINT key")
	}

	rest := b.Transactions[1:]
	expected := CoinbaseReward(blockReward, rest)
	if coinbase.Amount.Cmp(&expected.Int) != 0 {
		return invalidBlock(fmt.Sprintf("coinbase amount %s does not equal expected reward %s", coinbase.Amount.String(), expected.String()))
	}

	for _, tx := range rest {
		if tx.IsCoinbase() {
			return invalidBlock("only transaction 0 may be signed by the MINT key")
		}
	}

	return nil
}

// GasUsed sums the contractGas declared by every non-coinbase
// transaction, checked against BLOCK_GAS_LIMIT.
func GasUsed(rest []Tx) *BigInt {
	total := NewBigInt(0)
	for _, tx := range rest {
		total = Add(total, contractGasOf(tx))
	}
	return total
}
