package database

import (
	"context"
	"testing"

	"github.com/acem702/powchain/internal/blockchain/signature"
)

func coinbaseTx(t *testing.T, reward int64) Tx {
	t.Helper()
	tx, err := NewTx(Address(signature.MintAddress()), NewBigInt(reward), NewBigInt(0), nil, 0)
	if err != nil {
		t.Fatalf("NewTx coinbase: %v", err)
	}
	signed, err := tx.Sign(signature.MintKey())
	if err != nil {
		t.Fatalf("Sign coinbase: %v", err)
	}
	return signed
}

func TestMineProducesASolvedHash(t *testing.T) {
	genesis := Block{BlockNumber: 0, Hash: GenesisParentHash, ParentHash: GenesisParentHash}
	candidate := NewCandidateBlock(genesis, 1, 1000, coinbaseTx(t, 100), nil)

	mined, err := Mine(context.Background(), candidate, nil)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}

	if leadingZeroNibbles(mined.Hash) < 1 {
		t.Fatalf("mined hash %q does not satisfy difficulty 1", mined.Hash)
	}
	if mined.computeHash() != mined.Hash {
		t.Fatalf("stored hash does not match the recomputed hash")
	}
}

func TestMineIsCancellable(t *testing.T) {
	genesis := Block{BlockNumber: 0, Hash: GenesisParentHash, ParentHash: GenesisParentHash}
	// An unreachable difficulty guarantees Mine would otherwise spin forever.
	candidate := NewCandidateBlock(genesis, 64, 1000, coinbaseTx(t, 100), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Mine(ctx, candidate, nil); err == nil {
		t.Fatalf("expected Mine to observe an already-cancelled context")
	}
}

func TestValidateHeaderAcceptsAWellFormedBlock(t *testing.T) {
	genesis := Block{BlockNumber: 0, Hash: GenesisParentHash, ParentHash: GenesisParentHash}
	candidate := NewCandidateBlock(genesis, 1, 1000, coinbaseTx(t, 100), nil)

	mined, err := Mine(context.Background(), candidate, nil)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}

	if err := mined.ValidateHeader(genesis, 1, NewBigInt(100), 2000, 60_000); err != nil {
		t.Fatalf("ValidateHeader: %v", err)
	}
}

func TestValidateHeaderRejectsTamperedHash(t *testing.T) {
	genesis := Block{BlockNumber: 0, Hash: GenesisParentHash, ParentHash: GenesisParentHash}
	candidate := NewCandidateBlock(genesis, 1, 1000, coinbaseTx(t, 100), nil)

	mined, err := Mine(context.Background(), candidate, nil)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}

	mined.Nonce++ // invalidates the previously solved hash without recomputing it

	if err := mined.ValidateHeader(genesis, 1, NewBigInt(100), 2000, 60_000); err == nil {
		t.Fatalf("expected rejection of a block whose stored hash no longer matches")
	}
}

func TestValidateHeaderRejectsWrongCoinbaseAmount(t *testing.T) {
	genesis := Block{BlockNumber: 0, Hash: GenesisParentHash, ParentHash: GenesisParentHash}
	candidate := NewCandidateBlock(genesis, 1, 1000, coinbaseTx(t, 999), nil)

	mined, err := Mine(context.Background(), candidate, nil)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}

	if err := mined.ValidateHeader(genesis, 1, NewBigInt(100), 2000, 60_000); err == nil {
		t.Fatalf("expected rejection of a coinbase paying the wrong reward")
	}
}
