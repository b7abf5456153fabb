package state

import (
	"context"
	"testing"

	"github.com/acem702/powchain/internal/blockchain/database"
	"github.com/acem702/powchain/internal/blockchain/genesis"
	"github.com/acem702/powchain/internal/blockchain/signature"
)

// These tests drive two independent State values against each other
// directly, standing in for the gossip transport the way the teacher's
// foundation/blockchain/state/state_test.go drives two full State
// values without a real network. Relaying a message is just calling
// the receiving State's method a gossip handler would have called.

func newIntegrationState(t *testing.T, enableChainRequest bool) (*State, *signature.PrivateKey) {
	t.Helper()

	minerKey, err := signature.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	gen := genesis.Default()
	gen.InitialDifficulty = 1

	st, err := New(Config{
		Genesis:            gen,
		KV:                 newMemKV(),
		MinerKey:           minerKey,
		EnableChainRequest: enableChainRequest,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return st, minerKey
}

// mineOnTopOf mines a block extending st's current head, including any
// pending pool transactions, and returns it without applying it to any
// State — the caller relays it with AcceptBlock/HandleSyncBlock the way
// a gossip handler would.
func mineOnTopOf(t *testing.T, st *State) database.Block {
	t.Helper()

	info := st.RetrieveChainInfo()
	pending := st.Mempool().Transactions()

	reward := database.CoinbaseReward(st.Genesis().BlockReward, pending)
	coinbase, err := database.NewTx(st.MinerAddress(), reward, database.NewBigInt(0), nil, info.LatestBlock.BlockNumber+1)
	if err != nil {
		t.Fatalf("NewTx coinbase: %v", err)
	}
	signedCoinbase, err := coinbase.Sign(signature.MintKey())
	if err != nil {
		t.Fatalf("Sign coinbase: %v", err)
	}

	candidate := database.NewCandidateBlock(info.LatestBlock, info.Difficulty, info.LatestBlock.Timestamp+1000, signedCoinbase, pending)
	mined, err := database.Mine(context.Background(), candidate, nil)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	return mined
}

func fundAccount(st *State, addr database.Address, amount int64) {
	acct := st.Accounts().Query(addr)
	acct.Balance = database.NewBigInt(amount)
	st.Accounts().Upsert(acct)
}

// TestTwoNodeTransactionPropagationAndBlockSync covers spec.md §8 end
// to end scenario 2: a transaction submitted on one node reaches the
// other's pool, and a block mined on the first updates the second's
// balances identically once relayed.
func TestTwoNodeTransactionPropagationAndBlockSync(t *testing.T) {
	a, _ := newIntegrationState(t, false)
	b, _ := newIntegrationState(t, false)

	senderKey, err := signature.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	sender := database.Address(signature.AddressFromPublicKey(&senderKey.PublicKey))
	recipient := database.Address(repeatHexChar("d"))

	// Both nodes must agree on the sender's starting balance, the way
	// two nodes that replayed the same genesis would.
	fundAccount(a, sender, 1000)
	fundAccount(b, sender, 1000)

	tx, err := database.NewTx(recipient, database.NewBigInt(5), database.NewBigInt(database.MinTxFee), nil, 1)
	if err != nil {
		t.Fatalf("NewTx: %v", err)
	}
	signedTx, err := tx.Sign(senderKey)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	// A submits T; gossip's CREATE_TRANSACTION re-broadcast is exactly
	// a second SubmitTransaction call on every other open peer.
	if err := a.SubmitTransaction(signedTx); err != nil {
		t.Fatalf("a.SubmitTransaction: %v", err)
	}
	if err := b.SubmitTransaction(signedTx); err != nil {
		t.Fatalf("b.SubmitTransaction: %v", err)
	}

	if a.RetrieveChainInfo().PoolSize != 1 || b.RetrieveChainInfo().PoolSize != 1 {
		t.Fatalf("both pools should contain T after propagation")
	}

	block := mineOnTopOf(t, a)
	if err := a.AcceptBlock(block); err != nil {
		t.Fatalf("a.AcceptBlock: %v", err)
	}
	// B's gossip handler would call AcceptBlock with the same NEW_BLOCK
	// payload.
	if err := b.AcceptBlock(block); err != nil {
		t.Fatalf("b.AcceptBlock: %v", err)
	}

	for _, st := range []*State{a, b} {
		acct := st.RetrieveAccount(recipient)
		if acct.Balance.Cmp(&database.NewBigInt(5).Int) != 0 {
			t.Fatalf("recipient balance = %s, want 5", acct.Balance.String())
		}
	}
	if a.RetrieveChainInfo().PoolSize != 0 || b.RetrieveChainInfo().PoolSize != 0 {
		t.Fatalf("T must be removed from both pools once mined")
	}
}

// TestColdSyncReplicatesChain covers spec.md §8 end to end scenario 6:
// a node starting from nothing catches up to a peer's full chain via
// REQUEST_BLOCK/SEND_BLOCK and ends in the same final state.
func TestColdSyncReplicatesChain(t *testing.T) {
	a, _ := newIntegrationState(t, false)

	const height = 10
	for i := 0; i < height; i++ {
		block := mineOnTopOf(t, a)
		if err := a.AcceptBlock(block); err != nil {
			t.Fatalf("a.AcceptBlock(%d): %v", i+1, err)
		}
	}
	if a.RetrieveChainInfo().LatestBlock.BlockNumber != height {
		t.Fatalf("a did not reach height %d", height)
	}

	b, _ := newIntegrationState(t, true)
	if b.SyncState() != SyncSyncing {
		t.Fatalf("b should begin in SYNCING")
	}

	// The HANDSHAKE exchange reports A's height; B must not consider
	// itself SYNCED until it has caught up past it.
	b.RecordPeerHeight(height)
	if b.SyncState() != SyncSyncing {
		t.Fatalf("b must stay SYNCING until it passes the reported peer height")
	}

	// B's REQUEST_BLOCK/SEND_BLOCK loop: request CurrentSyncBlock,
	// apply the SEND_BLOCK response, repeat.
	for b.SyncState() == SyncSyncing {
		want := b.CurrentSyncBlock()
		block, err := a.RetrieveBlock(want)
		if err != nil {
			t.Fatalf("a.RetrieveBlock(%d): %v", want, err)
		}
		if err := b.HandleSyncBlock(block); err != nil {
			t.Fatalf("b.HandleSyncBlock(%d): %v", want, err)
		}
	}

	if b.SyncState() != SyncSynced {
		t.Fatalf("b.SyncState() = %v, want SYNCED", b.SyncState())
	}

	aInfo, bInfo := a.RetrieveChainInfo(), b.RetrieveChainInfo()
	if aInfo.LatestBlock.Hash != bInfo.LatestBlock.Hash {
		t.Fatalf("final head hashes differ: a=%s b=%s", aInfo.LatestBlock.Hash, bInfo.LatestBlock.Hash)
	}

	aMiner := a.RetrieveAccount(a.MinerAddress())
	bMiner := b.RetrieveAccount(a.MinerAddress())
	if aMiner.Balance.Cmp(&bMiner.Balance.Int) != 0 {
		t.Fatalf("miner balances differ after sync: a=%s b=%s", aMiner.Balance.String(), bMiner.Balance.String())
	}
}
