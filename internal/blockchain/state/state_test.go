package state

import (
	"context"
	"sync"
	"testing"

	"github.com/acem702/powchain/internal/blockchain/database"
	"github.com/acem702/powchain/internal/blockchain/genesis"
	"github.com/acem702/powchain/internal/blockchain/signature"
	"github.com/acem702/powchain/internal/blockchain/storage"
)

// memKV is an in-memory storage.KV test double, grounded on the same
// bucket/key contract BoltKV implements, used so these tests never
// touch disk.
type memKV struct {
	mu   sync.Mutex
	data map[string]map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]map[string][]byte)}
}

func (m *memKV) Get(bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[bucket]
	if !ok {
		return nil, storage.ErrNotFound
	}
	v, ok := b[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Put(bucket, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[bucket] == nil {
		m.data[bucket] = make(map[string][]byte)
	}
	m.data[bucket][key] = value
	return nil
}

func (m *memKV) Delete(bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[bucket], key)
	return nil
}

func (m *memKV) ForEach(bucket string, fn func(key string, value []byte) error) error {
	m.mu.Lock()
	items := map[string][]byte{}
	for k, v := range m.data[bucket] {
		items[k] = v
	}
	m.mu.Unlock()

	for k, v := range items {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *memKV) Close() error { return nil }

// failingPutKV wraps a memKV but fails every Put against failBucket,
// used to exercise spec.md §7's "a StorageError does not advance the
// in-memory head" requirement without a real disk failure.
type failingPutKV struct {
	*memKV
	failBucket string
}

func (f *failingPutKV) Put(bucket, key string, value []byte) error {
	if bucket == f.failBucket {
		return &storage.ErrStorage{Op: "put", Err: storage.ErrNotFound}
	}
	return f.memKV.Put(bucket, key, value)
}

func newTestState(t *testing.T) (*State, *signature.PrivateKey) {
	t.Helper()

	minerKey, err := signature.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	gen := genesis.Default()
	gen.InitialDifficulty = 1

	st, err := New(Config{
		Genesis:  gen,
		KV:       newMemKV(),
		MinerKey: minerKey,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return st, minerKey
}

func mineNextBlock(t *testing.T, st *State) database.Block {
	t.Helper()

	info := st.RetrieveChainInfo()
	reward := st.Genesis().BlockReward
	tx, err := database.NewTx(st.MinerAddress(), reward, database.NewBigInt(0), nil, info.LatestBlock.BlockNumber+1)
	if err != nil {
		t.Fatalf("NewTx: %v", err)
	}
	signed, err := tx.Sign(signature.MintKey())
	if err != nil {
		t.Fatalf("Sign coinbase: %v", err)
	}

	candidate := database.NewCandidateBlock(info.LatestBlock, info.Difficulty, info.LatestBlock.Timestamp+1000, signed, nil)
	mined, err := database.Mine(context.Background(), candidate, nil)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	return mined
}

func TestAcceptBlockCreditsMinerAndAdvancesHead(t *testing.T) {
	st, _ := newTestState(t)

	block := mineNextBlock(t, st)
	if err := st.AcceptBlock(block); err != nil {
		t.Fatalf("AcceptBlock: %v", err)
	}

	info := st.RetrieveChainInfo()
	if info.LatestBlock.BlockNumber != 1 {
		t.Fatalf("head block number = %d, want 1", info.LatestBlock.BlockNumber)
	}

	acct := st.RetrieveAccount(st.MinerAddress())
	if acct.Balance.Cmp(&st.Genesis().BlockReward.Int) != 0 {
		t.Fatalf("miner balance = %s, want %s", acct.Balance.String(), st.Genesis().BlockReward.String())
	}
}

func TestAcceptBlockRejectsWrongParent(t *testing.T) {
	st, _ := newTestState(t)

	block := mineNextBlock(t, st)
	block.ParentHash = "not-the-real-parent"

	if err := st.AcceptBlock(block); err == nil {
		t.Fatalf("expected rejection of a block with a mismatched parent hash")
	}
}

func TestAcceptBlockLeavesHeadUntouchedOnBlockStorageFailure(t *testing.T) {
	minerKey, err := signature.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	gen := genesis.Default()
	gen.InitialDifficulty = 1

	kv := &failingPutKV{memKV: newMemKV(), failBucket: storage.BucketBlocks}
	st, err := New(Config{Genesis: gen, KV: kv, MinerKey: minerKey})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	block := mineNextBlock(t, st)
	if err := st.AcceptBlock(block); err == nil {
		t.Fatalf("expected AcceptBlock to surface the block-storage failure")
	}

	info := st.RetrieveChainInfo()
	if info.LatestBlock.BlockNumber != 0 {
		t.Fatalf("head block number = %d, want 0 (unchanged)", info.LatestBlock.BlockNumber)
	}
	if st.RetrieveAccount(st.MinerAddress()).Balance.Sign() != 0 {
		t.Fatalf("miner balance must stay zero when the block never persisted")
	}
}

func TestAcceptBlockLeavesHeadUntouchedOnAccountStorageFailure(t *testing.T) {
	minerKey, err := signature.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	gen := genesis.Default()
	gen.InitialDifficulty = 1

	kv := &failingPutKV{memKV: newMemKV(), failBucket: storage.BucketAccounts}
	st, err := New(Config{Genesis: gen, KV: kv, MinerKey: minerKey})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	block := mineNextBlock(t, st)
	if err := st.AcceptBlock(block); err == nil {
		t.Fatalf("expected AcceptBlock to surface the account-storage failure")
	}

	info := st.RetrieveChainInfo()
	if info.LatestBlock.BlockNumber != 0 {
		t.Fatalf("head block number = %d, want 0 (unchanged)", info.LatestBlock.BlockNumber)
	}
	if st.RetrieveAccount(st.MinerAddress()).Balance.Sign() != 0 {
		t.Fatalf("miner balance must stay zero when the account write failed")
	}
}

func TestSubmitTransactionAdmitsToPool(t *testing.T) {
	st, _ := newTestState(t)

	senderKey, err := signature.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	senderAddr := database.Address(signature.AddressFromPublicKey(&senderKey.PublicKey))

	acct := st.Accounts().Query(senderAddr)
	acct.Balance = database.NewBigInt(1000)
	st.Accounts().Upsert(acct)

	recipient := database.Address(repeatHexChar("c"))
	tx, err := database.NewTx(recipient, database.NewBigInt(10), database.NewBigInt(database.MinTxFee), nil, 1)
	if err != nil {
		t.Fatalf("NewTx: %v", err)
	}
	signed, err := tx.Sign(senderKey)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := st.SubmitTransaction(signed); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	if st.RetrieveChainInfo().PoolSize != 1 {
		t.Fatalf("pool size = %d, want 1", st.RetrieveChainInfo().PoolSize)
	}
}

func repeatHexChar(c string) string {
	out := make([]byte, 64)
	for i := range out {
		out[i] = c[0]
	}
	return string(out)
}
