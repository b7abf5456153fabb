package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/acem702/powchain/internal/blockchain/genesis"
	"github.com/acem702/powchain/internal/blockchain/signature"
	"github.com/acem702/powchain/internal/blockchain/state"
	"github.com/acem702/powchain/internal/blockchain/storage"
)

// memKV is a minimal in-memory storage.KV test double so these tests
// never touch disk.
type memKV struct {
	mu   sync.Mutex
	data map[string]map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string]map[string][]byte)} }

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

type fakeBroadcaster struct {
	mu        sync.Mutex
	broadcast []any
}

func (f *fakeBroadcaster) BroadcastBlock(block any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast = append(f.broadcast, block)
	return nil
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcast)
}

func newTestWorkerState(t *testing.T, difficulty uint, enableMining bool) *state.State {
	t.Helper()

	minerKey, err := signature.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	gen := genesis.Default()
	gen.InitialDifficulty = difficulty

	st, err := state.New(state.Config{
		Genesis:      gen,
		KV:           newMemKV(),
		MinerKey:     minerKey,
		EnableMining: enableMining,
	})
	if err != nil {
		t.Fatalf("state.New: %v", err)
	}
	return st
}

func TestWorkerMinesAndBroadcastsAtLowDifficulty(t *testing.T) {
	st := newTestWorkerState(t, 1, true)
	broadcaster := &fakeBroadcaster{}

	w := Run(st, broadcaster, nil)
	defer w.Shutdown()

	deadline := time.After(10 * time.Second)
	for {
		if st.RetrieveChainInfo().LatestBlock.BlockNumber >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for a block to be mined")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if broadcaster.count() == 0 {
		t.Fatalf("expected the mined block to be broadcast")
	}
}

func TestSignalCancelMiningPreemptsAnInFlightAttempt(t *testing.T) {
	// A difficulty this high will not be solved within the test's
	// lifetime, so the only way runMiningOperation returns is via
	// SignalCancelMining pre-empting it.
	st := newTestWorkerState(t, 40, true)
	broadcaster := &fakeBroadcaster{}

	w := Run(st, broadcaster, nil)
	defer w.Shutdown()

	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.SignalCancelMining()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("SignalCancelMining did not return promptly")
	}

	if broadcaster.count() != 0 {
		t.Fatalf("an unsolvable difficulty must never produce a broadcast block")
	}
}

func TestWorkerDoesNotMineWhenMiningDisabled(t *testing.T) {
	st := newTestWorkerState(t, 1, false)
	broadcaster := &fakeBroadcaster{}

	w := Run(st, broadcaster, nil)
	defer w.Shutdown()

	time.Sleep(200 * time.Millisecond)

	if st.RetrieveChainInfo().LatestBlock.BlockNumber != 0 {
		t.Fatalf("mining must stay idle when ENABLE_MINING is false")
	}
}
