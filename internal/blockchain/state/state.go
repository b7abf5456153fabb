// Package state owns stateDB and blockDB and is the only writer to
// either: it implements the state transition engine, block and
// transaction validation, difficulty retargeting, and the read-only
// query surface the out-of-scope HTTP server would call in-process.
//
// Everything here runs on the single-threaded event loop described in
// spec.md §5; the only concurrency this package introduces is the
// RWMutex guarding chain head/difficulty so the mining coordinator's
// goroutine can read a consistent snapshot without blocking the loop.
package state

import (
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/acem702/powchain/internal/blockchain/database"
	"github.com/acem702/powchain/internal/blockchain/genesis"
	"github.com/acem702/powchain/internal/blockchain/mempool"
	"github.com/acem702/powchain/internal/blockchain/signature"
	"github.com/acem702/powchain/internal/blockchain/storage"
)

// EventHandler receives human-readable progress events from every
// layer of the node, the same shim the teacher uses so the blockchain
// packages stay logging-library agnostic; cmd/node wires this to zap.
type EventHandler func(format string, args ...any)

// noopEventHandler discards every event, used when the caller does not
// care about progress logging (tests, most of all).
func noopEventHandler(string, ...any) {}

// Worker is the interface the mining coordinator implements. State
// holds one so the gossip handler can pre-empt mining without
// importing the worker package (which itself imports state).
type Worker interface {
	SignalStartMining()
	SignalCancelMining()
	Shutdown()
}

// noopWorker is installed until a real Worker registers itself, so
// calling State methods before Run is safe in tests.
type noopWorker struct{}

func (noopWorker) SignalStartMining()  {}
func (noopWorker) SignalCancelMining() {}
func (noopWorker) Shutdown()           {}

// Config configures a new State.
type Config struct {
	Genesis            genesis.Genesis
	KV                 storage.KV
	MinerKey           *ecdsa.PrivateKey
	EnableMining       bool
	EnableLogging      bool
	EnableChainRequest bool
	EvHandler          EventHandler
}

// State is the node's authoritative view of the chain: the genesis
// parameters, the persisted block and account stores, the mempool,
// and the mutable chain head/difficulty.
type State struct {
	genesis       genesis.Genesis
	kv            storage.KV
	minerKey      *ecdsa.PrivateKey
	minerAddress  database.Address
	enableMining  bool
	enableLogging bool
	evHandler     EventHandler

	accounts *database.Accounts
	mempool  *mempool.Mempool

	mu                sync.RWMutex
	latestBlock       database.Block
	latestSyncBlock   *database.Block
	difficulty        uint
	syncState         SyncState
	currentSyncBlock  uint64
	highestKnownPeer  uint64

	worker Worker
}

// New constructs a State, loading any persisted blocks from cfg.KV and
// replaying them on top of the genesis balances so the node resumes
// exactly where it left off; accounts are rebuilt by the replay, not
// read back from stateDB.
func New(cfg Config) (*State, error) {
	ev := cfg.EvHandler
	if ev == nil {
		ev = noopEventHandler
	}

	var minerAddress database.Address
	if cfg.MinerKey != nil {
		minerAddress = database.Address(signature.AddressFromPublicKey(&cfg.MinerKey.PublicKey))
	}

	s := &State{
		genesis:       cfg.Genesis,
		kv:            cfg.KV,
		minerKey:      cfg.MinerKey,
		minerAddress:  minerAddress,
		enableMining:  cfg.EnableMining,
		enableLogging: cfg.EnableLogging,
		evHandler:     ev,
		accounts:      database.NewAccounts(),
		mempool:       mempool.New(),
		worker:        noopWorker{},
	}

	if err := s.loadGenesisBalances(); err != nil {
		return nil, err
	}

	if err := s.replayPersistedChain(); err != nil {
		return nil, fmt.Errorf("state: replay persisted chain: %w", err)
	}

	if cfg.EnableChainRequest {
		s.beginSync()
	}

	return s, nil
}

func (s *State) loadGenesisBalances() error {
	for addr, balance := range s.genesis.Balances {
		address := database.Address(addr)
		if err := address.RequireValid(); err != nil {
			return fmt.Errorf("state: genesis balance: %w", err)
		}
		acct := s.accounts.Query(address)
		acct.Balance = balance.Clone()
		s.accounts.Upsert(acct)
	}

	s.latestBlock = s.genesis.Block()
	s.difficulty = s.genesis.InitialDifficulty
	return nil
}

// RegisterWorker installs the mining coordinator. Called once, by the
// worker package's Run function, mirroring the teacher's
// state.Worker = &w wiring.
func (s *State) RegisterWorker(w Worker) {
	s.worker = w
}

// MinerAddress returns the address mined blocks will credit.
func (s *State) MinerAddress() database.Address {
	return s.minerAddress
}

// MinerKey returns the key the mining coordinator signs coinbases
// with.
func (s *State) MinerKey() *ecdsa.PrivateKey {
	return s.minerKey
}

// IsMiningAllowed reports whether ENABLE_MINING was set and the node
// is not currently mid-sync.
func (s *State) IsMiningAllowed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enableMining && s.syncState != SyncSyncing
}

// Mempool exposes the pending transaction pool to the worker and
// gossip packages.
func (s *State) Mempool() *mempool.Mempool {
	return s.mempool
}

// Accounts exposes the live account set. Callers outside this package
// should prefer RetrieveAccount; this exists for the worker package,
// which needs the same Accounts the state transition engine uses.
func (s *State) Accounts() *database.Accounts {
	return s.accounts
}

// Genesis returns the chain's genesis parameters.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

func (s *State) logf(format string, args ...any) {
	if s.enableLogging {
		s.evHandler(format, args...)
	}
}
