// Package worker implements the mining coordinator: a goroutine that
// mines candidate blocks and can be pre-empted the moment a remote
// block arrives, per spec.md §4.7's "callback-driven mining" design
// (the REDESIGN FLAGS item, adopted rather than the source's
// kill-and-respawn OS process/thread framing — the teacher's own
// mining worker is already goroutine + context.Context based).
package worker

import (
	"sync"

	"github.com/acem702/powchain/internal/blockchain/state"
)

// Broadcaster is the subset of the gossip server the worker needs:
// the ability to announce a newly mined block to peers. It is a
// narrow interface so this package never imports gossip (which itself
// imports state, and would otherwise cycle back here).
type Broadcaster interface {
	BroadcastBlock(block any) error
}

// Worker manages the proof-of-work mining loop for the node.
type Worker struct {
	state        *state.State
	broadcaster  Broadcaster
	wg           sync.WaitGroup
	shut         chan struct{}
	startMining  chan bool
	cancelMining chan bool
	evHandler    state.EventHandler
}

// Run constructs a Worker, registers it with state so the gossip
// handler can signal it, and starts the mining goroutine.
func Run(st *state.State, broadcaster Broadcaster, evHandler state.EventHandler) *Worker {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	w := &Worker{
		state:        st,
		broadcaster:  broadcaster,
		shut:         make(chan struct{}),
		startMining:  make(chan bool, 1),
		cancelMining: make(chan bool, 1),
		evHandler:    evHandler,
	}

	st.RegisterWorker(w)

	w.wg.Add(1)
	started := make(chan struct{})
	go func() {
		defer w.wg.Done()
		close(started)
		w.miningOperations()
	}()
	<-started

	if st.IsMiningAllowed() {
		w.SignalStartMining()
	}

	return w
}

// Shutdown stops the mining goroutine and waits for it to exit.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.SignalCancelMining()
	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining requests a mining attempt. If one is already
// queued, this is a no-op: at most one pending signal is ever needed.
func (w *Worker) SignalStartMining() {
	if !w.state.IsMiningAllowed() {
		return
	}

	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// SignalCancelMining pre-empts an in-flight mining attempt, per
// spec.md §4.7's pre-emption contract: the gossip handler calls this
// the instant it accepts a remote block at the next height.
func (w *Worker) SignalCancelMining() {
	select {
	case w.cancelMining <- true:
	default:
	}
	w.evHandler("worker: SignalCancelMining: signaled")
}

func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
