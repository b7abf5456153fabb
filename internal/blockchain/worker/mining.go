package worker

import (
	"context"
	"sync"
	"time"

	"github.com/acem702/powchain/internal/blockchain/database"
	"github.com/acem702/powchain/internal/blockchain/signature"
)

// miningOperations is the goroutine loop that waits for a signal to
// mine and, unless shutting down, runs one attempt at a time.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: started")
	defer w.evHandler("worker: miningOperations: completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			return
		}
	}
}

// runMiningOperation implements spec.md §4.7's mining loop: select
// transactions, build the coinbase and candidate block, mine with
// cancellation, and on success hand the block to AcceptBlock and the
// broadcaster. Pre-emption (step 5) is implemented by racing the
// miner goroutine against the cancelMining channel exactly the way
// the teacher's runMiningOperation does.
func (w *Worker) runMiningOperation() {
	w.evHandler("worker: runMiningOperation: started")
	defer w.evHandler("worker: runMiningOperation: completed")

	if !w.state.IsMiningAllowed() {
		w.evHandler("worker: runMiningOperation: mining turned off or syncing")
		return
	}

	candidate, err := w.buildCandidate()
	if err != nil {
		w.evHandler("worker: runMiningOperation: build candidate: %s", err)
		return
	}

	defer func() {
		if w.state.Mempool().Count() > 0 && w.state.IsMiningAllowed() {
			w.SignalStartMining()
		}
	}()

	select {
	case <-w.cancelMining:
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		select {
		case <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: CANCEL: requested")
		case <-ctx.Done():
		}
	}()

	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		start := time.Now()
		block, err := database.Mine(ctx, candidate, func(attempts uint64) {
			w.evHandler("worker: runMiningOperation: attempts[%d]", attempts)
		})
		w.evHandler("worker: runMiningOperation: duration[%v]", time.Since(start))

		if err != nil {
			if ctx.Err() != nil {
				w.evHandler("worker: runMiningOperation: CANCELLED")
			} else {
				w.evHandler("worker: runMiningOperation: ERROR: %s", err)
			}
			return
		}

		w.acceptMinedBlock(block)
	}()

	wg.Wait()
}

// buildCandidate selects pool transactions, constructs and signs the
// coinbase, and assembles the unmined block header.
func (w *Worker) buildCandidate() (database.Block, error) {
	info := w.state.RetrieveChainInfo()
	genesis := w.state.Genesis()

	selected := w.state.Mempool().SelectForBlock(genesis.BlockGasLimit)

	reward := database.CoinbaseReward(genesis.BlockReward, selected)
	coinbase, err := database.NewTx(w.state.MinerAddress(), reward, database.NewBigInt(0), nil, uint64(time.Now().UnixMilli()))
	if err != nil {
		return database.Block{}, err
	}
	coinbase, err = coinbase.Sign(signature.MintKey())
	if err != nil {
		return database.Block{}, err
	}

	candidate := database.NewCandidateBlock(info.LatestBlock, info.Difficulty, uint64(time.Now().UnixMilli()), coinbase, selected)
	return candidate, nil
}

// acceptMinedBlock commits a successfully mined block locally and
// broadcasts it to peers. If AcceptBlock fails — most likely because a
// remote block for the same height was accepted a moment earlier —
// the locally mined block is simply discarded, per spec.md §4.7 step 5.
func (w *Worker) acceptMinedBlock(block database.Block) {
	if err := w.state.AcceptBlock(block); err != nil {
		w.evHandler("worker: acceptMinedBlock: discarding locally mined block: %s", err)
		return
	}

	w.evHandler("worker: acceptMinedBlock: MINED: blk[%d]: hash[%s]", block.BlockNumber, block.Hash)

	if w.broadcaster == nil {
		return
	}
	if err := w.broadcaster.BroadcastBlock(block); err != nil {
		w.evHandler("worker: acceptMinedBlock: broadcast: %s", err)
	}
}
