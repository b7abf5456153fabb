package gossip

import (
	"context"
	"time"

	"github.com/acem702/powchain/internal/blockchain/state"
)

// requestBlock sends REQUEST_BLOCK(number) to every currently open
// peer.
func (s *Server) requestBlock(number uint64) {
	msg, err := NewMessage(MessageRequestBlock, RequestBlockPayload{
		BlockNumber:    number,
		RequestAddress: s.address,
	})
	if err != nil {
		return
	}
	s.peers.Broadcast(msg)
}

// RunSync drives spec.md §4.8's initial sync loop: while the node is
// SYNCING, periodically re-request the current height from every open
// peer with a fixed inter-peer delay, per spec.md §5's pacing note.
// Responses are handled asynchronously by handleSendBlock, which also
// eagerly requests the next height; this loop exists only to retry a
// height no peer has answered yet (e.g. because the only peer that
// had it disconnected) and to kick off the very first request.
func (s *Server) RunSync(ctx context.Context) {
	if s.state.SyncState() != state.SyncSyncing {
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(interPeerRequestDelay)
	defer ticker.Stop()

	for {
		if s.state.SyncState() != state.SyncSyncing {
			return
		}

		for _, p := range s.peers.Open() {
			if s.state.SyncState() != state.SyncSyncing {
				return
			}
			s.requestBlockFrom(p.Address, s.state.CurrentSyncBlock())

			select {
			case <-ctx.Done():
				return
			case <-s.shut:
				return
			case <-ticker.C:
			}
		}

		if len(s.peers.Open()) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-s.shut:
				return
			case <-ticker.C:
			}
		}
	}
}

func (s *Server) requestBlockFrom(address string, number uint64) {
	msg, err := NewMessage(MessageRequestBlock, RequestBlockPayload{
		BlockNumber:    number,
		RequestAddress: s.address,
	})
	if err != nil {
		return
	}
	s.peers.SendTo(address, msg)
}
