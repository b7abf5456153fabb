package gossip

import (
	"github.com/acem702/powchain/internal/blockchain/state"
)

// sendHandshakeBurst announces our own identity to conn followed by a
// HANDSHAKE for every other peer with a currently open connection, so the node on the
// other end can dial them too. This is spec.md §4.8's "send
// HANDSHAKE(myAddress) and HANDSHAKE for every currently-known peer".
func (s *Server) sendHandshakeBurst(conn *wsConn) error {
	self, err := NewMessage(MessageHandshake, HandshakePayload{
		Address:     s.address,
		ChainHeight: s.state.RetrieveChainInfo().LatestBlock.BlockNumber,
	})
	if err != nil {
		return err
	}
	if err := conn.Send(self); err != nil {
		return err
	}

	for _, p := range s.peers.Open() {
		if p.Address == conn.address {
			continue
		}
		known, err := NewMessage(MessageHandshake, HandshakePayload{Address: p.Address})
		if err != nil {
			continue
		}
		conn.Send(known)
	}
	return nil
}

// handleHandshake implements both halves of spec.md §4.8's handshake
// rule. The first HANDSHAKE received on a socket identifies the peer
// at the other end and registers it (replying with our own burst, the
// symmetric "both directions" half); any later HANDSHAKE on the same
// socket is a forwarded announcement about a third peer, and triggers
// an outbound dial if we don't already know that address.
func (s *Server) handleHandshake(conn *wsConn, payload HandshakePayload) {
	if payload.Address == "" || payload.Address == s.address {
		return
	}

	first := conn.address == ""
	if first {
		conn.address = payload.Address
		if !s.peers.Add(payload.Address, conn) {
			conn.Close()
			return
		}
		s.evHandler("gossip: handshake: peer %s connected", payload.Address)
		if err := s.sendHandshakeBurst(conn); err != nil {
			s.evHandler("gossip: handshake reply to %s: %v", payload.Address, err)
		}
	}

	s.state.RecordPeerHeight(payload.ChainHeight)

	if !first && !s.peers.Known(payload.Address) {
		go s.Dial(payload.Address)
	}
}

// handleCreateTransaction implements spec.md §4.8's CREATE_TRANSACTION
// gossip semantics: validate and admit unless syncing, then
// re-broadcast so every open peer converges on the same pool.
func (s *Server) handleCreateTransaction(payload txPayload) {
	if err := s.state.SubmitTransaction(payload.Tx); err != nil {
		s.evHandler("gossip: create_transaction %s rejected: %v", payload.Tx.Hash(), err)
		return
	}

	msg, err := NewMessage(MessageCreateTx, payload)
	if err != nil {
		return
	}
	s.peers.Broadcast(msg)
}

// handleNewBlock implements spec.md §4.8's NEW_BLOCK gossip semantics.
// The block number is recorded as a peer-height signal even when we
// end up rejecting or deferring the block, feeding the corrected sync
// completion check in state.State.RecordPeerHeight.
func (s *Server) handleNewBlock(payload blockPayload) {
	s.state.RecordPeerHeight(payload.Block.BlockNumber)

	if s.state.IsSyncing() {
		return
	}

	if err := s.state.AcceptBlock(payload.Block); err != nil {
		s.evHandler("gossip: new_block %d rejected: %v", payload.Block.BlockNumber, err)
		return
	}

	msg, err := NewMessage(MessageNewBlock, payload)
	if err != nil {
		return
	}
	s.peers.Broadcast(msg)
}

// handleRequestBlock serves REQUEST_BLOCK point-to-point, only while
// SYNCED, per spec.md §4.8's serving rule.
func (s *Server) handleRequestBlock(conn *wsConn, payload RequestBlockPayload) {
	if s.state.SyncState() != state.SyncSynced {
		return
	}
	if !s.state.HeightKnown(payload.BlockNumber) {
		return
	}

	block, err := s.state.RetrieveBlock(payload.BlockNumber)
	if err != nil {
		return
	}

	msg, err := NewMessage(MessageSendBlock, blockPayload{Block: block})
	if err != nil {
		return
	}
	conn.Send(msg)
}

// handleSendBlock implements spec.md §4.8's SEND_BLOCK sync-response
// handling: apply it if it is the height we are waiting for, then
// immediately request the next one rather than waiting for the next
// periodic tick.
func (s *Server) handleSendBlock(payload blockPayload) {
	if err := s.state.HandleSyncBlock(payload.Block); err != nil {
		s.evHandler("gossip: send_block %d rejected: %v", payload.Block.BlockNumber, err)
		return
	}

	if s.state.SyncState() == state.SyncSyncing {
		s.requestBlock(s.state.CurrentSyncBlock())
	}
}
