package gossip

import (
	"errors"

	"github.com/gorilla/websocket"
)

// readLoop processes frames from conn until it closes, then removes
// the peer from the table, per spec.md §5's "messages from a single
// peer are processed in arrival order" and §7's PeerError handling:
// a socket close or parse failure just drops the peer, nothing more.
func (s *Server) readLoop(conn *wsConn) {
	defer s.wg.Done()
	defer func() {
		if conn.address != "" {
			s.peers.Remove(conn.address)
			s.evHandler("gossip: peer %s disconnected", conn.address)
		} else {
			s.evHandler("gossip: connection %s closed before handshake", conn.id)
			conn.Close()
		}
	}()

	for {
		var msg Message
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				s.evHandler("gossip: read from %s: %v", conn.address, err)
			}
			return
		}

		select {
		case <-s.shut:
			return
		default:
		}

		s.dispatch(conn, msg)
	}
}

// dispatch routes a decoded Message to its handler. A malformed
// payload is logged and the frame dropped; it never tears down the
// connection, since a single bad frame from an otherwise-useful peer
// is not a reason to disconnect it.
func (s *Server) dispatch(conn *wsConn, msg Message) {
	switch msg.Type {
	case MessageHandshake:
		var payload HandshakePayload
		if err := msg.Decode(&payload); err != nil {
			s.evHandler("gossip: handshake: %v", err)
			return
		}
		s.handleHandshake(conn, payload)

	case MessageCreateTx:
		var payload txPayload
		if err := msg.Decode(&payload); err != nil {
			s.evHandler("gossip: create_transaction: %v", err)
			return
		}
		s.handleCreateTransaction(payload)

	case MessageNewBlock:
		var payload blockPayload
		if err := msg.Decode(&payload); err != nil {
			s.evHandler("gossip: new_block: %v", err)
			return
		}
		s.handleNewBlock(payload)

	case MessageRequestBlock:
		var payload RequestBlockPayload
		if err := msg.Decode(&payload); err != nil {
			s.evHandler("gossip: request_block: %v", err)
			return
		}
		s.handleRequestBlock(conn, payload)

	case MessageSendBlock:
		var payload blockPayload
		if err := msg.Decode(&payload); err != nil {
			s.evHandler("gossip: send_block: %v", err)
			return
		}
		s.handleSendBlock(payload)

	default:
		s.evHandler("gossip: unknown message type %q", msg.Type)
	}
}
