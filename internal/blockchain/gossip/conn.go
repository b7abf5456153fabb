package gossip

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsConn wraps a gorilla/websocket connection so it satisfies
// peer.Conn. gorilla requires at most one concurrent writer per
// connection, so every Send goes through writeMu.
type wsConn struct {
	id      string
	address string
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// newWSConn wraps ws, minting a random connection id purely for log
// correlation — two sockets can share an address briefly during a
// handshake race, and the id disambiguates them in evHandler output.
func newWSConn(address string, ws *websocket.Conn) *wsConn {
	return &wsConn{
		id:      uuid.NewString(),
		address: address,
		ws:      ws,
	}
}

// Send writes v as a single JSON text frame.
func (c *wsConn) Send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// Close closes the underlying socket.
func (c *wsConn) Close() error {
	return c.ws.Close()
}
