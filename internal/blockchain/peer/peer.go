// Package peer is the single owner of the node's peer table: the set
// of known peer addresses and the sockets currently open to them. This
// is the REDESIGN FLAGS "Global mutable peer table" guidance adopted
// directly — every mutation goes through Manager's message-passing
// style methods (Add, Remove, Broadcast, SendTo); no other package
// reaches into the table directly.
package peer

import (
	"fmt"
	"sync"
)

// Peer represents a single known node in the network, identified by
// its advertised address (a URL-like string, per spec.md §4.8).
type Peer struct {
	Address string
}

// Conn is the narrow interface Manager needs from a connected socket.
// gossip.wsConn implements this over a gorilla/websocket connection;
// keeping it abstract here lets peer stay untested-against-sockets.
type Conn interface {
	Send(v any) error
	Close() error
}

// Manager owns the PeerTable spec.md §3 describes: an unordered map of
// open {address, socket} pairs, which the duplicate-address guard
// spec.md §4.8 requires checks ("duplicate-address guards ensure at
// most one entry per address in opened/connected"), plus a set of
// every address ever added or marked known (open or not), which the
// gossip server consults before dialling a forwarded address.
type Manager struct {
	mu     sync.RWMutex
	opened map[string]Conn
	known  map[string]struct{}
}

// NewManager constructs an empty peer table.
func NewManager() *Manager {
	return &Manager{
		opened: make(map[string]Conn),
		known:  make(map[string]struct{}),
	}
}

// MarkKnown records address as seen, whether or not a socket to it is
// currently open, without opening a socket to it.
func (m *Manager) MarkKnown(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.known[address] = struct{}{}
}

// Known reports whether address has ever been seen.
func (m *Manager) Known(address string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.known[address]
	return ok
}

// Add records conn as the open socket for address. It refuses a
// second socket for an address already open, returning false, per
// the duplicate-address guard.
func (m *Manager) Add(address string, conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.opened[address]; exists {
		return false
	}
	m.opened[address] = conn
	m.known[address] = struct{}{}
	return true
}

// Remove closes and drops the open socket for address, if any. Called
// on socket close per spec.md §4.8 ("on peer close, remove from opened
// and connected"); address remains known so a future re-handshake can
// reopen it.
func (m *Manager) Remove(address string) {
	m.mu.Lock()
	conn, exists := m.opened[address]
	delete(m.opened, address)
	m.mu.Unlock()

	if exists {
		conn.Close()
	}
}

// Open returns every currently open peer address, for the HANDSHAKE
// fan-out and periodic sync-request loop.
func (m *Manager) Open() []Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Peer, 0, len(m.opened))
	for addr := range m.opened {
		out = append(out, Peer{Address: addr})
	}
	return out
}

// Count returns the number of currently open sockets.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.opened)
}

// Broadcast sends v to every open peer, collecting per-address send
// failures rather than aborting on the first one — one unresponsive
// peer must not stop gossip from reaching the rest.
func (m *Manager) Broadcast(v any) []error {
	m.mu.RLock()
	conns := make(map[string]Conn, len(m.opened))
	for addr, conn := range m.opened {
		conns[addr] = conn
	}
	m.mu.RUnlock()

	var errs []error
	for addr, conn := range conns {
		if err := conn.Send(v); err != nil {
			errs = append(errs, fmt.Errorf("peer %s: %w", addr, err))
		}
	}
	return errs
}

// SendTo sends v to a single open peer, used for point-to-point
// REQUEST_BLOCK/SEND_BLOCK traffic.
func (m *Manager) SendTo(address string, v any) error {
	m.mu.RLock()
	conn, exists := m.opened[address]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("peer %s is not open", address)
	}
	return conn.Send(v)
}
