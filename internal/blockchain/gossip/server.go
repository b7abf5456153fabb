package gossip

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/acem702/powchain/internal/blockchain/database"
	"github.com/acem702/powchain/internal/blockchain/peer"
	"github.com/acem702/powchain/internal/blockchain/state"
	"github.com/gorilla/websocket"
)

// interPeerRequestDelay is the fixed pacing between REQUEST_BLOCK
// sends to successive peers during initial sync, per spec.md §5's
// "fixed inter-peer delay (e.g. 5 seconds) as a crude pacing
// mechanism".
const interPeerRequestDelay = 5 * time.Second

// Server is the node's WebSocket gossip endpoint: it accepts inbound
// connections, dials outbound ones, and routes every decoded Message
// into state.State. It is also the worker.Broadcaster the mining
// coordinator announces freshly mined blocks through.
type Server struct {
	address   string
	state     *state.State
	peers     *peer.Manager
	evHandler state.EventHandler

	upgrader websocket.Upgrader
	dialer   websocket.Dialer

	shut chan struct{}
	wg   sync.WaitGroup
}

// New constructs a gossip server advertising address as its own
// identity in handshakes.
func New(address string, st *state.State, evHandler state.EventHandler) *Server {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	return &Server{
		address:   address,
		state:     st,
		peers:     peer.NewManager(),
		evHandler: evHandler,
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		shut:      make(chan struct{}),
	}
}

// BroadcastBlock implements worker.Broadcaster: it wraps block in a
// NEW_BLOCK envelope and fans it out to every open peer.
func (s *Server) BroadcastBlock(block any) error {
	msg, err := NewMessage(MessageNewBlock, blockPayload{Block: block.(database.Block)})
	if err != nil {
		return err
	}
	return firstErr(s.peers.Broadcast(msg))
}

// ServeHTTP upgrades an inbound connection and starts its read loop.
// The peer's address is not known until its first HANDSHAKE frame
// arrives, per spec.md §4.8.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.evHandler("gossip: upgrade: %v", err)
		return
	}

	conn := newWSConn("", ws)
	s.wg.Add(1)
	go s.readLoop(conn)
}

// Dial opens an outbound connection to address, registers it, and
// sends the handshake burst: our own identity followed by a HANDSHAKE
// announcement for every other peer with a currently open connection, implementing
// spec.md §4.8's transitive peer discovery.
func (s *Server) Dial(address string) error {
	if addrOpen(s.peers, address) {
		return nil
	}

	wsURL, err := toWebSocketURL(address)
	if err != nil {
		return fmt.Errorf("gossip: %s: %w", address, err)
	}

	ws, _, err := s.dialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("gossip: dial %s: %w", address, ErrPeer)
	}

	conn := newWSConn(address, ws)
	if !s.peers.Add(address, conn) {
		conn.Close()
		return nil
	}

	if err := s.sendHandshakeBurst(conn); err != nil {
		s.evHandler("gossip: handshake burst to %s: %v", address, err)
	}

	s.wg.Add(1)
	go s.readLoop(conn)
	return nil
}

// DialSeeds connects to every address in addrs, logging (not failing)
// any that cannot be reached at startup.
func (s *Server) DialSeeds(addrs []string) {
	for _, addr := range addrs {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if err := s.Dial(addr); err != nil {
			s.evHandler("gossip: dial seed %s: %v", addr, err)
		}
	}
}

// Shutdown closes every open peer connection and waits for their read
// loops to exit.
func (s *Server) Shutdown() {
	close(s.shut)
	for _, p := range s.peers.Open() {
		s.peers.Remove(p.Address)
	}
	s.wg.Wait()
}

func addrOpen(m *peer.Manager, address string) bool {
	for _, p := range m.Open() {
		if p.Address == address {
			return true
		}
	}
	return false
}

// toWebSocketURL normalizes address (host:port, http(s) URL, or
// ws(s) URL) into a ws(s) URL suitable for the gorilla dialer.
func toWebSocketURL(address string) (string, error) {
	if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") {
		return address, nil
	}

	u, err := url.Parse(address)
	if err != nil || u.Host == "" {
		return "ws://" + address, nil
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func firstErr(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}
