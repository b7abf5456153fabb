// Package gossip implements spec.md §4.8's peer protocol over framed
// JSON on WebSocket: connection lifecycle, message routing into
// state.State, and the initial chain-sync request loop.
package gossip

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/acem702/powchain/internal/blockchain/database"
)

// ErrPeer is the sentinel wrapped by any socket close or malformed
// frame, per spec.md §7's PeerError category: the offending peer is
// dropped, not punished, and may be re-added on the next handshake.
var ErrPeer = errors.New("gossip: peer error")

// MessageType is one of the five frame kinds spec.md §4.8's table
// defines. Using a tagged variant at the deserialization boundary is
// the REDESIGN FLAGS "Duck-typed JSON messages" guidance, adopted
// directly: Type selects which payload shape Payload holds.
type MessageType string

const (
	MessageHandshake    MessageType = "HANDSHAKE"
	MessageCreateTx     MessageType = "CREATE_TRANSACTION"
	MessageNewBlock     MessageType = "NEW_BLOCK"
	MessageRequestBlock MessageType = "REQUEST_BLOCK"
	MessageSendBlock    MessageType = "SEND_BLOCK"
)

// Message is the wire envelope every frame is sent as, matching
// spec.md §6's `{"type": <string>, "data": <payload>}` shape.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewMessage marshals payload and wraps it in an envelope of type
// msgType, ready to send over a peer connection.
func NewMessage(msgType MessageType, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("gossip: marshal %s payload: %w", msgType, err)
	}
	return Message{Type: msgType, Data: data}, nil
}

// Decode unmarshals m's Data into out.
func (m Message) Decode(out any) error {
	if err := json.Unmarshal(m.Data, out); err != nil {
		return fmt.Errorf("%s: %w", err, ErrPeer)
	}
	return nil
}

// HandshakePayload is exchanged on every outbound connect and every
// inbound accept. ChainHeight extends the source's bare address string
// (spec.md §4.8's "HANDSHAKE | both | peer address string") with the
// sender's chain height, grounded on the `frederikgramkortegaard-august`
// pack member's HandshakePayload.ChainHeight field — this is what
// feeds state.State.RecordPeerHeight so the corrected sync state
// machine (spec.md §9, second open question) has a real signal for
// "highest known peer height" instead of guessing from NEW_BLOCK
// arrival alone.
type HandshakePayload struct {
	Address     string `json:"address"`
	ChainHeight uint64 `json:"chainHeight"`
}

// RequestBlockPayload is the REQUEST_BLOCK point-to-point payload.
type RequestBlockPayload struct {
	BlockNumber    uint64 `json:"blockNumber"`
	RequestAddress string `json:"requestAddress"`
}

// blockPayload is the shared shape of NEW_BLOCK and SEND_BLOCK, both
// of which carry exactly one block.
type blockPayload struct {
	Block database.Block `json:"block"`
}

// txPayload is CREATE_TRANSACTION's payload: exactly one transaction.
type txPayload struct {
	Tx database.Tx `json:"tx"`
}

// NewCreateTransactionMessage wraps tx in a CREATE_TRANSACTION frame,
// the shape a wallet submits a signed transaction in over a peer
// connection rather than through an out-of-scope HTTP query API.
func NewCreateTransactionMessage(tx database.Tx) (Message, error) {
	return NewMessage(MessageCreateTx, txPayload{Tx: tx})
}
