package gossip

import (
	"errors"
	"testing"
)

func TestHandshakeMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(MessageHandshake, HandshakePayload{Address: "ws://peer:9080", ChainHeight: 42})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if msg.Type != MessageHandshake {
		t.Fatalf("Type = %q, want %q", msg.Type, MessageHandshake)
	}

	var payload HandshakePayload
	if err := msg.Decode(&payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if payload.Address != "ws://peer:9080" || payload.ChainHeight != 42 {
		t.Fatalf("got %+v", payload)
	}
}

func TestRequestBlockMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(MessageRequestBlock, RequestBlockPayload{BlockNumber: 7, RequestAddress: "ws://me:9080"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	var payload RequestBlockPayload
	if err := msg.Decode(&payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if payload.BlockNumber != 7 {
		t.Fatalf("BlockNumber = %d, want 7", payload.BlockNumber)
	}
}

func TestDecodeMalformedPayloadWrapsErrPeer(t *testing.T) {
	msg := Message{Type: MessageHandshake, Data: []byte("not json")}

	var payload HandshakePayload
	err := msg.Decode(&payload)
	if err == nil {
		t.Fatalf("expected a decode error for malformed JSON")
	}
	if !errors.Is(err, ErrPeer) {
		t.Fatalf("decode error should wrap ErrPeer, got %v", err)
	}
}
