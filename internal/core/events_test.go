package core

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestDecodeInboundChat(t *testing.T) {
	in, err := DecodeInbound([]byte(`{"type":"chat","room":"abc123","data":{"text":"hello"}}`))
	if err != nil {
		t.Fatalf("DecodeInbound: %v", err)
	}
	if in.Type != EventChat {
		t.Fatalf("type: got %s, want chat", in.Type)
	}
	if in.Room != "abc123" {
		t.Fatalf("room: got %s, want abc123", in.Room)
	}
	p, ok := in.Payload.(*ChatPayload)
	if !ok {
		t.Fatalf("payload: got %T, want *ChatPayload", in.Payload)
	}
	if p.Text != "hello" {
		t.Fatalf("text: got %q, want hello", p.Text)
	}
}

func TestDecodeInboundNegotiationKeptVerbatim(t *testing.T) {
	blob := `{"sdp":"v=0...","weird":{"nested":[1,2,3]}}`
	in, err := DecodeInbound([]byte(`{"type":"offer","to":"c9","data":` + blob + `}`))
	if err != nil {
		t.Fatalf("DecodeInbound: %v", err)
	}
	if in.To != "c9" {
		t.Fatalf("to: got %s, want c9", in.To)
	}
	if in.Payload != nil {
		t.Fatal("negotiation payload must stay opaque")
	}
	if !bytes.Equal(in.Raw, []byte(blob)) {
		t.Fatalf("raw blob altered: %s", in.Raw)
	}
}

func TestDecodeInboundAttach(t *testing.T) {
	in, err := DecodeInbound([]byte(`{"type":"attach","room":"abc123","data":{"user_id":"u1","display_name":"Alice"}}`))
	if err != nil {
		t.Fatalf("DecodeInbound: %v", err)
	}
	p, ok := in.Payload.(*AttachPayload)
	if !ok {
		t.Fatalf("payload: got %T, want *AttachPayload", in.Payload)
	}
	if p.UserID != "u1" || p.DisplayName != "Alice" {
		t.Fatalf("attach payload: %+v", p)
	}
}

func TestDecodeInboundRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"unknown type", `{"type":"telepathy"}`},
		{"not json", `nope`},
		{"empty negotiation", `{"type":"offer","room":"r"}`},
		{"chat without payload", `{"type":"chat","room":"r"}`},
		{"chat with bad payload", `{"type":"chat","room":"r","data":[1,2]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeInbound([]byte(tc.raw)); err == nil {
				t.Fatal("expected decode error")
			}
		})
	}
}

func TestMarshalEventEnvelope(t *testing.T) {
	frame, err := MarshalEvent(EventChat, "u1", ChatPayload{Text: "hi"})
	if err != nil {
		t.Fatalf("MarshalEvent: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	if env.Type != EventChat || env.From != "u1" {
		t.Fatalf("envelope: %+v", env)
	}
	var p ChatPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.Text != "hi" {
		t.Fatalf("payload round trip: %v %+v", err, p)
	}
}

func TestMarshalEventRawPassthrough(t *testing.T) {
	blob := json.RawMessage(`{"candidate":"..."}`)
	frame, err := MarshalEvent(EventCandidate, "u1", blob)
	if err != nil {
		t.Fatalf("MarshalEvent: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	if !bytes.Equal(env.Data, blob) {
		t.Fatalf("raw payload re-encoded: %s", env.Data)
	}
}
