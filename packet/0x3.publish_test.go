package packet

import (
	"bytes"
	"testing"
)

func TestPublishRoundTripQoS0(t *testing.T) {
	want := &PUBLISH{
		FixedHeader: &FixedHeader{Kind: 0x3, Version: VERSION311},
		Message:     &Message{TopicName: "a/b", Content: []byte("hello")},
	}
	buf := &bytes.Buffer{}
	if err := want.Pack(buf); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	got, err := Unpack(VERSION311, buf)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	p := got.(*PUBLISH)
	if p.Message.TopicName != "a/b" || string(p.Message.Content) != "hello" {
		t.Fatalf("got %+v", p.Message)
	}
}

func TestPublishRoundTripQoS1HasPacketID(t *testing.T) {
	want := &PUBLISH{
		FixedHeader: &FixedHeader{Kind: 0x3, Version: VERSION311, QoS: 1},
		PacketID:    42,
		Message:     &Message{TopicName: "a/b", Content: []byte("x")},
	}
	buf := &bytes.Buffer{}
	if err := want.Pack(buf); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	fixed := &FixedHeader{}
	if err := fixed.Unpack(buf); err != nil {
		t.Fatalf("Unpack fixed header: %v", err)
	}
	got := &PUBLISH{FixedHeader: fixed}
	if err := got.Unpack(buf); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if got.PacketID != 42 {
		t.Fatalf("got packet id %d, want 42", got.PacketID)
	}
}

func TestPublishRejectsWildcardTopic(t *testing.T) {
	pkt := &PUBLISH{
		FixedHeader: &FixedHeader{Kind: 0x3, Version: VERSION311},
		Message:     &Message{TopicName: "a/#", Content: []byte("x")},
	}
	if err := pkt.Pack(&bytes.Buffer{}); err != ErrProtocolViolationSurplusWildcard {
		t.Fatalf("got %v, want ErrProtocolViolationSurplusWildcard", err)
	}
}
