package packet

import (
	"bytes"
	"testing"
)

func TestPubrelRoundTrip(t *testing.T) {
	want := &PUBREL{FixedHeader: &FixedHeader{Kind: 0x6, Version: VERSION311}, PacketID: 11}
	buf := &bytes.Buffer{}
	if err := want.Pack(buf); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	got, err := Unpack(VERSION311, buf)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if got.(*PUBREL).PacketID != 11 {
		t.Fatalf("got %+v, want PacketID=11", got)
	}
}

func TestPubrelFlagsEnforced(t *testing.T) {
	buf := &bytes.Buffer{}
	// Kind 0x6 with Dup=1 violates the fixed DUP=0,QoS=1,RETAIN=0 flags.
	buf.WriteByte(0x6<<4 | 0b1010)
	buf.WriteByte(0x02)
	buf.Write(i2b(1))

	_, err := Unpack(VERSION311, buf)
	if err != ErrMalformedFlags {
		t.Fatalf("got %v, want ErrMalformedFlags", err)
	}
}
