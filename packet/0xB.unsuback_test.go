package packet

import (
	"bytes"
	"testing"
)

func TestUnsubackRoundTrip(t *testing.T) {
	want := &UNSUBACK{FixedHeader: &FixedHeader{Kind: 0xB, Version: VERSION311}, PacketID: 6}
	buf := &bytes.Buffer{}
	if err := want.Pack(buf); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	got, err := Unpack(VERSION311, buf)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if got.(*UNSUBACK).PacketID != 6 {
		t.Fatalf("got %+v, want PacketID=6", got)
	}
}
