package packet

import (
	"bytes"
	"testing"
)

func TestPingreqPingrespRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&PINGREQ{FixedHeader: &FixedHeader{Kind: 0xC, Version: VERSION311}}).Pack(buf); err != nil {
		t.Fatalf("Pack PINGREQ: %v", err)
	}
	if _, err := Unpack(VERSION311, buf); err != nil {
		t.Fatalf("Unpack PINGREQ: %v", err)
	}

	buf.Reset()
	if err := (&PINGRESP{FixedHeader: &FixedHeader{Kind: 0xD, Version: VERSION311}}).Pack(buf); err != nil {
		t.Fatalf("Pack PINGRESP: %v", err)
	}
	if _, err := Unpack(VERSION311, buf); err != nil {
		t.Fatalf("Unpack PINGRESP: %v", err)
	}
}
