package packet

import (
	"bytes"
	"testing"
)

func TestUnsubscribeRoundTrip(t *testing.T) {
	want := &UNSUBSCRIBE{
		FixedHeader:  &FixedHeader{Kind: 0xA, Version: VERSION311},
		PacketID:     6,
		TopicFilters: []string{"a/b", "c/d"},
	}
	buf := &bytes.Buffer{}
	if err := want.Pack(buf); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	got, err := Unpack(VERSION311, buf)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	u := got.(*UNSUBSCRIBE)
	if len(u.TopicFilters) != 2 || u.TopicFilters[1] != "c/d" {
		t.Fatalf("got %+v", u.TopicFilters)
	}
}
