package packet

import (
	"bytes"
	"io"
)

// DISCONNECT is a graceful connection termination notice, MQTT 3.1.1
// §3.14. No variable header or payload in 3.1.1.
type DISCONNECT struct {
	*FixedHeader `json:"FixedHeader,omitempty"`
}

func (pkt *DISCONNECT) Kind() byte { return 0xE }

func (pkt *DISCONNECT) Pack(w io.Writer) error {
	pkt.FixedHeader.RemainingLength = 0
	return pkt.FixedHeader.Pack(w)
}

func (pkt *DISCONNECT) Unpack(_ *bytes.Buffer) error {
	return nil
}
