package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// UNSUBACK acknowledges an UNSUBSCRIBE, MQTT 3.1.1 §3.11. No payload
// beyond the packet id in 3.1.1.
type UNSUBACK struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16
}

func (pkt *UNSUBACK) Kind() byte { return 0xB }

func (pkt *UNSUBACK) Pack(w io.Writer) error {
	buf := GetBuffer()
	defer PutBuffer(buf)
	buf.Write(i2b(pkt.PacketID))

	pkt.FixedHeader.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *UNSUBACK) Unpack(buf *bytes.Buffer) error {
	if pkt.FixedHeader.RemainingLength != 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	return nil
}
