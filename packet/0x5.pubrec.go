package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// PUBREC is the first acknowledgment step of a QoS 2 PUBLISH, MQTT 3.1.1
// §3.5. Same wire shape as PUBACK (fixed header + packet id, no payload);
// the teacher's dispatch table referenced this type without ever defining
// it, so this file fills that gap following the sibling PUBACK/PUBREL
// per-type layout.
type PUBREC struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16
}

func (pkt *PUBREC) Kind() byte { return 0x5 }

func (pkt *PUBREC) Pack(w io.Writer) error {
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

func (pkt *PUBREC) Unpack(buf *bytes.Buffer) error {
	if pkt.FixedHeader.RemainingLength != 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	return nil
}
