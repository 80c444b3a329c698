package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// PUBCOMP is the final acknowledgment step of a QoS 2 PUBLISH, MQTT 3.1.1
// §3.7.
type PUBCOMP struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16
}

func (pkt *PUBCOMP) Kind() byte { return 0x7 }

func (pkt *PUBCOMP) Pack(w io.Writer) error {
	pkt.Dup, pkt.QoS, pkt.Retain = 0, 0, 0

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

func (pkt *PUBCOMP) Unpack(buf *bytes.Buffer) error {
	if pkt.FixedHeader.RemainingLength != 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	return nil
}
