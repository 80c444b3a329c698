package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// PUBREL is the second acknowledgment step of a QoS 2 PUBLISH, MQTT 3.1.1
// §3.6. Flags are fixed at DUP=0, QoS=1, RETAIN=0 [MQTT-3.6.1-1], enforced
// by FixedHeader.Unpack for kind 0x6.
type PUBREL struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16
}

func (pkt *PUBREL) Kind() byte { return 0x6 }

func (pkt *PUBREL) Pack(w io.Writer) error {
	pkt.Dup, pkt.QoS, pkt.Retain = 0, 1, 0

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

func (pkt *PUBREL) Unpack(buf *bytes.Buffer) error {
	if pkt.FixedHeader.RemainingLength != 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	return nil
}
