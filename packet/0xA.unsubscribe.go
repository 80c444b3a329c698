package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// UNSUBSCRIBE requests removal of one or more subscriptions, MQTT 3.1.1
// §3.10. Flags are fixed at DUP=0, QoS=1, RETAIN=0 [MQTT-3.10.1-1].
type UNSUBSCRIBE struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID     uint16
	TopicFilters []string
}

func (pkt *UNSUBSCRIBE) Kind() byte { return 0xA }

func (pkt *UNSUBSCRIBE) Pack(w io.Writer) error {
	if len(pkt.TopicFilters) == 0 {
		return ErrProtocolViolationNoFilters
	}
	pkt.Dup, pkt.QoS, pkt.Retain = 0, 1, 0

	buf := GetBuffer()
	defer PutBuffer(buf)
	buf.Write(i2b(pkt.PacketID))
	for _, f := range pkt.TopicFilters {
		if f == "" {
			return ErrMalformedTopic
		}
		buf.Write(s2b(f))
	}

	pkt.FixedHeader.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *UNSUBSCRIBE) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return ErrMalformedPacketID
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	for buf.Len() > 0 {
		if buf.Len() < 2 {
			return ErrMalformedTopic
		}
		pkt.TopicFilters = append(pkt.TopicFilters, decodeUTF8[string](buf))
	}
	if len(pkt.TopicFilters) == 0 {
		return ErrProtocolViolationNoFilters
	}
	return nil
}
