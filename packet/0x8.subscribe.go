package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Subscription is one entry in a SUBSCRIBE payload: a topic filter and
// the maximum QoS the client will accept for it, MQTT 3.1.1 §3.8.3.
type Subscription struct {
	TopicFilter string
	MaximumQoS  uint8
}

// SUBSCRIBE requests one or more topic subscriptions, MQTT 3.1.1 §3.8.
// Flags are fixed at DUP=0, QoS=1, RETAIN=0 [MQTT-3.8.1-1].
type SUBSCRIBE struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID      uint16
	Subscriptions []Subscription
}

func (pkt *SUBSCRIBE) Kind() byte { return 0x8 }

func (pkt *SUBSCRIBE) Pack(w io.Writer) error {
	if len(pkt.Subscriptions) == 0 {
		return ErrProtocolViolationNoFilters
	}
	pkt.Dup, pkt.QoS, pkt.Retain = 0, 1, 0

	buf := GetBuffer()
	defer PutBuffer(buf)
	buf.Write(i2b(pkt.PacketID))

	for _, s := range pkt.Subscriptions {
		if s.TopicFilter == "" {
			return ErrMalformedTopic
		}
		if s.MaximumQoS > 2 {
			return ErrMalformedQos
		}
		buf.Write(s2b(s.TopicFilter))
		buf.WriteByte(s.MaximumQoS)
	}

	pkt.FixedHeader.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *SUBSCRIBE) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return ErrMalformedPacketID
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))

	for buf.Len() > 0 {
		if buf.Len() < 2 {
			return ErrMalformedTopic
		}
		topic := decodeUTF8[string](buf)
		if topic == "" {
			return ErrMalformedTopic
		}
		if buf.Len() < 1 {
			return ErrMalformedQos
		}
		qos := buf.Next(1)[0]
		if qos&0xFC != 0 {
			return ErrProtocolViolationReservedBit
		}
		pkt.Subscriptions = append(pkt.Subscriptions, Subscription{TopicFilter: topic, MaximumQoS: qos})
	}
	if len(pkt.Subscriptions) == 0 {
		return ErrProtocolViolationNoFilters
	}
	return nil
}
