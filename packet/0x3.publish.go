package packet

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
)

// Message is the application payload carried by a PUBLISH packet: a topic
// name and the bytes published to it.
type Message struct {
	TopicName string
	Content   []byte
}

func (m *Message) String() string {
	return m.TopicName + ":" + string(m.Content)
}

// PUBLISH carries application data from sender to receiver, MQTT 3.1.1
// §3.3.
type PUBLISH struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16
	Message  *Message
}

func (pkt *PUBLISH) Kind() byte { return 0x3 }

func (pkt *PUBLISH) Pack(w io.Writer) error {
	if pkt.QoS > 2 {
		return ErrProtocolViolationQosOutOfRange
	}
	if pkt.Message == nil || pkt.Message.TopicName == "" {
		return ErrMalformedTopic
	}
	if strings.ContainsAny(pkt.Message.TopicName, "+#") {
		return ErrProtocolViolationSurplusWildcard
	}

	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(s2b(pkt.Message.TopicName))
	if pkt.QoS > 0 {
		if pkt.PacketID == 0 {
			return ErrProtocolViolationNoPacketID
		}
		buf.Write(i2b(pkt.PacketID))
	} else if pkt.PacketID != 0 {
		return ErrProtocolViolationSurplusPacketID
	}
	buf.Write(pkt.Message.Content)

	pkt.FixedHeader.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *PUBLISH) Unpack(buf *bytes.Buffer) error {
	if pkt.QoS > 2 {
		return ErrProtocolViolationQosOutOfRange
	}
	if buf.Len() < 2 {
		return ErrMalformedTopic
	}
	topic := decodeUTF8[string](buf)
	if topic == "" {
		return ErrMalformedTopic
	}
	if strings.ContainsAny(topic, "+#") {
		return ErrProtocolViolationSurplusWildcard
	}

	if pkt.QoS > 0 {
		if buf.Len() < 2 {
			return ErrMalformedPacketID
		}
		pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	}

	pkt.Message = &Message{TopicName: topic, Content: bytes.Clone(buf.Bytes())}
	return nil
}
