package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// SUBACK acknowledges a SUBSCRIBE, one return code per requested filter
// in the same order, MQTT 3.1.1 §3.9.
type SUBACK struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID    uint16
	ReturnCodes []ReasonCode
}

func (pkt *SUBACK) Kind() byte { return 0x9 }

func (pkt *SUBACK) Pack(w io.Writer) error {
	if len(pkt.ReturnCodes) == 0 {
		return ErrProtocolViolationNoFilters
	}
	buf := GetBuffer()
	defer PutBuffer(buf)
	buf.Write(i2b(pkt.PacketID))
	for _, rc := range pkt.ReturnCodes {
		buf.WriteByte(rc.Code)
	}

	pkt.FixedHeader.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *SUBACK) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 3 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	for buf.Len() > 0 {
		code := buf.Next(1)[0]
		switch code {
		case CodeGrantedQos0.Code:
			pkt.ReturnCodes = append(pkt.ReturnCodes, CodeGrantedQos0)
		case CodeGrantedQos1.Code:
			pkt.ReturnCodes = append(pkt.ReturnCodes, CodeGrantedQos1)
		case CodeGrantedQos2.Code:
			pkt.ReturnCodes = append(pkt.ReturnCodes, CodeGrantedQos2)
		case ErrSubscribeFail.Code:
			pkt.ReturnCodes = append(pkt.ReturnCodes, ErrSubscribeFail)
		default:
			return ErrMalformedReasonCode
		}
	}
	return nil
}
