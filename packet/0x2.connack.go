package packet

import (
	"bytes"
	"io"
)

// CONNACK is the server's acknowledgment of a CONNECT, MQTT 3.1.1 §3.2.
type CONNACK struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	// SessionPresent is bit 0 of the connect acknowledge flags, set when
	// the server has a session state already stored for this client
	// [MQTT-3.2.2-1].
	SessionPresent uint8

	ReturnCode ReasonCode
}

func (pkt *CONNACK) Kind() byte { return 0x2 }

func (pkt *CONNACK) Pack(w io.Writer) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.WriteByte(pkt.SessionPresent & 0x01)
	buf.WriteByte(pkt.ReturnCode.Code)

	pkt.FixedHeader.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *CONNACK) Unpack(buf *bytes.Buffer) error {
	if pkt.FixedHeader.RemainingLength != 2 {
		return ErrMalformedPacket
	}
	flags := buf.Next(1)[0]
	if flags&0xFE != 0 {
		return ErrMalformedSessionPresentFlags
	}
	pkt.SessionPresent = flags & 0x01

	code := buf.Next(1)[0]
	// [MQTT-3.2.2-4] SessionPresent must be 0 whenever the connection is
	// refused.
	if code != CodeAccepted.Code && pkt.SessionPresent != 0 {
		return ErrMalformedSessionPresentFlags
	}
	pkt.ReturnCode = connackReturnCode(code)
	return nil
}

func connackReturnCode(code uint8) ReasonCode {
	switch code {
	case CodeAccepted.Code:
		return CodeAccepted
	case Err3UnsupportedProtocolVersion.Code:
		return Err3UnsupportedProtocolVersion
	case Err3ClientIdentifierNotValid.Code:
		return Err3ClientIdentifierNotValid
	case Err3ServerUnavailable.Code:
		return Err3ServerUnavailable
	case ErrMalformedUsernameOrPassword.Code:
		return ErrMalformedUsernameOrPassword
	case Err3NotAuthorized.Code:
		return Err3NotAuthorized
	default:
		return ReasonCode{Code: code, Reason: "unknown connect return code"}
	}
}
