package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// ConnectFlags is the single byte at the start of the CONNECT variable
// header, MQTT 3.1.1 §3.1.2.3.
type ConnectFlags uint8

func (f ConnectFlags) Reserved() uint8    { return uint8(f) & 0x01 }
func (f ConnectFlags) CleanSession() bool { return uint8(f)&0x02 != 0 }
func (f ConnectFlags) WillFlag() bool     { return uint8(f)&0x04 != 0 }
func (f ConnectFlags) WillQoS() uint8     { return uint8(f) & 0x18 >> 3 }
func (f ConnectFlags) WillRetain() bool   { return uint8(f)&0x20 != 0 }
func (f ConnectFlags) PasswordFlag() bool { return uint8(f)&0x40 != 0 }
func (f ConnectFlags) UsernameFlag() bool { return uint8(f)&0x80 != 0 }

func newConnectFlags(cleanSession, willFlag bool, willQoS uint8, willRetain, passwordFlag, usernameFlag bool) ConnectFlags {
	var f uint8
	if cleanSession {
		f |= 0x02
	}
	if willFlag {
		f |= 0x04
	}
	f |= willQoS << 3
	if willRetain {
		f |= 0x20
	}
	if passwordFlag {
		f |= 0x40
	}
	if usernameFlag {
		f |= 0x80
	}
	return ConnectFlags(f)
}

// CONNECT is the first packet a client sends on a new connection, MQTT
// 3.1.1 §3.1.
type CONNECT struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	Flags     ConnectFlags
	KeepAlive uint16

	ClientID string

	WillTopic   string
	WillPayload []byte

	Username string
	Password []byte
}

func (pkt *CONNECT) Kind() byte { return 0x1 }

func (pkt *CONNECT) Pack(w io.Writer) error {
	if pkt.Flags.Reserved() != 0 {
		return ErrProtocolViolationReservedBit
	}
	if pkt.Flags.WillFlag() && len(pkt.WillTopic) == 0 {
		return ErrMalformedWillTopic
	}
	if !pkt.Flags.WillFlag() && (pkt.Flags.WillQoS() != 0 || pkt.Flags.WillRetain()) {
		return ErrProtocolViolationWillFlagNoPayload
	}
	if pkt.Flags.UsernameFlag() && pkt.Username == "" {
		return ErrProtocolViolationFlagNoUsername
	}
	if pkt.Flags.PasswordFlag() && len(pkt.Password) == 0 {
		return ErrProtocolViolationFlagNoPassword
	}

	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(s2b("MQTT"))
	buf.WriteByte(pkt.Version)
	buf.WriteByte(byte(pkt.Flags))
	buf.Write(i2b(pkt.KeepAlive))

	buf.Write(s2b(pkt.ClientID))
	if pkt.Flags.WillFlag() {
		buf.Write(s2b(pkt.WillTopic))
		buf.Write(s2b(pkt.WillPayload))
	}
	if pkt.Flags.UsernameFlag() {
		buf.Write(s2b(pkt.Username))
	}
	if pkt.Flags.PasswordFlag() {
		buf.Write(s2b(pkt.Password))
	}

	pkt.FixedHeader.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *CONNECT) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 10 {
		return ErrMalformedPacket
	}
	name := decodeUTF8[string](buf)
	if name != "MQTT" {
		return ErrMalformedProtocolName
	}
	pkt.Version = buf.Next(1)[0]
	if pkt.Version != VERSION311 {
		return ErrUnsupportedProtocolVersion
	}
	pkt.Flags = ConnectFlags(buf.Next(1)[0])
	if pkt.Flags.Reserved() != 0 {
		return ErrProtocolViolationReservedBit
	}
	pkt.KeepAlive = binary.BigEndian.Uint16(buf.Next(2))

	pkt.ClientID = decodeUTF8[string](buf)

	if pkt.Flags.WillFlag() {
		pkt.WillTopic = decodeUTF8[string](buf)
		pkt.WillPayload = decodeUTF8[[]byte](buf)
	}
	if pkt.Flags.UsernameFlag() {
		if buf.Len() < 2 {
			return ErrMalformedUsername
		}
		pkt.Username = decodeUTF8[string](buf)
	}
	if pkt.Flags.PasswordFlag() {
		if buf.Len() < 2 {
			return ErrMalformedPassword
		}
		pkt.Password = decodeUTF8[[]byte](buf)
	}
	return nil
}

// NewCONNECT builds a CONNECT packet from the host-facing Properties the
// reactor was configured with.
func NewCONNECT(clientID string, cleanSession bool, keepAlive uint16, username string, password []byte, willTopic string, willPayload []byte, willQoS uint8, willRetain bool) *CONNECT {
	flags := newConnectFlags(cleanSession, willTopic != "", willQoS, willRetain, len(password) > 0, username != "")
	return &CONNECT{
		FixedHeader: &FixedHeader{Kind: 0x1, Version: VERSION311},
		Flags:       flags,
		KeepAlive:   keepAlive,
		ClientID:    clientID,
		WillTopic:   willTopic,
		WillPayload: willPayload,
		Username:    username,
		Password:    password,
	}
}
