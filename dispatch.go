package reactor

import (
	"bytes"
	"io"

	"github.com/golang-io/reactor/internal/queue"
	"github.com/golang-io/reactor/packet"
)

// readChunk is how much we ask the transport for on each Read call; an
// MQTT control packet can be far larger, so rbuf accumulates across
// multiple reads until a full packet is available.
const readChunk = 4096

// Read pumps bytes from the transport into the reactor, decoding and
// dispatching as many complete control packets as are available. The
// host calls this whenever its selector reports the transport readable
// and WantRead is true (§4.2, §4.6).
func (r *Reactor) Read() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.publishReadiness()

	if r.sock == SockHandshake {
		return r.pumpHandshake()
	}
	if r.transport == nil {
		return nil
	}

	chunk := make([]byte, readChunk)
	for {
		n, err := r.transport.Read(chunk)
		if n > 0 {
			r.rbuf = append(r.rbuf, chunk[:n]...)
			r.onRecvBytes(n)
			if decodeErr := r.drainPackets(); decodeErr != nil {
				return decodeErr
			}
		}
		if err != nil {
			if isWouldBlock(err) {
				return nil
			}
			if err == io.EOF {
				r.onPeerEOF()
				return r.lastErr
			}
			r.transitionError(&SocketError{Op: "read", Err: err})
			return r.lastErr
		}
		if n == 0 {
			return nil
		}
	}
}

// onRecvBytes reschedules the keepalive-abort deadline: any inbound
// byte, not just a full packet, proves the peer is alive (§4.6).
func (r *Reactor) onRecvBytes(n int) {
	if n == 0 {
		return
	}
	r.armKeepaliveAbort()
	if r.metrics != nil {
		r.metrics.BytesReceived.Add(float64(n))
	}
}

// drainPackets decodes and dispatches every complete packet currently
// sitting in rbuf, leaving any trailing partial packet for the next Read.
func (r *Reactor) drainPackets() error {
	for {
		headerLen, remaining, ok := peekFixedHeaderLen(r.rbuf)
		if !ok {
			return nil
		}
		total := headerLen + int(remaining)
		if len(r.rbuf) < total {
			return nil
		}
		pkt, err := packet.Unpack(packet.VERSION311, bytes.NewReader(r.rbuf[:total]))
		r.rbuf = append([]byte(nil), r.rbuf[total:]...)
		if err != nil {
			r.transitionError(&DecodeError{Message: "malformed packet", Err: err})
			return r.lastErr
		}
		if r.metrics != nil {
			r.metrics.PacketsReceived.Inc()
		}
		if err := r.dispatch(pkt); err != nil {
			return err
		}
	}
}

// peekFixedHeaderLen parses just enough of buf to learn the fixed
// header's length and the packet's remaining-length value without
// consuming anything, so the caller can decide whether a full packet is
// present yet. Mirrors packet.decodeLength's variable-byte-integer
// decoding (§2.2.3) but bounded by what's actually buffered.
func peekFixedHeaderLen(buf []byte) (headerLen int, remaining uint32, ok bool) {
	if len(buf) < 2 {
		return 0, 0, false
	}
	i := 1
	var multiplier uint32 = 1
	var value uint32
	for {
		if i >= len(buf) {
			return 0, 0, false
		}
		b := buf[i]
		value += uint32(b&0x7F) * multiplier
		i++
		if b&0x80 == 0 {
			break
		}
		multiplier *= 128
		if multiplier > 128*128*128 {
			return 0, 0, false
		}
	}
	return i, value, true
}

func (r *Reactor) dispatch(pkt packet.Packet) error {
	switch p := pkt.(type) {
	case *packet.CONNACK:
		return r.onConnackPkt(p)
	case *packet.PUBLISH:
		return r.onPublishPkt(p)
	case *packet.PUBACK:
		return r.onPubackPkt(p)
	case *packet.PUBREC:
		return r.onPubrecPkt(p)
	case *packet.PUBREL:
		return r.onPubrelPkt(p)
	case *packet.PUBCOMP:
		return r.onPubcompPkt(p)
	case *packet.SUBACK:
		return r.onSubackPkt(p)
	case *packet.UNSUBACK:
		return r.onUnsubackPkt(p)
	case *packet.PINGRESP:
		r.pendingPingreq = false
		return nil
	default:
		r.transitionError(&ProtocolError{Message: "unexpected packet kind from broker"})
		return r.lastErr
	}
}

func (r *Reactor) onConnackPkt(p *packet.CONNACK) error {
	if r.mqtt != MqttConnack {
		r.transitionError(&ProtocolError{Message: "unexpected CONNACK"})
		return r.lastErr
	}
	if p.ReturnCode.Code != packet.CodeAccepted.Code {
		err := &ConnectError{ReturnCode: p.ReturnCode.Code, Reason: p.ReturnCode.Reason}
		r.transitionError(err)
		r.failConnect(err)
		return nil
	}
	r.sessionPresent = p.SessionPresent != 0
	r.mqtt = MqttConnected
	r.state = ReactorStarted
	r.armKeepaliveDue()
	r.assertStateRules()
	if r.onConnack != nil {
		r.onConnack(r.sessionPresent)
	}
	return nil
}

func (r *Reactor) onPublishPkt(p *packet.PUBLISH) error {
	switch p.QoS {
	case 0:
		// delivered below
	case 1:
		ack := &packet.PUBACK{FixedHeader: &packet.FixedHeader{Kind: 0x4}, PacketID: p.PacketID}
		r.queue.AppendPreflight(&queue.Record{Kind: queue.KindPuback, Encode: packEncoder(ack)})
	case 2:
		ack := &packet.PUBREC{FixedHeader: &packet.FixedHeader{Kind: 0x5}, PacketID: p.PacketID}
		r.queue.AppendPreflight(&queue.Record{Kind: queue.KindPubrec, Encode: packEncoder(ack)})
	}
	if r.onPublish != nil {
		r.onPublish(p.Message, p.QoS)
	}
	return nil
}

// matchPublishHead finds the oldest in-flight PUBLISH ticket in the given
// status, enforcing the ordering invariants [MQTT-4.6.0-2,3,4]: acks must
// arrive in the same order the corresponding publishes were sent.
func (r *Reactor) matchPublishHead(status PublishStatus) (*queue.Record, *PublishTicket, bool) {
	rec, ok := r.queue.InflightHead(queue.KindPublish)
	if !ok {
		return nil, nil, false
	}
	ticket, ok := rec.Ticket.(*PublishTicket)
	if !ok || ticket.Status != status {
		return nil, nil, false
	}
	return rec, ticket, true
}

func (r *Reactor) onPubackPkt(p *packet.PUBACK) error {
	rec, ticket, ok := r.matchPublishHead(PublishPuback)
	if !ok || rec.PacketID != p.PacketID {
		r.transitionError(&ProtocolError{Message: "PUBACK out of order or unknown"})
		return r.lastErr
	}
	ticket.Status = PublishDone
	r.queue.RemoveInflight(p.PacketID)
	r.ids.Release(p.PacketID)
	if r.onPuback != nil {
		r.onPuback(ticket)
	}
	return nil
}

func (r *Reactor) onPubrecPkt(p *packet.PUBREC) error {
	rec, ticket, ok := r.matchPublishHead(PublishPubrec)
	if !ok || rec.PacketID != p.PacketID {
		r.transitionError(&ProtocolError{Message: "PUBREC out of order or unknown"})
		return r.lastErr
	}
	r.queue.RemoveInflight(p.PacketID)
	// Insert the PUBREL at the current preflight tail, exactly as
	// reactor.py's __on_pubrec does with insert_idx = len(preflight_queue)
	// captured before any host callback runs, so a publish submitted from
	// within OnPubrec lands behind this PUBREL rather than in front of it.
	pubrel := &packet.PUBREL{FixedHeader: &packet.FixedHeader{Kind: 0x6, QoS: 1}, PacketID: p.PacketID}
	idx := r.queue.PreflightLen()
	r.queue.InsertPreflightAt(idx, &queue.Record{Kind: queue.KindPubrel, PacketID: p.PacketID, Ticket: ticket, Encode: packEncoder(pubrel)})
	if r.onPubrec != nil {
		r.onPubrec(ticket)
	}
	return nil
}

// onPubrelPkt answers an inbound QoS-2 delivery's PUBREL with PUBCOMP.
// This is the receive-side half of the handshake: the reactor already
// queued its own PUBREC when the PUBLISH first arrived (onPublishPkt), so
// there is no in-flight record here to match against — any PUBREL at all
// is expected once that PUBREC has gone out.
func (r *Reactor) onPubrelPkt(p *packet.PUBREL) error {
	comp := &packet.PUBCOMP{FixedHeader: &packet.FixedHeader{Kind: 0x7}, PacketID: p.PacketID}
	r.queue.AppendPreflight(&queue.Record{Kind: queue.KindPubcomp, Encode: packEncoder(comp)})
	if r.onPubrel != nil {
		r.onPubrel(p.PacketID)
	}
	return nil
}

func (r *Reactor) onPubcompPkt(p *packet.PUBCOMP) error {
	rec, ok := r.queue.InflightHead(queue.KindPubrel)
	if !ok || rec.PacketID != p.PacketID {
		r.transitionError(&ProtocolError{Message: "PUBCOMP out of order or unknown"})
		return r.lastErr
	}
	ticket, _ := rec.Ticket.(*PublishTicket)
	if ticket != nil {
		ticket.Status = PublishDone
	}
	r.queue.RemoveInflight(p.PacketID)
	r.ids.Release(p.PacketID)
	if r.onPubcomp != nil && ticket != nil {
		r.onPubcomp(ticket)
	}
	return nil
}

func (r *Reactor) onSubackPkt(p *packet.SUBACK) error {
	rec, ok := r.queue.Inflight(p.PacketID)
	if !ok {
		r.transitionError(&ProtocolError{Message: "SUBACK for unknown packet id"})
		return r.lastErr
	}
	ticket, _ := rec.Ticket.(*SubscribeTicket)
	if ticket != nil {
		ticket.Status = SubscribeDone
		ticket.GrantedCodes = make([]uint8, len(p.ReturnCodes))
		for i, rc := range p.ReturnCodes {
			ticket.GrantedCodes[i] = rc.Code
		}
	}
	r.queue.RemoveInflight(p.PacketID)
	r.ids.Release(p.PacketID)
	if r.onSuback != nil && ticket != nil {
		r.onSuback(ticket)
	}
	return nil
}

func (r *Reactor) onUnsubackPkt(p *packet.UNSUBACK) error {
	rec, ok := r.queue.Inflight(p.PacketID)
	if !ok {
		r.transitionError(&ProtocolError{Message: "UNSUBACK for unknown packet id"})
		return r.lastErr
	}
	ticket, _ := rec.Ticket.(*UnsubscribeTicket)
	if ticket != nil {
		ticket.Status = UnsubscribeDone
	}
	r.queue.RemoveInflight(p.PacketID)
	r.ids.Release(p.PacketID)
	if r.onUnsuback != nil && ticket != nil {
		r.onUnsuback(ticket)
	}
	return nil
}
