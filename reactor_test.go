package reactor

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/golang-io/reactor/internal/queue"
	"github.com/golang-io/reactor/internal/sched"
	"github.com/golang-io/reactor/packet"
)

// wouldBlock mimics the zero-deadline probe's sentinel error: no data or
// buffer space available right now, not a real failure.
type wouldBlock struct{}

func (wouldBlock) Error() string   { return "would block" }
func (wouldBlock) Timeout() bool   { return true }
func (wouldBlock) Temporary() bool { return true }

// fakeTransport is an in-memory stand-in for a TCP connection to a broker:
// toReactor is bytes the test injects as if the broker sent them; sent
// accumulates everything the reactor wrote, for assertions.
type fakeTransport struct {
	toReactor   []byte
	sent        []byte
	closed      bool
	writeClosed bool
	eof         bool // once toReactor drains, Read reports io.EOF instead of would-block
}

func (t *fakeTransport) Read(b []byte) (int, error) {
	if len(t.toReactor) == 0 {
		if t.eof {
			return 0, io.EOF
		}
		return 0, wouldBlock{}
	}
	n := copy(b, t.toReactor)
	t.toReactor = t.toReactor[n:]
	return n, nil
}

func (t *fakeTransport) Write(b []byte) (int, error) {
	t.sent = append(t.sent, b...)
	return len(b), nil
}

func (t *fakeTransport) Close() error        { t.closed = true; return nil }
func (t *fakeTransport) CloseWrite() error   { t.writeClosed = true; return nil }
func (t *fakeTransport) HandshakeDone() bool { return true }

// fakeResolver resolves from a spawned goroutine, the same asynchrony
// shape as transport.SystemResolver (Start holds the reactor's lock across
// the call to Resolve, so done must not run until that call returns). Each
// resolution sends on resolved, letting callers wait deterministically
// instead of sleeping; the channel is buffered so a resolver reused across
// a reconnect never blocks a resolution no one is waiting on yet.
type fakeResolver struct {
	resolved chan struct{}
}

func newFakeResolver() fakeResolver {
	return fakeResolver{resolved: make(chan struct{}, 8)}
}

func (f fakeResolver) Resolve(ctx context.Context, hostport string, done func(net.Addr, error)) func() {
	go func() {
		done(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1883}, nil)
		f.resolved <- struct{}{}
	}()
	return func() {}
}

func (f fakeResolver) waitResolved(t *testing.T) {
	t.Helper()
	select {
	case <-f.resolved:
	case <-time.After(time.Second):
		t.Fatal("fake name resolution never completed")
	}
}

func newTestReactor(t *testing.T, transport *fakeTransport, opts ...Option) *Reactor {
	t.Helper()
	r, _ := newTestReactorWithResolver(t, transport, opts...)
	return r
}

func newTestReactorWithResolver(t *testing.T, transport *fakeTransport, opts ...Option) (*Reactor, fakeResolver) {
	t.Helper()
	resolver := newFakeResolver()
	base := []Option{
		ClientID("test-client"),
		CleanSession(true),
		WithResolver(resolver),
		WithSocketFactory(func(ctx context.Context, addr net.Addr) (Transport, error) {
			return transport, nil
		}),
	}
	r := New(append(base, opts...)...)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	resolver.waitResolved(t)
	if r.SockState() != SockConnected || r.MqttState() != MqttConnack {
		t.Fatalf("after Start: sock=%s mqtt=%s, want connected/connack", r.SockState(), r.MqttState())
	}
	return r, resolver
}

func encodePacket(t *testing.T, pkt packet.Packet) []byte {
	t.Helper()
	buf := packet.GetBuffer()
	defer packet.PutBuffer(buf)
	if err := pkt.Pack(buf); err != nil {
		t.Fatalf("pack %T: %v", pkt, err)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}

func connack(t *testing.T, sessionPresent bool, code packet.ReasonCode) []byte {
	var sp uint8
	if sessionPresent {
		sp = 1
	}
	return encodePacket(t, &packet.CONNACK{
		FixedHeader:    &packet.FixedHeader{Kind: 0x2},
		SessionPresent: sp,
		ReturnCode:     code,
	})
}

func deliverConnack(t *testing.T, r *Reactor, transport *fakeTransport, sessionPresent bool) {
	t.Helper()
	// Flush the CONNECT the reactor queued so the wire-ordering invariant
	// (nothing is dispatched before CONNECT is written) actually holds.
	if err := r.Write(); err != nil {
		t.Fatalf("Write (flush CONNECT): %v", err)
	}
	transport.toReactor = append(transport.toReactor, connack(t, sessionPresent, packet.CodeAccepted)...)
	if err := r.Read(); err != nil {
		t.Fatalf("Read (CONNACK): %v", err)
	}
	if r.State() != ReactorStarted {
		t.Fatalf("state after CONNACK = %s, want started", r.State())
	}
}

func TestHappyPathQoS1Publish(t *testing.T) {
	transport := &fakeTransport{}
	r := newTestReactor(t, transport)
	deliverConnack(t, r, transport, false)

	ticket, err := r.Publish("a/b", []byte("hello"), 1, false)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := r.Write(); err != nil {
		t.Fatalf("Write (flush PUBLISH): %v", err)
	}
	if ticket.Status != PublishPuback {
		t.Fatalf("ticket status after launch, before ack = %s, want puback", ticket.Status)
	}

	var pubacked *PublishTicket
	r.OnPuback(func(pt *PublishTicket) { pubacked = pt })

	puback := encodePacket(t, &packet.PUBACK{FixedHeader: &packet.FixedHeader{Kind: 0x4}, PacketID: ticket.PacketID})
	transport.toReactor = append(transport.toReactor, puback...)
	if err := r.Read(); err != nil {
		t.Fatalf("Read (PUBACK): %v", err)
	}

	if ticket.Status != PublishDone {
		t.Fatalf("ticket status after PUBACK = %s, want done", ticket.Status)
	}
	if pubacked != ticket {
		t.Fatal("OnPuback callback did not fire with the matching ticket")
	}
	if r.ids.Held(ticket.PacketID) {
		t.Fatal("packet id not released after PUBACK")
	}
}

func TestOutOfOrderPubackIsProtocolError(t *testing.T) {
	transport := &fakeTransport{}
	r := newTestReactor(t, transport)
	deliverConnack(t, r, transport, false)

	if _, err := r.Publish("a", []byte("1"), 1, false); err != nil {
		t.Fatalf("Publish 1: %v", err)
	}
	if _, err := r.Publish("b", []byte("2"), 1, false); err != nil {
		t.Fatalf("Publish 2: %v", err)
	}
	if err := r.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Ack the second in-flight publish (packet id 2) before the first
	// (packet id 1): violates head-of-line ordering [MQTT-4.6.0-2].
	puback := encodePacket(t, &packet.PUBACK{FixedHeader: &packet.FixedHeader{Kind: 0x4}, PacketID: 2})
	transport.toReactor = append(transport.toReactor, puback...)
	err := r.Read()
	if err == nil {
		t.Fatal("expected a protocol error for out-of-order PUBACK")
	}
	if r.State() != ReactorError {
		t.Fatalf("state = %s, want error", r.State())
	}
	var perr *ProtocolError
	if pe, ok := r.Err().(*ProtocolError); ok {
		perr = pe
	}
	if perr == nil {
		t.Fatalf("Err() = %v (%T), want *ProtocolError", r.Err(), r.Err())
	}
}

func TestQoS2PublishFullHandshake(t *testing.T) {
	transport := &fakeTransport{}
	r := newTestReactor(t, transport)
	deliverConnack(t, r, transport, false)

	ticket, err := r.Publish("x/y", []byte("data"), 2, false)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := r.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var pubrecFired, pubcompFired *PublishTicket
	r.OnPubrec(func(pt *PublishTicket) { pubrecFired = pt })
	r.OnPubcomp(func(pt *PublishTicket) { pubcompFired = pt })

	pubrec := encodePacket(t, &packet.PUBREC{FixedHeader: &packet.FixedHeader{Kind: 0x5}, PacketID: ticket.PacketID})
	transport.toReactor = append(transport.toReactor, pubrec...)
	if err := r.Read(); err != nil {
		t.Fatalf("Read (PUBREC): %v", err)
	}
	if pubrecFired != ticket {
		t.Fatal("OnPubrec did not fire")
	}

	if err := r.Write(); err != nil {
		t.Fatalf("Write (flush PUBREL): %v", err)
	}

	pubcomp := encodePacket(t, &packet.PUBCOMP{FixedHeader: &packet.FixedHeader{Kind: 0x7}, PacketID: ticket.PacketID})
	transport.toReactor = append(transport.toReactor, pubcomp...)
	if err := r.Read(); err != nil {
		t.Fatalf("Read (PUBCOMP): %v", err)
	}
	if pubcompFired != ticket || ticket.Status != PublishDone {
		t.Fatalf("ticket after PUBCOMP: status=%s fired=%v", ticket.Status, pubcompFired != nil)
	}
	if r.ids.Held(ticket.PacketID) {
		t.Fatal("packet id not released after PUBCOMP")
	}
}

func TestInboundQoS2DeliveryAnswersPubrelWithPubcomp(t *testing.T) {
	transport := &fakeTransport{}
	r := newTestReactor(t, transport)
	deliverConnack(t, r, transport, false)

	var delivered *packet.Message
	r.OnPublish(func(msg *packet.Message, qos uint8) { delivered = msg })
	var pubrelSeen uint16
	r.OnPubrel(func(id uint16) { pubrelSeen = id })

	inbound := encodePacket(t, &packet.PUBLISH{
		FixedHeader: &packet.FixedHeader{Kind: 0x3, QoS: 2},
		PacketID:    7,
		Message:     &packet.Message{TopicName: "t", Content: []byte("v")},
	})
	transport.toReactor = append(transport.toReactor, inbound...)
	if err := r.Read(); err != nil {
		t.Fatalf("Read (inbound PUBLISH): %v", err)
	}
	if delivered == nil || delivered.TopicName != "t" {
		t.Fatalf("OnPublish did not deliver the message: %+v", delivered)
	}

	sentBefore := len(transport.sent)
	if err := r.Write(); err != nil {
		t.Fatalf("Write (flush PUBREC): %v", err)
	}
	if len(transport.sent) <= sentBefore {
		t.Fatal("expected a PUBREC to be written for inbound QoS 2")
	}

	pubrel := encodePacket(t, &packet.PUBREL{FixedHeader: &packet.FixedHeader{Kind: 0x6, QoS: 1}, PacketID: 7})
	transport.toReactor = append(transport.toReactor, pubrel...)
	if err := r.Read(); err != nil {
		t.Fatalf("Read (PUBREL): %v", err)
	}
	if pubrelSeen != 7 {
		t.Fatalf("OnPubrel packet id = %d, want 7", pubrelSeen)
	}

	sentBefore = len(transport.sent)
	if err := r.Write(); err != nil {
		t.Fatalf("Write (flush PUBCOMP): %v", err)
	}
	if len(transport.sent) <= sentBefore {
		t.Fatal("expected a PUBCOMP to be written in response to PUBREL")
	}
}

func TestSessionResumeRepublishesWithDupe(t *testing.T) {
	transport := &fakeTransport{}
	r, resolver := newTestReactorWithResolver(t, transport, CleanSession(false))
	deliverConnack(t, r, transport, false)

	ticket, err := r.Publish("resume/me", []byte("payload"), 1, false)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := r.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rec, ok := r.queue.InflightHead(queue.KindPublish)
	if !ok || rec.PacketID != ticket.PacketID {
		t.Fatalf("expected the publish to be in-flight after Write")
	}
	if ticket.Status != PublishPuback {
		t.Fatalf("ticket status after launch = %s, want puback", ticket.Status)
	}

	// Disconnect uncleanly (Terminate: no DISCONNECT sent) and start over;
	// reuse the same reactor instance to exercise rebuildOnReconnect's read
	// of the still-populated in-flight/preflight queues.
	r.Terminate(nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	resolver.waitResolved(t)

	found := false
	for _, rec := range r.queue.Preflight() {
		if pt, ok := rec.Ticket.(*PublishTicket); ok && pt == ticket {
			found = true
			if !pt.Dupe {
				t.Fatal("republished ticket should have Dupe=true")
			}
			if pt.Status != PublishPreflight {
				t.Fatalf("republished ticket status = %s, want preflight", pt.Status)
			}
		}
	}
	if !found {
		t.Fatal("surviving QoS-1 publish was not rebuilt into the new preflight")
	}
}

func TestSubscribeAndUnsubscribeHappyPath(t *testing.T) {
	transport := &fakeTransport{}
	r := newTestReactor(t, transport)
	deliverConnack(t, r, transport, false)

	var subacked *SubscribeTicket
	r.OnSuback(func(st *SubscribeTicket) { subacked = st })

	subTicket, err := r.Subscribe(Subscription{TopicFilter: "a/b", MaximumQoS: 1})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := r.Write(); err != nil {
		t.Fatalf("Write (flush SUBSCRIBE): %v", err)
	}
	if _, ok := r.queue.Inflight(subTicket.PacketID); !ok {
		t.Fatal("expected the SUBSCRIBE to be in-flight after Write")
	}

	suback := encodePacket(t, &packet.SUBACK{
		FixedHeader: &packet.FixedHeader{Kind: 0x9},
		PacketID:    subTicket.PacketID,
		ReturnCodes: []packet.ReasonCode{packet.CodeGrantedQos1},
	})
	transport.toReactor = append(transport.toReactor, suback...)
	if err := r.Read(); err != nil {
		t.Fatalf("Read (SUBACK): %v", err)
	}
	if subacked != subTicket {
		t.Fatal("OnSuback did not fire with the matching ticket")
	}
	if subTicket.Status != SubscribeDone {
		t.Fatalf("subscribe ticket status = %s, want done", subTicket.Status)
	}
	if len(subTicket.GrantedCodes) != 1 || subTicket.GrantedCodes[0] != packet.CodeGrantedQos1.Code {
		t.Fatalf("granted codes = %v, want [%d]", subTicket.GrantedCodes, packet.CodeGrantedQos1.Code)
	}
	if r.ids.Held(subTicket.PacketID) {
		t.Fatal("packet id not released after SUBACK")
	}

	var unsubacked *UnsubscribeTicket
	r.OnUnsuback(func(ut *UnsubscribeTicket) { unsubacked = ut })

	unsubTicket, err := r.Unsubscribe("a/b")
	if err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if err := r.Write(); err != nil {
		t.Fatalf("Write (flush UNSUBSCRIBE): %v", err)
	}

	unsuback := encodePacket(t, &packet.UNSUBACK{
		FixedHeader: &packet.FixedHeader{Kind: 0xB, RemainingLength: 2},
		PacketID:    unsubTicket.PacketID,
	})
	transport.toReactor = append(transport.toReactor, unsuback...)
	if err := r.Read(); err != nil {
		t.Fatalf("Read (UNSUBACK): %v", err)
	}
	if unsubacked != unsubTicket {
		t.Fatal("OnUnsuback did not fire with the matching ticket")
	}
	if unsubTicket.Status != UnsubscribeDone {
		t.Fatalf("unsubscribe ticket status = %s, want done", unsubTicket.Status)
	}
	if r.ids.Held(unsubTicket.PacketID) {
		t.Fatal("packet id not released after UNSUBACK")
	}
}

func TestStopQueuesDisconnectThenTearsDown(t *testing.T) {
	transport := &fakeTransport{}
	r := newTestReactor(t, transport)
	deliverConnack(t, r, transport, false)

	var disconnected bool
	r.OnDisconnect(func(err error) { disconnected = true })

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if r.State() != ReactorStopping {
		t.Fatalf("state right after Stop = %s, want stopping", r.State())
	}
	if err := r.Write(); err != nil {
		t.Fatalf("Write (flush DISCONNECT): %v", err)
	}

	disconnectBytes := encodePacket(t, &packet.DISCONNECT{FixedHeader: &packet.FixedHeader{Kind: 0xE}})
	if !bytes.HasSuffix(transport.sent, disconnectBytes) {
		t.Fatalf("DISCONNECT bytes were not written to the transport: sent=% x", transport.sent)
	}
	if r.State() != ReactorStopping {
		t.Fatalf("state right after DISCONNECT flush = %s, want still stopping", r.State())
	}
	if r.SockState() != SockMute {
		t.Fatalf("sock state right after DISCONNECT flush = %s, want mute", r.SockState())
	}
	if !transport.writeClosed {
		t.Fatal("transport write half was not closed after DISCONNECT flushed")
	}
	if disconnected || transport.closed {
		t.Fatal("reactor tore down before the peer closed its half")
	}

	// The peer's own FIN/close arrives next, completing the graceful stop.
	transport.eof = true
	if err := r.Read(); err != nil {
		t.Fatalf("Read (peer EOF): %v", err)
	}
	if r.State() != ReactorStopped {
		t.Fatalf("state after peer EOF = %s, want stopped", r.State())
	}
	if !disconnected {
		t.Fatal("OnDisconnect did not fire")
	}
	if !transport.closed {
		t.Fatal("transport was not closed on stop")
	}
	if r.Err() != nil {
		t.Fatalf("Err() = %v, want nil for a graceful stop", r.Err())
	}
}

// TestUnexpectedEOFWhileConnectedRaisesMutePeerError covers the other side
// of the same EOF-handling path: a peer that disappears without us ever
// having queued a DISCONNECT is an error, not a graceful stop.
func TestUnexpectedEOFWhileConnectedRaisesMutePeerError(t *testing.T) {
	transport := &fakeTransport{}
	r := newTestReactor(t, transport)
	deliverConnack(t, r, transport, false)

	transport.eof = true
	if err := r.Read(); err == nil {
		t.Fatal("Read: expected an error on unexpected peer EOF")
	}
	if r.State() != ReactorError {
		t.Fatalf("state after unexpected EOF = %s, want error", r.State())
	}
	if _, ok := r.Err().(*MutePeerError); !ok {
		t.Fatalf("Err() = %v (%T), want *MutePeerError", r.Err(), r.Err())
	}
}

// TestQoS0PublishCompletesOnFlush covers the fire-and-forget path: a QoS-0
// publish carries no packet id and is never acknowledged, so it must reach
// PublishDone as soon as it is handed to the transport.
func TestQoS0PublishCompletesOnFlush(t *testing.T) {
	transport := &fakeTransport{}
	r := newTestReactor(t, transport)
	deliverConnack(t, r, transport, false)

	ticket, err := r.Publish("a/b", []byte("hello"), 0, false)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := r.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if ticket.Status != PublishDone {
		t.Fatalf("ticket.Status = %v, want PublishDone", ticket.Status)
	}
	if ticket.PacketID != 0 {
		t.Fatalf("ticket.PacketID = %d, want 0 for QoS 0", ticket.PacketID)
	}
}

func TestKeepaliveSendsPingreqThenAbortsOnSilence(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	transport := &fakeTransport{}
	r := newTestReactor(t, transport, WithClock(clock), KeepalivePeriod(10*time.Second))
	deliverConnack(t, r, transport, false)

	clock.now = clock.now.Add(10 * time.Second)
	r.Poll()
	if err := r.Write(); err != nil {
		t.Fatalf("Write (flush PINGREQ): %v", err)
	}
	if !r.pendingPingreq {
		t.Fatal("expected a pending PINGREQ after the keepalive-due deadline")
	}

	clock.now = clock.now.Add(15 * time.Second) // past the 1.5x abort deadline
	r.Poll()
	if r.State() != ReactorError {
		t.Fatalf("state after keepalive silence = %s, want error", r.State())
	}
	if _, ok := r.Err().(*KeepaliveTimeoutError); !ok {
		t.Fatalf("Err() = %v (%T), want *KeepaliveTimeoutError", r.Err(), r.Err())
	}
}

func TestConnackWithUnexpectedSessionPresentOnCleanSession(t *testing.T) {
	transport := &fakeTransport{}
	r := newTestReactor(t, transport, CleanSession(true))

	if err := r.Write(); err != nil {
		t.Fatalf("Write (flush CONNECT): %v", err)
	}
	transport.toReactor = append(transport.toReactor, connack(t, true, packet.CodeAccepted)...)
	if err := r.Read(); err != nil {
		t.Fatalf("Read (CONNACK): %v", err)
	}

	// The protocol layer accepts the CONNACK regardless (clean_session with
	// session_present=true is a broker-side anomaly, not one the reactor
	// itself rejects per [MQTT-3.2.2-1]); session_present is just surfaced
	// for the host to decide what, if anything, to do about it.
	if !r.SessionPresent() {
		t.Fatal("SessionPresent() should reflect the CONNACK's flag even when unexpected")
	}
	if r.State() != ReactorStarted {
		t.Fatalf("state = %s, want started", r.State())
	}
}

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

var _ sched.Clock = (*manualClock)(nil)
