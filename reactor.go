// Package reactor implements a non-blocking, single-threaded MQTT 3.1.1
// client protocol engine. It opens no socket and spawns no goroutine of its
// own: the transport comes from the configured SocketFactory, which the
// reactor calls once name resolution completes, and resolution comes from
// the configured Resolver (the default, transport.SystemResolver, resolves
// on a goroutine it starts). The host drives it by calling Read/Write when its transport is
// readable/writable and Poll when a scheduled deadline is due, exactly as
// a net/http RoundTripper is driven by its caller rather than driving
// itself.
package reactor

import (
	"fmt"
	"sync"

	"github.com/golang-io/reactor/internal/idalloc"
	"github.com/golang-io/reactor/internal/queue"
	"github.com/golang-io/reactor/internal/sched"
	"github.com/golang-io/reactor/packet"
)

// Reactor drives one MQTT session over one transport at a time. It is
// not safe for concurrent use: the host must serialize all calls, the
// same way a single-threaded event loop serializes callbacks (§3).
type Reactor struct {
	mu sync.Mutex

	props Properties

	state ReactorState
	sock  SocketState
	mqtt  MqttState
	lastErr error

	transport     Transport
	resolveCancel func()

	ids   *idalloc.Allocator
	sched *sched.Scheduler
	queue *queue.Queue

	rbuf []byte // accumulated, not-yet-fully-decoded inbound bytes
	wbuf []byte // encoded bytes not yet accepted by the transport

	pendingPingreq bool
	keepaliveDue   *sched.Deadline
	keepaliveAbort *sched.Deadline

	closingWrite bool // a DISCONNECT was launched; half-close write once wbuf drains

	sessionPresent bool // session_present from the most recent accepted CONNACK

	logger  Logger
	metrics *Metrics

	onConnectFail func(error)
	onDisconnect  func(error)
	onConnack     func(sessionPresent bool)
	onSuback      func(*SubscribeTicket)
	onUnsuback    func(*UnsubscribeTicket)
	onPublish     func(msg *packet.Message, qos uint8)
	onPuback      func(*PublishTicket)
	onPubrec      func(*PublishTicket)
	onPubrel      func(packetID uint16)
	onPubcomp     func(*PublishTicket)
}

// New constructs a Reactor in ReactorInit state. It performs no I/O.
func New(opts ...Option) *Reactor {
	props := newProperties(opts...)
	r := &Reactor{
		props:   props,
		state:   ReactorInit,
		sock:    SockStopped,
		mqtt:    MqttStopped,
		ids:     idalloc.New(),
		sched:   sched.New(props.Clock),
		queue:   queue.New(),
		logger:  props.Logger,
		metrics: props.Metrics,
	}
	if r.logger == nil {
		r.logger = nopLogger{}
	}
	return r
}

// State returns the reactor's lifecycle state.
func (r *Reactor) State() ReactorState { return r.state }

// SockState returns the transport-layer state.
func (r *Reactor) SockState() SocketState { return r.sock }

// MqttState returns the protocol-layer state.
func (r *Reactor) MqttState() MqttState { return r.mqtt }

// Err returns the cause of the most recent ReactorError transition, if any.
func (r *Reactor) Err() error { return r.lastErr }

// SessionPresent reports the session_present flag from the most recent
// accepted CONNACK (§4.7).
func (r *Reactor) SessionPresent() bool { return r.sessionPresent }

// OnConnectFail registers a callback fired when name resolution fails,
// when no socket factory is configured or the factory returns an error,
// and when a CONNACK carries a non-accepted return code. Other failures
// before MqttConnected (decode, protocol, socket or keepalive errors, or
// Stop while starting) do not fire it; they fire only OnDisconnect.
func (r *Reactor) OnConnectFail(fn func(error)) { r.onConnectFail = fn }

// OnDisconnect registers a callback fired every time the reactor tears
// down: on every transition to ReactorError (the connect failures above
// included, just before OnConnectFail) and on every Stop or Terminate
// teardown, with a nil error for a graceful stop. It fires whether or not
// the reactor ever reached MqttConnected, including for Terminate on a
// reactor that was never started.
func (r *Reactor) OnDisconnect(fn func(error)) { r.onDisconnect = fn }

// OnConnack registers a callback fired on every accepted CONNACK.
func (r *Reactor) OnConnack(fn func(sessionPresent bool)) { r.onConnack = fn }

// OnSuback registers a callback fired when a SUBSCRIBE is acknowledged.
func (r *Reactor) OnSuback(fn func(*SubscribeTicket)) { r.onSuback = fn }

// OnUnsuback registers a callback fired when an UNSUBSCRIBE is acknowledged.
func (r *Reactor) OnUnsuback(fn func(*UnsubscribeTicket)) { r.onUnsuback = fn }

// OnPublish registers a callback fired for every inbound PUBLISH,
// regardless of QoS. The reactor has already queued any required
// PUBACK/PUBREC by the time this fires; it goes out on a later Write.
func (r *Reactor) OnPublish(fn func(msg *packet.Message, qos uint8)) { r.onPublish = fn }

// OnPuback registers a callback fired when a QoS-1 publish completes.
func (r *Reactor) OnPuback(fn func(*PublishTicket)) { r.onPuback = fn }

// OnPubrec registers a callback fired when a QoS-2 publish's PUBREC
// arrives (before the PUBREL/PUBCOMP exchange completes it).
func (r *Reactor) OnPubrec(fn func(*PublishTicket)) { r.onPubrec = fn }

// OnPubcomp registers a callback fired when a QoS-2 publish completes.
func (r *Reactor) OnPubcomp(fn func(*PublishTicket)) { r.onPubcomp = fn }

// OnPubrel registers a callback fired when a broker's PUBREL arrives for
// an inbound QoS-2 PUBLISH this reactor already PUBREC'd.
func (r *Reactor) OnPubrel(fn func(packetID uint16)) { r.onPubrel = fn }

// WantRead reports whether the host should include this reactor's
// transport in its readable-interest set.
func (r *Reactor) WantRead() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wantRead()
}

func (r *Reactor) wantRead() bool {
	switch r.sock {
	case SockConnecting, SockHandshake, SockConnected, SockMute:
		// SockMute still wants read: the local side has half-closed its
		// write direction after a graceful DISCONNECT, but keeps reading
		// until the peer closes its half too (§4.6 Stop). SockDeaf is the
		// opposite — reserved for a future extension, not produced by the
		// standard flow — so it falls through to the false default here.
		return true
	default:
		return false
	}
}

// WantWrite reports whether the host should include this reactor's
// transport in its writable-interest set.
func (r *Reactor) WantWrite() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wantWrite()
}

func (r *Reactor) wantWrite() bool {
	if len(r.wbuf) > 0 {
		return true
	}
	switch r.sock {
	case SockConnecting, SockHandshake:
		return true
	case SockConnected:
		return r.queue.PreflightLen() > 0
	default:
		return false
	}
}

// Poll advances the scheduler, firing any due deadline (keepalive-due
// and keepalive-abort). The host calls this on a timer or before blocking on
// its selector with NextDeadline as the timeout.
func (r *Reactor) Poll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched.Poll()
	r.publishReadiness()
}

// publishReadiness republishes the reactor's current want_read/want_write
// interest to the readiness adapter. Called after every public entry
// point that could have changed either value, so a host driving Read,
// Write, and Poll off an epoll-style Selector never has to recompute
// interest itself (§4.3, §6.2 Selector option).
func (r *Reactor) publishReadiness() {
	r.props.Selector.Update(r.wantRead(), r.wantWrite())
}

// Subscribe enqueues a SUBSCRIBE for the given topic filters and returns
// a ticket the caller can poll for completion via the ticket's Status
// field and the OnSuback callback (§4.3).
func (r *Reactor) Subscribe(subs ...Subscription) (*SubscribeTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.publishReadiness()
	if r.state != ReactorStarted {
		return nil, fmt.Errorf("reactor: Subscribe called outside ReactorStarted (state=%s)", r.state)
	}
	id, err := r.ids.Acquire()
	if err != nil {
		return nil, err
	}
	ticket := &SubscribeTicket{PacketID: id, Subscriptions: subs, Status: SubscribePreflight}
	pkt := &packet.SUBSCRIBE{
		FixedHeader:   &packet.FixedHeader{Kind: 0x8, QoS: 1},
		PacketID:      id,
		Subscriptions: toPacketSubscriptions(subs),
	}
	rec := &queue.Record{Kind: queue.KindSubscribe, PacketID: id, Ticket: ticket, Encode: packEncoder(pkt)}
	r.queue.AppendPreflight(rec)
	r.assertStateRules()
	return ticket, nil
}

// Unsubscribe enqueues an UNSUBSCRIBE for the given topic filters.
func (r *Reactor) Unsubscribe(filters ...string) (*UnsubscribeTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.publishReadiness()
	if r.state != ReactorStarted {
		return nil, fmt.Errorf("reactor: Unsubscribe called outside ReactorStarted (state=%s)", r.state)
	}
	id, err := r.ids.Acquire()
	if err != nil {
		return nil, err
	}
	ticket := &UnsubscribeTicket{PacketID: id, TopicFilters: filters, Status: UnsubscribePreflight}
	pkt := &packet.UNSUBSCRIBE{
		FixedHeader:  &packet.FixedHeader{Kind: 0xA, QoS: 1},
		PacketID:     id,
		TopicFilters: filters,
	}
	rec := &queue.Record{Kind: queue.KindUnsubscribe, PacketID: id, Ticket: ticket, Encode: packEncoder(pkt)}
	r.queue.AppendPreflight(rec)
	r.assertStateRules()
	return ticket, nil
}

// Publish enqueues a PUBLISH at the requested QoS (§4.3, §4.4). QoS 0
// publishes carry no packet id and are never tracked past the wire write.
func (r *Reactor) Publish(topic string, payload []byte, qos uint8, retain bool) (*PublishTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.publishReadiness()
	if r.state != ReactorStarted {
		return nil, fmt.Errorf("reactor: Publish called outside ReactorStarted (state=%s)", r.state)
	}
	if qos > 2 {
		return nil, fmt.Errorf("reactor: invalid qos %d", qos)
	}
	var id uint16
	var err error
	if qos > 0 {
		id, err = r.ids.Acquire()
		if err != nil {
			return nil, err
		}
	}
	ticket := &PublishTicket{PacketID: id, Topic: topic, Payload: payload, QoS: qos, Retain: retain, Status: PublishPreflight}
	rec := r.publishRecord(ticket)
	r.queue.AppendPreflight(rec)
	r.assertStateRules()
	return ticket, nil
}

func (r *Reactor) publishRecord(t *PublishTicket) *queue.Record {
	pkt := &packet.PUBLISH{
		FixedHeader: &packet.FixedHeader{Kind: 0x3, Dup: b2u8(t.Dupe), QoS: t.QoS, Retain: b2u8(t.Retain)},
		PacketID:    t.PacketID,
		Message:     &packet.Message{TopicName: t.Topic, Content: t.Payload},
	}
	return &queue.Record{Kind: queue.KindPublish, PacketID: t.PacketID, Dupe: t.Dupe, Ticket: t, Encode: packEncoder(pkt)}
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func toPacketSubscriptions(subs []Subscription) []packet.Subscription {
	out := make([]packet.Subscription, len(subs))
	for i, s := range subs {
		out[i] = packet.Subscription{TopicFilter: s.TopicFilter, MaximumQoS: s.MaximumQoS}
	}
	return out
}

// packEncoder adapts a packet.Packet's Pack method to the queue's
// buffer-returning Encode signature, routing it through the codec's
// pooled buffer the way every packet-type file already does internally.
func packEncoder(pkt packet.Packet) func() ([]byte, error) {
	return func() ([]byte, error) {
		buf := packet.GetBuffer()
		defer packet.PutBuffer(buf)
		if err := pkt.Pack(buf); err != nil {
			return nil, err
		}
		out := make([]byte, buf.Len())
		copy(out, buf.Bytes())
		return out, nil
	}
}

func (r *Reactor) transitionError(err error) {
	r.state = ReactorError
	r.lastErr = err
	r.sock = SockStopped
	r.mqtt = MqttStopped
	r.closingWrite = false
	r.teardownDeadlines()
	r.transport = nil
	r.logger.Errorf("reactor entered error state: %v", err)
	if r.onDisconnect != nil {
		r.onDisconnect(err)
	}
}

func (r *Reactor) teardownDeadlines() {
	if r.keepaliveDue != nil {
		r.keepaliveDue.Cancel()
		r.keepaliveDue = nil
	}
	if r.keepaliveAbort != nil {
		r.keepaliveAbort.Cancel()
		r.keepaliveAbort = nil
	}
	if r.resolveCancel != nil {
		r.resolveCancel()
		r.resolveCancel = nil
	}
}
