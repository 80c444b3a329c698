package reactor

import (
	"context"
	"fmt"
	"net"

	"github.com/golang-io/reactor/internal/queue"
	"github.com/golang-io/reactor/packet"
	"github.com/golang-io/reactor/transport"
)

// Start begins (or resumes) a connection attempt: name resolution, socket
// connect, and any transport handshake, followed by CONNECT/CONNACK
// (§4.5). It may be called only from ReactorInit or ReactorStopped; from
// any other state, ReactorError included, it returns an error and changes
// nothing.
func (r *Reactor) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.publishReadiness()

	if r.state != ReactorInit && r.state != ReactorStopped {
		return fmt.Errorf("reactor: Start called from state=%s", r.state)
	}
	if r.props.ClientID == "" && !r.props.CleanSession {
		return fmt.Errorf("reactor: empty client id requires clean_session (%s)", "MQTT-3.1.3-7")
	}
	if r.props.KeepalivePeriod/1e9 > 0xFFFF {
		return fmt.Errorf("reactor: keepalive_period overflows uint16 seconds")
	}

	r.rebuildOnReconnect()

	r.state = ReactorStarting
	r.sock = SockNameResolution
	r.mqtt = MqttConnack
	r.assertStateRules()

	resolver := r.props.Resolver
	if resolver == nil {
		resolver = transport.SystemResolver{}
	}
	// stale is set under r.mu by the stored cancel func (teardownDeadlines),
	// so a resolution that completes after Stop/Terminate/an error is
	// ignored even when the resolver itself could not suppress it.
	stale := false
	cancel := resolver.Resolve(ctx, r.props.Endpoint, func(addr net.Addr, err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if stale {
			return
		}
		r.resolveCancel = nil
		if err != nil {
			r.transitionError(&AddressError{Host: r.props.Endpoint, Err: err})
			r.failConnect(r.lastErr)
			return
		}
		r.onNameResolved(ctx, addr)
	})
	r.resolveCancel = func() {
		stale = true
		if cancel != nil {
			cancel()
		}
	}
	return nil
}

func (r *Reactor) onNameResolved(ctx context.Context, addr net.Addr) {
	r.sock = SockConnecting
	r.assertStateRules()

	factory := r.props.SocketFactory
	if factory == nil {
		r.transitionError(fmt.Errorf("reactor: no socket factory configured"))
		r.failConnect(r.lastErr)
		return
	}
	transport, err := factory(ctx, addr)
	if err != nil {
		r.transitionError(&SocketError{Op: "connect", Err: err})
		r.failConnect(r.lastErr)
		return
	}
	r.transport = transport
	r.sock = SockHandshake
	r.armKeepaliveAbort()
	r.assertStateRules()

	if transport.HandshakeDone() {
		r.onHandshakeDone()
	}
	// else: host event loop continues calling Write() until
	// HandshakeDone() flips true (TLS/WebSocket transports drive their
	// handshake bytes through the same Read/Write surface).
}

func (r *Reactor) onHandshakeDone() {
	r.sock = SockConnected
	r.emitConnect()
	r.assertStateRules()
}

// emitConnect pushes the CONNECT record to the front of preflight — ahead
// of any records a reconnect rebuild already staged — per §4.7.
func (r *Reactor) emitConnect() {
	built := packet.NewCONNECT(
		r.props.ClientID, r.props.CleanSession, uint16(r.props.KeepalivePeriod.Seconds()),
		r.props.Username, r.props.Password, r.props.WillTopic, r.props.WillPayload,
		r.props.WillQoS, r.props.WillRetain,
	)
	rec := &queue.Record{Kind: queue.KindConnect, Encode: packEncoder(built)}
	r.queue.PushFrontPreflight(rec)
}

func (r *Reactor) failConnect(err error) {
	if r.onConnectFail != nil {
		r.onConnectFail(err)
	}
}

func (r *Reactor) armKeepaliveAbort() {
	if r.keepaliveAbort != nil {
		r.keepaliveAbort.Cancel()
	}
	period := r.props.KeepalivePeriod
	abort := period + period/2 // 1.5x keepalive, §4.6
	// The scheduler only ever fires this callback from inside Poll, which
	// already holds r.mu — locking again here would deadlock.
	r.keepaliveAbort = r.sched.Add(abort, func() {
		r.transitionError(&KeepaliveTimeoutError{})
	})
}

func (r *Reactor) armKeepaliveDue() {
	if r.keepaliveDue != nil {
		r.keepaliveDue.Cancel()
	}
	r.keepaliveDue = r.sched.Add(r.props.KeepalivePeriod, func() {
		r.sendPingreq()
	})
}

func (r *Reactor) sendPingreq() {
	if r.pendingPingreq {
		return
	}
	r.pendingPingreq = true
	pkt := &packet.PINGREQ{FixedHeader: &packet.FixedHeader{Kind: 0xC}}
	r.queue.AppendPreflight(&queue.Record{Kind: queue.KindPingreq, Encode: packEncoder(pkt)})
}
