package reactor

import (
	"github.com/golang-io/reactor/internal/queue"
	"github.com/golang-io/reactor/packet"
)

// Stop requests a graceful shutdown. From ReactorStarted, a DISCONNECT is
// queued behind any already-pending preflight records; once it has been
// flushed the write half is closed (SockMute) and the reactor stays
// ReactorStopping until the peer closes its side, which completes the
// stop (§4.6). From ReactorStarting, before a CONNACK has been accepted,
// it tears down at once with no DISCONNECT. In any other state Stop is a
// no-op.
func (r *Reactor) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.publishReadiness()
	if r.state != ReactorStarted && r.state != ReactorStarting {
		return nil
	}
	r.state = ReactorStopping
	if r.mqtt == MqttConnected {
		pkt := &packet.DISCONNECT{FixedHeader: &packet.FixedHeader{Kind: 0xE}}
		r.queue.AppendPreflight(&queue.Record{Kind: queue.KindDisconnect, Encode: packEncoder(pkt)})
	} else {
		r.stopImmediate(nil)
	}
	r.assertStateRules()
	return nil
}

// Terminate tears the reactor down immediately without attempting a
// graceful DISCONNECT, recording cause as the reason surfaced through
// OnDisconnect and Err() (§4.6).
func (r *Reactor) Terminate(cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.publishReadiness()
	r.stopImmediate(cause)
}

func (r *Reactor) stopImmediate(cause error) {
	if r.transport != nil {
		_ = r.transport.Close()
		r.transport = nil
	}
	r.teardownDeadlines()
	r.pendingPingreq = false
	r.closingWrite = false
	r.wbuf = nil
	r.rbuf = nil

	r.sock = SockStopped
	r.mqtt = MqttStopped
	if cause != nil {
		r.state = ReactorError
		r.lastErr = cause
	} else {
		r.state = ReactorStopped
	}
	r.assertStateRules()

	if r.onDisconnect != nil {
		r.onDisconnect(cause)
	}
}

// onPeerEOF handles an io.EOF observed by Read(). If the local side
// already half-closed its own write direction after queuing a DISCONNECT
// (sock is already SockMute), this EOF is the expected completion of a
// graceful stop (§4.6 Stop: "remains stopping until peer EOF ...
// terminates it") and tears down with no error. Otherwise the peer
// closed its read half at an unexpected point (§7) and the reactor
// aborts with MutePeerError.
func (r *Reactor) onPeerEOF() {
	if r.sock == SockMute {
		r.stopImmediate(nil)
		return
	}
	r.transitionError(&MutePeerError{})
}
