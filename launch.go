package reactor

import (
	"errors"

	"github.com/golang-io/reactor/internal/queue"
)

// Write flushes pending output to the transport. The host calls this
// whenever its selector reports the transport writable and WantWrite is
// true (§4.2, §4.4).
func (r *Reactor) Write() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.publishReadiness()
	return r.write()
}

func (r *Reactor) write() error {
	if r.sock == SockHandshake {
		return r.pumpHandshake()
	}
	if len(r.wbuf) == 0 {
		r.launchPreflight()
	}
	for len(r.wbuf) > 0 {
		n, err := r.transport.Write(r.wbuf)
		if n > 0 {
			r.wbuf = r.wbuf[n:]
			r.armKeepaliveDue()
		}
		if err != nil {
			if isWouldBlock(err) {
				return nil
			}
			r.transitionError(&SocketError{Op: "write", Err: err})
			return r.lastErr
		}
		if len(r.wbuf) == 0 {
			r.launchPreflight()
		}
	}
	if r.closingWrite {
		r.closingWrite = false
		r.halfCloseWrite()
	}
	return nil
}

// halfCloseWrite runs once a queued DISCONNECT has actually been flushed
// to the transport: only then does the local side stop writing, matching
// §4.6's "half-close writing" launch action for DISCONNECT. The read side
// stays open — onPeerEOF completes the teardown once the peer
// closes its half in turn.
func (r *Reactor) halfCloseWrite() {
	if r.sock != SockConnected {
		return
	}
	r.sock = SockMute
	r.pendingPingreq = false
	if r.keepaliveDue != nil {
		r.keepaliveDue.Cancel()
		r.keepaliveDue = nil
	}
	if r.transport != nil {
		_ = r.transport.CloseWrite()
	}
	r.assertStateRules()
}

func (r *Reactor) pumpHandshake() error {
	// Drive any pending handshake bytes (TLS ClientHello, WebSocket
	// upgrade request) through the same Write surface; once the
	// transport reports the handshake complete, fall through to CONNECT.
	_, err := r.transport.Write(nil)
	if err != nil && !isWouldBlock(err) {
		r.transitionError(&SocketError{Op: "handshake", Err: err})
		return r.lastErr
	}
	if r.transport.HandshakeDone() {
		r.onHandshakeDone()
	}
	return nil
}

// maxLaunchBuf is the ceiling, in encoded bytes, on what one
// launchPreflight pass stages onto wbuf.
const maxLaunchBuf = 1 << 16

// launchPreflight encodes preflight records onto wbuf in order, stopping
// before the first record that would push wbuf past maxLaunchBuf (a
// record is always taken when wbuf is empty, whatever its size) and
// immediately after a DISCONNECT record (nothing may follow one on the
// wire, §4.6), and moves every record that expects an acknowledgement
// into the in-flight queue in launch order (invariant 9).
func (r *Reactor) launchPreflight() {
	records := r.queue.Preflight()
	if len(records) == 0 {
		return
	}
	launched := 0
	for _, rec := range records {
		encoded, err := rec.Encode()
		if err != nil {
			r.transitionError(&DecodeError{Message: "failed to encode outbound record", Err: err})
			return
		}
		if len(r.wbuf) > 0 && len(r.wbuf)+len(encoded) > maxLaunchBuf {
			break
		}
		r.wbuf = append(r.wbuf, encoded...)
		launched++

		switch rec.Kind {
		case queue.KindPublish:
			ticket, _ := rec.Ticket.(*PublishTicket)
			if rec.PacketID != 0 {
				if ticket != nil {
					if ticket.QoS == 1 {
						ticket.Status = PublishPuback
					} else {
						ticket.Status = PublishPubrec
					}
				}
				r.queue.MoveToInflight(rec)
			} else if ticket != nil {
				// QoS 0: no packet id, no ack ever comes, nothing to track.
				ticket.Status = PublishDone
			}
		case queue.KindSubscribe, queue.KindUnsubscribe, queue.KindPubrel:
			r.queue.MoveToInflight(rec)
		case queue.KindPingreq, queue.KindConnect, queue.KindPuback, queue.KindPubcomp:
			// fire-and-forget on the wire, nothing to track
		case queue.KindDisconnect:
			r.queue.DropPreflightPrefix(launched)
			r.updateMetricsSent(len(encoded))
			// Half-close happens once these bytes actually reach the
			// transport (write()'s closingWrite check), not here: nothing
			// may follow a DISCONNECT on the wire, so launching stops now.
			r.closingWrite = true
			return
		}
		r.updateMetricsSent(len(encoded))
	}
	r.queue.DropPreflightPrefix(launched)
}

func (r *Reactor) updateMetricsSent(n int) {
	if r.metrics == nil {
		return
	}
	r.metrics.PacketsSent.Inc()
	r.metrics.BytesSent.Add(float64(n))
}

// isWouldBlock reports whether err represents "no progress right now" —
// the zero-deadline probe every Transport implementation in the
// transport package uses to fake non-blocking I/O on top of net.Conn
// surfaces a timeout error for exactly this case.
func isWouldBlock(err error) bool {
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
