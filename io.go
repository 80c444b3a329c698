package reactor

import (
	"context"
	"net"
	"time"
)

// Transport is the non-blocking network handle the reactor drives. It is
// deliberately narrow: the reactor never blocks on it, so every method
// must return immediately with io.EOF/net.Error-style errors rather than
// waiting. Grounded on the teacher's client.go dial/conn pattern,
// generalized from a single always-blocking net.Conn into a transport the
// reactor can poll with WantRead/WantWrite.
type Transport interface {
	// Read behaves like net.Conn.Read: it must not block past what data
	// is already available. A zero-deadline read returning
	// (0, os.ErrDeadlineExceeded) or a wrapped net.Error with Timeout()
	// true is treated as "no data yet", not an error.
	Read(b []byte) (n int, err error)
	// Write behaves like net.Conn.Write for already-available buffer
	// space; partial writes are valid and are retried by the caller.
	Write(b []byte) (n int, err error)
	// Close tears down the transport immediately.
	Close() error
	// CloseWrite half-closes the write direction only: no further bytes
	// will be sent, but the peer's remaining inbound bytes are still
	// readable. Used by a graceful Stop's DISCONNECT launch action
	// (§4.6) once the DISCONNECT itself has been flushed.
	CloseWrite() error
	// HandshakeDone reports whether the transport has finished any
	// connection-establishment handshake beyond the bare socket connect
	// (TLS, WebSocket upgrade). Plain TCP transports always return true.
	HandshakeDone() bool
}

// SocketFactory constructs a Transport for a resolved address. Swapping
// this out is how TCP, TLS, and WebSocket transports plug into the same
// reactor core (§4.5, §6.2 socket_factory option).
type SocketFactory func(ctx context.Context, addr net.Addr) (Transport, error)

// Resolver performs asynchronous name resolution, returning a cancellable
// future. Grounded on haka_mqtt.reactor's `__on_name_resolution`, which
// treats resolution as a callback-driven background operation distinct
// from the connect step itself (§4.5).
type Resolver interface {
	// Resolve starts resolving host:port in the background and invokes
	// done exactly once, either with a resolved net.Addr or an error.
	// The returned cancel func stops the callback from firing if it
	// hasn't already.
	Resolve(ctx context.Context, hostport string, done func(net.Addr, error)) (cancel func())
}

// Selector mirrors a readiness multiplexer's view of one connection so a
// host event loop knows when to call Read/Write/Poll. The reactor updates
// it whenever WantRead/WantWrite change; selector package implementations
// translate that into epoll/kqueue registrations.
type Selector interface {
	// Update is called whenever the reactor's readiness interest changes.
	Update(wantRead, wantWrite bool)
}

type noopSelector struct{}

func (noopSelector) Update(bool, bool) {}

// defaultDialTimeout is the default Properties.ConnectTimeout.
var defaultDialTimeout = 10 * time.Second
