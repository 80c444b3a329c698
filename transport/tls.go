package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// TLSConn wraps a *tls.Conn so the reactor can drive its handshake
// through the same non-blocking Write/Read surface as plain TCP, rather
// than the teacher's client.go dial() which used tls.DialWithDialer and
// blocked until the handshake finished. HandshakeDone reports false
// until the handshake completes, so the reactor's connect.go keeps
// calling Write()/Read() (which pump tls.Conn's internal handshake state
// machine) before it ever emits CONNECT.
type TLSConn struct {
	TCP
	conn        *tls.Conn
	raw         net.Conn
	config      *tls.Config
	handshaking bool
	handshakeErr error
}

// DialTLS connects a raw TCP socket to addr and wraps it for a
// client-side TLS handshake; the handshake itself runs lazily, driven by
// the reactor's Read/Write calls.
func DialTLS(ctx context.Context, addr net.Addr, config *tls.Config) (*TLSConn, error) {
	tcp, err := DialTCP(ctx, addr)
	if err != nil {
		return nil, err
	}
	conn := tls.Client(tcp.Conn, config)
	return &TLSConn{TCP: TCP{Conn: conn}, conn: conn, raw: tcp.Conn, config: config, handshaking: true}, nil
}

// HandshakeDone drives one non-blocking step of the TLS handshake. A
// timeout (no bytes available yet on the raw socket) means "try again
// once the selector reports readiness"; any other error is sticky and
// surfaces from Read/Write on the next call.
func (t *TLSConn) HandshakeDone() bool {
	if !t.handshaking {
		return true
	}
	if t.handshakeErr != nil {
		return false
	}
	_ = t.raw.SetDeadline(time.Now())
	err := t.conn.Handshake()
	if err == nil {
		t.handshaking = false
		return true
	}
	if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		return false
	}
	t.handshakeErr = err
	return false
}

func (t *TLSConn) Read(b []byte) (int, error) {
	if t.handshakeErr != nil {
		return 0, t.handshakeErr
	}
	return t.TCP.Read(b)
}

func (t *TLSConn) Write(b []byte) (int, error) {
	if t.handshakeErr != nil {
		return 0, t.handshakeErr
	}
	return t.TCP.Write(b)
}
