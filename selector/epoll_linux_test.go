//go:build linux

package selector

import (
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

// rawTCPConn is a minimal RawConner backed by a real *net.TCPConn, enough
// to exercise Register/Wait/Update/Close without needing the transport
// package (which would create an import cycle: transport never imports
// selector, but pulling it into a _test.go here would still add a
// dependency this package's tests don't otherwise need).
type rawTCPConn struct{ conn *net.TCPConn }

func (r rawTCPConn) RawConn() (syscall.RawConn, error) { return r.conn.SyscallConn() }

func tcpPair(t *testing.T) (client, server *net.TCPConn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	var srv net.Conn
	var acceptErr error
	go func() {
		defer wg.Done()
		srv, acceptErr = ln.Accept()
	}()

	cli, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	wg.Wait()
	if acceptErr != nil {
		t.Fatalf("accept: %v", acceptErr)
	}
	return cli.(*net.TCPConn), srv.(*net.TCPConn)
}

func TestEpollRegisterAndWaitReportsReadable(t *testing.T) {
	client, server := tcpPair(t)
	defer client.Close()
	defer server.Close()

	ep, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ep.Close()

	var readable int32
	reg, err := ep.Register(rawTCPConn{client}, func() { atomic.AddInt32(&readable, 1) }, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer reg.Close()
	reg.Update(true, false)

	if _, err := server.Write([]byte("hi")); err != nil {
		t.Fatalf("server write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&readable) == 0 && time.Now().Before(deadline) {
		if err := ep.Wait(100); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if atomic.LoadInt32(&readable) == 0 {
		t.Fatal("onReadable never fired after the peer wrote data")
	}
}

func TestEpollUpdateTogglesWriteInterest(t *testing.T) {
	client, server := tcpPair(t)
	defer client.Close()
	defer server.Close()

	ep, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ep.Close()

	var writable int32
	reg, err := ep.Register(rawTCPConn{client}, nil, func() { atomic.AddInt32(&writable, 1) })
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer reg.Close()

	// Not yet interested in writability: Wait must not fire onWritable.
	if err := ep.Wait(50); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if atomic.LoadInt32(&writable) != 0 {
		t.Fatal("onWritable fired before Update(_, true) was ever called")
	}

	reg.Update(false, true)
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&writable) == 0 && time.Now().Before(deadline) {
		if err := ep.Wait(100); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if atomic.LoadInt32(&writable) == 0 {
		t.Fatal("onWritable never fired once write interest was registered")
	}
}

func TestRegistrationCloseRemovesWatch(t *testing.T) {
	client, server := tcpPair(t)
	defer client.Close()
	defer server.Close()

	ep, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ep.Close()

	reg, err := ep.Register(rawTCPConn{client}, func() {}, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(ep.watched) != 0 {
		t.Fatalf("watched set still has %d entries after Close", len(ep.watched))
	}
}
