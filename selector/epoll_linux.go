//go:build linux

// Package selector implements reactor.Selector with an epoll-backed
// readiness multiplexer, so a host process can drive many reactors
// without a goroutine per connection. Grounded on golang.org/x/sys/unix,
// already an indirect dependency of the teacher's go.mod (pulled in
// through prometheus/procfs) and promoted here to a direct one for the
// same purpose the pack's transport-layer code uses it: raw epoll/kqueue
// syscalls a pure net.Conn program has no other way to reach.
package selector

import (
	"fmt"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// RawConner is implemented by transports that can hand back a
// syscall.RawConn for registration (transport.TCP). transport.TLSConn has
// the method through its embedded TCP, but that TCP wraps the *tls.Conn,
// which has no SyscallConn, so it returns an error.
type RawConner interface {
	RawConn() (syscall.RawConn, error)
}

// Epoll is a host-owned epoll instance. One Epoll typically serves every
// reactor instance in a process; each registered fd carries the callback
// the reactor wired via its own Selector.Update implementation.
type Epoll struct {
	fd int

	mu      sync.Mutex
	watched map[int]*watch
}

type watch struct {
	fd         int
	wantRead   bool
	wantWrite  bool
	onReadable func()
	onWritable func()
}

// New creates an epoll instance. Callers must Close it when done.
func New() (*Epoll, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("selector: epoll_create1: %w", err)
	}
	return &Epoll{fd: fd, watched: make(map[int]*watch)}, nil
}

func (e *Epoll) Close() error { return unix.Close(e.fd) }

// Register adds fd to the epoll set. onReadable/onWritable fire from
// Wait when the corresponding readiness bit is set; either may be nil.
func (e *Epoll) Register(rc RawConner, onReadable, onWritable func()) (*Registration, error) {
	raw, err := rc.RawConn()
	if err != nil {
		return nil, err
	}
	var fd int
	if err := raw.Control(func(sysfd uintptr) { fd = int(sysfd) }); err != nil {
		return nil, err
	}

	w := &watch{fd: fd, onReadable: onReadable, onWritable: onWritable}
	e.mu.Lock()
	e.watched[fd] = w
	e.mu.Unlock()

	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd)}); err != nil {
		return nil, fmt.Errorf("selector: epoll_ctl add: %w", err)
	}
	return &Registration{epoll: e, w: w}, nil
}

// Registration is the host's handle to one fd's epoll membership. It
// implements reactor.Selector: a Reactor calls Update whenever its
// WantRead/WantWrite interest changes.
type Registration struct {
	epoll *Epoll
	w     *watch
}

func (r *Registration) Update(wantRead, wantWrite bool) {
	r.w.wantRead, r.w.wantWrite = wantRead, wantWrite
	var events uint32
	if wantRead {
		events |= unix.EPOLLIN
	}
	if wantWrite {
		events |= unix.EPOLLOUT
	}
	_ = unix.EpollCtl(r.epoll.fd, unix.EPOLL_CTL_MOD, r.w.fd, &unix.EpollEvent{Events: events, Fd: int32(r.w.fd)})
}

func (r *Registration) Close() error {
	r.epoll.mu.Lock()
	delete(r.epoll.watched, r.w.fd)
	r.epoll.mu.Unlock()
	return unix.EpollCtl(r.epoll.fd, unix.EPOLL_CTL_DEL, r.w.fd, nil)
}

// Wait blocks up to timeoutMs (-1 for indefinitely) and fires every
// ready fd's callback. The host calls this in its own event loop,
// typically with timeoutMs derived from every managed Reactor's
// NextDeadline.
func (e *Epoll) Wait(timeoutMs int) error {
	events := make([]unix.EpollEvent, 64)
	n, err := unix.EpollWait(e.fd, events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("selector: epoll_wait: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i < n; i++ {
		ev := events[i]
		w, ok := e.watched[int(ev.Fd)]
		if !ok {
			continue
		}
		if ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 && w.onReadable != nil {
			w.onReadable()
		}
		if ev.Events&unix.EPOLLOUT != 0 && w.onWritable != nil {
			w.onWritable()
		}
	}
	return nil
}
