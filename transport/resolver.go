package transport

import (
	"context"
	"net"
)

// SystemResolver resolves host:port via net.ResolveTCPAddr in a
// goroutine, delivering the result through a callback exactly once.
// Grounded on haka_mqtt.reactor's `name_resolver(host, port, callback)`
// contract (`__on_name_resolution` in original_source): resolution is
// treated as an asynchronous, cancellable step distinct from the socket
// connect that follows it (§4.5).
type SystemResolver struct{}

// Resolve starts resolving hostport and invokes done exactly once. The
// returned cancel func suppresses that call if it hasn't already
// happened — Go has no way to abort net.ResolveTCPAddr mid-flight, so
// cancellation here is cooperative rather than a DNS-level abort.
func (SystemResolver) Resolve(ctx context.Context, hostport string, done func(net.Addr, error)) (cancel func()) {
	cancelled := make(chan struct{})
	go func() {
		addr, err := net.ResolveTCPAddr("tcp", hostport)
		select {
		case <-cancelled:
			return
		default:
			done(addr, err)
		}
	}()
	return func() { close(cancelled) }
}
