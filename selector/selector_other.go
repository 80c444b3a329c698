//go:build !linux

package selector

import "errors"

// Epoll is unavailable outside Linux; New returns an error so callers
// fall back to a plain timer-driven poll loop calling Reactor.Read/Write
// unconditionally and relying on the zero-deadline probe to make that
// cheap, the same fallback haka_mqtt's pyselector module documents for
// platforms without epoll/kqueue bindings.
type Epoll struct{}

func New() (*Epoll, error) {
	return nil, errors.New("selector: epoll is only available on linux")
}
