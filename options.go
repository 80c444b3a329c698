package reactor

import (
	"time"

	"github.com/golang-io/reactor/internal/sched"
	"github.com/golang-io/requests"
)

// Properties configures a Reactor at construction time. Grounded on the
// teacher's Options/Option functional-options pattern (options.go),
// generalized from a handful of client-dial fields to the full option
// table a protocol engine needs (§6.2).
type Properties struct {
	ClientID      string
	Endpoint      string // host:port the reactor dials
	KeepalivePeriod time.Duration
	CleanSession  bool
	Username      string
	Password      []byte
	WillTopic     string
	WillPayload   []byte
	WillQoS       uint8
	WillRetain    bool

	Resolver      Resolver
	SocketFactory SocketFactory
	Clock         sched.Clock
	Selector      Selector
	Logger        Logger
	Metrics       *Metrics

	ConnectTimeout time.Duration
}

// Option mutates Properties during construction.
type Option func(*Properties)

func newProperties(opts ...Option) Properties {
	p := Properties{
		ClientID:        "reactor-" + requests.GenId(),
		Endpoint:        "127.0.0.1:1883",
		KeepalivePeriod: 10 * time.Second,
		CleanSession:    true,
		Clock:           sched.SystemClock{},
		Selector:        noopSelector{},
		Logger:          nopLogger{},
		ConnectTimeout:  defaultDialTimeout,
	}
	for _, o := range opts {
		o(&p)
	}
	return p
}

// ClientID sets the MQTT client identifier (§4.5, [MQTT-3.1.3-7] empty id
// requires clean_session true — validated at Start, not here).
func ClientID(id string) Option {
	return func(p *Properties) { p.ClientID = id }
}

// Endpoint sets the host:port the reactor resolves and dials.
func Endpoint(hostport string) Option {
	return func(p *Properties) { p.Endpoint = hostport }
}

// KeepalivePeriod sets the keepalive interval K (§4.6). Must fit in a
// uint16 number of seconds on the wire; validated at Start.
func KeepalivePeriod(d time.Duration) Option {
	return func(p *Properties) { p.KeepalivePeriod = d }
}

// CleanSession sets the CONNECT clean-session flag (§4.7).
func CleanSession(clean bool) Option {
	return func(p *Properties) { p.CleanSession = clean }
}

// Credentials sets the CONNECT username/password fields.
func Credentials(username string, password []byte) Option {
	return func(p *Properties) {
		p.Username = username
		p.Password = password
	}
}

// Will sets the CONNECT last-will fields.
func Will(topic string, payload []byte, qos uint8, retain bool) Option {
	return func(p *Properties) {
		p.WillTopic = topic
		p.WillPayload = payload
		p.WillQoS = qos
		p.WillRetain = retain
	}
}

// WithResolver overrides the name resolver (§4.5, §6.2).
func WithResolver(r Resolver) Option {
	return func(p *Properties) { p.Resolver = r }
}

// WithSocketFactory overrides how the reactor constructs its transport
// (§6.2 socket_factory) — the seam TLS and WebSocket transports use.
func WithSocketFactory(f SocketFactory) Option {
	return func(p *Properties) { p.SocketFactory = f }
}

// WithClock overrides the time source, for deterministic tests (§6.2).
func WithClock(c sched.Clock) Option {
	return func(p *Properties) { p.Clock = c }
}

// WithSelector wires the reactor's readiness changes into a host event
// loop's multiplexer registration (§6.2).
func WithSelector(s Selector) Option {
	return func(p *Properties) { p.Selector = s }
}

// ConnectTimeout sets Properties.ConnectTimeout. The reactor arms no
// deadline from it: name resolution, socket connect and handshake are not
// bounded by this value.
func ConnectTimeout(d time.Duration) Option {
	return func(p *Properties) { p.ConnectTimeout = d }
}

// WithLogger overrides the reactor's log sink. Default is silent.
func WithLogger(l Logger) Option {
	return func(p *Properties) { p.Logger = l }
}

// WithMetrics attaches a prometheus metrics set (§6.4). The reactor
// updates counters but never registers them; call Metrics.Register
// yourself against whichever registry the host process uses.
func WithMetrics(m *Metrics) Option {
	return func(p *Properties) { p.Metrics = m }
}
