// Package handshake implements the driver/state machine at the center of
// this module: it owns the proxy-level and handshake sub-state, wires
// readiness events from a domain.Transport to the protocol codecs, and
// emits completion/failure events to an owner-supplied domain.EventSink
// (spec.md §4.1, §4.5). Grounded on billy-rubin-Socks-proxy's
// internal/application/proxy_service.go HandleEvent state-switch dispatch,
// generalized from a multi-session server dispatcher into a single-session
// client-side driver.
package handshake

import (
	"log/slog"

	"proxyhandshake/internal/addr"
	"proxyhandshake/internal/codec"
	"proxyhandshake/internal/domain"
	"proxyhandshake/pkg/logger"
)

// Driver is the handshake engine for a single Session, layered atop one
// domain.Transport.
type Driver struct {
	sess      *domain.Session
	transport domain.Transport
	sink      domain.EventSink
	log       *slog.Logger
	resolver  domain.Resolver

	// httpScratch is the fixed 4096-byte peek/read scratch spec.md §4.2
	// mandates for the HTTP reply parse; httpPos is the number of bytes
	// of it already consumed by real reads.
	httpScratch []byte
	httpPos     int

	emitted bool // terminal event already sent (spec.md §5 ordering guarantee)
}

// New constructs a Driver over transport, delivering terminal/pass-through
// events to sink. resolver may be nil if the caller never negotiates
// SOCKS4 against a domain-name target.
func New(transport domain.Transport, sink domain.EventSink, log *slog.Logger, resolver domain.Resolver) *Driver {
	d := &Driver{
		sess:        domain.NewSession(),
		transport:   transport,
		sink:        sink,
		log:         log,
		resolver:    resolver,
		httpScratch: make([]byte, codec.MaxHTTPHeader),
	}
	transport.SetEventHandler(d)
	return d
}

// Session exposes the underlying session state, mainly for tests.
func (d *Driver) Session() *domain.Session { return d.sess }

// BeginHandshake validates params, queues the first protocol message, and
// transitions the session to Handshaking (spec.md §4.1).
func (d *Driver) BeginHandshake(p domain.Params) *domain.Error {
	if d.sess.ProxyState != domain.StateNoConn {
		return domain.ErrAlreadyInProgress()
	}
	if p.Host == "" {
		return domain.ErrInvalidArgument("target host must not be empty")
	}
	if p.Port < 1 || p.Port > 65535 {
		return domain.ErrInvalidArgument("target port %d out of range", p.Port)
	}
	switch p.Type {
	case domain.ProxyHTTP, domain.ProxySOCKS4, domain.ProxySOCKS5:
	default:
		return domain.ErrProtocolUnsupported(p.Type)
	}
	if p.Type == domain.ProxySOCKS5 {
		if len(p.User) > 255 || len(p.Pass) > 255 {
			return domain.ErrInvalidArgument("SOCKS5 user/pass must each be <= 255 bytes")
		}
	}

	d.sess.ProxyType = p.Type
	d.sess.TargetHost = p.Host
	d.sess.TargetPort = p.Port
	d.sess.User = p.User
	d.sess.Pass = p.Pass

	switch p.Type {
	case domain.ProxyHTTP:
		d.beginHTTP()
	case domain.ProxySOCKS4:
		if err := d.beginSocks4(); err != nil {
			return err
		}
	case domain.ProxySOCKS5:
		d.beginSocks5()
	}

	d.sess.ProxyState = domain.StateHandshaking
	logger.Log(d.log, logger.Status, "handshake started", "proxy_type", p.Type.String(), "target", p.Host, "port", p.Port)

	if d.sess.CanWrite {
		d.OnWritable()
	}
	return nil
}

func (d *Driver) beginHTTP() {
	d.sess.HandshakeState = domain.HTTPWait
	d.sess.Send.Append(codec.HTTPRequest(d.sess.TargetHost, d.sess.TargetPort, d.sess.User, d.sess.Pass))
	d.sess.RecvNeed = 0
}

func (d *Driver) beginSocks4() *domain.Error {
	var v4 [4]byte
	switch addr.Classify(d.sess.TargetHost) {
	case addr.KindIPv6:
		return domain.ErrInvalidArgument("SOCKS4 does not support IPv6 targets")
	case addr.KindIPv4:
		var err error
		v4, err = addr.EncodeIPv4(d.sess.TargetHost)
		if err != nil {
			return domain.ErrInvalidArgument(err.Error())
		}
	default:
		if d.resolver == nil {
			return domain.ErrInvalidArgument("SOCKS4 target %q requires a DNS resolver", d.sess.TargetHost)
		}
		resolved, err := d.resolver.ResolveIPv4(d.sess.TargetHost)
		if err != nil {
			return domain.ErrInvalidArgument("SOCKS4 name resolution to IPv4 failed: %v", err)
		}
		v4 = resolved
	}

	d.sess.HandshakeState = domain.Socks4Wait
	d.sess.Send.Append(codec.Socks4Request(v4, d.sess.TargetPort))
	d.sess.RecvNeed = codec.Socks4ReplyLen
	return nil
}

func (d *Driver) beginSocks5() {
	d.sess.HandshakeState = domain.Socks5Method
	d.sess.Send.Append(codec.Socks5MethodRequest(d.sess.User))
	d.sess.RecvNeed = codec.MethodReplyLen
}

// Detach severs transport event routing; the driver never touches the
// transport again (spec.md §4.1, §5).
func (d *Driver) Detach() {
	d.transport.SetEventHandler(nil)
}

// OnTransportEvent handles out-of-band transport lifecycle events
// (spec.md §4.1).
func (d *Driver) OnTransportEvent(kind domain.TransportEventKind, err error) {
	switch kind {
	case domain.TransportConnectionAttemptFailed:
		logger.Log(d.log, logger.DebugWarning, "connection attempt failed, continuing", "error", err)
	case domain.TransportConnected:
		if err != nil {
			d.fail(domain.ErrPeerClosed("transport reported connection error: %v", err))
			return
		}
		logger.Log(d.log, logger.Status, "transport connected")
	case domain.TransportClosed:
		d.OnReadable() // treat as readable for EOF detection
	}
}

// fail moves the session to NoConn and emits Close(err) exactly once
// (spec.md §5, §7).
func (d *Driver) fail(err *domain.Error) {
	if d.emitted {
		return
	}
	d.emitted = true
	d.sess.ProxyState = domain.StateNoConn
	logger.Log(d.log, logger.Error, "handshake failed", "error", err)
	if d.sink != nil {
		d.sink.OnSocketEvent(domain.SocketEvent{Kind: domain.EventClose, Err: err})
	}
}

// succeed moves the session to Connected and emits Connection(Ok) exactly
// once (spec.md §5).
func (d *Driver) succeed() {
	if d.emitted {
		return
	}
	d.emitted = true
	d.sess.ProxyState = domain.StateConnected
	logger.Log(d.log, logger.Status, "handshake complete")
	if d.sink != nil {
		d.sink.OnSocketEvent(domain.SocketEvent{Kind: domain.EventConnection, Err: nil})
	}
}
