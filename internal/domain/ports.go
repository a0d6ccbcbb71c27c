package domain

// Transport is the non-blocking byte stream the handshake driver is layered
// on top of (spec.md §6). It is an external collaborator: the owner
// constructs one (already connected to the proxy) and hands it to the
// driver.
type Transport interface {
	// Read copies up to len(buf) bytes into buf. n == 0 means the peer
	// closed the connection; err == ErrWouldBlock means no data is
	// currently available.
	Read(buf []byte) (n int, err error)

	// Peek behaves like Read but must not consume bytes from the stream.
	Peek(buf []byte) (n int, err error)

	// Write writes as many bytes of buf as the transport currently
	// accepts; partial writes are allowed.
	Write(buf []byte) (n int, err error)

	// SetEventHandler routes readiness notifications to h. Passing nil
	// detaches.
	SetEventHandler(h ReadinessHandler)

	// Close releases the transport's own resources. It does not sever
	// routing set up via SetEventHandler; callers should Detach first.
	Close() error
}

// ReadinessHandler receives readable/writable notifications for a single
// Transport. The handshake driver implements this; the transport adapter
// forwards its own epoll-level events (see EventHandler below) into these
// two calls.
type ReadinessHandler interface {
	OnReadable()
	OnWritable()
}

// EventHandler receives readiness notifications for a single file
// descriptor from an EventLoop. Implemented by the transport adapter so it
// can be registered directly with an EventLoop.
type EventHandler interface {
	HandleEvent(fd int, event EventType) error
}

// EventLoop is the event dispatcher the transport adapter is registered
// against. Out of scope for the core per spec.md §1; specified here only so
// internal/transport has a concrete implementation to offer callers. A
// single EventLoop here only ever watches the one proxy-socket fd a caller
// registers, so the interface has no re-arm or deregister call.
type EventLoop interface {
	Register(fd int, events EventType) error
	Run(handler EventHandler) error
	Stop()
}

// EventSink receives the handshake driver's terminal and pass-through
// events (spec.md §6).
type EventSink interface {
	OnSocketEvent(ev SocketEvent)
}

// EventSinkFunc adapts a plain function to EventSink.
type EventSinkFunc func(SocketEvent)

func (f EventSinkFunc) OnSocketEvent(ev SocketEvent) { f(ev) }

// Resolver resolves a host name to an IPv4 address. Used by SOCKS4's
// target-address resolution (spec.md §4.3). Per spec.md §5, this is the one
// permitted synchronous operation in the handshake engine: begin_handshake
// must leave send_buffer non-empty before it returns (spec.md §8 invariant
// 2), so resolution for a domain-name SOCKS4 target happens inline rather
// than behind a callback.
type Resolver interface {
	ResolveIPv4(host string) (ip [4]byte, err error)
}
