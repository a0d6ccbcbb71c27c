// Package domain holds the data model shared by the handshake driver, the
// protocol codecs and the transport adapter: proxy/handshake state, the
// session record, and the event types that flow between them.
package domain

import "fmt"

// ProxyType selects which tunneling protocol a Session negotiates.
type ProxyType int

const (
	ProxyHTTP ProxyType = iota
	ProxySOCKS4
	ProxySOCKS5
)

func (t ProxyType) String() string {
	switch t {
	case ProxyHTTP:
		return "HTTP"
	case ProxySOCKS4:
		return "SOCKS4"
	case ProxySOCKS5:
		return "SOCKS5"
	default:
		return fmt.Sprintf("ProxyType(%d)", int(t))
	}
}

// ProxyState is the top-level lifecycle state of a Session.
type ProxyState int

const (
	StateNoConn ProxyState = iota
	StateHandshaking
	StateConnected
)

func (s ProxyState) String() string {
	switch s {
	case StateNoConn:
		return "NoConn"
	case StateHandshaking:
		return "Handshaking"
	case StateConnected:
		return "Connected"
	default:
		return fmt.Sprintf("ProxyState(%d)", int(s))
	}
}

// HandshakeState is the protocol-specific sub-state reached only while
// ProxyState == StateHandshaking.
type HandshakeState int

const (
	HandshakeNone HandshakeState = iota
	HTTPWait
	Socks4Wait
	Socks5Method
	Socks5Auth
	Socks5Request
	Socks5RequestAddrType
	Socks5RequestAddress
)

func (s HandshakeState) String() string {
	switch s {
	case HandshakeNone:
		return "None"
	case HTTPWait:
		return "HTTPWait"
	case Socks4Wait:
		return "Socks4Wait"
	case Socks5Method:
		return "Socks5Method"
	case Socks5Auth:
		return "Socks5Auth"
	case Socks5Request:
		return "Socks5Request"
	case Socks5RequestAddrType:
		return "Socks5RequestAddrType"
	case Socks5RequestAddress:
		return "Socks5RequestAddress"
	default:
		return fmt.Sprintf("HandshakeState(%d)", int(s))
	}
}

// Params are the caller-supplied handshake inputs (spec.md §6).
type Params struct {
	Type ProxyType
	Host string
	Port int
	User string
	Pass string
}

// EventKind enumerates the terminal and pass-through events the core
// delivers to the owner via an EventSink.
type EventKind int

const (
	EventConnection EventKind = iota
	EventClose
	EventRead
	EventWrite
	EventConnectionNext
)

// SocketEvent is the event sink payload (spec.md §6).
type SocketEvent struct {
	Kind EventKind
	Err  error
}

// EventType is the readiness mask delivered by the transport/event loop.
type EventType uint32

const (
	EventTypeRead  EventType = 0x1
	EventTypeWrite EventType = 0x4
)

// TransportEventKind enumerates the out-of-band transport lifecycle
// notifications on_transport_event handles (spec.md §4.1), distinct from
// the SocketEvent.Kind values the core emits to its owner.
type TransportEventKind int

const (
	TransportConnectionAttemptFailed TransportEventKind = iota
	TransportConnected
	TransportClosed
)
