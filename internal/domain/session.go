package domain

import "proxyhandshake/internal/buffer"

// Session is the handshake instance: the proxy-level state, the
// handshake sub-state, and the buffers that drive the wire protocol
// (spec.md §3).
type Session struct {
	ProxyType  ProxyType
	TargetHost string
	TargetPort int
	User       string
	Pass       string

	ProxyState     ProxyState
	HandshakeState HandshakeState

	Send *buffer.Buffer
	Recv *buffer.Buffer

	// RecvNeed is the number of bytes still required to complete the
	// current handshake_state's frame.
	RecvNeed int

	// CanRead/CanWrite are latched readiness flags.
	CanRead  bool
	CanWrite bool

	// Socks5AddrType records the ATYP byte read in the
	// Socks5RequestAddrType phase. Nothing reads it afterwards.
	Socks5AddrType byte
}

// NewSession constructs a Session in ProxyState == StateNoConn.
func NewSession() *Session {
	return &Session{
		ProxyState:     StateNoConn,
		HandshakeState: HandshakeNone,
		Send:           buffer.New(),
		Recv:           buffer.New(),
	}
}
