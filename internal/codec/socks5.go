package codec

import (
	"encoding/binary"

	"proxyhandshake/internal/addr"
	"proxyhandshake/internal/domain"
)

// SOCKS5 method identifiers (RFC 1928 §3).
const (
	MethodNone     byte = 0x00
	MethodUserPass byte = 0x02
)

// Frame lengths for the fixed-size SOCKS5 reply phases (spec.md §4.4).
const (
	MethodReplyLen = 2
	AuthReplyLen   = 2
	RequestReplyLen = 3
	AddrTypeReplyLen = 3
)

// Socks5MethodRequest builds the method-negotiation frame. When user is
// empty only "no auth" is offered; otherwise "no auth" and "user/pass" are
// both offered (spec.md §4.4).
func Socks5MethodRequest(user string) []byte {
	if user == "" {
		return []byte{0x05, 0x01, MethodNone}
	}
	return []byte{0x05, 0x02, MethodNone, MethodUserPass}
}

// Socks5HandleMethodReply interprets the 2-byte method-selection reply.
// needAuth reports whether the server selected user/pass subnegotiation.
func Socks5HandleMethodReply(reply []byte) (needAuth bool, err *domain.Error) {
	if reply[0] != 0x05 {
		return false, domain.ErrPeerClosed("SOCKS5 method reply: bad version %d", reply[0])
	}
	switch reply[1] {
	case MethodNone:
		return false, nil
	case MethodUserPass:
		return true, nil
	default:
		return false, domain.ErrPeerClosed("SOCKS5: no supported auth method")
	}
}

// Socks5AuthRequest builds the RFC 1929 user/pass subnegotiation frame.
// Caller-level validation already bounded len(user), len(pass) <= 255
// (begin_handshake precondition, spec.md §4.1).
func Socks5AuthRequest(user, pass string) []byte {
	req := make([]byte, 0, 3+len(user)+len(pass))
	req = append(req, 0x01, byte(len(user)))
	req = append(req, user...)
	req = append(req, byte(len(pass)))
	req = append(req, pass...)
	return req
}

// Socks5HandleAuthReply interprets the 2-byte subnegotiation reply.
func Socks5HandleAuthReply(reply []byte) *domain.Error {
	if reply[0] != 0x01 {
		return domain.ErrPeerClosed("SOCKS5 auth reply: bad version %d", reply[0])
	}
	if reply[1] != 0x00 {
		return domain.ErrPeerClosed("Proxy authentication failed")
	}
	return nil
}

// Socks5ConnectRequest builds the CONNECT request frame for host:port,
// dispatching on host's literal/domain classification (spec.md §4.4).
func Socks5ConnectRequest(host string, port int) ([]byte, error) {
	req := []byte{0x05, 0x01, 0x00}
	switch addr.Classify(host) {
	case addr.KindIPv4:
		v4, err := addr.EncodeIPv4(host)
		if err != nil {
			return nil, err
		}
		req = append(req, addr.ATYPIPv4)
		req = append(req, v4[:]...)
	case addr.KindIPv6:
		v6, err := addr.EncodeIPv6(host)
		if err != nil {
			return nil, err
		}
		req = append(req, addr.ATYPIPv6)
		req = append(req, v6[:]...)
	default:
		name := addr.TruncatedDomain(host)
		req = append(req, addr.ATYPDomain, byte(len(name)))
		req = append(req, name...)
	}
	portBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(portBytes, uint16(port))
	return append(req, portBytes...), nil
}

// socks5ReplyStatusMessage returns the human-readable diagnostic for a
// CONNECT reply status byte (spec.md §4.4).
func socks5ReplyStatusMessage(status byte) string {
	switch status {
	case 1:
		return "General SOCKS server failure"
	case 2:
		return "Connection not allowed by ruleset"
	case 3:
		return "Network unreachable"
	case 4:
		return "Host unreachable"
	case 5:
		return "Connection refused"
	case 6:
		return "TTL expired"
	case 7:
		return "Command not supported"
	case 8:
		return "Address type not supported"
	default:
		return unassignedCode(status)
	}
}

// Socks5HandleRequestReply interprets the first 3 bytes of the CONNECT
// reply (spec.md §4.4 phase 1: Socks5Request).
func Socks5HandleRequestReply(reply []byte) *domain.Error {
	if reply[0] != 0x05 {
		return domain.ErrPeerClosed("SOCKS5 CONNECT reply: bad version %d", reply[0])
	}
	if status := reply[1]; status != 0 {
		return domain.ErrPeerClosed("SOCKS5 CONNECT failed: %s", socks5ReplyStatusMessage(status))
	}
	return nil
}

// Socks5AddrTypeRemaining interprets the 3-byte Socks5RequestAddrType
// phase: reply[0] is ATYP, reply[1] is the first payload byte (the domain
// length byte when ATYP is domain). It returns the number of bytes the
// final Socks5RequestAddress phase must still read to drain the rest of
// the address and the 2-byte port (spec.md §4.4 phase 2, design note §9
// decision 5: this phase and the next are independent framed reads, not a
// carried-over buffer index).
func Socks5AddrTypeRemaining(reply []byte) (remaining int, err *domain.Error) {
	switch reply[0] {
	case addr.ATYPIPv4:
		// Total after ATYP is 4 addr + 2 port = 6 bytes; 2 were already
		// captured as this phase's payload bytes, leaving 4.
		return 4, nil
	case addr.ATYPDomain:
		// Total after ATYP is 1 (length byte) + domainLen addr bytes + 2
		// port bytes; 2 were already captured as this phase's payload
		// bytes (the length byte and the first address byte), leaving
		// domainLen + 1. Matches spec.md §8 invariant 5: ATYP + len +
		// len addr bytes + 2 port = len + 4 total, of which this phase
		// already consumed 3 (ATYP + 2 payload bytes).
		domainLen := int(reply[1])
		return domainLen + 1, nil
	case addr.ATYPIPv6:
		// Total after ATYP is 16 addr + 2 port = 18 bytes; 2 were
		// already captured as this phase's payload bytes, leaving 16.
		return 16, nil
	default:
		return 0, domain.ErrPeerClosed("SOCKS5 CONNECT reply: unknown address type %d", reply[0])
	}
}
