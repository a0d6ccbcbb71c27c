package codec

import (
	"encoding/binary"

	"proxyhandshake/internal/domain"
)

// Socks4ReplyLen is the fixed 8-byte SOCKS4 reply frame (spec.md §4.3).
const Socks4ReplyLen = 8

// Socks4Request builds the 9-byte CONNECT request (spec.md §4.3). ip is
// the already-resolved IPv4 address of the target.
func Socks4Request(ip [4]byte, port int) []byte {
	req := make([]byte, 9)
	req[0] = 0x04
	req[1] = 0x01
	binary.BigEndian.PutUint16(req[2:4], uint16(port))
	copy(req[4:8], ip[:])
	req[8] = 0x00 // empty USERID, NUL-terminated
	return req
}

// socks4StatusMessage returns the human-readable diagnostic for a SOCKS4
// reply status byte (spec.md §4.3), logged but never encoded in the
// surface code (spec.md §7).
func socks4StatusMessage(status byte) string {
	switch status {
	case 0x5B:
		return "Request rejected or failed"
	case 0x5C:
		return "Not running identd"
	case 0x5D:
		return "Identd could not confirm user"
	default:
		return unassignedCode(status)
	}
}

// Socks4HandleReply interprets the 8-byte reply buffer (spec.md §4.3).
// ok reports success (status 0x5A); err is set on any other status.
func Socks4HandleReply(reply []byte) (ok bool, err *domain.Error) {
	status := reply[1]
	if status == 0x5A {
		return true, nil
	}
	return false, domain.ErrPeerClosed("SOCKS4 CONNECT failed: %s", socks4StatusMessage(status))
}
