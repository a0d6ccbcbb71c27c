// Package addr classifies a host string as IPv4, IPv6, or domain name, and
// encodes it to the network-order byte layouts SOCKS4/SOCKS5 require
// (spec.md §2.5, §4.3, §4.4). Grounded on haochen233-socks5's address.go
// ATYP-keyed dispatch and the SOCKS5 ATYP constants common across the
// retrieval pack (e.g. things-go-go-socks5's statute.go).
package addr

import (
	"fmt"
	"net"
)

// Kind classifies a host string.
type Kind int

const (
	KindDomain Kind = iota
	KindIPv4
	KindIPv6
)

// SOCKS5 address-type byte values (RFC 1928 §5).
const (
	ATYPIPv4   byte = 0x01
	ATYPDomain byte = 0x03
	ATYPIPv6   byte = 0x04
)

// Classify reports whether host is an IPv4 literal, an IPv6 literal, or a
// domain name.
func Classify(host string) Kind {
	ip := net.ParseIP(host)
	if ip == nil {
		return KindDomain
	}
	if ip.To4() != nil {
		return KindIPv4
	}
	return KindIPv6
}

// EncodeIPv4 parses an IPv4 literal into its 4 network-order bytes.
func EncodeIPv4(host string) ([4]byte, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return [4]byte{}, fmt.Errorf("addr: %q is not an IP literal", host)
	}
	v4 := ip.To4()
	if v4 == nil {
		return [4]byte{}, fmt.Errorf("addr: %q is not an IPv4 literal", host)
	}
	var out [4]byte
	copy(out[:], v4)
	return out, nil
}

// EncodeIPv6 parses an IPv6 literal into its 16 network-order bytes,
// high-nibble-first per spec.md §4.4.
func EncodeIPv6(host string) ([16]byte, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return [16]byte{}, fmt.Errorf("addr: %q is not an IP literal", host)
	}
	v6 := ip.To16()
	if v6 == nil || ip.To4() != nil {
		return [16]byte{}, fmt.Errorf("addr: %q is not an IPv6 literal", host)
	}
	var out [16]byte
	copy(out[:], v6)
	return out, nil
}

// TruncatedDomain returns host truncated to at most 255 bytes, the maximum
// length a SOCKS5 domain-name ATYP frame can carry (spec.md §4.4).
func TruncatedDomain(host string) string {
	if len(host) > 255 {
		return host[:255]
	}
	return host
}
