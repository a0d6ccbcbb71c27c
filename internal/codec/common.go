// Package codec implements the three pure protocol encoders/decoders the
// handshake driver dispatches to: HTTP CONNECT, SOCKS4, and SOCKS5
// (spec.md §4.2–§4.4). Grounded on haochen233-socks5's protocol constants
// and billy-rubin-Socks-proxy's request/reply parsing idiom, inverted from
// server-accept logic to client-request logic.
package codec

import "fmt"

// unassignedCode formats the "Unassigned error code N" diagnostic spec.md
// §4.3/§4.4 specify for status/reply bytes outside the named enumeration.
func unassignedCode(code byte) string {
	return fmt.Sprintf("Unassigned error code %d", code)
}
