// Package ip implements the IP-layer codecs: the IANA protocol number
// enum, the IPv4 header (RFC 791) with its type-of-service and flags
// structure, the IPv6 header (RFC 8200, parse only), and the
// version-nibble dispatch between them.
package ip

import "fmt"

// Protocol is an IANA IP protocol number
// (https://www.iana.org/assignments/protocol-numbers). Named constants
// cover the protocols this stack recognizes; every other value is carried
// through as-is, so parse/serialize round-trips for all 256 values.
type Protocol uint8

const (
	// ProtocolHOPOPT is the IPv6 Hop-by-Hop Option (0).
	ProtocolHOPOPT Protocol = 0

	// ProtocolICMP is the Internet Control Message Protocol (1).
	ProtocolICMP Protocol = 1

	// ProtocolIPv4 is IPv4 encapsulation (4).
	ProtocolIPv4 Protocol = 4

	// ProtocolTCP is the Transmission Control Protocol (6).
	ProtocolTCP Protocol = 6

	// ProtocolUDP is the User Datagram Protocol (17).
	ProtocolUDP Protocol = 17

	// ProtocolIPv6 is IPv6 encapsulation (41).
	ProtocolIPv6 Protocol = 41

	// ProtocolIPv6ICMP is ICMP for IPv6 (58).
	ProtocolIPv6ICMP Protocol = 58
)

// String returns the IANA keyword and description for recognized protocol
// numbers, and "Other(n)" otherwise.
func (p Protocol) String() string {
	switch p {
	case ProtocolHOPOPT:
		return "(HOPOPT) IPv6 Hop-by-Hop Option"
	case ProtocolICMP:
		return "(ICMP) Internet Control Message"
	case ProtocolIPv4:
		return "(IPv4) IPv4 encapsulation"
	case ProtocolTCP:
		return "(TCP) Transmission Control"
	case ProtocolUDP:
		return "(UDP) User Datagram"
	case ProtocolIPv6:
		return "(IPv6) IPv6 encapsulation"
	case ProtocolIPv6ICMP:
		return "(IPv6-ICMP) ICMP for IPv6"
	default:
		return fmt.Sprintf("Other(%d)", uint8(p))
	}
}
