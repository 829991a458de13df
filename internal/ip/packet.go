package ip

import (
	"fmt"

	"github.com/dantte-lp/gotun/internal/wire"
)

// Packet is a decoded IP-layer entity. The variant set is closed: *IPv4,
// *IPv6, and RawPacket for version nibbles this stack does not decode.
type Packet interface {
	// IPVersion returns the IP version nibble (4 or 6), or 0 for an
	// undecoded packet.
	IPVersion() uint8

	// Serialize encodes the packet for egress. IPv6 and raw-carried
	// packets other than the raw bytes themselves are unsupported.
	Serialize() ([]byte, error)

	// ShortString returns a one-line rendering for per-packet logs.
	ShortString() string
}

// RawPacket carries an IP packet whose version nibble is neither 4 nor 6.
// The bytes are preserved verbatim.
type RawPacket []byte

// IPVersion returns 0: the version is not one this stack decodes.
func (RawPacket) IPVersion() uint8 { return 0 }

// Serialize returns the preserved bytes.
func (p RawPacket) Serialize() ([]byte, error) {
	out := make([]byte, len(p))
	copy(out, p)
	return out, nil
}

// ShortString renders the preserved size.
func (p RawPacket) ShortString() string {
	return fmt.Sprintf("%db (unknown IP version)", len(p))
}

// ParsePacket routes on the version nibble of the first octet: 4 decodes as
// IPv4, 6 as IPv6, and anything else is preserved as a RawPacket. An empty
// buffer is a short read.
func ParsePacket(r *wire.Reader) (Packet, error) {
	first, err := r.PeekUint8()
	if err != nil {
		return nil, fmt.Errorf("reading IP version nibble: %w", err)
	}

	// The header codecs re-read the first octet themselves.
	switch first >> 4 {
	case ipv4Version:
		h, err := ParseIPv4(r)
		if err != nil {
			return nil, fmt.Errorf("parsing IPv4: %w", err)
		}
		return h, nil
	case ipv6Version:
		h, err := ParseIPv6(r)
		if err != nil {
			return nil, fmt.Errorf("parsing IPv6: %w", err)
		}
		return h, nil
	default:
		return RawPacket(r.Rest()), nil
	}
}
