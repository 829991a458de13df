package ip

import (
	"fmt"
	"net/netip"

	"github.com/dantte-lp/gotun/internal/transport"
	"github.com/dantte-lp/gotun/internal/wire"
)

// ipv6Version is the version nibble for IPv6.
const ipv6Version uint8 = 6

// IPv6 is a decoded IPv6 fixed header and its transport payload
// (RFC 8200 Section 3). This subset parses only; there is no IPv6
// serialization or response synthesis.
type IPv6 struct {
	Version       uint8
	TrafficClass  uint8
	FlowLabel     uint32 // 20 bits
	PayloadLength uint16
	NextHeader    Protocol
	HopLimit      uint8
	Src           netip.Addr
	Dst           netip.Addr
	Payload       transport.Layer
}

// ParseIPv6 decodes an IPv6 fixed header from r. The traffic class
// straddles the first two octets (low nibble of byte 0, high nibble of
// byte 1); the flow label is the low nibble of byte 1 followed by the
// next 16 bits.
func ParseIPv6(r *wire.Reader) (*IPv6, error) {
	h := &IPv6{}

	b0, err := r.Uint8()
	if err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	h.Version = b0 >> 4

	b1, err := r.Uint8()
	if err != nil {
		return nil, fmt.Errorf("reading traffic class: %w", err)
	}
	h.TrafficClass = b0<<4 | b1>>4

	low16, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("reading flow label: %w", err)
	}
	h.FlowLabel = uint32(b1&0x0F)<<16 | uint32(low16)

	if h.PayloadLength, err = r.Uint16(); err != nil {
		return nil, fmt.Errorf("reading payload length: %w", err)
	}

	nextHeader, err := r.Uint8()
	if err != nil {
		return nil, fmt.Errorf("reading next header: %w", err)
	}
	h.NextHeader = Protocol(nextHeader)

	if h.HopLimit, err = r.Uint8(); err != nil {
		return nil, fmt.Errorf("reading hop limit: %w", err)
	}

	src, err := r.Array16()
	if err != nil {
		return nil, fmt.Errorf("reading source address: %w", err)
	}
	h.Src = netip.AddrFrom16(src)

	dst, err := r.Array16()
	if err != nil {
		return nil, fmt.Errorf("reading destination address: %w", err)
	}
	h.Dst = netip.AddrFrom16(dst)

	h.Payload, err = transport.Parse(nextHeader, int(h.PayloadLength), r)
	if err != nil {
		return nil, fmt.Errorf("parsing transport payload: %w", err)
	}

	return h, nil
}

// IPVersion returns 6.
func (h *IPv6) IPVersion() uint8 { return ipv6Version }

// Serialize is not defined for IPv6 in this subset.
func (h *IPv6) Serialize() ([]byte, error) {
	return nil, fmt.Errorf("IPv6: %w", transport.ErrSerializeUnsupported)
}

// ShortString renders "src -> dst | next-header :: payload".
func (h *IPv6) ShortString() string {
	return fmt.Sprintf("%s -> %s | %s :: %s", h.Src, h.Dst, h.NextHeader, h.Payload.ShortString())
}
