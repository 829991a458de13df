// Package tun implements the 4-byte flags+ethertype framing that precedes
// every IP packet on the TUN channel, and the TUN device itself.
package tun

import (
	"errors"
	"fmt"

	"github.com/dantte-lp/gotun/internal/ip"
	"github.com/dantte-lp/gotun/internal/wire"
)

// EtherType identifies the protocol carried after the TUN pseudo-header.
// Unrecognized values are carried through as-is.
type EtherType uint16

const (
	EtherTypeIPv4                EtherType = 0x0800
	EtherTypeARP                 EtherType = 0x0806
	EtherTypeWakeOnLAN           EtherType = 0x0842
	EtherTypeAppleTalk           EtherType = 0x809B
	EtherTypeAARP                EtherType = 0x80F3
	EtherTypeSLPP                EtherType = 0x8102
	EtherTypeIPv6                EtherType = 0x86DD
	EtherTypeEthernetFlowControl EtherType = 0x8808
)

// String returns the protocol name for recognized ethertypes.
func (e EtherType) String() string {
	switch e {
	case EtherTypeIPv4:
		return "Internet Protocol version 4 (IPv4)"
	case EtherTypeARP:
		return "Address Resolution Protocol (ARP)"
	case EtherTypeWakeOnLAN:
		return "Wake-on-LAN"
	case EtherTypeAppleTalk:
		return "AppleTalk"
	case EtherTypeAARP:
		return "AppleTalk Address Resolution Protocol (AARP)"
	case EtherTypeSLPP:
		return "Simple Loop Prevention Protocol (SLPP)"
	case EtherTypeIPv6:
		return "Internet Protocol version 6 (IPv6)"
	case EtherTypeEthernetFlowControl:
		return "Ethernet Flow Control"
	default:
		return fmt.Sprintf("Unknown(0x%04x)", uint16(e))
	}
}

// ErrEtherTypeMismatch indicates the framed ethertype does not agree with
// the version nibble of the encapsulated IP packet.
var ErrEtherTypeMismatch = errors.New("ethertype does not match IP version")

// Frame is one TUN channel unit: a 16-bit flags word, a 16-bit ethertype,
// and the encapsulated IP packet.
type Frame struct {
	Flags     uint16
	EtherType EtherType
	Packet    ip.Packet
}

// ParseFrame decodes the pseudo-header and the encapsulated IP packet from
// buf. The ethertype is cross-checked against the version nibble the IP
// decoder routed on: an IPv4 ethertype must frame an IPv4 packet and
// likewise for IPv6; any other pairing fails the parse.
func ParseFrame(buf []byte) (*Frame, error) {
	r := wire.NewReader(buf)
	f := &Frame{}

	var err error
	if f.Flags, err = r.Uint16(); err != nil {
		return nil, fmt.Errorf("reading flags: %w", err)
	}

	etherType, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("reading ethertype: %w", err)
	}
	f.EtherType = EtherType(etherType)

	if f.Packet, err = ip.ParsePacket(r); err != nil {
		return nil, fmt.Errorf("decoding IP packet: %w", err)
	}

	ok := (f.EtherType == EtherTypeIPv4 && f.Packet.IPVersion() == 4) ||
		(f.EtherType == EtherTypeIPv6 && f.Packet.IPVersion() == 6)
	if !ok {
		return nil, fmt.Errorf("ethertype %s with IP version %d: %w",
			f.EtherType, f.Packet.IPVersion(), ErrEtherTypeMismatch)
	}

	return f, nil
}

// Respond wraps a synthesized IP packet in the egress framing: flags zero,
// ethertype IPv4. Only IPv4 responses exist in this subset.
func Respond(pkt ip.Packet) *Frame {
	return &Frame{
		Flags:     0,
		EtherType: EtherTypeIPv4,
		Packet:    pkt,
	}
}

// Serialize encodes the pseudo-header followed by the serialized IP packet.
func (f *Frame) Serialize() ([]byte, error) {
	pkt, err := f.Packet.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serializing IP packet: %w", err)
	}

	w := wire.NewWriter(4 + len(pkt))
	w.PutUint16(f.Flags)
	w.PutUint16(uint16(f.EtherType))
	w.PutBytes(pkt)
	return w.Bytes(), nil
}

// ShortString renders the ethertype, flags, and the inner packet.
func (f *Frame) ShortString() string {
	return fmt.Sprintf("%s (flags %#04x) %s", f.EtherType, f.Flags, f.Packet.ShortString())
}
