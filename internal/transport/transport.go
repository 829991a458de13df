// Package transport implements the transport-layer codecs carried inside
// IP packets: TCP segments (RFC 793), UDP datagrams (RFC 768), and ICMPv6
// message typing (RFC 4443).
//
// The package is deliberately decoupled from the IP layer: the IP codec
// passes the protocol number and the derived payload length into Parse
// instead of the transport types holding a back-reference to their
// enclosing packet. Serialization takes the source and destination
// addresses explicitly because the TCP and UDP checksums cover a
// pseudo-header built from them.
package transport

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/dantte-lp/gotun/internal/wire"
)

// IANA protocol numbers for the transports this package can decode.
// These mirror the IP-layer protocol enum without importing it.
const (
	// ProtoNumTCP is the IANA protocol number for TCP.
	ProtoNumTCP uint8 = 6

	// ProtoNumUDP is the IANA protocol number for UDP.
	ProtoNumUDP uint8 = 17

	// ProtoNumICMPv6 is the IANA protocol number for ICMPv6.
	ProtoNumICMPv6 uint8 = 58
)

// Sentinel errors shared by the transport codecs.
var (
	// ErrSegmentTooLarge indicates a serialized transport length would
	// exceed the 16-bit length fields that carry it.
	ErrSegmentTooLarge = errors.New("transport length exceeds 16 bits")

	// ErrSerializeUnsupported indicates the transport has no egress
	// encoding in this subset (ICMPv6).
	ErrSerializeUnsupported = errors.New("serialization not supported")
)

// Layer is a decoded transport-layer entity. The variant set is closed:
// *TCPSegment, *UDPDatagram, *ICMPv6Message, and Raw.
type Layer interface {
	// ProtocolNumber returns the IANA protocol number identifying this
	// transport in an enclosing IP header.
	ProtocolNumber() uint8

	// WireLen returns the serialized length in octets, or
	// ErrSegmentTooLarge when it does not fit a 16-bit field
	// (ErrSerializeUnsupported for ICMPv6).
	WireLen() (uint16, error)

	// Serialize encodes the transport with a freshly computed checksum.
	// src and dst are the enclosing IP addresses for the pseudo-header.
	Serialize(src, dst netip.Addr) ([]byte, error)

	// ShortString returns a one-line rendering for per-packet logs.
	ShortString() string
}

// Parse decodes the transport layer identified by proto. payloadLen is the
// payload length derived from the enclosing IP header; it bounds the read
// for protocols this package does not decode. TCP, UDP, and ICMPv6 consume
// the remainder of the reader.
func Parse(proto uint8, payloadLen int, r *wire.Reader) (Layer, error) {
	switch proto {
	case ProtoNumTCP:
		seg, err := ParseTCP(r)
		if err != nil {
			return nil, fmt.Errorf("parsing TCP: %w", err)
		}
		return seg, nil
	case ProtoNumUDP:
		d, err := ParseUDP(r)
		if err != nil {
			return nil, fmt.Errorf("parsing UDP: %w", err)
		}
		return d, nil
	case ProtoNumICMPv6:
		m, err := ParseICMPv6(r)
		if err != nil {
			return nil, fmt.Errorf("parsing ICMPv6: %w", err)
		}
		return m, nil
	default:
		return Raw{Proto: proto, Data: r.BytesClamped(payloadLen)}, nil
	}
}

// Raw carries an undecoded transport payload together with the protocol
// number it arrived under, so a response can still label it correctly.
type Raw struct {
	Proto uint8
	Data  []byte
}

// ProtocolNumber returns the protocol number the payload arrived under.
func (r Raw) ProtocolNumber() uint8 { return r.Proto }

// WireLen returns the payload length.
func (r Raw) WireLen() (uint16, error) {
	if len(r.Data) > 0xFFFF {
		return 0, fmt.Errorf("raw payload %d bytes: %w", len(r.Data), ErrSegmentTooLarge)
	}
	return uint16(len(r.Data)), nil
}

// Serialize returns the payload bytes unchanged.
func (r Raw) Serialize(_, _ netip.Addr) ([]byte, error) {
	out := make([]byte, len(r.Data))
	copy(out, r.Data)
	return out, nil
}

// ShortString renders the payload size.
func (r Raw) ShortString() string {
	return fmt.Sprintf("%db (unsupported protocol %d)", len(r.Data), r.Proto)
}

// pseudoHeaderWords builds the IPv4 pseudo-header word sequence for TCP and
// UDP checksums (RFC 793 Section 3.1, RFC 768): source address, destination
// address, zero-padded protocol number, and the transport length. Both
// addresses must be IPv4; the IPv6 pseudo-header (RFC 2460 Section 8.1) is
// not implemented in this subset.
func pseudoHeaderWords(src, dst netip.Addr, proto uint8, length uint16) ([]uint16, error) {
	if !src.Is4() || !dst.Is4() {
		return nil, fmt.Errorf("pseudo-header src=%s dst=%s: %w", src, dst, ErrSerializeUnsupported)
	}
	s, d := src.As4(), dst.As4()
	return []uint16{
		uint16(s[0])<<8 | uint16(s[1]),
		uint16(s[2])<<8 | uint16(s[3]),
		uint16(d[0])<<8 | uint16(d[1]),
		uint16(d[2])<<8 | uint16(d[3]),
		uint16(proto),
		length,
	}, nil
}
