package ip

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/dantte-lp/gotun/internal/transport"
	"github.com/dantte-lp/gotun/internal/wire"
)

// IPv4 header constants (RFC 791 Section 3.1).
const (
	// ipv4Version is the version nibble for IPv4.
	ipv4Version uint8 = 4

	// ipv4MinIHL is the minimum header length in 32-bit words: the
	// 20-byte mandatory header with no options.
	ipv4MinIHL uint8 = 5

	// responseTTL is the TTL used on synthesized responses, the 60-second
	// default suggested by RFC 793 for segment lifetime.
	responseTTL uint8 = 0x3C
)

// IPv4 codec errors.
var (
	// ErrHeaderLength indicates an IHL below the 20-byte minimum.
	ErrHeaderLength = errors.New("internet header length below minimum")

	// ErrTotalLength indicates a total length smaller than the header
	// length it must contain.
	ErrTotalLength = errors.New("total length smaller than header")

	// ErrPacketTooLarge indicates a synthesized packet would not fit the
	// 16-bit total-length field.
	ErrPacketTooLarge = errors.New("packet exceeds 16-bit total length")
)

// IPv4 is a decoded IPv4 header and its transport payload
// (RFC 791 Section 3.1).
//
// HeaderChecksum holds the value observed on ingress and is not validated;
// Serialize always computes a fresh checksum. Options are consumed on parse
// but never re-emitted: egress headers are fixed at IHL=5.
type IPv4 struct {
	Version        uint8
	IHL            uint8 // 32-bit words, >= 5
	TOS            TypeOfService
	TotalLength    uint16
	Identification uint16
	Flags          Flags
	FragmentOffset uint16 // 13 bits, 8-octet units
	TTL            uint8
	Protocol       Protocol
	HeaderChecksum uint16
	Src            netip.Addr
	Dst            netip.Addr
	Options        []byte
	Payload        transport.Layer
}

// ParseIPv4 decodes an IPv4 header from r and delegates the payload to the
// transport parser with the derived payload length. The total-length field
// counts octets (RFC 791); the payload length is total length minus the
// header length, and a total length smaller than the header fails the
// parse. The header checksum is stored as received, not validated.
func ParseIPv4(r *wire.Reader) (*IPv4, error) {
	h := &IPv4{}

	first, err := r.Uint8()
	if err != nil {
		return nil, fmt.Errorf("reading version/IHL: %w", err)
	}
	h.Version = first >> 4
	h.IHL = first & 0x0F
	if h.IHL < ipv4MinIHL {
		return nil, fmt.Errorf("IHL %d < %d: %w", h.IHL, ipv4MinIHL, ErrHeaderLength)
	}
	headerLen := uint16(h.IHL) * 4

	tosByte, err := r.Uint8()
	if err != nil {
		return nil, fmt.Errorf("reading type of service: %w", err)
	}
	h.TOS = ParseTOS(tosByte)

	if h.TotalLength, err = r.Uint16(); err != nil {
		return nil, fmt.Errorf("reading total length: %w", err)
	}
	if h.TotalLength < headerLen {
		return nil, fmt.Errorf("total length %d < header length %d: %w",
			h.TotalLength, headerLen, ErrTotalLength)
	}
	payloadLen := h.TotalLength - headerLen

	if h.Identification, err = r.Uint16(); err != nil {
		return nil, fmt.Errorf("reading identification: %w", err)
	}

	flagsWord, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("reading flags/fragment offset: %w", err)
	}
	h.Flags = Flags(flagsWord >> 13)
	h.FragmentOffset = flagsWord & 0x1FFF

	if h.TTL, err = r.Uint8(); err != nil {
		return nil, fmt.Errorf("reading TTL: %w", err)
	}

	protoByte, err := r.Uint8()
	if err != nil {
		return nil, fmt.Errorf("reading protocol: %w", err)
	}
	h.Protocol = Protocol(protoByte)

	if h.HeaderChecksum, err = r.Uint16(); err != nil {
		return nil, fmt.Errorf("reading header checksum: %w", err)
	}

	src, err := r.Array4()
	if err != nil {
		return nil, fmt.Errorf("reading source address: %w", err)
	}
	h.Src = netip.AddrFrom4(src)

	dst, err := r.Array4()
	if err != nil {
		return nil, fmt.Errorf("reading destination address: %w", err)
	}
	h.Dst = netip.AddrFrom4(dst)

	h.Options = r.BytesClamped(int(h.IHL-ipv4MinIHL) * 4)

	h.Payload, err = transport.Parse(protoByte, int(payloadLen), r)
	if err != nil {
		return nil, fmt.Errorf("parsing transport payload: %w", err)
	}

	return h, nil
}

// IPVersion returns 4.
func (h *IPv4) IPVersion() uint8 { return ipv4Version }

// headerWords returns the ten 16-bit words of the fixed 20-byte header
// with the checksum word zeroed, in wire order.
func (h *IPv4) headerWords() []uint16 {
	src, dst := h.Src.As4(), h.Dst.As4()
	return []uint16{
		uint16(ipv4Version)<<12 | uint16(ipv4MinIHL)<<8 | uint16(h.TOS.Byte()),
		h.TotalLength,
		h.Identification,
		uint16(h.Flags)<<13 | h.FragmentOffset&0x1FFF,
		uint16(h.TTL)<<8 | uint16(uint8(h.Protocol)),
		0,
		uint16(src[0])<<8 | uint16(src[1]),
		uint16(src[2])<<8 | uint16(src[3]),
		uint16(dst[0])<<8 | uint16(dst[1]),
		uint16(dst[2])<<8 | uint16(dst[3]),
	}
}

// CalculateChecksum computes the RFC 1071 header checksum over the fixed
// 20-byte header with the checksum field treated as zero.
func (h *IPv4) CalculateChecksum() uint16 {
	return wire.Checksum(h.headerWords())
}

// Serialize encodes the header with IHL=5 (options are not re-emitted), a
// freshly computed header checksum, and the serialized transport payload.
func (h *IPv4) Serialize() ([]byte, error) {
	payload, err := h.Payload.Serialize(h.Src, h.Dst)
	if err != nil {
		return nil, fmt.Errorf("serializing transport payload: %w", err)
	}

	w := wire.NewWriter(20 + len(payload))
	w.PutUint8(ipv4Version<<4 | ipv4MinIHL)
	w.PutUint8(h.TOS.Byte())
	w.PutUint16(h.TotalLength)
	w.PutUint16(h.Identification)
	w.PutUint16(uint16(h.Flags)<<13 | h.FragmentOffset&0x1FFF)
	w.PutUint8(h.TTL)
	w.PutUint8(uint8(h.Protocol))
	w.PutUint16(h.CalculateChecksum())
	src, dst := h.Src.As4(), h.Dst.As4()
	w.PutBytes(src[:])
	w.PutBytes(dst[:])
	w.PutBytes(payload)
	return w.Bytes(), nil
}

// Respond synthesizes the response header for payload: source and
// destination swapped, default TOS, id 0, Don't Fragment, TTL 60, protocol
// taken from the payload's own transport tag, and total length covering the
// fixed header plus the payload.
func (h *IPv4) Respond(payload transport.Layer) (*IPv4, error) {
	payloadLen, err := payload.WireLen()
	if err != nil {
		return nil, fmt.Errorf("sizing response payload: %w", err)
	}
	total := uint32(ipv4MinIHL)*4 + uint32(payloadLen)
	if total > 0xFFFF {
		return nil, fmt.Errorf("response %d bytes: %w", total, ErrPacketTooLarge)
	}

	return &IPv4{
		Version:        ipv4Version,
		IHL:            ipv4MinIHL,
		TOS:            TypeOfService{},
		TotalLength:    uint16(total),
		Identification: 0,
		Flags:          ResponseFlags,
		FragmentOffset: 0,
		TTL:            responseTTL,
		Protocol:       Protocol(payload.ProtocolNumber()),
		Src:            h.Dst,
		Dst:            h.Src,
		Payload:        payload,
	}, nil
}

// ShortString renders "src -> dst | protocol :: payload".
func (h *IPv4) ShortString() string {
	return fmt.Sprintf("%s -> %s | %s :: %s", h.Src, h.Dst, h.Protocol, h.Payload.ShortString())
}
