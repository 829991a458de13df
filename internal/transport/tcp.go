package transport

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/dantte-lp/gotun/internal/wire"
)

// tcpMinDataOffset is the minimum TCP data offset in 32-bit words: the
// 20-byte mandatory header with no options (RFC 793 Section 3.1).
const tcpMinDataOffset = 5

// ErrDataOffset indicates a TCP data offset below the 20-byte minimum.
var ErrDataOffset = errors.New("data offset below minimum")

// TCPSegment is a decoded TCP segment (RFC 793 Section 3.1).
//
// Checksum holds the value observed on ingress; Serialize always computes
// a fresh checksum and ignores the stored field. Options are captured
// verbatim on parse and written back verbatim on serialize, never
// re-encoded.
type TCPSegment struct {
	SrcPort       uint16
	DstPort       uint16
	Seq           uint32
	Ack           uint32
	DataOffset    uint8 // 4 bits, in 32-bit words
	Reserved      uint8 // 6 bits, zeroed on serialize
	Control       ControlBits
	Window        uint16
	Checksum      uint16
	UrgentPointer uint16
	Options       []byte
	Data          []byte
}

// ParseTCP decodes a TCP segment from r, consuming the remainder of the
// reader as segment data. The options run is clamped to the bytes that are
// actually present, so a truncated options field does not fail the parse.
func ParseTCP(r *wire.Reader) (*TCPSegment, error) {
	seg := &TCPSegment{}

	var err error
	if seg.SrcPort, err = r.Uint16(); err != nil {
		return nil, fmt.Errorf("reading source port: %w", err)
	}
	if seg.DstPort, err = r.Uint16(); err != nil {
		return nil, fmt.Errorf("reading destination port: %w", err)
	}
	if seg.Seq, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("reading sequence number: %w", err)
	}
	if seg.Ack, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("reading acknowledgment number: %w", err)
	}

	word, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("reading data offset word: %w", err)
	}
	seg.DataOffset = uint8(word >> 12)
	seg.Reserved = uint8((word >> 6) & 0x3F)
	seg.Control = ParseControlBits(uint8(word & 0x3F))
	if seg.DataOffset < tcpMinDataOffset {
		return nil, fmt.Errorf("data offset %d < %d: %w", seg.DataOffset, tcpMinDataOffset, ErrDataOffset)
	}

	if seg.Window, err = r.Uint16(); err != nil {
		return nil, fmt.Errorf("reading window: %w", err)
	}
	if seg.Checksum, err = r.Uint16(); err != nil {
		return nil, fmt.Errorf("reading checksum: %w", err)
	}
	if seg.UrgentPointer, err = r.Uint16(); err != nil {
		return nil, fmt.Errorf("reading urgent pointer: %w", err)
	}

	seg.Options = r.BytesClamped(int(seg.DataOffset-tcpMinDataOffset) * 4)
	seg.Data = r.Rest()

	return seg, nil
}

// ProtocolNumber returns the IANA protocol number for TCP.
func (s *TCPSegment) ProtocolNumber() uint8 { return ProtoNumTCP }

// WireLen returns the serialized segment length: data offset in octets
// plus the payload.
func (s *TCPSegment) WireLen() (uint16, error) {
	n := int(s.DataOffset)*4 + len(s.Data)
	if n > 0xFFFF {
		return 0, fmt.Errorf("TCP segment %d bytes: %w", n, ErrSegmentTooLarge)
	}
	return uint16(n), nil
}

// Serialize encodes the segment with a freshly computed checksum over the
// IPv4 pseudo-header, the header with a zeroed checksum field, the options
// as captured, and the payload (RFC 793 Section 3.1).
//
// The reserved bits are emitted as zero regardless of what was parsed.
func (s *TCPSegment) Serialize(src, dst netip.Addr) ([]byte, error) {
	length, err := s.WireLen()
	if err != nil {
		return nil, err
	}

	csum, err := s.CalculateChecksum(src, dst)
	if err != nil {
		return nil, fmt.Errorf("computing TCP checksum: %w", err)
	}

	w := wire.NewWriter(int(length))
	s.putHeader(w, csum)
	w.PutBytes(s.Options)
	w.PutBytes(s.Data)
	return w.Bytes(), nil
}

// putHeader writes the 20-byte mandatory header with the given checksum.
func (s *TCPSegment) putHeader(w *wire.Writer, csum uint16) {
	w.PutUint16(s.SrcPort)
	w.PutUint16(s.DstPort)
	w.PutUint32(s.Seq)
	w.PutUint32(s.Ack)
	w.PutUint16(uint16(s.DataOffset)<<12 | uint16(s.Control.Bits()))
	w.PutUint16(s.Window)
	w.PutUint16(csum)
	w.PutUint16(s.UrgentPointer)
}

// CalculateChecksum computes the TCP checksum over the IPv4 pseudo-header,
// the header with a zeroed checksum field, the options, and the payload.
// An odd total length is padded with a zero low byte in the final word.
func (s *TCPSegment) CalculateChecksum(src, dst netip.Addr) (uint16, error) {
	length, err := s.WireLen()
	if err != nil {
		return 0, err
	}

	words, err := pseudoHeaderWords(src, dst, ProtoNumTCP, length)
	if err != nil {
		return 0, err
	}

	hw := wire.NewWriter(int(length))
	s.putHeader(hw, 0)
	hw.PutBytes(s.Options)
	hw.PutBytes(s.Data)
	words = append(words, wordsOf(hw.Bytes())...)

	return wire.Checksum(words), nil
}

// ShortString renders the segment as ":src -> :dst [FLAGS] Nb".
func (s *TCPSegment) ShortString() string {
	return fmt.Sprintf(":%d -> :%d [%s] %db", s.SrcPort, s.DstPort, s.Control, len(s.Data))
}

// wordsOf folds data into big-endian 16-bit words with odd-byte padding.
func wordsOf(data []byte) []uint16 {
	words := make([]uint16, 0, (len(data)+1)/2)
	for i := 0; i+1 < len(data); i += 2 {
		words = append(words, uint16(data[i])<<8|uint16(data[i+1]))
	}
	if len(data)%2 == 1 {
		words = append(words, uint16(data[len(data)-1])<<8)
	}
	return words
}
