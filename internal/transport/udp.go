package transport

import (
	"fmt"
	"net/netip"

	"github.com/dantte-lp/gotun/internal/wire"
)

// udpHeaderLen is the fixed UDP header size in octets (RFC 768).
const udpHeaderLen = 8

// UDPDatagram is a decoded UDP datagram (RFC 768).
//
// Length and Checksum hold the values observed on ingress; Serialize
// recomputes both from the payload.
type UDPDatagram struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
	Data     []byte
}

// ParseUDP decodes a UDP datagram from r, consuming the remainder of the
// reader as payload.
func ParseUDP(r *wire.Reader) (*UDPDatagram, error) {
	d := &UDPDatagram{}

	var err error
	if d.SrcPort, err = r.Uint16(); err != nil {
		return nil, fmt.Errorf("reading source port: %w", err)
	}
	if d.DstPort, err = r.Uint16(); err != nil {
		return nil, fmt.Errorf("reading destination port: %w", err)
	}
	if d.Length, err = r.Uint16(); err != nil {
		return nil, fmt.Errorf("reading length: %w", err)
	}
	if d.Checksum, err = r.Uint16(); err != nil {
		return nil, fmt.Errorf("reading checksum: %w", err)
	}
	d.Data = r.Rest()

	return d, nil
}

// ProtocolNumber returns the IANA protocol number for UDP.
func (d *UDPDatagram) ProtocolNumber() uint8 { return ProtoNumUDP }

// WireLen returns the header length plus the payload length.
func (d *UDPDatagram) WireLen() (uint16, error) {
	n := udpHeaderLen + len(d.Data)
	if n > 0xFFFF {
		return 0, fmt.Errorf("UDP datagram %d bytes: %w", n, ErrSegmentTooLarge)
	}
	return uint16(n), nil
}

// Serialize encodes the datagram with recomputed length and checksum.
func (d *UDPDatagram) Serialize(src, dst netip.Addr) ([]byte, error) {
	length, err := d.WireLen()
	if err != nil {
		return nil, err
	}

	csum, err := d.CalculateChecksum(src, dst)
	if err != nil {
		return nil, fmt.Errorf("computing UDP checksum: %w", err)
	}

	w := wire.NewWriter(int(length))
	w.PutUint16(d.SrcPort)
	w.PutUint16(d.DstPort)
	w.PutUint16(length)
	w.PutUint16(csum)
	w.PutBytes(d.Data)
	return w.Bytes(), nil
}

// CalculateChecksum computes the UDP checksum (RFC 768): the IPv4
// pseudo-header followed by the UDP header with a zeroed checksum field and
// the payload. The length field is covered twice, once in the pseudo-header
// and once in the header itself.
func (d *UDPDatagram) CalculateChecksum(src, dst netip.Addr) (uint16, error) {
	length, err := d.WireLen()
	if err != nil {
		return 0, err
	}

	words, err := pseudoHeaderWords(src, dst, ProtoNumUDP, length)
	if err != nil {
		return 0, err
	}

	words = append(words, d.SrcPort, d.DstPort, length, 0)
	words = append(words, wordsOf(d.Data)...)

	return wire.Checksum(words), nil
}

// ShortString renders the datagram as ":src -> :dst Nb (Mb payload)".
func (d *UDPDatagram) ShortString() string {
	return fmt.Sprintf(":%d -> :%d %db (%db payload)", d.SrcPort, d.DstPort, d.Length, len(d.Data))
}
