package ip_test

import (
	"bytes"
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/dantte-lp/gotun/internal/ip"
	"github.com/dantte-lp/gotun/internal/transport"
	"github.com/dantte-lp/gotun/internal/wire"
)

// -------------------------------------------------------------------------
// Parse
// -------------------------------------------------------------------------

// buildHeaderBytes serializes a 20-byte IPv4 header by hand for parse tests.
func buildHeaderBytes(ihl uint8, totalLen uint16, proto uint8, payload []byte) []byte {
	w := wire.NewWriter(20 + len(payload))
	w.PutUint8(4<<4 | ihl)
	w.PutUint8(0)
	w.PutUint16(totalLen)
	w.PutUint16(0x1234)           // identification
	w.PutUint16(0x4000)           // DF, fragment offset 0
	w.PutUint8(64)                // TTL
	w.PutUint8(proto)
	w.PutUint16(0xABCD)           // header checksum, stored unvalidated
	w.PutBytes([]byte{10, 0, 0, 2})
	w.PutBytes([]byte{10, 0, 0, 1})
	w.PutBytes(payload)
	return w.Bytes()
}

func TestParseIPv4(t *testing.T) {
	t.Parallel()

	payload := []byte{0xAA, 0xBB, 0xCC}
	buf := buildHeaderBytes(5, 23, 99, payload)

	h, err := ip.ParseIPv4(wire.NewReader(buf))
	if err != nil {
		t.Fatalf("ParseIPv4() error: %v", err)
	}

	if h.Version != 4 || h.IHL != 5 {
		t.Errorf("version/IHL = %d/%d, want 4/5", h.Version, h.IHL)
	}
	if h.TotalLength != 23 || h.Identification != 0x1234 {
		t.Errorf("total length/id = %d/%#x", h.TotalLength, h.Identification)
	}
	if h.Flags != ip.FlagDontFragment || h.FragmentOffset != 0 {
		t.Errorf("flags/offset = %v/%d, want DF/0", h.Flags, h.FragmentOffset)
	}
	if h.TTL != 64 || h.Protocol != ip.Protocol(99) {
		t.Errorf("TTL/protocol = %d/%v", h.TTL, h.Protocol)
	}
	if h.HeaderChecksum != 0xABCD {
		t.Errorf("stored checksum = %#x, want 0xABCD as received", h.HeaderChecksum)
	}
	if h.Src != netip.MustParseAddr("10.0.0.2") || h.Dst != netip.MustParseAddr("10.0.0.1") {
		t.Errorf("addresses = %s -> %s", h.Src, h.Dst)
	}

	raw, ok := h.Payload.(transport.Raw)
	if !ok {
		t.Fatalf("payload type = %T, want transport.Raw", h.Payload)
	}
	if raw.Proto != 99 || !bytes.Equal(raw.Data, payload) {
		t.Errorf("raw payload = proto %d data %v", raw.Proto, raw.Data)
	}
}

func TestParseIPv4FragmentOffsetMask(t *testing.T) {
	t.Parallel()

	// Flags word 0x3FFF: flags = 001 (MF), offset = all 13 low bits.
	w := wire.NewWriter(20)
	w.PutUint8(0x45)
	w.PutUint8(0)
	w.PutUint16(20)
	w.PutUint16(0)
	w.PutUint16(0x3FFF)
	w.PutUint8(64)
	w.PutUint8(99)
	w.PutUint16(0)
	w.PutBytes([]byte{10, 0, 0, 2, 10, 0, 0, 1})

	h, err := ip.ParseIPv4(wire.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("ParseIPv4() error: %v", err)
	}
	if h.Flags != ip.FlagMoreFragments {
		t.Errorf("flags = %v, want MF", h.Flags)
	}
	if h.FragmentOffset != 0x1FFF {
		t.Errorf("fragment offset = %#x, want 0x1FFF", h.FragmentOffset)
	}
}

func TestParseIPv4Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{
			name: "IHL below minimum",
			buf:  buildHeaderBytes(4, 40, 6, nil),
			want: ip.ErrHeaderLength,
		},
		{
			name: "total length smaller than header",
			buf:  buildHeaderBytes(5, 19, 6, nil),
			want: ip.ErrTotalLength,
		},
		{
			name: "truncated header",
			buf:  []byte{0x45, 0x00, 0x00},
			want: wire.ErrShortRead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ip.ParseIPv4(wire.NewReader(tt.buf))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseIPv4ConsumesOptions(t *testing.T) {
	t.Parallel()

	// IHL=6: one 4-byte options word before the payload.
	w := wire.NewWriter(28)
	w.PutUint8(4<<4 | 6)
	w.PutUint8(0)
	w.PutUint16(27) // 24 header + 3 payload
	w.PutUint16(0)
	w.PutUint16(0)
	w.PutUint8(64)
	w.PutUint8(99)
	w.PutUint16(0)
	w.PutBytes([]byte{10, 0, 0, 2, 10, 0, 0, 1})
	w.PutBytes([]byte{0x01, 0x01, 0x01, 0x00}) // options
	w.PutBytes([]byte{0xAA, 0xBB, 0xCC})

	h, err := ip.ParseIPv4(wire.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("ParseIPv4() error: %v", err)
	}
	if !bytes.Equal(h.Options, []byte{0x01, 0x01, 0x01, 0x00}) {
		t.Errorf("options = %v", h.Options)
	}
	raw := h.Payload.(transport.Raw)
	if !bytes.Equal(raw.Data, []byte{0xAA, 0xBB, 0xCC}) {
		t.Errorf("payload = %v, want the bytes after the options", raw.Data)
	}
}

// -------------------------------------------------------------------------
// Header checksum — word layout and complement identity
// -------------------------------------------------------------------------

func TestIPv4HeaderChecksum(t *testing.T) {
	t.Parallel()

	h := &ip.IPv4{
		Version:        4,
		IHL:            5,
		TotalLength:    40,
		Identification: 0,
		Flags:          ip.FlagDontFragment,
		FragmentOffset: 0,
		TTL:            60,
		Protocol:       ip.ProtocolTCP,
		Src:            netip.MustParseAddr("192.168.0.2"),
		Dst:            netip.MustParseAddr("192.168.0.1"),
	}

	// The ten header words with the checksum field zeroed.
	words := []uint16{
		0x4500, 40, 0, 0x4000, 60<<8 | 6, 0,
		0xC0A8, 0x0002, 0xC0A8, 0x0001,
	}
	want := wire.Checksum(words)

	if got := h.CalculateChecksum(); got != want {
		t.Fatalf("CalculateChecksum() = %#04x, want %#04x", got, want)
	}

	// Complement identity: folding the header with the checksum in place
	// yields all-ones.
	withSum := append(append([]uint16(nil), words...), want)
	if sum := onesComplementSum(withSum); sum != 0xFFFF {
		t.Fatalf("sum(header + checksum) = %#04x, want 0xFFFF", sum)
	}
}

// onesComplementSum folds words with end-around carry, without the final
// complement.
func onesComplementSum(words []uint16) uint16 {
	var sum uint16
	for _, w := range words {
		s := uint32(sum) + uint32(w)
		sum = uint16(s & 0xFFFF)
		if s > 0xFFFF {
			sum++
		}
	}
	return sum
}

// -------------------------------------------------------------------------
// Serialize + response synthesis
// -------------------------------------------------------------------------

func TestIPv4SerializeRoundTrip(t *testing.T) {
	t.Parallel()

	h := &ip.IPv4{
		Version:        4,
		IHL:            5,
		TotalLength:    25,
		Identification: 7,
		Flags:          ip.FlagDontFragment,
		FragmentOffset: 0,
		TTL:            64,
		Protocol:       ip.Protocol(99),
		Src:            netip.MustParseAddr("10.0.0.2"),
		Dst:            netip.MustParseAddr("10.0.0.1"),
		Payload:        transport.Raw{Proto: 99, Data: []byte{1, 2, 3, 4, 5}},
	}

	buf, err := h.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	if len(buf) != 25 {
		t.Fatalf("serialized length = %d, want 25", len(buf))
	}

	parsed, err := ip.ParseIPv4(wire.NewReader(buf))
	if err != nil {
		t.Fatalf("ParseIPv4(serialized) error: %v", err)
	}
	if parsed.TotalLength != h.TotalLength || parsed.TTL != h.TTL ||
		parsed.Protocol != h.Protocol || parsed.Src != h.Src || parsed.Dst != h.Dst ||
		parsed.Flags != h.Flags || parsed.Identification != h.Identification {
		t.Errorf("round-trip mismatch: %+v", parsed)
	}
	if parsed.HeaderChecksum != h.CalculateChecksum() {
		t.Errorf("serialized checksum = %#04x, want %#04x", parsed.HeaderChecksum, h.CalculateChecksum())
	}
}

func TestIPv4Respond(t *testing.T) {
	t.Parallel()

	req := &ip.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: ip.ProtocolTCP,
		Src:      netip.MustParseAddr("10.0.0.2"),
		Dst:      netip.MustParseAddr("10.0.0.1"),
	}

	seg := &transport.TCPSegment{
		SrcPort:    80,
		DstPort:    49152,
		DataOffset: 5,
		Control:    transport.ControlSYNACK(),
	}

	resp, err := req.Respond(seg)
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}

	if resp.Src != req.Dst || resp.Dst != req.Src {
		t.Errorf("response addresses = %s -> %s, want swapped", resp.Src, resp.Dst)
	}
	if resp.TTL != 0x3C {
		t.Errorf("response TTL = %d, want 60", resp.TTL)
	}
	if resp.Flags != ip.FlagDontFragment || resp.FragmentOffset != 0 {
		t.Errorf("response flags/offset = %v/%d", resp.Flags, resp.FragmentOffset)
	}
	if resp.Identification != 0 {
		t.Errorf("response id = %d, want 0", resp.Identification)
	}
	if resp.Protocol != ip.ProtocolTCP {
		t.Errorf("response protocol = %v, want TCP from the transport tag", resp.Protocol)
	}
	if resp.TotalLength != 40 {
		t.Errorf("response total length = %d, want 40", resp.TotalLength)
	}
}

func TestIPv4RespondProtocolFollowsTransport(t *testing.T) {
	t.Parallel()

	req := &ip.IPv4{
		Protocol: ip.ProtocolUDP,
		Src:      netip.MustParseAddr("10.0.0.2"),
		Dst:      netip.MustParseAddr("10.0.0.1"),
	}

	resp, err := req.Respond(&transport.UDPDatagram{SrcPort: 53, DstPort: 4000})
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if resp.Protocol != ip.ProtocolUDP {
		t.Errorf("response protocol = %v, want UDP", resp.Protocol)
	}
}

// -------------------------------------------------------------------------
// Cross-validation against gopacket
// -------------------------------------------------------------------------

func TestIPv4SerializeGopacketCrossCheck(t *testing.T) {
	t.Parallel()

	seg := &transport.TCPSegment{
		SrcPort:    80,
		DstPort:    49152,
		Seq:        0x01020304,
		Ack:        0xDEADBEF0,
		DataOffset: 5,
		Control:    transport.ControlSYNACK(),
		Window:     1024,
	}

	h := &ip.IPv4{
		Version:        4,
		IHL:            5,
		TotalLength:    40,
		Identification: 0,
		Flags:          ip.FlagDontFragment,
		TTL:            60,
		Protocol:       ip.ProtocolTCP,
		Src:            netip.MustParseAddr("10.0.0.1"),
		Dst:            netip.MustParseAddr("10.0.0.2"),
		Payload:        seg,
	}

	buf, err := h.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}

	pkt := gopacket.NewPacket(buf, layers.LayerTypeIPv4, gopacket.Default)
	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		t.Fatalf("gopacket decode error: %v", errLayer.Error())
	}

	ip4, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		t.Fatalf("gopacket did not decode an IPv4 layer")
	}
	if !ip4.SrcIP.Equal(net.IPv4(10, 0, 0, 1)) || !ip4.DstIP.Equal(net.IPv4(10, 0, 0, 2)) {
		t.Errorf("gopacket addresses = %s -> %s", ip4.SrcIP, ip4.DstIP)
	}
	if ip4.TTL != 60 || ip4.Protocol != layers.IPProtocolTCP {
		t.Errorf("gopacket TTL/protocol = %d/%v", ip4.TTL, ip4.Protocol)
	}
	if ip4.Checksum != h.CalculateChecksum() {
		t.Errorf("gopacket checksum = %#04x, ours %#04x", ip4.Checksum, h.CalculateChecksum())
	}

	tcpLayer, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok {
		t.Fatalf("gopacket did not decode a TCP layer")
	}
	if tcpLayer.SrcPort != 80 || tcpLayer.DstPort != 49152 {
		t.Errorf("gopacket ports = %v -> %v", tcpLayer.SrcPort, tcpLayer.DstPort)
	}
	if tcpLayer.Seq != seg.Seq || tcpLayer.Ack != seg.Ack {
		t.Errorf("gopacket seq/ack = %#x/%#x", tcpLayer.Seq, tcpLayer.Ack)
	}
	if !tcpLayer.SYN || !tcpLayer.ACK || tcpLayer.FIN || tcpLayer.RST {
		t.Errorf("gopacket flags: SYN=%t ACK=%t FIN=%t RST=%t", tcpLayer.SYN, tcpLayer.ACK, tcpLayer.FIN, tcpLayer.RST)
	}
	if tcpLayer.Window != 1024 {
		t.Errorf("gopacket window = %d, want 1024", tcpLayer.Window)
	}

	csum, err := seg.CalculateChecksum(h.Src, h.Dst)
	if err != nil {
		t.Fatalf("CalculateChecksum() error: %v", err)
	}
	if tcpLayer.Checksum != csum {
		t.Errorf("gopacket TCP checksum = %#04x, ours %#04x", tcpLayer.Checksum, csum)
	}
}
