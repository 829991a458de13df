package tun

import (
	"encoding/binary"
	"fmt"

	"github.com/songgao/water"
)

// pseudoHeaderLen is the size of the flags+ethertype framing in octets.
const pseudoHeaderLen = 4

// Device is a TUN network device carrying framed packets: every Read
// yields a buffer beginning with the 4-byte flags+ethertype pseudo-header
// and every Write expects one.
//
// The underlying water interface is opened without packet information
// (IFF_NO_PI), so the device synthesizes the framing on read — flags zero,
// ethertype derived from the version nibble — and strips it on write. The
// rest of the stack always sees the framed form.
type Device struct {
	ifce *water.Interface
}

// OpenDevice creates a TUN interface with the given name. An empty name
// lets the kernel pick one. Address and route configuration is left to the
// operator (ip addr / ip route), as is conventional for TUN daemons.
func OpenDevice(name string) (*Device, error) {
	cfg := water.Config{DeviceType: water.TUN}
	if name != "" {
		cfg.Name = name
	}

	ifce, err := water.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating TUN device %q: %w", name, err)
	}

	return &Device{ifce: ifce}, nil
}

// Name returns the interface name the kernel assigned.
func (d *Device) Name() string {
	return d.ifce.Name()
}

// Read fills p with one framed packet: the synthesized pseudo-header
// followed by the raw IP packet from the kernel. p must have room for the
// MTU plus the 4-byte framing.
func (d *Device) Read(p []byte) (int, error) {
	if len(p) <= pseudoHeaderLen {
		return 0, fmt.Errorf("read buffer %d bytes, need > %d", len(p), pseudoHeaderLen)
	}

	n, err := d.ifce.Read(p[pseudoHeaderLen:])
	if err != nil {
		return 0, fmt.Errorf("reading TUN device %s: %w", d.Name(), err)
	}

	binary.BigEndian.PutUint16(p[0:2], 0)
	binary.BigEndian.PutUint16(p[2:4], etherTypeFor(p[pseudoHeaderLen:pseudoHeaderLen+n]))
	return n + pseudoHeaderLen, nil
}

// Write strips the pseudo-header from p and hands the raw IP packet to the
// kernel.
func (d *Device) Write(p []byte) (int, error) {
	if len(p) <= pseudoHeaderLen {
		return 0, fmt.Errorf("write buffer %d bytes, need > %d", len(p), pseudoHeaderLen)
	}

	n, err := d.ifce.Write(p[pseudoHeaderLen:])
	if err != nil {
		return 0, fmt.Errorf("writing TUN device %s: %w", d.Name(), err)
	}
	return n + pseudoHeaderLen, nil
}

// Close shuts the device down. In-flight Reads fail, which is how the
// engine loop unblocks on shutdown.
func (d *Device) Close() error {
	if err := d.ifce.Close(); err != nil {
		return fmt.Errorf("closing TUN device: %w", err)
	}
	return nil
}

// etherTypeFor derives the framing ethertype from the version nibble of a
// raw IP packet. Unrecognized versions are framed as zero and rejected by
// the frame parser downstream.
func etherTypeFor(pkt []byte) uint16 {
	if len(pkt) == 0 {
		return 0
	}
	switch pkt[0] >> 4 {
	case 4:
		return uint16(EtherTypeIPv4)
	case 6:
		return uint16(EtherTypeIPv6)
	default:
		return 0
	}
}
