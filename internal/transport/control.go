package transport

import "strings"

// Control-bit masks within the low 6 bits of the TCP offset/flags word
// (RFC 793 Section 3.1).
const (
	bitFIN uint8 = 1 << 0
	bitSYN uint8 = 1 << 1
	bitRST uint8 = 1 << 2
	bitPSH uint8 = 1 << 3
	bitACK uint8 = 1 << 4
	bitURG uint8 = 1 << 5
)

// ControlBits holds the six TCP control flags (RFC 793 Section 3.1).
type ControlBits struct {
	URG bool
	ACK bool
	PSH bool
	RST bool
	SYN bool
	FIN bool
}

// ParseControlBits decodes the low 6 bits of the offset/flags word.
// Each flag is tested with a nonzero mask result.
func ParseControlBits(num uint8) ControlBits {
	return ControlBits{
		URG: num&bitURG != 0,
		ACK: num&bitACK != 0,
		PSH: num&bitPSH != 0,
		RST: num&bitRST != 0,
		SYN: num&bitSYN != 0,
		FIN: num&bitFIN != 0,
	}
}

// Bits encodes the flags back into the low 6 bits of the offset/flags word.
func (c ControlBits) Bits() uint8 {
	var num uint8
	if c.URG {
		num |= bitURG
	}
	if c.ACK {
		num |= bitACK
	}
	if c.PSH {
		num |= bitPSH
	}
	if c.RST {
		num |= bitRST
	}
	if c.SYN {
		num |= bitSYN
	}
	if c.FIN {
		num |= bitFIN
	}
	return num
}

// ControlSYN returns the flag set of an initial SYN segment.
func ControlSYN() ControlBits {
	return ControlBits{SYN: true}
}

// ControlSYNACK returns the flag set of a SYN-ACK handshake reply.
func ControlSYNACK() ControlBits {
	return ControlBits{SYN: true, ACK: true}
}

// ControlACK returns the flag set of a pure acknowledgment.
func ControlACK() ControlBits {
	return ControlBits{ACK: true}
}

// String renders the set flags as a comma-separated list in URG, ACK, PSH,
// RST, SYN, FIN order, e.g. "ACK, SYN".
func (c ControlBits) String() string {
	var flags []string
	if c.URG {
		flags = append(flags, "URG")
	}
	if c.ACK {
		flags = append(flags, "ACK")
	}
	if c.PSH {
		flags = append(flags, "PSH")
	}
	if c.RST {
		flags = append(flags, "RST")
	}
	if c.SYN {
		flags = append(flags, "SYN")
	}
	if c.FIN {
		flags = append(flags, "FIN")
	}
	return strings.Join(flags, ", ")
}
