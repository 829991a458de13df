package ip

import "fmt"

// Precedence is the 3-bit precedence field of the IPv4 type-of-service
// octet (RFC 791 Section 3.1).
type Precedence uint8

const (
	PrecedenceRoutine             Precedence = 0
	PrecedencePriority            Precedence = 1
	PrecedenceImmediate           Precedence = 2
	PrecedenceFlash               Precedence = 3
	PrecedenceFlashOverride       Precedence = 4
	PrecedenceCriticECP           Precedence = 5
	PrecedenceInternetworkControl Precedence = 6
	PrecedenceNetworkControl      Precedence = 7
)

// precedenceNames maps precedence levels to their RFC 791 names.
var precedenceNames = [8]string{
	"Routine",
	"Priority",
	"Immediate",
	"Flash",
	"Flash Override",
	"CRITIC/ECP",
	"Internetwork Control",
	"Network Control",
}

// String returns the RFC 791 name for the precedence level.
func (p Precedence) String() string {
	if int(p) < len(precedenceNames) {
		return precedenceNames[p]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(p))
}

// TypeOfService is the structured IPv4 TOS octet (RFC 791 Section 3.1):
// 3 bits of precedence, one bit each for delay, throughput, and
// reliability, and 2 reserved bits.
type TypeOfService struct {
	Precedence      Precedence
	LowDelay        bool
	HighThroughput  bool
	HighReliability bool
	Reserved        uint8 // low 2 bits as received; Byte emits them as zero
}

// ParseTOS decodes the TOS octet. Every bit pattern is valid.
func ParseTOS(b uint8) TypeOfService {
	return TypeOfService{
		Precedence:      Precedence(b >> 5),
		LowDelay:        b&0x10 != 0,
		HighThroughput:  b&0x08 != 0,
		HighReliability: b&0x04 != 0,
		Reserved:        b & 0x03,
	}
}

// Byte encodes the TOS octet. The reserved bits are emitted as zero, as
// required on transmit.
func (t TypeOfService) Byte() uint8 {
	b := uint8(t.Precedence) << 5
	if t.LowDelay {
		b |= 0x10
	}
	if t.HighThroughput {
		b |= 0x08
	}
	if t.HighReliability {
		b |= 0x04
	}
	return b
}

// String renders the structured fields, e.g.
// "Routine, delay=Normal, throughput=High, reliability=Normal".
func (t TypeOfService) String() string {
	return fmt.Sprintf("%s, delay=%s, throughput=%s, reliability=%s",
		t.Precedence,
		normalOr(t.LowDelay, "Low"),
		normalOr(t.HighThroughput, "High"),
		normalOr(t.HighReliability, "High"),
	)
}

// normalOr returns alt when set, "Normal" otherwise.
func normalOr(set bool, alt string) string {
	if set {
		return alt
	}
	return "Normal"
}
