// Package tcp implements the TCP connection engine: the per-connection
// Transmission Control Block (RFC 793 Section 3.2), the state machine that
// advances it segment by segment, and the connection table keyed by the
// (source IP, destination IP, source port, destination port) quadruple.
package tcp

import (
	"fmt"
	"net/netip"
)

// State is a TCP connection state (RFC 793 Section 3.2). CLOSED is not
// represented: it is the absence of a connection-table entry.
type State uint8

const (
	StateListen State = iota
	StateSynSent
	StateSynReceived
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateCloseWait
	StateClosing
	StateLastAck
	StateTimeWait
)

// stateNames maps states to the RFC 793 diagram names.
var stateNames = [10]string{
	"LISTEN",
	"SYN_SENT",
	"SYN_RECEIVED",
	"ESTABLISHED",
	"FIN_WAIT_1",
	"FIN_WAIT_2",
	"CLOSE_WAIT",
	"CLOSING",
	"LAST_ACK",
	"TIME_WAIT",
}

// String returns the RFC 793 name for the state.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(s))
}

// Quad identifies a connection as observed from one direction: the
// received packet's source and destination. Equality is raw address
// equality, so Quad is usable directly as a map key.
type Quad struct {
	SrcIP   netip.Addr
	DstIP   netip.Addr
	SrcPort uint16
	DstPort uint16
}

// String renders "src:port -> dst:port".
func (q Quad) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d", q.SrcIP, q.SrcPort, q.DstIP, q.DstPort)
}

// SendSequence holds the send-side sequence variables
// (RFC 793 Section 3.2: SND.UNA, SND.NXT, SND.WND, SND.UP, SND.WL1,
// SND.WL2, ISS).
type SendSequence struct {
	Unacked       uint32 // SND.UNA
	Next          uint32 // SND.NXT
	Window        uint16 // SND.WND
	UrgentPointer uint32 // SND.UP
	WL1           uint32 // seq of last window update
	WL2           uint32 // ack of last window update
	ISS           uint32 // initial send sequence number
}

// ReceiveSequence holds the receive-side sequence variables
// (RFC 793 Section 3.2: RCV.NXT, RCV.WND, RCV.UP, IRS).
type ReceiveSequence struct {
	Next          uint32 // RCV.NXT
	Window        uint16 // RCV.WND
	UrgentPointer uint32 // RCV.UP
	IRS           uint32 // initial receive sequence number
}

// TCB is the Transmission Control Block: all per-connection state
// (RFC 793 Section 3.2). The zero value is a fresh LISTEN entry, which is
// what a quadruple with no table entry behaves as.
//
// The receive buffer grows without bound in this subset; there is no flow
// control enforcement beyond echoing the advertised window.
type TCB struct {
	LocalPort  uint16
	RemotePort uint16
	Send       SendSequence
	Recv       ReceiveSequence
	State      State
	SendBuffer []byte
	RecvBuffer []byte
}
