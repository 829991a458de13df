package tcp

// fsm.go: the per-segment state machine. Each handler is a pure function
// from (TCB, segment) to a StateChange; the caller owns the connection
// table and stores the new TCB back. Only the passive-open path is
// modeled: LISTEN -> SYN_RECEIVED -> ESTABLISHED. Segments arriving in any
// other state are rejected.

import (
	"errors"
	"fmt"

	"github.com/dantte-lp/gotun/internal/transport"
)

// localWindow is the receive window advertised on the SYN-ACK. Fixed in
// this subset; a full implementation would size it from buffer occupancy.
const localWindow uint16 = 1024

// State machine errors.
var (
	// ErrUnexpectedSegment indicates a segment that does not open a
	// connection arrived for a quadruple in LISTEN.
	ErrUnexpectedSegment = errors.New("unexpected connection")

	// ErrMissingAck indicates a segment without ACK set arrived in a
	// state that requires acknowledgments.
	ErrMissingAck = errors.New("missing ack flag")

	// ErrUnsupportedState indicates the connection is in a state this
	// subset does not model.
	ErrUnsupportedState = errors.New("unsupported state")
)

// StateChange is the outcome of stepping the state machine: the successor
// TCB and, when the transition synthesizes a reply, the response segment.
type StateChange struct {
	TCB      TCB
	Response *transport.TCPSegment // nil when the transition is silent
}

// OnSegment advances the connection one received segment, dispatching on
// the current state. clock supplies the ISS for passive opens.
func (tcb *TCB) OnSegment(seg *transport.TCPSegment, clock ISSClock) (StateChange, error) {
	switch tcb.State {
	case StateListen:
		return tcb.handleListen(seg, clock)
	case StateSynReceived:
		return tcb.handleSynReceived(seg)
	case StateEstablished:
		return tcb.handleEstablished(seg)
	default:
		return StateChange{}, fmt.Errorf("state %s: %w", tcb.State, ErrUnsupportedState)
	}
}

// handleListen performs the passive open (RFC 793 Section 3.4): only SYN
// segments are accepted. The new TCB records the peer's sequence space,
// mints an ISS, and answers SYN-ACK.
func (tcb *TCB) handleListen(seg *transport.TCPSegment, clock ISSClock) (StateChange, error) {
	if !seg.Control.SYN {
		return StateChange{}, fmt.Errorf("segment [%s] in %s: %w", seg.Control, tcb.State, ErrUnexpectedSegment)
	}

	iss := clock()

	next := TCB{
		LocalPort:  seg.DstPort,
		RemotePort: seg.SrcPort,
		Send: SendSequence{
			Unacked:       iss,
			Next:          iss + 1, // the SYN consumes one sequence number
			Window:        localWindow,
			UrgentPointer: 0,
			WL1:           seg.Seq,
			WL2:           seg.Seq,
			ISS:           iss,
		},
		Recv: ReceiveSequence{
			Next:          seg.Seq + 1, // their SYN consumes one as well
			Window:        seg.Window,
			UrgentPointer: 0,
			IRS:           seg.Seq,
		},
		State:      StateSynReceived,
		SendBuffer: tcb.SendBuffer,
		RecvBuffer: tcb.RecvBuffer,
	}

	resp := &transport.TCPSegment{
		SrcPort:    seg.DstPort,
		DstPort:    seg.SrcPort,
		Seq:        iss,
		Ack:        next.Recv.Next,
		DataOffset: 5,
		Control:    transport.ControlSYNACK(),
		Window:     next.Send.Window,
	}

	return StateChange{TCB: next, Response: resp}, nil
}

// handleSynReceived completes the handshake: the segment must carry ACK.
// The send sequence carries through unchanged and RCV.NXT stays where the
// SYN left it — a pure ACK consumes no sequence space (RFC 793
// Section 3.4). Only the peer's window advertisement is taken. No reply.
func (tcb *TCB) handleSynReceived(seg *transport.TCPSegment) (StateChange, error) {
	if !seg.Control.ACK {
		return StateChange{}, fmt.Errorf("segment [%s] in %s: %w", seg.Control, tcb.State, ErrMissingAck)
	}

	next := *tcb
	next.Recv.Window = seg.Window
	next.Recv.UrgentPointer = 0
	next.State = StateEstablished

	return StateChange{TCB: next}, nil
}

// handleEstablished ingests segment data against RCV.NXT and answers with
// a pure ACK (RFC 793 Section 3.7).
//
// Three cases against RCV.NXT:
//   - in order: append all data, advance by its length;
//   - overlapping prefix already acknowledged: deliver only the new
//     suffix and advance past it;
//   - wholly duplicate or wholly out of window: deliver nothing.
//
// The receive buffer grows without bound here; see TCB.
func (tcb *TCB) handleEstablished(seg *transport.TCPSegment) (StateChange, error) {
	if !seg.Control.ACK {
		return StateChange{}, fmt.Errorf("segment [%s] in %s: %w", seg.Control, tcb.State, ErrMissingAck)
	}

	next := *tcb
	next.Recv.Window = seg.Window
	next.Recv.UrgentPointer = 0

	segEnd := seg.Seq + uint32(len(seg.Data))
	switch {
	case seg.Seq == tcb.Recv.Next:
		next.RecvBuffer = append(append([]byte(nil), tcb.RecvBuffer...), seg.Data...)
		next.Recv.Next = segEnd
	case seg.Seq < tcb.Recv.Next && tcb.Recv.Next < segEnd:
		offset := tcb.Recv.Next - seg.Seq
		next.RecvBuffer = append(append([]byte(nil), tcb.RecvBuffer...), seg.Data[offset:]...)
		next.Recv.Next = segEnd
	default:
		// Wholly acknowledged already, or beyond the window: drop.
	}

	resp := &transport.TCPSegment{
		SrcPort:    next.LocalPort,
		DstPort:    next.RemotePort,
		Seq:        next.Send.Next,
		Ack:        next.Recv.Next,
		DataOffset: 5,
		Control:    transport.ControlACK(),
		Window:     next.Recv.Window,
	}

	return StateChange{TCB: next, Response: resp}, nil
}
