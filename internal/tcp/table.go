package tcp

import (
	"fmt"

	"github.com/dantte-lp/gotun/internal/transport"
)

// Table maps connection quadruples to their TCBs. A quadruple with no
// entry behaves as a zero-value TCB in LISTEN, so the first SYN on a new
// quadruple performs the passive open. Entries are keyed by the received
// packet's orientation and never re-keyed: response synthesis swaps the
// roles on the egress segment only.
//
// The table grows without bound in this subset; there is no eviction.
type Table struct {
	conns map[Quad]TCB
	clock ISSClock
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithClock replaces the ISS generator. Tests use this to pin the ISS.
func WithClock(clock ISSClock) TableOption {
	return func(t *Table) {
		t.clock = clock
	}
}

// NewTable returns an empty connection table using the system clock for
// ISS generation unless WithClock overrides it.
func NewTable(opts ...TableOption) *Table {
	t := &Table{
		conns: make(map[Quad]TCB),
		clock: SystemClockISS,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Handle advances the connection identified by q with the received
// segment and stores the successor TCB back under the same key. It
// returns the response segment when the transition synthesizes one. On
// error the table is left untouched.
func (t *Table) Handle(q Quad, seg *transport.TCPSegment) (*transport.TCPSegment, error) {
	tcb := t.conns[q] // zero value is a LISTEN TCB

	change, err := tcb.OnSegment(seg, t.clock)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", q, err)
	}

	t.conns[q] = change.TCB
	return change.Response, nil
}

// Get returns the TCB for q and whether an entry exists.
func (t *Table) Get(q Quad) (TCB, bool) {
	tcb, ok := t.conns[q]
	return tcb, ok
}

// Len returns the number of tracked connections.
func (t *Table) Len() int {
	return len(t.conns)
}
