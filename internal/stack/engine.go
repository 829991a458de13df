// Package stack wires the codecs and the TCP connection engine into the
// packet pipeline: TUN frame in, optional TUN frame out. The Engine
// exposes the three pure operations — ParseIncoming, Handle,
// SerializeOutgoing — and a Run loop that drives them from a device.
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dantte-lp/gotun/internal/ip"
	stackmetrics "github.com/dantte-lp/gotun/internal/metrics"
	"github.com/dantte-lp/gotun/internal/tcp"
	"github.com/dantte-lp/gotun/internal/transport"
	"github.com/dantte-lp/gotun/internal/tun"
)

// framingOverhead is the TUN pseudo-header size added on top of the MTU
// when sizing packet buffers.
const framingOverhead = 4

// ErrNoHandler indicates a packet parsed cleanly but carries nothing the
// engine handles (non-IPv4, or a transport without a state machine).
var ErrNoHandler = errors.New("no handler for packet")

// Device is the packet channel the engine reads frames from and writes
// responses to. Each Read yields one complete framed packet.
type Device interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// Engine drives the protocol stack. It owns the connection table; the
// device and the loop lifetime are owned by the caller.
//
// The engine is single-threaded by design: Run is the sole caller of the
// step functions, packets are processed strictly in arrival order, and
// there is no interior locking or parallelism.
type Engine struct {
	table   *tcp.Table
	logger  *slog.Logger
	metrics *stackmetrics.Collector
	mtu     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches a metrics collector. Without it the engine runs
// unobserved.
func WithMetrics(c *stackmetrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = c
	}
}

// WithTableOptions passes options through to the connection table
// (tests pin the ISS clock this way).
func WithTableOptions(opts ...tcp.TableOption) Option {
	return func(e *Engine) {
		e.table = tcp.NewTable(opts...)
	}
}

// WithMTU sizes the read buffer. Defaults to 1500.
func WithMTU(mtu int) Option {
	return func(e *Engine) {
		e.mtu = mtu
	}
}

// New creates an Engine with an empty connection table.
func New(logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		table:  tcp.NewTable(),
		logger: logger.With(slog.String("component", "stack")),
		mtu:    1500,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table exposes the connection table for inspection.
func (e *Engine) Table() *tcp.Table {
	return e.table
}

// ParseIncoming decodes one framed packet from buf.
func (e *Engine) ParseIncoming(buf []byte) (*tun.Frame, error) {
	f, err := tun.ParseFrame(buf)
	if err != nil {
		return nil, fmt.Errorf("parsing frame: %w", err)
	}
	return f, nil
}

// Handle steps the connection table with the received frame and returns
// the synthesized response frame, or nil when the transition is silent.
// Only IPv4-framed TCP segments reach the state machine; everything else
// is ErrNoHandler.
//
// The connection key is the received packet's orientation; the response
// swaps the roles on the wire without re-keying the entry.
func (e *Engine) Handle(f *tun.Frame) (*tun.Frame, error) {
	h, ok := f.Packet.(*ip.IPv4)
	if !ok {
		return nil, fmt.Errorf("%s: %w", f.Packet.ShortString(), ErrNoHandler)
	}

	seg, ok := h.Payload.(*transport.TCPSegment)
	if !ok {
		return nil, fmt.Errorf("%s: %w", h.ShortString(), ErrNoHandler)
	}

	quad := tcp.Quad{
		SrcIP:   h.Src,
		DstIP:   h.Dst,
		SrcPort: seg.SrcPort,
		DstPort: seg.DstPort,
	}

	before, _ := e.table.Get(quad) // zero value reads as LISTEN

	resp, err := e.table.Handle(quad, seg)
	if err != nil {
		return nil, fmt.Errorf("stepping connection: %w", err)
	}
	if e.metrics != nil {
		e.metrics.SetConnections(e.table.Len())
		if after, ok := e.table.Get(quad); ok && after.State != before.State {
			e.metrics.RecordStateTransition(before.State.String(), after.State.String())
		}
	}
	if resp == nil {
		return nil, nil
	}

	respIP, err := h.Respond(resp)
	if err != nil {
		return nil, fmt.Errorf("building IP response: %w", err)
	}

	return tun.Respond(respIP), nil
}

// SerializeOutgoing encodes a response frame for the device.
func (e *Engine) SerializeOutgoing(f *tun.Frame) ([]byte, error) {
	out, err := f.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serializing frame: %w", err)
	}
	return out, nil
}

// Run reads framed packets from dev until ctx is cancelled. Each packet is
// parsed, stepped through the connection table, and answered when the
// state machine synthesizes a response. Failed packets produce one
// diagnostic log line and are dropped without ending the loop. The loop
// ends with nil when ctx is cancelled, and with the read error when a
// device read fails while ctx is still live.
//
// The caller unblocks a pending Read by closing the device when ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context, dev Device) error {
	buf := make([]byte, e.mtu+framingOverhead)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := dev.Read(buf)
		if err != nil {
			// A read error during shutdown is the device closing.
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading device: %w", err)
		}

		e.processPacket(dev, buf[:n])
	}
}

// processPacket runs one packet through parse, handle, and respond.
// Errors are logged and the packet dropped; the loop proceeds.
func (e *Engine) processPacket(dev Device, pkt []byte) {
	f, err := e.ParseIncoming(pkt)
	if err != nil {
		e.drop(stackmetrics.DropReasonParse, err)
		return
	}
	if e.metrics != nil {
		e.metrics.IncPacketsReceived(f.EtherType.String())
	}
	e.logger.Debug("packet received", slog.String("packet", f.ShortString()))

	resp, err := e.Handle(f)
	if err != nil {
		if errors.Is(err, ErrNoHandler) {
			e.logger.Debug("packet ignored", slog.String("packet", f.ShortString()))
			return
		}
		e.drop(stackmetrics.DropReasonStateMachine, err)
		return
	}
	if resp == nil {
		return
	}

	out, err := e.SerializeOutgoing(resp)
	if err != nil {
		e.drop(stackmetrics.DropReasonSerialize, err)
		return
	}

	if _, err := dev.Write(out); err != nil {
		e.logger.Warn("writing response", slog.String("error", err.Error()))
		return
	}
	if e.metrics != nil {
		e.metrics.IncResponsesSent("tcp")
	}
	e.logger.Debug("response sent", slog.String("packet", resp.ShortString()))
}

// drop logs one diagnostic line for a dropped packet and counts it.
func (e *Engine) drop(reason string, err error) {
	if e.metrics != nil {
		e.metrics.IncPacketsDropped(reason)
	}
	e.logger.Warn("packet dropped",
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
}
