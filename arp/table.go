package arp

import (
	"time"

	"github.com/hitsz-netlab/gonet/buf"
	"github.com/hitsz-netlab/gonet/ethernet"
	"github.com/hitsz-netlab/gonet/timedmap"
)

// DefaultTimeout is the suggested lifetime of a resolved ARP table entry
// (ARP_TIMEOUT_SEC in the distilled spec).
const DefaultTimeout = 60 * time.Second

// DefaultMinInterval bounds both the pending-send entry's lifetime and,
// implicitly, the ARP request retransmit rate: when a pending entry
// expires unresolved, the next send re-issues the request (ARP_MIN_INTERVAL).
const DefaultMinInterval = 1 * time.Second

// Sink is the dependency a [Table] uses to actually put frames on the
// wire. Transmit renders an Ethernet header around payload addressed to
// dst and hands the result to the driver; it is used for ARP's own
// requests/replies and for payload on the fast "already resolved" path.
// TransmitRaw hands an already-fully-rendered Ethernet frame straight to
// the driver, used to flush a pending-send entry once its destination MAC
// has been patched in.
type Sink interface {
	Transmit(payload *buf.Buf, dst [6]byte, etherType ethernet.Type) error
	TransmitRaw(frame *buf.Buf) error
}

// Table is the ARP resolver: an IPv4→MAC resolution map plus a
// pending-send queue of at most one outstanding frame per unresolved
// destination, per §4.2 of the specification.
type Table struct {
	ourIP  [4]byte
	ourMAC [6]byte
	sink   Sink

	resolved *timedmap.Map[[4]byte, [6]byte]
	pending  *timedmap.Map[[4]byte, *buf.Buf] // fully-rendered frames, dst MAC zeroed.

	metrics Metrics
}

// Metrics receives optional counters for ARP activity. New substitutes
// [NoopMetrics] when given a nil Metrics.
type Metrics interface {
	RequestSent()
	Resolved()
	TableSize(n int)
}

// NoopMetrics discards every event.
type NoopMetrics struct{}

func (NoopMetrics) RequestSent()  {}
func (NoopMetrics) Resolved()     {}
func (NoopMetrics) TableSize(int) {}

// New returns a Table for the given local IPv4/MAC address pair, sending
// through sink, instrumented with m.
func New(ourIP [4]byte, ourMAC [6]byte, sink Sink, m Metrics) *Table {
	if m == nil {
		m = NoopMetrics{}
	}
	return &Table{
		ourIP:    ourIP,
		ourMAC:   ourMAC,
		sink:     sink,
		resolved: timedmap.New[[4]byte, [6]byte](DefaultTimeout, nil),
		pending: timedmap.New[[4]byte, *buf.Buf](DefaultMinInterval, func(b *buf.Buf) *buf.Buf {
			return b.Clone()
		}),
		metrics: m,
	}
}

// Announce broadcasts a self-ARP request for ourIP, issued once by
// Stack.Init at startup.
func (t *Table) Announce() error {
	return t.request(t.ourIP)
}

// Out resolves dstIP and transmits payload, the receive path for the
// IPv4 layer's arp_out. If dstIP is already resolved, payload is sent
// immediately. Otherwise, if no request is already in flight for dstIP,
// payload is queued and a request is broadcast; if one is already in
// flight, payload is silently dropped (at most one pending frame per
// destination, per §4.2 / §7).
func (t *Table) Out(payload *buf.Buf, dstIP [4]byte) error {
	if mac, ok := t.resolved.Get(dstIP); ok {
		return t.sink.Transmit(payload, mac, ethernet.TypeIPv4)
	}
	if _, ok := t.pending.Get(dstIP); ok {
		return nil // request already in flight; drop the second frame.
	}
	rendered := payload.Clone()
	ethernet.Emit(rendered, t.ourMAC, [6]byte{}, ethernet.TypeIPv4) // dst patched in on flush.
	t.pending.Set(dstIP, rendered)
	return t.request(dstIP)
}

// In processes a received ARP packet from a peer with hardware address
// src, the receive path for arp_in. Malformed packets are dropped.
// Every valid packet refreshes the resolution table for its sender; if a
// frame was pending for that sender it is flushed (covering ARP replies
// to our own requests), otherwise a request addressed to us is answered.
func (t *Table) In(data []byte, src [6]byte) error {
	frm, err := NewFrame(data)
	if err != nil || !frm.Valid() {
		return nil // silent drop, malformed ARP packet.
	}
	senderIP := *frm.SenderProto()
	t.resolved.Set(senderIP, src)
	t.metrics.Resolved()
	t.metrics.TableSize(t.resolved.Len())

	if rendered, ok := t.pending.Get(senderIP); ok {
		copy(rendered.Bytes()[0:6], src[:])
		t.pending.Delete(senderIP)
		return t.sink.TransmitRaw(rendered)
	}

	if frm.Operation() == OpRequest && *frm.TargetProto() == t.ourIP {
		return t.reply(senderIP, src)
	}
	return nil
}

func (t *Table) request(targetIP [4]byte) error {
	pkt := buf.New(make([]byte, HeaderLen), ethernet.HeaderLen)
	frm := initFixedFields(pkt.Bytes(), OpRequest)
	*frm.SenderHW() = t.ourMAC
	*frm.SenderProto() = t.ourIP
	*frm.TargetHW() = [6]byte{}
	*frm.TargetProto() = targetIP
	t.metrics.RequestSent()
	return t.sink.Transmit(pkt, ethernet.BroadcastAddr(), ethernet.TypeARP)
}

func (t *Table) reply(targetIP [4]byte, targetMAC [6]byte) error {
	pkt := buf.New(make([]byte, HeaderLen), ethernet.HeaderLen)
	frm := initFixedFields(pkt.Bytes(), OpReply)
	*frm.SenderHW() = t.ourMAC
	*frm.SenderProto() = t.ourIP
	*frm.TargetHW() = targetMAC
	*frm.TargetProto() = targetIP
	return t.sink.Transmit(pkt, targetMAC, ethernet.TypeARP)
}

// Resolved reports whether ip currently has a live resolution, and its MAC
// if so. Exposed for tests and for diagnostics.
func (t *Table) Resolved(ip [4]byte) (mac [6]byte, ok bool) {
	return t.resolved.Get(ip)
}
