package udp

import (
	"errors"

	"github.com/hitsz-netlab/gonet/buf"
	"github.com/hitsz-netlab/gonet/ethernet"
	"github.com/hitsz-netlab/gonet/ipv4"
)

// ErrPortInUse is returned by Open for a port that already has a bound
// handler, the Go equivalent of udp_open returning -1 on a duplicate port.
var ErrPortInUse = errors.New("udp: port already open")

// headroom is reserved in every outbound buffer: 14 bytes of Ethernet
// header, 20 of IPv4 header, 8 of UDP header. Send's own AddHeader uses
// the UDP part; ipv4.Engine.Out copies each fragment into a buffer of its
// own, so the IPv4 and Ethernet parts are not used.
const headroom = ethernet.HeaderLen + 20 + HeaderLen

// IPSender is the dependency a [Table] uses to hand a UDP datagram to the
// IPv4 layer for delivery. *ipv4.Engine satisfies it via its SendUDP
// convenience method.
type IPSender interface {
	SendUDP(payload *buf.Buf, dstIP [4]byte) error
}

// Unreachable is the dependency a [Table] uses to report a datagram
// addressed to a port with no open handler. *icmp.Responder satisfies it
// via its PortUnreachable method.
type Unreachable interface {
	PortUnreachable(origHeader, firstPayloadBytes []byte, dstIP [4]byte) error
}

// Handler processes a UDP datagram delivered to an open port.
type Handler func(data []byte, srcIP [4]byte, srcPort uint16) error

// Metrics receives optional counters for UDP activity.
type Metrics interface {
	Delivered()
	Dropped(reason string)
}

// NoopMetrics discards every event.
type NoopMetrics struct{}

func (NoopMetrics) Delivered()     {}
func (NoopMetrics) Dropped(string) {}

// Table is the UDP layer: a port registry plus the send/receive paths
// described in §4.5, the moral equivalent of udp_open/udp_close/udp_send.
type Table struct {
	ourIP    [4]byte
	sender   IPSender
	unreach  Unreachable
	handlers map[uint16]Handler
	metrics  Metrics
}

// New returns a Table for the local IPv4 address ourIP, transmitting
// through sender and reporting unbound-port drops through unreach.
func New(ourIP [4]byte, sender IPSender, unreach Unreachable, m Metrics) *Table {
	if m == nil {
		m = NoopMetrics{}
	}
	return &Table{
		ourIP:    ourIP,
		sender:   sender,
		unreach:  unreach,
		handlers: make(map[uint16]Handler),
		metrics:  m,
	}
}

// Open binds h to port. It returns ErrPortInUse if port already has a
// handler bound, the equivalent of udp_open's -1 return for a duplicate
// port.
func (t *Table) Open(port uint16, h Handler) error {
	if _, ok := t.handlers[port]; ok {
		return ErrPortInUse
	}
	t.handlers[port] = h
	return nil
}

// Close unbinds whatever handler is open on port, if any.
func (t *Table) Close(port uint16) {
	delete(t.handlers, port)
}

// Send transmits payload from srcPort to dstPort on dstIP, the equivalent
// of udp_send/udp_out. Like the reference udp_send, it is a standalone
// fire-and-forget stack call: srcPort need not have an open handler, so
// a caller can send from an ephemeral port it never opened for receiving.
func (t *Table) Send(srcPort, dstPort uint16, dstIP [4]byte, payload []byte) error {
	pkt := buf.New(payload, headroom)
	pkt.AddHeader(HeaderLen)
	frm, _ := NewFrame(pkt.Bytes())
	frm.SetSrcPort(srcPort)
	frm.SetDstPort(dstPort)
	frm.SetLength(uint16(pkt.Len()))
	frm.SetCRC(0)
	frm.SetCRC(checksum(pkt.Bytes(), t.ourIP, dstIP))
	return t.sender.SendUDP(pkt, dstIP)
}

// HandleIPv4 processes a received UDP datagram, the receive path for
// udp_in. It matches ipv4.Engine's registered-handler signature so it can
// be bound directly to ipv4.ProtoUDP. A datagram for a port with no open
// handler produces an ICMP port-unreachable, per §4.5 scenario 4; an
// invalid checksum is silently dropped.
func (t *Table) HandleIPv4(data []byte, peer ipv4.Peer) error {
	frm, err := NewFrame(data)
	if err != nil || !frm.Valid() {
		t.metrics.Dropped("short")
		return nil
	}
	if !verifyChecksum(frm, peer.SrcIP, t.ourIP) {
		t.metrics.Dropped("checksum")
		return nil
	}

	port := frm.DstPort()
	h, ok := t.handlers[port]
	if !ok {
		t.metrics.Dropped("port_unreachable")
		firstBytes := frm.RawData()
		if len(firstBytes) > HeaderLen {
			firstBytes = firstBytes[:HeaderLen]
		}
		return t.unreach.PortUnreachable(peer.Header, firstBytes, peer.SrcIP)
	}

	t.metrics.Delivered()
	return h(frm.Payload(), peer.SrcIP, frm.SrcPort())
}
