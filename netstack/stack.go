// Package netstack wires the Ethernet, ARP, IPv4, ICMP and UDP layers
// together around a single NIC driver into a runnable protocol engine,
// per §4.6 and §6 of the specification.
package netstack

import (
	"errors"
	"sync/atomic"

	"github.com/hitsz-netlab/gonet/arp"
	"github.com/hitsz-netlab/gonet/buf"
	"github.com/hitsz-netlab/gonet/dispatch"
	"github.com/hitsz-netlab/gonet/driver"
	"github.com/hitsz-netlab/gonet/ethernet"
	"github.com/hitsz-netlab/gonet/icmp"
	"github.com/hitsz-netlab/gonet/ipv4"
	"github.com/hitsz-netlab/gonet/udp"
)

// maxFrameSize bounds a single Ethernet frame this stack will parse:
// header, MTU payload and a little slack for a driver that doesn't strip
// a trailing FCS.
const maxFrameSize = ethernet.HeaderLen + ethernet.MaxPayload + 18

// ErrReentrant is returned by Poll if it is called while another call
// into the same Stack is already in progress. The protocol engine is not
// safe for concurrent use (§5); this is a cheap self-check, not a mutex,
// since a mutex would imply concurrent use is supported.
var ErrReentrant = errors.New("netstack: concurrent access to Stack")

// Metrics bundles each layer's optional instrumentation interface. A
// plain struct rather than a single embedded interface, because
// ipv4.Metrics and icmp.Metrics both declare a method named Dropped with
// different signatures -- no one type could implement all four layers'
// interfaces at once. [github.com/hitsz-netlab/gonet/netmetrics.Collector]
// provides one adapter value per field.
type Metrics struct {
	ARP  arp.Metrics
	IPv4 ipv4.Metrics
	ICMP icmp.Metrics
	UDP  udp.Metrics
}

// Stack is the protocol engine: the composition root gluing a Driver to
// Ethernet framing, ARP resolution, IPv4, ICMP and UDP, driven by a
// single cooperative Poll call per the reference design's poll loop.
type Stack struct {
	drv    driver.Driver
	ourIP  [4]byte
	ourMAC [6]byte

	rxbuf []byte

	ethDispatch *dispatch.Registry[ethernet.Type, [6]byte]
	arpTable    *arp.Table
	ipEngine    *ipv4.Engine
	icmpResp    *icmp.Responder
	udpTable    *udp.Table

	busy int32
}

// New returns a Stack for the local address pair (ourIP, ourMAC),
// reading and writing through drv. A nil *Metrics, or nil fields within
// one, fall back to each layer's no-op default.
func New(ourIP [4]byte, ourMAC [6]byte, drv driver.Driver, m *Metrics) *Stack {
	s := &Stack{
		drv:         drv,
		ourIP:       ourIP,
		ourMAC:      ourMAC,
		rxbuf:       make([]byte, maxFrameSize),
		ethDispatch: dispatch.New[ethernet.Type, [6]byte](),
	}
	if m == nil {
		m = &Metrics{}
	}

	s.arpTable = arp.New(ourIP, ourMAC, (*arpSink)(s), m.ARP)
	s.ipEngine = ipv4.New(ourIP, s.arpTable, nil, m.IPv4) // unreach wired in below, after icmpResp exists.
	s.icmpResp = icmp.New(s.ipEngine, m.ICMP)
	s.ipEngine.SetUnreachable(s.icmpResp)
	s.udpTable = udp.New(ourIP, s.ipEngine, s.icmpResp, m.UDP)

	s.ipEngine.RegisterHandler(ipv4.ProtoICMP, s.icmpResp.HandleIPv4)
	s.ipEngine.RegisterHandler(ipv4.ProtoUDP, s.udpTable.HandleIPv4)

	s.ethDispatch.Register(ethernet.TypeARP, func(payload []byte, src [6]byte) error {
		return s.arpTable.In(payload, src)
	})
	s.ethDispatch.Register(ethernet.TypeIPv4, func(payload []byte, _ [6]byte) error {
		return s.ipEngine.In(payload)
	})

	return s
}

// arpSink adapts *Stack to arp.Sink, rendering ARP's own requests/replies
// and fast-path payload straight onto the driver.
type arpSink Stack

func (s *arpSink) Transmit(payload *buf.Buf, dst [6]byte, etherType ethernet.Type) error {
	ethernet.Emit(payload, s.ourMAC, dst, etherType)
	return s.send(payload)
}

func (s *arpSink) TransmitRaw(frame *buf.Buf) error {
	return s.send(frame)
}

func (s *arpSink) send(frame *buf.Buf) error {
	_, err := s.drv.Send(frame.Bytes())
	return err
}

// Init opens the driver and issues the startup self-ARP announce
// (net_init).
func (s *Stack) Init() error {
	if err := s.drv.Open(); err != nil {
		return err
	}
	return s.arpTable.Announce()
}

// Close tears down the driver.
func (s *Stack) Close() error {
	return s.drv.Close()
}

// Poll services at most one inbound frame (net_poll): a non-blocking
// driver read, Ethernet parse, and ethertype dispatch to ARP or IPv4. A
// driver with no frame ready (Recv returning 0, nil) is not an error.
func (s *Stack) Poll() error {
	if !atomic.CompareAndSwapInt32(&s.busy, 0, 1) {
		return ErrReentrant
	}
	defer atomic.StoreInt32(&s.busy, 0)

	n, err := s.drv.Recv(s.rxbuf)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	payload, etherType, src, err := ethernet.Parse(s.rxbuf[:n])
	if err != nil {
		return nil // malformed frame, silent drop per §7.
	}
	_, err = s.ethDispatch.Dispatch(etherType, payload, src)
	return err
}

// UDPOpen binds h to port, the equivalent of udp_open. It returns a
// non-nil error on a duplicate port in place of the reference
// implementation's -1 return.
func (s *Stack) UDPOpen(port uint16, h udp.Handler) error {
	return s.udpTable.Open(port, h)
}

// UDPClose unbinds whatever handler is open on port, the equivalent of
// udp_close.
func (s *Stack) UDPClose(port uint16) {
	s.udpTable.Close(port)
}

// UDPSend transmits payload from srcPort to dstPort on dstIP, the
// equivalent of udp_send.
func (s *Stack) UDPSend(srcPort, dstPort uint16, dstIP [4]byte, payload []byte) error {
	return s.udpTable.Send(srcPort, dstPort, dstIP, payload)
}

// PingTest starts a new ICMP ping session against target, the equivalent
// of icmp_ping_test. The caller drives it by calling Poll(time.Now())
// on the returned session, alongside Stack.Poll, until it reports Done.
func (s *Stack) PingTest(id uint16, target [4]byte, count int, onEvent func(string)) *icmp.PingSession {
	return icmp.NewPingSession(id, target, count, s.icmpResp, onEvent)
}
