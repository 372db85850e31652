package ipv4

import (
	"github.com/hitsz-netlab/gonet/buf"
	"github.com/hitsz-netlab/gonet/dispatch"
	"github.com/hitsz-netlab/gonet/ethernet"
	"github.com/hitsz-netlab/gonet/internal/rfc791"
)

// ARPSink is the dependency an [Engine] uses to resolve and transmit an
// outbound datagram, the receive-side contract of arp_out. *arp.Table
// satisfies it without ipv4 needing to import the arp package.
type ARPSink interface {
	Out(payload *buf.Buf, dstIP [4]byte) error
}

// Unreachable is the dependency an [Engine] uses to emit an ICMP
// destination-unreachable for an upper-layer protocol this stack doesn't
// speak (§4.3 step 5). It is satisfied by the icmp package's responder
// type without ipv4 importing icmp, avoiding the cycle that would
// otherwise arise from icmp needing to call back into ipv4 to send.
type Unreachable interface {
	ProtocolUnreachable(origHeader, firstPayloadBytes []byte, dstIP [4]byte) error
}

// Peer is the second argument a protocol handler registered with
// RegisterHandler receives: the datagram's source address plus the
// header it arrived under, for handlers (UDP's port-unreachable path)
// that must echo the original IP header back in an ICMP error. Header
// aliases Engine-owned storage and is only valid for the duration of the
// call that delivered it.
type Peer struct {
	SrcIP  [4]byte
	Header []byte
}

// Metrics receives optional counters for IPv4 activity.
type Metrics interface {
	Delivered()
	Dropped(reason string)
	Fragmented()
	Reassembled()
}

// NoopMetrics discards every event.
type NoopMetrics struct{}

func (NoopMetrics) Delivered()     {}
func (NoopMetrics) Dropped(string) {}
func (NoopMetrics) Fragmented()    {}
func (NoopMetrics) Reassembled()   {}

// Engine is the IPv4 layer: input validation, fragmentation/reassembly,
// checksum handling, and protocol demultiplexing, per §4.3.
type Engine struct {
	ourIP   [4]byte
	arp     ARPSink
	unreach Unreachable

	reassembler *Reassembler
	registry    *dispatch.Registry[Protocol, Peer]

	nextID  uint16
	metrics Metrics
}

// New returns an Engine for the local IPv4 address ourIP, resolving and
// transmitting through arp, and reporting unknown-protocol drops through
// unreach.
func New(ourIP [4]byte, arp ARPSink, unreach Unreachable, m Metrics) *Engine {
	if m == nil {
		m = NoopMetrics{}
	}
	return &Engine{
		ourIP:       ourIP,
		arp:         arp,
		unreach:     unreach,
		reassembler: NewReassembler(),
		registry:    dispatch.New[Protocol, Peer](),
		metrics:     m,
	}
}

// SetUnreachable wires the dependency used to emit ICMP
// protocol-unreachable messages. It exists as a setter, separate from
// New, because the reference construction order is circular: building
// the ICMP responder itself needs an IPSender satisfied by this Engine,
// so the caller constructs the Engine with a nil Unreachable first, then
// the responder, then calls SetUnreachable to close the loop (see
// netstack.New).
func (e *Engine) SetUnreachable(u Unreachable) {
	e.unreach = u
}

// RegisterHandler binds proto to h, populated at init by ICMP and UDP
// (the "IPv4 (ICMP, UDP)" half of §4.6's Net dispatcher).
func (e *Engine) RegisterHandler(proto Protocol, h dispatch.Handler[Peer]) {
	e.registry.Register(proto, h)
}

// In processes a received IPv4 datagram, the receive path for ip_in. Every
// drop is silent except an unknown upper-layer protocol, which produces an
// ICMP protocol-unreachable.
func (e *Engine) In(data []byte) error {
	if len(data) < HeaderLen {
		e.metrics.Dropped("short")
		return nil
	}
	frm, err := NewFrame(data)
	if err != nil {
		e.metrics.Dropped("short")
		return nil
	}
	if frm.VersionAndIHL()>>4 != Version {
		e.metrics.Dropped("version")
		return nil
	}
	ihl := frm.IHL()
	if ihl < HeaderLen {
		e.metrics.Dropped("ihl")
		return nil
	}
	total := int(frm.TotalLength())
	if total > len(data) {
		e.metrics.Dropped("total_length")
		return nil
	}
	data = data[:total]
	frm, err = NewFrame(data)
	if err != nil || ihl > len(data) {
		e.metrics.Dropped("ihl")
		return nil
	}

	if !rfc791.Verify(data[:ihl], 10) {
		e.metrics.Dropped("checksum")
		return nil
	}
	if *frm.DestinationAddr() != e.ourIP {
		e.metrics.Dropped("not_for_us")
		return nil
	}

	srcIP := *frm.SourceAddr()
	protocol := frm.Protocol()
	if protocol != ProtoICMP && protocol != ProtoTCP && protocol != ProtoUDP {
		e.metrics.Dropped("protocol_unreachable")
		firstBytes := frm.Payload()
		if len(firstBytes) > 8 {
			firstBytes = firstBytes[:8]
		}
		return e.unreach.ProtocolUnreachable(data[:ihl], firstBytes, srcIP)
	}

	header := data[:ihl]
	payload := data[ihl:]
	mf := frm.MF()
	fragOffset := frm.FragmentOffset()
	if mf || fragOffset > 0 {
		reassembled, done := e.reassembler.Insert(frm.ID(), srcIP, protocol, fragOffset, mf, payload)
		if !done {
			return nil
		}
		e.metrics.Reassembled()
		payload = reassembled
	}

	found, err := e.registry.Dispatch(protocol, payload, Peer{SrcIP: srcIP, Header: header})
	if err != nil {
		return err
	}
	if found {
		e.metrics.Delivered()
	}
	return nil
}

// Out transmits payload to dstIP carrying protocol, the transmit path for
// ip_out. Each fragment's bytes are copied into a buffer of its own before
// the IPv4 header is prepended, so payload's headroom is not used. Large
// payloads are split into FragmentSize-byte fragments sharing one datagram
// id, emitted in increasing-offset order (§5 Ordering).
func (e *Engine) Out(payload *buf.Buf, dstIP [4]byte, protocol Protocol) error {
	id := e.nextID
	e.nextID++

	data := payload.Bytes()
	offset := 0
	for len(data) > FragmentSize {
		if err := e.sendFragment(data[:FragmentSize], dstIP, protocol, id, offset, true); err != nil {
			return err
		}
		data = data[FragmentSize:]
		offset += FragmentSize
	}
	if offset > 0 {
		e.metrics.Fragmented()
	}
	return e.sendFragment(data, dstIP, protocol, id, offset, false)
}

// SendICMP transmits payload to dstIP as an ICMP datagram. It lets
// *Engine satisfy icmp.IPSender without icmp needing to import ipv4's
// Protocol constants.
func (e *Engine) SendICMP(payload *buf.Buf, dstIP [4]byte) error {
	return e.Out(payload, dstIP, ProtoICMP)
}

// SendUDP transmits payload to dstIP as a UDP datagram. It lets *Engine
// satisfy udp.IPSender without udp needing to import ipv4's Protocol
// constants.
func (e *Engine) SendUDP(payload *buf.Buf, dstIP [4]byte) error {
	return e.Out(payload, dstIP, ProtoUDP)
}

func (e *Engine) sendFragment(payload []byte, dstIP [4]byte, protocol Protocol, id uint16, offset int, mf bool) error {
	pkt := buf.New(payload, ethernet.HeaderLen)
	pkt.AddHeader(HeaderLen)
	frm, _ := NewFrame(pkt.Bytes())
	frm.SetVersionAndIHL(Version<<4 | 5)
	frm.SetToS(0)
	frm.SetTotalLength(uint16(pkt.Len()))
	frm.SetID(id)
	frm.SetFlagsAndFragmentOffset(false, mf, offset)
	frm.SetTTL(DefaultTTL)
	frm.SetProtocol(protocol)
	*frm.SourceAddr() = e.ourIP
	*frm.DestinationAddr() = dstIP
	frm.SetCRC(0)
	frm.SetCRC(frm.CalculateHeaderCRC())
	return e.arp.Out(pkt, dstIP)
}
