package icmp

import (
	"time"

	"github.com/hitsz-netlab/gonet/buf"
	"github.com/hitsz-netlab/gonet/ethernet"
	"github.com/hitsz-netlab/gonet/ipv4"
	"github.com/hitsz-netlab/gonet/timedmap"
)

// ReplyStashTimeout is how long a received echo reply waits in the stash
// for a [PingSession] to collect it.
const ReplyStashTimeout = 4 * time.Second

// headroom is reserved in every outbound ICMP buffer: 14 bytes of Ethernet
// header plus a minimal 20-byte IPv4 header. ipv4.Engine.Out copies each
// fragment into a buffer of its own, so the layers below do not use it.
const headroom = ethernet.HeaderLen + 20

// IPSender is the dependency a [Responder] uses to hand a rendered ICMP
// message to the IPv4 layer for delivery. *ipv4.Engine satisfies it via
// its SendICMP convenience method, without icmp importing ipv4 (which
// would otherwise cycle back through ipv4.Unreachable).
type IPSender interface {
	SendICMP(payload *buf.Buf, dstIP [4]byte) error
}

// Metrics receives optional counters for ICMP activity.
type Metrics interface {
	EchoReplied()
	EchoReplyReceived()
	UnreachableSent()
	Dropped()
}

// NoopMetrics discards every event.
type NoopMetrics struct{}

func (NoopMetrics) EchoReplied()       {}
func (NoopMetrics) EchoReplyReceived() {}
func (NoopMetrics) UnreachableSent()   {}
func (NoopMetrics) Dropped()           {}

// Responder is the ICMP layer: echo reply, destination-unreachable
// emission, and the reply stash a [PingSession] polls, per §4.4.
type Responder struct {
	sender IPSender

	// replyStash holds received echo replies keyed by their (host-endian)
	// echo id, for PingSession to collect; see the specification's open
	// question about byte-swap inconsistency in the reference id key —
	// this stack only ever reads EchoID() through Frame, so the key is
	// always host-endian by construction.
	replyStash *timedmap.Map[uint16, []byte]

	metrics Metrics
}

// New returns a Responder sending through sender, instrumented with m.
func New(sender IPSender, m Metrics) *Responder {
	if m == nil {
		m = NoopMetrics{}
	}
	return &Responder{
		sender:     sender,
		replyStash: timedmap.New[uint16, []byte](ReplyStashTimeout, nil),
		metrics:    m,
	}
}

// HandleIPv4 processes a received ICMP message, the receive path for
// icmp_in. It matches ipv4.Engine's registered-handler signature so it
// can be bound directly to ipv4.ProtoICMP. Echo requests are answered in
// place; echo replies are stashed for a [PingSession]; anything else is
// silently ignored.
func (r *Responder) HandleIPv4(payload []byte, peer ipv4.Peer) error {
	if len(payload) < HeaderLen {
		r.metrics.Dropped()
		return nil
	}
	frm, err := NewFrame(payload)
	if err != nil || !frm.VerifyCRC() {
		r.metrics.Dropped()
		return nil
	}
	switch frm.Type() {
	case TypeEchoRequest:
		return r.reply(frm, peer.SrcIP)
	case TypeEchoReply:
		r.stash(frm)
	}
	return nil
}

// reply emits an echo reply identical to frm except for its type/code and
// recomputed checksum, addressed back to dstIP.
func (r *Responder) reply(req Frame, dstIP [4]byte) error {
	raw := append([]byte(nil), req.RawData()...)
	pkt := buf.New(raw, headroom)
	frm, _ := NewFrame(pkt.Bytes())
	frm.SetType(TypeEchoReply)
	frm.SetCode(0)
	frm.SetCRC(0)
	frm.SetCRC(frm.CalculateCRC())
	r.metrics.EchoReplied()
	return r.sender.SendICMP(pkt, dstIP)
}

// stash records a received echo reply for later collection by a
// PingSession polling TakeReply with the same echo id.
func (r *Responder) stash(frm Frame) {
	r.replyStash.Set(frm.EchoID(), append([]byte(nil), frm.RawData()...))
	r.metrics.EchoReplyReceived()
}

// TakeReply returns and consumes the stashed echo reply for id, if any
// arrived (and hasn't expired) since the last call.
func (r *Responder) TakeReply(id uint16) ([]byte, bool) {
	data, ok := r.replyStash.Get(id)
	if ok {
		r.replyStash.Delete(id)
	}
	return data, ok
}

// ProtocolUnreachable emits a destination-unreachable/protocol-unreachable
// message. It satisfies ipv4.Unreachable.
func (r *Responder) ProtocolUnreachable(origHeader, firstPayloadBytes []byte, dstIP [4]byte) error {
	return r.unreachable(CodeProtocolUnreachable, origHeader, firstPayloadBytes, dstIP)
}

// PortUnreachable emits a destination-unreachable/port-unreachable
// message. It satisfies udp.Unreachable.
func (r *Responder) PortUnreachable(origHeader, firstPayloadBytes []byte, dstIP [4]byte) error {
	return r.unreachable(CodePortUnreachable, origHeader, firstPayloadBytes, dstIP)
}

func (r *Responder) unreachable(code Code, origHeader, firstPayloadBytes []byte, dstIP [4]byte) error {
	body := make([]byte, HeaderLen+len(origHeader)+len(firstPayloadBytes))
	pkt := buf.New(body, headroom)
	frm, _ := NewFrame(pkt.Bytes())
	frm.SetType(TypeDestUnreachable)
	frm.SetCode(code)
	frm.SetEchoID(0)
	frm.SetEchoSeq(0)
	n := copy(frm.EchoPayload(), origHeader)
	copy(frm.EchoPayload()[n:], firstPayloadBytes)
	frm.SetCRC(0)
	frm.SetCRC(frm.CalculateCRC())
	r.metrics.UnreachableSent()
	return r.sender.SendICMP(pkt, dstIP)
}
