package icmp

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/hitsz-netlab/gonet/buf"
)

// pingInterval is how long a PingSession waits after a received reply
// before issuing the next request; pingTimeout is how long it waits with
// no reply before declaring the round timed out and moving on anyway.
const (
	pingInterval = 1 * time.Second
	pingTimeout  = 5 * time.Second
)

type pingState int

const (
	pingIdle pingState = iota
	pingWaiting
	pingTimedOut
	pingDone
)

// PingStats accumulates round-trip statistics across a ping session.
type PingStats struct {
	Sent, Received  int
	Min, Max, Total time.Duration
}

// PingSession is an explicit state machine over icmp_ping_test's
// {idle, waiting, timed-out, done} states, keyed by a caller-assigned
// correlation id rather than the reference implementation's OS process
// id — REDESIGN FLAG: this lets more than one session run concurrently
// against the same Responder.
type PingSession struct {
	id        uint16 // correlation id; doubles as the ICMP echo identifier.
	target    [4]byte
	count     int
	responder *Responder
	onEvent   func(string)

	state        pingState
	seq          uint16
	lastSend     time.Time
	repliedRound bool
	stats        PingStats
}

// NewPingSession returns a session that will send up to count echo
// requests to target through responder, correlated by id (unique across
// concurrently running sessions sharing the same Responder). onEvent, if
// non-nil, receives human-readable progress lines (each "Ping ..." /
// "N bytes from ..." / summary line the reference CLI prints).
func NewPingSession(id uint16, target [4]byte, count int, responder *Responder, onEvent func(string)) *PingSession {
	return &PingSession{
		id:        id,
		target:    target,
		count:     count,
		responder: responder,
		onEvent:   onEvent,
	}
}

// Done reports whether the session has sent its last request and printed
// its summary.
func (p *PingSession) Done() bool { return p.state == pingDone }

// Stats returns the session's current accumulated statistics.
func (p *PingSession) Stats() PingStats { return p.stats }

// Poll advances the session by one step; the caller invokes it once per
// stack poll tick, passing the current time. The final round (once Sent
// has reached count) is still polled for its reply, or its timeout,
// before the session prints its summary and reports Done.
func (p *PingSession) Poll(now time.Time) error {
	if p.state == pingDone {
		return nil
	}
	if p.state == pingIdle {
		return p.send(now)
	}

	if !p.repliedRound {
		if data, ok := p.responder.TakeReply(p.id); ok {
			p.repliedRound = true
			p.recordReply(data, now)
		}
	}

	if p.stats.Sent >= p.count {
		if p.repliedRound || now.Sub(p.lastSend) >= pingTimeout {
			p.summarize()
			p.state = pingDone
		}
		return nil
	}

	switch {
	case p.repliedRound && now.Sub(p.lastSend) >= pingInterval:
		p.repliedRound = false
		return p.send(now)
	case now.Sub(p.lastSend) >= pingTimeout:
		p.state = pingTimedOut
		p.emit("No response!")
		return p.send(now)
	}
	return nil
}

func (p *PingSession) send(now time.Time) error {
	body := make([]byte, HeaderLen+8)
	pkt := buf.New(body, headroom)
	frm, _ := NewFrame(pkt.Bytes())
	frm.SetType(TypeEchoRequest)
	frm.SetCode(0)
	frm.SetEchoID(p.id)
	frm.SetEchoSeq(p.seq)
	binary.BigEndian.PutUint64(frm.EchoPayload(), uint64(now.UnixNano()))
	frm.SetCRC(0)
	frm.SetCRC(frm.CalculateCRC())

	p.emit(fmt.Sprintf("Ping %s: %d bytes of data.", addrString(p.target), len(body)))
	p.seq++
	p.stats.Sent++
	p.lastSend = now
	p.state = pingWaiting
	return p.responder.sender.SendICMP(pkt, p.target)
}

func (p *PingSession) recordReply(data []byte, now time.Time) {
	frm, err := NewFrame(data)
	if err != nil {
		return
	}
	payload := frm.EchoPayload()
	if len(payload) < 8 {
		return
	}
	sentNano := int64(binary.BigEndian.Uint64(payload[:8]))
	elapsed := now.Sub(time.Unix(0, sentNano))

	p.stats.Received++
	p.stats.Total += elapsed
	if p.stats.Received == 1 || elapsed < p.stats.Min {
		p.stats.Min = elapsed
	}
	if elapsed > p.stats.Max {
		p.stats.Max = elapsed
	}
	p.emit(fmt.Sprintf("%d bytes from %s: icmp_seq=%d time=%v", len(data), addrString(p.target), frm.EchoSeq(), elapsed))
}

func (p *PingSession) summarize() {
	if p.stats.Sent == 0 {
		return
	}
	lossPct := float64(p.stats.Sent-p.stats.Received) / float64(p.stats.Sent) * 100
	p.emit(fmt.Sprintf("%d packets transmitted, %d received, %.2f%% packet loss", p.stats.Sent, p.stats.Received, lossPct))
	if p.stats.Received > 0 {
		avg := p.stats.Total / time.Duration(p.stats.Received)
		p.emit(fmt.Sprintf("min=%v max=%v avg=%v", p.stats.Min, p.stats.Max, avg))
	}
}

func (p *PingSession) emit(s string) {
	if p.onEvent != nil {
		p.onEvent(s)
	}
}

func addrString(ip [4]byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}
