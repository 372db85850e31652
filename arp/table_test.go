package arp

import (
	"testing"

	"github.com/hitsz-netlab/gonet/buf"
	"github.com/hitsz-netlab/gonet/ethernet"
)

type fakeSink struct {
	frames []*buf.Buf
}

func (f *fakeSink) Transmit(payload *buf.Buf, dst [6]byte, etherType ethernet.Type) error {
	ethernet.Emit(payload, ourMAC, dst, etherType)
	f.frames = append(f.frames, payload)
	return nil
}

func (f *fakeSink) TransmitRaw(frame *buf.Buf) error {
	f.frames = append(f.frames, frame)
	return nil
}

var (
	ourIP  = [4]byte{10, 0, 0, 1}
	ourMAC = [6]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	peerIP = [4]byte{10, 0, 0, 2}
	peerMAC = [6]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x02}
)

func TestAnnounceBroadcastsSelfRequest(t *testing.T) {
	sink := &fakeSink{}
	tbl := New(ourIP, ourMAC, sink, nil)
	if err := tbl.Announce(); err != nil {
		t.Fatal(err)
	}
	if len(sink.frames) != 1 {
		t.Fatalf("frames sent = %d, want 1", len(sink.frames))
	}
	frame := sink.frames[0]
	eframe, err := ethernet.NewFrame(frame.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if *eframe.Destination() != ethernet.BroadcastAddr() {
		t.Fatalf("destination = %v, want broadcast", *eframe.Destination())
	}
	arpFrame, err := NewFrame(eframe.Payload())
	if err != nil {
		t.Fatal(err)
	}
	if *arpFrame.SenderProto() != ourIP || *arpFrame.TargetProto() != ourIP {
		t.Fatalf("announce should query our own IP: sender=%v target=%v", *arpFrame.SenderProto(), *arpFrame.TargetProto())
	}
}

func TestOutQueuesAndResolves(t *testing.T) {
	sink := &fakeSink{}
	tbl := New(ourIP, ourMAC, sink, nil)

	payload := buf.New([]byte("udp datagram"), ethernet.HeaderLen)
	if err := tbl.Out(payload, peerIP); err != nil {
		t.Fatal(err)
	}
	if len(sink.frames) != 1 {
		t.Fatalf("frames after first Out = %d, want 1 (ARP request only)", len(sink.frames))
	}

	// A second send to the same unresolved destination must be dropped silently.
	if err := tbl.Out(buf.New([]byte("another"), ethernet.HeaderLen), peerIP); err != nil {
		t.Fatal(err)
	}
	if len(sink.frames) != 1 {
		t.Fatalf("frames after second Out to unresolved dest = %d, want still 1", len(sink.frames))
	}

	// Inject the ARP reply; the original frame must now flush.
	reply := buf.New(make([]byte, HeaderLen), 0)
	frm := initFixedFields(reply.Bytes(), OpReply)
	*frm.SenderHW() = peerMAC
	*frm.SenderProto() = peerIP
	*frm.TargetHW() = ourMAC
	*frm.TargetProto() = ourIP
	if err := tbl.In(reply.Bytes(), peerMAC); err != nil {
		t.Fatal(err)
	}
	if len(sink.frames) != 2 {
		t.Fatalf("frames after ARP reply = %d, want 2", len(sink.frames))
	}
	flushed, err := ethernet.NewFrame(sink.frames[1].Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if *flushed.Destination() != peerMAC {
		t.Fatalf("flushed frame destination = %v, want %v", *flushed.Destination(), peerMAC)
	}

	mac, ok := tbl.Resolved(peerIP)
	if !ok || mac != peerMAC {
		t.Fatalf("Resolved(peerIP) = %v, %v, want %v, true", mac, ok, peerMAC)
	}

	// Now that it's resolved, subsequent Out must not re-request.
	if err := tbl.Out(buf.New([]byte("third"), ethernet.HeaderLen), peerIP); err != nil {
		t.Fatal(err)
	}
	if len(sink.frames) != 3 {
		t.Fatalf("frames after resolved Out = %d, want 3", len(sink.frames))
	}
}

func TestInRespondsToRequestForUs(t *testing.T) {
	sink := &fakeSink{}
	tbl := New(ourIP, ourMAC, sink, nil)

	req := buf.New(make([]byte, HeaderLen), 0)
	frm := initFixedFields(req.Bytes(), OpRequest)
	*frm.SenderHW() = peerMAC
	*frm.SenderProto() = peerIP
	*frm.TargetProto() = ourIP

	if err := tbl.In(req.Bytes(), peerMAC); err != nil {
		t.Fatal(err)
	}
	if len(sink.frames) != 1 {
		t.Fatalf("frames = %d, want 1 (a reply)", len(sink.frames))
	}
	eframe, _ := ethernet.NewFrame(sink.frames[0].Bytes())
	if eframe.EtherType() != ethernet.TypeARP {
		t.Fatalf("EtherType = %v, want ARP", eframe.EtherType())
	}
	replyFrm, err := NewFrame(eframe.Payload())
	if err != nil {
		t.Fatal(err)
	}
	if replyFrm.Operation() != OpReply {
		t.Fatalf("Operation = %v, want OpReply", replyFrm.Operation())
	}
}

func TestInDropsMalformedPacket(t *testing.T) {
	sink := &fakeSink{}
	tbl := New(ourIP, ourMAC, sink, nil)
	if err := tbl.In([]byte{1, 2, 3}, peerMAC); err != nil {
		t.Fatal(err)
	}
	if len(sink.frames) != 0 {
		t.Fatalf("frames = %d, want 0 for malformed packet", len(sink.frames))
	}
}
