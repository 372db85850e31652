package udp

import (
	"testing"

	"github.com/hitsz-netlab/gonet/buf"
	"github.com/hitsz-netlab/gonet/ipv4"
)

type fakeSender struct {
	sent []*buf.Buf
	dst  [][4]byte
}

func (f *fakeSender) SendUDP(payload *buf.Buf, dstIP [4]byte) error {
	f.sent = append(f.sent, payload)
	f.dst = append(f.dst, dstIP)
	return nil
}

type fakeUnreachable struct {
	calls         int
	header, first []byte
	dstIP         [4]byte
}

func (f *fakeUnreachable) PortUnreachable(header, first []byte, dstIP [4]byte) error {
	f.calls++
	f.header = header
	f.first = first
	f.dstIP = dstIP
	return nil
}

var ourIP = [4]byte{10, 0, 0, 1}
var peerIP = [4]byte{10, 0, 0, 2}

func buildDatagram(t *testing.T, srcPort, dstPort uint16, payload []byte) []byte {
	t.Helper()
	b := make([]byte, HeaderLen+len(payload))
	f, err := NewFrame(b)
	if err != nil {
		t.Fatal(err)
	}
	f.SetSrcPort(srcPort)
	f.SetDstPort(dstPort)
	f.SetLength(uint16(len(b)))
	copy(f.Payload(), payload)
	f.SetCRC(0)
	f.SetCRC(checksum(b, peerIP, ourIP))
	return b
}

func TestOpenRejectsDuplicatePort(t *testing.T) {
	tbl := New(ourIP, &fakeSender{}, &fakeUnreachable{}, nil)
	noop := func([]byte, [4]byte, uint16) error { return nil }
	if err := tbl.Open(53, noop); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Open(53, noop); err != ErrPortInUse {
		t.Fatalf("err = %v, want ErrPortInUse", err)
	}
	tbl.Close(53)
	if err := tbl.Open(53, noop); err != nil {
		t.Fatal("port should be reusable after Close")
	}
}

func TestSendFromUnopenedPort(t *testing.T) {
	sender := &fakeSender{}
	tbl := New(ourIP, sender, &fakeUnreachable{}, nil)
	// Send is fire-and-forget: srcPort need not have an open handler.
	if err := tbl.Send(1234, 53, peerIP, []byte("hi")); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 1 || sender.dst[0] != peerIP {
		t.Fatalf("sent = %d to %v", len(sender.sent), sender.dst)
	}
	frm, err := NewFrame(sender.sent[0].Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if frm.SrcPort() != 1234 || frm.DstPort() != 53 {
		t.Fatalf("ports = %d,%d", frm.SrcPort(), frm.DstPort())
	}
	if !verifyChecksum(frm, ourIP, peerIP) {
		t.Fatal("sent datagram checksum should verify")
	}
}

func TestHandleIPv4DeliversToOpenPort(t *testing.T) {
	tbl := New(ourIP, &fakeSender{}, &fakeUnreachable{}, nil)
	var gotData []byte
	var gotSrc [4]byte
	var gotPort uint16
	tbl.Open(9999, func(data []byte, srcIP [4]byte, srcPort uint16) error {
		gotData = append([]byte(nil), data...)
		gotSrc = srcIP
		gotPort = srcPort
		return nil
	})

	pkt := buildDatagram(t, 4321, 9999, []byte("payload"))
	if err := tbl.HandleIPv4(pkt, ipv4.Peer{SrcIP: peerIP}); err != nil {
		t.Fatal(err)
	}
	if string(gotData) != "payload" {
		t.Fatalf("delivered payload = %q", gotData)
	}
	if gotSrc != peerIP || gotPort != 4321 {
		t.Fatalf("src = %v:%d, want %v:4321", gotSrc, gotPort, peerIP)
	}
}

func TestHandleIPv4ProducesPortUnreachable(t *testing.T) {
	unreach := &fakeUnreachable{}
	tbl := New(ourIP, &fakeSender{}, unreach, nil)

	origHeader := make([]byte, 20)
	pkt := buildDatagram(t, 4321, 9999, []byte("payload"))
	if err := tbl.HandleIPv4(pkt, ipv4.Peer{SrcIP: peerIP, Header: origHeader}); err != nil {
		t.Fatal(err)
	}
	if unreach.calls != 1 {
		t.Fatalf("PortUnreachable calls = %d, want 1", unreach.calls)
	}
	if len(unreach.first) != HeaderLen {
		t.Fatalf("len(first) = %d, want %d", len(unreach.first), HeaderLen)
	}
	if unreach.dstIP != peerIP {
		t.Fatalf("unreachable target = %v, want %v", unreach.dstIP, peerIP)
	}
}

func TestHandleIPv4DropsBadChecksum(t *testing.T) {
	tbl := New(ourIP, &fakeSender{}, &fakeUnreachable{}, nil)
	tbl.Open(9999, func([]byte, [4]byte, uint16) error {
		t.Fatal("handler should not run on checksum mismatch")
		return nil
	})
	pkt := buildDatagram(t, 4321, 9999, []byte("payload"))
	pkt[HeaderLen] ^= 0xff
	if err := tbl.HandleIPv4(pkt, ipv4.Peer{SrcIP: peerIP}); err != nil {
		t.Fatal(err)
	}
}
