package icmp

import (
	"testing"

	"github.com/hitsz-netlab/gonet/buf"
	"github.com/hitsz-netlab/gonet/ipv4"
)

type fakeSender struct {
	sent []*buf.Buf
	dst  [][4]byte
}

func (f *fakeSender) SendICMP(payload *buf.Buf, dstIP [4]byte) error {
	f.sent = append(f.sent, payload)
	f.dst = append(f.dst, dstIP)
	return nil
}

func buildEcho(t *testing.T, typ Type, id, seq uint16, payload []byte) []byte {
	t.Helper()
	b := make([]byte, HeaderLen+len(payload))
	f, err := NewFrame(b)
	if err != nil {
		t.Fatal(err)
	}
	f.SetType(typ)
	f.SetCode(0)
	f.SetEchoID(id)
	f.SetEchoSeq(seq)
	copy(f.EchoPayload(), payload)
	f.SetCRC(f.CalculateCRC())
	return b
}

func TestEchoRequestProducesReply(t *testing.T) {
	sender := &fakeSender{}
	r := New(sender, nil)

	src := [4]byte{10, 0, 0, 2}
	req := buildEcho(t, TypeEchoRequest, 0x1234, 1, []byte("ABCDEFGH"))
	if err := r.HandleIPv4(req, ipv4.Peer{SrcIP: src}); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("frames sent = %d, want 1", len(sender.sent))
	}
	if sender.dst[0] != src {
		t.Fatalf("reply destination = %v, want %v", sender.dst[0], src)
	}
	frm, err := NewFrame(sender.sent[0].Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if frm.Type() != TypeEchoReply || frm.EchoID() != 0x1234 || frm.EchoSeq() != 1 {
		t.Fatalf("reply type=%v id=%x seq=%d", frm.Type(), frm.EchoID(), frm.EchoSeq())
	}
	if string(frm.EchoPayload()) != "ABCDEFGH" {
		t.Fatalf("reply payload = %q, want %q", frm.EchoPayload(), "ABCDEFGH")
	}
	if !frm.VerifyCRC() {
		t.Fatal("reply checksum should verify")
	}
}

func TestEchoReplyIsStashedForPingSession(t *testing.T) {
	sender := &fakeSender{}
	r := New(sender, nil)
	reply := buildEcho(t, TypeEchoReply, 7, 2, []byte("payload!"))
	if err := r.HandleIPv4(reply, ipv4.Peer{SrcIP: [4]byte{10, 0, 0, 2}}); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("an echo reply must not itself produce outbound traffic")
	}
	data, ok := r.TakeReply(7)
	if !ok {
		t.Fatal("TakeReply(7) should find the stashed reply")
	}
	if _, ok := r.TakeReply(7); ok {
		t.Fatal("TakeReply should consume the stash entry")
	}
	frm, _ := NewFrame(data)
	if frm.EchoSeq() != 2 {
		t.Fatalf("stashed seq = %d, want 2", frm.EchoSeq())
	}
}

func TestProtocolUnreachableCarriesOriginalHeader(t *testing.T) {
	sender := &fakeSender{}
	r := New(sender, nil)
	origHeader := make([]byte, 20)
	for i := range origHeader {
		origHeader[i] = byte(i)
	}
	first8 := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := r.ProtocolUnreachable(origHeader, first8, [4]byte{10, 0, 0, 2}); err != nil {
		t.Fatal(err)
	}
	frm, err := NewFrame(sender.sent[0].Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if frm.Type() != TypeDestUnreachable || frm.Code() != CodeProtocolUnreachable {
		t.Fatalf("type=%v code=%v", frm.Type(), frm.Code())
	}
	body := frm.EchoPayload()
	if len(body) != 28 {
		t.Fatalf("len(body) = %d, want 28", len(body))
	}
	if string(body[:20]) != string(origHeader) || string(body[20:]) != string(first8) {
		t.Fatal("unreachable body should be original header + first 8 payload bytes")
	}
	if !frm.VerifyCRC() {
		t.Fatal("unreachable checksum should verify")
	}
}

func TestInvalidChecksumDropped(t *testing.T) {
	sender := &fakeSender{}
	r := New(sender, nil)
	req := buildEcho(t, TypeEchoRequest, 1, 1, []byte("x"))
	req[5] ^= 0xff // corrupt after checksum stamped.
	if err := r.HandleIPv4(req, ipv4.Peer{SrcIP: [4]byte{10, 0, 0, 2}}); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("a corrupted echo request must not produce a reply")
	}
}
