package udp

import (
	"encoding/binary"

	"github.com/hitsz-netlab/gonet/buf"
	"github.com/hitsz-netlab/gonet/internal/rfc791"
)

// pseudoHeaderLen is the size of the IPv4 pseudo-header prepended ahead of
// the UDP datagram for checksum purposes: source address, destination
// address, a zero byte, the protocol number and the UDP length, per §4.5.
const pseudoHeaderLen = 12

// checksum computes the UDP checksum of udpBytes (the UDP header and
// payload) as seen from srcIP to dstIP, per RFC 768. It uses the same
// header/padding splice idiom as the rest of this stack in place of the
// reference implementation's raw-memory preserve/restore dance: the
// pseudo-header is spliced on ahead of the real header via AddHeader, an
// odd-length datagram is padded a byte via AddPadding, the sum is taken
// over the whole spliced window, and both splices are then removed again.
// Nothing downstream re-reads the vacated headroom or tail, so only the
// window/length bookkeeping needs undoing, which RemoveHeader and
// RemovePadding already do.
func checksum(udpBytes []byte, srcIP, dstIP [4]byte) uint16 {
	b := buf.New(udpBytes, pseudoHeaderLen)
	b.AddHeader(pseudoHeaderLen)
	hdr := b.Bytes()
	copy(hdr[0:4], srcIP[:])
	copy(hdr[4:8], dstIP[:])
	hdr[8] = 0
	hdr[9] = 17 // IPv4 protocol number for UDP.
	binary.BigEndian.PutUint16(hdr[10:12], uint16(len(udpBytes)))

	padded := false
	if len(hdr)&1 == 1 {
		b.AddPadding(1)
		padded = true
	}

	sum := rfc791.Sum(b.Bytes())

	if padded {
		b.RemovePadding(1)
	}
	b.RemoveHeader(pseudoHeaderLen)
	return sum
}

// verifyChecksum recomputes the checksum of frm (with its CRC field
// temporarily zeroed) and reports whether it matches the stored value. A
// stored value of 0 means the sender opted out of UDP checksumming, which
// this stack always accepts.
func verifyChecksum(frm Frame, srcIP, dstIP [4]byte) bool {
	want := frm.CRC()
	if want == 0 {
		return true
	}
	frm.SetCRC(0)
	got := checksum(frm.RawData(), srcIP, dstIP)
	frm.SetCRC(want)
	return got == want
}
