// Package rfc791 implements the 16-bit one's-complement Internet checksum
// shared by the IPv4, ICMPv4 and UDP layers (RFC 791 §3.1, reused verbatim
// by RFC 792 and RFC 768).
package rfc791

import "encoding/binary"

// Sum computes the checksum over b, the moral equivalent of the reference
// stack's checksum16(): it does not assume the checksum field has been
// zeroed first, so callers verifying an inbound header must zero that
// field themselves (and restore it afterwards) before calling Sum.
func Sum(b []byte) uint16 {
	var sum uint32
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	if n&1 == 1 {
		sum += uint32(b[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// Verify zeroes the 16-bit field at offset off in b, computes the checksum
// over the whole of b, restores the original field, and reports whether it
// matched the freshly computed value. This is the "temporarily zero the
// field, compute, compare, restore" dance used identically by the IPv4,
// ICMP and UDP receive paths.
func Verify(b []byte, off int) bool {
	want := binary.BigEndian.Uint16(b[off : off+2])
	binary.BigEndian.PutUint16(b[off:off+2], 0)
	got := Sum(b)
	binary.BigEndian.PutUint16(b[off:off+2], want)
	return got == want
}
