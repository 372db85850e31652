// Package ipv4 implements the IPv4 layer: header parsing and emission,
// receive-side validation and fragment reassembly, transmit-side
// fragmentation, and protocol demultiplexing, per RFC 791 and §4.3 of the
// specification. IP options are recognized only insofar as IHL may exceed
// 5; their contents are never parsed (see the specification's REDESIGN
// FLAGS and Non-goals).
package ipv4

// HeaderLen is the size of a minimal (no-options) IPv4 header.
const HeaderLen = 20

// Version is the only IP version this stack speaks.
const Version = 4

// DefaultTTL is the time-to-live stamped on every outbound datagram
// (IP_DEFAULT_TTL in the specification).
const DefaultTTL = 64

// Protocol identifies the upper-layer protocol carried by a datagram.
type Protocol uint8

// Protocols recognized by this stack; any other value on receive produces
// an ICMP protocol-unreachable (§4.3 step 5).
const (
	ProtoICMP Protocol = 1
	ProtoTCP  Protocol = 6
	ProtoUDP  Protocol = 17
)

// Flags occupies the top 3 bits of the 16-bit flags+fragment-offset field.
const (
	FlagDF uint16 = 0x4000
	FlagMF uint16 = 0x2000

	offsetMask = 0x1fff // 13-bit fragment offset, in 8-byte units.
)

// MTU is the Ethernet payload size a single IPv4 packet (header+data) must
// fit within before fragmentation is required.
const MTU = 1500

// FragmentSize is the maximum payload carried by one non-final fragment:
// MTU minus a minimal IP header.
const FragmentSize = MTU - HeaderLen
