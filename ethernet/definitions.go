// Package ethernet implements Ethernet II frame parsing and emission: the
// frame demultiplexer's wire format and MTU padding rules, per IEEE 802.3.
// Link-layer concerns below the frame boundary (preamble, FCS) belong to
// the driver and are out of scope here.
package ethernet

import "strconv"

// HeaderLen is the size in bytes of an Ethernet II header (no VLAN tag):
// 6 bytes destination MAC, 6 bytes source MAC, 2 bytes EtherType.
const HeaderLen = 14

// MinPayload and MaxPayload bound the Ethernet payload size. Frames
// shorter than MinPayload are padded on transmit; MaxPayload is the MTU.
const (
	MinPayload = 46
	MaxPayload = 1500
)

// Type is the 2-byte EtherType field selecting the next-layer protocol.
type Type uint16

// EtherTypes used by this stack.
const (
	TypeIPv4 Type = 0x0800
	TypeARP  Type = 0x0806
)

func (t Type) String() string {
	switch t {
	case TypeIPv4:
		return "IPv4"
	case TypeARP:
		return "ARP"
	default:
		return "0x" + strconv.FormatUint(uint64(t), 16)
	}
}

// BroadcastAddr returns the all-ones Ethernet broadcast address.
func BroadcastAddr() [6]byte {
	return [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

// AppendAddr appends the colon-separated hex text form of a MAC address.
func AppendAddr(dst []byte, addr [6]byte) []byte {
	for i, b := range addr {
		if i != 0 {
			dst = append(dst, ':')
		}
		const hex = "0123456789abcdef"
		dst = append(dst, hex[b>>4], hex[b&0xf])
	}
	return dst
}

// Addr renders a MAC address in colon-separated hex form.
func Addr(addr [6]byte) string {
	return string(AppendAddr(make([]byte, 0, 17), addr))
}
