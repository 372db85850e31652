package ipv4

import (
	"encoding/binary"
	"errors"

	"github.com/hitsz-netlab/gonet/internal/rfc791"
)

// ErrShortFrame is returned by NewFrame for a buffer too small to hold a
// minimal IPv4 header.
var ErrShortFrame = errors.New("ipv4: frame shorter than header")

// ErrBadVersion describes a header whose version field isn't 4. Nothing in
// this package returns it: Valid reports such a header as false and
// Engine.In drops it silently.
var ErrBadVersion = errors.New("ipv4: unsupported version")

// Frame encapsulates the raw bytes of an IPv4 datagram (header plus
// whatever of the payload is also present in the backing slice).
type Frame struct {
	buf []byte
}

// NewFrame wraps b as a Frame. It returns ErrShortFrame if b is too short
// to contain a minimal (no-options) header; it does not validate IHL
// against len(b) beyond that, since a caller may be building up a header
// field by field before the payload is appended.
func NewFrame(b []byte) (Frame, error) {
	if len(b) < HeaderLen {
		return Frame{}, ErrShortFrame
	}
	return Frame{buf: b}, nil
}

// VersionAndIHL returns the combined version (high nibble) and Internet
// Header Length in 32-bit words (low nibble).
func (f Frame) VersionAndIHL() uint8 { return f.buf[0] }

// SetVersionAndIHL sets the combined version/IHL byte.
func (f Frame) SetVersionAndIHL(v uint8) { f.buf[0] = v }

// IHL returns the header length in bytes, per the low nibble of byte 0.
func (f Frame) IHL() int { return int(f.buf[0]&0x0f) * 4 }

// ToS returns the Type of Service / DSCP+ECN byte. This stack never
// inspects it beyond passing it through.
func (f Frame) ToS() uint8 { return f.buf[1] }

// SetToS sets the Type of Service byte.
func (f Frame) SetToS(v uint8) { f.buf[1] = v }

// TotalLength returns the total datagram length (header + payload), in bytes.
func (f Frame) TotalLength() uint16 { return binary.BigEndian.Uint16(f.buf[2:4]) }

// SetTotalLength sets the total datagram length field.
func (f Frame) SetTotalLength(v uint16) { binary.BigEndian.PutUint16(f.buf[2:4], v) }

// ID returns the datagram identification field, shared by every fragment
// of the same original datagram.
func (f Frame) ID() uint16 { return binary.BigEndian.Uint16(f.buf[4:6]) }

// SetID sets the datagram identification field.
func (f Frame) SetID(v uint16) { binary.BigEndian.PutUint16(f.buf[4:6], v) }

// flagsAndOffset returns the raw combined flags+fragment-offset field.
func (f Frame) flagsAndOffset() uint16 { return binary.BigEndian.Uint16(f.buf[6:8]) }

func (f Frame) setFlagsAndOffset(v uint16) { binary.BigEndian.PutUint16(f.buf[6:8], v) }

// DF reports whether the Don't Fragment flag is set.
func (f Frame) DF() bool { return f.flagsAndOffset()&FlagDF != 0 }

// MF reports whether the More Fragments flag is set.
func (f Frame) MF() bool { return f.flagsAndOffset()&FlagMF != 0 }

// FragmentOffset returns the fragment's offset from the start of the
// original datagram, in bytes (the wire field is in 8-byte units).
func (f Frame) FragmentOffset() int { return int(f.flagsAndOffset()&offsetMask) * 8 }

// SetFlagsAndFragmentOffset sets the DF/MF flags and fragment offset
// (given in bytes; it is rounded down to the nearest 8-byte unit, which
// callers constructing fragments must already guarantee is exact).
func (f Frame) SetFlagsAndFragmentOffset(df, mf bool, offsetBytes int) {
	v := uint16(offsetBytes/8) & offsetMask
	if df {
		v |= FlagDF
	}
	if mf {
		v |= FlagMF
	}
	f.setFlagsAndOffset(v)
}

// TTL returns the time-to-live field.
func (f Frame) TTL() uint8 { return f.buf[8] }

// SetTTL sets the time-to-live field.
func (f Frame) SetTTL(v uint8) { f.buf[8] = v }

// Protocol returns the upper-layer protocol field.
func (f Frame) Protocol() Protocol { return Protocol(f.buf[9]) }

// SetProtocol sets the upper-layer protocol field.
func (f Frame) SetProtocol(p Protocol) { f.buf[9] = uint8(p) }

// CRC returns the header checksum field.
func (f Frame) CRC() uint16 { return binary.BigEndian.Uint16(f.buf[10:12]) }

// SetCRC sets the header checksum field.
func (f Frame) SetCRC(v uint16) { binary.BigEndian.PutUint16(f.buf[10:12], v) }

// SourceAddr returns the source IPv4 address field.
func (f Frame) SourceAddr() *[4]byte { return (*[4]byte)(f.buf[12:16]) }

// DestinationAddr returns the destination IPv4 address field.
func (f Frame) DestinationAddr() *[4]byte { return (*[4]byte)(f.buf[16:20]) }

// Header returns the full header, including any options (IHL*4 bytes).
// Options themselves are never parsed; this stack only needs the span to
// compute the checksum and to copy the header verbatim into an ICMP
// unreachable reply.
func (f Frame) Header() []byte { return f.buf[:f.IHL()] }

// Payload returns the bytes following the header, as delimited by IHL.
func (f Frame) Payload() []byte { return f.buf[f.IHL():] }

// CalculateHeaderCRC computes the header checksum per RFC 791 §3.1,
// treating the current contents of the CRC field as zero.
func (f Frame) CalculateHeaderCRC() uint16 {
	saved := f.CRC()
	f.SetCRC(0)
	sum := rfc791.Sum(f.Header())
	f.SetCRC(saved)
	return sum
}

// VerifyHeaderCRC reports whether the stored header checksum matches a
// freshly computed one, the receive-side validation step.
func (f Frame) VerifyHeaderCRC() bool {
	ihl := f.IHL()
	if ihl < HeaderLen || ihl > len(f.buf) {
		return false
	}
	return rfc791.Verify(f.buf[:ihl], 10)
}

// RawData returns the frame's underlying bytes (header plus whatever
// payload is present in the backing slice).
func (f Frame) RawData() []byte { return f.buf }

// Valid reports whether the frame's fixed fields describe a well-formed
// IPv4 header this stack can process: version 4, IHL within bounds and
// not exceeding the buffer, and a correct header checksum. It does not
// check TotalLength against the buffer; callers validate that separately
// since buffers may carry only the header during construction.
func (f Frame) Valid() bool {
	if f.VersionAndIHL()>>4 != Version {
		return false
	}
	ihl := f.IHL()
	if ihl < HeaderLen || ihl > len(f.buf) {
		return false
	}
	return rfc791.Verify(f.buf[:ihl], 10)
}
