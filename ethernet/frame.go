package ethernet

import (
	"encoding/binary"
	"errors"

	"github.com/hitsz-netlab/gonet/buf"
)

// ErrShortFrame is returned by Parse when the buffer is too small to hold
// even an Ethernet header.
var ErrShortFrame = errors.New("ethernet: frame shorter than header")

// Frame encapsulates the raw bytes of an Ethernet II frame and provides
// accessors for its fixed fields, mirroring the accessor-over-[]byte style
// used by the rest of this stack's frame types.
type Frame struct {
	buf []byte
}

// NewFrame wraps buf as a Frame. It returns ErrShortFrame if buf is too
// small to contain a full Ethernet header.
func NewFrame(b []byte) (Frame, error) {
	if len(b) < HeaderLen {
		return Frame{}, ErrShortFrame
	}
	return Frame{buf: b}, nil
}

// RawData returns the frame's underlying bytes.
func (f Frame) RawData() []byte { return f.buf }

// Destination returns the destination hardware address.
func (f Frame) Destination() *[6]byte { return (*[6]byte)(f.buf[0:6]) }

// Source returns the source hardware address.
func (f Frame) Source() *[6]byte { return (*[6]byte)(f.buf[6:12]) }

// EtherType returns the frame's EtherType field.
func (f Frame) EtherType() Type { return Type(binary.BigEndian.Uint16(f.buf[12:14])) }

// SetEtherType sets the frame's EtherType field.
func (f Frame) SetEtherType(t Type) { binary.BigEndian.PutUint16(f.buf[12:14], uint16(t)) }

// Payload returns the bytes following the Ethernet header.
func (f Frame) Payload() []byte { return f.buf[HeaderLen:] }

// Parse validates and strips the Ethernet header from b, the receive-side
// half of ethernet_in. It returns the payload, the EtherType in host order,
// and the sender's hardware address.
func Parse(b []byte) (payload []byte, etherType Type, src [6]byte, err error) {
	frm, err := NewFrame(b)
	if err != nil {
		return nil, 0, src, err
	}
	src = *frm.Source()
	return frm.Payload(), frm.EtherType(), src, nil
}

// Emit prepends an Ethernet header to pkt (padding its payload to
// MinPayload first if necessary) addressed to dst from src, carrying
// etherType, the transmit-side half of ethernet_out. The caller hands the
// resulting frame to a [github.com/hitsz-netlab/gonet/driver.Driver].
func Emit(pkt *buf.Buf, src, dst [6]byte, etherType Type) {
	if n := pkt.Len(); n < MinPayload {
		pkt.AddPadding(MinPayload - n)
		clear(pkt.Bytes()[n:])
	}
	pkt.AddHeader(HeaderLen)
	frm, _ := NewFrame(pkt.Bytes())
	*frm.Destination() = dst
	*frm.Source() = src
	frm.SetEtherType(etherType)
}
