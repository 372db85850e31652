// Package buf implements the packet buffer used throughout the protocol
// engine: a growable byte slice with cheap header/padding splicing so that
// layers can prepend and strip their own headers without copying the
// payload underneath them.
package buf

import "errors"

// ErrNegativeLength is returned by operations that would make Len negative.
var ErrNegativeLength = errors.New("buf: operation would make length negative")

// Buf is a packet buffer. The zero value is an empty, zero-capacity Buf;
// use [NewSize] to preallocate a backing array of a given capacity.
//
// The visible window is data[head : head+length]. AddHeader/RemoveHeader
// move head without touching the payload bytes; AddPadding/RemovePadding
// extend/shrink the tail the same way. Callers must never read or write
// outside [0, Len()).
type Buf struct {
	data   []byte
	head   int
	length int
}

// New returns a Buf whose visible window is a copy of payload, backed by a
// buffer large enough to later prepend headers without reallocating.
// headroom reserves that many bytes in front of the payload for AddHeader.
func New(payload []byte, headroom int) *Buf {
	b := &Buf{
		data:   make([]byte, headroom+len(payload)),
		head:   headroom,
		length: len(payload),
	}
	copy(b.data[headroom:], payload)
	return b
}

// NewSize returns an empty Buf whose backing array can hold up to size
// bytes of payload plus headroom bytes of header splicing room.
func NewSize(size, headroom int) *Buf {
	return &Buf{
		data: make([]byte, headroom+size),
		head: headroom,
	}
}

// Reset clears the buffer and sets its payload to a copy of payload, with
// headroom bytes in front, without reallocating when capacity allows it, mirroring the
// scratch-buffer reuse pattern of rxbuf/txbuf.
func (b *Buf) Reset(payload []byte, headroom int) {
	need := headroom + len(payload)
	if cap(b.data) < need {
		b.data = make([]byte, need)
	} else {
		b.data = b.data[:need]
	}
	b.head = headroom
	b.length = len(payload)
	copy(b.data[headroom:], payload)
}

// Len returns the number of payload bytes currently visible.
func (b *Buf) Len() int { return b.length }

// Bytes returns the visible payload window. The slice aliases the Buf's
// backing array; callers that need to retain it past the next mutating
// call on b must copy it (see [Buf.Clone]).
func (b *Buf) Bytes() []byte {
	return b.data[b.head : b.head+b.length]
}

// Clone returns a deep copy of b, safe to retain independently. Used
// anywhere a frame must outlive the scratch buffer it arrived in, e.g.
// the ARP pending-send queue and the IP reassembly queue.
func (b *Buf) Clone() *Buf {
	cp := &Buf{
		data:   make([]byte, len(b.data)),
		head:   b.head,
		length: b.length,
	}
	copy(cp.data, b.data)
	return cp
}

// AddHeader grows the visible window by n bytes at the front, so the
// caller can fill in a header. If there isn't enough headroom already
// reserved, the backing array is reallocated; callers that prepend
// headers of known, bounded size still size scratch buffers' headroom up
// front to avoid that reallocation on the common path.
func (b *Buf) AddHeader(n int) {
	if n < 0 {
		panic("buf: negative AddHeader")
	}
	if b.head < n {
		b.growHeadroom(n)
	}
	b.head -= n
	b.length += n
}

// RemoveHeader shrinks the visible window by n bytes at the front,
// exposing what follows. It is the exact inverse of AddHeader: for any n,
// AddHeader(n) followed by RemoveHeader(n) restores the original window.
func (b *Buf) RemoveHeader(n int) error {
	if n > b.length {
		return ErrNegativeLength
	}
	b.head += n
	b.length -= n
	return nil
}

// AddPadding grows the visible window by n bytes at the tail. The new
// bytes are not zeroed; callers that pad for MTU reasons overwrite them.
func (b *Buf) AddPadding(n int) {
	if n < 0 {
		panic("buf: negative AddPadding")
	}
	need := b.head + b.length + n
	if need > cap(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data[:len(b.data)])
		b.data = grown
	} else if need > len(b.data) {
		b.data = b.data[:need]
	}
	b.length += n
}

// RemovePadding shrinks the visible window by n bytes at the tail.
func (b *Buf) RemovePadding(n int) error {
	if n > b.length {
		return ErrNegativeLength
	}
	b.length -= n
	return nil
}

// growHeadroom reallocates the backing array so that at least n bytes of
// headroom are available in front of the current payload.
func (b *Buf) growHeadroom(n int) {
	payload := b.Bytes()
	newData := make([]byte, n+len(payload))
	copy(newData[n:], payload)
	b.data = newData
	b.head = n
}
