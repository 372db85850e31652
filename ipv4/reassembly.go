package ipv4

import (
	"time"

	"github.com/hitsz-netlab/gonet/timedmap"
)

// ReassemblyTimeout bounds how long a partial datagram may sit in the
// reassembly queue before it is reaped, closing the open question left by
// the distilled spec (a zero timeout there would accumulate stale partial
// datagrams forever).
const ReassemblyTimeout = 60 * time.Second

// fragment is one arrived piece of a datagram being reassembled, holding a
// deep copy of its payload so it outlives the scratch buffer it arrived in.
type fragment struct {
	offset int
	mf     bool
	data   []byte
}

// datagramEntry accumulates the fragments of one in-flight datagram,
// along with the protocol needed to deliver it once complete.
type datagramEntry struct {
	protocol  Protocol
	fragments []fragment // kept sorted by ascending offset.
}

// reassemblyKey identifies one in-flight datagram by source address and
// datagram id. The 16-bit id alone is only unique per source, so keying
// on id without the source would interleave fragments from two different
// peers that happen to choose the same id into a single corrupted
// datagram.
type reassemblyKey struct {
	srcIP [4]byte
	id    uint16
}

// Reassembler is the per-(source,ID) fragment queue of §4.3.
type Reassembler struct {
	queue *timedmap.Map[reassemblyKey, *datagramEntry]
}

// NewReassembler returns an empty reassembly queue.
func NewReassembler() *Reassembler {
	return &Reassembler{
		queue: timedmap.New[reassemblyKey, *datagramEntry](ReassemblyTimeout, nil),
	}
}

// Insert adds one arrived fragment to the queue for its datagram id. If the
// fragment completes the datagram, it returns the reassembled payload and
// true, and the queue entry is freed. Otherwise it returns (nil, false) and
// the updated queue is persisted.
//
// data is copied; the caller's buffer is not retained.
func (r *Reassembler) Insert(id uint16, srcIP [4]byte, protocol Protocol, offset int, mf bool, data []byte) ([]byte, bool) {
	cp := make([]byte, len(data))
	copy(cp, data)
	frag := fragment{offset: offset, mf: mf, data: cp}
	key := reassemblyKey{srcIP: srcIP, id: id}

	entry, ok := r.queue.Get(key)
	if !ok {
		entry = &datagramEntry{protocol: protocol}
	}

	insertSorted(entry, frag)

	if complete, payload := assembleIfComplete(entry); complete {
		r.queue.Delete(key)
		return payload, true
	}
	r.queue.Set(key, entry)
	return nil, false
}

// insertSorted inserts frag into entry.fragments keeping ascending offset
// order. A duplicate offset is inserted ahead of the existing entry with
// the same offset (§4.3 tie-break rule); the resulting gap/overlap simply
// fails the subsequent completeness check, matching the distilled spec's
// lack of overlap defense.
func insertSorted(entry *datagramEntry, frag fragment) {
	i := 0
	for i < len(entry.fragments) && entry.fragments[i].offset < frag.offset {
		i++
	}
	entry.fragments = append(entry.fragments, fragment{})
	copy(entry.fragments[i+1:], entry.fragments[i:])
	entry.fragments[i] = frag
}

// assembleIfComplete checks entry for completeness (first offset 0, every
// fragment contiguous with the next, last fragment has MF=0) and, if
// complete, returns the concatenated payload.
func assembleIfComplete(entry *datagramEntry) (bool, []byte) {
	frags := entry.fragments
	if len(frags) == 0 || frags[0].offset != 0 {
		return false, nil
	}
	total := len(frags[0].data)
	for i := 1; i < len(frags); i++ {
		if frags[i].offset != frags[i-1].offset+len(frags[i-1].data) {
			return false, nil
		}
		total += len(frags[i].data)
	}
	if frags[len(frags)-1].mf {
		return false, nil
	}
	out := make([]byte, total)
	for _, f := range frags {
		copy(out[f.offset:], f.data)
	}
	return true, out
}
