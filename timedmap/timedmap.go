// Package timedmap implements the insertion-ordered, lazily-expiring
// key→value map shared by the ARP table, the ARP pending-send queue, the
// IPv4 reassembly queue, and the ICMP ping-reply stash. Expiry is checked
// on every mutating operation rather than by a background timer, matching
// the engine's single-threaded, timer-free poll model.
package timedmap

import "time"

// CopyFunc produces an internal copy of a value at insert time, for value
// types (such as *buf.Buf) whose backing storage must not alias the
// caller's own buffer.
type CopyFunc[V any] func(V) V

type entry[V any] struct {
	value     V
	timestamp time.Time
}

// Map is a generic timed map. The zero value is not usable; construct one
// with [New]. K must be comparable; callers working with variable-length
// byte-sequence keys (IPv4 addresses, datagram IDs) convert them to a
// fixed-size array or a string before calling into Map, which keeps this
// type itself free of any encoding assumptions.
type Map[K comparable, V any] struct {
	timeout time.Duration
	copyFn  CopyFunc[V]
	now     func() time.Time
	order   []K
	entries map[K]entry[V]
}

// New returns a Map whose entries expire timeout after their last Set,
// or never expire if timeout is 0. copyFn may be nil, in which case Set
// stores the value as given.
func New[K comparable, V any](timeout time.Duration, copyFn CopyFunc[V]) *Map[K, V] {
	return &Map[K, V]{
		timeout: timeout,
		copyFn:  copyFn,
		now:     time.Now,
		entries: make(map[K]entry[V]),
	}
}

// Set inserts or updates the value for k, refreshing its timestamp. Expired
// entries are evicted first, per the map-wide lazy-eviction rule.
func (m *Map[K, V]) Set(k K, v V) {
	m.evictExpired()
	if m.copyFn != nil {
		v = m.copyFn(v)
	}
	if _, exists := m.entries[k]; !exists {
		m.order = append(m.order, k)
	}
	m.entries[k] = entry[V]{value: v, timestamp: m.now()}
}

// Get returns the value stored for k and whether it was present (and not
// expired). The returned value aliases map-owned storage; callers must not
// retain it across a subsequent mutating call on m.
func (m *Map[K, V]) Get(k K) (v V, ok bool) {
	m.evictExpired()
	e, ok := m.entries[k]
	if !ok {
		return v, false
	}
	return e.value, true
}

// Delete removes k, if present.
func (m *Map[K, V]) Delete(k K) {
	m.evictExpired()
	if _, ok := m.entries[k]; !ok {
		return
	}
	delete(m.entries, k)
	for i, ok := range m.order {
		if ok == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of live (non-expired) entries.
func (m *Map[K, V]) Len() int {
	m.evictExpired()
	return len(m.entries)
}

// ForEach visits every live entry in insertion order, calling visit with
// its key, value and last-update timestamp. visit must not mutate m.
func (m *Map[K, V]) ForEach(visit func(k K, v V, timestamp time.Time)) {
	m.evictExpired()
	for _, k := range m.order {
		e := m.entries[k]
		visit(k, e.value, e.timestamp)
	}
}

// evictExpired drops every entry whose age has reached the map's timeout.
// A zero timeout means entries never expire.
func (m *Map[K, V]) evictExpired() {
	if m.timeout <= 0 {
		return
	}
	now := m.now()
	live := m.order[:0]
	for _, k := range m.order {
		e := m.entries[k]
		if now.Sub(e.timestamp) >= m.timeout {
			delete(m.entries, k)
			continue
		}
		live = append(live, k)
	}
	m.order = live
}
