// Package dispatch implements the small generic protocol-handler registry
// used at two points in the stack: Ethernet demuxing by EtherType to ARP
// or IPv4, and IPv4 demuxing by protocol number to ICMP or UDP (§4.6 of
// the specification). Both are the same shape — a key type selecting a
// handler, and an opaque peer address passed through to it — so one
// generic type serves both instead of two hand-written maps.
package dispatch

// Handler processes a payload demultiplexed from a peer identified by
// addr (a MAC address, an IPv4 address, or whatever the registry's A
// parameter is instantiated with).
type Handler[A any] func(payload []byte, peerAddr A) error

// Registry maps a protocol tag of type K to a Handler. The zero value is
// not usable; construct one with [New].
type Registry[K comparable, A any] struct {
	handlers map[K]Handler[A]
}

// New returns an empty Registry.
func New[K comparable, A any]() *Registry[K, A] {
	return &Registry[K, A]{handlers: make(map[K]Handler[A])}
}

// Register binds key to h, replacing any handler previously bound to it.
func (r *Registry[K, A]) Register(key K, h Handler[A]) {
	r.handlers[key] = h
}

// Unregister removes any handler bound to key.
func (r *Registry[K, A]) Unregister(key K) {
	delete(r.handlers, key)
}

// Lookup returns the handler bound to key, if any, without invoking it.
func (r *Registry[K, A]) Lookup(key K) (Handler[A], bool) {
	h, ok := r.handlers[key]
	return h, ok
}

// Dispatch looks up key and, if bound, invokes its handler with payload
// and peerAddr. found reports whether a handler was bound; callers that
// must react to an unbound key (e.g. to emit an unreachable) check found
// rather than treating a nil error as "delivered".
func (r *Registry[K, A]) Dispatch(key K, payload []byte, peerAddr A) (found bool, err error) {
	h, ok := r.handlers[key]
	if !ok {
		return false, nil
	}
	return true, h(payload, peerAddr)
}
