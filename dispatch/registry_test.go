package dispatch

import "testing"

func TestDispatchInvokesBoundHandler(t *testing.T) {
	r := New[uint8, [4]byte]()
	var gotPayload []byte
	var gotAddr [4]byte
	r.Register(17, func(payload []byte, addr [4]byte) error {
		gotPayload = payload
		gotAddr = addr
		return nil
	})

	found, err := r.Dispatch(17, []byte("hi"), [4]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("found = false, want true for a registered key")
	}
	if string(gotPayload) != "hi" || gotAddr != [4]byte{1, 2, 3, 4} {
		t.Fatalf("handler got (%q, %v)", gotPayload, gotAddr)
	}
}

func TestDispatchUnboundKeyReportsNotFound(t *testing.T) {
	r := New[uint8, [4]byte]()
	found, err := r.Dispatch(6, nil, [4]byte{})
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("found = true for an unregistered key")
	}
}

func TestUnregisterRemovesHandler(t *testing.T) {
	r := New[uint8, [4]byte]()
	r.Register(1, func([]byte, [4]byte) error { return nil })
	r.Unregister(1)
	if _, ok := r.Lookup(1); ok {
		t.Fatal("handler still bound after Unregister")
	}
}
