package timedmap

import (
	"testing"
	"time"
)

func TestSetGetDelete(t *testing.T) {
	m := New[string, int](0, nil)
	m.Set("a", 1)
	v, ok := m.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v, want 1, true", v, ok)
	}
	m.Delete("a")
	if _, ok := m.Get("a"); ok {
		t.Fatal("entry survived Delete")
	}
}

func TestExpiry(t *testing.T) {
	fakeNow := time.Unix(0, 0)
	m := New[string, int](time.Second, nil)
	m.now = func() time.Time { return fakeNow }

	m.Set("a", 1)
	fakeNow = fakeNow.Add(500 * time.Millisecond)
	if _, ok := m.Get("a"); !ok {
		t.Fatal("entry expired too early")
	}
	fakeNow = fakeNow.Add(600 * time.Millisecond)
	if _, ok := m.Get("a"); ok {
		t.Fatal("entry did not expire after timeout elapsed")
	}
}

func TestCopyFuncAppliedOnSet(t *testing.T) {
	type box struct{ n int }
	copies := 0
	m := New[string, *box](0, func(b *box) *box {
		copies++
		cp := *b
		return &cp
	})
	original := &box{n: 1}
	m.Set("k", original)
	original.n = 2 // mutate caller's copy after insert.

	got, _ := m.Get("k")
	if got.n != 1 {
		t.Fatalf("stored value aliases caller's buffer: got.n=%d, want 1", got.n)
	}
	if copies != 1 {
		t.Fatalf("copyFn called %d times, want 1", copies)
	}
}

func TestForEachInsertionOrder(t *testing.T) {
	m := New[int, string](0, nil)
	m.Set(3, "c")
	m.Set(1, "a")
	m.Set(2, "b")

	var order []int
	m.ForEach(func(k int, v string, _ time.Time) {
		order = append(order, k)
	})
	want := []int{3, 1, 2}
	if len(order) != len(want) {
		t.Fatalf("order=%v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order=%v, want %v", order, want)
		}
	}
}

func TestEvictionOnMutatingOperation(t *testing.T) {
	fakeNow := time.Unix(0, 0)
	m := New[string, int](time.Second, nil)
	m.now = func() time.Time { return fakeNow }
	m.Set("stale", 1)
	fakeNow = fakeNow.Add(2 * time.Second)
	m.Set("fresh", 2) // mutating op must evict "stale" before servicing this Set.
	if m.Len() != 1 {
		t.Fatalf("Len()=%d, want 1 after stale entry eviction", m.Len())
	}
	if _, ok := m.Get("stale"); ok {
		t.Fatal("stale entry survived a later mutating operation")
	}
}
