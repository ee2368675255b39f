package liverepo

import (
	"context"
	"testing"
)

func intEq(a, b int) bool { return a == b }

// ==============================
// Key equality and deduplication
// ==============================

// TestRegistryPredicateDedupes: structurally equal but distinct key values
// resolve to the same shared entry; no duplicate is created.
func TestRegistryPredicateDedupes(t *testing.T) {
	type qry struct {
		Team string
		Page int // deliberately ignored by the predicate
	}
	reg := NewRegistry[qry, int](func(a, b qry) bool { return a.Team == b.Team })

	f := newFeed[int]()
	ka := qry{Team: "red", Page: 1}
	kb := qry{Team: "red", Page: 2}

	wa := reg.Watch(ka, f.src())
	fb := newFeed[int]()
	wb := reg.Watch(kb, fb.src())

	f.emit(10)
	if got := recv(t, wa); got != 10 {
		t.Fatalf("first key: got %d want 10", got)
	}
	if got := recv(t, wb); got != 10 {
		t.Fatalf("equal key: got %d want 10", got)
	}

	if n := reg.Len(); n != 1 {
		t.Fatalf("registry has %d entries, want 1", n)
	}
	if n := fb.calls.Load(); n != 0 {
		t.Fatalf("source for the equal key was subscribed %d times", n)
	}
}

func TestRegistryNoEntryNoSource(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry[int, int](intEq)

	recvClosed(t, reg.Watch(1, nil))
	if _, ok := reg.Latest(ctx, 1, nil); ok {
		t.Fatalf("Latest without entry or source should report no value")
	}
	if _, ok := reg.Peek(1); ok {
		t.Fatalf("Peek without entry should report no value")
	}
	if n := reg.Len(); n != 0 {
		t.Fatalf("lookups without source created %d entries", n)
	}
}

// ==============================
// Isolation between keys
// ==============================

func TestRegistryKeyedIsolation(t *testing.T) {
	reg := NewRegistry[int, int](intEq)

	f1 := newFeed[int]()
	reg.Watch(1, f1.src())
	f1.emit(10)
	eventually(t, func() bool { v, ok := reg.Peek(1); return ok && v == 10 })

	if _, ok := reg.Peek(2); ok {
		t.Fatalf("Peek(2) should report no value before key 2 is initialized")
	}

	f2 := newFeed[int]()
	reg.Watch(2, f2.src())
	f2.emit(99)
	eventually(t, func() bool { v, ok := reg.Peek(2); return ok && v == 99 })

	reg.Write(1, 11)
	if v, ok := reg.Peek(1); !ok || v != 11 {
		t.Fatalf("Peek(1) after Write: got %d ok=%v", v, ok)
	}
	if v, ok := reg.Peek(2); !ok || v != 99 {
		t.Fatalf("Write to key 1 leaked into key 2: got %d ok=%v", v, ok)
	}
}

// ==============================
// Existing entries ignore new sources
// ==============================

// TestRegistryExistingEntryIgnoresSource: Latest on an entry that has no
// value yet suspends for the original stream's first value even when the
// call supplies a fresh source. Surprising, but part of the contract.
func TestRegistryExistingEntryIgnoresSource(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry[int, int](intEq)

	orig := newFeed[int]()
	reg.Watch(1, orig.src()) // entry exists, no value yet

	replacement := newFeed[int]()
	got := make(chan int, 1)
	go func() {
		v, _ := reg.Latest(ctx, 1, replacement.src())
		got <- v
	}()

	orig.emit(10)
	if v := recv(t, got); v != 10 {
		t.Fatalf("Latest resolved to %d, want 10 from the original stream", v)
	}
	if n := replacement.calls.Load(); n != 0 {
		t.Fatalf("replacement source was subscribed %d times", n)
	}
}

// ==============================
// End-to-end scenario
// ==============================

// Integer keys, a source emitting 10 then 20: the first Latest resolves to
// 10, a later Peek sees 20, and key 2 stays empty throughout.
func TestRegistryScenario(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry[int, int](intEq)

	f := newFeed[int]()
	f.emit(10)
	if v, ok := reg.Latest(ctx, 1, f.src()); !ok || v != 10 {
		t.Fatalf("Latest(1): got %d ok=%v, want 10", v, ok)
	}

	f.emit(20)
	eventually(t, func() bool { v, ok := reg.Peek(1); return ok && v == 20 })

	if _, ok := reg.Peek(2); ok {
		t.Fatalf("Peek(2) should report no value until a source is supplied")
	}
}

func TestRegistryClose(t *testing.T) {
	reg := NewRegistry[int, int](intEq)

	f := newFeed[int]()
	w := reg.Watch(1, f.src())
	f.emit(1)
	if got := recv(t, w); got != 1 {
		t.Fatalf("got %d want 1", got)
	}

	reg.Close()
	recvClosed(t, w)
	if _, ok := reg.Peek(1); ok {
		t.Fatalf("Peek after Close should report no value")
	}
	recvClosed(t, reg.Watch(1, newFeed[int]().src()))
}
