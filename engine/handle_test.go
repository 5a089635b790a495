// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import "testing"

func TestHandleInvalid(t *testing.T) {
	h := Invalid[int]()
	if h.IsValid() {
		t.Error("Invalid[int]().IsValid() = true, want false")
	}
}

func TestSlotTableNewGet(t *testing.T) {
	var tab slotTable[string]
	h := tab.New("a")
	if !h.IsValid() {
		t.Fatal("New: returned handle reports invalid")
	}
	v, ok := tab.Get(h)
	if !ok || v != "a" {
		t.Fatalf("Get(%v) = (%q, %v), want (\"a\", true)", h, v, ok)
	}
}

func TestSlotTableGetInvalidHandle(t *testing.T) {
	var tab slotTable[string]
	if _, ok := tab.Get(Invalid[string]()); ok {
		t.Error("Get(Invalid): ok = true, want false")
	}
}

// TestHandleInvalidationAfterFree exercises §8 "Handle invalidation":
// after Free(h), Get(h) must report missing, and reusing the freed
// slot through a later New must not let the old handle resolve.
func TestHandleInvalidationAfterFree(t *testing.T) {
	var tab slotTable[string]
	h1 := tab.New("first")

	v, ok := tab.Free(h1)
	if !ok || v != "first" {
		t.Fatalf("Free(h1) = (%q, %v), want (\"first\", true)", v, ok)
	}
	if _, ok := tab.Get(h1); ok {
		t.Error("Get(h1) after Free: ok = true, want false")
	}

	// New reuses the freed slot index but must advance the generation,
	// so the stale h1 still does not resolve.
	h2 := tab.New("second")
	if _, ok := tab.Get(h1); ok {
		t.Error("Get(h1) after slot reuse by New: ok = true, want false (stale handle resolved)")
	}
	v, ok = tab.Get(h2)
	if !ok || v != "second" {
		t.Fatalf("Get(h2) = (%q, %v), want (\"second\", true)", v, ok)
	}
}

func TestSlotTableFreeInvalidHandleIsNoOp(t *testing.T) {
	var tab slotTable[string]
	if _, ok := tab.Free(Invalid[string]()); ok {
		t.Error("Free(Invalid): ok = true, want false")
	}
	h := tab.New("a")
	tab.Free(h)
	if _, ok := tab.Free(h); ok {
		t.Error("double Free: second call reported ok = true, want false")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct{ idx, gen uint32 }{
		{0, 0}, {1, 1}, {0x00ffffff, 0xff}, {42, 7},
	}
	for _, c := range cases {
		idx, gen := decode(encode(c.idx, c.gen))
		if idx != c.idx || gen != c.gen&0xff {
			t.Errorf("encode/decode(%d, %d) = (%d, %d)", c.idx, c.gen, idx, gen)
		}
	}
}
