// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"testing"

	"github.com/ashlarengine/runtime/driver"
)

func newTestPool(t *testing.T, elemSize int64, capacity int) *GpuPool {
	t.Helper()
	p, err := NewGpuPool(testGPU(t), elemSize, capacity)
	if err != nil {
		t.Fatalf("NewGpuPool: %v", err)
	}
	return p
}

// conservation checks the §8 "GpuPool conservation" invariant: the
// sum of free-list block sizes plus the pool's live length always
// equals its capacity.
func conservation(t *testing.T, p *GpuPool) {
	t.Helper()
	var free uint32
	seen := make(map[uint32]bool)
	cur := p.freeHead
	for cur != gpuPoolInvalid {
		if seen[cur] {
			t.Fatalf("free list cycle detected at offset %d", cur)
		}
		seen[cur] = true
		n := p.readNode(cur)
		free += n.size
		cur = n.next
	}
	if free+p.length != p.capacity {
		t.Errorf("conservation violated: free=%d length=%d capacity=%d", free, p.length, p.capacity)
	}
}

func TestGpuPoolAllocateFreeConservation(t *testing.T) {
	p := newTestPool(t, 16, 64)
	defer p.Destroy()

	conservation(t, p)

	ok, a := p.Allocate(10)
	if !ok {
		t.Fatal("Allocate(10): expected success")
	}
	conservation(t, p)

	ok, b := p.Allocate(20)
	if !ok {
		t.Fatal("Allocate(20): expected success")
	}
	conservation(t, p)

	p.Free(a)
	conservation(t, p)
	p.Free(b)
	conservation(t, p)

	if p.Length() != 0 {
		t.Errorf("Length() = %d, want 0 after freeing every allocation", p.Length())
	}
}

func TestGpuPoolAllocateExactFitSplicesMidChain(t *testing.T) {
	// Regression for Open Question decision 3: an exact-size match
	// found mid-chain (not at freeHead) must still be correctly
	// unlinked from the free list, or conservation breaks.
	p := newTestPool(t, 16, 30)
	defer p.Destroy()

	ok, a := p.Allocate(10) // splits the single free block: [a..a+10) live, [a+10..30) free
	if !ok {
		t.Fatal("Allocate(10) failed")
	}
	_ = a
	conservation(t, p)

	ok, b := p.Allocate(5) // splits the remaining free block: 15 elements left over at 15
	if !ok {
		t.Fatal("Allocate(5) failed")
	}
	conservation(t, p)

	p.Free(b)
	conservation(t, p)

	// The free list now has two blocks: the freed 5 at its head and
	// 15 at offset 15. The head is too small for 15, so this exact-size
	// match to the non-head block exercises mid-chain splicing.
	ok, c := p.Allocate(15)
	if !ok {
		t.Fatal("Allocate(15) failed")
	}
	if c != 15 {
		t.Fatalf("Allocate(15) offset = %d, want 15", c)
	}
	conservation(t, p)
}

func TestGpuPoolAllocateRefusesWhenFull(t *testing.T) {
	p := newTestPool(t, 16, 8)
	defer p.Destroy()

	ok, _ := p.Allocate(8)
	if !ok {
		t.Fatal("Allocate(8): expected success filling the pool exactly")
	}
	ok, off := p.Allocate(1)
	if ok {
		t.Error("Allocate(1): expected refusal, pool is already at capacity")
	}
	if off != gpuPoolInvalid {
		t.Errorf("Allocate(1): offset = %d, want sentinel on refusal", off)
	}
}

func TestGpuPoolFreeInvalidOffsetIsIgnored(t *testing.T) {
	p := newTestPool(t, 16, 8)
	defer p.Destroy()

	p.Free(123) // not a valid allocation; must be logged and ignored, not panic
	conservation(t, p)
}

func TestGpuPoolUpdateRefusesOversizedWrite(t *testing.T) {
	p := newTestPool(t, 16, 8)
	defer p.Destroy()

	ok, off := p.Allocate(2)
	if !ok {
		t.Fatal("Allocate(2) failed")
	}
	data := make([]byte, 16*3)
	if p.Update(off, 3, data) {
		t.Error("Update: expected refusal writing 3 elements into a 2-element allocation")
	}
	if p.IsDirty(off) {
		t.Error("IsDirty: refused update must not mark the allocation dirty")
	}
}

func TestGpuPoolUploadChangesClearsDirtySet(t *testing.T) {
	p := newTestPool(t, 16, 8)
	defer p.Destroy()

	ok, off := p.Allocate(2)
	if !ok {
		t.Fatal("Allocate(2) failed")
	}
	data := make([]byte, 32)
	for i := range data {
		data[i] = 0x7a
	}
	if !p.Update(off, 2, data) {
		t.Fatal("Update failed")
	}
	if !p.HasChanges() {
		t.Fatal("HasChanges: expected true after Update")
	}

	gpu := testGPU(t)
	cb, err := gpu.NewCmdBuffer(driver.Graphics)
	if err != nil {
		t.Fatalf("NewCmdBuffer: %v", err)
	}
	if err := cb.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	p.UploadChanges(cb)
	if err := cb.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	if p.HasChanges() {
		t.Error("HasChanges: expected false after UploadChanges")
	}
	if p.IsDirty(off) {
		t.Error("IsDirty: expected false after UploadChanges")
	}
}
