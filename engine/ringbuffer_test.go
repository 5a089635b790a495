// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"testing"

	"github.com/ashlarengine/runtime/driver"
	_ "github.com/ashlarengine/runtime/engine/internal/testgpu"
)

func testGPU(t *testing.T) driver.GPU {
	t.Helper()
	for _, d := range driver.Drivers() {
		if d.Name() == "testgpu" {
			g, err := d.Open()
			if err != nil {
				t.Fatalf("open testgpu: %v", err)
			}
			return g
		}
	}
	t.Fatal("testgpu driver not registered")
	return nil
}

func TestRingBufferAllocateAligns(t *testing.T) {
	gpu := testGPU(t)
	rb, err := NewRingBuffer(gpu, 4096, 256, driver.UShaderRead)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	defer rb.Destroy()

	_, off := rb.Allocate(1)
	if off != 0 {
		t.Errorf("first allocation offset = %d, want 0", off)
	}
	_, off = rb.Allocate(1)
	if off != 256 {
		t.Errorf("second allocation offset = %d, want 256 (rounded up to alignment)", off)
	}
}

func TestRingBufferAllocateTooLargePanics(t *testing.T) {
	gpu := testGPU(t)
	rb, err := NewRingBuffer(gpu, 1024, 256, driver.UShaderRead)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	defer rb.Destroy()

	defer func() {
		if recover() == nil {
			t.Error("Allocate: expected panic for allocation exceeding half the ring size")
		}
	}()
	rb.Allocate(1024)
}

// TestRingBufferNonOverlap exercises the §8 "RingBuffer non-overlap"
// property: once FrameQueueLength-1 frames are tracked, an
// allocation that would wrap into the oldest tracked frame's region
// panics instead of silently overlapping it.
func TestRingBufferNonOverlap(t *testing.T) {
	gpu := testGPU(t)
	const size = 1024
	rb, err := NewRingBuffer(gpu, size, 256, driver.UShaderRead)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	defer rb.Destroy()

	// Fill FrameQueueLength-1 frames' worth of regions so the oldest
	// frame becomes the binding constraint.
	for i := 0; i < FrameQueueLength-1; i++ {
		rb.StartFrame()
		rb.Allocate(256)
		rb.EndFrame()
	}

	defer func() {
		if recover() == nil {
			t.Error("Allocate: expected panic when overlapping the oldest in-flight frame")
		}
	}()
	rb.StartFrame()
	for i := 0; i < FrameQueueLength; i++ {
		rb.Allocate(256)
	}
}

// TestRingBufferWrap exercises an allocation that would straddle the
// end of the buffer: it must wrap to the next size-aligned boundary
// rather than split across it. No frame has ended yet, so the
// non-overlap check against in-flight regions does not interfere.
func TestRingBufferWrap(t *testing.T) {
	gpu := testGPU(t)
	const size = 2048
	rb, err := NewRingBuffer(gpu, size, 256, driver.UShaderRead)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	defer rb.Destroy()

	rb.StartFrame()
	if _, off := rb.Allocate(900); off != 0 {
		t.Fatalf("first allocation offset = %d, want 0", off)
	}
	if _, off := rb.Allocate(600); off != 1024 {
		t.Fatalf("second allocation offset = %d, want 1024", off)
	}
	_, off := rb.Allocate(500)
	if off != 0 {
		t.Errorf("third allocation offset = %d, want 0 (wrapped)", off)
	}
}
