// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"testing"

	"github.com/ashlarengine/runtime/driver"
)

func TestGraphicsProgramCompileAndVariant(t *testing.T) {
	d := newTestDevice(t)

	prog, err := NewGraphicsProgram(d, driver.ShaderFunc{}, driver.ShaderFunc{}, nil, FramebufferFormat{Samples: 1}, 64)
	if err != nil {
		t.Fatalf("NewGraphicsProgram: %v", err)
	}
	defer prog.Destroy()

	if v := prog.Variant(0); v != nil {
		t.Error("Variant(0) before any Compile: expected nil")
	}

	rpc := newRenderPassCache(d.GPU())
	defer rpc.destroy()
	pass, err := rpc.findOrCreate(FramebufferFormat{Samples: 1}, driver.LClear, driver.LDontCare)
	if err != nil {
		t.Fatalf("findOrCreate: %v", err)
	}

	idx, err := prog.Compile(RenderState{Topology: driver.TTriangle, Cull: driver.CBack}, pass, 0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if idx != 0 {
		t.Errorf("first Compile index = %d, want 0", idx)
	}
	if prog.Variant(idx) == nil {
		t.Error("Variant(idx) after Compile: expected non-nil pipeline")
	}

	idx2, err := prog.Compile(RenderState{Topology: driver.TTriangle, DepthTest: true}, pass, 0)
	if err != nil {
		t.Fatalf("Compile (second variant): %v", err)
	}
	if idx2 != 1 {
		t.Errorf("second Compile index = %d, want 1", idx2)
	}
}

func TestNewGraphicsProgramRejectsMismatchedPushConstant(t *testing.T) {
	d := newTestDevice(t)

	if _, err := NewGraphicsProgram(d, driver.ShaderFunc{}, driver.ShaderFunc{}, nil, FramebufferFormat{Samples: 1}, 64); err != nil {
		t.Fatalf("first NewGraphicsProgram: %v", err)
	}
	if _, err := NewGraphicsProgram(d, driver.ShaderFunc{}, driver.ShaderFunc{}, nil, FramebufferFormat{Samples: 1}, 128); err == nil {
		t.Error("NewGraphicsProgram with a different push constant size: expected an error")
	}
}

func TestComputeProgram(t *testing.T) {
	d := newTestDevice(t)

	p, err := NewComputeProgram(d, driver.ShaderFunc{}, nil, 32)
	if err != nil {
		t.Fatalf("NewComputeProgram: %v", err)
	}
	defer p.Destroy()
	if p.Pipeline() == nil {
		t.Error("Pipeline(): expected a non-nil compiled pipeline")
	}
}

func TestLocalDescCacheReturnsSameTableForSameBinding(t *testing.T) {
	d := newTestDevice(t)

	c, err := newLocalDescCache(d, 2)
	if err != nil {
		t.Fatalf("newLocalDescCache: %v", err)
	}
	defer c.Destroy()

	h, err := d.CreateBuffer(256, true, driver.UShaderRead|driver.UDeviceAddress)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	r, _ := d.GetBuffer(h)

	t1, off1, err := c.Get(r.buf, 0, 64)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	t2, off2, err := c.Get(r.buf, 0, 64)
	if err != nil {
		t.Fatalf("Get (repeat): %v", err)
	}
	if t1 != t2 {
		t.Error("Get with the same (buf, off, size) returned two different descriptor tables")
	}
	if off1 != off2 {
		t.Errorf("offsets differ across repeated Get: %d vs %d", off1, off2)
	}
}

func TestLocalDescCacheEvictsWhenFull(t *testing.T) {
	d := newTestDevice(t)

	c, err := newLocalDescCache(d, 1)
	if err != nil {
		t.Fatalf("newLocalDescCache: %v", err)
	}
	defer c.Destroy()

	h1, _ := d.CreateBuffer(256, true, driver.UShaderRead|driver.UDeviceAddress)
	r1, _ := d.GetBuffer(h1)
	if _, _, err := c.Get(r1.buf, 0, 64); err != nil {
		t.Fatalf("Get (fill capacity): %v", err)
	}

	h2, _ := d.CreateBuffer(256, true, driver.UShaderRead|driver.UDeviceAddress)
	r2, _ := d.GetBuffer(h2)
	// A distinct binding tuple beyond capacity must reuse the LRU slot
	// rather than fail, since lru already has one entry to evict.
	if _, _, err := c.Get(r2.buf, 0, 64); err != nil {
		t.Fatalf("Get (evicts LRU slot): %v", err)
	}
}
