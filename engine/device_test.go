// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"testing"

	"github.com/ashlarengine/runtime/driver"
)

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	d, err := NewDevice(testGPU(t))
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	return d
}

func TestDeviceCreateDestroyImageInvalidatesHandle(t *testing.T) {
	d := newTestDevice(t)

	h, err := d.CreateImage(driver.RGBA8un, driver.Dim3D{Width: 4, Height: 4, Depth: 1}, 1, 1, 1, driver.UShaderSample)
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	if _, ok := d.GetImage(h); !ok {
		t.Fatal("GetImage: expected ok immediately after create")
	}

	d.DestroyImage(h)
	if _, ok := d.GetImage(h); ok {
		t.Error("GetImage after DestroyImage: ok = true, want false")
	}

	// A later CreateImage may reuse the freed slot index, but must not
	// let the stale handle resolve (§8 "Handle invalidation").
	h2, err := d.CreateImage(driver.RGBA8un, driver.Dim3D{Width: 4, Height: 4, Depth: 1}, 1, 1, 1, 0)
	if err != nil {
		t.Fatalf("CreateImage (second): %v", err)
	}
	if _, ok := d.GetImage(h); ok {
		t.Error("GetImage(stale handle) after slot reuse: ok = true, want false")
	}
	if _, ok := d.GetImage(h2); !ok {
		t.Error("GetImage(h2): expected ok")
	}
}

func TestDeviceCreateImageBindsBindlessSlot(t *testing.T) {
	d := newTestDevice(t)

	h, err := d.CreateImage(driver.RGBA8un, driver.Dim3D{Width: 4, Height: 4, Depth: 1}, 1, 1, 1, driver.UShaderSample)
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	r, _ := d.GetImage(h)
	if !r.hasSamp {
		t.Fatal("expected the image to be bound into the sampled-image bindless array")
	}
	if r.sampled == BindlessNullSlot {
		t.Error("sampled slot is the reserved null slot")
	}

	d.DestroyImage(h)
	// Unbind should have released the slot back to the bindless set's
	// free list; bind a fresh image and expect the slot to be reused.
	h2, err := d.CreateImage(driver.RGBA8un, driver.Dim3D{Width: 4, Height: 4, Depth: 1}, 1, 1, 1, driver.UShaderSample)
	if err != nil {
		t.Fatalf("CreateImage (second): %v", err)
	}
	r2, _ := d.GetImage(h2)
	if r2.sampled != r.sampled {
		t.Errorf("expected the freed bindless slot %d to be reused, got %d", r.sampled, r2.sampled)
	}
}

// TestBarrierMonotonicity exercises §8 "Barrier monotonicity":
// barrier(r, U) followed by barrier(r, U) emits the second barrier
// trivially (src == dst) but the resource's usage tag equals U after
// both calls.
func TestBarrierMonotonicity(t *testing.T) {
	d := newTestDevice(t)
	cb, err := d.GPU().NewCmdBuffer(driver.Graphics)
	if err != nil {
		t.Fatalf("NewCmdBuffer: %v", err)
	}
	if err := cb.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	h, err := d.CreateBuffer(256, true, driver.UShaderRead)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	d.TransitionBuffer(cb, h, UsageComputeShaderRead)
	r, _ := d.GetBuffer(h)
	if r.usage != UsageComputeShaderRead {
		t.Fatalf("usage after first transition = %v, want UsageComputeShaderRead", r.usage)
	}

	d.TransitionBuffer(cb, h, UsageComputeShaderRead)
	r, _ = d.GetBuffer(h)
	if r.usage != UsageComputeShaderRead {
		t.Errorf("usage after second (src==dst) transition = %v, want UsageComputeShaderRead", r.usage)
	}
}

func TestCheckPushConstantSizeMismatchErrors(t *testing.T) {
	d := newTestDevice(t)

	if err := d.CheckPushConstantSize(64); err != nil {
		t.Fatalf("first CheckPushConstantSize: %v", err)
	}
	if err := d.CheckPushConstantSize(64); err != nil {
		t.Errorf("repeating the agreed size: %v, want nil", err)
	}
	if err := d.CheckPushConstantSize(128); err == nil {
		t.Error("CheckPushConstantSize with a different size: expected an error")
	}
}
