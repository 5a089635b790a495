// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"testing"

	"github.com/ashlarengine/runtime/driver"
)

func TestRenderPassCacheFindOrCreateCaches(t *testing.T) {
	c := newRenderPassCache(testGPU(t))
	defer c.destroy()

	fmt1 := FramebufferFormat{Color: []driver.PixelFmt{driver.RGBA8un}, Samples: 1}

	p1, err := c.findOrCreate(fmt1, driver.LClear, driver.LDontCare)
	if err != nil {
		t.Fatalf("findOrCreate: %v", err)
	}
	p2, err := c.findOrCreate(fmt1, driver.LClear, driver.LDontCare)
	if err != nil {
		t.Fatalf("findOrCreate (second call): %v", err)
	}
	if p1 != p2 {
		t.Error("findOrCreate with the same key returned two different render passes")
	}

	fmt2 := FramebufferFormat{Color: []driver.PixelFmt{driver.BGRA8un}, Samples: 1}
	p3, err := c.findOrCreate(fmt2, driver.LClear, driver.LDontCare)
	if err != nil {
		t.Fatalf("findOrCreate (different format): %v", err)
	}
	if p3 == p1 {
		t.Error("findOrCreate with a different format returned the same render pass")
	}
}

func TestRenderPassCacheEvictsOldestPastCapacity(t *testing.T) {
	c := newRenderPassCache(testGPU(t))
	defer c.destroy()

	var first driver.RenderPass
	for i := 0; i < MaxRenderPass; i++ {
		f := FramebufferFormat{Color: []driver.PixelFmt{driver.PixelFmt(i + 1)}, Samples: 1}
		p, err := c.findOrCreate(f, driver.LClear, driver.LDontCare)
		if err != nil {
			t.Fatalf("findOrCreate #%d: %v", i, err)
		}
		if i == 0 {
			first = p
		}
	}
	if len(c.byKey) != MaxRenderPass {
		t.Fatalf("cache size = %d, want %d before eviction", len(c.byKey), MaxRenderPass)
	}

	// One more distinct key must evict the oldest entry.
	fNew := FramebufferFormat{Color: []driver.PixelFmt{driver.PixelFmt(MaxRenderPass + 100)}, Samples: 1}
	if _, err := c.findOrCreate(fNew, driver.LClear, driver.LDontCare); err != nil {
		t.Fatalf("findOrCreate (eviction trigger): %v", err)
	}
	if len(c.byKey) != MaxRenderPass {
		t.Errorf("cache size after eviction = %d, want %d", len(c.byKey), MaxRenderPass)
	}

	// Re-requesting the evicted oldest key must build a new pass
	// rather than returning the (now-destroyed) original.
	fOld := FramebufferFormat{Color: []driver.PixelFmt{driver.PixelFmt(1)}, Samples: 1}
	rebuilt, err := c.findOrCreate(fOld, driver.LClear, driver.LDontCare)
	if err != nil {
		t.Fatalf("findOrCreate (rebuild evicted): %v", err)
	}
	if rebuilt == first {
		t.Error("findOrCreate returned the evicted (destroyed) render pass instead of rebuilding")
	}
}

func TestNewFramebufferRejectsFormatMismatch(t *testing.T) {
	d := newTestDevice(t)

	h, err := d.CreateImage(driver.RGBA8un, driver.Dim3D{Width: 4, Height: 4, Depth: 1}, 1, 1, 1, driver.URenderTarget)
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}

	wantFmt := FramebufferFormat{Color: []driver.PixelFmt{driver.BGRA8un}, Samples: 1}
	if _, err := NewFramebuffer(d, wantFmt, []Handle[imageRes]{h}, Invalid[imageRes](), false, 4, 4, 1); err == nil {
		t.Error("NewFramebuffer with a mismatched color format: expected an error (invariant 6)")
	}

	okFmt := FramebufferFormat{Color: []driver.PixelFmt{driver.RGBA8un}, Samples: 1}
	fb, err := NewFramebuffer(d, okFmt, []Handle[imageRes]{h}, Invalid[imageRes](), false, 4, 4, 1)
	if err != nil {
		t.Fatalf("NewFramebuffer with a matching color format: %v", err)
	}
	fb.Destroy()
}

func TestFramebufferFindOrCreateRenderPassCachesPerInstance(t *testing.T) {
	d := newTestDevice(t)

	h, err := d.CreateImage(driver.RGBA8un, driver.Dim3D{Width: 4, Height: 4, Depth: 1}, 1, 1, 1, driver.URenderTarget)
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	format := FramebufferFormat{Color: []driver.PixelFmt{driver.RGBA8un}, Samples: 1}
	fb, err := NewFramebuffer(d, format, []Handle[imageRes]{h}, Invalid[imageRes](), false, 4, 4, 1)
	if err != nil {
		t.Fatalf("NewFramebuffer: %v", err)
	}
	defer fb.Destroy()

	p1, err := fb.FindOrCreateRenderPass(driver.LClear, driver.LDontCare)
	if err != nil {
		t.Fatalf("FindOrCreateRenderPass: %v", err)
	}
	p2, err := fb.FindOrCreateRenderPass(driver.LClear, driver.LDontCare)
	if err != nil {
		t.Fatalf("FindOrCreateRenderPass (second call): %v", err)
	}
	if p1 != p2 {
		t.Error("FindOrCreateRenderPass with the same load ops returned two different render passes")
	}

	p3, err := fb.FindOrCreateRenderPass(driver.LLoad, driver.LDontCare)
	if err != nil {
		t.Fatalf("FindOrCreateRenderPass (different load op): %v", err)
	}
	if p3 == p1 {
		t.Error("FindOrCreateRenderPass with a different load op returned the same render pass")
	}

	drv1, err := fb.Framebuf(p1)
	if err != nil {
		t.Fatalf("Framebuf: %v", err)
	}
	drv2, err := fb.Framebuf(p3)
	if err != nil {
		t.Fatalf("Framebuf (second call, different pass): %v", err)
	}
	if drv1 != drv2 {
		t.Error("Framebuf should reuse the same driver.Framebuf across compatible render passes")
	}
}
