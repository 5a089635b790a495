// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"fmt"

	"github.com/ashlarengine/runtime/driver"
)

// FramebufferFormat describes the attachment layout a render pass is
// built for: the pixel format of each color target, in order, an
// optional depth/stencil format, and the sample count shared by
// every attachment.
type FramebufferFormat struct {
	Color        []driver.PixelFmt
	DepthStencil driver.PixelFmt
	HasDS        bool
	Samples      int
}

// passKey is the comparable form of a FramebufferFormat plus the
// per-attachment load/store operations, used to key the render pass
// cache. Slices cannot be map keys, so Color is flattened into a
// fixed-size array; this caps a single pass at 8 color attachments,
// and entries of Color beyond the eighth are ignored.
type passKey struct {
	color     [8]driver.PixelFmt
	ncolor    int
	ds        driver.PixelFmt
	hasDS     bool
	samples   int
	colorLoad driver.LoadOp
	dsLoad    driver.LoadOp
}

// renderPassCache finds or creates a driver.RenderPass for a given
// FramebufferFormat, capping the number of distinct passes kept
// alive at once at MaxRenderPass. It is grounded on the same
// find-or-build pattern the rest of this package uses for bindless
// slots and ring regions: build lazily, cache by key, never rebuild
// unless evicted.
type renderPassCache struct {
	gpu   driver.GPU
	byKey map[passKey]driver.RenderPass
	order []passKey
}

func newRenderPassCache(gpu driver.GPU) *renderPassCache {
	return &renderPassCache{gpu: gpu, byKey: make(map[passKey]driver.RenderPass)}
}

func (c *renderPassCache) destroy() {
	for _, p := range c.byKey {
		p.Destroy()
	}
	c.byKey = nil
	c.order = nil
}

func toPassKey(f FramebufferFormat, colorLoad, dsLoad driver.LoadOp) passKey {
	var k passKey
	k.ncolor = copy(k.color[:], f.Color)
	k.ds = f.DepthStencil
	k.hasDS = f.HasDS
	k.samples = f.Samples
	k.colorLoad = colorLoad
	k.dsLoad = dsLoad
	return k
}

// findOrCreate returns the cached render pass for (f, colorLoad,
// dsLoad), building one if no such pass exists yet. When the cache
// is at MaxRenderPass capacity and the key is new, the
// least-recently-created pass is destroyed and evicted to make room
// (§[FULL] render-pass cache is bounded, not unbounded growth).
func (c *renderPassCache) findOrCreate(f FramebufferFormat, colorLoad, dsLoad driver.LoadOp) (driver.RenderPass, error) {
	k := toPassKey(f, colorLoad, dsLoad)
	if p, ok := c.byKey[k]; ok {
		return p, nil
	}

	if len(c.order) >= MaxRenderPass {
		oldest := c.order[0]
		c.order = c.order[1:]
		if p, ok := c.byKey[oldest]; ok {
			p.Destroy()
			delete(c.byKey, oldest)
		}
	}

	pass, err := buildRenderPass(c.gpu, f, colorLoad, dsLoad)
	if err != nil {
		return nil, err
	}
	c.byKey[k] = pass
	c.order = append(c.order, k)
	return pass, nil
}

// buildRenderPass constructs a driver.RenderPass for f with the given
// per-attachment load operations. Shared by renderPassCache and
// Framebuffer's own pass cache so the attachment-building rules live
// in one place.
func buildRenderPass(gpu driver.GPU, f FramebufferFormat, colorLoad, dsLoad driver.LoadOp) (driver.RenderPass, error) {
	att := make([]driver.Attachment, 0, len(f.Color)+1)
	color := make([]int, len(f.Color))
	for i, pf := range f.Color {
		att = append(att, driver.Attachment{
			Format:  pf,
			Samples: f.Samples,
			Load:    [2]driver.LoadOp{colorLoad, driver.LDontCare},
			Store:   [2]driver.StoreOp{driver.SStore, driver.SDontCare},
		})
		color[i] = i
	}
	ds := -1
	if f.HasDS {
		ds = len(att)
		att = append(att, driver.Attachment{
			Format:  f.DepthStencil,
			Samples: f.Samples,
			Load:    [2]driver.LoadOp{dsLoad, dsLoad},
			Store:   [2]driver.StoreOp{driver.SStore, driver.SStore},
		})
	}
	return gpu.NewRenderPass(att, []driver.Subpass{{Color: color, DS: ds}})
}

// loadKey is the comparable key for Framebuffer's own pass cache: a
// Framebuffer's format and attached images are fixed at construction,
// so only the load operations vary from one cached pass to the next.
type loadKey struct {
	colorLoad driver.LoadOp
	dsLoad    driver.LoadOp
}

// Framebuffer is a fixed set of attached images together with the
// format they were validated against and a small cache of render
// passes keyed by load operation (§3, §4.4, invariant 6). Unlike the
// package-level renderPassCache, which renderer.go shares across
// every format a caller asks it to build, a Framebuffer owns its
// cache outright: it is destroyed, and its passes with it, whenever
// the attachment set it was built for goes away (e.g. on resize).
type Framebuffer struct {
	dev    *Device
	format FramebufferFormat
	color  []Handle[imageRes]
	ds     Handle[imageRes]
	hasDS  bool
	width  int
	height int
	layers int

	passes map[loadKey]driver.RenderPass
	order  []loadKey

	fb      driver.Framebuf
	fbBuilt bool
}

// NewFramebuffer attaches color and, if hasDS, ds to a Framebuffer of
// the given format and extent, validating invariant 6: every attached
// image's format must match the corresponding entry in format.Color
// (and format.DepthStencil, when hasDS), in order.
func NewFramebuffer(dev *Device, format FramebufferFormat, color []Handle[imageRes], ds Handle[imageRes], hasDS bool, width, height, layers int) (*Framebuffer, error) {
	if len(color) != len(format.Color) {
		return nil, fmt.Errorf("engine: framebuffer: %d color attachments, format wants %d", len(color), len(format.Color))
	}
	for i, h := range color {
		r, ok := dev.GetImage(h)
		if !ok {
			return nil, fmt.Errorf("engine: framebuffer: color attachment %d is not a live image", i)
		}
		if r.pf != format.Color[i] {
			return nil, fmt.Errorf("engine: framebuffer: color attachment %d format %v does not match FramebufferFormat.Color[%d] %v", i, r.pf, i, format.Color[i])
		}
	}
	if hasDS != format.HasDS {
		return nil, fmt.Errorf("engine: framebuffer: depth/stencil presence does not match format")
	}
	if hasDS {
		r, ok := dev.GetImage(ds)
		if !ok {
			return nil, fmt.Errorf("engine: framebuffer: depth/stencil attachment is not a live image")
		}
		if r.pf != format.DepthStencil {
			return nil, fmt.Errorf("engine: framebuffer: depth/stencil attachment format %v does not match FramebufferFormat.DepthStencil %v", r.pf, format.DepthStencil)
		}
	}
	return &Framebuffer{
		dev:    dev,
		format: format,
		color:  append([]Handle[imageRes]{}, color...),
		ds:     ds,
		hasDS:  hasDS,
		width:  width,
		height: height,
		layers: layers,
		passes: make(map[loadKey]driver.RenderPass),
	}, nil
}

// FindOrCreateRenderPass returns the cached render pass for the given
// load operations, building and capping the cache at MaxRenderPass
// exactly like the package-level renderPassCache.
func (fb *Framebuffer) FindOrCreateRenderPass(colorLoad, dsLoad driver.LoadOp) (driver.RenderPass, error) {
	k := loadKey{colorLoad, dsLoad}
	if p, ok := fb.passes[k]; ok {
		return p, nil
	}
	if len(fb.order) >= MaxRenderPass {
		oldest := fb.order[0]
		fb.order = fb.order[1:]
		if p, ok := fb.passes[oldest]; ok {
			p.Destroy()
			delete(fb.passes, oldest)
		}
	}
	pass, err := buildRenderPass(fb.dev.GPU(), fb.format, colorLoad, dsLoad)
	if err != nil {
		return nil, err
	}
	fb.passes[k] = pass
	fb.order = append(fb.order, k)
	return pass, nil
}

// Framebuf returns the driver.Framebuf for this attachment set,
// building it lazily against pass on first use. A driver.Framebuf is
// compatible with any render pass sharing the same attachment
// formats, so the one Framebuf built here is reused for every cached
// pass this Framebuffer ever returns from FindOrCreateRenderPass,
// regardless of load operations.
func (fb *Framebuffer) Framebuf(pass driver.RenderPass) (driver.Framebuf, error) {
	if fb.fbBuilt {
		return fb.fb, nil
	}
	views := make([]driver.ImageView, 0, len(fb.color)+1)
	for _, h := range fb.color {
		r, ok := fb.dev.GetImage(h)
		if !ok {
			return nil, fmt.Errorf("engine: framebuffer: color attachment is no longer a live image")
		}
		views = append(views, r.view)
	}
	if fb.hasDS {
		r, ok := fb.dev.GetImage(fb.ds)
		if !ok {
			return nil, fmt.Errorf("engine: framebuffer: depth/stencil attachment is no longer a live image")
		}
		views = append(views, r.view)
	}
	driverFB, err := pass.NewFB(views, fb.width, fb.height, fb.layers)
	if err != nil {
		return nil, err
	}
	fb.fb = driverFB
	fb.fbBuilt = true
	return fb.fb, nil
}

// Destroy releases every cached render pass and the lazily-built
// driver.Framebuf, if any. It does not destroy the attached images,
// which the Framebuffer does not own.
func (fb *Framebuffer) Destroy() {
	for _, p := range fb.passes {
		p.Destroy()
	}
	fb.passes = nil
	fb.order = nil
	if fb.fbBuilt {
		fb.fb.Destroy()
		fb.fbBuilt = false
	}
}
