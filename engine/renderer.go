// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"errors"

	"github.com/ashlarengine/runtime/driver"
)

// RingBuffers bundles the four per-frame transient allocators a
// Renderer drives in lockstep: one ring each for uniform data,
// vertex scratch, index scratch and per-instance data. StartFrame
// and EndFrame are called on all four together, once per frame.
type RingBuffers struct {
	Uniform  *RingBuffer
	Vertex   *RingBuffer
	Index    *RingBuffer
	Instance *RingBuffer
}

func (r *RingBuffers) startFrame() {
	r.Uniform.StartFrame()
	r.Vertex.StartFrame()
	r.Index.StartFrame()
	r.Instance.StartFrame()
}

func (r *RingBuffers) endFrame() {
	r.Uniform.EndFrame()
	r.Vertex.EndFrame()
	r.Index.EndFrame()
	r.Instance.EndFrame()
}

func (r *RingBuffers) destroy() {
	r.Uniform.Destroy()
	r.Vertex.Destroy()
	r.Index.Destroy()
	r.Instance.Destroy()
}

// newRingBuffers creates the four ring buffers using the
// package-level Config's sizes, rounding allocations to align (see
// Open Question decision 1, SPEC_FULL §3).
func newRingBuffers(gpu driver.GPU, align int64) (RingBuffers, error) {
	var rb RingBuffers
	var err error
	rb.Uniform, err = NewRingBuffer(gpu, cfg.UniformRingSize, align, driver.UShaderConst)
	if err != nil {
		return rb, err
	}
	rb.Vertex, err = NewRingBuffer(gpu, cfg.VertexRingSize, align, driver.UVertexData)
	if err != nil {
		return rb, err
	}
	rb.Index, err = NewRingBuffer(gpu, cfg.IndexRingSize, align, driver.UIndexData)
	if err != nil {
		return rb, err
	}
	// Instance data is read in shaders via descriptor-indexed storage
	// buffers rather than a fixed vertex-input binding (§4.4).
	rb.Instance, err = NewRingBuffer(gpu, cfg.InstanceRingSize, align, driver.UShaderRead)
	if err != nil {
		return rb, err
	}
	return rb, nil
}

// RecordFunc records one frame's draw commands into w, once the
// global descriptor set and per-frame uniform offset are ready.
// swapchainIndex names which swapchain image view this frame must
// end up targeting for its final pass. RecordFunc is the Renderer's
// only dependency on scene content, since scene graph traversal and
// material/mesh resolution are outside this package's scope.
type RecordFunc func(w *GraphicsWork, uniformOffset int64, swapchainIndex int)

// Renderer drives the per-frame orchestration described in
// SPEC_FULL.md: wait for the frame's fence slot, start the ring
// buffers, flush pending streamer uploads, record one frame of work,
// submit it signalling the main fence to the frame number plus one,
// and present. A swapchain-out-of-date result from either acquire or
// present is treated as an ordinary per-frame outcome, not an error.
type Renderer struct {
	dev      *Device
	surf     *Surface
	pool     *WorkPool[*GraphicsWork]
	streamer *Streamer
	fence    *Fence
	rings    RingBuffers
	passes   *renderPassCache
	global   *GlobalDescSet

	frame uint64 // N, monotonically increasing
	resizeDirty bool
}

// NewRenderer creates a Renderer targeting surf.
func NewRenderer(dev *Device, surf *Surface) (*Renderer, error) {
	pool, err := newGraphicsWorkPool(dev, driver.Graphics)
	if err != nil {
		return nil, err
	}
	streamer, err := NewStreamer(dev)
	if err != nil {
		pool.Destroy()
		return nil, err
	}
	fence, err := NewFence(dev.GPU())
	if err != nil {
		streamer.Destroy()
		pool.Destroy()
		return nil, err
	}
	align := int64(256)
	if l := dev.GPU().Limits().MinUniformBufferAlignment; l > align {
		align = l
	}
	rings, err := newRingBuffers(dev.GPU(), align)
	if err != nil {
		fence.Destroy()
		streamer.Destroy()
		pool.Destroy()
		return nil, err
	}
	global, err := dev.NewGlobalDescSet(rings.Uniform.Buffer(), cfg.UniformRingSize)
	if err != nil {
		rings.destroy()
		fence.Destroy()
		streamer.Destroy()
		pool.Destroy()
		return nil, err
	}
	return &Renderer{
		dev:      dev,
		surf:     surf,
		pool:     pool,
		streamer: streamer,
		fence:    fence,
		rings:    rings,
		passes:   newRenderPassCache(dev.GPU()),
		global:   global,
	}, nil
}

// Destroy releases every resource the Renderer owns, except surf and
// dev, which it does not own.
func (r *Renderer) Destroy() {
	r.global.Destroy()
	r.passes.destroy()
	r.rings.destroy()
	r.fence.Destroy()
	r.streamer.Destroy()
	r.pool.Destroy()
}

// Streamer returns the renderer's upload engine, so callers can
// queue uploads and query residency ahead of a Frame call.
func (r *Renderer) Streamer() *Streamer { return r.streamer }

// Frame records and submits one frame, calling record to fill in the
// frame's draw commands once the swapchain image, ring-buffer
// regions and streamer state are ready. If acquiring reports the
// swapchain out of date, it recreates the swapchain and returns
// without recording or submitting; if presenting reports it, the
// frame has already been submitted and the swapchain is recreated
// before Frame returns. Either way the caller is then expected to
// resize framebuffers depending on surface extent before the next call.
func (r *Renderer) Frame(record RecordFunc) error {
	n := r.frame

	if n >= FrameQueueLength {
		r.fence.Wait(n - FrameQueueLength + 1)
	}
	r.rings.startFrame()

	w := r.pool.Acquire()
	idx, outOfDate, err := r.surf.AcquireNext(w)
	if err != nil {
		r.pool.Release(w)
		return err
	}
	if outOfDate {
		r.pool.Release(w)
		return r.onResize()
	}

	if err := r.streamer.Update(); err != nil {
		r.pool.Release(w)
		return err
	}

	_, uoff := r.rings.Uniform.Allocate(int64(cfg.GpuPoolElemSize))

	if err := w.Begin(); err != nil {
		r.pool.Release(w)
		return err
	}
	w.BindGraphicsDescTable(r.global.Table(), 0, nil)
	record(w, uoff, idx)
	if err := w.End(); err != nil {
		r.pool.Release(w)
		return err
	}

	if err := r.fence.Commit(r.dev.GPU(), []driver.CmdBuffer{w.CmdBuffer()}, n+1); err != nil {
		r.pool.Release(w)
		return err
	}

	presentErr := r.surf.Present(w)
	r.pool.Release(w)
	if presentErr != nil {
		if !errors.Is(presentErr, driver.ErrSwapchain) {
			return presentErr
		}
		r.resizeDirty = true
	}

	r.rings.endFrame()
	r.frame++

	if r.resizeDirty {
		return r.onResize()
	}
	return nil
}

// onResize waits for the GPU to go idle, then recreates the
// swapchain. Framebuffers that depend on surface extent are the
// caller's responsibility to recreate, since only the caller knows
// which ones exist (§4.10 "on_resize").
func (r *Renderer) onResize() error {
	if err := r.dev.GPU().WaitIdle(); err != nil {
		return err
	}
	r.resizeDirty = false
	return r.surf.Resize()
}

// FindOrCreateRenderPass resolves the render pass matching format
// and the given per-attachment load operations, building one if
// none yet exists in the framebuffer cache.
func (r *Renderer) FindOrCreateRenderPass(format FramebufferFormat, colorLoad, dsLoad driver.LoadOp) (driver.RenderPass, error) {
	return r.passes.findOrCreate(format, colorLoad, dsLoad)
}
