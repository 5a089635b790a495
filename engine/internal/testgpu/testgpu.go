// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

// Package testgpu implements a pure Go, in-process driver.Driver
// used only by tests. It never touches a real GPU: buffers are
// plain byte slices, command buffers just record calls, and Commit
// executes everything synchronously before signaling completion.
// It exists so that RingBuffer/GpuPool/BindlessSet/Fence tests do
// not need a real Vulkan-capable machine to run against.
package testgpu

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashlarengine/runtime/driver"
)

func init() {
	driver.Register(&testDriver{})
}

type testDriver struct {
	mu  sync.Mutex
	gpu *gpu
}

func (d *testDriver) Name() string { return "testgpu" }

func (d *testDriver) Open() (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu == nil {
		d.gpu = &gpu{drv: d}
	}
	return d.gpu, nil
}

func (d *testDriver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gpu = nil
}

type gpu struct {
	drv driver.Driver
}

func (g *gpu) Driver() driver.Driver { return g.drv }

func (g *gpu) Commit(cb []driver.CmdBuffer, ch chan<- error, sig *driver.SemaphoreSignal) error {
	for _, c := range cb {
		tc, ok := c.(*cmdBuffer)
		if !ok {
			continue
		}
		if !tc.ended {
			return errors.New("testgpu: commit of unended command buffer")
		}
		tc.ended = false
	}
	if sig != nil {
		if s, ok := sig.Sem.(*semaphore); ok {
			s.signal(sig.Value)
		}
	}
	if ch != nil {
		ch <- nil
	}
	return nil
}

func (g *gpu) NewCmdBuffer(qt driver.QueueType) (driver.CmdBuffer, error) {
	return &cmdBuffer{qt: qt}, nil
}

func (g *gpu) NewRenderPass(att []driver.Attachment, sub []driver.Subpass) (driver.RenderPass, error) {
	return &renderPass{att: att, sub: sub}, nil
}

func (g *gpu) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	return &destroyable{}, nil
}

func (g *gpu) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	return &descHeap{descs: ds}, nil
}

func (g *gpu) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	return &destroyable{}, nil
}

func (g *gpu) NewPipeline(state any) (driver.Pipeline, error) {
	return &destroyable{}, nil
}

func (g *gpu) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	if size <= 0 {
		return nil, errors.New("testgpu: buffer size must be positive")
	}
	b := &buffer{size: size, usage: usg}
	if visible {
		b.data = make([]byte, size)
	}
	return b, nil
}

func (g *gpu) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	return &image{pf: pf, size: size, layers: layers, levels: levels}, nil
}

func (g *gpu) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	return &destroyable{}, nil
}

func (g *gpu) NewSemaphore(initValue uint64) (driver.Semaphore, error) {
	s := &semaphore{}
	s.value.Store(initValue)
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

func (g *gpu) Limits() driver.Limits {
	return driver.Limits{
		MaxImage2D:                 8192,
		MaxLayers:                  2048,
		MaxDescHeaps:               8,
		MaxColorTargets:            8,
		MinUniformBufferAlignment:  256,
		MaxPushConstantSize:        256,
		MaxDispatch:                [3]int{65535, 65535, 65535},
	}
}

func (g *gpu) Features() driver.Features {
	return driver.Features{
		TimelineSemaphore:   true,
		BufferDeviceAddress: true,
		DescriptorIndexing:  true,
	}
}

func (g *gpu) WaitIdle() error { return nil }

// destroyable satisfies driver.Destroyer for resources testgpu does
// not need to model any state for.
type destroyable struct{ destroyed bool }

func (d *destroyable) Destroy() { d.destroyed = true }

type buffer struct {
	destroyable
	size  int64
	usage driver.Usage
	data  []byte
	addr  uint64
}

func (b *buffer) Visible() bool { return b.data != nil }
func (b *buffer) Bytes() []byte { return b.data }
func (b *buffer) Cap() int64    { return b.size }

func (b *buffer) Address() (uint64, error) {
	if b.usage&driver.UDeviceAddress == 0 {
		return 0, errors.New("testgpu: buffer not created with UDeviceAddress")
	}
	if b.addr == 0 {
		addrCounter++
		b.addr = addrCounter
	}
	return b.addr, nil
}

var addrCounter uint64

type image struct {
	destroyable
	pf     driver.PixelFmt
	size   driver.Dim3D
	layers int
	levels int
}

func (i *image) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	return &destroyable{}, nil
}

type renderPass struct {
	destroyable
	att []driver.Attachment
	sub []driver.Subpass
}

func (r *renderPass) NewFB(iv []driver.ImageView, width, height, layers int) (driver.Framebuf, error) {
	return &destroyable{}, nil
}

type descHeap struct {
	destroyable
	descs []driver.Descriptor
	count int
}

func (h *descHeap) New(n int) error { h.count = n; return nil }
func (h *descHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {}
func (h *descHeap) SetImage(cpy, nr, start int, iv []driver.ImageView)                    {}
func (h *descHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler)                  {}
func (h *descHeap) CopyDescriptor(cpy, nr, srcIndex, dstIndex int)                        {}
func (h *descHeap) Count() int                                                            { return h.count }

// cmdBuffer records nothing; every recording method is a no-op
// since no test exercises actual draw output, only the allocator
// and synchronization logic above the driver boundary.
type cmdBuffer struct {
	destroyable
	qt    driver.QueueType
	ended bool
}

func (c *cmdBuffer) QueueType() driver.QueueType { return c.qt }
func (c *cmdBuffer) Begin() error                { c.ended = false; return nil }
func (c *cmdBuffer) WaitSemaphore(w driver.SemaphoreWait) {}
func (c *cmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
}
func (c *cmdBuffer) NextSubpass()                                         {}
func (c *cmdBuffer) EndPass()                                             {}
func (c *cmdBuffer) BeginWork(wait bool)                                  {}
func (c *cmdBuffer) EndWork()                                             {}
func (c *cmdBuffer) BeginBlit(wait bool)                                  {}
func (c *cmdBuffer) EndBlit()                                             {}
func (c *cmdBuffer) SetPipeline(pl driver.Pipeline)                       {}
func (c *cmdBuffer) SetViewport(vp []driver.Viewport)                     {}
func (c *cmdBuffer) SetScissor(sciss []driver.Scissor)                   {}
func (c *cmdBuffer) SetBlendColor(r, g, b, a float32)                    {}
func (c *cmdBuffer) SetStencilRef(value uint32)                          {}
func (c *cmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {}
func (c *cmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {}
func (c *cmdBuffer) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int) {}
func (c *cmdBuffer) SetDescTableComp(table driver.DescTable, start int, heapCopy []int)  {}
func (c *cmdBuffer) SetPushConstant(data []byte)                                         {}
func (c *cmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int)                    {}
func (c *cmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int)      {}
func (c *cmdBuffer) Dispatch(grpCountX, grpCountY, grpCountZ int)                         {}
func (c *cmdBuffer) CopyBuffer(param *driver.BufferCopy) {
	if param == nil {
		return
	}
	src, sok := param.From.(*buffer)
	dst, dok := param.To.(*buffer)
	if sok && dok && src.data != nil && dst.data != nil {
		copy(dst.data[param.ToOff:param.ToOff+param.Size], src.data[param.FromOff:param.FromOff+param.Size])
	}
}
func (c *cmdBuffer) CopyImage(param *driver.ImageCopy)         {}
func (c *cmdBuffer) CopyBufToImg(param *driver.BufImgCopy)     {}
func (c *cmdBuffer) CopyImgToBuf(param *driver.BufImgCopy)     {}
func (c *cmdBuffer) Fill(buf driver.Buffer, off int64, value byte, size int64) {
	if b, ok := buf.(*buffer); ok && b.data != nil {
		for i := off; i < off+size; i++ {
			b.data[i] = value
		}
	}
}
func (c *cmdBuffer) Barrier(b []driver.Barrier)           {}
func (c *cmdBuffer) Transition(t []driver.Transition)     {}
func (c *cmdBuffer) End() error                           { c.ended = true; return nil }
func (c *cmdBuffer) Reset() error                         { c.ended = false; return nil }

// semaphore is a minimal condition-variable backed timeline
// semaphore, the same mechanism engine.Fence builds on top of the
// real driver.
type semaphore struct {
	destroyable
	mu    sync.Mutex
	cond  *sync.Cond
	value atomic.Uint64
}

func (s *semaphore) signal(v uint64) {
	s.mu.Lock()
	s.value.Store(v)
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *semaphore) Value() (uint64, error) {
	return s.value.Load(), nil
}

func (s *semaphore) Wait(value uint64, timeoutNanos int64) error {
	deadline := time.Now().Add(time.Duration(timeoutNanos))
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.value.Load() < value {
		if timeoutNanos <= 0 {
			return driver.ErrFatal
		}
		if time.Now().After(deadline) {
			return driver.ErrFatal
		}
		s.mu.Unlock()
		time.Sleep(time.Millisecond)
		s.mu.Lock()
	}
	return nil
}
