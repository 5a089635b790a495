// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import "github.com/ashlarengine/runtime/driver"

// TransferWork records copy and fill commands, plus the resource
// barriers that guard them. It wraps a driver.CmdBuffer together
// with the Device whose resource tags it mutates, so barrier calls
// can be expressed in terms of Handle[imageRes]/Handle[bufferRes]
// and a target ResUsage rather than raw driver.Barrier values.
//
// TransferWork, ComputeWork and GraphicsWork form a capability
// hierarchy by composition rather than inheritance: ComputeWork
// embeds TransferWork and GraphicsWork embeds ComputeWork, so a
// GraphicsWork exposes every TransferWork and ComputeWork method
// alongside its own, mirroring the superset relationship
// Transfer ⊂ Compute ⊂ Graphics without a base-class cast.
type TransferWork struct {
	cb  driver.CmdBuffer
	dev *Device
}

// CmdBuffer returns the underlying driver.CmdBuffer, for Commit.
func (w *TransferWork) CmdBuffer() driver.CmdBuffer { return w.cb }

// Begin prepares the command buffer for recording.
func (w *TransferWork) Begin() error { return w.cb.Begin() }

// End ends recording and prepares the command buffer for Commit.
func (w *TransferWork) End() error { return w.cb.End() }

// WaitSemaphore records a GPU-side wait on a timeline semaphore
// value before any work in this buffer executes at or after stage.
func (w *TransferWork) WaitSemaphore(f *Fence, value uint64, stage driver.Sync) {
	w.cb.WaitSemaphore(driver.SemaphoreWait{Sem: f.Sem(), Value: value, DstStage: stage})
}

// TransitionImage moves an image resource to usage, recording a
// barrier unless the transition is a documented no-op.
func (w *TransferWork) TransitionImage(h Handle[imageRes], usage ResUsage) {
	w.dev.TransitionImage(w.cb, h, usage)
}

// TransitionBuffer moves a buffer resource to usage.
func (w *TransferWork) TransitionBuffer(h Handle[bufferRes], usage ResUsage) {
	w.dev.TransitionBuffer(w.cb, h, usage)
}

// CopyBuffer copies size bytes from src to dst.
func (w *TransferWork) CopyBuffer(src, dst Handle[bufferRes], srcOff, dstOff, size int64) {
	sr, ok := w.dev.GetBuffer(src)
	if !ok {
		return
	}
	dr, ok := w.dev.GetBuffer(dst)
	if !ok {
		return
	}
	w.cb.CopyBuffer(&driver.BufferCopy{From: sr.buf, FromOff: srcOff, To: dr.buf, ToOff: dstOff, Size: size})
}

// FillBuffer fills size bytes of a buffer resource with value,
// starting at off.
func (w *TransferWork) FillBuffer(h Handle[bufferRes], off int64, value byte, size int64) {
	r, ok := w.dev.GetBuffer(h)
	if !ok {
		return
	}
	w.cb.Fill(r.buf, off, value, size)
}

// CopyBufferToImage copies from a buffer resource into an image
// resource's layer/level 0.
func (w *TransferWork) CopyBufferToImage(src Handle[bufferRes], srcOff int64, dst Handle[imageRes], size driver.Dim3D) {
	sr, ok := w.dev.GetBuffer(src)
	if !ok {
		return
	}
	dr, ok := w.dev.GetImage(dst)
	if !ok {
		return
	}
	w.cb.CopyBufToImg(&driver.BufImgCopy{
		Buf:    sr.buf,
		BufOff: srcOff,
		Img:    dr.img,
		Size:   size,
	})
}

// ComputeWork extends TransferWork with dispatch recording.
type ComputeWork struct {
	TransferWork
}

// BeginWork starts a compute recording block.
func (w *ComputeWork) BeginWork(wait bool) { w.cb.BeginWork(wait) }

// EndWork ends the current compute recording block.
func (w *ComputeWork) EndWork() { w.cb.EndWork() }

// BindPipeline sets the active compute pipeline.
func (w *ComputeWork) BindPipeline(p driver.Pipeline) { w.cb.SetPipeline(p) }

// BindDescTable sets the global descriptor table for compute,
// copying heapCopy indices starting at start.
func (w *ComputeWork) BindDescTable(table driver.DescTable, start int, heapCopy []int) {
	w.cb.SetDescTableComp(table, start, heapCopy)
}

// PushConstant uploads push-constant data for the bound pipeline.
func (w *ComputeWork) PushConstant(data []byte) { w.cb.SetPushConstant(data) }

// Dispatch records a compute dispatch of the given group counts.
func (w *ComputeWork) Dispatch(x, y, z int) { w.cb.Dispatch(x, y, z) }

// GraphicsWork extends ComputeWork with render-pass recording.
type GraphicsWork struct {
	ComputeWork
}

// BeginPass starts a render pass recording block.
func (w *GraphicsWork) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
	w.cb.BeginPass(pass, fb, clear)
}

// NextSubpass advances to the next subpass.
func (w *GraphicsWork) NextSubpass() { w.cb.NextSubpass() }

// EndPass ends the current render pass recording block.
func (w *GraphicsWork) EndPass() { w.cb.EndPass() }

// BindGraphicsPipeline sets the active graphics pipeline.
func (w *GraphicsWork) BindGraphicsPipeline(p driver.Pipeline) { w.cb.SetPipeline(p) }

// BindGraphicsDescTable sets the global descriptor table for
// graphics, copying heapCopy indices starting at start.
func (w *GraphicsWork) BindGraphicsDescTable(table driver.DescTable, start int, heapCopy []int) {
	w.cb.SetDescTableGraph(table, start, heapCopy)
}

// SetViewport sets the active viewports.
func (w *GraphicsWork) SetViewport(vp []driver.Viewport) { w.cb.SetViewport(vp) }

// SetScissor sets the active scissor rectangles.
func (w *GraphicsWork) SetScissor(s []driver.Scissor) { w.cb.SetScissor(s) }

// BindVertexBuffer sets a vertex buffer resource at the given
// binding slot.
func (w *GraphicsWork) BindVertexBuffer(start int, h Handle[bufferRes], off int64) {
	r, ok := w.dev.GetBuffer(h)
	if !ok {
		return
	}
	w.cb.SetVertexBuf(start, []driver.Buffer{r.buf}, []int64{off})
}

// BindIndexBuffer sets the index buffer resource.
func (w *GraphicsWork) BindIndexBuffer(format driver.IndexFmt, h Handle[bufferRes], off int64) {
	r, ok := w.dev.GetBuffer(h)
	if !ok {
		return
	}
	w.cb.SetIndexBuf(format, r.buf, off)
}

// Draw records a non-indexed draw call.
func (w *GraphicsWork) Draw(vertCount, instCount, baseVert, baseInst int) {
	w.cb.Draw(vertCount, instCount, baseVert, baseInst)
}

// DrawIndexed records an indexed draw call.
func (w *GraphicsWork) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	w.cb.DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst)
}

// Worker is satisfied by *TransferWork, *ComputeWork and
// *GraphicsWork through embedding. WorkPool is generic over it so
// that a Transfer or Compute pool's Acquire/Release hands out a
// value that does not expose Draw/Dispatch at compile time (§9): the
// capability hierarchy holds at the pool boundary, not only within a
// single Work value.
type Worker interface {
	CmdBuffer() driver.CmdBuffer
	Begin() error
	End() error
}

// WorkPool hands out recycled command buffers for a single queue
// type, bound to FrameQueueLength concurrent frames in flight. It is
// the Go-side counterpart of the channel-of-command-buffer pool the
// renderer this package's orchestration is grounded on keeps per
// frame.
type WorkPool[W Worker] struct {
	dev *Device
	qt  driver.QueueType
	ch  chan W
}

// NewWorkPool creates a pool of FrameQueueLength command buffers for
// the given queue type. wrap builds the pool's capability-tier value
// (TransferWork, ComputeWork or GraphicsWork) around each recorded
// command buffer.
func NewWorkPool[W Worker](dev *Device, qt driver.QueueType, wrap func(TransferWork) W) (*WorkPool[W], error) {
	p := &WorkPool[W]{dev: dev, qt: qt, ch: make(chan W, FrameQueueLength)}
	for i := 0; i < FrameQueueLength; i++ {
		cb, err := dev.GPU().NewCmdBuffer(qt)
		if err != nil {
			p.Destroy()
			return nil, err
		}
		p.ch <- wrap(TransferWork{cb: cb, dev: dev})
	}
	return p, nil
}

// Acquire blocks until a command buffer is available for reuse this
// frame.
func (p *WorkPool[W]) Acquire() W { return <-p.ch }

// Release returns a command buffer to the pool once its submission
// has been observed complete.
func (p *WorkPool[W]) Release(w W) { p.ch <- w }

// Destroy drains and destroys every command buffer in the pool. The
// caller must ensure none are in flight.
func (p *WorkPool[W]) Destroy() {
	for {
		select {
		case w := <-p.ch:
			w.CmdBuffer().Destroy()
		default:
			return
		}
	}
}

// newTransferWorkPool creates a WorkPool of bare TransferWork values,
// for pools bound to the transfer queue (e.g. Streamer).
func newTransferWorkPool(dev *Device, qt driver.QueueType) (*WorkPool[*TransferWork], error) {
	return NewWorkPool(dev, qt, func(tw TransferWork) *TransferWork { return &tw })
}

// newGraphicsWorkPool creates a WorkPool of GraphicsWork values, for
// pools bound to the graphics queue (e.g. Renderer).
func newGraphicsWorkPool(dev *Device, qt driver.QueueType) (*WorkPool[*GraphicsWork], error) {
	return NewWorkPool(dev, qt, func(tw TransferWork) *GraphicsWork {
		return &GraphicsWork{ComputeWork{tw}}
	})
}
