// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package vk

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashlarengine/runtime/driver"
)

// commandPool lazily allocates one VkCommandPool per queue family
// index the driver actually uses.
type commandPool struct {
	mu    sync.Mutex
	byFam map[uint32]vk.CommandPool
}

func (d *Driver) poolFor(fam uint32) (vk.CommandPool, error) {
	d.cmdPools.mu.Lock()
	defer d.cmdPools.mu.Unlock()
	if d.cmdPools.byFam == nil {
		d.cmdPools.byFam = make(map[uint32]vk.CommandPool)
	}
	if p, ok := d.cmdPools.byFam[fam]; ok {
		return p, nil
	}
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: fam,
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.device, &info, nil, &pool); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateCommandPool: %v", driver.ErrFatal, res)
	}
	d.cmdPools.byFam[fam] = pool
	return pool, nil
}

// NewCmdBuffer allocates a primary command buffer on the pool backing
// qt's queue family (after fail-soft aliasing, see Open's doc).
func (d *Driver) NewCmdBuffer(qt driver.QueueType) (driver.CmdBuffer, error) {
	fam := d.qfam[qt]
	pool, err := d.poolFor(fam)
	if err != nil {
		return nil, err
	}
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cbs := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.device, &allocInfo, cbs); res != vk.Success {
		return nil, fmt.Errorf("%w: vkAllocateCommandBuffers: %v", driver.ErrFatal, res)
	}
	return &CmdBuffer{drv: d, pool: pool, cb: cbs[0], qt: qt}, nil
}

// CmdBuffer implements driver.CmdBuffer over a single primary
// VkCommandBuffer.
type CmdBuffer struct {
	drv  *Driver
	pool vk.CommandPool
	cb   vk.CommandBuffer
	qt   driver.QueueType

	waits       []vk.Semaphore
	waitValues  []uint64
	waitStages  []vk.PipelineStageFlags

	curLayout    vk.PipelineLayout
	curBindPoint vk.PipelineBindPoint
}

// QueueType returns the queue type this command buffer targets.
func (c *CmdBuffer) QueueType() driver.QueueType { return c.qt }

// Begin resets and starts recording.
func (c *CmdBuffer) Begin() error {
	c.waits = nil
	c.waitValues = nil
	c.waitStages = nil
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(c.cb, &info); res != vk.Success {
		return fmt.Errorf("%w: vkBeginCommandBuffer: %v", driver.ErrFatal, res)
	}
	return nil
}

// WaitSemaphore records a GPU-side wait to be applied at submission
// time (Vulkan waits are a property of the submit batch, not of
// command recording, so this only buffers the request for Commit).
func (c *CmdBuffer) WaitSemaphore(w driver.SemaphoreWait) {
	sem, _ := w.Sem.(*Semaphore)
	if sem == nil {
		return
	}
	c.waits = append(c.waits, sem.sem)
	c.waitValues = append(c.waitValues, w.Value)
	c.waitStages = append(c.waitStages, toVkStageMask(w.DstStage))
}

// BeginPass begins a render pass.
func (c *CmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
	vp, _ := pass.(*RenderPass)
	vf, _ := fb.(*Framebuf)
	clears := make([]vk.ClearValue, len(clear))
	for i, cv := range clear {
		var cc vk.ClearValue
		cc.SetColor([]float32{cv.Color[0], cv.Color[1], cv.Color[2], cv.Color[3]})
		clears[i] = cc
	}
	var rp vk.RenderPass
	var vfb vk.Framebuffer
	if vp != nil {
		rp = vp.pass
	}
	if vf != nil {
		vfb = vf.fb
	}
	info := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      rp,
		Framebuffer:     vfb,
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}
	vk.CmdBeginRenderPass(c.cb, &info, vk.SubpassContentsInline)
}

// NextSubpass advances to the next subpass.
func (c *CmdBuffer) NextSubpass() { vk.CmdNextSubpass(c.cb, vk.SubpassContentsInline) }

// EndPass ends the current render pass.
func (c *CmdBuffer) EndPass() { vk.CmdEndRenderPass(c.cb) }

// BeginWork marks the start of a compute block. Vulkan command
// buffers need no explicit scope marker here; wait is informational
// only (§4.9 "a transfer queue's work is drained by its own fence").
func (c *CmdBuffer) BeginWork(wait bool) {}

// EndWork marks the end of a compute block.
func (c *CmdBuffer) EndWork() {}

// BeginBlit marks the start of a copy block.
func (c *CmdBuffer) BeginBlit(wait bool) {}

// EndBlit marks the end of a copy block.
func (c *CmdBuffer) EndBlit() {}

// SetPipeline binds pl and remembers its layout/bind point for
// subsequent SetDescTable*/SetPushConstant calls.
func (c *CmdBuffer) SetPipeline(pl driver.Pipeline) {
	vp, _ := pl.(*Pipeline)
	if vp == nil {
		return
	}
	vk.CmdBindPipeline(c.cb, vp.bindPoint, vp.pipeline)
	c.curLayout = vp.layout
	c.curBindPoint = vp.bindPoint
}

// SetViewport sets the pipeline's dynamic viewports.
func (c *CmdBuffer) SetViewport(vp []driver.Viewport) {
	vps := make([]vk.Viewport, len(vp))
	for i, v := range vp {
		vps[i] = vk.Viewport{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height, MinDepth: v.Znear, MaxDepth: v.Zfar}
	}
	vk.CmdSetViewport(c.cb, 0, uint32(len(vps)), vps)
}

// SetScissor sets the pipeline's dynamic scissor rectangles.
func (c *CmdBuffer) SetScissor(sciss []driver.Scissor) {
	rects := make([]vk.Rect2D, len(sciss))
	for i, s := range sciss {
		rects[i] = vk.Rect2D{
			Offset: vk.Offset2D{X: int32(s.X), Y: int32(s.Y)},
			Extent: vk.Extent2D{Width: uint32(s.Width), Height: uint32(s.Height)},
		}
	}
	vk.CmdSetScissor(c.cb, 0, uint32(len(rects)), rects)
}

// SetBlendColor sets the dynamic blend constant.
func (c *CmdBuffer) SetBlendColor(r, g, b, a float32) {
	vk.CmdSetBlendConstants(c.cb, [4]float32{r, g, b, a})
}

// SetStencilRef sets the dynamic stencil reference value on both
// faces.
func (c *CmdBuffer) SetStencilRef(value uint32) {
	vk.CmdSetStencilReference(c.cb, vk.StencilFaceFlags(vk.StencilFrontAndBack), value)
}

// SetVertexBuf binds vertex buffers starting at binding start.
func (c *CmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {
	bufs := make([]vk.Buffer, len(buf))
	offs := make([]vk.DeviceSize, len(off))
	for i, b := range buf {
		vb, _ := b.(*Buffer)
		if vb != nil {
			bufs[i] = vb.buf
		}
		offs[i] = vk.DeviceSize(off[i])
	}
	vk.CmdBindVertexBuffers(c.cb, uint32(start), uint32(len(bufs)), bufs, offs)
}

// SetIndexBuf binds the index buffer.
func (c *CmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {
	vb, _ := buf.(*Buffer)
	var b vk.Buffer
	if vb != nil {
		b = vb.buf
	}
	it := vk.IndexTypeUint32
	if format == driver.Index16 {
		it = vk.IndexTypeUint16
	}
	vk.CmdBindIndexBuffer(c.cb, b, vk.DeviceSize(off), it)
}

func (c *CmdBuffer) bindDescTable(table driver.DescTable, start int, heapCopy []int, bindPoint vk.PipelineBindPoint) {
	dt, _ := table.(*DescTable)
	if dt == nil {
		return
	}
	sets := make([]vk.DescriptorSet, len(dt.heaps))
	for i, h := range dt.heaps {
		cpy := 0
		if i < len(heapCopy) {
			cpy = heapCopy[i]
		}
		if cpy >= 0 && cpy < len(h.sets) {
			sets[i] = h.sets[cpy]
		}
	}
	vk.CmdBindDescriptorSets(c.cb, bindPoint, c.curLayout, uint32(start), uint32(len(sets)), sets, 0, nil)
}

// SetDescTableGraph binds table for the graphics pipeline bind point.
func (c *CmdBuffer) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int) {
	c.bindDescTable(table, start, heapCopy, vk.PipelineBindPointGraphics)
}

// SetDescTableComp binds table for the compute pipeline bind point.
func (c *CmdBuffer) SetDescTableComp(table driver.DescTable, start int, heapCopy []int) {
	c.bindDescTable(table, start, heapCopy, vk.PipelineBindPointCompute)
}

// SetPushConstant updates the push-constant range of the currently
// bound pipeline's layout.
func (c *CmdBuffer) SetPushConstant(data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(c.cb, c.curLayout, vk.ShaderStageFlags(vk.ShaderStageAllBit), 0, uint32(len(data)), unsafePtr(data))
}

// Draw issues a non-indexed draw call.
func (c *CmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int) {
	vk.CmdDraw(c.cb, uint32(vertCount), uint32(instCount), uint32(baseVert), uint32(baseInst))
}

// DrawIndexed issues an indexed draw call.
func (c *CmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	vk.CmdDrawIndexed(c.cb, uint32(idxCount), uint32(instCount), uint32(baseIdx), int32(vertOff), uint32(baseInst))
}

// Dispatch issues a compute dispatch.
func (c *CmdBuffer) Dispatch(x, y, z int) {
	vk.CmdDispatch(c.cb, uint32(x), uint32(y), uint32(z))
}

// CopyBuffer copies between two buffers.
func (c *CmdBuffer) CopyBuffer(param *driver.BufferCopy) {
	from, _ := param.From.(*Buffer)
	to, _ := param.To.(*Buffer)
	if from == nil || to == nil {
		return
	}
	region := vk.BufferCopy{SrcOffset: vk.DeviceSize(param.FromOff), DstOffset: vk.DeviceSize(param.ToOff), Size: vk.DeviceSize(param.Size)}
	vk.CmdCopyBuffer(c.cb, from.buf, to.buf, 1, []vk.BufferCopy{region})
}

// CopyImage copies between two images.
func (c *CmdBuffer) CopyImage(param *driver.ImageCopy) {
	from, _ := param.From.(*Image)
	to, _ := param.To.(*Image)
	if from == nil || to == nil {
		return
	}
	region := vk.ImageCopy{
		SrcSubresource: vk.ImageSubresourceLayers{AspectMask: from.aspect, MipLevel: uint32(param.FromLevel), BaseArrayLayer: uint32(param.FromLayer), LayerCount: uint32(param.Layers)},
		SrcOffset:      vk.Offset3D{X: int32(param.FromOff.X), Y: int32(param.FromOff.Y), Z: int32(param.FromOff.Z)},
		DstSubresource: vk.ImageSubresourceLayers{AspectMask: to.aspect, MipLevel: uint32(param.ToLevel), BaseArrayLayer: uint32(param.ToLayer), LayerCount: uint32(param.Layers)},
		DstOffset:      vk.Offset3D{X: int32(param.ToOff.X), Y: int32(param.ToOff.Y), Z: int32(param.ToOff.Z)},
		Extent:         vk.Extent3D{Width: uint32(param.Size.Width), Height: uint32(param.Size.Height), Depth: uint32(param.Size.Depth)},
	}
	vk.CmdCopyImage(c.cb, from.img, vk.ImageLayoutTransferSrcOptimal, to.img, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageCopy{region})
}

// CopyBufToImg copies from a buffer into an image.
func (c *CmdBuffer) CopyBufToImg(param *driver.BufImgCopy) {
	buf, _ := param.Buf.(*Buffer)
	img, _ := param.Img.(*Image)
	if buf == nil || img == nil {
		return
	}
	region := vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(param.BufOff),
		BufferRowLength:   uint32(param.Stride[0]),
		BufferImageHeight: uint32(param.Stride[1]),
		ImageSubresource:  vk.ImageSubresourceLayers{AspectMask: img.aspect, MipLevel: uint32(param.Level), BaseArrayLayer: uint32(param.Layer), LayerCount: 1},
		ImageOffset:       vk.Offset3D{X: int32(param.ImgOff.X), Y: int32(param.ImgOff.Y), Z: int32(param.ImgOff.Z)},
		ImageExtent:       vk.Extent3D{Width: uint32(param.Size.Width), Height: uint32(maxInt(param.Size.Height, 1)), Depth: uint32(maxInt(param.Size.Depth, 1))},
	}
	vk.CmdCopyBufferToImage(c.cb, buf.buf, img.img, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

// CopyImgToBuf copies from an image into a buffer.
func (c *CmdBuffer) CopyImgToBuf(param *driver.BufImgCopy) {
	buf, _ := param.Buf.(*Buffer)
	img, _ := param.Img.(*Image)
	if buf == nil || img == nil {
		return
	}
	region := vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(param.BufOff),
		BufferRowLength:   uint32(param.Stride[0]),
		BufferImageHeight: uint32(param.Stride[1]),
		ImageSubresource:  vk.ImageSubresourceLayers{AspectMask: img.aspect, MipLevel: uint32(param.Level), BaseArrayLayer: uint32(param.Layer), LayerCount: 1},
		ImageOffset:       vk.Offset3D{X: int32(param.ImgOff.X), Y: int32(param.ImgOff.Y), Z: int32(param.ImgOff.Z)},
		ImageExtent:       vk.Extent3D{Width: uint32(param.Size.Width), Height: uint32(maxInt(param.Size.Height, 1)), Depth: uint32(maxInt(param.Size.Depth, 1))},
	}
	vk.CmdCopyImageToBuffer(c.cb, img.img, vk.ImageLayoutTransferSrcOptimal, buf.buf, 1, []vk.BufferImageCopy{region})
}

// Fill fills a buffer range with a repeated byte value.
func (c *CmdBuffer) Fill(buf driver.Buffer, off int64, value byte, size int64) {
	vb, _ := buf.(*Buffer)
	if vb == nil {
		return
	}
	word := uint32(value) * 0x01010101
	vk.CmdFillBuffer(c.cb, vb.buf, vk.DeviceSize(off), vk.DeviceSize(size), word)
}

// Barrier issues a batch of global memory barriers.
func (c *CmdBuffer) Barrier(b []driver.Barrier) {
	if len(b) == 0 {
		return
	}
	var srcStage, dstStage vk.PipelineStageFlags
	mem := make([]vk.MemoryBarrier, len(b))
	for i, bb := range b {
		srcStage |= toVkStageMask(bb.SyncBefore)
		dstStage |= toVkStageMask(bb.SyncAfter)
		mem[i] = vk.MemoryBarrier{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: toVkAccessMask(bb.AccessBefore),
			DstAccessMask: toVkAccessMask(bb.AccessAfter),
		}
	}
	vk.CmdPipelineBarrier(c.cb, srcStage, dstStage, 0, uint32(len(mem)), mem, 0, nil, 0, nil)
}

// Transition issues a batch of image layout transitions.
func (c *CmdBuffer) Transition(t []driver.Transition) {
	if len(t) == 0 {
		return
	}
	var srcStage, dstStage vk.PipelineStageFlags
	barriers := make([]vk.ImageMemoryBarrier, 0, len(t))
	for _, tt := range t {
		view, _ := tt.IView.(*ImageView)
		if view == nil {
			continue
		}
		srcStage |= toVkStageMask(tt.SyncBefore)
		dstStage |= toVkStageMask(tt.SyncAfter)
		barriers = append(barriers, vk.ImageMemoryBarrier{
			SType:         vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask: toVkAccessMask(tt.AccessBefore),
			DstAccessMask: toVkAccessMask(tt.AccessAfter),
			OldLayout:     toVkLayout(tt.LayoutBefore),
			NewLayout:     toVkLayout(tt.LayoutAfter),
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: vk.RemainingMipLevels,
				LayerCount: vk.RemainingArrayLayers,
			},
		})
	}
	if len(barriers) == 0 {
		return
	}
	vk.CmdPipelineBarrier(c.cb, srcStage, dstStage, 0, 0, nil, 0, nil, uint32(len(barriers)), barriers)
}

// End ends recording.
func (c *CmdBuffer) End() error {
	if res := vk.EndCommandBuffer(c.cb); res != vk.Success {
		vk.ResetCommandBuffer(c.cb, vk.CommandBufferResetFlags(0))
		return fmt.Errorf("%w: vkEndCommandBuffer: %v", driver.ErrFatal, res)
	}
	return nil
}

// Reset discards recorded commands.
func (c *CmdBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(c.cb, vk.CommandBufferResetFlags(0)); res != vk.Success {
		return fmt.Errorf("%w: vkResetCommandBuffer: %v", driver.ErrFatal, res)
	}
	return nil
}

// Destroy frees the command buffer back to its pool.
func (c *CmdBuffer) Destroy() {
	vk.FreeCommandBuffers(c.drv.device, c.pool, 1, []vk.CommandBuffer{c.cb})
}

// Commit submits cb to the queue matching their (shared) queue type,
// signalling sig's timeline value on completion and delivering the
// result over ch asynchronously.
func (d *Driver) Commit(cb []driver.CmdBuffer, ch chan<- error, sig *driver.SemaphoreSignal) error {
	if len(cb) == 0 {
		return fmt.Errorf("driver/vk: Commit: empty command buffer batch")
	}
	qt := cb[0].QueueType()
	bufs := make([]vk.CommandBuffer, len(cb))
	var waitSems []vk.Semaphore
	var waitValues []uint64
	var waitStages []vk.PipelineStageFlags
	for i, b := range cb {
		vb, ok := b.(*CmdBuffer)
		if !ok {
			return fmt.Errorf("driver/vk: Commit: cb[%d] is not a *vk.CmdBuffer", i)
		}
		bufs[i] = vb.cb
		waitSems = append(waitSems, vb.waits...)
		waitValues = append(waitValues, vb.waitValues...)
		waitStages = append(waitStages, vb.waitStages...)
	}

	var signalSems []vk.Semaphore
	var signalValues []uint64
	if sig != nil {
		vs, _ := sig.Sem.(*Semaphore)
		if vs != nil {
			signalSems = append(signalSems, vs.sem)
			signalValues = append(signalValues, sig.Value)
		}
	}

	timelineInfo := vk.TimelineSemaphoreSubmitInfo{
		SType:                     vk.StructureType(1000207003), // VK_STRUCTURE_TYPE_TIMELINE_SEMAPHORE_SUBMIT_INFO
		WaitSemaphoreValueCount:   uint32(len(waitValues)),
		PWaitSemaphoreValues:      waitValues,
		SignalSemaphoreValueCount: uint32(len(signalValues)),
		PSignalSemaphoreValues:    signalValues,
	}
	submit := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		PNext:                pNext(&timelineInfo),
		WaitSemaphoreCount:   uint32(len(waitSems)),
		PWaitSemaphores:      waitSems,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   uint32(len(bufs)),
		PCommandBuffers:      bufs,
		SignalSemaphoreCount: uint32(len(signalSems)),
		PSignalSemaphores:    signalSems,
	}

	d.queueMus[qt].Lock()
	res := vk.QueueSubmit(d.queues[qt], 1, []vk.SubmitInfo{submit}, nil)
	d.queueMus[qt].Unlock()
	if res != vk.Success {
		err := fmt.Errorf("%w: vkQueueSubmit: %v", driver.ErrFatal, res)
		if ch != nil {
			go func() { ch <- err }()
		}
		return err
	}

	if ch != nil || sig != nil {
		go func() {
			var err error
			if sig != nil {
				vs, _ := sig.Sem.(*Semaphore)
				if vs != nil {
					err = vs.Wait(sig.Value, int64(^uint64(0)>>1))
				}
			} else {
				d.queueMus[qt].Lock()
				if res := vk.QueueWaitIdle(d.queues[qt]); res != vk.Success {
					err = fmt.Errorf("%w: vkQueueWaitIdle: %v", driver.ErrFatal, res)
				}
				d.queueMus[qt].Unlock()
			}
			if ch != nil {
				ch <- err
			}
		}()
	}
	return nil
}
