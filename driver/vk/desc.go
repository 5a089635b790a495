// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package vk

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashlarengine/runtime/driver"
)

func toVkDescType(t driver.DescType) vk.DescriptorType {
	switch t {
	case driver.DBuffer:
		return vk.DescriptorTypeStorageBuffer
	case driver.DImage:
		return vk.DescriptorTypeStorageImage
	case driver.DConstant:
		return vk.DescriptorTypeUniformBufferDynamic
	case driver.DTexture:
		return vk.DescriptorTypeSampledImage
	case driver.DSampler:
		return vk.DescriptorTypeSampler
	default:
		return vk.DescriptorTypeStorageBuffer
	}
}

// NewDescHeap builds a descriptor set layout with one binding per
// entry in ds, setting VK_DESCRIPTOR_BINDING_PARTIALLY_BOUND_BIT
// (plus the update-after-bind bit) for entries
// marked PartialBind, the mechanism the bindless descriptor arrays
// are built on (§4.3).
func (d *Driver) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(ds))
	bindFlags := make([]vk.DescriptorBindingFlags, len(ds))
	anyPartial := false
	for i, desc := range ds {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(desc.Nr),
			DescriptorType:  toVkDescType(desc.Type),
			DescriptorCount: uint32(desc.Len),
			StageFlags:      toVkShaderStageFlags(desc.Stages),
		}
		if desc.PartialBind {
			bindFlags[i] = vk.DescriptorBindingFlags(
				vk.DescriptorBindingPartiallyBoundBit |
					vk.DescriptorBindingUpdateAfterBindBit)
			anyPartial = true
		}
	}

	bindFlagsInfo := vk.DescriptorSetLayoutBindingFlagsCreateInfo{
		SType:         vk.StructureType(1000161000), // VK_STRUCTURE_TYPE_DESCRIPTOR_SET_LAYOUT_BINDING_FLAGS_CREATE_INFO
		BindingCount:  uint32(len(bindFlags)),
		PBindingFlags: bindFlags,
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if anyPartial {
		layoutInfo.Flags = vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreateUpdateAfterBindPoolBit)
		layoutInfo.PNext = pNext(&bindFlagsInfo)
	}

	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.device, &layoutInfo, nil, &layout); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateDescriptorSetLayout: %v", driver.ErrFatal, res)
	}

	return &DescHeap{dev: d.device, layout: layout, descs: append([]driver.Descriptor(nil), ds...), updateAfterBind: anyPartial}, nil
}

// DescHeap implements driver.DescHeap. Each call to New(n) with n
// different from the current count recreates the backing descriptor pool and allocates n descriptor sets, one
// per "copy" — callers typically keep one copy per frame in flight,
// or a single persistent copy for the bindless arrays.
type DescHeap struct {
	dev             vk.Device
	layout          vk.DescriptorSetLayout
	descs           []driver.Descriptor
	pool            vk.DescriptorPool
	sets            []vk.DescriptorSet
	updateAfterBind bool
}

// New allocates n copies of the heap's descriptor set.
func (h *DescHeap) New(n int) error {
	if n == len(h.sets) {
		return nil
	}
	if h.pool != nil {
		vk.DestroyDescriptorPool(h.dev, h.pool, nil)
		h.pool = nil
		h.sets = nil
	}
	if n == 0 {
		return nil
	}

	sizes := make([]vk.DescriptorPoolSize, len(h.descs))
	for i, d := range h.descs {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            toVkDescType(d.Type),
			DescriptorCount: uint32(d.Len * n),
		}
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(n),
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	if h.updateAfterBind {
		poolInfo.Flags = vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateUpdateAfterBindBit)
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(h.dev, &poolInfo, nil, &pool); res != vk.Success {
		return fmt.Errorf("%w: vkCreateDescriptorPool: %v", driver.ErrFatal, res)
	}

	layouts := make([]vk.DescriptorSetLayout, n)
	for i := range layouts {
		layouts[i] = h.layout
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: uint32(n),
		PSetLayouts:        layouts,
	}
	sets := make([]vk.DescriptorSet, n)
	if res := vk.AllocateDescriptorSets(h.dev, &allocInfo, &sets[0]); res != vk.Success {
		vk.DestroyDescriptorPool(h.dev, pool, nil)
		return fmt.Errorf("%w: vkAllocateDescriptorSets: %v", driver.ErrFatal, res)
	}
	h.pool = pool
	h.sets = sets
	return nil
}

// SetBuffer writes len(buf) consecutive buffer descriptors starting
// at array index start, within the binding identified by nr, in copy
// cpy's descriptor set.
func (h *DescHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {
	if cpy < 0 || cpy >= len(h.sets) {
		return
	}
	infos := make([]vk.DescriptorBufferInfo, len(buf))
	for i, b := range buf {
		vb, _ := b.(*Buffer)
		var handle vk.Buffer
		if vb != nil {
			handle = vb.buf
		}
		infos[i] = vk.DescriptorBufferInfo{Buffer: handle, Offset: vk.DeviceSize(off[i]), Range: vk.DeviceSize(size[i])}
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          h.sets[cpy],
		DstBinding:      uint32(nr),
		DstArrayElement: uint32(start),
		DescriptorCount: uint32(len(infos)),
		DescriptorType:  h.descTypeOf(nr),
		PBufferInfo:     infos,
	}
	vk.UpdateDescriptorSets(h.dev, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// SetImage writes len(iv) consecutive image descriptors starting at
// array index start.
func (h *DescHeap) SetImage(cpy, nr, start int, iv []driver.ImageView) {
	if cpy < 0 || cpy >= len(h.sets) {
		return
	}
	infos := make([]vk.DescriptorImageInfo, len(iv))
	for i, v := range iv {
		vv, _ := v.(*ImageView)
		var handle vk.ImageView
		if vv != nil {
			handle = vv.view
		}
		infos[i] = vk.DescriptorImageInfo{ImageView: handle, ImageLayout: vk.ImageLayoutGeneral}
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          h.sets[cpy],
		DstBinding:      uint32(nr),
		DstArrayElement: uint32(start),
		DescriptorCount: uint32(len(infos)),
		DescriptorType:  h.descTypeOf(nr),
		PImageInfo:      infos,
	}
	vk.UpdateDescriptorSets(h.dev, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// SetSampler writes len(splr) consecutive sampler descriptors
// starting at array index start.
func (h *DescHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler) {
	if cpy < 0 || cpy >= len(h.sets) {
		return
	}
	infos := make([]vk.DescriptorImageInfo, len(splr))
	for i, s := range splr {
		vs, _ := s.(*Sampler)
		var handle vk.Sampler
		if vs != nil {
			handle = vs.samp
		}
		infos[i] = vk.DescriptorImageInfo{Sampler: handle}
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          h.sets[cpy],
		DstBinding:      uint32(nr),
		DstArrayElement: uint32(start),
		DescriptorCount: uint32(len(infos)),
		DescriptorType:  vk.DescriptorTypeSampler,
		PImageInfo:      infos,
	}
	vk.UpdateDescriptorSets(h.dev, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// CopyDescriptor copies one descriptor element from srcIndex to
// dstIndex within the same heap copy, used to reset an unbound
// bindless slot back to the sentinel descriptor.
func (h *DescHeap) CopyDescriptor(cpy, nr, srcIndex, dstIndex int) {
	if cpy < 0 || cpy >= len(h.sets) {
		return
	}
	copyInfo := vk.CopyDescriptorSet{
		SType:           vk.StructureTypeCopyDescriptorSet,
		SrcSet:          h.sets[cpy],
		SrcBinding:      uint32(nr),
		SrcArrayElement: uint32(srcIndex),
		DstSet:          h.sets[cpy],
		DstBinding:      uint32(nr),
		DstArrayElement: uint32(dstIndex),
		DescriptorCount: 1,
	}
	vk.UpdateDescriptorSets(h.dev, 0, nil, 1, []vk.CopyDescriptorSet{copyInfo})
}

// Count returns the number of copies currently allocated.
func (h *DescHeap) Count() int { return len(h.sets) }

func (h *DescHeap) descTypeOf(nr int) vk.DescriptorType {
	for _, d := range h.descs {
		if d.Nr == nr {
			return toVkDescType(d.Type)
		}
	}
	return vk.DescriptorTypeStorageBuffer
}

// Destroy destroys the descriptor pool (freeing every allocated set)
// and the descriptor set layout.
func (h *DescHeap) Destroy() {
	if h.pool != nil {
		vk.DestroyDescriptorPool(h.dev, h.pool, nil)
	}
	vk.DestroyDescriptorSetLayout(h.dev, h.layout, nil)
}

// NewDescTable builds the pipeline-visible binding of one or more
// descriptor heaps. Since this backend resolves each heap to its own
// VkDescriptorSet, a DescTable simply remembers which copy of each
// heap to bind and in what order.
func (d *Driver) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	heaps := make([]*DescHeap, len(dh))
	for i, h := range dh {
		vh, ok := h.(*DescHeap)
		if !ok {
			return nil, fmt.Errorf("driver/vk: NewDescTable: heap %d is not a *vk.DescHeap", i)
		}
		heaps[i] = vh
	}
	return &DescTable{heaps: heaps}, nil
}

// DescTable implements driver.DescTable.
type DescTable struct {
	heaps []*DescHeap
}

// Destroy is a no-op: the backing descriptor sets are owned and
// freed by each heap's pool.
func (t *DescTable) Destroy() {}

// sets returns copy 0's VkDescriptorSet from each heap, in order,
// ready to pass to vkCmdBindDescriptorSets.
func (t *DescTable) sets() []vk.DescriptorSet {
	out := make([]vk.DescriptorSet, len(t.heaps))
	for i, h := range t.heaps {
		if len(h.sets) > 0 {
			out[i] = h.sets[0]
		}
	}
	return out
}
