// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package vk

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashlarengine/runtime/driver"
)

func bufferUsageFlags(usg driver.Usage) vk.BufferUsageFlags {
	var f vk.BufferUsageFlagBits
	f |= vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit
	if usg&driver.UShaderRead != 0 || usg&driver.UShaderWrite != 0 {
		f |= vk.BufferUsageStorageBufferBit
	}
	if usg&driver.UShaderConst != 0 {
		f |= vk.BufferUsageUniformBufferBit
	}
	if usg&driver.UVertexData != 0 {
		f |= vk.BufferUsageVertexBufferBit
	}
	if usg&driver.UIndexData != 0 {
		f |= vk.BufferUsageIndexBufferBit
	}
	if usg&driver.UDeviceAddress != 0 {
		f |= vk.BufferUsageShaderDeviceAddressBit
	}
	return vk.BufferUsageFlags(f)
}

// NewBuffer creates a new Vulkan buffer, backed by its own device
// memory allocation (no suballocation: the caller is expected to use
// GpuPool/RingBuffer for fine-grained sharing).
func (d *Driver) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       bufferUsageFlags(usg),
		SharingMode: vk.SharingModeExclusive,
	}
	var buf vk.Buffer
	if res := vk.CreateBuffer(d.device, &info, nil, &buf); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateBuffer: %v", driver.ErrNoDeviceMemory, res)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buf, &req)
	req.Deref()

	props := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if visible {
		props = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	typeIdx, ok := d.findMemoryType(req.MemoryTypeBits, props)
	if !ok {
		vk.DestroyBuffer(d.device, buf, nil)
		return nil, driver.ErrNoDeviceMemory
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIdx,
	}
	var flagsInfo *vk.MemoryAllocateFlagsInfo
	if usg&driver.UDeviceAddress != 0 {
		flagsInfo = &vk.MemoryAllocateFlagsInfo{
			SType: vk.StructureType(1000060000), // VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_FLAGS_INFO
			Flags: vk.MemoryAllocateFlags(2),    // VK_MEMORY_ALLOCATE_DEVICE_ADDRESS_BIT
		}
		allocInfo.PNext = unsafe.Pointer(flagsInfo)
	}

	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(d.device, &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyBuffer(d.device, buf, nil)
		return nil, fmt.Errorf("%w: vkAllocateMemory: %v", driver.ErrNoDeviceMemory, res)
	}
	if res := vk.BindBufferMemory(d.device, buf, mem, 0); res != vk.Success {
		vk.FreeMemory(d.device, mem, nil)
		vk.DestroyBuffer(d.device, buf, nil)
		return nil, fmt.Errorf("%w: vkBindBufferMemory: %v", driver.ErrFatal, res)
	}

	b := &Buffer{
		dev:       d.device,
		buf:       buf,
		mem:       mem,
		size:      size,
		visible:   visible,
		canAddr:   usg&driver.UDeviceAddress != 0,
		vkDriver:  d,
	}
	if visible {
		var data unsafe.Pointer
		if res := vk.MapMemory(d.device, mem, 0, vk.DeviceSize(size), 0, &data); res != vk.Success {
			b.Destroy()
			return nil, fmt.Errorf("%w: vkMapMemory: %v", driver.ErrFatal, res)
		}
		b.mapped = (*[1 << 30]byte)(data)[:size:size]
	}
	return b, nil
}

// Buffer implements driver.Buffer over a single VkBuffer/VkDeviceMemory
// pair.
type Buffer struct {
	dev      vk.Device
	vkDriver *Driver
	buf      vk.Buffer
	mem      vk.DeviceMemory
	size     int64
	visible  bool
	mapped   []byte
	canAddr  bool
	addr     uint64
	addrSet  bool
}

// Visible reports whether the buffer is host visible.
func (b *Buffer) Visible() bool { return b.visible }

// Bytes returns the buffer's persistently-mapped host view, or nil if
// it was not created host visible.
func (b *Buffer) Bytes() []byte { return b.mapped }

// Cap returns the buffer's capacity in bytes.
func (b *Buffer) Cap() int64 { return b.size }

// Address resolves and caches the buffer's device address.
func (b *Buffer) Address() (uint64, error) {
	if !b.canAddr {
		return 0, fmt.Errorf("driver/vk: buffer not created with UDeviceAddress")
	}
	if b.addrSet {
		return b.addr, nil
	}
	info := vk.BufferDeviceAddressInfo{
		SType:  vk.StructureType(1000244001), // VK_STRUCTURE_TYPE_BUFFER_DEVICE_ADDRESS_INFO
		Buffer: b.buf,
	}
	b.addr = uint64(vk.GetBufferDeviceAddress(b.dev, &info))
	b.addrSet = true
	return b.addr, nil
}

// Destroy unmaps (if mapped), frees memory and destroys the buffer.
func (b *Buffer) Destroy() {
	if b.mapped != nil {
		vk.UnmapMemory(b.dev, b.mem)
	}
	if b.buf != nil {
		vk.DestroyBuffer(b.dev, b.buf, nil)
	}
	if b.mem != nil {
		vk.FreeMemory(b.dev, b.mem, nil)
	}
}
