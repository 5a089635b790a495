// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"log"

	"github.com/ashlarengine/runtime/driver"
)

// gpuPoolInvalid is the offset returned when an allocation is
// refused (§7 "Allocation refusal").
const gpuPoolInvalid = ^uint32(0)

// freeListNode is the intrusive free-list node written in place at
// the head of every free block, directly in the pool's host mirror.
// next == gpuPoolInvalid terminates the chain.
type freeListNode struct {
	size uint32
	next uint32
}

// GpuPool is a fixed-element-size device-local pool for GPU-driven
// data (vertices, indices, materials, instances, draw commands).
// It keeps a host mirror buffer holding both live element data and,
// overlapping it, an intrusive free-list of unused blocks; changes
// are tracked per allocation and flushed to the device buffer with
// one barrier and one copy per dirty allocation on each call to
// UploadChanges.
type GpuPool struct {
	elemSize int64
	capacity uint32
	length   uint32

	host   driver.Buffer
	device driver.Buffer

	freeHead uint32

	validAlloc map[uint32]uint32
	dirty      map[uint32]struct{}
}

// NewGpuPool creates a pool with room for capacity elements of
// elemSize bytes each.
func NewGpuPool(gpu driver.GPU, elemSize int64, capacity int) (*GpuPool, error) {
	size := elemSize * int64(capacity)
	host, err := gpu.NewBuffer(size, true, driver.UShaderRead)
	if err != nil {
		return nil, err
	}
	device, err := gpu.NewBuffer(size, false, driver.UShaderRead|driver.UShaderWrite)
	if err != nil {
		host.Destroy()
		return nil, err
	}
	p := &GpuPool{
		elemSize:   elemSize,
		capacity:   uint32(capacity),
		host:       host,
		device:     device,
		validAlloc: make(map[uint32]uint32),
		dirty:      make(map[uint32]struct{}),
	}
	p.writeNode(0, freeListNode{size: p.capacity, next: gpuPoolInvalid})
	return p, nil
}

// Destroy releases the pool's host and device buffers.
func (p *GpuPool) Destroy() {
	p.host.Destroy()
	p.device.Destroy()
}

func (p *GpuPool) nodeBytes(offset uint32) []byte {
	b := p.host.Bytes()
	off := int64(offset) * p.elemSize
	return b[off : off+int64(p.elemSize)]
}

func (p *GpuPool) writeNode(offset uint32, n freeListNode) {
	b := p.nodeBytes(offset)
	littleEndianPutU32(b[0:4], n.size)
	littleEndianPutU32(b[4:8], n.next)
}

func (p *GpuPool) readNode(offset uint32) freeListNode {
	b := p.nodeBytes(offset)
	return freeListNode{size: littleEndianU32(b[0:4]), next: littleEndianU32(b[4:8])}
}

// Allocate reserves a contiguous run of count elements using the
// first free-list block that fits, splitting it if it is larger
// than needed. It returns (false, sentinel) if no block is large
// enough or the pool is already at capacity.
func (p *GpuPool) Allocate(count uint32) (ok bool, offset uint32) {
	if p.length+count > p.capacity {
		log.Printf("engine: gpupool allocate: pool full")
		return false, gpuPoolInvalid
	}

	offset = p.freeHead
	node := p.readNode(offset)
	for node.size < count && node.next != gpuPoolInvalid {
		offset = node.next
		node = p.readNode(offset)
	}
	if node.size < count {
		log.Printf("engine: gpupool allocate: pool full")
		return false, gpuPoolInvalid
	}

	if node.size > count {
		newOffset := offset + count
		p.writeNode(newOffset, freeListNode{size: node.size - count, next: node.next})
		if offset == p.freeHead {
			p.freeHead = newOffset
		} else {
			p.relinkPredecessor(offset, newOffset)
		}
	} else if offset == p.freeHead {
		p.freeHead = node.next
	} else {
		p.relinkPredecessor(offset, node.next)
	}

	if _, exists := p.validAlloc[offset]; exists {
		log.Printf("engine: gpupool allocate: overwriting allocation at offset %d", offset)
	}
	p.validAlloc[offset] = count
	p.length += count
	return true, offset
}

// relinkPredecessor walks the free list starting at freeHead and
// repoints whichever node's next equals oldNext to newNext. It
// exists because the free list is singly linked and Allocate may
// need to splice a mid-chain block.
func (p *GpuPool) relinkPredecessor(oldNext, newNext uint32) {
	cur := p.freeHead
	for cur != gpuPoolInvalid {
		n := p.readNode(cur)
		if n.next == oldNext {
			n.next = newNext
			p.writeNode(cur, n)
			return
		}
		cur = n.next
	}
}

// Free releases the allocation at offset back to the free list
// (prepended at the head; no coalescing with adjacent blocks).
// Freeing an offset that is not a valid allocation is a programming
// error: it is logged and ignored (§7).
func (p *GpuPool) Free(offset uint32) {
	count, ok := p.validAlloc[offset]
	if !ok {
		log.Printf("engine: gpupool free: invalid offset %d", offset)
		return
	}
	p.writeNode(offset, freeListNode{size: count, next: p.freeHead})
	p.freeHead = offset
	delete(p.validAlloc, offset)
	delete(p.dirty, offset)
	p.length -= count
}

// Update copies data (count elements, each elemSize bytes) into the
// allocation at offset and marks it dirty for the next
// UploadChanges. It refuses to write past the allocation's
// recorded element count.
func (p *GpuPool) Update(offset uint32, count uint32, data []byte) bool {
	allocCount, ok := p.validAlloc[offset]
	if !ok {
		log.Printf("engine: gpupool update: invalid offset %d", offset)
		return false
	}
	if count > allocCount {
		log.Printf("engine: gpupool update: %d elements exceeds allocation size %d", count, allocCount)
		return false
	}
	dst := p.Get(offset, count)
	copy(dst, data[:int64(count)*p.elemSize])
	p.dirty[offset] = struct{}{}
	return true
}

// IsDirty reports whether offset has unflushed writes pending an
// UploadChanges call.
func (p *GpuPool) IsDirty(offset uint32) bool {
	_, ok := p.dirty[offset]
	return ok
}

// HasChanges reports whether any allocation is pending upload.
func (p *GpuPool) HasChanges() bool { return len(p.dirty) > 0 }

// Get returns a byte slice view of the element range [offset,
// offset+count) in the host mirror. The caller must not retain it
// past the next Allocate/Free/Update on this pool.
func (p *GpuPool) Get(offset, count uint32) []byte {
	b := p.host.Bytes()
	off := int64(offset) * p.elemSize
	return b[off : off+int64(count)*p.elemSize]
}

// Length returns the number of elements currently allocated.
func (p *GpuPool) Length() uint32 { return p.length }

// Capacity returns the pool's total element capacity.
func (p *GpuPool) Capacity() uint32 { return p.capacity }

// UploadChanges emits one barrier transitioning the device buffer
// to TransferDst followed by one CopyBuffer call per dirty
// allocation, each carrying that allocation's single region, then
// clears the dirty set. The regions are not merged into one copy
// command. It is a no-op when HasChanges is false.
func (p *GpuPool) UploadChanges(cb driver.CmdBuffer) {
	if !p.HasChanges() {
		return
	}
	cb.Barrier([]driver.Barrier{{
		SyncBefore:   driver.SCopy,
		SyncAfter:    driver.SCopy,
		AccessBefore: driver.AAnyWrite,
		AccessAfter:  driver.ACopyWrite,
	}})
	for offset := range p.dirty {
		count, ok := p.validAlloc[offset]
		if !ok {
			log.Printf("engine: gpupool upload_changes: invalid offset %d in dirty set", offset)
			continue
		}
		off := int64(offset) * p.elemSize
		size := int64(count) * p.elemSize
		cb.CopyBuffer(&driver.BufferCopy{
			From:    p.host,
			FromOff: off,
			To:      p.device,
			ToOff:   off,
			Size:    size,
		})
	}
	p.dirty = make(map[uint32]struct{})
}

func littleEndianPutU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func littleEndianU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
