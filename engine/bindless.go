// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"log"

	"github.com/ashlarengine/runtime/driver"
	"github.com/ashlarengine/runtime/internal/bitm"
)

// BindlessKind identifies which of a Device's three bindless arrays
// a descriptor belongs to.
type BindlessKind int

// Bindless array kinds.
const (
	BindlessSampledImage BindlessKind = iota
	BindlessStorageImage
	BindlessStorageBuffer
)

// BindlessDescriptor is the payload bound into a bindless slot. Only
// the field matching the array's BindlessKind is meaningful.
type BindlessDescriptor struct {
	View   driver.ImageView
	Sampler driver.Sampler
	Buffer driver.Buffer
	Size   int64
}

// BindlessSet is a single large partially-bound descriptor array
// with free-list slot allocation and deferred bind/unbind batching.
// Slot BindlessNullSlot is reserved at construction and never
// allocated to a caller; unbinding a slot points its descriptor
// back at that sentinel rather than leaving it dangling.
type BindlessSet struct {
	kind       BindlessKind
	heap       driver.DescHeap
	free       bitm.Bitm[uint32]
	cap        int
	descs      []BindlessDescriptor
	pendBind   []uint32
	pendUnbind []uint32
}

// NewBindlessSet creates a BindlessSet backed by a descriptor heap
// with count partially-bound slots, reserving slot 0 as the null
// sentinel.
func NewBindlessSet(gpu driver.GPU, kind BindlessKind, count int) (*BindlessSet, error) {
	var dt driver.DescType
	switch kind {
	case BindlessSampledImage:
		dt = driver.DTexture
	case BindlessStorageImage:
		dt = driver.DImage
	case BindlessStorageBuffer:
		dt = driver.DBuffer
	}
	heap, err := gpu.NewDescHeap([]driver.Descriptor{{
		Type:        dt,
		Stages:      driver.SAllStages,
		Nr:          0,
		Len:         count,
		PartialBind: true,
	}})
	if err != nil {
		return nil, err
	}
	if err := heap.New(1); err != nil {
		heap.Destroy()
		return nil, err
	}
	s := &BindlessSet{
		kind:  kind,
		heap:  heap,
		cap:   count,
		descs: make([]BindlessDescriptor, count),
	}
	s.free.Grow(1 + (count-1)/32)
	// Reserve slot 0: consume it from the free list up front so
	// Bind never hands it out.
	s.free.Set(BindlessNullSlot)
	return s, nil
}

// Destroy releases the underlying descriptor heap.
func (s *BindlessSet) Destroy() {
	s.heap.Destroy()
}

// Bind allocates a free slot, records desc as pending, and returns
// the slot index. The binding is not visible to shaders until the
// next Update.
func (s *BindlessSet) Bind(desc BindlessDescriptor) uint32 {
	idx, ok := s.free.Search()
	if !ok || idx >= s.cap {
		log.Printf("engine: bindless set exhausted (capacity %d)", s.cap)
		return BindlessNullSlot
	}
	s.free.Set(idx)
	for len(s.descs) <= idx {
		s.descs = append(s.descs, BindlessDescriptor{})
	}
	s.descs[idx] = desc
	s.pendBind = append(s.pendBind, uint32(idx))
	return uint32(idx)
}

// Unbind releases index back to the free list and schedules it to
// read back as the null sentinel on the next Update, unless index
// is also pending from a same-batch Bind (§8 Bindless idempotence).
// Unbinding an already-free or reserved slot is a programming error
// and is logged and ignored (§7).
func (s *BindlessSet) Unbind(index uint32) {
	if index == BindlessNullSlot || !s.free.IsSet(int(index)) {
		log.Printf("engine: unbind of unallocated bindless slot %d", index)
		return
	}
	s.descs[index] = BindlessDescriptor{}
	s.free.Unset(int(index))
	s.pendUnbind = append(s.pendUnbind, index)
}

// Update flushes pending_bind and pending_unbind into the
// descriptor heap: one write per pending bind (using the resource's
// current view/sampler/buffer), and one copy-from-slot-0 per
// pending unbind that is not also pending a bind in this same
// batch. Both lists are cleared afterward.
func (s *BindlessSet) Update() {
	if len(s.pendBind) == 0 && len(s.pendUnbind) == 0 {
		return
	}
	for _, idx := range s.pendBind {
		d := s.descs[idx]
		switch s.kind {
		case BindlessSampledImage, BindlessStorageImage:
			s.heap.SetImage(0, 0, int(idx), []driver.ImageView{d.View})
			if s.kind == BindlessSampledImage {
				s.heap.SetSampler(0, 0, int(idx), []driver.Sampler{d.Sampler})
			}
		case BindlessStorageBuffer:
			s.heap.SetBuffer(0, 0, int(idx), []driver.Buffer{d.Buffer}, []int64{0}, []int64{d.Size})
		}
	}
nextUnbind:
	for _, idx := range s.pendUnbind {
		for _, bound := range s.pendBind {
			if bound == idx {
				continue nextUnbind
			}
		}
		s.heap.CopyDescriptor(0, 0, BindlessNullSlot, int(idx))
	}
	s.pendBind = s.pendBind[:0]
	s.pendUnbind = s.pendUnbind[:0]
}

// Heap returns the underlying descriptor heap, for binding into a
// DescTable.
func (s *BindlessSet) Heap() driver.DescHeap { return s.heap }
