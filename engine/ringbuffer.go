// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"fmt"

	"github.com/ashlarengine/runtime/driver"
)

// frameRegion records the monotonic [end-size, end) byte range a
// single frame allocated from a RingBuffer.
type frameRegion struct {
	end  int64
	size int64
}

// RingBuffer is a per-frame bump allocator over a mapped
// host-visible buffer. Allocations advance a monotonically
// increasing offset that wraps to the next buffer-sized boundary
// when it would split across the end of the buffer; StartFrame
// resets the running per-frame size counter and EndFrame records
// this frame's region so future allocations can be checked against
// it.
//
// Unlike the system this was distilled from — which tracks only
// the immediately preceding frame's region — this RingBuffer tracks
// one region per frame still possibly in flight (FrameQueueLength-1
// of them, see SPEC_FULL §3/§9) and guards against overlapping the
// oldest of them, which is the tightest constraint.
type RingBuffer struct {
	buf       driver.Buffer
	size      int64
	alignment int64

	offset        int64
	thisFrameSize int64

	regions []frameRegion // oldest first, capacity FrameQueueLength-1
}

// NewRingBuffer creates a ring buffer of the given size, backed by a
// host-visible, GPU-readable buffer. Allocations are rounded up to
// a multiple of align (the caller passes max(256,
// Limits().MinUniformBufferAlignment) per SPEC_FULL §3).
func NewRingBuffer(gpu driver.GPU, size int64, align int64, usg driver.Usage) (*RingBuffer, error) {
	if align < 1 {
		align = 256
	}
	buf, err := gpu.NewBuffer(size, true, usg)
	if err != nil {
		return nil, err
	}
	return &RingBuffer{buf: buf, size: size, alignment: align}, nil
}

// Destroy releases the underlying buffer.
func (r *RingBuffer) Destroy() { r.buf.Destroy() }

// Buffer returns the backing driver.Buffer, for binding descriptors
// with a dynamic offset.
func (r *RingBuffer) Buffer() driver.Buffer { return r.buf }

func (r *RingBuffer) align(n int64) int64 {
	return ((n + r.alignment - 1) / r.alignment) * r.alignment
}

// Allocate reserves len bytes and returns a byte slice view of the
// region plus the offset (within the buffer, after wrap) it starts
// at. It panics if len rounds up to more than half the ring's size,
// since such a request could never satisfy the non-overlap
// invariant against an earlier in-flight frame (§8 "RingBuffer
// non-overlap" bounds allocations to size/2).
func (r *RingBuffer) Allocate(length int64) (data []byte, offset int64) {
	aligned := r.align(length)
	if aligned > r.size/2 {
		panic(fmt.Sprintf("engine: ringbuffer allocate: %d bytes exceeds half of ring size %d", length, r.size))
	}

	if len(r.regions) > 0 {
		oldest := r.regions[0]
		oldestStart := oldest.end - oldest.size
		if r.offset+aligned >= oldestStart+r.size {
			panic("engine: ringbuffer allocate: would overlap a frame still in flight")
		}
	}

	if (r.offset%r.size)+aligned >= r.size {
		r.offset = ((r.offset / r.size) + 1) * r.size
	}

	allocOffset := r.offset % r.size
	data = r.buf.Bytes()[allocOffset : allocOffset+length]

	r.offset += aligned
	r.thisFrameSize += aligned

	return data, allocOffset
}

// StartFrame resets the running per-frame allocation size.
func (r *RingBuffer) StartFrame() {
	r.thisFrameSize = 0
}

// EndFrame records this frame's allocated region, evicting the
// oldest tracked region once more than FrameQueueLength-1 are held.
func (r *RingBuffer) EndFrame() {
	r.regions = append(r.regions, frameRegion{end: r.offset, size: r.thisFrameSize})
	if len(r.regions) > FrameQueueLength-1 {
		r.regions = r.regions[len(r.regions)-(FrameQueueLength-1):]
	}
}
