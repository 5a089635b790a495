// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"fmt"

	"github.com/ashlarengine/runtime/driver"
)

// RenderState is the per-variant state a GraphicsProgram's compiled
// pipeline variants are keyed by: everything Compile is allowed to
// vary between variants sharing the same shader pair, descriptor
// table and attachment format.
type RenderState struct {
	DepthTest          bool
	DepthWrite         bool
	DepthBias          bool
	Cull               driver.CullMode
	Topology           driver.Topology
	ConservativeRaster bool
	AlphaBlend         bool
}

// GraphicsProgram is a render-pass-compatible shader pair plus a
// list of compiled pipeline variants, keyed by the positional index
// Compile returns. Vertex input is always fixed to empty: geometry
// is read back in the shader via descriptor-indexed storage buffers
// rather than fixed-function vertex attributes (§4.4).
type GraphicsProgram struct {
	dev  *Device
	vert driver.ShaderFunc
	frag driver.ShaderFunc
	desc driver.DescTable
	fmt  FramebufferFormat

	pushConstSize int
	variants      []driver.Pipeline
	states        []RenderState
}

// NewGraphicsProgram creates a program from a compiled vertex and
// fragment shader pair. pushConstSize must match every other
// program built on dev (Open Question decision 4).
func NewGraphicsProgram(dev *Device, vert, frag driver.ShaderFunc, desc driver.DescTable, format FramebufferFormat, pushConstSize int) (*GraphicsProgram, error) {
	if err := dev.CheckPushConstantSize(pushConstSize); err != nil {
		return nil, err
	}
	return &GraphicsProgram{dev: dev, vert: vert, frag: frag, desc: desc, fmt: format, pushConstSize: pushConstSize}, nil
}

// Compile builds a new pipeline variant for rs against pass/subpass,
// appends it, and returns its index.
func (p *GraphicsProgram) Compile(rs RenderState, pass driver.RenderPass, subpass int) (int, error) {
	depthCmp := driver.CAlways
	if rs.DepthTest {
		depthCmp = driver.CLess
	}

	color := make([]driver.ColorBlend, len(p.fmt.Color))
	for i := range color {
		if rs.AlphaBlend {
			color[i] = driver.ColorBlend{
				Blend:     true,
				WriteMask: driver.CAll,
				Op:        [2]driver.BlendOp{driver.BAdd, driver.BAdd},
				SrcFac:    [2]driver.BlendFac{driver.BOne, driver.BOne},
				DstFac:    [2]driver.BlendFac{driver.BInvSrcAlpha, driver.BOne},
			}
		} else {
			color[i] = driver.ColorBlend{WriteMask: driver.CAll}
		}
	}

	state := driver.GraphState{
		VertFunc: p.vert,
		FragFunc: p.frag,
		Desc:     p.desc,
		Input:    nil,
		Topology: rs.Topology,
		Raster: driver.RasterState{
			Clockwise: false,
			Cull:      rs.Cull,
			Fill:      driver.FFill,
			Conserv:   rs.ConservativeRaster,
			DepthBias: rs.DepthBias,
		},
		Samples: 1,
		DS: driver.DSState{
			DepthTest:  rs.DepthTest,
			DepthWrite: rs.DepthWrite,
			DepthCmp:   depthCmp,
		},
		Blend:         driver.BlendState{IndependentBlend: false, Color: color},
		Pass:          pass,
		Subpass:       subpass,
		PushConstSize: p.pushConstSize,
	}
	pl, err := p.dev.GPU().NewPipeline(&state)
	if err != nil {
		return -1, err
	}
	p.variants = append(p.variants, pl)
	p.states = append(p.states, rs)
	return len(p.variants) - 1, nil
}

// Variant returns the pipeline compiled at index, or nil if index is
// out of range.
func (p *GraphicsProgram) Variant(index int) driver.Pipeline {
	if index < 0 || index >= len(p.variants) {
		return nil
	}
	return p.variants[index]
}

// Destroy releases every compiled variant.
func (p *GraphicsProgram) Destroy() {
	for _, pl := range p.variants {
		pl.Destroy()
	}
}

// ComputeProgram is a single compiled pipeline bound to one shader
// module.
type ComputeProgram struct {
	pipeline driver.Pipeline
}

// NewComputeProgram compiles fn into a compute pipeline.
// pushConstSize must match every other pipeline built on dev.
func NewComputeProgram(dev *Device, fn driver.ShaderFunc, desc driver.DescTable, pushConstSize int) (*ComputeProgram, error) {
	if err := dev.CheckPushConstantSize(pushConstSize); err != nil {
		return nil, err
	}
	state := driver.CompState{Func: fn, Desc: desc, PushConstSize: pushConstSize}
	pl, err := dev.GPU().NewPipeline(&state)
	if err != nil {
		return nil, err
	}
	return &ComputeProgram{pipeline: pl}, nil
}

// Pipeline returns the compiled compute pipeline.
func (p *ComputeProgram) Pipeline() driver.Pipeline { return p.pipeline }

// Destroy releases the compiled pipeline.
func (p *ComputeProgram) Destroy() { p.pipeline.Destroy() }

// localDescEntry is one cached local descriptor set: the table built
// over it plus the dynamic offsets it must be bound with, in binding
// order.
type localDescEntry struct {
	table   driver.DescTable
	offsets []int64
	slot    int
}

// localDescCache is the small per-program cache of local descriptor
// sets keyed by a content hash of the binding tuple, so re-binding
// the same (buffer, offset, size) combination across draws in the
// same frame does not reallocate a set (§[FULL] supplemented
// feature, grounded in the "DescriptorSet (local)" data-model entry).
type localDescCache struct {
	dev      *Device
	heap     driver.DescHeap
	capacity int
	nextSlot int
	byHash   map[uint64]*localDescEntry
	lru      []uint64
}

// newLocalDescCache creates a cache over a heap sized for capacity
// dynamic-uniform descriptors.
func newLocalDescCache(dev *Device, capacity int) (*localDescCache, error) {
	heap, err := dev.GPU().NewDescHeap([]driver.Descriptor{{
		Type:   driver.DConstant,
		Stages: driver.SAllStages,
		Nr:     0,
		Len:    capacity,
	}})
	if err != nil {
		return nil, err
	}
	if err := heap.New(1); err != nil {
		heap.Destroy()
		return nil, err
	}
	return &localDescCache{dev: dev, heap: heap, capacity: capacity, byHash: make(map[uint64]*localDescEntry)}, nil
}

// Destroy releases the underlying descriptor heap.
func (c *localDescCache) Destroy() { c.heap.Destroy() }

// contentHash combines a buffer's identity (its backing pointer,
// approximated here by its Cap/Address when available) with an
// offset and size into a single lookup key.
func contentHash(buf driver.Buffer, off, size int64) uint64 {
	addr, err := buf.Address()
	if err != nil {
		addr = uint64(buf.Cap())
	}
	h := addr*1099511628211 + uint64(off)*16777619 + uint64(size)
	return h ^ (h >> 33)
}

// Get returns the cached descriptor table and dynamic offset for
// (buf, off, size), building and writing a new slot if this exact
// tuple has not been bound before. When the cache is full, the
// least-recently-used slot is reused.
func (c *localDescCache) Get(buf driver.Buffer, off, size int64) (driver.DescTable, int64, error) {
	h := contentHash(buf, off, size)
	if e, ok := c.byHash[h]; ok {
		for i, k := range c.lru {
			if k == h {
				c.lru = append(c.lru[:i], c.lru[i+1:]...)
				c.lru = append(c.lru, h)
				break
			}
		}
		return e.table, off, nil
	}

	slot := c.nextSlot
	if c.nextSlot < c.capacity {
		c.nextSlot++
	} else if len(c.lru) > 0 {
		evict := c.lru[0]
		c.lru = c.lru[1:]
		slot = c.byHash[evict].slot
		delete(c.byHash, evict)
	} else {
		return nil, 0, fmt.Errorf("engine: local descriptor cache exhausted (capacity %d)", c.capacity)
	}

	c.heap.SetBuffer(0, 0, slot, []driver.Buffer{buf}, []int64{off}, []int64{size})
	table, err := c.dev.GPU().NewDescTable([]driver.DescHeap{c.heap})
	if err != nil {
		return nil, 0, err
	}
	e := &localDescEntry{table: table, offsets: []int64{off}, slot: slot}
	c.byHash[h] = e
	c.lru = append(c.lru, h)
	return table, off, nil
}
