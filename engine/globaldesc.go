// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import "github.com/ashlarengine/runtime/driver"

// GlobalDescSet is the fixed four-set descriptor layout every
// compute/graphics program links against (§4.2.1): set 0 is one
// dynamic uniform buffer bound over the renderer's uniform ring
// buffer, sets 1-3 are the Device's three bindless arrays (sampled
// images, storage images, storage buffers). Building it here keeps
// the layout assembly in the one place that already owns every heap
// it draws from, rather than leaving set construction to whatever
// code happens to record a frame.
type GlobalDescSet struct {
	uboHeap driver.DescHeap
	table   driver.DescTable
}

// Table returns the assembled four-set descriptor table, ready to
// bind once per frame with BindGraphicsDescTable/BindDescTable.
func (g *GlobalDescSet) Table() driver.DescTable { return g.table }

// Destroy releases the dynamic-UBO heap and the assembled table. The
// three bindless heaps are owned by their respective BindlessSet and
// outlive a GlobalDescSet.
func (g *GlobalDescSet) Destroy() {
	g.table.Destroy()
	g.uboHeap.Destroy()
}

// NewGlobalDescSet builds the global descriptor table over
// uniformBuf (a RingBuffer's backing Buffer, typically the
// Renderer's per-frame uniform ring spanning uniformRange bytes)
// plus d's three bindless arrays, in the fixed set 0..3 order
// (§4.2.1, §6 "descriptor-set layout").
func (d *Device) NewGlobalDescSet(uniformBuf driver.Buffer, uniformRange int64) (*GlobalDescSet, error) {
	heap, err := d.gpu.NewDescHeap([]driver.Descriptor{{
		Type:   driver.DConstant,
		Stages: driver.SAllStages,
		Nr:     0,
		Len:    1,
	}})
	if err != nil {
		return nil, err
	}
	if err := heap.New(1); err != nil {
		heap.Destroy()
		return nil, err
	}
	heap.SetBuffer(0, 0, 0, []driver.Buffer{uniformBuf}, []int64{0}, []int64{uniformRange})

	table, err := d.gpu.NewDescTable([]driver.DescHeap{
		heap,
		d.sampledImages.Heap(),
		d.storageImages.Heap(),
		d.storageBuffers.Heap(),
	})
	if err != nil {
		heap.Destroy()
		return nil, err
	}
	return &GlobalDescSet{uboHeap: heap, table: table}, nil
}
