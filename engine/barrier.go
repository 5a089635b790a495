// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import "github.com/ashlarengine/runtime/driver"

// ResUsage is a semantic resource access class. Every Image and
// Buffer carries one as its current usage tag; barrier operations
// are the only way to change it (§8 invariant 1).
type ResUsage int

// Resource usage classes.
const (
	UsageNone ResUsage = iota
	UsageGraphicsShaderRead
	UsageGraphicsShaderReadWrite
	UsageComputeShaderRead
	UsageComputeShaderReadWrite
	UsageTransferDst
	UsageTransferSrc
	UsageColorAttachment
	UsageDepthAttachment
	UsagePresent
	UsageIndexBuffer
	UsageVertexBuffer
	UsageDrawCommands
	UsageHostWrite
)

// accessClass describes one side (source or destination) of a
// usage's position in a barrier.
type accessClass struct {
	sync   driver.Sync
	access driver.Access
	layout driver.Layout
}

// srcTable and dstTable implement the fixed access table (§4.5),
// condensed from the source. Usages with no meaningful layout
// (buffer-only usages) carry driver.LUndefined, which callers must
// not place into an image Transition.
var srcTable = map[ResUsage]accessClass{
	UsageNone:                    {driver.SNone, driver.ANone, driver.LUndefined},
	UsageGraphicsShaderRead:      {driver.SVertexShading | driver.SFragmentShading, driver.AShaderRead, driver.LShaderRead},
	UsageGraphicsShaderReadWrite: {driver.SVertexShading | driver.SFragmentShading, driver.AShaderWrite, driver.LCommon},
	UsageComputeShaderRead:       {driver.SComputeShading, driver.AShaderRead, driver.LShaderRead},
	UsageComputeShaderReadWrite:  {driver.SComputeShading, driver.AShaderWrite, driver.LCommon},
	UsageTransferDst:             {driver.SCopy, driver.ACopyWrite, driver.LCopyDst},
	UsageTransferSrc:             {driver.SCopy, driver.ANone, driver.LCopySrc},
	UsageColorAttachment:         {driver.SColorOutput, driver.AColorWrite, driver.LColorTarget},
	UsageDepthAttachment:         {driver.SDSOutput, driver.ADSWrite, driver.LDSTarget},
	UsagePresent:                 {driver.SNone, driver.ANone, driver.LPresent},
	UsageIndexBuffer:             {driver.SVertexInput, driver.AIndexBufRead, driver.LUndefined},
	UsageVertexBuffer:            {driver.SVertexInput, driver.AVertexBufRead, driver.LUndefined},
	UsageDrawCommands:            {driver.SDraw, driver.AIndirectRead, driver.LUndefined},
	UsageHostWrite:               {driver.SHost, driver.AHostWrite, driver.LUndefined},
}

var dstTable = map[ResUsage]accessClass{
	UsageNone:                    {driver.SNone, driver.ANone, driver.LUndefined},
	UsageGraphicsShaderRead:      {driver.SVertexShading | driver.SFragmentShading, driver.AShaderRead, driver.LShaderRead},
	UsageGraphicsShaderReadWrite: {driver.SVertexShading | driver.SFragmentShading, driver.AShaderRead | driver.AShaderWrite, driver.LCommon},
	UsageComputeShaderRead:       {driver.SComputeShading, driver.AShaderRead, driver.LShaderRead},
	UsageComputeShaderReadWrite:  {driver.SComputeShading, driver.AShaderRead | driver.AShaderWrite, driver.LCommon},
	UsageTransferDst:             {driver.SCopy, driver.ACopyWrite, driver.LCopyDst},
	UsageTransferSrc:             {driver.SCopy, driver.ACopyRead, driver.LCopySrc},
	UsageColorAttachment:         {driver.SColorOutput, driver.AColorRead | driver.AColorWrite, driver.LColorTarget},
	UsageDepthAttachment:         {driver.SDSOutput, driver.ADSRead | driver.ADSWrite, driver.LDSTarget},
	UsagePresent:                 {driver.SNone, driver.ANone, driver.LPresent},
	UsageIndexBuffer:             {driver.SVertexInput, driver.AIndexBufRead, driver.LUndefined},
	UsageVertexBuffer:            {driver.SVertexInput, driver.AVertexBufRead, driver.LUndefined},
	UsageDrawCommands:            {driver.SDraw, driver.AIndirectRead, driver.LUndefined},
	UsageHostWrite:               {driver.SHost, driver.AHostWrite, driver.LUndefined},
}

// imageBarrier builds the Transition for a usage change on an image
// resource, or reports noop == true for the graphics-shader-read to
// graphics-shader-read special case (§4.5).
func imageBarrier(from, to ResUsage, view driver.ImageView) (t driver.Transition, noop bool) {
	if from == UsageGraphicsShaderRead && to == UsageGraphicsShaderRead {
		return t, true
	}
	s, d := srcTable[from], dstTable[to]
	t = driver.Transition{
		Barrier: driver.Barrier{
			SyncBefore:   s.sync,
			SyncAfter:    d.sync,
			AccessBefore: s.access,
			AccessAfter:  d.access,
		},
		LayoutBefore: s.layout,
		LayoutAfter:  d.layout,
		IView:        view,
	}
	return t, false
}

// bufferBarrier builds the Barrier for a usage change on a buffer
// resource.
func bufferBarrier(from, to ResUsage) driver.Barrier {
	s, d := srcTable[from], dstTable[to]
	return driver.Barrier{
		SyncBefore:   s.sync,
		SyncAfter:    d.sync,
		AccessBefore: s.access,
		AccessAfter:  d.access,
	}
}

// clearImageBarrier is identical to imageBarrier except the source
// access is taken as UsageNone, for callers that know the previous
// contents are unneeded.
func clearImageBarrier(to ResUsage, view driver.ImageView) driver.Transition {
	t, _ := imageBarrier(UsageNone, to, view)
	return t
}

func clearBufferBarrier(to ResUsage) driver.Barrier {
	return bufferBarrier(UsageNone, to)
}
