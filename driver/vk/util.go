// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package vk

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashlarengine/runtime/driver"
)

// unsafePtr returns a pointer to data's first byte, for Vulkan calls
// that take a raw void pointer (e.g. vkCmdPushConstants).
func unsafePtr(data []byte) unsafe.Pointer {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Pointer(&data[0])
}

// pNext returns an unsafe.Pointer to an already-addressed Vulkan
// extension struct, for chaining into a pNext field.
func pNext[T any](v *T) unsafe.Pointer {
	return unsafe.Pointer(v)
}

// formatTable maps driver.PixelFmt to the equivalent vk.Format.
var formatTable = map[driver.PixelFmt]vk.Format{
	driver.RGBA8un:    vk.FormatR8g8b8a8Unorm,
	driver.RGBA8n:     vk.FormatR8g8b8a8Snorm,
	driver.RGBA8sRGB:  vk.FormatR8g8b8a8Srgb,
	driver.BGRA8un:    vk.FormatB8g8r8a8Unorm,
	driver.BGRA8sRGB:  vk.FormatB8g8r8a8Srgb,
	driver.RG8un:      vk.FormatR8g8Unorm,
	driver.RG8n:       vk.FormatR8g8Snorm,
	driver.R8un:       vk.FormatR8Unorm,
	driver.R8n:        vk.FormatR8Snorm,
	driver.RGBA16f:    vk.FormatR16g16b16a16Sfloat,
	driver.RG16f:      vk.FormatR16g16Sfloat,
	driver.R16f:       vk.FormatR16Sfloat,
	driver.RGBA32f:    vk.FormatR32g32b32a32Sfloat,
	driver.RG32f:      vk.FormatR32g32Sfloat,
	driver.R32f:       vk.FormatR32Sfloat,
	driver.D16un:      vk.FormatD16Unorm,
	driver.D32f:       vk.FormatD32Sfloat,
	driver.S8ui:       vk.FormatS8Uint,
	driver.D24unS8ui:  vk.FormatD24UnormS8Uint,
	driver.D32fS8ui:   vk.FormatD32SfloatS8Uint,
}

func toVkFormat(pf driver.PixelFmt) vk.Format {
	if f, ok := formatTable[pf]; ok {
		return f
	}
	return vk.FormatUndefined
}

func fromVkFormat(f vk.Format) driver.PixelFmt {
	for k, v := range formatTable {
		if v == f {
			return k
		}
	}
	return driver.RGBA8un
}

// stageTable maps individual driver.Sync bits to vk.PipelineStageFlagBits.
var stageTable = []struct {
	bit driver.Sync
	vk  vk.PipelineStageFlagBits
}{
	{driver.SVertexInput, vk.PipelineStageVertexInputBit},
	{driver.SVertexShading, vk.PipelineStageVertexShaderBit},
	{driver.SFragmentShading, vk.PipelineStageFragmentShaderBit},
	{driver.SColorOutput, vk.PipelineStageColorAttachmentOutputBit},
	{driver.SDSOutput, vk.PipelineStageLateFragmentTestsBit},
	{driver.SComputeShading, vk.PipelineStageComputeShaderBit},
	{driver.SDraw, vk.PipelineStageDrawIndirectBit},
	{driver.SResolve, vk.PipelineStageTransferBit},
	{driver.SCopy, vk.PipelineStageTransferBit},
	{driver.SHost, vk.PipelineStageHostBit},
	{driver.SAll, vk.PipelineStageAllCommandsBit},
}

func toVkStageMask(s driver.Sync) vk.PipelineStageFlags {
	if s == driver.SNone {
		return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	var m vk.PipelineStageFlags
	for _, e := range stageTable {
		if s&e.bit != 0 {
			m |= vk.PipelineStageFlags(e.vk)
		}
	}
	return m
}

var accessTable = []struct {
	bit driver.Access
	vk  vk.AccessFlagBits
}{
	{driver.AVertexBufRead, vk.AccessVertexAttributeReadBit},
	{driver.AIndexBufRead, vk.AccessIndexReadBit},
	{driver.AColorRead, vk.AccessColorAttachmentReadBit},
	{driver.AColorWrite, vk.AccessColorAttachmentWriteBit},
	{driver.ADSRead, vk.AccessDepthStencilAttachmentReadBit},
	{driver.ADSWrite, vk.AccessDepthStencilAttachmentWriteBit},
	{driver.AResolveRead, vk.AccessColorAttachmentReadBit},
	{driver.AResolveWrite, vk.AccessColorAttachmentWriteBit},
	{driver.ACopyRead, vk.AccessTransferReadBit},
	{driver.ACopyWrite, vk.AccessTransferWriteBit},
	{driver.AShaderRead, vk.AccessShaderReadBit},
	{driver.AShaderWrite, vk.AccessShaderWriteBit},
	{driver.AHostWrite, vk.AccessHostWriteBit},
	{driver.AIndirectRead, vk.AccessIndirectCommandReadBit},
	{driver.AAnyRead, vk.AccessMemoryReadBit},
	{driver.AAnyWrite, vk.AccessMemoryWriteBit},
}

func toVkAccessMask(a driver.Access) vk.AccessFlags {
	var m vk.AccessFlags
	for _, e := range accessTable {
		if a&e.bit != 0 {
			m |= vk.AccessFlags(e.vk)
		}
	}
	return m
}

var layoutTable = map[driver.Layout]vk.ImageLayout{
	driver.LUndefined:   vk.ImageLayoutUndefined,
	driver.LCommon:      vk.ImageLayoutGeneral,
	driver.LColorTarget: vk.ImageLayoutColorAttachmentOptimal,
	driver.LDSTarget:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	driver.LDSRead:      vk.ImageLayoutDepthStencilReadOnlyOptimal,
	driver.LResolveSrc:  vk.ImageLayoutTransferSrcOptimal,
	driver.LResolveDst:  vk.ImageLayoutTransferDstOptimal,
	driver.LCopySrc:     vk.ImageLayoutTransferSrcOptimal,
	driver.LCopyDst:     vk.ImageLayoutTransferDstOptimal,
	driver.LShaderRead:  vk.ImageLayoutShaderReadOnlyOptimal,
	driver.LPresent:     vk.ImageLayoutPresentSrc,
}

func toVkLayout(l driver.Layout) vk.ImageLayout {
	if v, ok := layoutTable[l]; ok {
		return v
	}
	return vk.ImageLayoutUndefined
}

func toVkFilter(f driver.Filter) vk.Filter {
	if f == driver.FNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func toVkMipmapMode(f driver.Filter) vk.SamplerMipmapMode {
	if f == driver.FNearest {
		return vk.SamplerMipmapModeNearest
	}
	return vk.SamplerMipmapModeLinear
}

func toVkAddrMode(a driver.AddrMode) vk.SamplerAddressMode {
	switch a {
	case driver.AMirror:
		return vk.SamplerAddressModeMirroredRepeat
	case driver.AClamp:
		return vk.SamplerAddressModeClampToEdge
	default:
		return vk.SamplerAddressModeRepeat
	}
}

func toVkCmpOp(c driver.CmpFunc) vk.CompareOp {
	switch c {
	case driver.CNever:
		return vk.CompareOpNever
	case driver.CLess:
		return vk.CompareOpLess
	case driver.CEqual:
		return vk.CompareOpEqual
	case driver.CLessEqual:
		return vk.CompareOpLessOrEqual
	case driver.CGreater:
		return vk.CompareOpGreater
	case driver.CNotEqual:
		return vk.CompareOpNotEqual
	case driver.CGreaterEqual:
		return vk.CompareOpGreaterOrEqual
	default:
		return vk.CompareOpAlways
	}
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// findMemoryType returns the first memory type index satisfying both
// typeBits (one bit per acceptable vk.MemoryType index) and props.
func (d *Driver) findMemoryType(typeBits uint32, props vk.MemoryPropertyFlags) (uint32, bool) {
	for i := uint32(0); i < d.memProp.MemoryTypeCount; i++ {
		mt := d.memProp.MemoryTypes[i]
		if typeBits&(1<<i) == 0 {
			continue
		}
		if vk.MemoryPropertyFlags(mt.PropertyFlags)&props == props {
			return i, true
		}
	}
	return 0, false
}
