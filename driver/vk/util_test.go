// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package vk

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashlarengine/runtime/driver"
)

func TestToVkFormatRoundTrip(t *testing.T) {
	for pf := range formatTable {
		vf := toVkFormat(pf)
		if vf == vk.FormatUndefined {
			t.Errorf("toVkFormat(%v) = Undefined, want a mapped format", pf)
		}
		if got := fromVkFormat(vf); got != pf {
			t.Errorf("fromVkFormat(toVkFormat(%v)) = %v, want %v", pf, got, pf)
		}
	}
}

func TestToVkFormatUnknownReturnsUndefined(t *testing.T) {
	if f := toVkFormat(driver.PixelFmt(-1)); f != vk.FormatUndefined {
		t.Errorf("toVkFormat(unknown) = %v, want Undefined", f)
	}
}

func TestToVkStageMaskNoneIsTopOfPipe(t *testing.T) {
	if m := toVkStageMask(driver.SNone); m != vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit) {
		t.Errorf("toVkStageMask(SNone) = %v, want TopOfPipe", m)
	}
}

func TestToVkStageMaskCombinesBits(t *testing.T) {
	m := toVkStageMask(driver.SVertexInput | driver.SFragmentShading)
	want := vk.PipelineStageFlags(vk.PipelineStageVertexInputBit) | vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	if m != want {
		t.Errorf("toVkStageMask(SVertexInput|SFragmentShading) = %v, want %v", m, want)
	}
}

func TestToVkAccessMaskCombinesBits(t *testing.T) {
	m := toVkAccessMask(driver.AColorRead | driver.AColorWrite)
	want := vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	if m != want {
		t.Errorf("toVkAccessMask(AColorRead|AColorWrite) = %v, want %v", m, want)
	}
}

func TestToVkLayoutKnownAndUnknown(t *testing.T) {
	if l := toVkLayout(driver.LColorTarget); l != vk.ImageLayoutColorAttachmentOptimal {
		t.Errorf("toVkLayout(LColorTarget) = %v, want ColorAttachmentOptimal", l)
	}
	if l := toVkLayout(driver.Layout(-1)); l != vk.ImageLayoutUndefined {
		t.Errorf("toVkLayout(unknown) = %v, want Undefined", l)
	}
}

func TestToVkFilterAndMipmapMode(t *testing.T) {
	if f := toVkFilter(driver.FNearest); f != vk.FilterNearest {
		t.Errorf("toVkFilter(FNearest) = %v, want FilterNearest", f)
	}
	if f := toVkFilter(driver.FLinear); f != vk.FilterLinear {
		t.Errorf("toVkFilter(FLinear) = %v, want FilterLinear", f)
	}
	if m := toVkMipmapMode(driver.FNearest); m != vk.SamplerMipmapModeNearest {
		t.Errorf("toVkMipmapMode(FNearest) = %v, want Nearest", m)
	}
	if m := toVkMipmapMode(driver.FLinear); m != vk.SamplerMipmapModeLinear {
		t.Errorf("toVkMipmapMode(FLinear) = %v, want Linear", m)
	}
}

func TestToVkAddrMode(t *testing.T) {
	cases := map[driver.AddrMode]vk.SamplerAddressMode{
		driver.AWrap:   vk.SamplerAddressModeRepeat,
		driver.AMirror: vk.SamplerAddressModeMirroredRepeat,
		driver.AClamp:  vk.SamplerAddressModeClampToEdge,
	}
	for in, want := range cases {
		if got := toVkAddrMode(in); got != want {
			t.Errorf("toVkAddrMode(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestToVkCmpOpDefaultsToAlways(t *testing.T) {
	if c := toVkCmpOp(driver.CmpFunc(-1)); c != vk.CompareOpAlways {
		t.Errorf("toVkCmpOp(unknown) = %v, want Always", c)
	}
	if c := toVkCmpOp(driver.CLess); c != vk.CompareOpLess {
		t.Errorf("toVkCmpOp(CLess) = %v, want Less", c)
	}
}

func TestVkBool(t *testing.T) {
	if vkBool(true) != vk.True {
		t.Error("vkBool(true) != vk.True")
	}
	if vkBool(false) != vk.False {
		t.Error("vkBool(false) != vk.False")
	}
}

func TestUnsafePtrEmptyIsNil(t *testing.T) {
	if p := unsafePtr(nil); p != nil {
		t.Error("unsafePtr(nil) expected nil pointer")
	}
	if p := unsafePtr([]byte{}); p != nil {
		t.Error("unsafePtr(empty slice) expected nil pointer")
	}
	if p := unsafePtr([]byte{1, 2, 3}); p == nil {
		t.Error("unsafePtr(non-empty slice) expected a non-nil pointer")
	}
}
