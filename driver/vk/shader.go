// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package vk

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashlarengine/runtime/driver"
)

// NewShaderCode creates a shader module from SPIR-V bytecode.
func (d *Driver) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    sliceUint32(data),
	}
	var mod vk.ShaderModule
	if res := vk.CreateShaderModule(d.device, &info, nil, &mod); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateShaderModule: %v", driver.ErrFatal, res)
	}
	return &ShaderCode{dev: d.device, mod: mod}, nil
}

// sliceUint32 reinterprets a SPIR-V byte slice as the uint32 slice
// vkCreateShaderModule expects. A length that is not a multiple of 4
// is zero-padded up to a whole number of 32-bit words.
func sliceUint32(data []byte) []uint32 {
	if len(data)%4 != 0 {
		padded := make([]byte, (len(data)+3)&^3)
		copy(padded, data)
		data = padded
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

var stageFlagTable = []struct {
	bit driver.Stage
	vk  vk.ShaderStageFlagBits
}{
	{driver.SVertex, vk.ShaderStageVertexBit},
	{driver.SFragment, vk.ShaderStageFragmentBit},
	{driver.SCompute, vk.ShaderStageComputeBit},
}

func toVkShaderStageFlags(s driver.Stage) vk.ShaderStageFlags {
	var m vk.ShaderStageFlags
	for _, e := range stageFlagTable {
		if s&e.bit != 0 {
			m |= vk.ShaderStageFlags(e.vk)
		}
	}
	return m
}

// ShaderCode implements driver.ShaderCode over a single VkShaderModule.
type ShaderCode struct {
	dev vk.Device
	mod vk.ShaderModule
}

// Destroy destroys the underlying VkShaderModule.
func (s *ShaderCode) Destroy() { vk.DestroyShaderModule(s.dev, s.mod, nil) }
