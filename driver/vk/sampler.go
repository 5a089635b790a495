// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package vk

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashlarengine/runtime/driver"
)

// NewSampler creates a sampler from the given sampling state.
func (d *Driver) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               toVkFilter(spln.Mag),
		MinFilter:               toVkFilter(spln.Min),
		MipmapMode:              toVkMipmapMode(spln.Mipmap),
		AddressModeU:            toVkAddrMode(spln.AddrU),
		AddressModeV:            toVkAddrMode(spln.AddrV),
		AddressModeW:            toVkAddrMode(spln.AddrW),
		AnisotropyEnable:        vkBool(spln.MaxAniso > 1),
		MaxAnisotropy:           float32(spln.MaxAniso),
		CompareEnable:           vkBool(spln.Cmp != driver.CAlways),
		CompareOp:               toVkCmpOp(spln.Cmp),
		MinLod:                  spln.MinLOD,
		MaxLod:                  spln.MaxLOD,
		BorderColor:             vk.BorderColorFloatTransparentBlack,
		UnnormalizedCoordinates: vk.False,
	}
	var s vk.Sampler
	if res := vk.CreateSampler(d.device, &info, nil, &s); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateSampler: %v", driver.ErrFatal, res)
	}
	return &Sampler{dev: d.device, samp: s}, nil
}

// Sampler implements driver.Sampler.
type Sampler struct {
	dev  vk.Device
	samp vk.Sampler
}

// Destroy destroys the underlying VkSampler.
func (s *Sampler) Destroy() { vk.DestroySampler(s.dev, s.samp, nil) }
