// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package vk

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashlarengine/runtime/driver"
)

func imageUsageFlags(usg driver.Usage) vk.ImageUsageFlags {
	var f vk.ImageUsageFlagBits
	f |= vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit
	if usg&driver.UShaderSample != 0 {
		f |= vk.ImageUsageSampledBit
	}
	if usg&driver.UShaderWrite != 0 {
		f |= vk.ImageUsageStorageBit
	}
	if usg&driver.URenderTarget != 0 {
		f |= vk.ImageUsageColorAttachmentBit | vk.ImageUsageDepthStencilAttachmentBit
	}
	return vk.ImageUsageFlags(f)
}

func imageType(size driver.Dim3D) vk.ImageType {
	switch {
	case size.Depth > 1:
		return vk.ImageType3d
	case size.Height > 1:
		return vk.ImageType2d
	default:
		return vk.ImageType1d
	}
}

func aspectForFormat(pf driver.PixelFmt) vk.ImageAspectFlags {
	switch pf {
	case driver.D16un, driver.D32f:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	case driver.S8ui:
		return vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	case driver.D24unS8ui, driver.D32fS8ui:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	default:
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
}

// NewImage creates a 1D/2D/3D image with a dedicated device-local
// memory allocation.
func (d *Driver) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	samps := vk.SampleCount1Bit
	switch samples {
	case 2:
		samps = vk.SampleCount2Bit
	case 4:
		samps = vk.SampleCount4Bit
	case 8:
		samps = vk.SampleCount8Bit
	}
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType(size),
		Format:    toVkFormat(pf),
		Extent: vk.Extent3D{
			Width:  uint32(size.Width),
			Height: uint32(maxInt(size.Height, 1)),
			Depth:  uint32(maxInt(size.Depth, 1)),
		},
		MipLevels:     uint32(maxInt(levels, 1)),
		ArrayLayers:   uint32(maxInt(layers, 1)),
		Samples:       samps,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         imageUsageFlags(usg),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var img vk.Image
	if res := vk.CreateImage(d.device, &info, nil, &img); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateImage: %v", driver.ErrNoDeviceMemory, res)
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, img, &req)
	req.Deref()

	typeIdx, ok := d.findMemoryType(req.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if !ok {
		vk.DestroyImage(d.device, img, nil)
		return nil, driver.ErrNoDeviceMemory
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIdx,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(d.device, &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyImage(d.device, img, nil)
		return nil, fmt.Errorf("%w: vkAllocateMemory: %v", driver.ErrNoDeviceMemory, res)
	}
	if res := vk.BindImageMemory(d.device, img, mem, 0); res != vk.Success {
		vk.FreeMemory(d.device, mem, nil)
		vk.DestroyImage(d.device, img, nil)
		return nil, fmt.Errorf("%w: vkBindImageMemory: %v", driver.ErrFatal, res)
	}

	return &Image{dev: d.device, img: img, mem: mem, pf: pf, aspect: aspectForFormat(pf)}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Image implements driver.Image over a single VkImage/VkDeviceMemory
// pair.
type Image struct {
	dev    vk.Device
	img    vk.Image
	mem    vk.DeviceMemory
	pf     driver.PixelFmt
	aspect vk.ImageAspectFlags
}

var viewTypeTable = map[driver.ViewType]vk.ImageViewType{
	driver.IView1D:        vk.ImageViewType1d,
	driver.IView2D:        vk.ImageViewType2d,
	driver.IView3D:        vk.ImageViewType3d,
	driver.IViewCube:      vk.ImageViewTypeCube,
	driver.IView1DArray:   vk.ImageViewType1dArray,
	driver.IView2DArray:   vk.ImageViewType2dArray,
	driver.IViewCubeArray: vk.ImageViewTypeCubeArray,
	driver.IView2DMS:      vk.ImageViewType2d,
	driver.IView2DMSArray: vk.ImageViewType2dArray,
}

// NewView creates a view over a layer/level range of the image.
func (img *Image) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.img,
		ViewType: viewTypeTable[typ],
		Format:   toVkFormat(img.pf),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     img.aspect,
			BaseMipLevel:   uint32(level),
			LevelCount:     uint32(levels),
			BaseArrayLayer: uint32(layer),
			LayerCount:     uint32(layers),
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(img.dev, &info, nil, &view); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateImageView: %v", driver.ErrFatal, res)
	}
	return &ImageView{dev: img.dev, view: view}, nil
}

// Destroy frees the image's memory and destroys the VkImage. Every
// view created from it must already have been destroyed.
func (img *Image) Destroy() {
	if img.img != nil {
		vk.DestroyImage(img.dev, img.img, nil)
	}
	if img.mem != nil {
		vk.FreeMemory(img.dev, img.mem, nil)
	}
}

// ImageView implements driver.ImageView.
type ImageView struct {
	dev  vk.Device
	view vk.ImageView
}

// Destroy destroys the underlying VkImageView.
func (v *ImageView) Destroy() { vk.DestroyImageView(v.dev, v.view, nil) }
