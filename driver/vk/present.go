// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package vk

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashlarengine/runtime/driver"
	"github.com/ashlarengine/runtime/wsi"
)

// surfaceProvider is implemented by wsi.Window values that can hand
// back a platform VkSurfaceKHR handle (as a uintptr, to stay free of
// per-platform cgo/syscall code in this package). Windowing
// integrations backed by GLFW, SDL or a bespoke platform layer are
// expected to implement it alongside wsi.Window; NewSwapchain fails
// with ErrWindow when a Window does not.
type surfaceProvider interface {
	VkSurface(instance uintptr) (uintptr, error)
}

// NewSwapchain creates a swapchain over win's platform surface,
// requesting at least imageCount backbuffers (clamped to what the
// surface capabilities allow).
func (d *Driver) NewSwapchain(win wsi.Window, imageCount int) (driver.Swapchain, error) {
	sp, ok := win.(surfaceProvider)
	if !ok {
		return nil, fmt.Errorf("%w: window does not implement a Vulkan surface provider", driver.ErrWindow)
	}
	surfHandle, err := sp.VkSurface(d.instance.Handle())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrWindow, err)
	}
	surf := vk.SurfaceFromPointer(surfHandle)

	sc := &Swapchain{drv: d, win: win, surf: surf}
	if err := sc.create(imageCount); err != nil {
		return nil, err
	}
	return sc, nil
}

// Swapchain implements driver.Swapchain.
type Swapchain struct {
	drv  *Driver
	win  wsi.Window
	surf vk.Surface
	sc   vk.Swapchain

	format driver.PixelFmt
	images []vk.Image
	views  []driver.ImageView

	imageAvailable vk.Semaphore
	renderDone     vk.Semaphore
	curIndex       uint32
}

func (s *Swapchain) create(imageCount int) error {
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(s.drv.physDev, s.surf, &caps); res != vk.Success {
		return fmt.Errorf("%w: vkGetPhysicalDeviceSurfaceCapabilities: %v", driver.ErrSwapchain, res)
	}
	caps.Deref()

	var fmtCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(s.drv.physDev, s.surf, &fmtCount, nil)
	formats := make([]vk.SurfaceFormat, fmtCount)
	vk.GetPhysicalDeviceSurfaceFormats(s.drv.physDev, s.surf, &fmtCount, formats)
	for i := range formats {
		formats[i].Deref()
	}
	chosen := formats[0]
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Unorm {
			chosen = f
			break
		}
	}
	s.format = fromVkFormat(chosen.Format)

	count := uint32(imageCount)
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}

	extent := caps.CurrentExtent
	if extent.Width == 0xFFFFFFFF {
		extent.Width = uint32(s.win.Width())
		extent.Height = uint32(s.win.Height())
	}

	old := s.sc
	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surf,
		MinImageCount:    count,
		ImageFormat:      chosen.Format,
		ImageColorSpace:  chosen.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}
	var sc vk.Swapchain
	if res := vk.CreateSwapchain(s.drv.device, &info, nil, &sc); res != vk.Success {
		return fmt.Errorf("%w: vkCreateSwapchain: %v", driver.ErrSwapchain, res)
	}
	if old != nil {
		s.destroyViewsAndImages()
		vk.DestroySwapchain(s.drv.device, old, nil)
	}
	s.sc = sc

	var imgCount uint32
	vk.GetSwapchainImages(s.drv.device, sc, &imgCount, nil)
	images := make([]vk.Image, imgCount)
	vk.GetSwapchainImages(s.drv.device, sc, &imgCount, images)
	s.images = images

	s.views = make([]driver.ImageView, imgCount)
	for i, img := range images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   chosen.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		var view vk.ImageView
		if res := vk.CreateImageView(s.drv.device, &viewInfo, nil, &view); res != vk.Success {
			return fmt.Errorf("%w: vkCreateImageView: %v", driver.ErrSwapchain, res)
		}
		s.views[i] = &ImageView{dev: s.drv.device, view: view}
	}

	if s.imageAvailable == nil {
		semInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
		vk.CreateSemaphore(s.drv.device, &semInfo, nil, &s.imageAvailable)
		vk.CreateSemaphore(s.drv.device, &semInfo, nil, &s.renderDone)
	}
	return nil
}

func (s *Swapchain) destroyViewsAndImages() {
	for _, v := range s.views {
		v.Destroy()
	}
	s.views = nil
	s.images = nil
}

// Views returns the swapchain's current image views.
func (s *Swapchain) Views() []driver.ImageView { return s.views }

// Format returns the swapchain's pixel format.
func (s *Swapchain) Format() driver.PixelFmt { return s.format }

// Next acquires the next writable image.
func (s *Swapchain) Next(cb driver.CmdBuffer) (int, bool, error) {
	var idx uint32
	res := vk.AcquireNextImage(s.drv.device, s.sc, vk.MaxUint64, s.imageAvailable, nil, &idx)
	switch res {
	case vk.Success:
	case vk.Suboptimal:
		s.curIndex = idx
		return int(idx), true, nil
	case vk.ErrorOutOfDate:
		return 0, true, nil
	default:
		return 0, false, fmt.Errorf("%w: vkAcquireNextImage: %v", driver.ErrSwapchain, res)
	}
	s.curIndex = idx
	return int(idx), false, nil
}

// Present presents the image at index.
func (s *Swapchain) Present(index int, cb driver.CmdBuffer) error {
	idx := uint32(index)
	scs := []vk.Swapchain{s.sc}
	indices := []uint32{idx}
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    scs,
		PImageIndices:  indices,
	}
	qt := driver.Graphics
	if cb != nil {
		qt = cb.QueueType()
	}
	s.drv.queueMus[qt].Lock()
	res := vk.QueuePresent(s.drv.queues[qt], &info)
	s.drv.queueMus[qt].Unlock()
	if res == vk.ErrorOutOfDate || res == vk.Suboptimal {
		return fmt.Errorf("%w: swapchain out of date", driver.ErrSwapchain)
	}
	if res != vk.Success {
		return fmt.Errorf("%w: vkQueuePresent: %v", driver.ErrFatal, res)
	}
	return nil
}

// Recreate rebuilds the swapchain against the surface's current
// capabilities, reusing the old swapchain as OldSwapchain so the
// compositor can hand back in-flight images.
func (s *Swapchain) Recreate() error {
	return s.create(len(s.images))
}

// Destroy destroys every view, the swapchain and its semaphores.
func (s *Swapchain) Destroy() {
	s.destroyViewsAndImages()
	if s.sc != nil {
		vk.DestroySwapchain(s.drv.device, s.sc, nil)
	}
	if s.imageAvailable != nil {
		vk.DestroySemaphore(s.drv.device, s.imageAvailable, nil)
	}
	if s.renderDone != nil {
		vk.DestroySemaphore(s.drv.device, s.renderDone, nil)
	}
	vk.DestroySurface(s.drv.instance, s.surf, nil)
}
