// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package vk

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashlarengine/runtime/driver"
)

func toVkLoadOp(op driver.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case driver.LClear:
		return vk.AttachmentLoadOpClear
	case driver.LLoad:
		return vk.AttachmentLoadOpLoad
	default:
		return vk.AttachmentLoadOpDontCare
	}
}

func toVkStoreOp(op driver.StoreOp) vk.AttachmentStoreOp {
	if op == driver.SStore {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

func isDepthFormat(pf driver.PixelFmt) bool {
	switch pf {
	case driver.D16un, driver.D32f, driver.S8ui, driver.D24unS8ui, driver.D32fS8ui:
		return true
	default:
		return false
	}
}

// NewRenderPass builds a single Vulkan render pass from a flat list
// of attachment descriptions and one or more subpasses.
func (d *Driver) NewRenderPass(att []driver.Attachment, sub []driver.Subpass) (driver.RenderPass, error) {
	descs := make([]vk.AttachmentDescription, len(att))
	for i, a := range att {
		finalLayout := vk.ImageLayoutColorAttachmentOptimal
		if isDepthFormat(a.Format) {
			finalLayout = vk.ImageLayoutDepthStencilAttachmentOptimal
		}
		descs[i] = vk.AttachmentDescription{
			Format:         toVkFormat(a.Format),
			Samples:        sampleCountOf(a.Samples),
			LoadOp:         toVkLoadOp(a.Load[0]),
			StoreOp:        toVkStoreOp(a.Store[0]),
			StencilLoadOp:  toVkLoadOp(a.Load[1]),
			StencilStoreOp: toVkStoreOp(a.Store[1]),
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    finalLayout,
		}
	}

	subpasses := make([]vk.SubpassDescription, len(sub))
	// refs must stay alive until vkCreateRenderPass returns; keep one
	// slice per subpass so each subpass's pointers remain distinct.
	colorRefs := make([][]vk.AttachmentReference, len(sub))
	resolveRefs := make([][]vk.AttachmentReference, len(sub))
	dsRefs := make([]vk.AttachmentReference, len(sub))

	for i, s := range sub {
		colorRefs[i] = make([]vk.AttachmentReference, len(s.Color))
		for j, idx := range s.Color {
			colorRefs[i][j] = vk.AttachmentReference{Attachment:       uint32(idx), Layout: vk.ImageLayoutColorAttachmentOptimal}
		}
		if len(s.MSR) > 0 {
			resolveRefs[i] = make([]vk.AttachmentReference, len(s.MSR))
			for j, idx := range s.MSR {
				resolveRefs[i][j] = vk.AttachmentReference{Attachment:       uint32(idx), Layout: vk.ImageLayoutColorAttachmentOptimal}
			}
		}
		subpasses[i] = vk.SubpassDescription{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: uint32(len(colorRefs[i])),
			PColorAttachments:    colorRefs[i],
		}
		if len(resolveRefs[i]) > 0 {
			subpasses[i].PResolveAttachments = resolveRefs[i]
		}
		if s.DS >= 0 {
			dsRefs[i] = vk.AttachmentReference{Attachment:       uint32(s.DS), Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
			subpasses[i].PDepthStencilAttachment = &dsRefs[i]
		}
	}

	var deps []vk.SubpassDependency
	for i, s := range sub {
		if !s.Wait {
			continue
		}
		deps = append(deps, vk.SubpassDependency{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    uint32(i),
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			SrcAccessMask: 0,
			DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		})
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(descs)),
		PAttachments:    descs,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(deps)),
		PDependencies:   deps,
	}
	var pass vk.RenderPass
	if res := vk.CreateRenderPass(d.device, &info, nil, &pass); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateRenderPass: %v", driver.ErrFatal, res)
	}
	return &RenderPass{dev: d.device, pass: pass}, nil
}

func sampleCountOf(n int) vk.SampleCountFlagBits {
	switch n {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	default:
		return vk.SampleCount1Bit
	}
}

// RenderPass implements driver.RenderPass.
type RenderPass struct {
	dev  vk.Device
	pass vk.RenderPass
}

// NewFB creates a framebuffer compatible with this render pass.
func (p *RenderPass) NewFB(iv []driver.ImageView, width, height, layers int) (driver.Framebuf, error) {
	views := make([]vk.ImageView, len(iv))
	for i, v := range iv {
		vv, _ := v.(*ImageView)
		if vv != nil {
			views[i] = vv.view
		}
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      p.pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           uint32(width),
		Height:          uint32(height),
		Layers:          uint32(layers),
	}
	var fb vk.Framebuffer
	if res := vk.CreateFramebuffer(p.dev, &info, nil, &fb); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateFramebuffer: %v", driver.ErrFatal, res)
	}
	return &Framebuf{dev: p.dev, fb: fb}, nil
}

// Destroy destroys the underlying VkRenderPass.
func (p *RenderPass) Destroy() { vk.DestroyRenderPass(p.dev, p.pass, nil) }

// Framebuf implements driver.Framebuf.
type Framebuf struct {
	dev vk.Device
	fb  vk.Framebuffer
}

// Destroy destroys the underlying VkFramebuffer.
func (f *Framebuf) Destroy() { vk.DestroyFramebuffer(f.dev, f.fb, nil) }
