// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package vk

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashlarengine/runtime/driver"
)

func toVkTopology(t driver.Topology) vk.PrimitiveTopology {
	switch t {
	case driver.TPoint:
		return vk.PrimitiveTopologyPointList
	case driver.TLine:
		return vk.PrimitiveTopologyLineList
	case driver.TLnStrip:
		return vk.PrimitiveTopologyLineStrip
	case driver.TTriStrip:
		return vk.PrimitiveTopologyTriangleStrip
	default:
		return vk.PrimitiveTopologyTriangleList
	}
}

func toVkCullMode(c driver.CullMode) vk.CullModeFlags {
	switch c {
	case driver.CFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case driver.CBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	default:
		return vk.CullModeFlags(vk.CullModeNone)
	}
}

func toVkPolygonMode(f driver.FillMode) vk.PolygonMode {
	if f == driver.FLines {
		return vk.PolygonModeLine
	}
	return vk.PolygonModeFill
}

func toVkBlendOp(op driver.BlendOp) vk.BlendOp {
	switch op {
	case driver.BSubtract:
		return vk.BlendOpSubtract
	case driver.BRevSubtract:
		return vk.BlendOpReverseSubtract
	case driver.BMin:
		return vk.BlendOpMin
	case driver.BMax:
		return vk.BlendOpMax
	default:
		return vk.BlendOpAdd
	}
}

func toVkBlendFac(f driver.BlendFac) vk.BlendFactor {
	switch f {
	case driver.BZero:
		return vk.BlendFactorZero
	case driver.BSrcColor:
		return vk.BlendFactorSrcColor
	case driver.BInvSrcColor:
		return vk.BlendFactorOneMinusSrcColor
	case driver.BSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case driver.BInvSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	case driver.BDstColor:
		return vk.BlendFactorDstColor
	case driver.BInvDstColor:
		return vk.BlendFactorOneMinusDstColor
	case driver.BDstAlpha:
		return vk.BlendFactorDstAlpha
	case driver.BInvDstAlpha:
		return vk.BlendFactorOneMinusDstAlpha
	case driver.BSrcAlphaSaturated:
		return vk.BlendFactorSrcAlphaSaturate
	case driver.BBlendColor:
		return vk.BlendFactorConstantColor
	case driver.BInvBlendColor:
		return vk.BlendFactorOneMinusConstantColor
	default:
		return vk.BlendFactorOne
	}
}

func toVkColorMask(m driver.ColorMask) vk.ColorComponentFlags {
	var f vk.ColorComponentFlagBits
	if m&driver.CRed != 0 {
		f |= vk.ColorComponentRBit
	}
	if m&driver.CGreen != 0 {
		f |= vk.ColorComponentGBit
	}
	if m&driver.CBlue != 0 {
		f |= vk.ColorComponentBBit
	}
	if m&driver.CAlpha != 0 {
		f |= vk.ColorComponentABit
	}
	return vk.ColorComponentFlags(f)
}

func toVkVertexFormat(f driver.VertexFmt) vk.Format {
	switch f {
	case driver.Float32:
		return vk.FormatR32Sfloat
	case driver.Float32x2:
		return vk.FormatR32g32Sfloat
	case driver.Float32x3:
		return vk.FormatR32g32b32Sfloat
	case driver.Float32x4:
		return vk.FormatR32g32b32a32Sfloat
	case driver.Int32:
		return vk.FormatR32Sint
	case driver.Int32x2:
		return vk.FormatR32g32Sint
	case driver.Int32x3:
		return vk.FormatR32g32b32Sint
	case driver.Int32x4:
		return vk.FormatR32g32b32a32Sint
	case driver.UInt32:
		return vk.FormatR32Uint
	case driver.UInt32x2:
		return vk.FormatR32g32Uint
	case driver.UInt32x3:
		return vk.FormatR32g32b32Uint
	case driver.UInt32x4:
		return vk.FormatR32g32b32a32Uint
	default:
		return vk.FormatR32Sfloat
	}
}

// pipelineLayout builds a new VkPipelineLayout for a descriptor
// table plus a push-constant range. Each call creates its own layout;
// the pipeline that receives it owns it and destroys it with itself.
func (d *Driver) pipelineLayout(desc driver.DescTable, pushConstSize int) (vk.PipelineLayout, error) {
	dt, _ := desc.(*DescTable)
	var setLayouts []vk.DescriptorSetLayout
	if dt != nil {
		for _, h := range dt.heaps {
			setLayouts = append(setLayouts, h.layout)
		}
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	var ranges []vk.PushConstantRange
	if pushConstSize > 0 {
		ranges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageAllBit),
			Offset:     0,
			Size:       uint32(pushConstSize),
		}}
		info.PushConstantRangeCount = uint32(len(ranges))
		info.PPushConstantRanges = ranges
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(d.device, &info, nil, &layout); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreatePipelineLayout: %v", driver.ErrFatal, res)
	}
	return layout, nil
}

func stageCreateInfo(fn driver.ShaderFunc, stage vk.ShaderStageFlagBits) vk.PipelineShaderStageCreateInfo {
	sc, _ := fn.Code.(*ShaderCode)
	var mod vk.ShaderModule
	if sc != nil {
		mod = sc.mod
	}
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: mod,
		PName:  fn.Name + "\x00",
	}
}

// NewPipeline builds either a graphics or a compute pipeline,
// depending on the dynamic type of state (*driver.GraphState or
// *driver.CompState).
func (d *Driver) NewPipeline(state any) (driver.Pipeline, error) {
	switch s := state.(type) {
	case *driver.GraphState:
		return d.newGraphicsPipeline(s)
	case *driver.CompState:
		return d.newComputePipeline(s)
	default:
		return nil, fmt.Errorf("driver/vk: NewPipeline: unsupported state type %T", state)
	}
}

func (d *Driver) newGraphicsPipeline(s *driver.GraphState) (driver.Pipeline, error) {
	layout, err := d.pipelineLayout(s.Desc, s.PushConstSize)
	if err != nil {
		return nil, err
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		stageCreateInfo(s.VertFunc, vk.ShaderStageVertexBit),
		stageCreateInfo(s.FragFunc, vk.ShaderStageFragmentBit),
	}

	var bindings []vk.VertexInputBindingDescription
	var attrs []vk.VertexInputAttributeDescription
	offsets := make(map[int]uint32)
	for _, in := range s.Input {
		bindings = append(bindings, vk.VertexInputBindingDescription{
			Binding:   uint32(in.Nr),
			Stride:    uint32(in.Stride),
			InputRate: vk.VertexInputRateVertex,
		})
		attrs = append(attrs, vk.VertexInputAttributeDescription{
			Location: uint32(in.Nr),
			Binding:  uint32(in.Nr),
			Format:   toVkVertexFormat(in.Format),
			Offset:   offsets[in.Nr],
		})
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: toVkTopology(s.Topology),
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode:             toVkPolygonMode(s.Raster.Fill),
		CullMode:                toVkCullMode(s.Raster.Cull),
		FrontFace:               frontFace(s.Raster.Clockwise),
		LineWidth:               1,
		DepthBiasEnable:         vkBool(s.Raster.DepthBias),
		DepthBiasConstantFactor: s.Raster.BiasValue,
		DepthBiasSlopeFactor:    s.Raster.BiasSlope,
		DepthBiasClamp:          s.Raster.BiasClamp,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: sampleCountOf(s.Samples),
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vkBool(s.DS.DepthTest),
		DepthWriteEnable: vkBool(s.DS.DepthWrite),
		DepthCompareOp:   toVkCmpOp(s.DS.DepthCmp),
		StencilTestEnable: vkBool(s.DS.StencilTest),
		Front:            toVkStencilOp(s.DS.Front),
		Back:             toVkStencilOp(s.DS.Back),
	}

	colorAttachments := make([]vk.PipelineColorBlendAttachmentState, len(s.Blend.Color))
	for i, c := range s.Blend.Color {
		colorAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vkBool(c.Blend),
			SrcColorBlendFactor: toVkBlendFac(c.SrcFac[0]),
			DstColorBlendFactor: toVkBlendFac(c.DstFac[0]),
			ColorBlendOp:        toVkBlendOp(c.Op[0]),
			SrcAlphaBlendFactor: toVkBlendFac(c.SrcFac[1]),
			DstAlphaBlendFactor: toVkBlendFac(c.DstFac[1]),
			AlphaBlendOp:        toVkBlendOp(c.Op[1]),
			ColorWriteMask:      toVkColorMask(c.WriteMask),
		}
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(colorAttachments)),
		PAttachments:    colorAttachments,
	}

	dynStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	if s.Raster.DepthBias {
		dynStates = append(dynStates, vk.DynamicStateDepthBias)
	}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynStates)),
		PDynamicStates:    dynStates,
	}

	pass, _ := s.Pass.(*RenderPass)
	var vkPass vk.RenderPass
	if pass != nil {
		vkPass = pass.pass
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &raster,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamic,
		Layout:              layout,
		RenderPass:          vkPass,
		Subpass:             uint32(s.Subpass),
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(d.device, nil, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines); res != vk.Success {
		vk.DestroyPipelineLayout(d.device, layout, nil)
		return nil, fmt.Errorf("%w: vkCreateGraphicsPipelines: %v", driver.ErrFatal, res)
	}
	return &Pipeline{dev: d.device, pipeline: pipelines[0], layout: layout, bindPoint: vk.PipelineBindPointGraphics}, nil
}

func (d *Driver) newComputePipeline(s *driver.CompState) (driver.Pipeline, error) {
	layout, err := d.pipelineLayout(s.Desc, s.PushConstSize)
	if err != nil {
		return nil, err
	}
	info := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  stageCreateInfo(s.Func, vk.ShaderStageComputeBit),
		Layout: layout,
	}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateComputePipelines(d.device, nil, 1, []vk.ComputePipelineCreateInfo{info}, nil, pipelines); res != vk.Success {
		vk.DestroyPipelineLayout(d.device, layout, nil)
		return nil, fmt.Errorf("%w: vkCreateComputePipelines: %v", driver.ErrFatal, res)
	}
	return &Pipeline{dev: d.device, pipeline: pipelines[0], layout: layout, bindPoint: vk.PipelineBindPointCompute}, nil
}

func frontFace(clockwise bool) vk.FrontFace {
	if clockwise {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func toVkStencilOpState(op driver.StencilOp) vk.StencilOp {
	switch op {
	case driver.SZero:
		return vk.StencilOpZero
	case driver.SReplace:
		return vk.StencilOpReplace
	case driver.SIncClamp:
		return vk.StencilOpIncrementAndClamp
	case driver.SDecClamp:
		return vk.StencilOpDecrementAndClamp
	case driver.SInvert:
		return vk.StencilOpInvert
	case driver.SIncWrap:
		return vk.StencilOpIncrementAndWrap
	case driver.SDecWrap:
		return vk.StencilOpDecrementAndWrap
	default:
		return vk.StencilOpKeep
	}
}

func toVkStencilOp(s driver.StencilT) vk.StencilOpState {
	return vk.StencilOpState{
		FailOp:      toVkStencilOpState(s.DSFail[0]),
		DepthFailOp: toVkStencilOpState(s.DSFail[1]),
		PassOp:      toVkStencilOpState(s.Pass),
		CompareOp:   toVkCmpOp(s.Cmp),
		CompareMask: s.ReadMask,
		WriteMask:   s.WriteMask,
	}
}

// Pipeline implements driver.Pipeline over a VkPipeline/VkPipelineLayout
// pair.
type Pipeline struct {
	dev       vk.Device
	pipeline  vk.Pipeline
	layout    vk.PipelineLayout
	bindPoint vk.PipelineBindPoint
}

// Destroy destroys the pipeline and its layout.
func (p *Pipeline) Destroy() {
	vk.DestroyPipeline(p.dev, p.pipeline, nil)
	vk.DestroyPipelineLayout(p.dev, p.layout, nil)
}
