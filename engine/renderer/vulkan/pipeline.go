package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

type setLayoutKey struct {
	kind   vk.DescriptorType
	stages vk.ShaderStageFlags
	empty  bool
}

// setLayoutCache shares one-binding descriptor set layouts between
// pipelines. Every set holds a single resource at binding 0, so the
// descriptor type and stages fully describe a layout.
type setLayoutCache struct {
	mu      sync.Mutex
	driver  Driver
	layouts map[setLayoutKey]vk.DescriptorSetLayout
}

func newSetLayoutCache(driver Driver) *setLayoutCache {
	return &setLayoutCache{driver: driver, layouts: make(map[setLayoutKey]vk.DescriptorSetLayout)}
}

func (c *setLayoutCache) get(key setLayoutKey) (vk.DescriptorSetLayout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.layouts[key]; ok {
		return l, nil
	}
	info := &vk.DescriptorSetLayoutCreateInfo{SType: vk.StructureTypeDescriptorSetLayoutCreateInfo}
	if !key.empty {
		info.BindingCount = 1
		info.PBindings = []vk.DescriptorSetLayoutBinding{{
			Binding:         0,
			DescriptorType:  key.kind,
			DescriptorCount: 1,
			StageFlags:      key.stages,
		}}
	}
	l, err := c.driver.CreateDescriptorSetLayout(info)
	if err != nil {
		return nil, err
	}
	c.layouts[key] = l
	return l, nil
}

func (c *setLayoutCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.layouts)
}

func (c *setLayoutCache) destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, l := range c.layouts {
		c.driver.DestroyDescriptorSetLayout(l)
		delete(c.layouts, k)
	}
}

// pipelineLayout creates one set layout per set index of plan. Indices no
// entry uses get an empty layout so the sets stay addressable by number.
func (d *Device) pipelineLayout(plan *metadata.BindingPlan) (vk.PipelineLayout, []vk.DescriptorSetLayout, error) {
	sets := make([]vk.DescriptorSetLayout, setCount(plan))
	for i := range sets {
		l, err := d.layouts.get(setLayoutKey{empty: true})
		if err != nil {
			return nil, nil, err
		}
		sets[i] = l
	}
	for _, e := range plan.Entries {
		l, err := d.layouts.get(setLayoutKey{kind: DescriptorType(e.Type), stages: ShaderStageFlags(e.Stages)})
		if err != nil {
			return nil, nil, err
		}
		sets[e.Set] = l
	}
	layout, err := d.driver.CreatePipelineLayout(&vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(sets)),
		PSetLayouts:    sets,
	})
	if err != nil {
		return nil, nil, err
	}
	return layout, sets, nil
}

func stageBit(s metadata.ShaderStage) vk.ShaderStageFlagBits {
	switch s {
	case metadata.ShaderStageFragment:
		return vk.ShaderStageFragmentBit
	case metadata.ShaderStageCompute:
		return vk.ShaderStageComputeBit
	}
	return vk.ShaderStageVertexBit
}

func (d *Device) shaderStage(m *renderer.ShaderModule) (vk.PipelineShaderStageCreateInfo, vk.ShaderModule, error) {
	if len(m.Code)%4 != 0 || len(m.Code) == 0 {
		return vk.PipelineShaderStageCreateInfo{}, nil, core.NewError(core.KindUsageViolation, "CreateShaderModule", "%s: SPIR-V size %d is not a positive multiple of 4", m.Name(), len(m.Code))
	}
	handle, err := d.driver.CreateShaderModule(m.Code)
	if err != nil {
		return vk.PipelineShaderStageCreateInfo{}, nil, err
	}
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stageBit(m.Stage),
		Module: handle,
		PName:  VulkanSafeString("main"),
	}, handle, nil
}

// vertexInput gives every attribute its own binding at its slot. Matrix
// attributes take one location per column inside that binding.
func vertexInput(plan *metadata.BindingPlan) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription) {
	var bindings []vk.VertexInputBindingDescription
	var attrs []vk.VertexInputAttributeDescription
	for _, a := range plan.Attributes {
		count := max(a.Count, 1)
		bindings = append(bindings, vk.VertexInputBindingDescription{
			Binding:   a.Slot,
			Stride:    count * a.ElementSize,
			InputRate: vk.VertexInputRateVertex,
		})
		for col := uint32(0); col < count; col++ {
			attrs = append(attrs, vk.VertexInputAttributeDescription{
				Location: a.Location + col,
				Binding:  a.Slot,
				Format:   VertexFormat(a.Format),
				Offset:   col * a.ElementSize,
			})
		}
	}
	return bindings, attrs
}

func stencilFace(f metadata.StencilFaceParams, s metadata.StencilParams) vk.StencilOpState {
	return vk.StencilOpState{
		FailOp:      StencilOp(f.FailOp),
		PassOp:      StencilOp(f.PassOp),
		DepthFailOp: StencilOp(f.DepthFailOp),
		CompareOp:   CompareOp(f.CompareOp),
		CompareMask: s.ReadMask,
		WriteMask:   s.WriteMask,
		Reference:   s.Reference,
	}
}

func graphicsPipelineCreateInfo(state metadata.PipelineState, stages []vk.PipelineShaderStageCreateInfo, plan *metadata.BindingPlan, layout vk.PipelineLayout, rp vk.RenderPass) *vk.GraphicsPipelineCreateInfo {
	bindings, attrs := vertexInput(plan)
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               Topology(state.Topology),
		PrimitiveRestartEnable: vk.False,
	}

	// Viewport and scissor are dynamic and set when a render pass begins.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             PolygonMode(state.PolygonMode),
		LineWidth:               max(state.LineWidth, 1.0),
		CullMode:                CullMode(state.CullMode),
		FrontFace:               FrontFace(state.FrontFace),
		DepthBiasEnable:         vk.False,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: SampleCount(state.SampleCount),
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(state.DepthTestEnable),
		DepthWriteEnable:      vkBool(state.DepthWriteEnable),
		DepthCompareOp:        CompareOp(state.DepthFunc),
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vkBool(state.StencilEnable),
		Front:                 stencilFace(state.Stencil.Front, state.Stencil),
		Back:                  stencilFace(state.Stencil.Back, state.Stencil),
		MaxDepthBounds:        1.0,
	}

	blend := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vkBool(state.BlendEnable),
		SrcColorBlendFactor: BlendFactor(state.Blend.SrcColorBlendFactor),
		DstColorBlendFactor: BlendFactor(state.Blend.DstColorBlendFactor),
		ColorBlendOp:        BlendOp(state.Blend.ColorBlendOp),
		SrcAlphaBlendFactor: BlendFactor(state.Blend.SrcAlphaBlendFactor),
		DstAlphaBlendFactor: BlendFactor(state.Blend.DstAlphaBlendFactor),
		AlphaBlendOp:        BlendOp(state.Blend.AlphaBlendOp),
		ColorWriteMask:      ColorWriteMask(state.ColorWriteMask),
	}
	blends := make([]vk.PipelineColorBlendAttachmentState, state.ColorAttachmentCount)
	for i := range blends {
		blends[i] = blend
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blends)),
		PAttachments:    blends,
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	return &vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamic,
		Layout:              layout,
		RenderPass:          rp,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
}

func (d *Device) CreateGraphicsPipeline(desc renderer.GraphicsPipelineDesc) (renderer.Pipeline, error) {
	rp, err := AsRenderPass(desc.RenderPass)
	if err != nil {
		return nil, err
	}
	AssignSlots(desc.Plan)
	layout, sets, err := d.pipelineLayout(desc.Plan)
	if err != nil {
		return nil, err
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, 0, len(desc.Modules))
	modules := make([]vk.ShaderModule, 0, len(desc.Modules))
	// Shader modules are only needed until the pipeline is built.
	defer func() {
		for _, m := range modules {
			d.driver.DestroyShaderModule(m)
		}
	}()
	for _, m := range desc.Modules {
		stage, handle, err := d.shaderStage(m)
		if err != nil {
			d.driver.DestroyPipelineLayout(layout)
			return nil, err
		}
		stages = append(stages, stage)
		modules = append(modules, handle)
	}

	state := desc.State
	state.ColorAttachmentCount = uint32(len(rp.config.Colors))
	handle, err := d.driver.CreateGraphicsPipeline(graphicsPipelineCreateInfo(state, stages, desc.Plan, layout, rp.handle))
	if err != nil {
		d.driver.DestroyPipelineLayout(layout)
		return nil, err
	}
	core.LogDebug("vulkan graphics pipeline %s created: %d sets, %d attributes", desc.Label, len(sets), len(desc.Plan.Attributes))
	return &Pipeline{
		device:     d,
		label:      desc.Label,
		kind:       renderer.PipelineKindGraphics,
		plan:       desc.Plan,
		handle:     handle,
		layout:     layout,
		setLayouts: sets,
	}, nil
}

func (d *Device) CreateComputePipeline(desc renderer.ComputePipelineDesc) (renderer.Pipeline, error) {
	if desc.Module == nil || desc.Module.Stage != metadata.ShaderStageCompute {
		return nil, core.NewError(core.KindUsageViolation, "CreateComputePipeline", "pipeline %s needs a compute module", desc.Label)
	}
	AssignSlots(desc.Plan)
	layout, sets, err := d.pipelineLayout(desc.Plan)
	if err != nil {
		return nil, err
	}
	stage, module, err := d.shaderStage(desc.Module)
	if err != nil {
		d.driver.DestroyPipelineLayout(layout)
		return nil, err
	}
	defer d.driver.DestroyShaderModule(module)

	handle, err := d.driver.CreateComputePipeline(&vk.ComputePipelineCreateInfo{
		SType:              vk.StructureTypeComputePipelineCreateInfo,
		Stage:              stage,
		Layout:             layout,
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	})
	if err != nil {
		d.driver.DestroyPipelineLayout(layout)
		return nil, err
	}
	return &Pipeline{
		device:     d,
		label:      desc.Label,
		kind:       renderer.PipelineKindCompute,
		plan:       desc.Plan,
		handle:     handle,
		layout:     layout,
		setLayouts: sets,
	}, nil
}
