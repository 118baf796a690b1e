package metal

import (
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

func (d *Device) function(label string, modules []*renderer.ShaderModule, stage metadata.ShaderStage, fs FunctionStages) (Handle, error) {
	for _, m := range modules {
		if m == nil || m.Stage != stage {
			continue
		}
		if len(m.Code) == 0 {
			return NullHandle, core.NewError(core.KindUsageViolation, "NewFunction", "%s: %s module has no metallib", label, stage)
		}
		return d.driver.NewFunction(m.Code, fs)
	}
	return NullHandle, nil
}

func renderPipelineDescriptor(label string, state metadata.PipelineState, cfg metadata.RenderPassConfig, plan *metadata.BindingPlan, vs, fs Handle) *RenderPipelineDescriptor {
	desc := &RenderPipelineDescriptor{
		Label:              label,
		VertexFunction:     vs,
		FragmentFunction:   fs,
		Vertex:             vertexDescriptor(plan),
		SampleCount:        max(cfg.SampleCount, 1),
		InputPrimitiveType: TopologyClass(state.Topology),
	}
	for _, c := range cfg.Colors {
		desc.ColorAttachments = append(desc.ColorAttachments, colorAttachment(state, c.Format))
	}
	if ds := cfg.DepthStencil; ds != nil {
		desc.DepthFormat = Format(ds.Format)
		if ds.Format.HasStencil() {
			desc.StencilFormat = desc.DepthFormat
		}
	}
	return desc
}

func (d *Device) CreateGraphicsPipeline(desc renderer.GraphicsPipelineDesc) (renderer.Pipeline, error) {
	rp, err := AsRenderPass(desc.RenderPass)
	if err != nil {
		return nil, err
	}
	if err := AssignSlots(desc.Plan); err != nil {
		return nil, err
	}
	vs, err := d.function(desc.Label, desc.Modules, metadata.ShaderStageVertex, FunctionStageVertex)
	if err != nil {
		return nil, err
	}
	if vs == NullHandle {
		return nil, core.NewError(core.KindUsageViolation, "CreateGraphicsPipeline", "pipeline %s has no vertex module", desc.Label)
	}
	p := &Pipeline{device: d, label: desc.Label, kind: renderer.PipelineKindGraphics, plan: desc.Plan, functions: []Handle{vs}}
	fs, err := d.function(desc.Label, desc.Modules, metadata.ShaderStageFragment, FunctionStageFragment)
	if err != nil {
		p.Destroy()
		return nil, err
	}
	if fs != NullHandle {
		p.functions = append(p.functions, fs)
	}

	p.pso, err = d.driver.CreateRenderPipelineState(renderPipelineDescriptor(desc.Label, desc.State, rp.config, desc.Plan, vs, fs))
	if err != nil {
		p.Destroy()
		return nil, err
	}
	p.depthStencil, err = d.depthStencils.get(DepthStencil(desc.State))
	if err != nil {
		p.Destroy()
		return nil, err
	}
	s := desc.State
	p.primitive = Primitive(s.Topology)
	p.cull = Cull(s.CullMode)
	p.winding = FrontFacing(s.FrontFace)
	p.fill = Fill(s.PolygonMode)
	p.stencilRef = s.Stencil.Reference
	core.LogDebug("metal graphics pipeline %s created: %d descriptors, %d attributes", desc.Label, len(desc.Plan.Entries), len(desc.Plan.Attributes))
	return p, nil
}

func (d *Device) CreateComputePipeline(desc renderer.ComputePipelineDesc) (renderer.Pipeline, error) {
	if desc.Module == nil || desc.Module.Stage != metadata.ShaderStageCompute {
		return nil, core.NewError(core.KindUsageViolation, "CreateComputePipeline", "pipeline %s needs a compute module", desc.Label)
	}
	if err := AssignSlots(desc.Plan); err != nil {
		return nil, err
	}
	fn, err := d.function(desc.Label, []*renderer.ShaderModule{desc.Module}, metadata.ShaderStageCompute, FunctionStageKernel)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{device: d, label: desc.Label, kind: renderer.PipelineKindCompute, plan: desc.Plan, functions: []Handle{fn}}
	if p.pso, err = d.driver.CreateComputePipelineState(fn); err != nil {
		p.Destroy()
		return nil, err
	}
	for i, n := range desc.WorkgroupSize {
		p.threads[i] = max(n, 1)
	}
	return p, nil
}
