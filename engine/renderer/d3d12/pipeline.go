package d3d12

import (
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

func stageCode(label string, modules []*renderer.ShaderModule, stage metadata.ShaderStage) ([]byte, error) {
	for _, m := range modules {
		if m == nil || m.Stage != stage {
			continue
		}
		if len(m.Code) == 0 {
			return nil, core.NewError(core.KindUsageViolation, "CreatePipelineState", "%s: %s module has no bytecode", label, stage)
		}
		return m.Code, nil
	}
	return nil, nil
}

func graphicsPipelineStateDesc(state metadata.PipelineState, cfg metadata.RenderPassConfig, plan *metadata.BindingPlan, rs Handle, vs, ps []byte) *GraphicsPipelineStateDesc {
	elems, _ := inputLayout(plan)
	desc := &GraphicsPipelineStateDesc{
		RootSignature: rs,
		VS:            vs,
		PS:            ps,
		InputLayout:   elems,
		Rasterizer:    rasterizer(state),
		DepthStencil:  depthStencil(state),
		Topology:      TopologyType(state.Topology),
		DSVFormat:     FormatUnknown,
		SampleCount:   max(cfg.SampleCount, 1),
	}
	blend := renderTargetBlend(state)
	for _, c := range cfg.Colors {
		desc.RTVFormats = append(desc.RTVFormats, DXGIFormat(c.Format))
		desc.Blend = append(desc.Blend, blend)
	}
	if cfg.DepthStencil != nil {
		desc.DSVFormat = DXGIFormat(cfg.DepthStencil.Format)
	}
	return desc
}

func (d *Device) CreateGraphicsPipeline(desc renderer.GraphicsPipelineDesc) (renderer.Pipeline, error) {
	rp, err := AsRenderPass(desc.RenderPass)
	if err != nil {
		return nil, err
	}
	vs, err := stageCode(desc.Label, desc.Modules, metadata.ShaderStageVertex)
	if err != nil {
		return nil, err
	}
	if vs == nil {
		return nil, core.NewError(core.KindUsageViolation, "CreateGraphicsPipeline", "pipeline %s has no vertex module", desc.Label)
	}
	ps, err := stageCode(desc.Label, desc.Modules, metadata.ShaderStageFragment)
	if err != nil {
		return nil, err
	}

	params := AssignSlots(desc.Plan)
	rs, err := d.roots.get(params, RootSignatureFlagAllowInputAssemblerInputLayout)
	if err != nil {
		return nil, err
	}
	pso, err := d.driver.CreateGraphicsPipelineState(graphicsPipelineStateDesc(desc.State, rp.config, desc.Plan, rs, vs, ps))
	if err != nil {
		return nil, err
	}
	_, strides := inputLayout(desc.Plan)
	core.LogDebug("d3d12 graphics pipeline %s created: %d root parameters, %d attributes", desc.Label, len(params), len(desc.Plan.Attributes))
	return &Pipeline{
		device:        d,
		label:         desc.Label,
		kind:          renderer.PipelineKindGraphics,
		plan:          desc.Plan,
		pso:           pso,
		rootSignature: rs,
		topology:      Topology(desc.State.Topology),
		strides:       strides,
	}, nil
}

func (d *Device) CreateComputePipeline(desc renderer.ComputePipelineDesc) (renderer.Pipeline, error) {
	if desc.Module == nil || desc.Module.Stage != metadata.ShaderStageCompute {
		return nil, core.NewError(core.KindUsageViolation, "CreateComputePipeline", "pipeline %s needs a compute module", desc.Label)
	}
	cs, err := stageCode(desc.Label, []*renderer.ShaderModule{desc.Module}, metadata.ShaderStageCompute)
	if err != nil {
		return nil, err
	}
	params := AssignSlots(desc.Plan)
	rs, err := d.roots.get(params, 0)
	if err != nil {
		return nil, err
	}
	pso, err := d.driver.CreateComputePipelineState(&ComputePipelineStateDesc{RootSignature: rs, CS: cs})
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		device:        d,
		label:         desc.Label,
		kind:          renderer.PipelineKindCompute,
		plan:          desc.Plan,
		pso:           pso,
		rootSignature: rs,
	}, nil
}
