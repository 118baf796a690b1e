package renderer

import (
	"fmt"
	"hash/fnv"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

// RenderPassCache returns one render pass per distinct config. Entries live
// as long as the cache. Not safe for concurrent use.
type RenderPassCache struct {
	device Device
	passes map[string]RenderPass
}

func NewRenderPassCache(device Device) *RenderPassCache {
	return &RenderPassCache{device: device, passes: map[string]RenderPass{}}
}

func (c *RenderPassCache) Get(cfg metadata.RenderPassConfig) (RenderPass, error) {
	key := cfg.Key()
	if rp, ok := c.passes[key]; ok {
		return rp, nil
	}
	rp, err := c.device.CreateRenderPass(cfg.Clone())
	if err != nil {
		return nil, err
	}
	core.LogDebug("created render pass %s", key)
	c.passes[key] = rp
	return rp, nil
}

func (c *RenderPassCache) Len() int { return len(c.passes) }

func (c *RenderPassCache) Destroy() {
	for k, rp := range c.passes {
		rp.Destroy()
		delete(c.passes, k)
	}
}

// PipelineKey combines a caller chosen key with the pipeline state and the
// render pass the pipeline is built against.
func PipelineKey(key string, state metadata.PipelineState, rp RenderPass) string {
	var passHash uint64
	if rp != nil {
		h := fnv.New64a()
		h.Write([]byte(rp.Config().Key()))
		passHash = h.Sum64()
	}
	return fmt.Sprintf("%s/%016x/%016x", key, state.Hash(), passHash)
}

// PipelineCache compiles every pipeline configuration once. Not safe for
// concurrent use.
type PipelineCache struct {
	device    Device
	pipelines map[string]Pipeline
}

func NewPipelineCache(device Device) *PipelineCache {
	return &PipelineCache{device: device, pipelines: map[string]Pipeline{}}
}

// GetOrCreate returns the graphics pipeline for (key, state, rp), building
// it from modules on first use.
func (c *PipelineCache) GetOrCreate(key string, state metadata.PipelineState, modules []*ShaderModule, rp RenderPass) (Pipeline, error) {
	full := PipelineKey(key, state, rp)
	if p, ok := c.pipelines[full]; ok {
		return p, nil
	}
	if rp == nil {
		return nil, core.NewError(core.KindUsageViolation, "GetOrCreatePipeline", "pipeline %q has no render pass", key)
	}
	plan, err := MergeBindings(modules...)
	if err != nil {
		return nil, err
	}
	p, err := c.device.CreateGraphicsPipeline(GraphicsPipelineDesc{
		Label:      key,
		State:      state,
		Modules:    modules,
		Plan:       plan,
		RenderPass: rp,
	})
	if err != nil {
		return nil, err
	}
	core.LogDebug("created graphics pipeline %s (%d descriptors, %d attributes)", full, len(plan.Entries), len(plan.Attributes))
	c.pipelines[full] = p
	return p, nil
}

func (c *PipelineCache) GetOrCreateCompute(key string, module *ShaderModule) (Pipeline, error) {
	full := "compute/" + key
	if p, ok := c.pipelines[full]; ok {
		return p, nil
	}
	if module == nil || module.Stage != metadata.ShaderStageCompute {
		return nil, core.NewError(core.KindUsageViolation, "GetOrCreateComputePipeline", "pipeline %q needs a compute module", key)
	}
	plan, err := MergeBindings(module)
	if err != nil {
		return nil, err
	}
	p, err := c.device.CreateComputePipeline(ComputePipelineDesc{Label: key, Module: module, Plan: plan})
	if err != nil {
		return nil, err
	}
	core.LogDebug("created compute pipeline %s", full)
	c.pipelines[full] = p
	return p, nil
}

func (c *PipelineCache) Len() int { return len(c.pipelines) }

func (c *PipelineCache) Destroy() {
	for k, p := range c.pipelines {
		p.Destroy()
		delete(c.pipelines, k)
	}
}
