package metal

import (
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

/**
 * @brief A Metal texture. Sampled textures own the sampler state at
 * samplerSlot. Metal tracks hazards per texture, so the per subresource
 * states only serve validation.
 */
type Texture struct {
	device      *Device
	desc        metadata.TextureDesc
	states      *renderer.TextureState
	texture     Handle
	samplerSlot int
	/** @brief Drawables belong to the layer. */
	owned     bool
	destroyed bool
}

func (t *Texture) Label() string                  { return t.desc.Label }
func (t *Texture) Desc() metadata.TextureDesc     { return t.desc }
func (t *Texture) States() *renderer.TextureState { return t.states }
func (t *Texture) Texture() Handle                { return t.texture }
func (t *Texture) SamplerSlot() int               { return t.samplerSlot }

func (t *Texture) Extent(mip uint32) (uint32, uint32) {
	return max(t.desc.Width>>mip, 1), max(t.desc.Height>>mip, 1)
}

func (t *Texture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	if !t.owned {
		return
	}
	if t.samplerSlot >= 0 {
		if err := t.device.pool.Free(uint32(t.samplerSlot)); err != nil {
			core.LogWarn("texture %s: %v", t.desc.Label, err)
		}
	}
	t.device.driver.Release(t.texture)
}

// Buffer is an MTLBuffer. Host visible buffers use shared storage and are
// written through their contents pointer.
type Buffer struct {
	device    *Device
	desc      metadata.BufferDesc
	state     *renderer.BufferState
	buffer    Handle
	mode      StorageMode
	destroyed bool
}

func (b *Buffer) Label() string                { return b.desc.Label }
func (b *Buffer) Desc() metadata.BufferDesc    { return b.desc }
func (b *Buffer) State() *renderer.BufferState { return b.state }
func (b *Buffer) Buffer() Handle               { return b.buffer }
func (b *Buffer) StorageMode() StorageMode     { return b.mode }

func (b *Buffer) checkRange(op string, offset uint64, n int) error {
	if b.mode != StorageModeShared {
		return core.NewError(core.KindUsageViolation, op, "buffer %q is not host visible", b.desc.Label)
	}
	if offset+uint64(n) > b.desc.Size {
		return core.NewError(core.KindUsageViolation, op, "range [%d,%d) exceeds buffer %q of %d bytes", offset, offset+uint64(n), b.desc.Label, b.desc.Size)
	}
	return nil
}

func (b *Buffer) Write(offset uint64, data []byte) error {
	if err := b.checkRange("Buffer.Write", offset, len(data)); err != nil {
		return err
	}
	return b.device.driver.WriteBuffer(b.buffer, offset, data)
}

func (b *Buffer) Read(offset uint64, out []byte) error {
	if err := b.checkRange("Buffer.Read", offset, len(out)); err != nil {
		return err
	}
	return b.device.driver.ReadBuffer(b.buffer, offset, out)
}

func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.device.driver.Release(b.buffer)
}

// RenderPass is only a configuration: Metal describes load and store
// actions when the render encoder is created.
type RenderPass struct {
	config metadata.RenderPassConfig
}

func (r *RenderPass) Config() metadata.RenderPassConfig { return r.config }
func (r *RenderPass) Destroy()                          {}

type Framebuffer struct {
	pass          *RenderPass
	attachments   []renderer.Attachment
	width, height uint32
}

func (f *Framebuffer) RenderPass() renderer.RenderPass    { return f.pass }
func (f *Framebuffer) Attachments() []renderer.Attachment { return f.attachments }
func (f *Framebuffer) Width() uint32                      { return f.width }
func (f *Framebuffer) Height() uint32                     { return f.height }
func (f *Framebuffer) Destroy()                           {}

func (f *Framebuffer) isDepth(i int) bool { return i >= len(f.pass.config.Colors) }

// descriptor builds the render pass descriptor of one encoder. Clear
// values missing from clear default to opaque black.
func (f *Framebuffer) descriptor(clear renderer.ClearValues) *RenderPassDescriptor {
	cfg := f.pass.config
	desc := &RenderPassDescriptor{Width: f.width, Height: f.height}
	for i, a := range f.attachments {
		tex := a.Texture.(*Texture)
		att := RenderPassAttachment{
			Texture: tex.texture,
			Level:   a.Mip,
			Slice:   a.Layer,
		}
		if f.isDepth(i) {
			ds := cfg.DepthStencil
			att.LoadAction, att.StoreAction = Load(ds.LoadOp), Store(ds.StoreOp)
			att.ClearDepth = float64(clear.Depth)
			desc.Depth = &att
			if ds.Format.HasStencil() {
				stencil := att
				stencil.ClearStencil = clear.Stencil
				desc.Stencil = &stencil
			}
			continue
		}
		c := cfg.Colors[i]
		att.LoadAction, att.StoreAction = Load(c.LoadOp), Store(c.StoreOp)
		att.ClearColor = [4]float64{0, 0, 0, 1}
		if i < len(clear.Colors) {
			for k, v := range clear.Colors[i] {
				att.ClearColor[k] = float64(v)
			}
		}
		desc.Colors = append(desc.Colors, att)
	}
	return desc
}

type Pipeline struct {
	device       *Device
	label        string
	kind         renderer.PipelineKind
	plan         *metadata.BindingPlan
	pso          Handle
	depthStencil Handle
	primitive    PrimitiveType
	cull         CullMode
	winding      Winding
	fill         TriangleFillMode
	stencilRef   uint32
	/** @brief Threads per threadgroup of a compute pipeline. */
	threads   [3]uint32
	functions []Handle
}

func (p *Pipeline) Label() string               { return p.label }
func (p *Pipeline) Kind() renderer.PipelineKind { return p.kind }
func (p *Pipeline) Plan() *metadata.BindingPlan { return p.plan }
func (p *Pipeline) PipelineState() Handle       { return p.pso }
func (p *Pipeline) DepthStencilState() Handle   { return p.depthStencil }
func (p *Pipeline) Threads() [3]uint32          { return p.threads }

func (p *Pipeline) compute() bool { return p.kind == renderer.PipelineKindCompute }

// Depth stencil states are shared through the device cache and outlive
// pipelines.
func (p *Pipeline) Destroy() {
	for _, fn := range p.functions {
		p.device.driver.Release(fn)
	}
	p.functions = nil
	if p.pso != NullHandle {
		p.device.driver.Release(p.pso)
		p.pso = NullHandle
	}
}

func AsTexture(t renderer.Texture) (*Texture, error) {
	if v, ok := t.(*Texture); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsTexture", "%T is not a metal texture", t)
}

func AsBuffer(b renderer.Buffer) (*Buffer, error) {
	if v, ok := b.(*Buffer); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsBuffer", "%T is not a metal buffer", b)
}

func AsRenderPass(r renderer.RenderPass) (*RenderPass, error) {
	if v, ok := r.(*RenderPass); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsRenderPass", "%T is not a metal render pass", r)
}

func AsFramebuffer(f renderer.Framebuffer) (*Framebuffer, error) {
	if v, ok := f.(*Framebuffer); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsFramebuffer", "%T is not a metal framebuffer", f)
}

func AsPipeline(p renderer.Pipeline) (*Pipeline, error) {
	if v, ok := p.(*Pipeline); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsPipeline", "%T is not a metal pipeline", p)
}

func AsCommandBuffer(c renderer.CommandBuffer) (*CommandBuffer, error) {
	if v, ok := c.(*CommandBuffer); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsCommandBuffer", "%T is not a metal command buffer", c)
}

func AsFence(f renderer.Fence) (*Fence, error) {
	if v, ok := f.(*Fence); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsFence", "%T is not a metal fence", f)
}
