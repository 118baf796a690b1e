package d3d12

import (
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

type viewKey struct {
	mip, layer uint32
}

/**
 * @brief A committed resource with its shader visible views. Sampled
 * textures own an SRV and a sampler at srvSlot, storage textures a UAV at
 * uavSlot. Render target and depth views are created per subresource when
 * a framebuffer first needs them.
 */
type Texture struct {
	device   *Device
	desc     metadata.TextureDesc
	states   *renderer.TextureState
	resource Handle
	srvSlot  int
	uavSlot  int
	views    map[viewKey]CPUDescriptor
	/** @brief Back buffers belong to the swapchain. */
	owned     bool
	destroyed bool
}

func (t *Texture) Label() string                  { return t.desc.Label }
func (t *Texture) Desc() metadata.TextureDesc     { return t.desc }
func (t *Texture) States() *renderer.TextureState { return t.states }
func (t *Texture) Resource() Handle               { return t.resource }
func (t *Texture) SRVSlot() int                   { return t.srvSlot }
func (t *Texture) UAVSlot() int                   { return t.uavSlot }

func (t *Texture) Extent(mip uint32) (uint32, uint32) {
	return max(t.desc.Width>>mip, 1), max(t.desc.Height>>mip, 1)
}

func (t *Texture) subresource(mip, layer uint32) uint32 {
	return metadata.SubresourceIndex(layer, mip, t.desc.MipLevels)
}

func (t *Texture) attachmentView(mip, layer uint32) (CPUDescriptor, error) {
	key := viewKey{mip, layer}
	if v, ok := t.views[key]; ok {
		return v, nil
	}
	if mip >= t.desc.MipLevels || layer >= t.desc.ArrayLayers {
		return 0, core.NewError(core.KindUsageViolation, "Framebuffer", "attachment (mip %d, layer %d) is outside texture %q", mip, layer, t.desc.Label)
	}
	view := &ViewDesc{
		Format:          DXGIFormat(t.desc.Format),
		Dimension:       ViewDimensionTexture2DArray,
		MostDetailedMip: mip,
		MipLevels:       1,
		FirstSlice:      layer,
		ArraySize:       1,
	}
	var (
		v   CPUDescriptor
		err error
	)
	if t.desc.Format.IsDepth() {
		v, err = t.device.driver.CreateDepthStencilView(t.resource, view)
	} else {
		v, err = t.device.driver.CreateRenderTargetView(t.resource, view)
	}
	if err != nil {
		return 0, err
	}
	t.views[key] = v
	return v, nil
}

func (t *Texture) freeSlot(slot int) {
	if slot < 0 {
		return
	}
	if err := t.device.pool.Free(uint32(slot)); err != nil {
		core.LogWarn("texture %s: %v", t.desc.Label, err)
	}
}

func (t *Texture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	for _, v := range t.views {
		t.device.driver.FreeView(v)
	}
	t.views = nil
	if !t.owned {
		return
	}
	t.freeSlot(t.srvSlot)
	t.freeSlot(t.uavSlot)
	t.device.driver.Release(t.resource)
}

/**
 * @brief A committed buffer. Host visible buffers live in an upload heap,
 * or a readback heap when they are copy destinations; both keep the fixed
 * state their heap requires.
 */
type Buffer struct {
	device    *Device
	desc      metadata.BufferDesc
	state     *renderer.BufferState
	resource  Handle
	address   uint64
	heap      HeapType
	destroyed bool
}

func (b *Buffer) Label() string                { return b.desc.Label }
func (b *Buffer) Desc() metadata.BufferDesc    { return b.desc }
func (b *Buffer) State() *renderer.BufferState { return b.state }
func (b *Buffer) Resource() Handle             { return b.resource }
func (b *Buffer) GPUAddress() uint64           { return b.address }
func (b *Buffer) Heap() HeapType               { return b.heap }

func (b *Buffer) checkRange(op string, offset uint64, n int) error {
	if !b.desc.HostVisible {
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
	return b.device.driver.WriteBuffer(b.resource, offset, data)
}

func (b *Buffer) Read(offset uint64, out []byte) error {
	if err := b.checkRange("Buffer.Read", offset, len(out)); err != nil {
		return err
	}
	return b.device.driver.ReadBuffer(b.resource, offset, out)
}

func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.device.driver.Release(b.resource)
}

// RenderPass is only a configuration. D3D12 binds render targets directly,
// so beginning and ending a pass is done with barriers and clears.
type RenderPass struct {
	config metadata.RenderPassConfig
}

func (r *RenderPass) Config() metadata.RenderPassConfig { return r.config }
func (r *RenderPass) Destroy()                          {}

type Framebuffer struct {
	pass          *RenderPass
	attachments   []renderer.Attachment
	width, height uint32
	rtvs          []CPUDescriptor
	dsv           *CPUDescriptor
}

func (f *Framebuffer) RenderPass() renderer.RenderPass    { return f.pass }
func (f *Framebuffer) Attachments() []renderer.Attachment { return f.attachments }
func (f *Framebuffer) Width() uint32                      { return f.width }
func (f *Framebuffer) Height() uint32                     { return f.height }

// Views belong to the textures and are freed with them.
func (f *Framebuffer) Destroy() {}

type Pipeline struct {
	device        *Device
	label         string
	kind          renderer.PipelineKind
	plan          *metadata.BindingPlan
	pso           Handle
	rootSignature Handle
	topology      PrimitiveTopology
	/** @brief Vertex stride per input slot. */
	strides map[uint32]uint32
}

func (p *Pipeline) Label() string               { return p.label }
func (p *Pipeline) Kind() renderer.PipelineKind { return p.kind }
func (p *Pipeline) Plan() *metadata.BindingPlan { return p.plan }
func (p *Pipeline) PipelineState() Handle       { return p.pso }
func (p *Pipeline) RootSignature() Handle       { return p.rootSignature }

func (p *Pipeline) compute() bool { return p.kind == renderer.PipelineKindCompute }

// Root signatures are shared through the device cache and outlive pipelines.
func (p *Pipeline) Destroy() {
	p.device.driver.Release(p.pso)
}

func AsTexture(t renderer.Texture) (*Texture, error) {
	if v, ok := t.(*Texture); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsTexture", "%T is not a d3d12 texture", t)
}

func AsBuffer(b renderer.Buffer) (*Buffer, error) {
	if v, ok := b.(*Buffer); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsBuffer", "%T is not a d3d12 buffer", b)
}

func AsRenderPass(r renderer.RenderPass) (*RenderPass, error) {
	if v, ok := r.(*RenderPass); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsRenderPass", "%T is not a d3d12 render pass", r)
}

func AsFramebuffer(f renderer.Framebuffer) (*Framebuffer, error) {
	if v, ok := f.(*Framebuffer); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsFramebuffer", "%T is not a d3d12 framebuffer", f)
}

func AsPipeline(p renderer.Pipeline) (*Pipeline, error) {
	if v, ok := p.(*Pipeline); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsPipeline", "%T is not a d3d12 pipeline", p)
}

func AsCommandList(c renderer.CommandBuffer) (*CommandList, error) {
	if v, ok := c.(*CommandList); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsCommandList", "%T is not a d3d12 command list", c)
}

func AsFence(f renderer.Fence) (*Fence, error) {
	if v, ok := f.(*Fence); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsFence", "%T is not a d3d12 fence", f)
}
