package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

type viewKey struct {
	mip, layer uint32
}

/**
 * @brief A VkImage with its memory, a view over every subresource and,
 * for sampled textures, its sampler.
 */
type Texture struct {
	device  *Device
	desc    metadata.TextureDesc
	states  *renderer.TextureState
	image   vk.Image
	memory  vk.DeviceMemory
	view    vk.ImageView
	sampler vk.Sampler
	/** @brief Single subresource views used as framebuffer attachments. */
	views map[viewKey]vk.ImageView
	slot  int
	/** @brief Swapchain images belong to the swapchain. */
	owned     bool
	destroyed bool
}

func (t *Texture) Label() string                  { return t.desc.Label }
func (t *Texture) Desc() metadata.TextureDesc     { return t.desc }
func (t *Texture) States() *renderer.TextureState { return t.states }
func (t *Texture) Image() vk.Image                { return t.image }
func (t *Texture) View() vk.ImageView             { return t.view }
func (t *Texture) Sampler() vk.Sampler            { return t.sampler }
func (t *Texture) Slot() int                      { return t.slot }

func (t *Texture) Extent(mip uint32) (uint32, uint32) {
	return mipExtent(t.desc.Width, mip), mipExtent(t.desc.Height, mip)
}

func (t *Texture) attachmentView(mip, layer uint32) (vk.ImageView, error) {
	key := viewKey{mip, layer}
	if v, ok := t.views[key]; ok {
		return v, nil
	}
	if mip >= t.desc.MipLevels || layer >= t.desc.ArrayLayers {
		return nil, core.NewError(core.KindUsageViolation, "Framebuffer", "attachment (mip %d, layer %d) is outside texture %q", mip, layer, t.desc.Label)
	}
	v, err := t.device.driver.CreateImageView(&vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    t.image,
		ViewType: vk.ImageViewType2d,
		Format:   Format(t.desc.Format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     AspectMask(t.desc.Format),
			BaseMipLevel:   mip,
			LevelCount:     1,
			BaseArrayLayer: layer,
			LayerCount:     1,
		},
	})
	if err != nil {
		return nil, err
	}
	t.views[key] = v
	return v, nil
}

func (t *Texture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	drv := t.device.driver
	for _, v := range t.views {
		drv.DestroyImageView(v)
	}
	t.views = nil
	if !t.owned {
		return
	}
	if t.desc.Usage.Has(metadata.TextureUsageSampled) {
		drv.DestroySampler(t.sampler)
	}
	drv.DestroyImageView(t.view)
	drv.DestroyImage(t.image, t.memory)
	if t.slot >= 0 {
		if err := t.device.pool.Free(uint32(t.slot)); err != nil {
			core.LogWarn("texture %s: %v", t.desc.Label, err)
		}
	}
}

type Buffer struct {
	device    *Device
	desc      metadata.BufferDesc
	state     *renderer.BufferState
	buffer    vk.Buffer
	memory    vk.DeviceMemory
	slot      int
	destroyed bool
}

func (b *Buffer) Label() string                { return b.desc.Label }
func (b *Buffer) Desc() metadata.BufferDesc    { return b.desc }
func (b *Buffer) State() *renderer.BufferState { return b.state }
func (b *Buffer) Handle() vk.Buffer            { return b.buffer }
func (b *Buffer) Slot() int                    { return b.slot }

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
	return b.device.driver.WriteMemory(b.memory, offset, data)
}

func (b *Buffer) Read(offset uint64, out []byte) error {
	if err := b.checkRange("Buffer.Read", offset, len(out)); err != nil {
		return err
	}
	return b.device.driver.ReadMemory(b.memory, offset, out)
}

func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.device.driver.DestroyBuffer(b.buffer, b.memory)
	if b.slot >= 0 {
		if err := b.device.pool.Free(uint32(b.slot)); err != nil {
			core.LogWarn("buffer %s: %v", b.desc.Label, err)
		}
	}
}

type RenderPass struct {
	device *Device
	config metadata.RenderPassConfig
	handle vk.RenderPass
}

func (r *RenderPass) Config() metadata.RenderPassConfig { return r.config }
func (r *RenderPass) Handle() vk.RenderPass             { return r.handle }
func (r *RenderPass) Destroy()                          { r.device.driver.DestroyRenderPass(r.handle) }

type Framebuffer struct {
	device        *Device
	pass          *RenderPass
	attachments   []renderer.Attachment
	width, height uint32
	handle        vk.Framebuffer
}

func (f *Framebuffer) RenderPass() renderer.RenderPass    { return f.pass }
func (f *Framebuffer) Attachments() []renderer.Attachment { return f.attachments }
func (f *Framebuffer) Width() uint32                      { return f.width }
func (f *Framebuffer) Height() uint32                     { return f.height }
func (f *Framebuffer) Destroy()                           { f.device.driver.DestroyFramebuffer(f.handle) }

type Pipeline struct {
	device *Device
	label  string
	kind   renderer.PipelineKind
	plan   *metadata.BindingPlan
	handle vk.Pipeline
	layout vk.PipelineLayout
	/** @brief Descriptor set layout per set index, gaps filled with an empty layout. */
	setLayouts []vk.DescriptorSetLayout
}

func (p *Pipeline) Label() string               { return p.label }
func (p *Pipeline) Kind() renderer.PipelineKind { return p.kind }
func (p *Pipeline) Plan() *metadata.BindingPlan { return p.plan }
func (p *Pipeline) Handle() vk.Pipeline         { return p.handle }

func (p *Pipeline) bindPoint() vk.PipelineBindPoint {
	if p.kind == renderer.PipelineKindCompute {
		return vk.PipelineBindPointCompute
	}
	return vk.PipelineBindPointGraphics
}

// Set layouts are shared through the device cache and outlive pipelines.
func (p *Pipeline) Destroy() {
	p.device.driver.DestroyPipeline(p.handle)
	p.device.driver.DestroyPipelineLayout(p.layout)
}

func AsTexture(t renderer.Texture) (*Texture, error) {
	if v, ok := t.(*Texture); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsTexture", "%T is not a vulkan texture", t)
}

func AsBuffer(b renderer.Buffer) (*Buffer, error) {
	if v, ok := b.(*Buffer); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsBuffer", "%T is not a vulkan buffer", b)
}

func AsRenderPass(r renderer.RenderPass) (*RenderPass, error) {
	if v, ok := r.(*RenderPass); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsRenderPass", "%T is not a vulkan render pass", r)
}

func AsFramebuffer(f renderer.Framebuffer) (*Framebuffer, error) {
	if v, ok := f.(*Framebuffer); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsFramebuffer", "%T is not a vulkan framebuffer", f)
}

func AsPipeline(p renderer.Pipeline) (*Pipeline, error) {
	if v, ok := p.(*Pipeline); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsPipeline", "%T is not a vulkan pipeline", p)
}

func AsCommandBuffer(c renderer.CommandBuffer) (*CommandBuffer, error) {
	if v, ok := c.(*CommandBuffer); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsCommandBuffer", "%T is not a vulkan command buffer", c)
}

func AsFence(f renderer.Fence) (*Fence, error) {
	if v, ok := f.(*Fence); ok && v != nil {
		return v, nil
	}
	return nil, core.NewError(core.KindUsageViolation, "AsFence", "%T is not a vulkan fence", f)
}
