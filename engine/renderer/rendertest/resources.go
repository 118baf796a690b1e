package rendertest

import (
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

type Texture struct {
	desc   metadata.TextureDesc
	states *renderer.TextureState
	// data holds the bytes of each subresource, indexed like states.
	data [][]byte
	pool *renderer.DescriptorPool
	slot int
}

func (t *Texture) Label() string                  { return t.desc.Label }
func (t *Texture) Desc() metadata.TextureDesc     { return t.desc }
func (t *Texture) States() *renderer.TextureState { return t.states }

// Slot is the descriptor slot of the texture, -1 when it has none.
func (t *Texture) Slot() int { return t.slot }

func (t *Texture) Destroy() {
	if t.pool != nil && t.slot >= 0 {
		_ = t.pool.Free(uint32(t.slot))
		t.slot = -1
	}
}

func (t *Texture) subresource(mip, layer uint32) *[]byte {
	return &t.data[metadata.SubresourceIndex(layer, mip, t.desc.MipLevels)]
}

type Buffer struct {
	desc  metadata.BufferDesc
	state *renderer.BufferState
	data  []byte
	pool  *renderer.DescriptorPool
	slot  int
}

func (b *Buffer) Label() string                { return b.desc.Label }
func (b *Buffer) Desc() metadata.BufferDesc    { return b.desc }
func (b *Buffer) State() *renderer.BufferState { return b.state }
func (b *Buffer) Slot() int                    { return b.slot }

func (b *Buffer) Write(offset uint64, data []byte) error {
	if !b.desc.HostVisible {
		return core.NewError(core.KindUsageViolation, "Buffer.Write", "buffer %q is not host visible", b.desc.Label)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return core.NewError(core.KindUsageViolation, "Buffer.Write", "write past the end of buffer %q", b.desc.Label)
	}
	copy(b.data[offset:], data)
	return nil
}

func (b *Buffer) Read(offset uint64, out []byte) error {
	if !b.desc.HostVisible {
		return core.NewError(core.KindUsageViolation, "Buffer.Read", "buffer %q is not host visible", b.desc.Label)
	}
	if offset+uint64(len(out)) > uint64(len(b.data)) {
		return core.NewError(core.KindUsageViolation, "Buffer.Read", "read past the end of buffer %q", b.desc.Label)
	}
	copy(out, b.data[offset:])
	return nil
}

func (b *Buffer) Destroy() {
	if b.pool != nil && b.slot >= 0 {
		_ = b.pool.Free(uint32(b.slot))
		b.slot = -1
	}
}

type RenderPass struct {
	config metadata.RenderPassConfig
}

func (r *RenderPass) Config() metadata.RenderPassConfig { return r.config }
func (r *RenderPass) Destroy()                          {}

type Framebuffer struct {
	pass          renderer.RenderPass
	attachments   []renderer.Attachment
	width, height uint32
}

func (f *Framebuffer) RenderPass() renderer.RenderPass    { return f.pass }
func (f *Framebuffer) Attachments() []renderer.Attachment { return f.attachments }
func (f *Framebuffer) Width() uint32                      { return f.width }
func (f *Framebuffer) Height() uint32                     { return f.height }
func (f *Framebuffer) Destroy()                           {}

type Pipeline struct {
	label string
	kind  renderer.PipelineKind
	plan  *metadata.BindingPlan
	// Destroyed is set by Destroy.
	Destroyed bool
}

func (p *Pipeline) Label() string               { return p.label }
func (p *Pipeline) Kind() renderer.PipelineKind { return p.kind }
func (p *Pipeline) Plan() *metadata.BindingPlan { return p.plan }
func (p *Pipeline) Destroy()                    { p.Destroyed = true }

type Swapchain struct {
	images        []renderer.Texture
	width, height uint32
	next          uint32
	// Presented lists presented image indices in order.
	Presented []uint32
}

func (s *Swapchain) Images() []renderer.Texture { return s.images }
func (s *Swapchain) Extent() (uint32, uint32)   { return s.width, s.height }

func (s *Swapchain) AcquireNextImage() (uint32, error) {
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return idx, nil
}

func (s *Swapchain) Present(index uint32) error {
	if index >= uint32(len(s.images)) {
		return core.NewError(core.KindLookupFailure, "Present", "swapchain image %d out of range", index)
	}
	s.Presented = append(s.Presented, index)
	return nil
}

func (s *Swapchain) Destroy() {}
