package renderer

import (
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

type Texture interface {
	Label() string
	Desc() metadata.TextureDesc
	States() *TextureState
	Destroy()
}

// Buffer state is tracked for the whole buffer.
type Buffer interface {
	Label() string
	Desc() metadata.BufferDesc
	State() *BufferState
	// Write and Read only work on host visible buffers.
	Write(offset uint64, data []byte) error
	Read(offset uint64, out []byte) error
	Destroy()
}

type RenderPass interface {
	Config() metadata.RenderPassConfig
	Destroy()
}

// Attachment is one (mip, layer) view of a texture bound to a framebuffer.
// Color attachments come first, in render pass order, then the depth one.
type Attachment struct {
	Texture Texture
	Mip     uint32
	Layer   uint32
}

type Framebuffer interface {
	RenderPass() RenderPass
	Attachments() []Attachment
	Width() uint32
	Height() uint32
	Destroy()
}

type PipelineKind uint8

const (
	PipelineKindGraphics PipelineKind = iota
	PipelineKindCompute
)

type Pipeline interface {
	Label() string
	Kind() PipelineKind
	// Plan is the merged binding plan with physical slots filled in.
	Plan() *metadata.BindingPlan
	Destroy()
}

type Swapchain interface {
	Images() []Texture
	Extent() (width, height uint32)
	AcquireNextImage() (uint32, error)
	Present(index uint32) error
	Destroy()
}

// DescriptorResource is what gets bound to a logical descriptor. Buffer
// descriptors use Buffer with an optional range (Size 0 means whole buffer),
// image descriptors use Texture.
type DescriptorResource struct {
	Buffer  Buffer
	Offset  uint64
	Size    uint64
	Texture Texture
}

type IndexFormat uint8

const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

type ClearValues struct {
	Colors  [][4]float32
	Depth   float32
	Stencil uint32
}

// SubresourceTransition is one subresource moving between two states.
type SubresourceTransition struct {
	Mip    uint32
	Layer  uint32
	Before metadata.ResourceState
	After  metadata.ResourceState
}

// BarrierRecorder emits synchronization commands. Every call records exactly
// one native synchronization command covering all given changes.
type BarrierRecorder interface {
	TextureBarrier(tex Texture, changes []SubresourceTransition) error
	BufferBarrier(buf Buffer, before, after metadata.ResourceState) error
}

// CommandBuffer records work for one queue. Recording is single threaded.
type CommandBuffer interface {
	BarrierRecorder

	Begin() error
	End() error
	Reset() error

	BeginRenderPass(fb Framebuffer, clear ClearValues) error
	EndRenderPass() error

	BindPipeline(p Pipeline) error
	BindDescriptor(p Pipeline, entry *metadata.BindingEntry, res DescriptorResource) error
	BindVertexBuffer(p Pipeline, attr *metadata.AttributeBinding, buf Buffer, offset uint64) error
	BindIndexBuffer(buf Buffer, offset uint64, format IndexFormat) error

	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	Dispatch(x, y, z uint32)

	CopyBuffer(src, dst Buffer, srcOffset, dstOffset, size uint64) error
	// Texture copies move one whole (mip, layer) subresource, tightly packed
	// in the buffer starting at the given offset.
	CopyBufferToTexture(src Buffer, srcOffset uint64, dst Texture, mip, layer uint32) error
	CopyTextureToBuffer(src Texture, mip, layer uint32, dst Buffer, dstOffset uint64) error
	// BlitMip downsamples srcMip of layer into srcMip+1.
	BlitMip(tex Texture, layer, srcMip uint32) error

	Destroy()
}
