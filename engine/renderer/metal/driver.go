package metal

import (
	"github.com/spaghettifunk/gfxhal/engine/renderer"
)

// Driver is the seam between the Metal device and the API. The platform
// layer owning the MTLDevice and its command queue implements it; the
// device builds every descriptor and the driver only sends the messages.
//
// Sampler states are addressed by slot: the driver keeps a table as large
// as the device descriptor pool and every sampled texture owns one entry.
type Driver interface {
	CreateTexture(desc *TextureDescriptor) (Handle, error)
	CreateSampler(desc *SamplerDescriptor, slot uint32)
	CreateBuffer(length uint64, mode StorageMode) (Handle, error)
	WriteBuffer(buffer Handle, offset uint64, data []byte) error
	ReadBuffer(buffer Handle, offset uint64, out []byte) error

	// NewFunction loads the single entry point of a compiled metallib.
	NewFunction(library []byte, stage FunctionStages) (Handle, error)
	CreateRenderPipelineState(desc *RenderPipelineDescriptor) (Handle, error)
	CreateDepthStencilState(desc *DepthStencilDescriptor) (Handle, error)
	CreateComputePipelineState(function Handle) (Handle, error)

	// Release drops the reference held on any native object.
	Release(obj Handle)

	// Command buffers are one shot: a new one is made for every recording.
	NewCommandBuffer() (Handle, error)
	BeginRenderEncoder(cb Handle, desc *RenderPassDescriptor) (Handle, error)
	BeginComputeEncoder(cb Handle) (Handle, error)
	BeginBlitEncoder(cb Handle) (Handle, error)
	EndEncoding(enc Handle)

	MemoryBarrier(enc Handle, barrier MemoryBarrier)

	SetRenderPipelineState(enc Handle, pso Handle)
	SetDepthStencilState(enc Handle, dss Handle)
	SetStencilReference(enc Handle, ref uint32)
	SetCullMode(enc Handle, mode CullMode)
	SetFrontFacing(enc Handle, winding Winding)
	SetTriangleFillMode(enc Handle, mode TriangleFillMode)
	SetViewport(enc Handle, viewport Viewport)
	SetBuffer(enc Handle, stages FunctionStages, buffer Handle, offset uint64, index uint32)
	SetTexture(enc Handle, stages FunctionStages, texture Handle, index uint32)
	SetSampler(enc Handle, stages FunctionStages, slot uint32, index uint32)
	DrawPrimitives(enc Handle, prim PrimitiveType, vertexStart, vertexCount, instanceCount, baseInstance uint32)
	DrawIndexedPrimitives(enc Handle, prim PrimitiveType, indexCount uint32, indexType IndexType, indexBuffer Handle, indexOffset uint64, instanceCount uint32, baseVertex int32, baseInstance uint32)

	SetComputePipelineState(enc Handle, pso Handle)
	DispatchThreadgroups(enc Handle, groups, threadsPerGroup [3]uint32)

	CopyBuffer(enc Handle, src Handle, srcOffset uint64, dst Handle, dstOffset uint64, size uint64)
	CopyBufferToTexture(enc Handle, region TextureCopy)
	CopyTextureToBuffer(enc Handle, region TextureCopy)
	// GenerateMip downsamples srcLevel of slice into srcLevel+1. It encodes
	// its own pass, so no encoder may be open on cb.
	GenerateMip(cb Handle, texture Handle, slice, srcLevel uint32, linear bool)

	// Commit commits cbs in order. When event is set, the last one encodes
	// a signal of value on it.
	Commit(cbs []Handle, event Handle, value uint64) error
	// WaitIdle commits an empty command buffer and waits until it completed.
	WaitIdle() error

	CreateEvent(initial uint64) (Handle, error)
	SignaledValue(event Handle) uint64
	// WaitForEvent reports false when the timeout elapsed first.
	WaitForEvent(event Handle, value uint64, timeoutNs uint64) (bool, error)

	CreateLayer(surface renderer.SurfaceProvider, desc renderer.SwapchainDesc) (*Layer, error)
	// NextDrawable blocks until a drawable is free and returns its index.
	NextDrawable(layer Handle) (uint32, error)
	PresentDrawable(layer Handle, index uint32) error

	Destroy()
}
