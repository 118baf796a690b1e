package d3d12

import (
	"github.com/spaghettifunk/gfxhal/engine/renderer"
)

// Driver is the seam between the D3D12 device and the API. The platform
// layer owning the ID3D12Device, the direct queue and the shader visible
// descriptor heaps implements it; the device builds every description and
// the driver only issues native calls.
//
// Shader visible descriptors are addressed by slot: the CBV/SRV/UAV heap and
// the sampler heap are as large as the device descriptor pool, and a slot
// handed out by the pool indexes both.
type Driver interface {
	CreateResource(desc *ResourceDesc, heap HeapType, initial ResourceStates) (Handle, error)
	// GPUAddress is the virtual address root descriptors and buffer views use.
	GPUAddress(resource Handle) uint64
	WriteBuffer(resource Handle, offset uint64, data []byte) error
	ReadBuffer(resource Handle, offset uint64, out []byte) error

	CreateShaderResourceView(resource Handle, view *ViewDesc, slot uint32)
	CreateUnorderedAccessView(resource Handle, view *ViewDesc, slot uint32)
	CreateSampler(desc *SamplerDesc, slot uint32)
	CreateRenderTargetView(resource Handle, view *ViewDesc) (CPUDescriptor, error)
	CreateDepthStencilView(resource Handle, view *ViewDesc) (CPUDescriptor, error)
	FreeView(view CPUDescriptor)

	CreateRootSignature(params []RootParameter, flags RootSignatureFlags) (Handle, error)
	CreateGraphicsPipelineState(desc *GraphicsPipelineStateDesc) (Handle, error)
	CreateComputePipelineState(desc *ComputePipelineStateDesc) (Handle, error)

	// Release drops the reference held on any native object.
	Release(obj Handle)

	// CreateCommandList returns a closed list with its own allocator.
	CreateCommandList() (Handle, error)
	// ResetCommandList also binds the shader visible descriptor heaps.
	ResetCommandList(cl Handle) error
	CloseCommandList(cl Handle) error

	ResourceBarrier(cl Handle, barriers []ResourceBarrier)
	OMSetRenderTargets(cl Handle, rtvs []CPUDescriptor, dsv *CPUDescriptor)
	ClearRenderTargetView(cl Handle, rtv CPUDescriptor, color [4]float32)
	ClearDepthStencilView(cl Handle, dsv CPUDescriptor, depth float32, stencil uint8, clearStencil bool)
	RSSetViewport(cl Handle, viewport Viewport)
	SetPipelineState(cl Handle, pso Handle)
	SetRootSignature(cl Handle, compute bool, rs Handle)
	SetRootDescriptorTable(cl Handle, compute bool, param uint32, heap DescriptorHeapType, slot uint32)
	SetRootView(cl Handle, compute bool, param uint32, kind RootParameterType, address uint64)
	IASetPrimitiveTopology(cl Handle, topology PrimitiveTopology)
	IASetVertexBuffer(cl Handle, slot uint32, view VertexBufferView)
	IASetIndexBuffer(cl Handle, view IndexBufferView)
	DrawInstanced(cl Handle, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexedInstanced(cl Handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	Dispatch(cl Handle, x, y, z uint32)
	CopyBufferRegion(cl Handle, dst Handle, dstOffset uint64, src Handle, srcOffset uint64, size uint64)
	// Texture copies address tightly packed rows. Drivers stage through an
	// aligned upload buffer when the row pitch is not a multiple of 256.
	CopyBufferToTexture(cl Handle, region TextureCopy)
	CopyTextureToBuffer(cl Handle, region TextureCopy)
	// GenerateMip downsamples srcSubresource into dstSubresource. D3D12 has
	// no blit, so drivers record a compute pass of their own.
	GenerateMip(cl Handle, resource Handle, format Format, srcSubresource, dstSubresource uint32, linear bool)

	ExecuteCommandLists(lists []Handle) error
	// QueueWaitIdle signals a queue private fence and waits for it.
	QueueWaitIdle() error

	CreateFence(initial uint64) (Handle, error)
	Signal(fence Handle, value uint64) error
	CompletedValue(fence Handle) uint64
	// WaitForValue reports false when the timeout elapsed first.
	WaitForValue(fence Handle, value uint64, timeoutNs uint64) (bool, error)

	CreateSwapchain(surface renderer.SurfaceProvider, desc renderer.SwapchainDesc) (*SwapchainBuffers, error)
	CurrentBackBufferIndex(sc Handle) uint32
	Present(sc Handle, syncInterval uint32) error

	Destroy()
}
