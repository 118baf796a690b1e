package d3d12

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spaghettifunk/gfxhal/engine/renderer"
)

// fakeDriver records the calls the device makes. Every object gets a fresh
// handle; buffers are backed by byte slices and fences by plain counters.
type fakeDriver struct {
	mu    sync.Mutex
	calls []string
	next  Handle

	resources     map[Handle]*ResourceDesc
	memory        map[Handle][]byte
	fences        map[Handle]uint64
	barriers      [][]ResourceBarrier
	srvs          map[uint32]*ViewDesc
	uavs          map[uint32]*ViewDesc
	samplers      map[uint32]*SamplerDesc
	rootParams    [][]RootParameter
	graphics      []*GraphicsPipelineStateDesc
	computes      []*ComputePipelineStateDesc
	rootViews     []fakeRootView
	tables        []fakeTable
	vertexViews   map[uint32]VertexBufferView
	indexView     IndexBufferView
	textureCopies []TextureCopy
	released      int
	failResource  bool
	swapchain     *SwapchainBuffers
	backBuffer    uint32
}

type fakeRootView struct {
	param   uint32
	kind    RootParameterType
	address uint64
}

type fakeTable struct {
	param uint32
	heap  DescriptorHeapType
	slot  uint32
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		next:        0x100,
		resources:   make(map[Handle]*ResourceDesc),
		memory:      make(map[Handle][]byte),
		fences:      make(map[Handle]uint64),
		srvs:        make(map[uint32]*ViewDesc),
		uavs:        make(map[uint32]*ViewDesc),
		samplers:    make(map[uint32]*SamplerDesc),
		vertexViews: make(map[uint32]VertexBufferView),
	}
}

func (f *fakeDriver) handle() Handle {
	f.next++
	return f.next
}

func (f *fakeDriver) record(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeDriver) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeDriver) CreateResource(desc *ResourceDesc, heap HeapType, initial ResourceStates) (Handle, error) {
	if f.failResource {
		f.failResource = false
		return NullHandle, fmt.Errorf("E_OUTOFMEMORY")
	}
	h := f.handle()
	f.resources[h] = desc
	if desc.Dimension == ResourceDimensionBuffer && heap != HeapTypeDefault {
		f.memory[h] = make([]byte, desc.Width)
	}
	f.record("CreateResource %d heap=%d state=%#x", desc.Dimension, heap, uint32(initial))
	return h, nil
}

func (f *fakeDriver) GPUAddress(resource Handle) uint64 { return uint64(resource) << 16 }

func (f *fakeDriver) WriteBuffer(resource Handle, offset uint64, data []byte) error {
	copy(f.memory[resource][offset:], data)
	f.record("WriteBuffer %d %d", offset, len(data))
	return nil
}

func (f *fakeDriver) ReadBuffer(resource Handle, offset uint64, out []byte) error {
	copy(out, f.memory[resource][offset:])
	f.record("ReadBuffer %d %d", offset, len(out))
	return nil
}

func (f *fakeDriver) CreateShaderResourceView(_ Handle, view *ViewDesc, slot uint32) {
	f.srvs[slot] = view
	f.record("CreateShaderResourceView %d", slot)
}

func (f *fakeDriver) CreateUnorderedAccessView(_ Handle, view *ViewDesc, slot uint32) {
	f.uavs[slot] = view
	f.record("CreateUnorderedAccessView %d", slot)
}

func (f *fakeDriver) CreateSampler(desc *SamplerDesc, slot uint32) {
	f.samplers[slot] = desc
	f.record("CreateSampler %d", slot)
}

func (f *fakeDriver) CreateRenderTargetView(_ Handle, view *ViewDesc) (CPUDescriptor, error) {
	f.record("CreateRenderTargetView mip=%d slice=%d", view.MostDetailedMip, view.FirstSlice)
	return CPUDescriptor(f.handle()), nil
}

func (f *fakeDriver) CreateDepthStencilView(_ Handle, view *ViewDesc) (CPUDescriptor, error) {
	f.record("CreateDepthStencilView mip=%d slice=%d", view.MostDetailedMip, view.FirstSlice)
	return CPUDescriptor(f.handle()), nil
}

func (f *fakeDriver) FreeView(CPUDescriptor) { f.record("FreeView") }

func (f *fakeDriver) CreateRootSignature(params []RootParameter, flags RootSignatureFlags) (Handle, error) {
	f.rootParams = append(f.rootParams, params)
	f.record("CreateRootSignature %d", len(params))
	return f.handle(), nil
}

func (f *fakeDriver) CreateGraphicsPipelineState(desc *GraphicsPipelineStateDesc) (Handle, error) {
	f.graphics = append(f.graphics, desc)
	f.record("CreateGraphicsPipelineState")
	return f.handle(), nil
}

func (f *fakeDriver) CreateComputePipelineState(desc *ComputePipelineStateDesc) (Handle, error) {
	f.computes = append(f.computes, desc)
	f.record("CreateComputePipelineState")
	return f.handle(), nil
}

func (f *fakeDriver) Release(Handle) {
	f.released++
	f.record("Release")
}

func (f *fakeDriver) CreateCommandList() (Handle, error) {
	f.record("CreateCommandList")
	return f.handle(), nil
}

func (f *fakeDriver) ResetCommandList(Handle) error { f.record("ResetCommandList"); return nil }
func (f *fakeDriver) CloseCommandList(Handle) error { f.record("CloseCommandList"); return nil }

func (f *fakeDriver) ResourceBarrier(_ Handle, barriers []ResourceBarrier) {
	f.barriers = append(f.barriers, barriers)
	f.record("ResourceBarrier %d", len(barriers))
}

func (f *fakeDriver) OMSetRenderTargets(_ Handle, rtvs []CPUDescriptor, dsv *CPUDescriptor) {
	f.record("OMSetRenderTargets %d depth=%t", len(rtvs), dsv != nil)
}

func (f *fakeDriver) ClearRenderTargetView(_ Handle, _ CPUDescriptor, color [4]float32) {
	f.record("ClearRenderTargetView %v", color)
}

func (f *fakeDriver) ClearDepthStencilView(_ Handle, _ CPUDescriptor, depth float32, stencil uint8, clearStencil bool) {
	f.record("ClearDepthStencilView %v %d %t", depth, stencil, clearStencil)
}

func (f *fakeDriver) RSSetViewport(_ Handle, vp Viewport) {
	f.record("RSSetViewport %vx%v", vp.Width, vp.Height)
}

func (f *fakeDriver) SetPipelineState(Handle, Handle) { f.record("SetPipelineState") }

func (f *fakeDriver) SetRootSignature(_ Handle, compute bool, _ Handle) {
	f.record("SetRootSignature compute=%t", compute)
}

func (f *fakeDriver) SetRootDescriptorTable(_ Handle, _ bool, param uint32, heap DescriptorHeapType, slot uint32) {
	f.tables = append(f.tables, fakeTable{param: param, heap: heap, slot: slot})
	f.record("SetRootDescriptorTable %d", param)
}

func (f *fakeDriver) SetRootView(_ Handle, _ bool, param uint32, kind RootParameterType, address uint64) {
	f.rootViews = append(f.rootViews, fakeRootView{param: param, kind: kind, address: address})
	f.record("SetRootView %d", param)
}

func (f *fakeDriver) IASetPrimitiveTopology(_ Handle, t PrimitiveTopology) {
	f.record("IASetPrimitiveTopology %d", t)
}

func (f *fakeDriver) IASetVertexBuffer(_ Handle, slot uint32, view VertexBufferView) {
	f.vertexViews[slot] = view
	f.record("IASetVertexBuffer %d", slot)
}

func (f *fakeDriver) IASetIndexBuffer(_ Handle, view IndexBufferView) {
	f.indexView = view
	f.record("IASetIndexBuffer")
}

func (f *fakeDriver) DrawInstanced(_ Handle, vertexCount, instanceCount, _, _ uint32) {
	f.record("DrawInstanced %d %d", vertexCount, instanceCount)
}

func (f *fakeDriver) DrawIndexedInstanced(_ Handle, indexCount, instanceCount, _ uint32, _ int32, _ uint32) {
	f.record("DrawIndexedInstanced %d %d", indexCount, instanceCount)
}

func (f *fakeDriver) Dispatch(_ Handle, x, y, z uint32) { f.record("Dispatch %d %d %d", x, y, z) }

func (f *fakeDriver) CopyBufferRegion(_ Handle, _ Handle, dstOffset uint64, _ Handle, srcOffset uint64, size uint64) {
	f.record("CopyBufferRegion %d %d %d", srcOffset, dstOffset, size)
}

func (f *fakeDriver) CopyBufferToTexture(_ Handle, region TextureCopy) {
	f.textureCopies = append(f.textureCopies, region)
	f.record("CopyBufferToTexture %d", region.Subresource)
}

func (f *fakeDriver) CopyTextureToBuffer(_ Handle, region TextureCopy) {
	f.textureCopies = append(f.textureCopies, region)
	f.record("CopyTextureToBuffer %d", region.Subresource)
}

func (f *fakeDriver) GenerateMip(_ Handle, _ Handle, _ Format, src, dst uint32, linear bool) {
	f.record("GenerateMip %d->%d linear=%t", src, dst, linear)
}

func (f *fakeDriver) ExecuteCommandLists(lists []Handle) error {
	f.record("ExecuteCommandLists %d", len(lists))
	return nil
}

func (f *fakeDriver) QueueWaitIdle() error { f.record("QueueWaitIdle"); return nil }

func (f *fakeDriver) CreateFence(initial uint64) (Handle, error) {
	h := f.handle()
	f.fences[h] = initial
	f.record("CreateFence %d", initial)
	return h, nil
}

// Signal completes immediately, as if the GPU were done already.
func (f *fakeDriver) Signal(fence Handle, value uint64) error {
	f.fences[fence] = value
	f.record("Signal %d", value)
	return nil
}

func (f *fakeDriver) CompletedValue(fence Handle) uint64 { return f.fences[fence] }

func (f *fakeDriver) WaitForValue(fence Handle, value uint64, _ uint64) (bool, error) {
	return f.fences[fence] >= value, nil
}

func (f *fakeDriver) CreateSwapchain(_ renderer.SurfaceProvider, desc renderer.SwapchainDesc) (*SwapchainBuffers, error) {
	sc := &SwapchainBuffers{
		Handle: f.handle(),
		Format: FormatB8G8R8A8Unorm,
		Width:  desc.Width,
		Height: desc.Height,
	}
	for i := uint32(0); i < max(desc.ImageCount, 2); i++ {
		sc.Buffers = append(sc.Buffers, f.handle())
	}
	f.swapchain = sc
	f.record("CreateSwapchain %dx%d", desc.Width, desc.Height)
	return sc, nil
}

func (f *fakeDriver) CurrentBackBufferIndex(Handle) uint32 { return f.backBuffer }

func (f *fakeDriver) Present(_ Handle, syncInterval uint32) error {
	f.record("Present %d", syncInterval)
	return nil
}

func (f *fakeDriver) Destroy() { f.record("Destroy") }

var _ Driver = (*fakeDriver)(nil)
