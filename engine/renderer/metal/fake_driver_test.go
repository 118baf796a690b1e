package metal

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spaghettifunk/gfxhal/engine/renderer"
)

// fakeDriver records the calls the device makes. Every object gets a fresh
// handle; shared buffers are backed by byte slices and events by counters.
type fakeDriver struct {
	mu    sync.Mutex
	calls []string
	next  Handle

	textures      map[Handle]*TextureDescriptor
	memory        map[Handle][]byte
	events        map[Handle]uint64
	samplers      map[uint32]*SamplerDescriptor
	barriers      []MemoryBarrier
	passes        []*RenderPassDescriptor
	pipelines     []*RenderPipelineDescriptor
	depthStencils []*DepthStencilDescriptor
	buffers       []fakeBufferBinding
	textureBinds  []fakeTextureBinding
	samplerBinds  []fakeTextureBinding
	textureCopies []TextureCopy
	indexed       []fakeIndexedDraw
	dispatches    [][2][3]uint32
	commits       [][]Handle
	released      int
	failTexture   bool
	layer         *Layer
	drawable      uint32
}

type fakeBufferBinding struct {
	stages FunctionStages
	buffer Handle
	offset uint64
	index  uint32
}

type fakeTextureBinding struct {
	stages FunctionStages
	object uint64
	index  uint32
}

type fakeIndexedDraw struct {
	indexType IndexType
	buffer    Handle
	offset    uint64
	count     uint32
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		next:     0x100,
		textures: make(map[Handle]*TextureDescriptor),
		memory:   make(map[Handle][]byte),
		events:   make(map[Handle]uint64),
		samplers: make(map[uint32]*SamplerDescriptor),
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

func (f *fakeDriver) CreateTexture(desc *TextureDescriptor) (Handle, error) {
	if f.failTexture {
		f.failTexture = false
		return NullHandle, fmt.Errorf("texture allocation failed")
	}
	h := f.handle()
	f.textures[h] = desc
	f.record("CreateTexture %d", desc.PixelFormat)
	return h, nil
}

func (f *fakeDriver) CreateSampler(desc *SamplerDescriptor, slot uint32) {
	f.samplers[slot] = desc
	f.record("CreateSampler %d", slot)
}

func (f *fakeDriver) CreateBuffer(length uint64, mode StorageMode) (Handle, error) {
	h := f.handle()
	if mode == StorageModeShared {
		f.memory[h] = make([]byte, length)
	}
	f.record("CreateBuffer %d mode=%d", length, mode)
	return h, nil
}

func (f *fakeDriver) WriteBuffer(buffer Handle, offset uint64, data []byte) error {
	copy(f.memory[buffer][offset:], data)
	f.record("WriteBuffer %d %d", offset, len(data))
	return nil
}

func (f *fakeDriver) ReadBuffer(buffer Handle, offset uint64, out []byte) error {
	copy(out, f.memory[buffer][offset:])
	f.record("ReadBuffer %d %d", offset, len(out))
	return nil
}

func (f *fakeDriver) NewFunction(_ []byte, stage FunctionStages) (Handle, error) {
	f.record("NewFunction %d", stage)
	return f.handle(), nil
}

func (f *fakeDriver) CreateRenderPipelineState(desc *RenderPipelineDescriptor) (Handle, error) {
	f.pipelines = append(f.pipelines, desc)
	f.record("CreateRenderPipelineState")
	return f.handle(), nil
}

func (f *fakeDriver) CreateDepthStencilState(desc *DepthStencilDescriptor) (Handle, error) {
	f.depthStencils = append(f.depthStencils, desc)
	f.record("CreateDepthStencilState")
	return f.handle(), nil
}

func (f *fakeDriver) CreateComputePipelineState(Handle) (Handle, error) {
	f.record("CreateComputePipelineState")
	return f.handle(), nil
}

func (f *fakeDriver) Release(Handle) {
	f.released++
	f.record("Release")
}

func (f *fakeDriver) NewCommandBuffer() (Handle, error) {
	f.record("NewCommandBuffer")
	return f.handle(), nil
}

func (f *fakeDriver) BeginRenderEncoder(_ Handle, desc *RenderPassDescriptor) (Handle, error) {
	f.passes = append(f.passes, desc)
	f.record("BeginRenderEncoder %d depth=%t", len(desc.Colors), desc.Depth != nil)
	return f.handle(), nil
}

func (f *fakeDriver) BeginComputeEncoder(Handle) (Handle, error) {
	f.record("BeginComputeEncoder")
	return f.handle(), nil
}

func (f *fakeDriver) BeginBlitEncoder(Handle) (Handle, error) {
	f.record("BeginBlitEncoder")
	return f.handle(), nil
}

func (f *fakeDriver) EndEncoding(Handle) { f.record("EndEncoding") }

func (f *fakeDriver) MemoryBarrier(_ Handle, b MemoryBarrier) {
	f.barriers = append(f.barriers, b)
	f.record("MemoryBarrier scope=%d", b.Scope)
}

func (f *fakeDriver) SetRenderPipelineState(Handle, Handle) { f.record("SetRenderPipelineState") }
func (f *fakeDriver) SetDepthStencilState(Handle, Handle)   { f.record("SetDepthStencilState") }

func (f *fakeDriver) SetStencilReference(_ Handle, ref uint32) {
	f.record("SetStencilReference %d", ref)
}

func (f *fakeDriver) SetCullMode(_ Handle, mode CullMode)              { f.record("SetCullMode %d", mode) }
func (f *fakeDriver) SetFrontFacing(_ Handle, w Winding)               { f.record("SetFrontFacing %d", w) }
func (f *fakeDriver) SetTriangleFillMode(_ Handle, m TriangleFillMode) { f.record("SetTriangleFillMode %d", m) }

func (f *fakeDriver) SetViewport(_ Handle, vp Viewport) {
	f.record("SetViewport %vx%v", vp.Width, vp.Height)
}

func (f *fakeDriver) SetBuffer(_ Handle, stages FunctionStages, buffer Handle, offset uint64, index uint32) {
	f.buffers = append(f.buffers, fakeBufferBinding{stages: stages, buffer: buffer, offset: offset, index: index})
	f.record("SetBuffer %d", index)
}

func (f *fakeDriver) SetTexture(_ Handle, stages FunctionStages, texture Handle, index uint32) {
	f.textureBinds = append(f.textureBinds, fakeTextureBinding{stages: stages, object: uint64(texture), index: index})
	f.record("SetTexture %d", index)
}

func (f *fakeDriver) SetSampler(_ Handle, stages FunctionStages, slot uint32, index uint32) {
	f.samplerBinds = append(f.samplerBinds, fakeTextureBinding{stages: stages, object: uint64(slot), index: index})
	f.record("SetSampler %d", index)
}

func (f *fakeDriver) DrawPrimitives(_ Handle, prim PrimitiveType, _, vertexCount, instanceCount, _ uint32) {
	f.record("DrawPrimitives %d %d %d", prim, vertexCount, instanceCount)
}

func (f *fakeDriver) DrawIndexedPrimitives(_ Handle, _ PrimitiveType, indexCount uint32, indexType IndexType, indexBuffer Handle, indexOffset uint64, _ uint32, _ int32, _ uint32) {
	f.indexed = append(f.indexed, fakeIndexedDraw{indexType: indexType, buffer: indexBuffer, offset: indexOffset, count: indexCount})
	f.record("DrawIndexedPrimitives %d", indexCount)
}

func (f *fakeDriver) SetComputePipelineState(Handle, Handle) { f.record("SetComputePipelineState") }

func (f *fakeDriver) DispatchThreadgroups(_ Handle, groups, threads [3]uint32) {
	f.dispatches = append(f.dispatches, [2][3]uint32{groups, threads})
	f.record("DispatchThreadgroups")
}

func (f *fakeDriver) CopyBuffer(_ Handle, _ Handle, srcOffset uint64, _ Handle, dstOffset uint64, size uint64) {
	f.record("CopyBuffer %d %d %d", srcOffset, dstOffset, size)
}

func (f *fakeDriver) CopyBufferToTexture(_ Handle, region TextureCopy) {
	f.textureCopies = append(f.textureCopies, region)
	f.record("CopyBufferToTexture %d/%d", region.Level, region.Slice)
}

func (f *fakeDriver) CopyTextureToBuffer(_ Handle, region TextureCopy) {
	f.textureCopies = append(f.textureCopies, region)
	f.record("CopyTextureToBuffer %d/%d", region.Level, region.Slice)
}

func (f *fakeDriver) GenerateMip(_ Handle, _ Handle, slice, srcLevel uint32, linear bool) {
	f.record("GenerateMip %d %d->%d linear=%t", slice, srcLevel, srcLevel+1, linear)
}

// Commit completes immediately, as if the GPU were done already.
func (f *fakeDriver) Commit(cbs []Handle, event Handle, value uint64) error {
	f.commits = append(f.commits, cbs)
	if event != NullHandle {
		f.events[event] = value
	}
	f.record("Commit %d", len(cbs))
	return nil
}

func (f *fakeDriver) WaitIdle() error { f.record("WaitIdle"); return nil }

func (f *fakeDriver) CreateEvent(initial uint64) (Handle, error) {
	h := f.handle()
	f.events[h] = initial
	f.record("CreateEvent %d", initial)
	return h, nil
}

func (f *fakeDriver) SignaledValue(event Handle) uint64 { return f.events[event] }

func (f *fakeDriver) WaitForEvent(event Handle, value uint64, _ uint64) (bool, error) {
	return f.events[event] >= value, nil
}

func (f *fakeDriver) CreateLayer(_ renderer.SurfaceProvider, desc renderer.SwapchainDesc) (*Layer, error) {
	l := &Layer{
		Handle: f.handle(),
		Format: PixelFormatBGRA8Unorm,
		Width:  desc.Width,
		Height: desc.Height,
	}
	for i := uint32(0); i < max(desc.ImageCount, 3); i++ {
		l.Drawables = append(l.Drawables, f.handle())
	}
	f.layer = l
	f.record("CreateLayer %dx%d", desc.Width, desc.Height)
	return l, nil
}

func (f *fakeDriver) NextDrawable(Handle) (uint32, error) { return f.drawable, nil }

func (f *fakeDriver) PresentDrawable(_ Handle, index uint32) error {
	f.record("PresentDrawable %d", index)
	return nil
}

func (f *fakeDriver) Destroy() { f.record("Destroy") }

var _ Driver = (*fakeDriver)(nil)
