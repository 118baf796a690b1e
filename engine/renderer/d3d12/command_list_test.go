package d3d12

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
	"github.com/spaghettifunk/gfxhal/engine/renderer/rendertest"
)

const mipUsage = metadata.TextureUsageSampled | metadata.TextureUsageTransferSrc | metadata.TextureUsageTransferDst

func TestTransitionRecordsOneBarrierCall(t *testing.T) {
	d, drv := newTestDevice(4)
	tex := createTexture(t, d, mipUsage, 3)
	cl := recording(t, d)

	require.NoError(t, renderer.TransitionTexture(cl, tex, metadata.AllSubresources, metadata.ResourceStateTransferDst))
	require.Len(t, drv.barriers, 1)
	require.Len(t, drv.barriers[0], 3)
	for mip, b := range drv.barriers[0] {
		assert.Equal(t, uint32(mip), b.Subresource)
		assert.Equal(t, ResourceStateCommon, b.Before)
		assert.Equal(t, ResourceStateCopyDest, b.After)
	}

	// Nothing left to change.
	require.NoError(t, renderer.TransitionTexture(cl, tex, metadata.AllSubresources, metadata.ResourceStateTransferDst))
	assert.Equal(t, 1, drv.count("ResourceBarrier"))
}

func TestPresentNeedsNoNativeBarrier(t *testing.T) {
	d, drv := newTestDevice(4)
	tex := createTexture(t, d, metadata.TextureUsageColorAttachment|metadata.TextureUsagePresent, 1)
	cl := recording(t, d)

	require.NoError(t, renderer.TransitionTexture(cl, tex, metadata.AllSubresources, metadata.ResourceStatePresentSrc))
	assert.Zero(t, drv.count("ResourceBarrier"))
	assert.Equal(t, metadata.ResourceStatePresentSrc, tex.States().Get(0, 0))
}

func TestBufferBarrierByHeap(t *testing.T) {
	d, drv := newTestDevice(4)
	upload := createBuffer(t, d, metadata.BufferUsageUniform, 256, true)
	local := createBuffer(t, d, metadata.BufferUsageVertex|metadata.BufferUsageTransferDst, 256, false)
	cl := recording(t, d)

	require.NoError(t, renderer.TransitionBuffer(cl, upload, metadata.ResourceStateShaderReadOnly))
	assert.Zero(t, drv.count("ResourceBarrier"), "upload heap buffers keep their state")
	assert.Equal(t, metadata.ResourceStateShaderReadOnly, upload.State().Get())

	require.NoError(t, renderer.TransitionBuffer(cl, local, metadata.ResourceStateTransferDst))
	require.NoError(t, renderer.TransitionBuffer(cl, local, metadata.ResourceStateShaderReadOnly))
	require.Len(t, drv.barriers, 2)
	b := drv.barriers[1][0]
	assert.Equal(t, uint32(AllSubresources), b.Subresource)
	assert.Equal(t, ResourceStateCopyDest, b.Before)
	assert.NotZero(t, b.After&ResourceStateVertexAndConstantBuffer)
}

func TestBarrierOutsideRecording(t *testing.T) {
	d, _ := newTestDevice(4)
	tex := createTexture(t, d, mipUsage, 1)
	cmd, err := d.CreateCommandBuffer()
	require.NoError(t, err)

	err = cmd.TextureBarrier(tex, []renderer.SubresourceTransition{{After: metadata.ResourceStateTransferDst}})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))
}

func framebuffer(t *testing.T, d *Device) (renderer.Framebuffer, *Texture) {
	t.Helper()
	rp, err := d.CreateRenderPass(colorPass())
	require.NoError(t, err)
	color := createTexture(t, d, metadata.TextureUsageColorAttachment|metadata.TextureUsageSampled, 1)
	depth, err := d.CreateTexture(metadata.TextureDesc{Width: 16, Height: 16, Format: metadata.PixelFormatD32Float, Usage: metadata.TextureUsageDepthStencilAttachment})
	require.NoError(t, err)
	fb, err := d.CreateFramebuffer(rp, []renderer.Attachment{{Texture: color}, {Texture: depth}})
	require.NoError(t, err)
	return fb, color
}

func TestRenderPassLifecycle(t *testing.T) {
	d, drv := newTestDevice(8)
	fb, color := framebuffer(t, d)
	cl := recording(t, d)

	require.NoError(t, cl.BeginRenderPass(fb, renderer.ClearValues{Colors: [][4]float32{{1, 0, 0, 1}}, Depth: 1}))
	require.Len(t, drv.barriers, 1)
	require.Len(t, drv.barriers[0], 2)
	assert.Equal(t, ResourceStateRenderTarget, drv.barriers[0][0].After)
	assert.Equal(t, ResourceStateDepthWrite, drv.barriers[0][1].After)
	assert.Equal(t, 1, drv.count("OMSetRenderTargets 1 depth=true"))
	assert.Equal(t, 1, drv.count("ClearRenderTargetView [1 0 0 1]"))
	assert.Equal(t, 1, drv.count("ClearDepthStencilView 1 0 false"))
	assert.Equal(t, 1, drv.count("RSSetViewport 16x16"))

	err := cl.TextureBarrier(color, []renderer.SubresourceTransition{{After: metadata.ResourceStateShaderReadOnly}})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))
	assert.Equal(t, core.KindUsageViolation, core.KindOf(cl.End()), "render pass still open")
	assert.Equal(t, core.KindUsageViolation, core.KindOf(cl.BeginRenderPass(fb, renderer.ClearValues{})))

	require.NoError(t, cl.EndRenderPass())
	// Depth stays in DepthWrite, so only the color target moves.
	require.Len(t, drv.barriers, 2)
	require.Len(t, drv.barriers[1], 1)
	assert.Equal(t, ResourceStateRenderTarget, drv.barriers[1][0].Before)
	assert.Equal(t, State(metadata.ResourceStateShaderReadOnly), drv.barriers[1][0].After)

	require.NoError(t, renderer.ApplyRenderPassEnd(fb))
	assert.Equal(t, metadata.ResourceStateShaderReadOnly, color.States().Get(0, 0))
	require.NoError(t, cl.End())
	assert.Equal(t, 1, drv.count("CloseCommandList"))
}

func TestLoadOpLoadSkipsClear(t *testing.T) {
	d, drv := newTestDevice(8)
	cfg := colorPass()
	cfg.Colors[0].LoadOp = metadata.LoadOpLoad
	cfg.DepthStencil = nil
	rp, err := d.CreateRenderPass(cfg)
	require.NoError(t, err)
	color := createTexture(t, d, metadata.TextureUsageColorAttachment, 1)
	fb, err := d.CreateFramebuffer(rp, []renderer.Attachment{{Texture: color}})
	require.NoError(t, err)
	cl := recording(t, d)

	require.NoError(t, cl.BeginRenderPass(fb, renderer.ClearValues{}))
	assert.Zero(t, drv.count("ClearRenderTargetView"))
	assert.Equal(t, 1, drv.count("OMSetRenderTargets 1 depth=false"))
}

func TestBindDescriptors(t *testing.T) {
	d, drv := newTestDevice(8)
	p := createQuadPipeline(t, d)
	plan := p.Plan()
	ubo := createBuffer(t, d, metadata.BufferUsageUniform, 512, true)
	albedo := createTexture(t, d, metadata.TextureUsageSampled, 1)
	cl := recording(t, d)

	require.NoError(t, cl.BindPipeline(p))
	assert.Equal(t, 1, drv.count("SetRootSignature compute=false"))
	assert.Equal(t, 1, drv.count("IASetPrimitiveTopology 4"))

	require.NoError(t, cl.BindDescriptor(p, &plan.Entries[0], renderer.DescriptorResource{Buffer: ubo, Offset: 256}))
	require.Len(t, drv.rootViews, 1)
	assert.Equal(t, fakeRootView{param: 0, kind: RootParameterCBV, address: ubo.GPUAddress() + 256}, drv.rootViews[0])

	require.NoError(t, cl.BindDescriptor(p, &plan.Entries[1], renderer.DescriptorResource{Texture: albedo}))
	assert.Equal(t, []fakeTable{
		{param: 1, heap: DescriptorHeapCBVSRVUAV, slot: uint32(albedo.SRVSlot())},
		{param: 2, heap: DescriptorHeapSampler, slot: uint32(albedo.SRVSlot())},
	}, drv.tables)
}

func TestBindDescriptorValidation(t *testing.T) {
	d, _ := newTestDevice(8)
	p := createQuadPipeline(t, d)
	plan := p.Plan()
	ubo := createBuffer(t, d, metadata.BufferUsageUniform, 512, true)
	storage := createTexture(t, d, metadata.TextureUsageStorage, 1)
	cl := recording(t, d)

	err := cl.BindDescriptor(p, &plan.Entries[1], renderer.DescriptorResource{Texture: storage})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err), "combined image sampler needs a sampled texture")

	err = cl.BindDescriptor(p, &plan.Entries[0], renderer.DescriptorResource{Buffer: ubo, Offset: 100})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err), "constant buffers are 256 byte aligned")

	err = cl.BindDescriptor(p, &plan.Entries[0], renderer.DescriptorResource{Buffer: ubo, Offset: 256, Size: 512})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))

	err = cl.BindDescriptor(p, &plan.Entries[0], renderer.DescriptorResource{Texture: storage})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))

	unassigned := metadata.BindingEntry{Name: "lights", Type: metadata.DescriptorTypeStorageBuffer}
	err = cl.BindDescriptor(p, &unassigned, renderer.DescriptorResource{Buffer: ubo})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))
}

func TestBindComputeResources(t *testing.T) {
	d, drv := newTestDevice(8)
	pipeline, err := d.CreateComputePipeline(renderer.ComputePipelineDesc{
		Label:  "simulate",
		Module: &renderer.ShaderModule{Stage: metadata.ShaderStageCompute, Path: "simulate.comp", Code: make([]byte, 8)},
		Plan: &metadata.BindingPlan{Entries: []metadata.BindingEntry{
			{Logical: 0, Name: "particles", Type: metadata.DescriptorTypeStorageBuffer, Stages: metadata.ShaderStageCompute},
			{Logical: 1, Name: "image", Type: metadata.DescriptorTypeStorageImage, Stages: metadata.ShaderStageCompute},
		}},
	})
	require.NoError(t, err)
	plan := pipeline.Plan()
	particles := createBuffer(t, d, metadata.BufferUsageStorage, 1024, false)
	image := createTexture(t, d, metadata.TextureUsageStorage, 1)
	cl := recording(t, d)

	require.NoError(t, cl.BindPipeline(pipeline))
	assert.Equal(t, 1, drv.count("SetRootSignature compute=true"))
	assert.Zero(t, drv.count("IASetPrimitiveTopology"))

	require.NoError(t, cl.BindDescriptor(pipeline, &plan.Entries[0], renderer.DescriptorResource{Buffer: particles, Offset: 4}))
	assert.Equal(t, RootParameterUAV, drv.rootViews[0].kind)
	assert.Equal(t, particles.GPUAddress()+4, drv.rootViews[0].address)

	require.NoError(t, cl.BindDescriptor(pipeline, &plan.Entries[1], renderer.DescriptorResource{Texture: image}))
	assert.Equal(t, fakeTable{param: 1, heap: DescriptorHeapCBVSRVUAV, slot: uint32(image.UAVSlot())}, drv.tables[0])

	cl.Dispatch(8, 8, 1)
	assert.Equal(t, 1, drv.count("Dispatch 8 8 1"))
}

func TestBindVertexAndIndexBuffers(t *testing.T) {
	d, drv := newTestDevice(8)
	p := createQuadPipeline(t, d)
	plan := p.Plan()
	vertices := createBuffer(t, d, metadata.BufferUsageVertex, 1024, true)
	indices := createBuffer(t, d, metadata.BufferUsageIndex, 128, true)
	cl := recording(t, d)

	require.NoError(t, cl.BindVertexBuffer(p, &plan.Attributes[1], vertices, 64))
	view := drv.vertexViews[1]
	assert.Equal(t, uint32(64), view.Stride)
	assert.Equal(t, uint32(960), view.Size)
	assert.Equal(t, vertices.GPUAddress()+64, view.Location)

	require.NoError(t, cl.BindIndexBuffer(indices, 0, renderer.IndexFormatUint16))
	assert.Equal(t, FormatR16Uint, drv.indexView.Format)

	err := cl.BindVertexBuffer(p, &plan.Attributes[0], indices, 0)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))
	err = cl.BindIndexBuffer(vertices, 0, renderer.IndexFormatUint32)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))

	cl.DrawIndexed(6, 1, 0, 0, 0)
	assert.Equal(t, 1, drv.count("DrawIndexedInstanced 6 1"))
}

func TestCopyBufferToTextureChecksState(t *testing.T) {
	d, drv := newTestDevice(8)
	tex := createTexture(t, d, mipUsage, 2)
	staging := createBuffer(t, d, metadata.BufferUsageTransferSrc, 16*16*4+8*8*4, true)
	cl := recording(t, d)

	err := cl.CopyBufferToTexture(staging, 0, tex, 0, 0)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err), "texture is still undefined")

	require.NoError(t, renderer.TransitionTexture(cl, tex, metadata.AllSubresources, metadata.ResourceStateTransferDst))
	require.NoError(t, cl.CopyBufferToTexture(staging, 0, tex, 0, 0))
	require.NoError(t, cl.CopyBufferToTexture(staging, 1024, tex, 1, 0))
	require.Len(t, drv.textureCopies, 2)
	assert.Equal(t, uint32(64), drv.textureCopies[0].RowPitch)
	assert.Equal(t, uint32(32), drv.textureCopies[1].RowPitch)
	assert.Equal(t, uint32(1), drv.textureCopies[1].Subresource)
	assert.Equal(t, uint32(8), drv.textureCopies[1].Width)

	err = cl.CopyBufferToTexture(staging, 1025, tex, 1, 0)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err), "one byte short")
	err = cl.CopyBufferToTexture(staging, 0, tex, 2, 0)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))
}

func TestCopyTextureToBuffer(t *testing.T) {
	d, drv := newTestDevice(8)
	tex := createTexture(t, d, mipUsage, 1)
	readback := createBuffer(t, d, metadata.BufferUsageTransferDst, 16*16*4, true)
	cl := recording(t, d)

	require.NoError(t, renderer.TransitionTexture(cl, tex, metadata.AllSubresources, metadata.ResourceStateTransferSrc))
	require.NoError(t, cl.CopyTextureToBuffer(tex, 0, 0, readback, 0))
	assert.Equal(t, 1, drv.count("CopyTextureToBuffer 0"))

	err := cl.CopyBuffer(readback, readback, 0, 512, 1024)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))
	require.NoError(t, cl.CopyBuffer(readback, readback, 0, 512, 256))
	assert.Equal(t, 1, drv.count("CopyBufferRegion 0 512 256"))
}

func TestBlitMipGeneratesMip(t *testing.T) {
	d, drv := newTestDevice(8)
	tex := createTexture(t, d, mipUsage, 3)
	cl := recording(t, d)

	require.NoError(t, renderer.TransitionTexture(cl, tex, metadata.AllSubresources, metadata.ResourceStateTransferDst))
	err := cl.BlitMip(tex, 0, 0)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err), "source mip is not a transfer source")

	require.NoError(t, renderer.TransitionTexture(cl, tex, metadata.Subresource(0, 0), metadata.ResourceStateTransferSrc))
	require.NoError(t, cl.BlitMip(tex, 0, 0))
	assert.Equal(t, 1, drv.count("GenerateMip 0->1 linear=true"))

	err = cl.BlitMip(tex, 0, 2)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err), "no mip below the last")
}

func TestSubmitSignalsFence(t *testing.T) {
	d, drv := newTestDevice(4)
	cl := recording(t, d)
	fence, err := d.CreateFence(false)
	require.NoError(t, err)
	assert.False(t, fence.Signaled())

	err = d.Queue().Submit([]renderer.CommandBuffer{cl}, fence)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))
	assert.Zero(t, drv.count("ExecuteCommandLists"))

	require.NoError(t, cl.End())
	require.NoError(t, d.Queue().Submit([]renderer.CommandBuffer{cl}, fence))
	assert.Equal(t, 1, drv.count("ExecuteCommandLists 1"))
	assert.Equal(t, 1, drv.count("Signal 1"))
	ok, err := fence.Wait(time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, fence.Reset())
	assert.False(t, fence.Signaled())
	assert.Equal(t, uint64(2), fence.(*Fence).Target())
	ok, err = fence.Wait(0)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cl.Reset())
	require.NoError(t, cl.Begin())
	require.NoError(t, cl.End())
	require.NoError(t, d.Queue().Submit([]renderer.CommandBuffer{cl}, fence))
	assert.Equal(t, 1, drv.count("Signal 2"))
	assert.True(t, fence.Signaled())

	cl.Destroy()
	fence.Destroy()
	assert.Equal(t, 2, drv.released)
}

func TestSignaledFence(t *testing.T) {
	d, drv := newTestDevice(4)
	fence, err := d.CreateFence(true)
	require.NoError(t, err)
	assert.Equal(t, 1, drv.count("CreateFence 1"))
	assert.True(t, fence.Signaled())
}

func TestSwapchainPresent(t *testing.T) {
	d, drv := newTestDevice(4)
	_, err := d.CreateSwapchain(nil, renderer.SwapchainDesc{})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))

	sc, err := d.CreateSwapchain(rendertest.Surface{Width: 800, Height: 600}, renderer.SwapchainDesc{})
	require.NoError(t, err)
	w, h := sc.Extent()
	assert.Equal(t, uint32(800), w)
	assert.Equal(t, uint32(600), h)
	require.Len(t, sc.Images(), 2)
	assert.Equal(t, metadata.PixelFormatBGRA8Unorm, sc.Images()[1].Desc().Format)

	drv.backBuffer = 1
	index, err := sc.AcquireNextImage()
	require.NoError(t, err)
	require.Equal(t, uint32(1), index)
	img := sc.Images()[index]

	err = sc.Present(index)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err), "image was never moved to the present state")

	cl := recording(t, d)
	require.NoError(t, renderer.TransitionTexture(cl, img, metadata.Subresource(0, 0), metadata.ResourceStatePresentSrc))
	assert.Equal(t, core.KindUsageViolation, core.KindOf(sc.Present(0)), "not the current back buffer")
	require.NoError(t, sc.Present(index))
	assert.Equal(t, 1, drv.count("Present 0"))
	assert.Equal(t, core.KindUsageViolation, core.KindOf(sc.Present(5)))

	sc.Destroy()
	// Back buffers belong to the swapchain; only the swapchain is released.
	assert.Equal(t, 1, drv.released)
}

func TestSwapchainVSync(t *testing.T) {
	d, drv := newTestDevice(4)
	sc, err := d.CreateSwapchain(rendertest.Surface{Width: 64, Height: 64}, renderer.SwapchainDesc{ImageCount: 3, VSync: true})
	require.NoError(t, err)
	require.Len(t, sc.Images(), 3)

	index, err := sc.AcquireNextImage()
	require.NoError(t, err)
	cl := recording(t, d)
	require.NoError(t, renderer.TransitionTexture(cl, sc.Images()[index], metadata.AllSubresources, metadata.ResourceStatePresentSrc))
	require.NoError(t, sc.Present(index))
	assert.Equal(t, 1, drv.count("Present 1"))
}
