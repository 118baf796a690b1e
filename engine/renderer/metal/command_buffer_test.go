package metal

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

func TestTransitionRecordsOneMemoryBarrier(t *testing.T) {
	d, drv := newTestDevice(4)
	tex := createTexture(t, d, mipUsage, 3)
	cb := recording(t, d)

	require.NoError(t, renderer.TransitionTexture(cb, tex, metadata.AllSubresources, metadata.ResourceStateTransferDst))
	require.Len(t, drv.barriers, 1)
	assert.Equal(t, []Handle{tex.Texture()}, drv.barriers[0].Resources)
	assert.Equal(t, BarrierScopeTextures, drv.barriers[0].Scope)
	assert.Equal(t, 1, drv.count("BeginComputeEncoder"))

	// Nothing left to change.
	require.NoError(t, renderer.TransitionTexture(cb, tex, metadata.AllSubresources, metadata.ResourceStateTransferDst))
	assert.Equal(t, 1, drv.count("MemoryBarrier"))

	require.NoError(t, renderer.TransitionTexture(cb, tex, metadata.Subresource(1, 0), metadata.ResourceStateShaderReadOnly))
	assert.Equal(t, 2, drv.count("MemoryBarrier"))
	assert.Equal(t, 1, drv.count("BeginComputeEncoder"), "barriers share the open encoder")
}

func TestBufferBarrier(t *testing.T) {
	d, drv := newTestDevice(4)
	buf := createBuffer(t, d, metadata.BufferUsageVertex|metadata.BufferUsageTransferDst, 256, false)
	cb := recording(t, d)

	require.NoError(t, renderer.TransitionBuffer(cb, buf, metadata.ResourceStateTransferDst))
	require.NoError(t, renderer.TransitionBuffer(cb, buf, metadata.ResourceStateShaderReadOnly))
	require.Len(t, drv.barriers, 2)
	assert.Equal(t, BarrierScopeBuffers, drv.barriers[1].Scope)
	assert.Equal(t, RenderStageVertex|RenderStageFragment, drv.barriers[1].Before)
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
	depth, err := d.CreateTexture(metadata.TextureDesc{Label: "depth", Width: 16, Height: 16, Format: metadata.PixelFormatD24UnormS8Uint, Usage: metadata.TextureUsageDepthStencilAttachment})
	require.NoError(t, err)
	fb, err := d.CreateFramebuffer(rp, []renderer.Attachment{{Texture: color}, {Texture: depth}})
	require.NoError(t, err)
	return fb, color
}

func TestRenderPassLifecycle(t *testing.T) {
	d, drv := newTestDevice(4)
	fb, color := framebuffer(t, d)
	cb := recording(t, d)

	require.NoError(t, renderer.PrepareRenderPass(cb, fb))
	require.NoError(t, cb.BeginRenderPass(fb, renderer.ClearValues{Colors: [][4]float32{{1, 0, 0, 1}}, Depth: 1, Stencil: 7}))
	require.Len(t, drv.passes, 1)
	pass := drv.passes[0]
	require.Len(t, pass.Colors, 1)
	assert.Equal(t, color.Texture(), pass.Colors[0].Texture)
	assert.Equal(t, LoadActionClear, pass.Colors[0].LoadAction)
	assert.Equal(t, StoreActionStore, pass.Colors[0].StoreAction)
	assert.Equal(t, [4]float64{1, 0, 0, 1}, pass.Colors[0].ClearColor)
	require.NotNil(t, pass.Depth)
	assert.Equal(t, float64(1), pass.Depth.ClearDepth)
	require.NotNil(t, pass.Stencil, "combined depth stencil format")
	assert.Equal(t, uint32(7), pass.Stencil.ClearStencil)
	assert.Equal(t, 1, drv.count("SetViewport 16x16"))

	err := cb.TextureBarrier(color, []renderer.SubresourceTransition{{After: metadata.ResourceStateShaderReadOnly}})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err), "no barriers inside a pass")
	assert.Equal(t, core.KindUsageViolation, core.KindOf(cb.End()))
	assert.Equal(t, core.KindUsageViolation, core.KindOf(cb.BeginRenderPass(fb, renderer.ClearValues{})))

	require.NoError(t, cb.EndRenderPass())
	require.NoError(t, renderer.ApplyRenderPassEnd(fb))
	assert.Equal(t, metadata.ResourceStateShaderReadOnly, color.States().Get(0, 0))
	assert.Equal(t, 1, drv.count("EndEncoding"))
	assert.Equal(t, core.KindUsageViolation, core.KindOf(cb.EndRenderPass()))
	require.NoError(t, cb.End())
}

func TestMissingClearColorDefaultsToBlack(t *testing.T) {
	d, drv := newTestDevice(4)
	fb, _ := framebuffer(t, d)
	cb := recording(t, d)

	require.NoError(t, cb.BeginRenderPass(fb, renderer.ClearValues{}))
	assert.Equal(t, [4]float64{0, 0, 0, 1}, drv.passes[0].Colors[0].ClearColor)
}

func beginQuadPass(t *testing.T, d *Device) (*CommandBuffer, *Pipeline) {
	t.Helper()
	fb, _ := framebuffer(t, d)
	p := createQuadPipeline(t, d, metadata.DefaultPipelineState())
	cb := recording(t, d)
	require.NoError(t, cb.BeginRenderPass(fb, renderer.ClearValues{}))
	require.NoError(t, cb.BindPipeline(p))
	return cb, p
}

func TestBindGraphicsPipeline(t *testing.T) {
	d, drv := newTestDevice(4)
	p := createQuadPipeline(t, d, metadata.DefaultPipelineState())
	cb := recording(t, d)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(cb.BindPipeline(p)), "outside a render pass")

	beginQuadPass(t, d)
	assert.Equal(t, 1, drv.count("SetRenderPipelineState"))
	assert.Equal(t, 1, drv.count("SetDepthStencilState"))
	assert.Equal(t, 1, drv.count("SetCullMode 2"))
	assert.Equal(t, 1, drv.count("SetFrontFacing 1"))
	assert.Equal(t, 1, drv.count("SetTriangleFillMode 0"))
}

func TestBindDescriptors(t *testing.T) {
	d, drv := newTestDevice(4)
	cb, p := beginQuadPass(t, d)
	ubo := createBuffer(t, d, metadata.BufferUsageUniform, 1024, true)
	tex := createTexture(t, d, metadata.TextureUsageSampled, 1)
	plan := p.Plan()

	require.NoError(t, cb.BindDescriptor(p, &plan.Entries[0], renderer.DescriptorResource{Buffer: ubo, Offset: 256}))
	require.Len(t, drv.buffers, 1)
	assert.Equal(t, fakeBufferBinding{stages: FunctionStageVertex, buffer: ubo.Buffer(), offset: 256, index: 0}, drv.buffers[0])

	require.NoError(t, cb.BindDescriptor(p, &plan.Entries[1], renderer.DescriptorResource{Texture: tex}))
	require.Len(t, drv.textureBinds, 1)
	assert.Equal(t, fakeTextureBinding{stages: FunctionStageFragment, object: uint64(tex.Texture()), index: 1}, drv.textureBinds[0])
	require.Len(t, drv.samplerBinds, 1)
	assert.Equal(t, uint64(tex.SamplerSlot()), drv.samplerBinds[0].object)
	assert.Equal(t, uint32(1), drv.samplerBinds[0].index)
}

func TestBindDescriptorValidation(t *testing.T) {
	d, _ := newTestDevice(4)
	cb, p := beginQuadPass(t, d)
	ubo := createBuffer(t, d, metadata.BufferUsageUniform, 1024, true)
	storage := createTexture(t, d, metadata.TextureUsageStorage, 1)
	plan := p.Plan()

	cases := map[string]renderer.DescriptorResource{
		"unaligned offset": {Buffer: ubo, Offset: 64},
		"range too large":  {Buffer: ubo, Offset: 512, Size: 1024},
		"no buffer":        {Texture: storage},
	}
	for name, res := range cases {
		err := cb.BindDescriptor(p, &plan.Entries[0], res)
		assert.Equal(t, core.KindUsageViolation, core.KindOf(err), name)
	}
	err := cb.BindDescriptor(p, &plan.Entries[1], renderer.DescriptorResource{Texture: storage})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err), "texture is not sampled")
}

func computePipeline(t *testing.T, d *Device) *Pipeline {
	t.Helper()
	p, err := d.CreateComputePipeline(renderer.ComputePipelineDesc{
		Label:  "simulate",
		Module: &renderer.ShaderModule{Stage: metadata.ShaderStageCompute, Code: make([]byte, 8)},
		Plan: &metadata.BindingPlan{Entries: []metadata.BindingEntry{
			{Logical: 0, Set: 0, Name: "particles", Type: metadata.DescriptorTypeStorageBuffer, Stages: metadata.ShaderStageCompute},
			{Logical: 1, Set: 1, Name: "image", Type: metadata.DescriptorTypeStorageImage, Stages: metadata.ShaderStageCompute},
		}},
		WorkgroupSize: [3]uint32{64, 1, 1},
	})
	require.NoError(t, err)
	out, err := AsPipeline(p)
	require.NoError(t, err)
	return out
}

func TestComputeDispatch(t *testing.T) {
	d, drv := newTestDevice(4)
	p := computePipeline(t, d)
	particles := createBuffer(t, d, metadata.BufferUsageStorage, 4096, false)
	image := createTexture(t, d, metadata.TextureUsageStorage, 1)
	cb := recording(t, d)

	cb.Dispatch(1, 1, 1)
	assert.Zero(t, drv.count("DispatchThreadgroups"), "no pipeline bound")

	require.NoError(t, cb.BindPipeline(p))
	require.NoError(t, cb.BindDescriptor(p, &p.Plan().Entries[0], renderer.DescriptorResource{Buffer: particles}))
	require.NoError(t, cb.BindDescriptor(p, &p.Plan().Entries[1], renderer.DescriptorResource{Texture: image}))
	assert.Equal(t, FunctionStageKernel, drv.buffers[0].stages)
	assert.Equal(t, FunctionStageKernel, drv.textureBinds[0].stages)

	cb.Dispatch(16, 1, 1)
	require.Len(t, drv.dispatches, 1)
	assert.Equal(t, [2][3]uint32{{16, 1, 1}, {64, 1, 1}}, drv.dispatches[0])
	assert.Equal(t, 1, drv.count("BeginComputeEncoder"))

	// A copy ends the compute encoder and the pipeline binding with it.
	require.NoError(t, cb.CopyBuffer(particles, particles, 0, 2048, 1024))
	cb.Dispatch(16, 1, 1)
	assert.Len(t, drv.dispatches, 1)
}

func TestVertexAndIndexedDraw(t *testing.T) {
	d, drv := newTestDevice(4)
	cb, p := beginQuadPass(t, d)
	vbo := createBuffer(t, d, metadata.BufferUsageVertex, 1024, false)
	ibo := createBuffer(t, d, metadata.BufferUsageIndex, 1024, false)
	plan := p.Plan()

	require.NoError(t, cb.BindVertexBuffer(p, &plan.Attributes[1], vbo, 64))
	assert.Equal(t, fakeBufferBinding{stages: FunctionStageVertex, buffer: vbo.Buffer(), offset: 64, index: 3}, drv.buffers[0])
	err := cb.BindVertexBuffer(p, &plan.Attributes[0], ibo, 0)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))

	cb.DrawIndexed(6, 1, 0, 0, 0)
	assert.Zero(t, drv.count("DrawIndexedPrimitives"), "no index buffer bound")

	require.NoError(t, cb.BindIndexBuffer(ibo, 8, renderer.IndexFormatUint16))
	cb.DrawIndexed(6, 1, 3, 0, 0)
	require.Len(t, drv.indexed, 1)
	assert.Equal(t, fakeIndexedDraw{indexType: IndexTypeUInt16, buffer: ibo.Buffer(), offset: 14, count: 6}, drv.indexed[0])

	cb.Draw(3, 2, 0, 0)
	assert.Equal(t, 1, drv.count("DrawPrimitives 3 3 2"))
}

func TestDrawOutsidePassIsDropped(t *testing.T) {
	d, drv := newTestDevice(4)
	cb := recording(t, d)
	cb.Draw(3, 1, 0, 0)
	assert.Zero(t, drv.count("DrawPrimitives"))
}

func TestCopyBufferToTextureChecksState(t *testing.T) {
	d, drv := newTestDevice(4)
	tex := createTexture(t, d, mipUsage, 2)
	staging := createBuffer(t, d, metadata.BufferUsageTransferSrc, 2048, true)
	cb := recording(t, d)

	err := cb.CopyBufferToTexture(staging, 0, tex, 0, 0)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err), "texture is not a copy destination yet")

	require.NoError(t, renderer.TransitionTexture(cb, tex, metadata.AllSubresources, metadata.ResourceStateTransferDst))
	require.NoError(t, cb.CopyBufferToTexture(staging, 0, tex, 0, 0))
	require.NoError(t, cb.CopyBufferToTexture(staging, 1024, tex, 1, 0))
	require.Len(t, drv.textureCopies, 2)
	assert.Equal(t, uint32(64), drv.textureCopies[0].BytesPerRow)
	assert.Equal(t, uint32(1024), drv.textureCopies[0].BytesPerImage)
	assert.Equal(t, uint32(32), drv.textureCopies[1].BytesPerRow)
	assert.Equal(t, uint32(1), drv.textureCopies[1].Level)
	assert.Equal(t, 1, drv.count("BeginBlitEncoder"), "copies share the blit encoder")

	err = cb.CopyBufferToTexture(staging, 1500, tex, 0, 0)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err), "buffer too small")
}

func TestCopyTextureToBuffer(t *testing.T) {
	d, drv := newTestDevice(4)
	tex := createTexture(t, d, mipUsage, 1)
	readback := createBuffer(t, d, metadata.BufferUsageTransferDst, 1024, true)
	cb := recording(t, d)

	require.NoError(t, renderer.TransitionTexture(cb, tex, metadata.AllSubresources, metadata.ResourceStateTransferSrc))
	require.NoError(t, cb.CopyTextureToBuffer(tex, 0, 0, readback, 0))
	assert.Equal(t, 1, drv.count("CopyTextureToBuffer 0/0"))
	// The barrier encoder ended before the blit encoder began.
	assert.Equal(t, 1, drv.count("EndEncoding"))
}

func TestBlitMipGeneratesMip(t *testing.T) {
	d, drv := newTestDevice(4)
	tex := createTexture(t, d, mipUsage, 2)
	cb := recording(t, d)

	assert.Equal(t, core.KindUsageViolation, core.KindOf(cb.BlitMip(tex, 0, 1)), "no mip below the last")
	require.NoError(t, renderer.TransitionTexture(cb, tex, metadata.Subresource(0, 0), metadata.ResourceStateTransferSrc))
	require.NoError(t, renderer.TransitionTexture(cb, tex, metadata.Subresource(1, 0), metadata.ResourceStateTransferDst))
	require.NoError(t, cb.BlitMip(tex, 0, 0))
	assert.Equal(t, 1, drv.count("GenerateMip 0 0->1 linear=true"))
	assert.Equal(t, 1, drv.count("EndEncoding"), "the driver encodes the downsample on its own")
}

func TestSubmitSignalsFence(t *testing.T) {
	d, drv := newTestDevice(4)
	fence, err := d.CreateFence(false)
	require.NoError(t, err)
	assert.False(t, fence.Signaled())

	cb := recording(t, d)
	err = d.Queue().Submit([]renderer.CommandBuffer{cb}, fence)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err), "still recording")

	require.NoError(t, cb.End())
	handle := cb.Handle()
	require.NoError(t, d.Queue().Submit([]renderer.CommandBuffer{cb}, fence))
	require.Len(t, drv.commits, 1)
	assert.Equal(t, []Handle{handle}, drv.commits[0])
	assert.True(t, fence.Signaled())
	ok, err := fence.Wait(time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// The committed buffer is gone; it has to be recorded again.
	assert.Equal(t, NullHandle, cb.Handle())
	assert.Equal(t, core.KindUsageViolation, core.KindOf(d.Queue().Submit([]renderer.CommandBuffer{cb}, nil)))

	require.NoError(t, fence.Reset())
	assert.False(t, fence.Signaled())
	require.NoError(t, cb.Begin())
	require.NoError(t, cb.End())
	require.NoError(t, d.Queue().Submit([]renderer.CommandBuffer{cb}, fence))
	assert.True(t, fence.Signaled())
	assert.Equal(t, 2, drv.count("NewCommandBuffer"))
	assert.Zero(t, drv.released, "committed buffers belong to the queue")
}

func TestResetDropsUnsubmittedBuffer(t *testing.T) {
	d, drv := newTestDevice(4)
	cb := recording(t, d)
	require.NoError(t, cb.End())
	require.NoError(t, cb.Reset())
	assert.Equal(t, 1, drv.released)
	assert.Equal(t, NullHandle, cb.Handle())
}

func TestSignaledFence(t *testing.T) {
	d, drv := newTestDevice(4)
	fence, err := d.CreateFence(true)
	require.NoError(t, err)
	assert.Equal(t, 1, drv.count("CreateEvent 1"))
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
	require.Len(t, sc.Images(), 3)
	assert.Equal(t, metadata.PixelFormatBGRA8Unorm, sc.Images()[2].Desc().Format)

	drv.drawable = 2
	index, err := sc.AcquireNextImage()
	require.NoError(t, err)
	require.Equal(t, uint32(2), index)
	img := sc.Images()[index]

	err = sc.Present(index)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err), "drawable was never moved to the present state")

	cb := recording(t, d)
	require.NoError(t, renderer.TransitionTexture(cb, img, metadata.Subresource(0, 0), metadata.ResourceStatePresentSrc))
	assert.Equal(t, core.KindUsageViolation, core.KindOf(sc.Present(0)), "not acquired")
	require.NoError(t, sc.Present(index))
	assert.Equal(t, 1, drv.count("PresentDrawable 2"))
	assert.Equal(t, core.KindUsageViolation, core.KindOf(sc.Present(index)), "already presented")
	assert.Equal(t, core.KindUsageViolation, core.KindOf(sc.Present(5)))

	sc.Destroy()
	// Drawables belong to the layer; only the layer is released.
	assert.Equal(t, 1, drv.released)
}
