package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
	"github.com/spaghettifunk/gfxhal/engine/renderer/rendertest"
)

func newTestDevice(descriptors uint32) (*Device, *fakeDriver) {
	drv := &fakeDriver{}
	return NewDevice(drv, descriptors), drv
}

func createTexture(t *testing.T, d *Device, usage metadata.TextureUsage, mips uint32) *Texture {
	t.Helper()
	tex, err := d.CreateTexture(metadata.TextureDesc{
		Label:     "albedo",
		Width:     16,
		Height:    16,
		MipLevels: mips,
		Format:    metadata.PixelFormatRGBA8Unorm,
		Usage:     usage,
	})
	require.NoError(t, err)
	out, err := AsTexture(tex)
	require.NoError(t, err)
	return out
}

func createBuffer(t *testing.T, d *Device, usage metadata.BufferUsage, size uint64) *Buffer {
	t.Helper()
	buf, err := d.CreateBuffer(metadata.BufferDesc{Label: "buf", Size: size, Usage: usage, HostVisible: true})
	require.NoError(t, err)
	out, err := AsBuffer(buf)
	require.NoError(t, err)
	return out
}

func recording(t *testing.T, d *Device) *CommandBuffer {
	t.Helper()
	cmd, err := d.CreateCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, cmd.Begin())
	cb, err := AsCommandBuffer(cmd)
	require.NoError(t, err)
	return cb
}

func TestCreateSampledTexture(t *testing.T) {
	d, drv := newTestDevice(4)
	tex := createTexture(t, d, metadata.TextureUsageSampled|metadata.TextureUsageTransferDst, 3)

	require.Len(t, drv.images, 1)
	assert.Equal(t, uint32(3), drv.images[0].MipLevels)
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, drv.images[0].Format)
	assert.Equal(t, 1, drv.count("CreateSampler"))
	assert.Equal(t, 0, tex.Slot())
	assert.Equal(t, uint32(1), d.Descriptors().Used())
	assert.Equal(t, metadata.ResourceStateUndefined, tex.States().Get(2, 0))

	tex.Destroy()
	assert.Equal(t, 1, drv.count("DestroySampler"))
	assert.Equal(t, 1, drv.count("DestroyImage"))
	assert.Equal(t, uint32(0), d.Descriptors().Used())
}

func TestTextureRejectsZeroExtent(t *testing.T) {
	d, _ := newTestDevice(4)
	_, err := d.CreateTexture(metadata.TextureDesc{Format: metadata.PixelFormatRGBA8Unorm, Usage: metadata.TextureUsageSampled})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))
}

func TestDescriptorPoolExhaustion(t *testing.T) {
	d, drv := newTestDevice(1)
	createTexture(t, d, metadata.TextureUsageSampled, 1)

	_, err := d.CreateTexture(metadata.TextureDesc{Width: 4, Height: 4, Format: metadata.PixelFormatRGBA8Unorm, Usage: metadata.TextureUsageSampled})
	require.Error(t, err)
	assert.Equal(t, core.KindResourceExhausted, core.KindOf(err))
	// The second image was released again.
	assert.Equal(t, 1, drv.count("DestroyImage"))
}

func TestBufferRangeChecks(t *testing.T) {
	d, _ := newTestDevice(4)
	buf := createBuffer(t, d, metadata.BufferUsageUniform, 64)
	assert.Equal(t, 0, buf.Slot())

	require.NoError(t, buf.Write(60, make([]byte, 4)))
	err := buf.Write(62, make([]byte, 4))
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))

	_, err = d.CreateBuffer(metadata.BufferDesc{Label: "empty"})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))
}

func colorPass() metadata.RenderPassConfig {
	return metadata.RenderPassConfig{
		Colors: []metadata.AttachmentDesc{{
			Format:        metadata.PixelFormatRGBA8Unorm,
			InitialLayout: metadata.ResourceStateUndefined,
			FinalLayout:   metadata.ResourceStateShaderReadOnly,
			LoadOp:        metadata.LoadOpClear,
			StoreOp:       metadata.StoreOpStore,
		}},
		DepthStencil: &metadata.AttachmentDesc{
			Format:        metadata.PixelFormatD32Float,
			InitialLayout: metadata.ResourceStateUndefined,
			FinalLayout:   metadata.ResourceStateDepthStencilAttachment,
			LoadOp:        metadata.LoadOpClear,
			StoreOp:       metadata.StoreOpDontCare,
		},
	}
}

func TestRenderPassCreateInfo(t *testing.T) {
	info, err := renderPassCreateInfo(colorPass())
	require.NoError(t, err)
	require.Equal(t, uint32(2), info.AttachmentCount)
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, info.PAttachments[0].FinalLayout)
	assert.Equal(t, vk.AttachmentLoadOpClear, info.PAttachments[1].LoadOp)
	require.NotNil(t, info.PSubpasses[0].PDepthStencilAttachment)
	assert.Equal(t, uint32(1), info.PSubpasses[0].PDepthStencilAttachment.Attachment)

	_, err = renderPassCreateInfo(metadata.RenderPassConfig{})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))

	bad := colorPass()
	bad.Colors[0].Format = metadata.PixelFormatD16Unorm
	_, err = renderPassCreateInfo(bad)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))
}

func TestFramebufferValidatesAttachments(t *testing.T) {
	d, drv := newTestDevice(8)
	rp, err := d.CreateRenderPass(colorPass())
	require.NoError(t, err)
	color := createTexture(t, d, metadata.TextureUsageColorAttachment, 1)

	_, err = d.CreateFramebuffer(rp, []renderer.Attachment{{Texture: color}})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))

	depth, err := d.CreateTexture(metadata.TextureDesc{Width: 8, Height: 8, Format: metadata.PixelFormatD32Float, Usage: metadata.TextureUsageDepthStencilAttachment})
	require.NoError(t, err)
	_, err = d.CreateFramebuffer(rp, []renderer.Attachment{{Texture: color}, {Texture: depth}})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err), "extents differ")

	depth16, err := d.CreateTexture(metadata.TextureDesc{Width: 16, Height: 16, Format: metadata.PixelFormatD32Float, Usage: metadata.TextureUsageDepthStencilAttachment})
	require.NoError(t, err)
	fb, err := d.CreateFramebuffer(rp, []renderer.Attachment{{Texture: color}, {Texture: depth16}})
	require.NoError(t, err)
	assert.Equal(t, uint32(16), fb.(*Framebuffer).Width())
	require.Len(t, drv.framebuffers, 1)
	assert.Equal(t, uint32(2), drv.framebuffers[0].AttachmentCount)
}

func TestForeignResourcesAreRejected(t *testing.T) {
	d, _ := newTestDevice(4)
	other := rendertest.NewDevice(renderer.BackendTypeVulkan, 4)
	tex, err := other.CreateTexture(metadata.TextureDesc{Width: 4, Height: 4, Format: metadata.PixelFormatRGBA8Unorm, Usage: metadata.TextureUsageSampled})
	require.NoError(t, err)

	_, err = AsTexture(tex)
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))

	cb := recording(t, d)
	err = cb.TextureBarrier(tex, []renderer.SubresourceTransition{{After: metadata.ResourceStateShaderReadOnly}})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))
}

func quadModules() []*renderer.ShaderModule {
	return []*renderer.ShaderModule{
		{Stage: metadata.ShaderStageVertex, Path: "quad.vert", Code: make([]byte, 16), Reflection: &metadata.ShaderReflection{}},
		{Stage: metadata.ShaderStageFragment, Path: "quad.frag", Code: make([]byte, 16), Reflection: &metadata.ShaderReflection{}},
	}
}

func quadPlan() *metadata.BindingPlan {
	return &metadata.BindingPlan{
		Entries: []metadata.BindingEntry{
			{Logical: 0, Set: 0, Name: "camera", Type: metadata.DescriptorTypeUniformBuffer, Stages: metadata.ShaderStageVertex, ReadOnly: true},
			{Logical: 1, Set: 2, Name: "albedo", Type: metadata.DescriptorTypeCombinedImageSampler, Stages: metadata.ShaderStageFragment, ReadOnly: true},
		},
		Attributes: []metadata.AttributeBinding{
			{Logical: 0, Name: "position", Location: 0, Format: metadata.VertexFormatFloat3, Count: 1, ElementSize: 12},
			{Logical: 1, Name: "model", Location: 1, Format: metadata.VertexFormatMat4, Count: 4, ElementSize: 16},
		},
	}
}

func createQuadPipeline(t *testing.T, d *Device) *Pipeline {
	t.Helper()
	rp, err := d.CreateRenderPass(colorPass())
	require.NoError(t, err)
	p, err := d.CreateGraphicsPipeline(renderer.GraphicsPipelineDesc{
		Label:      "quad",
		State:      metadata.DefaultPipelineState(),
		Modules:    quadModules(),
		Plan:       quadPlan(),
		RenderPass: rp,
	})
	require.NoError(t, err)
	out, err := AsPipeline(p)
	require.NoError(t, err)
	return out
}

func TestGraphicsPipelineSlotsAndLayouts(t *testing.T) {
	d, drv := newTestDevice(8)
	p := createQuadPipeline(t, d)

	plan := p.Plan()
	require.Len(t, plan.Entries[1].Slots, 1)
	assert.Equal(t, metadata.PhysicalSlot{Kind: metadata.SlotKindDescriptorSet, Index: 2}, plan.Entries[1].Slots[0])
	assert.Equal(t, uint32(1), plan.Attributes[1].Slot)

	// Set 1 is unused and gets the empty layout.
	require.Len(t, p.setLayouts, 3)
	assert.Equal(t, 1, drv.count("CreatePipelineLayout 3"))
	assert.Equal(t, 3, d.layouts.len())
	assert.Zero(t, drv.liveModules, "shader modules are released after pipeline creation")

	require.Len(t, drv.pipelines, 1)
	info := drv.pipelines[0]
	// Four columns of the matrix plus the position.
	assert.Equal(t, uint32(5), info.PVertexInputState.VertexAttributeDescriptionCount)
	assert.Equal(t, uint32(2), info.PVertexInputState.VertexBindingDescriptionCount)
	assert.Equal(t, uint32(64), info.PVertexInputState.PVertexBindingDescriptions[1].Stride)
	assert.Equal(t, uint32(4), info.PVertexInputState.PVertexAttributeDescriptions[4].Location)
	assert.Equal(t, uint32(1), info.PColorBlendState.AttachmentCount)

	// A second pipeline with the same bindings reuses every set layout.
	createQuadPipeline(t, d)
	assert.Equal(t, 3, drv.count("CreateDescriptorSetLayout"))

	d.Destroy()
	assert.Equal(t, 3, drv.count("DestroyDescriptorSetLayout"))
}

func TestComputePipelineNeedsComputeModule(t *testing.T) {
	d, drv := newTestDevice(8)
	_, err := d.CreateComputePipeline(renderer.ComputePipelineDesc{Label: "blur", Module: quadModules()[0], Plan: &metadata.BindingPlan{}})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))

	_, err = d.CreateComputePipeline(renderer.ComputePipelineDesc{
		Label:  "blur",
		Module: &renderer.ShaderModule{Stage: metadata.ShaderStageCompute, Path: "blur.comp", Code: make([]byte, 8)},
		Plan: &metadata.BindingPlan{Entries: []metadata.BindingEntry{
			{Set: 0, Name: "image", Type: metadata.DescriptorTypeStorageImage, Stages: metadata.ShaderStageCompute},
		}},
	})
	require.NoError(t, err)
	require.Len(t, drv.computes, 1)
	assert.Equal(t, vk.ShaderStageComputeBit, drv.computes[0].Stage.Stage)
}

func TestShaderCodeMustBeWords(t *testing.T) {
	d, _ := newTestDevice(8)
	rp, err := d.CreateRenderPass(colorPass())
	require.NoError(t, err)
	mods := quadModules()
	mods[1].Code = make([]byte, 6)
	_, err = d.CreateGraphicsPipeline(renderer.GraphicsPipelineDesc{Label: "bad", State: metadata.DefaultPipelineState(), Modules: mods, Plan: quadPlan(), RenderPass: rp})
	assert.Equal(t, core.KindUsageViolation, core.KindOf(err))
}
