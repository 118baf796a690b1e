package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
)

// fakeDriver records the calls the device makes. Handles are left zero;
// host visible memory is backed by byte slices indexed by allocation order.
type fakeDriver struct {
	mu    sync.Mutex
	calls []string

	barriers      []fakeBarrier
	writes        []vk.WriteDescriptorSet
	setLayouts    []*vk.DescriptorSetLayoutCreateInfo
	pipelines     []*vk.GraphicsPipelineCreateInfo
	computes      []*vk.ComputePipelineCreateInfo
	renderPasses  []*vk.RenderPassCreateInfo
	framebuffers  []*vk.FramebufferCreateInfo
	images        []*vk.ImageCreateInfo
	views         []*vk.ImageViewCreateInfo
	boundSets     []uint32
	freedSets     int
	liveModules   int
	submitted     int
	failNextImage bool
	swapchain     *SwapchainImages
}

type fakeBarrier struct {
	src, dst vk.PipelineStageFlags
	buffers  []vk.BufferMemoryBarrier
	images   []vk.ImageMemoryBarrier
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
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeDriver) CreateImage(info *vk.ImageCreateInfo) (vk.Image, vk.DeviceMemory, error) {
	if f.failNextImage {
		f.failNextImage = false
		return nil, nil, fmt.Errorf("out of device memory")
	}
	f.images = append(f.images, info)
	f.record("CreateImage")
	return nil, nil, nil
}

func (f *fakeDriver) DestroyImage(vk.Image, vk.DeviceMemory) { f.record("DestroyImage") }

func (f *fakeDriver) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	f.views = append(f.views, info)
	f.record("CreateImageView")
	return nil, nil
}

func (f *fakeDriver) DestroyImageView(vk.ImageView) { f.record("DestroyImageView") }

func (f *fakeDriver) CreateSampler(*vk.SamplerCreateInfo) (vk.Sampler, error) {
	f.record("CreateSampler")
	return nil, nil
}

func (f *fakeDriver) DestroySampler(vk.Sampler) { f.record("DestroySampler") }

func (f *fakeDriver) CreateBuffer(info *vk.BufferCreateInfo, hostVisible bool) (vk.Buffer, vk.DeviceMemory, error) {
	f.record("CreateBuffer %d host=%t", info.Size, hostVisible)
	return nil, nil, nil
}

func (f *fakeDriver) DestroyBuffer(vk.Buffer, vk.DeviceMemory) { f.record("DestroyBuffer") }

func (f *fakeDriver) WriteMemory(_ vk.DeviceMemory, offset uint64, data []byte) error {
	f.record("WriteMemory %d %d", offset, len(data))
	return nil
}

func (f *fakeDriver) ReadMemory(_ vk.DeviceMemory, offset uint64, out []byte) error {
	f.record("ReadMemory %d %d", offset, len(out))
	return nil
}

func (f *fakeDriver) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	f.renderPasses = append(f.renderPasses, info)
	f.record("CreateRenderPass")
	return nil, nil
}

func (f *fakeDriver) DestroyRenderPass(vk.RenderPass) { f.record("DestroyRenderPass") }

func (f *fakeDriver) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	f.framebuffers = append(f.framebuffers, info)
	f.record("CreateFramebuffer")
	return nil, nil
}

func (f *fakeDriver) DestroyFramebuffer(vk.Framebuffer) { f.record("DestroyFramebuffer") }

func (f *fakeDriver) CreateShaderModule(code []byte) (vk.ShaderModule, error) {
	f.liveModules++
	f.record("CreateShaderModule %d", len(code))
	return nil, nil
}

func (f *fakeDriver) DestroyShaderModule(vk.ShaderModule) {
	f.liveModules--
	f.record("DestroyShaderModule")
}

func (f *fakeDriver) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	f.setLayouts = append(f.setLayouts, info)
	f.record("CreateDescriptorSetLayout")
	return nil, nil
}

func (f *fakeDriver) DestroyDescriptorSetLayout(vk.DescriptorSetLayout) {
	f.record("DestroyDescriptorSetLayout")
}

func (f *fakeDriver) AllocateDescriptorSet(vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	f.record("AllocateDescriptorSet")
	return nil, nil
}

func (f *fakeDriver) FreeDescriptorSets(sets []vk.DescriptorSet) {
	f.freedSets += len(sets)
	f.record("FreeDescriptorSets %d", len(sets))
}

func (f *fakeDriver) UpdateDescriptorSet(write vk.WriteDescriptorSet) {
	f.writes = append(f.writes, write)
	f.record("UpdateDescriptorSet")
}

func (f *fakeDriver) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	f.record("CreatePipelineLayout %d", info.SetLayoutCount)
	return nil, nil
}

func (f *fakeDriver) DestroyPipelineLayout(vk.PipelineLayout) { f.record("DestroyPipelineLayout") }

func (f *fakeDriver) CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	f.pipelines = append(f.pipelines, info)
	f.record("CreateGraphicsPipeline")
	return nil, nil
}

func (f *fakeDriver) CreateComputePipeline(info *vk.ComputePipelineCreateInfo) (vk.Pipeline, error) {
	f.computes = append(f.computes, info)
	f.record("CreateComputePipeline")
	return nil, nil
}

func (f *fakeDriver) DestroyPipeline(vk.Pipeline) { f.record("DestroyPipeline") }

func (f *fakeDriver) AllocateCommandBuffer() (vk.CommandBuffer, error) {
	f.record("AllocateCommandBuffer")
	return nil, nil
}

func (f *fakeDriver) FreeCommandBuffer(vk.CommandBuffer) { f.record("FreeCommandBuffer") }

func (f *fakeDriver) BeginCommandBuffer(vk.CommandBuffer) error {
	f.record("BeginCommandBuffer")
	return nil
}

func (f *fakeDriver) EndCommandBuffer(vk.CommandBuffer) error {
	f.record("EndCommandBuffer")
	return nil
}

func (f *fakeDriver) ResetCommandBuffer(vk.CommandBuffer) error {
	f.record("ResetCommandBuffer")
	return nil
}

func (f *fakeDriver) CmdPipelineBarrier(_ vk.CommandBuffer, src, dst vk.PipelineStageFlags, buffers []vk.BufferMemoryBarrier, images []vk.ImageMemoryBarrier) {
	f.barriers = append(f.barriers, fakeBarrier{src: src, dst: dst, buffers: buffers, images: images})
	f.record("CmdPipelineBarrier")
}

func (f *fakeDriver) CmdBeginRenderPass(_ vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	f.record("CmdBeginRenderPass %d", info.ClearValueCount)
}

func (f *fakeDriver) CmdEndRenderPass(vk.CommandBuffer) { f.record("CmdEndRenderPass") }

func (f *fakeDriver) CmdSetViewport(_ vk.CommandBuffer, v vk.Viewport, _ vk.Rect2D) {
	f.record("CmdSetViewport %vx%v", v.Width, v.Height)
}

func (f *fakeDriver) CmdBindPipeline(vk.CommandBuffer, vk.PipelineBindPoint, vk.Pipeline) {
	f.record("CmdBindPipeline")
}

func (f *fakeDriver) CmdBindDescriptorSet(_ vk.CommandBuffer, _ vk.PipelineBindPoint, _ vk.PipelineLayout, set uint32, _ vk.DescriptorSet) {
	f.boundSets = append(f.boundSets, set)
	f.record("CmdBindDescriptorSet %d", set)
}

func (f *fakeDriver) CmdBindVertexBuffer(_ vk.CommandBuffer, binding uint32, _ vk.Buffer, offset uint64) {
	f.record("CmdBindVertexBuffer %d %d", binding, offset)
}

func (f *fakeDriver) CmdBindIndexBuffer(vk.CommandBuffer, vk.Buffer, uint64, vk.IndexType) {
	f.record("CmdBindIndexBuffer")
}

func (f *fakeDriver) CmdDraw(_ vk.CommandBuffer, vertexCount, _, _, _ uint32) {
	f.record("CmdDraw %d", vertexCount)
}

func (f *fakeDriver) CmdDrawIndexed(_ vk.CommandBuffer, indexCount, _, _ uint32, _ int32, _ uint32) {
	f.record("CmdDrawIndexed %d", indexCount)
}

func (f *fakeDriver) CmdDispatch(_ vk.CommandBuffer, x, y, z uint32) {
	f.record("CmdDispatch %d %d %d", x, y, z)
}

func (f *fakeDriver) CmdCopyBuffer(_ vk.CommandBuffer, _, _ vk.Buffer, region vk.BufferCopy) {
	f.record("CmdCopyBuffer %d", region.Size)
}

func (f *fakeDriver) CmdCopyBufferToImage(_ vk.CommandBuffer, _ vk.Buffer, _ vk.Image, _ vk.ImageLayout, region vk.BufferImageCopy) {
	f.record("CmdCopyBufferToImage %d", region.ImageSubresource.MipLevel)
}

func (f *fakeDriver) CmdCopyImageToBuffer(_ vk.CommandBuffer, _ vk.Image, _ vk.ImageLayout, _ vk.Buffer, region vk.BufferImageCopy) {
	f.record("CmdCopyImageToBuffer %d", region.ImageSubresource.MipLevel)
}

func (f *fakeDriver) CmdBlitImage(_ vk.CommandBuffer, _ vk.Image, region vk.ImageBlit, filter vk.Filter) {
	f.record("CmdBlitImage %d->%d %d", region.SrcSubresource.MipLevel, region.DstSubresource.MipLevel, filter)
}

func (f *fakeDriver) QueueSubmit(cbs []vk.CommandBuffer, _ vk.Fence) error {
	f.submitted += len(cbs)
	f.record("QueueSubmit %d", len(cbs))
	return nil
}

func (f *fakeDriver) QueueWaitIdle() error { return nil }

func (f *fakeDriver) CreateFence(bool) (vk.Fence, error) {
	f.record("CreateFence")
	return vk.NullFence, nil
}

func (f *fakeDriver) WaitForFence(vk.Fence, uint64) (bool, error) { return true, nil }
func (f *fakeDriver) ResetFence(vk.Fence) error                   { return nil }
func (f *fakeDriver) FenceSignaled(vk.Fence) bool                 { return true }
func (f *fakeDriver) DestroyFence(vk.Fence)                       { f.record("DestroyFence") }

func (f *fakeDriver) CreateSwapchain(_ renderer.SurfaceProvider, desc renderer.SwapchainDesc) (*SwapchainImages, error) {
	f.record("CreateSwapchain")
	f.swapchain = &SwapchainImages{
		Format: vk.FormatB8g8r8a8Unorm,
		Extent: vk.Extent2D{Width: desc.Width, Height: desc.Height},
		Images: make([]vk.Image, max(desc.ImageCount, 2)),
	}
	return f.swapchain, nil
}

func (f *fakeDriver) AcquireNextImage(vk.Swapchain) (uint32, error) { return 0, nil }

func (f *fakeDriver) Present(_ vk.Swapchain, index uint32) error {
	f.record("Present %d", index)
	return nil
}

func (f *fakeDriver) DestroySwapchain(vk.Swapchain) { f.record("DestroySwapchain") }
func (f *fakeDriver) DeviceWaitIdle() error         { return nil }
func (f *fakeDriver) Destroy()                      { f.record("Destroy") }

var _ Driver = (*fakeDriver)(nil)
