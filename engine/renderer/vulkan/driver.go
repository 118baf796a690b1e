package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
)

// SwapchainImages is what a driver hands back after creating a swapchain.
type SwapchainImages struct {
	Handle vk.Swapchain
	Format vk.Format
	Extent vk.Extent2D
	Images []vk.Image
}

// Driver is the seam between the Vulkan device and the API. Callers build
// every create info; the driver only issues the native call and reports
// failures. NativeDriver talks to a real device.
type Driver interface {
	CreateImage(info *vk.ImageCreateInfo) (vk.Image, vk.DeviceMemory, error)
	DestroyImage(image vk.Image, memory vk.DeviceMemory)
	CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)
	CreateSampler(info *vk.SamplerCreateInfo) (vk.Sampler, error)
	DestroySampler(sampler vk.Sampler)

	CreateBuffer(info *vk.BufferCreateInfo, hostVisible bool) (vk.Buffer, vk.DeviceMemory, error)
	DestroyBuffer(buffer vk.Buffer, memory vk.DeviceMemory)
	WriteMemory(memory vk.DeviceMemory, offset uint64, data []byte) error
	ReadMemory(memory vk.DeviceMemory, offset uint64, out []byte) error

	CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error)
	DestroyRenderPass(rp vk.RenderPass)
	CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error)
	DestroyFramebuffer(fb vk.Framebuffer)

	CreateShaderModule(code []byte) (vk.ShaderModule, error)
	DestroyShaderModule(module vk.ShaderModule)
	CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout)
	AllocateDescriptorSet(layout vk.DescriptorSetLayout) (vk.DescriptorSet, error)
	FreeDescriptorSets(sets []vk.DescriptorSet)
	UpdateDescriptorSet(write vk.WriteDescriptorSet)
	CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)
	DestroyPipelineLayout(layout vk.PipelineLayout)
	CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error)
	CreateComputePipeline(info *vk.ComputePipelineCreateInfo) (vk.Pipeline, error)
	DestroyPipeline(p vk.Pipeline)

	AllocateCommandBuffer() (vk.CommandBuffer, error)
	FreeCommandBuffer(cb vk.CommandBuffer)
	BeginCommandBuffer(cb vk.CommandBuffer) error
	EndCommandBuffer(cb vk.CommandBuffer) error
	ResetCommandBuffer(cb vk.CommandBuffer) error

	CmdPipelineBarrier(cb vk.CommandBuffer, src, dst vk.PipelineStageFlags, buffers []vk.BufferMemoryBarrier, images []vk.ImageMemoryBarrier)
	CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo)
	CmdEndRenderPass(cb vk.CommandBuffer)
	CmdSetViewport(cb vk.CommandBuffer, viewport vk.Viewport, scissor vk.Rect2D)
	CmdBindPipeline(cb vk.CommandBuffer, point vk.PipelineBindPoint, p vk.Pipeline)
	CmdBindDescriptorSet(cb vk.CommandBuffer, point vk.PipelineBindPoint, layout vk.PipelineLayout, set uint32, ds vk.DescriptorSet)
	CmdBindVertexBuffer(cb vk.CommandBuffer, binding uint32, buffer vk.Buffer, offset uint64)
	CmdBindIndexBuffer(cb vk.CommandBuffer, buffer vk.Buffer, offset uint64, indexType vk.IndexType)
	CmdDraw(cb vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cb vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdDispatch(cb vk.CommandBuffer, x, y, z uint32)
	CmdCopyBuffer(cb vk.CommandBuffer, src, dst vk.Buffer, region vk.BufferCopy)
	CmdCopyBufferToImage(cb vk.CommandBuffer, src vk.Buffer, dst vk.Image, layout vk.ImageLayout, region vk.BufferImageCopy)
	CmdCopyImageToBuffer(cb vk.CommandBuffer, src vk.Image, layout vk.ImageLayout, dst vk.Buffer, region vk.BufferImageCopy)
	CmdBlitImage(cb vk.CommandBuffer, image vk.Image, region vk.ImageBlit, filter vk.Filter)

	QueueSubmit(cbs []vk.CommandBuffer, fence vk.Fence) error
	QueueWaitIdle() error

	CreateFence(signaled bool) (vk.Fence, error)
	// WaitForFence reports false when the timeout elapsed first.
	WaitForFence(fence vk.Fence, timeoutNs uint64) (bool, error)
	ResetFence(fence vk.Fence) error
	FenceSignaled(fence vk.Fence) bool
	DestroyFence(fence vk.Fence)

	CreateSwapchain(surface renderer.SurfaceProvider, desc renderer.SwapchainDesc) (*SwapchainImages, error)
	AcquireNextImage(sc vk.Swapchain) (uint32, error)
	Present(sc vk.Swapchain, index uint32) error
	DestroySwapchain(sc vk.Swapchain)

	DeviceWaitIdle() error
	Destroy()
}

var _ Driver = (*NativeDriver)(nil)
