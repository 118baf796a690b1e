package vulkan

import (
	vk "github.com/goki/vulkan"
)

func (n *NativeDriver) AllocateCommandBuffer() (vk.CommandBuffer, error) {
	cbs := make([]vk.CommandBuffer, 1)
	err := n.locks.SafeCall(CommandBufferManagement, func() error {
		return vkError("AllocateCommandBuffers", vk.AllocateCommandBuffers(n.device, &vk.CommandBufferAllocateInfo{
			SType:              vk.StructureTypeCommandBufferAllocateInfo,
			CommandPool:        n.commandPool,
			Level:              vk.CommandBufferLevelPrimary,
			CommandBufferCount: 1,
		}, cbs))
	})
	return cbs[0], err
}

func (n *NativeDriver) FreeCommandBuffer(cb vk.CommandBuffer) {
	n.locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(n.device, n.commandPool, 1, []vk.CommandBuffer{cb})
		return nil
	})
}

func (n *NativeDriver) BeginCommandBuffer(cb vk.CommandBuffer) error {
	return vkError("BeginCommandBuffer", vk.BeginCommandBuffer(cb, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}))
}

func (n *NativeDriver) EndCommandBuffer(cb vk.CommandBuffer) error {
	return vkError("EndCommandBuffer", vk.EndCommandBuffer(cb))
}

func (n *NativeDriver) ResetCommandBuffer(cb vk.CommandBuffer) error {
	return vkError("ResetCommandBuffer", vk.ResetCommandBuffer(cb, 0))
}

func (n *NativeDriver) CmdPipelineBarrier(cb vk.CommandBuffer, src, dst vk.PipelineStageFlags, buffers []vk.BufferMemoryBarrier, images []vk.ImageMemoryBarrier) {
	vk.CmdPipelineBarrier(cb, src, dst, 0, 0, nil, uint32(len(buffers)), buffers, uint32(len(images)), images)
}

func (n *NativeDriver) CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	vk.CmdBeginRenderPass(cb, info, vk.SubpassContentsInline)
}

func (n *NativeDriver) CmdEndRenderPass(cb vk.CommandBuffer) { vk.CmdEndRenderPass(cb) }

func (n *NativeDriver) CmdSetViewport(cb vk.CommandBuffer, viewport vk.Viewport, scissor vk.Rect2D) {
	vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{scissor})
}

func (n *NativeDriver) CmdBindPipeline(cb vk.CommandBuffer, point vk.PipelineBindPoint, p vk.Pipeline) {
	vk.CmdBindPipeline(cb, point, p)
}

func (n *NativeDriver) CmdBindDescriptorSet(cb vk.CommandBuffer, point vk.PipelineBindPoint, layout vk.PipelineLayout, set uint32, ds vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(cb, point, layout, set, 1, []vk.DescriptorSet{ds}, 0, nil)
}

func (n *NativeDriver) CmdBindVertexBuffer(cb vk.CommandBuffer, binding uint32, buffer vk.Buffer, offset uint64) {
	vk.CmdBindVertexBuffers(cb, binding, 1, []vk.Buffer{buffer}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (n *NativeDriver) CmdBindIndexBuffer(cb vk.CommandBuffer, buffer vk.Buffer, offset uint64, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(cb, buffer, vk.DeviceSize(offset), indexType)
}

func (n *NativeDriver) CmdDraw(cb vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(cb, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (n *NativeDriver) CmdDrawIndexed(cb vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(cb, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (n *NativeDriver) CmdDispatch(cb vk.CommandBuffer, x, y, z uint32) { vk.CmdDispatch(cb, x, y, z) }

func (n *NativeDriver) CmdCopyBuffer(cb vk.CommandBuffer, src, dst vk.Buffer, region vk.BufferCopy) {
	vk.CmdCopyBuffer(cb, src, dst, 1, []vk.BufferCopy{region})
}

func (n *NativeDriver) CmdCopyBufferToImage(cb vk.CommandBuffer, src vk.Buffer, dst vk.Image, layout vk.ImageLayout, region vk.BufferImageCopy) {
	vk.CmdCopyBufferToImage(cb, src, dst, layout, 1, []vk.BufferImageCopy{region})
}

func (n *NativeDriver) CmdCopyImageToBuffer(cb vk.CommandBuffer, src vk.Image, layout vk.ImageLayout, dst vk.Buffer, region vk.BufferImageCopy) {
	vk.CmdCopyImageToBuffer(cb, src, layout, dst, 1, []vk.BufferImageCopy{region})
}

func (n *NativeDriver) CmdBlitImage(cb vk.CommandBuffer, image vk.Image, region vk.ImageBlit, filter vk.Filter) {
	vk.CmdBlitImage(cb, image, vk.ImageLayoutTransferSrcOptimal, image, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageBlit{region}, filter)
}

// QueueSubmit submits cbs in one batch. The first submit after an acquired
// swapchain image waits for that image and signals the present semaphore.
func (n *NativeDriver) QueueSubmit(cbs []vk.CommandBuffer, fence vk.Fence) error {
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: uint32(len(cbs)),
		PCommandBuffers:    cbs,
	}
	waited := n.acquired
	if waited {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{n.imageAvailable}
		info.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
		info.SignalSemaphoreCount = 1
		info.PSignalSemaphores = []vk.Semaphore{n.renderFinished}
	}
	err := n.locks.SafeQueueCall(uint32(n.gpu.families.graphics), func() error {
		return vkError("QueueSubmit", vk.QueueSubmit(n.graphicsQueue, 1, []vk.SubmitInfo{info}, fence))
	})
	if err == nil && waited {
		n.acquired = false
		n.rendered = true
	}
	return err
}

func (n *NativeDriver) QueueWaitIdle() error {
	return n.locks.SafeQueueCall(uint32(n.gpu.families.graphics), func() error {
		return vkError("QueueWaitIdle", vk.QueueWaitIdle(n.graphicsQueue))
	})
}

func (n *NativeDriver) CreateFence(signaled bool) (vk.Fence, error) {
	info := &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var f vk.Fence
	return f, vkError("CreateFence", vk.CreateFence(n.device, info, nil, &f))
}

func (n *NativeDriver) WaitForFence(fence vk.Fence, timeoutNs uint64) (bool, error) {
	res := vk.WaitForFences(n.device, 1, []vk.Fence{fence}, vk.True, timeoutNs)
	if res == vk.Timeout {
		return false, nil
	}
	return true, vkError("WaitForFences", res)
}

func (n *NativeDriver) ResetFence(fence vk.Fence) error {
	return n.locks.SafeCall(SynchronizationManagement, func() error {
		return vkError("ResetFences", vk.ResetFences(n.device, 1, []vk.Fence{fence}))
	})
}

func (n *NativeDriver) FenceSignaled(fence vk.Fence) bool {
	return vk.GetFenceStatus(n.device, fence) == vk.Success
}

func (n *NativeDriver) DestroyFence(fence vk.Fence) { vk.DestroyFence(n.device, fence, nil) }
