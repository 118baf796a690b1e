package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

type commandBufferState int

const (
	commandBufferStateReady commandBufferState = iota
	commandBufferStateRecording
	commandBufferStateInRenderPass
	commandBufferStateRecordingEnded
)

// CommandBuffer records into one primary VkCommandBuffer. Descriptor sets
// allocated while recording live until the buffer is reset or destroyed.
type CommandBuffer struct {
	device *Device
	handle vk.CommandBuffer
	state  commandBufferState
	sets   []vk.DescriptorSet
}

func (c *CommandBuffer) Handle() vk.CommandBuffer { return c.handle }

func (c *CommandBuffer) recording() bool {
	return c.state == commandBufferStateRecording || c.state == commandBufferStateInRenderPass
}

func (c *CommandBuffer) requireRecording(op string) error {
	if !c.recording() {
		return core.NewError(core.KindUsageViolation, op, "command buffer is not recording")
	}
	return nil
}

func (c *CommandBuffer) Begin() error {
	if c.recording() {
		return core.NewError(core.KindUsageViolation, "CommandBuffer.Begin", "already recording")
	}
	if err := c.device.driver.BeginCommandBuffer(c.handle); err != nil {
		return err
	}
	c.state = commandBufferStateRecording
	return nil
}

func (c *CommandBuffer) End() error {
	switch c.state {
	case commandBufferStateInRenderPass:
		return core.NewError(core.KindUsageViolation, "CommandBuffer.End", "render pass still open")
	case commandBufferStateRecording:
	default:
		return core.NewError(core.KindUsageViolation, "CommandBuffer.End", "not recording")
	}
	if err := c.device.driver.EndCommandBuffer(c.handle); err != nil {
		return err
	}
	c.state = commandBufferStateRecordingEnded
	return nil
}

func (c *CommandBuffer) releaseSets() {
	if len(c.sets) == 0 {
		return
	}
	c.device.driver.FreeDescriptorSets(c.sets)
	c.sets = nil
}

func (c *CommandBuffer) Reset() error {
	c.releaseSets()
	c.state = commandBufferStateReady
	return c.device.driver.ResetCommandBuffer(c.handle)
}

func (c *CommandBuffer) Destroy() {
	c.releaseSets()
	c.device.driver.FreeCommandBuffer(c.handle)
	c.handle = nil
}

func (c *CommandBuffer) TextureBarrier(tex renderer.Texture, changes []renderer.SubresourceTransition) error {
	if c.state == commandBufferStateInRenderPass {
		return core.NewError(core.KindUsageViolation, "TextureBarrier", "barrier on %q inside a render pass", tex.Label())
	}
	if err := c.requireRecording("TextureBarrier"); err != nil {
		return err
	}
	t, err := AsTexture(tex)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	src, dst, barriers := ImageBarriers(t.image, t.desc.Format, changes)
	c.device.driver.CmdPipelineBarrier(c.handle, src, dst, nil, barriers)
	return nil
}

func (c *CommandBuffer) BufferBarrier(buf renderer.Buffer, before, after metadata.ResourceState) error {
	if c.state == commandBufferStateInRenderPass {
		return core.NewError(core.KindUsageViolation, "BufferBarrier", "barrier on %q inside a render pass", buf.Label())
	}
	if err := c.requireRecording("BufferBarrier"); err != nil {
		return err
	}
	b, err := AsBuffer(buf)
	if err != nil {
		return err
	}
	src, dst, barrier := BufferBarrier(b.buffer, before, after)
	c.device.driver.CmdPipelineBarrier(c.handle, src, dst, []vk.BufferMemoryBarrier{barrier}, nil)
	return nil
}

func (c *CommandBuffer) BeginRenderPass(fb renderer.Framebuffer, clear renderer.ClearValues) error {
	if c.state != commandBufferStateRecording {
		return core.NewError(core.KindUsageViolation, "BeginRenderPass", "command buffer is not recording outside a render pass")
	}
	f, err := AsFramebuffer(fb)
	if err != nil {
		return err
	}
	cfg := f.pass.config

	clears := make([]vk.ClearValue, 0, len(cfg.Colors)+1)
	for i := range cfg.Colors {
		var v vk.ClearValue
		if i < len(clear.Colors) {
			col := clear.Colors[i]
			v.SetColor(col[:])
		} else {
			v.SetColor([]float32{0, 0, 0, 1})
		}
		clears = append(clears, v)
	}
	if cfg.DepthStencil != nil {
		var v vk.ClearValue
		v.SetDepthStencil(clear.Depth, clear.Stencil)
		clears = append(clears, v)
	}

	area := vk.Rect2D{Extent: vk.Extent2D{Width: f.width, Height: f.height}}
	c.device.driver.CmdBeginRenderPass(c.handle, &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      f.pass.handle,
		Framebuffer:     f.handle,
		RenderArea:      area,
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	})
	c.device.driver.CmdSetViewport(c.handle, vk.Viewport{
		Width:    float32(f.width),
		Height:   float32(f.height),
		MaxDepth: 1.0,
	}, area)
	c.state = commandBufferStateInRenderPass
	return nil
}

func (c *CommandBuffer) EndRenderPass() error {
	if c.state != commandBufferStateInRenderPass {
		return core.NewError(core.KindUsageViolation, "EndRenderPass", "no render pass open")
	}
	c.device.driver.CmdEndRenderPass(c.handle)
	c.state = commandBufferStateRecording
	return nil
}

func (c *CommandBuffer) BindPipeline(p renderer.Pipeline) error {
	if err := c.requireRecording("BindPipeline"); err != nil {
		return err
	}
	pl, err := AsPipeline(p)
	if err != nil {
		return err
	}
	c.device.driver.CmdBindPipeline(c.handle, pl.bindPoint(), pl.handle)
	return nil
}

// descriptorWrite fills write for res according to the type of entry.
func descriptorWrite(entry *metadata.BindingEntry, res renderer.DescriptorResource, write *vk.WriteDescriptorSet) error {
	switch entry.Type {
	case metadata.DescriptorTypeUniformBuffer, metadata.DescriptorTypeStorageBuffer:
		if res.Buffer == nil {
			return core.NewError(core.KindUsageViolation, "BindDescriptor", "descriptor %q needs a buffer", entry.Name)
		}
		b, err := AsBuffer(res.Buffer)
		if err != nil {
			return err
		}
		size := vk.DeviceSize(res.Size)
		if res.Size == 0 {
			size = vk.DeviceSize(vk.WholeSize)
		} else if res.Offset+res.Size > b.desc.Size {
			return core.NewError(core.KindUsageViolation, "BindDescriptor", "range [%d,%d) exceeds buffer %q", res.Offset, res.Offset+res.Size, b.desc.Label)
		}
		write.PBufferInfo = []vk.DescriptorBufferInfo{{
			Buffer: b.buffer,
			Offset: vk.DeviceSize(res.Offset),
			Range:  size,
		}}
	default:
		if res.Texture == nil {
			return core.NewError(core.KindUsageViolation, "BindDescriptor", "descriptor %q needs a texture", entry.Name)
		}
		t, err := AsTexture(res.Texture)
		if err != nil {
			return err
		}
		info := vk.DescriptorImageInfo{
			ImageView:   t.view,
			ImageLayout: ImageLayout(renderer.DescriptorState(entry)),
		}
		if entry.Type == metadata.DescriptorTypeCombinedImageSampler {
			if !t.desc.Usage.Has(metadata.TextureUsageSampled) {
				return core.NewError(core.KindUsageViolation, "BindDescriptor", "texture %q is not sampled", t.desc.Label)
			}
			info.Sampler = t.sampler
		}
		write.PImageInfo = []vk.DescriptorImageInfo{info}
	}
	return nil
}

// BindDescriptor writes res into a fresh set allocated from the set layout
// the pipeline declared for the entry, then binds it at the entry's set.
func (c *CommandBuffer) BindDescriptor(p renderer.Pipeline, entry *metadata.BindingEntry, res renderer.DescriptorResource) error {
	if err := c.requireRecording("BindDescriptor"); err != nil {
		return err
	}
	pl, err := AsPipeline(p)
	if err != nil {
		return err
	}
	if len(entry.Slots) == 0 {
		return core.NewError(core.KindUsageViolation, "BindDescriptor", "descriptor %q has no physical slot", entry.Name)
	}
	slot := entry.Slots[0]
	if int(slot.Index) >= len(pl.setLayouts) {
		return core.NewError(core.KindUsageViolation, "BindDescriptor", "set %d is not part of pipeline %s", slot.Index, pl.label)
	}

	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      slot.Space,
		DescriptorCount: 1,
		DescriptorType:  DescriptorType(entry.Type),
	}
	if err := descriptorWrite(entry, res, &write); err != nil {
		return err
	}

	set, err := c.device.driver.AllocateDescriptorSet(pl.setLayouts[slot.Index])
	if err != nil {
		return err
	}
	c.sets = append(c.sets, set)
	write.DstSet = set
	c.device.driver.UpdateDescriptorSet(write)
	c.device.driver.CmdBindDescriptorSet(c.handle, pl.bindPoint(), pl.layout, slot.Index, set)
	return nil
}

func (c *CommandBuffer) BindVertexBuffer(p renderer.Pipeline, attr *metadata.AttributeBinding, buf renderer.Buffer, offset uint64) error {
	if err := c.requireRecording("BindVertexBuffer"); err != nil {
		return err
	}
	b, err := AsBuffer(buf)
	if err != nil {
		return err
	}
	if !b.desc.Usage.Has(metadata.BufferUsageVertex) {
		return core.NewError(core.KindUsageViolation, "BindVertexBuffer", "buffer %q is not a vertex buffer", b.desc.Label)
	}
	c.device.driver.CmdBindVertexBuffer(c.handle, attr.Slot, b.buffer, offset)
	return nil
}

func (c *CommandBuffer) BindIndexBuffer(buf renderer.Buffer, offset uint64, format renderer.IndexFormat) error {
	if err := c.requireRecording("BindIndexBuffer"); err != nil {
		return err
	}
	b, err := AsBuffer(buf)
	if err != nil {
		return err
	}
	if !b.desc.Usage.Has(metadata.BufferUsageIndex) {
		return core.NewError(core.KindUsageViolation, "BindIndexBuffer", "buffer %q is not an index buffer", b.desc.Label)
	}
	c.device.driver.CmdBindIndexBuffer(c.handle, b.buffer, offset, IndexType(format))
	return nil
}

func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.device.driver.CmdDraw(c.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.device.driver.CmdDrawIndexed(c.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (c *CommandBuffer) Dispatch(x, y, z uint32) {
	c.device.driver.CmdDispatch(c.handle, x, y, z)
}

func (c *CommandBuffer) CopyBuffer(src, dst renderer.Buffer, srcOffset, dstOffset, size uint64) error {
	if err := c.requireRecording("CopyBuffer"); err != nil {
		return err
	}
	s, err := AsBuffer(src)
	if err != nil {
		return err
	}
	d, err := AsBuffer(dst)
	if err != nil {
		return err
	}
	if srcOffset+size > s.desc.Size || dstOffset+size > d.desc.Size {
		return core.NewError(core.KindUsageViolation, "CopyBuffer", "copy of %d bytes from %q to %q is out of range", size, s.desc.Label, d.desc.Label)
	}
	c.device.driver.CmdCopyBuffer(c.handle, s.buffer, d.buffer, vk.BufferCopy{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	})
	return nil
}

// subresourceCopy addresses one whole (mip, layer) tightly packed at offset.
func subresourceCopy(t *Texture, mip, layer uint32, offset uint64) (vk.BufferImageCopy, uint64) {
	w, h := t.Extent(mip)
	d := mipExtent(t.desc.Depth, mip)
	size := uint64(w) * uint64(h) * uint64(d) * uint64(t.desc.Format.BytesPerPixel())
	return vk.BufferImageCopy{
		BufferOffset: vk.DeviceSize(offset),
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     AspectMask(t.desc.Format),
			MipLevel:       mip,
			BaseArrayLayer: layer,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{Width: w, Height: h, Depth: d},
	}, size
}

func (t *Texture) checkSubresource(op string, mip, layer uint32, want metadata.ResourceState) error {
	if mip >= t.desc.MipLevels || layer >= t.desc.ArrayLayers {
		return core.NewError(core.KindUsageViolation, op, "(mip %d, layer %d) is outside texture %q", mip, layer, t.desc.Label)
	}
	if got := t.states.Get(mip, layer); got != want {
		return core.NewError(core.KindUsageViolation, op, "texture %q (mip %d, layer %d) is %s, expected %s", t.desc.Label, mip, layer, got, want)
	}
	return nil
}

func (c *CommandBuffer) CopyBufferToTexture(src renderer.Buffer, srcOffset uint64, dst renderer.Texture, mip, layer uint32) error {
	if err := c.requireRecording("CopyBufferToTexture"); err != nil {
		return err
	}
	s, err := AsBuffer(src)
	if err != nil {
		return err
	}
	t, err := AsTexture(dst)
	if err != nil {
		return err
	}
	if err := t.checkSubresource("CopyBufferToTexture", mip, layer, metadata.ResourceStateTransferDst); err != nil {
		return err
	}
	region, size := subresourceCopy(t, mip, layer, srcOffset)
	if srcOffset+size > s.desc.Size {
		return core.NewError(core.KindUsageViolation, "CopyBufferToTexture", "buffer %q holds %d bytes, copy needs %d at offset %d", s.desc.Label, s.desc.Size, size, srcOffset)
	}
	c.device.driver.CmdCopyBufferToImage(c.handle, s.buffer, t.image, vk.ImageLayoutTransferDstOptimal, region)
	return nil
}

func (c *CommandBuffer) CopyTextureToBuffer(src renderer.Texture, mip, layer uint32, dst renderer.Buffer, dstOffset uint64) error {
	if err := c.requireRecording("CopyTextureToBuffer"); err != nil {
		return err
	}
	t, err := AsTexture(src)
	if err != nil {
		return err
	}
	d, err := AsBuffer(dst)
	if err != nil {
		return err
	}
	if err := t.checkSubresource("CopyTextureToBuffer", mip, layer, metadata.ResourceStateTransferSrc); err != nil {
		return err
	}
	region, size := subresourceCopy(t, mip, layer, dstOffset)
	if dstOffset+size > d.desc.Size {
		return core.NewError(core.KindUsageViolation, "CopyTextureToBuffer", "buffer %q holds %d bytes, copy needs %d at offset %d", d.desc.Label, d.desc.Size, size, dstOffset)
	}
	c.device.driver.CmdCopyImageToBuffer(c.handle, t.image, vk.ImageLayoutTransferSrcOptimal, d.buffer, region)
	return nil
}

func (c *CommandBuffer) BlitMip(tex renderer.Texture, layer, srcMip uint32) error {
	if err := c.requireRecording("BlitMip"); err != nil {
		return err
	}
	t, err := AsTexture(tex)
	if err != nil {
		return err
	}
	if srcMip+1 >= t.desc.MipLevels {
		return core.NewError(core.KindUsageViolation, "BlitMip", "texture %q has no mip below %d", t.desc.Label, srcMip)
	}
	if err := t.checkSubresource("BlitMip", srcMip, layer, metadata.ResourceStateTransferSrc); err != nil {
		return err
	}
	if err := t.checkSubresource("BlitMip", srcMip+1, layer, metadata.ResourceStateTransferDst); err != nil {
		return err
	}

	sw, sh := t.Extent(srcMip)
	dw, dh := t.Extent(srcMip + 1)
	aspect := AspectMask(t.desc.Format)
	region := vk.ImageBlit{
		SrcSubresource: vk.ImageSubresourceLayers{AspectMask: aspect, MipLevel: srcMip, BaseArrayLayer: layer, LayerCount: 1},
		SrcOffsets:     [2]vk.Offset3D{{}, {X: int32(sw), Y: int32(sh), Z: 1}},
		DstSubresource: vk.ImageSubresourceLayers{AspectMask: aspect, MipLevel: srcMip + 1, BaseArrayLayer: layer, LayerCount: 1},
		DstOffsets:     [2]vk.Offset3D{{}, {X: int32(dw), Y: int32(dh), Z: 1}},
	}
	filter := vk.FilterLinear
	if t.desc.Format.IsDepth() {
		filter = vk.FilterNearest
	}
	c.device.driver.CmdBlitImage(c.handle, t.image, region, filter)
	return nil
}
