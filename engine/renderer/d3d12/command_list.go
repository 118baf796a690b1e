package d3d12

import (
	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
	"github.com/spaghettifunk/gfxhal/engine/renderer/metadata"
)

type commandListState int

const (
	commandListStateClosed commandListState = iota
	commandListStateRecording
	commandListStateInRenderPass
	commandListStateRecordingEnded
)

// ConstantBufferAlignment is the placement every root CBV address needs.
const ConstantBufferAlignment = 256

// CommandList records into one direct command list. Render passes are
// emulated: beginning one moves the attachments into their render target
// states and clears them, ending one moves them into the final layouts the
// pass declares.
type CommandList struct {
	device *Device
	handle Handle
	state  commandListState
	fb     *Framebuffer
}

func (c *CommandList) Handle() Handle { return c.handle }

func (c *CommandList) recording() bool {
	return c.state == commandListStateRecording || c.state == commandListStateInRenderPass
}

func (c *CommandList) requireRecording(op string) error {
	if !c.recording() {
		return core.NewError(core.KindUsageViolation, op, "command list is not recording")
	}
	return nil
}

func (c *CommandList) Begin() error {
	if c.recording() {
		return core.NewError(core.KindUsageViolation, "CommandList.Begin", "already recording")
	}
	if err := c.device.driver.ResetCommandList(c.handle); err != nil {
		return err
	}
	c.state = commandListStateRecording
	return nil
}

func (c *CommandList) End() error {
	switch c.state {
	case commandListStateInRenderPass:
		return core.NewError(core.KindUsageViolation, "CommandList.End", "render pass still open")
	case commandListStateRecording:
	default:
		return core.NewError(core.KindUsageViolation, "CommandList.End", "not recording")
	}
	if err := c.device.driver.CloseCommandList(c.handle); err != nil {
		return err
	}
	c.state = commandListStateRecordingEnded
	return nil
}

// Reset abandons whatever was recorded. The allocator itself is reset by
// the next Begin.
func (c *CommandList) Reset() error {
	var err error
	if c.recording() {
		err = c.device.driver.CloseCommandList(c.handle)
	}
	c.state = commandListStateClosed
	c.fb = nil
	return err
}

func (c *CommandList) Destroy() {
	c.device.driver.Release(c.handle)
	c.handle = NullHandle
}

func (c *CommandList) barrierAllowed(op, label string) error {
	if c.state == commandListStateInRenderPass {
		return core.NewError(core.KindUsageViolation, op, "barrier on %q inside a render pass", label)
	}
	return c.requireRecording(op)
}

// TextureBarrier records a single ResourceBarrier call carrying one
// transition per changed subresource. When no change alters the native
// state nothing is recorded.
func (c *CommandList) TextureBarrier(tex renderer.Texture, changes []renderer.SubresourceTransition) error {
	if err := c.barrierAllowed("TextureBarrier", tex.Label()); err != nil {
		return err
	}
	t, err := AsTexture(tex)
	if err != nil {
		return err
	}
	if barriers := Barriers(t.resource, t.desc.MipLevels, changes); len(barriers) > 0 {
		c.device.driver.ResourceBarrier(c.handle, barriers)
	}
	return nil
}

// BufferBarrier transitions the whole buffer. Upload and readback heap
// buffers cannot change state, so only the recorded state moves for them.
func (c *CommandList) BufferBarrier(buf renderer.Buffer, before, after metadata.ResourceState) error {
	if err := c.barrierAllowed("BufferBarrier", buf.Label()); err != nil {
		return err
	}
	b, err := AsBuffer(buf)
	if err != nil {
		return err
	}
	if b.heap != HeapTypeDefault {
		return nil
	}
	from, to := BufferState(before), BufferState(after)
	if from == to {
		return nil
	}
	c.device.driver.ResourceBarrier(c.handle, []ResourceBarrier{{
		Resource:    b.resource,
		Subresource: AllSubresources,
		Before:      from,
		After:       to,
	}})
	return nil
}

// attachmentBarriers moves every attachment of fb between states. from
// gives the state an attachment leaves, to the one it enters.
func (c *CommandList) attachmentBarriers(fb *Framebuffer, from, to func(i int, a renderer.Attachment) ResourceStates) error {
	var barriers []ResourceBarrier
	for i, a := range fb.attachments {
		t, err := AsTexture(a.Texture)
		if err != nil {
			return err
		}
		before, after := from(i, a), to(i, a)
		if before == after {
			continue
		}
		barriers = append(barriers, ResourceBarrier{
			Resource:    t.resource,
			Subresource: t.subresource(a.Mip, a.Layer),
			Before:      before,
			After:       after,
		})
	}
	if len(barriers) > 0 {
		c.device.driver.ResourceBarrier(c.handle, barriers)
	}
	return nil
}

func (f *Framebuffer) isDepth(i int) bool { return i >= len(f.pass.config.Colors) }

func (f *Framebuffer) desc(i int) metadata.AttachmentDesc {
	if f.isDepth(i) {
		return *f.pass.config.DepthStencil
	}
	return f.pass.config.Colors[i]
}

func (f *Framebuffer) attachmentState(i int) ResourceStates {
	if f.isDepth(i) {
		return ResourceStateDepthWrite
	}
	return ResourceStateRenderTarget
}

func (c *CommandList) BeginRenderPass(fb renderer.Framebuffer, clear renderer.ClearValues) error {
	if c.state != commandListStateRecording {
		return core.NewError(core.KindUsageViolation, "BeginRenderPass", "command list is not recording outside a render pass")
	}
	f, err := AsFramebuffer(fb)
	if err != nil {
		return err
	}
	err = c.attachmentBarriers(f,
		func(_ int, a renderer.Attachment) ResourceStates { return State(a.Texture.States().Get(a.Mip, a.Layer)) },
		func(i int, _ renderer.Attachment) ResourceStates { return f.attachmentState(i) },
	)
	if err != nil {
		return err
	}

	drv := c.device.driver
	drv.OMSetRenderTargets(c.handle, f.rtvs, f.dsv)
	for i, rtv := range f.rtvs {
		if f.pass.config.Colors[i].LoadOp != metadata.LoadOpClear {
			continue
		}
		color := [4]float32{0, 0, 0, 1}
		if i < len(clear.Colors) {
			color = clear.Colors[i]
		}
		drv.ClearRenderTargetView(c.handle, rtv, color)
	}
	if ds := f.pass.config.DepthStencil; ds != nil && ds.LoadOp == metadata.LoadOpClear {
		drv.ClearDepthStencilView(c.handle, *f.dsv, clear.Depth, uint8(clear.Stencil), ds.Format.HasStencil())
	}
	drv.RSSetViewport(c.handle, Viewport{Width: float32(f.width), Height: float32(f.height), MaxDepth: 1})
	c.fb = f
	c.state = commandListStateInRenderPass
	return nil
}

func (c *CommandList) EndRenderPass() error {
	if c.state != commandListStateInRenderPass {
		return core.NewError(core.KindUsageViolation, "EndRenderPass", "no render pass open")
	}
	f := c.fb
	err := c.attachmentBarriers(f,
		func(i int, _ renderer.Attachment) ResourceStates { return f.attachmentState(i) },
		func(i int, _ renderer.Attachment) ResourceStates { return State(f.desc(i).FinalLayout) },
	)
	if err != nil {
		return err
	}
	c.fb = nil
	c.state = commandListStateRecording
	return nil
}

func (c *CommandList) BindPipeline(p renderer.Pipeline) error {
	if err := c.requireRecording("BindPipeline"); err != nil {
		return err
	}
	pl, err := AsPipeline(p)
	if err != nil {
		return err
	}
	drv := c.device.driver
	drv.SetPipelineState(c.handle, pl.pso)
	drv.SetRootSignature(c.handle, pl.compute(), pl.rootSignature)
	if !pl.compute() {
		drv.IASetPrimitiveTopology(c.handle, pl.topology)
	}
	return nil
}

func (c *CommandList) bufferAddress(entry *metadata.BindingEntry, res renderer.DescriptorResource) (uint64, error) {
	if res.Buffer == nil {
		return 0, core.NewError(core.KindUsageViolation, "BindDescriptor", "descriptor %q needs a buffer", entry.Name)
	}
	b, err := AsBuffer(res.Buffer)
	if err != nil {
		return 0, err
	}
	if res.Size != 0 && res.Offset+res.Size > b.desc.Size {
		return 0, core.NewError(core.KindUsageViolation, "BindDescriptor", "range [%d,%d) exceeds buffer %q", res.Offset, res.Offset+res.Size, b.desc.Label)
	}
	if res.Offset >= b.desc.Size {
		return 0, core.NewError(core.KindUsageViolation, "BindDescriptor", "offset %d is past the end of buffer %q", res.Offset, b.desc.Label)
	}
	if entry.Type == metadata.DescriptorTypeUniformBuffer && res.Offset%ConstantBufferAlignment != 0 {
		return 0, core.NewError(core.KindUsageViolation, "BindDescriptor", "constant buffer offset %d is not %d byte aligned", res.Offset, ConstantBufferAlignment)
	}
	return b.address + res.Offset, nil
}

// BindDescriptor sets the root arguments of entry: buffers by GPU address,
// textures as tables pointing at their heap slots.
func (c *CommandList) BindDescriptor(p renderer.Pipeline, entry *metadata.BindingEntry, res renderer.DescriptorResource) error {
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
	drv := c.device.driver
	slot := entry.Slots[0]

	switch entry.Type {
	case metadata.DescriptorTypeUniformBuffer, metadata.DescriptorTypeStorageBuffer:
		addr, err := c.bufferAddress(entry, res)
		if err != nil {
			return err
		}
		kind := RootParameterSRV
		switch slot.Kind {
		case metadata.SlotKindRootCBV:
			kind = RootParameterCBV
		case metadata.SlotKindRootUAV:
			kind = RootParameterUAV
		}
		drv.SetRootView(c.handle, pl.compute(), slot.Index, kind, addr)
		return nil
	}

	if res.Texture == nil {
		return core.NewError(core.KindUsageViolation, "BindDescriptor", "descriptor %q needs a texture", entry.Name)
	}
	t, err := AsTexture(res.Texture)
	if err != nil {
		return err
	}
	if entry.Type == metadata.DescriptorTypeStorageImage {
		if t.uavSlot < 0 {
			return core.NewError(core.KindUsageViolation, "BindDescriptor", "texture %q has no storage view", t.desc.Label)
		}
		drv.SetRootDescriptorTable(c.handle, pl.compute(), slot.Index, DescriptorHeapCBVSRVUAV, uint32(t.uavSlot))
		return nil
	}
	if t.srvSlot < 0 {
		return core.NewError(core.KindUsageViolation, "BindDescriptor", "texture %q is not sampled", t.desc.Label)
	}
	if len(entry.Slots) < 2 {
		return core.NewError(core.KindUsageViolation, "BindDescriptor", "descriptor %q has no sampler slot", entry.Name)
	}
	drv.SetRootDescriptorTable(c.handle, pl.compute(), slot.Index, DescriptorHeapCBVSRVUAV, uint32(t.srvSlot))
	drv.SetRootDescriptorTable(c.handle, pl.compute(), entry.Slots[1].Index, DescriptorHeapSampler, uint32(t.srvSlot))
	return nil
}

func (c *CommandList) BindVertexBuffer(p renderer.Pipeline, attr *metadata.AttributeBinding, buf renderer.Buffer, offset uint64) error {
	if err := c.requireRecording("BindVertexBuffer"); err != nil {
		return err
	}
	pl, err := AsPipeline(p)
	if err != nil {
		return err
	}
	b, err := AsBuffer(buf)
	if err != nil {
		return err
	}
	if !b.desc.Usage.Has(metadata.BufferUsageVertex) {
		return core.NewError(core.KindUsageViolation, "BindVertexBuffer", "buffer %q is not a vertex buffer", b.desc.Label)
	}
	if offset >= b.desc.Size {
		return core.NewError(core.KindUsageViolation, "BindVertexBuffer", "offset %d is past the end of buffer %q", offset, b.desc.Label)
	}
	c.device.driver.IASetVertexBuffer(c.handle, attr.Slot, VertexBufferView{
		Location: b.address + offset,
		Size:     uint32(b.desc.Size - offset),
		Stride:   pl.strides[attr.Slot],
	})
	return nil
}

func (c *CommandList) BindIndexBuffer(buf renderer.Buffer, offset uint64, format renderer.IndexFormat) error {
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
	if offset >= b.desc.Size {
		return core.NewError(core.KindUsageViolation, "BindIndexBuffer", "offset %d is past the end of buffer %q", offset, b.desc.Label)
	}
	c.device.driver.IASetIndexBuffer(c.handle, IndexBufferView{
		Location: b.address + offset,
		Size:     uint32(b.desc.Size - offset),
		Format:   IndexFormat(format),
	})
	return nil
}

func (c *CommandList) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.device.driver.DrawInstanced(c.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *CommandList) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.device.driver.DrawIndexedInstanced(c.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (c *CommandList) Dispatch(x, y, z uint32) {
	c.device.driver.Dispatch(c.handle, x, y, z)
}

func (c *CommandList) CopyBuffer(src, dst renderer.Buffer, srcOffset, dstOffset, size uint64) error {
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
	c.device.driver.CopyBufferRegion(c.handle, d.resource, dstOffset, s.resource, srcOffset, size)
	return nil
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

// textureCopy addresses one whole (mip, layer) tightly packed at offset.
func textureCopy(t *Texture, mip, layer uint32, buffer Handle, offset uint64) (TextureCopy, uint64) {
	w, h := t.Extent(mip)
	d := max(t.desc.Depth>>mip, 1)
	bpp := t.desc.Format.BytesPerPixel()
	return TextureCopy{
		Buffer:       buffer,
		BufferOffset: offset,
		RowPitch:     w * bpp,
		Texture:      t.resource,
		Subresource:  t.subresource(mip, layer),
		Width:        w,
		Height:       h,
		Depth:        d,
		Format:       DXGIFormat(t.desc.Format),
	}, uint64(w) * uint64(h) * uint64(d) * uint64(bpp)
}

func (c *CommandList) CopyBufferToTexture(src renderer.Buffer, srcOffset uint64, dst renderer.Texture, mip, layer uint32) error {
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
	region, size := textureCopy(t, mip, layer, s.resource, srcOffset)
	if srcOffset+size > s.desc.Size {
		return core.NewError(core.KindUsageViolation, "CopyBufferToTexture", "buffer %q holds %d bytes, copy needs %d at offset %d", s.desc.Label, s.desc.Size, size, srcOffset)
	}
	c.device.driver.CopyBufferToTexture(c.handle, region)
	return nil
}

func (c *CommandList) CopyTextureToBuffer(src renderer.Texture, mip, layer uint32, dst renderer.Buffer, dstOffset uint64) error {
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
	region, size := textureCopy(t, mip, layer, d.resource, dstOffset)
	if dstOffset+size > d.desc.Size {
		return core.NewError(core.KindUsageViolation, "CopyTextureToBuffer", "buffer %q holds %d bytes, copy needs %d at offset %d", d.desc.Label, d.desc.Size, size, dstOffset)
	}
	c.device.driver.CopyTextureToBuffer(c.handle, region)
	return nil
}

func (c *CommandList) BlitMip(tex renderer.Texture, layer, srcMip uint32) error {
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
	c.device.driver.GenerateMip(c.handle, t.resource, DXGIFormat(t.desc.Format),
		t.subresource(srcMip, layer), t.subresource(srcMip+1, layer), !t.desc.Format.IsDepth())
	return nil
}
